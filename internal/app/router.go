package app

import (
	"quizhub_backend/docs"
	"quizhub_backend/internal/config"
	"quizhub_backend/internal/middleware"
	"quizhub_backend/internal/model"
	"quizhub_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(repos.user))
	{
		a.registerStudentRoutes(authGroup, c)
		a.registerTeacherRoutes(authGroup, c)
	}

	// 3. 管理员相关接口
	a.registerAdminRoutes(router, c, repos, cfg)
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/auth/register", c.auth.Register)
		public.POST("/auth/login", c.auth.Login)
		public.POST("/auth/refresh", c.auth.Refresh)
		public.POST("/auth/logout", c.auth.Logout)
	}
}

func (a *App) registerStudentRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.GET("/auth/me", c.auth.Me)
	rg.GET("/me/stats", c.attempt.GetMyStats)

	rg.GET("/quizzes", c.quiz.ListQuizzes)
	rg.GET("/quizzes/:id", c.quiz.GetQuiz)

	// 作答生命周期
	rg.POST("/quizzes/:id/attempt", c.attempt.GetOrCreateAttempt)
	rg.GET("/attempts/:id", c.attempt.GetAttempt)
	rg.POST("/attempts/:id/answers", c.attempt.SaveAnswer)
	rg.POST("/attempts/:id/submit", c.attempt.SubmitAttempt)
	rg.GET("/attempts/:id/result", c.result.GetResult)
}

func (a *App) registerTeacherRoutes(rg *gin.RouterGroup, c *controllers) {
	teacher := rg.Group("/")
	teacher.Use(middleware.RoleMiddleware(model.Teacher, model.Admin))
	{
		teacher.POST("/quizzes", c.quiz.CreateQuiz)
		teacher.PUT("/quizzes/:id", c.quiz.UpdateQuiz)
		teacher.DELETE("/quizzes/:id", c.quiz.DeleteQuiz)

		teacher.POST("/quizzes/:id/questions", c.question.AddQuestion)
		teacher.GET("/quizzes/:id/questions", c.question.ListQuestions)
		teacher.PUT("/questions/:id", c.question.UpdateQuestion)
		teacher.DELETE("/questions/:id", c.question.DeleteQuestion)

		teacher.POST("/questions/:id/options", c.question.AddOption)
		teacher.PUT("/options/:id", c.question.UpdateOption)
		teacher.DELETE("/options/:id", c.question.DeleteOption)
	}
}

func (a *App) registerAdminRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	admin := router.Group("/api/admin")
	admin.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(repos.user))
	{
		// 作答与成绩：允许管理员和老师访问
		teacherOrAdmin := admin.Group("/")
		teacherOrAdmin.Use(middleware.RoleMiddleware(model.Teacher, model.Admin))
		{
			teacherOrAdmin.GET("/attempts", c.attempt.ListAttempts)
			teacherOrAdmin.DELETE("/attempts/:id", c.attempt.DeleteAttempt)
			teacherOrAdmin.GET("/results", c.result.ListResults)
		}

		// 用户管理：仅限管理员
		adminOnly := admin.Group("/")
		adminOnly.Use(middleware.RoleMiddleware(model.Admin))
		{
			adminOnly.GET("/users", c.user.ListUsers)
			adminOnly.GET("/users/:id", c.user.GetUser)
			adminOnly.PUT("/users/:id/role", c.user.UpdateRole)
			adminOnly.PUT("/users/:id/disabled", c.user.SetDisabled)
		}
	}
}
