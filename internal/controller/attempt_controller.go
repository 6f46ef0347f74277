package controller

import (
	"strconv"

	"quizhub_backend/internal/service"
	"quizhub_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AttemptController struct {
	AttemptService *service.AttemptService
	AnswerService  *service.AnswerService
}

func NewAttemptController(attemptService *service.AttemptService, answerService *service.AnswerService) *AttemptController {
	return &AttemptController{AttemptService: attemptService, AnswerService: answerService}
}

// @Summary 进入测验
// @Description 返回进行中的作答，没有则新建；过期作答会先被自动交卷
// @Tags 作答
// @Produce json
// @Security BearerAuth
// @Param id path int true "测验ID"
// @Success 200 {object} util.Response{data=service.AttemptView}
// @Failure 403 {object} util.Response "超过次数上限"
// @Router /quizzes/{id}/attempt [post]
func (c *AttemptController) GetOrCreateAttempt(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	view, err := c.AttemptService.GetOrCreateAttempt(ctx.Request.Context(), util.MustParseUint(ctx.Param("id")), claims.UserID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// @Summary 作答详情
// @Description 查看本人作答，题目与选项按作答时固定的乱序返回
// @Tags 作答
// @Produce json
// @Security BearerAuth
// @Param id path int true "作答ID"
// @Success 200 {object} util.Response{data=service.AttemptView}
// @Router /attempts/{id} [get]
func (c *AttemptController) GetAttempt(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	view, err := c.AttemptService.GetAttempt(ctx.Request.Context(), util.MustParseUint(ctx.Param("id")), claims.UserID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

type saveAnswerRequest struct {
	QuestionID       uint  `json:"questionId" binding:"required"`
	SelectedOptionID *uint `json:"selectedOptionId"`
}

// @Summary 记录答案
// @Description 保存或更新一道题的选择；截止时间已过时作答会被自动交卷并拒绝本次写入
// @Tags 作答
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "作答ID"
// @Param request body saveAnswerRequest true "题目与所选选项"
// @Success 200 {object} util.Response
// @Failure 409 {object} util.Response "已交卷或已过截止时间"
// @Router /attempts/{id}/answers [post]
func (c *AttemptController) SaveAnswer(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req saveAnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	answer, err := c.AnswerService.SaveAnswer(ctx.Request.Context(), util.MustParseUint(ctx.Param("id")), claims.UserID, req.QuestionID, req.SelectedOptionID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, answer)
}

type submitRequest struct {
	Answers []service.AnswerSubmission `json:"answers"`
}

// @Summary 交卷
// @Description 提交全部答案并计分；重复交卷返回冲突，成绩不变
// @Tags 作答
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "作答ID"
// @Param request body submitRequest true "全部答案"
// @Success 200 {object} util.Response{data=service.AttemptView}
// @Failure 409 {object} util.Response "已交卷"
// @Router /attempts/{id}/submit [post]
func (c *AttemptController) SubmitAttempt(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req submitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	view, err := c.AttemptService.SubmitAttempt(ctx.Request.Context(), util.MustParseUint(ctx.Param("id")), claims.UserID, req.Answers)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// @Summary 我的成绩统计
// @Tags 作答
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=service.StudentStats}
// @Router /me/stats [get]
func (c *AttemptController) GetMyStats(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	stats, err := c.AttemptService.GetStudentStats(claims.UserID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, stats)
}

// @Summary 作答列表
// @Description 全部作答记录（教师/管理员）
// @Tags 作答管理
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(20)
// @Success 200 {object} util.Response
// @Router /admin/attempts [get]
func (c *AttemptController) ListAttempts(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))

	attempts, total, err := c.AttemptService.ListAttempts(page, limit)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: attempts, Total: total, Page: page, Limit: limit})
}

// @Summary 删除作答
// @Description 删除作答记录及其答案与成绩（教师/管理员）
// @Tags 作答管理
// @Produce json
// @Security BearerAuth
// @Param id path int true "作答ID"
// @Success 200 {object} util.Response
// @Router /admin/attempts/{id} [delete]
func (c *AttemptController) DeleteAttempt(ctx *gin.Context) {
	if err := c.AttemptService.DeleteAttempt(util.MustParseUint(ctx.Param("id"))); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}
