package controller

import (
	"quizhub_backend/internal/service"
	"quizhub_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type QuestionController struct {
	QuizService *service.QuizService
}

func NewQuestionController(quizService *service.QuizService) *QuestionController {
	return &QuestionController{QuizService: quizService}
}

// @Summary 添加题目
// @Description 向测验追加题目，可一并提交选项（教师/管理员）
// @Tags 题目管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "测验ID"
// @Param request body service.QuestionCreateRequest true "题目内容"
// @Success 201 {object} util.Response
// @Router /quizzes/{id}/questions [post]
func (c *QuestionController) AddQuestion(ctx *gin.Context) {
	var req service.QuestionCreateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	question, err := c.QuizService.AddQuestion(util.MustParseUint(ctx.Param("id")), req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, question)
}

// @Summary 题目列表
// @Description 测验的全部题目，含选项与正确性标记（教师/管理员）
// @Tags 题目管理
// @Produce json
// @Security BearerAuth
// @Param id path int true "测验ID"
// @Success 200 {object} util.Response
// @Router /quizzes/{id}/questions [get]
func (c *QuestionController) ListQuestions(ctx *gin.Context) {
	questions, err := c.QuizService.ListQuestions(util.MustParseUint(ctx.Param("id")))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, questions)
}

// @Summary 更新题目
// @Tags 题目管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "题目ID"
// @Param request body service.QuestionUpdateRequest true "更新字段"
// @Success 200 {object} util.Response
// @Router /questions/{id} [put]
func (c *QuestionController) UpdateQuestion(ctx *gin.Context) {
	var req service.QuestionUpdateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	question, err := c.QuizService.UpdateQuestion(util.MustParseUint(ctx.Param("id")), req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, question)
}

// @Summary 删除题目
// @Tags 题目管理
// @Produce json
// @Security BearerAuth
// @Param id path int true "题目ID"
// @Success 200 {object} util.Response
// @Router /questions/{id} [delete]
func (c *QuestionController) DeleteQuestion(ctx *gin.Context) {
	if err := c.QuizService.DeleteQuestion(util.MustParseUint(ctx.Param("id"))); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// @Summary 添加选项
// @Tags 题目管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "题目ID"
// @Param request body service.OptionCreateRequest true "选项内容"
// @Success 201 {object} util.Response
// @Router /questions/{id}/options [post]
func (c *QuestionController) AddOption(ctx *gin.Context) {
	var req service.OptionCreateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	option, err := c.QuizService.AddOption(util.MustParseUint(ctx.Param("id")), req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, option)
}

// @Summary 更新选项
// @Tags 题目管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "选项ID"
// @Param request body service.OptionUpdateRequest true "更新字段"
// @Success 200 {object} util.Response
// @Router /options/{id} [put]
func (c *QuestionController) UpdateOption(ctx *gin.Context) {
	var req service.OptionUpdateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	option, err := c.QuizService.UpdateOption(util.MustParseUint(ctx.Param("id")), req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, option)
}

// @Summary 删除选项
// @Tags 题目管理
// @Produce json
// @Security BearerAuth
// @Param id path int true "选项ID"
// @Success 200 {object} util.Response
// @Router /options/{id} [delete]
func (c *QuestionController) DeleteOption(ctx *gin.Context) {
	if err := c.QuizService.DeleteOption(util.MustParseUint(ctx.Param("id"))); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}
