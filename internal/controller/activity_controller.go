package controller

import (
	"sia_backend/internal/service"
	"sia_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ActivityController struct {
	ActivityService  *service.ActivityService
	AnswerService    *service.AnswerService
	RecordingService *service.RecordingService
}

func NewActivityController(activityService *service.ActivityService, answerService *service.AnswerService, recordingService *service.RecordingService) *ActivityController {
	return &ActivityController{
		ActivityService:  activityService,
		AnswerService:    answerService,
		RecordingService: recordingService,
	}
}

// CreateActivity godoc
// @Summary 生成新练习
// @Description 根据患者资料生成一组练习题
// @Tags 练习
// @Produce  json
// @Security ApiKeyAuth
// @Success 201 {object} util.Response{data=model.Activity}
// @Failure 404 {object} util.Response "患者资料不存在"
// @Failure 429 {object} util.Response "今日生成次数已用完"
// @Failure 500 {object} util.Response "内容生成失败"
// @Router /api/activities/create [post]
func (c *ActivityController) CreateActivity(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	activity, err := c.ActivityService.CreateActivity(ctx.Request.Context(), claims.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, activity)
}

// ListActivities godoc
// @Summary 获取我的练习列表
// @Description 按创建时间倒序
// @Tags 练习
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.Activity}
// @Router /api/activities [get]
func (c *ActivityController) ListActivities(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	activities, err := c.ActivityService.ListActivities(ctx.Request.Context(), claims.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, activities)
}

// StartActivity godoc
// @Summary 开始练习
// @Description 将练习置为进行中并返回第一道未完成的题目
// @Tags 练习
// @Produce  json
// @Security ApiKeyAuth
// @Param activity_id path string true "练习ID"
// @Success 200 {object} util.Response{data=model.ActivityItem}
// @Failure 400 {object} util.Response "练习已完成"
// @Failure 403 {object} util.Response "无权访问"
// @Failure 404 {object} util.Response "练习不存在或没有待完成题目"
// @Router /api/activities/{activity_id}/start [post]
func (c *ActivityController) StartActivity(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	item, err := c.ActivityService.StartActivity(ctx.Request.Context(), claims.UserID, ctx.Param("activity_id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, item)
}

// GetActivityItem godoc
// @Summary 获取题目
// @Tags 练习
// @Produce  json
// @Security ApiKeyAuth
// @Param activity_id path string true "练习ID"
// @Param item_id path string true "题目ID"
// @Success 200 {object} util.Response{data=model.ActivityItem}
// @Failure 404 {object} util.Response "题目不存在"
// @Router /api/activities/{activity_id}/items/{item_id} [get]
func (c *ActivityController) GetActivityItem(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	item, err := c.ActivityService.GetActivityItem(ctx.Request.Context(), claims.UserID, ctx.Param("activity_id"), ctx.Param("item_id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, item)
}

// SubmitAnswer godoc
// @Summary 提交作答
// @Description 记录一次作答，返回判定结果、提示以及下一题
// @Tags 练习
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param activity_id path string true "练习ID"
// @Param item_id path string true "题目ID"
// @Param body body service.SubmitAnswerRequest true "作答内容"
// @Success 200 {object} util.Response{data=service.AnswerResult}
// @Failure 400 {object} util.Response "题目已结束或作答格式错误"
// @Failure 403 {object} util.Response "无权访问"
// @Failure 404 {object} util.Response "练习或题目不存在"
// @Router /api/activities/{activity_id}/items/{item_id}/answer [post]
func (c *ActivityController) SubmitAnswer(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.SubmitAnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.AnswerService.SubmitAnswer(ctx.Request.Context(), claims.UserID, ctx.Param("activity_id"), ctx.Param("item_id"), &req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// UploadRecording godoc
// @Summary 上传作答录音
// @Description 返回的 url 可作为 answer.recording_url 提交
// @Tags 练习
// @Accept  multipart/form-data
// @Produce  json
// @Security ApiKeyAuth
// @Param activity_id path string true "练习ID"
// @Param item_id path string true "题目ID"
// @Param file formData file true "录音文件"
// @Success 200 {object} util.Response{data=service.RecordingResult}
// @Failure 400 {object} util.Response "文件格式或大小不符合要求"
// @Router /api/activities/{activity_id}/items/{item_id}/recording [post]
func (c *ActivityController) UploadRecording(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	file, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "缺少录音文件")
		return
	}

	result, err := c.RecordingService.UploadRecording(ctx.Request.Context(), claims.UserID, ctx.Param("activity_id"), ctx.Param("item_id"), file)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// GetActivityDetails godoc
// @Summary 获取练习详情
// @Description 包含全部题目与作答记录
// @Tags 练习
// @Produce  json
// @Security ApiKeyAuth
// @Param activity_id path string true "练习ID"
// @Success 200 {object} util.Response{data=model.ActivityDetails}
// @Failure 404 {object} util.Response "练习不存在"
// @Router /api/activities/{activity_id}/details [get]
func (c *ActivityController) GetActivityDetails(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	details, err := c.ActivityService.GetActivityDetails(ctx.Request.Context(), claims.UserID, ctx.Param("activity_id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, details)
}
