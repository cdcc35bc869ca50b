package controller

import (
	"sia_backend/internal/service"
	"sia_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ProfileController struct {
	ProfileService *service.ProfileService
}

func NewProfileController(profileService *service.ProfileService) *ProfileController {
	return &ProfileController{ProfileService: profileService}
}

// GetProfile godoc
// @Summary 获取患者资料
// @Tags 患者资料
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=model.PatientProfile}
// @Failure 404 {object} util.Response "资料不存在"
// @Router /api/profile [get]
func (c *ProfileController) GetProfile(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	profile, err := c.ProfileService.GetProfile(ctx.Request.Context(), claims.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, profile)
}

// SaveProfile godoc
// @Summary 创建或更新患者资料
// @Description 生成练习时会使用这些信息
// @Tags 患者资料
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body service.ProfileInput true "患者资料"
// @Success 200 {object} util.Response{data=model.PatientProfile}
// @Failure 400 {object} util.Response "请求参数错误"
// @Router /api/profile [put]
func (c *ProfileController) SaveProfile(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.ProfileInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	profile, err := c.ProfileService.SaveProfile(ctx.Request.Context(), claims.UserID, &req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, profile)
}
