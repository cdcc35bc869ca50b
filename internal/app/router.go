package app

import (
	"sia_backend/docs"
	"sia_backend/internal/config"
	"sia_backend/internal/middleware"
	"sia_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	registerPublicRoutes(router, c)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		registerProfileRoutes(authGroup, c)
		registerActivityRoutes(authGroup, c)
	}
}

func registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
	}
}

func registerProfileRoutes(group *gin.RouterGroup, c *controllers) {
	group.GET("/profile", c.profile.GetProfile)
	group.PUT("/profile", c.profile.SaveProfile)
}

func registerActivityRoutes(group *gin.RouterGroup, c *controllers) {
	activities := group.Group("/activities")
	{
		activities.GET("", c.activity.ListActivities)
		activities.POST("/create", c.activity.CreateActivity)
		activities.POST("/:activity_id/start", c.activity.StartActivity)
		activities.GET("/:activity_id/details", c.activity.GetActivityDetails)
		activities.GET("/:activity_id/items/:item_id", c.activity.GetActivityItem)
		activities.POST("/:activity_id/items/:item_id/answer", c.activity.SubmitAnswer)
		activities.POST("/:activity_id/items/:item_id/recording", c.activity.UploadRecording)
	}
}
