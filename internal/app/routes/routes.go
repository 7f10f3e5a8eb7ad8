package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "merodocs-http-service/docs"
	"merodocs-http-service/internal/app/controllers"
	"merodocs-http-service/internal/app/middleware"
	"merodocs-http-service/internal/app/validation"
	"merodocs-http-service/internal/domain/services"
	"merodocs-http-service/internal/domain/services/container"
	"merodocs-http-service/internal/infrastructure/config"
)

// SetupRouter 初始化并返回配置好的路由
func SetupRouter(serviceContainer *container.ServiceContainer, cfg *config.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.Metrics(serviceContainer.Metrics()))
	r.Use(middleware.CORS(cfg.CORSAllowOrigins))

	// 注册自定义校验规则
	validation.Register()
	// 初始化中间件
	middleware.InitAuthMiddleware(serviceContainer.GetService("jwt").(services.InterfaceJWTService))

	// 添加 Swagger 文档路由
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	registerRoutes(r, serviceContainer, cfg)
	return r
}

// registerRoutes 配置所有API路由
func registerRoutes(r *gin.Engine, container *container.ServiceContainer, cfg *config.Config) {
	// API 路由根路径
	api := r.Group("/api")
	api.Use(middleware.IPRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst))

	registerPublicRoutes(api, container)
	registerGuardRoutes(api, container, cfg)
	registerClientRoutes(api, container, cfg)
}

// registerPublicRoutes 注册公共路由
func registerPublicRoutes(api *gin.RouterGroup, container *container.ServiceContainer) {
	api.GET("/ping", controllers.HandleHealthFunc(container, "ping"))
	api.GET("/health", controllers.HandleHealthFunc(container, "health"))
}

// registerGuardRoutes 门岗面板
func registerGuardRoutes(api *gin.RouterGroup, container *container.ServiceContainer, cfg *config.Config) {
	guard := api.Group("/guard")
	guard.Use(middleware.AuthenticateGuard())
	guard.Use(middleware.PrincipalRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst))

	visits := guard.Group("/visits")
	{
		visits.POST("", controllers.HandleVisitFunc(container, "createVisit"))
		visits.GET("/pending", controllers.HandleVisitFunc(container, "listPending"))
		visits.GET("/preapproved", controllers.HandleVisitFunc(container, "listPreapproved"))
		visits.POST("/notify", controllers.HandleVisitFunc(container, "resendNotifications"))
		visits.GET("/:id", controllers.HandleVisitFunc(container, "getVisit"))
		visits.DELETE("/:id", controllers.HandleVisitFunc(container, "deleteVisit"))
		visits.POST("/:id/checkin", controllers.HandleVisitFunc(container, "checkIn"))
		visits.POST("/:id/checkout", controllers.HandleVisitFunc(container, "checkOut"))
	}

	tickets := guard.Group("/tickets")
	{
		tickets.POST("/:id/handover", controllers.HandleTicketFunc(container, "handOver"))
		tickets.POST("/:id/gate-confirm", controllers.HandleTicketFunc(container, "confirmAtGate"))
	}

	guard.GET("/parcels/history", controllers.HandleTicketFunc(container, "parcelHistory"))
	guard.GET("/providers", controllers.HandleProviderFunc(container, "listProviders"))
	guard.POST("/providers", controllers.HandleProviderFunc(container, "createProvider"))
	guard.GET("/live", controllers.HandleLiveFunc(container))
}

// registerClientRoutes 住户端
func registerClientRoutes(api *gin.RouterGroup, container *container.ServiceContainer, cfg *config.Config) {
	client := api.Group("/client")
	client.Use(middleware.AuthenticateClient())
	client.Use(middleware.PrincipalRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst))

	visits := client.Group("/visits")
	{
		visits.POST("", controllers.HandleVisitFunc(container, "createVisit"))
		visits.GET("/pending", controllers.HandleVisitFunc(container, "listPending"))
		visits.GET("/preapproved", controllers.HandleVisitFunc(container, "listPreapproved"))
		visits.GET("/:id", controllers.HandleVisitFunc(container, "getVisit"))
	}

	tickets := client.Group("/tickets")
	{
		tickets.POST("/:id/approve", controllers.HandleTicketFunc(container, "approve"))
		tickets.POST("/:id/reject", controllers.HandleTicketFunc(container, "reject"))
		tickets.POST("/:id/confirm", controllers.HandleTicketFunc(container, "confirmCollected"))
	}

	client.GET("/parcels/history", controllers.HandleTicketFunc(container, "parcelHistory"))
	client.GET("/providers", controllers.HandleProviderFunc(container, "listProviders"))
	client.POST("/providers", controllers.HandleProviderFunc(container, "createProvider"))

	client.POST("/devices", controllers.HandleDeviceFunc(container, "registerDevice"))
	client.DELETE("/devices/:token", controllers.HandleDeviceFunc(container, "removeDevice"))
	client.GET("/notifications", controllers.HandleDeviceFunc(container, "listNotifications"))
	client.POST("/notifications/:id/read", controllers.HandleDeviceFunc(container, "markRead"))
}
