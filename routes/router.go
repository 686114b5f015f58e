package routes

import (
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/agroph/portal/chat"
	"github.com/agroph/portal/config"
	"github.com/agroph/portal/controllers"
	"github.com/agroph/portal/middleware"
	"github.com/agroph/portal/storage"
	"github.com/agroph/portal/utils"
	"github.com/agroph/portal/weather"
)

// App is the wired HTTP surface plus the long-lived pieces the process must start and stop.
type App struct {
	Engine  *gin.Engine
	Hub     *chat.Hub
	Sweeper *storage.Sweeper
}

// Shutdown stops background workers owned by the router.
func (a *App) Shutdown() {
	a.Hub.Stop()
}

// SetupRouter wires routes, middlewares, and controllers. The chat hub is running when it returns.
func SetupRouter(db *gorm.DB) (*App, error) {
	// Load config and set Gin mode from configuration
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Replace default console logger with file-based zap logger
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		utils.Logger.Warn("gin access log disabled: " + err.Error())
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}

	r.Use(cors.New(corsCfg))
	r.Use(middleware.SecurityHeaders())
	// Record PV after each request
	r.Use(middleware.PageViewRecorder(db))

	store, err := storage.NewDiskStore(cfg.UploadDir)
	if err != nil {
		return nil, err
	}

	hub := chat.NewHub(utils.Named("chat-hub"))
	go hub.Run()
	chatService := chat.NewService(db, hub, utils.Named("chat"))

	var weatherClient *weather.Client
	if cfg.WeatherEnabled() {
		weatherClient = weather.NewClient(cfg.WeatherBaseURL, cfg.WeatherAPIKey)
	}
	weatherService := weather.NewService(db, weatherClient, cfg.WeatherTTL, utils.Named("weather"))

	authController := controllers.NewAuthController(db, utils.NewStateStore(utils.GetRedis(), 10*time.Minute))
	documentController := controllers.NewDocumentController(db, store, cfg.MaxUploadSize)
	forumController := controllers.NewForumController(db)
	chatController := controllers.NewChatController(db, chatService)
	adminController := controllers.NewAdminController(db)
	announcementController := controllers.NewAnnouncementController(db)
	statsController := controllers.NewStatsController(db)
	weatherController := controllers.NewWeatherController(weatherService)

	r.GET("/health", healthHandler(db, cfg, weatherService))
	r.GET("/health/ping", ping)
	r.GET("/ws", chat.Handler(chatService, cfg.SocketAllowedOrigins, utils.Named("chat-ws")))

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute)
	api := r.Group("/api")
	api.Use(limiter.Middleware())

	authGroup := api.Group("/auth")
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.GET("/verify", middleware.AuthRequired(), authController.Verify)
	authGroup.GET("/me", middleware.AuthRequired(), authController.Me)
	authGroup.PUT("/profile", middleware.AuthRequired(), authController.UpdateProfile)
	authGroup.PUT("/password", middleware.AuthRequired(), authController.ChangePassword)
	authGroup.GET("/oauth/:provider/login", authController.OAuthRedirect)
	authGroup.GET("/oauth/:provider/callback", authController.OAuthCallback)

	docs := api.Group("/documents")
	docs.GET("", middleware.OptionalAuth(), documentController.List)
	docs.GET("/categories", documentController.Categories)
	docs.GET("/stats/overview", middleware.AuthRequired(), middleware.AdminRequired(), documentController.Stats)
	docs.GET("/:id", documentController.Get)
	docs.GET("/:id/download", documentController.Download)
	docs.POST("/upload", middleware.AuthRequired(), middleware.AdminRequired(), documentController.Upload)
	docs.PUT("/:id", middleware.AuthRequired(), middleware.AdminRequired(), documentController.Update)
	docs.DELETE("/:id", middleware.AuthRequired(), middleware.AdminRequired(), documentController.Delete)

	forum := api.Group("/forum")
	forum.GET("/categories", forumController.Categories)
	forum.GET("/posts", forumController.ListPosts)
	forum.GET("/posts/:id", forumController.GetPost)
	forumAuth := forum.Group("")
	forumAuth.Use(middleware.AuthRequired())
	forumAuth.POST("/posts", forumController.CreatePost)
	forumAuth.PUT("/posts/:id", forumController.UpdatePost)
	forumAuth.DELETE("/posts/:id", forumController.DeletePost)
	forumAuth.POST("/posts/:id/replies", forumController.CreateReply)
	forumAuth.DELETE("/replies/:id", forumController.DeleteReply)
	forumAuth.PATCH("/posts/:id/pin", middleware.AdminRequired(), forumController.Pin)
	forumAuth.PATCH("/posts/:id/lock", middleware.AdminRequired(), forumController.Lock)

	chatGroup := api.Group("/chat")
	chatGroup.GET("/history", chatController.History)
	chatAdmin := chatGroup.Group("")
	chatAdmin.Use(middleware.AuthRequired(), middleware.AdminRequired())
	chatAdmin.GET("/unread-count", chatController.UnreadCount)
	chatAdmin.PATCH("/mark-read", chatController.MarkRead)
	chatAdmin.DELETE("/messages/:id", chatController.DeleteMessage)
	chatAdmin.GET("/stats", chatController.Stats)

	api.GET("/announcements", announcementController.ListActive)
	api.GET("/stats", statsController.GetStats)

	admin := api.Group("/admin")
	admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
	admin.GET("/dashboard", adminController.Dashboard)
	admin.GET("/users", adminController.ListUsers)
	admin.PATCH("/users/:id/status", adminController.UpdateUserStatus)
	admin.PATCH("/users/:id/role", adminController.UpdateUserRole)
	admin.GET("/announcements", announcementController.ListAll)
	admin.POST("/announcements", announcementController.Create)
	admin.PUT("/announcements/:id", announcementController.Update)
	admin.DELETE("/announcements/:id", announcementController.Delete)
	admin.GET("/logs", adminController.Logs)
	admin.DELETE("/chat/clear", chatController.Clear)
	admin.GET("/chat/export", chatController.Export)

	weatherGroup := api.Group("/weather")
	weatherGroup.GET("", weatherController.ByCoordinates)
	weatherGroup.GET("/cities", weatherController.Cities)
	weatherGroup.GET("/:city", weatherController.ByCity)
	weatherGroup.GET("/:city/forecast", weatherController.Forecast)

	staticDir := cfg.StaticDir
	indexFile := filepath.Join(staticDir, "index.html")
	r.Static("/static", staticDir)

	r.NoRoute(func(ctx *gin.Context) {
		path := ctx.Request.URL.Path
		if strings.HasPrefix(path, "/api/") || path == "/api" {
			utils.Error(ctx, http.StatusNotFound, utils.CodeNotFound, "api route not found")
			return
		}
		if strings.HasPrefix(path, "/static/") || filepath.Ext(path) != "" && filepath.Ext(path) != ".html" {
			ctx.JSON(http.StatusNotFound, gin.H{"message": "static asset not found"})
			return
		}
		// other paths fall back to the SPA entry
		ctx.Status(http.StatusOK)
		ctx.File(indexFile)
	})

	sweeper := &storage.Sweeper{
		Store:    store,
		Check:    documentController.ReferencedBlobs,
		MinAge:   time.Hour,
		Interval: 30 * time.Minute,
		Logger:   utils.Named("sweeper"),
	}

	return &App{Engine: r, Hub: hub, Sweeper: sweeper}, nil
}
