package server

import (
	"net/http"
	"time"

	"github.com/bhumika-maharjan/Chat-Application/internal/auth"
	"github.com/bhumika-maharjan/Chat-Application/internal/chat"
	"github.com/bhumika-maharjan/Chat-Application/internal/config"
	"github.com/bhumika-maharjan/Chat-Application/internal/metrics"
	"github.com/bhumika-maharjan/Chat-Application/internal/mw"
	"github.com/bhumika-maharjan/Chat-Application/internal/service"
	"github.com/bhumika-maharjan/Chat-Application/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// SetupRouter 统一初始化 Gin 中间件、REST API 以及 WebSocket 端点。
func SetupRouter(cfg config.Config, db *gorm.DB, chatH *chat.Handler, store *chat.Store, rooms *chat.RoomRegistry, files *storage.DiskStore) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(metrics.GinMiddleware())
	r.Use(mw.CORS(cfg.Env))
	// 控制单个 IP+路由的速率，避免被刷爆。
	r.Use(mw.RateLimit(rate.Every(time.Second/20), 40))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := NewHandler(
		service.NewUserService(db, cfg),
		service.NewRoomService(db, store, rooms),
		service.NewMessageService(db, store),
		service.NewProfileService(db),
		service.NewSearchService(db),
	)

	api := r.Group("/api/v1")
	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)
	api.POST("/auth/refresh", h.RefreshToken)

	// 需要 Bearer Token 的业务接口。
	authed := api.Group("")
	authed.Use(auth.AuthMiddleware(cfg, db))
	authed.POST("/auth/logout", h.Logout)
	authed.POST("/rooms", h.CreateRoom)
	authed.GET("/rooms", h.ListRooms)
	authed.POST("/rooms/:id/join", h.JoinRoom)
	authed.POST("/rooms/:id/leave", h.LeaveRoom)
	authed.GET("/rooms/:id/messages", h.ListMessages)
	authed.GET("/rooms/:id/users", h.SearchUsersInRoom)
	authed.GET("/profile", h.GetProfile)
	authed.PUT("/profile", h.UpdateProfile)
	authed.POST("/profile/password", h.ChangePassword)
	authed.GET("/search/users", h.SearchUsers)
	authed.GET("/search/rooms", h.SearchRooms)

	// WebSocket 端点自带鉴权，token 走 query 参数。
	r.GET("/ws/room", chatH.ServeRoom)
	r.GET("/ws/direct", chatH.ServeDirect)

	if files != nil {
		r.Static(files.BaseURL(), files.Dir())
	}
	return r
}
