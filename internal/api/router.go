package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/jengzang/timeslots-backend-go/internal/config"
	"github.com/jengzang/timeslots-backend-go/internal/handler"
	"github.com/jengzang/timeslots-backend-go/internal/logger"
	"github.com/jengzang/timeslots-backend-go/internal/middleware"
)

// SetupRouter 设置路由
func SetupRouter(cfg *config.Config, h *handler.TimeSlotHandler, log *logger.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(log))

	// CORS 中间件
	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Time slot backend is running",
		})
	})

	// API 路由组
	api := r.Group("/api/v1")
	api.Use(middleware.RateLimit(cfg.RateLimit, time.Minute))
	if cfg.AuthEnabled {
		api.Use(middleware.JWTAuth(cfg.JWTSecret))
	}
	{
		// 定位与前后台状态
		api.POST("/locations", h.PostLocations)
		api.POST("/app-state", h.PostAppState)

		// 时间段
		slots := api.Group("/timeslots")
		{
			slots.GET("", h.GetTimeSlots)
			slots.POST("", h.CreateTimeSlot)
			slots.GET("/last", h.GetLastTimeSlot)
			slots.GET("/summary", h.GetSummary)
			slots.GET("/events", h.StreamEvents)
			slots.PUT("/:start/category", h.UpdateCategory)
		}

		// 通知与提醒
		api.POST("/notifications/category", h.NotificationCategory)
		api.GET("/reminders", h.GetReminders)

		api.GET("/categories", h.GetCategories)
	}

	return r
}
