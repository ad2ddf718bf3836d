package handler

import (
	"context"
	"net/http"

	"guessescrow/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// HealthCheck /health 额外检查的依赖
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// SetupRouter 配置路由，gatherer 为 nil 时使用默认注册表
func SetupRouter(deps service.Dependencies, gatherer prometheus.Gatherer, checks ...HealthCheck) *gin.Engine {
	// 设置 gin 为发布模式（减少日志输出）
	gin.SetMode(gin.ReleaseMode)

	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware(log))
	r.Use(LoggerMiddleware(log.Named("access")))
	r.Use(CORSMiddleware())
	r.Use(MetricsMiddleware(deps.Metrics))

	h := NewHandler(deps)

	api := r.Group("/api/v1")
	{
		house := api.Group("/house")
		{
			house.GET("", h.GetHouse)
			house.POST("/open", h.OpenHouse)
			house.POST("/fund", h.FundHouse)
			house.POST("/withdraw", h.WithdrawHouse)
		}

		game := api.Group("/game")
		{
			game.GET("", h.GetGame)
			game.POST("/create", h.CreateGame)
			game.POST("/play", h.Play)
			game.GET("/settlements", h.ListSettlements)
		}

		wallet := api.Group("/wallet")
		{
			wallet.GET("/balance", h.GetBalance)
			wallet.GET("/journal", h.GetJournal)
			wallet.POST("/airdrop", h.Airdrop)
		}
	}

	// 健康检查，数据库总是检查
	checks = append([]HealthCheck{{Name: "database", Check: func(ctx context.Context) error {
		sqlDB, err := deps.DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}}}, checks...)
	r.GET("/health", func(c *gin.Context) {
		failed := gin.H{}
		for _, hc := range checks {
			if err := hc.Check(c.Request.Context()); err != nil {
				failed[hc.Name] = err.Error()
			}
		}
		if len(failed) > 0 {
			log.Warn("健康检查失败", zap.Any("failed", failed))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "failed": failed})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	return r
}
