// Package routers 私有监听地址上的运维接口：指标、健康检查与运行状态
package routers

import (
	"context"
	"expvar"
	"net/http"
	"time"

	"github.com/haierkeys/fast-db-backup-service/internal/middleware"
	"github.com/haierkeys/fast-db-backup-service/pkg/workerpool"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// StatusSource is what the private router reports on. *app.App implements it.
type StatusSource interface {
	Registry() *prometheus.Registry
	RunningJobs() []int64
	WorkerPoolStats() workerpool.Stats
	Ping(ctx context.Context) error
}

// NewPrivateRouter creates the private router. pprof is mounted in debug mode only.
// NewPrivateRouter 创建私有路由，debug 模式下挂载 pprof
func NewPrivateRouter(runMode string, src StatusSource, logger *zap.Logger) *gin.Engine {
	r := gin.New()

	if runMode == gin.DebugMode {
		r.Use(gin.Recovery())
	} else {
		r.Use(middleware.RecoveryWithLogger(logger))
	}
	r.Use(middleware.AccessLogWithLogger(logger))

	// prom监控
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(src.Registry(), promhttp.HandlerOpts{})))
	r.GET("/debug/vars", gin.WrapH(expvar.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		if err := src.Ping(ctx); err != nil {
			logger.Warn("health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/status", func(c *gin.Context) {
		running := src.RunningJobs()
		if running == nil {
			running = []int64{}
		}
		c.JSON(http.StatusOK, gin.H{
			"runningJobs": running,
			"workerPool":  src.WorkerPoolStats(),
		})
	})

	if runMode == gin.DebugMode {
		registerPprof(r)
	}

	return r
}
