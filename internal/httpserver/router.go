package httpserver

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"workledger/internal/handler"
	"workledger/pkg/otel"
)

// Pinger reports database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Connectivity reports whether an MQ client is connected.
type Connectivity interface {
	IsConnected() bool
}

type Deps struct {
	Performance *handler.PerformanceHandler
	Admin       *handler.AdminHandler
	Principals  PrincipalResolver
	DB          Pinger
	MQ          []Connectivity
	Logger      *zap.Logger
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(TraceMiddleware())
	r.Use(otel.GinMiddleware())
	r.Use(RequestLogMiddleware(d.Logger))

	// Health endpoints (放在最前面)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(200)
	})

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
		defer cancel()

		if d.DB != nil {
			if err := d.DB.Ping(ctx); err != nil {
				c.JSON(500, gin.H{"status": "db_not_ready", "error": err.Error()})
				return
			}
		}
		for _, m := range d.MQ {
			if m != nil && !m.IsConnected() {
				c.JSON(500, gin.H{"status": "mq_not_ready"})
				return
			}
		}
		c.JSON(200, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authed := r.Group("/")
	authed.Use(PrincipalMiddleware(d.Principals))
	{
		perf := authed.Group("/performance")
		perf.GET("/leaderboard", d.Performance.GetLeaderboard)
		perf.GET("/employees/:id/rank", d.Performance.GetRank)
		perf.GET("/employees/:id/trend", d.Performance.GetTrend)

		if d.Admin != nil {
			admin := authed.Group("/admin", d.Admin.RequireOperator)
			admin.POST("/outbox/replay", d.Admin.ReplayOutbox)
			admin.POST("/reconcile", d.Admin.Reconcile)
		}
	}
	return r
}
