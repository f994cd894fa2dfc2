package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/danmuck/regis/internal/observability"
	"github.com/danmuck/regis/internal/protocol/schema"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const Version = "0.1.0"

// AdminState is what the admin surface reports about the running daemon.
type AdminState struct {
	Started time.Time
	History *History
	Clients *Server
}

// NewAdminRouter exposes /health, /ready and /metrics for dashboards, and
// POST /snapshots for the collector feeding History.
func NewAdminRouter(state AdminState, corsOrigins []string) *gin.Engine {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(state.Started).String(),
			"version": Version,
		})
	})

	r.GET("/ready", func(c *gin.Context) {
		snapshots := 0
		if state.History != nil {
			snapshots = state.History.Len()
		}
		var clients int64
		if state.Clients != nil {
			clients = state.Clients.ActiveClients()
		}
		status := http.StatusOK
		if snapshots == 0 {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ready":          snapshots > 0,
			"snapshots":      snapshots,
			"active_clients": clients,
			"version":        Version,
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/snapshots", func(c *gin.Context) {
		if state.History == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history disabled"})
			return
		}
		var snap schema.CollectedMetrics
		if err := c.ShouldBindJSON(&snap); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if snap.Time.IsZero() {
			snap.Time = time.Now().UTC()
		}
		state.History.Record(snap)
		c.JSON(http.StatusAccepted, gin.H{"snapshots": state.History.Len()})
	})
	return r
}

// ServeAdmin runs the admin router on addr until ctx is done.
func ServeAdmin(ctx context.Context, addr string, router http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errc := make(chan error, 1)
	go func() {
		log.Info().Str("component", "admin").Str("addr", addr).Msg("admin listening")
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
