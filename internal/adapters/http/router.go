package http

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/RoomStatus/internal/adapters/ws"
	"github.com/dkeye/RoomStatus/internal/app"
	"github.com/dkeye/RoomStatus/internal/config"
	"github.com/dkeye/RoomStatus/internal/view"
)

// SetupRouter wires the HTTP routes.
//   - GET  /                   status page (HTML, or JSON on Accept: application/json)
//   - POST /api/changeStatus   change the status, shared secret in the body
//   - GET  /api/ws/status      live status feed
//   - /static/*                files from cfg.StaticPath
func SetupRouter(ctx context.Context, cfg *config.Config, a *app.App, renderer *view.Renderer) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	}

	r := gin.New()
	_ = r.SetTrustedProxies(nil)
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	} else {
		r.Use(RequestLogger())
	}
	r.Use(CORSMiddleware())

	h := &handlers{app: a, renderer: renderer}
	feed := ws.NewStatusFeed(a.Status, cfg.PingPeriod)

	r.Static("/static", cfg.StaticPath)
	r.GET("/", h.getStatus)

	api := r.Group("/api")
	api.POST("/changeStatus", h.changeStatus)
	api.GET("/ws/status", func(c *gin.Context) {
		feed.Serve(ctx, c.Writer, c.Request)
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")
	return r
}
