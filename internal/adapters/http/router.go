// Package http is the local control surface standing in for the
// interview room UI: state snapshots, a state push channel and the user
// actions.
package http

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Interview/internal/app"
	"github.com/dkeye/Interview/internal/config"
	"github.com/dkeye/Interview/internal/domain"
)

func genClientToken() string {
	return uuid.NewString()
}

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

// SetupRouter wires the control surface. ctx is the session lifetime:
// recording cycles started here must outlive their HTTP requests.
func SetupRouter(ctx context.Context, cfg *config.Config, orch *app.Orchestrator) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("InterviewSessions", store))
	r.Use(ClientTokenMiddleware())

	log.Info().Str("module", "adapters.http").Msg("router setup")

	api := r.Group("/api")

	api.GET("/state", func(c *gin.Context) {
		c.JSON(http.StatusOK, orch.State().Snapshot())
	})

	api.GET("/ws/state", func(c *gin.Context) {
		handleStateWS(ctx, c, orch.State())
	})

	api.POST("/next", func(c *gin.Context) {
		if err := orch.NextQuestion(c.Request.Context()); err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, orch.State().Snapshot())
	})

	api.POST("/record/start", func(c *gin.Context) {
		if err := orch.StartRecording(ctx); err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, orch.State().Snapshot())
	})

	api.POST("/record/stop", func(c *gin.Context) {
		orch.StopRecording()
		c.JSON(http.StatusOK, orch.State().Snapshot())
	})

	api.POST("/mute", func(c *gin.Context) {
		orch.ToggleMute()
		c.JSON(http.StatusOK, orch.State().Snapshot())
	})

	api.POST("/video", func(c *gin.Context) {
		orch.ToggleVideo()
		c.JSON(http.StatusOK, orch.State().Snapshot())
	})

	api.POST("/end", func(c *gin.Context) {
		orch.Terminate(domain.EndUserRequested)
		c.JSON(http.StatusOK, orch.State().Snapshot())
	})

	return r
}
