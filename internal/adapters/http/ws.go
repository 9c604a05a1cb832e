package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Interview/internal/app"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const stateWriteTimeout = 5 * time.Second

// handleStateWS pushes every state change to the connected UI. Writes are
// best-effort; a broken peer just ends the stream.
func handleStateWS(ctx context.Context, c *gin.Context, state *app.SessionState) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("ws upgrade")
		return
	}
	defer ws.Close()

	updates := state.Subscribe()
	defer state.Unsubscribe(updates)

	// Send the current snapshot first so the UI never starts blank.
	if err := writeSnapshot(ws, state.Snapshot()); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "adapters.http").Msg("state ws ctx done")
			return
		case <-c.Request.Context().Done():
			return
		case snap := <-updates:
			if err := writeSnapshot(ws, snap); err != nil {
				log.Debug().Err(err).Str("module", "adapters.http").Msg("state ws write error")
				return
			}
		}
	}
}

func writeSnapshot(ws *websocket.Conn, snap app.Snapshot) error {
	if err := ws.SetWriteDeadline(time.Now().Add(stateWriteTimeout)); err != nil {
		return err
	}
	return ws.WriteJSON(snap)
}
