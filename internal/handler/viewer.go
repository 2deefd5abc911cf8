package handler

import (
	"context"
	"net/http"
	"time"

	"dronecam/internal/logger"
	"dronecam/internal/service/stream"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ViewWebsocketHandler sends every new annotated frame to the viewer as one
// binary WebSocket message.
func ViewWebsocketHandler(streamer *stream.Streamer, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}
		defer connection.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// The read side only watches for the viewer going away.
		go func() {
			defer cancel()
			for {
				if _, _, err := connection.ReadMessage(); err != nil {
					if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
						logger.Info("Viewer disconnected normally")
					} else {
						logger.Warning("Viewer disconnected with error: %v", err)
					}
					return
				}
			}
		}()

		logger.Info("WebSocket viewer connected: %s", r.RemoteAddr)

		err = streamer.Each(ctx, func(data []byte) error {
			connection.SetWriteDeadline(time.Now().Add(writeWait))
			return connection.WriteMessage(websocket.BinaryMessage, data)
		})
		if err != nil && ctx.Err() == nil {
			logger.Error("WebSocket stream for %s stopped: %v", r.RemoteAddr, err)
		}
	}
}
