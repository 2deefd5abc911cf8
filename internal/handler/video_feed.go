package handler

import (
	"net/http"

	"dronecam/internal/logger"
	"dronecam/internal/service/stream"
)

// VideoFeedHandler serves GET /video_feed as a multipart/x-mixed-replace
// stream. Each request runs its own stream loop until the client goes away.
func VideoFeedHandler(streamer *stream.Streamer, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", stream.MultipartContentType)
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Header().Set("Pragma", "no-cache")
		w.WriteHeader(http.StatusOK)

		var flush func()
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
			flush = f.Flush
		}

		logger.Info("Video feed viewer connected: %s (%d active)", r.RemoteAddr, streamer.Viewers()+1)

		err := streamer.Stream(r.Context(), w, flush)
		switch {
		case err == nil || r.Context().Err() != nil:
			logger.Info("Video feed viewer disconnected: %s", r.RemoteAddr)
		default:
			// Dropping the connection is preferable to a corrupt stream.
			logger.Error("Video feed for %s stopped: %v", r.RemoteAddr, err)
			panic(http.ErrAbortHandler)
		}
	}
}
