package routes

import (
	"net/http"

	"dronecam/internal/handler"
	"dronecam/internal/logger"
	"dronecam/internal/repository"
	"dronecam/internal/service/frameslot"
	"dronecam/internal/service/pipeline"
	"dronecam/internal/service/stream"
)

// Services groups what the HTTP layer reads from.
type Services struct {
	Loop     *pipeline.Loop
	Slot     *frameslot.FrameSlot
	Streamer *stream.Streamer
	Journal  repository.DetectionRepository // nil when the journal is disabled
	Logger   *logger.Logger
}

// SetupRoutes registers the video feed, API and log endpoints.
func SetupRoutes(s Services) http.Handler {
	mux := http.NewServeMux()

	// Live feed
	mux.HandleFunc("/video_feed", handler.VideoFeedHandler(s.Streamer, s.Logger))

	// API endpoints
	mux.HandleFunc("/api/view", handler.ViewWebsocketHandler(s.Streamer, s.Logger))
	mux.HandleFunc("/api/status", handler.StatusHandler(s.Loop, s.Slot, s.Streamer))
	mux.HandleFunc("/api/detections", handler.DetectionsHandler(s.Journal, s.Logger))

	// Log endpoints
	for _, name := range []string{"info", "warning", "error"} {
		file := name + ".log"
		mux.HandleFunc("/logs/"+name, handler.ShowLogsHandler(s.Logger, file))
		mux.HandleFunc("/logs/"+name+"/clear", handler.ClearLogsHandler(s.Logger, file))
	}

	return mux
}
