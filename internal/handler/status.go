package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"dronecam/internal/logger"
	"dronecam/internal/repository"
	"dronecam/internal/service/frameslot"
	"dronecam/internal/service/pipeline"
	"dronecam/internal/service/stream"
)

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Loop     pipeline.Stats `json:"loop"`
	FrameSeq uint64         `json:"frame_seq"`
	Viewers  int64          `json:"viewers"`
}

// StatusHandler reports loop counters, the latest frame sequence and the
// number of active viewers.
func StatusHandler(loop *pipeline.Loop, slot *frameslot.FrameSlot, streamer *stream.Streamer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, StatusResponse{
			Loop:     loop.Stats(),
			FrameSeq: slot.Seq(),
			Viewers:  streamer.Viewers(),
		})
	}
}

// DetectionsHandler returns the most recent journaled passes, newest first.
// The limit query parameter defaults to 50 and is capped at 500.
func DetectionsHandler(repo repository.DetectionRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			http.Error(w, "Detection journal disabled", http.StatusNotFound)
			return
		}

		limit := atoiDefault(r.URL.Query().Get("limit"), 50)
		if limit > 500 {
			limit = 500
		}

		passes, err := repo.GetRecent(limit)
		if err != nil {
			logger.Error("Error reading detection journal: %v", err)
			http.Error(w, "Failed to read detections", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, passes)
	}
}

// atoiDefault parses a positive integer, falling back to def.
func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
