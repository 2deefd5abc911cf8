package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"dronecam/internal/config"
	"dronecam/internal/logger"
	"dronecam/internal/repository"
	"dronecam/internal/repository/sqlite"
	"dronecam/internal/routes"
	"dronecam/internal/service/ai"
	"dronecam/internal/service/camera"
	"dronecam/internal/service/frameslot"
	"dronecam/internal/service/pipeline"
	"dronecam/internal/service/storage"
	"dronecam/internal/service/stream"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config   *config.Config
	logger   *logger.Logger
	source   camera.FrameSource
	detector ai.Detector
	slot     *frameslot.FrameSlot
	loop     *pipeline.Loop
	streamer *stream.Streamer
	journal  *storage.DetectionJournal
	db       *sqlite.DB
	server   *http.Server
	closers  []func() error
}

// NewApp opens the camera, loads the detector and wires every service.
func NewApp(cfg *config.Config, log *logger.Logger) (*App, error) {
	source, err := camera.OpenVideoSource(cfg, log)
	if err != nil {
		return nil, err
	}

	detector, err := ai.NewHOGDetector(log)
	if err != nil {
		source.Close()
		return nil, err
	}

	a, err := New(cfg, log, source, detector)
	if err != nil {
		detector.Close()
		source.Close()
		return nil, err
	}
	a.closers = append(a.closers, detector.Close, source.Close)
	return a, nil
}

// New wires an App around an existing frame source and detector. The caller
// keeps ownership of both.
func New(cfg *config.Config, log *logger.Logger, source camera.FrameSource, detector ai.Detector) (*App, error) {
	encoder, err := stream.NewEncoder(cfg)
	if err != nil {
		return nil, err
	}

	a := &App{
		config:   cfg,
		logger:   log,
		source:   source,
		detector: detector,
		slot:     frameslot.New(),
	}

	var repo repository.DetectionRepository
	var recorder pipeline.Recorder
	if cfg.JournalPath != "" {
		db, err := sqlite.New(cfg.JournalPath)
		if err != nil {
			return nil, fmt.Errorf("detection journal: %w", err)
		}
		a.db = db
		detectionRepo := sqlite.NewDetectionRepository(db)
		repo = detectionRepo
		a.journal = storage.NewDetectionJournal(cfg, log, detectionRepo)
		recorder = a.journal
	}

	a.loop = pipeline.NewLoop(source, detector, a.slot, recorder, cfg, log)
	a.streamer = stream.NewStreamer(a.slot, encoder)

	a.server = &http.Server{
		Addr: cfg.Addr(),
		Handler: routes.SetupRoutes(routes.Services{
			Loop:     a.loop,
			Slot:     a.slot,
			Streamer: a.streamer,
			Journal:  repo,
			Logger:   log,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// Handler returns the HTTP handler, for tests.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Run starts the capture-detect loop, the journal and the HTTP server, and
// blocks until ctx is cancelled, the server fails or detection fails.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	loopErr := make(chan error, 1)
	go func() {
		loopErr <- a.loop.Run(ctx)
	}()

	journalDone := make(chan struct{})
	if a.journal != nil {
		go func() {
			a.journal.Run(ctx)
			close(journalDone)
		}()
	} else {
		close(journalDone)
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	a.logger.Info("Drone camera server")
	a.logger.Info("URL: http://%s/video_feed", a.config.Addr())
	a.logger.Info("Camera: %s, processing %dx%d", a.config.CameraDevice, a.config.FrameWidth, a.config.FrameHeight)
	if a.config.JournalPath != "" {
		a.logger.Info("Detection journal: %s", a.config.JournalPath)
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("Shutdown requested")
	case err := <-loopErr:
		// Annotation stopped; take the whole process down rather than
		// serving a frozen frame.
		if err != nil {
			runErr = fmt.Errorf("capture-detect loop: %w", err)
		}
		loopErr <- nil
	case err, ok := <-serverErr:
		if ok && err != nil {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	// Viewers block in the slot until it closes.
	a.slot.Close()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("Server shutdown error: %v", err)
	}

	<-loopErr
	<-journalDone
	a.close()

	a.logger.Info("Server stopped")
	return runErr
}

func (a *App) close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("Error closing detection journal: %v", err)
		}
	}
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.logger.Error("Error releasing resource: %v", err)
		}
	}
}
