package main

import (
	"context"
	stderrors "errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/global-bar/bar-web/internal/config"
	"github.com/global-bar/bar-web/internal/errors"
	"github.com/global-bar/bar-web/pkg/client"
	"github.com/global-bar/bar-web/pkg/collision"
	"github.com/global-bar/bar-web/pkg/loop"
	"github.com/global-bar/bar-web/pkg/metrics"
)

// randomNickname returns a nickname of the form user-xxxx.
func randomNickname() string {
	return "user-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:4]
}

// openSource resolves a map location, building an S3 client only when the
// location needs one.
func openSource(location string, cfg *config.Config) (collision.Source, error) {
	var api collision.GetObjectAPI
	if strings.HasPrefix(location, "s3://") {
		api = collision.NewS3Client(cfg.S3Options())
	}
	src, err := collision.ParseSource(location, api)
	if err != nil {
		return nil, errors.New("E110").Wrap(err)
	}
	return src, nil
}

// mapError maps collision failures onto coded errors.
func mapError(err error) error {
	code := "E113"
	switch {
	case stderrors.Is(err, collision.ErrMapNotFound):
		code = "E110"
	case stderrors.Is(err, collision.ErrInvalidMap):
		code = "E111"
	case stderrors.Is(err, collision.ErrMapTooLarge):
		code = "E112"
	}
	return errors.New(code).Wrap(err)
}

// loadTilemap reads the map at location.
func loadTilemap(ctx context.Context, location string, cfg *config.Config) (*collision.Tilemap, collision.Source, error) {
	src, err := openSource(location, cfg)
	if err != nil {
		return nil, nil, err
	}
	m, err := collision.Load(ctx, src)
	if err != nil {
		return nil, src, mapError(err)
	}
	return m, src, nil
}

// loadGrid returns the collision grid for the configured map, or nil when
// no map is configured.
func loadGrid(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*collision.Grid, error) {
	location := cfg.Map.Source
	if location == "" {
		logger.Info("no map configured, movement prediction disabled")
		return nil, nil
	}
	m, src, err := loadTilemap(ctx, location, cfg)
	if err != nil {
		return nil, err
	}
	grid := m.CollisionGrid()
	logger.Info("map loaded",
		"source", src.String(),
		"width", grid.Width(),
		"height", grid.Height(),
		"blocked", grid.BlockedCells(),
	)
	return grid, nil
}

// engine is the executor and metrics shared by the clients of one command.
type engine struct {
	loop     *loop.Loop
	registry *prometheus.Registry
	metrics  *metrics.Collector
	cancel   context.CancelFunc
}

// startEngine starts a loop goroutine that runs until stop is called.
func startEngine(logger *slog.Logger) *engine {
	registry := prometheus.NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	rt := &engine{
		loop:     loop.New(logger),
		registry: registry,
		metrics:  metrics.New(metrics.WithRegistry(registry)),
		cancel:   cancel,
	}
	go rt.loop.Run(ctx)
	return rt
}

// clientOptions returns client options derived from cfg.
func (rt *engine) clientOptions(cfg *config.Config, grid *collision.Grid, logger *slog.Logger) (*client.Options, error) {
	backoff, err := cfg.Backoff()
	if err != nil {
		return nil, err
	}
	heartbeat, err := cfg.Heartbeat()
	if err != nil {
		return nil, err
	}
	if heartbeat == 0 {
		heartbeat = -1
	}
	avatar := cfg.Avatar
	return &client.Options{
		Executor:          rt.loop,
		Backoff:           backoff,
		Grid:              grid,
		Avatar:            &avatar,
		HeartbeatInterval: heartbeat,
		Smoothing:         cfg.Smoothing(),
		Logger:            logger,
		Metrics:           rt.metrics,
	}, nil
}

// run executes fn on the loop and waits for it.
func (rt *engine) run(fn func()) {
	done := make(chan struct{})
	if !rt.loop.Post(func() {
		defer close(done)
		fn()
	}) {
		return
	}
	select {
	case <-done:
	case <-rt.loop.Done():
	}
}

// stop halts the loop.
func (rt *engine) stop() {
	rt.cancel()
	<-rt.loop.Done()
}
