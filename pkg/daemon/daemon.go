// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package daemon

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/frametap/frametap/pkg/config"
	"github.com/frametap/frametap/pkg/export"
	"github.com/frametap/frametap/pkg/framing"
	"github.com/frametap/frametap/pkg/health"
	"github.com/frametap/frametap/pkg/pipeline"
	"github.com/frametap/frametap/pkg/transport"
)

// Version is stamped by the build; the health endpoint reports it.
var Version = "dev"

// Daemon wires configured streams into running pipelines and feeds every
// decoded frame to the export manager. Config is stored as an atomic
// pointer, safe for concurrent access during reload.
type Daemon struct {
	cfg    atomic.Pointer[config.Config]
	logger *zap.Logger

	healthStats  *health.Stats
	healthServer *health.Server
	exporter     *export.Manager

	mu      sync.Mutex
	streams map[string]*stream
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// stream is one running tap: its transport, decode pipeline, and the
// optional fan-out for live subscribers.
type stream struct {
	cfg       config.StreamConfig
	transport transport.Transport
	pipeline  *pipeline.Pipeline
	broadcast *pipeline.Broadcaster
}

// New creates a daemon from configuration.
func New(cfg *config.Config, logger *zap.Logger) (*Daemon, error) {
	d := &Daemon{
		logger:  logger,
		streams: make(map[string]*stream),
	}
	d.cfg.Store(cfg)

	d.healthStats = health.NewStats()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "frametap"
	}

	exporter, err := export.NewManager(&cfg.Exporters, serviceName, logger)
	if err != nil {
		return nil, fmt.Errorf("create export manager: %w", err)
	}
	d.exporter = exporter

	return d, nil
}

// Start opens every configured stream and begins decoding. A stream that
// fails to open is logged and skipped; the others keep running.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	d.ctx = ctx
	d.cancel = cancel

	cfg := d.cfg.Load()

	if err := d.exporter.Start(ctx); err != nil {
		return fmt.Errorf("start export manager: %w", err)
	}

	for _, sc := range cfg.Streams {
		if err := d.startStream(ctx, sc); err != nil {
			d.logger.Error("stream start failed",
				zap.String("stream", sc.Name),
				zap.Error(err),
			)
		}
	}

	if cfg.Health.Enabled {
		d.healthServer = health.NewServer(cfg.Health.Port, Version, d.healthStats, d.logger)
		if err := d.healthServer.Start(ctx); err != nil {
			d.logger.Warn("health server start error", zap.Error(err))
		} else {
			d.healthServer.SetReady(true)
		}
	}

	d.logger.Info("daemon started",
		zap.Int("streams", len(d.streams)),
		zap.Bool("health", cfg.Health.Enabled),
	)

	return nil
}

// startStream opens the transport, builds the framer, and launches the
// pipeline plus its drain goroutine. Caller holds d.mu.
func (d *Daemon) startStream(ctx context.Context, sc config.StreamConfig) error {
	tr, err := buildTransport(ctx, &sc.Transport)
	if err != nil {
		return fmt.Errorf("open transport: %w", err)
	}

	fr, err := buildFramer(&sc.Framer)
	if err != nil {
		tr.Close()
		return fmt.Errorf("build framer: %w", err)
	}

	opts := []pipeline.Option{
		pipeline.WithLogger(d.logger.With(zap.String("stream", sc.Name))),
	}
	if sc.CancelOnError {
		opts = append(opts, pipeline.WithCancelOnError())
	}

	p := pipeline.New(tr, fr, opts...)
	if err := p.Start(ctx); err != nil {
		tr.Close()
		return fmt.Errorf("start pipeline: %w", err)
	}

	s := &stream{cfg: sc, transport: tr, pipeline: p}

	frames := p.Frames()
	if sc.Broadcast {
		s.broadcast = pipeline.NewBroadcaster(frames)
		ch, _ := s.broadcast.Subscribe()
		frames = ch
	}

	d.wg.Add(1)
	go d.drainStream(s, frames)

	d.streams[sc.Name] = s
	d.healthStats.ActiveStreams.Store(int64(len(d.streams)))

	d.logger.Info("stream started",
		zap.String("stream", sc.Name),
		zap.String("transport", sc.Transport.Type),
		zap.String("framer", sc.Framer.Type),
	)
	return nil
}

// drainStream moves decoded frames into the export queue and counts
// upstream faults until the pipeline ends.
func (d *Daemon) drainStream(s *stream, frames <-chan []byte) {
	defer d.wg.Done()

	name := s.cfg.Name
	kind := s.cfg.Transport.Type
	decodeText := s.cfg.Framer.Type == "terminator"
	errs := s.pipeline.Errors()

	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				// Pipeline ended: collect any faults still queued.
				for {
					select {
					case err := <-errs:
						d.countFault(name, err)
					default:
						if err := s.pipeline.Err(); err != nil {
							d.logger.Error("stream ended", zap.String("stream", name), zap.Error(err))
						} else {
							d.logger.Info("stream ended", zap.String("stream", name))
						}
						return
					}
				}
			}

			d.healthStats.FramesDecoded.Add(1)
			d.healthStats.FrameBytes.Add(int64(len(frame)))

			rec := &export.FrameRecord{
				Time:      time.Now(),
				Stream:    name,
				Transport: kind,
				Data:      frame,
			}
			if decodeText {
				rec.Text = framing.DecodeText(frame)
			}

			if d.exporter.ExportFrame(rec) {
				d.healthStats.FramesExported.Add(1)
			} else {
				d.healthStats.FramesDropped.Add(1)
			}

		case err := <-errs:
			d.countFault(name, err)
		}
	}
}

func (d *Daemon) countFault(stream string, err error) {
	d.healthStats.UpstreamErrors.Add(1)
	d.logger.Warn("stream fault", zap.String("stream", stream), zap.Error(err))
}

// Subscribe attaches a live frame listener to a broadcast-enabled stream.
// The returned cancel must be called when the listener is done.
func (d *Daemon) Subscribe(stream string) (<-chan []byte, func(), error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.streams[stream]
	if !ok {
		return nil, nil, fmt.Errorf("unknown stream %q", stream)
	}
	if s.broadcast == nil {
		return nil, nil, fmt.Errorf("stream %q is not broadcast-enabled", stream)
	}
	ch, cancel := s.broadcast.Subscribe()
	return ch, cancel, nil
}

// Stats exposes the daemon's self-monitoring counters.
func (d *Daemon) Stats() *health.Stats {
	return d.healthStats
}

// Stop shuts down every stream, flushes the export queue, and releases
// the health server.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.healthServer != nil {
		d.healthServer.SetReady(false)
		d.healthServer.Stop()
	}

	for name, s := range d.streams {
		d.stopStream(name, s)
	}

	// Wait for drain goroutines to finish queueing pending frames
	d.wg.Wait()

	if d.exporter != nil {
		d.exporter.Stop()
	}

	if d.cancel != nil {
		d.cancel()
	}

	snap := d.healthStats.Snapshot()
	d.logger.Info("daemon stopped",
		zap.Int64("frames_decoded", snap.FramesDecoded),
		zap.Int64("frames_exported", snap.FramesExported),
		zap.Int64("frames_dropped", snap.FramesDropped),
		zap.Int64("upstream_errors", snap.UpstreamErrors),
	)

	return nil
}

// stopStream halts the pipeline before closing the transport so the
// decode loop never reads from a dead connection. Caller holds d.mu.
func (d *Daemon) stopStream(name string, s *stream) {
	s.pipeline.Stop()
	if err := s.transport.Close(); err != nil {
		d.logger.Warn("transport close error", zap.String("stream", name), zap.Error(err))
	}
	delete(d.streams, name)
	d.healthStats.ActiveStreams.Store(int64(len(d.streams)))
	d.logger.Info("stream stopped", zap.String("stream", name))
}

// Reload applies new configuration. Removed and changed streams are
// stopped, added ones started; a changed stream gets a fresh transport,
// framer, and pipeline rather than a rebound framer. Exporters and the
// health server keep running as configured at startup.
func (d *Daemon) Reload(cfg *config.Config) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cfg.Store(cfg)

	want := make(map[string]config.StreamConfig, len(cfg.Streams))
	for _, sc := range cfg.Streams {
		want[sc.Name] = sc
	}

	for name, s := range d.streams {
		sc, keep := want[name]
		if keep && reflect.DeepEqual(s.cfg, sc) {
			continue
		}
		d.stopStream(name, s)
	}

	started := 0
	for _, sc := range cfg.Streams {
		if _, running := d.streams[sc.Name]; running {
			continue
		}
		if err := d.startStream(d.ctx, sc); err != nil {
			d.logger.Error("stream start failed on reload",
				zap.String("stream", sc.Name),
				zap.Error(err),
			)
			continue
		}
		started++
	}

	d.logger.Info("configuration reloaded",
		zap.Int("streams", len(d.streams)),
		zap.Int("restarted", started),
	)
	return nil
}

// buildTransport opens the upstream byte source for one stream.
func buildTransport(ctx context.Context, tc *config.TransportConfig) (transport.Transport, error) {
	switch tc.Type {
	case "serial":
		return transport.OpenSerial(transport.SerialConfig{
			Device: tc.Device,
			Baud:   tc.Baud,
		})
	case "tcp":
		return transport.DialTCP(ctx, tc.Address)
	case "loopback":
		return transport.NewLoopback(time.Duration(tc.EchoDelay)), nil
	default:
		return nil, fmt.Errorf("unknown transport type %q", tc.Type)
	}
}

// buildFramer constructs the decode strategy for one stream.
func buildFramer(fc *config.FramerConfig) (framing.Framer, error) {
	pattern, err := framing.ParsePattern(fc.Pattern)
	if err != nil {
		return nil, fmt.Errorf("parse pattern: %w", err)
	}

	var opts []framing.Option
	if fc.MaxBuffer > 0 {
		opts = append(opts, framing.WithMaxLen(fc.MaxBuffer))
	}

	switch fc.Type {
	case "terminator":
		if !fc.StripEnabled() {
			opts = append(opts, framing.WithKeepTerminator())
		}
		return framing.NewTerminatorFramer(pattern, opts...)
	case "header":
		if fc.ClearTimeout > 0 {
			opts = append(opts, framing.WithClearTimeout(time.Duration(fc.ClearTimeout)))
		}
		return framing.NewHeaderLengthFramer(pattern, opts...)
	default:
		return nil, fmt.Errorf("unknown framer type %q", fc.Type)
	}
}
