// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package export

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/frametap/frametap/pkg/config"
)

// FrameRecord is one decoded frame with its provenance.
type FrameRecord struct {
	Time      time.Time
	Stream    string // stream name from configuration
	Transport string // "serial", "tcp", "loopback"
	Data      []byte
	Text      string // byte-per-code-point rendering of Data
}

// Exporter is the interface for frame exporters.
type Exporter interface {
	ExportFrames(ctx context.Context, frames []*FrameRecord) error
	Shutdown(ctx context.Context) error
}

const (
	defaultBatchSize     = 1000
	defaultFlushInterval = 5 * time.Second
	defaultChannelSize   = 10000

	maxRetries     = 3
	initialBackoff = 100 * time.Millisecond
	maxBackoff     = 5 * time.Second
	backoffFactor  = 2.0
)

// Manager coordinates batching and export of decoded frames.
type Manager struct {
	logger    *zap.Logger
	exporters []Exporter

	frameCh chan *FrameRecord

	exportCount atomic.Int64
	dropCount   atomic.Int64

	batchSize     int
	flushInterval time.Duration

	circuitBreaker *CircuitBreaker

	wg     sync.WaitGroup
	stopCh chan struct{}
}

// NewManager creates an export manager from configuration.
func NewManager(cfg *config.ExportersConfig, serviceName string, logger *zap.Logger) (*Manager, error) {
	m := &Manager{
		logger:         logger,
		frameCh:        make(chan *FrameRecord, defaultChannelSize),
		batchSize:      defaultBatchSize,
		flushInterval:  defaultFlushInterval,
		circuitBreaker: NewCircuitBreaker(5, 30*time.Second),
		stopCh:         make(chan struct{}),
	}

	if cfg.OTLP.Enabled {
		var exp Exporter
		var err error
		if cfg.OTLP.Protocol == "http" {
			exp, err = NewHTTPOTLPExporter(&cfg.OTLP, serviceName, logger)
		} else {
			exp, err = NewOTLPExporter(&cfg.OTLP, serviceName, logger)
		}
		if err != nil {
			logger.Warn("failed to create OTLP exporter", zap.Error(err))
		} else {
			m.exporters = append(m.exporters, exp)
		}
	}

	if cfg.Stdout.Enabled {
		m.exporters = append(m.exporters, NewStdoutExporter(cfg.Stdout.Format, logger))
	}

	return m, nil
}

// Start begins the batch export goroutine.
func (m *Manager) Start(ctx context.Context) error {
	m.wg.Add(1)
	go m.processFrames(ctx)

	m.logger.Info("export manager started",
		zap.Int("exporters", len(m.exporters)),
		zap.Int("batch_size", m.batchSize),
		zap.Duration("flush_interval", m.flushInterval),
	)

	return nil
}

// Stop flushes remaining frames and shuts down exporters.
func (m *Manager) Stop() error {
	close(m.stopCh)
	m.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, exp := range m.exporters {
		if err := exp.Shutdown(ctx); err != nil {
			m.logger.Error("exporter shutdown error", zap.Error(err))
		}
	}

	m.logger.Info("export manager stopped",
		zap.Int64("frames_exported", m.exportCount.Load()),
		zap.Int64("dropped", m.dropCount.Load()),
	)

	return nil
}

// ExportFrame queues a frame for export. It reports false when the
// queue is full and the frame was dropped.
func (m *Manager) ExportFrame(rec *FrameRecord) bool {
	select {
	case m.frameCh <- rec:
		return true
	default:
		m.dropCount.Add(1)
		m.logger.Warn("frame channel full, dropping frame",
			zap.String("stream", rec.Stream),
		)
		return false
	}
}

func (m *Manager) processFrames(ctx context.Context) {
	defer m.wg.Done()

	batch := make([]*FrameRecord, 0, m.batchSize)
	ticker := time.NewTicker(m.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case rec := <-m.frameCh:
			batch = append(batch, rec)
			if len(batch) >= m.batchSize {
				m.flushFrames(ctx, batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				m.flushFrames(ctx, batch)
				batch = batch[:0]
			}

		case <-m.stopCh:
			// Drain remaining
			for {
				select {
				case rec := <-m.frameCh:
					batch = append(batch, rec)
				default:
					if len(batch) > 0 {
						m.flushFrames(ctx, batch)
					}
					return
				}
			}

		case <-ctx.Done():
			// Drain remaining frames before exit
			for {
				select {
				case rec := <-m.frameCh:
					batch = append(batch, rec)
				default:
					if len(batch) > 0 {
						m.flushFrames(context.Background(), batch)
					}
					return
				}
			}
		}
	}
}

func (m *Manager) flushFrames(ctx context.Context, frames []*FrameRecord) {
	for _, exp := range m.exporters {
		m.retryExport(ctx, func(expCtx context.Context) error {
			return exp.ExportFrames(expCtx, frames)
		})
	}
	m.exportCount.Add(int64(len(frames)))
}

// retryExport attempts an export with exponential backoff and circuit
// breaker.
func (m *Manager) retryExport(ctx context.Context, exportFn func(context.Context) error) {
	if !m.circuitBreaker.Allow() {
		m.dropCount.Add(1)
		m.logger.Debug("circuit breaker open, dropping export")
		return
	}

	backoff := initialBackoff

	for attempt := 0; attempt <= maxRetries; attempt++ {
		exportCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := exportFn(exportCtx)
		cancel()

		if err == nil {
			m.circuitBreaker.RecordSuccess()
			return
		}

		m.circuitBreaker.RecordFailure()

		if attempt == maxRetries {
			m.logger.Error("export failed after retries",
				zap.Int("attempts", attempt+1),
				zap.Error(err),
			)
			m.dropCount.Add(1)
			return
		}

		m.logger.Warn("export failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}

		// Exponential backoff with cap
		backoff = time.Duration(math.Min(
			float64(backoff)*backoffFactor,
			float64(maxBackoff),
		))
	}
}

// ExportedCount returns the number of frames handed to exporters.
func (m *Manager) ExportedCount() int64 {
	return m.exportCount.Load()
}

// DropCount returns the number of dropped frames.
func (m *Manager) DropCount() int64 {
	return m.dropCount.Load()
}

// ChannelDepth returns the current queue fill level for monitoring.
func (m *Manager) ChannelDepth() int {
	return len(m.frameCh)
}
