// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/frametap/frametap/pkg/framing"
	"github.com/frametap/frametap/pkg/transport"
)

// ErrAlreadyStarted is returned by Start on a pipeline that is already
// running or has already run.
var ErrAlreadyStarted = errors.New("pipeline: already started")

// DefaultFrameBacklog is the capacity of the decoded-frame channel.
// When the consumer falls behind, the pipeline stops pulling chunks
// rather than dropping frames.
const DefaultFrameBacklog = 16

// Pipeline binds one transport to one framer: chunks in, decoded frames
// out. A single goroutine owns the framer, so framers need no locking.
type Pipeline struct {
	tr     transport.Transport
	fr     framing.Framer
	logger *zap.Logger
	clock  Clock

	frames        chan []byte
	errs          chan error
	cancelOnError bool

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu       sync.Mutex
	started  bool
	terminal error
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithClock sets the tick source for idle housekeeping. Defaults to the
// system clock.
func WithClock(clock Clock) Option {
	return func(p *Pipeline) { p.clock = clock }
}

// WithCancelOnError makes the first upstream fault terminal: it is
// forwarded and the pipeline shuts down.
func WithCancelOnError() Option {
	return func(p *Pipeline) { p.cancelOnError = true }
}

// WithFrameBacklog sets the decoded-frame channel capacity.
func WithFrameBacklog(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.frames = make(chan []byte, n)
		}
	}
}

// New creates a pipeline over tr and fr. The pipeline takes ownership
// of neither: callers close the transport themselves after Stop.
func New(tr transport.Transport, fr framing.Framer, opts ...Option) *Pipeline {
	p := &Pipeline{
		tr:     tr,
		fr:     fr,
		logger: zap.NewNop(),
		clock:  SystemClock(),
		frames: make(chan []byte, DefaultFrameBacklog),
		errs:   make(chan error, DefaultFrameBacklog),
		stopCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the decode loop. If the framer keeps idle state, a
// ticker drives its housekeeping at the framer's own interval.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return ErrAlreadyStarted
	}
	p.started = true
	p.mu.Unlock()

	var ticker Ticker
	var tickCh <-chan time.Time
	if idle, ok := p.fr.(framing.IdleChecker); ok {
		ticker = p.clock.NewTicker(idle.IdleInterval())
		tickCh = ticker.C()
	}

	p.wg.Add(1)
	go p.run(ctx, ticker, tickCh)
	return nil
}

// Frames returns the decoded frames. The channel is closed when the
// pipeline stops; Err reports why.
func (p *Pipeline) Frames() <-chan []byte { return p.frames }

// Errors reports upstream faults that did not stop the pipeline.
func (p *Pipeline) Errors() <-chan error { return p.errs }

// Err returns the terminal error once Frames has closed. A clean stop
// reports nil.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.terminal
}

// Stop halts the pipeline, waits for the decode loop to exit, and
// discards any partially accumulated frame. It is safe to call more
// than once. A stopped pipeline cannot be restarted.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
	})
	p.wg.Wait()
	p.fr.Reset()
}

func (p *Pipeline) run(ctx context.Context, ticker Ticker, tickCh <-chan time.Time) {
	defer p.wg.Done()
	defer close(p.frames)
	if ticker != nil {
		defer ticker.Stop()
	}

	// tickCh is nil for framers without idle state; a nil channel never
	// fires in the select below.
	idle, _ := p.fr.(framing.IdleChecker)

	for {
		select {
		case <-ctx.Done():
			p.setErr(ctx.Err())
			return

		case <-p.stopCh:
			return

		case chunk, ok := <-p.tr.Chunks():
			if !ok {
				p.setErr(p.tr.Err())
				return
			}
			for _, frame := range p.fr.OnChunk(chunk) {
				select {
				case p.frames <- frame:
				case <-p.stopCh:
					return
				case <-ctx.Done():
					p.setErr(ctx.Err())
					return
				}
			}

		case err := <-p.tr.Errors():
			p.logger.Warn("upstream fault", zap.Error(err))
			p.forward(err)
			if p.cancelOnError {
				p.setErr(err)
				return
			}

		case <-tickCh:
			idle.Tick()
		}
	}
}

func (p *Pipeline) forward(err error) {
	select {
	case p.errs <- err:
	default:
	}
}

func (p *Pipeline) setErr(err error) {
	p.mu.Lock()
	if p.terminal == nil {
		p.terminal = err
	}
	p.mu.Unlock()
}
