package transport

import (
	"io"
	"sync"
)

const (
	// readBufSize is the per-transport read buffer. Chunks handed to the
	// consumer are at most this large.
	readBufSize = 4096

	chunkBacklog = 64
	faultBacklog = 16
)

// pump owns the channel plumbing every transport shares: the chunk
// stream, the fault stream, and the terminal error latch. Concrete
// transports embed it and run readFrom against their device.
type pump struct {
	chunks chan []byte
	faults chan error
	stopCh chan struct{}
	wg     sync.WaitGroup

	closeOnce sync.Once

	mu       sync.Mutex
	terminal error
}

func newPump() pump {
	return pump{
		chunks: make(chan []byte, chunkBacklog),
		faults: make(chan error, faultBacklog),
		stopCh: make(chan struct{}),
	}
}

func (p *pump) Chunks() <-chan []byte { return p.chunks }

func (p *pump) Errors() <-chan error { return p.faults }

func (p *pump) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.terminal
}

func (p *pump) setErr(err error) {
	p.mu.Lock()
	if p.terminal == nil {
		p.terminal = err
	}
	p.mu.Unlock()
}

// fault reports a mid-stream error without stalling the read loop.
// If the consumer has fallen behind on faults, the oldest report wins.
func (p *pump) fault(err error) {
	select {
	case p.faults <- err:
	default:
	}
}

func (p *pump) closed() bool {
	select {
	case <-p.stopCh:
		return true
	default:
		return false
	}
}

// readFrom pumps r into the chunk channel until EOF, a terminal fault,
// or Close. It owns closing the chunk channel.
func (p *pump) readFrom(r io.Reader) {
	defer p.wg.Done()
	defer close(p.chunks)

	buf := make([]byte, readBufSize)
	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case p.chunks <- chunk:
			case <-p.stopCh:
				return
			}
		}
		if err != nil {
			select {
			case <-p.stopCh:
				// Close unblocked the read; not a fault.
			default:
				if err != io.EOF {
					p.setErr(err)
				}
			}
			return
		}
	}
}
