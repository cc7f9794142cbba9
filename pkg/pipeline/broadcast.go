// Copyright 2024-2026 Madhukar Beema. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package pipeline

import "sync"

// subscriberBacklog is the per-subscriber buffer. A subscriber that
// falls further behind than this starts losing frames; the source and
// the other subscribers are never stalled.
const subscriberBacklog = 16

// Broadcaster fans one frame stream out to any number of subscribers.
// Frames are shared slices: subscribers must treat them as read-only.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[int]chan []byte
	nextID int
	ended  bool

	done chan struct{}
}

// NewBroadcaster starts fanning out src. It keeps draining src even
// with zero subscribers, so an unobserved stream never backs up.
func NewBroadcaster(src <-chan []byte) *Broadcaster {
	b := &Broadcaster{
		subs: make(map[int]chan []byte),
		done: make(chan struct{}),
	}
	go b.run(src)
	return b
}

// Subscribe registers a new consumer. The returned cancel is safe to
// call more than once; the channel closes on cancel or when the source
// ends.
func (b *Broadcaster) Subscribe() (<-chan []byte, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ended {
		ch := make(chan []byte)
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	ch := make(chan []byte, subscriberBacklog)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Done is closed once the source channel has ended and every
// subscriber channel has been closed.
func (b *Broadcaster) Done() <-chan struct{} { return b.done }

func (b *Broadcaster) run(src <-chan []byte) {
	defer close(b.done)

	for frame := range src {
		b.mu.Lock()
		for _, ch := range b.subs {
			select {
			case ch <- frame:
			default:
			}
		}
		b.mu.Unlock()
	}

	b.mu.Lock()
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
	b.ended = true
	b.mu.Unlock()
}
