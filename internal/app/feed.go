package app

import (
	"sync"

	"quiz-night-service/internal/domain"
)

// RoundFeed fans round-state changes out to live subscribers (WebSocket clients).
type RoundFeed struct {
	mu          sync.Mutex
	subscribers map[chan domain.RoundState]struct{}
}

func NewRoundFeed() *RoundFeed {
	return &RoundFeed{subscribers: make(map[chan domain.RoundState]struct{})}
}

// Subscribe registers a listener. The caller must invoke the returned cancel function.
func (f *RoundFeed) Subscribe() (<-chan domain.RoundState, func()) {
	ch := make(chan domain.RoundState, 8)

	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subscribers[ch]; ok {
			delete(f.subscribers, ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers state to every subscriber without blocking. A subscriber whose
// buffer is full loses its oldest pending update.
func (f *RoundFeed) Publish(state domain.RoundState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers {
		select {
		case ch <- state:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- state
		}
	}
}

// Subscribers reports how many listeners are attached.
func (f *RoundFeed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers)
}
