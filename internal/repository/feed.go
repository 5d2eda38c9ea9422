package repository

import (
	"sync"

	"badminton-scoreboard/internal/domain"
)

// Subscription delivers full match list snapshots until Unsubscribe is called.
// Only the latest snapshot is kept when the reader falls behind.
type Subscription struct {
	feed *Feed
	ch   chan []domain.Match
	once sync.Once
}

func (s *Subscription) Updates() <-chan []domain.Match {
	return s.ch
}

// Unsubscribe stops delivery and closes Updates. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.feed.remove(s)
	})
}

// Feed fans match list snapshots out to subscribers.
type Feed struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

func NewFeed() *Feed {
	return &Feed{subs: make(map[*Subscription]struct{})}
}

func (f *Feed) Subscribe(buffer int) *Subscription {
	if buffer < 1 {
		buffer = 1
	}
	sub := &Subscription{feed: f, ch: make(chan []domain.Match, buffer)}

	f.mu.Lock()
	f.subs[sub] = struct{}{}
	f.mu.Unlock()
	return sub
}

func (f *Feed) Publish(matches []domain.Match) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for sub := range f.subs {
		deliver(sub.ch, matches)
	}
}

func (f *Feed) Send(sub *Subscription, matches []domain.Match) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.subs[sub]; ok {
		deliver(sub.ch, matches)
	}
}

func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *Feed) remove(sub *Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.subs[sub]; ok {
		delete(f.subs, sub)
		close(sub.ch)
	}
}

// deliver replaces the oldest pending snapshot when ch is full.
func deliver(ch chan []domain.Match, matches []domain.Match) {
	for {
		select {
		case ch <- matches:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
