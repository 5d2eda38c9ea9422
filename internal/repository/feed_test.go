package repository

import (
	"testing"

	"badminton-scoreboard/internal/domain"
)

func TestFeedKeepsLatestSnapshot(t *testing.T) {
	feed := NewFeed()
	sub := feed.Subscribe(1)
	defer sub.Unsubscribe()

	feed.Publish([]domain.Match{{ID: "a"}})
	feed.Publish([]domain.Match{{ID: "a"}, {ID: "b"}})

	got := <-sub.Updates()
	if len(got) != 2 {
		t.Errorf("expected latest snapshot with 2 matches, got %d", len(got))
	}
}

func TestFeedUnsubscribe(t *testing.T) {
	feed := NewFeed()
	keep := feed.Subscribe(1)
	drop := feed.Subscribe(1)

	drop.Unsubscribe()
	drop.Unsubscribe()
	if feed.Len() != 1 {
		t.Fatalf("subscribers: got %d, want 1", feed.Len())
	}

	// publishing after unsubscribe must not panic on the closed channel
	feed.Publish([]domain.Match{{ID: "a"}})
	feed.Send(drop, []domain.Match{{ID: "b"}})

	if got := <-keep.Updates(); len(got) != 1 || got[0].ID != "a" {
		t.Errorf("kept subscriber: got %+v", got)
	}
}
