package events

import (
	"context"
	"errors"
	"testing"
)

func TestDispatcher_PublishRoutesByType(t *testing.T) {
	d := NewInMemoryDispatcher()

	var got []EventType
	d.Subscribe(EventAccountRegistered, func(_ context.Context, e Event) error {
		got = append(got, e.Type)
		return nil
	})

	_ = d.Publish(context.Background(), Event{Type: EventAccountRegistered, UserID: "alice"})
	_ = d.Publish(context.Background(), Event{Type: EventAccountDeleted, UserID: "alice"})

	if len(got) != 1 || got[0] != EventAccountRegistered {
		t.Errorf("handled = %v, want [account_registered]", got)
	}
}

func TestDispatcher_ContinuesAfterHandlerError(t *testing.T) {
	d := NewInMemoryDispatcher()
	boom := errors.New("boom")

	calls := 0
	d.Subscribe(EventAccountUpdated, func(context.Context, Event) error {
		calls++
		return boom
	})
	d.Subscribe(EventAccountUpdated, func(context.Context, Event) error {
		calls++
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventAccountUpdated})
	if !errors.Is(err, boom) {
		t.Errorf("Publish() = %v, want wrapped boom", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestSubscribeAll(t *testing.T) {
	d := NewInMemoryDispatcher()
	seen := map[EventType]bool{}
	SubscribeAll(d, func(_ context.Context, e Event) error {
		seen[e.Type] = true
		return nil
	})

	for _, et := range AllEventTypes() {
		_ = d.Publish(context.Background(), Event{Type: et})
	}
	if len(seen) != len(AllEventTypes()) {
		t.Errorf("seen %d event types, want %d", len(seen), len(AllEventTypes()))
	}
}
