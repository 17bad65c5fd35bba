package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/config"
	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/events"
)

type fakePublisher struct {
	channel  string
	messages [][]byte
	err      error
}

func (p *fakePublisher) Publish(_ context.Context, channel string, payload []byte) error {
	if p.err != nil {
		return p.err
	}
	p.channel = channel
	p.messages = append(p.messages, payload)
	return nil
}

func TestNotificationService_FansOutEvents(t *testing.T) {
	d := events.NewInMemoryDispatcher()
	pub := &fakePublisher{}
	n := NewNotificationService(d, pub, zap.NewNop(), config.EventsConfig{RedisChannel: "account.events"})
	n.RegisterHandlers()

	err := d.Publish(context.Background(), events.Event{
		ID:      "evt-1",
		Type:    events.EventAccountStatusChanged,
		UserID:  "alice",
		Trigger: events.TriggerSweep,
		Payload: events.StatusChangedPayload{OldStatus: domain.UserStatusActive, NewStatus: domain.UserStatusDormant},
	})
	if err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}

	if pub.channel != "account.events" || len(pub.messages) != 1 {
		t.Fatalf("published %d messages to %q", len(pub.messages), pub.channel)
	}

	var decoded struct {
		Type    string `json:"type"`
		UserID  string `json:"user_id"`
		Trigger string `json:"trigger"`
		Payload struct {
			NewStatus string `json:"new_status"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(pub.messages[0], &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Type != "account_status_changed" || decoded.UserID != "alice" || decoded.Trigger != "sweep" || decoded.Payload.NewStatus != "DORMANT" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestNotificationService_WithoutPublisher(t *testing.T) {
	d := events.NewInMemoryDispatcher()
	NewNotificationService(d, nil, zap.NewNop(), config.EventsConfig{RedisChannel: "account.events"}).RegisterHandlers()

	if err := d.Publish(context.Background(), events.Event{Type: events.EventAccountRegistered, UserID: "alice"}); err != nil {
		t.Errorf("Publish() = %v, want nil", err)
	}
}

func TestNotificationService_PublisherError(t *testing.T) {
	d := events.NewInMemoryDispatcher()
	pub := &fakePublisher{err: errors.New("redis down")}
	NewNotificationService(d, pub, zap.NewNop(), config.EventsConfig{RedisChannel: "account.events"}).RegisterHandlers()

	if err := d.Publish(context.Background(), events.Event{Type: events.EventAccountDeleted, UserID: "alice"}); err == nil {
		t.Error("Publish() should surface the publisher error")
	}
}
