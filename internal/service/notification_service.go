package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/config"
	"github.com/spec-kit/account-service/internal/events"
)

// EventPublisher pushes serialized events to an external channel.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// NotificationService logs account events and fans them out to a pub/sub channel.
type NotificationService struct {
	dispatcher events.Dispatcher
	publisher  EventPublisher
	logger     *zap.Logger
	cfg        config.EventsConfig
}

// NewNotificationService creates the service. publisher may be nil.
func NewNotificationService(dispatcher events.Dispatcher, publisher EventPublisher, logger *zap.Logger, cfg config.EventsConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		publisher:  publisher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventAccountRegistered, n.handleAccountEvent)
	n.dispatcher.Subscribe(events.EventAccountUpdated, n.handleAccountEvent)
	n.dispatcher.Subscribe(events.EventAccountDeleted, n.handleAccountEvent)
	n.dispatcher.Subscribe(events.EventAccountAuthenticated, n.handleAccountEvent)
	n.dispatcher.Subscribe(events.EventAccountStatusChanged, n.handleStatusChanged)
}

func (n *NotificationService) handleAccountEvent(ctx context.Context, event events.Event) error {
	n.logger.Info(string(event.Type),
		zap.String("user_id", event.UserID),
		zap.String("trigger", string(event.Trigger)),
		zap.Any("payload", event.Payload))
	return n.fanOut(ctx, event)
}

func (n *NotificationService) handleStatusChanged(ctx context.Context, event events.Event) error {
	fields := []zap.Field{
		zap.String("user_id", event.UserID),
		zap.String("trigger", string(event.Trigger)),
	}
	if p, ok := event.Payload.(events.StatusChangedPayload); ok {
		fields = append(fields,
			zap.String("old_status", string(p.OldStatus)),
			zap.String("new_status", string(p.NewStatus)))
	}
	n.logger.Info(string(event.Type), fields...)
	return n.fanOut(ctx, event)
}

func (n *NotificationService) fanOut(ctx context.Context, event events.Event) error {
	channel := strings.TrimSpace(n.cfg.RedisChannel)
	if n.publisher == nil || channel == "" {
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := n.publisher.Publish(ctx, channel, body); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}
