package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pulsewire/server/cache"
	"go.uber.org/zap"
)

// Event type names published on the notification fabric.
const (
	EventFriendRequest  = "friend_request"
	EventFriendAccepted = "friend_accepted"
	EventPulse          = "pulse"
	EventReaction       = "reaction"
)

// Event is one notification to a single user.
type Event struct {
	Type       string                 `json:"type"`
	ToUserID   int64                  `json:"to_user_id"`
	FromUserID int64                  `json:"from_user_id"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	EmittedAt  time.Time              `json:"emitted_at"`
}

// Emitter delivers notification events. Emission is fire-and-forget: it
// must never block the caller and its failure carries no return value back.
type Emitter interface {
	Emit(ev *Event)
}

// ChannelFor returns the pub/sub channel carrying a user's notifications.
func ChannelFor(userID int64) string {
	return fmt.Sprintf("notify:%d", userID)
}

// Service publishes events to per-user pub/sub channels and triggers
// registered in-process hooks. Delivery is best-effort; failures are logged
// and dropped, never surfaced to the emitting operation.
type Service struct {
	ps     cache.PubSub
	hooks  *HookCenter
	logger *zap.Logger
}

// NewService creates a notification Service.
func NewService(ps cache.PubSub, hooks *HookCenter, logger *zap.Logger) *Service {
	if hooks == nil {
		hooks = NewHookCenter()
	}
	return &Service{ps: ps, hooks: hooks, logger: logger}
}

// Hooks exposes the hook center for observer registration.
func (s *Service) Hooks() *HookCenter { return s.hooks }

// Emit dispatches the event asynchronously.
func (s *Service) Emit(ev *Event) {
	if ev.EmittedAt.IsZero() {
		ev.EmittedAt = time.Now()
	}
	go s.deliver(ev)
}

func (s *Service) deliver(ev *Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.hooks.Trigger(ctx, ev.Type, ev); err != nil && err != ErrInterrupt {
		s.logger.Warn("notify hook failed",
			zap.String("type", ev.Type), zap.Error(err))
	}

	data, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("notify marshal failed", zap.Error(err))
		return
	}
	if err := s.ps.Publish(ctx, ChannelFor(ev.ToUserID), string(data)); err != nil {
		s.logger.Warn("notify publish failed",
			zap.String("type", ev.Type),
			zap.Int64("to_user_id", ev.ToUserID),
			zap.Error(err))
	}
}

// Discard is an Emitter that drops every event.
type Discard struct{}

func (Discard) Emit(*Event) {}
