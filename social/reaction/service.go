package reaction

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/pulsewire/server/model"
	"github.com/pulsewire/server/notify"
	"github.com/pulsewire/server/social/pulse"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrInvalidReactionType = errors.New("reaction: invalid reaction type")
	ErrNotAuthorized       = errors.New("reaction: not authorized")
)

// Actions reported by SetReaction.
const (
	ActionAdded   = "added"
	ActionUpdated = "updated"
	ActionRemoved = "removed"
)

// TypeCount is one reaction class with its total and the viewer's state.
type TypeCount struct {
	Type         string `json:"type"`
	Count        int64  `json:"count"`
	ViewerActive bool   `json:"viewer_active"`
}

// Result is the outcome of a SetReaction toggle.
type Result struct {
	Action       string      `json:"action"`
	CountsByType []TypeCount `json:"counts_by_type"`
}

// Reactor is one user's active reaction on a pulse.
type Reactor struct {
	UserID    int64     `json:"user_id"`
	ReactedAt time.Time `json:"reacted_at"`
}

// Service owns pulse_reaction rows under the single-active-reaction model:
// at most one row per (pulse, user), toggled by one idempotent operation.
type Service struct {
	db      *gorm.DB
	emitter notify.Emitter
	logger  *zap.Logger
}

// NewService creates the reaction aggregation service.
func NewService(db *gorm.DB, emitter notify.Emitter, logger *zap.Logger) *Service {
	return &Service{db: db, emitter: emitter, logger: logger}
}

// SetReaction toggles the user's reaction on a pulse: no row inserts, the
// same type removes, a different type switches in place. The unique
// (pulse_id, user_id) constraint is the backstop under concurrency; a
// conflicting insert means someone else resolved it first and is retried
// once as an update.
func (s *Service) SetReaction(ctx context.Context, pulseID, userID int64, reactionType string) (*Result, error) {
	if !model.IsValidReactionType(reactionType) {
		return nil, ErrInvalidReactionType
	}

	var result Result
	var senderID int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := s.authorize(tx, pulseID, userID)
		if err != nil {
			return err
		}
		senderID = p.SenderID

		var existing model.PulseReaction
		err = tx.Where("pulse_id = ? AND user_id = ?", pulseID, userID).
			First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			row := &model.PulseReaction{PulseID: pulseID, UserID: userID, ReactionType: reactionType}
			if cerr := tx.Create(row).Error; cerr != nil {
				if !isUniqueViolation(cerr) {
					return cerr
				}
				// Lost the race: a concurrent call created the row.
				if uerr := tx.Model(&model.PulseReaction{}).
					Where("pulse_id = ? AND user_id = ?", pulseID, userID).
					Update("reaction_type", reactionType).Error; uerr != nil {
					return uerr
				}
				result.Action = ActionUpdated
			} else {
				result.Action = ActionAdded
			}

		case err != nil:
			return err

		case existing.ReactionType == reactionType:
			if derr := tx.Delete(&model.PulseReaction{}, existing.ID).Error; derr != nil {
				return derr
			}
			result.Action = ActionRemoved

		default:
			if uerr := tx.Model(&model.PulseReaction{}).
				Where("id = ?", existing.ID).
				Update("reaction_type", reactionType).Error; uerr != nil {
				return uerr
			}
			result.Action = ActionUpdated
		}

		counts, cerr := s.countsByType(tx, pulseID, userID)
		if cerr != nil {
			return cerr
		}
		result.CountsByType = counts
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Action != ActionRemoved && userID != senderID {
		s.emitter.Emit(&notify.Event{
			Type:       notify.EventReaction,
			ToUserID:   senderID,
			FromUserID: userID,
			Payload:    map[string]interface{}{"pulse_id": pulseID, "reaction_type": reactionType},
		})
	}
	s.logger.Debug("reaction set",
		zap.Int64("pulse_id", pulseID),
		zap.Int64("user_id", userID),
		zap.String("action", result.Action))
	return &result, nil
}

// ReactionSummary returns all 8 reaction types with counts and the viewer's
// active state, zero counts included, in a stable order.
func (s *Service) ReactionSummary(ctx context.Context, pulseID, viewerID int64) ([]TypeCount, error) {
	db := s.db.WithContext(ctx)

	var count int64
	if err := db.Model(&model.Pulse{}).Where("id = ?", pulseID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, pulse.ErrPulseNotFound
	}
	return s.countsByType(db, pulseID, viewerID)
}

// ReactorsOf lists who holds the given reaction on a pulse, most recent
// first. Gated the same way as SetReaction.
func (s *Service) ReactorsOf(ctx context.Context, pulseID int64, reactionType string, viewerID int64) ([]Reactor, error) {
	if !model.IsValidReactionType(reactionType) {
		return nil, ErrInvalidReactionType
	}

	db := s.db.WithContext(ctx)
	if _, err := s.authorize(db, pulseID, viewerID); err != nil {
		return nil, err
	}

	var rows []model.PulseReaction
	if err := db.Where("pulse_id = ? AND reaction_type = ?", pulseID, reactionType).
		Order("updated_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}

	reactors := make([]Reactor, len(rows))
	for i, r := range rows {
		reactors[i] = Reactor{UserID: r.UserID, ReactedAt: r.UpdatedAt}
	}
	return reactors, nil
}

// authorize loads the pulse and checks the user is its sender or one of
// its recipients.
func (s *Service) authorize(tx *gorm.DB, pulseID, userID int64) (*model.Pulse, error) {
	var p model.Pulse
	if err := tx.First(&p, pulseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pulse.ErrPulseNotFound
		}
		return nil, err
	}
	if p.SenderID == userID {
		return &p, nil
	}

	var recCount int64
	if err := tx.Model(&model.PulseRecipient{}).
		Where("pulse_id = ? AND recipient_id = ?", pulseID, userID).
		Count(&recCount).Error; err != nil {
		return nil, err
	}
	if recCount == 0 {
		return nil, ErrNotAuthorized
	}
	return &p, nil
}

func (s *Service) countsByType(tx *gorm.DB, pulseID, viewerID int64) ([]TypeCount, error) {
	type row struct {
		ReactionType string
		Cnt          int64
	}
	var rows []row
	if err := tx.Model(&model.PulseReaction{}).
		Select("reaction_type, COUNT(*) AS cnt").
		Where("pulse_id = ?", pulseID).
		Group("reaction_type").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	byType := make(map[string]int64, len(rows))
	for _, r := range rows {
		byType[r.ReactionType] = r.Cnt
	}

	var viewer model.PulseReaction
	viewerType := ""
	err := tx.Where("pulse_id = ? AND user_id = ?", pulseID, viewerID).
		First(&viewer).Error
	if err == nil {
		viewerType = viewer.ReactionType
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	counts := make([]TypeCount, len(model.ReactionTypes))
	for i, t := range model.ReactionTypes {
		counts[i] = TypeCount{
			Type:         t,
			Count:        byType[t],
			ViewerActive: viewerType == t,
		}
	}
	return counts, nil
}

// isUniqueViolation detects duplicate-key errors from common database drivers.
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") ||
		strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "already exists")
}
