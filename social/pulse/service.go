package pulse

import (
	"context"
	"errors"
	"time"

	"github.com/pulsewire/server/config"
	"github.com/pulsewire/server/model"
	"github.com/pulsewire/server/notify"
	"github.com/pulsewire/server/social/circle"
	"github.com/pulsewire/server/social/friendship"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrEmptyMessage   = errors.New("pulse: empty message")
	ErrMessageTooLong = errors.New("pulse: message too long")
	ErrEmptyCircle    = errors.New("pulse: circle has no members")
	ErrPulseNotFound  = errors.New("pulse: not found")
	ErrNotAuthorized  = errors.New("pulse: not authorized")
)

// FriendGraph is the slice of the friendship manager the fan-out engine
// needs. The check runs on the fan-out transaction's handle.
type FriendGraph interface {
	HasActiveFriendshipTx(tx *gorm.DB, a, b int64) (bool, error)
}

// CircleDirectory is the read-only circle membership collaborator. Both
// calls take the fan-out transaction's handle so the member list is a
// consistent snapshot within that transaction.
type CircleDirectory interface {
	IsOwner(tx *gorm.DB, circleID, userID int64) (bool, error)
	MembersOf(tx *gorm.DB, circleID int64) ([]int64, error)
}

// RecipientView is one delivery record with its seen state.
type RecipientView struct {
	RecipientID int64      `json:"recipient_id"`
	Seen        bool       `json:"seen"`
	SeenAt      *time.Time `json:"seen_at,omitempty"`
}

// InboxEntry is one received pulse with the viewer's seen state.
type InboxEntry struct {
	model.Pulse
	Seen      bool       `json:"seen"`
	SeenAt    *time.Time `json:"seen_at,omitempty"`
	Reactions int64      `json:"reactions"`
}

// OutboxEntry is one sent pulse with its total reaction count.
type OutboxEntry struct {
	model.Pulse
	Reactions int64 `json:"reactions"`
}

const listCap = 100

// Service owns pulse and pulse_recipient rows and performs fan-out. Every
// send is one transaction: pulse row, full recipient set and stat updates
// commit together or not at all.
type Service struct {
	db      *gorm.DB
	friends FriendGraph
	circles CircleDirectory
	emitter notify.Emitter
	logger  *zap.Logger
	maxLen  int
}

// NewService creates the pulse fan-out engine.
func NewService(db *gorm.DB, friends FriendGraph, circles CircleDirectory, emitter notify.Emitter, cfg config.PulseConfig, logger *zap.Logger) *Service {
	return &Service{
		db:      db,
		friends: friends,
		circles: circles,
		emitter: emitter,
		logger:  logger,
		maxLen:  cfg.MaxMessageLen,
	}
}

func (s *Service) checkMessage(message string) error {
	if message == "" {
		return ErrEmptyMessage
	}
	if s.maxLen > 0 && len(message) > s.maxLen {
		return ErrMessageTooLong
	}
	return nil
}

// SendDirect sends a pulse to a single active friend.
func (s *Service) SendDirect(ctx context.Context, senderID, recipientID int64, message string) (*model.Pulse, error) {
	if err := s.checkMessage(message); err != nil {
		return nil, err
	}

	var p *model.Pulse
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.friends.HasActiveFriendshipTx(tx, senderID, recipientID)
		if err != nil {
			return err
		}
		if !ok {
			return friendship.ErrNotFriends
		}

		p = &model.Pulse{SenderID: senderID, Kind: model.PulseDirect, Message: message}
		if err := tx.Create(p).Error; err != nil {
			return err
		}
		if err := tx.Create(&model.PulseRecipient{PulseID: p.ID, RecipientID: recipientID}).Error; err != nil {
			return err
		}
		return s.touchStats(tx, senderID, []int64{recipientID}, time.Now())
	})
	if err != nil {
		return nil, err
	}

	s.emitter.Emit(&notify.Event{
		Type:       notify.EventPulse,
		ToUserID:   recipientID,
		FromUserID: senderID,
		Payload:    map[string]interface{}{"pulse_id": p.ID, "kind": p.Kind},
	})
	s.logger.Info("pulse sent",
		zap.Int64("pulse_id", p.ID),
		zap.Int64("sender_id", senderID),
		zap.String("kind", model.PulseDirect))
	return p, nil
}

// SendToCircle broadcasts a pulse to every member of the sender's circle.
// The fan-out is all-or-nothing: if any recipient row fails, the whole
// transaction rolls back and no one sees the pulse.
func (s *Service) SendToCircle(ctx context.Context, senderID, circleID int64, message string) (*model.Pulse, error) {
	if err := s.checkMessage(message); err != nil {
		return nil, err
	}

	var p *model.Pulse
	var members []int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owned, err := s.circles.IsOwner(tx, circleID, senderID)
		if err != nil {
			return err
		}
		if !owned {
			return circle.ErrCircleNotOwned
		}

		all, err := s.circles.MembersOf(tx, circleID)
		if err != nil {
			return err
		}
		members = members[:0]
		for _, m := range all {
			if m != senderID {
				members = append(members, m)
			}
		}
		if len(members) == 0 {
			return ErrEmptyCircle
		}

		p = &model.Pulse{
			SenderID:       senderID,
			Kind:           model.PulseCircle,
			Message:        message,
			TargetCircleID: &circleID,
		}
		if err := tx.Create(p).Error; err != nil {
			return err
		}

		rows := make([]model.PulseRecipient, len(members))
		for i, m := range members {
			rows[i] = model.PulseRecipient{PulseID: p.ID, RecipientID: m}
		}
		if err := tx.Create(&rows).Error; err != nil {
			return err
		}

		// Members without a direct friendship have no stat row; they still
		// receive the pulse but are skipped for counters.
		return s.touchStats(tx, senderID, members, time.Now())
	})
	if err != nil {
		return nil, err
	}

	for _, m := range members {
		s.emitter.Emit(&notify.Event{
			Type:       notify.EventPulse,
			ToUserID:   m,
			FromUserID: senderID,
			Payload:    map[string]interface{}{"pulse_id": p.ID, "kind": p.Kind, "circle_id": circleID},
		})
	}
	s.logger.Info("pulse sent",
		zap.Int64("pulse_id", p.ID),
		zap.Int64("sender_id", senderID),
		zap.String("kind", model.PulseCircle),
		zap.Int("recipients", len(members)))
	return p, nil
}

// touchStats updates the shadow counters for every recipient that has a
// stat row with the sender, in both directions.
func (s *Service) touchStats(tx *gorm.DB, senderID int64, recipients []int64, now time.Time) error {
	var outgoing []model.FriendshipStat
	if err := tx.Where("owner_id = ? AND friend_id IN ?", senderID, recipients).
		Find(&outgoing).Error; err != nil {
		return err
	}
	for i := range outgoing {
		st := &outgoing[i]
		updates := map[string]interface{}{
			"pulses_sent":   gorm.Expr("pulses_sent + 1"),
			"total_pulses":  gorm.Expr("total_pulses + 1"),
			"streak_days":   nextStreak(st.StreakDays, st.LastPulseAt, now),
			"last_pulse_at": now,
		}
		if err := tx.Model(&model.FriendshipStat{}).
			Where("id = ?", st.ID).Updates(updates).Error; err != nil {
			return err
		}
	}

	return tx.Model(&model.FriendshipStat{}).
		Where("owner_id IN ? AND friend_id = ?", recipients, senderID).
		Updates(map[string]interface{}{
			"pulses_received": gorm.Expr("pulses_received + 1"),
			"total_pulses":    gorm.Expr("total_pulses + 1"),
			"last_pulse_at":   now,
		}).Error
}

// nextStreak computes the consecutive-day counter at write time.
func nextStreak(current int, last *time.Time, now time.Time) int {
	if last == nil {
		return 1
	}
	lastDay := last.Truncate(24 * time.Hour)
	today := now.Truncate(24 * time.Hour)
	switch {
	case lastDay.Equal(today):
		if current == 0 {
			return 1
		}
		return current
	case today.Sub(lastDay) == 24*time.Hour:
		return current + 1
	default:
		return 1
	}
}

// MarkSeen records that the named recipient saw the pulse. Repeated calls
// return the original timestamp without error.
func (s *Service) MarkSeen(ctx context.Context, pulseID, recipientID int64) (time.Time, error) {
	db := s.db.WithContext(ctx)

	var rec model.PulseRecipient
	err := db.Where("pulse_id = ? AND recipient_id = ?", pulseID, recipientID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if _, perr := s.getPulse(db, pulseID); perr != nil {
			return time.Time{}, perr
		}
		return time.Time{}, ErrNotAuthorized
	}
	if err != nil {
		return time.Time{}, err
	}

	if rec.SeenAt != nil {
		return *rec.SeenAt, nil
	}

	now := time.Now()
	res := db.Model(&model.PulseRecipient{}).
		Where("id = ? AND seen_at IS NULL", rec.ID).
		Update("seen_at", now)
	if res.Error != nil {
		return time.Time{}, res.Error
	}
	if res.RowsAffected == 0 {
		// A concurrent call won; report its timestamp.
		if err := db.First(&rec, rec.ID).Error; err != nil {
			return time.Time{}, err
		}
		if rec.SeenAt != nil {
			return *rec.SeenAt, nil
		}
	}
	return now, nil
}

// RecipientsOf lists the delivery records of a pulse with seen flags. Only
// the sender or a recipient may look.
func (s *Service) RecipientsOf(ctx context.Context, pulseID, viewerID int64) ([]RecipientView, error) {
	db := s.db.WithContext(ctx)

	p, err := s.getPulse(db, pulseID)
	if err != nil {
		return nil, err
	}

	var rows []model.PulseRecipient
	if err := db.Where("pulse_id = ?", pulseID).
		Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	if p.SenderID != viewerID {
		allowed := false
		for _, r := range rows {
			if r.RecipientID == viewerID {
				allowed = true
				break
			}
		}
		if !allowed {
			return nil, ErrNotAuthorized
		}
	}

	views := make([]RecipientView, len(rows))
	for i, r := range rows {
		views[i] = RecipientView{
			RecipientID: r.RecipientID,
			Seen:        r.SeenAt != nil,
			SeenAt:      r.SeenAt,
		}
	}
	return views, nil
}

// Inbox lists the newest pulses delivered to the user.
func (s *Service) Inbox(ctx context.Context, userID int64) ([]InboxEntry, error) {
	db := s.db.WithContext(ctx)

	var recs []model.PulseRecipient
	if err := db.Where("recipient_id = ?", userID).
		Order("id DESC").Limit(listCap).Find(&recs).Error; err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return []InboxEntry{}, nil
	}

	ids := make([]int64, len(recs))
	recByPulse := make(map[int64]*model.PulseRecipient, len(recs))
	for i := range recs {
		ids[i] = recs[i].PulseID
		recByPulse[recs[i].PulseID] = &recs[i]
	}

	var pulses []model.Pulse
	if err := db.Where("id IN ?", ids).
		Order("created_at DESC").Find(&pulses).Error; err != nil {
		return nil, err
	}

	reactions, err := s.reactionCounts(db, ids)
	if err != nil {
		return nil, err
	}

	entries := make([]InboxEntry, 0, len(pulses))
	for _, p := range pulses {
		rec := recByPulse[p.ID]
		entries = append(entries, InboxEntry{
			Pulse:     p,
			Seen:      rec.SeenAt != nil,
			SeenAt:    rec.SeenAt,
			Reactions: reactions[p.ID],
		})
	}
	return entries, nil
}

// Outbox lists the newest pulses the user sent.
func (s *Service) Outbox(ctx context.Context, userID int64) ([]OutboxEntry, error) {
	db := s.db.WithContext(ctx)

	var pulses []model.Pulse
	if err := db.Where("sender_id = ?", userID).
		Order("created_at DESC").Limit(listCap).Find(&pulses).Error; err != nil {
		return nil, err
	}
	if len(pulses) == 0 {
		return []OutboxEntry{}, nil
	}

	ids := make([]int64, len(pulses))
	for i := range pulses {
		ids[i] = pulses[i].ID
	}
	reactions, err := s.reactionCounts(db, ids)
	if err != nil {
		return nil, err
	}

	entries := make([]OutboxEntry, len(pulses))
	for i, p := range pulses {
		entries[i] = OutboxEntry{Pulse: p, Reactions: reactions[p.ID]}
	}
	return entries, nil
}

// reactionCounts returns total reaction counts for the given pulse IDs.
func (s *Service) reactionCounts(db *gorm.DB, pulseIDs []int64) (map[int64]int64, error) {
	type row struct {
		PulseID int64
		Cnt     int64
	}
	var rows []row
	if err := db.Model(&model.PulseReaction{}).
		Select("pulse_id, COUNT(*) AS cnt").
		Where("pulse_id IN ?", pulseIDs).
		Group("pulse_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[int64]int64, len(rows))
	for _, r := range rows {
		counts[r.PulseID] = r.Cnt
	}
	return counts, nil
}

// EngagementRate is reactions received from others on the user's pulses
// divided by pulses sent. Zero pulses sent yields 0, not an error.
func (s *Service) EngagementRate(ctx context.Context, userID int64) (float64, error) {
	db := s.db.WithContext(ctx)

	var sent int64
	if err := db.Model(&model.Pulse{}).
		Where("sender_id = ?", userID).Count(&sent).Error; err != nil {
		return 0, err
	}
	if sent == 0 {
		return 0, nil
	}

	var reactions int64
	if err := db.Model(&model.PulseReaction{}).
		Where("user_id <> ? AND pulse_id IN (?)", userID,
			db.Session(&gorm.Session{NewDB: true}).Model(&model.Pulse{}).
				Select("id").Where("sender_id = ?", userID)).
		Count(&reactions).Error; err != nil {
		return 0, err
	}
	return float64(reactions) / float64(sent), nil
}

// GetPulse loads a pulse by ID.
func (s *Service) GetPulse(ctx context.Context, pulseID int64) (*model.Pulse, error) {
	return s.getPulse(s.db.WithContext(ctx), pulseID)
}

func (s *Service) getPulse(db *gorm.DB, pulseID int64) (*model.Pulse, error) {
	var p model.Pulse
	if err := db.First(&p, pulseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPulseNotFound
		}
		return nil, err
	}
	return &p, nil
}
