package friendship

import (
	"context"
	"errors"
	"time"

	"github.com/pulsewire/server/config"
	"github.com/pulsewire/server/model"
	"github.com/pulsewire/server/notify"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Domain outcomes callers branch on. These are never collapsed into a
// generic failure; the handlers map each to its own response.
var (
	ErrSelfReference   = errors.New("friendship: self reference not allowed")
	ErrAlreadyFriends  = errors.New("friendship: already friends")
	ErrRequestPending  = errors.New("friendship: request already pending")
	ErrRequestResolved = errors.New("friendship: request already resolved")
	ErrRequestNotFound = errors.New("friendship: request not found")
	ErrNotAuthorized   = errors.New("friendship: not authorized")
	ErrNotFriends      = errors.New("friendship: not friends")
	ErrMessageTooLong  = errors.New("friendship: message too long")
)

// Decision is the receiver's answer to a pending request.
type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
)

// Friend is one entry of a user's friend list: the directed edge joined
// with its shadow stat row.
type Friend struct {
	FriendID            int64      `json:"friend_id"`
	FriendshipStartedAt time.Time  `json:"friendship_started_at"`
	IsFavorite          bool       `json:"is_favorite"`
	CustomNickname      string     `json:"custom_nickname,omitempty"`
	PulsesSent          int64      `json:"pulses_sent"`
	PulsesReceived      int64      `json:"pulses_received"`
	TotalPulses         int64      `json:"total_pulses"`
	StreakDays          int        `json:"streak_days"`
	LastPulseAt         *time.Time `json:"last_pulse_at"`
}

// Service owns friend_request, friendship_edge and friendship_stat rows.
// Edges are only ever written in pairs; no caller gets a single-edge write.
type Service struct {
	db      *gorm.DB
	emitter notify.Emitter
	logger  *zap.Logger
	maxLen  int
}

// NewService creates the friendship graph manager.
func NewService(db *gorm.DB, emitter notify.Emitter, cfg config.PulseConfig, logger *zap.Logger) *Service {
	return &Service{db: db, emitter: emitter, logger: logger, maxLen: cfg.MaxMessageLen}
}

// SendRequest creates a pending friend request from sender to receiver.
func (s *Service) SendRequest(ctx context.Context, senderID, receiverID int64, message string) (*model.FriendRequest, error) {
	if senderID == receiverID {
		return nil, ErrSelfReference
	}
	if s.maxLen > 0 && len(message) > s.maxLen {
		return nil, ErrMessageTooLong
	}

	db := s.db.WithContext(ctx)

	var edgeCount int64
	if err := db.Model(&model.FriendshipEdge{}).
		Where("owner_id = ? AND friend_id = ?", senderID, receiverID).
		Count(&edgeCount).Error; err != nil {
		return nil, err
	}
	if edgeCount > 0 {
		return nil, ErrAlreadyFriends
	}

	var pendingCount int64
	if err := db.Model(&model.FriendRequest{}).
		Where("status = ? AND ((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?))",
			model.RequestPending, senderID, receiverID, receiverID, senderID).
		Count(&pendingCount).Error; err != nil {
		return nil, err
	}
	if pendingCount > 0 {
		return nil, ErrRequestPending
	}

	req := &model.FriendRequest{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Status:     model.RequestPending,
		Message:    message,
	}
	if err := db.Create(req).Error; err != nil {
		return nil, err
	}

	s.emitter.Emit(&notify.Event{
		Type:       notify.EventFriendRequest,
		ToUserID:   receiverID,
		FromUserID: senderID,
		Payload:    map[string]interface{}{"request_id": req.ID, "message": message},
	})
	s.logger.Info("friend request sent",
		zap.Int64("sender_id", senderID), zap.Int64("receiver_id", receiverID))
	return req, nil
}

// RespondToRequest lets the receiver accept or reject a pending request.
// Accepting writes the request update, both edges and both stat rows in one
// transaction; a half-applied accept must never be observable.
func (s *Service) RespondToRequest(ctx context.Context, requestID, actingUserID int64, decision Decision) (*model.FriendRequest, error) {
	db := s.db.WithContext(ctx)

	var req model.FriendRequest
	if err := db.First(&req, requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	if req.ReceiverID != actingUserID {
		return nil, ErrNotAuthorized
	}
	if req.Status != model.RequestPending {
		return nil, ErrRequestResolved
	}

	now := time.Now()
	newStatus := model.RequestRejected
	if decision == DecisionAccept {
		newStatus = model.RequestAccepted
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		// Guard against a concurrent responder: only the pending row flips.
		res := tx.Model(&model.FriendRequest{}).
			Where("id = ? AND status = ?", requestID, model.RequestPending).
			Updates(map[string]interface{}{"status": newStatus, "responded_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRequestResolved
		}
		if decision != DecisionAccept {
			return nil
		}

		edges := []model.FriendshipEdge{
			{OwnerID: req.SenderID, FriendID: req.ReceiverID, FriendshipStartedAt: now},
			{OwnerID: req.ReceiverID, FriendID: req.SenderID, FriendshipStartedAt: now},
		}
		if err := tx.Create(&edges).Error; err != nil {
			return err
		}
		stats := []model.FriendshipStat{
			{OwnerID: req.SenderID, FriendID: req.ReceiverID},
			{OwnerID: req.ReceiverID, FriendID: req.SenderID},
		}
		return tx.Create(&stats).Error
	})
	if err != nil {
		return nil, err
	}

	req.Status = newStatus
	req.RespondedAt = &now

	if decision == DecisionAccept {
		s.emitter.Emit(&notify.Event{
			Type:       notify.EventFriendAccepted,
			ToUserID:   req.SenderID,
			FromUserID: req.ReceiverID,
			Payload:    map[string]interface{}{"request_id": req.ID},
		})
		s.logger.Info("friend request accepted",
			zap.Int64("request_id", req.ID),
			zap.Int64("sender_id", req.SenderID),
			zap.Int64("receiver_id", req.ReceiverID))
	}
	return &req, nil
}

// CancelRequest lets the original sender withdraw a still-pending request.
func (s *Service) CancelRequest(ctx context.Context, requestID, actingUserID int64) (*model.FriendRequest, error) {
	db := s.db.WithContext(ctx)

	var req model.FriendRequest
	if err := db.First(&req, requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	if req.SenderID != actingUserID {
		return nil, ErrNotAuthorized
	}
	if req.Status != model.RequestPending {
		return nil, ErrRequestResolved
	}

	now := time.Now()
	res := db.Model(&model.FriendRequest{}).
		Where("id = ? AND status = ?", requestID, model.RequestPending).
		Updates(map[string]interface{}{"status": model.RequestCancelled, "responded_at": now})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrRequestResolved
	}
	req.Status = model.RequestCancelled
	req.RespondedAt = &now
	return &req, nil
}

// ToggleBlock flips IsBlocked on edge (ownerID, friendID) only. The reverse
// edge keeps its own state: blocking is asymmetric.
func (s *Service) ToggleBlock(ctx context.Context, ownerID, friendID int64) (*model.FriendshipEdge, error) {
	db := s.db.WithContext(ctx)

	var edge model.FriendshipEdge
	if err := db.Where("owner_id = ? AND friend_id = ?", ownerID, friendID).
		First(&edge).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFriends
		}
		return nil, err
	}

	edge.IsBlocked = !edge.IsBlocked
	if edge.IsBlocked {
		now := time.Now()
		edge.BlockedAt = &now
	} else {
		edge.BlockedAt = nil
	}
	if err := db.Model(&model.FriendshipEdge{}).Where("id = ?", edge.ID).
		Updates(map[string]interface{}{
			"is_blocked": edge.IsBlocked,
			"blocked_at": edge.BlockedAt,
		}).Error; err != nil {
		return nil, err
	}
	return &edge, nil
}

// Unfriend removes the friendship: both edges and both stat rows go in one
// transaction, never one half.
func (s *Service) Unfriend(ctx context.Context, ownerID, friendID int64) error {
	db := s.db.WithContext(ctx)

	var edge model.FriendshipEdge
	if err := db.Where("owner_id = ? AND friend_id = ?", ownerID, friendID).
		First(&edge).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFriends
		}
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(
			"(owner_id = ? AND friend_id = ?) OR (owner_id = ? AND friend_id = ?)",
			ownerID, friendID, friendID, ownerID).
			Delete(&model.FriendshipEdge{}).Error; err != nil {
			return err
		}
		return tx.Where(
			"(owner_id = ? AND friend_id = ?) OR (owner_id = ? AND friend_id = ?)",
			ownerID, friendID, friendID, ownerID).
			Delete(&model.FriendshipStat{}).Error
	})
}

// ListActiveFriends returns the owner's non-blocked edges joined with stats.
func (s *Service) ListActiveFriends(ctx context.Context, ownerID int64) ([]Friend, error) {
	db := s.db.WithContext(ctx)

	var edges []model.FriendshipEdge
	if err := db.Where("owner_id = ? AND is_blocked = ?", ownerID, false).
		Order("friendship_started_at DESC").
		Find(&edges).Error; err != nil {
		return nil, err
	}

	var stats []model.FriendshipStat
	if err := db.Where("owner_id = ?", ownerID).Find(&stats).Error; err != nil {
		return nil, err
	}
	statByFriend := make(map[int64]*model.FriendshipStat, len(stats))
	for i := range stats {
		statByFriend[stats[i].FriendID] = &stats[i]
	}

	result := make([]Friend, 0, len(edges))
	for _, e := range edges {
		f := Friend{
			FriendID:            e.FriendID,
			FriendshipStartedAt: e.FriendshipStartedAt,
		}
		if st := statByFriend[e.FriendID]; st != nil {
			f.IsFavorite = st.IsFavorite
			f.CustomNickname = st.CustomNickname
			f.PulsesSent = st.PulsesSent
			f.PulsesReceived = st.PulsesReceived
			f.TotalPulses = st.TotalPulses
			f.StreakDays = st.StreakDays
			f.LastPulseAt = st.LastPulseAt
		}
		result = append(result, f)
	}
	return result, nil
}

// HasActiveFriendship reports whether edge (a,b) exists and is not blocked
// from a's side. b's blocked state does not matter.
func (s *Service) HasActiveFriendship(ctx context.Context, a, b int64) (bool, error) {
	return s.HasActiveFriendshipTx(s.db.WithContext(ctx), a, b)
}

// HasActiveFriendshipTx is the same check on a caller-supplied handle, so
// the fan-out engine can run it inside its own transaction.
func (s *Service) HasActiveFriendshipTx(tx *gorm.DB, a, b int64) (bool, error) {
	var count int64
	err := tx.Model(&model.FriendshipEdge{}).
		Where("owner_id = ? AND friend_id = ? AND is_blocked = ?", a, b, false).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// SetFavorite marks or unmarks a friend on the caller's directed stat row.
func (s *Service) SetFavorite(ctx context.Context, ownerID, friendID int64, favorite bool) error {
	return s.updateStat(ctx, ownerID, friendID, map[string]interface{}{"is_favorite": favorite})
}

// SetNickname sets the caller's private nickname for a friend.
func (s *Service) SetNickname(ctx context.Context, ownerID, friendID int64, nickname string) error {
	if s.maxLen > 0 && len(nickname) > s.maxLen {
		return ErrMessageTooLong
	}
	return s.updateStat(ctx, ownerID, friendID, map[string]interface{}{"custom_nickname": nickname})
}

func (s *Service) updateStat(ctx context.Context, ownerID, friendID int64, fields map[string]interface{}) error {
	res := s.db.WithContext(ctx).Model(&model.FriendshipStat{}).
		Where("owner_id = ? AND friend_id = ?", ownerID, friendID).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFriends
	}
	return nil
}

// PendingRequests returns pending requests addressed to the user (incoming)
// and sent by the user (outgoing).
func (s *Service) PendingRequests(ctx context.Context, userID int64) (incoming, outgoing []model.FriendRequest, err error) {
	db := s.db.WithContext(ctx)
	if err = db.Where("receiver_id = ? AND status = ?", userID, model.RequestPending).
		Order("created_at DESC").Find(&incoming).Error; err != nil {
		return nil, nil, err
	}
	if err = db.Where("sender_id = ? AND status = ?", userID, model.RequestPending).
		Order("created_at DESC").Find(&outgoing).Error; err != nil {
		return nil, nil, err
	}
	return incoming, outgoing, nil
}
