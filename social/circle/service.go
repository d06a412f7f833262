package circle

import (
	"context"
	"errors"

	"github.com/pulsewire/server/config"
	"github.com/pulsewire/server/model"
	"github.com/pulsewire/server/social/friendship"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrCircleNotFound = errors.New("circle: not found")
	ErrCircleNotOwned = errors.New("circle: not owned by user")
	ErrCircleFull     = errors.New("circle: member limit reached")
	ErrAlreadyMember  = errors.New("circle: already a member")
	ErrNotMember      = errors.New("circle: not a member")
)

// FriendGraph is the slice of the friendship manager the circle service
// needs: only friends of the owner may join a circle.
type FriendGraph interface {
	HasActiveFriendshipTx(tx *gorm.DB, a, b int64) (bool, error)
}

// Info is a circle with its member count.
type Info struct {
	model.Circle
	MemberCount int64 `json:"member_count"`
}

// Service owns circles and their membership, and doubles as the read-only
// membership directory the fan-out engine consumes.
type Service struct {
	db         *gorm.DB
	friends    FriendGraph
	logger     *zap.Logger
	maxMembers int
}

// NewService creates the circle Service.
func NewService(db *gorm.DB, friends FriendGraph, cfg config.PulseConfig, logger *zap.Logger) *Service {
	return &Service{db: db, friends: friends, logger: logger, maxMembers: cfg.MaxCircleMembers}
}

// Create makes a new circle owned by ownerID.
func (s *Service) Create(ctx context.Context, ownerID int64, name string, isPublic bool) (*model.Circle, error) {
	c := &model.Circle{OwnerID: ownerID, Name: name, IsPublic: isPublic}
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	s.logger.Info("circle created",
		zap.Int64("circle_id", c.ID), zap.Int64("owner_id", ownerID))
	return c, nil
}

// List returns the user's circles with member counts.
func (s *Service) List(ctx context.Context, ownerID int64) ([]Info, error) {
	db := s.db.WithContext(ctx)

	var circles []model.Circle
	if err := db.Where("owner_id = ?", ownerID).
		Order("created_at DESC").Find(&circles).Error; err != nil {
		return nil, err
	}

	result := make([]Info, 0, len(circles))
	for _, c := range circles {
		var count int64
		if err := db.Model(&model.CircleMember{}).
			Where("circle_id = ?", c.ID).Count(&count).Error; err != nil {
			return nil, err
		}
		result = append(result, Info{Circle: c, MemberCount: count})
	}
	return result, nil
}

// Detail returns a circle and its members. Non-owners only see public circles.
func (s *Service) Detail(ctx context.Context, circleID, viewerID int64) (*model.Circle, []model.CircleMember, error) {
	db := s.db.WithContext(ctx)

	var c model.Circle
	if err := db.First(&c, circleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrCircleNotFound
		}
		return nil, nil, err
	}
	if c.OwnerID != viewerID && !c.IsPublic {
		return nil, nil, ErrCircleNotOwned
	}

	var members []model.CircleMember
	if err := db.Where("circle_id = ?", circleID).
		Order("added_at ASC").Find(&members).Error; err != nil {
		return nil, nil, err
	}
	return &c, members, nil
}

// AddMember adds an active friend of the owner to the owner's circle.
func (s *Service) AddMember(ctx context.Context, circleID, ownerID, memberID int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.requireOwner(tx, circleID, ownerID); err != nil {
			return err
		}

		ok, err := s.friends.HasActiveFriendshipTx(tx, ownerID, memberID)
		if err != nil {
			return err
		}
		if !ok {
			return friendship.ErrNotFriends
		}

		if s.maxMembers > 0 {
			var count int64
			if err := tx.Model(&model.CircleMember{}).
				Where("circle_id = ?", circleID).Count(&count).Error; err != nil {
				return err
			}
			if count >= int64(s.maxMembers) {
				return ErrCircleFull
			}
		}

		var existing int64
		if err := tx.Model(&model.CircleMember{}).
			Where("circle_id = ? AND user_id = ?", circleID, memberID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrAlreadyMember
		}
		return tx.Create(&model.CircleMember{CircleID: circleID, UserID: memberID}).Error
	})
}

// RemoveMember removes a member from the owner's circle.
func (s *Service) RemoveMember(ctx context.Context, circleID, ownerID, memberID int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.requireOwner(tx, circleID, ownerID); err != nil {
			return err
		}
		res := tx.Where("circle_id = ? AND user_id = ?", circleID, memberID).
			Delete(&model.CircleMember{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotMember
		}
		return nil
	})
}

// Delete removes a circle and all its member rows together.
func (s *Service) Delete(ctx context.Context, circleID, ownerID int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.requireOwner(tx, circleID, ownerID); err != nil {
			return err
		}
		if err := tx.Where("circle_id = ?", circleID).
			Delete(&model.CircleMember{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Circle{}, circleID).Error
	})
}

// IsOwner reports whether userID owns the circle, on the caller's handle.
func (s *Service) IsOwner(tx *gorm.DB, circleID, userID int64) (bool, error) {
	var c model.Circle
	if err := tx.First(&c, circleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrCircleNotFound
		}
		return false, err
	}
	return c.OwnerID == userID, nil
}

// MembersOf returns the circle's member IDs on the caller's handle, so the
// fan-out transaction reads one consistent snapshot.
func (s *Service) MembersOf(tx *gorm.DB, circleID int64) ([]int64, error) {
	var ids []int64
	if err := tx.Model(&model.CircleMember{}).
		Where("circle_id = ?", circleID).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Service) requireOwner(tx *gorm.DB, circleID, ownerID int64) error {
	owned, err := s.IsOwner(tx, circleID, ownerID)
	if err != nil {
		return err
	}
	if !owned {
		return ErrCircleNotOwned
	}
	return nil
}
