package reaction_test

import (
	"context"
	"testing"

	"github.com/pulsewire/server/model"
	"github.com/pulsewire/server/notify"
	"github.com/pulsewire/server/social/pulse"
	"github.com/pulsewire/server/social/reaction"
	"github.com/pulsewire/server/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newService(t *testing.T) (*reaction.Service, *gorm.DB, *testutil.RecordingEmitter) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	rec := &testutil.RecordingEmitter{}
	svc := reaction.NewService(db, rec, zap.NewNop())
	return svc, db, rec
}

// seedPulse inserts a pulse from sender delivered to the given recipients.
func seedPulse(t *testing.T, db *gorm.DB, senderID int64, recipients ...int64) int64 {
	t.Helper()
	p := &model.Pulse{SenderID: senderID, Kind: model.PulseDirect, Message: "hi"}
	require.NoError(t, db.Create(p).Error)
	for _, r := range recipients {
		require.NoError(t, db.Create(&model.PulseRecipient{PulseID: p.ID, RecipientID: r}).Error)
	}
	return p.ID
}

func countFor(counts []reaction.TypeCount, typ string) reaction.TypeCount {
	for _, c := range counts {
		if c.Type == typ {
			return c
		}
	}
	return reaction.TypeCount{}
}

func TestSetReaction_AddToggleSwitch(t *testing.T) {
	svc, db, _ := newService(t)
	ctx := context.Background()
	pulseID := seedPulse(t, db, 1, 2)

	// Add.
	res, err := svc.SetReaction(ctx, pulseID, 2, "heart")
	require.NoError(t, err)
	assert.Equal(t, reaction.ActionAdded, res.Action)
	hc := countFor(res.CountsByType, "heart")
	assert.Equal(t, int64(1), hc.Count)
	assert.True(t, hc.ViewerActive)

	// Same type again removes.
	res, err = svc.SetReaction(ctx, pulseID, 2, "heart")
	require.NoError(t, err)
	assert.Equal(t, reaction.ActionRemoved, res.Action)
	assert.Equal(t, int64(0), countFor(res.CountsByType, "heart").Count)

	// Add, then a different type switches in place.
	_, err = svc.SetReaction(ctx, pulseID, 2, "heart")
	require.NoError(t, err)
	res, err = svc.SetReaction(ctx, pulseID, 2, "fire")
	require.NoError(t, err)
	assert.Equal(t, reaction.ActionUpdated, res.Action)
	assert.Equal(t, int64(0), countFor(res.CountsByType, "heart").Count)
	assert.Equal(t, int64(1), countFor(res.CountsByType, "fire").Count)

	// Never more than one row per user.
	var rows int64
	require.NoError(t, db.Model(&model.PulseReaction{}).
		Where("pulse_id = ? AND user_id = ?", pulseID, 2).Count(&rows).Error)
	assert.Equal(t, int64(1), rows)
}

func TestSetReaction_InvalidType(t *testing.T) {
	svc, db, _ := newService(t)
	pulseID := seedPulse(t, db, 1, 2)

	_, err := svc.SetReaction(context.Background(), pulseID, 2, "thumbsdown")
	assert.ErrorIs(t, err, reaction.ErrInvalidReactionType)
}

func TestSetReaction_Authorization(t *testing.T) {
	svc, db, _ := newService(t)
	ctx := context.Background()
	pulseID := seedPulse(t, db, 1, 2)

	// Sender and recipient may react; outsiders may not.
	_, err := svc.SetReaction(ctx, pulseID, 1, "smile")
	assert.NoError(t, err)
	_, err = svc.SetReaction(ctx, pulseID, 2, "wow")
	assert.NoError(t, err)
	_, err = svc.SetReaction(ctx, pulseID, 99, "heart")
	assert.ErrorIs(t, err, reaction.ErrNotAuthorized)
	_, err = svc.SetReaction(ctx, 9999, 2, "heart")
	assert.ErrorIs(t, err, pulse.ErrPulseNotFound)
}

func TestSetReaction_NotifiesSender(t *testing.T) {
	svc, db, rec := newService(t)
	ctx := context.Background()
	pulseID := seedPulse(t, db, 1, 2)

	_, err := svc.SetReaction(ctx, pulseID, 2, "heart")
	require.NoError(t, err)
	events := rec.Events()
	require.Len(t, events, 1)
	assert.Equal(t, notify.EventReaction, events[0].Type)
	assert.Equal(t, int64(1), events[0].ToUserID)
	assert.Equal(t, int64(2), events[0].FromUserID)

	// Removal is silent, and self-reactions never notify.
	_, err = svc.SetReaction(ctx, pulseID, 2, "heart")
	require.NoError(t, err)
	_, err = svc.SetReaction(ctx, pulseID, 1, "smile")
	require.NoError(t, err)
	assert.Len(t, rec.Events(), 1)
}

func TestReactionSummary(t *testing.T) {
	svc, db, _ := newService(t)
	ctx := context.Background()
	pulseID := seedPulse(t, db, 1, 2, 3)

	_, err := svc.SetReaction(ctx, pulseID, 2, "heart")
	require.NoError(t, err)
	_, err = svc.SetReaction(ctx, pulseID, 3, "heart")
	require.NoError(t, err)
	_, err = svc.SetReaction(ctx, pulseID, 1, "fire")
	require.NoError(t, err)

	counts, err := svc.ReactionSummary(ctx, pulseID, 2)
	require.NoError(t, err)

	// Every class appears exactly once, zero counts included, stable order.
	require.Len(t, counts, len(model.ReactionTypes))
	for i, typ := range model.ReactionTypes {
		assert.Equal(t, typ, counts[i].Type)
	}
	assert.Equal(t, int64(2), countFor(counts, "heart").Count)
	assert.Equal(t, int64(1), countFor(counts, "fire").Count)
	assert.Equal(t, int64(0), countFor(counts, "sparkle").Count)
	assert.True(t, countFor(counts, "heart").ViewerActive)
	assert.False(t, countFor(counts, "fire").ViewerActive)

	_, err = svc.ReactionSummary(ctx, 9999, 2)
	assert.ErrorIs(t, err, pulse.ErrPulseNotFound)
}

func TestReactorsOf(t *testing.T) {
	svc, db, _ := newService(t)
	ctx := context.Background()
	pulseID := seedPulse(t, db, 1, 2, 3)

	_, err := svc.SetReaction(ctx, pulseID, 2, "clap")
	require.NoError(t, err)
	_, err = svc.SetReaction(ctx, pulseID, 3, "clap")
	require.NoError(t, err)

	reactors, err := svc.ReactorsOf(ctx, pulseID, "clap", 1)
	require.NoError(t, err)
	require.Len(t, reactors, 2)

	reactors, err = svc.ReactorsOf(ctx, pulseID, "sad", 1)
	require.NoError(t, err)
	assert.Empty(t, reactors)

	_, err = svc.ReactorsOf(ctx, pulseID, "nope", 1)
	assert.ErrorIs(t, err, reaction.ErrInvalidReactionType)
	_, err = svc.ReactorsOf(ctx, pulseID, "clap", 99)
	assert.ErrorIs(t, err, reaction.ErrNotAuthorized)
}
