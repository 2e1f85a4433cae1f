package chatrules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messenger-service/internal/apperr"
	"messenger-service/internal/models"
)

func participant(userID int, isAdmin bool, joined time.Time) models.ParticipantInfo {
	return models.ParticipantInfo{
		ChatParticipant: models.ChatParticipant{UserID: userID, IsAdmin: isAdmin, JoinedAt: joined},
	}
}

func TestCheckTransition(t *testing.T) {
	cases := []struct {
		from, to models.ChatStatus
		ok       bool
	}{
		{models.ChatStatusPending, models.ChatStatusActive, true},
		{models.ChatStatusPending, models.ChatStatusRejected, true},
		{models.ChatStatusRejected, models.ChatStatusActive, true},
		{models.ChatStatusActive, models.ChatStatusPending, false},
		{models.ChatStatusActive, models.ChatStatusRejected, false},
		{models.ChatStatusRejected, models.ChatStatusPending, false},
	}
	for _, tc := range cases {
		err := CheckTransition(tc.from, tc.to)
		if tc.ok {
			assert.NoError(t, err, "%s -> %s", tc.from, tc.to)
		} else {
			assert.Equal(t, apperr.KindConflict, apperr.KindOf(err), "%s -> %s", tc.from, tc.to)
		}
	}
}

func TestCheckRespondToInvite(t *testing.T) {
	now := time.Now()
	chat := models.Chat{ID: 1, IsGroup: false, Status: models.ChatStatusPending}
	participants := []models.ParticipantInfo{
		participant(1, true, now),  // initiator
		participant(2, false, now), // recipient
	}

	assert.NoError(t, CheckRespondToInvite(chat, participants, 2))

	err := CheckRespondToInvite(chat, participants, 1)
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err), "initiator cannot respond")

	err = CheckRespondToInvite(chat, participants, 3)
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err), "outsider cannot respond")

	active := chat
	active.Status = models.ChatStatusActive
	err = CheckRespondToInvite(active, participants, 2)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	group := models.Chat{ID: 2, IsGroup: true, Status: models.ChatStatusPending}
	err = CheckRespondToInvite(group, participants, 2)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestCheckCreateDirect(t *testing.T) {
	assert.NoError(t, CheckCreateDirect(nil))

	for _, status := range []models.ChatStatus{
		models.ChatStatusActive,
		models.ChatStatusPending,
		models.ChatStatusRejected,
	} {
		err := CheckCreateDirect(&models.Chat{Status: status})
		assert.Equal(t, apperr.KindConflict, apperr.KindOf(err), "status %s", status)
	}
}

func TestCheckAddParticipant(t *testing.T) {
	group := models.Chat{IsGroup: true}
	admin := models.ChatParticipant{UserID: 1, IsAdmin: true}
	member := models.ChatParticipant{UserID: 2}

	assert.NoError(t, CheckAddParticipant(group, admin))
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(CheckAddParticipant(group, member)))

	direct := models.Chat{IsGroup: false}
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(CheckAddParticipant(direct, admin)))
}

func TestCheckRemoveParticipant(t *testing.T) {
	now := time.Now()
	group := models.Chat{IsGroup: true}
	admin := models.ChatParticipant{UserID: 1, IsAdmin: true}
	coAdmin := models.ChatParticipant{UserID: 3, IsAdmin: true}
	member := models.ChatParticipant{UserID: 2}
	roster := []models.ParticipantInfo{
		participant(1, true, now),
		participant(2, false, now),
		participant(3, true, now),
	}

	assert.NoError(t, CheckRemoveParticipant(group, roster, member, member), "self removal is allowed")
	assert.NoError(t, CheckRemoveParticipant(group, roster, admin, member))
	assert.Equal(t, apperr.KindAuthorization,
		apperr.KindOf(CheckRemoveParticipant(group, roster, member, admin)),
		"plain members cannot kick")
	assert.Equal(t, apperr.KindAuthorization,
		apperr.KindOf(CheckRemoveParticipant(group, roster, admin, coAdmin)),
		"an admin cannot kick a fellow admin")

	soleAdmin := []models.ParticipantInfo{
		participant(1, true, now),
		participant(2, false, now),
	}
	assert.Equal(t, apperr.KindValidation,
		apperr.KindOf(CheckRemoveParticipant(group, soleAdmin, admin, admin)),
		"the sole admin must leave, not kick themselves")

	direct := models.Chat{IsGroup: false}
	assert.Equal(t, apperr.KindValidation,
		apperr.KindOf(CheckRemoveParticipant(direct, roster, admin, member)))
}

func TestCheckDeleteChat(t *testing.T) {
	group := models.Chat{IsGroup: true}
	direct := models.Chat{IsGroup: false}
	admin := models.ChatParticipant{UserID: 1, IsAdmin: true}
	member := models.ChatParticipant{UserID: 2}

	assert.NoError(t, CheckDeleteChat(group, admin))
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(CheckDeleteChat(group, member)))
	assert.NoError(t, CheckDeleteChat(direct, member), "either side may delete a direct chat")
}

func TestNeedsPromotion(t *testing.T) {
	now := time.Now()

	soleAdmin := []models.ParticipantInfo{
		participant(1, true, now),
		participant(2, false, now),
	}
	assert.True(t, NeedsPromotion(soleAdmin, 1))
	assert.False(t, NeedsPromotion(soleAdmin, 2), "a plain member leaving changes nothing")

	twoAdmins := []models.ParticipantInfo{
		participant(1, true, now),
		participant(2, true, now),
		participant(3, false, now),
	}
	assert.False(t, NeedsPromotion(twoAdmins, 1))

	lastMember := []models.ParticipantInfo{participant(1, true, now)}
	assert.False(t, NeedsPromotion(lastMember, 1), "nobody left to promote")
}

func TestPromotionTargetPrefersOldestMember(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	participants := []models.ParticipantInfo{
		participant(1, true, base),
		participant(5, false, base.Add(2*time.Hour)),
		participant(3, false, base.Add(time.Hour)),
	}

	target, ok := PromotionTarget(participants, 1)
	require.True(t, ok)
	assert.Equal(t, 3, target)
}

func TestPromotionTargetBreaksTiesByLowestID(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	participants := []models.ParticipantInfo{
		participant(1, true, base),
		participant(9, false, base.Add(time.Hour)),
		participant(4, false, base.Add(time.Hour)),
	}

	target, ok := PromotionTarget(participants, 1)
	require.True(t, ok)
	assert.Equal(t, 4, target)

	_, ok = PromotionTarget([]models.ParticipantInfo{participant(1, true, base)}, 1)
	assert.False(t, ok)
}

func TestBlockedSendersFor(t *testing.T) {
	blocked := []int{3, 4}
	assert.Equal(t, blocked, BlockedSendersFor(true, blocked))
	assert.Nil(t, BlockedSendersFor(false, blocked), "direct chats are never filtered")
}
