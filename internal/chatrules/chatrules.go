// Package chatrules holds the pure decision logic for chat lifecycle and
// membership. Nothing here touches storage or the network, which keeps the
// rules easy to test and reuse from the service layer.
package chatrules

import (
	"messenger-service/internal/apperr"
	"messenger-service/internal/models"
)

// CheckTransition validates a chat status change.
// Pending direct chats resolve to active or rejected; a rejected chat can
// come back to active when the recipient unblocks the initiator.
func CheckTransition(from, to models.ChatStatus) error {
	switch {
	case from == models.ChatStatusPending && to == models.ChatStatusActive:
		return nil
	case from == models.ChatStatusPending && to == models.ChatStatusRejected:
		return nil
	case from == models.ChatStatusRejected && to == models.ChatStatusActive:
		return nil
	default:
		return apperr.Conflict("invalid chat status transition")
	}
}

// CheckRespondToInvite verifies that userID may accept or reject a pending
// direct chat. Only the recipient may respond; the initiator is the admin
// row on a direct chat.
func CheckRespondToInvite(chat models.Chat, participants []models.ParticipantInfo, userID int) error {
	if chat.IsGroup {
		return apperr.Validation("group chats have no invite to respond to")
	}
	if chat.Status != models.ChatStatusPending {
		return apperr.Conflict("chat is not pending")
	}
	for _, p := range participants {
		if p.UserID == userID {
			if p.IsAdmin {
				return apperr.Authorization("the initiator cannot respond to their own invite")
			}
			return nil
		}
	}
	return apperr.Authorization("not a participant of this chat")
}

// CheckCreateDirect verifies a new direct chat between initiator and
// recipient is allowed given an already existing chat between them, if any.
func CheckCreateDirect(existing *models.Chat) error {
	if existing == nil {
		return nil
	}
	switch existing.Status {
	case models.ChatStatusActive:
		return apperr.Conflict("chat already exists")
	case models.ChatStatusPending:
		return apperr.Conflict("chat request already pending")
	case models.ChatStatusRejected:
		return apperr.Conflict("chat request was rejected")
	default:
		return apperr.Conflict("chat already exists")
	}
}

// CheckAddParticipant verifies the actor may add a member to the chat.
func CheckAddParticipant(chat models.Chat, actor models.ChatParticipant) error {
	if !chat.IsGroup {
		return apperr.Validation("cannot add participants to a direct chat")
	}
	if !actor.IsAdmin {
		return apperr.Authorization("only admins can add participants")
	}
	return nil
}

// CheckRemoveParticipant verifies the actor may kick the target out of
// the chat. Members may remove themselves, except the sole admin of a
// group that still has other members: they must leave instead, which
// promotes a successor. Admins cannot kick fellow admins.
func CheckRemoveParticipant(chat models.Chat, participants []models.ParticipantInfo, actor, target models.ChatParticipant) error {
	if !chat.IsGroup {
		return apperr.Validation("cannot remove participants from a direct chat")
	}
	if actor.UserID == target.UserID {
		if NeedsPromotion(participants, actor.UserID) {
			return apperr.Validation("the sole admin cannot remove themselves; leave the chat instead")
		}
		return nil
	}
	if !actor.IsAdmin {
		return apperr.Authorization("only admins can remove other participants")
	}
	if target.IsAdmin {
		return apperr.Authorization("admins cannot remove another admin")
	}
	return nil
}

// CheckEditChat verifies the actor may rename the chat or change its
// avatar.
func CheckEditChat(chat models.Chat, actor models.ChatParticipant) error {
	if !chat.IsGroup {
		return apperr.Validation("direct chats cannot be edited")
	}
	if !actor.IsAdmin {
		return apperr.Authorization("only admins can edit the chat")
	}
	return nil
}

// CheckDeleteChat verifies the actor may delete the chat. Either side may
// delete a direct chat; groups take admin rights.
func CheckDeleteChat(chat models.Chat, actor models.ChatParticipant) error {
	if chat.IsGroup && !actor.IsAdmin {
		return apperr.Authorization("only admins can delete the chat")
	}
	return nil
}

// NeedsPromotion reports whether the leaver's departure would leave the
// group without any admin.
func NeedsPromotion(participants []models.ParticipantInfo, leaverID int) bool {
	leaverIsAdmin := false
	othersRemain := false
	otherAdminRemains := false
	for _, p := range participants {
		if p.UserID == leaverID {
			leaverIsAdmin = p.IsAdmin
			continue
		}
		othersRemain = true
		if p.IsAdmin {
			otherAdminRemains = true
		}
	}
	return leaverIsAdmin && othersRemain && !otherAdminRemains
}

// PromotionTarget picks the member to promote when the last admin leaves:
// the longest-standing remaining member, ties broken by the lowest user id.
func PromotionTarget(participants []models.ParticipantInfo, leaverID int) (int, bool) {
	targetID := 0
	found := false
	var target models.ParticipantInfo
	for _, p := range participants {
		if p.UserID == leaverID {
			continue
		}
		if !found ||
			p.JoinedAt.Before(target.JoinedAt) ||
			(p.JoinedAt.Equal(target.JoinedAt) && p.UserID < target.UserID) {
			target = p
			targetID = p.UserID
			found = true
		}
	}
	return targetID, found
}

// BlockedSendersFor returns the sender ids to filter from the viewer's
// timeline. Filtering applies to group chats only: in a direct chat the
// block already gates the relationship itself.
func BlockedSendersFor(isGroup bool, blocked []int) []int {
	if !isGroup {
		return nil
	}
	return blocked
}
