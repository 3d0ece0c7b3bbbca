package service

import "github.com/noah-isme/oncall-board-api/internal/models"

// ReasonSlotClaimed is the rejection reason for a slot held by someone else.
const ReasonSlotClaimed = "slot already claimed"

// ClaimIntent is one requested change to a slot.
type ClaimIntent struct {
	Slot       models.SlotIdentity
	Actor      models.Actor
	TargetUser string
	Claimed    bool
}

// EffectiveTarget is the user the intent acts for. Only admins may act for
// someone else; anyone else silently acts for themselves.
func (i ClaimIntent) EffectiveTarget() string {
	if i.Actor.IsAdmin() && i.TargetUser != "" {
		return i.TargetUser
	}
	return i.Actor.ID
}

// ClaimDecision is the outcome of resolving an intent against a slot holder.
type ClaimDecision struct {
	Accepted bool
	// Noop marks an accepted claim the holder already had.
	Noop   bool
	Reason string
}

// ResolveClaim decides an intent given the slot's holder ("" when free).
// Unclaims are always accepted. A claim is accepted when the slot is free or
// already held by the effective target, and rejected otherwise, admin or not.
func ResolveClaim(intent ClaimIntent, holder string) ClaimDecision {
	if !intent.Claimed {
		return ClaimDecision{Accepted: true}
	}
	switch holder {
	case "":
		return ClaimDecision{Accepted: true}
	case intent.EffectiveTarget():
		return ClaimDecision{Accepted: true, Noop: true}
	default:
		return ClaimDecision{Reason: ReasonSlotClaimed}
	}
}
