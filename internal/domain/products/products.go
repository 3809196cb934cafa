// Package products implements product projections and notification
// preferences (§4.11): read-only derivations over marketplace proposals,
// timelines, receipts, and intents filtered by actor-visibility rules,
// plus per-actor notification preferences with quiet hours and
// per-category opt-in. Follows native/reputation's read-side projections
// (score lookups filtered by actor) and services/otc-gateway's per-caller
// preference handling.
package products

import (
	"marketcore/internal/apperr"
	"marketcore/internal/authz"
	"marketcore/internal/clock"
)

// Proposal, Timeline, Receipt, and Intent are the minimal read-side shapes
// this package projects over. Each record stores ids only, matching the
// "cyclic references by id" convention (§9) — this package never imports
// the rollout/liquidity packages that own the live records, it is handed
// read views instead.
type Proposal struct {
	ProposalID string
	Tenant     string
	IntentIDs  []string
	Status     string
}

type Timeline struct {
	TimelineID string
	ProposalID string
	Actor      authz.Actor
	Steps      []string
}

type Receipt struct {
	ReceiptID  string
	ProposalID string
	Actor      authz.Actor
}

type Intent struct {
	IntentID string
	Actor    authz.Actor
	AssetID  string
}

// Views bundles the read-only lookups a projection call consults. Each
// field is typically a snapshot handed in by the caller's store adapter.
type Views struct {
	Proposals []Proposal
	Timelines []Timeline
	Receipts  []Receipt
	Intents   []Intent
}

// actorOwnsIntent reports whether actor may see the intent directly (it is
// the intent's actor).
func actorOwnsIntent(actor authz.Actor, in Intent) bool {
	return in.Actor == actor
}

// ProjectProposals returns every proposal visible to actor: a proposal is
// visible if any of its constituent intents belongs to actor, or if actor
// holds a timeline or receipt referencing it.
func ProjectProposals(actor authz.Actor, v Views) []Proposal {
	visibleProposalIDs := map[string]struct{}{}

	ownedIntents := map[string]struct{}{}
	for _, in := range v.Intents {
		if actorOwnsIntent(actor, in) {
			ownedIntents[in.IntentID] = struct{}{}
		}
	}

	for _, p := range v.Proposals {
		for _, intentID := range p.IntentIDs {
			if _, ok := ownedIntents[intentID]; ok {
				visibleProposalIDs[p.ProposalID] = struct{}{}
				break
			}
		}
	}
	for _, tl := range v.Timelines {
		if tl.Actor == actor {
			visibleProposalIDs[tl.ProposalID] = struct{}{}
		}
	}
	for _, r := range v.Receipts {
		if r.Actor == actor {
			visibleProposalIDs[r.ProposalID] = struct{}{}
		}
	}

	var out []Proposal
	for _, p := range v.Proposals {
		if _, ok := visibleProposalIDs[p.ProposalID]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Category is a notification category an actor may opt in or out of.
type Category string

const (
	CategoryProposalMatched   Category = "proposal_matched"
	CategoryReservationExpiring Category = "reservation_expiring"
	CategoryGovernanceDecision Category = "governance_decision"
	CategoryTrustSafetyDecision Category = "trust_safety_decision"
)

// Preferences is one actor's notification preferences: a quiet-hours
// window expressed as ISO-8601 "HH:MM" bounds in UTC,
// and a per-category opt-in map (missing entries default to opted-in).
type Preferences struct {
	ActorID         string
	QuietHoursStart string // "HH:MM", empty disables quiet hours
	QuietHoursEnd   string // "HH:MM"
	CategoryOptIn   map[Category]bool
	IdempotencyKey  string
}

func (p Preferences) clone() Preferences {
	out := p
	if p.CategoryOptIn != nil {
		out.CategoryOptIn = make(map[Category]bool, len(p.CategoryOptIn))
		for k, v := range p.CategoryOptIn {
			out.CategoryOptIn[k] = v
		}
	}
	return out
}

// PreferenceStore holds per-actor notification preferences.
type PreferenceStore struct {
	byActor map[string]Preferences
}

// NewPreferenceStore builds an empty PreferenceStore.
func NewPreferenceStore() *PreferenceStore {
	return &PreferenceStore{byActor: map[string]Preferences{}}
}

// Upsert stores prefs for prefs.ActorID.
func (s *PreferenceStore) Upsert(prefs Preferences) *apperr.Error {
	if prefs.ActorID == "" {
		return apperr.ConstraintViolation(ReasonActorIDRequired, "actor_id is required", nil)
	}
	s.byActor[prefs.ActorID] = prefs.clone()
	return nil
}

// Get returns actorID's preferences, or the zero-value defaults (quiet
// hours disabled, every category opted in) if none were ever recorded.
func (s *PreferenceStore) Get(actorID string) Preferences {
	if prefs, ok := s.byActor[actorID]; ok {
		return prefs.clone()
	}
	return Preferences{ActorID: actorID}
}

// ShouldNotify reports whether a notification of the given category
// should be delivered to actorID at nowISO, honoring quiet hours and
// per-category opt-in (§4.11).
func (s *PreferenceStore) ShouldNotify(actorID string, category Category, nowISO string) (bool, *apperr.Error) {
	prefs := s.Get(actorID)
	if optedIn, explicit := prefs.CategoryOptIn[category]; explicit && !optedIn {
		return false, nil
	}
	if prefs.QuietHoursStart == "" || prefs.QuietHoursEnd == "" {
		return true, nil
	}
	t, err := clock.ParseStrict(nowISO)
	if err != nil {
		return false, apperr.ConstraintViolation(apperr.ReasonInvalidTimestamp, "now_iso must be a valid ISO-8601 timestamp", nil)
	}
	hhmm := t.UTC().Format("15:04")
	if inQuietWindow(hhmm, prefs.QuietHoursStart, prefs.QuietHoursEnd) {
		return false, nil
	}
	return true, nil
}

// inQuietWindow reports whether hhmm falls within [start, end), handling
// windows that wrap past midnight (start > end).
func inQuietWindow(hhmm, start, end string) bool {
	if start <= end {
		return hhmm >= start && hhmm < end
	}
	return hhmm >= start || hhmm < end
}

// Reason codes specific to this package.
const (
	ReasonActorIDRequired apperr.Reason = "product_preferences_actor_id_required"
)
