// Package reliability implements reliability remediation planning
// (§4.11): "suggest" aggregates SLO metrics, incident drills, and replay
// checks over a window, deterministically emits a ranked set of actions
// keyed by a signal summary, and writes a persistent plan. Follows
// consensus/potso/emissions's schedule calculator, which likewise folds a
// window of observed per-epoch signals into a deterministic, ranked
// emission schedule.
package reliability

import (
	"sort"

	"marketcore/internal/apperr"
	"marketcore/internal/canon"
	"marketcore/internal/clock"
	"marketcore/internal/ledger"
)

// EventType constants name this package's ledger appends.
const (
	EventTypePlanSuggested = "reliabilityRemediationPlan.suggested"
)

// SLOMetric is one SLO observation over the aggregation window.
type SLOMetric struct {
	Name         string
	BreachCount  int
}

// IncidentDrill is one incident-drill outcome over the window.
type IncidentDrill struct {
	Name   string
	Passed bool
}

// ReplayCheck is one replay-check outcome over the window.
type ReplayCheck struct {
	Name   string
	Passed bool
}

// SuggestRequest bundles Suggest's inputs: the observed signals over a
// window, identified by tenant and window bounds.
type SuggestRequest struct {
	Tenant      string
	WindowFromISO string
	WindowToISO   string
	SLOMetrics     []SLOMetric
	IncidentDrills []IncidentDrill
	ReplayChecks   []ReplayCheck
	IdempotencyKey string
	NowISO         string
}

// Action is one ranked remediation action.
type Action struct {
	ActionCode string
	Subject    string
	Priority   int // lower sorts first
}

// Plan is the persisted result of one Suggest call.
type Plan struct {
	PlanID        string
	Tenant        string
	WindowFromISO string
	WindowToISO   string
	Actions       []Action
	SignalSummaryHash string
	CreatedAtISO  string
}

func (p *Plan) clone() *Plan {
	if p == nil {
		return nil
	}
	c := *p
	c.Actions = append([]Action(nil), p.Actions...)
	return &c
}

// Service aggregates signals into ranked remediation plans.
type Service struct {
	Clock  clock.Source
	Ledger *ledger.Stream
	byID   []*Plan
}

// NewService builds a Service over the given ledger stream.
func NewService(clockSource clock.Source, stream *ledger.Stream) *Service {
	return &Service{Clock: clockSource, Ledger: stream}
}

// Suggest deterministically ranks remediation actions from the observed
// window signals (§4.11). For identical inputs, Suggest always produces
// the same ordered action set and the same signal_summary_hash-derived
// plan id.
func (s *Service) Suggest(req SuggestRequest) (*Plan, *apperr.Error) {
	if req.Tenant == "" {
		return nil, apperr.ConstraintViolation(ReasonTenantRequired, "tenant is required", nil)
	}

	var actions []Action
	for _, m := range req.SLOMetrics {
		if m.BreachCount > 0 {
			actions = append(actions, Action{ActionCode: "tighten_alert_threshold", Subject: m.Name, Priority: -m.BreachCount})
		}
	}
	for _, d := range req.IncidentDrills {
		if !d.Passed {
			actions = append(actions, Action{ActionCode: "rerun_incident_drill", Subject: d.Name, Priority: 0})
		}
	}
	for _, r := range req.ReplayChecks {
		if !r.Passed {
			actions = append(actions, Action{ActionCode: "investigate_replay_divergence", Subject: r.Name, Priority: 0})
		}
	}

	sort.SliceStable(actions, func(i, j int) bool {
		if actions[i].Priority != actions[j].Priority {
			return actions[i].Priority < actions[j].Priority
		}
		if actions[i].ActionCode != actions[j].ActionCode {
			return actions[i].ActionCode < actions[j].ActionCode
		}
		return actions[i].Subject < actions[j].Subject
	})

	summary := map[string]any{
		"tenant":          req.Tenant,
		"window_from_iso": req.WindowFromISO,
		"window_to_iso":   req.WindowToISO,
		"slo_metrics":     req.SLOMetrics,
		"incident_drills": req.IncidentDrills,
		"replay_checks":   req.ReplayChecks,
	}
	summaryHash, err := canon.HashHex(summary)
	if err != nil {
		return nil, apperr.ConstraintViolation("reliability_signal_summary_not_encodable", err.Error(), nil)
	}

	effectiveNow := req.NowISO
	if effectiveNow == "" {
		effectiveNow = s.Clock.NowISO()
	}

	plan := &Plan{
		PlanID:            clock.DeterministicID("plan", summaryHash),
		Tenant:            req.Tenant,
		WindowFromISO:     req.WindowFromISO,
		WindowToISO:       req.WindowToISO,
		Actions:           actions,
		SignalSummaryHash: summaryHash,
		CreatedAtISO:      effectiveNow,
	}
	s.byID = append(s.byID, plan)

	s.Ledger.Append(req.Tenant, EventTypePlanSuggested, effectiveNow, map[string]any{
		"plan_id":             plan.PlanID,
		"signal_summary_hash": plan.SignalSummaryHash,
		"action_count":        len(plan.Actions),
	})

	return plan.clone(), nil
}

// Reason codes specific to this package.
const (
	ReasonTenantRequired apperr.Reason = "reliability_tenant_required"
)
