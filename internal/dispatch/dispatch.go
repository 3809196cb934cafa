// Package dispatch composes the uniform operation pipeline every service
// call runs through (§4.8): authorize, guard actor shape, resolve tenant,
// then run the handler under idempotency. Follows
// services/otc-gateway/middleware's idempotency wrapper, which layers the
// same "wrap next" composition over net/http; here the wrapped unit is a
// Handler rather than an http.Handler, since this core has no HTTP framing
// in scope.
package dispatch

import (
	"encoding/json"

	"marketcore/internal/apperr"
	"marketcore/internal/authz"
	"marketcore/internal/idempotency"
)

// Envelope is the common request envelope for every mutating operation (§6).
type Envelope struct {
	Actor          authz.Actor
	Auth           authz.Auth
	IdempotencyKey string
	CorrelationID  string
	Request        any
}

// Result is a handler's outcome before it is wrapped into a Response. It is
// the shape frozen into the idempotency registry, so its fields carry JSON
// tags matching the response envelope's own field names.
type Result struct {
	OK   bool `json:"ok"`
	Body any  `json:"body"`
}

// Handler runs the operation's domain logic. It must be pure with respect
// to failure (§7): returning a non-nil *apperr.Error must leave no
// ledger/counter/checkpoint/idempotency side effect.
type Handler func() (Result, *apperr.Error)

// GuardFunc applies an actor-shape or tenancy check beyond the base gate
// (§4.3's "additional actor-shape guards applied by services").
type GuardFunc func(Envelope) *apperr.Error

// TenantResolver extracts the tenant id this operation scopes against.
type TenantResolver func(Envelope) (string, *apperr.Error)

// Response is the uniform outer envelope every operation returns (§6, §4.8).
type Response struct {
	CorrelationID string
	Replayed      bool
	OK            bool
	Body          any
	Error         *apperr.Error
}

// Operation bundles everything one dispatch call needs.
type Operation struct {
	ID             string
	Gate           *authz.Gate
	Guard          GuardFunc
	ResolveTenant  TenantResolver
	Subscope       string
	Idem           *idempotency.Registry
	PayloadHash    string // precomputed canon.HashHex(request), used as the idempotency payload fingerprint
	Handler        Handler
}

// Run executes authorize -> guardActorShape -> resolveTenant ->
// withIdempotency(subscope?, handler) and renders the uniform envelope.
// Read-only operations should call RunRead instead, since reads never
// touch the idempotency registry (§4.8: "Reads return {ok, body}; writes
// return {replayed, result:{ok, body}}").
func Run(env Envelope, op Operation) Response {
	if err := op.Gate.Authorize(op.ID, env.Actor, env.Auth); err != nil {
		return errorResponse(env.CorrelationID, err)
	}
	if op.Guard != nil {
		if err := op.Guard(env); err != nil {
			return errorResponse(env.CorrelationID, err)
		}
	}
	tenant := ""
	if op.ResolveTenant != nil {
		t, err := op.ResolveTenant(env)
		if err != nil {
			return errorResponse(env.CorrelationID, err)
		}
		tenant = t
	}

	scopeKey := idempotency.ScopeKey(env.Actor, op.ID, scopeWithTenant(op.Subscope, tenant), env.IdempotencyKey)

	outcome, err := op.Idem.Run(scopeKey, op.PayloadHash, func() (any, *apperr.Error) {
		result, handlerErr := op.Handler()
		if handlerErr != nil {
			return nil, handlerErr
		}
		return result, nil
	})
	if err != nil {
		return errorResponse(env.CorrelationID, err)
	}

	var result Result
	if jsonErr := json.Unmarshal(outcome.Result, &result); jsonErr != nil {
		return errorResponse(env.CorrelationID, apperr.ConstraintViolation("result_not_decodable", jsonErr.Error(), nil))
	}
	return Response{
		CorrelationID: env.CorrelationID,
		Replayed:      outcome.Replayed,
		OK:            result.OK,
		Body:          result.Body,
	}
}

// RunRead executes authorize -> guardActorShape -> resolveTenant -> handler
// with no idempotency scoping, matching §4.8's "reads return {ok, body}".
func RunRead(env Envelope, op Operation) Response {
	if err := op.Gate.Authorize(op.ID, env.Actor, env.Auth); err != nil {
		return errorResponse(env.CorrelationID, err)
	}
	if op.Guard != nil {
		if err := op.Guard(env); err != nil {
			return errorResponse(env.CorrelationID, err)
		}
	}
	if op.ResolveTenant != nil {
		if _, err := op.ResolveTenant(env); err != nil {
			return errorResponse(env.CorrelationID, err)
		}
	}
	result, err := op.Handler()
	if err != nil {
		return errorResponse(env.CorrelationID, err)
	}
	return Response{
		CorrelationID: env.CorrelationID,
		OK:            result.OK,
		Body:          result.Body,
	}
}

func scopeWithTenant(subscope, tenant string) string {
	if subscope == "" {
		return tenant
	}
	if tenant == "" {
		return subscope
	}
	return subscope + ":" + tenant
}

func errorResponse(correlationID string, err *apperr.Error) Response {
	return Response{
		CorrelationID: correlationID,
		Error:         err,
	}
}
