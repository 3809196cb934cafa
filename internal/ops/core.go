// Package ops assembles every domain service behind the §4.8 dispatch
// pipeline: each exported Core method builds one dispatch.Operation,
// threads its mutation through the shared store.Store's single-writer
// lock, mints the operation's correlation id via internal/ids, and runs
// it through dispatch.Run/RunRead. This is the composition layer the
// domain packages themselves stay ignorant of, the way
// gateway/routes/router.go wires native/* handlers behind net/http
// without those packages importing net/http.
package ops

import (
	"marketcore/internal/apperr"
	"marketcore/internal/attest"
	"marketcore/internal/authz"
	"marketcore/internal/canon"
	"marketcore/internal/clock"
	"marketcore/internal/config"
	"marketcore/internal/dispatch"
	"marketcore/internal/domain/compensation"
	"marketcore/internal/domain/delegation"
	"marketcore/internal/domain/inclusion"
	"marketcore/internal/domain/liquidity"
	"marketcore/internal/domain/products"
	"marketcore/internal/domain/reliability"
	"marketcore/internal/domain/staging"
	"marketcore/internal/domain/steamadapter"
	"marketcore/internal/domain/transparency"
	"marketcore/internal/domain/trustsafety"
	"marketcore/internal/export"
	"marketcore/internal/ids"
	"marketcore/internal/ledger"
	"marketcore/internal/store"
)

// Core owns the single store.Store and one instance of every domain
// service, wired together the way a production process would construct
// them once at startup.
type Core struct {
	Store *store.Store
	Gate  *authz.Gate

	Delegation          *delegation.Service
	LiquidityPolicy     *liquidity.PolicyService
	LiquidityInventory  *liquidity.InventoryService
	LiquidityExecution  *liquidity.ExecutionService
	LiquidityGovernance *liquidity.GovernanceService
	ProviderGovernance  *liquidity.ProviderGovernanceStore
	Staging             *staging.Service
	Transparency        *transparency.Service
	Inclusion           *inclusion.Service
	TrustSafety         *trustsafety.Service
	Compensation        *compensation.Service
	SteamAdapter        *steamadapter.Service
	Reliability         *reliability.Service
	Products            *products.PreferenceStore

	custody *custodyRegistry
}

// NewCore builds a Core over the given clock, config, and attestation
// signer, wiring every domain service to its own ledger stream inside
// the shared store (§4.11, §5).
func NewCore(clockSource clock.Source, cfg config.Config, signer *attest.Signer) *Core {
	st := store.New(clockSource, cfg, signer)

	policySvc := liquidity.NewPolicyService(clockSource, st.Ledger("liquidityPolicy"))
	custody := newCustodyRegistry()
	transparencySvc := transparency.NewService(clockSource, st.Ledger("transparency"))

	return &Core{
		Store:               st,
		Gate:                authz.NewGate(),
		Delegation:          delegation.NewService(clockSource, st.Ledger("delegation")),
		LiquidityPolicy:     policySvc,
		LiquidityInventory:  liquidity.NewInventoryService(clockSource, st.Ledger("liquidityInventory")),
		LiquidityExecution:  liquidity.NewExecutionService(clockSource, st.Ledger("liquidityExecution"), policySvc, cfg),
		LiquidityGovernance: liquidity.NewGovernanceService(clockSource, st.Ledger("liquidityGovernance"), policySvc),
		ProviderGovernance:  liquidity.NewProviderGovernanceStore(),
		Staging:             staging.NewService(clockSource, st.Ledger("staging")),
		Transparency:        transparencySvc,
		Inclusion: inclusion.NewService(clockSource, st.Ledger("inclusionProof"),
			custody.verifyReceipt, custody.lookupSnapshot, custody.buildProof, transparencySvc.ArtifactRefs),
		TrustSafety:  trustsafety.NewService(clockSource, st.Ledger("trustSafety")),
		Compensation: compensation.NewService(clockSource, st.Ledger("compensation")),
		SteamAdapter: steamadapter.NewService(clockSource, st.Ledger("steamAdapter")),
		Reliability:  reliability.NewService(clockSource, st.Ledger("reliability")),
		Products:     products.NewPreferenceStore(),
		custody:      custody,
	}
}

// RegisterLiquidityProvider and RegisterProviderGovernance seed the
// provider-ownership and governance records a policy/rollout operation
// checks against. No operation in §4.11 names a "register provider" call
// of its own; a full deployment would derive this from the partner
// onboarding flow, out of this core's scope (§1).
func (c *Core) RegisterLiquidityProvider(p liquidity.Provider) {
	c.LiquidityPolicy.RegisterProvider(p)
	c.ProviderGovernance.Register(p.ProviderID)
}

// RegisterCustodySnapshot and RegisterReceipt seed the inclusion
// collaborators' backing registries, standing in for the external
// custody/signature systems inclusion.Service depends on (§1).
func (c *Core) RegisterCustodySnapshot(snapshotID, holdingID string) {
	c.custody.registerSnapshot(snapshotID, holdingID)
}

func (c *Core) RegisterReceiptSignature(receiptID, signature string, valid bool) {
	c.custody.registerReceipt(receiptID, signature, valid)
}

// mutate builds and runs a single mutating dispatch.Operation: it hashes
// payload for idempotency comparison, mints a correlation id when the
// caller supplied none, threads fn through the store's single-writer
// lock, and renders the uniform Response (§4.8).
func (c *Core) mutate(env *dispatch.Envelope, opID string, guard dispatch.GuardFunc, subscope string, payload any, corrOp, corrKey string, fn func() (any, *apperr.Error)) dispatch.Response {
	payloadHash, err := canon.HashHex(payload)
	if err != nil {
		return dispatch.Response{Error: apperr.ConstraintViolation("request_not_encodable", err.Error(), nil)}
	}
	if env.CorrelationID == "" {
		if corrKey != "" {
			env.CorrelationID = ids.Correlation(corrOp, corrKey)
		} else {
			env.CorrelationID = ids.RandomCorrelation(corrOp)
		}
	}

	op := dispatch.Operation{
		ID:          opID,
		Gate:        c.Gate,
		Guard:       guard,
		Subscope:    subscope,
		Idem:        c.Store.Idem,
		PayloadHash: payloadHash,
		Handler: func() (dispatch.Result, *apperr.Error) {
			body, err := c.Store.Write(fn)
			if err != nil {
				return dispatch.Result{}, err
			}
			return dispatch.Result{OK: true, Body: body}, nil
		},
	}
	return dispatch.Run(*env, op)
}

// read builds and runs a single read-only dispatch.Operation (§4.8:
// "reads return {ok, body}", no idempotency scoping).
func (c *Core) read(env dispatch.Envelope, opID string, guard dispatch.GuardFunc, corrOp, corrKey string, fn func() (any, *apperr.Error)) dispatch.Response {
	if env.CorrelationID == "" {
		if corrKey != "" {
			env.CorrelationID = ids.Correlation(corrOp, corrKey)
		} else {
			env.CorrelationID = ids.RandomCorrelation(corrOp)
		}
	}
	op := dispatch.Operation{
		ID:    opID,
		Gate:  c.Gate,
		Guard: guard,
		Handler: func() (dispatch.Result, *apperr.Error) {
			body, err := fn()
			if err != nil {
				return dispatch.Result{}, err
			}
			return dispatch.Result{OK: true, Body: body}, nil
		},
	}
	return dispatch.RunRead(env, op)
}

// guardActorType builds a GuardFunc enforcing a single required actor
// type, the dispatch-layer mirror of authz.RequireActorType.
func guardActorType(want authz.ActorType) dispatch.GuardFunc {
	return func(env dispatch.Envelope) *apperr.Error {
		return authz.RequireActorType(env.Actor, want)
	}
}

// exportPage runs one export-contract query through internal/export,
// scoping candidates to tenant via the stream's own tenant index (§4.7).
// matchesKind, when non-nil, filters a multi-kind ledger stream down to
// the single event kind an export contract names.
func (c *Core) exportPage(kind, contract, tenant string, rawQuery map[string]any, allowedExtraKeys map[string]struct{}, cursorOf export.CursorFunc, retentionDays, checkpointRetentionDays int, enforceCheckpoint bool, matchesKind func(string) bool) (export.Page, *apperr.Error) {
	query, err := export.ParseQuery(rawQuery, allowedExtraKeys)
	if err != nil {
		return export.Page{}, err
	}
	candidates := c.Store.Ledger(kind).ForTenant(tenant)
	req := export.Request{
		Contract:                contract,
		Tenant:                  tenant,
		Query:                   query,
		RetentionDays:           retentionDays,
		CheckpointRetentionDays: checkpointRetentionDays,
		EnforceCheckpoint:       enforceCheckpoint,
		CursorOf:                cursorOf,
		Signer:                  c.Store.Signer,
		Checkpoints:             c.Store.Checkpoints(contract),
	}
	result, err := c.Store.Write(func() (any, *apperr.Error) {
		return export.Run(req, candidates, func(e ledger.Entry) bool {
			if matchesKind == nil {
				return true
			}
			return matchesKind(e.Kind)
		})
	})
	if err != nil {
		return export.Page{}, err
	}
	return result.(export.Page), nil
}
