package ops

import (
	"marketcore/internal/apperr"
	"marketcore/internal/dispatch"
	"marketcore/internal/domain/products"
)

// ProductPreferencesUpsert wires products.PreferenceStore.Upsert.
func (c *Core) ProductPreferencesUpsert(env dispatch.Envelope, prefs products.Preferences) dispatch.Response {
	prefs.ActorID = env.Actor.ID
	return c.mutate(&env, "productPreferences.upsert", nil, "", prefs, "productPreferences", prefs.ActorID,
		func() (any, *apperr.Error) {
			return nil, c.Products.Upsert(prefs)
		})
}

// ProductPreferencesGet wires products.PreferenceStore.Get as a read.
func (c *Core) ProductPreferencesGet(env dispatch.Envelope) dispatch.Response {
	return c.read(env, "productPreferences.get", nil, "productPreferences", env.Actor.ID,
		func() (any, *apperr.Error) {
			return c.Products.Get(env.Actor.ID), nil
		})
}

// ProductProjectProposalsRequest is the request body for the
// productProposal.project read operation.
type ProductProjectProposalsRequest struct {
	Views products.Views
}

// ProductProjectProposals wires products.ProjectProposals as a read. It has
// no persistent state of its own (the doc comment on products.go notes
// this is a pure projection over caller-supplied views), so the Core holds
// no backing service for it beyond the dispatch wrapper itself.
func (c *Core) ProductProjectProposals(env dispatch.Envelope, req ProductProjectProposalsRequest) dispatch.Response {
	return c.read(env, "productProposal.project", nil, "productProposal", env.Actor.ID,
		func() (any, *apperr.Error) {
			return products.ProjectProposals(env.Actor, req.Views), nil
		})
}

// ProductShouldNotifyRequest is the request body for the
// productPreferences.shouldNotify read operation.
type ProductShouldNotifyRequest struct {
	Category products.Category
	NowISO   string
}

// ProductShouldNotify wires products.PreferenceStore.ShouldNotify as a read.
func (c *Core) ProductShouldNotify(env dispatch.Envelope, req ProductShouldNotifyRequest) dispatch.Response {
	nowISO := req.NowISO
	if nowISO == "" {
		nowISO = c.Store.NowISO(env.Auth.NowISO)
	}
	return c.read(env, "productPreferences.shouldNotify", nil, "productPreferences", env.Actor.ID,
		func() (any, *apperr.Error) {
			return c.Products.ShouldNotify(env.Actor.ID, req.Category, nowISO)
		})
}
