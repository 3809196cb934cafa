package ops

import (
	"marketcore/internal/apperr"
	"marketcore/internal/dispatch"
	"marketcore/internal/domain/steamadapter"
)

// SteamAdapterUpsert wires steamadapter.Service.Upsert. No ownership guard
// applies here (steamadapter.UpsertRequest carries no Actor field).
func (c *Core) SteamAdapterUpsert(env dispatch.Envelope, req steamadapter.UpsertRequest) dispatch.Response {
	return c.mutate(&env, "steamAdapterContract.upsert", nil, "provider:"+req.ProviderID, req, "steamAdapter", req.ProviderID,
		func() (any, *apperr.Error) {
			return c.SteamAdapter.Upsert(req)
		})
}

// SteamAdapterGet wires steamadapter.Service.Get as a read.
func (c *Core) SteamAdapterGet(env dispatch.Envelope, providerID string) dispatch.Response {
	return c.read(env, "steamAdapterContract.get", nil, "steamAdapter", providerID,
		func() (any, *apperr.Error) {
			return c.SteamAdapter.Get(providerID)
		})
}

// SteamAdapterPreflight wires steamadapter.Service.Preflight as a pure,
// side-effect-free read.
func (c *Core) SteamAdapterPreflight(env dispatch.Envelope, req steamadapter.PreflightRequest) dispatch.Response {
	return c.read(env, "steamAdapterContract.preflight", nil, "steamAdapter", req.ProviderID,
		func() (any, *apperr.Error) {
			return c.SteamAdapter.Preflight(req)
		})
}
