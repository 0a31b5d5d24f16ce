// Package router decides which model and credential serve a request.
package router

import "jarvis/internal/config"

// RaptorModel is the access-gated preview model selected when the
// enable_raptor_mini_for_all_clients flag is set.
const RaptorModel = "raptor-mini-preview"

// ModelChoice is the resolved (model name, credential) pair for one
// request. It is computed fresh from the current config snapshot on every
// request and never persisted, so a config change takes effect on the
// next request without a restart.
type ModelChoice struct {
	Model  string
	APIKey string
}

// Resolve picks the model and credential for one request.
//
// The raptor flag wins over any configured model, for every client.
// Entitlement is not pre-validated here — if the account cannot access
// the raptor model, the completion client surfaces the authorization
// failure. Resolve is pure: identical inputs always yield identical
// output, so callers recompute it per request without caching.
func Resolve(cfg *config.Config, clientID string) ModelChoice {
	model := cfg.OpenAIModel
	if model == "" {
		model = config.DefaultModel
	}
	if cfg.EnableRaptorMiniForAllClients {
		model = RaptorModel
	}

	return ModelChoice{
		Model:  model,
		APIKey: cfg.OpenAIAPIKey,
	}
}
