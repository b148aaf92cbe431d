package model

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

// EnvAliasPrefix is the prefix of the environment variables consulted when a
// bare alias is resolved: GEN_MODEL_<ALIAS_UPPERCASE> must hold a
// "provider:modelId" string.
const EnvAliasPrefix = "GEN_MODEL_"

// Factory builds a backend for one provider from a model id.
type Factory func(modelID string) (Model, error)

var (
	providerMu sync.RWMutex
	providers  = map[string]Factory{}
)

// RegisterProvider installs a provider factory. Provider packages call this
// from init; callers opt in by blank-importing them.
func RegisterProvider(name string, factory Factory) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || factory == nil {
		return
	}
	providerMu.Lock()
	providers[name] = factory
	providerMu.Unlock()
}

// Providers lists the registered provider names.
func Providers() []string {
	providerMu.RLock()
	defer providerMu.RUnlock()
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseSpec splits a "provider:modelId" string, resolving bare aliases via
// the GEN_MODEL_<ALIAS> environment convention. Failures are configuration
// errors, raised before any model call.
func ParseSpec(spec string) (provider, modelID string, err error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return "", "", fmt.Errorf("model: spec is empty")
	}
	if !strings.Contains(spec, ":") {
		envName := EnvAliasPrefix + strings.ToUpper(spec)
		resolved := strings.TrimSpace(os.Getenv(envName))
		if resolved == "" {
			return "", "", fmt.Errorf("model: alias %q: environment variable %s is not set", spec, envName)
		}
		if !strings.Contains(resolved, ":") {
			return "", "", fmt.Errorf("model: alias %q: %s=%q is not a provider:modelId string", spec, envName, resolved)
		}
		spec = resolved
	}
	provider, modelID, _ = strings.Cut(spec, ":")
	provider = strings.ToLower(strings.TrimSpace(provider))
	modelID = strings.TrimSpace(modelID)
	if provider == "" || modelID == "" {
		return "", "", fmt.Errorf("model: malformed spec %q, want provider:modelId", spec)
	}
	return provider, modelID, nil
}

// Resolve turns a model spec into a concrete backend.
func Resolve(spec string) (Model, error) {
	provider, modelID, err := ParseSpec(spec)
	if err != nil {
		return nil, err
	}
	providerMu.RLock()
	factory, ok := providers[provider]
	providerMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("model: unknown provider %q (registered: %s)", provider, strings.Join(Providers(), ", "))
	}
	mdl, err := factory(modelID)
	if err != nil {
		return nil, fmt.Errorf("model: provider %s: %w", provider, err)
	}
	return mdl, nil
}
