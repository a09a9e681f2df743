package tracker

import (
	"fmt"
	"os"
	"sort"
	"sync"
)

// Config is everything a provider needs to talk to one repository.
type Config struct {
	Owner string
	Repo  string
	// BaseURL points at a self-hosted instance; empty means the public
	// service.
	BaseURL string
	// Token is the API credential. The ghcli provider ignores it and
	// relies on gh's own auth.
	Token string
}

// Factory builds a provider from config.
type Factory func(cfg Config) (Provider, error)

var (
	providersMu sync.RWMutex
	providers   = map[string]Factory{}
)

// RegisterProvider makes a provider constructor available by name. It is
// called from provider package init functions; registering the same name
// twice panics.
func RegisterProvider(name string, f Factory) {
	providersMu.Lock()
	defer providersMu.Unlock()
	if _, dup := providers[name]; dup {
		panic("tracker: duplicate provider " + name)
	}
	providers[name] = f
}

// ProviderNames returns the registered provider names, sorted.
func ProviderNames() []string {
	providersMu.RLock()
	defer providersMu.RUnlock()
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewProvider builds the named provider.
func NewProvider(name string, cfg Config) (Provider, error) {
	providersMu.RLock()
	f, ok := providers[name]
	providersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown tracker provider %q (have %v)", name, ProviderNames())
	}
	return f(cfg)
}

// TokenFromEnv resolves the API token for a provider: the explicit
// override variable when set, otherwise the provider's conventional one.
func TokenFromEnv(provider, overrideVar string) string {
	if overrideVar != "" {
		return os.Getenv(overrideVar)
	}
	switch provider {
	case "gitlab":
		return os.Getenv("GITLAB_TOKEN")
	default:
		return os.Getenv("GITHUB_TOKEN")
	}
}
