package collector

import (
	"context"
	"fmt"

	"github.com/ahrav/orderharvest/internal/config"
	domain "github.com/ahrav/orderharvest/internal/domain/session"
)

// ConfigContextProvider answers page-context queries from the host registry:
// the active page is considered eligible when the configured default host is
// registered, and its order-history URL is derived from the host's paths.
type ConfigContextProvider struct{ cfg *config.Config }

var _ domain.PageContextProvider = (*ConfigContextProvider)(nil)

// NewConfigContextProvider creates a provider over the given configuration.
func NewConfigContextProvider(cfg *config.Config) *ConfigContextProvider {
	return &ConfigContextProvider{cfg: cfg}
}

// Context reports eligibility for the configured default host.
func (p *ConfigContextProvider) Context(ctx context.Context) (domain.PageContext, error) {
	host, ok := p.cfg.HostByKey(p.cfg.DefaultHost)
	if !ok {
		return domain.PageContext{}, fmt.Errorf("default host %q is not registered", p.cfg.DefaultHost)
	}
	pc := domain.PageContext{Eligible: true, Host: host.BaseURL}
	if len(host.OrderHistoryPaths) > 0 {
		pc.URL = domain.ResolveURL(host.BaseURL, host.OrderHistoryPaths[0])
	}
	return pc, nil
}

// UnavailableFilterSource is the filter source used when no live collector
// can be queried; callers fall back to the built-in filter list.
type UnavailableFilterSource struct{}

var _ domain.FilterSource = UnavailableFilterSource{}

// AvailableFilters always reports no filters.
func (UnavailableFilterSource) AvailableFilters(ctx context.Context) ([]domain.TimeFilter, error) {
	return nil, nil
}
