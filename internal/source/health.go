package source

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"

	"fixloop/internal/config"
	"fixloop/internal/logging"
)

// ServiceHealth is the probe result for one endpoint.
type ServiceHealth struct {
	Name    string
	URL     string
	Healthy bool
	Detail  string
}

// HealthReport aggregates one probe sweep.
type HealthReport struct {
	Results []ServiceHealth
}

// AllHealthy reports whether every probed endpoint answered 200.
func (r HealthReport) AllHealthy() bool {
	for _, res := range r.Results {
		if !res.Healthy {
			return false
		}
	}
	return true
}

// Unhealthy returns the failing endpoints.
func (r HealthReport) Unhealthy() []ServiceHealth {
	var out []ServiceHealth
	for _, res := range r.Results {
		if !res.Healthy {
			out = append(out, res)
		}
	}
	return out
}

// HealthAdapter probes every configured service root plus the backend
// health endpoint. It produces no error events; its report gates
// whether the loop may start at all.
type HealthAdapter struct {
	client     *http.Client
	services   []config.Service
	backendURL string
}

// NewHealthAdapter creates the probe with a per-request timeout.
func NewHealthAdapter(cfg config.HealthConfig, services []config.Service, backendURL string) *HealthAdapter {
	return &HealthAdapter{
		client:     &http.Client{Timeout: cfg.ProbeTimeout()},
		services:   services,
		backendURL: backendURL,
	}
}

// Check probes all endpoints concurrently, bounded to a small fan-out.
func (a *HealthAdapter) Check(ctx context.Context) HealthReport {
	type target struct{ name, url string }

	targets := make([]target, 0, len(a.services)+1)
	for _, svc := range a.services {
		targets = append(targets, target{svc.Name, svc.URL})
	}
	if a.backendURL != "" {
		targets = append(targets, target{"backend", a.backendURL})
	}

	results := make([]ServiceHealth, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, tgt := range targets {
		i, tgt := i, tgt
		g.Go(func() error {
			results[i] = a.probe(gctx, tgt.name, tgt.url)
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range results {
		if !res.Healthy {
			logging.HealthWarn("%s is not healthy: %s", res.Name, res.Detail)
		}
	}
	return HealthReport{Results: results}
}

func (a *HealthAdapter) probe(ctx context.Context, name, url string) ServiceHealth {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ServiceHealth{Name: name, URL: url, Detail: err.Error()}
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return ServiceHealth{Name: name, URL: url, Detail: "not responding"}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ServiceHealth{
			Name: name, URL: url,
			Detail: fmt.Sprintf("status %d", resp.StatusCode),
		}
	}

	logging.Health("%s is healthy", name)
	return ServiceHealth{Name: name, URL: url, Healthy: true}
}
