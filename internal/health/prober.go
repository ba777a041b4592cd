// Package health
package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"bluegreen-server/internal/domain"
	"bluegreen-server/internal/logger"
)

const maxDrainBytes = 64 * 1024

// Prober issues single, time bounded GET requests. It never retries and never
// returns transport errors; every failure is an unhealthy result.
type Prober struct {
	client  *http.Client
	timeout time.Duration
	log     logger.Logger
}

func NewProber(timeout time.Duration, log logger.Logger) *Prober {
	return &Prober{
		client: &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		timeout: timeout,
		log:     log,
	}
}

func (p *Prober) Check(ctx context.Context, app *domain.AppDefinition, slot domain.Slot) domain.HealthResult {
	res := p.Probe(ctx, app.HealthURL(slot), p.timeout)
	if !res.Healthy {
		p.log.Debug("health: slot unhealthy", "app", app.Name, "slot", slot, "status_code", res.StatusCode, "error", res.Error)
	}
	return res
}

// Probe reports healthy only for a 200 response received within timeout.
func (p *Prober) Probe(ctx context.Context, rawURL string, timeout time.Duration) domain.HealthResult {
	start := time.Now()
	res := domain.HealthResult{CheckedAt: start}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if _, err := url.ParseRequestURI(rawURL); err != nil {
		res.Error = fmt.Sprintf("invalid url: %v", err)
		return res
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	resp, err := p.client.Do(req)
	res.Latency = time.Since(start)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))

	res.StatusCode = resp.StatusCode
	res.Healthy = resp.StatusCode == http.StatusOK
	if !res.Healthy {
		res.Error = fmt.Sprintf("unexpected status %d", resp.StatusCode)
	}

	return res
}
