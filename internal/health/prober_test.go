package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bluegreen-server/internal/domain"
	"bluegreen-server/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbe_HealthyOn200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewProber(time.Second, logger.Nop())
	res := p.Probe(context.Background(), srv.URL+"/api/health", time.Second)

	assert.True(t, res.Healthy)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Empty(t, res.Error)
}

func TestProbe_UnhealthyStatuses(t *testing.T) {
	for _, code := range []int{http.StatusNoContent, http.StatusMovedPermanently, http.StatusServiceUnavailable} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if code == http.StatusMovedPermanently {
				w.Header().Set("Location", "/elsewhere")
			}
			w.WriteHeader(code)
		}))

		res := NewProber(time.Second, logger.Nop()).Probe(context.Background(), srv.URL, time.Second)
		srv.Close()

		assert.False(t, res.Healthy, "status %d", code)
		assert.Equal(t, code, res.StatusCode)
	}
}

func TestProbe_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	res := NewProber(time.Second, logger.Nop()).Probe(context.Background(), srv.URL, 50*time.Millisecond)

	assert.False(t, res.Healthy)
	assert.NotEmpty(t, res.Error)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestProbe_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	res := NewProber(time.Second, logger.Nop()).Probe(context.Background(), addr, time.Second)
	assert.False(t, res.Healthy)
	assert.Zero(t, res.StatusCode)
}

func TestProbe_InvalidURL(t *testing.T) {
	res := NewProber(time.Second, logger.Nop()).Probe(context.Background(), "::not a url", time.Second)
	assert.False(t, res.Healthy)
	assert.Contains(t, res.Error, "invalid url")
}

func TestCheck_UsesSlotAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	app := &domain.AppDefinition{
		Name:         "sample",
		HealthPath:   "/healthz",
		HealthScheme: "http",
		Slots: map[domain.Slot]domain.SlotTarget{
			domain.SlotBlue:  {Address: "127.0.0.1:1"},
			domain.SlotGreen: {Address: strings.TrimPrefix(srv.URL, "http://")},
		},
	}

	p := NewProber(time.Second, logger.Nop())
	require.True(t, p.Check(context.Background(), app, domain.SlotGreen).Healthy)
	assert.False(t, p.Check(context.Background(), app, domain.SlotBlue).Healthy)
}
