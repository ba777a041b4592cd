package http

import (
	"net/http"
	"time"
)

// NewServer leaves WriteTimeout unset: a deploy request stays open for the
// whole pipeline, which is bounded per step instead.
func NewServer(handler http.Handler, addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
