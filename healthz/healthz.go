// Package healthz provides liveness and readiness handlers.
package healthz

import (
	"net/http"
	"sync/atomic"
)

// Gate tracks whether the process has finished bootstrapping.
type Gate struct {
	ready atomic.Bool
}

func New() *Gate {
	return &Gate{}
}

// SetReady marks the process ready to serve.
func (g *Gate) SetReady() {
	g.ready.Store(true)
}

// Healthz always reports healthy while the process is up.
func (g *Gate) Healthz() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("200 OK"))
	})
}

// Readyz reports 503 until SetReady has been called.
func (g *Gate) Readyz() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.ready.Load() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("200 OK"))
	})
}
