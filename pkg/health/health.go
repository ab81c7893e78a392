// Package health provides readiness tracking and health check handlers.
package health

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
)

const (
	stateStarting int32 = iota
	stateReady
	stateDraining
)

// Checker tracks server readiness. Safe for concurrent use.
type Checker struct {
	state atomic.Int32
}

// NewChecker creates a Checker in the starting state.
func NewChecker() *Checker {
	return &Checker{}
}

// SetReady marks the server ready to accept traffic.
func (c *Checker) SetReady() {
	c.state.Store(stateReady)
}

// SetDraining marks the server as shutting down.
func (c *Checker) SetDraining() {
	c.state.Store(stateDraining)
}

// State returns the current state as a string.
func (c *Checker) State() string {
	switch c.state.Load() {
	case stateReady:
		return "ready"
	case stateDraining:
		return "draining"
	default:
		return "starting"
	}
}

// LivenessHandler always responds 200; use for /healthz.
func (*Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, "ok")
	}
}

// ReadinessHandler responds 200 when ready, 503 otherwise; use for /readyz.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		status := http.StatusOK
		if c.state.Load() != stateReady {
			status = http.StatusServiceUnavailable
		}
		writeStatus(w, status, c.State())
	}
}

func writeStatus(w http.ResponseWriter, code int, state string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": state})
}
