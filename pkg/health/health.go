// Package health runs dependency checks for the liveness and readiness
// probes. Required checks fail readiness when down; optional ones (a cache,
// a store only read at startup) can at most degrade it.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

// CheckTimeout bounds every single check.
const CheckTimeout = 2 * time.Second

// Check probes one dependency.
type Check func(ctx context.Context) ComponentHealth

// PingCheck adapts an error-returning probe, such as a Redis or Postgres
// ping. A failing ping marks the component down.
func PingCheck(ping func(ctx context.Context) error) Check {
	return func(ctx context.Context) ComponentHealth {
		if err := ping(ctx); err != nil {
			return ComponentHealth{Status: StatusDown, Message: err.Error()}
		}
		return ComponentHealth{Status: StatusUp}
	}
}

// OptionalCheck reports an unconfigured dependency as degraded.
func OptionalCheck(enabled bool, name string, check Check) Check {
	if enabled {
		return check
	}
	return func(context.Context) ComponentHealth {
		return ComponentHealth{Status: StatusDegraded, Message: name + " disabled"}
	}
}

type ComponentHealth struct {
	Status   Status `json:"status"`
	Message  string `json:"message,omitempty"`
	Latency  string `json:"latency,omitempty"`
	Optional bool   `json:"optional,omitempty"`
}

// Report is the worst status over all components, with every component's
// own result.
type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  string                     `json:"timestamp"`
}

type registered struct {
	check    Check
	optional bool
}

type Checker struct {
	mu      sync.RWMutex
	checks  map[string]registered
	started time.Time
	logger  *slog.Logger
}

func NewChecker() *Checker {
	return &Checker{
		checks:  make(map[string]registered),
		started: time.Now(),
		logger:  slog.Default().With("component", "health"),
	}
}

// Register adds a required check.
func (c *Checker) Register(name string, check Check) {
	c.add(name, registered{check: check})
}

// RegisterOptional adds a check whose failure only degrades the report.
func (c *Checker) RegisterOptional(name string, check Check) {
	c.add(name, registered{check: check, optional: true})
}

func (c *Checker) add(name string, r registered) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = r
}

// Run executes all checks concurrently, each under CheckTimeout.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	checks := make(map[string]registered, len(c.checks))
	for name, r := range c.checks {
		checks[name] = r
	}
	c.mu.RUnlock()

	results := make(chan struct {
		name string
		res  ComponentHealth
	}, len(checks))
	for name, r := range checks {
		go func() {
			checkCtx, cancel := context.WithTimeout(ctx, CheckTimeout)
			defer cancel()
			start := time.Now()
			res := r.check(checkCtx)
			res.Latency = time.Since(start).Round(time.Millisecond).String()
			res.Optional = r.optional
			results <- struct {
				name string
				res  ComponentHealth
			}{name, res}
		}()
	}

	report := Report{
		Status:     StatusUp,
		Components: make(map[string]ComponentHealth, len(checks)),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	for range checks {
		r := <-results
		report.Components[r.name] = r.res
		effective := r.res.Status
		if effective == StatusDown {
			c.logger.Warn("component down", "component_name", r.name, "optional", r.res.Optional, "message", r.res.Message)
			if r.res.Optional {
				effective = StatusDegraded
			}
		}
		report.Status = worse(report.Status, effective)
	}
	return report
}

func worse(a, b Status) Status {
	rank := map[Status]int{StatusUp: 0, StatusDegraded: 1, StatusDown: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// LiveHandler answers liveness probes; it runs no checks.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "alive",
			"uptime": time.Since(c.started).Round(time.Second).String(),
		})
	}
}

// ReadyHandler answers readiness probes: 503 when the report is down, 200
// otherwise.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := c.Run(r.Context())
		status := http.StatusOK
		if report.Status == StatusDown {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, report)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
