// Package health runs periodic component probes and aggregates them
// into a system verdict for the health endpoint.
package health

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"companion-engine/backend/pkg/logger"
)

// Status of a single probed component.
type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

// Component is the last observed state of one probe.
type Component struct {
	Name        string    `json:"name"`
	Status      Status    `json:"status"`
	Description string    `json:"description,omitempty"`
	Error       string    `json:"error,omitempty"`
	LastChecked time.Time `json:"last_checked"`
}

// Check probes one component and reports its status.
type Check func() (Status, string, error)

// Checker runs registered checks on a fixed period. Components marked
// critical pull the whole system down when they fail; the rest only
// show up in the detail view.
type Checker struct {
	mutex      sync.RWMutex
	checks     map[string]Check
	components map[string]*Component
	critical   map[string]bool
	period     time.Duration
	log        *logger.Logger
}

func NewChecker(log *logger.Logger, period time.Duration) *Checker {
	c := &Checker{
		checks:     make(map[string]Check),
		components: make(map[string]*Component),
		critical:   make(map[string]bool),
		period:     period,
		log:        log,
	}
	c.RegisterCheck("self", func() (Status, string, error) {
		return StatusUp, "health checker is running", nil
	})
	return c
}

// RegisterCheck adds a non-critical probe. The component reports down
// until the first run completes.
func (c *Checker) RegisterCheck(name string, check Check) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.checks[name] = check
	c.components[name] = &Component{Name: name, Status: StatusDown, Description: "not checked yet"}
}

// MarkCritical makes a component's failure fail the whole system.
func (c *Checker) MarkCritical(name string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.critical[name] = true
}

// RegisterDatabaseCheck registers the database ping as a critical
// component.
func (c *Checker) RegisterDatabaseCheck(ping func() error) {
	c.RegisterCheck("database", func() (Status, string, error) {
		if err := ping(); err != nil {
			return StatusDown, "database connection failed", err
		}
		return StatusUp, "database connection is established", nil
	})
	c.MarkCritical("database")
}

// RegisterAPICheck probes an upstream HTTP endpoint; non-2xx counts
// as degraded rather than down.
func (c *Checker) RegisterAPICheck(name, endpoint string, client *http.Client) {
	if client == nil {
		client = http.DefaultClient
	}
	c.RegisterCheck("api-"+name, func() (Status, string, error) {
		start := time.Now()
		resp, err := client.Get(endpoint)
		if err != nil {
			return StatusDown, "API request failed", err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return StatusDegraded, fmt.Sprintf("API returned status %d", resp.StatusCode),
				fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}
		return StatusUp, fmt.Sprintf("API is responding (latency: %s)", time.Since(start)), nil
	})
}

// RunChecks executes every registered probe once.
func (c *Checker) RunChecks() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for name, check := range c.checks {
		status, description, err := check()

		component := c.components[name]
		component.Status = status
		component.Description = description
		component.LastChecked = time.Now()
		component.Error = ""

		if err != nil {
			component.Error = err.Error()
			c.log.Error("health check failed",
				"component", name,
				"status", string(status),
				"error", err.Error(),
			)
			continue
		}
		c.log.Debug("health check completed", "component", name, "status", string(status))
	}
}

// Start runs the checks immediately and then on the period.
func (c *Checker) Start() {
	go func() {
		c.RunChecks()
		ticker := time.NewTicker(c.period)
		defer ticker.Stop()
		for range ticker.C {
			c.RunChecks()
		}
	}()
}

// GetStatus returns a snapshot of every component.
func (c *Checker) GetStatus() map[string]*Component {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	out := make(map[string]*Component, len(c.components))
	for k, v := range c.components {
		cp := *v
		out[k] = &cp
	}
	return out
}

// IsSystemHealthy reports whether every critical component is up.
func (c *Checker) IsSystemHealthy() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	for name, component := range c.components {
		if c.critical[name] && component.Status == StatusDown {
			return false
		}
	}
	return true
}
