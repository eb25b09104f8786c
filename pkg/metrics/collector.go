package metrics

import (
	"time"

	"github.com/cuemby/sentryd/pkg/lifecycle"
)

// Supervisor is the slice of *lifecycle.Supervisor the collector depends
// on: a read-only snapshot, nothing else.
type Supervisor interface {
	Snapshot() lifecycle.AppState
}

// Collector periodically snapshots the lifecycle supervisor's state into
// the lifecycle gauge.
type Collector struct {
	supervisor Supervisor
	stopCh     chan struct{}

	lastFrontend string
	lastBackend  string
}

// NewCollector creates a new metrics collector.
func NewCollector(sup Supervisor) *Collector {
	return &Collector{
		supervisor: sup,
		stopCh:     make(chan struct{}),
	}
}

// Start begins collecting metrics every 15 seconds.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	state := c.supervisor.Snapshot()

	frontend := state.Frontend.String()
	backend := state.Backend.String()

	if c.lastFrontend != "" && c.lastBackend != "" &&
		(c.lastFrontend != frontend || c.lastBackend != backend) {
		LifecycleState.WithLabelValues(c.lastFrontend, c.lastBackend).Set(0)
	}

	LifecycleState.WithLabelValues(frontend, backend).Set(1)
	c.lastFrontend = frontend
	c.lastBackend = backend
}
