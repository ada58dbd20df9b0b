package capture

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Controller is the part of Session that Demand drives.
type Controller interface {
	Start(host, port string) error
	Stop() error
	Running() bool
}

// Demand starts the capture when the first viewer arrives and stops it when
// the last one leaves. A stream started explicitly through Start stays up
// until Stop, whatever the viewer count.
type Demand struct {
	ctrl Controller

	mu      sync.Mutex
	viewers int
	auto    bool
}

// NewDemand wraps ctrl.
func NewDemand(ctrl Controller) *Demand {
	return &Demand{ctrl: ctrl}
}

// Acquire registers a viewer, starting the capture for host:port if nothing
// is running. On error the viewer is not registered.
func (d *Demand) Acquire(host, port string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.ctrl.Running() {
		if err := d.ctrl.Start(host, port); err != nil {
			return err
		}
		d.auto = true
	}
	d.viewers++
	return nil
}

// Release unregisters a viewer and stops an auto-started capture once no
// viewers remain.
func (d *Demand) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.viewers == 0 {
		return
	}
	d.viewers--
	if d.viewers > 0 || !d.auto {
		return
	}
	d.auto = false
	log.Info().Str("module", "capture").Msg("last viewer left, stopping capture")
	if err := d.ctrl.Stop(); err != nil {
		log.Warn().Str("module", "capture").Err(err).Msg("stop after last viewer")
	}
}

// Start starts the capture explicitly; it outlives its viewers.
func (d *Demand) Start(host, port string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ctrl.Start(host, port); err != nil {
		return err
	}
	d.auto = false
	return nil
}

// Stop stops the capture regardless of viewers.
func (d *Demand) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.auto = false
	return d.ctrl.Stop()
}

// Viewers returns the number of registered viewers.
func (d *Demand) Viewers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.viewers
}
