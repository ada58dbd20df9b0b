package capture

import (
	"errors"
	"testing"
)

type fakeController struct {
	running bool
	starts  int
	stops   int
	err     error
}

func (f *fakeController) Start(host, port string) error {
	if f.err != nil {
		return f.err
	}
	if !f.running {
		f.starts++
		f.running = true
	}
	return nil
}

func (f *fakeController) Stop() error {
	if f.running {
		f.stops++
		f.running = false
	}
	return nil
}

func (f *fakeController) Running() bool { return f.running }

func TestDemandFirstInLastOut(t *testing.T) {
	ctrl := &fakeController{}
	d := NewDemand(ctrl)

	for range 3 {
		if err := d.Acquire("kindle", "2222"); err != nil {
			t.Fatalf("Acquire: %v", err)
		}
	}
	if ctrl.starts != 1 || d.Viewers() != 3 {
		t.Fatalf("starts=%d viewers=%d", ctrl.starts, d.Viewers())
	}

	d.Release()
	d.Release()
	if ctrl.stops != 0 {
		t.Fatal("stopped while viewers remain")
	}
	d.Release()
	if ctrl.stops != 1 {
		t.Fatalf("stops = %d, want 1", ctrl.stops)
	}
	d.Release()
	if d.Viewers() != 0 || ctrl.stops != 1 {
		t.Errorf("extra Release changed state: viewers=%d stops=%d", d.Viewers(), ctrl.stops)
	}
}

func TestDemandManualStartOutlivesViewers(t *testing.T) {
	ctrl := &fakeController{}
	d := NewDemand(ctrl)

	if err := d.Start("kindle", "2222"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := d.Acquire("kindle", "2222"); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	d.Release()
	if !ctrl.running {
		t.Fatal("manual stream stopped by last viewer")
	}
	if err := d.Stop(); err != nil || ctrl.running {
		t.Fatalf("Stop: %v running=%v", err, ctrl.running)
	}
}

func TestDemandAcquireError(t *testing.T) {
	boom := errors.New("spawn failed")
	d := NewDemand(&fakeController{err: boom})
	if err := d.Acquire("kindle", "2222"); !errors.Is(err, boom) {
		t.Fatalf("Acquire = %v", err)
	}
	if d.Viewers() != 0 {
		t.Errorf("viewers = %d after failed Acquire", d.Viewers())
	}
}
