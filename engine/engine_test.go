package engine

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/cpcf/forgekit/worker"
)

type fakeDevice struct {
	started, stopped atomic.Bool
	startErr         error
}

func (d *fakeDevice) StartLoop() error {
	d.started.Store(true)
	return d.startErr
}

func (d *fakeDevice) StopLoop() error {
	d.stopped.Store(true)
	return nil
}

func TestNewWiresCollaboratorsAndStartStop(t *testing.T) {
	dev := &fakeDevice{}
	e := New(WithPoolWorkers(2), WithLoaderThreads(1), WithDevice(dev))

	if e.Pool() == nil || e.Assets() == nil || e.GPUFreeQueue() == nil || e.Commutator() == nil {
		t.Fatal("expected all core collaborators to be wired")
	}
	if _, ok := e.Commutator().GetWorker(0); !ok {
		t.Fatal("expected render worker registered at id 0")
	}
	if _, ok := e.Commutator().GetWorker(1); !ok {
		t.Fatal("expected update worker registered at id 1")
	}

	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !dev.started.Load() {
		t.Fatal("expected device.StartLoop to be called")
	}
	if err := e.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !dev.stopped.Load() {
		t.Fatal("expected device.StopLoop to be called")
	}
}

func TestStartPropagatesDeviceError(t *testing.T) {
	dev := &fakeDevice{startErr: errors.New("boom")}
	e := New(WithPoolWorkers(1), WithLoaderThreads(1), WithDevice(dev))
	defer e.Stop()

	if err := e.Start(); err == nil {
		t.Fatal("expected Start to propagate device start error")
	}
}

type widget struct{ name string }

func TestRegisterAndGetModule(t *testing.T) {
	e := New(WithPoolWorkers(1), WithLoaderThreads(1))
	defer e.Stop()

	if _, ok := GetModule[*widget](e); ok {
		t.Fatal("expected no module registered yet")
	}
	RegisterModule(e, &widget{name: "gizmo"})
	got, ok := GetModule[*widget](e)
	if !ok || got.name != "gizmo" {
		t.Fatalf("expected registered widget, got %+v ok=%v", got, ok)
	}
}

func TestEngineConfigValidateRejectsNegativeFPS(t *testing.T) {
	cfg := EngineConfig{FPSLimitDraw: FPSLimit{FPSMax: -1, LimitType: worker.DontCare}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for negative fpsMax")
	}
}

func TestEngineConfigValidateAcceptsZeroFPS(t *testing.T) {
	cfg := EngineConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected zero-value config to validate, got %v", err)
	}
}
