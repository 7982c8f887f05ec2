package app

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/randomizedcoder/go-desktop-shell/internal/events"
)

func TestHeadlessRuntime_Emit(t *testing.T) {
	var buf bytes.Buffer
	r := NewHeadlessRuntime(&buf, newTestLogger())

	if err := r.Emit(events.BackendError, "Backend process terminated (exit code 1)"); err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
	if err := r.Emit("other", "x"); err != nil {
		t.Fatalf("Emit() error = %v", err)
	}

	want := "[backend-error] Backend process terminated (exit code 1)\n[other] x\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
	if evs := r.Events(); len(evs) != 2 || evs[0].Name != events.BackendError {
		t.Errorf("Events() = %+v", evs)
	}
}

func TestHeadlessRuntime_NilOutput(t *testing.T) {
	r := NewHeadlessRuntime(nil, nil)
	if err := r.Emit("x", "y"); err != nil {
		t.Errorf("Emit() error = %v", err)
	}
	if r.Name() != "headless" {
		t.Errorf("Name() = %q", r.Name())
	}
}

func TestHeadlessRuntime_RunUntilCancel(t *testing.T) {
	r := NewHeadlessRuntime(nil, newTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	select {
	case <-done:
		t.Fatal("Run() returned before cancel")
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}
