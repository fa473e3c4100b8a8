// Package actuatortest provides a vendor-agnostic conformance suite for
// actuator.Port implementations. Any driver (simulated or real) must pass the
// same suite, so normalized error behavior and home idempotence are verified
// identically regardless of vendor.
package actuatortest

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/arm-control/acc/internal/actuator"
)

// RunConformance runs the Port conformance suite against a fresh instance per
// subtest. The factory must return a connected-ready port.
func RunConformance(t *testing.T, newPort func() actuator.Port) {
	t.Helper()

	t.Run("ConnectThenApply", func(t *testing.T) {
		p := newPort()
		ctx := context.Background()
		if err := p.Connect(ctx); err != nil {
			t.Fatalf("Connect: %v", err)
		}
		chunk := actuator.Chunk{Targets: make([]float64, p.DOF())}
		if err := p.Apply(ctx, chunk); err != nil {
			t.Fatalf("Apply after Connect: %v", err)
		}
	})

	t.Run("ApplyDimensionMismatch", func(t *testing.T) {
		p := newPort()
		ctx := context.Background()
		if err := p.Connect(ctx); err != nil {
			t.Fatalf("Connect: %v", err)
		}
		bad := actuator.Chunk{Targets: make([]float64, p.DOF()+1)}
		err := p.Apply(ctx, bad)
		if err == nil {
			t.Fatal("Apply with wrong dimensionality must fail")
		}
		if !errors.Is(err, actuator.ErrInvalidInput) {
			t.Errorf("want INVALID_INPUT, got %v", err)
		}
	})

	t.Run("HomeIdempotent", func(t *testing.T) {
		p := newPort()
		ctx := context.Background()
		if err := p.Connect(ctx); err != nil {
			t.Fatalf("Connect: %v", err)
		}
		if err := p.Home(ctx); err != nil {
			t.Fatalf("first Home: %v", err)
		}
		first, err := p.Observe(ctx)
		if err != nil {
			t.Fatalf("Observe: %v", err)
		}
		if err := p.Home(ctx); err != nil {
			t.Fatalf("second Home: %v", err)
		}
		second, err := p.Observe(ctx)
		if err != nil {
			t.Fatalf("Observe: %v", err)
		}
		if first.Measured() && second.Measured() && !reflect.DeepEqual(first.Joints, second.Joints) {
			t.Errorf("repeat Home changed reported pose: %v vs %v", first.Joints, second.Joints)
		}
	})

	t.Run("ObserveSourceDeclared", func(t *testing.T) {
		p := newPort()
		ctx := context.Background()
		if err := p.Connect(ctx); err != nil {
			t.Fatalf("Connect: %v", err)
		}
		obs, err := p.Observe(ctx)
		if err != nil {
			t.Fatalf("Observe: %v", err)
		}
		switch obs.Source {
		case actuator.SourceMeasured, actuator.SourceCommanded, actuator.SourceUnknown:
		default:
			t.Errorf("undeclared observation source %q", obs.Source)
		}
		if obs.Source == actuator.SourceUnknown && obs.Joints != nil {
			t.Errorf("unknown source must not carry joint values")
		}
	})

	t.Run("ApplyHonorsCancelledContext", func(t *testing.T) {
		p := newPort()
		if err := p.Connect(context.Background()); err != nil {
			t.Fatalf("Connect: %v", err)
		}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		start := time.Now()
		err := p.Apply(ctx, actuator.Chunk{Targets: make([]float64, p.DOF())})
		if err == nil {
			t.Fatal("Apply with cancelled context must fail")
		}
		if time.Since(start) > time.Second {
			t.Errorf("Apply blocked despite cancelled context")
		}
	})
}
