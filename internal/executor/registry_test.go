package executor

import (
	"fmt"
	"testing"
	"time"

	"github.com/arm-control/acc/internal/policy"
)

func TestRegistry_GetReturnsCopy(t *testing.T) {
	r := NewRegistry(0)
	r.Create(Record{ID: "a", State: StatePlanning, Phase: policy.PhasePlanning, CreatedAt: time.Now()})

	rec, ok := r.Get("a")
	if !ok {
		t.Fatal("record not found")
	}
	rec.State = StateFailed

	again, _ := r.Get("a")
	if again.State != StatePlanning {
		t.Fatalf("registry mutated through a copy: %s", again.State)
	}
}

func TestRegistry_Update(t *testing.T) {
	r := NewRegistry(0)
	r.Create(Record{ID: "a", State: StatePlanning})

	r.Update("a", func(rec *Record) {
		rec.State = StateExecuting
		rec.ChunksApplied = 3
	})
	rec, _ := r.Get("a")
	if rec.State != StateExecuting || rec.ChunksApplied != 3 {
		t.Fatalf("unexpected record %+v", rec)
	}

	// unknown id is a no-op
	r.Update("missing", func(rec *Record) { rec.State = StateFailed })
}

func TestRegistry_EvictsOldestTerminal(t *testing.T) {
	r := NewRegistry(3)
	for i := 0; i < 3; i++ {
		r.Create(Record{ID: fmt.Sprintf("t%d", i), State: StateSucceeded})
	}
	r.Create(Record{ID: "new", State: StatePlanning})

	if _, ok := r.Get("t0"); ok {
		t.Fatal("oldest terminal record not evicted")
	}
	if _, ok := r.Get("t1"); !ok {
		t.Fatal("younger terminal record evicted")
	}
	if _, ok := r.Get("new"); !ok {
		t.Fatal("new record missing")
	}
}

func TestRegistry_NeverEvictsNonTerminal(t *testing.T) {
	r := NewRegistry(2)
	r.Create(Record{ID: "active1", State: StateExecuting})
	r.Create(Record{ID: "active2", State: StatePlanning})
	r.Create(Record{ID: "active3", State: StateExecuting})

	for _, id := range []string{"active1", "active2", "active3"} {
		if _, ok := r.Get(id); !ok {
			t.Fatalf("non-terminal record %s evicted", id)
		}
	}
}

func TestState_Terminal(t *testing.T) {
	for _, tc := range []struct {
		state State
		want  bool
	}{
		{StatePlanning, false},
		{StateExecuting, false},
		{StateHandoffMacro, false},
		{StateSucceeded, true},
		{StateFailed, true},
		{StateAborted, true},
	} {
		if got := tc.state.Terminal(); got != tc.want {
			t.Errorf("%s.Terminal() = %v, want %v", tc.state, got, tc.want)
		}
	}
}
