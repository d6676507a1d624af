package budget

import (
	"testing"
	"time"
)

func TestNewClampsSafetyFactor(t *testing.T) {
	b := New(DefaultCeilings(), 10)
	if b.safetyFactor != 50 {
		t.Fatalf("expected safetyFactor clamped to 50, got %d", b.safetyFactor)
	}
	b = New(DefaultCeilings(), 999)
	if b.safetyFactor != 95 {
		t.Fatalf("expected safetyFactor clamped to 95, got %d", b.safetyFactor)
	}
}

func TestCanContinueTrueBelowThreshold(t *testing.T) {
	b := New(Ceilings{MaxQueries: 100, MaxMutations: 100}, 80)
	b.Count(10, 10)
	if !b.CanContinue() {
		t.Fatal("expected CanContinue to be true well below threshold")
	}
}

func TestCanContinueFalseOnQueryThreshold(t *testing.T) {
	b := New(Ceilings{MaxQueries: 100}, 50)
	b.Count(50, 0)
	if b.CanContinue() {
		t.Fatal("expected CanContinue to be false once queries hit the 50% threshold")
	}
}

func TestCanContinueFalseOnMutationThreshold(t *testing.T) {
	b := New(Ceilings{MaxMutations: 100}, 50)
	b.Count(0, 50)
	if b.CanContinue() {
		t.Fatal("expected CanContinue to be false once mutations hit the 50% threshold")
	}
}

func TestCanContinueFalseOnCPUTimeThreshold(t *testing.T) {
	b := New(Ceilings{MaxCPUTime: 10 * time.Millisecond}, 50)
	time.Sleep(10 * time.Millisecond)
	if b.CanContinue() {
		t.Fatal("expected CanContinue to be false once CPU time exceeds the threshold")
	}
}

func TestCanContinueIgnoresZeroCeilings(t *testing.T) {
	b := New(Ceilings{}, 80)
	b.Count(1_000_000, 1_000_000)
	if !b.CanContinue() {
		t.Fatal("expected a zero ceiling to never trip CanContinue")
	}
}

func TestCountOnNilBudgetIsSafe(t *testing.T) {
	var b *Budget
	b.Count(1, 1)
	if !b.CanContinue() {
		t.Fatal("expected nil *Budget.CanContinue to default to true")
	}
}
