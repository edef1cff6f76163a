package models

import "testing"

func TestCanTransitionFromPending(t *testing.T) {
	if !CanTransition(OrderStatusPending, OrderStatusProcessing) {
		t.Fatal("expected pending -> processing to be allowed")
	}
	if !CanTransition(OrderStatusPending, OrderStatusCancelled) {
		t.Fatal("expected pending -> cancelled to be allowed")
	}
	if CanTransition(OrderStatusPending, OrderStatusDelivered) {
		t.Fatal("expected pending -> delivered to be rejected")
	}
}

func TestCanTransitionTerminalStates(t *testing.T) {
	for _, to := range []OrderStatus{OrderStatusPending, OrderStatusProcessing, OrderStatusCancelled} {
		if CanTransition(OrderStatusCancelled, to) {
			t.Fatalf("cancelled must be terminal, got transition to %s", to)
		}
	}
	if CanTransition(OrderStatusProcessing, OrderStatusPending) {
		t.Fatal("processing must never revert to pending")
	}
}
