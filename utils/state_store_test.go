package utils

import (
	"context"
	"testing"
	"time"
)

func TestStateStoreSingleUse(t *testing.T) {
	store := NewStateStore(nil, time.Minute)
	ctx := context.Background()

	state, err := store.Issue(ctx)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !store.Consume(ctx, state) {
		t.Fatal("fresh state should be accepted")
	}
	if store.Consume(ctx, state) {
		t.Fatal("state must not be accepted twice")
	}
	if store.Consume(ctx, "unknown") {
		t.Fatal("unknown state accepted")
	}
}

func TestStateStoreExpiry(t *testing.T) {
	store := NewStateStore(nil, time.Nanosecond)
	state, _ := store.Issue(context.Background())
	time.Sleep(time.Millisecond)
	if store.Consume(context.Background(), state) {
		t.Fatal("expired state accepted")
	}
}
