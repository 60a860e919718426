package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gkash/ussd/backend/internal/clock"
	"github.com/gkash/ussd/backend/internal/model/ussd"
	"github.com/gkash/ussd/backend/internal/service/session"
)

func newTestStore() (*session.Store, *clock.Fake) {
	fake := clock.NewFake(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	store := session.NewStore(session.Options{Clock: fake})
	return store, fake
}

func TestCreateStartsInWelcome(t *testing.T) {
	store, _ := newTestStore()

	created := store.Create("s-1", "+254712345678")
	if created.State != ussd.Welcome {
		t.Fatalf("expected WELCOME, got %s", created.State)
	}

	got, ok := store.Get("s-1")
	if !ok {
		t.Fatal("expected session to exist")
	}
	if got.PhoneNumber != "+254712345678" {
		t.Fatalf("unexpected phone %s", got.PhoneNumber)
	}
}

func TestCreateOverwritesExisting(t *testing.T) {
	store, _ := newTestStore()
	store.Create("s-1", "+254712345678")
	if err := store.SetState("s-1", ussd.MainMenu); err != nil {
		t.Fatalf("SetState err: %v", err)
	}
	if err := store.SetFormField("s-1", ussd.FieldName, "Jane"); err != nil {
		t.Fatalf("SetFormField err: %v", err)
	}

	store.Create("s-1", "+254700000000")

	got, _ := store.Get("s-1")
	if got.State != ussd.Welcome || got.Form.Name != "" || got.PhoneNumber != "+254700000000" {
		t.Fatalf("expected fresh session, got %+v", got)
	}
}

func TestGetTreatsStaleAsAbsentBeforeSweep(t *testing.T) {
	store, fake := newTestStore()
	store.Create("s-1", "+254712345678")

	fake.Advance(session.DefaultTimeout - time.Second)
	if _, ok := store.Get("s-1"); !ok {
		t.Fatal("session should still be live")
	}

	// Get refreshed activity, so another near-timeout wait keeps it alive.
	fake.Advance(session.DefaultTimeout - time.Second)
	if _, ok := store.Get("s-1"); !ok {
		t.Fatal("activity refresh on read did not extend session")
	}

	fake.Advance(session.DefaultTimeout)
	if _, ok := store.Get("s-1"); ok {
		t.Fatal("stale session should be unreachable")
	}
	if store.Len() != 0 {
		t.Fatalf("expected no live sessions, got %d", store.Len())
	}
}

func TestUpdateIgnoresAbsentSession(t *testing.T) {
	store, _ := newTestStore()
	if err := store.SetState("missing", ussd.MainMenu); err != nil {
		t.Fatalf("SetState on absent session should be a no-op, got %v", err)
	}
	if _, ok := store.Get("missing"); ok {
		t.Fatal("update must not create sessions")
	}
}

func TestUpdateRejectsUnknownState(t *testing.T) {
	store, _ := newTestStore()
	store.Create("s-1", "+254712345678")

	err := store.SetState("s-1", ussd.State("LIMBO"))
	if !errors.Is(err, session.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}

	got, _ := store.Get("s-1")
	if got.State != ussd.Welcome {
		t.Fatalf("state changed to %s", got.State)
	}
}

func TestFormFields(t *testing.T) {
	store, _ := newTestStore()
	store.Create("s-1", "+254712345678")

	if err := store.SetFormField("s-1", ussd.FieldName, "Jane Doe"); err != nil {
		t.Fatalf("SetFormField err: %v", err)
	}
	if err := store.SetFormField("s-1", ussd.FieldAmount, decimal.NewFromInt(500)); err != nil {
		t.Fatalf("SetFormField amount err: %v", err)
	}

	name, ok := store.GetFormField("s-1", ussd.FieldName)
	if !ok || name.(string) != "Jane Doe" {
		t.Fatalf("unexpected name %v", name)
	}
	amount, ok := store.GetFormField("s-1", ussd.FieldAmount)
	if !ok || !amount.(decimal.Decimal).Equal(decimal.NewFromInt(500)) {
		t.Fatalf("unexpected amount %v", amount)
	}

	if err := store.SetFormField("s-1", ussd.FieldAmount, "500"); !errors.Is(err, session.ErrFormFieldType) {
		t.Fatalf("expected ErrFormFieldType, got %v", err)
	}
	if err := store.SetFormField("s-1", "colour", "blue"); !errors.Is(err, session.ErrUnknownFormField) {
		t.Fatalf("expected ErrUnknownFormField, got %v", err)
	}

	if err := store.SetFormField("missing", ussd.FieldName, "x"); err != nil {
		t.Fatalf("write to absent session should be silent, got %v", err)
	}
	if _, ok := store.GetFormField("missing", ussd.FieldName); ok {
		t.Fatal("expected absent field for missing session")
	}
}

func TestDestroyClearsFormData(t *testing.T) {
	store, _ := newTestStore()
	store.Create("s-1", "+254712345678")
	store.SetFormField("s-1", ussd.FieldPIN, "5678")

	store.Destroy("s-1")

	if _, ok := store.Get("s-1"); ok {
		t.Fatal("expected session removed")
	}
	store.Create("s-1", "+254712345678")
	if _, ok := store.GetFormField("s-1", ussd.FieldPIN); ok {
		t.Fatal("form data survived destroy")
	}
}

func TestSweepRemovesOnlyStale(t *testing.T) {
	store, fake := newTestStore()
	store.Create("old", "+254712345678")
	fake.Advance(3 * time.Minute)
	store.Create("new", "+254712345679")
	fake.Advance(2 * time.Minute)

	if removed := store.Sweep(); removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if _, ok := store.Get("new"); !ok {
		t.Fatal("fresh session should survive sweep")
	}
}

func TestSweepLoopEvictsWithinOneInterval(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	swept := make(chan int, 16)
	store := session.NewStore(session.Options{
		Clock: fake,
		OnSweep: func(n int) {
			select {
			case swept <- n:
			default:
			}
		},
	})
	store.Start(context.Background())
	defer store.Stop()

	store.Create("s-1", "+254712345678")
	fake.Advance(session.DefaultTimeout + session.DefaultSweepInterval)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case n := <-swept:
			if n == 1 {
				if store.Len() != 0 {
					t.Fatalf("expected empty store, got %d", store.Len())
				}
				return
			}
		case <-deadline:
			t.Fatal("sweep loop did not evict stale session")
		}
	}
}

func TestStopIsIdempotent(t *testing.T) {
	store, _ := newTestStore()
	store.Start(context.Background())
	store.Start(context.Background())
	store.Stop()
	store.Stop()
}

func TestConcurrentAccessAcrossSessions(t *testing.T) {
	store, fake := newTestStore()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i%26))
			store.Create(id, "+254712345678")
			store.SetState(id, ussd.MainMenu)
			store.SetFormField(id, ussd.FieldName, "Jane")
			store.Get(id)
			store.Sweep()
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 10; i++ {
			fake.Advance(time.Second)
			store.Sweep()
		}
	}()
	wg.Wait()

	for _, id := range []string{"a", "b"} {
		got, ok := store.Get(id)
		if ok && !got.State.Valid() {
			t.Fatalf("session %s has invalid state %s", id, got.State)
		}
	}
}
