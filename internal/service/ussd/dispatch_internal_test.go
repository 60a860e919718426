package ussd

import (
	"context"
	"testing"

	"github.com/gkash/ussd/backend/internal/model/account"
	"github.com/gkash/ussd/backend/internal/model/ussd"
	"github.com/gkash/ussd/backend/internal/service/session"
)

func TestDispatchUnmappedStateEndsSession(t *testing.T) {
	store := session.NewStore(session.Options{})
	svc := NewService(store, account.NewCatalog(account.Seed()), nil, Options{})
	delete(svc.handlers, ussd.MainMenu)

	store.Create("s1", "+254712345678")
	if err := store.SetState("s1", ussd.MainMenu); err != nil {
		t.Fatal(err)
	}

	if got := svc.Handle(context.Background(), "s1", "+254712345678", "1"); got != "END Invalid session" {
		t.Fatalf("response = %q", got)
	}
	if _, ok := store.Get("s1"); ok {
		t.Fatal("session should be destroyed")
	}
}

func TestEveryStateHasHandler(t *testing.T) {
	svc := NewService(session.NewStore(session.Options{}), account.NewCatalog(account.Seed()), nil, Options{})
	for _, st := range ussd.AllStates() {
		if _, ok := svc.handlers[st]; !ok {
			t.Errorf("no handler for %s", st)
		}
	}
}
