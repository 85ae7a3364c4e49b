package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/opadata/checkout-api/internal/domain"
)

func TestResolveAddressFillsFields(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	f.lookup.addresses["01310100"] = &domain.Address{
		PostalCode:   "01310100",
		Street:       "Avenida Paulista",
		Neighborhood: "Bela Vista",
		City:         "São Paulo",
		State:        "SP",
		Complement:   "de 612 a 1510 - lado par",
	}

	view, _ := f.svc.StartSession(ctx, validParams(), "")

	view, err := f.svc.ResolveAddress(ctx, view.ID, "01310-100")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	addr := view.Registrant.Address
	if addr.Street != "Avenida Paulista" || addr.City != "São Paulo" || addr.State != "SP" {
		t.Errorf("address = %+v", addr)
	}
	if addr.Complement != "de 612 a 1510 - lado par" {
		t.Errorf("complement = %q, should be filled when empty", addr.Complement)
	}
}

func TestResolveAddressKeepsTypedComplement(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	f.lookup.addresses["01310100"] = &domain.Address{
		Street:     "Avenida Paulista",
		City:       "São Paulo",
		State:      "SP",
		Complement: "lado par",
	}

	view, _ := f.svc.StartSession(ctx, validParams(), "")
	typed := "Sala 42"
	f.svc.UpdateRegistrant(ctx, view.ID, &domain.RegistrantUpdate{Complement: &typed})

	view, err := f.svc.ResolveAddress(ctx, view.ID, "01310100")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if view.Registrant.Address.Complement != "Sala 42" {
		t.Errorf("complement = %q, user input must not be overwritten", view.Registrant.Address.Complement)
	}
}

func TestResolveAddressRejectsShortCEP(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	view, _ := f.svc.StartSession(ctx, validParams(), "")

	_, err := f.svc.ResolveAddress(ctx, view.ID, "0131")
	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Fatalf("error = %v, want *domain.ErrValidation", err)
	}
}

func TestResolveAddressNotFoundNotifies(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	view, _ := f.svc.StartSession(ctx, validParams(), "")

	_, err := f.svc.ResolveAddress(ctx, view.ID, "99999999")

	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("error = %v, want *domain.ErrNotFound", err)
	}
	if f.notifier.count() != 1 {
		t.Errorf("notices = %d, want 1", f.notifier.count())
	}

	// The street fields stay editable and empty.
	got, _ := f.svc.GetSession(ctx, view.ID)
	if got.Registrant.Address.Street != "" {
		t.Errorf("street = %q, want empty after failed lookup", got.Registrant.Address.Street)
	}
}

func TestResolveAddressLookupFailureNotifies(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	f.lookup.errs["01310100"] = &domain.ErrLookupFailed{Err: errors.New("connection refused")}

	view, _ := f.svc.StartSession(ctx, validParams(), "")

	_, err := f.svc.ResolveAddress(ctx, view.ID, "01310100")
	var lookupFailed *domain.ErrLookupFailed
	if !errors.As(err, &lookupFailed) {
		t.Fatalf("error = %v, want *domain.ErrLookupFailed", err)
	}
	if f.notifier.count() != 1 {
		t.Errorf("notices = %d, want 1", f.notifier.count())
	}
}

// A slow lookup must not overwrite the result of a newer one: the user
// typed a code, regretted it, and typed another before the first answer
// arrived.
func TestResolveAddressSupersededLookupDiscarded(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	slow := make(chan struct{})
	f.lookup.blockers["11111111"] = slow
	f.lookup.addresses["11111111"] = &domain.Address{Street: "Rua Antiga", City: "Campinas", State: "SP"}
	f.lookup.addresses["01310100"] = &domain.Address{Street: "Avenida Paulista", City: "São Paulo", State: "SP"}

	view, _ := f.svc.StartSession(ctx, validParams(), "")
	id := view.ID

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		// First lookup hangs until released below.
		f.svc.ResolveAddress(ctx, id, "11111111")
	}()

	// Wait until the first lookup is in flight (postal code already set).
	for {
		state, _ := f.sessions.Get(id)
		state.mu.Lock()
		started := state.lookupSeq == 1
		state.mu.Unlock()
		if started {
			break
		}
	}

	if _, err := f.svc.ResolveAddress(ctx, id, "01310100"); err != nil {
		t.Fatalf("second resolve: %v", err)
	}

	close(slow)
	wg.Wait()

	got, _ := f.svc.GetSession(ctx, id)
	if got.Registrant.Address.Street != "Avenida Paulista" {
		t.Errorf("street = %q, stale lookup must not win", got.Registrant.Address.Street)
	}
	if got.Registrant.Address.PostalCode != "01310-100" {
		t.Errorf("postal code = %q, want 01310-100", got.Registrant.Address.PostalCode)
	}
}
