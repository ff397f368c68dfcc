package world_test

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/crossing/pkg/world"
)

// recorder implements world.Handler and records the last method called.
type recorder struct {
	got world.Kind
}

func (r *recorder) mark(k world.Kind) error { r.got = k; return nil }

func (r *recorder) ChatSent(_ context.Context, e world.ChatSent) error { return r.mark(e.Kind()) }
func (r *recorder) ElectionStarted(_ context.Context, e world.ElectionStarted) error {
	return r.mark(e.Kind())
}
func (r *recorder) ElectionJoined(_ context.Context, e world.ElectionJoined) error {
	return r.mark(e.Kind())
}
func (r *recorder) ElectionLeft(_ context.Context, e world.ElectionLeft) error {
	return r.mark(e.Kind())
}
func (r *recorder) ElectionWon(_ context.Context, e world.ElectionWon) error { return r.mark(e.Kind()) }
func (r *recorder) DemographicChanged(_ context.Context, e world.DemographicChanged) error {
	return r.mark(e.Kind())
}
func (r *recorder) PropertyTransferred(_ context.Context, e world.PropertyTransferred) error {
	return r.mark(e.Kind())
}
func (r *recorder) LandClaimed(_ context.Context, e world.LandClaimed) error { return r.mark(e.Kind()) }
func (r *recorder) LandUnclaimed(_ context.Context, e world.LandUnclaimed) error {
	return r.mark(e.Kind())
}
func (r *recorder) GovernmentFundsReceived(_ context.Context, e world.GovernmentFundsReceived) error {
	return r.mark(e.Kind())
}
func (r *recorder) ContractPosted(_ context.Context, e world.ContractPosted) error {
	return r.mark(e.Kind())
}
func (r *recorder) WorkPartyPosted(_ context.Context, e world.WorkPartyPosted) error {
	return r.mark(e.Kind())
}
func (r *recorder) SpecialtyGained(_ context.Context, e world.SpecialtyGained) error {
	return r.mark(e.Kind())
}
func (r *recorder) ProfessionGained(_ context.Context, e world.ProfessionGained) error {
	return r.mark(e.Kind())
}
func (r *recorder) WorkOrderCreated(_ context.Context, e world.WorkOrderCreated) error {
	return r.mark(e.Kind())
}
func (r *recorder) LaborPerformed(_ context.Context, e world.LaborPerformed) error {
	return r.mark(e.Kind())
}
func (r *recorder) UserLoggedIn(_ context.Context, e world.UserLoggedIn) error {
	return r.mark(e.Kind())
}
func (r *recorder) UserLoggedOut(_ context.Context, e world.UserLoggedOut) error {
	return r.mark(e.Kind())
}

func allEvents() []world.Event {
	return []world.Event{
		world.ChatSent{},
		world.ElectionStarted{},
		world.ElectionJoined{},
		world.ElectionLeft{},
		world.ElectionWon{},
		world.DemographicChanged{},
		world.PropertyTransferred{},
		world.LandClaimed{},
		world.LandUnclaimed{},
		world.GovernmentFundsReceived{},
		world.ContractPosted{},
		world.WorkPartyPosted{},
		world.SpecialtyGained{},
		world.ProfessionGained{},
		world.WorkOrderCreated{},
		world.LaborPerformed{},
		world.UserLoggedIn{},
		world.UserLoggedOut{},
	}
}

func TestAccept_RoutesToMatchingMethod(t *testing.T) {
	t.Parallel()
	for _, ev := range allEvents() {
		t.Run(string(ev.Kind()), func(t *testing.T) {
			t.Parallel()
			r := &recorder{}
			if err := ev.Accept(context.Background(), r); err != nil {
				t.Fatalf("Accept: %v", err)
			}
			if r.got != ev.Kind() {
				t.Errorf("handler saw %q, want %q", r.got, ev.Kind())
			}
		})
	}
}

func TestDecode_AllKinds(t *testing.T) {
	t.Parallel()
	for _, ev := range allEvents() {
		env, err := world.Encode(ev)
		if err != nil {
			t.Fatalf("Encode(%s): %v", ev.Kind(), err)
		}
		got, err := world.Decode(env)
		if err != nil {
			t.Fatalf("Decode(%s): %v", ev.Kind(), err)
		}
		if got.Kind() != ev.Kind() {
			t.Errorf("Decode kind = %q, want %q", got.Kind(), ev.Kind())
		}
	}
}

func TestDecodeJSON_ContractPosted(t *testing.T) {
	t.Parallel()
	data := []byte(`{"kind":"contract-posted","payload":{
		"citizen":{"stable_id":"7656","name":"Aria"},
		"client":{"stable_id":"7656","name":"Aria"},
		"amount":125.5,"currency":"Credits"}}`)

	ev, err := world.DecodeJSON(data)
	if err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	cp, ok := ev.(world.ContractPosted)
	if !ok {
		t.Fatalf("got %T, want world.ContractPosted", ev)
	}
	if cp.Client == nil || cp.Client.Name != "Aria" {
		t.Errorf("Client = %+v, want Aria", cp.Client)
	}
	if cp.Amount != 125.5 || cp.Currency != "Credits" {
		t.Errorf("amount = %v %q, want 125.5 Credits", cp.Amount, cp.Currency)
	}
	if cp.Actor() == nil || cp.Actor().StableID != "7656" {
		t.Errorf("Actor = %+v, want stable id 7656", cp.Actor())
	}
}

func TestDecodeJSON_MissingPayload(t *testing.T) {
	t.Parallel()
	ev, err := world.DecodeJSON([]byte(`{"kind":"user-logged-in"}`))
	if err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if ev.Actor() != nil {
		t.Errorf("Actor = %+v, want nil", ev.Actor())
	}
}

func TestDecode_UnknownKind(t *testing.T) {
	t.Parallel()
	_, err := world.DecodeJSON([]byte(`{"kind":"meteor-impact","payload":{}}`))
	if !errors.Is(err, world.ErrUnknownKind) {
		t.Fatalf("err = %v, want ErrUnknownKind", err)
	}
}

func TestDecode_BadPayload(t *testing.T) {
	t.Parallel()
	_, err := world.DecodeJSON([]byte(`{"kind":"labor-performed","payload":{"labor":"lots"}}`))
	if err == nil {
		t.Fatal("expected error for mistyped payload, got nil")
	}
}
