// Package world defines the game world events consumed by the bridge.
//
// Event is a closed sum type: the unexported sealed method keeps
// implementations inside this package, and [Handler] carries one method per
// kind so that adding a kind is a compile-time change for every consumer.
package world

import (
	"context"
	"time"
)

// Kind is the wire name of an event variant.
type Kind string

// Known event kinds.
const (
	KindChatSent                Kind = "chat-sent"
	KindElectionStarted         Kind = "election-started"
	KindElectionJoined          Kind = "election-joined"
	KindElectionLeft            Kind = "election-left"
	KindElectionWon             Kind = "election-won"
	KindDemographicChanged      Kind = "demographic-changed"
	KindPropertyTransferred     Kind = "property-transferred"
	KindLandClaimed             Kind = "land-claimed"
	KindLandUnclaimed           Kind = "land-unclaimed"
	KindGovernmentFundsReceived Kind = "government-funds-received"
	KindContractPosted          Kind = "contract-posted"
	KindWorkPartyPosted         Kind = "work-party-posted"
	KindSpecialtyGained         Kind = "specialty-gained"
	KindProfessionGained        Kind = "profession-gained"
	KindWorkOrderCreated        Kind = "work-order-created"
	KindLaborPerformed          Kind = "labor-performed"
	KindUserLoggedIn            Kind = "user-logged-in"
	KindUserLoggedOut           Kind = "user-logged-out"
)

// UserRef identifies a game account inside an event payload.
type UserRef struct {
	StableID string `json:"stable_id"`
	Name     string `json:"name"`
}

// Event is a single occurrence in the game world.
type Event interface {
	Kind() Kind
	// Actor returns the citizen the event is about, or nil.
	Actor() *UserRef
	// Accept calls the Handler method matching the concrete variant.
	Accept(ctx context.Context, h Handler) error
	sealed()
}

// Handler has one method per event variant.
type Handler interface {
	ChatSent(ctx context.Context, e ChatSent) error
	ElectionStarted(ctx context.Context, e ElectionStarted) error
	ElectionJoined(ctx context.Context, e ElectionJoined) error
	ElectionLeft(ctx context.Context, e ElectionLeft) error
	ElectionWon(ctx context.Context, e ElectionWon) error
	DemographicChanged(ctx context.Context, e DemographicChanged) error
	PropertyTransferred(ctx context.Context, e PropertyTransferred) error
	LandClaimed(ctx context.Context, e LandClaimed) error
	LandUnclaimed(ctx context.Context, e LandUnclaimed) error
	GovernmentFundsReceived(ctx context.Context, e GovernmentFundsReceived) error
	ContractPosted(ctx context.Context, e ContractPosted) error
	WorkPartyPosted(ctx context.Context, e WorkPartyPosted) error
	SpecialtyGained(ctx context.Context, e SpecialtyGained) error
	ProfessionGained(ctx context.Context, e ProfessionGained) error
	WorkOrderCreated(ctx context.Context, e WorkOrderCreated) error
	LaborPerformed(ctx context.Context, e LaborPerformed) error
	UserLoggedIn(ctx context.Context, e UserLoggedIn) error
	UserLoggedOut(ctx context.Context, e UserLoggedOut) error
}

// Base carries the fields shared by every variant.
type Base struct {
	Citizen *UserRef  `json:"citizen,omitempty"`
	Time    time.Time `json:"time,omitzero"`
}

// Actor implements [Event].
func (b Base) Actor() *UserRef { return b.Citizen }

func (Base) sealed() {}

// ChatSent is a chat line typed in game.
type ChatSent struct {
	Base
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// ElectionStarted is emitted when a citizen starts an election.
type ElectionStarted struct {
	Base
	Title string `json:"title"`
}

// ElectionJoined is emitted when a citizen runs in an election.
type ElectionJoined struct {
	Base
	Position string `json:"position"`
}

// ElectionLeft is emitted when a citizen withdraws from an election.
type ElectionLeft struct {
	Base
	Position string `json:"position"`
}

// ElectionWon is emitted when a citizen wins an election.
type ElectionWon struct {
	Base
	Position string `json:"position"`
}

// DemographicChanged is emitted when a citizen enters or leaves a demographic.
type DemographicChanged struct {
	Base
	Demographic string `json:"demographic"`
	Description string `json:"description,omitempty"`
	Entered     bool   `json:"entered"`
}

// PropertyTransferred is emitted when a deed changes owner. Owners are
// display names as the game reports them.
type PropertyTransferred struct {
	Base
	CurrentOwner string `json:"current_owner"`
	NewOwner     string `json:"new_owner"`
}

// LandClaimed is emitted when a citizen claims a plot.
type LandClaimed struct {
	Base
	Location string `json:"location"`
}

// LandUnclaimed is emitted when a citizen releases a plot.
type LandUnclaimed struct {
	Base
	Location string `json:"location"`
}

// GovernmentFundsReceived is emitted when the treasury pays a citizen.
type GovernmentFundsReceived struct {
	Base
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// ContractPosted is emitted when a client posts a contract.
type ContractPosted struct {
	Base
	Client   *UserRef `json:"client,omitempty"`
	Amount   float64  `json:"amount"`
	Currency string   `json:"currency"`
}

// WorkPartyPosted is emitted when a client posts a work party.
type WorkPartyPosted struct {
	Base
	Client   *UserRef `json:"client,omitempty"`
	Amount   float64  `json:"amount"`
	Currency string   `json:"currency"`
}

// SpecialtyGained is emitted when a citizen learns a specialty.
type SpecialtyGained struct {
	Base
	Specialty string `json:"specialty"`
}

// ProfessionGained is emitted when a citizen learns a profession.
type ProfessionGained struct {
	Base
	Profession string `json:"profession"`
}

// WorkOrderCreated is emitted when a citizen starts crafting.
type WorkOrderCreated struct {
	Base
	WorkOrder string `json:"work_order"`
}

// LaborPerformed is emitted when a citizen contributes labor.
type LaborPerformed struct {
	Base
	Labor     float64 `json:"labor"`
	WorkOrder string  `json:"work_order"`
}

// UserLoggedIn is emitted when a citizen joins the server.
type UserLoggedIn struct{ Base }

// UserLoggedOut is emitted when a citizen leaves the server.
type UserLoggedOut struct{ Base }

func (ChatSent) Kind() Kind                { return KindChatSent }
func (ElectionStarted) Kind() Kind         { return KindElectionStarted }
func (ElectionJoined) Kind() Kind          { return KindElectionJoined }
func (ElectionLeft) Kind() Kind            { return KindElectionLeft }
func (ElectionWon) Kind() Kind             { return KindElectionWon }
func (DemographicChanged) Kind() Kind      { return KindDemographicChanged }
func (PropertyTransferred) Kind() Kind     { return KindPropertyTransferred }
func (LandClaimed) Kind() Kind             { return KindLandClaimed }
func (LandUnclaimed) Kind() Kind           { return KindLandUnclaimed }
func (GovernmentFundsReceived) Kind() Kind { return KindGovernmentFundsReceived }
func (ContractPosted) Kind() Kind          { return KindContractPosted }
func (WorkPartyPosted) Kind() Kind         { return KindWorkPartyPosted }
func (SpecialtyGained) Kind() Kind         { return KindSpecialtyGained }
func (ProfessionGained) Kind() Kind        { return KindProfessionGained }
func (WorkOrderCreated) Kind() Kind        { return KindWorkOrderCreated }
func (LaborPerformed) Kind() Kind          { return KindLaborPerformed }
func (UserLoggedIn) Kind() Kind            { return KindUserLoggedIn }
func (UserLoggedOut) Kind() Kind           { return KindUserLoggedOut }

func (e ChatSent) Accept(ctx context.Context, h Handler) error { return h.ChatSent(ctx, e) }
func (e ElectionStarted) Accept(ctx context.Context, h Handler) error {
	return h.ElectionStarted(ctx, e)
}
func (e ElectionJoined) Accept(ctx context.Context, h Handler) error { return h.ElectionJoined(ctx, e) }
func (e ElectionLeft) Accept(ctx context.Context, h Handler) error   { return h.ElectionLeft(ctx, e) }
func (e ElectionWon) Accept(ctx context.Context, h Handler) error    { return h.ElectionWon(ctx, e) }
func (e DemographicChanged) Accept(ctx context.Context, h Handler) error {
	return h.DemographicChanged(ctx, e)
}
func (e PropertyTransferred) Accept(ctx context.Context, h Handler) error {
	return h.PropertyTransferred(ctx, e)
}
func (e LandClaimed) Accept(ctx context.Context, h Handler) error   { return h.LandClaimed(ctx, e) }
func (e LandUnclaimed) Accept(ctx context.Context, h Handler) error { return h.LandUnclaimed(ctx, e) }
func (e GovernmentFundsReceived) Accept(ctx context.Context, h Handler) error {
	return h.GovernmentFundsReceived(ctx, e)
}
func (e ContractPosted) Accept(ctx context.Context, h Handler) error { return h.ContractPosted(ctx, e) }
func (e WorkPartyPosted) Accept(ctx context.Context, h Handler) error {
	return h.WorkPartyPosted(ctx, e)
}
func (e SpecialtyGained) Accept(ctx context.Context, h Handler) error {
	return h.SpecialtyGained(ctx, e)
}
func (e ProfessionGained) Accept(ctx context.Context, h Handler) error {
	return h.ProfessionGained(ctx, e)
}
func (e WorkOrderCreated) Accept(ctx context.Context, h Handler) error {
	return h.WorkOrderCreated(ctx, e)
}
func (e LaborPerformed) Accept(ctx context.Context, h Handler) error { return h.LaborPerformed(ctx, e) }
func (e UserLoggedIn) Accept(ctx context.Context, h Handler) error   { return h.UserLoggedIn(ctx, e) }
func (e UserLoggedOut) Accept(ctx context.Context, h Handler) error  { return h.UserLoggedOut(ctx, e) }

// Compile-time assertions that every variant satisfies Event.
var (
	_ Event = ChatSent{}
	_ Event = ElectionStarted{}
	_ Event = ElectionJoined{}
	_ Event = ElectionLeft{}
	_ Event = ElectionWon{}
	_ Event = DemographicChanged{}
	_ Event = PropertyTransferred{}
	_ Event = LandClaimed{}
	_ Event = LandUnclaimed{}
	_ Event = GovernmentFundsReceived{}
	_ Event = ContractPosted{}
	_ Event = WorkPartyPosted{}
	_ Event = SpecialtyGained{}
	_ Event = ProfessionGained{}
	_ Event = WorkOrderCreated{}
	_ Event = LaborPerformed{}
	_ Event = UserLoggedIn{}
	_ Event = UserLoggedOut{}
)
