package world

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownKind is returned by [Decode] for an unrecognized envelope kind.
var ErrUnknownKind = errors.New("world: unknown event kind")

// Envelope is the wire form of an event: the kind tag plus its JSON payload.
type Envelope struct {
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Encode wraps ev in an [Envelope].
func Encode(ev Event) (Envelope, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return Envelope{}, fmt.Errorf("world: encode %s: %w", ev.Kind(), err)
	}
	return Envelope{Kind: ev.Kind(), Payload: payload}, nil
}

// Decode turns an envelope back into its concrete event variant.
func Decode(env Envelope) (Event, error) {
	switch env.Kind {
	case KindChatSent:
		return decodeAs[ChatSent](env)
	case KindElectionStarted:
		return decodeAs[ElectionStarted](env)
	case KindElectionJoined:
		return decodeAs[ElectionJoined](env)
	case KindElectionLeft:
		return decodeAs[ElectionLeft](env)
	case KindElectionWon:
		return decodeAs[ElectionWon](env)
	case KindDemographicChanged:
		return decodeAs[DemographicChanged](env)
	case KindPropertyTransferred:
		return decodeAs[PropertyTransferred](env)
	case KindLandClaimed:
		return decodeAs[LandClaimed](env)
	case KindLandUnclaimed:
		return decodeAs[LandUnclaimed](env)
	case KindGovernmentFundsReceived:
		return decodeAs[GovernmentFundsReceived](env)
	case KindContractPosted:
		return decodeAs[ContractPosted](env)
	case KindWorkPartyPosted:
		return decodeAs[WorkPartyPosted](env)
	case KindSpecialtyGained:
		return decodeAs[SpecialtyGained](env)
	case KindProfessionGained:
		return decodeAs[ProfessionGained](env)
	case KindWorkOrderCreated:
		return decodeAs[WorkOrderCreated](env)
	case KindLaborPerformed:
		return decodeAs[LaborPerformed](env)
	case KindUserLoggedIn:
		return decodeAs[UserLoggedIn](env)
	case KindUserLoggedOut:
		return decodeAs[UserLoggedOut](env)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Kind)
	}
}

// DecodeJSON parses a raw envelope document and decodes it.
func DecodeJSON(data []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("world: decode envelope: %w", err)
	}
	return Decode(env)
}

func decodeAs[T Event](env Envelope) (Event, error) {
	var ev T
	if len(env.Payload) == 0 {
		return ev, nil
	}
	if err := json.Unmarshal(env.Payload, &ev); err != nil {
		return nil, fmt.Errorf("world: decode %s: %w", env.Kind, err)
	}
	return ev, nil
}
