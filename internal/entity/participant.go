package entity

// ParticipantRef names who plays a mark: a human chat identity or the built-in
// computer opponent. The identity is an opaque token owned by the transport
// layer; the engine only ever compares it, never interprets it.
//
// The zero value is not a valid participant.
type ParticipantRef struct {
	Computer bool   `json:"computer,omitempty"`
	Identity string `json:"identity,omitempty"`
}

// Human builds a reference to a human participant.
func Human(identity string) ParticipantRef {
	return ParticipantRef{Identity: identity}
}

// ComputerPlayer builds a reference to the computer opponent.
func ComputerPlayer() ParticipantRef {
	return ParticipantRef{Computer: true}
}

func (that ParticipantRef) IsComputer() bool {
	return that.Computer
}

func (that ParticipantRef) IsHuman() bool {
	return !that.Computer
}
