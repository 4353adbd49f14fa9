package socket

import "github.com/google/uuid"

// Identifier is the opaque, server-assigned connection identifier carried
// in every POST body as "id=..." (spec.md §3). It is immutable for the
// lifetime of a Connection.
//
// The handshake that assigns this value is out of scope for this module
// (spec.md §9); NewIdentifier exists for tests and demos that need to mint
// one locally.
type Identifier struct {
	id uuid.UUID
}

// NewIdentifier mints a fresh random identifier, grounded in the same
// github.com/google/uuid usage the teacher uses for AS4 MessageIds.
func NewIdentifier() Identifier {
	return Identifier{id: uuid.New()}
}

// ParseIdentifier parses the external string form of an identifier as
// assigned by a server.
func ParseIdentifier(s string) (Identifier, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return Identifier{}, err
	}
	return Identifier{id: id}, nil
}

// String is the external form carried in the "id=" POST field.
func (i Identifier) String() string {
	return i.id.String()
}
