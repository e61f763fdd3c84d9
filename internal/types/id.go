// README: Identifier type used for users, drivers, rides and pricing versions.
package types

import "github.com/google/uuid"

type ID string

func NewID() ID {
	return ID(uuid.NewString())
}

func (id ID) String() string {
	return string(id)
}

// IsUUID reports whether id has the shape of a generated ID. User ids come
// from the identity provider and need not pass.
func (id ID) IsUUID() bool {
	_, err := uuid.Parse(string(id))
	return err == nil
}
