package domain

import "github.com/google/uuid"

// Text marshaling - UUID-backed IDs serialize as canonical UUID strings, not
// byte arrays, so wire shapes and canonical hashes stay stable.

func (id RequestID) MarshalText() ([]byte, error)    { return marshalUUID(uuid.UUID(id)) }
func (id GrantID) MarshalText() ([]byte, error)      { return marshalUUID(uuid.UUID(id)) }
func (id ProofID) MarshalText() ([]byte, error)      { return marshalUUID(uuid.UUID(id)) }
func (id CredentialID) MarshalText() ([]byte, error) { return marshalUUID(uuid.UUID(id)) }
func (id InstanceID) MarshalText() ([]byte, error)   { return marshalUUID(uuid.UUID(id)) }

func (id *RequestID) UnmarshalText(b []byte) error {
	return unmarshalUUID((*uuid.UUID)(id), b)
}

func (id *GrantID) UnmarshalText(b []byte) error {
	return unmarshalUUID((*uuid.UUID)(id), b)
}

func (id *ProofID) UnmarshalText(b []byte) error {
	return unmarshalUUID((*uuid.UUID)(id), b)
}

func (id *CredentialID) UnmarshalText(b []byte) error {
	return unmarshalUUID((*uuid.UUID)(id), b)
}

func (id *InstanceID) UnmarshalText(b []byte) error {
	return unmarshalUUID((*uuid.UUID)(id), b)
}

func marshalUUID(u uuid.UUID) ([]byte, error) {
	return []byte(u.String()), nil
}

func unmarshalUUID(dst *uuid.UUID, b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*dst = u
	return nil
}
