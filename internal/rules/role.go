package rules

import (
	"encoding/json"
	"fmt"
)

// Role identifies one of the two match participants. The string values are
// part of the shared document's wire format.
type Role string

const (
	Host  Role = "host"
	Guest Role = "guest"
)

// Roles lists both roles in turn order.
var Roles = [2]Role{Host, Guest}

// Valid reports whether r is one of the two known roles.
func (r Role) Valid() bool {
	return r == Host || r == Guest
}

// Other returns the opposing role.
func (r Role) Other() Role {
	if r == Host {
		return Guest
	}
	return Host
}

func (r Role) String() string {
	return string(r)
}

// ParseRole converts a wire tag into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// MarshalJSON encodes the zero Role as null so that "no role" round-trips
// through the shared document.
func (r Role) MarshalJSON() ([]byte, error) {
	if r == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(r))
}

// UnmarshalJSON rejects role tags other than host and guest. A JSON null
// decodes to the zero Role.
func (r *Role) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
