package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is an opaque identifier issued by the portal API.
// The API sends identifiers either as JSON strings or as JSON numbers; ID
// accepts both and always encodes as a string.
type ID string

// String returns the identifier as a plain string.
func (id ID) String() string { return string(id) }

// IsZero reports whether the identifier is absent.
func (id ID) IsZero() bool { return id == "" }

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode id: %w", err)
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode id: expected string or number, got %s", data)
	}
	if i, err := n.Int64(); err == nil {
		*id = ID(strconv.FormatInt(i, 10))
		return nil
	}
	*id = ID(n.String())
	return nil
}

// IDs converts plain strings to identifiers.
func IDs(values ...string) []ID {
	out := make([]ID, 0, len(values))
	for _, v := range values {
		out = append(out, ID(v))
	}
	return out
}
