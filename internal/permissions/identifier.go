package permissions

import (
	"bytes"
	"encoding/json"
	"strings"
)

// identifierKeys are the object fields a role or permission entry may carry its name in, in lookup order.
var identifierKeys = []string{"name", "role_name", "permission_name", "code"}

// Identifier names a role or permission. On the wire it is either a bare string or an object carrying a
// name field; both decode to the same value.
type Identifier struct {
	Name string
}

// ParseIdentifier normalizes a loosely typed role or permission entry. Unknown shapes yield an empty identifier.
func ParseIdentifier(v any) Identifier {
	switch val := v.(type) {
	case nil:
		return Identifier{}
	case Identifier:
		return Identifier{Name: strings.TrimSpace(val.Name)}
	case *Identifier:
		if val == nil {
			return Identifier{}
		}
		return Identifier{Name: strings.TrimSpace(val.Name)}
	case string:
		return Identifier{Name: strings.TrimSpace(val)}
	case map[string]string:
		for _, key := range identifierKeys {
			if name := strings.TrimSpace(val[key]); name != "" {
				return Identifier{Name: name}
			}
		}
	case map[string]any:
		for _, key := range identifierKeys {
			if name, ok := val[key].(string); ok && strings.TrimSpace(name) != "" {
				return Identifier{Name: strings.TrimSpace(name)}
			}
		}
	case json.RawMessage:
		var id Identifier
		_ = id.UnmarshalJSON(val)
		return id
	}
	return Identifier{}
}

// Identifiers builds identifiers from plain names.
func Identifiers(names ...string) []Identifier {
	out := make([]Identifier, 0, len(names))
	for _, name := range names {
		out = append(out, ParseIdentifier(name))
	}
	return out
}

// Valid reports whether the identifier carries a name.
func (i Identifier) Valid() bool {
	return i.Name != ""
}

func (i Identifier) String() string {
	return i.Name
}

// UnmarshalJSON accepts a string, an object with a name field, or null. Malformed input leaves the
// identifier empty instead of failing the surrounding document.
func (i *Identifier) UnmarshalJSON(data []byte) error {
	i.Name = ""

	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	*i = ParseIdentifier(raw)
	return nil
}

// MarshalJSON emits the bare name.
func (i Identifier) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.Name)
}
