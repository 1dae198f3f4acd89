package user

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

const (
	// IDKey is the JSON/document key holding the numeric user identifier.
	IDKey = "id"
	// DocumentIDKey is the JSON/document key holding the database-native identifier.
	DocumentIDKey = "_id"
)

// User represents a user record in the system.
// Apart from its identifiers a user is free-form: any attributes accepted on
// create are kept in Fields and returned as-is.
type User struct {
	ID         int64          // ID is the numeric identifier used for lookups
	DocumentID string         // DocumentID is the store's own identifier (Mongo ObjectID hex), if any
	Fields     map[string]any // Fields holds the free-form attributes of the user
}

// IsReservedKey reports whether key is held outside Fields.
func IsReservedKey(key string) bool {
	return key == IDKey || key == DocumentIDKey
}

// ParseID converts a client-supplied id value into a user id. Only positive
// integral numbers are ids; anything else is an error.
func ParseID(v any) (int64, error) {
	var id int64
	switch n := v.(type) {
	case int:
		id = int64(n)
	case int32:
		id = int64(n)
	case int64:
		id = n
	case float64:
		if n != math.Trunc(n) || n < 1 || n >= math.MaxInt64 {
			return 0, fmt.Errorf("user id %v is not a positive integer", n)
		}
		id = int64(n)
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("user id %q is not an integer", n.String())
		}
		id = i
	default:
		return 0, fmt.Errorf("user id must be a number, got %T", v)
	}
	if id < 1 {
		return 0, fmt.Errorf("user id %d is not positive", id)
	}
	return id, nil
}

// MarshalJSON flattens the user into a single JSON object.
func (u User) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(u.Fields)+2)
	for k, v := range u.Fields {
		if IsReservedKey(k) {
			continue
		}
		out[k] = v
	}
	out[IDKey] = u.ID
	if u.DocumentID != "" {
		out[DocumentIDKey] = u.DocumentID
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the flat JSON form produced by MarshalJSON.
func (u *User) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	*u = User{Fields: make(map[string]any, len(raw))}
	for k, v := range raw {
		switch k {
		case IDKey:
			n, ok := v.(json.Number)
			if !ok {
				return fmt.Errorf("user id must be a number, got %T", v)
			}
			id, err := n.Int64()
			if err != nil {
				return fmt.Errorf("user id must be an integer: %w", err)
			}
			u.ID = id
		case DocumentIDKey:
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("user _id must be a string, got %T", v)
			}
			u.DocumentID = s
		default:
			u.Fields[k] = NormalizeJSON(v)
		}
	}
	return nil
}

// NormalizeJSON converts json.Number values produced by a UseNumber decoder
// into int64 or float64, recursing into objects and arrays.
func NormalizeJSON(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		for k, e := range t {
			t[k] = NormalizeJSON(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = NormalizeJSON(e)
		}
		return t
	default:
		return v
	}
}
