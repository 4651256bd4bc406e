// Package pagination implements the opaque cursor codec used by the
// cursor-paginated read paths.
//
// A cursor is "entity:key|value,key|value" run through base64. It is
// reversible but not authenticated: a forged cursor only changes the starting
// point inside a result set the caller is already authorized to read, so
// consumers must rely on per-record authorization, not on the token.
package pagination

import (
	"encoding/base64"
	"strings"

	"linkup/backend/internal/apperr"
)

// Pair is one ordered key/value element of a cursor payload.
type Pair struct {
	Key   string
	Value string
}

// Cursor is a decoded pagination token: an entity tag plus the ordered
// tie-break values of the last item of the previous page.
type Cursor struct {
	Entity string
	Pairs  []Pair
}

// Get returns the value for key and whether it was present in the payload.
func (c Cursor) Get(key string) (string, bool) {
	for _, p := range c.Pairs {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// Encode builds an opaque cursor for the given entity. Pairs with empty
// values are omitted entirely; their absence on decode maps back to
// "no lower bound" for that key.
func Encode(entity string, pairs ...Pair) string {
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		if p.Value == "" {
			continue
		}
		parts = append(parts, p.Key+"|"+p.Value)
	}
	raw := entity + ":" + strings.Join(parts, ",")
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// Decode reverses Encode. All failures are client-facing validation errors,
// never a server fault.
func Decode(token string) (Cursor, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, apperr.Validation("invalid_cursor", "Invalid pagination cursor")
	}

	entity, payload, found := strings.Cut(string(raw), ":")
	if !found || entity == "" {
		return Cursor{}, apperr.Validation("invalid_cursor", "Invalid pagination cursor: entity name is missing")
	}
	if payload == "" {
		return Cursor{}, apperr.Validation("invalid_cursor", "Invalid pagination cursor: payload is missing")
	}

	elements := strings.Split(payload, ",")
	pairs := make([]Pair, 0, len(elements))
	for _, element := range elements {
		key, value, ok := strings.Cut(element, "|")
		if !ok || key == "" || value == "" {
			return Cursor{}, apperr.Validation("invalid_cursor", "Invalid pagination cursor: payload is invalid")
		}
		pairs = append(pairs, Pair{Key: key, Value: value})
	}

	return Cursor{Entity: entity, Pairs: pairs}, nil
}

// DecodeFor decodes a cursor and rejects tokens built for another entity.
// Presenting a mismatched cursor is a client error, not silently ignored.
func DecodeFor(entity, token string) (Cursor, error) {
	cursor, err := Decode(token)
	if err != nil {
		return Cursor{}, err
	}
	if cursor.Entity != entity {
		return Cursor{}, apperr.Validation(
			"invalid_cursor",
			"Pagination cursor should be used for the "+cursor.Entity+" entity instead",
		)
	}
	return cursor, nil
}
