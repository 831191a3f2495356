package search

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Cursor is the resume position after the last hit of a page, bound to
// the fingerprint of the query that produced it.
type Cursor struct {
	Score       float64 `json:"score"`
	Ordinal     int64   `json:"ordinal"`
	Fingerprint string  `json:"fingerprint"`
}

// Encode returns the opaque token form of the cursor.
func (c Cursor) Encode() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeCursor parses an opaque cursor token.
func DecodeCursor(token string) (Cursor, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, &SearchError{Message: "malformed cursor", Err: err}
	}

	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return Cursor{}, &SearchError{Message: "malformed cursor", Err: err}
	}
	if c.Fingerprint == "" {
		return Cursor{}, searchErrorf("malformed cursor: missing fingerprint")
	}
	return c, nil
}
