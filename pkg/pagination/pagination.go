package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

var errInvalidCursor = errors.New("invalid cursor")

// Params carries a page request from the API layer.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor marks the last row of a page. Rows are ordered by Timestamp then
// DocumentID, both descending.
type Cursor struct {
	Timestamp  time.Time `json:"ts"`
	DocumentID int64     `json:"doc"`
}

// NormalizeLimit clamps limit into [1, MaxLimit], using DefaultLimit for
// non-positive values.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// EncodeCursor renders c as URL-safe base64 JSON, so it can be passed back
// in a query string without escaping.
func EncodeCursor(c Cursor) string {
	c.Timestamp = c.Timestamp.UTC()
	raw, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(raw)
}

// ParseCursor decodes a cursor produced by EncodeCursor. A blank value means
// the first page and yields nil.
func ParseCursor(value string) (*Cursor, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidCursor, err)
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidCursor, err)
	}
	if c.Timestamp.IsZero() || c.DocumentID <= 0 {
		return nil, errInvalidCursor
	}
	return &c, nil
}

// After reports whether a row sorts strictly after c in descending order.
func (c Cursor) After(ts time.Time, documentID int64) bool {
	if ts.Equal(c.Timestamp) {
		return documentID < c.DocumentID
	}
	return ts.Before(c.Timestamp)
}
