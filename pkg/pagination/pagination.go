// Package pagination implements (created_at, id) keyset paging for listing
// endpoints. Cursors are opaque URL-safe tokens.
package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

var ErrInvalidCursor = errors.New("invalid cursor")

// Params holds the ?limit= and ?cursor= inputs of a listing request.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor is the last row of the previous page.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// Direction selects the walk order of a keyset query.
type Direction int

const (
	NewestFirst Direction = iota
	OldestFirst
)

func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

func EncodeCursor(cursor Cursor) string {
	payload := cursor.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + cursor.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

// ParseCursor decodes a token produced by EncodeCursor. An empty value yields
// a nil cursor.
func ParseCursor(value string) (*Cursor, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	ts, rawID, ok := strings.Cut(string(decoded), "|")
	if !ok {
		return nil, ErrInvalidCursor
	}
	createdAt, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, fmt.Errorf("%w: timestamp: %v", ErrInvalidCursor, err)
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("%w: id: %v", ErrInvalidCursor, err)
	}
	return &Cursor{CreatedAt: createdAt, ID: id}, nil
}

// Apply adds the keyset predicate, ordering, and a one-row lookahead to query.
func Apply(query *gorm.DB, params Params, dir Direction) (*gorm.DB, error) {
	cursor, err := ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	op, order := "<", "DESC"
	if dir == OldestFirst {
		op, order = ">", "ASC"
	}
	if cursor != nil {
		query = query.Where(
			fmt.Sprintf("(created_at %s ?) OR (created_at = ? AND id %s ?)", op, op),
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}
	return query.
		Order("created_at " + order).
		Order("id " + order).
		Limit(NormalizeLimit(params.Limit) + 1), nil
}

// Page drops the lookahead row fetched by Apply and returns the cursor of the
// next page, or nil on the last page.
func Page[T any](rows []T, params Params, key func(T) Cursor) ([]T, *Cursor) {
	limit := NormalizeLimit(params.Limit)
	if len(rows) <= limit {
		return rows, nil
	}
	next := key(rows[limit-1])
	return rows[:limit], &next
}
