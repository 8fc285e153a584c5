package pagination

import (
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/recovero-backend/pkg/errors"
)

const (
	DefaultLimit = 25
	// MaxLimit caps how many rows any cursor query can request.
	MaxLimit = 100
)

// Params holds cursor pagination inputs from controllers or services.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor points at the last row of the previous page. Pages are ordered by
// created_at DESC, id DESC.
type Cursor struct {
	CreatedAt time.Time
	ID        int64
}

func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// LimitWithBuffer fetches one extra row to learn whether a next page exists.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

// Trim cuts a buffered result back to limit and returns the cursor of the
// next page, empty when rows was the last page.
func Trim[T any](rows []T, limit int, cursorOf func(T) Cursor) ([]T, string) {
	limit = NormalizeLimit(limit)
	if len(rows) <= limit {
		return rows, ""
	}
	page := rows[:limit]
	return page, EncodeCursor(cursorOf(page[limit-1]))
}

// EncodeCursor renders "<RFC3339Nano>|<id>" as unpadded URL-safe base64.
func EncodeCursor(cursor Cursor) string {
	payload := cursor.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + strconv.FormatInt(cursor.ID, 10)
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

// ParseCursor returns nil for an empty cursor. Bad cursors are validation
// errors so the admin API answers 400.
func ParseCursor(value string) (*Cursor, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, invalidCursor("undecodable")
	}
	ts, rawID, ok := strings.Cut(string(decoded), "|")
	if !ok {
		return nil, invalidCursor("malformed")
	}
	createdAt, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, invalidCursor("bad timestamp")
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		return nil, invalidCursor("bad id")
	}
	return &Cursor{CreatedAt: createdAt, ID: id}, nil
}

func invalidCursor(reason string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor").WithDetails(map[string]any{"field": "cursor", "reason": reason})
}
