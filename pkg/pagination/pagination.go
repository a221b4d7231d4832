package pagination

import (
	"encoding/base64"
	"encoding/json"
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

// Params holds cursor pagination inputs from controllers or services.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor points at the last row of the previous page in (created_at DESC, id DESC) order.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// Page is a slice of results plus the cursor for the following page.
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// NormalizeLimit enforces the default and maximum limits.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// LimitWithBuffer returns the normalized limit plus one to detect the next page.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

// cursorWire is the JSON form hidden inside the base64 cursor.
type cursorWire struct {
	At time.Time `json:"t"`
	ID uuid.UUID `json:"id"`
}

// EncodeCursor builds an opaque, URL safe cursor string.
func EncodeCursor(cursor Cursor) string {
	raw, _ := json.Marshal(cursorWire{At: cursor.CreatedAt.UTC(), ID: cursor.ID})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// ParseCursor decodes a cursor; an empty value yields nil.
func ParseCursor(value string) (*Cursor, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	var wire cursorWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("invalid cursor: %w", err)
	}
	if wire.At.IsZero() || wire.ID == uuid.Nil {
		return nil, errors.New("invalid cursor: missing position")
	}
	return &Cursor{CreatedAt: wire.At, ID: wire.ID}, nil
}

// Apply adds keyset ordering, the cursor predicate and the buffered limit to
// query. table qualifies the columns when joins make them ambiguous.
func Apply(query *gorm.DB, table string, cursor *Cursor, limit int) *gorm.DB {
	return ApplyOn(query, table, "created_at", cursor, limit)
}

// ApplyOn is Apply for tables keyed by a timestamp other than created_at.
func ApplyOn(query *gorm.DB, table, timeColumn string, cursor *Cursor, limit int) *gorm.DB {
	ts, id := timeColumn, "id"
	if table != "" {
		ts, id = table+"."+timeColumn, table+".id"
	}
	if cursor != nil {
		// Row-value comparison spelled out so sqlite and postgres agree.
		query = query.Where("("+ts+" < ? OR ("+ts+" = ? AND "+id+" < ?))", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	return query.Order(ts + " DESC").Order(id + " DESC").Limit(LimitWithBuffer(limit))
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Search narrows query to rows where any of columns contains term, case
// insensitively. LIKE wildcards in term match literally. A blank term leaves
// query untouched.
func Search(query *gorm.DB, term string, columns ...string) *gorm.DB {
	term = strings.TrimSpace(term)
	if term == "" || len(columns) == 0 {
		return query
	}
	pattern := "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"
	clauses := make([]string, len(columns))
	args := make([]any, len(columns))
	for i, column := range columns {
		clauses[i] = "LOWER(" + column + `) LIKE ? ESCAPE '\'`
		args[i] = pattern
	}
	return query.Where("("+strings.Join(clauses, " OR ")+")", args...)
}

// Build trims the buffered row and computes the next cursor.
func Build[T any](rows []T, limit int, cursorOf func(T) Cursor) Page[T] {
	limit = NormalizeLimit(limit)
	page := Page[T]{Items: rows}
	if len(rows) > limit {
		page.Items = rows[:limit]
		page.NextCursor = EncodeCursor(cursorOf(page.Items[limit-1]))
	}
	if page.Items == nil {
		page.Items = []T{}
	}
	return page
}
