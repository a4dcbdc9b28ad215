// Package pagination pages newest-first listings ordered by
// (created_at DESC, id DESC). The page token carries the position of the
// last row already returned.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 250
)

var ErrInvalidPageToken = errors.New("invalid_page_token")

// Page is the paging part of a list request.
type Page struct {
	PageToken string
	PageSize  int
}

// Limit clamps the requested size into [1, MaxPageSize].
func (p Page) Limit() int {
	switch {
	case p.PageSize <= 0:
		return DefaultPageSize
	case p.PageSize > MaxPageSize:
		return MaxPageSize
	default:
		return p.PageSize
	}
}

// Keyset returns the position encoded in the token, or nil for the first
// page.
func (p Page) Keyset() (*Keyset, error) {
	token := strings.TrimSpace(p.PageToken)
	if token == "" {
		return nil, nil
	}
	return ParseToken(token)
}

type PageInfo struct {
	NextPageToken string `json:"next_page_token"`
	HasMore       bool   `json:"has_more"`
}

// Keyset is a row position in (created_at, id) order.
type Keyset struct {
	CreatedAt time.Time
	ID        snowflake.ID
}

type wireKeyset struct {
	CreatedAt int64  `json:"t"`
	ID        string `json:"id"`
}

func (k Keyset) Token() string {
	b, err := json.Marshal(wireKeyset{CreatedAt: k.CreatedAt.UnixNano(), ID: k.ID.String()})
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

func ParseToken(token string) (*Keyset, error) {
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidPageToken
	}
	var wire wireKeyset
	if err := json.Unmarshal(b, &wire); err != nil || wire.CreatedAt <= 0 {
		return nil, ErrInvalidPageToken
	}
	id, err := snowflake.ParseString(wire.ID)
	if err != nil || id <= 0 {
		return nil, ErrInvalidPageToken
	}
	return &Keyset{CreatedAt: time.Unix(0, wire.CreatedAt).UTC(), ID: id}, nil
}

// After is the predicate selecting rows older than k in newest-first order.
func (k Keyset) After() (string, []any) {
	return "((created_at < ?) OR (created_at = ? AND id < ?))", []any{k.CreatedAt, k.CreatedAt, k.ID}
}

// Cut trims rows fetched with limit+1 down to limit. The next token points
// at the last row kept and is empty on the final page.
func Cut[T any](rows []T, limit int, keyOf func(T) Keyset) ([]T, PageInfo) {
	if len(rows) <= limit {
		return rows, PageInfo{}
	}
	rows = rows[:limit]
	return rows, PageInfo{
		NextPageToken: keyOf(rows[len(rows)-1]).Token(),
		HasMore:       true,
	}
}
