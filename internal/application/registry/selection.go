package registry

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alem-hub/course-registry/internal/domain/shared"
)

// SelectionItem is one token of a comma-separated selection.
type SelectionItem struct {
	// Raw is the trimmed token as typed.
	Raw string

	// Index is the 1-based position it refers to; zero when Err is set.
	Index int

	// Err is ErrInvalidSelection for non-numeric or out-of-range tokens.
	Err error
}

// Valid reports whether the token refers to an existing item.
func (s SelectionItem) Valid() bool {
	return s.Err == nil
}

// ParseSelection splits raw on commas and resolves every token against a
// list of count items. Tokens are kept in input order, duplicates included;
// an empty token is invalid like any other non-number.
func ParseSelection(raw string, count int) []SelectionItem {
	parts := strings.Split(raw, ",")
	items := make([]SelectionItem, 0, len(parts))

	for _, part := range parts {
		token := strings.TrimSpace(part)
		items = append(items, parseToken(token, count))
	}

	return items
}

// ParseIndex resolves a single 1-based index.
func ParseIndex(raw string, count int) (int, error) {
	item := parseToken(strings.TrimSpace(raw), count)
	return item.Index, item.Err
}

func parseToken(token string, count int) SelectionItem {
	n, err := strconv.Atoi(token)
	if err != nil {
		return SelectionItem{Raw: token, Err: shared.ErrInvalidSelection.WithDetail(fmt.Errorf("%q is not a number", token))}
	}
	if n < 1 || n > count {
		return SelectionItem{Raw: token, Err: shared.ErrInvalidSelection.WithDetail(fmt.Errorf("%d not in 1..%d", n, count))}
	}
	return SelectionItem{Raw: token, Index: n}
}
