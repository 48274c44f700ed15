package history

import (
	"slices"

	"parlor/internal/models"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Store is the persistence surface the paginator reads from. Satisfied by
// storage.Store.
type Store interface {
	ListMessagesBefore(roomID string, before int64, limit int) ([]models.Message, error)
}

// Paginator serves backward keyset pagination over room history. The cursor
// is the oldest message's own timestamp, so concurrent inserts above the
// boundary can never shift or duplicate a page the way offsets would.
type Paginator struct {
	store Store
}

func NewPaginator(store Store) *Paginator {
	return &Paginator{store: store}
}

// Before returns up to limit messages with SentAt strictly less than the
// given timestamp, in ascending order for rendering. An empty result means
// the start of history, not an error.
func (p *Paginator) Before(roomID string, limit int, before int64) ([]models.Message, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	// Timestamps are unix millis, so nothing sorts strictly below zero.
	// Guarding here also keeps a negative cursor from wrapping the store's
	// unsigned key encoding.
	if before <= 0 {
		return nil, nil
	}

	messages, err := p.store.ListMessagesBefore(roomID, before, limit)
	if err != nil {
		return nil, err
	}

	// The store walks newest-first; clients render oldest-first.
	slices.Reverse(messages)
	return messages, nil
}
