package leaderboard

import (
	"context"
	"fmt"

	"github.com/vietddude/votewatch/internal/core/domain"
)

// Roster is an immutable, ordered snapshot of known contestants.
type Roster struct {
	order []string
	byID  map[string]*domain.Contestant
}

// NewRoster builds a roster. Later duplicates of an id are dropped.
func NewRoster(contestants []domain.Contestant) *Roster {
	r := &Roster{byID: make(map[string]*domain.Contestant, len(contestants))}
	for i := range contestants {
		c := contestants[i]
		if c.ID == "" {
			continue
		}
		if _, dup := r.byID[c.ID]; dup {
			continue
		}
		r.order = append(r.order, c.ID)
		r.byID[c.ID] = &c
	}
	return r
}

// RosterSource fetches contestants from the roster service.
type RosterSource interface {
	Contestants(ctx context.Context) ([]domain.Contestant, error)
}

// LoadRoster builds the roster once from src.
func LoadRoster(ctx context.Context, src RosterSource) (*Roster, error) {
	contestants, err := src.Contestants(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load roster: %w", err)
	}
	return NewRoster(contestants), nil
}

// IDs returns contestant ids in roster order.
func (r *Roster) IDs() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.order...)
}

// Get returns a contestant by id.
func (r *Roster) Get(id string) (*domain.Contestant, bool) {
	if r == nil {
		return nil, false
	}
	c, ok := r.byID[id]
	return c, ok
}

// Len returns the number of contestants.
func (r *Roster) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}
