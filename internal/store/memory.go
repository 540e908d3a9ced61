package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kingdavid28/iyaya-contracts/internal/contract"
)

// Memory is an in-process Store used by tests and by the dev server mode
// when no database is configured. Safe for concurrent use.
type Memory struct {
	mu        sync.Mutex
	contracts map[string]*contract.Contract
	order     map[string]int // insertion sequence, tie-break for equal timestamps
	events    []Event
	seq       int

	now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		contracts: make(map[string]*contract.Contract),
		order:     make(map[string]int),
		now:       time.Now,
	}
}

func (m *Memory) Insert(ctx context.Context, c *contract.Contract) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.contracts[c.ID] = c.Clone()
	m.order[c.ID] = m.seq
	return nil
}

func (m *Memory) Get(ctx context.Context, id string) (*contract.Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contracts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c.Clone(), nil
}

func (m *Memory) ListByBooking(ctx context.Context, bookingID string) ([]*contract.Contract, error) {
	return m.list(func(c *contract.Contract) bool { return c.BookingID == bookingID })
}

func (m *Memory) ListByParty(ctx context.Context, userID string, role contract.Party) ([]*contract.Contract, error) {
	return m.list(func(c *contract.Contract) bool { return c.PartyID(role) == userID })
}

func (m *Memory) list(match func(*contract.Contract) bool) ([]*contract.Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*contract.Contract
	for _, c := range m.contracts {
		if match(c) {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return m.order[out[i].ID] > m.order[out[j].ID]
	})
	return out, nil
}

func (m *Memory) UpdateStatus(ctx context.Context, id string, status contract.Status, metadata map[string]any) (*contract.Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contracts[id]
	if !ok {
		return nil, ErrNotFound
	}
	c.Status = status
	mergeInto(c, metadata)
	c.UpdatedAt = m.now()
	return c.Clone(), nil
}

func (m *Memory) ApplySignature(ctx context.Context, id string, party contract.Party, block contract.SignatureBlock, contractHash string) (*contract.Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contracts[id]
	if !ok {
		return nil, ErrNotFound
	}
	otherSigned := c.SignatureFor(party.Other()).Signed()
	if party == contract.PartyRequester {
		c.Requester = block
	} else {
		c.Provider = block
	}
	c.Status = contract.NextStatus(c.Status, party, otherSigned)
	c.ContractHash = contractHash
	c.UpdatedAt = m.now()
	return c.Clone(), nil
}

func (m *Memory) MergeMetadata(ctx context.Context, id string, patch map[string]any) (*contract.Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contracts[id]
	if !ok {
		return nil, ErrNotFound
	}
	mergeInto(c, patch)
	c.UpdatedAt = m.now()
	return c.Clone(), nil
}

func (m *Memory) AddEvent(ctx context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *Memory) ListEvents(ctx context.Context, contractID string) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, ev := range m.events {
		if ev.ContractID == contractID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func mergeInto(c *contract.Contract, patch map[string]any) {
	if len(patch) == 0 {
		return
	}
	if c.Metadata == nil {
		c.Metadata = make(map[string]any, len(patch))
	}
	for k, v := range patch {
		c.Metadata[k] = v
	}
}
