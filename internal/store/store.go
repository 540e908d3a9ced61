// Package store is the persistence boundary for contract records. Two
// implementations exist: Postgres for production and Memory for tests and
// the dev server mode.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/kingdavid28/iyaya-contracts/internal/contract"
)

var ErrNotFound = errors.New("contract not found")

// Event is one row of the contract audit log.
type Event struct {
	ContractID string         `json:"contract_id"`
	Type       string         `json:"type"`
	ActorID    string         `json:"actor_id,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Store issues filtered, time-ordered queries and single-row writes against
// the contract table. Mutations are atomic at the level of a single record;
// ApplySignature writes only the signing party's columns so concurrent
// signatures by different parties both land.
type Store interface {
	Insert(ctx context.Context, c *contract.Contract) error
	Get(ctx context.Context, id string) (*contract.Contract, error)
	ListByBooking(ctx context.Context, bookingID string) ([]*contract.Contract, error)
	ListByParty(ctx context.Context, userID string, role contract.Party) ([]*contract.Contract, error)

	// UpdateStatus persists the new status and merges metadata into the
	// existing metadata document.
	UpdateStatus(ctx context.Context, id string, status contract.Status, metadata map[string]any) (*contract.Contract, error)

	// ApplySignature overwrites party's signature block and applies the
	// signing-driven status transition atomically, reading the counterpart's
	// signature from the stored row. The returned contract reflects the
	// post-update state.
	ApplySignature(ctx context.Context, id string, party contract.Party, block contract.SignatureBlock, contractHash string) (*contract.Contract, error)

	// MergeMetadata merges patch into the contract's metadata document.
	MergeMetadata(ctx context.Context, id string, patch map[string]any) (*contract.Contract, error)

	AddEvent(ctx context.Context, ev Event) error
	ListEvents(ctx context.Context, contractID string) ([]Event, error)
}
