package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kingdavid28/iyaya-contracts/internal/contract"
)

// Postgres stores contracts in a pgx pool. Signature updates compute the
// status transition inside the UPDATE so two concurrent signatures by
// different parties serialize correctly in the database.
type Postgres struct {
	DB *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{DB: db}
}

const contractColumns = `contract_id, booking_id, requester_id, provider_id, status, terms, version,
effective_date, expiry_date,
requester_signed_at, requester_signature, requester_signature_hash, requester_signed_ip,
provider_signed_at, provider_signature, provider_signature_hash, provider_signed_ip,
contract_hash, created_by, created_at, updated_at, metadata`

func (s *Postgres) Insert(ctx context.Context, c *contract.Contract) error {
	terms, err := json.Marshal(c.Terms)
	if err != nil {
		return err
	}
	meta, err := json.Marshal(c.Metadata)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(ctx, `INSERT INTO contracts(contract_id, booking_id, requester_id, provider_id, status, terms, version,
effective_date, expiry_date, contract_hash, created_by, created_at, updated_at, metadata)
VALUES($1,$2,$3,$4,$5,$6::jsonb,$7,$8,$9,$10,$11,$12,$13,$14::jsonb)`,
		c.ID, c.BookingID, c.RequesterID, c.ProviderID, string(c.Status), string(terms), c.Version,
		c.EffectiveDate, c.ExpiryDate, c.ContractHash, c.CreatedBy, c.CreatedAt, c.UpdatedAt, string(meta))
	return err
}

func (s *Postgres) Get(ctx context.Context, id string) (*contract.Contract, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+contractColumns+` FROM contracts WHERE contract_id=$1`, id)
	return scanContract(row)
}

func (s *Postgres) ListByBooking(ctx context.Context, bookingID string) ([]*contract.Contract, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+contractColumns+` FROM contracts WHERE booking_id=$1 ORDER BY created_at DESC`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanContracts(rows)
}

func (s *Postgres) ListByParty(ctx context.Context, userID string, role contract.Party) ([]*contract.Contract, error) {
	col := "requester_id"
	if role == contract.PartyProvider {
		col = "provider_id"
	}
	rows, err := s.DB.Query(ctx, `SELECT `+contractColumns+` FROM contracts WHERE `+col+`=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanContracts(rows)
}

func (s *Postgres) UpdateStatus(ctx context.Context, id string, status contract.Status, metadata map[string]any) (*contract.Contract, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	meta, err := json.Marshal(metadata)
	if err != nil {
		return nil, err
	}
	row := s.DB.QueryRow(ctx, `UPDATE contracts SET status=$2,
metadata = COALESCE(metadata,'{}'::jsonb) || $3::jsonb,
updated_at = now()
WHERE contract_id=$1
RETURNING `+contractColumns, id, string(status), string(meta))
	return scanContract(row)
}

func (s *Postgres) ApplySignature(ctx context.Context, id string, party contract.Party, block contract.SignatureBlock, contractHash string) (*contract.Contract, error) {
	// The CASE mirrors contract.NextStatus: no-op once the status already
	// reflects this party's completion or a later state, active only when the
	// counterpart's signed_at is present in the stored row.
	var q string
	switch party {
	case contract.PartyRequester:
		q = `UPDATE contracts SET
requester_signed_at=$2, requester_signature=$3, requester_signature_hash=$4, requester_signed_ip=$5,
contract_hash=$6,
status = CASE
  WHEN status IN ('signed_a','active','completed','cancelled') THEN status
  WHEN provider_signed_at IS NOT NULL THEN 'active'
  ELSE 'signed_a' END,
updated_at = now()
WHERE contract_id=$1
RETURNING ` + contractColumns
	case contract.PartyProvider:
		q = `UPDATE contracts SET
provider_signed_at=$2, provider_signature=$3, provider_signature_hash=$4, provider_signed_ip=$5,
contract_hash=$6,
status = CASE
  WHEN status IN ('signed_b','active','completed','cancelled') THEN status
  WHEN requester_signed_at IS NOT NULL THEN 'active'
  ELSE 'signed_b' END,
updated_at = now()
WHERE contract_id=$1
RETURNING ` + contractColumns
	default:
		return nil, fmt.Errorf("unknown party %q", party)
	}
	row := s.DB.QueryRow(ctx, q, id, block.SignedAt, block.Signature, block.SignatureHash, block.SignedIP, contractHash)
	return scanContract(row)
}

func (s *Postgres) MergeMetadata(ctx context.Context, id string, patch map[string]any) (*contract.Contract, error) {
	b, err := json.Marshal(patch)
	if err != nil {
		return nil, err
	}
	row := s.DB.QueryRow(ctx, `UPDATE contracts SET
metadata = COALESCE(metadata,'{}'::jsonb) || $2::jsonb,
updated_at = now()
WHERE contract_id=$1
RETURNING `+contractColumns, id, string(b))
	return scanContract(row)
}

func (s *Postgres) AddEvent(ctx context.Context, ev Event) error {
	b, err := json.Marshal(ev.Payload)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(ctx, `INSERT INTO contract_events(contract_id, type, actor_id, payload, occurred_at)
VALUES($1,$2,$3,$4::jsonb,$5)`, ev.ContractID, ev.Type, ev.ActorID, string(b), ev.OccurredAt)
	return err
}

func (s *Postgres) ListEvents(ctx context.Context, contractID string) ([]Event, error) {
	rows, err := s.DB.Query(ctx, `SELECT contract_id, type, actor_id, payload, occurred_at
FROM contract_events WHERE contract_id=$1 ORDER BY occurred_at ASC`, contractID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var ev Event
		var payload []byte
		if err := rows.Scan(&ev.ContractID, &ev.Type, &ev.ActorID, &payload, &ev.OccurredAt); err != nil {
			return nil, err
		}
		if len(payload) > 0 {
			_ = json.Unmarshal(payload, &ev.Payload)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContract(row rowScanner) (*contract.Contract, error) {
	var c contract.Contract
	var status string
	var terms, meta []byte
	err := row.Scan(&c.ID, &c.BookingID, &c.RequesterID, &c.ProviderID, &status, &terms, &c.Version,
		&c.EffectiveDate, &c.ExpiryDate,
		&c.Requester.SignedAt, &c.Requester.Signature, &c.Requester.SignatureHash, &c.Requester.SignedIP,
		&c.Provider.SignedAt, &c.Provider.Signature, &c.Provider.SignatureHash, &c.Provider.SignedIP,
		&c.ContractHash, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt, &meta)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	c.Status = contract.Status(status)
	if len(terms) > 0 {
		_ = json.Unmarshal(terms, &c.Terms)
	}
	if len(meta) > 0 {
		_ = json.Unmarshal(meta, &c.Metadata)
	}
	return &c, nil
}

func scanContracts(rows pgx.Rows) ([]*contract.Contract, error) {
	var out []*contract.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
