// Package engine owns the contract lifecycle: creation, status transition,
// dual independent signing, resend and export. Every mutation persists first,
// then invalidates the affected cache entries and emits a best-effort event;
// a notification failure never rolls back a committed mutation.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kingdavid28/iyaya-contracts/internal/cache"
	"github.com/kingdavid28/iyaya-contracts/internal/contract"
	"github.com/kingdavid28/iyaya-contracts/internal/export"
	"github.com/kingdavid28/iyaya-contracts/internal/identity"
	"github.com/kingdavid28/iyaya-contracts/internal/notify"
	"github.com/kingdavid28/iyaya-contracts/internal/store"
	"github.com/kingdavid28/iyaya-contracts/pkg/contracthash"
)

const (
	nsBookingContracts = "booking_contracts"
	nsUserContracts    = "user_contracts"

	defaultListTTL = 30 * time.Second
)

// ErrAccessDenied rejects an export request by a caller who is neither a
// party to the contract nor its creator.
var ErrAccessDenied = errors.New("caller does not have access to this contract")

type Config struct {
	Store    store.Store
	Events   *notify.Queue
	Identity identity.Resolver
	Exporter export.Gateway
	Logger   *slog.Logger
	ListTTL  time.Duration
}

type Engine struct {
	store    store.Store
	cache    *cache.Cache[[]*contract.Contract]
	events   *notify.Queue
	identity identity.Resolver
	exporter export.Gateway
	logger   *slog.Logger
	listTTL  time.Duration
	now      func() time.Time
}

func New(cfg Config) *Engine {
	e := &Engine{
		store:    cfg.Store,
		cache:    cache.New[[]*contract.Contract](),
		events:   cfg.Events,
		identity: cfg.Identity,
		exporter: cfg.Exporter,
		logger:   cfg.Logger,
		listTTL:  cfg.ListTTL,
		now:      time.Now,
	}
	if e.identity == nil {
		e.identity = identity.Passthrough{}
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.listTTL <= 0 {
		e.listTTL = defaultListTTL
	}
	return e
}

type CreateParams struct {
	BookingID     string
	RequesterID   string
	ProviderID    string
	Terms         map[string]any
	Status        contract.Status
	EffectiveDate *time.Time
	ExpiryDate    *time.Time
	Metadata      map[string]any
	Version       int
	CreatedBy     string
}

// CreateContract persists a new contract in draft (or a caller-chosen valid
// status), invalidates the booking and party list caches and emits a created
// event. Both signature blocks start empty.
func (e *Engine) CreateContract(ctx context.Context, p CreateParams) (*contract.Contract, error) {
	if p.BookingID == "" {
		return nil, &contract.ValidationError{Field: "booking_id", Reason: "required"}
	}
	if p.RequesterID == "" {
		return nil, &contract.ValidationError{Field: "requester_id", Reason: "required"}
	}
	if p.ProviderID == "" {
		return nil, &contract.ValidationError{Field: "provider_id", Reason: "required"}
	}
	if len(p.Terms) == 0 {
		return nil, &contract.ValidationError{Field: "terms", Reason: "required"}
	}

	requesterID, err := e.identity.Resolve(ctx, p.RequesterID)
	if err != nil {
		return nil, &contract.ConnectionError{Op: "resolve requester identity", Err: err}
	}
	providerID, err := e.identity.Resolve(ctx, p.ProviderID)
	if err != nil {
		return nil, &contract.ConnectionError{Op: "resolve provider identity", Err: err}
	}
	if requesterID == providerID {
		return nil, &contract.ValidationError{Field: "provider_id", Reason: "parties must be distinct"}
	}

	status := p.Status
	if status == "" {
		status = contract.StatusDraft
	}
	if !status.Valid() {
		return nil, &contract.ValidationError{Field: "status", Reason: "not a valid contract status"}
	}
	version := p.Version
	if version <= 0 {
		version = 1
	}

	now := e.now()
	c := &contract.Contract{
		ID:            "ctr_" + uuid.NewString(),
		BookingID:     p.BookingID,
		RequesterID:   requesterID,
		ProviderID:    providerID,
		Status:        status,
		Terms:         p.Terms,
		Version:       version,
		EffectiveDate: p.EffectiveDate,
		ExpiryDate:    p.ExpiryDate,
		CreatedBy:     p.CreatedBy,
		CreatedAt:     now,
		UpdatedAt:     now,
		Metadata:      p.Metadata,
	}
	c.ContractHash = e.hash(c)

	if err := e.store.Insert(ctx, c); err != nil {
		return nil, &contract.ConnectionError{Op: "insert contract", Err: err}
	}

	e.invalidateFor(c)
	e.audit(ctx, c.ID, notify.EventCreated, p.CreatedBy, map[string]any{"booking_id": c.BookingID})
	e.publish(notify.Event{Type: notify.EventCreated, Contract: c.Clone()})
	return c, nil
}

// GetContractByID is a pure read against the store; single-record reads are
// not cached since list invalidation is the cost driver.
func (e *Engine) GetContractByID(ctx context.Context, id string) (*contract.Contract, error) {
	return e.load(ctx, id)
}

func (e *Engine) GetContractsByBooking(ctx context.Context, bookingID string) ([]*contract.Contract, error) {
	if bookingID == "" {
		return nil, &contract.ValidationError{Field: "booking_id", Reason: "required"}
	}
	key := cache.Key{Namespace: nsBookingContracts, ID: bookingID}
	return e.cache.GetOrFetch(ctx, key, e.listTTL, func(ctx context.Context) ([]*contract.Contract, error) {
		list, err := e.store.ListByBooking(ctx, bookingID)
		if err != nil {
			return nil, &contract.ConnectionError{Op: "list contracts by booking", Err: err}
		}
		return list, nil
	})
}

func (e *Engine) GetContractsForUser(ctx context.Context, userID string, role contract.Party) ([]*contract.Contract, error) {
	if userID == "" {
		return nil, &contract.ValidationError{Field: "user_id", Reason: "required"}
	}
	if !role.Valid() {
		return nil, &contract.ValidationError{Field: "role", Reason: "must be requester or provider"}
	}
	key := cache.Key{Namespace: nsUserContracts, ID: userID, Qualifier: string(role)}
	return e.cache.GetOrFetch(ctx, key, e.listTTL, func(ctx context.Context) ([]*contract.Contract, error) {
		list, err := e.store.ListByParty(ctx, userID, role)
		if err != nil {
			return nil, &contract.ConnectionError{Op: "list contracts for user", Err: err}
		}
		return list, nil
	})
}

// UpdateContractStatus is the administrative escape hatch for cancelled,
// completed and other non-signing transitions. Only enum membership is
// checked; signing-driven transitions belong to SignContract.
func (e *Engine) UpdateContractStatus(ctx context.Context, id string, status contract.Status, metadata map[string]any) (*contract.Contract, error) {
	if !status.Valid() {
		return nil, &contract.ValidationError{Field: "status", Reason: "not a valid contract status"}
	}
	existing, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}

	updated, err := e.store.UpdateStatus(ctx, id, status, metadata)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &contract.NotFoundError{ID: id}
		}
		return nil, &contract.ConnectionError{Op: "update contract status", Err: err}
	}

	e.invalidateFor(updated)
	extra := map[string]any{"old_status": string(existing.Status), "new_status": string(updated.Status)}
	e.audit(ctx, id, notify.EventStatusChanged, "", extra)
	e.publish(notify.Event{Type: notify.EventStatusChanged, Contract: updated.Clone(), Extra: extra})
	return updated, nil
}

type SignatureMaterial struct {
	Signature     string
	SignatureHash string
	IPAddress     string
}

// SignContract writes signer's signature block unconditionally and applies
// the signing-driven status transition. Signing is idempotent with respect
// to status: re-signing refreshes the party's own block, never regresses
// status and never activates before both signatures are present.
func (e *Engine) SignContract(ctx context.Context, id string, signer contract.Party, material SignatureMaterial) (*contract.Contract, error) {
	if !signer.Valid() {
		return nil, &contract.ValidationError{Field: "signer", Reason: "must be requester or provider"}
	}
	existing, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}

	now := e.now()
	block := contract.SignatureBlock{
		SignedAt:      &now,
		Signature:     material.Signature,
		SignatureHash: material.SignatureHash,
		SignedIP:      material.IPAddress,
	}
	if block.SignatureHash == "" && block.Signature != "" {
		block.SignatureHash = contracthash.SumString(block.Signature)
	}

	projected := existing.Clone()
	if signer == contract.PartyRequester {
		projected.Requester = block
	} else {
		projected.Provider = block
	}

	updated, err := e.store.ApplySignature(ctx, id, signer, block, e.hash(projected))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &contract.NotFoundError{ID: id}
		}
		return nil, &contract.ConnectionError{Op: "apply signature", Err: err}
	}

	e.invalidateFor(updated)
	e.audit(ctx, id, notify.EventSigned, updated.PartyID(signer), map[string]any{"signer": string(signer), "status": string(updated.Status)})
	e.publish(notify.Event{Type: notify.EventSigned, Contract: updated.Clone(), Extra: map[string]any{"signer": string(signer)}})

	if existing.Status != contract.StatusActive && updated.Status == contract.StatusActive {
		e.audit(ctx, id, notify.EventActivated, "", nil)
		e.publish(notify.Event{Type: notify.EventActivated, Contract: updated.Clone()})
	}
	return updated, nil
}

// ResendContract re-notifies the parties about a pending contract. It is a
// best-effort courtesy action: every internal failure degrades to a false
// return, never an error.
func (e *Engine) ResendContract(ctx context.Context, id, actorID string) bool {
	c, err := e.load(ctx, id)
	if err != nil {
		e.logger.Warn("resend skipped", "contract_id", id, "error", err)
		return false
	}

	count := 0
	if n, ok := c.Metadata["resend_count"].(int); ok {
		count = n
	} else if f, ok := c.Metadata["resend_count"].(float64); ok {
		count = int(f)
	}
	patch := map[string]any{
		"resend_count":   count + 1,
		"last_resent_at": e.now().Format(time.RFC3339),
		"last_resent_by": actorID,
	}
	if updated, err := e.store.MergeMetadata(ctx, id, patch); err != nil {
		// Bookkeeping is optional; the notification still goes out.
		e.logger.Warn("resend bookkeeping failed", "contract_id", id, "error", err)
	} else {
		c = updated
		e.invalidateFor(c)
	}

	e.publish(notify.Event{Type: notify.EventResent, Contract: c.Clone(), Extra: map[string]any{"actor_id": actorID}})
	return true
}

type ExportOptions struct {
	CallerID          string
	IncludeSignatures bool
	Locale            string
}

// GenerateContractPDF authorizes the request and delegates rendering to the
// document gateway. Rendering failures surface as ExportError.
func (e *Engine) GenerateContractPDF(ctx context.Context, id string, opts ExportOptions) (*export.Result, error) {
	c, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if opts.CallerID != "" {
		callerID, err := e.identity.Resolve(ctx, opts.CallerID)
		if err != nil {
			return nil, &contract.ConnectionError{Op: "resolve caller identity", Err: err}
		}
		if callerID != c.RequesterID && callerID != c.ProviderID && callerID != c.CreatedBy {
			return nil, ErrAccessDenied
		}
	}
	return e.exporter.Render(ctx, export.Request{
		ContractID:        c.ID,
		IncludeSignatures: opts.IncludeSignatures,
		Locale:            opts.Locale,
	})
}

// ContractEvents returns the audit trail for a contract, oldest first.
func (e *Engine) ContractEvents(ctx context.Context, id string) ([]store.Event, error) {
	if _, err := e.load(ctx, id); err != nil {
		return nil, err
	}
	evs, err := e.store.ListEvents(ctx, id)
	if err != nil {
		return nil, &contract.ConnectionError{Op: "list contract events", Err: err}
	}
	return evs, nil
}

func (e *Engine) load(ctx context.Context, id string) (*contract.Contract, error) {
	if id == "" {
		return nil, &contract.ValidationError{Field: "contract_id", Reason: "required"}
	}
	c, err := e.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &contract.NotFoundError{ID: id}
		}
		return nil, &contract.ConnectionError{Op: "get contract", Err: err}
	}
	return c, nil
}

// hash digests the contract's canonical content: identity, parties, terms,
// version and both signature digests.
func (e *Engine) hash(c *contract.Contract) string {
	sum, err := contracthash.SumObject(map[string]any{
		"contract_id":   c.ID,
		"booking_id":    c.BookingID,
		"requester_id":  c.RequesterID,
		"provider_id":   c.ProviderID,
		"terms":         c.Terms,
		"version":       c.Version,
		"requester_sig": c.Requester.SignatureHash,
		"provider_sig":  c.Provider.SignatureHash,
	})
	if err != nil {
		e.logger.Warn("contract hash failed", "contract_id", c.ID, "error", err)
		return ""
	}
	return sum
}

func (e *Engine) invalidateFor(c *contract.Contract) {
	e.cache.Invalidate(cache.Prefix{Namespace: nsBookingContracts, ID: c.BookingID})
	e.cache.Invalidate(cache.Prefix{Namespace: nsUserContracts, ID: c.RequesterID})
	e.cache.Invalidate(cache.Prefix{Namespace: nsUserContracts, ID: c.ProviderID})
}

func (e *Engine) audit(ctx context.Context, contractID, typ, actorID string, payload map[string]any) {
	err := e.store.AddEvent(ctx, store.Event{
		ContractID: contractID,
		Type:       typ,
		ActorID:    actorID,
		Payload:    payload,
		OccurredAt: e.now(),
	})
	if err != nil {
		e.logger.Warn("audit event write failed", "contract_id", contractID, "event", typ, "error", err)
	}
}

func (e *Engine) publish(ev notify.Event) {
	if e.events == nil {
		return
	}
	e.events.Publish(ev)
}
