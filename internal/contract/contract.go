package contract

import "time"

type Status string

const (
	StatusDraft     Status = "draft"
	StatusSent      Status = "sent"
	StatusSignedA   Status = "signed_a"
	StatusSignedB   Status = "signed_b"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is a member of the status enum.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusSignedA, StatusSignedB, StatusActive, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal statuses accept no further status transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Party identifies one of the two signing participants. The requester is
// party A, the provider party B.
type Party string

const (
	PartyRequester Party = "requester"
	PartyProvider  Party = "provider"
)

func (p Party) Valid() bool {
	return p == PartyRequester || p == PartyProvider
}

// Other returns the counterpart signer.
func (p Party) Other() Party {
	if p == PartyRequester {
		return PartyProvider
	}
	return PartyRequester
}

// SignatureBlock holds one party's e-signature state. A zero SignedAt means
// the party has not signed.
type SignatureBlock struct {
	SignedAt      *time.Time `json:"signed_at,omitempty"`
	Signature     string     `json:"signature,omitempty"`
	SignatureHash string     `json:"signature_hash,omitempty"`
	SignedIP      string     `json:"signed_ip,omitempty"`
}

func (b SignatureBlock) Signed() bool { return b.SignedAt != nil }

// Contract is the persisted agreement between a requester and a provider for
// a single booking. Mutated only through the engine.
type Contract struct {
	ID            string         `json:"contract_id"`
	BookingID     string         `json:"booking_id"`
	RequesterID   string         `json:"requester_id"`
	ProviderID    string         `json:"provider_id"`
	Status        Status         `json:"status"`
	Terms         map[string]any `json:"terms"`
	Version       int            `json:"version"`
	EffectiveDate *time.Time     `json:"effective_date,omitempty"`
	ExpiryDate    *time.Time     `json:"expiry_date,omitempty"`
	Requester     SignatureBlock `json:"requester_signature"`
	Provider      SignatureBlock `json:"provider_signature"`
	ContractHash  string         `json:"contract_hash,omitempty"`
	CreatedBy     string         `json:"created_by,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// SignatureFor returns the signature block belonging to p.
func (c *Contract) SignatureFor(p Party) SignatureBlock {
	if p == PartyRequester {
		return c.Requester
	}
	return c.Provider
}

// PartyID returns the canonical identifier of p.
func (c *Contract) PartyID(p Party) string {
	if p == PartyRequester {
		return c.RequesterID
	}
	return c.ProviderID
}

// Clone returns a deep copy so callers can never mutate shared state.
func (c *Contract) Clone() *Contract {
	out := *c
	out.Terms = cloneMap(c.Terms)
	out.Metadata = cloneMap(c.Metadata)
	return &out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// NextStatus computes the signing-driven transition for a contract currently
// in current when signer signs and the counterpart's signature is already
// present (otherSigned). The transition is a no-op once current already
// reflects the signer's completion or a later state: signing never regresses
// status, never resurrects a terminal contract, and reaches active only when
// both signatures are independently present.
func NextStatus(current Status, signer Party, otherSigned bool) Status {
	signed := StatusSignedA
	if signer == PartyProvider {
		signed = StatusSignedB
	}
	if current == signed || current == StatusActive || current.Terminal() {
		return current
	}
	if otherSigned {
		return StatusActive
	}
	return signed
}
