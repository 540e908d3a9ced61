package contract

import "testing"

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusDraft, StatusSent, StatusSignedA, StatusSignedB, StatusActive, StatusCompleted, StatusCancelled} {
		if !s.Valid() {
			t.Fatalf("expected %s to be valid", s)
		}
	}
	if Status("archived").Valid() {
		t.Fatalf("expected archived to be invalid")
	}
	if Status("").Valid() {
		t.Fatalf("expected empty status to be invalid")
	}
}

func TestNextStatusFirstSignature(t *testing.T) {
	if got := NextStatus(StatusDraft, PartyRequester, false); got != StatusSignedA {
		t.Fatalf("draft + requester = %s, want signed_a", got)
	}
	if got := NextStatus(StatusDraft, PartyProvider, false); got != StatusSignedB {
		t.Fatalf("draft + provider = %s, want signed_b", got)
	}
	if got := NextStatus(StatusSent, PartyRequester, false); got != StatusSignedA {
		t.Fatalf("sent + requester = %s, want signed_a", got)
	}
}

func TestNextStatusCountersignatureActivates(t *testing.T) {
	if got := NextStatus(StatusSignedB, PartyRequester, true); got != StatusActive {
		t.Fatalf("signed_b + requester with other signed = %s, want active", got)
	}
	if got := NextStatus(StatusSignedA, PartyProvider, true); got != StatusActive {
		t.Fatalf("signed_a + provider with other signed = %s, want active", got)
	}
}

func TestNextStatusIdempotent(t *testing.T) {
	cases := []struct {
		current Status
		signer  Party
	}{
		{StatusSignedA, PartyRequester},
		{StatusSignedB, PartyProvider},
		{StatusActive, PartyRequester},
		{StatusActive, PartyProvider},
	}
	for _, c := range cases {
		if got := NextStatus(c.current, c.signer, true); got != c.current {
			t.Fatalf("%s + %s = %s, want unchanged", c.current, c.signer, got)
		}
	}
}

func TestNextStatusNeverResurrectsTerminal(t *testing.T) {
	for _, terminal := range []Status{StatusCompleted, StatusCancelled} {
		for _, signer := range []Party{PartyRequester, PartyProvider} {
			for _, other := range []bool{false, true} {
				if got := NextStatus(terminal, signer, other); got != terminal {
					t.Fatalf("%s + %s (other=%v) = %s, want %s", terminal, signer, other, got, terminal)
				}
			}
		}
	}
}

func TestNextStatusNoPrematureActivation(t *testing.T) {
	// A single signature never reaches active.
	if got := NextStatus(StatusDraft, PartyRequester, false); got == StatusActive {
		t.Fatalf("requester alone must not activate")
	}
	if got := NextStatus(StatusSent, PartyProvider, false); got == StatusActive {
		t.Fatalf("provider alone must not activate")
	}
}

func TestPartyOther(t *testing.T) {
	if PartyRequester.Other() != PartyProvider || PartyProvider.Other() != PartyRequester {
		t.Fatalf("party counterparts are wrong")
	}
}

func TestCloneIsolatesMaps(t *testing.T) {
	c := &Contract{
		ID:       "ctr_1",
		Terms:    map[string]any{"rate": 25},
		Metadata: map[string]any{"note": "original"},
	}
	cp := c.Clone()
	cp.Terms["rate"] = 99
	cp.Metadata["note"] = "mutated"
	if c.Terms["rate"] != 25 || c.Metadata["note"] != "original" {
		t.Fatalf("clone shares map state with original")
	}
}
