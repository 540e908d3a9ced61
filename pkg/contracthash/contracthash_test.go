package contracthash

import "testing"

func TestSumObjectDeterministic(t *testing.T) {
	v := map[string]any{"contract_id": "ctr_1", "version": 1}
	a, err := SumObject(v)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	b, err := SumObject(v)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if a != b {
		t.Fatalf("expected same hash, got %s vs %s", a, b)
	}
}

func TestSumObjectChangesWithContent(t *testing.T) {
	a, _ := SumObject(map[string]any{"version": 1})
	b, _ := SumObject(map[string]any{"version": 2})
	if a == b {
		t.Fatalf("expected different hashes")
	}
}

func TestSumStringDeterministic(t *testing.T) {
	if SumString("sigA") != SumString("sigA") {
		t.Fatalf("expected deterministic hash")
	}
	if SumString("sigA") == SumString("sigB") {
		t.Fatalf("expected different hashes for different material")
	}
}
