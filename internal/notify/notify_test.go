package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/kingdavid28/iyaya-contracts/internal/contract"
)

type recordingDispatcher struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (d *recordingDispatcher) Notify(ctx context.Context, ev Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, ev)
	return d.err
}

func (d *recordingDispatcher) types() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.events))
	for i, ev := range d.events {
		out[i] = ev.Type
	}
	return out
}

func testContract() *contract.Contract {
	return &contract.Contract{ID: "ctr_1", BookingID: "bk_1", Status: contract.StatusDraft}
}

func TestQueueDeliversInOrder(t *testing.T) {
	d := &recordingDispatcher{}
	q := NewQueue(d, 8, slog.Default())

	q.Publish(Event{Type: EventCreated, Contract: testContract()})
	q.Publish(Event{Type: EventSigned, Contract: testContract()})
	q.Close()

	got := d.types()
	if len(got) != 2 || got[0] != EventCreated || got[1] != EventSigned {
		t.Fatalf("unexpected delivery order: %v", got)
	}
}

func TestQueueSwallowsDispatcherFailure(t *testing.T) {
	d := &recordingDispatcher{err: errors.New("endpoint down")}
	q := NewQueue(d, 8, slog.Default())

	// Publish must not panic or propagate anything.
	q.Publish(Event{Type: EventResent, Contract: testContract()})
	q.Close()

	if len(d.types()) != 1 {
		t.Fatalf("expected the failed delivery to have been attempted")
	}
}

func TestQueuePublishNeverBlocksWhenFull(t *testing.T) {
	block := make(chan struct{})
	d := &blockingDispatcher{release: block}
	q := NewQueue(d, 1, slog.Default())

	// First event occupies the worker, second fills the buffer, the rest
	// must drop without blocking.
	for i := 0; i < 10; i++ {
		q.Publish(Event{Type: EventCreated, Contract: testContract()})
	}
	close(block)
	q.Close()
}

type blockingDispatcher struct {
	release chan struct{}
}

func (d *blockingDispatcher) Notify(ctx context.Context, ev Event) error {
	<-d.release
	return nil
}

func TestWebhookSignsBody(t *testing.T) {
	var gotBody []byte
	var gotSig, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get("X-Signature")
		gotType = r.Header.Get("X-Event-Type")
		w.WriteHeader(200)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, "secret-1")
	err := wh.Notify(context.Background(), Event{Type: EventActivated, Contract: testContract()})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}

	if gotType != EventActivated {
		t.Fatalf("event type header = %q, want %q", gotType, EventActivated)
	}
	mac := hmac.New(sha256.New, []byte("secret-1"))
	mac.Write(gotBody)
	if want := hex.EncodeToString(mac.Sum(nil)); gotSig != want {
		t.Fatalf("signature = %q, want %q", gotSig, want)
	}
}

func TestWebhookNonSuccessIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, "")
	if err := wh.Notify(context.Background(), Event{Type: EventCreated, Contract: testContract()}); err == nil {
		t.Fatalf("expected error on 500 response")
	}
}
