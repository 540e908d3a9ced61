// Package notify carries lifecycle events to interested parties. Dispatch is
// best-effort: a failed or dropped notification never propagates to the
// engine operation that produced it.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kingdavid28/iyaya-contracts/internal/contract"
)

const (
	EventCreated       = "contract.created"
	EventStatusChanged = "contract.status_changed"
	EventSigned        = "contract.signed"
	EventActivated     = "contract.activated"
	EventResent        = "contract.resent"
)

type Event struct {
	Type     string             `json:"type"`
	Contract *contract.Contract `json:"contract"`
	Extra    map[string]any     `json:"extra,omitempty"`
}

// Dispatcher delivers a single event. Implementations own their transport
// and timeout discipline.
type Dispatcher interface {
	Notify(ctx context.Context, ev Event) error
}

// Queue hands events to a Dispatcher from a bounded buffer drained by one
// worker goroutine. Publish never blocks the caller: when the buffer is full
// the event is dropped with a warning.
type Queue struct {
	dispatcher Dispatcher
	logger     *slog.Logger
	timeout    time.Duration

	ch   chan Event
	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func NewQueue(d Dispatcher, size int, logger *slog.Logger) *Queue {
	if size <= 0 {
		size = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{
		dispatcher: d,
		logger:     logger,
		timeout:    5 * time.Second,
		ch:         make(chan Event, size),
		done:       make(chan struct{}),
	}
	q.wg.Add(1)
	go q.drain()
	return q
}

func (q *Queue) Publish(ev Event) {
	select {
	case <-q.done:
		q.logger.Warn("notification dropped, queue closed", "event", ev.Type)
		return
	default:
	}
	select {
	case q.ch <- ev:
	default:
		q.logger.Warn("notification dropped, queue full", "event", ev.Type)
	}
}

// Close stops the worker after delivering everything already queued.
func (q *Queue) Close() {
	q.once.Do(func() { close(q.done) })
	q.wg.Wait()
}

func (q *Queue) drain() {
	defer q.wg.Done()
	for {
		select {
		case ev := <-q.ch:
			q.deliver(ev)
		case <-q.done:
			for {
				select {
				case ev := <-q.ch:
					q.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

func (q *Queue) deliver(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	if err := q.dispatcher.Notify(ctx, ev); err != nil {
		nerr := &contract.NotificationError{Event: ev.Type, Err: err}
		q.logger.Warn("notification delivery failed", "event", ev.Type, "error", nerr)
	}
}

// Log is a Dispatcher that only records the event. Used in dev mode when no
// webhook endpoint is configured.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Notify(ctx context.Context, ev Event) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("contract event", "event", ev.Type, "contract_id", ev.Contract.ID, "status", ev.Contract.Status)
	return nil
}
