package intake

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"

	"pagesmith/app/core/queue"
	"pagesmith/app/core/store"
	"pagesmith/app/core/validate"
	"pagesmith/app/pkg/logger"
	"pagesmith/app/pkg/types"
)

// ErrBadSecret reports a failed authorization check. It is distinct from
// validation failures so the HTTP layer can answer 403 instead of 400.
var ErrBadSecret = errors.New("invalid secret")

const (
	StatusAccepted  = "accepted"
	StatusDuplicate = "duplicate"
)

// Outcome is the synchronous answer to one inbound request. Everything
// downstream of acceptance happens in the background and never reaches
// the original caller.
type Outcome struct {
	Status         string
	Message        string
	PreviousResult *types.PublishedResult
}

// Notifier delivers a result payload to the evaluation endpoint.
type Notifier interface {
	Notify(url string, payload types.NotifyPayload) bool
}

// Processor runs the generation-and-publish unit for an accepted
// request.
type Processor interface {
	Process(ctx context.Context, req types.TaskRequest) error
}

// Gate validates, authorizes, and dedups inbound requests, then hands
// new work to the queue. A per-key critical section around
// lookup-and-schedule keeps two near-simultaneous retransmissions of
// the same submission from both being scheduled.
type Gate struct {
	secret    string
	store     *store.Store
	notifier  Notifier
	queue     *queue.Queue
	processor Processor

	mu       sync.Mutex
	inFlight map[string]bool
}

func NewGate(secret string, st *store.Store, notifier Notifier, q *queue.Queue, processor Processor) *Gate {
	return &Gate{
		secret:    secret,
		store:     st,
		notifier:  notifier,
		queue:     q,
		processor: processor,
		inFlight:  map[string]bool{},
	}
}

// Accept decides one request. Validation, authorization, and the dedup
// lookup all complete before it returns; the pipeline itself never
// blocks the caller.
func (g *Gate) Accept(raw map[string]interface{}) (Outcome, error) {
	if err := validate.Check(raw); err != nil {
		return Outcome{}, err
	}
	req := validate.Decode(raw)

	if subtle.ConstantTimeCompare([]byte(req.Secret), []byte(g.secret)) != 1 {
		logger.Info("Invalid secret provided for task: %s", req.Task)
		return Outcome{}, ErrBadSecret
	}

	key := req.DedupKey()

	g.mu.Lock()
	if g.inFlight[key] {
		g.mu.Unlock()
		logger.Info("Submission %s already in flight, not rescheduling", key)
		return Outcome{
			Status:  StatusAccepted,
			Message: fmt.Sprintf("Processing round %d for task %s", req.Round, req.Task),
		}, nil
	}

	if prev, ok := g.store.Get(key); ok {
		g.mu.Unlock()
		logger.Info("Duplicate request detected - re-notifying")
		g.notifier.Notify(req.EvaluationURL, types.NotifyPayloadFor(req, prev))
		return Outcome{
			Status:         StatusDuplicate,
			Message:        "Request already processed, re-notification sent",
			PreviousResult: &prev,
		}, nil
	}

	g.inFlight[key] = true
	g.mu.Unlock()

	_, err := g.queue.Enqueue(queue.Job{
		Task: req.Task,
		Run: func(ctx context.Context) error {
			defer g.release(key)
			return g.processor.Process(ctx, req)
		},
	})
	if err != nil {
		g.release(key)
		return Outcome{}, fmt.Errorf("schedule processing: %w", err)
	}

	logger.Info("Request accepted - processing in background")
	return Outcome{
		Status:  StatusAccepted,
		Message: fmt.Sprintf("Processing round %d for task %s", req.Round, req.Task),
	}, nil
}

func (g *Gate) release(key string) {
	g.mu.Lock()
	delete(g.inFlight, key)
	g.mu.Unlock()
}
