// Package ingest drives one raw analysis response through validation,
// normalization and persistence.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/qfcreview/reviewdesk/internal/clock"
	"github.com/qfcreview/reviewdesk/internal/models"
	"github.com/qfcreview/reviewdesk/internal/normalize"
	"github.com/qfcreview/reviewdesk/internal/store"
)

// State is a stage of the ingestion lifecycle.
type State string

const (
	StateReceived    State = "received"
	StateValidating  State = "validating"
	StateNormalizing State = "normalizing"
	StatePersisting  State = "persisting"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// Status is the outcome of a successful ingestion.
type Status string

const (
	StatusStored    Status = "stored"
	StatusDuplicate Status = "duplicate"
)

// Transition is passed to the Observer on every state change.
type Transition struct {
	From State
	To   State
	At   time.Time
	Err  error
}

// Observer receives every state transition of every ingestion.
type Observer func(Transition)

// Persister stores canonical reports.
type Persister interface {
	Put(ctx context.Context, report *models.AnalysisReport, meta models.Metadata, raw []byte) (store.PutResult, error)
}

// FailureRecorder keeps a record of failed ingestions.
type FailureRecorder interface {
	RecordFailure(ctx context.Context, rec models.FailureRecord) error
}

// Result describes a finished ingestion. On failure State is StateFailed
// and ID is empty.
type Result struct {
	ID     string `json:"id,omitempty"`
	Status Status `json:"status,omitempty"`
	State  State  `json:"state"`
	Legacy bool   `json:"legacy,omitempty"`
}

// Options configures a Pipeline.
type Options struct {
	Clock     clock.Clock
	Observer  Observer
	Recorders []FailureRecorder
}

// Pipeline orchestrates the ingestion of raw responses.
type Pipeline struct {
	normalizer *normalize.Normalizer
	persister  Persister
	recorders  []FailureRecorder
	observer   Observer
	clock      clock.Clock
}

// New creates a Pipeline persisting into p.
func New(p Persister, opts Options) *Pipeline {
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	return &Pipeline{
		normalizer: normalize.New(opts.Clock),
		persister:  p,
		recorders:  opts.Recorders,
		observer:   opts.Observer,
		clock:      opts.Clock,
	}
}

// DedupeKey identifies a submission by its raw bytes and metadata hints.
func DedupeKey(raw []byte, meta models.Metadata) string {
	h := sha256.New()
	h.Write(raw)
	for _, hint := range []string{meta.Company, meta.DocumentType, meta.FileName} {
		h.Write([]byte{0})
		h.Write([]byte(hint))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// run tracks the state of one ingestion.
type run struct {
	p     *Pipeline
	state State
}

func (r *run) enter(to State, err error) {
	t := Transition{From: r.state, To: to, At: r.p.clock.Now(), Err: err}
	r.state = to

	log.Debug().Err(err).Str("from", string(t.From)).Str("to", string(t.To)).Msg("Ingestion state changed")

	if r.p.observer != nil {
		r.p.observer(t)
	}
}

// Ingest validates, normalizes and persists raw. Identical input is stored
// once; later submissions return the existing id with StatusDuplicate.
// Cancellation is honoured until persistence starts.
func (p *Pipeline) Ingest(ctx context.Context, raw []byte, meta models.Metadata) (*Result, error) {
	startTime := p.clock.Now()
	r := &run{p: p, state: StateReceived}
	if p.observer != nil {
		p.observer(Transition{To: StateReceived, At: startTime})
	}

	if err := ctx.Err(); err != nil {
		return p.fail(ctx, r, raw, meta, err)
	}

	r.enter(StateValidating, nil)
	doc, err := p.normalizer.Validate(raw)
	if err != nil {
		return p.fail(ctx, r, raw, meta, err)
	}

	r.enter(StateNormalizing, nil)
	report, err := p.normalizer.Canonicalize(doc, meta)
	if err != nil {
		return p.fail(ctx, r, raw, meta, err)
	}

	if err := ctx.Err(); err != nil {
		return p.fail(ctx, r, raw, meta, err)
	}

	r.enter(StatePersisting, nil)
	meta.DedupeKey = DedupeKey(raw, meta)
	put, err := p.persister.Put(context.WithoutCancel(ctx), report, meta, raw)
	if err != nil {
		return p.fail(ctx, r, raw, meta, err)
	}

	r.enter(StateDone, nil)
	res := &Result{ID: put.ID, Status: StatusStored, State: StateDone, Legacy: doc.Legacy()}
	if put.Duplicate {
		res.Status = StatusDuplicate
	}

	log.Info().
		Str("id", res.ID).
		Str("status", string(res.Status)).
		Str("company", report.Summary.CompanyName).
		Int("critical_gaps", report.CriticalGaps.Count).
		Bool("legacy", res.Legacy).
		Dur("duration", p.clock.Now().Sub(startTime)).
		Msg("Ingestion complete")

	return res, nil
}

// fail moves r to StateFailed and hands the payload to every recorder.
// Recorder errors are logged and never replace err.
func (p *Pipeline) fail(ctx context.Context, r *run, raw []byte, meta models.Metadata, err error) (*Result, error) {
	stage := r.state
	r.enter(StateFailed, err)

	log.Error().Err(err).Str("stage", string(stage)).Str("company", meta.Company).Msg("Ingestion failed")

	rec := models.FailureRecord{
		Stage:     string(stage),
		Error:     err.Error(),
		Payload:   raw,
		Metadata:  meta,
		Timestamp: p.clock.Now().UTC(),
	}
	recordCtx := context.WithoutCancel(ctx)
	for _, recorder := range p.recorders {
		if rerr := recorder.RecordFailure(recordCtx, rec); rerr != nil {
			log.Warn().Err(rerr).Msg("Failed to record ingestion failure")
		}
	}

	return &Result{State: StateFailed}, fmt.Errorf("ingest %s: %w", stage, err)
}

// IsCanceled reports whether err stems from context cancellation or deadline.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
