package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/punchamoorthee/invosafe/internal/domain"
	"github.com/punchamoorthee/invosafe/internal/lifecycle"
	"github.com/punchamoorthee/invosafe/internal/logger"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	msgNotFound  = "Invoice not found"
	msgCancelled = "Batch cancelled"
)

var tracer = otel.Tracer("github.com/punchamoorthee/invosafe/internal/reconcile")

// Target is where a batch is applied. Lookup must only see invoices of the
// lender the batch runs for and return domain.ErrInvoiceNotFound otherwise.
type Target interface {
	Lookup(ctx context.Context, invoiceID string) (*domain.Invoice, error)
	Apply(ctx context.Context, inv *domain.Invoice, change lifecycle.Change) (*domain.Invoice, error)
}

type ResultStatus string

const (
	ResultSuccess ResultStatus = "success"
	ResultError   ResultStatus = "error"
)

// Result is the outcome of a single row.
type Result struct {
	Row       int          `json:"row"`
	InvoiceID string       `json:"invoice_id"`
	Status    ResultStatus `json:"status"`
	Message   string       `json:"message"`
}

// Report lists row results in input order.
type Report struct {
	BatchID      string              `json:"batch_id"`
	Operation    lifecycle.Operation `json:"operation"`
	Results      []Result            `json:"results"`
	SuccessCount int                 `json:"success_count"`
	ErrorCount   int                 `json:"error_count"`
	StartedAt    time.Time           `json:"started_at"`
	FinishedAt   time.Time           `json:"finished_at"`
}

type Options struct {
	// Concurrency bounds rows in flight. 1 applies rows strictly in order.
	Concurrency int
	// RowDelay is slept after each row.
	RowDelay time.Duration
}

type Engine struct {
	target Target
	opts   Options
	log    zerolog.Logger
}

func NewEngine(target Target, opts Options) *Engine {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Engine{
		target: target,
		opts:   opts,
		log:    logger.WithComponent("reconcile"),
	}
}

// Run applies every row of batch. Rows fail independently; a cancelled
// context stops dispatching and the remaining rows are reported as
// cancelled. Rows already applied stay applied.
func (e *Engine) Run(ctx context.Context, batch *Batch) *Report {
	report := &Report{
		BatchID:   ulid.Make().String(),
		Operation: batch.Operation,
		Results:   make([]Result, len(batch.Rows)),
		StartedAt: time.Now().UTC(),
	}

	ctx, span := tracer.Start(ctx, "reconcile.batch", trace.WithAttributes(
		attribute.String("batch.id", report.BatchID),
		attribute.String("batch.operation", string(batch.Operation)),
		attribute.Int("batch.rows", len(batch.Rows)),
	))
	defer span.End()

	var g errgroup.Group
	g.SetLimit(e.opts.Concurrency)
	for i, row := range batch.Rows {
		if ctx.Err() != nil {
			report.Results[i] = cancelled(row)
			continue
		}
		g.Go(func() error {
			report.Results[i] = e.processRow(ctx, batch.Operation, row)
			e.pause(ctx)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range report.Results {
		if r.Status == ResultSuccess {
			report.SuccessCount++
		} else {
			report.ErrorCount++
		}
		bulkRowsTotal.WithLabelValues(string(batch.Operation), string(r.Status)).Inc()
	}
	report.FinishedAt = time.Now().UTC()

	span.SetAttributes(
		attribute.Int("batch.success", report.SuccessCount),
		attribute.Int("batch.errors", report.ErrorCount),
	)
	e.log.Info().
		Str("batch_id", report.BatchID).
		Str("operation", string(batch.Operation)).
		Int("rows", len(batch.Rows)).
		Int("success", report.SuccessCount).
		Int("errors", report.ErrorCount).
		Dur("elapsed", report.FinishedAt.Sub(report.StartedAt)).
		Msg("Batch finished")
	return report
}

func (e *Engine) processRow(ctx context.Context, op lifecycle.Operation, row Row) Result {
	if ctx.Err() != nil {
		return cancelled(row)
	}
	ctx, span := tracer.Start(ctx, "reconcile.row", trace.WithAttributes(
		attribute.Int("row.line", row.Line),
		attribute.String("row.invoice_id", row.InvoiceID()),
	))
	defer span.End()

	res := Result{Row: row.Line, InvoiceID: row.InvoiceID()}
	fail := func(msg string) Result {
		res.Status, res.Message = ResultError, msg
		span.SetStatus(codes.Error, msg)
		e.log.Debug().Int("row", row.Line).Str("invoice_id", res.InvoiceID).Msg(msg)
		return res
	}

	if res.InvoiceID == "" {
		return fail("invoice_id: is required")
	}
	inv, err := e.target.Lookup(ctx, res.InvoiceID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fail(msgNotFound)
		}
		return fail(err.Error())
	}

	change, err := Change(op, row)
	if err != nil {
		return fail(err.Error())
	}
	// Check locally first so an illegal transition never reaches the target.
	if _, err := lifecycle.Apply(*inv, change); err != nil {
		return fail(err.Error())
	}
	if _, err := e.target.Apply(ctx, inv, change); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return fail(msgCancelled)
		}
		return fail(err.Error())
	}

	res.Status = ResultSuccess
	res.Message = "Successfully updated to " + op.Target().String()
	return res
}

func (e *Engine) pause(ctx context.Context) {
	if e.opts.RowDelay <= 0 {
		return
	}
	t := time.NewTimer(e.opts.RowDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func cancelled(row Row) Result {
	return Result{Row: row.Line, InvoiceID: row.InvoiceID(), Status: ResultError, Message: msgCancelled}
}
