// ABOUTME: Drives a sync run from a contact source into EveryAction
// ABOUTME: Upserts each contact in turn, journals outcomes and reports progress and a summary
package sync

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hotgluexyz/target-everyaction/db"
	"github.com/hotgluexyz/target-everyaction/models"
	"github.com/rs/zerolog"
)

// Source yields contacts to upsert. Next returns io.EOF when exhausted.
type Source interface {
	Name() string
	Next(ctx context.Context) (*models.Contact, error)
}

// EventKind classifies a progress event.
type EventKind string

const (
	EventCreated EventKind = "created"
	EventUpdated EventKind = "updated"
	EventFailed  EventKind = "failed"
	EventSkipped EventKind = "skipped"
	EventPreview EventKind = "preview"
)

// Event reports the outcome for one contact.
type Event struct {
	Kind     EventKind
	SourceID string
	Result   models.UpsertResult
	Err      error
	// Diff is set for previews.
	Diff string
}

// RunOptions tunes a run.
type RunOptions struct {
	// DryRun maps and merges each contact but writes nothing.
	DryRun bool
	// SkipSynced skips contacts the journal already shows as upserted.
	SkipSynced bool
	// OnEvent is called after every contact.
	OnEvent func(Event)
	// Stop is polled between contacts. Once it reports true the run ends
	// cleanly; the contact in flight is finished first.
	Stop func() bool
}

// Summary totals a run.
type Summary struct {
	RunID        string
	Source       string
	Total        int
	Created      int
	Updated      int
	Failed       int
	Skipped      int
	CodesApplied int
	CodesMissing int
	CodesFailed  int
	DryRun       bool
	Stopped      bool
	Duration     time.Duration
}

// Runner upserts every contact of a source, one at a time.
type Runner struct {
	upserter *Upserter
	db       *sql.DB
	log      zerolog.Logger
}

// NewRunner creates a runner. database may be nil to disable the journal.
func NewRunner(upserter *Upserter, database *sql.DB, logger *zerolog.Logger) *Runner {
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	return &Runner{
		upserter: upserter,
		db:       database,
		log:      l.With().Str("component", "runner").Logger(),
	}
}

// Run processes source until it is exhausted or opts.Stop asks it to end.
// Per-contact failures, unreadable records included, are counted and
// journaled; only source read and context errors end the run early.
func (r *Runner) Run(ctx context.Context, source Source, opts RunOptions) (Summary, error) {
	started := time.Now()
	summary := Summary{RunID: NewRunID(), Source: source.Name(), DryRun: opts.DryRun}
	log := r.log.With().Str("run_id", summary.RunID).Str("source", summary.Source).Logger()
	journal := r.db != nil && !opts.DryRun

	emit := func(e Event) {
		if opts.OnEvent != nil {
			opts.OnEvent(e)
		}
	}

	if journal {
		if err := db.UpdateSyncStatus(r.db, summary.Source, "syncing", nil); err != nil {
			return summary, err
		}
	}

	fail := func(err error) (Summary, error) {
		summary.Duration = time.Since(started)
		if journal {
			msg := err.Error()
			_ = db.UpdateSyncStatus(r.db, summary.Source, "error", &msg)
		}
		return summary, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		if opts.Stop != nil && opts.Stop() {
			summary.Stopped = true
			log.Info().Int("total", summary.Total).Msg("stop requested, ending run")
			break
		}

		contact, err := source.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		var recErr *RecordError
		if errors.As(err, &recErr) {
			r.skipRecord(recErr, &summary, journal, log, emit)
			continue
		}
		if err != nil {
			return fail(fmt.Errorf("failed to read contact: %w", err))
		}

		summary.Total++
		sourceID := contact.SourceID()

		if opts.SkipSynced && r.db != nil && sourceID != "" {
			exists, err := db.CheckSyncLogExists(r.db, summary.Source, sourceID)
			if err != nil {
				log.Warn().Err(err).Str("source_id", sourceID).Msg("failed to check sync log")
			} else if exists {
				summary.Skipped++
				emit(Event{Kind: EventSkipped, SourceID: sourceID})
				continue
			}
		}

		if opts.DryRun {
			r.preview(ctx, *contact, &summary, emit)
			continue
		}

		result, err := r.upserter.Upsert(ctx, *contact)
		event := Event{SourceID: sourceID, Result: result, Err: err}
		switch {
		case err != nil:
			summary.Failed++
			event.Kind = EventFailed
		case result.State.IsUpdated:
			summary.Updated++
			event.Kind = EventUpdated
		default:
			summary.Created++
			event.Kind = EventCreated
		}
		summary.CodesApplied += len(result.State.AppliedCodes)
		summary.CodesMissing += len(result.State.MissingCodes)
		summary.CodesFailed += len(result.State.FailedCodes)

		if journal {
			r.journal(summary, sourceID, result, log)
		}
		emit(event)
	}

	summary.Duration = time.Since(started)
	if journal {
		if err := db.UpdateSyncToken(r.db, summary.Source, summary.RunID); err != nil {
			return summary, err
		}
	}

	log.Info().
		Int("total", summary.Total).
		Int("created", summary.Created).
		Int("updated", summary.Updated).
		Int("failed", summary.Failed).
		Int("skipped", summary.Skipped).
		Bool("stopped", summary.Stopped).
		Dur("duration", summary.Duration).
		Msg("sync run finished")

	return summary, nil
}

// skipRecord counts and journals a record the source could not read.
func (r *Runner) skipRecord(recErr *RecordError, summary *Summary, journal bool, log zerolog.Logger, emit func(Event)) {
	sourceID := fmt.Sprintf("line:%d", recErr.Line)
	log.Error().Err(recErr).Int("line", recErr.Line).Msg("skipping unreadable record")

	summary.Total++
	summary.Failed++

	result := failedResult(recErr)
	if journal {
		r.journal(*summary, sourceID, result, log)
	}
	emit(Event{Kind: EventFailed, SourceID: sourceID, Result: result, Err: recErr})
}

func (r *Runner) preview(ctx context.Context, contact models.Contact, summary *Summary, emit func(Event)) {
	sourceID := contact.SourceID()

	preview, err := r.upserter.Preview(ctx, contact)
	if err == nil {
		var diff string
		diff, err = PayloadDiff(preview.Existing, preview.Payload)
		if err == nil {
			emit(Event{Kind: EventPreview, SourceID: sourceID, Diff: diff})
			return
		}
	}

	summary.Failed++
	emit(Event{Kind: EventFailed, SourceID: sourceID, Err: err})
}

func (r *Runner) journal(summary Summary, sourceID string, result models.UpsertResult, log zerolog.Logger) {
	metadata, err := json.Marshal(result.State)
	if err != nil {
		metadata = nil
	}

	entry := &db.SyncLog{
		RunID:         summary.RunID,
		SourceService: summary.Source,
		SourceID:      sourceID,
		VanID:         result.VanID,
		Success:       result.Success,
		IsUpdated:     result.State.IsUpdated,
		Merged:        result.State.Merged,
		Error:         result.State.Error,
		Metadata:      string(metadata),
	}
	if err := db.CreateSyncLog(r.db, entry); err != nil {
		log.Warn().Err(err).Str("source_id", sourceID).Msg("failed to journal upsert")
	}
}

// PrintSummary writes a human-readable run summary.
func PrintSummary(w io.Writer, s Summary) {
	if s.DryRun {
		_, _ = fmt.Fprintf(w, "\n✓ Previewed %d contacts from %s (dry run, nothing written)\n", s.Total-s.Skipped-s.Failed, s.Source)
		if s.Failed > 0 {
			_, _ = fmt.Fprintf(w, "  ✗ %d contacts could not be previewed\n", s.Failed)
		}
		if s.Stopped {
			_, _ = fmt.Fprintln(w, "  → Stopped on request before the input ended")
		}
		return
	}

	_, _ = fmt.Fprintf(w, "\n✓ Processed %d contacts from %s in %s\n", s.Total, s.Source, s.Duration.Round(time.Millisecond))
	if s.Stopped {
		_, _ = fmt.Fprintln(w, "  → Stopped on request before the input ended")
	}
	if s.Total == 0 {
		_, _ = fmt.Fprintln(w, "  ✓ Nothing to upsert")
		return
	}
	if s.Created > 0 {
		_, _ = fmt.Fprintf(w, "  ✓ Created %d new contacts\n", s.Created)
	}
	if s.Updated > 0 {
		_, _ = fmt.Fprintf(w, "  ✓ Updated %d existing contacts\n", s.Updated)
	}
	if s.Skipped > 0 {
		_, _ = fmt.Fprintf(w, "  → Skipped %d already synced contacts\n", s.Skipped)
	}
	if s.CodesApplied > 0 {
		_, _ = fmt.Fprintf(w, "  ✓ Applied %d codes\n", s.CodesApplied)
	}
	if s.CodesMissing > 0 {
		_, _ = fmt.Fprintf(w, "  → %d activist codes not found\n", s.CodesMissing)
	}
	if s.CodesFailed > 0 {
		_, _ = fmt.Fprintf(w, "  ✗ %d codes failed to apply\n", s.CodesFailed)
	}
	if s.Failed > 0 {
		_, _ = fmt.Fprintf(w, "  ✗ %d contacts failed\n", s.Failed)
	}
	_, _ = fmt.Fprintf(w, "  Run ID: %s\n", s.RunID)
}
