// Package pipeline drives the fetch, parse, classify, and store stages over
// sitting dates.
package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"hemicycle.dev/plenary/internal/db"
	"hemicycle.dev/plenary/internal/fetcher"
	"hemicycle.dev/plenary/internal/meps"
	"hemicycle.dev/plenary/internal/parser"
	"hemicycle.dev/plenary/internal/parties"
	"hemicycle.dev/plenary/internal/sections"
	"hemicycle.dev/plenary/internal/topics"
)

const isoDate = "2006-01-02"

const defaultAIWorkers = 50

// defaultRefreshStart is where refresh begins on an empty store: the first
// day of the current parliamentary term.
const defaultRefreshStart = "2024-07-16"

// Result aggregates one pipeline run.
type Result struct {
	Processed    int
	Failed       int
	FetchSkipped int
	AIFailed     int
	Pending      int
}

// Options sizes the two concurrent stages.
type Options struct {
	FetchConcurrency int
	AIWorkers        int
}

// Orchestrator composes the ingest stages. One failure never blocks progress
// on another sitting; only store-layer fatal errors abort the run.
type Orchestrator struct {
	pool       *db.Pool
	fetcher    *fetcher.Fetcher
	classifier *topics.Classifier
	resolver   *meps.Resolver
	failures   *FailureLog

	fetchConcurrency int
	aiWorkers        int
	logger           zerolog.Logger
}

func New(pool *db.Pool, f *fetcher.Fetcher, classifier *topics.Classifier, resolver *meps.Resolver, failures *FailureLog, opts Options, logger zerolog.Logger) *Orchestrator {
	fetchConcurrency := opts.FetchConcurrency
	if fetchConcurrency < 1 {
		fetchConcurrency = 20
	}
	aiWorkers := opts.AIWorkers
	if aiWorkers < 1 {
		aiWorkers = defaultAIWorkers
	}
	return &Orchestrator{
		pool:             pool,
		fetcher:          f,
		classifier:       classifier,
		resolver:         resolver,
		failures:         failures,
		fetchConcurrency: fetchConcurrency,
		aiWorkers:        aiWorkers,
		logger:           logger.With().Str("component", "pipeline").Logger(),
	}
}

// Refresh finds the most recent fully classified sitting date and runs bulk
// from the day after through today, picking up stored-but-unclassified
// sittings along the way.
func (o *Orchestrator) Refresh(ctx context.Context) (*Result, error) {
	last, err := o.pool.LastFullyClassifiedDate(ctx)
	if err != nil {
		return nil, fmt.Errorf("find last classified date: %w", err)
	}

	start := defaultRefreshStart
	if last != "" {
		day, err := time.Parse(isoDate, last)
		if err != nil {
			return nil, fmt.Errorf("stored date %q is not ISO: %w", last, err)
		}
		start = day.AddDate(0, 0, 1).Format(isoDate)
	}
	end := time.Now().UTC().Format(isoDate)
	if start > end {
		o.logger.Info().Str("start", start).Msg("store already current")
		return &Result{}, nil
	}

	result, err := o.run(ctx, "refresh", start, end, true)
	return result, err
}

// Bulk ingests every date in [startDate, endDate]. With includeUnclassified,
// stored sittings whose speeches lack macro topics are re-processed from the
// stored HTML instead of the network.
func (o *Orchestrator) Bulk(ctx context.Context, startDate, endDate string, includeUnclassified bool) (*Result, error) {
	return o.run(ctx, "bulk", startDate, endDate, includeUnclassified)
}

// task is one sitting date to process.
type task struct {
	date string
	// fromStore reads HTML from the primary store and replaces the
	// sitting's speeches on store.
	fromStore bool
}

func (o *Orchestrator) run(ctx context.Context, mode, startDate, endDate string, includeUnclassified bool) (*Result, error) {
	startedAt := time.Now().UTC()

	tasks, err := o.enumerate(ctx, startDate, endDate, includeUnclassified)
	if err != nil {
		return nil, err
	}
	o.logger.Info().
		Str("mode", mode).
		Str("start", startDate).
		Str("end", endDate).
		Int("candidates", len(tasks)).
		Msg("pipeline run starting")

	counters := &runCounters{}
	batchCh := make(chan *classifyJob, o.aiWorkers*2)

	classifyGroup, classifyCtx := errgroup.WithContext(ctx)
	for i := 0; i < o.aiWorkers; i++ {
		classifyGroup.Go(func() error {
			for job := range batchCh {
				o.runClassifyJob(classifyCtx, job, counters)
			}
			return nil
		})
	}

	fetchGroup, fetchCtx := errgroup.WithContext(ctx)
	fetchGroup.SetLimit(o.fetchConcurrency)
	for _, t := range tasks {
		fetchGroup.Go(func() error {
			o.processDate(fetchCtx, t, batchCh, counters)
			return nil
		})
	}

	fetchErr := fetchGroup.Wait()
	close(batchCh)
	classifyErr := classifyGroup.Wait()

	result := counters.result(len(tasks))
	o.recordRun(ctx, mode, startDate, endDate, startedAt, result)

	if fetchErr != nil {
		return result, fetchErr
	}
	if classifyErr != nil {
		return result, classifyErr
	}
	o.logger.Info().
		Int("processed", result.Processed).
		Int("failed", result.Failed).
		Int("fetch_skipped", result.FetchSkipped).
		Int("ai_failed", result.AIFailed).
		Int("pending", result.Pending).
		Msg("pipeline run finished")
	return result, nil
}

// enumerate walks the date range and keeps dates that still need work.
func (o *Orchestrator) enumerate(ctx context.Context, startDate, endDate string, includeUnclassified bool) ([]task, error) {
	start, err := time.Parse(isoDate, startDate)
	if err != nil {
		return nil, fmt.Errorf("start date %q: %w", startDate, err)
	}
	end, err := time.Parse(isoDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("end date %q: %w", endDate, err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("end date %s before start date %s", endDate, startDate)
	}

	stored, err := o.pool.StoredUsableDates(ctx, startDate, endDate)
	if err != nil {
		return nil, err
	}
	unclassified := map[string]bool{}
	if includeUnclassified {
		unclassified, err = o.pool.UnclassifiedDates(ctx, startDate, endDate)
		if err != nil {
			return nil, err
		}
	}

	var tasks []task
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		date := day.Format(isoDate)
		if stored[date] {
			if includeUnclassified && unclassified[date] {
				tasks = append(tasks, task{date: date, fromStore: true})
			}
			continue
		}
		tasks = append(tasks, task{date: date})
	}
	return tasks, nil
}

// sittingWork accumulates per-sitting state across the classify stage.
type sittingWork struct {
	task   task
	html   string
	parsed *parser.ParsedSitting

	classifications []topics.Classification
	remaining       atomic.Int32
}

type classifyJob struct {
	work   *sittingWork
	titles []string
	offset int
}

// processDate runs the fetch stage for one date: obtain HTML, parse, and
// either finalize directly (no agenda topics) or enqueue classify batches.
func (o *Orchestrator) processDate(ctx context.Context, t task, batchCh chan<- *classifyJob, counters *runCounters) {
	if ctx.Err() != nil {
		return
	}

	html, ok := o.obtainHTML(ctx, t, counters)
	if !ok {
		return
	}

	parsed, err := parser.ParseSitting(html)
	if err != nil {
		o.failures.Record(CategoryParse, t.date, err.Error())
		counters.failed.Add(1)
		o.logger.Warn().Str("date", t.date).Err(err).Msg("sitting parse failed")
		return
	}
	work := &sittingWork{
		task:            t,
		html:            html,
		parsed:          parsed,
		classifications: make([]topics.Classification, len(parsed.Topics)),
	}

	if len(parsed.Speeches) == 0 {
		// Store the sitting anyway so the date is not re-fetched forever.
		o.logger.Debug().Str("date", t.date).Msg("no speeches extracted, storing sitting without speech rows")
		o.finalize(ctx, work, counters)
		return
	}

	titles := make([]string, len(parsed.Topics))
	for i, topic := range parsed.Topics {
		titles[i] = topic.Title
	}

	batchSize := o.classifier.BatchSize()
	batchCount := (len(titles) + batchSize - 1) / batchSize
	if batchCount == 0 {
		o.finalize(ctx, work, counters)
		return
	}

	work.remaining.Store(int32(batchCount))
	for offset := 0; offset < len(titles); offset += batchSize {
		end := offset + batchSize
		if end > len(titles) {
			end = len(titles)
		}
		job := &classifyJob{work: work, titles: titles[offset:end], offset: offset}
		select {
		case batchCh <- job:
		case <-ctx.Done():
			return
		}
	}
}

// obtainHTML reads the transcript from the store for re-classification work,
// or fetches it from the network.
func (o *Orchestrator) obtainHTML(ctx context.Context, t task, counters *runCounters) (string, bool) {
	if t.fromStore {
		html, err := o.pool.SittingHTML(ctx, t.date)
		if err != nil {
			o.failures.Record(CategoryStore, t.date, err.Error())
			counters.failed.Add(1)
			return "", false
		}
		return html, true
	}

	day, err := time.Parse(isoDate, t.date)
	if err != nil {
		counters.failed.Add(1)
		return "", false
	}
	result, err := o.fetcher.FetchSitting(ctx, day)
	if err != nil {
		o.failures.Record(CategoryFetch, t.date, err.Error())
		counters.fetchSkipped.Add(1)
		return "", false
	}
	switch result.Kind {
	case fetcher.KindOK:
		return string(result.Body), true
	case fetcher.KindNotFound, fetcher.KindTooShort:
		// No sitting that day.
		counters.noSitting.Add(1)
		return "", false
	default:
		o.failures.Record(CategoryFetch, t.date, fmt.Sprintf("%s (status %d)", result.Kind, result.StatusCode))
		counters.fetchSkipped.Add(1)
		return "", false
	}
}

// runClassifyJob labels one batch and finalizes the sitting when its last
// batch completes.
func (o *Orchestrator) runClassifyJob(ctx context.Context, job *classifyJob, counters *runCounters) {
	classifications, failed := o.classifier.ClassifyBatch(ctx, job.titles)
	if failed {
		counters.aiFailed.Add(1)
		o.failures.Record(CategoryAI, job.work.task.date,
			fmt.Sprintf("batch at offset %d fell back", job.offset))
	}
	copy(job.work.classifications[job.offset:], classifications)

	if job.work.remaining.Add(-1) == 0 {
		o.finalize(ctx, job.work, counters)
	}
}

// finalize composes speeches with their section's labels, stores the sitting
// atomically, and links resolvable speakers.
func (o *Orchestrator) finalize(ctx context.Context, work *sittingWork, counters *runCounters) {
	speeches := composeSpeeches(work.parsed, work.classifications)

	sitting := db.Sitting{
		ID:           db.SittingID(work.task.date),
		ActivityDate: work.task.date,
		Content:      work.html,
	}
	if len(work.parsed.Topics) > 0 {
		sitting.DocIdentifier = work.parsed.Topics[0].DocIdentifier
	}

	if err := o.pool.StoreSitting(ctx, sitting, speeches, work.task.fromStore); err != nil {
		o.failures.Record(CategoryStore, work.task.date, err.Error())
		counters.failed.Add(1)
		o.logger.Error().Str("date", work.task.date).Err(err).Msg("sitting store failed")
		return
	}

	if _, _, err := o.resolver.LinkOnly(ctx); err != nil {
		// Resolution is retried by the next run; the sitting itself is in.
		o.logger.Warn().Str("date", work.task.date).Err(err).Msg("speaker linking failed")
	}

	counters.processed.Add(1)
	o.logger.Info().
		Str("date", work.task.date).
		Int("speeches", len(speeches)).
		Int("topics", len(work.parsed.Topics)).
		Msg("sitting stored")
}

// composeSpeeches converts parsed records to rows, attaching each speech's
// macro topic through the section matcher and normalizing affiliations.
func composeSpeeches(parsed *parser.ParsedSitting, classifications []topics.Classification) []db.Speech {
	labelByTitle := make(map[string]topics.Classification, len(parsed.Topics))
	for i, topic := range parsed.Topics {
		if i < len(classifications) {
			labelByTitle[topic.Title] = classifications[i]
		}
	}
	matcher := sections.NewMatcher(parsed.Sections)

	speeches := make([]db.Speech, 0, len(parsed.Speeches))
	for _, rec := range parsed.Speeches {
		norm := parties.Normalize(rec.PoliticalGroup, rec.Title)
		speech := db.Speech{
			SpeakerName:        rec.SpeakerName,
			PoliticalGroup:     rec.PoliticalGroup,
			PoliticalGroupStd:  norm.Std,
			PoliticalGroupKind: norm.Kind,
			PoliticalGroupRaw:  rec.PoliticalGroup,
			Title:              rec.Title,
			SpeechContent:      rec.Body,
		}
		if match, ok := matcher.Find(rec.Body); ok {
			speech.Topic = match.Section.Title
			if cl, found := labelByTitle[match.Section.Title]; found {
				speech.MacroTopic = cl.MacroTopic
				speech.MacroSpecificFocus = cl.SpecificFocus
				speech.MacroConfidence = cl.Confidence
			}
		}
		speeches = append(speeches, speech)
	}
	return speeches
}

type runCounters struct {
	processed    atomic.Int32
	failed       atomic.Int32
	fetchSkipped atomic.Int32
	aiFailed     atomic.Int32
	noSitting    atomic.Int32
}

func (c *runCounters) result(candidates int) *Result {
	attempted := int(c.processed.Load()) + int(c.failed.Load()) +
		int(c.fetchSkipped.Load()) + int(c.noSitting.Load())
	pending := candidates - attempted
	if pending < 0 {
		pending = 0
	}
	return &Result{
		Processed:    int(c.processed.Load()),
		Failed:       int(c.failed.Load()),
		FetchSkipped: int(c.fetchSkipped.Load()),
		AIFailed:     int(c.aiFailed.Load()),
		Pending:      pending,
	}
}

func (o *Orchestrator) recordRun(ctx context.Context, mode, startDate, endDate string, startedAt time.Time, result *Result) {
	finishedAt := time.Now().UTC()
	run := db.PipelineRun{
		Mode:         mode,
		StartDate:    startDate,
		EndDate:      endDate,
		Processed:    result.Processed,
		Failed:       result.Failed,
		FetchSkipped: result.FetchSkipped,
		AIFailed:     result.AIFailed,
		Pending:      result.Pending,
		StartedAt:    startedAt,
		FinishedAt:   &finishedAt,
	}
	if err := o.pool.RecordPipelineRun(ctx, run); err != nil {
		o.logger.Warn().Err(err).Msg("run ledger write failed")
	}
}
