package runs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/groverq/internal/agent"
	"github.com/aristath/groverq/internal/analytics"
	"github.com/aristath/groverq/internal/environment"
	"github.com/aristath/groverq/internal/events"
	"github.com/aristath/groverq/internal/metrics"
	"github.com/aristath/groverq/internal/quantum"
)

const module = "runs"

// ErrQueueFull is returned by Submit when the queue cannot take another run.
var ErrQueueFull = errors.New("run queue is full")

// Archiver receives every completed run.
type Archiver interface {
	Archive(ctx context.Context, run *Run, history *agent.History, artifacts *Artifacts) error
}

// BackendFactory builds the measurement backend for one run.
type BackendFactory func(seed uint64) agent.Backend

// ServiceConfig tunes the service.
type ServiceConfig struct {
	QueueSize     int
	Retries       int
	RetryBackoff  time.Duration
	SummaryWindow int
}

// Option customises a Service.
type Option func(*Service)

// WithMetrics records run, episode and backend metrics on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Service) { s.metrics = c }
}

// WithArchiver hands completed runs to a.
func WithArchiver(a Archiver) Option {
	return func(s *Service) { s.archiver = a }
}

// WithBackendFactory replaces the simulator backend.
func WithBackendFactory(f BackendFactory) Option {
	return func(s *Service) { s.newBackend = f }
}

// Service queues runs and executes them one at a time on a single worker.
type Service struct {
	repo     *Repository
	events   *events.Manager
	metrics  *metrics.Collector
	archiver Archiver
	cfg      ServiceConfig
	log      zerolog.Logger

	newBackend BackendFactory
	queue      chan string

	mu      sync.Mutex
	current string
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewService creates a service. Start must be called before queued runs execute.
func NewService(repo *Repository, eventManager *events.Manager, cfg ServiceConfig, log zerolog.Logger, opts ...Option) *Service {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.SummaryWindow <= 0 {
		cfg.SummaryWindow = analytics.DefaultWindow
	}

	s := &Service{
		repo:   repo,
		events: eventManager,
		cfg:    cfg,
		log:    log.With().Str("service", "runs").Logger(),
		queue:  make(chan string, cfg.QueueSize),
	}
	s.newBackend = s.simulatorBackend
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) simulatorBackend(seed uint64) agent.Backend {
	var backend quantum.Backend = quantum.NewSimulator(seed)
	if s.metrics != nil {
		backend = s.metrics.Instrument(backend)
	}
	return quantum.NewRetryingBackend(backend, s.cfg.Retries, s.cfg.RetryBackoff, s.log)
}

// Repository returns the run store.
func (s *Service) Repository() *Repository {
	return s.repo
}

// QueueDepth returns the number of runs waiting for the worker.
func (s *Service) QueueDepth() int {
	return len(s.queue)
}

// Current returns the ID of the run being executed, or "".
func (s *Service) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Submit validates and stores a run, then queues it.
func (s *Service) Submit(ctx context.Context, req Request) (*Run, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run request: %w", err)
	}
	if req.Trigger == "" {
		req.Trigger = TriggerAPI
	}

	run := &Run{
		ID:        uuid.NewString(),
		Status:    StatusQueued,
		Request:   req,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := s.repo.Create(ctx, run); err != nil {
		return nil, err
	}

	select {
	case s.queue <- run.ID:
	default:
		if err := s.repo.Fail(ctx, run.ID, time.Now(), ErrQueueFull.Error()); err != nil {
			s.log.Error().Err(err).Str("run_id", run.ID).Msg("Failed to mark rejected run")
		}
		return nil, ErrQueueFull
	}
	s.reportQueue()

	s.events.EmitTyped(module, &events.RunQueuedData{
		RunID:       run.ID,
		Environment: string(req.Environment.Kind),
		MaxEpochs:   req.Hyperparameters.MaxEpochs,
		QueueDepth:  s.QueueDepth(),
	})
	s.log.Info().
		Str("run_id", run.ID).
		Str("trigger", string(req.Trigger)).
		Msg("Run queued")
	return run, nil
}

// Start fails runs interrupted by a previous shutdown, re-queues runs that
// were still waiting and launches the worker.
func (s *Service) Start(ctx context.Context) error {
	interrupted, err := s.repo.FailInterrupted(ctx, time.Now())
	if err != nil {
		return err
	}
	if interrupted > 0 {
		s.log.Warn().Int("count", interrupted).Msg("Marked interrupted runs as failed")
	}

	queued, err := s.repo.QueuedIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range queued {
		select {
		case s.queue <- id:
		default:
			_ = s.repo.Fail(ctx, id, time.Now(), ErrQueueFull.Error())
		}
	}
	s.reportQueue()

	workerCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.worker(workerCtx)

	s.log.Info().Int("requeued", len(queued)).Msg("Run worker started")
	return nil
}

// Stop cancels the running run, if any, and waits for the worker to exit.
// Runs still queued stay queued and are picked up by the next Start.
func (s *Service) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	s.log.Info().Msg("Run worker stopped")
}

func (s *Service) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-s.queue:
			s.reportQueue()
			s.execute(ctx, id)
		}
	}
}

func (s *Service) reportQueue() {
	if s.metrics != nil {
		s.metrics.SetQueueDepth(s.QueueDepth())
	}
}

func (s *Service) execute(ctx context.Context, id string) {
	log := s.log.With().Str("run_id", id).Logger()

	run, err := s.repo.Get(ctx, id)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load queued run")
		return
	}
	if run.Status != StatusQueued {
		log.Debug().Str("status", string(run.Status)).Msg("Skipping run that is no longer queued")
		return
	}

	started := time.Now()
	if err := s.repo.MarkRunning(ctx, id, started); err != nil {
		log.Error().Err(err).Msg("Failed to mark run as running")
		return
	}
	s.mu.Lock()
	s.current = id
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.current = ""
		s.mu.Unlock()
	}()

	history, trained, err := s.train(ctx, run, log)
	finished := time.Now()
	if err != nil {
		s.fail(run, err, started, finished, log)
		return
	}

	summary := s.summarize(run, history, trained)
	artifacts := CaptureArtifacts(trained)
	// Completion is recorded even if the worker is shutting down.
	storeCtx := context.WithoutCancel(ctx)
	if err := s.repo.Complete(storeCtx, id, finished, summary, history, artifacts); err != nil {
		s.fail(run, err, started, finished, log)
		return
	}

	if s.metrics != nil {
		s.metrics.RecordRun(string(StatusCompleted), finished.Sub(started), summary.SaturatedPairs)
	}
	s.events.EmitTyped(module, &events.RunCompletedData{
		RunID:       id,
		Episodes:    summary.Episodes,
		Goals:       summary.Goals,
		SuccessRate: summary.SuccessRate,
		Converged:   summary.Converged,
		DurationMs:  finished.Sub(started).Milliseconds(),
	})
	log.Info().
		Int("episodes", summary.Episodes).
		Int("goals", summary.Goals).
		Bool("converged", summary.Converged).
		Dur("duration", finished.Sub(started)).
		Msg("Run completed")

	if s.archiver != nil {
		run.Status = StatusCompleted
		run.Summary = summary
		run.StartedAt, run.FinishedAt = &started, &finished
		if err := s.archiver.Archive(storeCtx, run, history, artifacts); err != nil {
			log.Error().Err(err).Msg("Failed to archive run")
			s.events.EmitError(module, err, map[string]interface{}{"run_id": id, "stage": "archive"})
		}
	}
}

func (s *Service) train(ctx context.Context, run *Run, log zerolog.Logger) (*agent.History, *agent.Agent, error) {
	env, err := environment.New(run.Request.Environment)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build environment: %w", err)
	}

	a, err := agent.New(env, s.newBackend(run.Request.Seed), run.Request.Hyperparameters,
		agent.WithLogger(log),
		agent.WithProgress(func(r agent.EpisodeResult) {
			if s.metrics != nil {
				s.metrics.RecordEpisode(r.Steps, r.GoalReached)
			}
			s.events.EmitTyped(module, &events.EpisodeCompletedData{
				RunID:       run.ID,
				Episode:     r.Episode,
				Steps:       r.Steps,
				GoalReached: r.GoalReached,
				Return:      r.Return,
				MaxQDelta:   r.MaxQDelta,
			})
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build agent: %w", err)
	}

	s.events.EmitTyped(module, &events.RunStartedData{
		RunID:         run.ID,
		States:        a.States(),
		Actions:       a.Actions(),
		Width:         a.Width(),
		MaxIterations: a.MaxIterations(),
	})

	history, err := a.Train(ctx)
	if err != nil {
		return nil, nil, err
	}
	return history, a, nil
}

func (s *Service) summarize(run *Run, history *agent.History, a *agent.Agent) *Summary {
	return &Summary{
		Summary:        analytics.Summarize(history, s.cfg.SummaryWindow, run.Request.Hyperparameters.Eps),
		States:         a.States(),
		Actions:        a.Actions(),
		Width:          a.Width(),
		MaxIterations:  a.MaxIterations(),
		SaturatedPairs: a.Scheduler().SaturatedCount(),
		Measurements:   a.Selector().Measurements(),
		Resamples:      a.Selector().Resamples(),
		GreedyPolicy:   a.GreedyPolicy(),
	}
}

func (s *Service) fail(run *Run, cause error, started, finished time.Time, log zerolog.Logger) {
	if err := s.repo.Fail(context.Background(), run.ID, finished, cause.Error()); err != nil {
		log.Error().Err(err).Msg("Failed to mark run as failed")
	}
	if s.metrics != nil {
		s.metrics.RecordRun(string(StatusFailed), finished.Sub(started), 0)
	}

	data := &events.RunFailedData{RunID: run.ID, Error: cause.Error()}
	data.Episode, data.Step = failurePosition(cause)
	s.events.EmitTyped(module, data)

	log.Error().Err(cause).Msg("Run failed")
}

// failurePosition extracts the episode and step carried by agent errors.
func failurePosition(err error) (*int, *int) {
	var backendErr *agent.BackendError
	if errors.As(err, &backendErr) {
		return &backendErr.Episode, &backendErr.Step
	}
	var invalidErr *agent.InvalidActionError
	if errors.As(err, &invalidErr) {
		return &invalidErr.Episode, &invalidErr.Step
	}
	var envErr *agent.EnvironmentError
	if errors.As(err, &envErr) {
		return &envErr.Episode, &envErr.Step
	}
	return nil, nil
}
