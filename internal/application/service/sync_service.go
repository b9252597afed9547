package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sangkips/tillsync/internal/domain/entity"
	"github.com/sangkips/tillsync/internal/domain/enum"
	"github.com/sangkips/tillsync/internal/domain/repository"
	"github.com/sangkips/tillsync/internal/infrastructure/remote"
	"github.com/sangkips/tillsync/pkg/apperror"
	"github.com/sangkips/tillsync/pkg/clock"
	"github.com/sangkips/tillsync/pkg/connectivity"
	"github.com/sangkips/tillsync/pkg/pagination"
	"github.com/sangkips/tillsync/pkg/scheduler"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// cycleRetryKey is the scheduler key of the coarse retry armed after a
// network failure. Client ticket ids are UUIDs and never collide with it.
const cycleRetryKey = "#cycle"

// SyncOptions tunes the sync orchestrator
type SyncOptions struct {
	MaxRetries        int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	Interval          time.Duration
	NetworkRetryDelay time.Duration
	RetentionDays     int
}

// DefaultSyncOptions returns the production defaults
func DefaultSyncOptions() SyncOptions {
	return SyncOptions{
		MaxRetries:        5,
		BaseDelay:         time.Second,
		MaxDelay:          time.Hour,
		Interval:          2 * time.Minute,
		NetworkRetryDelay: 30 * time.Second,
		RetentionDays:     7,
	}
}

func (o SyncOptions) withDefaults() SyncOptions {
	def := DefaultSyncOptions()
	if o.MaxRetries <= 0 {
		o.MaxRetries = def.MaxRetries
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = def.BaseDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = def.MaxDelay
	}
	if o.Interval <= 0 {
		o.Interval = def.Interval
	}
	if o.NetworkRetryDelay <= 0 {
		o.NetworkRetryDelay = def.NetworkRetryDelay
	}
	if o.RetentionDays <= 0 {
		o.RetentionDays = def.RetentionDays
	}
	return o
}

// RetryDelay returns BaseDelay × 2^attempts, capped at MaxDelay
func (o SyncOptions) RetryDelay(attempts int) time.Duration {
	delay := o.BaseDelay
	for i := 0; i < attempts; i++ {
		if delay >= o.MaxDelay/2 {
			return o.MaxDelay
		}
		delay *= 2
	}
	if delay > o.MaxDelay {
		return o.MaxDelay
	}
	return delay
}

// SkipReason explains why a cycle did not run
type SkipReason string

const (
	SkipInProgress SkipReason = "in_progress"
	SkipOffline    SkipReason = "offline"
)

// CycleResult summarizes one sync cycle
type CycleResult struct {
	StartedAt      time.Time  `json:"started_at"`
	Skipped        SkipReason `json:"skipped,omitempty"`
	Submitted      int        `json:"submitted"`
	Accepted       int        `json:"accepted"`
	Duplicates     int        `json:"duplicates"`
	Rejected       int        `json:"rejected"`
	Unacknowledged int        `json:"unacknowledged"`
	Pruned         int64      `json:"pruned"`
	Error          string     `json:"error,omitempty"`
}

// SyncStatusReport is a point-in-time view of the orchestrator
type SyncStatusReport struct {
	Online           bool                      `json:"online"`
	Running          bool                      `json:"running"`
	LastCycle        *CycleResult              `json:"last_cycle,omitempty"`
	Counts           map[enum.SyncStatus]int64 `json:"counts"`
	ScheduledRetries []string                  `json:"scheduled_retries"`
}

// TicketSyncer submits a batch of queued tickets to the server
type TicketSyncer interface {
	SyncTickets(ctx context.Context, entries []entity.SyncEntry) (*remote.SyncResponse, error)
}

// SyncService drains the sync queue to the server. At most one cycle runs at
// a time; triggers that arrive while a cycle is running are dropped.
type SyncService struct {
	repo      repository.TicketRepository
	remote    TicketSyncer
	monitor   connectivity.Monitor
	scheduler *scheduler.Scheduler
	clock     clock.Clock
	opts      SyncOptions
	logger    *slog.Logger
	tracer    trace.Tracer

	running atomic.Bool
	wg      sync.WaitGroup

	mu          sync.Mutex
	ctx         context.Context
	started     bool
	stopped     bool
	unsubscribe func()
	periodic    clock.Timer
	lastCycle   *CycleResult
}

// NewSyncService creates a new sync orchestrator
func NewSyncService(
	repo repository.TicketRepository,
	syncer TicketSyncer,
	monitor connectivity.Monitor,
	clk clock.Clock,
	opts SyncOptions,
	logger *slog.Logger,
) *SyncService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncService{
		repo:      repo,
		remote:    syncer,
		monitor:   monitor,
		scheduler: scheduler.New(clk),
		clock:     clk,
		opts:      opts.withDefaults(),
		logger:    logger.With("component", "sync"),
		tracer:    otel.Tracer("github.com/sangkips/tillsync/sync"),
		ctx:       context.Background(),
	}
}

// Options returns the effective options
func (s *SyncService) Options() SyncOptions {
	return s.opts
}

// Start subscribes to connectivity changes, arms the periodic timer, re-arms
// retry timers for failed entries and runs a cycle right away when online.
func (s *SyncService) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.ctx = context.WithoutCancel(ctx)
	s.unsubscribe = s.monitor.Subscribe(s.onConnectivity)
	s.armPeriodic()
	s.mu.Unlock()

	s.restoreRetries(ctx)

	s.logger.Info("sync orchestrator started",
		"interval", s.opts.Interval,
		"max_retries", s.opts.MaxRetries,
		"online", s.monitor.Online(),
	)
	if s.monitor.Online() {
		s.Trigger()
	}
}

// Stop cancels every timer, unsubscribes and waits for an in-flight cycle.
func (s *SyncService) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	if s.periodic != nil {
		s.periodic.Stop()
		s.periodic = nil
	}
	s.mu.Unlock()

	s.scheduler.CancelAll()
	s.wg.Wait()
	s.logger.Info("sync orchestrator stopped")
}

// Wait blocks until cycles started by Trigger have finished
func (s *SyncService) Wait() {
	s.wg.Wait()
}

// armPeriodic must be called with s.mu held
func (s *SyncService) armPeriodic() {
	s.periodic = s.clock.AfterFunc(s.opts.Interval, func() {
		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return
		}
		s.armPeriodic()
		s.mu.Unlock()

		if s.monitor.Online() {
			s.Trigger()
		}
	})
}

func (s *SyncService) onConnectivity(online bool) {
	s.logger.Info("connectivity changed", "online", online)
	if online {
		s.Trigger()
	}
}

// Trigger starts a cycle in the background. It returns false when a cycle
// is already running or the orchestrator is stopped.
func (s *SyncService) Trigger() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Debug("sync cycle already running, trigger dropped")
		return false
	}

	ctx := s.ctx
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		_, _ = s.cycle(ctx)
	}()
	return true
}

// RunCycle runs one cycle synchronously. Failures are already logged and
// turned into scheduled retries; the error is returned for callers that
// want to surface it. Cancelling ctx does not abort a batch in flight.
func (s *SyncService) RunCycle(ctx context.Context) (CycleResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		return CycleResult{StartedAt: s.clock.Now(), Skipped: SkipInProgress}, nil
	}
	defer s.running.Store(false)
	return s.cycle(context.WithoutCancel(ctx))
}

func (s *SyncService) cycle(ctx context.Context) (CycleResult, error) {
	result := CycleResult{StartedAt: s.clock.Now()}
	if !s.monitor.Online() {
		result.Skipped = SkipOffline
		s.record(result)
		return result, nil
	}

	ctx, span := s.tracer.Start(ctx, "sync.cycle")
	defer span.End()

	err := s.drain(ctx, &result)
	if err != nil {
		result.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(
		attribute.Int("sync.batch_size", result.Submitted),
		attribute.Int("sync.accepted", result.Accepted),
		attribute.Int("sync.duplicates", result.Duplicates),
		attribute.Int("sync.rejected", result.Rejected),
		attribute.Int64("sync.pruned", result.Pruned),
	)
	s.record(result)
	return result, err
}

func (s *SyncService) drain(ctx context.Context, result *CycleResult) error {
	entries, err := s.repo.PendingSyncEntries(ctx)
	if err != nil {
		s.logger.Error("failed to read sync queue", "error", err)
		s.scheduleCycleRetry()
		return err
	}

	now := s.clock.Now()
	batch := make([]entity.SyncEntry, 0, len(entries))
	for _, e := range entries {
		if s.eligible(&e, now) {
			batch = append(batch, e)
		}
	}

	if len(batch) == 0 {
		s.prune(ctx, result)
		return nil
	}

	result.Submitted = len(batch)
	s.logger.Info("submitting sync batch", "tickets", len(batch))

	resp, err := s.remote.SyncTickets(ctx, batch)
	if err != nil {
		s.logger.Warn("sync batch failed, will retry",
			"error", err,
			"retry_in", s.opts.NetworkRetryDelay,
		)
		s.scheduleCycleRetry()
		return err
	}
	s.scheduler.Cancel(cycleRetryKey)

	storeErr := s.classify(ctx, batch, resp, result)
	s.prune(ctx, result)

	s.logger.Info("sync cycle finished",
		"accepted", result.Accepted,
		"duplicates", result.Duplicates,
		"rejected", result.Rejected,
		"unacknowledged", result.Unacknowledged,
	)
	return storeErr
}

// eligible reports whether an entry should be part of the next batch
func (s *SyncService) eligible(e *entity.SyncEntry, now time.Time) bool {
	switch e.Status {
	case enum.SyncStatusPending:
		return true
	case enum.SyncStatusFailed:
		return e.Attempts < s.opts.MaxRetries && e.IsDue(now)
	default:
		return false
	}
}

func (s *SyncService) classify(ctx context.Context, batch []entity.SyncEntry, resp *remote.SyncResponse, result *CycleResult) error {
	outstanding := make(map[string]entity.SyncEntry, len(batch))
	for _, e := range batch {
		outstanding[e.ClientTicketID] = e
	}

	var storeErr error
	confirm := func(ack remote.TicketAck, duplicate bool) {
		if _, ok := outstanding[ack.ClientTicketID]; !ok {
			s.logger.Warn("server acknowledged a ticket outside the batch", "client_ticket_id", ack.ClientTicketID)
			return
		}
		delete(outstanding, ack.ClientTicketID)

		if err := s.repo.MarkSynced(ctx, ack.ClientTicketID, ack.ServerID); err != nil {
			s.logger.Error("failed to mark ticket synced", "client_ticket_id", ack.ClientTicketID, "error", err)
			storeErr = err
			return
		}
		s.scheduler.Cancel(ack.ClientTicketID)
		if duplicate {
			result.Duplicates++
		} else {
			result.Accepted++
		}
	}

	for _, ack := range resp.Accepted {
		confirm(ack, false)
	}
	for _, ack := range resp.Duplicate {
		confirm(ack, true)
	}

	for _, rej := range resp.Rejected {
		entry, ok := outstanding[rej.ClientTicketID]
		if !ok {
			s.logger.Warn("server rejected a ticket outside the batch", "client_ticket_id", rej.ClientTicketID)
			continue
		}
		delete(outstanding, rej.ClientTicketID)

		if err := s.reject(ctx, entry, rej.Error); err != nil {
			storeErr = err
			continue
		}
		result.Rejected++
	}

	for id := range outstanding {
		s.logger.Warn("ticket missing from sync response, left queued", "client_ticket_id", id)
		result.Unacknowledged++
	}

	if storeErr != nil {
		s.scheduleCycleRetry()
	}
	return storeErr
}

func (s *SyncService) reject(ctx context.Context, entry entity.SyncEntry, reason string) error {
	rejection := &apperror.ServerRejection{ClientTicketID: entry.ClientTicketID, Reason: reason}
	attempts := entry.Attempts + 1
	exhausted := attempts >= s.opts.MaxRetries

	var nextRetryAt *time.Time
	delay := s.opts.RetryDelay(attempts)
	if !exhausted {
		t := s.clock.Now().Add(delay)
		nextRetryAt = &t
	}

	updated, err := s.repo.MarkFailed(ctx, entry.ClientTicketID, reason, nextRetryAt)
	if err != nil {
		s.logger.Error("failed to record rejection", "client_ticket_id", entry.ClientTicketID, "error", err)
		return err
	}

	if exhausted || updated.Attempts >= s.opts.MaxRetries {
		s.scheduler.Cancel(entry.ClientTicketID)
		s.logger.Error("ticket exhausted its retries", "error", rejection, "attempts", updated.Attempts)
		return nil
	}

	s.scheduleRetry(entry.ClientTicketID, delay)
	s.logger.Warn("ticket rejected, retry scheduled",
		"error", rejection,
		"attempts", updated.Attempts,
		"retry_in", delay,
	)
	return nil
}

func (s *SyncService) scheduleRetry(id string, delay time.Duration) {
	s.scheduler.Schedule(id, delay, func() {
		ctx := s.baseContext()
		if err := s.repo.Requeue(ctx, id, false); err != nil {
			s.logger.Warn("failed to requeue ticket", "client_ticket_id", id, "error", err)
			return
		}
		s.Trigger()
	})
}

func (s *SyncService) scheduleCycleRetry() {
	s.scheduler.Schedule(cycleRetryKey, s.opts.NetworkRetryDelay, func() {
		s.Trigger()
	})
}

// restoreRetries re-arms timers lost across a restart from the persisted
// next retry times.
func (s *SyncService) restoreRetries(ctx context.Context) {
	entries, err := s.repo.PendingSyncEntries(ctx)
	if err != nil {
		s.logger.Error("failed to restore retry timers", "error", err)
		return
	}

	now := s.clock.Now()
	for _, e := range entries {
		if e.Status != enum.SyncStatusFailed || e.Attempts >= s.opts.MaxRetries || e.NextRetryAt == nil {
			continue
		}
		delay := e.NextRetryAt.Sub(now)
		if delay < 0 {
			delay = 0
		}
		s.scheduleRetry(e.ClientTicketID, delay)
	}
}

func (s *SyncService) prune(ctx context.Context, result *CycleResult) {
	n, err := s.repo.PruneSynced(ctx, s.opts.RetentionDays)
	if err != nil {
		s.logger.Error("failed to prune synced tickets", "error", err)
		return
	}
	result.Pruned = n
	if n > 0 {
		s.logger.Info("pruned synced tickets", "count", n, "retention_days", s.opts.RetentionDays)
	}
}

func (s *SyncService) record(result CycleResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCycle = &result
}

func (s *SyncService) baseContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// Enqueue durably records a closed ticket for sync and triggers a cycle when
// online. The sale is safe once this returns without error.
func (s *SyncService) Enqueue(ctx context.Context, ticket *entity.Ticket) (*entity.SyncEntry, error) {
	entry, err := s.repo.SaveOfflineTicket(ctx, ticket)
	if err != nil {
		return nil, err
	}
	s.logger.Info("ticket queued for sync",
		"client_ticket_id", ticket.ClientTicketID,
		"total", ticket.Total.String(),
	)
	if s.monitor.Online() {
		s.Trigger()
	}
	return entry, nil
}

// ResubmitEntry gives a failed entry a fresh set of attempts
func (s *SyncService) ResubmitEntry(ctx context.Context, clientTicketID string) (*entity.SyncEntry, error) {
	if err := s.repo.Requeue(ctx, clientTicketID, true); err != nil {
		return nil, err
	}
	s.scheduler.Cancel(clientTicketID)
	s.logger.Info("ticket resubmitted", "client_ticket_id", clientTicketID)

	if s.monitor.Online() {
		s.Trigger()
	}
	return s.repo.GetEntry(ctx, clientTicketID)
}

// IsQueued reports whether a ticket already has a queue entry
func (s *SyncService) IsQueued(ctx context.Context, clientTicketID string) (bool, error) {
	entry, err := s.repo.GetEntry(ctx, clientTicketID)
	if err != nil {
		return false, err
	}
	return entry != nil, nil
}

// GetEntry returns one queue entry
func (s *SyncService) GetEntry(ctx context.Context, clientTicketID string) (*entity.SyncEntry, error) {
	entry, err := s.repo.GetEntry(ctx, clientTicketID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, apperror.NewNotFoundError("Sync entry")
	}
	return entry, nil
}

// ListEntries returns queue entries with pagination
func (s *SyncService) ListEntries(ctx context.Context, status *enum.SyncStatus, params *pagination.PaginationParams) ([]entity.SyncEntry, int64, error) {
	return s.repo.ListEntries(ctx, &repository.EntryFilterParams{
		Pagination: params,
		Status:     status,
	})
}

// Status reports connectivity, cycle state and queue counts
func (s *SyncService) Status(ctx context.Context) (*SyncStatusReport, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	retries := []string{}
	for _, key := range s.scheduler.Pending() {
		if key != cycleRetryKey {
			retries = append(retries, key)
		}
	}

	s.mu.Lock()
	var last *CycleResult
	if s.lastCycle != nil {
		c := *s.lastCycle
		last = &c
	}
	s.mu.Unlock()

	return &SyncStatusReport{
		Online:           s.monitor.Online(),
		Running:          s.running.Load(),
		LastCycle:        last,
		Counts:           counts,
		ScheduledRetries: retries,
	}, nil
}

// RetryDue returns when the retry timer for an entry fires
func (s *SyncService) RetryDue(clientTicketID string) (time.Time, bool) {
	return s.scheduler.Due(clientTicketID)
}
