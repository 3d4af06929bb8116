package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/upb/coffee-main-api/models"
	"github.com/upb/coffee-main-api/observability"
	"github.com/upb/coffee-main-api/repositories"
)

// AuditEvent represents an event to be audited
type AuditEvent struct {
	Event *models.AuthEvent
}

// AuditService handles asynchronous auth event logging
type AuditService struct {
	repo        repositories.AuthEventRepository
	logger      *zap.Logger
	eventChan   chan *AuditEvent
	workerCount int
	bufferSize  int
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	started     bool
	stopped     bool
	mu          sync.RWMutex
}

// Config holds configuration for the AuditService
type Config struct {
	BufferSize  int // Size of the event buffer channel
	WorkerCount int // Number of concurrent workers
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:  1000,
		WorkerCount: 2,
	}
}

// NewAuditService creates a new AuditService instance
func NewAuditService(repo repositories.AuthEventRepository, logger *zap.Logger, config Config) *AuditService {
	ctx, cancel := context.WithCancel(context.Background())

	return &AuditService{
		repo:        repo,
		logger:      logger,
		eventChan:   make(chan *AuditEvent, config.BufferSize),
		workerCount: config.WorkerCount,
		bufferSize:  config.BufferSize,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start starts the background workers
func (s *AuditService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("audit service already started")
	}

	// Start worker goroutines
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started audit service",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize))

	return nil
}

// Stop gracefully stops the audit service
// Waits for all pending events to be processed
func (s *AuditService) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return fmt.Errorf("audit service not running")
	}
	s.stopped = true
	// Close the event channel (no more events will be accepted)
	close(s.eventChan)
	s.mu.Unlock()

	s.logger.Info("stopping audit service", zap.Int("pending_events", len(s.eventChan)))

	// Wait for workers to finish with timeout
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("audit service stopped gracefully")
		s.cancel()
		return nil
	case <-time.After(timeout):
		s.cancel()
		return fmt.Errorf("audit service stop timeout after %v", timeout)
	}
}

// LogEvent logs an event asynchronously (non-blocking)
// Returns immediately, event is processed in background
func (s *AuditService) LogEvent(event *AuditEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started || s.stopped {
		return fmt.Errorf("audit service not running")
	}

	// Try to send event to channel (non-blocking)
	select {
	case s.eventChan <- event:
		return nil
	default:
		// Channel is full, log warning and drop event
		observability.AuditEventsDroppedTotal.Inc()
		s.logger.Warn("audit event channel full, dropping event",
			zap.String("type", string(event.Event.Type)),
			zap.String("username", event.Event.Username))
		return fmt.Errorf("audit event buffer full")
	}
}

// worker processes events from the channel
func (s *AuditService) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("audit worker started", zap.Int("worker_id", id))

	for event := range s.eventChan {
		if err := s.processEvent(event); err != nil {
			s.logger.Error("failed to process audit event",
				zap.Int("worker_id", id),
				zap.Error(err),
				zap.String("type", string(event.Event.Type)))
		}
	}

	s.logger.Debug("audit worker stopped", zap.Int("worker_id", id))
}

// processEvent processes a single audit event
func (s *AuditService) processEvent(event *AuditEvent) error {
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()

	if err := s.repo.Insert(ctx, event.Event); err != nil {
		return fmt.Errorf("failed to insert auth event: %w", err)
	}

	return nil
}

// GetStats returns statistics about the audit service
func (s *AuditService) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		BufferSize:    s.bufferSize,
		PendingEvents: len(s.eventChan),
		WorkerCount:   s.workerCount,
		Started:       s.started && !s.stopped,
	}
}

// Stats represents audit service statistics
type Stats struct {
	BufferSize    int
	PendingEvents int
	WorkerCount   int
	Started       bool
}

// Convenience methods for logging auth events

// LogLoginSucceeded records a successful login
func (s *AuditService) LogLoginSucceeded(ctx context.Context, username string) error {
	return s.log(ctx, models.NewAuthEvent(models.AuthEventLoginSucceeded, username))
}

// LogLoginFailed records a rejected login. The reason stays internal.
func (s *AuditService) LogLoginFailed(ctx context.Context, username, reason string) error {
	return s.log(ctx, models.NewAuthEvent(models.AuthEventLoginFailed, username).WithReason(reason))
}

// LogLoginBlocked records a login with valid credentials on a disabled or locked account
func (s *AuditService) LogLoginBlocked(ctx context.Context, username, reason string) error {
	return s.log(ctx, models.NewAuthEvent(models.AuthEventLoginBlocked, username).WithReason(reason))
}

// LogTokenRejected records a bearer token that failed verification or
// whose subject could not be resolved. subject may be empty.
func (s *AuditService) LogTokenRejected(ctx context.Context, subject, reason string) error {
	return s.log(ctx, models.NewAuthEvent(models.AuthEventTokenRejected, subject).WithReason(reason))
}

func (s *AuditService) log(ctx context.Context, event *models.AuthEvent) error {
	if info, ok := RequestInfoFromContext(ctx); ok {
		event.WithRequest(info.RequestID, info.IPAddress, info.UserAgent)
	}
	return s.LogEvent(&AuditEvent{Event: event})
}
