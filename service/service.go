package service

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"commitwatch/config"
	"commitwatch/delta"
	"commitwatch/discord"
	"commitwatch/filter"
	"commitwatch/github"
	"commitwatch/logger"
	"commitwatch/models"
	"commitwatch/store"

	"go.uber.org/zap"
)

// SourceInterface abstracts the commit source operations needed by the service
// (for testability)
type SourceInterface interface {
	ListBranches(ctx context.Context, repo models.Repository) ([]models.Branch, error)
	ListCommits(ctx context.Context, repo models.Repository, branch string) ([]models.Commit, error)
}

// NotifierInterface abstracts the notification operations needed by the service
// (for testability)
type NotifierInterface interface {
	Notify(ctx context.Context, repoKey, branch, prevCursor string, commits []models.Commit) error
}

// StoreInterface abstracts the cursor persistence operations needed by the service
// (for testability)
type StoreInterface interface {
	Load(ctx context.Context) (models.Cursor, error)
	Save(ctx context.Context, cursor models.Cursor) error
	Close() error
}

// Service errors
var (
	ErrServiceInit     = fmt.Errorf("service initialization error")
	ErrServiceShutdown = fmt.Errorf("service shutdown error")
)

// Service watches the configured repositories for new commits and dispatches
// one notification per branch per poll cycle. The poll loop is the only
// writer of the cursor state; the signal handler merely cancels the context.
type Service struct {
	config    *config.Config
	store     StoreInterface
	source    SourceInterface
	notifier  NotifierInterface
	blacklist *filter.Blacklist
	cursor    models.Cursor
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewService creates a new service instance
func NewService() (*Service, error) {
	// Load configuration
	cfg := config.NewConfig()
	if err := cfg.Load(); err != nil {
		return nil, fmt.Errorf("%w: failed to load configuration: %v", ErrServiceInit, err)
	}

	if err := logger.Initialize(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("%w: failed to initialize logger: %v", ErrServiceInit, err)
	}

	// Open the cursor store
	st, err := store.Open(cfg.State)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open state store: %v", ErrServiceInit, err)
	}

	// Initialize the source API client
	client, err := github.NewClient(cfg.SourceAPIURL, cfg.GitHubToken)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to initialize source client: %v", ErrServiceInit, err)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	logger.Info("Service initialized successfully",
		zap.Int("repositories", len(cfg.Repositories)),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.String("state_backend", cfg.State.Backend),
		zap.Int("blacklist_patterns", cfg.Blacklist.Size()))

	return &Service{
		config:    cfg,
		store:     st,
		source:    client,
		notifier:  discord.NewNotifier(cfg.WebhookURL),
		blacklist: cfg.Blacklist,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Start loads the persisted cursor state, seeds cursors for repositories seen
// for the first time, and then polls until a shutdown signal arrives.
func (s *Service) Start() error {
	cursor, err := s.store.Load(s.ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to load cursor state: %v", ErrServiceInit, err)
	}
	if cursor == nil {
		cursor = models.Cursor{}
	}
	s.cursor = cursor

	s.seedCursors()

	go s.watchSignals()

	s.run()
	return nil
}

// seedCursors records the newest commit id of every watched branch for
// repositories that have no persisted state yet. Those commits predate the
// watcher, so no notifications are sent for them.
func (s *Service) seedCursors() {
	seeded := 0
	for _, repo := range s.config.Repositories {
		if s.ctx.Err() != nil {
			return
		}
		if s.cursor.HasRepo(repo.Key()) {
			continue
		}

		logger.Info("Seeding cursors for new repository",
			zap.String("repository", repo.Key()))

		branches, err := s.source.ListBranches(s.ctx, repo)
		if err != nil {
			logger.Warn("Skipping repository during initialization",
				zap.String("repository", repo.Key()),
				zap.Error(err))
			continue
		}

		for _, branch := range branches {
			if s.ctx.Err() != nil {
				return
			}
			if s.blacklist.Excluded(repo.Key(), branch.Name) {
				continue
			}

			commits, err := s.source.ListCommits(s.ctx, repo, branch.Name)
			if err != nil || len(commits) == 0 {
				continue
			}

			s.cursor.Set(repo.Key(), branch.Name, commits[0].ID)
			seeded++
		}
	}

	if seeded > 0 {
		logger.Info("Seeded cursor state", zap.Int("branches", seeded))
		s.saveCursor()
	}
}

// run executes one poll cycle immediately and then once per poll interval
// until the context is cancelled.
func (s *Service) run() {
	logger.Info("Starting poll loop",
		zap.Duration("poll_interval", s.config.PollInterval))

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	s.runCycle()

	for {
		select {
		case <-s.ctx.Done():
			logger.Info("Poll loop stopped")
			return
		case <-ticker.C:
			s.runCycle()
		}
	}
}

// runCycle polls every configured repository once.
func (s *Service) runCycle() {
	for _, repo := range s.config.Repositories {
		if s.ctx.Err() != nil {
			return
		}
		s.pollRepository(repo)
	}
}

// pollRepository checks every watched branch of a repository for new commits.
func (s *Service) pollRepository(repo models.Repository) {
	branches, err := s.source.ListBranches(s.ctx, repo)
	if err != nil {
		logger.Warn("Skipping repository this cycle",
			zap.String("repository", repo.Key()),
			zap.Error(err))
		return
	}

	for _, branch := range branches {
		if s.ctx.Err() != nil {
			return
		}
		if s.blacklist.Excluded(repo.Key(), branch.Name) {
			logger.Debug("Branch excluded by blacklist",
				zap.String("repository", repo.Key()),
				zap.String("branch", branch.Name))
			continue
		}
		s.pollBranch(repo, branch.Name)
	}
}

// pollBranch fetches a branch's newest commits, computes the delta against
// the stored cursor and dispatches a notification for any new commits. The
// cursor advances only after the notification is acknowledged, so a failed
// dispatch is retried on the next cycle.
func (s *Service) pollBranch(repo models.Repository, branch string) {
	commits, err := s.source.ListCommits(s.ctx, repo, branch)
	if err != nil {
		logger.Warn("Skipping branch this cycle",
			zap.String("repository", repo.Key()),
			zap.String("branch", branch),
			zap.Error(err))
		return
	}
	if len(commits) == 0 {
		logger.Debug("Branch has no commits",
			zap.String("repository", repo.Key()),
			zap.String("branch", branch))
		return
	}

	lastID, seen := s.cursor.Get(repo.Key(), branch)
	newCommits, initialized := delta.Compute(commits, lastID, seen)
	if initialized {
		// The repository itself was seeded earlier, so an unseen branch
		// here appeared while the watcher was running. Its full fetched
		// history counts as new.
		logger.Info("New branch observed",
			zap.String("repository", repo.Key()),
			zap.String("branch", branch),
			zap.Int("commits", len(newCommits)))
	}
	if len(newCommits) == 0 {
		return
	}

	if err := s.notifier.Notify(s.ctx, repo.Key(), branch, lastID, newCommits); err != nil {
		logger.Error("Notification failed, cursor not advanced",
			zap.String("repository", repo.Key()),
			zap.String("branch", branch),
			zap.Error(err))
		return
	}

	s.cursor.Set(repo.Key(), branch, delta.NextCursor(commits))
	s.saveCursor()
}

// saveCursor persists the in-memory cursor state. A failed save is not
// fatal: the in-memory state stays correct for the rest of the run.
func (s *Service) saveCursor() {
	if err := s.store.Save(s.ctx, s.cursor); err != nil {
		logger.Error("Failed to persist cursor state", zap.Error(err))
	}
}

// watchSignals cancels the service context when a termination signal
// arrives. It does no other work; the poll loop checks the context at its
// own safe points.
func (s *Service) watchSignals() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown",
			zap.String("signal", sig.String()))
		s.cancel()
	case <-s.ctx.Done():
	}
}

// Close performs cleanup operations
func (s *Service) Close() error {
	logger.Info("Closing service")
	s.cancel()

	// One final save so state written since the last successful save (or
	// skipped because of a transient store failure) survives the restart.
	if s.cursor != nil {
		if err := s.store.Save(context.Background(), s.cursor); err != nil {
			logger.Error("Failed to persist cursor state during shutdown", zap.Error(err))
		}
	}
	logger.Sync()

	if err := s.store.Close(); err != nil {
		return fmt.Errorf("%w: failed to close state store: %v", ErrServiceShutdown, err)
	}
	return nil
}
