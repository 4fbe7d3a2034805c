package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"car-market-tracker/internal/config"
	"car-market-tracker/internal/logging"
	"car-market-tracker/internal/models"

	"github.com/robfig/cron/v3"
)

// historySize bounds the run summaries kept in memory.
const historySize = 20

// ErrRunInProgress is returned when a run is requested while another is active.
var ErrRunInProgress = errors.New("a crawl run is already in progress")

// Runner executes one crawl.
type Runner interface {
	Run(ctx context.Context) (*models.RunSummary, error)
}

// Scheduler triggers the daily crawl and guards against overlapping runs
type Scheduler struct {
	cron      *cron.Cron
	runner    Runner
	config    config.SchedulerConfig
	isRunning bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	active  bool
	history []models.RunSummary
}

// NewScheduler creates a new scheduler. Cron times are read in loc.
func NewScheduler(runner Runner, cfg config.SchedulerConfig, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(loc)),
		runner: runner,
		config: cfg,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	if !s.config.DailyRunEnabled {
		logging.Infof("[Scheduler] daily run is disabled in configuration")
		return nil
	}

	cronSpec, err := CronSpec(s.config.DailyRunTime)
	if err != nil {
		return err
	}

	_, err = s.cron.AddFunc(cronSpec, func() {
		logging.Infof("[Scheduler] starting daily crawl")
		if _, err := s.RunNow(s.ctx); err != nil {
			logging.Errorf("[Scheduler] daily crawl failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.isRunning = true
	logging.Infof("[Scheduler] started with daily run at %s (cron: %s)", s.config.DailyRunTime, cronSpec)
	return nil
}

// Stop stops the cron loop, cancels an in-flight run and waits for it to
// reach its last checkpoint.
func (s *Scheduler) Stop() {
	if s.isRunning {
		<-s.cron.Stop().Done()
		s.isRunning = false
	}
	s.cancel()
	s.wg.Wait()
	logging.Infof("[Scheduler] stopped")
}

// RunNow runs a crawl synchronously. It fails with ErrRunInProgress when a
// run is already active.
func (s *Scheduler) RunNow(ctx context.Context) (*models.RunSummary, error) {
	if !s.acquire() {
		return nil, ErrRunInProgress
	}
	s.wg.Add(1)
	defer s.wg.Done()
	return s.execute(ctx)
}

// Trigger starts a crawl in the background for a manual request.
func (s *Scheduler) Trigger() error {
	if !s.acquire() {
		return ErrRunInProgress
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		logging.Infof("[Scheduler] manual trigger: starting crawl")
		if _, err := s.execute(s.ctx); err != nil {
			logging.Errorf("[Scheduler] manual crawl failed: %v", err)
		}
	}()
	return nil
}

// Running reports whether a crawl is in progress.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// History returns the summaries of recent runs, newest first.
func (s *Scheduler) History() []models.RunSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.RunSummary, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Scheduler) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return false
	}
	s.active = true
	return true
}

func (s *Scheduler) execute(ctx context.Context) (*models.RunSummary, error) {
	summary, err := s.runner.Run(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
	if summary != nil {
		s.history = append([]models.RunSummary{*summary}, s.history...)
		if len(s.history) > historySize {
			s.history = s.history[:historySize]
		}
	}
	return summary, err
}

// CronSpec converts HH:MM to a daily cron specification.
// Example: "02:00" -> "0 2 * * *"
func CronSpec(timeStr string) (string, error) {
	hour, minute, err := config.ParseDailyRunTime(timeStr)
	if err != nil {
		return "", fmt.Errorf("invalid daily run time: %w", err)
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}
