package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/thiagosluz/iflabcoletty-sub003/internal/config"
	"github.com/thiagosluz/iflabcoletty-sub003/internal/metrics"
	"github.com/thiagosluz/iflabcoletty-sub003/pkg/models"
)

// Options encapsulates the dependencies required to run the alerting manager.
type Options struct {
	Config config.AlertsConfig
	// Settings, when set, is re-read before every pass and sweep so alerts.*
	// edits apply without a restart. Config supplies the values for absent keys.
	Settings       config.SettingsStore
	Store          Store
	Notifier       AlertNotifier
	StatusNotifier StatusNotifier
	Logger         *slog.Logger
	Now            func() time.Time
}

// ComputerResult reports one computer pass.
type ComputerResult struct {
	ComputerID     models.ComputerID `json:"computer_id"`
	Skipped        bool              `json:"skipped"`
	RulesEvaluated int               `json:"rules_evaluated"`
	Opened         int               `json:"opened"`
	Resolved       int               `json:"resolved"`
	Errors         int               `json:"errors"`
}

// PassSummary aggregates one evaluation pass over all computers.
type PassSummary struct {
	RunID     string        `json:"run_id"`
	Computers int           `json:"computers"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Opened    int           `json:"opened"`
	Resolved  int           `json:"resolved"`
	Errors    int           `json:"errors"`
	Duration  time.Duration `json:"duration"`
}

// Manager drives periodic rule evaluation and status sweeps. Passes for
// different computers run in parallel; a computer whose previous pass is still
// running is skipped.
type Manager struct {
	base      config.AlertsConfig
	settings  config.SettingsStore
	cfgMu     sync.RWMutex
	cfg       config.AlertsConfig
	store     Store
	lifecycle *Lifecycle
	status    *StatusMonitor
	locks     *keyedLock
	log       *slog.Logger
	now       func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewManager constructs a new alert manager instance.
func NewManager(opts Options) *Manager {
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	locks := newKeyedLock()
	status := NewStatusMonitor(StatusOptions{
		Store:        opts.Store,
		Notifier:     opts.StatusNotifier,
		OfflineAfter: opts.Config.OfflineAfter,
		Logger:       log,
		Now:          now,
	})
	status.locks = locks

	return &Manager{
		base:     opts.Config,
		settings: opts.Settings,
		cfg:      opts.Config,
		store:    opts.Store,
		lifecycle: NewLifecycle(LifecycleOptions{
			Store:           opts.Store,
			Notifier:        opts.Notifier,
			NotifyOnResolve: opts.Config.NotifyOnResolve,
			Logger:          log,
			Now:             now,
		}),
		status: status,
		locks:  locks,
		log:    log.With("component", "alert_manager"),
		now:    now,
		stop:   make(chan struct{}),
	}
}

// Start launches the evaluation loop. It is a no-op when alerting is disabled.
// Interval changes made through settings take effect after the next tick.
func (m *Manager) Start(ctx context.Context) {
	cfg := m.reload(ctx)
	if !cfg.Enabled {
		m.log.Info("alerting disabled; manager will not start")
		return
	}
	ruleEvery := evaluationInterval(cfg)
	statusEvery := statusInterval(cfg)
	m.log.Info("starting alert manager", "rule_interval", ruleEvery, "status_interval", statusEvery,
		"workers", workers(cfg))

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		rules := time.NewTicker(ruleEvery)
		defer rules.Stop()
		status := time.NewTicker(statusEvery)
		defer status.Stop()

		// Run an initial pass so alerts fire soon after startup.
		m.runPass(ctx)
		m.runStatus(ctx)

		for {
			select {
			case <-rules.C:
				m.runPass(ctx)
				if d := evaluationInterval(m.config()); d != ruleEvery {
					m.log.Info("evaluation interval changed", "from", ruleEvery, "to", d)
					ruleEvery = d
					rules.Reset(d)
				}
			case <-status.C:
				m.runStatus(ctx)
				if d := statusInterval(m.config()); d != statusEvery {
					m.log.Info("status interval changed", "from", statusEvery, "to", d)
					statusEvery = d
					status.Reset(d)
				}
			case <-m.stop:
				m.log.Info("alert manager stopping")
				return
			case <-ctx.Done():
				m.log.Info("alert manager context cancelled")
				return
			}
		}
	}()
}

// Stop signals the manager to stop and waits for the running pass to finish.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	m.wg.Wait()
}

func (m *Manager) runPass(ctx context.Context) {
	if !m.reload(ctx).Enabled {
		m.log.Debug("alerting disabled by settings, skipping pass")
		return
	}
	if _, err := m.EvaluateAllComputers(ctx); err != nil {
		m.log.Error("evaluation pass failed", "error", err)
	}
}

func (m *Manager) runStatus(ctx context.Context) {
	if !m.reload(ctx).Enabled {
		return
	}
	if _, err := m.CheckStatus(ctx); err != nil {
		m.log.Error("status sweep failed", "error", err)
	}
}

// CheckStatus runs one online/offline sweep.
func (m *Manager) CheckStatus(ctx context.Context) (StatusSummary, error) {
	m.reload(ctx)
	return m.status.CheckAll(ctx)
}

// EvaluateAllComputers evaluates every computer once with at most
// alerts.workers passes in flight. Per-computer failures are counted in the
// summary; only failing to list computers is returned as an error.
func (m *Manager) EvaluateAllComputers(ctx context.Context) (PassSummary, error) {
	start := time.Now()
	summary := PassSummary{RunID: uuid.NewString()}
	log := m.log.With("run_id", summary.RunID)
	cfg := m.reload(ctx)

	computers, err := m.store.ListComputers(ctx)
	if err != nil {
		return summary, fmt.Errorf("listing computers: %w", err)
	}
	summary.Computers = len(computers)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(workers(cfg))
	for _, computer := range computers {
		g.Go(func() error {
			result, err := m.evaluate(ctx, computer, cfg)
			if err != nil {
				log.Error("computer evaluation failed", "computer_id", computer.ID, "error", err)
			}
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				summary.Failed++
			case result.Skipped:
				summary.Skipped++
			}
			summary.Opened += result.Opened
			summary.Resolved += result.Resolved
			summary.Errors += result.Errors
			return nil
		})
	}
	_ = g.Wait()

	summary.Duration = time.Since(start)
	metrics.ObservePassDuration(summary.Duration.Seconds())
	log.Info("evaluation pass complete", "computers", summary.Computers, "opened", summary.Opened,
		"resolved", summary.Resolved, "skipped", summary.Skipped, "failed", summary.Failed,
		"errors", summary.Errors, "duration", summary.Duration)
	return summary, nil
}

// EvaluateComputer runs one pass for a single computer. If another pass for
// the same computer is running the call returns immediately with Skipped set.
func (m *Manager) EvaluateComputer(ctx context.Context, id models.ComputerID) (ComputerResult, error) {
	computer, err := m.store.GetComputer(ctx, id)
	if err != nil {
		return ComputerResult{ComputerID: id}, fmt.Errorf("loading computer %d: %w", id, err)
	}
	return m.evaluate(ctx, computer, m.reload(ctx))
}

func (m *Manager) evaluate(ctx context.Context, computer *models.Computer, cfg config.AlertsConfig) (ComputerResult, error) {
	result := ComputerResult{ComputerID: computer.ID}
	if !m.locks.TryLock(int64(computer.ID)) {
		metrics.PassSkipped()
		m.log.Info("evaluation already running for computer, skipping", "computer_id", computer.ID)
		result.Skipped = true
		return result, nil
	}
	defer m.locks.Unlock(int64(computer.ID))

	// Rules are read fresh on every pass so edits apply on the next tick.
	rules, err := m.store.ActiveRules(ctx, computer.LabID)
	if err != nil {
		return result, fmt.Errorf("loading rules: %w", err)
	}
	if len(rules) == 0 {
		return result, nil
	}
	snap, err := LoadSnapshot(ctx, m.store, computer.ID, rules)
	if err != nil {
		return result, err
	}

	results := Evaluate(computer, rules, snap, m.now(), EvalOptions{
		NeverSeenIsOffline: cfg.NeverSeenOffline,
		Logger:             m.log,
	})
	for _, rule := range rules {
		res, ok := results[rule.ID]
		if !ok {
			continue
		}
		result.RulesEvaluated++
		transition, err := m.lifecycle.Apply(ctx, computer, rule, res)
		if err != nil {
			metrics.PassError()
			result.Errors++
			m.log.Error("alert transition failed", "rule_id", rule.ID, "computer_id", computer.ID, "error", err)
			continue
		}
		switch transition {
		case TransitionOpened:
			result.Opened++
		case TransitionResolved:
			result.Resolved++
		}
	}
	return result, nil
}

// reload re-reads the alerts.* settings and pushes them into the lifecycle
// and the status monitor.
func (m *Manager) reload(ctx context.Context) config.AlertsConfig {
	if m.settings == nil {
		return m.config()
	}
	cfg := config.OverlayAlerts(ctx, m.base, m.settings)
	m.cfgMu.Lock()
	m.cfg = cfg
	m.cfgMu.Unlock()
	m.lifecycle.SetNotifyOnResolve(cfg.NotifyOnResolve)
	m.status.SetOfflineAfter(cfg.OfflineAfter)
	return cfg
}

func (m *Manager) config() config.AlertsConfig {
	m.cfgMu.RLock()
	defer m.cfgMu.RUnlock()
	return m.cfg
}

func workers(cfg config.AlertsConfig) int {
	if cfg.Workers <= 0 {
		return 1
	}
	return cfg.Workers
}

func evaluationInterval(cfg config.AlertsConfig) time.Duration {
	if cfg.EvaluationInterval <= 0 {
		return time.Minute
	}
	return cfg.EvaluationInterval
}

func statusInterval(cfg config.AlertsConfig) time.Duration {
	if cfg.StatusInterval <= 0 {
		return 5 * time.Minute
	}
	return cfg.StatusInterval
}
