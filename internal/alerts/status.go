package alerts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/thiagosluz/iflabcoletty-sub003/internal/metrics"
	"github.com/thiagosluz/iflabcoletty-sub003/pkg/models"
)

// StatusNotifier announces online/offline transitions.
type StatusNotifier interface {
	NotifyComputerStatus(ctx context.Context, computer *models.Computer, online bool) (int, error)
}

// StatusStore is what the status monitor reads and writes.
type StatusStore interface {
	ComputerStore
	LatestActivity(ctx context.Context, computerID models.ComputerID, activityType string) (*models.ComputerActivity, error)
}

// StatusOptions configures a StatusMonitor.
type StatusOptions struct {
	Store        StatusStore
	Notifier     StatusNotifier
	OfflineAfter time.Duration
	Logger       *slog.Logger
	Now          func() time.Time
}

// StatusSummary reports one status sweep.
type StatusSummary struct {
	Computers  int `json:"computers"`
	WentOnline int `json:"went_online"`
	WentOff    int `json:"went_offline"`
	Skipped    int `json:"skipped"`
	Errors     int `json:"errors"`
}

// StatusMonitor flips the stored online flag of computers from their latest
// activity and announces each change.
type StatusMonitor struct {
	store        StatusStore
	notifier     StatusNotifier
	offlineAfter atomic.Int64
	locks        *keyedLock
	log          *slog.Logger
	now          func() time.Time
}

// NewStatusMonitor builds a StatusMonitor. OfflineAfter defaults to five minutes.
func NewStatusMonitor(opts StatusOptions) *StatusMonitor {
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s := &StatusMonitor{
		store:    opts.Store,
		notifier: opts.Notifier,
		locks:    newKeyedLock(),
		log:      log.With("component", "status_monitor"),
		now:      now,
	}
	s.SetOfflineAfter(opts.OfflineAfter)
	return s
}

// SetOfflineAfter changes the silence after which a computer counts as
// offline. Non-positive values fall back to five minutes.
func (s *StatusMonitor) SetOfflineAfter(d time.Duration) {
	if d <= 0 {
		d = 5 * time.Minute
	}
	s.offlineAfter.Store(int64(d))
}

// CheckAll sweeps every computer once. Computers whose lock is held by a rule
// pass are skipped until the next sweep.
func (s *StatusMonitor) CheckAll(ctx context.Context) (StatusSummary, error) {
	var summary StatusSummary
	computers, err := s.store.ListComputers(ctx)
	if err != nil {
		return summary, fmt.Errorf("listing computers: %w", err)
	}
	summary.Computers = len(computers)

	for _, computer := range computers {
		if !s.locks.TryLock(int64(computer.ID)) {
			summary.Skipped++
			continue
		}
		changed, online, err := s.check(ctx, computer)
		s.locks.Unlock(int64(computer.ID))
		switch {
		case err != nil:
			summary.Errors++
			s.log.Error("status check failed", "computer_id", computer.ID, "error", err)
		case changed && online:
			summary.WentOnline++
		case changed:
			summary.WentOff++
		}
	}
	s.log.Debug("status sweep complete", "computers", summary.Computers, "online", summary.WentOnline,
		"offline", summary.WentOff, "skipped", summary.Skipped)
	return summary, nil
}

func (s *StatusMonitor) check(ctx context.Context, computer *models.Computer) (changed, online bool, err error) {
	latest, err := s.store.LatestActivity(ctx, computer.ID, "")
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return false, false, fmt.Errorf("loading latest activity: %w", err)
	}

	var lastSeen *time.Time
	if latest != nil {
		lastSeen = &latest.CreatedAt
		online = s.now().Sub(latest.CreatedAt) < time.Duration(s.offlineAfter.Load())
	}
	if online == computer.IsOnline {
		return false, online, nil
	}

	if err := s.store.SetComputerOnline(ctx, computer.ID, online, lastSeen); err != nil {
		return false, online, err
	}
	computer.IsOnline = online
	if lastSeen != nil {
		computer.LastSeenAt = lastSeen
	}
	metrics.StatusTransition()
	s.log.Info("computer status changed", "computer_id", computer.ID, "hostname", computer.Hostname, "online", online)

	if s.notifier != nil {
		if _, err := s.notifier.NotifyComputerStatus(ctx, computer, online); err != nil {
			s.log.Warn("status notification failed", "computer_id", computer.ID, "error", err)
		}
	}
	return true, online, nil
}
