package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/tobioye/ballotgate/internal/services"
)

// MonitorRunner drives the periodic abuse-detection sweep. Each pass scans
// the attempt log for multi-account and brute-force IPs, blocks them, and
// logs any accounts voting implausibly fast.
type MonitorRunner struct {
	monitor  *services.MonitorService
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
}

func NewMonitorRunner(monitor *services.MonitorService, logger *slog.Logger, interval time.Duration) *MonitorRunner {
	return &MonitorRunner{
		monitor:  monitor,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic monitoring sweep
func (mr *MonitorRunner) Start(ctx context.Context) {
	ticker := time.NewTicker(mr.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			mr.runSweep(ctx)
		case <-mr.stopCh:
			mr.logger.Info("monitor runner stopped")
			return
		case <-ctx.Done():
			mr.logger.Info("monitor runner context cancelled")
			return
		}
	}
}

func (mr *MonitorRunner) runSweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	report, err := mr.monitor.Sweep(sweepCtx)
	if err != nil {
		mr.logger.Error("monitoring sweep failed", slog.Any("error", err))
		return
	}

	if report.MultiAccountIPsBlocked > 0 || report.BruteForceIPsBlocked > 0 || len(report.RapidVoters) > 0 {
		mr.logger.Warn("monitoring sweep found abuse",
			slog.Int("multi_account_ips_blocked", report.MultiAccountIPsBlocked),
			slog.Int("brute_force_ips_blocked", report.BruteForceIPsBlocked),
			slog.Int("rapid_voters", len(report.RapidVoters)))
	}
}

// Stop signals the monitor runner to stop
func (mr *MonitorRunner) Stop() {
	close(mr.stopCh)
}
