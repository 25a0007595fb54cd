/*
scheduler.go - Periodic AutoSeal runner

PURPOSE:
  The timesheet core never schedules anything itself. This scheduler is the
  external trigger: on every tick it runs one AutoSeal pass per configured
  tenant, sequentially.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs once immediately on Start
  - A failing tenant is logged and does not stop the others
  - Per-tenant enablement and delay live in tenant settings, so a tenant
    listed here but disabled costs one settings read per tick

CONFIGURATION:
  - CheckInterval: How often to run (default: 1 hour)
  - Tenants: Which tenants to process (AUTOSEAL_TENANTS)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewAutoSealScheduler(svc, []generic.TenantID{"acme"})
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RunAutoSeal endpoint (manual trigger)
  - timesheet/autoseal.go: The batch itself
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/warp/timesheet-engine/generic"
	"github.com/warp/timesheet-engine/logger"
	"github.com/warp/timesheet-engine/timesheet"
)

// AutoSealScheduler handles automated sealing of old approved sheets.
type AutoSealScheduler struct {
	Service       *timesheet.Service
	Tenants       []generic.TenantID
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex

	nextMu  sync.Mutex // guards nextRun, taken by the run loop while Stop holds mu
	nextRun time.Time
}

func NewAutoSealScheduler(svc *timesheet.Service, tenants []generic.TenantID) *AutoSealScheduler {
	return &AutoSealScheduler{
		Service:       svc,
		Tenants:       tenants,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
	}
}

// Start begins the scheduler.
func (as *AutoSealScheduler) Start() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if !as.Enabled || len(as.Tenants) == 0 {
		logger.Info("[Scheduler] Disabled, not starting", "tenants", len(as.Tenants))
		return
	}
	if as.ticker != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	as.cancel = cancel
	as.stop = make(chan struct{})
	as.ticker = time.NewTicker(as.CheckInterval)
	as.setNextRun(time.Now().Add(as.CheckInterval))
	as.wg.Add(1)

	go as.run(ctx, as.ticker, as.stop)

	logger.Info("[Scheduler] Started", "interval", as.CheckInterval, "tenants", len(as.Tenants))
}

// Stop stops the scheduler and waits for a running pass to notice.
func (as *AutoSealScheduler) Stop() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.ticker != nil {
		as.ticker.Stop()
		as.cancel()
		close(as.stop)
		as.wg.Wait()
		as.ticker = nil
		as.setNextRun(time.Time{})
		logger.Info("[Scheduler] Stopped")
	}
}

func (as *AutoSealScheduler) run(ctx context.Context, ticker *time.Ticker, stop <-chan struct{}) {
	defer as.wg.Done()

	// Run immediately on start
	as.RunNow(ctx)

	for {
		select {
		case <-ticker.C:
			as.setNextRun(time.Now().Add(as.CheckInterval))
			as.RunNow(ctx)
			logger.Debug("[Scheduler] Pass complete", "next_run", as.GetNextRunTime())
		case <-stop:
			return
		}
	}
}

// RunNow runs one pass over every tenant and returns the per-tenant results.
// Tenants whose run failed are absent from the map.
func (as *AutoSealScheduler) RunNow(ctx context.Context) map[generic.TenantID]timesheet.AutoSealResult {
	results := make(map[generic.TenantID]timesheet.AutoSealResult, len(as.Tenants))
	for _, tenant := range as.Tenants {
		if ctx.Err() != nil {
			break
		}
		res, err := as.Service.AutoSeal(ctx, tenant)
		if err != nil {
			logger.Error("[Scheduler] AutoSeal failed", "tenant", tenant, "err", err)
			continue
		}
		results[tenant] = res
	}
	return results
}

// GetNextRunTime returns when the next scheduled check will occur, or the
// zero time when the scheduler is not running.
func (as *AutoSealScheduler) GetNextRunTime() time.Time {
	as.nextMu.Lock()
	defer as.nextMu.Unlock()
	return as.nextRun
}

func (as *AutoSealScheduler) setNextRun(t time.Time) {
	as.nextMu.Lock()
	as.nextRun = t
	as.nextMu.Unlock()
}
