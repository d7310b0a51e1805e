// Command homecore runs the planning/state-derivation/command-dispatch
// engine: it connects to PostgreSQL, builds a fresh snapshot every cycle,
// evaluates the declared (goal, action) registry against it, and hands any
// resulting commands to the pipeline for dispatch. Wiring order is load
// env, open database, construct services, start the HTTP server, then
// start the ticking planning loop.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/hausbrain/core/pkg/api"
	"github.com/hausbrain/core/pkg/availability"
	"github.com/hausbrain/core/pkg/cache"
	"github.com/hausbrain/core/pkg/commandlog"
	"github.com/hausbrain/core/pkg/config"
	"github.com/hausbrain/core/pkg/database"
	"github.com/hausbrain/core/pkg/events"
	"github.com/hausbrain/core/pkg/model"
	"github.com/hausbrain/core/pkg/pipeline"
	"github.com/hausbrain/core/pkg/planner"
	"github.com/hausbrain/core/pkg/state"
	"github.com/hausbrain/core/pkg/timestore"
	"github.com/hausbrain/core/pkg/tracestore"
	"github.com/hausbrain/core/pkg/triggerlog"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "."), "directory holding the .env file")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("no .env file loaded, continuing with process environment", "path", envPath, "error", err)
	}

	httpAddr := ":" + getEnv("HTTP_PORT", "8080")
	ginMode := getEnv("GIN_MODE", "release")
	planInterval := mustParseDuration(getEnv("PLAN_INTERVAL", "30s"))
	cacheWindow := mustParseDuration(getEnv("CACHE_WINDOW", "168h"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbCfg, err := database.LoadConfigFromEnv()
	if err != nil {
		slog.Error("invalid database configuration", "error", err)
		os.Exit(1)
	}
	pool, err := database.NewPool(ctx, dbCfg)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	slog.Info("connected to postgresql", "database", dbCfg.Database)

	now := time.Now
	ts := timestore.New(pool, slog.Default())
	cl := commandlog.New(pool)
	tl := triggerlog.New(pool)
	av := availability.New(pool)
	traces := tracestore.New(pool)
	_ = av // wired for inbound availability updates once an adapter is registered; no adapters ship in this engine

	mgr := events.NewManager()
	publisher := events.NewPublisher(mgr, events.DefaultDebounce)
	defer publisher.Close()

	rollingCache := cache.NewRolling(cacheWindow, now(), ts, cl, tl)
	engine := state.New(ts, rollingCache, cl, now)
	pl := pipeline.New(ts, rollingCache, cl, mgr, now)

	// No outbound adapters are registered in this build. The dispatcher
	// still runs so every accepted command at least transitions out of
	// "pending" with a recorded "unhandled" error, rather than growing the
	// queue unboundedly.
	dispatcher := pipeline.NewDispatcher(cl, nil, mgr, time.Second)
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	server := api.New(ginMode, pool, traces)
	serverErrCh := make(chan error, 1)
	go func() { serverErrCh <- server.Run(ctx, httpAddr) }()
	slog.Info("http server listening", "addr", httpAddr)

	stateChangedCh, unsubState := mgr.SubscribeStateChanged()
	defer unsubState()
	triggerAddedCh, unsubTrigger := mgr.SubscribeUserTriggerAdded()
	defer unsubTrigger()

	ticker := time.NewTicker(planInterval)
	defer ticker.Stop()

	slog.Info("planning loop started", "interval", planInterval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("shutting down")
			return
		case err := <-serverErrCh:
			if err != nil {
				slog.Error("http server error", "error", err)
			}
			return
		case <-ticker.C:
			runCycle(ctx, engine, rollingCache, tl, traces, pl, now)
		case e := <-stateChangedCh:
			slog.Debug("state changed, replanning", "channel", e.Channel)
			runCycle(ctx, engine, rollingCache, tl, traces, pl, now)
		case <-triggerAddedCh:
			slog.Debug("user trigger added, replanning")
			runCycle(ctx, engine, rollingCache, tl, traces, pl, now)
		}
	}
}

func mustParseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		slog.Error("invalid duration", "value", s, "error", err)
		os.Exit(1)
	}
	return d
}

// runCycle assembles one cycle's snapshot (calling every live derivation
// that needs database access up front, since model.Snapshot and the
// planner's Action.Evaluate are deliberately ctx-free and side-effect-free)
// and then runs the declared registry against it.
func runCycle(
	ctx context.Context,
	engine *state.Engine,
	c *cache.Cache,
	tl *triggerlog.Store,
	traces *tracestore.Store,
	pl *pipeline.Pipeline,
	now func() time.Time,
) {
	cycleStart := now()
	c.Advance(cycleStart)
	if err := c.RefreshTracked(ctx); err != nil {
		slog.Error("cache refresh failed", "error", err)
	}

	snapshot := buildSnapshot(ctx, engine, cycleStart)

	latestTrigger := func(target model.TriggerTarget) (model.TriggerRecord, bool) {
		rec, err := tl.Latest(ctx, target, cycleStart.Add(-24*time.Hour))
		if err != nil {
			return model.TriggerRecord{}, false
		}
		return rec, rec.IsActive(cycleStart)
	}

	entries := config.DefaultEntries(snapshot, now)
	tasks := config.BuildTasks(entries, config.AllGoalsActive(config.Goals()), snapshot)

	result := planner.PlanAndExecute(ctx, tasks, snapshot, latestTrigger, now, pl)

	if _, err := traces.Insert(ctx, result.Trace); err != nil {
		slog.Error("failed to persist planning trace", "error", err)
	}
	if err := tl.DisableBeforeExcept(ctx, cycleStart, result.UsedTriggerIDs); err != nil {
		slog.Error("failed to disable superseded triggers", "error", err)
	}
}

// rooms and devices this engine's declared goals (pkg/config) evaluate
// against. A production deployment would source this list from the same
// place the adapters get their device inventory; it is inlined here since
// adapters themselves are out of scope.
var (
	heatingZones    = []string{"LivingRoom", "Bedroom"}
	radiatorDevices = map[string]string{"LivingRoom": "LivingRoomThermostat", "Bedroom": "BedroomThermostat"}
	poweredDevices  = []string{"InfraredHeater", "Dehumidifier"}

	// roomWindowSensors guards each zone's own radiator; allWindowSensors
	// feeds the house-wide "is any window open" compound that StayInformed
	// notifications watch.
	roomWindowSensors = map[string][]model.Channel{
		"LivingRoom": {{Type: "Opened", Variant: "LivingRoomWindow"}},
		"Bedroom":    {{Type: "Opened", Variant: "BedroomWindow"}},
	}
	allWindowSensors = []model.Channel{{Type: "Opened", Variant: "LivingRoomWindow"}, {Type: "Opened", Variant: "BedroomWindow"}}
)

func buildSnapshot(ctx context.Context, engine *state.Engine, now time.Time) model.Snapshot {
	points := make(map[model.Channel]model.DataPoint)

	set := func(ch model.Channel, dp model.DataPoint, err error) {
		if err != nil {
			slog.Error("derivation failed", "channel", ch, "error", err)
			return
		}
		if dp.Value == nil {
			return
		}
		points[ch] = dp
	}

	setSince := func(ch model.Channel, since time.Time, ok bool, err error) {
		if err != nil {
			slog.Error("derivation failed", "channel", ch, "error", err)
			return
		}
		if !ok {
			return
		}
		points[ch] = model.DataPoint{Value: model.Quantity(float64(since.Unix())), Timestamp: now}
	}

	for _, zone := range heatingZones {
		device := radiatorDevices[zone]

		windowOpenCh := model.Channel{Type: "RadiatorWindowOpen", Variant: device}
		dp, err := engine.WindowOpen(ctx, roomWindowSensors[zone])
		set(windowOpenCh, dp, err)

		riseCh := model.Channel{Type: "AutomaticTemperatureIncrease", Variant: zone}
		dp, err = engine.AutomaticTemperatureIncrease(ctx, zone)
		set(riseCh, dp, err)

		demandCh := model.Channel{Type: "HeatingDemandLimit", Variant: zone}
		dp, err = engine.Raw(ctx, demandCh, 24*time.Hour)
		set(demandCh, dp, err)
	}

	poweredCh := model.Channel{Type: "Powered", Variant: "Dehumidifier"}
	dp, err := engine.Raw(ctx, poweredCh, 24*time.Hour)
	set(poweredCh, dp, err)

	for _, device := range poweredDevices {
		since, ok, sinceErr := engine.ContinuouslyPowered(ctx, device)
		setSince(model.Channel{Type: "ContinuouslyPoweredSince", Variant: device}, since, ok, sinceErr)
	}

	openedCh := model.Channel{Type: "Opened", Variant: "AnyWindow"}
	dp, err = engine.Opened(ctx, allWindowSensors)
	set(openedCh, dp, err)

	since, ok, err := engine.SinceTrue(ctx, openedCh)
	setSince(model.Channel{Type: "WindowOpenDuration", Variant: "AnyWindow"}, since, ok, err)

	mouldCh := model.Channel{Type: "RiskOfMould", Variant: "Bathroom"}
	dp, err = engine.RiskOfMould(ctx, "Bathroom", []string{"LivingRoom", "Bedroom"})
	set(mouldCh, dp, err)

	return model.NewSnapshot(points)
}
