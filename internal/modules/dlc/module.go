// Package dlc wires the Direct Load Control override engine's components
// (Tracker Store, Request Validator, Contiguity Resolver, Dispatcher,
// Override/Cancel State Machines, Event Sink, PolicyProvider) into a single
// HTTP-registered domain module, following the teacher's per-domain
// RegisterHttpModule convention.
package dlc

import (
	"context"
	"time"

	"voyago/core-api/internal/infrastructure/config"
	database "voyago/core-api/internal/infrastructure/db"
	"voyago/core-api/internal/infrastructure/logger"
	"voyago/core-api/internal/infrastructure/telemetry/tracer"
	"voyago/core-api/internal/infrastructure/validator"
	"voyago/core-api/internal/modules/dlc/contiguity"
	"voyago/core-api/internal/modules/dlc/delivery/http"
	"voyago/core-api/internal/modules/dlc/dispatch"
	"voyago/core-api/internal/modules/dlc/eventsink"
	"voyago/core-api/internal/modules/dlc/ingress"
	"voyago/core-api/internal/modules/dlc/policyprovider"
	"voyago/core-api/internal/modules/dlc/repository/command"
	"voyago/core-api/internal/modules/dlc/repository/query"
	"voyago/core-api/internal/modules/dlc/statemachine"
	"voyago/core-api/internal/modules/dlc/usecase"
	dlcvalidator "voyago/core-api/internal/modules/dlc/validator"
	"voyago/core-api/internal/modules/dlc/workflow"

	"github.com/gofiber/fiber/v2"
)

// ModuleConfig bundles the per-domain infrastructure the bootstrap layer
// fans out for the "dlc" entry in its domains table.
type ModuleConfig struct {
	Config *config.Config
	Server *fiber.App
	DB     database.Database
	Cache  database.CacheDatabase
	Log    logger.Logger
	Val    validator.Validator
	Tracer tracer.Tracer
}

// dispatchPollInterval is how often the background loop drains the ingress
// queue; the queue itself tolerates redelivery, so a short, fixed interval
// is sufficient rather than anything adaptive.
const dispatchPollInterval = 2 * time.Second

func RegisterModule(cfg ModuleConfig) {
	ucLogger := cfg.Log.WithField("component", "usecase")
	hdlrLogger := cfg.Log.WithField("component", "handler")

	// --- repositories ---
	trackerCommand := command.NewTrackerRepository(cfg.DB)
	trackerQuery := query.NewTrackerRepository(cfg.DB)

	// --- collaborators stated as abstract contracts (spec.md §1) ---
	temporalValidator := dlcvalidator.NewTemporalValidator(trackerQuery)
	resolver := contiguity.NewResolver(trackerQuery)
	ingressQueue := ingress.NewInMemoryQueue()
	provider := policyprovider.NewStubProvider(cfg.Log.WithField("component", "policyprovider"))
	sink := eventsink.NewRedisDedupSink(cfg.Cache, eventsink.NewLogSink(cfg.Log))

	// --- state machines + the workflow engine that invokes them ---
	overrideMachine := statemachine.NewOverrideMachine(cfg.DB, trackerQuery, trackerCommand, provider, sink, cfg.Log, cfg.Config.Dlc)
	units := dispatch.NewUnitRegistry()

	engine := workflow.NewInMemoryEngine(func(ctx context.Context, item workflow.WorkItem) error {
		if item.Step != dispatch.StepOverride {
			return nil
		}
		unit, ok := units.Take(item.ExecutionKey)
		if !ok {
			return nil
		}
		return overrideMachine.Run(ctx, unit)
	})

	cancelMachine := statemachine.NewCancelMachine(cfg.DB, trackerQuery, trackerCommand, provider, engine, sink, cfg.Log)

	dispatcher := dispatch.NewDispatcher(cfg.DB, trackerQuery, trackerCommand, resolver, engine, sink, cfg.Log, cfg.Config.Dlc, units)
	startDispatchLoop(ingressQueue, dispatcher, cfg.Log)

	// --- use cases ---
	submitOverrideUseCase := usecase.NewSubmitOverrideUseCase(
		ucLogger,
		cfg.Tracer,
		cfg.Config.Dlc,
		usecase.SubmitOverrideRepositories{
			DB:       cfg.DB,
			Query:    trackerQuery,
			Command:  trackerCommand,
			Temporal: temporalValidator,
			Queue:    ingressQueue,
			Sink:     sink,
		},
	)
	cancelOverrideUseCase := usecase.NewCancelOverrideUseCase(ucLogger, cfg.Tracer, cancelMachine)
	getStatusUseCase := usecase.NewGetStatusUseCase(ucLogger, cfg.Tracer, trackerQuery)

	// --- handler + routes ---
	h := http.NewHandler(
		cfg.Config,
		hdlrLogger,
		cfg.Val,
		http.HandlerUseCases{
			SubmitOverrideUseCase: submitOverrideUseCase,
			CancelOverrideUseCase: cancelOverrideUseCase,
			GetStatusUseCase:      getStatusUseCase,
		},
	)

	routeConfig := http.RouteConfig{
		Server:  cfg.Server,
		Config:  cfg.Config,
		Handler: h,
	}
	routeConfig.Setup()
}

// startDispatchLoop runs the Grouping + Throttle Dispatcher's batch pass on
// a fixed interval for as long as the process is up; the ingress transport
// is an external collaborator out of scope (spec.md §1), so this loop is
// the in-process stand-in for whatever triggers dispatch in production
// (a queue-consumer worker, a cron, etc).
func startDispatchLoop(q ingress.Queue, d *dispatch.Dispatcher, log logger.Logger) {
	ticker := time.NewTicker(dispatchPollInterval)
	go func() {
		for range ticker.C {
			ctx := context.Background()
			msgs, err := q.Dequeue(ctx, 0)
			if err != nil {
				log.WithField("component", "dispatch_loop").Error("failed to dequeue ingress batch")
				continue
			}
			if len(msgs) == 0 {
				continue
			}
			if err := d.ProcessBatch(ctx, msgs); err != nil {
				log.WithField("component", "dispatch_loop").Error("dispatch batch processing failed")
			}
		}
	}()
}
