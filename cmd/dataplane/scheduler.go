package main

import (
	"context"
	"sync"
	"time"

	"go.uber.org/fx"

	"github.com/lumastudio/dataplane/internal/cli"
	"github.com/lumastudio/dataplane/v1/dal"
	"github.com/lumastudio/dataplane/v1/identity"
	"github.com/lumastudio/dataplane/v1/logger"
	"github.com/lumastudio/dataplane/v1/rpc"
)

// procedureRunner is the part of *dal.Client the scheduler needs.
type procedureRunner interface {
	Rpc(ctx context.Context, name string, args map[string]any) dal.Result
}

type schedulerLogger interface {
	Info(msg string, err error, fields ...map[string]interface{})
	Error(msg string, err error, fields ...map[string]interface{})
}

// maintenanceScheduler calls run_maintenance as the system role on a fixed
// interval. Runs never overlap; a tick that fires during a run is dropped.
type maintenanceScheduler struct {
	runner procedureRunner
	cfg    cli.MaintenanceConfig
	logger schedulerLogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newMaintenanceScheduler(runner procedureRunner, cfg cli.MaintenanceConfig, logger schedulerLogger) *maintenanceScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &maintenanceScheduler{runner: runner, cfg: cfg, logger: logger, ctx: ctx, cancel: cancel}
}

func (s *maintenanceScheduler) start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
}

func (s *maintenanceScheduler) loop() {
	if s.cfg.RunOnStart {
		s.runOnce()
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.runOnce()
		}
	}
}

// runOnce performs one maintenance pass. An in-flight pass is cancelled
// when the scheduler stops.
func (s *maintenanceScheduler) runOnce() dal.Result {
	ctx := identity.WithIdentity(s.ctx, identity.SystemIdentity())
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	res := s.runner.Rpc(ctx, rpc.ProcRunMaintenance, nil)
	fields := map[string]interface{}{"duration": time.Since(start).String()}
	if !res.OK() {
		fields["code"] = res.Error.Code
		fields["message"] = res.Error.Message
		s.logger.Error("scheduled maintenance failed", nil, fields)
		return res
	}
	fields["report"] = res.Data
	s.logger.Info("scheduled maintenance completed", nil, fields)
	return res
}

// stop cancels the loop and waits for it, or for ctx to expire.
func (s *maintenanceScheduler) stop(ctx context.Context) error {
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type maintenanceParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Client    *dal.Client
	Config    cli.MaintenanceConfig
	Logger    logger.Logger
}

func registerMaintenance(p maintenanceParams) {
	if !p.Config.Enabled {
		p.Logger.Info("scheduled maintenance disabled", nil)
		return
	}

	s := newMaintenanceScheduler(p.Client, p.Config, p.Logger)
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			p.Logger.Info("starting maintenance scheduler", nil, map[string]interface{}{
				"interval":     p.Config.Interval.String(),
				"run_on_start": p.Config.RunOnStart,
			})
			s.start()
			return nil
		},
		OnStop: s.stop,
	})
}
