// Package interchange wires every collaborator package into the running
// Interchange process described in spec §2, the way the teacher's
// internal/daemon ties config, logging, metrics, and task management
// together into one lifecycle.
package interchange

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"icx.sh/interchange/internal/bus"
	"icx.sh/interchange/internal/codec"
	"icx.sh/interchange/internal/command"
	"icx.sh/interchange/internal/config"
	"icx.sh/interchange/internal/loop"
	"icx.sh/interchange/internal/logging"
	"icx.sh/interchange/internal/metrics"
	"icx.sh/interchange/internal/monitor"
	"icx.sh/interchange/internal/queue"
	"icx.sh/interchange/internal/registry"
	"icx.sh/interchange/internal/selector"
)

// Interchange owns every long-lived collaborator and the process
// lifecycle: construction, Run (blocking, handles signals), and Stop.
type Interchange struct {
	cfg *config.Config

	bus           *bus.Bus
	registry      *registry.Registry
	queue         *queue.TaskQueue
	selector      selector.Selector
	command       *command.Handler
	monitorSink   monitor.Sink
	monitor       *monitor.Emitter
	loop          *loop.Loop
	metricsServer *metrics.Server

	workerPort int
}

// New constructs an Interchange from cfg. It initializes logging first,
// matching the teacher's Daemon.Start ordering ("1. Initialize logging
// system" before anything else can log).
func New(cfg *config.Config) (*Interchange, error) {
	if err := logging.Init(cfg.LoggingLevel, cfg.LogDir, cfg.RunID); err != nil {
		return nil, fmt.Errorf("interchange: initializing logging: %w", err)
	}

	ic := &Interchange{cfg: cfg, workerPort: cfg.ResolvedWorkerPort()}

	var tlsConfig *tls.Config
	if cfg.CertDir != nil {
		c, err := bus.ServerTLSConfig(*cfg.CertDir)
		if err != nil {
			return nil, fmt.Errorf("interchange: loading cert_dir: %w", err)
		}
		tlsConfig = c
	}

	bindAddr := cfg.BindAddress()
	taskIn, err := bus.ListenPointToPoint(net.JoinHostPort(bindAddr, strconv.Itoa(cfg.ClientPorts[0])), tlsConfig)
	if err != nil {
		return nil, fmt.Errorf("interchange: binding task_in: %w", err)
	}
	resultsOut, err := bus.ListenPointToPoint(net.JoinHostPort(bindAddr, strconv.Itoa(cfg.ClientPorts[1])), tlsConfig)
	if err != nil {
		return nil, fmt.Errorf("interchange: binding results_out: %w", err)
	}
	cmdTransport, err := bus.ListenPointToPoint(net.JoinHostPort(bindAddr, strconv.Itoa(cfg.ClientPorts[2])), tlsConfig)
	if err != nil {
		return nil, fmt.Errorf("interchange: binding command: %w", err)
	}
	managerRouter, err := bus.ListenRouter(net.JoinHostPort(bindAddr, strconv.Itoa(ic.workerPort)), tlsConfig)
	if err != nil {
		return nil, fmt.Errorf("interchange: binding manager_router: %w", err)
	}
	ic.bus = bus.New(taskIn, resultsOut, cmdTransport, managerRouter)

	ic.registry = registry.New(cfg.ParslVersion, cfg.PythonVersion)
	ic.queue = queue.New()
	ic.selector = selector.New(cfg.ManagerSelector, time.Now().UnixNano())

	msgCodec := codec.JSON{}
	ic.command = command.New(ic.registry, msgCodec, ic.workerPort)

	ic.monitorSink = monitor.NopSink{}
	if cfg.MonitoringEnabled() {
		sink, err := monitor.NewUDPSink(net.JoinHostPort(*cfg.HubAddress, strconv.Itoa(*cfg.HubZMQPort)))
		if err != nil {
			return nil, fmt.Errorf("interchange: dialing monitoring hub: %w", err)
		}
		ic.monitorSink = sink
	}
	ic.monitor = monitor.New(cfg.MonitoringEnabled(), cfg.RunID, msgCodec, ic.monitorSink, 256)

	ic.loop = loop.New(ic.queue, ic.registry, ic.selector, ic.bus, ic.command, ic.monitor, msgCodec, msgCodec,
		time.Duration(cfg.HeartbeatThreshold)*time.Second, time.Duration(cfg.PollPeriod)*time.Millisecond)

	if cfg.MetricsListenAddr != "" {
		ic.metricsServer = metrics.NewServer(cfg.MetricsListenAddr, cfg.MetricsPath)
	}

	return ic, nil
}

// WorkerPort returns the port manager_router is actually bound to —
// resolved once at construction time even when the blob left worker_port
// null (spec §6); the WORKER_BINDS command reports this value.
func (ic *Interchange) WorkerPort() int { return ic.workerPort }

// Start brings up background services (metrics HTTP server, monitoring
// emitter) that run alongside the event loop.
func (ic *Interchange) Start(ctx context.Context) error {
	ic.monitor.Start()
	if ic.metricsServer != nil {
		if err := ic.metricsServer.Start(ctx); err != nil {
			return fmt.Errorf("interchange: starting metrics server: %w", err)
		}
	}
	slog.Info("interchange started", "run_id", ic.cfg.RunID, "worker_port", ic.workerPort)
	return nil
}

// Run blocks in the event loop until ctx is cancelled by a signal, then
// tears everything down — the same shape as the teacher's Daemon.Run,
// minus config-reload (the Interchange has no hot-reloadable fields;
// spec names none).
func (ic *Interchange) Run(ctx context.Context) error {
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	err := ic.loop.Run(sigCtx)
	ic.Stop()
	if err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// Stop tears down every owned resource. Transport teardown errors are
// logged, not propagated — spec §7: "Transport teardown error at
// shutdown: log and exit."
func (ic *Interchange) Stop() {
	slog.Info("interchange stopping")

	if ic.metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := ic.metricsServer.Stop(shutdownCtx); err != nil {
			slog.Error("interchange: metrics server shutdown failed", "error", err)
		}
	}

	if err := ic.monitor.Close(); err != nil {
		slog.Error("interchange: monitor shutdown failed", "error", err)
	}

	if err := ic.bus.Close(); err != nil {
		slog.Error("interchange: bus shutdown failed", "error", err)
	}

	slog.Info("interchange stopped")
}
