package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jbweber/jimvn/internal/agent"
	"github.com/jbweber/jimvn/internal/bus"
	"github.com/jbweber/jimvn/internal/config"
	"github.com/jbweber/jimvn/internal/disk"
	"github.com/jbweber/jimvn/internal/events"
	"github.com/jbweber/jimvn/internal/host"
	"github.com/jbweber/jimvn/internal/libvirt"
	"github.com/jbweber/jimvn/internal/logging"
	"github.com/jbweber/jimvn/internal/metrics"
	"github.com/jbweber/jimvn/internal/storage"
	"github.com/jbweber/jimvn/internal/vm"
)

// forwardQueueSize bounds log lines waiting to be pushed upstream.
const forwardQueueSize = 256

var (
	configPath string
	debugMode  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the agent",
	Long: `Run the agent until SIGINT or SIGTERM.

Starts the provisioning, operation and state report engines plus the
hypervisor event bridge. On shutdown every engine finishes the command it
is working on before the process exits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runAgent(ctx, configPath, debugMode)
	},
}

func init() {
	runCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to the agent configuration")
	runCmd.Flags().BoolVar(&debugMode, "debug", false, "log at debug level to the console")
}

func runAgent(ctx context.Context, path string, debug bool) error {
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return err
	}
	if debug {
		cfg.Debug = true
		cfg.Normalize()
	}
	if socketPath != "" {
		cfg.Libvirt.Socket = socketPath
	}

	hostname, err := host.Hostname()
	if err != nil {
		return err
	}
	nodeID := host.NodeID()

	log, logCloser, err := logging.New(logging.Options{
		Level:   cfg.Log.Level,
		File:    cfg.Log.File,
		Console: cfg.Debug,
		Host:    hostname,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = logCloser.Close()
	}()

	rdb := bus.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	defer func() {
		_ = rdb.Close()
	}()
	if err := bus.Ping(ctx, rdb); err != nil {
		return err
	}

	emitter := bus.NewEmitter(rdb, cfg.UpstreamQueue, hostname, nodeID)
	forwardLevel, err := zerolog.ParseLevel(cfg.Log.Forward)
	if err != nil {
		return fmt.Errorf("failed to parse log.forward %q: %w", cfg.Log.Forward, err)
	}
	forwarder := logging.NewForwarder(emitter, forwardLevel, forwardQueueSize)
	log = log.Hook(forwarder)

	client, err := libvirt.ConnectWithContext(ctx, cfg.Libvirt.Socket, cfg.Libvirt.Timeout)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close libvirt connection")
		}
	}()
	lv := client.Libvirt()

	channel, err := bus.Subscribe(ctx, rdb, cfg.InstructionChannel, time.Second)
	if err != nil {
		return err
	}
	defer func() {
		_ = channel.Close()
	}()

	m := metrics.New()
	sessions := storage.NewSessions(lv, cfg.Gluster.Host)
	guests := vm.NewManager(lv, vm.SessionStores(sessions), disk.NewManager(), cfg.Gluster.Host)

	sup := agent.NewSupervisor(log)
	sup.Add(agent.EngineProvision, agent.NewProvisioner(agent.ProvisionerOptions{
		Queue:         bus.NewQueue(rdb, cfg.DownstreamQueue),
		Emitter:       emitter,
		Provisioning:  guests,
		Load:          host.LoadAverage,
		LoadThreshold: cfg.Provision.LoadThreshold,
		Logger:        log,
		Metrics:       m,
		Debug:         cfg.Debug,
	}))
	sup.Add(agent.EngineOperate, agent.NewOperator(agent.OperatorOptions{
		Channel:    channel,
		Emitter:    emitter,
		Operations: guests,
		Registry:   vm.NewRegistry(lv),
		Logger:     log,
		Metrics:    m,
		Debug:      cfg.Debug,
	}))
	sup.Add(agent.EngineReport, agent.NewReporter(emitter, cfg.Report.Interval, log))
	sup.Add("events", events.NewBridge(lv, emitter, log, m, events.DefaultQueueSize))
	sup.Add("log-forwarder", agent.EngineFunc(func(ctx context.Context) error {
		forwarder.Deliver(ctx)
		return nil
	}))
	if cfg.Metrics.Addr != "" {
		sup.Add("metrics", agent.EngineFunc(func(ctx context.Context) error {
			return m.Serve(ctx, cfg.Metrics.Addr)
		}))
	}

	log.Info().
		Str("redis", cfg.Redis.Addr).
		Str("libvirt", cfg.Libvirt.Socket).
		Uint64("node_id", nodeID).
		Msg("agent started")

	if err := sup.Run(ctx); err != nil {
		return fmt.Errorf("agent stopped: %w", err)
	}

	log.Info().Msg("agent stopped")
	return nil
}
