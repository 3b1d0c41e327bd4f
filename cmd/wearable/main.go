package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"wristrelay/config"
	"wristrelay/discovery"
	"wristrelay/logging"
	"wristrelay/network"
	"wristrelay/sensor"
	"wristrelay/session"
	"wristrelay/ui"
	"wristrelay/wearable"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "wearable: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		dataDir       string
		name          string
		port          int
		logFile       string
		logLevel      string
		noHeartRate   bool
		noLight       bool
		warmupSamples int
	)

	flagSet := pflag.NewFlagSet("wearable", pflag.ContinueOnError)
	flagSet.StringVar(&dataDir, "data-dir", "", "data directory (default: per-user config dir, or $"+config.DataDirEnv+")")
	flagSet.StringVar(&name, "name", "", "device name advertised to the phone")
	flagSet.IntVar(&port, "port", 0, "fixed TCP listening port (0 keeps the configured mode)")
	flagSet.StringVar(&logFile, "log-file", "", "log file path (default: <data-dir>/wearable/wearable.log)")
	flagSet.StringVar(&logLevel, "log-level", "", "log level override: debug, info, warn, error")
	flagSet.BoolVar(&noHeartRate, "no-heart-rate", false, "simulate a device without a heart-rate sensor")
	flagSet.BoolVar(&noLight, "no-light", false, "simulate a device without a light sensor")
	flagSet.IntVar(&warmupSamples, "warmup", 5, "zero heart-rate samples emitted before real values")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	cfg, cfgPath, err := config.LoadOrCreateAt(dataDir, config.RoleWearable)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.Apply(config.Overrides{DeviceName: name, ListeningPort: port, LogLevel: logLevel})

	if logFile == "" {
		logFile = filepath.Join(filepath.Dir(cfgPath), "wearable.log")
	}
	logger, closeLog, err := logging.OpenFile(logFile, logging.ParseLevel(cfg.LogLevel))
	if err != nil {
		return err
	}
	defer closeLog()
	logger = logger.With("device_id", cfg.DeviceID, "role", string(cfg.Role))
	logger.Info("starting", "name", cfg.DeviceName, "config", cfgPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sess := session.New()
	var registry *discovery.Registry
	client, err := network.NewMessageClient(network.MessageClientOptions{
		Identity:      network.LocalIdentity{DeviceID: cfg.DeviceID, DeviceName: cfg.DeviceName},
		ListenAddress: cfg.ListenAddress(),
		// The address saved at connect time wins; the last scan is a fallback.
		Resolver: network.Resolvers{sess, network.AddressResolverFunc(func(nodeID string) (string, bool) {
			if registry == nil {
				return "", false
			}
			return registry.AddressOf(nodeID)
		})},
		Logger: logger,
	})
	if err != nil {
		return err
	}
	if err := client.Start(ctx); err != nil {
		return fmt.Errorf("start transport: %w", err)
	}
	defer client.Stop()

	discoveryService, err := discovery.Start(discovery.Config{
		SelfDeviceID:  cfg.DeviceID,
		DeviceName:    cfg.DeviceName,
		Role:          string(cfg.Role),
		PeerRole:      string(cfg.Role.Peer()),
		ListeningPort: client.Addr().(*net.TCPAddr).Port,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("start discovery: %w", err)
	}
	defer discoveryService.Stop()
	registry = discoveryService.Registry()

	manager := sensor.NewSimulatedManager(sensor.SimulatedOptions{
		DisableHeartRate: noHeartRate,
		DisableLight:     noLight,
		WarmupSamples:    warmupSamples,
	})
	defer manager.Close()

	var bridge ui.Bridge
	source := sensor.NewSource(manager, logger)
	source.OnChange(bridge.OnReading)

	app := wearable.New(wearable.Options{
		Nodes:   registry,
		Sender:  client,
		Sensors: source,
		Session: sess,
		Logger:  logger,
	})

	program := tea.NewProgram(ui.NewWearableModel(ctx, app, cfg.DeviceName, source.Availability()), tea.WithAltScreen())
	bridge.SetProgram(program)

	app.Resume()
	defer app.Pause()

	go func() {
		<-ctx.Done()
		program.Quit()
	}()

	if _, err := program.Run(); err != nil {
		return err
	}
	logger.Info("stopped")
	return nil
}
