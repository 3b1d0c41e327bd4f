package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"wristrelay/config"
	"wristrelay/discovery"
	"wristrelay/handheld"
	"wristrelay/logging"
	"wristrelay/network"
	"wristrelay/relay"
	"wristrelay/session"
	"wristrelay/ui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "handheld: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		dataDir  string
		name     string
		port     int
		relayURL string
		logFile  string
		logLevel string
		headless bool
	)

	flagSet := pflag.NewFlagSet("handheld", pflag.ContinueOnError)
	flagSet.StringVar(&dataDir, "data-dir", "", "data directory (default: per-user config dir, or $"+config.DataDirEnv+")")
	flagSet.StringVar(&name, "name", "", "device name advertised to the watch")
	flagSet.IntVar(&port, "port", 0, "fixed TCP listening port (0 keeps the configured mode)")
	flagSet.StringVar(&relayURL, "relay-url", "", "base URL readings are relayed to")
	flagSet.StringVar(&logFile, "log-file", "", "log file path (default: <data-dir>/handheld/handheld.log)")
	flagSet.StringVar(&logLevel, "log-level", "", "log level override: debug, info, warn, error")
	flagSet.BoolVar(&headless, "headless", false, "run without the terminal UI and log to stderr")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	cfg, cfgPath, err := config.LoadOrCreateAt(dataDir, config.RoleHandheld)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.Apply(config.Overrides{DeviceName: name, ListeningPort: port, RelayBaseURL: relayURL, LogLevel: logLevel})

	var logger *slog.Logger
	if headless && logFile == "" {
		logger = logging.New(os.Stderr, logging.ParseLevel(cfg.LogLevel))
	} else {
		if logFile == "" {
			logFile = filepath.Join(filepath.Dir(cfgPath), "handheld.log")
		}
		fileLogger, closeLog, err := logging.OpenFile(logFile, logging.ParseLevel(cfg.LogLevel))
		if err != nil {
			return err
		}
		defer closeLog()
		logger = fileLogger
	}
	logger = logger.With("device_id", cfg.DeviceID, "role", string(cfg.Role))
	logger.Info("starting", "name", cfg.DeviceName, "config", cfgPath, "relay_url", cfg.RelayBaseURL)

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

	var bridge ui.Bridge
	httpRelay := relay.NewHTTPRelay(cfg.RelayBaseURL, relay.WithLogger(logger), relay.WithObserver(&bridge))
	defer httpRelay.Close()

	app := handheld.New(handheld.Options{
		Nodes:        registry,
		Messages:     client,
		Forwarder:    relay.NewForwarder(logger),
		Relay:        httpRelay,
		Session:      sess,
		Logger:       logger,
		OnSensorData: bridge.OnSensorData,
	})
	app.Resume()
	defer app.Pause()

	if headless {
		fmt.Fprintf(os.Stderr, "handheld %q relaying to %s (Ctrl+C to stop)\n", cfg.DeviceName, cfg.RelayBaseURL)
		<-ctx.Done()
		logger.Info("stopped")
		return nil
	}

	program := tea.NewProgram(ui.NewHandheldModel(ctx, app, cfg.DeviceName), tea.WithAltScreen())
	bridge.SetProgram(program)

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
