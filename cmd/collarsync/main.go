package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	service_registry "github.com/benmeehan/collar-sync/internal/service_registry"
	"github.com/benmeehan/collar-sync/internal/utils"
	"github.com/benmeehan/collar-sync/pkg/file"
	"github.com/benmeehan/collar-sync/pkg/mqtt"
	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type runOptions struct {
	configFile string
	envFile    string
	once       bool
	cycles     int
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &runOptions{}

	rootCmd := &cobra.Command{
		Use:           "collarsync",
		Short:         "Reconcile collar positions and push them to the collar-control API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "configs/config.yaml", "path to the YAML configuration")
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "optional dotenv file loaded before the configuration")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the sync loop and the enabled services until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}
	runCmd.Flags().BoolVar(&opts.once, "once", false, "run a single cycle and exit")
	runCmd.Flags().IntVar(&opts.cycles, "cycles", 0, "run this many cycles and exit (0 runs until interrupted)")
	runCmd.MarkFlagsMutuallyExclusive("once", "cycles")

	rootCmd.AddCommand(runCmd)
	return rootCmd
}

func run(ctx context.Context, opts *runOptions) error {
	if opts.cycles < 0 {
		return errors.New("--cycles must not be negative")
	}
	if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", opts.envFile, err)
	}

	fileClient := file.NewFileService()
	config, err := utils.LoadConfig(opts.configFile, fileClient)
	if err != nil {
		return err
	}

	log := utils.NewLogger(config.Logging.Level, config.Logging.Format, os.Stdout)

	maxCycles := opts.cycles
	if opts.once {
		maxCycles = 1
	}
	// Bounded runs drive the loop in the foreground instead of as a service.
	if maxCycles > 0 {
		config.Sync.Enabled = false
	}

	var mqttClient mqtt.MQTTClient
	if config.NeedsMQTT() {
		// Generate a unique MQTT Client ID by appending a UUID
		clientID := config.MQTT.ClientID + "-" + uuid.New().String()
		log.Info().Str("client_id", clientID).Msg("Connecting to MQTT broker")

		mqttService := mqtt.NewMqttService(fileClient)
		if err := mqttService.Initialize(mqtt.Options{
			Broker:        config.MQTT.Broker,
			ClientID:      clientID,
			CACertificate: config.MQTT.CACertificate,
			Username:      config.MQTT.Username,
			Password:      config.MQTT.Password,
		}); err != nil {
			return fmt.Errorf("failed to initialize MQTT connection: %w", err)
		}
		defer mqttService.Disconnect(250)
		mqttClient = mqttService
	}

	serviceRegistry := service_registry.NewServiceRegistry(mqttClient, fileClient, quartz.NewReal(), log)
	defer func() {
		if err := serviceRegistry.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to release resources")
		}
	}()

	if err := serviceRegistry.RegisterServices(ctx, config); err != nil {
		return err
	}
	if err := serviceRegistry.StartServices(); err != nil {
		return err
	}
	log.Info().Strs("services", serviceRegistry.Services()).Msg("All services started successfully")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if maxCycles > 0 {
		stats := serviceRegistry.Sync().Run(ctx, maxCycles)
		log.Info().
			Int("cycles", stats.Cycles).
			Int("complete", stats.Complete).
			Int("partial", stats.Partial).
			Int("failed", stats.Failed).
			Msg("Sync run finished")
	} else {
		<-ctx.Done()
	}

	log.Info().Msg("Shutting down gracefully...")
	return serviceRegistry.StopServices()
}
