package service_registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/benmeehan/collar-sync/internal/api"
	"github.com/benmeehan/collar-sync/internal/constants"
	metrics_collectors "github.com/benmeehan/collar-sync/internal/metrics_collectors"
	"github.com/benmeehan/collar-sync/internal/services"
	"github.com/benmeehan/collar-sync/internal/sources"
	state_managers "github.com/benmeehan/collar-sync/internal/state_managers"
	"github.com/benmeehan/collar-sync/internal/storage"
	"github.com/benmeehan/collar-sync/internal/utils"
	"github.com/benmeehan/collar-sync/pkg/collar"
	"github.com/benmeehan/collar-sync/pkg/file"
	"github.com/benmeehan/collar-sync/pkg/identity"
	"github.com/benmeehan/collar-sync/pkg/location"
	"github.com/benmeehan/collar-sync/pkg/mqtt"
	"github.com/coder/quartz"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

// Service is anything the registry starts and stops.
type Service interface {
	Start() error
	Stop() error
}

// ServiceRegistry builds the sync components from configuration and manages
// the lifecycle of the long-running ones.
type ServiceRegistry struct {
	services    map[string]Service // Stores registered services
	serviceKeys []string           // Maintains order of service registration
	closers     []io.Closer        // Released by Close, in reverse order
	mqttClient  mqtt.MQTTClient
	fileClient  file.FileOperations
	clock       quartz.Clock
	Logger      zerolog.Logger

	store       storage.PositionStore
	directory   storage.DeviceDirectory
	sync        *services.SyncService
	promMetrics *prometheus.Registry
}

// NewServiceRegistry initializes a new service registry with dependencies.
// mqttClient may be nil when nothing in the configuration uses the broker.
func NewServiceRegistry(mqttClient mqtt.MQTTClient, fileClient file.FileOperations, clock quartz.Clock,
	logger zerolog.Logger) *ServiceRegistry {
	return &ServiceRegistry{
		services:   make(map[string]Service),
		mqttClient: mqttClient,
		fileClient: fileClient,
		clock:      clock,
		Logger:     logger,
	}
}

// RegisterService adds a new service to the registry.
func (sr *ServiceRegistry) RegisterService(name string, svc Service) {
	if _, exists := sr.services[name]; exists {
		sr.Logger.Warn().Msgf("Service %s is already registered", name)
		return
	}
	sr.services[name] = svc
	sr.serviceKeys = append(sr.serviceKeys, name)
	sr.Logger.Info().Msgf("Registered service: %s", name)
}

// Services returns the registered service names in start order.
func (sr *ServiceRegistry) Services() []string {
	return append([]string(nil), sr.serviceKeys...)
}

// StartServices initiates all registered services in order.
// If a service fails to start, it stops already started services.
func (sr *ServiceRegistry) StartServices() error {
	startedServices := []string{}

	for _, name := range sr.serviceKeys {
		svc := sr.services[name]
		sr.Logger.Info().Msgf("Starting service: %s", name)
		if err := svc.Start(); err != nil {
			sr.Logger.Error().Err(err).Msgf("Failed to start service: %s", name)

			sr.Logger.Warn().Msg("Stopping already started services due to startup failure...")
			for i := len(startedServices) - 1; i >= 0; i-- {
				_ = sr.services[startedServices[i]].Stop()
			}
			return err
		}
		startedServices = append(startedServices, name)
	}

	return nil
}

// StopServices stops all services in reverse order.
func (sr *ServiceRegistry) StopServices() error {
	var stopErrors []error
	for i := len(sr.serviceKeys) - 1; i >= 0; i-- {
		name := sr.serviceKeys[i]
		if err := sr.services[name].Stop(); err != nil {
			stopErrors = append(stopErrors, fmt.Errorf("failed to stop %s: %w", name, err))
		}
	}
	if len(stopErrors) > 0 {
		for _, e := range stopErrors {
			sr.Logger.Error().Err(e).Msg("Service stop failure")
		}
		return errors.Join(stopErrors...)
	}
	return nil
}

// Close releases the store and any source links. Call it after StopServices.
func (sr *ServiceRegistry) Close() error {
	var errs []error
	for i := len(sr.closers) - 1; i >= 0; i-- {
		if err := sr.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	sr.closers = nil
	return errors.Join(errs...)
}

// Sync returns the orchestrator built by RegisterServices.
func (sr *ServiceRegistry) Sync() *services.SyncService {
	return sr.sync
}

// Store returns the position store built by RegisterServices.
func (sr *ServiceRegistry) Store() storage.PositionStore {
	return sr.store
}

// RegisterServices builds the sync components and registers the enabled
// services based on configuration.
func (sr *ServiceRegistry) RegisterServices(ctx context.Context, config *utils.Config) error {
	if err := sr.buildStorage(ctx, config); err != nil {
		return err
	}
	if err := sr.seedDevices(ctx, config); err != nil {
		return err
	}

	source, err := sr.buildSource(config)
	if err != nil {
		return err
	}

	collarClient, err := collar.NewClient(config.Collar.BaseURL, config.Collar.APIVersion, config.Collar.Token, &http.Client{})
	if err != nil {
		return fmt.Errorf("failed to create collar client: %w", err)
	}

	sr.promMetrics = prometheus.NewRegistry()
	sr.promMetrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	sr.sync = services.NewSyncService(
		source,
		sr.store,
		services.NewReconciler(sr.store, sr.Logger),
		services.NewPusher(collarClient, config.Collar.Timeout, sr.Logger),
		config.Sync.Interval,
		config.Sync.PhaseDelay,
		sr.clock,
		sr.Logger,
		metrics_collectors.NewSyncMetrics(sr.promMetrics),
	)

	if config.Sync.StateFile != "" {
		stateManager := state_managers.NewCycleStateManager(config.Sync.StateFile, sr.fileClient, sr.Logger)
		state, err := stateManager.LoadState()
		if err != nil {
			return err
		}
		sr.sync.RestoreStats(state)
		sr.sync.AddObserver(stateManager)
	}

	// Ordered service definitions with inline constructors
	servicesInOrder := []struct {
		name        string
		enabled     bool
		constructor func() (Service, error)
	}{
		{
			name:    "mqtt-source",
			enabled: config.External.Kind == constants.SourceMQTT,
			constructor: func() (Service, error) {
				mqttSource, ok := source.(*sources.MQTTSource)
				if !ok {
					return nil, errors.New("mqtt source was not built")
				}
				return mqttSource, nil
			},
		},
		{
			name:    "status",
			enabled: config.Status.Enabled,
			constructor: func() (Service, error) {
				if sr.mqttClient == nil {
					return nil, errors.New("status publishing requires an MQTT connection")
				}
				status := services.NewStatusService(
					config.Status.Topic,
					config.Status.Interval,
					config.Status.QOS,
					config.Status.NodeID,
					sr.mqttClient,
					sr.sync,
					metrics_collectors.NewHostMetricsRegistry(config.Status.HostMetricsConfig, sr.Logger),
					sr.clock,
					sr.Logger,
				)
				sr.sync.AddObserver(status)
				return status, nil
			},
		},
		{
			name:    "sync",
			enabled: config.Sync.Enabled,
			constructor: func() (Service, error) {
				return sr.sync, nil
			},
		},
		{
			name:    "api",
			enabled: config.API.Enabled,
			constructor: func() (Service, error) {
				return api.NewServer(config.API.Address, sr.sync, sr.store, sr.directory, sr.promMetrics, sr.Logger), nil
			},
		},
	}

	// Register services in the predefined order
	registeredServices := []string{}
	for _, svc := range servicesInOrder {
		if svc.enabled {
			serviceInstance, err := svc.constructor()
			if err != nil {
				sr.Logger.Error().Err(err).Msgf("Failed to create %s service", svc.name)
				return err
			}
			sr.RegisterService(svc.name, serviceInstance)
			registeredServices = append(registeredServices, svc.name)
		}
	}

	sr.Logger.Info().Msgf("Registered services in order: %v", registeredServices)
	return nil
}

func (sr *ServiceRegistry) buildStorage(ctx context.Context, config *utils.Config) error {
	switch config.Storage.Driver {
	case constants.StorageMemory:
		sr.store = storage.NewMemoryStore()
		sr.directory = storage.NewMemoryDirectory()
	case constants.StorageSQLite:
		store, err := storage.NewSQLiteStore(config.Storage.Path, sr.Logger)
		if err != nil {
			return err
		}
		sr.store = store
		sr.directory = storage.NewSQLiteDirectory(store)
	default:
		return fmt.Errorf("unknown storage driver %q", config.Storage.Driver)
	}
	sr.closers = append(sr.closers, sr.store)

	if err := sr.store.Init(ctx); err != nil {
		return err
	}
	return nil
}

// seedDevices registers the collars listed in the devices file.
func (sr *ServiceRegistry) seedDevices(ctx context.Context, config *utils.Config) error {
	devices, err := identity.NewDeviceList(config.Identity.DevicesFile, sr.fileClient).LoadDevices()
	if err != nil {
		return err
	}
	for _, device := range devices {
		if err := sr.directory.Register(ctx, device.ID, device.Name, device.APIKey); err != nil {
			return err
		}
	}
	if len(devices) > 0 {
		sr.Logger.Info().Int("devices", len(devices)).Msg("Device directory seeded")
	}
	return nil
}

func (sr *ServiceRegistry) buildSource(config *utils.Config) (sources.Source, error) {
	switch config.External.Kind {
	case constants.SourceHTTP:
		return sources.NewHTTPSource(config.External.URL, config.External.Timeout, &http.Client{}, sr.Logger), nil
	case constants.SourceMQTT:
		if sr.mqttClient == nil {
			return nil, errors.New("the mqtt source requires an MQTT connection")
		}
		return sources.NewMQTTSource(config.Sources.MQTT.Topic, config.Sources.MQTT.QOS, sr.mqttClient, sr.Logger), nil
	case constants.SourceNMEA:
		provider := location.NewSerialProvider(config.Sources.NMEA.Port, config.Sources.NMEA.BaudRate,
			config.Sources.NMEA.ReadTimeout, sr.Logger)
		source := sources.NewNMEASource(provider, sr.Logger)
		sr.closers = append(sr.closers, source)
		return source, nil
	default:
		return nil, fmt.Errorf("unknown external source %q", config.External.Kind)
	}
}
