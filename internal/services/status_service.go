package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/benmeehan/collar-sync/internal/constants"
	metrics_collectors "github.com/benmeehan/collar-sync/internal/metrics_collectors"
	"github.com/benmeehan/collar-sync/internal/models"
	"github.com/benmeehan/collar-sync/pkg/mqtt"
	"github.com/coder/quartz"
	"github.com/rs/zerolog"
)

// SyncStatusProvider exposes the orchestrator state reported in heartbeats.
type SyncStatusProvider interface {
	Stats() models.CycleStats
	State() string
}

// StatusService publishes periodic heartbeats and a status message after
// every sync cycle.
type StatusService struct {
	PubTopic   string
	Interval   time.Duration
	QOS        int
	NodeID     string
	MqttClient mqtt.MQTTClient
	Provider   SyncStatusProvider
	Metrics    *metrics_collectors.MetricsRegistry
	Clock      quartz.Clock
	Logger     zerolog.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	waiter quartz.Waiter
}

// NewStatusService initializes a new StatusService.
func NewStatusService(pubTopic string, interval time.Duration, qos int, nodeID string, mqttClient mqtt.MQTTClient,
	provider SyncStatusProvider, metrics *metrics_collectors.MetricsRegistry, clock quartz.Clock, logger zerolog.Logger) *StatusService {

	return &StatusService{
		PubTopic:   pubTopic,
		Interval:   interval,
		QOS:        qos,
		NodeID:     nodeID,
		MqttClient: mqttClient,
		Provider:   provider,
		Metrics:    metrics,
		Clock:      clock,
		Logger:     logger,
	}
}

// Start launches the heartbeat ticker.
func (h *StatusService) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.ctx != nil {
		h.Logger.Warn().Msg("StatusService is already running")
		return errors.New("status service is already running")
	}

	h.ctx, h.cancel = context.WithCancel(context.Background())
	ctx := h.ctx
	h.waiter = h.Clock.TickerFunc(ctx, h.Interval, func() error {
		if err := h.publish(ctx); err != nil {
			h.Logger.Error().Err(err).Msg("Failed to publish heartbeat")
		}
		return nil
	}, "status", "heartbeat")

	h.Logger.Info().Str("topic", h.PubTopic).Dur("interval", h.Interval).Msg("StatusService started successfully")
	return nil
}

// Stop gracefully stops the status service.
func (h *StatusService) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.ctx == nil {
		h.Logger.Warn().Msg("StatusService is not running")
		return errors.New("status service is not running")
	}

	h.cancel()
	err := h.waiter.Wait()

	h.ctx = nil
	h.cancel = nil
	h.waiter = nil

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	h.Logger.Info().Msg("StatusService stopped successfully")
	return nil
}

// OnCycle publishes the finished cycle's report.
func (h *StatusService) OnCycle(report models.CycleReport, stats models.CycleStats) {
	message := h.heartbeat(context.Background(), stats)
	message.Report = &report
	if err := h.send(message); err != nil {
		h.Logger.Error().Err(err).Int("cycle", report.Cycle).Msg("Failed to publish cycle status")
	}
}

func (h *StatusService) publish(ctx context.Context) error {
	var stats models.CycleStats
	if h.Provider != nil {
		stats = h.Provider.Stats()
	}
	return h.send(h.heartbeat(ctx, stats))
}

func (h *StatusService) heartbeat(ctx context.Context, stats models.CycleStats) models.Heartbeat {
	message := models.Heartbeat{
		NodeID:    h.NodeID,
		Timestamp: h.Clock.Now().UTC(),
		Status:    constants.HeartbeatStatusAlive,
		State:     constants.StateIdle,
		Stats:     stats,
	}
	if h.Provider != nil {
		message.State = h.Provider.State()
	}
	if h.Metrics != nil {
		message.Host = h.Metrics.Collect(ctx)
	}
	return message
}

func (h *StatusService) send(message models.Heartbeat) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}

	token := h.MqttClient.Publish(h.PubTopic, byte(h.QOS), false, payload)
	if !token.WaitTimeout(constants.DefaultRequestTimeout) {
		return errors.New("timed out publishing status message")
	}
	if err := token.Error(); err != nil {
		return err
	}

	h.Logger.Debug().Str("topic", h.PubTopic).Msg("Status published successfully")
	return nil
}
