package sources

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/benmeehan/collar-sync/internal/models"
	"github.com/benmeehan/collar-sync/pkg/mqtt"
	paho "github.com/eclipse/paho.mqtt.golang"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"
)

// maxBufferedPerDevice caps how many unreconciled messages one collar may queue.
const maxBufferedPerDevice = 1000

var errSourceNotRunning = errors.New("mqtt source is not running")

// MQTTSource buffers the position messages collars publish and hands them
// out batch by batch.
type MQTTSource struct {
	topic      string
	qos        byte
	mqttClient mqtt.MQTTClient
	logger     zerolog.Logger

	buffer  cmap.ConcurrentMap[string, []models.Observation]
	mu      sync.Mutex
	running bool
}

// NewMQTTSource creates a source subscribed to topic once started.
func NewMQTTSource(topic string, qos int, mqttClient mqtt.MQTTClient, logger zerolog.Logger) *MQTTSource {
	return &MQTTSource{
		topic:      topic,
		qos:        byte(qos),
		mqttClient: mqttClient,
		logger:     logger,
		buffer:     cmap.New[[]models.Observation](),
	}
}

// Start subscribes to the position topic.
func (s *MQTTSource) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Warn().Msg("MQTTSource is already running")
		return errors.New("mqtt source is already running")
	}

	token := s.mqttClient.Subscribe(s.topic, s.qos, s.handleMessage)
	token.Wait()
	if err := token.Error(); err != nil {
		s.logger.Error().Err(err).Str("topic", s.topic).Msg("Failed to subscribe to position topic")
		return err
	}

	s.running = true
	s.logger.Info().Str("topic", s.topic).Msg("MQTTSource started")
	return nil
}

// Stop unsubscribes. Buffered messages are kept for a later Fetch.
func (s *MQTTSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		s.logger.Warn().Msg("MQTTSource is not running")
		return errSourceNotRunning
	}

	token := s.mqttClient.Unsubscribe(s.topic)
	token.Wait()
	s.running = false
	if err := token.Error(); err != nil {
		s.logger.Error().Err(err).Str("topic", s.topic).Msg("Failed to unsubscribe from position topic")
		return err
	}

	s.logger.Info().Msg("MQTTSource stopped")
	return nil
}

func (s *MQTTSource) handleMessage(_ paho.Client, msg paho.Message) {
	observation := models.ObservationFromJSON(msg.Payload())
	deviceID := observation.DeviceID()

	s.buffer.Upsert(deviceID, []models.Observation{observation},
		func(exists bool, queued, incoming []models.Observation) []models.Observation {
			if !exists {
				return incoming
			}
			queued = append(queued, incoming...)
			if len(queued) > maxBufferedPerDevice {
				queued = queued[len(queued)-maxBufferedPerDevice:]
			}
			return queued
		})

	s.logger.Debug().Str("device_id", deviceID).Str("topic", msg.Topic()).Msg("Buffered position message")
}

// Fetch drains everything buffered so far, ordered by device id and then by
// arrival.
func (s *MQTTSource) Fetch(_ context.Context) ([]models.Observation, error) {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if !running && s.buffer.Count() == 0 {
		return nil, errSourceNotRunning
	}

	keys := s.buffer.Keys()
	sort.Strings(keys)

	var observations []models.Observation
	for _, key := range keys {
		queued, ok := s.buffer.Pop(key)
		if !ok {
			continue
		}
		observations = append(observations, queued...)
	}

	s.logger.Debug().Int("count", len(observations)).Msg("Drained buffered positions")
	return observations, nil
}
