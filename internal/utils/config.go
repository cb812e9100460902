package utils

import (
	"fmt"
	"os"
	"time"

	"github.com/benmeehan/collar-sync/internal/constants"
	"github.com/benmeehan/collar-sync/internal/models"
	"github.com/benmeehan/collar-sync/pkg/file"
	"github.com/go-playground/validator/v10"
)

// CollarTokenEnv overrides collar.token when set.
const CollarTokenEnv = "COLLAR_TOKEN"

// Config represents the structure of the configuration file.
type Config struct {
	Logging struct {
		Level  string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error"` // Minimum log level
		Format string `yaml:"format" validate:"omitempty,oneof=json console"`               // Output encoding
	} `yaml:"logging"`

	Storage struct {
		Driver string `yaml:"driver" validate:"oneof=memory sqlite"`     // Position store backend
		Path   string `yaml:"path" validate:"required_if=Driver sqlite"` // SQLite database file
	} `yaml:"storage"`

	Identity struct {
		DevicesFile string `yaml:"devices_file"` // JSON list of collars allowed to post positions
	} `yaml:"identity"`

	External struct {
		Kind    string        `yaml:"kind" validate:"oneof=http mqtt nmea"` // Where observations come from
		URL     string        `yaml:"url" validate:"omitempty,url"`         // Endpoint returning a JSON array
		Timeout time.Duration `yaml:"timeout"`                              // Per-fetch timeout
	} `yaml:"external"`

	MQTT struct {
		Broker        string `yaml:"broker" validate:"omitempty,url"` // MQTT broker address
		ClientID      string `yaml:"client_id"`                       // MQTT client ID
		CACertificate string `yaml:"ca_certificate"`                  // Path to the CA certificate
		Username      string `yaml:"username"`
		Password      string `yaml:"password"`
	} `yaml:"mqtt"`

	Sources struct {
		MQTT struct {
			Topic string `yaml:"topic"`                      // Topic collars publish positions to
			QOS   int    `yaml:"qos" validate:"min=0,max=2"` // MQTT QoS level for the subscription
		} `yaml:"mqtt"`

		NMEA struct {
			Port        string        `yaml:"port"`                       // Serial device of the gateway
			BaudRate    int           `yaml:"baud_rate" validate:"gte=0"` // The Baud rate for the link
			ReadTimeout time.Duration `yaml:"read_timeout"`               // Silence that ends a batch
		} `yaml:"nmea"`
	} `yaml:"sources"`

	Collar struct {
		BaseURL    string        `yaml:"base_url" validate:"required,url"` // Collar-control API base
		APIVersion string        `yaml:"api_version"`                      // Semantic version of the API
		Token      string        `yaml:"token"`                            // Bearer token, see COLLAR_TOKEN
		Timeout    time.Duration `yaml:"timeout"`                          // Per-call ceiling
	} `yaml:"collar"`

	Sync struct {
		Enabled    bool          `yaml:"enabled"`     // Run the periodic loop
		Interval   time.Duration `yaml:"interval"`    // Start-to-start period between cycles
		PhaseDelay time.Duration `yaml:"phase_delay"` // Delay between reconcile and push
		StateFile  string        `yaml:"state_file"`  // Where cycle counters are persisted
	} `yaml:"sync"`

	Status struct {
		Enabled  bool          `yaml:"enabled"`                    // Enable/disable status publishing
		Topic    string        `yaml:"topic"`                      // MQTT topic for status messages
		QOS      int           `yaml:"qos" validate:"min=0,max=2"` // MQTT QoS level for status messages
		Interval time.Duration `yaml:"interval"`                   // Interval between heartbeats
		NodeID   string        `yaml:"node_id"`                    // Identifies this node in status messages

		models.HostMetricsConfig `yaml:",inline"` // Host metrics attached to status messages
	} `yaml:"status"`

	API struct {
		Enabled bool   `yaml:"enabled"` // Serve the HTTP API
		Address string `yaml:"address"` // Listen address
	} `yaml:"api"`
}

// LoadConfig loads the YAML configuration from the specified file, applies
// defaults and environment overrides, and validates the result.
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	var config Config
	if err := fileClient.ReadYamlFile(filename, &config); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", filename, err)
	}

	config.applyDefaults()
	if token := os.Getenv(CollarTokenEnv); token != "" {
		config.Collar.Token = token
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applyDefaults() {
	setDefault(&c.Logging.Level, "info")
	setDefault(&c.Logging.Format, "json")
	setDefault(&c.Storage.Driver, constants.StorageSQLite)
	setDefault(&c.External.Kind, constants.SourceHTTP)
	setDefault(&c.Sources.MQTT.Topic, "collars/+/location")
	setDefault(&c.Status.Topic, "collarsync/status")
	setDefault(&c.Status.NodeID, "collarsync")
	setDefault(&c.MQTT.ClientID, "collarsync")
	setDefault(&c.API.Address, ":8080")

	if c.Storage.Driver == constants.StorageSQLite {
		setDefault(&c.Storage.Path, "collarsync.db")
	}
	if c.Sources.NMEA.BaudRate == 0 {
		c.Sources.NMEA.BaudRate = 9600
	}

	setDefaultDuration(&c.External.Timeout, constants.DefaultRequestTimeout)
	setDefaultDuration(&c.Collar.Timeout, constants.DefaultRequestTimeout)
	setDefaultDuration(&c.Sources.NMEA.ReadTimeout, time.Second)
	setDefaultDuration(&c.Sync.Interval, constants.DefaultSyncInterval)
	setDefaultDuration(&c.Sync.PhaseDelay, constants.DefaultPhaseDelay)
	setDefaultDuration(&c.Status.Interval, constants.DefaultHeartbeatInterval)
}

// Validate checks field constraints and the requirements that span sections.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	for name, d := range map[string]time.Duration{
		"external.timeout": c.External.Timeout,
		"collar.timeout":   c.Collar.Timeout,
		"sync.interval":    c.Sync.Interval,
		"sync.phase_delay": c.Sync.PhaseDelay,
		"status.interval":  c.Status.Interval,
	} {
		if d < 0 {
			return fmt.Errorf("invalid config: %s must not be negative", name)
		}
	}

	if c.External.Kind == constants.SourceHTTP && c.External.URL == "" {
		return fmt.Errorf("invalid config: external.url is required for the http source")
	}
	if c.NeedsMQTT() && c.MQTT.Broker == "" {
		return fmt.Errorf("invalid config: mqtt.broker is required for the mqtt source and status publishing")
	}
	if c.External.Kind == constants.SourceNMEA && c.Sources.NMEA.Port == "" {
		return fmt.Errorf("invalid config: sources.nmea.port is required for the nmea source")
	}
	return nil
}

// NeedsMQTT reports whether any enabled component uses the broker.
func (c *Config) NeedsMQTT() bool {
	return c.External.Kind == constants.SourceMQTT || c.Status.Enabled
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

func setDefaultDuration(field *time.Duration, value time.Duration) {
	if *field == 0 {
		*field = value
	}
}
