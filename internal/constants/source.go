package constants

// External source kinds
const (
	SourceHTTP = "http"
	SourceMQTT = "mqtt"
	SourceNMEA = "nmea"
)

// Storage drivers
const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
)

// HeartbeatStatusAlive is reported on periodic heartbeats.
const HeartbeatStatusAlive = "alive"
