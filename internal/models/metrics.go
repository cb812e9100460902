package models

// HostMetricsConfig selects which host metrics are attached to heartbeats.
type HostMetricsConfig struct {
	MonitorCPU        bool `yaml:"monitor_cpu" json:"monitor_cpu"`
	MonitorMemory     bool `yaml:"monitor_memory" json:"monitor_memory"`
	MonitorGoroutines bool `yaml:"monitor_goroutines" json:"monitor_goroutines"`
}
