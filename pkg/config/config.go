// Package config provides the unified configuration system for Railstream.
// It defines a single BaseConfig structure that all connectors use,
// ensuring consistent configuration across the entire system.
//
// The configuration is organized into logical sections:
//   - Performance: Batch sizes, concurrency, streaming settings
//   - Timeouts: Connection and operation timeouts
//   - Reliability: Retry logic, circuit breakers, rate limiting
//   - Security: TLS, authentication, credentials
//   - Observability: Metrics and logging
//
// Example usage:
//
//	cfg := config.NewBaseConfig("railz", "source")
//	cfg.Performance.BatchSize = 5000
//	cfg.Security.Credentials["client_id"] = "..."
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"fmt"
	"runtime"
	"time"
)

// BaseConfig is the single unified configuration structure that all connectors use.
type BaseConfig struct {
	// Name identifies the connector instance
	Name string `yaml:"name" json:"name"`
	// Type specifies the connector type (e.g., "railz")
	Type string `yaml:"type" json:"type"`
	// Version indicates the configuration version
	Version string `yaml:"version" json:"version"`

	// Performance settings control throughput and resource usage
	Performance PerformanceConfig `yaml:"performance" json:"performance"`

	// Timeouts define various timeout durations
	Timeouts TimeoutConfig `yaml:"timeouts" json:"timeouts"`

	// Reliability settings for error handling and resilience
	Reliability ReliabilityConfig `yaml:"reliability" json:"reliability"`

	// Security configuration for authentication and encryption
	Security SecurityConfig `yaml:"security" json:"security"`

	// Observability settings for monitoring and debugging
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// PerformanceConfig contains all performance-related settings.
type PerformanceConfig struct {
	// BatchSize controls the number of records processed together
	BatchSize int `yaml:"batch_size" json:"batch_size"`
	// BufferSize sets the size of internal buffers
	BufferSize int `yaml:"buffer_size" json:"buffer_size"`
	// Workers defines the number of concurrent workers
	Workers int `yaml:"workers" json:"workers"`
	// MaxConcurrency limits total concurrent operations
	MaxConcurrency int `yaml:"max_concurrency" json:"max_concurrency"`
	// EnableStreaming enables streaming mode if supported
	EnableStreaming bool `yaml:"enable_streaming" json:"enable_streaming"`
}

// TimeoutConfig contains all timeout-related settings.
type TimeoutConfig struct {
	// Request timeout for individual operations
	Request time.Duration `yaml:"request" json:"request"`
	// Connection timeout for establishing connections
	Connection time.Duration `yaml:"connection" json:"connection"`
	// Idle timeout before closing inactive connections
	Idle time.Duration `yaml:"idle" json:"idle"`
	// KeepAlive interval for connection health checks
	KeepAlive time.Duration `yaml:"keep_alive" json:"keep_alive"`
}

// ReliabilityConfig contains reliability and error handling settings.
type ReliabilityConfig struct {
	// RetryAttempts sets maximum retry attempts for failed operations
	RetryAttempts int `yaml:"retry_attempts" json:"retry_attempts"`
	// RetryDelay is the initial delay between retries
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay"`
	// RetryMultiplier increases delay exponentially
	RetryMultiplier float64 `yaml:"retry_multiplier" json:"retry_multiplier"`
	// MaxRetryDelay caps the maximum retry delay
	MaxRetryDelay time.Duration `yaml:"max_retry_delay" json:"max_retry_delay"`
	// CircuitBreaker enables circuit breaker pattern
	CircuitBreaker bool `yaml:"circuit_breaker" json:"circuit_breaker"`
	// RateLimitPerSec limits operations per second (0 = unlimited)
	RateLimitPerSec int `yaml:"rate_limit_per_sec" json:"rate_limit_per_sec"`
	// HealthCheck enables periodic health checks
	HealthCheck bool `yaml:"health_check" json:"health_check"`
}

// SecurityConfig contains security and authentication settings.
type SecurityConfig struct {
	// EnableTLS enables TLS/SSL encryption
	EnableTLS bool `yaml:"enable_tls" json:"enable_tls"`
	// TLSSkipVerify disables certificate verification (insecure)
	TLSSkipVerify bool `yaml:"tls_skip_verify" json:"tls_skip_verify"`
	// AuthType specifies authentication method (basic, short_lived_token)
	AuthType string `yaml:"auth_type" json:"auth_type"`
	// Credentials stores authentication credentials (use env vars in production)
	Credentials map[string]string `yaml:"credentials" json:"credentials"`
}

// ObservabilityConfig contains monitoring and observability settings.
type ObservabilityConfig struct {
	// EnableMetrics activates metrics collection
	EnableMetrics bool `yaml:"enable_metrics" json:"enable_metrics"`
	// EnableLogging controls logging output
	EnableLogging bool `yaml:"enable_logging" json:"enable_logging"`
	// LogLevel sets logging verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// NewBaseConfig creates a new BaseConfig with sensible defaults.
// It initializes all configuration sections with production-ready values
// that work well for most use cases. Specific connectors can override
// these defaults as needed.
func NewBaseConfig(name, connectorType string) *BaseConfig {
	return &BaseConfig{
		Name:    name,
		Type:    connectorType,
		Version: "1.0.0",
		Performance: PerformanceConfig{
			BatchSize:       1000,
			BufferSize:      10000,
			Workers:         runtime.NumCPU(),
			MaxConcurrency:  10,
			EnableStreaming: true,
		},
		Timeouts: TimeoutConfig{
			Request:    30 * time.Second,
			Connection: 10 * time.Second,
			Idle:       5 * time.Minute,
			KeepAlive:  30 * time.Second,
		},
		Reliability: ReliabilityConfig{
			RetryAttempts:   3,
			RetryDelay:      time.Second,
			RetryMultiplier: 2.0,
			MaxRetryDelay:   60 * time.Second,
			CircuitBreaker:  true,
			RateLimitPerSec: 0,
			HealthCheck:     true,
		},
		Security: SecurityConfig{
			EnableTLS:     true,
			TLSSkipVerify: false,
			Credentials:   make(map[string]string),
		},
		Observability: ObservabilityConfig{
			EnableMetrics: true,
			EnableLogging: true,
			LogLevel:      "info",
		},
	}
}

// Validate validates the configuration for correctness.
// It checks required fields and ensures values are within acceptable ranges.
// Connectors should call this after loading configuration to catch errors early.
func (bc *BaseConfig) Validate() error {
	if bc.Name == "" {
		return fmt.Errorf("name is required")
	}
	if bc.Type == "" {
		return fmt.Errorf("type is required")
	}
	if bc.Performance.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive")
	}
	if bc.Performance.BufferSize <= 0 {
		return fmt.Errorf("buffer_size must be positive")
	}
	if bc.Performance.MaxConcurrency <= 0 {
		return fmt.Errorf("max_concurrency must be positive")
	}
	if bc.Reliability.RetryAttempts < 0 {
		return fmt.Errorf("retry_attempts cannot be negative")
	}
	if bc.Reliability.RateLimitPerSec < 0 {
		return fmt.Errorf("rate_limit_per_sec cannot be negative")
	}
	return nil
}

// GetWorkers returns the number of workers, ensuring it's at least 1
func (p *PerformanceConfig) GetWorkers() int {
	if p.Workers <= 0 {
		return runtime.NumCPU()
	}
	return p.Workers
}

// IsRateLimited returns true if rate limiting is enabled
func (r *ReliabilityConfig) IsRateLimited() bool {
	return r.RateLimitPerSec > 0
}

// HasCredentials returns true if credentials are configured
func (s *SecurityConfig) HasCredentials() bool {
	return len(s.Credentials) > 0
}
