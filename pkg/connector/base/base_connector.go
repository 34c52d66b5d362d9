// Package base provides the foundational BaseConnector that all Railstream
// sources inherit from. It implements common functionality including circuit
// breakers, rate limiting, health monitoring, metrics collection, and retry
// logic.
//
// All sources should embed BaseConnector to inherit its functionality:
//
//	type MySource struct {
//	    *base.BaseConnector
//	    // source-specific fields
//	}
//
//	func NewMySource() *MySource {
//	    return &MySource{
//	        BaseConnector: base.NewBaseConnector("my-source", core.ConnectorTypeSource, "1.0.0"),
//	    }
//	}
//
// Lifecycle: create with NewBaseConnector, call Initialize before use, and
// Close to release background resources.
package base

import (
	"context"
	"sync"
	"time"

	"github.com/ajitpratap0/railstream/pkg/clients"
	"github.com/ajitpratap0/railstream/pkg/config"
	"github.com/ajitpratap0/railstream/pkg/connector/core"
	"github.com/ajitpratap0/railstream/pkg/errors"
	"github.com/ajitpratap0/railstream/pkg/logger"
	"github.com/ajitpratap0/railstream/pkg/metrics"
	"go.uber.org/zap"
)

// BaseConnector provides common functionality for all connectors including
// circuit breakers, rate limiting, health monitoring, and metrics collection.
type BaseConnector struct {
	name          string
	connectorType core.ConnectorType
	version       string
	config        *config.BaseConfig
	logger        *zap.Logger

	// State management
	state      core.State
	stateMutex sync.RWMutex

	// Resource management
	ctx        context.Context
	cancel     context.CancelFunc
	closed     bool
	closeMutex sync.Mutex

	// Production features
	circuitBreaker   *clients.CircuitBreaker
	rateLimiter      clients.RateLimiter
	healthChecker    *HealthChecker
	metricsCollector *metrics.Collector
	retryPolicy      *RetryPolicy
}

// NewBaseConnector creates a new base connector with the specified name,
// type, and version. This should be called by source implementations during
// construction.
func NewBaseConnector(name string, connectorType core.ConnectorType, version string) *BaseConnector {
	return &BaseConnector{
		name:          name,
		connectorType: connectorType,
		version:       version,
		state:         make(core.State),
		logger:        logger.Get().With(zap.String("connector", name)),
	}
}

// Initialize sets up the production features of the base connector: circuit
// breaker, rate limiting, health monitoring, metrics collection, and the
// retry policy. This must be called before using the connector.
func (bc *BaseConnector) Initialize(ctx context.Context, cfg *config.BaseConfig) error {
	if cfg == nil {
		return errors.New(errors.ErrorTypeConfig, "configuration is required")
	}

	bc.config = cfg
	bc.ctx, bc.cancel = context.WithCancel(ctx)

	bc.circuitBreaker = clients.NewCircuitBreaker(clients.CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 3,
		Timeout:          30 * time.Second,
	}, bc.logger)

	if cfg.Reliability.RateLimitPerSec > 0 {
		bc.rateLimiter = clients.NewTokenBucketRateLimiter(
			float64(cfg.Reliability.RateLimitPerSec),
			cfg.Reliability.RateLimitPerSec*2, // allow bursts up to 2x the limit
		)
	}

	bc.healthChecker = NewHealthChecker(bc.name, 30*time.Second)
	bc.healthChecker.Start(bc.ctx)

	bc.metricsCollector = metrics.NewCollector(bc.name)

	bc.retryPolicy = NewRetryPolicy(
		cfg.Reliability.RetryAttempts,
		cfg.Reliability.RetryDelay,
	)

	bc.logger.Info("connector initialized",
		zap.String("type", string(bc.connectorType)),
		zap.String("version", bc.version))

	return nil
}

// Name returns the connector name
func (bc *BaseConnector) Name() string {
	return bc.name
}

// Type returns the connector type
func (bc *BaseConnector) Type() core.ConnectorType {
	return bc.connectorType
}

// Version returns the connector version
func (bc *BaseConnector) Version() string {
	return bc.version
}

// GetState returns a copy of the current state
func (bc *BaseConnector) GetState() core.State {
	bc.stateMutex.RLock()
	defer bc.stateMutex.RUnlock()

	stateCopy := make(core.State, len(bc.state))
	for k, v := range bc.state {
		stateCopy[k] = v
	}
	return stateCopy
}

// SetState replaces the connector state
func (bc *BaseConnector) SetState(state core.State) error {
	bc.stateMutex.Lock()
	defer bc.stateMutex.Unlock()

	bc.state = state
	bc.logger.Debug("state updated", zap.Any("state", state))
	return nil
}

// Health performs a health check
func (bc *BaseConnector) Health(ctx context.Context) error {
	if bc.closed {
		return errors.New(errors.ErrorTypeConnection, "connector is closed")
	}

	status := bc.healthChecker.GetStatus()
	if status.Status != "healthy" {
		return errors.Wrap(status.Error, errors.ErrorTypeHealth, "health check failed")
	}

	return nil
}

// Metrics returns current metrics
func (bc *BaseConnector) Metrics() map[string]interface{} {
	m := bc.metricsCollector.GetAll()

	m["name"] = bc.name
	m["type"] = bc.connectorType
	m["version"] = bc.version
	m["uptime"] = time.Since(bc.metricsCollector.StartTime()).Seconds()

	if bc.circuitBreaker != nil {
		m["circuit_breaker_state"] = bc.circuitBreaker.State().String()
	}

	if bc.rateLimiter != nil {
		stats := bc.rateLimiter.GetStats()
		m["rate_limit"] = stats.Rate
		m["rate_limit_burst"] = stats.Burst
		m["rate_limiter_allowed"] = stats.AllowedRequests
		m["rate_limiter_blocked"] = stats.BlockedRequests
	}

	if bc.healthChecker != nil {
		status := bc.healthChecker.GetStatus()
		m["health_status"] = status.Status
		m["health_check_count"] = bc.healthChecker.CheckCount()
		m["health_failure_count"] = bc.healthChecker.FailureCount()
	}

	return m
}

// Close shuts down the connector
func (bc *BaseConnector) Close(ctx context.Context) error {
	bc.closeMutex.Lock()
	defer bc.closeMutex.Unlock()

	if bc.closed {
		return nil
	}

	bc.logger.Info("closing connector")

	if bc.cancel != nil {
		bc.cancel()
	}

	if bc.healthChecker != nil {
		bc.healthChecker.Stop()
	}

	bc.closed = true
	bc.logger.Info("connector closed")

	return nil
}

// ExecuteWithRetry executes a function with retry and exponential backoff.
// Only errors classified as retryable are retried.
func (bc *BaseConnector) ExecuteWithRetry(ctx context.Context, fn func() error) error {
	return bc.retryPolicy.ExecuteWithCondition(ctx, fn, errors.IsRetryable)
}

// ExecuteWithCircuitBreaker executes a function with circuit breaker
// protection. If the circuit is open the function is not executed and an
// error is returned immediately.
func (bc *BaseConnector) ExecuteWithCircuitBreaker(fn func() error) error {
	return bc.circuitBreaker.Execute(fn)
}

// RateLimit enforces the configured rate limit, blocking if necessary.
// Returns immediately if no rate limiter is configured.
func (bc *BaseConnector) RateLimit(ctx context.Context) error {
	if bc.rateLimiter == nil {
		return nil
	}
	return bc.rateLimiter.Wait(ctx)
}

// GetLogger returns the connector logger
func (bc *BaseConnector) GetLogger() *zap.Logger {
	return bc.logger
}

// GetConfig returns the connector configuration
func (bc *BaseConnector) GetConfig() *config.BaseConfig {
	return bc.config
}

// GetContext returns the connector context
func (bc *BaseConnector) GetContext() context.Context {
	return bc.ctx
}

// GetCircuitBreaker returns the circuit breaker
func (bc *BaseConnector) GetCircuitBreaker() *clients.CircuitBreaker {
	return bc.circuitBreaker
}

// GetRateLimiter returns the rate limiter
func (bc *BaseConnector) GetRateLimiter() clients.RateLimiter {
	return bc.rateLimiter
}

// GetMetricsCollector returns the metrics collector
func (bc *BaseConnector) GetMetricsCollector() *metrics.Collector {
	return bc.metricsCollector
}

// IsHealthy returns true if the connector is healthy
func (bc *BaseConnector) IsHealthy() bool {
	if bc.closed {
		return false
	}

	if bc.healthChecker != nil {
		return bc.healthChecker.IsHealthy()
	}

	return true
}

// UpdateHealth manually updates the health status
func (bc *BaseConnector) UpdateHealth(healthy bool, details map[string]interface{}) {
	if bc.healthChecker != nil {
		bc.healthChecker.UpdateStatus(healthy, details)
	}
}

// SetHealthCheckFunc registers the function run by the periodic health
// checker. Sources typically point this at an availability probe.
func (bc *BaseConnector) SetHealthCheckFunc(fn func(ctx context.Context) error) {
	if bc.healthChecker != nil {
		bc.healthChecker.SetCheckFunc(fn)
	}
}

// Validate validates the connector configuration
func (bc *BaseConnector) Validate() error {
	if bc.config == nil {
		return errors.New(errors.ErrorTypeConfig, "configuration is required")
	}

	if bc.config.Name == "" {
		return errors.New(errors.ErrorTypeConfig, "connector name is required")
	}

	if bc.config.Performance.BatchSize <= 0 {
		bc.config.Performance.BatchSize = 1000
	}

	if bc.config.Performance.MaxConcurrency <= 0 {
		bc.config.Performance.MaxConcurrency = 10
	}

	if bc.config.Performance.BufferSize <= 0 {
		bc.config.Performance.BufferSize = 10000
	}

	return nil
}
