/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/carverauto/ssm/pkg/logger"
)

var (
	errDatabaseRequired = errors.New("database config is required for the postgres backend")
	errNATSRequired     = errors.New("nats config is required for the nats lease backend")
	errUnknownBackend   = errors.New("unknown backend")
)

// Backend names accepted by ServiceConfig.Store and ServiceConfig.Leases.
const (
	BackendPostgres = "postgres"
	BackendNATS     = "nats"
	BackendMemory   = "memory"
)

// ServiceConfig is the ssm binary configuration.
type ServiceConfig struct {
	ListenAddr   string             `json:"listen_addr"`
	APIKey       string             `json:"api_key,omitempty"`
	Store        string             `json:"store"`
	Leases       string             `json:"leases"`
	Database     *DatabaseConfig    `json:"database,omitempty"`
	NATS         *NATSConfig        `json:"nats,omitempty"`
	Keys         KeyConfig          `json:"keys"`
	Scheduler    SchedulerConfig    `json:"scheduler"`
	CycleTimeout Duration           `json:"cycle_timeout"`
	LeaseGrace   Duration           `json:"lease_grace"`
	RateLimit    RateLimitConfig    `json:"rate_limit"`
	Google       GoogleConfig       `json:"google"`
	Metrics      MetricsConfig      `json:"metrics"`
	Logging      *logger.Config     `json:"logging,omitempty"`
	Tracing      *logger.OTelConfig `json:"tracing,omitempty"`
}

// DatabaseConfig describes the CNPG/Postgres cluster.
type DatabaseConfig struct {
	Host               string            `json:"host"`
	Port               int               `json:"port"`
	Database           string            `json:"database"`
	Username           string            `json:"username"`
	Password           string            `json:"password,omitempty"`
	SSLMode            string            `json:"ssl_mode,omitempty"`
	ApplicationName    string            `json:"application_name,omitempty"`
	MaxConnections     int32             `json:"max_connections,omitempty"`
	MinConnections     int32             `json:"min_connections,omitempty"`
	MaxConnLifetime    Duration          `json:"max_conn_lifetime,omitempty"`
	HealthCheckPeriod  Duration          `json:"health_check_period,omitempty"`
	StatementTimeout   Duration          `json:"statement_timeout,omitempty"`
	CertDir            string            `json:"cert_dir,omitempty"`
	TLS                *TLSConfig        `json:"tls,omitempty"`
	ExtraRuntimeParams map[string]string `json:"extra_runtime_params,omitempty"`
}

// TLSConfig holds client certificate paths.
type TLSConfig struct {
	CertFile string `json:"cert_file"`
	KeyFile  string `json:"key_file"`
	CAFile   string `json:"ca_file"`
}

// NATSConfig points at a JetStream-enabled NATS server.
type NATSConfig struct {
	URL       string `json:"url"`
	CredsFile string `json:"creds_file,omitempty"`
	Domain    string `json:"domain,omitempty"`
	Bucket    string `json:"bucket,omitempty"`
}

// KeyConfig selects the config-encryption key provider.
type KeyConfig struct {
	Provider string   `json:"provider"`
	EnvVar   string   `json:"env_var,omitempty"`
	File     string   `json:"file,omitempty"`
	CacheTTL Duration `json:"cache_ttl,omitempty"`
}

// SchedulerConfig controls the cron trigger.
type SchedulerConfig struct {
	Enabled       bool     `json:"enabled"`
	CheckInterval Duration `json:"check_interval"`
	Concurrency   int      `json:"concurrency"`
	BatchSize     int      `json:"batch_size"`
}

// RateLimitConfig holds auto-reply defaults used when a node omits them.
type RateLimitConfig struct {
	MaxPerWindow  int `json:"max_per_window"`
	WindowMinutes int `json:"window_minutes"`
}

// GoogleConfig is the OAuth client used to refresh stored user tokens.
type GoogleConfig struct {
	ClientID          string   `json:"client_id"`
	ClientSecret      string   `json:"client_secret,omitempty"`
	Scopes            []string `json:"scopes,omitempty"`
	MessagesPerSecond float64  `json:"messages_per_second,omitempty"`
	Endpoint          string   `json:"endpoint,omitempty"`
}

// MetricsConfig enables the OTLP metric exporter.
type MetricsConfig struct {
	Enabled     bool     `json:"enabled"`
	Endpoint    string   `json:"endpoint,omitempty"`
	Insecure    bool     `json:"insecure,omitempty"`
	Interval    Duration `json:"interval,omitempty"`
	ServiceName string   `json:"service_name,omitempty"`
}

// Validate applies defaults and checks backend wiring.
func (c *ServiceConfig) Validate() error {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8090"
	}

	if c.Store == "" {
		c.Store = BackendMemory
		if c.Database != nil {
			c.Store = BackendPostgres
		}
	}

	if c.Leases == "" {
		c.Leases = c.Store
	}

	if err := c.checkBackends(); err != nil {
		return err
	}

	if c.Keys.Provider == "" {
		c.Keys.Provider = "env"
	}

	if c.Keys.EnvVar == "" {
		c.Keys.EnvVar = "SSM_CONFIG_KEY"
	}

	if c.Scheduler.CheckInterval <= 0 {
		c.Scheduler.CheckInterval = Duration(time.Minute)
	}

	if c.Scheduler.Concurrency <= 0 {
		c.Scheduler.Concurrency = 8
	}

	if c.Scheduler.BatchSize <= 0 {
		c.Scheduler.BatchSize = 100
	}

	if c.CycleTimeout <= 0 {
		c.CycleTimeout = Duration(2 * time.Minute)
	}

	if c.LeaseGrace <= 0 {
		c.LeaseGrace = Duration(30 * time.Second)
	}

	if c.RateLimit.MaxPerWindow <= 0 {
		c.RateLimit.MaxPerWindow = 3
	}

	if c.RateLimit.WindowMinutes <= 0 {
		c.RateLimit.WindowMinutes = 60
	}

	if c.Metrics.Interval <= 0 {
		c.Metrics.Interval = Duration(30 * time.Second)
	}

	if c.Metrics.ServiceName == "" {
		c.Metrics.ServiceName = "ssm"
	}

	if c.NATS != nil && c.NATS.Bucket == "" {
		c.NATS.Bucket = "ssm-leases"
	}

	return nil
}

func (c *ServiceConfig) checkBackends() error {
	for _, backend := range []string{c.Store, c.Leases} {
		switch backend {
		case BackendPostgres:
			if c.Database == nil {
				return errDatabaseRequired
			}
		case BackendNATS:
			if backend == c.Store {
				return fmt.Errorf("%w: store %q", errUnknownBackend, backend)
			}

			if c.NATS == nil || c.NATS.URL == "" {
				return errNATSRequired
			}
		case BackendMemory:
		default:
			return fmt.Errorf("%w: %q", errUnknownBackend, backend)
		}
	}

	return nil
}

// LeaseTTL is the cycle budget plus grace.
func (c *ServiceConfig) LeaseTTL() time.Duration {
	return c.CycleTimeout.Std() + c.LeaseGrace.Std()
}
