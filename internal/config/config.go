// Package config loads the gateway's environment-driven configuration,
// mirroring the original service's config.rs field list and defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every environment-tunable knob the gateway recognizes.
type Config struct {
	// Admin connection to the PostgreSQL cluster.
	DatabaseURL string
	DBHost      string
	DBPort      int
	DBName      string
	DBUser      string
	DBPassword  string

	// HTTP bind.
	GatewayHost string
	GatewayPort int

	// Pool Cache admission policy.
	MaxConnectionsPerPool int
	MaxTotalConnections   int
	PoolIdleTimeout       time.Duration
	PoolMaxLifetime       time.Duration

	// IP allow-listing.
	AllowedNetworks []string

	// On-disk schema store root.
	DataDir string

	// Admin authentication.
	AdminToken      string
	AllowedAdminIPs []string
}

// defaults mirror config.rs's from_env(): every key has a sane fallback
// so the gateway can boot against a local cluster with no environment
// configured beyond DATABASE_URL.
func defaults(v *viper.Viper) {
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", 5432)
	v.SetDefault("db_name", "postgres")
	v.SetDefault("db_user", "postgres")
	v.SetDefault("db_password", "")

	v.SetDefault("gateway_host", "0.0.0.0")
	v.SetDefault("gateway_port", 8080)

	v.SetDefault("max_connections_per_pool", 10)
	v.SetDefault("max_total_connections", 200)
	v.SetDefault("pool_idle_timeout_secs", 1800)
	v.SetDefault("pool_max_lifetime_secs", 3600)

	v.SetDefault("allowed_networks", "")
	v.SetDefault("data_dir", "./data")

	v.SetDefault("admin_token", "")
	v.SetDefault("allowed_admin_ips", "")
}

// alwaysAllowed are CIDRs that are implicitly part of ALLOWED_NETWORKS
// regardless of configuration, matching the original's loopback carve-out.
var alwaysAllowed = []string{"127.0.0.0/8", "::1/128"}

// Load reads configuration from the process environment using viper's
// environment-variable binding. Keys are upper-cased automatically by
// viper's AutomaticEnv, so DB_HOST, GATEWAY_PORT, etc. are picked up
// without an explicit BindEnv call per key.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	defaults(v)

	cfg := &Config{
		DatabaseURL:           v.GetString("database_url"),
		DBHost:                v.GetString("db_host"),
		DBPort:                v.GetInt("db_port"),
		DBName:                v.GetString("db_name"),
		DBUser:                v.GetString("db_user"),
		DBPassword:            v.GetString("db_password"),
		GatewayHost:           v.GetString("gateway_host"),
		GatewayPort:           v.GetInt("gateway_port"),
		MaxConnectionsPerPool: v.GetInt("max_connections_per_pool"),
		MaxTotalConnections:   v.GetInt("max_total_connections"),
		PoolIdleTimeout:       time.Duration(v.GetInt("pool_idle_timeout_secs")) * time.Second,
		PoolMaxLifetime:       time.Duration(v.GetInt("pool_max_lifetime_secs")) * time.Second,
		DataDir:               v.GetString("data_dir"),
		AdminToken:            v.GetString("admin_token"),
	}

	cfg.AllowedNetworks = append(splitNonEmpty(v.GetString("allowed_networks")), alwaysAllowed...)
	cfg.AllowedAdminIPs = splitNonEmpty(v.GetString("allowed_admin_ips"))

	if cfg.MaxConnectionsPerPool <= 0 {
		return nil, fmt.Errorf("MAX_CONNECTIONS_PER_POOL must be positive, got %d", cfg.MaxConnectionsPerPool)
	}
	if cfg.MaxTotalConnections < cfg.MaxConnectionsPerPool {
		return nil, fmt.Errorf("MAX_TOTAL_CONNECTIONS (%d) must be >= MAX_CONNECTIONS_PER_POOL (%d)", cfg.MaxTotalConnections, cfg.MaxConnectionsPerPool)
	}

	return cfg, nil
}

func splitNonEmpty(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// AdminConnString builds the admin connection string for the cluster's
// control database, preferring DATABASE_URL when it is set.
func (c *Config) AdminConnString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// GatewayAddr returns the host:port the HTTP server should bind to.
func (c *Config) GatewayAddr() string {
	return fmt.Sprintf("%s:%d", c.GatewayHost, c.GatewayPort)
}
