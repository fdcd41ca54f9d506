package config_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	c := qt.New(t)

	cfg, err := config.Load()
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.DBHost, qt.Equals, "localhost")
	c.Assert(cfg.MaxConnectionsPerPool, qt.Equals, 10)
	c.Assert(cfg.MaxTotalConnections, qt.Equals, 200)
	c.Assert(cfg.AllowedNetworks, qt.Contains, "127.0.0.0/8")
	c.Assert(cfg.AllowedNetworks, qt.Contains, "::1/128")
}

func TestLoadFromEnv(t *testing.T) {
	c := qt.New(t)

	t.Setenv("DATABASE_URL", "postgres://u:p@host:5432/ctl")
	t.Setenv("MAX_CONNECTIONS_PER_POOL", "5")
	t.Setenv("MAX_TOTAL_CONNECTIONS", "50")
	t.Setenv("ALLOWED_NETWORKS", "10.0.0.0/8, 192.168.0.0/16")

	cfg, err := config.Load()
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.AdminConnString(), qt.Equals, "postgres://u:p@host:5432/ctl")
	c.Assert(cfg.MaxConnectionsPerPool, qt.Equals, 5)
	c.Assert(cfg.AllowedNetworks, qt.Contains, "10.0.0.0/8")
	c.Assert(cfg.AllowedNetworks, qt.Contains, "192.168.0.0/16")
}

func TestLoadRejectsInvalidBudget(t *testing.T) {
	c := qt.New(t)

	t.Setenv("MAX_CONNECTIONS_PER_POOL", "100")
	t.Setenv("MAX_TOTAL_CONNECTIONS", "50")

	_, err := config.Load()
	c.Assert(err, qt.IsNotNil)
}
