// Package httpapi exposes the gateway's HTTP surface: platform and schema
// management, fresh-database deployment, stored-schema migration, and
// ad-hoc function invocation, each wired to the internal packages that do
// the actual work.
package httpapi

import (
	"log/slog"
	"net/netip"
	"time"

	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/changelog"
	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/config"
	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/deployer"
	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/migrate"
	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/poolcache"
	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/registry"
	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/verifier"
)

// Server bundles every dependency the HTTP handlers need. Its exported
// fields are assembled once at startup by cmd/gateway and never mutated
// afterward, so handlers may read them without locking.
type Server struct {
	Cache    *poolcache.Cache
	Registry *registry.PlatformRegistry
	Store    *registry.SchemaStore
	Deployer *deployer.Deployer
	Migrate  *migrate.Runner
	DiffGate *migrate.DiffGate
	Verifier *verifier.Verifier
	Changelog *changelog.Manager

	AllowedNetworks []netip.Prefix
	AdminToken      string
	AllowedAdminIPs []netip.Prefix

	Logger    *slog.Logger
	StartedAt time.Time
}

// New assembles a Server from loaded configuration and the shared
// dependencies cmd/gateway constructs at startup.
func New(cfg *config.Config, cache *poolcache.Cache, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		Cache:           cache,
		Registry:        registry.NewPlatformRegistry(cfg.DataDir, logger),
		Store:           registry.NewSchemaStore(cfg.DataDir, logger),
		Deployer:        deployer.New(logger),
		Migrate:         migrate.NewRunner(logger),
		DiffGate:        migrate.NewDiffGate(),
		Verifier:        verifier.New(logger),
		Changelog:       changelog.NewManager(logger),
		AllowedNetworks: parsePrefixes(cfg.AllowedNetworks, logger),
		AdminToken:      cfg.AdminToken,
		AllowedAdminIPs: parsePrefixes(cfg.AllowedAdminIPs, logger),
		Logger:          logger,
		StartedAt:       time.Now(),
	}
}

func parsePrefixes(cidrs []string, logger *slog.Logger) []netip.Prefix {
	prefixes := make([]netip.Prefix, 0, len(cidrs))
	for _, c := range cidrs {
		p, err := netip.ParsePrefix(c)
		if err != nil {
			logger.Warn("ignoring malformed CIDR in network allow-list", "value", c, "error", err)
			continue
		}
		prefixes = append(prefixes, p)
	}
	return prefixes
}
