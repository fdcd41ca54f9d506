// Package registry persists platform and schema metadata to the
// gateway's data directory: one directory per platform, a platform.json
// manifest, and one subdirectory per uploaded schema archive.
package registry

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/gwerrors"
)

// DatabaseRecord records one provisioned database under a platform's
// schema.
type DatabaseRecord struct {
	SchemaName   string    `json:"schema_name"`
	DatabaseName string    `json:"database_name"`
	CreatedAt    time.Time `json:"created_at"`
}

// PlatformInfo is the on-disk platform.json manifest.
type PlatformInfo struct {
	Name         string                     `json:"name"`
	RegisteredAt time.Time                  `json:"registered_at"`
	Schemas      []string                   `json:"schemas"`
	Databases    map[string]DatabaseRecord  `json:"databases"`
	DBUser       string                     `json:"db_user,omitempty"`
	DBPassword   string                     `json:"db_password,omitempty"`
}

func newPlatformInfo(name string) *PlatformInfo {
	return &PlatformInfo{
		Name:         name,
		RegisteredAt: time.Now().UTC(),
		Schemas:      []string{},
		Databases:    map[string]DatabaseRecord{},
	}
}

// PlatformRegistry manages platform registration under a root data
// directory.
type PlatformRegistry struct {
	dataDir string
	logger  *slog.Logger
}

// NewPlatformRegistry returns a registry rooted at dataDir.
func NewPlatformRegistry(dataDir string, logger *slog.Logger) *PlatformRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlatformRegistry{dataDir: dataDir, logger: logger}
}

func (r *PlatformRegistry) platformDir(platform string) string {
	return filepath.Join(r.dataDir, platform)
}

func (r *PlatformRegistry) platformJSONPath(platform string) string {
	return filepath.Join(r.platformDir(platform), "platform.json")
}

// IsRegistered reports whether platform.json exists for platform.
func (r *PlatformRegistry) IsRegistered(platform string) bool {
	_, err := os.Stat(r.platformJSONPath(platform))
	return err == nil
}

// IsValidPlatformName mirrors the original gateway's loose identifier
// check: non-empty, alphanumeric plus underscore.
func IsValidPlatformName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r >= 'a' && r <= 'z') && !(r >= 'A' && r <= 'Z') && !(r >= '0' && r <= '9') && r != '_' {
			return false
		}
	}
	return true
}

// Register creates a new platform directory and manifest. Fails if the
// name is invalid or already registered.
func (r *PlatformRegistry) Register(platform string) (*PlatformInfo, error) {
	if !IsValidPlatformName(platform) {
		return nil, gwerrors.New(gwerrors.KindInvalidRequest, "invalid platform name: %q, must be alphanumeric with underscores", platform)
	}
	if r.IsRegistered(platform) {
		return nil, gwerrors.New(gwerrors.KindInvalidRequest, "platform %q is already registered", platform)
	}

	if err := os.MkdirAll(r.platformDir(platform), 0o755); err != nil {
		return nil, gwerrors.Wrap(gwerrors.KindInternal, err, "creating platform directory for %s", platform)
	}

	info := newPlatformInfo(platform)
	if err := r.save(info); err != nil {
		return nil, err
	}

	r.logger.Info("platform registered", "platform", platform)
	return info, nil
}

// Get loads a platform's manifest.
func (r *PlatformRegistry) Get(platform string) (*PlatformInfo, error) {
	path := r.platformJSONPath(platform)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, gwerrors.New(gwerrors.KindInvalidRequest, "platform %q is not registered", platform)
		}
		return nil, gwerrors.Wrap(gwerrors.KindInternal, err, "reading platform.json for %s", platform)
	}

	var info PlatformInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, gwerrors.Wrap(gwerrors.KindInternal, err, "parsing platform.json for %s", platform)
	}
	return &info, nil
}

func (r *PlatformRegistry) save(info *PlatformInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return gwerrors.Wrap(gwerrors.KindInternal, err, "serializing platform info for %s", info.Name)
	}
	if err := os.WriteFile(r.platformJSONPath(info.Name), data, 0o644); err != nil {
		return gwerrors.Wrap(gwerrors.KindInternal, err, "writing platform.json for %s", info.Name)
	}
	return nil
}

// AddSchema records schemaName under platform's manifest, idempotently.
func (r *PlatformRegistry) AddSchema(platform, schemaName string) error {
	info, err := r.Get(platform)
	if err != nil {
		return err
	}
	for _, s := range info.Schemas {
		if s == schemaName {
			return nil
		}
	}
	info.Schemas = append(info.Schemas, schemaName)
	return r.save(info)
}

// RecordDatabase stores a DatabaseRecord under platform's manifest.
func (r *PlatformRegistry) RecordDatabase(platform, schemaName, databaseName string) error {
	info, err := r.Get(platform)
	if err != nil {
		return err
	}
	info.Databases[databaseName] = DatabaseRecord{
		SchemaName:   schemaName,
		DatabaseName: databaseName,
		CreatedAt:    time.Now().UTC(),
	}
	return r.save(info)
}

// List returns every registered platform name, sorted.
func (r *PlatformRegistry) List() ([]string, error) {
	entries, err := os.ReadDir(r.dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, gwerrors.Wrap(gwerrors.KindInternal, err, "reading data directory")
	}

	var platforms []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(r.dataDir, e.Name(), "platform.json")); err == nil {
			platforms = append(platforms, e.Name())
		}
	}
	sort.Strings(platforms)
	return platforms, nil
}

// ListDatabases returns a platform's database records, optionally
// filtered to one schema, sorted by database name.
func (r *PlatformRegistry) ListDatabases(platform string, schemaFilter string) ([]DatabaseRecord, error) {
	info, err := r.Get(platform)
	if err != nil {
		return nil, err
	}

	var records []DatabaseRecord
	for _, db := range info.Databases {
		if schemaFilter != "" && db.SchemaName != schemaFilter {
			continue
		}
		records = append(records, db)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].DatabaseName < records[j].DatabaseName })
	return records, nil
}
