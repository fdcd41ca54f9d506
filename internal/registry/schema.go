package registry

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/gwerrors"
)

// StoredSchema describes a schema archive once extracted to disk.
type StoredSchema struct {
	Name           string
	Path           string
	Checksum       string
	HasExtensions  bool
	HasTypes       bool
	HasTables      bool
	HasFunctions   bool
	HasSeeders     bool
	HasMigrations  bool
}

// SchemaStore extracts and manages uploaded schema archives under a
// platform's directory.
type SchemaStore struct {
	dataDir string
	logger  *slog.Logger
}

// NewSchemaStore returns a store rooted at dataDir (shared with
// PlatformRegistry).
func NewSchemaStore(dataDir string, logger *slog.Logger) *SchemaStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SchemaStore{dataDir: dataDir, logger: logger}
}

func (s *SchemaStore) schemaDir(platform, schemaName string) string {
	return filepath.Join(s.dataDir, platform, schemaName)
}

// Exists reports whether a schema directory has already been extracted.
func (s *SchemaStore) Exists(platform, schemaName string) bool {
	_, err := os.Stat(s.schemaDir(platform, schemaName))
	return err == nil
}

const archiveRootPrefix = "postgresql"

// Store extracts a gzip-compressed tar archive into the schema
// directory for platform/schemaName, replacing any existing extraction.
// Entries are read relative to a leading "postgresql/" prefix if
// present.
func (s *SchemaStore) Store(platform, schemaName string, archiveData []byte) (*StoredSchema, error) {
	if !IsValidPlatformName(schemaName) {
		return nil, gwerrors.New(gwerrors.KindInvalidRequest, "invalid schema name: %q, must be alphanumeric with underscores", schemaName)
	}

	schemaDir := s.schemaDir(platform, schemaName)

	if err := os.RemoveAll(schemaDir); err != nil {
		return nil, gwerrors.Wrap(gwerrors.KindInternal, err, "removing existing schema directory for %s/%s", platform, schemaName)
	}
	if err := os.MkdirAll(schemaDir, 0o755); err != nil {
		return nil, gwerrors.Wrap(gwerrors.KindInternal, err, "creating schema directory for %s/%s", platform, schemaName)
	}

	checksum := checksumBytes(archiveData)

	if err := extractTarGz(archiveData, schemaDir); err != nil {
		return nil, err
	}

	schema := describeSchema(schemaName, schemaDir, checksum)

	s.logger.Info("schema stored",
		"platform", platform, "schema", schemaName,
		"tables", schema.HasTables, "functions", schema.HasFunctions, "migrations", schema.HasMigrations)

	return schema, nil
}

// Get describes an already-extracted schema directory without
// re-reading the original archive (its checksum is not recoverable,
// so Checksum is left empty).
func (s *SchemaStore) Get(platform, schemaName string) (*StoredSchema, error) {
	schemaDir := s.schemaDir(platform, schemaName)
	if !s.Exists(platform, schemaName) {
		return nil, gwerrors.New(gwerrors.KindInvalidRequest, "schema %q not found for platform %q", schemaName, platform)
	}
	return describeSchema(schemaName, schemaDir, ""), nil
}

// List returns every extracted schema name under platform, sorted.
func (s *SchemaStore) List(platform string) ([]string, error) {
	platformDir := filepath.Join(s.dataDir, platform)
	entries, err := os.ReadDir(platformDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, gwerrors.Wrap(gwerrors.KindInternal, err, "reading platform directory for %s", platform)
	}

	var schemas []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(platformDir, e.Name())
		if hasSchemaStructure(path) {
			schemas = append(schemas, e.Name())
		}
	}
	sort.Strings(schemas)
	return schemas, nil
}

func (s *SchemaStore) ExtensionsDir(platform, schemaName string) string {
	return filepath.Join(s.schemaDir(platform, schemaName), "extensions")
}

func (s *SchemaStore) TypesDir(platform, schemaName string) string {
	return filepath.Join(s.schemaDir(platform, schemaName), "types")
}

func (s *SchemaStore) TablesDir(platform, schemaName string) string {
	return filepath.Join(s.schemaDir(platform, schemaName), "tables")
}

func (s *SchemaStore) FunctionsDir(platform, schemaName string) string {
	return filepath.Join(s.schemaDir(platform, schemaName), "functions")
}

func (s *SchemaStore) SeedersDir(platform, schemaName string) string {
	return filepath.Join(s.schemaDir(platform, schemaName), "seeders")
}

func (s *SchemaStore) MigrationsDir(platform, schemaName string) string {
	return filepath.Join(s.schemaDir(platform, schemaName), "migrations")
}

func hasSchemaStructure(dir string) bool {
	if _, err := os.Stat(filepath.Join(dir, "tables")); err == nil {
		return true
	}
	if _, err := os.Stat(filepath.Join(dir, "functions")); err == nil {
		return true
	}
	return false
}

func describeSchema(name, dir, checksum string) *StoredSchema {
	exists := func(sub string) bool {
		_, err := os.Stat(filepath.Join(dir, sub))
		return err == nil
	}
	return &StoredSchema{
		Name:          name,
		Path:          dir,
		Checksum:      checksum,
		HasExtensions: exists("extensions"),
		HasTypes:      exists("types"),
		HasTables:     exists("tables"),
		HasFunctions:  exists("functions"),
		HasSeeders:    exists("seeders"),
		HasMigrations: exists("migrations"),
	}
}

func checksumBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// extractTarGz decompresses and unpacks archiveData into destDir,
// stripping a leading "postgresql/" path component when present and
// refusing entries that would escape destDir.
func extractTarGz(archiveData []byte, destDir string) error {
	gz, err := gzip.NewReader(bytes.NewReader(archiveData))
	if err != nil {
		return gwerrors.Wrap(gwerrors.KindSchemaExtractionFailed, err, "opening gzip stream")
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return gwerrors.Wrap(gwerrors.KindSchemaExtractionFailed, err, "reading archive entry")
		}

		relPath := stripArchiveRoot(hdr.Name)
		if relPath == "" {
			continue
		}

		targetPath := filepath.Join(destDir, relPath)
		if !strings.HasPrefix(targetPath, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return gwerrors.New(gwerrors.KindSchemaExtractionFailed, "archive entry %q escapes schema directory", hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(targetPath, 0o755); err != nil {
				return gwerrors.Wrap(gwerrors.KindSchemaExtractionFailed, err, "creating directory %s", relPath)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
				return gwerrors.Wrap(gwerrors.KindSchemaExtractionFailed, err, "creating parent directory for %s", relPath)
			}
			out, err := os.OpenFile(targetPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(hdr.Mode&0o777))
			if err != nil {
				return gwerrors.Wrap(gwerrors.KindSchemaExtractionFailed, err, "creating file %s", relPath)
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return gwerrors.Wrap(gwerrors.KindSchemaExtractionFailed, err, "extracting %s", relPath)
			}
			out.Close()
		}
	}
}

func stripArchiveRoot(name string) string {
	name = filepath.ToSlash(name)
	name = strings.TrimPrefix(name, archiveRootPrefix+"/")
	if name == archiveRootPrefix {
		return ""
	}
	return strings.Trim(name, "/")
}
