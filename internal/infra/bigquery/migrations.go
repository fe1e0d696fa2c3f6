package bigquery

import (
	"context"
	"crypto/sha256"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// migrationPattern matches migration files: 0001_name.sql
var migrationPattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

// Migration represents a single migration file.
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

// AppliedMigration represents a migration that has already been applied.
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
	Checksum  string
	AppliedBy string
}

// EmbeddedMigrations returns the migrations compiled into the binary.
func EmbeddedMigrations() fs.FS {
	sub, err := fs.Sub(embeddedMigrations, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// ReadMigrations loads every migration in fsys, sorted by version. The
// {{PROJECT_ID}} and {{DATASET_ID}} placeholders are replaced with tables;
// the checksum covers the file as written so it does not depend on the target
// dataset. Files that do not match the naming pattern are skipped.
func ReadMigrations(fsys fs.FS, tables Tables, log zerolog.Logger) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("ReadMigrations: reading directory: %w", err)
	}

	var migrations []Migration
	seen := make(map[int]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		matches := migrationPattern.FindStringSubmatch(entry.Name())
		if matches == nil {
			log.Warn().Str("file", entry.Name()).Msg("Skipping file with invalid format")
			continue
		}

		version, err := strconv.Atoi(matches[1])
		if err != nil {
			log.Warn().Str("file", entry.Name()).Msg("Skipping file with invalid version")
			continue
		}
		if prev, ok := seen[version]; ok {
			return nil, fmt.Errorf("ReadMigrations: duplicate version %04d in %s and %s", version, prev, entry.Name())
		}
		seen[version] = entry.Name()

		content, err := fs.ReadFile(fsys, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("ReadMigrations: reading file %s: %w", entry.Name(), err)
		}

		sql := strings.ReplaceAll(string(content), "{{PROJECT_ID}}", tables.ProjectID)
		sql = strings.ReplaceAll(sql, "{{DATASET_ID}}", tables.Dataset)

		migrations = append(migrations, Migration{
			Version:  version,
			Name:     matches[2],
			Filename: entry.Name(),
			SQL:      sql,
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

// Pending returns the migrations whose version is not in applied.
func Pending(migrations []Migration, applied []AppliedMigration) []Migration {
	done := make(map[int]bool, len(applied))
	for _, am := range applied {
		done[am.Version] = true
	}

	var pending []Migration
	for _, m := range migrations {
		if !done[m.Version] {
			pending = append(pending, m)
		}
	}
	return pending
}

// Migrator applies migrations to one dataset.
type Migrator struct {
	client    *bigquery.Client
	tables    Tables
	appliedBy string
	log       zerolog.Logger
}

// NewMigrator creates a Migrator over an existing client.
func NewMigrator(client *bigquery.Client, tables Tables, appliedBy string, log zerolog.Logger) *Migrator {
	return &Migrator{client: client, tables: tables, appliedBy: appliedBy, log: log}
}

// Apply runs every pending migration in version order and records each one.
// It returns the number of migrations applied.
func (m *Migrator) Apply(ctx context.Context, migrations []Migration) (int, error) {
	if err := m.ensureSchemaMigrationsTable(ctx); err != nil {
		return 0, err
	}

	applied, err := m.appliedMigrations(ctx)
	if err != nil {
		return 0, err
	}
	m.log.Info().Int("applied", len(applied)).Int("found", len(migrations)).Msg("Loaded migration state")

	count := 0
	for _, mig := range Pending(migrations, applied) {
		log := m.log.With().Int("version", mig.Version).Str("name", mig.Name).Logger()
		log.Info().Msg("Running migration")

		if err := runDML(ctx, m.client.Query(mig.SQL), "Migrator.Apply"); err != nil {
			return count, fmt.Errorf("migration %04d_%s: %w", mig.Version, mig.Name, err)
		}
		if err := m.record(ctx, mig); err != nil {
			return count, fmt.Errorf("recording migration %04d_%s: %w", mig.Version, mig.Name, err)
		}

		log.Info().Msg("Migration applied")
		count++
	}

	return count, nil
}

func (m *Migrator) ensureSchemaMigrationsTable(ctx context.Context) error {
	q := m.client.Query(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version       INT64 NOT NULL,
			name          STRING NOT NULL,
			applied_at    TIMESTAMP NOT NULL,
			checksum      STRING,
			applied_by    STRING
		)
	`, m.tables.Ref(migrationsTable)))

	return runDML(ctx, q, "ensureSchemaMigrationsTable")
}

func (m *Migrator) appliedMigrations(ctx context.Context) ([]AppliedMigration, error) {
	q := m.client.Query(fmt.Sprintf(`
		SELECT version, name, applied_at, checksum, applied_by
		FROM %s
		ORDER BY version ASC
	`, m.tables.Ref(migrationsTable)))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("appliedMigrations: reading: %w", err)
	}

	var applied []AppliedMigration
	for {
		var row struct {
			Version   int64               `bigquery:"version"`
			Name      string              `bigquery:"name"`
			AppliedAt time.Time           `bigquery:"applied_at"`
			Checksum  bigquery.NullString `bigquery:"checksum"`
			AppliedBy bigquery.NullString `bigquery:"applied_by"`
		}

		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("appliedMigrations: iterating: %w", err)
		}

		applied = append(applied, AppliedMigration{
			Version:   int(row.Version),
			Name:      row.Name,
			AppliedAt: row.AppliedAt,
			Checksum:  row.Checksum.StringVal,
			AppliedBy: row.AppliedBy.StringVal,
		})
	}

	return applied, nil
}

func (m *Migrator) record(ctx context.Context, mig Migration) error {
	q := m.client.Query(fmt.Sprintf(`
		INSERT INTO %s
		(version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)
	`, m.tables.Ref(migrationsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "version", Value: mig.Version},
		{Name: "name", Value: mig.Name},
		{Name: "checksum", Value: mig.Checksum},
		{Name: "applied_by", Value: m.appliedBy},
	}

	return runDML(ctx, q, "Migrator.record")
}
