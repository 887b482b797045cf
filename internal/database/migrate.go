package database

import (
	"embed"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Migration is one versioned schema change: paired up/down SQL scripts
// embedded from the migrations directory. Files follow the
// NNNNNN_name.{up,down}.sql convention and every up script must have a down
// counterpart.
type Migration struct {
	Version    int
	Name       string
	UpScript   string
	DownScript string
}

func (m *Migration) String() string {
	return fmt.Sprintf("%06d_%s", m.Version, m.Name)
}

//go:embed migrations/*.sql
var migrationFS embed.FS

var loadMigrationsOnce = sync.OnceValues(func() ([]Migration, error) {
	return loadMigrations(migrationFS)
})

// AllMigrations returns the embedded migrations ordered by version. The
// embedded set is parsed once; a malformed file surfaces here as an error
// instead of a silently skipped migration.
func AllMigrations() ([]Migration, error) {
	return loadMigrationsOnce()
}

func migrationByVersion(version int) (*Migration, error) {
	all, err := AllMigrations()
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].Version == version {
			return &all[i], nil
		}
	}
	return nil, fmt.Errorf("migration version %d not found", version)
}

func loadMigrations(efs embed.FS) ([]Migration, error) {
	entries, err := efs.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}

	var out []Migration
	seen := make(map[int]string)

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}

		base := strings.TrimSuffix(name, ".up.sql")
		prefix, title, ok := strings.Cut(base, "_")
		if !ok {
			return nil, fmt.Errorf("migration %s does not match NNNNNN_name.up.sql", name)
		}
		version, err := strconv.Atoi(prefix)
		if err != nil || version <= 0 {
			return nil, fmt.Errorf("migration %s has a non-numeric version prefix", name)
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("migration version %d declared by both %s and %s", version, prev, name)
		}
		seen[version] = name

		up, err := efs.ReadFile("migrations/" + name)
		if err != nil {
			return nil, fmt.Errorf("read up migration %s: %w", name, err)
		}
		downName := base + ".down.sql"
		down, err := efs.ReadFile("migrations/" + downName)
		if err != nil {
			return nil, fmt.Errorf("migration %s has no down counterpart: %w", name, err)
		}

		out = append(out, Migration{
			Version:    version,
			Name:       title,
			UpScript:   string(up),
			DownScript: string(down),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}
