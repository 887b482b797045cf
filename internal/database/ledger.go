package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"peloton/internal/middleware"

	"gorm.io/gorm"
)

// SchemaMigration is one row of the applied-migrations ledger.
type SchemaMigration struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:255"`
	AppliedAt time.Time `gorm:"autoCreateTime"`
}

func (SchemaMigration) TableName() string {
	return "schema_migrations"
}

// schemaLedger reads and writes the applied-migrations table. It bootstraps
// its own table with raw SQL so it works against an empty database.
type schemaLedger struct {
	db *gorm.DB
}

func newSchemaLedger(db *gorm.DB) *schemaLedger {
	return &schemaLedger{db: db}
}

func (l *schemaLedger) ensureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version BIGINT PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_schema_migrations_applied_at ON schema_migrations (applied_at);`
	if err := l.db.WithContext(ctx).Exec(ddl).Error; err != nil {
		return fmt.Errorf("ensure schema_migrations table: %w", err)
	}
	return nil
}

func (l *schemaLedger) appliedVersions(ctx context.Context) ([]int, error) {
	var versions []int
	err := l.db.WithContext(ctx).Model(&SchemaMigration{}).Order("version ASC").Pluck("version", &versions).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) || isMissingTableError(err) {
			return []int{}, nil
		}
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	return versions, nil
}

func isMissingTableError(err error) bool {
	return strings.Contains(err.Error(), "relation") && strings.Contains(err.Error(), "does not exist")
}

func (l *schemaLedger) apply(ctx context.Context, m Migration) error {
	if err := l.db.WithContext(ctx).Exec(m.UpScript).Error; err != nil {
		return fmt.Errorf("apply migration %s: %w", m.String(), err)
	}
	row := SchemaMigration{Version: m.Version, Name: m.Name}
	if err := l.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("record migration %d: %w", m.Version, err)
	}
	middleware.Logger.Info("Migration applied", slog.Int("version", m.Version), slog.String("name", m.Name))
	return nil
}

func (l *schemaLedger) revert(ctx context.Context, m Migration) error {
	if err := l.db.WithContext(ctx).Exec(m.DownScript).Error; err != nil {
		return fmt.Errorf("run rollback SQL for migration %s: %w", m.String(), err)
	}
	if err := l.db.WithContext(ctx).Where("version = ?", m.Version).Delete(&SchemaMigration{}).Error; err != nil {
		return fmt.Errorf("remove migration record %d: %w", m.Version, err)
	}
	middleware.Logger.Info("Migration rolled back", slog.Int("version", m.Version), slog.String("name", m.Name))
	return nil
}

// RunMigrations applies every pending embedded migration in version order.
// It refuses to run when the ledger lists versions the binary does not know
// about, which usually means the database is ahead of the deployed code.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	all, err := AllMigrations()
	if err != nil {
		return err
	}

	ledger := newSchemaLedger(db)
	if err := ledger.ensureTable(ctx); err != nil {
		return err
	}

	applied, err := ledger.appliedVersions(ctx)
	if err != nil {
		return err
	}
	if err := rejectUnknownVersions(applied, all); err != nil {
		return err
	}

	appliedSet := make(map[int]bool, len(applied))
	for _, v := range applied {
		appliedSet[v] = true
	}

	for _, m := range all {
		if appliedSet[m.Version] {
			middleware.Logger.Debug("Migration already applied", slog.Int("version", m.Version), slog.String("name", m.Name))
			continue
		}
		middleware.Logger.Info("Applying migration", slog.Int("version", m.Version), slog.String("name", m.Name))
		if err := ledger.apply(ctx, m); err != nil {
			return err
		}
	}

	return nil
}

func rejectUnknownVersions(applied []int, known []Migration) error {
	if len(applied) == 0 {
		return nil
	}
	knownSet := make(map[int]struct{}, len(known))
	for _, m := range known {
		knownSet[m.Version] = struct{}{}
	}

	var unknown []int
	for _, version := range applied {
		if _, ok := knownSet[version]; !ok {
			unknown = append(unknown, version)
		}
	}
	if len(unknown) == 0 {
		return nil
	}

	sort.Ints(unknown)
	parts := make([]string, 0, len(unknown))
	for _, version := range unknown {
		parts = append(parts, fmt.Sprintf("%06d", version))
	}
	return fmt.Errorf("schema_migrations lists versions this build does not ship: %s (deploy a newer build or roll the database back)",
		strings.Join(parts, ", "))
}

// RollbackMigration reverts one applied migration by version number.
func RollbackMigration(ctx context.Context, db *gorm.DB, version int) error {
	m, err := migrationByVersion(version)
	if err != nil {
		return err
	}

	ledger := newSchemaLedger(db)
	applied, err := ledger.appliedVersions(ctx)
	if err != nil {
		return err
	}

	found := false
	for _, v := range applied {
		if v == version {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("migration %d has not been applied", version)
	}

	middleware.Logger.Info("Rolling back migration", slog.Int("version", version), slog.String("name", m.Name))
	return ledger.revert(ctx, *m)
}
