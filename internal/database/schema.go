package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"directchat/internal/config"
	"directchat/internal/middleware"
	"directchat/internal/models"

	"gorm.io/gorm"
)

// Schema modes selected by DB_SCHEMA_MODE.
const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

// uniqueIndex is an index the chat store relies on for correctness, not speed.
type uniqueIndex struct {
	model any
	name  string
	// guards names what breaks without the index.
	guards string
}

// requiredUniqueIndexes must exist whichever way the schema was built. The
// SQL migrations and the model tags use the same names.
var requiredUniqueIndexes = []uniqueIndex{
	{model: &models.Chat{}, name: "idx_chats_pair_key", guards: "one private chat per pair"},
	{model: &models.Message{}, name: "idx_messages_dedup", guards: "client message id deduplication"},
}

// SchemaPlan is what ApplySchema will do for a configuration.
type SchemaPlan struct {
	Mode           string
	RunSQL         bool
	RunAutoMigrate bool
}

// SchemaStatus describes the plan, the migration state and any missing
// uniqueness index.
type SchemaStatus struct {
	Mode               string
	Environment        string
	WillRunSQL         bool
	WillRunAutoMigrate bool
	AppliedVersions    []int
	PendingMigrations  []Migration
	MissingIndexes     []string
}

// planSchema resolves DB_SCHEMA_MODE for the environment. Hybrid runs the SQL
// migrations everywhere and AutoMigrate only outside prod-like environments;
// auto in a prod-like environment needs DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE.
func planSchema(cfg *config.Config) (SchemaPlan, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode))
	if mode == "" {
		mode = SchemaModeHybrid
	}
	prodLike := config.IsProdLike(cfg.Env)

	plan := SchemaPlan{Mode: mode}
	switch mode {
	case SchemaModeSQL:
		plan.RunSQL = true
	case SchemaModeAuto:
		if prodLike && !cfg.DBAutoMigrateAllowDestructive {
			return plan, fmt.Errorf("refusing DB_SCHEMA_MODE=auto in %q without DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true", cfg.Env)
		}
		plan.RunAutoMigrate = true
	case SchemaModeHybrid:
		plan.RunSQL = true
		plan.RunAutoMigrate = !prodLike
	default:
		return plan, fmt.Errorf("unsupported DB_SCHEMA_MODE %q", mode)
	}
	return plan, nil
}

// missingUniqueIndexes lists required indexes the database does not have.
func missingUniqueIndexes(ctx context.Context, db *gorm.DB) []string {
	migrator := db.WithContext(ctx).Migrator()
	var missing []string
	for _, idx := range requiredUniqueIndexes {
		if !migrator.HasIndex(idx.model, idx.name) {
			missing = append(missing, idx.name)
		}
	}
	return missing
}

// ApplySchema brings the schema up to date according to DB_SCHEMA_MODE, then
// refuses to continue if a uniqueness index the chat store depends on is
// missing.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	plan, err := planSchema(cfg)
	if err != nil {
		return err
	}

	if plan.RunSQL {
		if err := RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
	}

	if plan.RunAutoMigrate {
		if plan.Mode == SchemaModeAuto && cfg.DBAutoMigrateAllowDestructive {
			middleware.Logger.WarnContext(ctx, "auto-migrating a prod-like database",
				slog.String("env", cfg.Env))
		}
		middleware.Logger.InfoContext(ctx, "running AutoMigrate for chat models",
			slog.String("mode", plan.Mode), slog.String("env", cfg.Env))
		if err := db.WithContext(ctx).AutoMigrate(PersistentModels()...); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}

	if missing := missingUniqueIndexes(ctx, db); len(missing) > 0 {
		for _, idx := range requiredUniqueIndexes {
			for _, name := range missing {
				if idx.name == name {
					middleware.Logger.ErrorContext(ctx, "required unique index missing",
						slog.String("index", idx.name), slog.String("guards", idx.guards))
				}
			}
		}
		return fmt.Errorf("schema is missing unique indexes: %s", strings.Join(missing, ", "))
	}
	return nil
}

// GetSchemaStatus reports the plan, pending migrations and missing
// uniqueness indexes without changing anything.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	plan, err := planSchema(cfg)
	if err != nil {
		return nil, err
	}

	status := &SchemaStatus{
		Mode:               plan.Mode,
		Environment:        cfg.Env,
		WillRunSQL:         plan.RunSQL,
		WillRunAutoMigrate: plan.RunAutoMigrate,
		MissingIndexes:     missingUniqueIndexes(ctx, db),
	}

	if !plan.RunSQL {
		return status, nil
	}

	applied, err := NewMigrationStore(db).GetAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	status.AppliedVersions = applied

	done := make(map[int]bool, len(applied))
	for _, version := range applied {
		done[version] = true
	}
	for _, m := range GetMigrations() {
		if !done[m.Version] {
			status.PendingMigrations = append(status.PendingMigrations, m)
		}
	}
	return status, nil
}
