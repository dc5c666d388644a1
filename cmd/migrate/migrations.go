package main

import (
	"fmt"

	"github.com/learnhub/engine/internal/models"
	"gorm.io/gorm"
)

// runMigrations executes all database migrations
func runMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return runCustomMigrations(db)
}

// runCustomMigrations handles schema changes AutoMigrate can't handle
func runCustomMigrations(db *gorm.DB) error {
	migrations := []func(*gorm.DB) error{
		enableUUIDExtension,
		addLiveNodeIndex,
		addReferenceIndexes,
		addOpenJobIndex,
	}
	for _, migration := range migrations {
		if err := migration(db); err != nil {
			return err
		}
	}
	return nil
}

// tableName resolves a model's table under the configured prefix.
func tableName(db *gorm.DB, model any) (string, error) {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(model); err != nil {
		return "", fmt.Errorf("parse %T: %w", model, err)
	}
	return stmt.Schema.Table, nil
}

func enableUUIDExtension(db *gorm.DB) error {
	return db.Exec(`CREATE EXTENSION IF NOT EXISTS "pgcrypto"`).Error
}

// addLiveNodeIndex serves collection listings, which never return deleted nodes.
func addLiveNodeIndex(db *gorm.DB) error {
	t, err := tableName(db, &models.Node{})
	if err != nil {
		return err
	}
	return db.Exec(fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS idx_%[1]s_live ON %[1]s (collection, created_time, id) WHERE is_deleted = false`, t,
	)).Error
}

// addReferenceIndexes lets operators find nodes pointing at a given node.
func addReferenceIndexes(db *gorm.DB) error {
	t, err := tableName(db, &models.Node{})
	if err != nil {
		return err
	}
	for _, col := range []string{"parent_nodes", "child_nodes"} {
		stmt := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%[1]s_%[2]s ON %[1]s USING GIN (%[2]s jsonb_path_ops)`, t, col)
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

// addOpenJobIndex covers the status sync scan over pending and active jobs.
func addOpenJobIndex(db *gorm.DB) error {
	t, err := tableName(db, &models.BatchJob{})
	if err != nil {
		return err
	}
	return db.Exec(fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS idx_%[1]s_open ON %[1]s (status, last_modified_time) WHERE status IN ('pending', 'active')`, t,
	)).Error
}
