package database

import (
	"fmt"
	"log"

	"instapurr/models"

	"gorm.io/gorm"
)

// schemaModels lists every persisted table, parents before children so
// foreign keys can be created in one pass.
var schemaModels = []interface{}{
	&models.User{},
	&models.Post{},
	&models.Like{},
	&models.Comment{},
}

// userColumnAdditions are columns that were bolted onto the users table
// after the first deployments. They are added one by one, each guarded
// by a catalog lookup, so existing rows survive.
var userColumnAdditions = []string{"ProfilePicture", "Bio", "CreatedAt"}

// expectedColumns is the contract each table must satisfy after
// EnsureSchema. A mismatch is reported, never guessed around.
var expectedColumns = map[string][]string{
	"users":    {"id", "username", "password", "profile_picture", "bio", "created_at"},
	"posts":    {"id", "image_path", "caption", "user_id", "created_at"},
	"likes":    {"id", "user_id", "post_id", "created_at"},
	"comments": {"id", "content", "user_id", "post_id", "created_at"},
}

// EnsureSchema creates any missing tables and applies additive column
// migrations. It is idempotent and safe to run on every startup; any
// failure must be treated as fatal by the caller, since serving traffic
// against a partial schema corrupts data.
func EnsureSchema(db *gorm.DB) error {
	m := db.Migrator()

	for _, model := range schemaModels {
		if m.HasTable(model) {
			continue
		}
		if err := m.CreateTable(model); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}

	for _, field := range userColumnAdditions {
		if m.HasColumn(&models.User{}, field) {
			continue
		}
		if err := m.AddColumn(&models.User{}, field); err != nil {
			return fmt.Errorf("add users column %s: %w", field, err)
		}
		log.Printf("Schema: added users column %s", field)
	}

	// Unique like pair may be missing on databases created before the
	// constraint existed.
	if !m.HasIndex(&models.Like{}, "idx_user_post_like") {
		if err := m.CreateIndex(&models.Like{}, "idx_user_post_like"); err != nil {
			return fmt.Errorf("create like unique index: %w", err)
		}
		log.Println("Schema: created unique index on likes (user_id, post_id)")
	}

	return verifyColumns(db)
}

// verifyColumns compares the live catalog against the expected column
// set and reports every missing column in one error.
func verifyColumns(db *gorm.DB) error {
	m := db.Migrator()
	var missing []string

	for _, model := range schemaModels {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			return fmt.Errorf("parse model %T: %w", model, err)
		}
		table := stmt.Table
		for _, col := range expectedColumns[table] {
			if !m.HasColumn(model, col) {
				missing = append(missing, table+"."+col)
			}
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("schema verification failed, missing columns: %v", missing)
	}
	return nil
}
