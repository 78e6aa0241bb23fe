package database

import (
	"log"

	"gorm.io/gorm"
)

// cleanupDuplicateRows keeps the newest row per (user_id, card_id) in the wishlist
// and budget tables. Older databases had no unique index there.
// This runs BEFORE AutoMigrate to prevent constraint violations
func cleanupDuplicateRows(db *gorm.DB) error {
	for _, table := range []string{"wishlist_items", "budget_items"} {
		if !db.Migrator().HasTable(table) {
			continue
		}

		result := db.Exec(`
			DELETE FROM ` + table + `
			WHERE id NOT IN (
				SELECT MAX(id)
				FROM ` + table + `
				GROUP BY user_id, card_id
			)
		`)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected > 0 {
			log.Printf("Cleaned up %d duplicate %s entries", result.RowsAffected, table)
		}
	}
	return nil
}

// RunMigrations fills defaults that rows written before the columns existed lack
func RunMigrations(db *gorm.DB) error {
	steps := []struct {
		table, column, sql string
	}{
		{"wishlist_items", "priority", `UPDATE wishlist_items SET priority = 'medium' WHERE priority IS NULL OR priority = ''`},
		{"wishlist_items", "selected_grade", `UPDATE wishlist_items SET selected_grade = 'raw' WHERE selected_grade IS NULL OR selected_grade = ''`},
		{"budget_items", "selected_grade", `UPDATE budget_items SET selected_grade = 'raw' WHERE selected_grade IS NULL OR selected_grade = ''`},
	}

	for _, step := range steps {
		if !db.Migrator().HasColumn(step.table, step.column) {
			continue
		}
		result := db.Exec(step.sql)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected > 0 {
			log.Printf("Migrated %d %s rows to default %s", result.RowsAffected, step.table, step.column)
		}
	}
	return nil
}
