package database

import (
	"fmt"
	"log"

	"github.com/codyseavey/tcg-wishlist/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Initialize opens the database at dbPath and stores it in DB.
func Initialize(dbPath string) error {
	db, err := Open(dbPath)
	if err != nil {
		return err
	}
	DB = db
	return nil
}

// Open connects to the sqlite file at dbPath and brings the schema up to date.
func Open(dbPath string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	log.Println("Database connected successfully")

	// Duplicates would break the unique indexes AutoMigrate is about to add
	if err := cleanupDuplicateRows(db); err != nil {
		return nil, fmt.Errorf("failed to clean duplicate rows: %w", err)
	}

	err = db.AutoMigrate(
		&models.WishlistItem{},
		&models.WishlistShare{},
		&models.BudgetItem{},
		&models.BudgetLimit{},
		&models.CacheEntry{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		return nil, fmt.Errorf("failed to run data migrations: %w", err)
	}

	log.Println("Database migration completed")
	return db, nil
}

func GetDB() *gorm.DB {
	return DB
}
