package database

import (
	"fmt"
	"time"

	"github.com/sdko-org/imgpress/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const maxRetries = 5

// NewPostgresDB connects to the access log database, retrying with
// exponential backoff, and migrates the access log table.
func NewPostgresDB(logger *logrus.Logger, dsn string) (*gorm.DB, error) {
	return open(logger, postgres.Open(dsn), 2*time.Second)
}

func open(logger *logrus.Logger, dialector gorm.Dialector, retryDelay time.Duration) (*gorm.DB, error) {
	log := logger.WithField("component", "database")

	var db *gorm.DB
	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		db, err = gorm.Open(dialector, &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err == nil {
			break
		}

		log.WithFields(logrus.Fields{
			"attempt": attempt,
			"error":   err,
		}).Warn("Database connection failed")

		if attempt < maxRetries {
			time.Sleep(retryDelay)
			retryDelay *= 2
		}
	}

	if err != nil {
		log.WithError(err).Error("Failed to connect to database after retries")
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	if err := db.AutoMigrate(&models.AccessLog{}); err != nil {
		log.WithError(err).Error("Database migration failed")
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	log.Info("Database connection established")
	return db, nil
}
