package db

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	migrate "github.com/golang-migrate/migrate/v4"
	// blank imports register the postgres driver and file source for golang-migrate
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/arsuvenir/backend/internal/config"
	"github.com/arsuvenir/backend/internal/models"
)

// Models returns every persisted model in dependency order; shared with the
// sqlite test helpers.
func Models() []any {
	return []any{
		&models.Partner{},
		&models.ProductType{},
		&models.ProductGroup{},
		&models.Product{},
		&models.Order{},
		&models.OrderItem{},
		&models.Realization{},
		&models.RealizationItem{},
		&models.RealizationPayment{},
	}
}

// ConnectAndMigrate opens the postgres connection with retries, runs either
// SQL migrations (MIGRATIONS=1, via golang-migrate) or AutoMigrate, and seeds
// the admin account when configured.
func ConnectAndMigrate(cfg config.Config, log *logrus.Logger) (*gorm.DB, error) {
	dsn := strings.TrimSpace(cfg.DatabaseDSN)
	if dsn == "" {
		return nil, errors.New("DATABASE_DSN is empty")
	}
	logLevel := logger.Silent
	if os.Getenv("DB_DEBUG") == "1" {
		logLevel = logger.Info
	}
	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logLevel)}

	var conn *gorm.DB
	var err error
	for i := 0; i < 10; i++ {
		conn, err = gorm.Open(postgres.Open(dsn), gormCfg)
		if err == nil {
			break
		}
		log.WithError(err).Warn("retrying DB connection")
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect database after retries: %w", err)
	}
	if pingErr := conn.Exec("SELECT 1").Error; pingErr != nil {
		return nil, fmt.Errorf("db ping failed: %w", pingErr)
	}

	if config.ParseBool("MIGRATIONS", false) {
		if err := runSQLMigrations(dsn); err != nil {
			return nil, fmt.Errorf("sql migrations failed: %w", err)
		}
	} else {
		for _, m := range Models() {
			if migErr := conn.AutoMigrate(m); migErr != nil {
				return nil, fmt.Errorf("automigrate %T: %w", m, migErr)
			}
		}
	}

	if err := seed(conn, cfg, log); err != nil {
		return nil, err
	}
	return conn, nil
}

// seed creates the admin partner from env when missing and the base product
// types. Idempotent.
func seed(conn *gorm.DB, cfg config.Config, log *logrus.Logger) error {
	if cfg.AdminLogin != "" && cfg.AdminPassword != "" {
		var count int64
		if err := conn.Model(&models.Partner{}).Where("login = ?", cfg.AdminLogin).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			admin := models.Partner{Name: "Administrator", Login: cfg.AdminLogin, PasswordHash: string(hash), Role: models.RoleAdmin}
			if err := conn.Create(&admin).Error; err != nil {
				return err
			}
			log.WithField("login", cfg.AdminLogin).Info("admin partner seeded")
		}
	}
	baseTypes := []models.ProductType{{Name: "Magnet"}, {Name: "Figurine"}, {Name: "Postcard"}}
	for _, pt := range baseTypes {
		var existing models.ProductType
		if err := conn.Where("name = ?", pt.Name).First(&existing).Error; errors.Is(err, gorm.ErrRecordNotFound) {
			if err := conn.Create(&pt).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

// runSQLMigrations executes migrations in ./migrations using the
// golang-migrate file source.
func runSQLMigrations(dsn string) error {
	m, err := migrate.New("file://migrations", dsn)
	if err != nil {
		return err
	}
	if err = m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}
