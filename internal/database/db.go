package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"hoiku-portal/internal/config"
	"hoiku-portal/internal/logging"
	"hoiku-portal/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/sethvargo/go-retry"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	connectAttempts = 10
	connectBackoff  = 2 * time.Second
)

// Init opens the database described by cfg, retrying while it comes up,
// migrates the schema and seeds the optional master account.
func Init(ctx context.Context, cfg *config.Config) (*gorm.DB, error) {
	db, err := Open(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	if cfg.MasterEmail != "" && cfg.MasterPassword != "" {
		if err := SeedMaster(db, cfg.MasterEmail, cfg.MasterPassword); err != nil {
			slog.Warn("failed to seed master account", "error", err)
		}
	}
	return db, nil
}

func Open(ctx context.Context, driver, dsn string) (*gorm.DB, error) {
	dialector, err := dialectorFor(driver, dsn)
	if err != nil {
		return nil, err
	}

	var db *gorm.DB
	attempt := 0
	backoff := retry.WithMaxRetries(connectAttempts-1, retry.NewConstant(connectBackoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		slog.Info("connecting to database", "driver", driver, "attempt", attempt, "max_attempts", connectAttempts)

		var openErr error
		db, openErr = gorm.Open(dialector, &gorm.Config{
			Logger:         newGormLogger(),
			TranslateError: true,
		})
		if openErr != nil {
			slog.Warn("failed to connect to database", "error", openErr)
			return retry.RetryableError(openErr)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database after %d attempts: %w", attempt, err)
	}

	slog.Info("connected to database", "driver", driver)
	return db, nil
}

// slogWriter feeds gorm's logger into the default slog logger.
type slogWriter struct{}

func (slogWriter) Printf(format string, args ...any) {
	slog.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "gorm")
}

// newGormLogger reports slow queries and failures through slog. Lookups that
// find nothing are expected and stay quiet.
func newGormLogger() logger.Interface {
	return logger.New(slogWriter{}, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

func dialectorFor(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "postgres":
		return postgres.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Template{},
		&models.Submission{},
		&models.AuditLog{},
	); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// SeedMaster creates a master account with the given credentials unless the
// email is already registered.
func SeedMaster(db *gorm.DB, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return errors.New("master email is empty")
	}
	var count int64
	if err := db.Model(&models.User{}).
		Where("email = ?", email).
		Count(&count).Error; err != nil {
		return fmt.Errorf("check master account: %w", err)
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash master password: %w", err)
	}

	master := models.User{
		Email:        email,
		PasswordHash: string(hash),
		Role:         models.RoleMaster,
	}
	if err := db.Create(&master).Error; err != nil {
		return fmt.Errorf("create master account: %w", err)
	}

	slog.Info("created master account", "email", logging.MaskEmail(email))
	return nil
}

func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
