// Package bootstrap prepares the database and cache for a process.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"bookswap/internal/cache"
	"bookswap/internal/config"
	"bookswap/internal/database"
	"bookswap/internal/models"
	"bookswap/internal/seed"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const defaultRootEmail = "root@bookswap.local"

// Options control runtime initialization behavior.
type Options struct {
	// SeedDemo fills an empty database with demo users, books and loans.
	SeedDemo bool
}

// InitRuntime connects to DB and Redis and optionally seeds demo data.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}
	if err := database.ApplySchema(context.Background(), db, cfg); err != nil {
		return nil, nil, fmt.Errorf("schema apply failed: %w", err)
	}

	// may leave a nil client if unreachable
	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if err := ensureDevRootAdmin(cfg, db); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap development root admin: %w", err)
	}

	if opts.SeedDemo {
		if err := seedIfEmpty(db); err != nil {
			return nil, nil, fmt.Errorf("failed to seed demo data: %w", err)
		}
	}

	return db, r, nil
}

func seedIfEmpty(db *gorm.DB) error {
	var books int64
	if err := db.Model(&models.Book{}).Count(&books).Error; err != nil {
		return err
	}
	if books > 0 {
		return nil
	}
	_, err := seed.Seed(db, seed.Options{NumUsers: 10, NumBooks: 30})
	return err
}

// ensureDevRootAdmin creates or promotes the configured root account.
// It only acts in development with DEV_BOOTSTRAP_ROOT set.
func ensureDevRootAdmin(cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil {
		return nil
	}
	if !strings.EqualFold(cfg.Env, "development") || !cfg.DevBootstrapRoot {
		return nil
	}

	email := strings.TrimSpace(strings.ToLower(cfg.DevRootEmail))
	if email == "" {
		email = defaultRootEmail
	}
	password := cfg.DevRootPassword
	if password == "" {
		return fmt.Errorf("DEV_ROOT_PASSWORD must be set when DEV_BOOTSTRAP_ROOT is enabled")
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		var root models.User
		findErr := tx.Where("email = ?", email).First(&root).Error
		switch {
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("hash root password: %w", err)
			}
			root = models.User{
				Name:     "BookSwap Root",
				Email:    email,
				Password: string(hashed),
				Role:     models.UserRoleAdmin,
			}
			return tx.Create(&root).Error
		case findErr != nil:
			return findErr
		case root.Role != models.UserRoleAdmin:
			return tx.Model(&root).Update("role", models.UserRoleAdmin).Error
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Printf("development root admin bootstrap ensured (%s)", email)
	return nil
}
