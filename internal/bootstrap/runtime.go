// Package bootstrap wires up process-level runtime dependencies.
package bootstrap

import (
	"fmt"
	"log"
	"strings"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"ripple/internal/cache"
	"ripple/internal/config"
	"ripple/internal/database"
	"ripple/internal/imaging"
	"ripple/internal/models"
	"ripple/internal/seed"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedDemoData populates an empty development database with fake
	// users, posts and engagement on startup.
	SeedDemoData bool
}

// InitRuntime connects to the database and Redis and optionally seeds demo
// data. The Redis client may be nil if the server is unreachable; callers
// degrade gracefully.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if opts.SeedDemoData {
		if err := seedIfEmpty(cfg, db); err != nil {
			return nil, nil, fmt.Errorf("demo data seeding failed: %w", err)
		}
	}

	return db, r, nil
}

// seedIfEmpty runs the demo seeder once against a fresh development database.
// Production environments are never seeded, regardless of configuration.
func seedIfEmpty(cfg *config.Config, db *gorm.DB) error {
	if strings.EqualFold(cfg.Env, "production") || strings.EqualFold(cfg.Env, "prod") {
		return nil
	}

	var users int64
	if err := db.Model(&models.User{}).Count(&users).Error; err != nil {
		return err
	}
	if users > 0 {
		return nil
	}

	log.Println("empty development database, seeding demo data")
	s := seed.NewSeeder(db, imaging.NewProcessor(cfg.MediaDir), seed.Options{})
	return s.Run()
}
