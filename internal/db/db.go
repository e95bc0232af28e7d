package db

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yungbote/clipcut-backend/internal/config"
	"github.com/yungbote/clipcut-backend/internal/domain"
	"github.com/yungbote/clipcut-backend/internal/platform/logger"
)

type Service struct {
	db  *gorm.DB
	log *logger.Logger
}

// New opens the configured database. SQLite is the default for single
// box deployments; Postgres via POSTGRES_DSN for anything shared.
func New(cfg *config.Config, log *logger.Logger) (*Service, error) {
	serviceLog := log.With("service", "DBService")

	var (
		gdb *gorm.DB
		err error
	)
	switch strings.ToLower(cfg.DBDriver) {
	case "postgres":
		dsn := cfg.PostgresDSN
		if dsn == "" {
			return nil, fmt.Errorf("POSTGRES_DSN required for postgres driver")
		}
		serviceLog.Info("Connecting to Postgres...")
		gdb, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	case "", "sqlite":
		serviceLog.Info("Opening SQLite database", "path", cfg.SQLitePath)
		gdb, err = gorm.Open(sqlite.Open(cfg.SQLitePath), &gorm.Config{})
	default:
		return nil, fmt.Errorf("unknown db driver %q", cfg.DBDriver)
	}
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	return &Service{db: gdb, log: serviceLog}, nil
}

func (s *Service) AutoMigrateAll() error {
	s.log.Info("Auto migrating tables...")
	if err := s.db.AutoMigrate(
		&domain.Video{},
		&domain.Job{},
		&domain.Clip{},
	); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	return nil
}

func (s *Service) DB() *gorm.DB {
	return s.db
}
