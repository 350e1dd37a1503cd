package store

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/paperlane/paperlane/internal/config"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB opens postgres for "pgsql" and sqlite for anything else.
func InitDB(cfg *config.Config) (*gorm.DB, error) {
	dia, err := dialector(cfg)
	if err != nil {
		return nil, err
	}

	slow, err := time.ParseDuration(cfg.Database.SlowSQL)
	if err != nil {
		slow = time.Second
	}

	sqlLogger := logrus.New()
	sqlLogger.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})

	db, err := gorm.Open(dia, &gorm.Config{
		Logger: logger.New(sqlLogger, logger.Config{
			SlowThreshold:             slow,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
			Colorful:                  false,
		}),
		TranslateError: true,
		// the migrations declare plain TIMESTAMP columns, every write is UTC
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		zap.S().Named("gorm").Errorf("failed to connect database: %v", err)
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		zap.S().Named("gorm").Errorf("failed to configure connections: %v", err)
		return nil, err
	}

	if dia.Name() != "postgres" {
		// sqlite allows a single writer; one connection avoids "database table is locked" inside transactions.
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	}

	maxConns := cfg.Database.MaxConns
	if maxConns <= 0 {
		maxConns = 50
	}
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(maxConns / 5)
	sqlDB.SetConnMaxIdleTime(30 * time.Minute)

	var version string
	if res := db.Raw("SELECT version()").Scan(&version); res.Error != nil {
		return nil, res.Error
	}
	zap.S().Named("gorm").Infof("PostgreSQL information: '%s'", version)

	return db, nil
}

func dialector(cfg *config.Config) (gorm.Dialector, error) {
	if cfg.Database.Type != "pgsql" {
		return sqlite.Open(cfg.Database.Name), nil
	}

	dsn := fmt.Sprintf("host=%s user=%s password=%s port=%s",
		cfg.Database.Hostname,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Port,
	)
	if cfg.Database.Name != "" {
		dsn = fmt.Sprintf("%s dbname=%s", dsn, cfg.Database.Name)
	}

	// pgx parses the dsn so credentials with special characters survive.
	connCfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	sqlDB, err := openInstrumented(connCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return postgres.New(postgres.Config{Conn: sqlDB}), nil
}
