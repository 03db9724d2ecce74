package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/hamzaKhattat/calllog-production-system/pkg/errors"
	"github.com/hamzaKhattat/calllog-production-system/pkg/logger"
)

type Config struct {
	Driver          string
	Host            string
	Port            int
	Username        string
	Password        string
	Database        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	RetryAttempts   int
	RetryDelay      time.Duration
}

type DB struct {
	*sql.DB
	cfg    Config
	mu     sync.RWMutex
	health bool
}

var (
	instance *DB
	once     sync.Once
)

func Initialize(cfg Config) error {
	var err error
	once.Do(func() {
		instance, err = newDB(cfg)
	})
	return err
}

func GetDB() *DB {
	if instance == nil {
		panic("database not initialized")
	}
	return instance
}

func newDB(cfg Config) (*DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&multiStatements=true",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	var db *sql.DB
	var err error

	// Retry connection
	for i := 0; i <= cfg.RetryAttempts; i++ {
		db, err = sql.Open(cfg.Driver, dsn)
		if err == nil {
			err = db.Ping()
			if err == nil {
				break
			}
		}

		if i < cfg.RetryAttempts {
			logger.WithField("attempt", i+1).WithError(err).Warn("Database connection failed, retrying...")
			time.Sleep(cfg.RetryDelay * time.Duration(i+1))
		}
	}

	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabase, "failed to connect to database")
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	wrapper := &DB{
		DB:     db,
		cfg:    cfg,
		health: true,
	}

	// Start health checker
	go wrapper.healthCheck()

	logger.Info("Database connection established")
	return wrapper, nil
}

func (db *DB) healthCheck() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := db.PingContext(ctx)
		cancel()

		db.mu.Lock()
		oldHealth := db.health
		db.health = err == nil
		db.mu.Unlock()

		if oldHealth != db.health {
			if db.health {
				logger.Info("Database connection recovered")
			} else {
				logger.WithError(err).Error("Database connection lost")
			}
		}
	}
}

func (db *DB) IsHealthy() bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.health
}
