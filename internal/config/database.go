package config

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rongwang/ledger-server/internal/repository"
	"github.com/rongwang/ledger-server/internal/utils"
	"go.uber.org/zap"
)

// SetupDatabase initializes the database connection
func SetupDatabase(cfg *Config, logger *utils.Logger) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	if cfg.Database.ResetSchema {
		if err := dropTables(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to drop tables: %w", err)
		}
		logger.Info("database schema reset", zap.String("db", cfg.Database.DBName))
	}

	// Create tables if they don't exist
	if err := createTables(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return db, nil
}

// OpenRepository opens the entity store selected by cfg.Storage
func OpenRepository(cfg *Config, logger *utils.Logger) (repository.Repository, error) {
	switch cfg.Storage {
	case StorageMemory:
		return repository.NewMemoryRepository(), nil
	case StoragePostgres:
		db, err := SetupDatabase(cfg, logger)
		if err != nil {
			return nil, err
		}
		return repository.NewPostgresRepository(db), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
}

func dropTables(db *sqlx.DB) error {
	_, err := db.Exec(`DROP TABLE IF EXISTS transactions, users`)
	return err
}

// createTables creates the necessary tables in the database
func createTables(db *sqlx.DB, logger *utils.Logger) error {
	// Create users table
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			username VARCHAR(255) PRIMARY KEY,
			password VARCHAR(255) NOT NULL,
			balance BIGINT NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		return err
	}

	// Create transactions table; participants survive as NULL when a user is deleted
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS transactions (
			tx_id VARCHAR(64) PRIMARY KEY,
			seq BIGSERIAL NOT NULL,
			tx_type VARCHAR(16) NOT NULL CHECK (tx_type IN ('Deposit', 'Withdrawal', 'Transfer')),
			amount BIGINT NOT NULL CHECK (amount > 0),
			username VARCHAR(255) REFERENCES users(username) ON DELETE SET NULL,
			recipientname VARCHAR(255) REFERENCES users(username) ON DELETE SET NULL,
			date TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create indexes for better performance
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_transactions_username ON transactions(username)",
		"CREATE INDEX IF NOT EXISTS idx_transactions_recipientname ON transactions(recipientname)",
		"CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(date)",
	}

	for _, idx := range indexes {
		_, err = db.Exec(idx)
		if err != nil {
			logger.Warn("failed to create index", zap.String("statement", idx), zap.Error(err))
			// Don't return error here, indexes are not critical
		}
	}

	return nil
}
