package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"tradeJournal/internal/ports"
)

// Ensure Repository implements the ports.TradeStore interface.
var _ ports.TradeStore = (*Repository)(nil)

// Repository implements ports.TradeStore using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
	now    func() time.Time
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/journal.db" // Default path
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// A single connection serialises writers; SQLite locks the whole file anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger, now: time.Now}

	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "Database schema initialized/verified")

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		broker_id TEXT NOT NULL DEFAULT '',
		broker_trade_id TEXT NULL,

		symbol TEXT NOT NULL,
		exchange TEXT NOT NULL DEFAULT '',
		segment TEXT NOT NULL,
		instrument_type TEXT NOT NULL DEFAULT '',
		trade_type TEXT NOT NULL,
		position TEXT NOT NULL,

		entry_price REAL NOT NULL,
		entry_quantity INTEGER NOT NULL,
		entry_time TIMESTAMP NOT NULL,
		entry_order_type TEXT NOT NULL DEFAULT '',
		entry_brokerage REAL NULL,
		entry_taxes TEXT NULL, -- JSON object

		exit_price REAL NULL,
		exit_quantity INTEGER NULL,
		exit_time TIMESTAMP NULL,
		exit_order_type TEXT NULL,
		exit_brokerage REAL NULL,
		exit_taxes TEXT NULL,

		status TEXT NOT NULL,

		pnl_gross REAL NOT NULL DEFAULT 0,
		pnl_net REAL NOT NULL DEFAULT 0,
		pnl_charges REAL NOT NULL DEFAULT 0,
		pnl_brokerage REAL NOT NULL DEFAULT 0,
		pnl_taxes REAL NOT NULL DEFAULT 0,
		pnl_percentage REAL NOT NULL DEFAULT 0,
		pnl_is_profit INTEGER NOT NULL DEFAULT 0,

		stop_loss REAL NULL,
		target REAL NULL,
		risk_reward REAL NOT NULL DEFAULT 0,
		breakeven_price REAL NOT NULL DEFAULT 0,

		strategy TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT '[]',     -- JSON array
		notes TEXT NOT NULL DEFAULT '',
		psychology TEXT NOT NULL DEFAULT '',
		mistakes TEXT NOT NULL DEFAULT '[]', -- JSON array

		holding_period INTEGER NOT NULL DEFAULT 0,

		deleted INTEGER NOT NULL DEFAULT 0,
		deleted_at TIMESTAMP NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,

		CHECK (exit_quantity IS NULL OR exit_quantity <= entry_quantity)
	);
	CREATE INDEX IF NOT EXISTS idx_trades_user_entry_time ON trades (user_id, deleted, entry_time);
	CREATE INDEX IF NOT EXISTS idx_trades_user_status ON trades (user_id, deleted, status);
	CREATE INDEX IF NOT EXISTS idx_trades_user_symbol ON trades (user_id, symbol);
	-- One record per broker fill and user, soft-deleted ones included.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_trades_user_broker_trade
		ON trades (user_id, broker_trade_id) WHERE broker_trade_id IS NOT NULL;
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}
