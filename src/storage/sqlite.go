package storage

import (
	"database/sql"
	"fmt"
	"time"

	"market-stream/src/logger"
	"market-stream/src/models"

	_ "modernc.org/sqlite"
)

// -----------------------------------------------------------------------------

type AsyncSQLiteDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewAsyncSQLiteDB(cfg *models.MConfig, log *logger.Logger) (*AsyncSQLiteDB, error) {
	return &AsyncSQLiteDB{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Initialize() error {
	dsn := d.Config.Storage.DBPath

	// Open DB
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	return d.createTables()
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) createTables() error {
	// market_ticks is feed data: recreated on every start
	if _, err := d.DB.Exec("DROP TABLE IF EXISTS market_ticks"); err != nil {
		return fmt.Errorf("failed to drop market_ticks: %w", err)
	}

	// SQLite types: INTEGER for int64, REAL for float64, TEXT for string
	query := `
		CREATE TABLE market_ticks (
			symbol TEXT,
			timestamp INTEGER,
			price REAL,
			change REAL,
			change_percent REAL,
			volume REAL,
			bid REAL,
			ask REAL,
			PRIMARY KEY (symbol, timestamp)
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create market_ticks: %w", err)
	}

	// Orders, executions and connection events survive restarts
	query = `
		CREATE TABLE IF NOT EXISTS orders (
			order_id TEXT PRIMARY KEY,
			user_id INTEGER,
			symbol TEXT,
			side TEXT,
			order_type TEXT,
			quantity REAL,
			price REAL,
			created_at INTEGER
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create orders: %w", err)
	}

	query = `
		CREATE TABLE IF NOT EXISTS order_executions (
			execution_id TEXT PRIMARY KEY,
			order_id TEXT,
			symbol TEXT,
			status TEXT,
			quantity REAL,
			price REAL,
			executed_at INTEGER
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create order_executions: %w", err)
	}

	query = `
		CREATE TABLE IF NOT EXISTS connection_events (
			session_id TEXT,
			user_id INTEGER,
			event_type TEXT,
			detail TEXT,
			created_at INTEGER
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create connection_events: %w", err)
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) SaveTicksBulk(ticks []models.MPriceTick) error {
	if len(ticks) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO market_ticks (symbol, timestamp, price, change, change_percent, volume, bid, ask)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range ticks {
		_, err := stmt.Exec(t.Symbol, t.Timestamp, t.Price, t.Change, t.ChangePercent, t.Volume, t.Bid, t.Ask)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) SaveOrder(order models.MOrder) error {
	_, err := d.DB.Exec(`
		INSERT INTO orders (order_id, user_id, symbol, side, order_type, quantity, price, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, order.OrderID, order.UserID, order.Symbol, order.Side, order.OrderType, order.Quantity, order.Price, order.CreatedAt)
	return err
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) SaveExecution(exec models.MOrderExecution) error {
	_, err := d.DB.Exec(`
		INSERT INTO order_executions (execution_id, order_id, symbol, status, quantity, price, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, exec.ExecutionID, exec.OrderID, exec.Symbol, exec.Status, exec.Quantity, exec.Price, exec.Timestamp)
	return err
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) SaveConnectionEvent(event models.MConnectionEvent) error {
	_, err := d.DB.Exec(`
		INSERT INTO connection_events (session_id, user_id, event_type, detail, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, event.SessionID, event.UserID, event.EventType, event.Detail, event.Timestamp)
	return err
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) CleanupOldData() error {
	retentionDays := d.Config.Storage.RetentionDays
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).UnixMilli()

	d.Logger.Debug("Cleaning up data older than %d days (timestamp < %d)...", retentionDays, cutoff)

	if _, err := d.DB.Exec("DELETE FROM market_ticks WHERE timestamp < ?", cutoff); err != nil {
		d.Logger.Error("Cleanup market_ticks error: %v", err)
	}
	if _, err := d.DB.Exec("DELETE FROM connection_events WHERE created_at < ?", cutoff); err != nil {
		d.Logger.Error("Cleanup connection_events error: %v", err)
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
