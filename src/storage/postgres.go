package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"market-stream/src/logger"
	"market-stream/src/models"

	_ "github.com/lib/pq"
)

// -----------------------------------------------------------------------------

type PostgresDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Schema string
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewPostgresDB(cfg *models.MConfig, log *logger.Logger) (*PostgresDB, error) {
	// Schema named after the executable keeps several deployments apart on one
	// cluster
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable name: %w", err)
	}
	name := filepath.Base(exe)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	return &PostgresDB{
		Config: cfg,
		Schema: name,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Initialize() error {
	dsn := d.Config.Storage.DBConnectionString
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	d.DB = db

	// Create Schema
	if _, err := d.DB.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", d.Schema, err)
	}

	if err := d.createTables(); err != nil {
		return err
	}

	d.Logger.Info("PostgresDB initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) table(name string) string {
	return fmt.Sprintf(`"%s".%s`, d.Schema, name)
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) createTables() error {
	// market_ticks is feed data: recreated on every start
	if _, err := d.DB.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", d.table("market_ticks"))); err != nil {
		return fmt.Errorf("failed to drop market_ticks: %w", err)
	}

	query := fmt.Sprintf(`
		CREATE TABLE %s (
			symbol TEXT,
			timestamp BIGINT,
			price DOUBLE PRECISION,
			change DOUBLE PRECISION,
			change_percent DOUBLE PRECISION,
			volume DOUBLE PRECISION,
			bid DOUBLE PRECISION,
			ask DOUBLE PRECISION,
			PRIMARY KEY (symbol, timestamp)
		);
	`, d.table("market_ticks"))
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create market_ticks: %w", err)
	}

	query = fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			order_id TEXT PRIMARY KEY,
			user_id BIGINT,
			symbol TEXT,
			side TEXT,
			order_type TEXT,
			quantity DOUBLE PRECISION,
			price DOUBLE PRECISION,
			created_at BIGINT
		);
	`, d.table("orders"))
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create orders: %w", err)
	}

	query = fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			execution_id TEXT PRIMARY KEY,
			order_id TEXT,
			symbol TEXT,
			status TEXT,
			quantity DOUBLE PRECISION,
			price DOUBLE PRECISION,
			executed_at BIGINT
		);
	`, d.table("order_executions"))
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create order_executions: %w", err)
	}

	query = fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			session_id TEXT,
			user_id BIGINT,
			event_type TEXT,
			detail TEXT,
			created_at BIGINT
		);
	`, d.table("connection_events"))
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create connection_events: %w", err)
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) SaveTicksBulk(ticks []models.MPriceTick) error {
	if len(ticks) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(fmt.Sprintf(`
		INSERT INTO %s (symbol, timestamp, price, change, change_percent, volume, bid, ask)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (symbol, timestamp) DO NOTHING
	`, d.table("market_ticks")))
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

func (d *PostgresDB) SaveOrder(order models.MOrder) error {
	_, err := d.DB.Exec(fmt.Sprintf(`
		INSERT INTO %s (order_id, user_id, symbol, side, order_type, quantity, price, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, d.table("orders")), order.OrderID, order.UserID, order.Symbol, order.Side, order.OrderType, order.Quantity, order.Price, order.CreatedAt)
	return err
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) SaveExecution(exec models.MOrderExecution) error {
	_, err := d.DB.Exec(fmt.Sprintf(`
		INSERT INTO %s (execution_id, order_id, symbol, status, quantity, price, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, d.table("order_executions")), exec.ExecutionID, exec.OrderID, exec.Symbol, exec.Status, exec.Quantity, exec.Price, exec.Timestamp)
	return err
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) SaveConnectionEvent(event models.MConnectionEvent) error {
	_, err := d.DB.Exec(fmt.Sprintf(`
		INSERT INTO %s (session_id, user_id, event_type, detail, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, d.table("connection_events")), event.SessionID, event.UserID, event.EventType, event.Detail, event.Timestamp)
	return err
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) CleanupOldData() error {
	retentionDays := d.Config.Storage.RetentionDays
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).UnixMilli()

	if _, err := d.DB.Exec(fmt.Sprintf("DELETE FROM %s WHERE timestamp < $1", d.table("market_ticks")), cutoff); err != nil {
		d.Logger.Error("Cleanup market_ticks error: %v", err)
	}
	if _, err := d.DB.Exec(fmt.Sprintf("DELETE FROM %s WHERE created_at < $1", d.table("connection_events")), cutoff); err != nil {
		d.Logger.Error("Cleanup connection_events error: %v", err)
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
