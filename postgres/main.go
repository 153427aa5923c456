package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"psychebot/logger"
	"time"

	_ "github.com/lib/pq"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

type DatabaseConnectProps struct {
	Logger *logger.LogMiddleware
}

type Database struct {
	conn   *sql.DB
	logger *logger.LogMiddleware
}

func Connect(ctx context.Context, args DatabaseConnectProps) *Database {
	tracer := otel.Tracer("postgres/Connect")
	ctx, span := tracer.Start(ctx, "Connect")
	defer span.End()

	connectRetries := 5
	var conn *sql.DB
	var err error
	var connStr string

	logger := args.Logger.Logger(ctx)

	for connectRetries > 0 {
		conn, err, connStr = getConnection(ctx)
		if err == nil {
			logger.Info("[Postgres] Database client started")
			break
		}
		connectRetries -= 1
		sleepTime := 5
		logger.Error(
			"[Postgres] Could not connect to Postgres. Retrying after sleeping.",
			zap.Error(err),
			zap.Int("Retries Left", connectRetries),
			zap.Int("Sleep Time", sleepTime),
			zap.String("Connection String", connStr))
		time.Sleep(time.Second * time.Duration(sleepTime))
	}

	if connectRetries <= 0 {
		logger.Error("[Postgres] Failed to Connect to Postgres")
		span.RecordError(fmt.Errorf("failed to connect to Postgres"))
		os.Exit(1)
	}

	db := &Database{conn: conn, logger: args.Logger}
	if err := db.migrate(ctx); err != nil {
		logger.Error("[Postgres] Schema migration failed", zap.Error(err))
		span.RecordError(err)
		os.Exit(1)
	}

	return db
}

func getConnection(ctx context.Context) (*sql.DB, error, string) {
	tracer := otel.Tracer("postgres/getConnection")
	_, span := tracer.Start(ctx, "getConnection")
	defer span.End()

	host := os.Getenv("POSTGRES_DB_HOST")
	port := os.Getenv("POSTGRES_DB_PORT")
	user := os.Getenv("POSTGRES_DB_USER")
	password := os.Getenv("POSTGRES_DB_PASS")
	dbname := os.Getenv("POSTGRES_DB_NAME")

	sslMode := "disable"

	postgresqlDbInfo := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslMode,
	)

	db, err := sql.Open("postgres", postgresqlDbInfo)
	if err != nil {
		span.RecordError(err)
		return nil, err, postgresqlDbInfo
	}
	err = db.Ping()
	if err != nil {
		span.RecordError(err)
		return nil, err, postgresqlDbInfo
	}

	return db, nil, ""
}

// migrate creates the schema if it does not exist. Statements are idempotent
// so every boot can run them.
func (d *Database) migrate(ctx context.Context) error {
	tracer := otel.Tracer("postgres/migrate")
	ctx, span := tracer.Start(ctx, "migrate")
	defer span.End()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			chat_id BIGINT PRIMARY KEY,
			username TEXT,
			first_name TEXT,
			last_name TEXT,
			balance BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS test_results (
			id SERIAL PRIMARY KEY,
			chat_id BIGINT NOT NULL REFERENCES users(chat_id),
			test_name TEXT NOT NULL,
			report TEXT NOT NULL,
			answers JSONB,
			pdf_path TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS payment_screenshots (
			id SERIAL PRIMARY KEY,
			chat_id BIGINT NOT NULL REFERENCES users(chat_id),
			file_id TEXT NOT NULL,
			amount_toman BIGINT NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS user_packages (
			id SERIAL PRIMARY KEY,
			chat_id BIGINT NOT NULL REFERENCES users(chat_id),
			package_id TEXT NOT NULL,
			package_name TEXT NOT NULL,
			completed BOOLEAN NOT NULL DEFAULT FALSE,
			purchased_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS package_tests (
			id SERIAL PRIMARY KEY,
			user_package_id INTEGER NOT NULL REFERENCES user_packages(id),
			test_name TEXT NOT NULL,
			completed BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_test_results_chat_id ON test_results(chat_id)`,
		`CREATE INDEX IF NOT EXISTS idx_user_packages_chat_id ON user_packages(chat_id)`,
	}

	for _, stmt := range stmts {
		if _, err := d.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (d *Database) Close() error {
	return d.conn.Close()
}
