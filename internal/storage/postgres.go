package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsTable = "matcher_schema_migrations"

// PostgresStorage owns the connection pool shared by the report and match repositories
type PostgresStorage struct {
	db *sqlx.DB
}

// NewPostgresStorage connects to Postgres and applies pending migrations
func NewPostgresStorage(host, port, user, password, dbName, sslMode string) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbName, sslMode)

	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	storage := &PostgresStorage{db: db}
	if err := storage.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize db schema: %w", err)
	}

	return storage, nil
}

// NewPostgresStorageFromDB wraps an existing connection without migrating
func NewPostgresStorageFromDB(db *sqlx.DB) *PostgresStorage {
	return &PostgresStorage{db: db}
}

// Migrate applies the embedded schema migrations
func (s *PostgresStorage) Migrate() error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}

	driver, err := migratepg.WithInstance(s.db.DB, &migratepg.Config{MigrationsTable: migrationsTable})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = migrationLogger{}

	start := time.Now()
	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info().Msg("No new migrations to apply")
		return nil
	}
	if err != nil {
		version, dirty, _ := m.Version()
		log.Error().
			Err(err).
			Uint("version", version).
			Bool("dirty", dirty).
			Msg("Failed to apply migrations")
		return err
	}

	version, _, _ := m.Version()
	log.Info().
		Uint("version", version).
		Dur("duration", time.Since(start)).
		Msg("Database migrations applied")
	return nil
}

// Reports returns the report repository
func (s *PostgresStorage) Reports() *ReportRepository {
	return NewReportRepository(s.db)
}

// Matches returns the match repository
func (s *PostgresStorage) Matches() *MatchRepository {
	return NewMatchRepository(s.db)
}

// HealthCheck verifies the database connection
func (s *PostgresStorage) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the connection pool
func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

// migrationLogger forwards migrate output to zerolog
type migrationLogger struct{}

func (migrationLogger) Printf(format string, v ...any) {
	log.Debug().Msgf(format, v...)
}

func (migrationLogger) Verbose() bool {
	return false
}

// isUniqueViolation reports whether err is a Postgres unique_violation
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
