package warehouse

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"starlift/pkg/errors"
)

//go:embed schema.sql
var schemaDDL string

// Service provides warehouse database operations
type Service struct {
	db        *sql.DB
	config    Config
	connected bool
}

// Config holds warehouse connection configuration
type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string
	Timeout  time.Duration
}

// NewService creates a new warehouse service
func NewService(config Config) *Service {
	return &Service{config: config}
}

// Connect establishes a connection to the warehouse database
func (s *Service) Connect() error {
	if s.connected {
		return nil
	}

	return errors.RetryWithBackoff(context.Background(), func(ctx context.Context) error {
		dsn := fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
			s.config.Host,
			s.config.Port,
			s.config.Database,
			s.config.Username,
			s.config.Password,
			s.config.SSLMode,
		)

		db, err := sql.Open("postgres", dsn)
		if err != nil {
			return errors.ConnectionError("Failed to open warehouse connection", err).
				WithContext("host", s.config.Host).
				WithContext("database", s.config.Database)
		}

		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(10 * time.Minute)

		connCtx, cancel := s.getContext()
		defer cancel()

		if err := db.PingContext(connCtx); err != nil {
			db.Close()
			return errors.ConnectionError("Failed to connect to warehouse", err).
				WithContext("host", s.config.Host).
				AsRecoverable()
		}

		s.db = db
		s.connected = true
		return nil
	})
}

// Close closes the database connection
func (s *Service) Close() error {
	if !s.connected {
		return nil
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}

	s.connected = false
	return nil
}

// EnsureSchema applies the embedded warehouse DDL. The DDL is idempotent, so
// this is safe to call on every run.
func (s *Service) EnsureSchema(ctx context.Context) error {
	if !s.connected {
		return errors.New(errors.ErrCodeConnectionFailed, "Not connected to warehouse").
			WithSuggestions("Call Connect() before applying the schema")
	}

	if _, err := s.db.ExecContext(ctx, schemaDDL); err != nil {
		return errors.Wrap(err, errors.ErrCodeSchemaApply, "Failed to apply warehouse schema")
	}
	return nil
}

// BeginTx starts a new transaction
func (s *Service) BeginTx(ctx context.Context) (*sql.Tx, error) {
	if !s.connected {
		return nil, errors.New(errors.ErrCodeConnectionFailed, "Not connected to warehouse")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSQLTransaction, "Failed to begin transaction")
	}
	return tx, nil
}

// TestConnection pings the warehouse, connecting first if needed.
func (s *Service) TestConnection() error {
	if !s.connected {
		if err := s.Connect(); err != nil {
			return err
		}
	}

	ctx, cancel := s.getContext()
	defer cancel()

	return s.db.PingContext(ctx)
}

// DB returns the underlying database handle.
func (s *Service) DB() *sql.DB {
	return s.db
}

func (s *Service) getContext() (context.Context, context.CancelFunc) {
	timeout := s.config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}

// ValidateConfig validates the warehouse configuration
func ValidateConfig(config Config) error {
	if config.Host == "" {
		return fmt.Errorf("host is required")
	}
	if config.Database == "" {
		return fmt.Errorf("database is required")
	}
	if config.Username == "" {
		return fmt.Errorf("username is required")
	}
	return nil
}
