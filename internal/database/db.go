package database

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/heartline/internal/apperr"
	"github.com/sirupsen/logrus"
)

//go:embed schema.sql
var schema string

// Connect opens a pool against connStr and verifies it with a ping.
func Connect(ctx context.Context, connStr string, logger logrus.FieldLogger) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to parse pgx config: %w", err)
	}
	config.MaxConns = 20
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 10 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	logger.WithField("host", config.ConnConfig.Host).Info("connected to database")
	return pool, nil
}

// Store is the Postgres Event/History Store.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps a pool. A nil pool yields a store whose every call fails with BackendUnavailable.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate applies the embedded schema. Statements are idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, schema)
	return translate(err, "migrate schema")
}

func (s *Store) ready() error {
	if s == nil || s.pool == nil {
		return apperr.New(apperr.BackendUnavailable, "database is not configured")
	}
	return nil
}

// tx runs f inside a transaction on the pool.
func (s *Store) tx(ctx context.Context, f func(tx pgx.Tx) error) error {
	if err := s.ready(); err != nil {
		return err
	}
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, f)
}

// translate maps driver errors onto the taxonomy. what names the entity for NotFound messages.
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.New(apperr.NotFound, what+" not found")
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return &apperr.Error{Kind: apperr.Conflict, Code: apperr.CodeUpdateConflict, Message: what + " conflicts with an existing row", Err: err}
		case "23503":
			return &apperr.Error{Kind: apperr.NotFound, Code: string(apperr.NotFound), Message: what + " references a missing row", Err: err}
		}
		return apperr.Wrap(apperr.Internal, err, what)
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.Timeout(err) {
		return apperr.Wrap(apperr.BackendUnavailable, err, "database unreachable")
	}
	return apperr.Wrap(apperr.Internal, err, what)
}

func raceLost(msg string) error {
	return apperr.WithCode(apperr.Conflict, apperr.CodeUpdateConflict, msg)
}

type scanner interface {
	Scan(dest ...any) error
}
