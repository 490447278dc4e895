package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is satisfied by *pgxpool.Pool, *pgxpool.Conn and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// privilege identifies which credential profile a handle was opened with.
// Transactions are stored on the context per privilege so a repository bound
// to one handle never picks up a transaction opened on the other.
type privilege string

const (
	privUser  privilege = "user"
	privAdmin privilege = "admin"
)

type txKey struct{ priv privilege }

type handle struct {
	pool *pgxpool.Pool
	priv privilege
}

// Conn returns the active transaction for this handle, or the pool.
func (h *handle) Conn(ctx context.Context) Querier {
	if tx := txFromContext(ctx, h.priv); tx != nil {
		return tx
	}
	return h.pool
}

// Pool exposes the underlying pool for health checks and shutdown.
func (h *handle) Pool() *pgxpool.Pool {
	return h.pool
}

// WithTx runs fn inside a transaction. Repositories built on the same handle
// join it through Conn(ctx). Nested calls reuse the outer transaction.
func (h *handle) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx, h.priv) != nil {
		return fn(ctx)
	}

	tx, err := h.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(context.WithValue(ctx, txKey{h.priv}, tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// UserDB is the restricted handle opened with the user-scoped credentials.
// Patient, chart and document repositories only accept this type.
type UserDB struct{ handle }

// AdminDB is the privileged handle opened with the service credentials.
// User administration and invitation repositories only accept this type.
type AdminDB struct{ handle }

func NewUserDB(pool *pgxpool.Pool) *UserDB {
	return &UserDB{handle{pool: pool, priv: privUser}}
}

func NewAdminDB(pool *pgxpool.Pool) *AdminDB {
	return &AdminDB{handle{pool: pool, priv: privAdmin}}
}

func txFromContext(ctx context.Context, priv privilege) pgx.Tx {
	tx, _ := ctx.Value(txKey{priv}).(pgx.Tx)
	return tx
}

// TxFromContext returns the user-handle transaction carried by ctx, if any.
func TxFromContext(ctx context.Context) pgx.Tx {
	return txFromContext(ctx, privUser)
}

// IsUniqueViolation reports whether err is a Postgres unique constraint error.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
