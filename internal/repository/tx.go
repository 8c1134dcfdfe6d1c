package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type txKey struct{}

// TxManager runs a unit of work inside one database transaction. The transaction
// travels on the context so every repository call made with that context joins it.
type TxManager struct {
	db        *sqlx.DB
	isolation sql.IsolationLevel
}

// NewTxManager constructs a TxManager. isolation accepts "serializable",
// "repeatable_read", "read_committed"; anything else uses the driver default.
func NewTxManager(db *sqlx.DB, isolation string) *TxManager {
	return &TxManager{db: db, isolation: parseIsolation(isolation)}
}

// WithinTx executes fn inside a transaction, committing when fn returns nil and
// rolling back otherwise. Nested calls reuse the outer transaction.
func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := txFromContext(ctx); ok {
		return fn(ctx)
	}

	tx, err := m.db.BeginTxx(ctx, &sql.TxOptions{Isolation: m.isolation})
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger tx: %w", err)
	}
	return nil
}

func txFromContext(ctx context.Context) (*sqlx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*sqlx.Tx)
	return tx, ok && tx != nil
}

// conn returns the transaction bound to ctx, or the pool.
func conn(ctx context.Context, db *sqlx.DB) sqlx.ExtContext {
	if tx, ok := txFromContext(ctx); ok {
		return tx
	}
	return db
}

func parseIsolation(raw string) sql.IsolationLevel {
	switch raw {
	case "serializable":
		return sql.LevelSerializable
	case "repeatable_read":
		return sql.LevelRepeatableRead
	case "read_committed":
		return sql.LevelReadCommitted
	default:
		return sql.LevelDefault
	}
}
