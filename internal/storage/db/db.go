package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is what the catalog repositories need from a pool or a transaction.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row

	// WithTx runs txFunc in a transaction. Inside a transaction it reuses it.
	WithTx(ctx context.Context, txFunc func(DB) error) error
}

// Pinger is implemented by the pool-backed client, not by transactions.
type Pinger interface {
	Ping(ctx context.Context) error
}

var (
	_ DB     = (*Client)(nil)
	_ Pinger = (*Client)(nil)
	_ DB     = (*txDB)(nil)
)

type Client struct {
	*pgxpool.Pool
}

func NewClient(pool *pgxpool.Pool) *Client {
	return &Client{Pool: pool}
}

func (c *Client) WithTx(ctx context.Context, txFunc func(DB) error) (err error) {
	tx, err := c.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			err = errors.Join(err, fmt.Errorf("rollback transaction: %w", rbErr))
		}
	}()

	if err = txFunc(&txDB{Tx: tx}); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type txDB struct {
	pgx.Tx
}

func (t *txDB) WithTx(_ context.Context, txFunc func(DB) error) error {
	return txFunc(t)
}
