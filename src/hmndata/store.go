package hmndata

import (
	"context"
	"errors"

	"git.handmade.network/hmn/postmerge/src/db"
	"git.handmade.network/hmn/postmerge/src/merge"
	"git.handmade.network/hmn/postmerge/src/oops"
	"github.com/jackc/pgx/v5"
)

/*
The Postgres side of the merge engine. Store begins transactions for the
merger; the free functions in this package work on any connection or
transaction.
*/
type Store struct {
	conn db.ConnOrTx
}

var _ merge.Database = &Store{}

func NewStore(conn db.ConnOrTx) *Store {
	return &Store{conn: conn}
}

func (s *Store) Begin(ctx context.Context) (merge.Tx, error) {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return nil, oops.New(err, "failed to begin transaction")
	}
	return &Tx{tx: tx}, nil
}

// A merge transaction. Wraps a pgx transaction.
type Tx struct {
	tx pgx.Tx
}

var _ merge.Tx = &Tx{}

func (t *Tx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *Tx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}
