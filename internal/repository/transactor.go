package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/rpattn/sparkify/internal/db"
)

// Transactor runs fn against a StarStore scoped to a single transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
type Transactor interface {
	InTx(ctx context.Context, fn func(StarStore) error) error
}

type sessionTransactor struct {
	session *db.Session
}

// NewSessionTransactor opens every transaction on the run's single session.
func NewSessionTransactor(session *db.Session) Transactor {
	return &sessionTransactor{session: session}
}

func (t *sessionTransactor) InTx(ctx context.Context, fn func(StarStore) error) error {
	return t.session.WithTx(ctx, func(tx pgx.Tx) error {
		return fn(NewStarRepository(tx))
	})
}
