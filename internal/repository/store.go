package repository

import (
	"context"
	_ "embed"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

//go:embed schema.sql
var schemaSQL string

// Migrate creates the tables if they do not exist yet.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, schemaSQL)
	return err
}

type postgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore returns a Store backed by Postgres through sqlx.
func NewPostgresStore(db *sqlx.DB) Store {
	return &postgresStore{db: db}
}

func (s *postgresStore) Repos() Repos {
	return newRepos(s.db)
}

func (s *postgresStore) WithinTx(ctx context.Context, fn func(r Repos) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(newRepos(tx)); err != nil {
		return err
	}

	return tx.Commit()
}

func newRepos(db sqlx.ExtContext) Repos {
	return Repos{
		Loans:         NewLoanRepository(db),
		Payments:      NewPaymentRepository(db),
		Disbursements: NewDisbursementRepository(db),
		FeeConfigs:    NewFeeConfigRepository(db),
	}
}

const uniqueViolation = "23505"

func uniqueViolationOn(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == uniqueViolation && pqErr.Constraint == constraint
}
