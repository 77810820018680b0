package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"credex/internal/trust/models"
	"credex/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// PostgresStore persists trusted issuers in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) List(ctx context.Context) ([]models.TrustedIssuer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT did, name, added_by, added_at
		FROM trusted_issuers
		ORDER BY added_at, did
	`)
	if err != nil {
		return nil, fmt.Errorf("list trusted issuers: %w", err)
	}
	defer rows.Close()

	out := make([]models.TrustedIssuer, 0)
	for rows.Next() {
		var iss models.TrustedIssuer
		if err := rows.Scan(&iss.DID, &iss.Name, &iss.AddedBy, &iss.AddedAt); err != nil {
			return nil, fmt.Errorf("scan trusted issuer: %w", err)
		}
		out = append(out, iss)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trusted issuers: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Get(ctx context.Context, did string) (*models.TrustedIssuer, error) {
	var iss models.TrustedIssuer
	err := s.db.QueryRowContext(ctx, `
		SELECT did, name, added_by, added_at FROM trusted_issuers WHERE did = $1
	`, did).Scan(&iss.DID, &iss.Name, &iss.AddedBy, &iss.AddedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get trusted issuer: %w", err)
	}
	return &iss, nil
}

func (s *PostgresStore) Insert(ctx context.Context, issuer models.TrustedIssuer) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trusted_issuers (did, name, added_by, added_at) VALUES ($1, $2, $3, $4)
	`, issuer.DID, issuer.Name, issuer.AddedBy, issuer.AddedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert trusted issuer: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, did string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM trusted_issuers WHERE did = $1`, did)
	if err != nil {
		return fmt.Errorf("delete trusted issuer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete trusted issuer: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
