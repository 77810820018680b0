package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"credex/internal/credential/models"
	id "credex/pkg/domain"
)

// PostgresStore persists the credential collection in PostgreSQL. SaveAll
// replaces the table contents in one transaction; position keeps iteration order.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed credential persistence.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) LoadAll(ctx context.Context) ([]*models.Credential, error) {
	query := `
		SELECT id, original_format, status, attributes, schema_id, cred_def_id,
		       is_revoked, created_at, updated_at
		FROM credentials
		ORDER BY position
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	defer rows.Close()

	records := make([]*models.Credential, 0)
	for rows.Next() {
		var (
			c         models.Credential
			credID    string
			attrsJSON []byte
		)
		if err := rows.Scan(&credID, &c.OriginalFormat, &c.Status, &attrsJSON,
			&c.SchemaID, &c.CredentialDefinitionID, &c.IsRevoked, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		var attrs []models.Attribute
		if err := json.Unmarshal(attrsJSON, &attrs); err != nil {
			return nil, fmt.Errorf("decode attributes of %s: %w", credID, err)
		}
		c.ID = id.CredentialID(credID)
		c.SetAttributes(attrs)
		records = append(records, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}
	return records, nil
}

func (s *PostgresStore) SaveAll(ctx context.Context, records []*models.Credential) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save credentials: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM credentials`); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	insert := `
		INSERT INTO credentials (id, position, original_format, status, attributes,
			schema_id, cred_def_id, is_revoked, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	for i, c := range records {
		var attrsJSON []byte
		attrsJSON, err = json.Marshal(c.Attributes)
		if err != nil {
			return fmt.Errorf("encode attributes of %s: %w", c.ID, err)
		}
		if _, err = tx.ExecContext(ctx, insert,
			c.ID.String(), i, string(c.OriginalFormat), string(c.Status), attrsJSON,
			c.SchemaID, c.CredentialDefinitionID, c.IsRevoked, c.CreatedAt, c.UpdatedAt,
		); err != nil {
			return fmt.Errorf("insert credential %s: %w", c.ID, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit credentials: %w", err)
	}
	return nil
}
