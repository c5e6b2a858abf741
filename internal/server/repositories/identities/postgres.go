package identities

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/khazana/internal/common"
	"github.com/dmitrijs2005/khazana/internal/dbx"
	"github.com/dmitrijs2005/khazana/internal/server/models"
	"github.com/dmitrijs2005/khazana/internal/server/scope"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const identityColumns = `id, username, email_address, credential_hash, scopes, first_login, created_by, active, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, identity *models.Identity) (*models.Identity, error) {
	query :=
		`INSERT INTO identities (id, username, email_address, credential_hash, scopes, first_login, created_by, active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		identity.ID,
		identity.Username,
		nullString(identity.EmailAddress),
		identity.CredentialHash,
		identity.Scopes.String(),
		identity.FirstLogin,
		nullString(identity.CreatedBy),
		identity.Active,
	).Scan(&identity.CreatedAt)

	if err != nil {
		return nil, translate(err)
	}

	return identity, nil
}

func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*models.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities
		 WHERE username = $1
		 `

	identity, err := scanIdentity(r.db.QueryRowContext(ctx, query, username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return identity, nil
}

func (r *PostgresRepository) ExistsByUsernameOrEmail(ctx context.Context, username string, email *string) (bool, error) {
	query :=
		`SELECT EXISTS (
		   SELECT 1 FROM identities
		   WHERE username = $1 OR ($2::text IS NOT NULL AND email_address = $2)
		 )
		 `

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, username, nullString(email)).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return exists, nil
}

func (r *PostgresRepository) List(ctx context.Context, filter models.IdentityFilter) ([]*models.Identity, error) {
	var (
		sb   strings.Builder
		args []any
	)

	sb.WriteString(`SELECT ` + identityColumns + ` FROM identities WHERE active`)

	if len(filter.ExcludeUsernames) > 0 {
		placeholders := make([]string, len(filter.ExcludeUsernames))
		for i, u := range filter.ExcludeUsernames {
			args = append(args, u)
			placeholders[i] = "$" + strconv.Itoa(len(args))
		}
		sb.WriteString(` AND username NOT IN (` + strings.Join(placeholders, ", ") + `)`)
	}

	if filter.CreatedBy != nil {
		args = append(args, *filter.CreatedBy)
		sb.WriteString(` AND created_by = $` + strconv.Itoa(len(args)))
	}

	sb.WriteString(` ORDER BY username`)

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Identity
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, identity)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) SetScopes(ctx context.Context, id string, scopes scope.Set) error {
	query :=
		`UPDATE identities SET scopes = $2
		 WHERE id = $1 AND active
		 `
	return r.execOne(ctx, query, id, scopes.String())
}

func (r *PostgresRepository) CompletePasswordChange(ctx context.Context, id, credentialHash, email string) error {
	query :=
		`UPDATE identities SET credential_hash = $2, email_address = $3, first_login = FALSE
		 WHERE id = $1 AND active
		 `
	return r.execOne(ctx, query, id, credentialHash, email)
}

func (r *PostgresRepository) Deactivate(ctx context.Context, id string) error {
	query :=
		`UPDATE identities SET active = FALSE
		 WHERE id = $1 AND active
		 `
	return r.execOne(ctx, query, id)
}

func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return translate(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row rowScanner) (*models.Identity, error) {
	var (
		identity  models.Identity
		email     sql.NullString
		createdBy sql.NullString
		scopes    string
	)

	err := row.Scan(
		&identity.ID,
		&identity.Username,
		&email,
		&identity.CredentialHash,
		&scopes,
		&identity.FirstLogin,
		&createdBy,
		&identity.Active,
		&identity.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	identity.EmailAddress = stringPtr(email)
	identity.CreatedBy = stringPtr(createdBy)
	identity.Scopes = scope.FromStrings(splitScopes(scopes))

	return &identity, nil
}

func splitScopes(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", common.ErrAlreadyExists, pgErr.ConstraintName)
	}
	return fmt.Errorf("db error: %w", err)
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
