// AngelaMos | 2026
// repository.go

package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/carterperez-dev/templates/lms-backend/internal/core"
)

const columns = `id, email, username, first_name, last_name, password_hash,
	account_type, role, ip_address,
	is_email_verified, verification_token, verification_token_expires, token_is_used,
	login_retries, last_login,
	password_reset_token, password_reset_expires, password_reset_retries, password_changed_at,
	is_suspended, is_deleted, created_at, updated_at`

// Store is the durable record of accounts. It holds no business rules;
// misses wrap core.ErrNotFound and unique violations wrap core.ErrDuplicateKey.
type Store interface {
	Create(ctx context.Context, a *Account) error
	GetByID(ctx context.Context, id string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByUsername(ctx context.Context, username string) (*Account, error)
	FindByEmailOrUsername(ctx context.Context, email, username string) (*Account, error)
	FindByVerificationToken(ctx context.Context, secret string) (*Account, error)
	FindByPasswordResetToken(ctx context.Context, secret string, now time.Time) (*Account, error)
	Update(ctx context.Context, id string, u Update) (*Account, error)
	List(ctx context.Context, params ListParams) ([]Account, int, error)
	Stats(ctx context.Context) (Stats, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Store {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, a *Account) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	query := `
		INSERT INTO users (id, email, username, first_name, last_name, password_hash,
			account_type, role, ip_address, verification_token, verification_token_expires)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at, last_login`

	row := struct {
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
		LastLogin time.Time `db:"last_login"`
	}{}

	err := r.db.GetContext(ctx, &row, query,
		a.ID,
		a.Email,
		a.Username,
		a.FirstName,
		a.LastName,
		a.PasswordHash,
		a.AccountType,
		a.Role,
		a.IPAddress,
		a.VerificationToken,
		a.VerificationTokenExpires,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("create account: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create account: %w", err)
	}

	a.CreatedAt = row.CreatedAt
	a.UpdatedAt = row.UpdatedAt
	a.LastLogin = row.LastLogin
	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*Account, error) {
	query := `SELECT ` + columns + ` FROM users WHERE id = $1`
	return r.getOne(ctx, "get account", query, id)
}

// FindByEmail includes soft-deleted rows so sign-in can report the
// account's standing. A live row wins over a tombstoned one.
func (r *repository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	query := `SELECT ` + columns + ` FROM users
		WHERE email = $1
		ORDER BY is_deleted ASC, created_at DESC
		LIMIT 1`
	return r.getOne(ctx, "find account by email", query, email)
}

func (r *repository) FindByUsername(ctx context.Context, username string) (*Account, error) {
	query := `SELECT ` + columns + ` FROM users
		WHERE username = $1
		ORDER BY is_deleted ASC, created_at DESC
		LIMIT 1`
	return r.getOne(ctx, "find account by username", query, username)
}

func (r *repository) FindByEmailOrUsername(
	ctx context.Context,
	email, username string,
) (*Account, error) {
	query := `SELECT ` + columns + ` FROM users
		WHERE (email = $1 OR username = $2) AND is_deleted = false
		ORDER BY (email = $1) DESC
		LIMIT 1`
	return r.getOne(ctx, "find account by email or username", query, email, username)
}

func (r *repository) FindByVerificationToken(
	ctx context.Context,
	secret string,
) (*Account, error) {
	query := `SELECT ` + columns + ` FROM users WHERE verification_token = $1`
	return r.getOne(ctx, "find account by verification token", query, secret)
}

// FindByPasswordResetToken only matches unexpired secrets on accounts that
// are not suspended.
func (r *repository) FindByPasswordResetToken(
	ctx context.Context,
	secret string,
	now time.Time,
) (*Account, error) {
	query := `SELECT ` + columns + ` FROM users
		WHERE password_reset_token = $1
		  AND password_reset_expires > $2
		  AND is_suspended = false`
	return r.getOne(ctx, "find account by reset token", query, secret, now)
}

func (r *repository) Update(ctx context.Context, id string, u Update) (*Account, error) {
	if u.IsEmpty() {
		return r.GetByID(ctx, id)
	}

	var sets []string
	var args []any
	argIdx := 1

	set := func(column string, value any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, argIdx))
		args = append(args, value)
		argIdx++
	}

	if u.PasswordHash != nil {
		set("password_hash", *u.PasswordHash)
	}
	if u.IsEmailVerified != nil {
		set("is_email_verified", *u.IsEmailVerified)
	}
	if u.TokenIsUsed != nil {
		set("token_is_used", *u.TokenIsUsed)
	}
	if u.LoginRetries != nil {
		set("login_retries", *u.LoginRetries)
	}
	if u.LastLogin != nil {
		set("last_login", *u.LastLogin)
	}
	if u.PasswordResetToken != nil {
		// empty string clears the secret
		var token any
		if *u.PasswordResetToken != "" {
			token = *u.PasswordResetToken
		}
		set("password_reset_token", token)
	}
	if u.PasswordResetExpires != nil {
		set("password_reset_expires", *u.PasswordResetExpires)
	}
	if u.PasswordResetRetries != nil {
		set("password_reset_retries", *u.PasswordResetRetries)
	}
	if u.PasswordChangedAt != nil {
		set("password_changed_at", *u.PasswordChangedAt)
	}
	if u.IsSuspended != nil {
		set("is_suspended", *u.IsSuspended)
	}
	if u.IsDeleted != nil {
		set("is_deleted", *u.IsDeleted)
	}
	if u.IPAddress != nil {
		set("ip_address", *u.IPAddress)
	}

	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf(
		`UPDATE users SET %s WHERE id = $%d RETURNING `+columns,
		strings.Join(sets, ", "),
		argIdx,
	)

	return r.getOne(ctx, "update account", query, args...)
}

func (r *repository) List(
	ctx context.Context,
	params ListParams,
) ([]Account, int, error) {
	params.Normalize()

	var conditions []string
	var args []any
	argIdx := 1

	if params.Role != "" {
		conditions = append(conditions, fmt.Sprintf("role = $%d", argIdx))
		args = append(args, params.Role)
		argIdx++
	}

	if params.Suspended != nil {
		conditions = append(conditions, fmt.Sprintf("is_suspended = $%d", argIdx))
		args = append(args, *params.Suspended)
		argIdx++
	}

	if params.Deleted != nil {
		conditions = append(conditions, fmt.Sprintf("is_deleted = $%d", argIdx))
		args = append(args, *params.Deleted)
		argIdx++
	}

	whereClause := "TRUE"
	if len(conditions) > 0 {
		whereClause = strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf(
		"SELECT COUNT(*) FROM users WHERE %s",
		whereClause,
	)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count accounts: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT `+columns+`
		FROM users
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		whereClause, argIdx, argIdx+1)

	args = append(args, params.PageSize, params.Offset())

	var accounts []Account
	if err := r.db.SelectContext(ctx, &accounts, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list accounts: %w", err)
	}

	return accounts, total, nil
}

func (r *repository) Stats(ctx context.Context) (Stats, error) {
	query := `
		SELECT COUNT(*) AS total,
		       COUNT(*) FILTER (WHERE is_email_verified) AS verified,
		       COUNT(*) FILTER (WHERE is_suspended) AS suspended,
		       COUNT(*) FILTER (WHERE is_deleted) AS deleted
		FROM users`

	var s Stats
	if err := r.db.GetContext(ctx, &s, query); err != nil {
		return Stats{}, fmt.Errorf("account stats: %w", err)
	}
	return s, nil
}

func (r *repository) getOne(
	ctx context.Context,
	op string,
	query string,
	args ...any,
) (*Account, error) {
	var a Account
	err := r.db.GetContext(ctx, &a, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &a, nil
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
