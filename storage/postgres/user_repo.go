package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-session-server/internal/errors"
	"github.com/jrsteele09/go-session-server/users"
	"github.com/pkg/errors"
)

var _ users.Repo = (*UserRepo)(nil)

type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

const userColumns = `id, email, username, password_hash, first_name, last_name, phone,
	date_joined, last_login, verified, blocked, mf_type`

func (r *UserRepo) Create(ctx context.Context, u *users.User) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.DateJoined.IsZero() {
		u.DateJoined = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		u.ID, u.Email, u.Username, u.PasswordHash, u.FirstName, u.LastName, u.Phone,
		u.DateJoined, nullTime(u.LastLogin), u.Verified, u.Blocked, mfType(u.MFType))
	if isUniqueViolation(err) {
		return apperrors.Conflict("email already registered", apperrors.ErrUserExists)
	}
	return dbError(err, "[UserRepo.Create]")
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*users.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row, "[UserRepo.GetByID]")
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row, "[UserRepo.GetByEmail]")
}

func (r *UserRepo) Update(ctx context.Context, u *users.User) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET
		email = $2, username = $3, password_hash = $4, first_name = $5, last_name = $6,
		phone = $7, last_login = $8, verified = $9, blocked = $10, mf_type = $11
		WHERE id = $1`,
		u.ID, u.Email, u.Username, u.PasswordHash, u.FirstName, u.LastName,
		u.Phone, nullTime(u.LastLogin), u.Verified, u.Blocked, mfType(u.MFType))
	if isUniqueViolation(err) {
		return apperrors.Conflict("email already registered", apperrors.ErrUserExists)
	}
	if err != nil {
		return dbError(err, "[UserRepo.Update]")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperrors.NotFound("user not found", apperrors.ErrUserNotFound)
	}
	return nil
}

func scanUser(row *sql.Row, op string) (*users.User, error) {
	var (
		u         users.User
		lastLogin sql.NullTime
		mf        string
	)
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Phone,
		&u.DateJoined, &lastLogin, &u.Verified, &u.Blocked, &mf)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("user not found", apperrors.ErrUserNotFound)
	}
	if err != nil {
		return nil, dbError(err, op)
	}
	if lastLogin.Valid {
		u.LastLogin = lastLogin.Time
	}
	u.MFType = users.MFAuthType(mf)
	return &u, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func mfType(t users.MFAuthType) string {
	if t == "" {
		return string(users.MFNone)
	}
	return string(t)
}
