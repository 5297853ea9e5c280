package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/lib/pq"
	"github.com/sony/gobreaker"

	"github.com/prescrimed/tenant-access-service/internal/core/domain"
	"github.com/prescrimed/tenant-access-service/internal/core/ports"
)

const userColumns = `id, empresa_id, email, name, role, permissions, active, password_hash, created_at`

type UserRepository struct {
	store
}

var _ ports.UserRepository = (*UserRepository)(nil)

func NewUserRepository(db *sql.DB, cb *gobreaker.CircuitBreaker) *UserRepository {
	return &UserRepository{store{db: db, cb: cb}}
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = $1`, strings.ToLower(email))
}

func (r *UserRepository) findOne(ctx context.Context, query string, arg string) (*domain.User, error) {
	var user *domain.User
	err := r.run(func() error {
		u, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
		if err != nil {
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u           domain.User
		role        string
		permissions []string
	)
	err := row.Scan(&u.ID, &u.TenantID, &u.Email, &u.Name, &role, pq.Array(&permissions), &u.Active, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	// A role outside the closed set gets the least privileged one.
	parsed, err := domain.ParseRole(role)
	if err != nil {
		parsed = domain.RoleUser
	}
	u.Role = parsed
	u.Permissions = domain.ParsePermissionSet(permissions)
	return &u, nil
}
