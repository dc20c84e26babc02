package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/R3E-Network/recordstore/internal/app/domain/user"
	"github.com/R3E-Network/recordstore/internal/app/storage"
)

const userColumns = `id, name, email, password_hash, role, created_at, updated_at`

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.Email = strings.ToLower(u.Email)
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (:id, :name, :email, :password_hash, :role, :created_at, :updated_at)
	`, u)
	if err != nil {
		return user.User{}, mapError("user", u.Email, err)
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	existing, err := s.GetUser(ctx, u.ID)
	if err != nil {
		return user.User{}, err
	}

	u.Email = strings.ToLower(u.Email)
	u.CreatedAt = existing.CreatedAt
	u.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET name = $2, email = $3, password_hash = $4, role = $5, updated_at = $6
		WHERE id = $1
	`, u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.UpdatedAt)
	if err != nil {
		return user.User{}, mapError("user", u.ID, err)
	}
	if err := requireAffected(result, "user", u.ID); err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	var u user.User
	if err := s.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = $1`, id); err != nil {
		return user.User{}, mapError("user", id, err)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User
	email = strings.ToLower(email)
	if err := s.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE email = $1`, email); err != nil {
		return user.User{}, mapError("user", email, err)
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]user.User, error) {
	users := []user.User{}
	if err := s.db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users ORDER BY created_at`); err != nil {
		return nil, err
	}
	return users, nil
}

// DeleteUser returns the stock held by the user's cart before removing the
// user; the cart and its lines go with the user through ON DELETE CASCADE.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		var orders int
		if err := tx.GetContext(ctx, &orders, `SELECT COUNT(*) FROM orders WHERE user_id = $1`, id); err != nil {
			return mapError("user", id, err)
		}
		if orders > 0 {
			return fmt.Errorf("user %s has %d orders: %w", id, orders, storage.ErrConflict)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE records r
			SET stock = r.stock + d.amount, updated_at = $2
			FROM cart_details d
			JOIN carts c ON c.id = d.cart_id
			WHERE c.user_id = $1 AND r.id = d.record_id
		`, id, time.Now().UTC()); err != nil {
			return mapError("user", id, err)
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
		if err != nil {
			return mapError("user", id, err)
		}
		return requireAffected(result, "user", id)
	})
}
