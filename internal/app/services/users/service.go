package users

import (
	"context"
	stderrors "errors"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/R3E-Network/recordstore/internal/app/domain/user"
	"github.com/R3E-Network/recordstore/internal/app/services"
	"github.com/R3E-Network/recordstore/internal/app/storage"
	"github.com/R3E-Network/recordstore/internal/errors"
	"github.com/R3E-Network/recordstore/internal/logging"
)

const (
	minPasswordLen = 8
	// bcrypt ignores input past 72 bytes.
	maxPasswordLen = 72
)

// Service manages user accounts and credentials.
type Service struct {
	users    storage.UserStore
	carts    storage.CartStore
	log      *logging.Logger
	hashCost int
}

// New constructs a user service.
func New(users storage.UserStore, carts storage.CartStore, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("users")
	}
	return &Service{users: users, carts: carts, log: log, hashCost: bcrypt.DefaultCost}
}

// WithHashCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func (s *Service) WithHashCost(cost int) *Service {
	s.hashCost = cost
	return s
}

// Register creates a customer account together with its cart.
func (s *Service) Register(ctx context.Context, name, email, password string) (user.User, error) {
	return s.create(ctx, name, email, password, user.RoleUser)
}

// EnsureAdmin creates an administrator, or promotes and re-keys an existing
// account with the same email.
func (s *Service) EnsureAdmin(ctx context.Context, name, email, password string) (user.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return user.User{}, err
	}
	existing, err := s.users.GetUserByEmail(ctx, email)
	if stderrors.Is(err, storage.ErrNotFound) {
		return s.create(ctx, name, email, password, user.RoleAdmin)
	}
	if err != nil {
		return user.User{}, services.StoreError(err, "user", email)
	}
	hash, err := s.hash(password)
	if err != nil {
		return user.User{}, err
	}
	existing.Role = user.RoleAdmin
	existing.PasswordHash = hash
	updated, err := s.users.UpdateUser(ctx, existing)
	if err != nil {
		return user.User{}, services.StoreError(err, "user", existing.ID)
	}
	s.log.WithField("user_id", updated.ID).Info("admin account refreshed")
	return updated, nil
}

func (s *Service) create(ctx context.Context, name, email, password string, role user.Role) (user.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return user.User{}, errors.Required("name")
	}
	email, err := normalizeEmail(email)
	if err != nil {
		return user.User{}, err
	}
	hash, err := s.hash(password)
	if err != nil {
		return user.User{}, err
	}

	created, err := s.users.CreateUser(ctx, user.User{Name: name, Email: email, PasswordHash: hash, Role: role})
	if stderrors.Is(err, storage.ErrConflict) {
		return user.User{}, errors.Conflict("email already registered").WithDetails("field", "email")
	}
	if err != nil {
		return user.User{}, services.StoreError(err, "user", email)
	}

	if _, err := s.carts.EnsureCart(ctx, created.ID); err != nil {
		if delErr := s.users.DeleteUser(ctx, created.ID); delErr != nil {
			s.log.WithError(delErr).WithField("user_id", created.ID).Error("roll back user after cart failure")
		}
		return user.User{}, services.StoreError(err, "cart for user", created.ID)
	}

	s.log.WithContext(ctx).WithField("new_user_id", created.ID).WithField("role", role).Info("user registered")
	return created, nil
}

// Authenticate returns the user owning email when password matches. Unknown
// emails and wrong passwords produce the same error.
func (s *Service) Authenticate(ctx context.Context, email, password string) (user.User, error) {
	invalid := errors.Unauthorized("invalid email or password")
	u, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if stderrors.Is(err, storage.ErrNotFound) {
		return user.User{}, invalid
	}
	if err != nil {
		return user.User{}, services.StoreError(err, "user", email)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.log.LogSecurityEvent(ctx, "login_failed", map[string]interface{}{"user_id": u.ID})
		return user.User{}, invalid
	}
	return u, nil
}

func (s *Service) Get(ctx context.Context, id string) (user.User, error) {
	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		return user.User{}, services.StoreError(err, "user", id)
	}
	return u, nil
}

func (s *Service) List(ctx context.Context) ([]user.User, error) {
	list, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, services.StoreError(err, "users", "")
	}
	return list, nil
}

// Update carries optional changes; nil fields are left as they are.
type Update struct {
	Name     *string    `json:"name"`
	Email    *string    `json:"email"`
	Password *string    `json:"password"`
	Role     *user.Role `json:"role"`
}

// Update applies upd to the user. Only admins may change roles.
func (s *Service) Update(ctx context.Context, id string, upd Update, byAdmin bool) (user.User, error) {
	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		return user.User{}, services.StoreError(err, "user", id)
	}

	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return user.User{}, errors.Required("name")
		}
		u.Name = name
	}
	if upd.Email != nil {
		email, err := normalizeEmail(*upd.Email)
		if err != nil {
			return user.User{}, err
		}
		u.Email = email
	}
	if upd.Password != nil {
		hash, err := s.hash(*upd.Password)
		if err != nil {
			return user.User{}, err
		}
		u.PasswordHash = hash
	}
	if upd.Role != nil && *upd.Role != u.Role {
		if !byAdmin {
			return user.User{}, errors.Forbidden("only administrators can change roles")
		}
		if !upd.Role.Valid() {
			return user.User{}, errors.Validation("role", "must be user or admin")
		}
		u.Role = *upd.Role
	}

	updated, err := s.users.UpdateUser(ctx, u)
	if stderrors.Is(err, storage.ErrConflict) {
		return user.User{}, errors.Conflict("email already registered").WithDetails("field", "email")
	}
	if err != nil {
		return user.User{}, services.StoreError(err, "user", id)
	}
	return updated, nil
}

// Delete removes the user and their cart, returning the cart's stock.
// Users with orders are kept for the order history.
func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.users.DeleteUser(ctx, id)
	if stderrors.Is(err, storage.ErrConflict) {
		return errors.Conflict("user has orders and cannot be deleted")
	}
	if err != nil {
		return services.StoreError(err, "user", id)
	}
	s.log.WithContext(ctx).WithField("deleted_user_id", id).Info("user deleted")
	return nil
}

func (s *Service) hash(password string) (string, error) {
	switch {
	case len(password) < minPasswordLen:
		return "", errors.Validation("password", "must be at least 8 characters")
	case len(password) > maxPasswordLen:
		return "", errors.Validation("password", "must be at most 72 bytes")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return "", errors.Internal("hash password", err)
	}
	return string(hash), nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", errors.Required("email")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", errors.Validation("email", "must be a valid address")
	}
	return email, nil
}
