package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/hrconsole/internal/models"
	"github.com/charlesng35/hrconsole/pkg/crypto"
	apperrors "github.com/charlesng35/hrconsole/pkg/errors"
	"github.com/charlesng35/hrconsole/pkg/validator"
)

var (
	ErrUserNotFound      = apperrors.New("USER_NOT_FOUND", "User not found", http.StatusNotFound)
	ErrRootUserImmutable = apperrors.New("USER_ROOT_IMMUTABLE", "Root user cannot perform this operation", http.StatusBadRequest)
	ErrUserExists        = apperrors.New("USER_EXISTS", "Username or email already exists", http.StatusConflict)
)

// CreateUserInput describes a new account. With no RoleIDs the default role is assigned.
type CreateUserInput struct {
	Username  string `json:"username" validate:"required,max=64"`
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required"`
	FirstName string `json:"first_name" validate:"max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
	IsRoot    bool
	IsActive  *bool
	RoleIDs   []uint
}

func (in CreateUserInput) normalised() CreateUserInput {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	if strings.TrimSpace(in.Password) == "" {
		in.Password = ""
	}
	return in
}

type BootstrapAdminInput struct {
	Username string
	Email    string
	Password string
}

// SessionRevoker ends every session of a user. *auth.SessionService implements it.
type SessionRevoker interface {
	RevokeUser(ctx context.Context, userID string) (int64, error)
}

// UserService manages console accounts and their role assignments.
type UserService struct {
	db       *gorm.DB
	audit    *AuditService
	sessions SessionRevoker
}

type UserOption func(*UserService)

// WithSessionRevoker makes SetActive(false) sign the user out everywhere.
func WithSessionRevoker(r SessionRevoker) UserOption {
	return func(s *UserService) { s.sessions = r }
}

func NewUserService(db *gorm.DB, audit *AuditService, opts ...UserOption) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	s := &UserService{db: db, audit: audit}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Create stores a new account with a bcrypt hashed password.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	in := input.normalised()
	if err := validator.ValidateStruct(in); err != nil {
		return nil, invalidInput(err)
	}
	hashed, err := crypto.HashPassword(in.Password)
	if errors.Is(err, crypto.ErrPasswordTooLong) {
		return nil, apperrors.NewBadRequest(err.Error())
	}
	if err != nil {
		return nil, fmt.Errorf("user service: hash password: %w", err)
	}

	user := &models.User{
		Username:  in.Username,
		Email:     in.Email,
		Password:  hashed,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		IsRoot:    in.IsRoot,
		IsActive:  in.IsActive == nil || *in.IsActive,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		roles, err := rolesByID(tx, in.RoleIDs)
		if err != nil {
			return err
		}
		if len(in.RoleIDs) == 0 {
			if err := tx.Where(&models.Role{IsDefault: true}).Find(&roles).Error; err != nil {
				return fmt.Errorf("user service: load default role: %w", err)
			}
		}
		user.Roles = roles
		if err := tx.Create(user).Error; err != nil {
			return writeFailed("user service: create user", err, ErrUserExists)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	recordAudit(s.audit, ctx, AuditEntry{
		Action:   "user.create",
		Resource: userResource(user.ID),
		Result:   "success",
		Metadata: map[string]any{"username": user.Username, "is_root": user.IsRoot, "role_ids": user.RoleIDs()},
	})
	return s.Get(ctx, user.ID)
}

func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	return s.first(ensureContext(ctx), "id = ?", strings.TrimSpace(id))
}

// Find resolves a username or email, ignoring case.
func (s *UserService) Find(ctx context.Context, identifier string) (*models.User, error) {
	value := strings.ToLower(strings.TrimSpace(identifier))
	if value == "" {
		return nil, ErrUserNotFound
	}
	return s.first(ensureContext(ctx), "LOWER(username) = ? OR LOWER(email) = ?", value, value)
}

// List returns every account with its roles, ordered by username.
func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := s.db.WithContext(ensureContext(ctx)).Preload("Roles").Order("username").Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("user service: list users: %w", err)
	}
	return users, nil
}

// RoleIDs maps role names to ids. Every name must exist.
func (s *UserService) RoleIDs(ctx context.Context, names ...string) ([]uint, error) {
	names = normaliseIDs(names)
	if len(names) == 0 {
		return nil, nil
	}
	var roles []models.Role
	if err := s.db.WithContext(ensureContext(ctx)).Where("name IN ?", names).Find(&roles).Error; err != nil {
		return nil, fmt.Errorf("user service: load roles: %w", err)
	}
	if len(roles) != len(names) {
		return nil, ErrUnknownRole
	}
	return pluckRoleIDs(roles), nil
}

// SetRoles replaces the user's roles. An empty list leaves the user without roles.
func (s *UserService) SetRoles(ctx context.Context, id string, roleIDs []uint) (*models.User, error) {
	ctx = ensureContext(ctx)

	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	ids := normaliseUintIDs(roleIDs)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		roles, err := rolesByID(tx, ids)
		if err != nil {
			return err
		}
		assoc := tx.Model(user).Association("Roles")
		if len(roles) == 0 {
			err = assoc.Clear()
		} else {
			err = assoc.Replace(&roles)
		}
		if err != nil {
			return fmt.Errorf("user service: replace roles: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	recordAudit(s.audit, ctx, AuditEntry{
		Action:   "user.set_roles",
		Resource: userResource(user.ID),
		Result:   "success",
		Metadata: map[string]any{"role_ids": ids},
	})
	return s.Get(ctx, user.ID)
}

// SetActive enables or disables an account. Root accounts cannot be disabled.
// Disabling also revokes the user's sessions when a SessionRevoker is configured.
func (s *UserService) SetActive(ctx context.Context, id string, active bool) error {
	ctx = ensureContext(ctx)

	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if user.IsRoot && !active {
		return ErrRootUserImmutable
	}
	if user.IsActive == active {
		return nil
	}
	if err := s.db.WithContext(ctx).Model(user).Update("is_active", active).Error; err != nil {
		return fmt.Errorf("user service: update active state: %w", err)
	}

	entry := AuditEntry{Action: "user.activate", Resource: userResource(user.ID), Result: "success"}
	if !active {
		entry.Action = "user.deactivate"
		if s.sessions != nil {
			revoked, err := s.sessions.RevokeUser(ctx, user.ID)
			if err != nil {
				return fmt.Errorf("user service: revoke sessions: %w", err)
			}
			entry.Metadata = map[string]any{"sessions_revoked": revoked}
		}
	}
	recordAudit(s.audit, ctx, entry)
	return nil
}

// EnsureBootstrapAdmin creates a root account holding roleNames unless one exists already. A nil user
// with a nil error means nothing was created.
func (s *UserService) EnsureBootstrapAdmin(ctx context.Context, input BootstrapAdminInput, roleNames ...string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var roots int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where(&models.User{IsRoot: true}).Count(&roots).Error; err != nil {
		return nil, fmt.Errorf("user service: count root users: %w", err)
	}
	if roots > 0 {
		return nil, nil
	}

	roleIDs, err := s.RoleIDs(ctx, roleNames...)
	if err != nil {
		return nil, err
	}
	return s.Create(ctx, CreateUserInput{
		Username: input.Username,
		Email:    input.Email,
		Password: input.Password,
		IsRoot:   true,
		RoleIDs:  roleIDs,
	})
}

func (s *UserService) first(ctx context.Context, query string, args ...any) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Preload("Roles").Where(query, args...).First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrUserNotFound
	case err != nil:
		return nil, fmt.Errorf("user service: load user: %w", err)
	}
	return &user, nil
}

// rolesByID loads the roles behind ids and fails when any is missing.
func rolesByID(tx *gorm.DB, ids []uint) ([]models.Role, error) {
	ids = normaliseUintIDs(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	var roles []models.Role
	if err := tx.Where("id IN ?", ids).Find(&roles).Error; err != nil {
		return nil, fmt.Errorf("user service: load roles: %w", err)
	}
	if len(roles) != len(ids) {
		return nil, ErrUnknownRole
	}
	return roles, nil
}

func pluckRoleIDs(roles []models.Role) []uint {
	ids := make([]uint, len(roles))
	for i, role := range roles {
		ids[i] = role.ID
	}
	return ids
}

func userResource(id string) string {
	return "user:" + id
}
