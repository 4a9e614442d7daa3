package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/lms-be/internal/models"
	"github.com/isdelr/lms-be/internal/storage"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// UserServiceProvider defines the interface for user services.
type UserServiceProvider interface {
	Register(ctx context.Context, input RegisterInput) (models.User, error)
	Authenticate(ctx context.Context, email, password string) (models.User, error)
	GetUserByID(ctx context.Context, id string) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateUser(ctx context.Context, id string, input UpdateUserInput) (models.User, error)
}

// RegisterInput carries the fields of a new account.
type RegisterInput struct {
	Email    string      `json:"email" validate:"required,email,max=254"`
	Name     string      `json:"name" validate:"required,max=120"`
	Role     models.Role `json:"role" validate:"omitempty,oneof=student instructor"`
	Password string      `json:"password" validate:"required,min=8,max=72"`
}

// UpdateUserInput carries the editable profile fields of an account.
type UpdateUserInput struct {
	Name string      `json:"name" validate:"required,max=120"`
	Role models.Role `json:"role" validate:"omitempty,role"`
}

// UserService provides business logic for user management.
type UserService struct {
	store  storage.Store
	events EventServiceProvider
	now    func() time.Time
}

// NewUserService creates a new UserService.
func NewUserService(store storage.Store, events EventServiceProvider) *UserService {
	return &UserService{store: store, events: events, now: time.Now}
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a new student or instructor account, hashing the
// password. Admin accounts are only created through EnsureAdmin or granted
// by an existing admin.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (models.User, error) {
	input.Email = NormalizeEmail(input.Email)
	input.Name = strings.TrimSpace(input.Name)
	if input.Role == "" {
		input.Role = models.RoleStudent
	}
	if err := validateStruct(input); err != nil {
		return models.User{}, err
	}

	user, err := s.createAccount(ctx, input.Email, input.Name, input.Role, input.Password)
	if err != nil {
		return models.User{}, err
	}

	log.Info().Str("user_id", user.ID).Str("role", string(user.Role)).Msg("User registered")
	recordEvent(ctx, s.events, "user.register", "info", fmt.Sprintf("User '%s' registered as %s.", user.Email, user.Role), nil, ptr(user.ID))
	return user, nil
}

// EnsureAdmin makes sure an account exists for email, creating it with the
// admin role when missing. An existing account is returned unchanged.
func (s *UserService) EnsureAdmin(ctx context.Context, email, name, password string) (models.User, error) {
	input := RegisterInput{
		Email:    NormalizeEmail(email),
		Name:     strings.TrimSpace(name),
		Role:     models.RoleStudent,
		Password: password,
	}
	if err := validateStruct(input); err != nil {
		return models.User{}, err
	}

	existing, err := s.store.GetUserByEmail(ctx, input.Email)
	switch {
	case err == nil:
		if existing.Role != models.RoleAdmin {
			log.Warn().Str("user_id", existing.ID).Str("role", string(existing.Role)).Msg("Bootstrap admin email belongs to a non-admin account")
		}
		existing.PasswordHash = ""
		return existing, nil
	case !errors.Is(err, storage.ErrNotFound):
		return models.User{}, classify("get user by email", err)
	}

	user, err := s.createAccount(ctx, input.Email, input.Name, models.RoleAdmin, input.Password)
	if err != nil {
		return models.User{}, err
	}
	log.Info().Str("user_id", user.ID).Msg("Bootstrap admin created")
	recordEvent(ctx, s.events, "user.register", "info", fmt.Sprintf("Admin '%s' created at startup.", user.Email), nil, ptr(user.ID))
	return user, nil
}

func (s *UserService) createAccount(ctx context.Context, email, name string, role models.Role, password string) (models.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now().UTC()
	user := models.User{
		ID:              uuid.New().String(),
		Email:           email,
		Name:            name,
		Role:            role,
		EnrolledCourses: []string{},
		PasswordHash:    string(hashedPassword),
		CreatedAt:       now,
		UpdatedAt:       now,
		LastLogin:       now,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return models.User{}, ErrEmailTaken
		}
		return models.User{}, classify("create user", err)
	}

	// Return user without password hash
	user.PasswordHash = ""
	return user, nil
}

// Authenticate verifies a user's credentials and stamps the login time.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (models.User, error) {
	found, err := s.store.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.User{}, ErrInvalidCredentials
		}
		return models.User{}, classify("get user by email", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(found.PasswordHash), []byte(password)); err != nil {
		return models.User{}, ErrInvalidCredentials
	}

	// The row is re-read inside the transaction so edits made while the
	// password was being checked are kept.
	loginAt := s.now().UTC()
	var user models.User
	err = s.store.Update(ctx, func(tx storage.Tx) error {
		current, err := tx.GetUser(ctx, found.ID)
		if err != nil {
			return err
		}
		current.LastLogin = loginAt
		if err := tx.UpdateUser(ctx, current); err != nil {
			return err
		}
		user = current
		return nil
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.User{}, ErrInvalidCredentials
		}
		return models.User{}, classify("update last login", err)
	}

	// Don't send the password hash to the client
	user.PasswordHash = ""
	return user, nil
}

// GetUserByID retrieves a single user by their ID.
func (s *UserService) GetUserByID(ctx context.Context, id string) (models.User, error) {
	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.User{}, &NotFoundError{Resource: "user", ID: id}
		}
		return models.User{}, classify("get user", err)
	}
	user.PasswordHash = ""
	return user, nil
}

// ListUsers returns every user in registration order.
func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, classify("list users", err)
	}
	for i := range users {
		users[i].PasswordHash = ""
	}
	return users, nil
}

// UpdateUser updates a user's display name and role.
func (s *UserService) UpdateUser(ctx context.Context, id string, input UpdateUserInput) (models.User, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := validateStruct(input); err != nil {
		return models.User{}, err
	}

	var user models.User
	err := s.store.Update(ctx, func(tx storage.Tx) error {
		current, err := tx.GetUser(ctx, id)
		if err != nil {
			return err
		}
		current.Name = input.Name
		if input.Role != "" {
			current.Role = input.Role
		}
		current.UpdatedAt = s.now().UTC()
		if err := tx.UpdateUser(ctx, current); err != nil {
			return err
		}
		user = current
		return nil
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.User{}, &NotFoundError{Resource: "user", ID: id}
		}
		return models.User{}, classify("update user", err)
	}

	log.Info().Str("user_id", id).Msg("User updated")
	user.PasswordHash = ""
	return user, nil
}
