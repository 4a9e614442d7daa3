package services

import (
	"context"
	"testing"
	"time"

	"github.com/isdelr/lms-be/internal/models"
	"github.com/isdelr/lms-be/internal/storage"
	"github.com/isdelr/lms-be/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUserService(t *testing.T) (*UserService, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc := NewUserService(store, NewEventService(store))
	return svc, store
}

func TestRegisterAndAuthenticate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, store := newUserService(t)

	user, err := svc.Register(ctx, RegisterInput{
		Email:    "  Ada@Example.com ",
		Name:     "Ada",
		Password: "correct horse",
	})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, models.RoleStudent, user.Role)
	assert.Empty(t, user.PasswordHash)

	stored, err := store.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, stored.PasswordHash)
	assert.NotEqual(t, "correct horse", stored.PasswordHash)

	authed, err := svc.Authenticate(ctx, "ADA@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, user.ID, authed.ID)
	assert.Empty(t, authed.PasswordHash)

	_, err = svc.Authenticate(ctx, "ada@example.com", "wrong password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "nobody@example.com", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _ := newUserService(t)

	_, err := svc.Register(ctx, RegisterInput{Email: "a@example.com", Name: "A", Password: "password1"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, RegisterInput{Email: "A@EXAMPLE.COM", Name: "B", Password: "password2"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegisterValidation(t *testing.T) {
	t.Parallel()

	svc, _ := newUserService(t)
	_, err := svc.Register(context.Background(), RegisterInput{
		Email:    "not-an-email",
		Role:     "superuser",
		Password: "short",
	})
	require.ErrorIs(t, err, ErrValidation)

	verr, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.Equal(t, "Invalid email format", verr.Fields["email"])
	assert.Equal(t, "name is required", verr.Fields["name"])
	assert.Equal(t, "password must be at least 8 characters", verr.Fields["password"])
	assert.Equal(t, "role must be one of [student instructor]", verr.Fields["role"])
}

func TestRegisterRejectsAdminRole(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, store := newUserService(t)
	_, err := svc.Register(ctx, RegisterInput{
		Email:    "mallory@example.com",
		Name:     "Mallory",
		Role:     models.RoleAdmin,
		Password: "password1",
	})
	require.ErrorIs(t, err, ErrValidation)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "role")

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)

	instructor, err := svc.Register(ctx, RegisterInput{
		Email:    "prof@example.com",
		Name:     "Prof",
		Role:     models.RoleInstructor,
		Password: "password1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleInstructor, instructor.Role)
}

func TestEnsureAdmin(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _ := newUserService(t)

	admin, err := svc.EnsureAdmin(ctx, " Root@Example.com ", "Root", "password1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, admin.Role)
	assert.Equal(t, "root@example.com", admin.Email)
	assert.Empty(t, admin.PasswordHash)

	again, err := svc.EnsureAdmin(ctx, "root@example.com", "Other", "different-pass")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, again.ID)
	assert.Equal(t, "Root", again.Name)

	authed, err := svc.Authenticate(ctx, "root@example.com", "password1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, authed.Role)

	_, err = svc.EnsureAdmin(ctx, "not-an-email", "Root", "short")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAuthenticateKeepsConcurrentEdits(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, store := newUserService(t)
	user, err := svc.Register(ctx, RegisterInput{
		Email:    "ben@example.com",
		Name:     "Ben",
		Role:     models.RoleInstructor,
		Password: "password1",
	})
	require.NoError(t, err)

	// An admin demotes the account while the password is being checked.
	loginAt := time.Date(2026, time.May, 4, 8, 30, 0, 0, time.UTC)
	svc.now = func() time.Time {
		require.NoError(t, store.Update(ctx, func(tx storage.Tx) error {
			current, err := tx.GetUser(ctx, user.ID)
			if err != nil {
				return err
			}
			current.Role = models.RoleStudent
			current.Name = "Ben (demoted)"
			return tx.UpdateUser(ctx, current)
		}))
		return loginAt
	}

	authed, err := svc.Authenticate(ctx, "ben@example.com", "password1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, authed.Role)

	stored, err := store.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, stored.Role)
	assert.Equal(t, "Ben (demoted)", stored.Name)
	assert.True(t, loginAt.Equal(stored.LastLogin))
	assert.NotEmpty(t, stored.PasswordHash)
}

func TestUpdateUserKeepsLastLogin(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, store := newUserService(t)
	user, err := svc.Register(ctx, RegisterInput{Email: "cy@example.com", Name: "Cy", Password: "password1"})
	require.NoError(t, err)

	loginAt := time.Date(2026, time.May, 5, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return loginAt }
	_, err = svc.Authenticate(ctx, "cy@example.com", "password1")
	require.NoError(t, err)

	svc.now = func() time.Time { return loginAt.Add(time.Hour) }
	_, err = svc.UpdateUser(ctx, user.ID, UpdateUserInput{Name: "Cyrus"})
	require.NoError(t, err)

	stored, err := store.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Cyrus", stored.Name)
	assert.True(t, loginAt.Equal(stored.LastLogin))
	assert.True(t, loginAt.Add(time.Hour).Equal(stored.UpdatedAt))
}

func TestUpdateUser(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _ := newUserService(t)
	user, err := svc.Register(ctx, RegisterInput{Email: "t@example.com", Name: "T", Password: "password1"})
	require.NoError(t, err)

	updated, err := svc.UpdateUser(ctx, user.ID, UpdateUserInput{Name: " Teacher ", Role: models.RoleInstructor})
	require.NoError(t, err)
	assert.Equal(t, "Teacher", updated.Name)
	assert.Equal(t, models.RoleInstructor, updated.Role)

	got, err := svc.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleInstructor, got.Role)

	_, err = svc.UpdateUser(ctx, "missing", UpdateUserInput{Name: "x"})
	assert.ErrorIs(t, err, ErrNotFound)

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Empty(t, users[0].PasswordHash)
}
