package users

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/vendorcrm-backend/pkg/config"
	"github.com/angelmondragon/vendorcrm-backend/pkg/db/dbtest"
	"github.com/angelmondragon/vendorcrm-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorcrm-backend/pkg/errors"
	"github.com/angelmondragon/vendorcrm-backend/pkg/logger"
	"github.com/angelmondragon/vendorcrm-backend/pkg/pagination"
	"github.com/angelmondragon/vendorcrm-backend/pkg/security"
)

func newTestService(t *testing.T) (Service, *Repository) {
	t.Helper()
	repo := NewRepository(dbtest.Open(t))
	hasher := security.NewHasher(config.PasswordConfig{ArgonMemoryKB: 64, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32})
	svc, err := NewService(repo, hasher, 12, logger.Nop(), nil)
	require.NoError(t, err)
	return svc, repo
}

func TestCreateUserHashesPassword(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	dto, err := svc.CreateUser(ctx, CreateUserInput{Username: " Alice ", Password: "s3cret-pass", Role: enums.UserRoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, "alice", dto.Username)
	assert.Equal(t, "alice", dto.DisplayName)

	stored, err := repo.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pass", stored.PasswordHash)
	ok, err := security.VerifyPassword("s3cret-pass", stored.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCreateUserValidationAndConflict(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, CreateUserInput{Password: "short", Role: "boss"})
	require.Error(t, err)
	assert.Len(t, pkgerrors.As(err).Fields(), 3)

	_, err = svc.CreateUser(ctx, CreateUserInput{Username: "bob", Password: "password1", Role: enums.UserRoleClient})
	require.NoError(t, err)
	_, err = svc.CreateUser(ctx, CreateUserInput{Username: "bob", Password: "password1", Role: enums.UserRoleClient})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())
}

func TestDeleteUserKeepsUsernameReserved(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	dto, err := svc.CreateUser(ctx, CreateUserInput{Username: "carol", Password: "password1", Role: enums.UserRoleClient})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteUser(ctx, dto.ID))

	err = svc.DeleteUser(ctx, dto.ID)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())

	_, err = svc.CreateUser(ctx, CreateUserInput{Username: "carol", Password: "password1", Role: enums.UserRoleClient})
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())

	page, err := svc.ListUsers(ctx, ListUsersInput{})
	require.NoError(t, err)
	assert.Empty(t, page.Items)

	page, err = svc.ListUsers(ctx, ListUsersInput{IncludeInactive: true, Pagination: pagination.Params{Limit: 10}})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
}

func TestUpdateUserAndResetPassword(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	dto, err := svc.CreateUser(ctx, CreateUserInput{Username: "dave", Password: "password1", Role: enums.UserRoleClient})
	require.NoError(t, err)

	role := enums.UserRoleSupplier
	email := "dave@example.com"
	updated, err := svc.UpdateUser(ctx, dto.ID, UpdateUserInput{Role: &role, Email: &email})
	require.NoError(t, err)
	assert.Equal(t, enums.UserRoleSupplier, updated.Role)
	require.NotNil(t, updated.Email)

	reset, err := svc.ResetPassword(ctx, dto.ID)
	require.NoError(t, err)
	assert.Len(t, reset.TemporaryPassword, 12)

	stored, err := repo.FindByID(ctx, dto.ID)
	require.NoError(t, err)
	ok, err := security.VerifyPassword(reset.TemporaryPassword, stored.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = svc.ResetPassword(ctx, uuid.New())
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

type countingRevoker map[string]int

func (c countingRevoker) RevokeSubject(_ context.Context, subject string) (int, error) {
	c[subject]++
	return c[subject], nil
}

func TestAccountChangesEndSessions(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	hasher := security.NewHasher(config.PasswordConfig{ArgonMemoryKB: 64, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32})
	revoked := countingRevoker{}
	svc, err := NewService(repo, hasher, 12, logger.Nop(), revoked)
	require.NoError(t, err)
	ctx := context.Background()

	dto, err := svc.CreateUser(ctx, CreateUserInput{Username: "erin", Password: "password1", Role: enums.UserRoleClient})
	require.NoError(t, err)
	id := dto.ID.String()

	name := "Erin"
	_, err = svc.UpdateUser(ctx, dto.ID, UpdateUserInput{DisplayName: &name})
	require.NoError(t, err)
	assert.Zero(t, revoked[id], "cosmetic edits keep sessions")

	role := enums.UserRoleSupplier
	_, err = svc.UpdateUser(ctx, dto.ID, UpdateUserInput{Role: &role})
	require.NoError(t, err)
	assert.Equal(t, 1, revoked[id])

	_, err = svc.ResetPassword(ctx, dto.ID)
	require.NoError(t, err)
	require.NoError(t, svc.DeleteUser(ctx, dto.ID))
	assert.Equal(t, 3, revoked[id])
}
