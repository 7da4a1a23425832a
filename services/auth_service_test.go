package services

import (
	"context"
	"testing"

	"grocery/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	user, err := f.auth.Register(ctx, "Asha", " Asha@Example.com ", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "asha@example.com", user.Email)
	assert.Equal(t, models.RoleCustomer, user.Role)
	assert.NotEqual(t, "secret1", user.Password)

	_, err = f.auth.Register(ctx, "Asha", "asha@example.com", "secret1")
	requireKind(t, err, KindConflict)

	_, err = f.auth.Login(ctx, "asha@example.com", "wrong", "")
	requireKind(t, err, KindUnauthorized)
	_, err = f.auth.Login(ctx, "nobody@example.com", "secret1", "")
	requireKind(t, err, KindUnauthorized)

	session, err := f.auth.Login(ctx, "ASHA@example.com", "secret1", "")
	require.NoError(t, err)
	assert.Nil(t, session.Cart)

	claims, err := f.auth.Authenticate(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.Hex(), claims.UserID)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.auth.Register(ctx, "", "a@b.co", "secret1")
	requireKind(t, err, KindValidation)
	_, err = f.auth.Register(ctx, "A", "not-an-email", "secret1")
	requireKind(t, err, KindValidation)
	_, err = f.auth.Register(ctx, "A", "a@b.co", "123")
	requireKind(t, err, KindValidation)
}

func TestLoginMergesGuestCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pid := f.addProduct(t, "Bananas", 45)

	guest, err := f.auth.Guest()
	require.NoError(t, err)
	_, err = f.carts.SetItemQuantity(ctx, guest.GuestID, pid, 2)
	require.NoError(t, err)

	user, err := f.auth.Register(ctx, "Ravi", "ravi@example.com", "secret1")
	require.NoError(t, err)

	session, err := f.auth.Login(ctx, "ravi@example.com", "secret1", guest.Token)
	require.NoError(t, err)
	require.NotNil(t, session.Cart)
	assert.Equal(t, 90.0, session.Cart.ItemsTotal)

	view, err := f.carts.GetCart(ctx, user.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, 92.0, view.GrandTotal)
}

func TestLoginIgnoresBadGuestToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.auth.Register(ctx, "Ravi", "ravi@example.com", "secret1")
	require.NoError(t, err)

	session, err := f.auth.Login(ctx, "ravi@example.com", "secret1", "garbage")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.Nil(t, session.Cart)
}

func TestLogoutRevokesToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.auth.Register(ctx, "Ravi", "ravi@example.com", "secret1")
	require.NoError(t, err)
	session, err := f.auth.Login(ctx, "ravi@example.com", "secret1", "")
	require.NoError(t, err)

	require.NoError(t, f.auth.Logout(ctx, session.Token))
	_, err = f.auth.Authenticate(ctx, session.Token)
	requireKind(t, err, KindUnauthorized)

	requireKind(t, f.auth.Logout(ctx, "garbage"), KindUnauthorized)
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.auth.EnsureAdmin(ctx, "admin@example.com", "adminpass"))
	require.NoError(t, f.auth.EnsureAdmin(ctx, "admin@example.com", "adminpass"))

	session, err := f.auth.Login(ctx, "admin@example.com", "adminpass", "")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, session.User.Role)
}

func TestGuestOwner(t *testing.T) {
	f := newFixture(t)
	guest, err := f.auth.Guest()
	require.NoError(t, err)

	owner, err := f.auth.GuestOwner(guest.Token)
	require.NoError(t, err)
	assert.Equal(t, guest.GuestID, owner)

	_, err = f.auth.GuestOwner("garbage")
	requireKind(t, err, KindValidation)
}
