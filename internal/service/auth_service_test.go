package service

import (
	"context"
	"testing"
	"time"

	"voucherpro/internal/model"
	"voucherpro/internal/reqctx"
	"voucherpro/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterCompany(t *testing.T) {
	env := newTestEnv(t)
	ctx, res := env.registerCompany(t, "ACME")

	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "acme", res.Company.Code)
	assert.Equal(t, "admin", res.User.Username)
	assert.Equal(t, model.RoleAdmin, res.User.Role)
	assert.ElementsMatch(t, model.AllPermissions, res.User.Permissions)

	id, ok := reqctx.FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, res.Company.ID, id.CompanyID.String())
	assert.EqualValues(t, 1, env.countAudit(t, model.ActionRegisterCompany))

	_, err := env.auth.RegisterCompany(context.Background(), RegisterCompanyRequest{
		CompanyName:   "Other",
		CompanyCode:   " acme ",
		AdminUsername: "root",
		AdminPassword: testPassword,
	})
	assert.True(t, apperror.Is(err, apperror.KindConflict))
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	env.registerCompany(t, "acme")

	res, err := env.auth.Login(context.Background(), LoginRequest{
		CompanyCode: "ACME",
		Username:    "Admin",
		Password:    testPassword,
	}, ClientInfo{UserAgent: "go-test", IP: "127.0.0.1"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)

	_, err = env.auth.Login(context.Background(), LoginRequest{
		CompanyCode: "nope",
		Username:    "admin",
		Password:    testPassword,
	}, ClientInfo{})
	assert.True(t, apperror.Is(err, apperror.KindUnauthorized))
}

func TestLogin_LocksAfterRepeatedFailures(t *testing.T) {
	env := newTestEnv(t)
	env.registerCompany(t, "acme")

	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := start
	env.auth.(*authService).now = func() time.Time { return clock }

	login := func(password string) error {
		_, err := env.auth.Login(context.Background(), LoginRequest{
			CompanyCode: "acme",
			Username:    "admin",
			Password:    password,
		}, ClientInfo{})
		return err
	}

	for i := 0; i < 3; i++ {
		err := login("wrong-password")
		require.Error(t, err)
		assert.Equal(t, apperror.KindUnauthorized, apperror.KindOf(err), "attempt %d", i+1)
	}
	assert.EqualValues(t, 3, env.countAudit(t, model.ActionLoginFailed))

	err := login(testPassword)
	assert.Equal(t, apperror.KindLocked, apperror.KindOf(err))

	clock = start.Add(15*time.Minute - time.Second)
	assert.Equal(t, apperror.KindLocked, apperror.KindOf(login(testPassword)))

	clock = start.Add(15*time.Minute + time.Second)
	require.NoError(t, login(testPassword))

	var admin model.User
	require.NoError(t, env.db.Where("username = ?", "admin").First(&admin).Error)
	assert.Zero(t, admin.FailedAttempts)
	assert.Nil(t, admin.LockedUntil)
}

func TestLogin_SuccessResetsFailureCount(t *testing.T) {
	env := newTestEnv(t)
	env.registerCompany(t, "acme")

	for _, password := range []string{"bad-one", "bad-two", testPassword, "bad-three", "bad-four"} {
		_, _ = env.auth.Login(context.Background(), LoginRequest{CompanyCode: "acme", Username: "admin", Password: password}, ClientInfo{})
	}

	_, err := env.auth.Login(context.Background(), LoginRequest{CompanyCode: "acme", Username: "admin", Password: testPassword}, ClientInfo{})
	assert.NoError(t, err)
}

func TestLogin_DeactivatedUserIsLocked(t *testing.T) {
	env := newTestEnv(t)
	adminCtx, _ := env.registerCompany(t, "acme")
	clerkCtx := env.userCtx(t, adminCtx, "clerk", model.PermissionFlags{CreateVoucher: true})
	clerk, _ := reqctx.FromContext(clerkCtx)

	res, err := env.auth.Login(context.Background(), LoginRequest{CompanyCode: "acme", Username: "clerk", Password: testPassword}, ClientInfo{})
	require.NoError(t, err)

	_, err = env.users.DeactivateUser(adminCtx, clerk.UserID.String())
	require.NoError(t, err)

	_, err = env.auth.Login(context.Background(), LoginRequest{CompanyCode: "acme", Username: "clerk", Password: testPassword}, ClientInfo{})
	assert.Equal(t, apperror.KindLocked, apperror.KindOf(err))

	_, err = env.auth.Authenticate(context.Background(), res.Token)
	assert.Error(t, err)
}

func TestAuthenticateAndLogout(t *testing.T) {
	env := newTestEnv(t)
	ctx, res := env.registerCompany(t, "acme")

	id, err := env.auth.Authenticate(context.Background(), res.Token)
	require.NoError(t, err)
	assert.Equal(t, "admin", id.Username)
	assert.True(t, id.IsAdmin())

	require.NoError(t, env.auth.Logout(ctx))
	assert.EqualValues(t, 1, env.countAudit(t, model.ActionLogout))

	_, err = env.auth.Authenticate(context.Background(), res.Token)
	assert.Equal(t, apperror.KindUnauthorized, apperror.KindOf(err))

	_, err = env.auth.Authenticate(context.Background(), "not-a-token")
	assert.Equal(t, apperror.KindUnauthorized, apperror.KindOf(err))
}

func TestAuthenticate_ExpiredToken(t *testing.T) {
	env := newTestEnv(t)
	_, res := env.registerCompany(t, "acme")

	env.auth.(*authService).now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err := env.auth.Authenticate(context.Background(), res.Token)
	assert.Equal(t, apperror.KindUnauthorized, apperror.KindOf(err))
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	ctx, _ := env.registerCompany(t, "acme")

	err := env.auth.ChangePassword(ctx, ChangePasswordRequest{OldPassword: "wrong-pass", NewPassword: "brand-new-pass"})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	require.NoError(t, env.auth.ChangePassword(ctx, ChangePasswordRequest{OldPassword: testPassword, NewPassword: "brand-new-pass"}))

	_, err = env.auth.Login(context.Background(), LoginRequest{CompanyCode: "acme", Username: "admin", Password: "brand-new-pass"}, ClientInfo{})
	assert.NoError(t, err)
}

func TestMe(t *testing.T) {
	env := newTestEnv(t)
	ctx, res := env.registerCompany(t, "acme")

	me, err := env.auth.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, me.User.ID)
	assert.Equal(t, "Company acme", me.Company.Name)
	assert.ElementsMatch(t, model.AllPermissions, me.Permissions)

	_, err = env.auth.Me(context.Background())
	assert.Equal(t, apperror.KindUnauthorized, apperror.KindOf(err))
}
