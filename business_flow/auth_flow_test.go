// Package businessflow_test contains integration tests for signup, login and sessions
package businessflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/clearledger/portal-api/app/dto"
	"github.com/clearledger/portal-api/app/services"
	businessflow "github.com/clearledger/portal-api/business_flow"
	"github.com/clearledger/portal-api/models"
	"github.com/clearledger/portal-api/repository"
	testingutil "github.com/clearledger/portal-api/testing"
	"github.com/clearledger/portal-api/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthFlow(t *testing.T, testDB *testingutil.TestDB) businessflow.AuthFlow {
	t.Helper()
	tokenService, err := services.NewTokenService(
		time.Hour, 24*time.Hour,
		"test-issuer", "test-audience",
		false, "", "", "test-secret-key-0123456789", nil,
	)
	require.NoError(t, err)

	return businessflow.NewAuthFlow(
		repository.NewUserRepository(testDB.DB),
		repository.NewUserSessionRepository(testDB.DB),
		repository.NewPartnerRepository(testDB.DB),
		repository.NewAuditLogRepository(testDB.DB),
		tokenService,
		testDB.DB,
	)
}

func TestAuthFlow(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		authFlow := newAuthFlow(t, testDB)

		t.Run("SignupCreatesUserAndSession", func(t *testing.T) {
			req := &dto.SignupRequest{
				Email:     "New.Signup@Example.com",
				Password:  "StrongPass123!",
				FirstName: "Jamie",
				LastName:  "Nguyen",
			}
			resp, err := authFlow.Signup(context.Background(), req, testMetadata())
			require.NoError(t, err)
			assert.Equal(t, "new.signup@example.com", resp.User.Email)
			assert.NotEmpty(t, resp.Session.SessionToken)
			assert.NotEmpty(t, resp.Session.RefreshToken)
			assert.Empty(t, resp.PendingInvitations)
		})

		t.Run("SignupRejectsDuplicateEmail", func(t *testing.T) {
			_, err := fixtures.CreateTestUser("taken.signup@example.com")
			require.NoError(t, err)

			req := &dto.SignupRequest{
				Email:     "taken.signup@example.com",
				Password:  "StrongPass123!",
				FirstName: "Jamie",
				LastName:  "Nguyen",
			}
			_, err = authFlow.Signup(context.Background(), req, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsEmailAlreadyExists(err))
		})

		t.Run("SignupSurfacesPendingInvitations", func(t *testing.T) {
			owner, err := fixtures.CreateTestUser("")
			require.NoError(t, err)
			account, err := fixtures.CreateTestAccount(owner.ID, models.AccountTypeCompany, models.AccountStatusActive)
			require.NoError(t, err)
			_, err = fixtures.CreateTestPartner(account.ID, models.PartnerKindCompany, "invited.before.signup@example.com", models.PartnerStatusPending)
			require.NoError(t, err)

			req := &dto.SignupRequest{
				Email:     "invited.before.signup@example.com",
				Password:  "StrongPass123!",
				FirstName: "Casey",
				LastName:  "Tran",
			}
			resp, err := authFlow.Signup(context.Background(), req, testMetadata())
			require.NoError(t, err)
			require.Len(t, resp.PendingInvitations, 1)
			assert.Equal(t, account.UUID.String(), resp.PendingInvitations[0].AccountUUID)
		})

		t.Run("LoginSucceeds", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("")
			require.NoError(t, err)

			resp, err := authFlow.Login(context.Background(), &dto.LoginRequest{
				Email:    user.Email,
				Password: "TestPass123!",
			}, testMetadata())
			require.NoError(t, err)
			assert.Equal(t, user.Email, resp.User.Email)
			assert.NotEmpty(t, resp.Session.SessionToken)
		})

		t.Run("LoginRejectsWrongPassword", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("")
			require.NoError(t, err)

			_, err = authFlow.Login(context.Background(), &dto.LoginRequest{
				Email:    user.Email,
				Password: "WrongPass123!",
			}, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsIncorrectPassword(err))
		})

		t.Run("LoginRejectsUnknownEmail", func(t *testing.T) {
			_, err := authFlow.Login(context.Background(), &dto.LoginRequest{
				Email:    "nobody@example.com",
				Password: "TestPass123!",
			}, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsUserNotFound(err))
		})

		t.Run("LoginRejectsInactiveUser", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("")
			require.NoError(t, err)
			user.IsActive = utils.ToPtr(false)
			require.NoError(t, testDB.DB.Save(user).Error)

			_, err = authFlow.Login(context.Background(), &dto.LoginRequest{
				Email:    user.Email,
				Password: "TestPass123!",
			}, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsUserInactive(err))
		})

		t.Run("RefreshRotatesSession", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("")
			require.NoError(t, err)

			login, err := authFlow.Login(context.Background(), &dto.LoginRequest{
				Email:    user.Email,
				Password: "TestPass123!",
			}, testMetadata())
			require.NoError(t, err)

			refreshed, err := authFlow.Refresh(context.Background(), &dto.RefreshTokenRequest{
				RefreshToken: login.Session.RefreshToken,
			}, testMetadata())
			require.NoError(t, err)
			assert.NotEqual(t, login.Session.SessionToken, refreshed.Session.SessionToken)

			// The old refresh token is spent.
			_, err = authFlow.Refresh(context.Background(), &dto.RefreshTokenRequest{
				RefreshToken: login.Session.RefreshToken,
			}, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsSessionExpired(err))
		})

		t.Run("LogoutExpiresSession", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("")
			require.NoError(t, err)

			login, err := authFlow.Login(context.Background(), &dto.LoginRequest{
				Email:    user.Email,
				Password: "TestPass123!",
			}, testMetadata())
			require.NoError(t, err)

			err = authFlow.Logout(context.Background(), login.Session.SessionToken, testMetadata())
			require.NoError(t, err)

			var session models.UserSession
			require.NoError(t, testDB.DB.Where("session_token = ?", login.Session.SessionToken).Last(&session).Error)
			assert.False(t, utils.IsTrue(session.IsActive))
			assert.False(t, session.IsValid())
		})

		return nil
	})
	require.NoError(t, err)
}
