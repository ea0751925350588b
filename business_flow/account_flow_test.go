// Package businessflow_test contains integration tests for the account lifecycle
package businessflow_test

import (
	"context"
	"testing"

	"github.com/clearledger/portal-api/app/dto"
	businessflow "github.com/clearledger/portal-api/business_flow"
	"github.com/clearledger/portal-api/models"
	"github.com/clearledger/portal-api/repository"
	testingutil "github.com/clearledger/portal-api/testing"
	"github.com/clearledger/portal-api/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAccountFlow(testDB *testingutil.TestDB) businessflow.AccountFlow {
	return businessflow.NewAccountFlow(
		repository.NewAccountRepository(testDB.DB),
		repository.NewAccountServiceRepository(testDB.DB),
		repository.NewAuditLogRepository(testDB.DB),
		testDB.DB,
	)
}

func testMetadata() *businessflow.ClientMetadata {
	return &businessflow.ClientMetadata{
		IPAddress: "127.0.0.1",
		UserAgent: "Test User Agent",
	}
}

func TestAccountFlow(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		accountFlow := newAccountFlow(testDB)

		t.Run("CreateIndividualAccount", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("")
			require.NoError(t, err)

			dob := "1988-04-12"
			req := &dto.CreateAccountRequest{
				EntityType: models.AccountTypeIndividual,
				Individual: &dto.IndividualProfilePayload{
					FirstName:   "Jamie",
					LastName:    "Nguyen",
					DateOfBirth: &dob,
					TFN:         utils.ToPtr("123456782"),
				},
			}

			account, err := accountFlow.Create(context.Background(), user.ID, req, testMetadata())
			require.NoError(t, err)
			require.NotNil(t, account)
			assert.Equal(t, models.AccountStatusDraft, account.Status)
			assert.Equal(t, models.AccountTypeIndividual, account.EntityType)
			assert.NotEmpty(t, account.UUID)
		})

		t.Run("CreateRejectsMismatchedProfileVariant", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("")
			require.NoError(t, err)

			req := &dto.CreateAccountRequest{
				EntityType: models.AccountTypeCompany,
				Individual: &dto.IndividualProfilePayload{
					FirstName: "Jamie",
					LastName:  "Nguyen",
				},
			}

			_, err = accountFlow.Create(context.Background(), user.ID, req, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsProfileRequired(err))
		})

		t.Run("CreateRejectsUnknownEntityType", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("")
			require.NoError(t, err)

			req := &dto.CreateAccountRequest{EntityType: "SOLE_TRADER"}
			_, err = accountFlow.Create(context.Background(), user.ID, req, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsInvalidEntityType(err))
		})

		t.Run("SubmitMovesDraftToPending", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("")
			require.NoError(t, err)
			account, err := fixtures.CreateTestAccount(user.ID, models.AccountTypeCompany, models.AccountStatusDraft)
			require.NoError(t, err)

			updated, err := accountFlow.Submit(context.Background(), user.ID, account.UUID.String(), testMetadata())
			require.NoError(t, err)
			assert.Equal(t, models.AccountStatusPending, updated.Status)
			assert.NotEmpty(t, updated.SubmittedAt)
		})

		t.Run("SubmitRejectsNonDraft", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("")
			require.NoError(t, err)
			account, err := fixtures.CreateTestAccount(user.ID, models.AccountTypeCompany, models.AccountStatusActive)
			require.NoError(t, err)

			_, err = accountFlow.Submit(context.Background(), user.ID, account.UUID.String(), testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsInvalidStatusTransition(err))
		})

		t.Run("ActivateMovesPendingToActive", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("")
			require.NoError(t, err)
			account, err := fixtures.CreateTestAccount(user.ID, models.AccountTypeTrust, models.AccountStatusPending)
			require.NoError(t, err)

			updated, err := accountFlow.Activate(context.Background(), account.UUID.String(), testMetadata())
			require.NoError(t, err)
			assert.Equal(t, models.AccountStatusActive, updated.Status)
		})

		t.Run("ActivateRejectsDraft", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("")
			require.NoError(t, err)
			account, err := fixtures.CreateTestAccount(user.ID, models.AccountTypeTrust, models.AccountStatusDraft)
			require.NoError(t, err)

			_, err = accountFlow.Activate(context.Background(), account.UUID.String(), testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsInvalidStatusTransition(err))
		})

		t.Run("SuspendAndReactivate", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("")
			require.NoError(t, err)
			account, err := fixtures.CreateTestAccount(user.ID, models.AccountTypeIndividual, models.AccountStatusActive)
			require.NoError(t, err)

			suspended, err := accountFlow.Suspend(context.Background(), account.UUID.String(), testMetadata())
			require.NoError(t, err)
			assert.Equal(t, models.AccountStatusSuspended, suspended.Status)

			// Suspended accounts can be re-activated by the back office.
			reactivated, err := accountFlow.Activate(context.Background(), account.UUID.String(), testMetadata())
			require.NoError(t, err)
			assert.Equal(t, models.AccountStatusActive, reactivated.Status)
		})

		t.Run("CloseAndReopen", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("")
			require.NoError(t, err)
			account, err := fixtures.CreateTestAccount(user.ID, models.AccountTypeCompany, models.AccountStatusActive)
			require.NoError(t, err)

			closed, err := accountFlow.Close(context.Background(), user.ID, account.UUID.String(), testMetadata())
			require.NoError(t, err)
			assert.Equal(t, models.AccountStatusClosed, closed.Status)

			reopened, err := accountFlow.Reopen(context.Background(), user.ID, account.UUID.String(), testMetadata())
			require.NoError(t, err)
			assert.Equal(t, models.AccountStatusActive, reopened.Status)
		})

		t.Run("CloseRejectsDraft", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("")
			require.NoError(t, err)
			account, err := fixtures.CreateTestAccount(user.ID, models.AccountTypeCompany, models.AccountStatusDraft)
			require.NoError(t, err)

			_, err = accountFlow.Close(context.Background(), user.ID, account.UUID.String(), testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsInvalidStatusTransition(err))
		})

		t.Run("UpdateRejectsClosedAccount", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("")
			require.NoError(t, err)
			account, err := fixtures.CreateTestAccount(user.ID, models.AccountTypeCompany, models.AccountStatusClosed)
			require.NoError(t, err)

			req := &dto.UpdateAccountRequest{
				Company: &dto.CompanyProfilePayload{CompanyName: "Renamed Pty Ltd"},
			}
			_, err = accountFlow.Update(context.Background(), user.ID, account.UUID.String(), req, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsInvalidStatusTransition(err))
		})

		t.Run("GetDeniesForeignAccount", func(t *testing.T) {
			owner, err := fixtures.CreateTestUser("")
			require.NoError(t, err)
			stranger, err := fixtures.CreateTestUser("")
			require.NoError(t, err)
			account, err := fixtures.CreateTestAccount(owner.ID, models.AccountTypeIndividual, models.AccountStatusActive)
			require.NoError(t, err)

			_, err = accountFlow.Get(context.Background(), stranger.ID, account.UUID.String())
			require.Error(t, err)
			assert.True(t, businessflow.IsAccountAccessDenied(err))
		})

		t.Run("DeleteBlockedByActivePurchase", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("")
			require.NoError(t, err)
			account, err := fixtures.CreateTestAccount(user.ID, models.AccountTypeIndividual, models.AccountStatusActive)
			require.NoError(t, err)
			service, err := fixtures.CreateTestService("itr-2026-del", false)
			require.NoError(t, err)
			_, err = fixtures.CreateTestPurchase(account.ID, service.ID, "2025-2026", models.PurchaseStatusInProgress, models.PaymentStatusPaid)
			require.NoError(t, err)

			err = accountFlow.Delete(context.Background(), user.ID, account.UUID.String(), testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsAccountHasActiveServices(err))
		})

		t.Run("DeleteAllowedWithOnlyCompletedPurchases", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("")
			require.NoError(t, err)
			account, err := fixtures.CreateTestAccount(user.ID, models.AccountTypeIndividual, models.AccountStatusActive)
			require.NoError(t, err)
			service, err := fixtures.CreateTestService("itr-2025-done", false)
			require.NoError(t, err)
			_, err = fixtures.CreateTestPurchase(account.ID, service.ID, "2024-2025", models.PurchaseStatusCompleted, models.PaymentStatusPaid)
			require.NoError(t, err)

			err = accountFlow.Delete(context.Background(), user.ID, account.UUID.String(), testMetadata())
			require.NoError(t, err)

			_, err = accountFlow.Get(context.Background(), user.ID, account.UUID.String())
			require.Error(t, err)
			assert.True(t, businessflow.IsAccountNotFound(err))
		})

		t.Run("ListReturnsOwnAccountsOnly", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("")
			require.NoError(t, err)
			other, err := fixtures.CreateTestUser("")
			require.NoError(t, err)

			_, err = fixtures.CreateTestAccount(user.ID, models.AccountTypeIndividual, models.AccountStatusActive)
			require.NoError(t, err)
			_, err = fixtures.CreateTestAccount(user.ID, models.AccountTypeCompany, models.AccountStatusDraft)
			require.NoError(t, err)
			_, err = fixtures.CreateTestAccount(other.ID, models.AccountTypeTrust, models.AccountStatusActive)
			require.NoError(t, err)

			list, err := accountFlow.List(context.Background(), user.ID)
			require.NoError(t, err)
			assert.Len(t, list.Accounts, 2)
		})

		t.Run("AdminListCrossesOwnersAndFiltersByStatus", func(t *testing.T) {
			first, err := fixtures.CreateTestUser("")
			require.NoError(t, err)
			second, err := fixtures.CreateTestUser("")
			require.NoError(t, err)

			suspended, err := fixtures.CreateTestAccount(first.ID, models.AccountTypeTrust, models.AccountStatusSuspended)
			require.NoError(t, err)
			_, err = fixtures.CreateTestAccount(second.ID, models.AccountTypePartnership, models.AccountStatusSuspended)
			require.NoError(t, err)

			status := models.AccountStatusSuspended
			result, err := accountFlow.AdminList(context.Background(), &dto.AdminAccountListRequest{Status: &status})
			require.NoError(t, err)
			assert.Equal(t, int64(2), result.Total)
			require.Len(t, result.Items, 2)
			for _, item := range result.Items {
				assert.Equal(t, models.AccountStatusSuspended, item.Status)
				assert.NotEmpty(t, item.OwnerEmail)
				assert.NotEmpty(t, item.DisplayName)
			}

			entityType := models.AccountTypeTrust
			result, err = accountFlow.AdminList(context.Background(), &dto.AdminAccountListRequest{Status: &status, EntityType: &entityType})
			require.NoError(t, err)
			assert.Equal(t, int64(1), result.Total)
			require.Len(t, result.Items, 1)
			assert.Equal(t, suspended.UUID.String(), result.Items[0].UUID)
			assert.Equal(t, first.Email, result.Items[0].OwnerEmail)
		})

		return nil
	})
	require.NoError(t, err)
}
