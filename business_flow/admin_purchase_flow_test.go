// Package businessflow_test contains integration tests for the back-office purchase view
package businessflow_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/clearledger/portal-api/app/dto"
	businessflow "github.com/clearledger/portal-api/business_flow"
	"github.com/clearledger/portal-api/models"
	"github.com/clearledger/portal-api/repository"
	testingutil "github.com/clearledger/portal-api/testing"
	"github.com/clearledger/portal-api/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestAdminPurchaseFlow(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		adminFlow := businessflow.NewAdminPurchaseFlow(repository.NewAccountServiceRepository(testDB.DB))

		seed := func(t *testing.T, status, paymentStatus, fy string) *models.AccountService {
			user, err := fixtures.CreateTestUser("")
			require.NoError(t, err)
			account, err := fixtures.CreateTestAccount(user.ID, models.AccountTypeIndividual, models.AccountStatusActive)
			require.NoError(t, err)
			service, err := fixtures.CreateTestService("svc-"+uuid.New().String()[:8], false)
			require.NoError(t, err)
			purchase, err := fixtures.CreateTestPurchase(account.ID, service.ID, fy, status, paymentStatus)
			require.NoError(t, err)
			return purchase
		}

		t.Run("ListFiltersByStatusAndYear", func(t *testing.T) {
			seed(t, models.PurchaseStatusPending, models.PaymentStatusPending, "2023-2024")
			seed(t, models.PurchaseStatusInProgress, models.PaymentStatusPaid, "2023-2024")
			seed(t, models.PurchaseStatusInProgress, models.PaymentStatusPaid, "2022-2023")

			resp, err := adminFlow.List(context.Background(), &dto.AdminPurchaseListRequest{
				Status:        utils.ToPtr(models.PurchaseStatusInProgress),
				FinancialYear: utils.ToPtr("2023-2024"),
			})
			require.NoError(t, err)
			assert.Equal(t, int64(1), resp.Total)
			require.Len(t, resp.Items, 1)
			assert.Equal(t, models.PurchaseStatusInProgress, resp.Items[0].Status)
			assert.Equal(t, "2023-2024", resp.Items[0].FinancialYear)
			assert.NotEmpty(t, resp.Items[0].AccountName)
			assert.NotEmpty(t, resp.Items[0].ServiceCode)
		})

		t.Run("ListPaginates", func(t *testing.T) {
			for i := 0; i < 3; i++ {
				seed(t, models.PurchaseStatusReview, models.PaymentStatusPaid, "2021-2022")
			}

			resp, err := adminFlow.List(context.Background(), &dto.AdminPurchaseListRequest{
				Status:   utils.ToPtr(models.PurchaseStatusReview),
				Page:     2,
				PageSize: 2,
			})
			require.NoError(t, err)
			assert.Equal(t, int64(3), resp.Total)
			assert.Len(t, resp.Items, 1)
			assert.Equal(t, 2, resp.Page)
		})

		t.Run("UpdateStatusAdvancesWorkflow", func(t *testing.T) {
			purchase := seed(t, models.PurchaseStatusInProgress, models.PaymentStatusPaid, "2020-2021")

			row, err := adminFlow.UpdateStatus(context.Background(), purchase.UUID.String(),
				&dto.AdminUpdatePurchaseStatusRequest{Status: models.PurchaseStatusReview})
			require.NoError(t, err)
			assert.Equal(t, models.PurchaseStatusReview, row.Status)

			row, err = adminFlow.UpdateStatus(context.Background(), purchase.UUID.String(),
				&dto.AdminUpdatePurchaseStatusRequest{Status: models.PurchaseStatusCompleted})
			require.NoError(t, err)
			assert.Equal(t, models.PurchaseStatusCompleted, row.Status)
		})

		t.Run("UpdateStatusCancelledStampsTimestamp", func(t *testing.T) {
			purchase := seed(t, models.PurchaseStatusPending, models.PaymentStatusPending, "2019-2020")

			_, err := adminFlow.UpdateStatus(context.Background(), purchase.UUID.String(),
				&dto.AdminUpdatePurchaseStatusRequest{Status: models.PurchaseStatusCancelled})
			require.NoError(t, err)

			var updated models.AccountService
			require.NoError(t, testDB.DB.First(&updated, purchase.ID).Error)
			assert.NotNil(t, updated.CancelledAt)
		})

		t.Run("UpdateStatusRejectsOperatorSettingGateStatuses", func(t *testing.T) {
			purchase := seed(t, models.PurchaseStatusPending, models.PaymentStatusPending, "2018-2019")

			_, err := adminFlow.UpdateStatus(context.Background(), purchase.UUID.String(),
				&dto.AdminUpdatePurchaseStatusRequest{Status: models.PurchaseStatusConsentRequired})
			require.Error(t, err)
			assert.True(t, businessflow.IsInvalidStatusTransition(err))
		})

		t.Run("UpdateStatusUnknownPurchase", func(t *testing.T) {
			_, err := adminFlow.UpdateStatus(context.Background(), "3f1f7d76-6f96-4f59-8f3b-000000000000",
				&dto.AdminUpdatePurchaseStatusRequest{Status: models.PurchaseStatusReview})
			require.Error(t, err)
			assert.True(t, businessflow.IsPurchaseNotFound(err))
		})

		t.Run("ExportProducesReadableWorkbook", func(t *testing.T) {
			seed(t, models.PurchaseStatusCompleted, models.PaymentStatusPaid, "2017-2018")

			filename, data, err := adminFlow.ExportXLSX(context.Background(), &dto.AdminPurchaseListRequest{
				Status: utils.ToPtr(models.PurchaseStatusCompleted),
			})
			require.NoError(t, err)
			assert.Contains(t, filename, "purchases_")
			assert.Contains(t, filename, ".xlsx")

			xl, err := excelize.OpenReader(bytes.NewReader(data))
			require.NoError(t, err)
			defer func() { _ = xl.Close() }()

			rows, err := xl.GetRows("Purchases")
			require.NoError(t, err)
			require.GreaterOrEqual(t, len(rows), 2)
			assert.Equal(t, "uuid", rows[0][0])
			assert.Equal(t, "financial_year", rows[0][6])
		})

		return nil
	})
	require.NoError(t, err)
}
