// Package businessflow_test contains integration tests for service purchases and webhook handling
package businessflow_test

import (
	"context"
	"errors"
	"fmt"
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

const testWebhookSecret = "whsec_test_secret"

// stubStripeClient fabricates checkout sessions locally and verifies
// webhook signatures with the real verification code, so no network is
// involved.
type stubStripeClient struct {
	verifier services.StripeClient
	sessions int
}

func newStubStripeClient() *stubStripeClient {
	return &stubStripeClient{
		verifier: services.NewStripeClient("http://localhost", "sk_test", testWebhookSecret, time.Second),
	}
}

func (c *stubStripeClient) CreateCheckoutSession(ctx context.Context, in services.CheckoutSessionInput) (*services.CheckoutSession, error) {
	c.sessions++
	id := fmt.Sprintf("cs_test_%d", c.sessions)
	return &services.CheckoutSession{ID: id, URL: "https://checkout.stripe.test/" + id}, nil
}

func (c *stubStripeClient) VerifyWebhookSignature(payload []byte, sigHeader string, tolerance time.Duration) error {
	return c.verifier.VerifyWebhookSignature(payload, sigHeader, tolerance)
}

// failingUpdatePurchaseRepo fails a set number of Update calls before
// delegating, simulating a transient write error after the checkout
// session is created.
type failingUpdatePurchaseRepo struct {
	repository.AccountServiceRepository
	failures int
}

func (r *failingUpdatePurchaseRepo) Update(ctx context.Context, purchase *models.AccountService) error {
	if r.failures > 0 {
		r.failures--
		return errors.New("connection reset by peer")
	}
	return r.AccountServiceRepository.Update(ctx, purchase)
}

func newPurchaseFlow(testDB *testingutil.TestDB, stripeClient services.StripeClient) businessflow.PurchaseFlow {
	return newPurchaseFlowWithRepo(testDB, stripeClient, repository.NewAccountServiceRepository(testDB.DB))
}

func newPurchaseFlowWithRepo(testDB *testingutil.TestDB, stripeClient services.StripeClient, purchaseRepo repository.AccountServiceRepository) businessflow.PurchaseFlow {
	consentFlow := newConsentFlow(testDB)
	return businessflow.NewPurchaseFlow(
		repository.NewServiceRepository(testDB.DB),
		purchaseRepo,
		repository.NewAccountRepository(testDB.DB),
		repository.NewUserRepository(testDB.DB),
		repository.NewWebhookEventRepository(testDB.DB),
		repository.NewNotificationOutboxRepository(testDB.DB),
		repository.NewAuditLogRepository(testDB.DB),
		consentFlow,
		stripeClient,
		businessflow.CheckoutURLs{
			SuccessURL: "https://app.clearledger.test/purchases/success",
			CancelURL:  "https://app.clearledger.test/purchases/cancelled",
		},
		testDB.DB,
	)
}

func signedWebhookPayload(t *testing.T, eventID, eventType, sessionID string) ([]byte, string) {
	t.Helper()
	payload := []byte(fmt.Sprintf(
		`{"id":%q,"type":%q,"created":%d,"data":{"object":{"id":%q,"payment_status":"paid"}}}`,
		eventID, eventType, time.Now().Unix(), sessionID,
	))
	return payload, services.SignWebhookPayload(testWebhookSecret, payload, time.Now())
}

func TestPurchaseFlow(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		stripeStub := newStubStripeClient()
		purchaseFlow := newPurchaseFlow(testDB, stripeStub)
		consentFlow := newConsentFlow(testDB)

		fy := utils.CurrentFinancialYear()

		activeAccountWithConsents := func(t *testing.T, entityType string) (*models.User, *models.Account) {
			user, err := fixtures.CreateTestUser("")
			require.NoError(t, err)
			account, err := fixtures.CreateTestAccount(user.ID, entityType, models.AccountStatusActive)
			require.NoError(t, err)
			for _, consentType := range businessflow.RequiredConsents(entityType) {
				_, err = fixtures.CreateTestConsent(account.ID, user.ID, consentType)
				require.NoError(t, err)
			}
			return user, account
		}

		t.Run("PurchaseCreatesPendingWithCheckoutURL", func(t *testing.T) {
			user, account := activeAccountWithConsents(t, models.AccountTypeIndividual)
			_, err := fixtures.CreateTestService("itr-individual", true, models.AccountTypeIndividual)
			require.NoError(t, err)

			resp, err := purchaseFlow.Purchase(context.Background(), user.ID, &dto.PurchaseRequest{
				AccountUUID: account.UUID.String(),
				ServiceCode: "itr-individual",
			}, testMetadata())
			require.NoError(t, err)
			assert.Equal(t, models.PurchaseStatusPending, resp.Purchase.Status)
			assert.Equal(t, models.PaymentStatusPending, resp.Purchase.PaymentStatus)
			assert.Equal(t, fy, resp.Purchase.FinancialYear)
			assert.Equal(t, int64(19900), resp.Purchase.AmountCents)
			assert.NotEmpty(t, resp.CheckoutURL)
			assert.Empty(t, resp.MissingConsents)
		})

		t.Run("CheckoutURLWithheldWhenSessionWriteFails", func(t *testing.T) {
			user, account := activeAccountWithConsents(t, models.AccountTypeIndividual)
			_, err := fixtures.CreateTestService("itr-flaky-write", false, models.AccountTypeIndividual)
			require.NoError(t, err)

			flakyRepo := &failingUpdatePurchaseRepo{
				AccountServiceRepository: repository.NewAccountServiceRepository(testDB.DB),
				failures:                 1,
			}
			flakyFlow := newPurchaseFlowWithRepo(testDB, newStubStripeClient(), flakyRepo)

			resp, err := flakyFlow.Purchase(context.Background(), user.ID, &dto.PurchaseRequest{
				AccountUUID: account.UUID.String(),
				ServiceCode: "itr-flaky-write",
			}, testMetadata())
			require.NoError(t, err)

			// A checkout URL whose session never reached the database
			// would make the later payment webhook unmatchable, so the
			// purchase comes back without one.
			assert.Empty(t, resp.CheckoutURL)

			var stored models.AccountService
			require.NoError(t, testDB.DB.First(&stored, "uuid = ?", resp.Purchase.UUID).Error)
			assert.Nil(t, stored.CheckoutSessionID)
		})

		t.Run("ConsentGatedPurchaseStartsConsentRequired", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("")
			require.NoError(t, err)
			account, err := fixtures.CreateTestAccount(user.ID, models.AccountTypeCompany, models.AccountStatusActive)
			require.NoError(t, err)
			_, err = fixtures.CreateTestService("ctr-company", true, models.AccountTypeCompany)
			require.NoError(t, err)

			resp, err := purchaseFlow.Purchase(context.Background(), user.ID, &dto.PurchaseRequest{
				AccountUUID: account.UUID.String(),
				ServiceCode: "ctr-company",
			}, testMetadata())
			require.NoError(t, err)
			assert.Equal(t, models.PurchaseStatusConsentRequired, resp.Purchase.Status)
			assert.ElementsMatch(t, businessflow.RequiredConsents(models.AccountTypeCompany), resp.MissingConsents)
			// Checkout still proceeds; the workflow is gated, not the payment.
			assert.NotEmpty(t, resp.CheckoutURL)
		})

		t.Run("NonGatedServiceIgnoresConsents", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("")
			require.NoError(t, err)
			account, err := fixtures.CreateTestAccount(user.ID, models.AccountTypeIndividual, models.AccountStatusActive)
			require.NoError(t, err)
			_, err = fixtures.CreateTestService("bas-lodgement", false, models.AccountTypeIndividual)
			require.NoError(t, err)

			resp, err := purchaseFlow.Purchase(context.Background(), user.ID, &dto.PurchaseRequest{
				AccountUUID: account.UUID.String(),
				ServiceCode: "bas-lodgement",
			}, testMetadata())
			require.NoError(t, err)
			assert.Equal(t, models.PurchaseStatusPending, resp.Purchase.Status)
		})

		t.Run("PurchaseRequiresActiveAccount", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("")
			require.NoError(t, err)
			account, err := fixtures.CreateTestAccount(user.ID, models.AccountTypeIndividual, models.AccountStatusDraft)
			require.NoError(t, err)
			_, err = fixtures.CreateTestService("itr-draft-acct", false)
			require.NoError(t, err)

			_, err = purchaseFlow.Purchase(context.Background(), user.ID, &dto.PurchaseRequest{
				AccountUUID: account.UUID.String(),
				ServiceCode: "itr-draft-acct",
			}, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsAccountNotActive(err))
		})

		t.Run("EntityTypeMustBeAllowed", func(t *testing.T) {
			user, account := activeAccountWithConsents(t, models.AccountTypeIndividual)
			_, err := fixtures.CreateTestService("company-only", false, models.AccountTypeCompany)
			require.NoError(t, err)

			_, err = purchaseFlow.Purchase(context.Background(), user.ID, &dto.PurchaseRequest{
				AccountUUID: account.UUID.String(),
				ServiceCode: "company-only",
			}, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsServiceNotAllowed(err))
		})

		t.Run("DuplicateFinancialYearRejected", func(t *testing.T) {
			user, account := activeAccountWithConsents(t, models.AccountTypeIndividual)
			_, err := fixtures.CreateTestService("itr-yearly", false, models.AccountTypeIndividual)
			require.NoError(t, err)

			req := &dto.PurchaseRequest{
				AccountUUID:   account.UUID.String(),
				ServiceCode:   "itr-yearly",
				FinancialYear: utils.ToPtr("2025-2026"),
			}
			_, err = purchaseFlow.Purchase(context.Background(), user.ID, req, testMetadata())
			require.NoError(t, err)

			_, err = purchaseFlow.Purchase(context.Background(), user.ID, req, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsDuplicatePurchase(err))

			// A different financial year is a new purchase.
			req.FinancialYear = utils.ToPtr("2024-2025")
			_, err = purchaseFlow.Purchase(context.Background(), user.ID, req, testMetadata())
			require.NoError(t, err)
		})

		t.Run("UnknownServiceCode", func(t *testing.T) {
			user, account := activeAccountWithConsents(t, models.AccountTypeIndividual)

			_, err := purchaseFlow.Purchase(context.Background(), user.ID, &dto.PurchaseRequest{
				AccountUUID: account.UUID.String(),
				ServiceCode: "does-not-exist",
			}, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsServiceNotFound(err))
		})

		t.Run("InactiveService", func(t *testing.T) {
			user, account := activeAccountWithConsents(t, models.AccountTypeIndividual)
			service, err := fixtures.CreateTestService("retired-service", false, models.AccountTypeIndividual)
			require.NoError(t, err)
			service.IsActive = utils.ToPtr(false)
			require.NoError(t, testDB.DB.Save(service).Error)

			_, err = purchaseFlow.Purchase(context.Background(), user.ID, &dto.PurchaseRequest{
				AccountUUID: account.UUID.String(),
				ServiceCode: "retired-service",
			}, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsServiceInactive(err))
		})

		t.Run("PromoteConsentGatedAfterConsentCompletion", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("")
			require.NoError(t, err)
			account, err := fixtures.CreateTestAccount(user.ID, models.AccountTypeCompany, models.AccountStatusActive)
			require.NoError(t, err)
			service, err := fixtures.CreateTestService("ctr-promote", true, models.AccountTypeCompany)
			require.NoError(t, err)

			paid, err := fixtures.CreateTestPurchase(account.ID, service.ID, "2025-2026", models.PurchaseStatusConsentRequired, models.PaymentStatusPaid)
			require.NoError(t, err)
			unpaid, err := fixtures.CreateTestPurchase(account.ID, service.ID, "2024-2025", models.PurchaseStatusConsentRequired, models.PaymentStatusPending)
			require.NoError(t, err)

			// Consents still incomplete: promotion is a no-op.
			require.NoError(t, purchaseFlow.PromoteConsentGated(context.Background(), user.ID, account.UUID.String()))
			var check models.AccountService
			require.NoError(t, testDB.DB.First(&check, paid.ID).Error)
			assert.Equal(t, models.PurchaseStatusConsentRequired, check.Status)

			for _, consentType := range businessflow.RequiredConsents(models.AccountTypeCompany) {
				_, err = fixtures.CreateTestConsent(account.ID, user.ID, consentType)
				require.NoError(t, err)
			}

			require.NoError(t, purchaseFlow.PromoteConsentGated(context.Background(), user.ID, account.UUID.String()))

			require.NoError(t, testDB.DB.First(&check, paid.ID).Error)
			assert.Equal(t, models.PurchaseStatusInProgress, check.Status)
			check = models.AccountService{}
			require.NoError(t, testDB.DB.First(&check, unpaid.ID).Error)
			assert.Equal(t, models.PurchaseStatusPending, check.Status)
		})

		t.Run("AcceptingConsentClearsTheGateCheck", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("")
			require.NoError(t, err)
			account, err := fixtures.CreateTestAccount(user.ID, models.AccountTypeIndividual, models.AccountStatusActive)
			require.NoError(t, err)

			_, err = consentFlow.Accept(context.Background(), user.ID, &dto.AcceptConsentRequest{
				AccountUUID:      account.UUID.String(),
				ConsentType:      models.ConsentTypeTaxAgentAuthority,
				DocumentVersion:  "v1.0",
				SignaturePayload: "Jamie Nguyen",
				SignatureMode:    models.SignatureModeTyped,
			}, testMetadata())
			require.NoError(t, err)

			check, err := consentFlow.Check(context.Background(), user.ID, account.UUID.String())
			require.NoError(t, err)
			assert.True(t, check.HasAll)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestStripeWebhook(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		purchaseFlow := newPurchaseFlow(testDB, newStubStripeClient())

		// Creates an ACTIVE-account purchase with a checkout session
		// attached, the state a purchase is in when gateway events arrive.
		purchaseWithSession := func(t *testing.T, sessionID, status string) (*models.AccountService, *models.Account) {
			user, err := fixtures.CreateTestUser("")
			require.NoError(t, err)
			account, err := fixtures.CreateTestAccount(user.ID, models.AccountTypeIndividual, models.AccountStatusActive)
			require.NoError(t, err)
			service, err := fixtures.CreateTestService("itr-"+sessionID, false, models.AccountTypeIndividual)
			require.NoError(t, err)
			purchase, err := fixtures.CreateTestPurchase(account.ID, service.ID, "2025-2026", status, models.PaymentStatusPending)
			require.NoError(t, err)
			purchase.CheckoutSessionID = &sessionID
			require.NoError(t, testDB.DB.Save(purchase).Error)
			return purchase, account
		}

		t.Run("CheckoutCompletedMarksPaidAndStartsWork", func(t *testing.T) {
			purchase, _ := purchaseWithSession(t, "cs_complete_1", models.PurchaseStatusPending)
			payload, sig := signedWebhookPayload(t, "evt_complete_1", "checkout.session.completed", "cs_complete_1")

			require.NoError(t, purchaseFlow.HandleStripeWebhook(context.Background(), payload, sig))

			var updated models.AccountService
			require.NoError(t, testDB.DB.First(&updated, purchase.ID).Error)
			assert.Equal(t, models.PaymentStatusPaid, updated.PaymentStatus)
			assert.Equal(t, models.PurchaseStatusInProgress, updated.Status)
			assert.NotNil(t, updated.PaidAt)

			// The payment receipt goes through the outbox.
			var receipts int64
			err := testDB.DB.Model(&models.NotificationOutbox{}).
				Where("kind = ? AND correlation_id = ?", models.NotificationKindPurchaseReceipt, purchase.CorrelationID).
				Count(&receipts).Error
			require.NoError(t, err)
			assert.Equal(t, int64(1), receipts)
		})

		t.Run("CheckoutCompletedPromotesConsentGatedPurchase", func(t *testing.T) {
			// Payment success starts the work without re-checking the
			// consent gate; consents are collected in parallel.
			purchase, _ := purchaseWithSession(t, "cs_gated_1", models.PurchaseStatusConsentRequired)
			payload, sig := signedWebhookPayload(t, "evt_gated_1", "checkout.session.completed", "cs_gated_1")

			require.NoError(t, purchaseFlow.HandleStripeWebhook(context.Background(), payload, sig))

			var updated models.AccountService
			require.NoError(t, testDB.DB.First(&updated, purchase.ID).Error)
			assert.Equal(t, models.PaymentStatusPaid, updated.PaymentStatus)
			assert.Equal(t, models.PurchaseStatusInProgress, updated.Status)
		})

		t.Run("RedeliveryIsAcknowledgedWithoutReprocessing", func(t *testing.T) {
			purchase, _ := purchaseWithSession(t, "cs_redeliver_1", models.PurchaseStatusPending)
			payload, sig := signedWebhookPayload(t, "evt_redeliver_1", "checkout.session.completed", "cs_redeliver_1")

			require.NoError(t, purchaseFlow.HandleStripeWebhook(context.Background(), payload, sig))
			require.NoError(t, purchaseFlow.HandleStripeWebhook(context.Background(), payload, sig))

			var events int64
			err := testDB.DB.Model(&models.WebhookEvent{}).Where("event_id = ?", "evt_redeliver_1").Count(&events).Error
			require.NoError(t, err)
			assert.Equal(t, int64(1), events)

			var receipts int64
			err = testDB.DB.Model(&models.NotificationOutbox{}).
				Where("kind = ? AND correlation_id = ?", models.NotificationKindPurchaseReceipt, purchase.CorrelationID).
				Count(&receipts).Error
			require.NoError(t, err)
			assert.Equal(t, int64(1), receipts)
		})

		t.Run("StaleExpiryAfterPaymentIsIgnored", func(t *testing.T) {
			purchase, _ := purchaseWithSession(t, "cs_race_1", models.PurchaseStatusPending)

			completed, completedSig := signedWebhookPayload(t, "evt_race_paid", "checkout.session.completed", "cs_race_1")
			require.NoError(t, purchaseFlow.HandleStripeWebhook(context.Background(), completed, completedSig))

			expired, expiredSig := signedWebhookPayload(t, "evt_race_expired", "checkout.session.expired", "cs_race_1")
			require.NoError(t, purchaseFlow.HandleStripeWebhook(context.Background(), expired, expiredSig))

			var updated models.AccountService
			require.NoError(t, testDB.DB.First(&updated, purchase.ID).Error)
			assert.Equal(t, models.PaymentStatusPaid, updated.PaymentStatus)
			assert.Equal(t, models.PurchaseStatusInProgress, updated.Status)

			var event models.WebhookEvent
			require.NoError(t, testDB.DB.Where("event_id = ?", "evt_race_expired").First(&event).Error)
			assert.Equal(t, models.WebhookEventStatusSkipped, event.Status)
		})

		t.Run("ExpiryBeforePaymentFailsThePayment", func(t *testing.T) {
			purchase, _ := purchaseWithSession(t, "cs_expire_1", models.PurchaseStatusPending)
			payload, sig := signedWebhookPayload(t, "evt_expire_1", "checkout.session.expired", "cs_expire_1")

			require.NoError(t, purchaseFlow.HandleStripeWebhook(context.Background(), payload, sig))

			var updated models.AccountService
			require.NoError(t, testDB.DB.First(&updated, purchase.ID).Error)
			assert.Equal(t, models.PaymentStatusFailed, updated.PaymentStatus)
			assert.Nil(t, updated.CheckoutSessionID)
		})

		t.Run("UnknownSessionIsRecordedAndSkipped", func(t *testing.T) {
			payload, sig := signedWebhookPayload(t, "evt_orphan_1", "checkout.session.completed", "cs_never_created")
			require.NoError(t, purchaseFlow.HandleStripeWebhook(context.Background(), payload, sig))

			var event models.WebhookEvent
			require.NoError(t, testDB.DB.Where("event_id = ?", "evt_orphan_1").First(&event).Error)
			assert.Equal(t, models.WebhookEventStatusSkipped, event.Status)
		})

		t.Run("InvalidSignatureRejected", func(t *testing.T) {
			payload, _ := signedWebhookPayload(t, "evt_forged_1", "checkout.session.completed", "cs_forged")
			forged := services.SignWebhookPayload("whsec_wrong_secret", payload, time.Now())

			err := purchaseFlow.HandleStripeWebhook(context.Background(), payload, forged)
			require.Error(t, err)
			assert.True(t, businessflow.IsWebhookSignatureInvalid(err))
		})

		t.Run("StaleTimestampRejected", func(t *testing.T) {
			payload, _ := signedWebhookPayload(t, "evt_replay_1", "checkout.session.completed", "cs_replay")
			old := services.SignWebhookPayload(testWebhookSecret, payload, time.Now().Add(-time.Hour))

			err := purchaseFlow.HandleStripeWebhook(context.Background(), payload, old)
			require.Error(t, err)
			assert.True(t, businessflow.IsWebhookSignatureInvalid(err))
		})

		t.Run("MalformedPayloadRejected", func(t *testing.T) {
			payload := []byte(`{"type":"checkout.session.completed"`)
			sig := services.SignWebhookPayload(testWebhookSecret, payload, time.Now())

			err := purchaseFlow.HandleStripeWebhook(context.Background(), payload, sig)
			require.Error(t, err)
			assert.True(t, businessflow.IsWebhookEventMalformed(err))
		})

		return nil
	})
	require.NoError(t, err)
}
