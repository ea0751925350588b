// Package businessflow_test contains integration tests for consent recording and gating
package businessflow_test

import (
	"context"
	"testing"

	"github.com/clearledger/portal-api/app/dto"
	businessflow "github.com/clearledger/portal-api/business_flow"
	"github.com/clearledger/portal-api/models"
	"github.com/clearledger/portal-api/repository"
	testingutil "github.com/clearledger/portal-api/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConsentFlow(testDB *testingutil.TestDB) businessflow.ConsentFlow {
	return businessflow.NewConsentFlow(
		repository.NewLegalConsentRepository(testDB.DB),
		repository.NewAccountRepository(testDB.DB),
		repository.NewAuditLogRepository(testDB.DB),
		nil, // no Redis in tests; gating checks hit the database
		testDB.DB,
	)
}

func TestRequiredConsents(t *testing.T) {
	tests := []struct {
		entityType string
		expected   []string
	}{
		{models.AccountTypeIndividual, []string{models.ConsentTypeTaxAgentAuthority}},
		{models.AccountTypeCompany, []string{models.ConsentTypeTaxAgentAuthority, models.ConsentTypeEngagementLetter}},
		{models.AccountTypeTrust, []string{models.ConsentTypeTaxAgentAuthority, models.ConsentTypeEngagementLetter}},
		{models.AccountTypePartnership, []string{models.ConsentTypeTaxAgentAuthority, models.ConsentTypeEngagementLetter}},
	}
	for _, tt := range tests {
		t.Run(tt.entityType, func(t *testing.T) {
			assert.Equal(t, tt.expected, businessflow.RequiredConsents(tt.entityType))
		})
	}
}

func TestMissingConsents(t *testing.T) {
	t.Run("NothingRecorded", func(t *testing.T) {
		missing := businessflow.MissingConsents(models.AccountTypeCompany, nil)
		assert.Equal(t, []string{models.ConsentTypeTaxAgentAuthority, models.ConsentTypeEngagementLetter}, missing)
	})

	t.Run("PartiallyRecorded", func(t *testing.T) {
		missing := businessflow.MissingConsents(models.AccountTypeCompany, []string{models.ConsentTypeTaxAgentAuthority})
		assert.Equal(t, []string{models.ConsentTypeEngagementLetter}, missing)
	})

	t.Run("Complete", func(t *testing.T) {
		missing := businessflow.MissingConsents(models.AccountTypeIndividual, []string{models.ConsentTypeTaxAgentAuthority})
		assert.Empty(t, missing)
	})

	t.Run("ExtraTypesDoNotSatisfyRequirements", func(t *testing.T) {
		missing := businessflow.MissingConsents(models.AccountTypeIndividual, []string{models.ConsentTypeTermsOfService, models.ConsentTypePrivacyPolicy})
		assert.Equal(t, []string{models.ConsentTypeTaxAgentAuthority}, missing)
	})
}

func TestConsentFlow(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		consentFlow := newConsentFlow(testDB)

		t.Run("AcceptRecordsConsent", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("")
			require.NoError(t, err)
			account, err := fixtures.CreateTestAccount(user.ID, models.AccountTypeIndividual, models.AccountStatusActive)
			require.NoError(t, err)

			req := &dto.AcceptConsentRequest{
				AccountUUID:      account.UUID.String(),
				ConsentType:      models.ConsentTypeTaxAgentAuthority,
				DocumentVersion:  "v2.1",
				SignaturePayload: "Jamie Nguyen",
				SignatureMode:    models.SignatureModeTyped,
			}
			consent, err := consentFlow.Accept(context.Background(), user.ID, req, testMetadata())
			require.NoError(t, err)
			assert.Equal(t, models.ConsentTypeTaxAgentAuthority, consent.ConsentType)
			assert.Equal(t, "v2.1", consent.DocumentVersion)
			assert.NotEmpty(t, consent.AcceptedAt)
		})

		t.Run("AcceptRejectsUnknownType", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("")
			require.NoError(t, err)
			account, err := fixtures.CreateTestAccount(user.ID, models.AccountTypeIndividual, models.AccountStatusActive)
			require.NoError(t, err)

			req := &dto.AcceptConsentRequest{
				AccountUUID:      account.UUID.String(),
				ConsentType:      "VERBAL_AGREEMENT",
				DocumentVersion:  "v1.0",
				SignaturePayload: "Jamie Nguyen",
				SignatureMode:    models.SignatureModeTyped,
			}
			_, err = consentFlow.Accept(context.Background(), user.ID, req, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsInvalidConsentType(err))
		})

		t.Run("AcceptRequiresSignature", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("")
			require.NoError(t, err)
			account, err := fixtures.CreateTestAccount(user.ID, models.AccountTypeIndividual, models.AccountStatusActive)
			require.NoError(t, err)

			req := &dto.AcceptConsentRequest{
				AccountUUID:     account.UUID.String(),
				ConsentType:     models.ConsentTypeTaxAgentAuthority,
				DocumentVersion: "v1.0",
				SignatureMode:   models.SignatureModeTyped,
			}
			_, err = consentFlow.Accept(context.Background(), user.ID, req, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsSignatureRequired(err))
		})

		t.Run("AcceptRejectsUnknownSignatureMode", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("")
			require.NoError(t, err)
			account, err := fixtures.CreateTestAccount(user.ID, models.AccountTypeIndividual, models.AccountStatusActive)
			require.NoError(t, err)

			req := &dto.AcceptConsentRequest{
				AccountUUID:      account.UUID.String(),
				ConsentType:      models.ConsentTypeTaxAgentAuthority,
				DocumentVersion:  "v1.0",
				SignaturePayload: "Jamie Nguyen",
				SignatureMode:    "verbal",
			}
			_, err = consentFlow.Accept(context.Background(), user.ID, req, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsInvalidSignatureMode(err))
		})

		t.Run("ReSigningAppendsHistory", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("")
			require.NoError(t, err)
			account, err := fixtures.CreateTestAccount(user.ID, models.AccountTypeIndividual, models.AccountStatusActive)
			require.NoError(t, err)

			for _, version := range []string{"v1.0", "v1.1"} {
				req := &dto.AcceptConsentRequest{
					AccountUUID:      account.UUID.String(),
					ConsentType:      models.ConsentTypeTaxAgentAuthority,
					DocumentVersion:  version,
					SignaturePayload: "Jamie Nguyen",
					SignatureMode:    models.SignatureModeTyped,
				}
				_, err = consentFlow.Accept(context.Background(), user.ID, req, testMetadata())
				require.NoError(t, err)
			}

			history, err := consentFlow.List(context.Background(), user.ID, account.UUID.String())
			require.NoError(t, err)
			assert.Len(t, history, 2)
		})

		t.Run("CheckReportsGap", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("")
			require.NoError(t, err)
			account, err := fixtures.CreateTestAccount(user.ID, models.AccountTypeCompany, models.AccountStatusActive)
			require.NoError(t, err)
			_, err = fixtures.CreateTestConsent(account.ID, user.ID, models.ConsentTypeTaxAgentAuthority)
			require.NoError(t, err)

			check, err := consentFlow.Check(context.Background(), user.ID, account.UUID.String())
			require.NoError(t, err)
			assert.False(t, check.HasAll)
			assert.Equal(t, []string{models.ConsentTypeEngagementLetter}, check.Missing)
			assert.Contains(t, check.Recorded, models.ConsentTypeTaxAgentAuthority)
		})

		t.Run("CheckCompleteSet", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("")
			require.NoError(t, err)
			account, err := fixtures.CreateTestAccount(user.ID, models.AccountTypeCompany, models.AccountStatusActive)
			require.NoError(t, err)
			_, err = fixtures.CreateTestConsent(account.ID, user.ID, models.ConsentTypeTaxAgentAuthority)
			require.NoError(t, err)
			_, err = fixtures.CreateTestConsent(account.ID, user.ID, models.ConsentTypeEngagementLetter)
			require.NoError(t, err)

			check, err := consentFlow.Check(context.Background(), user.ID, account.UUID.String())
			require.NoError(t, err)
			assert.True(t, check.HasAll)
			assert.Empty(t, check.Missing)
		})

		t.Run("AccessDeniedForForeignAccount", func(t *testing.T) {
			owner, err := fixtures.CreateTestUser("")
			require.NoError(t, err)
			stranger, err := fixtures.CreateTestUser("")
			require.NoError(t, err)
			account, err := fixtures.CreateTestAccount(owner.ID, models.AccountTypeIndividual, models.AccountStatusActive)
			require.NoError(t, err)

			_, err = consentFlow.Check(context.Background(), stranger.ID, account.UUID.String())
			require.Error(t, err)
			assert.True(t, businessflow.IsAccountAccessDenied(err))
		})

		return nil
	})
	require.NoError(t, err)
}
