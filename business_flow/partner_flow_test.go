// Package businessflow_test contains integration tests for partner invitations
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

func newPartnerFlow(testDB *testingutil.TestDB) businessflow.PartnerFlow {
	return businessflow.NewPartnerFlow(
		repository.NewPartnerRepository(testDB.DB),
		repository.NewAccountRepository(testDB.DB),
		repository.NewUserRepository(testDB.DB),
		repository.NewNotificationOutboxRepository(testDB.DB),
		repository.NewAuditLogRepository(testDB.DB),
		testDB.DB,
	)
}

func TestPartnerFlow(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		partnerFlow := newPartnerFlow(testDB)

		t.Run("AddCompanyPartnerStartsPendingAndQueuesInvitation", func(t *testing.T) {
			owner, err := fixtures.CreateTestUser("")
			require.NoError(t, err)
			account, err := fixtures.CreateTestAccount(owner.ID, models.AccountTypeCompany, models.AccountStatusActive)
			require.NoError(t, err)

			req := &dto.AddCompanyPartnerRequest{
				AccountUUID: account.UUID.String(),
				Email:       "Director.One@Example.com",
				IsDirector:  utils.ToPtr(true),
			}
			resp, err := partnerFlow.AddCompanyPartner(context.Background(), owner.ID, req, testMetadata())
			require.NoError(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, models.PartnerStatusPending, resp.Partner.Status)
			assert.Equal(t, "director.one@example.com", resp.Partner.Email)
			assert.False(t, resp.ExistingUser)

			// The invitation email must sit in the outbox, not be sent inline.
			var outbox []models.NotificationOutbox
			err = testDB.DB.Where("recipient = ?", "director.one@example.com").Find(&outbox).Error
			require.NoError(t, err)
			require.Len(t, outbox, 1)
			assert.Equal(t, models.NotificationKindPartnerRegisterInvite, outbox[0].Kind)
			assert.Equal(t, models.OutboxStatusPending, outbox[0].Status)
		})

		t.Run("AddPartnerToRegisteredUserLinksAndAsksForApproval", func(t *testing.T) {
			owner, err := fixtures.CreateTestUser("")
			require.NoError(t, err)
			invitee, err := fixtures.CreateTestUser("trustee.known@example.com")
			require.NoError(t, err)
			account, err := fixtures.CreateTestAccount(owner.ID, models.AccountTypeTrust, models.AccountStatusActive)
			require.NoError(t, err)

			req := &dto.AddTrustPartnerRequest{
				AccountUUID: account.UUID.String(),
				Email:       invitee.Email,
				Role:        "trustee",
			}
			resp, err := partnerFlow.AddTrustPartner(context.Background(), owner.ID, req, testMetadata())
			require.NoError(t, err)
			assert.True(t, resp.ExistingUser)
			assert.Equal(t, invitee.FullName(), resp.ExistingUserName)
			// Addressed by email only until accepted; linking happens in
			// Respond.
			assert.Nil(t, resp.Partner.LinkedUserID)

			var outbox []models.NotificationOutbox
			err = testDB.DB.Where("recipient = ?", invitee.Email).Find(&outbox).Error
			require.NoError(t, err)
			require.Len(t, outbox, 1)
			assert.Equal(t, models.NotificationKindPartnerApprovalRequest, outbox[0].Kind)
		})

		t.Run("OwnerEmailIsRejected", func(t *testing.T) {
			owner, err := fixtures.CreateTestUser("self.invite@example.com")
			require.NoError(t, err)
			account, err := fixtures.CreateTestAccount(owner.ID, models.AccountTypePartnership, models.AccountStatusActive)
			require.NoError(t, err)

			req := &dto.AddPartnershipPartnerRequest{
				AccountUUID: account.UUID.String(),
				Email:       "SELF.INVITE@example.com",
			}
			_, err = partnerFlow.AddPartnershipPartner(context.Background(), owner.ID, req, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsPartnerEmailIsOwner(err))
		})

		t.Run("DuplicateEmailOnSameAccountIsRejected", func(t *testing.T) {
			owner, err := fixtures.CreateTestUser("")
			require.NoError(t, err)
			account, err := fixtures.CreateTestAccount(owner.ID, models.AccountTypeCompany, models.AccountStatusActive)
			require.NoError(t, err)
			_, err = fixtures.CreateTestPartner(account.ID, models.PartnerKindCompany, "dup@example.com", models.PartnerStatusPending)
			require.NoError(t, err)

			req := &dto.AddCompanyPartnerRequest{
				AccountUUID: account.UUID.String(),
				Email:       "dup@example.com",
				IsDirector:  utils.ToPtr(true),
			}
			_, err = partnerFlow.AddCompanyPartner(context.Background(), owner.ID, req, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsPartnerEmailAlreadyExists(err))
		})

		t.Run("SameEmailAllowedOnDifferentAccounts", func(t *testing.T) {
			owner, err := fixtures.CreateTestUser("")
			require.NoError(t, err)
			first, err := fixtures.CreateTestAccount(owner.ID, models.AccountTypeCompany, models.AccountStatusActive)
			require.NoError(t, err)
			second, err := fixtures.CreateTestAccount(owner.ID, models.AccountTypeCompany, models.AccountStatusActive)
			require.NoError(t, err)
			_, err = fixtures.CreateTestPartner(first.ID, models.PartnerKindCompany, "shared@example.com", models.PartnerStatusApproved)
			require.NoError(t, err)

			req := &dto.AddCompanyPartnerRequest{
				AccountUUID: second.UUID.String(),
				Email:       "shared@example.com",
				IsDirector:  utils.ToPtr(true),
			}
			_, err = partnerFlow.AddCompanyPartner(context.Background(), owner.ID, req, testMetadata())
			require.NoError(t, err)
		})

		t.Run("KindMustMatchEntityType", func(t *testing.T) {
			owner, err := fixtures.CreateTestUser("")
			require.NoError(t, err)
			account, err := fixtures.CreateTestAccount(owner.ID, models.AccountTypeTrust, models.AccountStatusActive)
			require.NoError(t, err)

			req := &dto.AddCompanyPartnerRequest{
				AccountUUID: account.UUID.String(),
				Email:       "mismatch@example.com",
				IsDirector:  utils.ToPtr(true),
			}
			_, err = partnerFlow.AddCompanyPartner(context.Background(), owner.ID, req, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsPartnerKindMismatch(err))
		})

		t.Run("TrustPartnerRequiresRole", func(t *testing.T) {
			owner, err := fixtures.CreateTestUser("")
			require.NoError(t, err)
			account, err := fixtures.CreateTestAccount(owner.ID, models.AccountTypeTrust, models.AccountStatusActive)
			require.NoError(t, err)

			req := &dto.AddTrustPartnerRequest{
				AccountUUID: account.UUID.String(),
				Email:       "no.role@example.com",
			}
			_, err = partnerFlow.AddTrustPartner(context.Background(), owner.ID, req, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsPartnerRoleRequired(err))
		})

		t.Run("CompanyPartnerRequiresARoleFlag", func(t *testing.T) {
			owner, err := fixtures.CreateTestUser("")
			require.NoError(t, err)
			account, err := fixtures.CreateTestAccount(owner.ID, models.AccountTypeCompany, models.AccountStatusActive)
			require.NoError(t, err)

			req := &dto.AddCompanyPartnerRequest{
				AccountUUID: account.UUID.String(),
				Email:       "no.flags@example.com",
			}
			_, err = partnerFlow.AddCompanyPartner(context.Background(), owner.ID, req, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsPartnerRoleRequired(err))

			req.IsDirector = utils.ToPtr(false)
			req.IsShareholder = utils.ToPtr(false)
			_, err = partnerFlow.AddCompanyPartner(context.Background(), owner.ID, req, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsPartnerRoleRequired(err))

			req.IsShareholder = utils.ToPtr(true)
			_, err = partnerFlow.AddCompanyPartner(context.Background(), owner.ID, req, testMetadata())
			require.NoError(t, err)
		})

		t.Run("ClosedAccountCannotInvite", func(t *testing.T) {
			owner, err := fixtures.CreateTestUser("")
			require.NoError(t, err)
			account, err := fixtures.CreateTestAccount(owner.ID, models.AccountTypeCompany, models.AccountStatusClosed)
			require.NoError(t, err)

			req := &dto.AddCompanyPartnerRequest{
				AccountUUID: account.UUID.String(),
				Email:       "too.late@example.com",
				IsDirector:  utils.ToPtr(true),
			}
			_, err = partnerFlow.AddCompanyPartner(context.Background(), owner.ID, req, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsInvalidStatusTransition(err))
		})

		t.Run("RespondApprove", func(t *testing.T) {
			owner, err := fixtures.CreateTestUser("")
			require.NoError(t, err)
			invitee, err := fixtures.CreateTestUser("approver@example.com")
			require.NoError(t, err)
			account, err := fixtures.CreateTestAccount(owner.ID, models.AccountTypeCompany, models.AccountStatusActive)
			require.NoError(t, err)
			partner, err := fixtures.CreateTestPartner(account.ID, models.PartnerKindCompany, invitee.Email, models.PartnerStatusPending)
			require.NoError(t, err)

			resp, err := partnerFlow.Respond(context.Background(), invitee.ID, partner.UUID.String(),
				&dto.RespondInvitationRequest{Action: dto.InvitationActionApprove}, testMetadata())
			require.NoError(t, err)
			assert.Equal(t, models.PartnerStatusApproved, resp.Status)
			assert.NotEmpty(t, resp.RespondedAt)
			require.NotNil(t, resp.LinkedUserID)
			assert.Equal(t, invitee.ID, *resp.LinkedUserID)
		})

		t.Run("RespondRejectedForWrongUser", func(t *testing.T) {
			owner, err := fixtures.CreateTestUser("")
			require.NoError(t, err)
			stranger, err := fixtures.CreateTestUser("")
			require.NoError(t, err)
			account, err := fixtures.CreateTestAccount(owner.ID, models.AccountTypeCompany, models.AccountStatusActive)
			require.NoError(t, err)
			partner, err := fixtures.CreateTestPartner(account.ID, models.PartnerKindCompany, "someone.else@example.com", models.PartnerStatusPending)
			require.NoError(t, err)

			_, err = partnerFlow.Respond(context.Background(), stranger.ID, partner.UUID.String(),
				&dto.RespondInvitationRequest{Action: dto.InvitationActionApprove}, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsPartnerNotAddressedToYou(err))
		})

		t.Run("RespondOnlyOncePerInvitation", func(t *testing.T) {
			owner, err := fixtures.CreateTestUser("")
			require.NoError(t, err)
			invitee, err := fixtures.CreateTestUser("answered@example.com")
			require.NoError(t, err)
			account, err := fixtures.CreateTestAccount(owner.ID, models.AccountTypeCompany, models.AccountStatusActive)
			require.NoError(t, err)
			partner, err := fixtures.CreateTestPartner(account.ID, models.PartnerKindCompany, invitee.Email, models.PartnerStatusRejected)
			require.NoError(t, err)

			_, err = partnerFlow.Respond(context.Background(), invitee.ID, partner.UUID.String(),
				&dto.RespondInvitationRequest{Action: dto.InvitationActionApprove}, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsPartnerNotPending(err))
		})

		t.Run("UpdateEmailResetsToPendingAndRedispatches", func(t *testing.T) {
			owner, err := fixtures.CreateTestUser("")
			require.NoError(t, err)
			account, err := fixtures.CreateTestAccount(owner.ID, models.AccountTypeCompany, models.AccountStatusActive)
			require.NoError(t, err)
			partner, err := fixtures.CreateTestPartner(account.ID, models.PartnerKindCompany, "old.address@example.com", models.PartnerStatusApproved)
			require.NoError(t, err)

			resp, err := partnerFlow.Update(context.Background(), owner.ID, partner.UUID.String(),
				&dto.UpdatePartnerRequest{Email: utils.ToPtr("new.address@example.com")}, testMetadata())
			require.NoError(t, err)
			assert.Equal(t, models.PartnerStatusPending, resp.Status)
			assert.Equal(t, "new.address@example.com", resp.Email)
			assert.Empty(t, resp.RespondedAt)

			var count int64
			err = testDB.DB.Model(&models.NotificationOutbox{}).Where("recipient = ?", "new.address@example.com").Count(&count).Error
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)
		})

		t.Run("ResendOnlyForPending", func(t *testing.T) {
			owner, err := fixtures.CreateTestUser("")
			require.NoError(t, err)
			account, err := fixtures.CreateTestAccount(owner.ID, models.AccountTypeCompany, models.AccountStatusActive)
			require.NoError(t, err)

			pending, err := fixtures.CreateTestPartner(account.ID, models.PartnerKindCompany, "still.waiting@example.com", models.PartnerStatusPending)
			require.NoError(t, err)
			err = partnerFlow.Resend(context.Background(), owner.ID, pending.UUID.String(), testMetadata())
			require.NoError(t, err)

			approved, err := fixtures.CreateTestPartner(account.ID, models.PartnerKindCompany, "done.already@example.com", models.PartnerStatusApproved)
			require.NoError(t, err)
			err = partnerFlow.Resend(context.Background(), owner.ID, approved.UUID.String(), testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsPartnerNotPending(err))
		})

		t.Run("RemoveFreesTheEmail", func(t *testing.T) {
			owner, err := fixtures.CreateTestUser("")
			require.NoError(t, err)
			account, err := fixtures.CreateTestAccount(owner.ID, models.AccountTypeCompany, models.AccountStatusActive)
			require.NoError(t, err)
			partner, err := fixtures.CreateTestPartner(account.ID, models.PartnerKindCompany, "recycled@example.com", models.PartnerStatusApproved)
			require.NoError(t, err)

			err = partnerFlow.Remove(context.Background(), owner.ID, partner.UUID.String(), testMetadata())
			require.NoError(t, err)

			req := &dto.AddCompanyPartnerRequest{
				AccountUUID:   account.UUID.String(),
				Email:         "recycled@example.com",
				IsShareholder: utils.ToPtr(true),
			}
			_, err = partnerFlow.AddCompanyPartner(context.Background(), owner.ID, req, testMetadata())
			require.NoError(t, err)
		})

		t.Run("ListMyInvitations", func(t *testing.T) {
			owner, err := fixtures.CreateTestUser("")
			require.NoError(t, err)
			invitee, err := fixtures.CreateTestUser("busy.partner@example.com")
			require.NoError(t, err)
			first, err := fixtures.CreateTestAccount(owner.ID, models.AccountTypeCompany, models.AccountStatusActive)
			require.NoError(t, err)
			second, err := fixtures.CreateTestAccount(owner.ID, models.AccountTypeTrust, models.AccountStatusActive)
			require.NoError(t, err)

			_, err = fixtures.CreateTestPartner(first.ID, models.PartnerKindCompany, invitee.Email, models.PartnerStatusPending)
			require.NoError(t, err)
			_, err = fixtures.CreateTestPartner(second.ID, models.PartnerKindTrust, invitee.Email, models.PartnerStatusRejected)
			require.NoError(t, err)

			list, err := partnerFlow.ListMyInvitations(context.Background(), invitee.ID)
			require.NoError(t, err)
			require.Len(t, list.Partners, 1)
			assert.Equal(t, models.PartnerStatusPending, list.Partners[0].Status)
			assert.Equal(t, first.UUID.String(), list.Partners[0].AccountUUID)
		})

		t.Run("CheckEmail", func(t *testing.T) {
			owner, err := fixtures.CreateTestUser("")
			require.NoError(t, err)
			registered, err := fixtures.CreateTestUser("known.user@example.com")
			require.NoError(t, err)
			account, err := fixtures.CreateTestAccount(owner.ID, models.AccountTypeCompany, models.AccountStatusActive)
			require.NoError(t, err)
			_, err = fixtures.CreateTestPartner(account.ID, models.PartnerKindCompany, "taken@example.com", models.PartnerStatusPending)
			require.NoError(t, err)

			resp, err := partnerFlow.CheckEmail(context.Background(), owner.ID, account.UUID.String(), "Known.User@Example.com")
			require.NoError(t, err)
			assert.True(t, resp.RegisteredUser)
			assert.Equal(t, registered.FullName(), resp.RegisteredName)
			assert.False(t, resp.AlreadyInvited)
			assert.Equal(t, "known.user@example.com", resp.NormalizedEmail)

			resp, err = partnerFlow.CheckEmail(context.Background(), owner.ID, account.UUID.String(), "taken@example.com")
			require.NoError(t, err)
			assert.False(t, resp.RegisteredUser)
			assert.True(t, resp.AlreadyInvited)
		})

		return nil
	})
	require.NoError(t, err)
}
