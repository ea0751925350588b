// Package businessflow contains the business logic for the application.
package businessflow

import (
	"context"
	"fmt"

	"github.com/clearledger/portal-api/app/dto"
	"github.com/clearledger/portal-api/models"
	"github.com/clearledger/portal-api/repository"
	"github.com/clearledger/portal-api/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PartnerFlow manages partner invitations on company, trust and
// partnership accounts: the owner invites stakeholders by email, an
// invitation email goes out through the outbox, and the invitee approves
// or rejects from their own login.
type PartnerFlow interface {
	AddCompanyPartner(ctx context.Context, userID uint, req *dto.AddCompanyPartnerRequest, metadata *ClientMetadata) (*dto.AddPartnerResponse, error)
	AddTrustPartner(ctx context.Context, userID uint, req *dto.AddTrustPartnerRequest, metadata *ClientMetadata) (*dto.AddPartnerResponse, error)
	AddPartnershipPartner(ctx context.Context, userID uint, req *dto.AddPartnershipPartnerRequest, metadata *ClientMetadata) (*dto.AddPartnerResponse, error)
	Update(ctx context.Context, userID uint, partnerUUID string, req *dto.UpdatePartnerRequest, metadata *ClientMetadata) (*dto.PartnerDTO, error)
	Remove(ctx context.Context, userID uint, partnerUUID string, metadata *ClientMetadata) error
	Respond(ctx context.Context, userID uint, partnerUUID string, req *dto.RespondInvitationRequest, metadata *ClientMetadata) (*dto.PartnerDTO, error)
	Resend(ctx context.Context, userID uint, partnerUUID string, metadata *ClientMetadata) error
	ListByAccount(ctx context.Context, userID uint, accountUUID string) (*dto.PartnerListResponse, error)
	ListMyInvitations(ctx context.Context, userID uint) (*dto.PartnerListResponse, error)
	CheckEmail(ctx context.Context, userID uint, accountUUID, email string) (*dto.CheckPartnerEmailResponse, error)
}

// PartnerFlowImpl implements the partner business flow
type PartnerFlowImpl struct {
	partnerRepo repository.PartnerRepository
	accountRepo repository.AccountRepository
	userRepo    repository.UserRepository
	outboxRepo  repository.NotificationOutboxRepository
	auditRepo   repository.AuditLogRepository
	db          *gorm.DB
}

// NewPartnerFlow creates a new partner flow instance
func NewPartnerFlow(
	partnerRepo repository.PartnerRepository,
	accountRepo repository.AccountRepository,
	userRepo repository.UserRepository,
	outboxRepo repository.NotificationOutboxRepository,
	auditRepo repository.AuditLogRepository,
	db *gorm.DB,
) PartnerFlow {
	return &PartnerFlowImpl{
		partnerRepo: partnerRepo,
		accountRepo: accountRepo,
		userRepo:    userRepo,
		outboxRepo:  outboxRepo,
		auditRepo:   auditRepo,
		db:          db,
	}
}

// AddCompanyPartner invites a director/shareholder onto a COMPANY account
func (f *PartnerFlowImpl) AddCompanyPartner(ctx context.Context, userID uint, req *dto.AddCompanyPartnerRequest, metadata *ClientMetadata) (*dto.AddPartnerResponse, error) {
	if !utils.IsTrue(req.IsDirector) && !utils.IsTrue(req.IsShareholder) {
		return nil, NewBusinessError("PARTNER_ROLE_REQUIRED", "Company partner must be a director, a shareholder, or both", ErrPartnerRoleRequired)
	}
	partner := &models.Partner{
		Kind:          models.PartnerKindCompany,
		Email:         utils.NormalizeEmail(req.Email),
		DisplayName:   req.DisplayName,
		IsDirector:    req.IsDirector,
		IsShareholder: req.IsShareholder,
	}
	return f.addPartner(ctx, userID, req.AccountUUID, partner, metadata)
}

// AddTrustPartner invites a trustee/beneficiary onto a TRUST account
func (f *PartnerFlowImpl) AddTrustPartner(ctx context.Context, userID uint, req *dto.AddTrustPartnerRequest, metadata *ClientMetadata) (*dto.AddPartnerResponse, error) {
	if req.Role == "" {
		return nil, NewBusinessError("PARTNER_ROLE_REQUIRED", "Trust partner role is required", ErrPartnerRoleRequired)
	}
	partner := &models.Partner{
		Kind:               models.PartnerKindTrust,
		Email:              utils.NormalizeEmail(req.Email),
		DisplayName:        req.DisplayName,
		Role:               &req.Role,
		BeneficiaryPercent: req.BeneficiaryPercent,
	}
	return f.addPartner(ctx, userID, req.AccountUUID, partner, metadata)
}

// AddPartnershipPartner invites a partner onto a PARTNERSHIP account
func (f *PartnerFlowImpl) AddPartnershipPartner(ctx context.Context, userID uint, req *dto.AddPartnershipPartnerRequest, metadata *ClientMetadata) (*dto.AddPartnerResponse, error) {
	partner := &models.Partner{
		Kind:             models.PartnerKindPartnership,
		Email:            utils.NormalizeEmail(req.Email),
		DisplayName:      req.DisplayName,
		Role:             req.Role,
		OwnershipPercent: req.OwnershipPercent,
	}
	return f.addPartner(ctx, userID, req.AccountUUID, partner, metadata)
}

func (f *PartnerFlowImpl) addPartner(ctx context.Context, userID uint, accountUUID string, partner *models.Partner, metadata *ClientMetadata) (*dto.AddPartnerResponse, error) {
	account, owner, err := f.ownedAccountWithOwner(ctx, userID, accountUUID)
	if err != nil {
		return nil, err
	}
	if account.Status == models.AccountStatusClosed {
		return nil, NewBusinessError("INVALID_STATUS_TRANSITION", "Closed accounts cannot be modified", ErrInvalidStatusTransition)
	}
	if account.EntityType != partner.Kind {
		return nil, NewBusinessError("PARTNER_KIND_MISMATCH", "Partner type does not match the account's entity type", ErrPartnerKindMismatch)
	}
	if partner.Email == utils.NormalizeEmail(owner.Email) {
		return nil, NewBusinessError("PARTNER_EMAIL_IS_OWNER", "You cannot invite yourself as a partner", ErrPartnerEmailIsOwner)
	}

	// Read-then-insert check; the composite unique index backstops
	// concurrent duplicates.
	exists, err := f.partnerRepo.ActiveEmailExists(ctx, account.ID, partner.Email)
	if err != nil {
		return nil, NewBusinessError("PARTNER_ADD_FAILED", "Failed to add partner", err)
	}
	if exists {
		return nil, NewBusinessError("PARTNER_EMAIL_ALREADY_EXISTS", "This email is already invited on the account", ErrPartnerEmailAlreadyExists)
	}

	invitee, err := f.userRepo.ByEmail(ctx, partner.Email)
	if err != nil {
		return nil, NewBusinessError("PARTNER_ADD_FAILED", "Failed to add partner", err)
	}

	partner.UUID = uuid.New()
	partner.CorrelationID = uuid.New()
	partner.AccountID = account.ID
	partner.Status = models.PartnerStatusPending
	partner.InvitedAt = utils.UTCNow()
	// The record stays addressed by email until the invitee accepts;
	// LinkedUserID is set in Respond.

	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		if err := f.partnerRepo.Save(txCtx, partner); err != nil {
			if repository.IsUniqueViolation(err) {
				return ErrPartnerEmailAlreadyExists
			}
			return err
		}
		return f.enqueueInvitation(txCtx, partner, account, owner, invitee != nil)
	})
	if err != nil {
		if IsPartnerEmailAlreadyExists(err) {
			return nil, NewBusinessError("PARTNER_EMAIL_ALREADY_EXISTS", "This email is already invited on the account", err)
		}
		return nil, NewBusinessError("PARTNER_ADD_FAILED", "Failed to add partner", err)
	}

	f.logPartnerAction(ctx, userID, models.AuditActionPartnerAdded, fmt.Sprintf("partner invited: %s on account %s", utils.MaskEmail(partner.Email), account.UUID), metadata)

	response := &dto.AddPartnerResponse{
		Partner:      ToPartnerDTO(*partner, account.UUID.String()),
		ExistingUser: invitee != nil,
	}
	if invitee != nil {
		response.ExistingUserName = invitee.FullName()
	}
	return response, nil
}

// Update edits a partner record. A changed email resets the record to
// PENDING and re-dispatches the invitation to the new address.
func (f *PartnerFlowImpl) Update(ctx context.Context, userID uint, partnerUUID string, req *dto.UpdatePartnerRequest, metadata *ClientMetadata) (*dto.PartnerDTO, error) {
	partner, account, owner, err := f.ownedPartner(ctx, userID, partnerUUID)
	if err != nil {
		return nil, err
	}

	emailChanged := false
	if req.Email != nil {
		newEmail := utils.NormalizeEmail(*req.Email)
		if newEmail != partner.Email {
			if newEmail == utils.NormalizeEmail(owner.Email) {
				return nil, NewBusinessError("PARTNER_EMAIL_IS_OWNER", "You cannot invite yourself as a partner", ErrPartnerEmailIsOwner)
			}
			exists, err := f.partnerRepo.ActiveEmailExists(ctx, account.ID, newEmail)
			if err != nil {
				return nil, NewBusinessError("PARTNER_UPDATE_FAILED", "Failed to update partner", err)
			}
			if exists {
				return nil, NewBusinessError("PARTNER_EMAIL_ALREADY_EXISTS", "This email is already invited on the account", ErrPartnerEmailAlreadyExists)
			}
			partner.Email = newEmail
			emailChanged = true
		}
	}

	if req.DisplayName != nil {
		partner.DisplayName = req.DisplayName
	}
	switch partner.Kind {
	case models.PartnerKindCompany:
		if req.IsDirector != nil {
			partner.IsDirector = req.IsDirector
		}
		if req.IsShareholder != nil {
			partner.IsShareholder = req.IsShareholder
		}
	case models.PartnerKindTrust:
		if req.Role != nil {
			partner.Role = req.Role
		}
		if req.BeneficiaryPercent != nil {
			partner.BeneficiaryPercent = req.BeneficiaryPercent
		}
	case models.PartnerKindPartnership:
		if req.Role != nil {
			partner.Role = req.Role
		}
		if req.OwnershipPercent != nil {
			partner.OwnershipPercent = req.OwnershipPercent
		}
	}

	var invitee *models.User
	if emailChanged {
		invitee, err = f.userRepo.ByEmail(ctx, partner.Email)
		if err != nil {
			return nil, NewBusinessError("PARTNER_UPDATE_FAILED", "Failed to update partner", err)
		}
		// New addressee, new approval cycle; the new invitee links on
		// acceptance.
		partner.Status = models.PartnerStatusPending
		partner.RespondedAt = nil
		partner.LinkedUserID = nil
		partner.InvitedAt = utils.UTCNow()
	}

	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		if err := f.partnerRepo.Update(txCtx, partner); err != nil {
			if repository.IsUniqueViolation(err) {
				return ErrPartnerEmailAlreadyExists
			}
			return err
		}
		if emailChanged {
			return f.enqueueInvitation(txCtx, partner, account, owner, invitee != nil)
		}
		return nil
	})
	if err != nil {
		if IsPartnerEmailAlreadyExists(err) {
			return nil, NewBusinessError("PARTNER_EMAIL_ALREADY_EXISTS", "This email is already invited on the account", err)
		}
		return nil, NewBusinessError("PARTNER_UPDATE_FAILED", "Failed to update partner", err)
	}

	f.logPartnerAction(ctx, userID, models.AuditActionPartnerUpdated, fmt.Sprintf("partner updated: %s", partner.UUID), metadata)

	out := ToPartnerDTO(*partner, account.UUID.String())
	return &out, nil
}

// Remove hard-deletes a partner record (owner side). The email becomes
// immediately re-invitable.
func (f *PartnerFlowImpl) Remove(ctx context.Context, userID uint, partnerUUID string, metadata *ClientMetadata) error {
	partner, _, _, err := f.ownedPartner(ctx, userID, partnerUUID)
	if err != nil {
		return err
	}

	if err := f.partnerRepo.Delete(ctx, partner.ID); err != nil {
		return NewBusinessError("PARTNER_REMOVE_FAILED", "Failed to remove partner", err)
	}

	f.logPartnerAction(ctx, userID, models.AuditActionPartnerRemoved, fmt.Sprintf("partner removed: %s", partner.UUID), metadata)
	return nil
}

// Respond records the invitee's approve/reject decision. Only the user
// whose email the invitation is addressed to may respond, and only while
// the invitation is PENDING.
func (f *PartnerFlowImpl) Respond(ctx context.Context, userID uint, partnerUUID string, req *dto.RespondInvitationRequest, metadata *ClientMetadata) (*dto.PartnerDTO, error) {
	partner, err := f.partnerRepo.ByUUID(ctx, partnerUUID)
	if err != nil {
		return nil, NewBusinessError("PARTNER_LOOKUP_FAILED", "Failed to lookup invitation", err)
	}
	if partner == nil {
		return nil, NewBusinessError("PARTNER_NOT_FOUND", "Invitation not found", ErrPartnerNotFound)
	}

	user, err := f.userRepo.ByID(ctx, userID)
	if err != nil || user == nil {
		return nil, NewBusinessError("PARTNER_RESPOND_FAILED", "Failed to respond to invitation", ErrUserNotFound)
	}
	if utils.NormalizeEmail(user.Email) != partner.Email {
		return nil, NewBusinessError("PARTNER_NOT_ADDRESSED_TO_YOU", "This invitation is not addressed to you", ErrPartnerNotAddressedToYou)
	}
	if !partner.IsPending() {
		return nil, NewBusinessError("PARTNER_NOT_PENDING", "Invitation has already been answered", ErrPartnerNotPending)
	}

	switch req.Action {
	case dto.InvitationActionApprove:
		partner.Status = models.PartnerStatusApproved
	case dto.InvitationActionReject:
		partner.Status = models.PartnerStatusRejected
	default:
		return nil, NewBusinessError("PARTNER_RESPOND_FAILED", "Unknown invitation action", ErrPartnerNotPending)
	}
	partner.RespondedAt = utils.UTCNowPtr()
	partner.LinkedUserID = &userID

	if err := f.partnerRepo.Update(ctx, partner); err != nil {
		return nil, NewBusinessError("PARTNER_RESPOND_FAILED", "Failed to respond to invitation", err)
	}

	f.logPartnerAction(ctx, userID, models.AuditActionPartnerResponded, fmt.Sprintf("invitation %s: %s", req.Action, partner.UUID), metadata)

	accountUUID := ""
	if account, err := f.accountRepo.ByID(ctx, partner.AccountID); err == nil && account != nil {
		accountUUID = account.UUID.String()
	}
	out := ToPartnerDTO(*partner, accountUUID)
	return &out, nil
}

// Resend re-dispatches the invitation email for a PENDING invitation
func (f *PartnerFlowImpl) Resend(ctx context.Context, userID uint, partnerUUID string, metadata *ClientMetadata) error {
	partner, account, owner, err := f.ownedPartner(ctx, userID, partnerUUID)
	if err != nil {
		return err
	}
	if !partner.IsPending() {
		return NewBusinessError("PARTNER_NOT_PENDING", "Only pending invitations can be resent", ErrPartnerNotPending)
	}

	invitee, err := f.userRepo.ByEmail(ctx, partner.Email)
	if err != nil {
		return NewBusinessError("INVITATION_RESEND_FAILED", "Failed to resend invitation", err)
	}

	partner.InvitedAt = utils.UTCNow()
	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		if err := f.partnerRepo.Update(txCtx, partner); err != nil {
			return err
		}
		return f.enqueueInvitation(txCtx, partner, account, owner, invitee != nil)
	})
	if err != nil {
		return NewBusinessError("INVITATION_RESEND_FAILED", "Failed to resend invitation", err)
	}

	f.logPartnerAction(ctx, userID, models.AuditActionInvitationResent, fmt.Sprintf("invitation resent: %s", partner.UUID), metadata)
	return nil
}

// ListByAccount lists all partner records on an account the caller owns
func (f *PartnerFlowImpl) ListByAccount(ctx context.Context, userID uint, accountUUID string) (*dto.PartnerListResponse, error) {
	account, _, err := f.ownedAccountWithOwner(ctx, userID, accountUUID)
	if err != nil {
		return nil, err
	}

	partners, err := f.partnerRepo.ListByAccount(ctx, account.ID)
	if err != nil {
		return nil, NewBusinessError("PARTNER_LIST_FAILED", "Failed to list partners", err)
	}

	response := &dto.PartnerListResponse{Partners: make([]dto.PartnerDTO, 0, len(partners))}
	for _, p := range partners {
		response.Partners = append(response.Partners, ToPartnerDTO(*p, account.UUID.String()))
	}
	return response, nil
}

// ListMyInvitations lists PENDING invitations addressed to the caller's email
func (f *PartnerFlowImpl) ListMyInvitations(ctx context.Context, userID uint) (*dto.PartnerListResponse, error) {
	user, err := f.userRepo.ByID(ctx, userID)
	if err != nil || user == nil {
		return nil, NewBusinessError("PARTNER_LIST_FAILED", "Failed to list invitations", ErrUserNotFound)
	}

	partners, err := f.partnerRepo.ListPendingByEmail(ctx, utils.NormalizeEmail(user.Email))
	if err != nil {
		return nil, NewBusinessError("PARTNER_LIST_FAILED", "Failed to list invitations", err)
	}

	response := &dto.PartnerListResponse{Partners: make([]dto.PartnerDTO, 0, len(partners))}
	for _, p := range partners {
		response.Partners = append(response.Partners, ToPartnerDTO(*p, p.Account.UUID.String()))
	}
	return response, nil
}

// CheckEmail reports whether an email belongs to a registered user and
// whether it is already invited on the account, so the UI can show the
// right call to action before the owner submits.
func (f *PartnerFlowImpl) CheckEmail(ctx context.Context, userID uint, accountUUID, email string) (*dto.CheckPartnerEmailResponse, error) {
	account, _, err := f.ownedAccountWithOwner(ctx, userID, accountUUID)
	if err != nil {
		return nil, err
	}

	normalized := utils.NormalizeEmail(email)
	response := &dto.CheckPartnerEmailResponse{NormalizedEmail: normalized}

	if user, err := f.userRepo.ByEmail(ctx, normalized); err == nil && user != nil {
		response.RegisteredUser = true
		response.RegisteredName = user.FullName()
	}
	if exists, err := f.partnerRepo.ActiveEmailExists(ctx, account.ID, normalized); err == nil {
		response.AlreadyInvited = exists
	}
	return response, nil
}

// enqueueInvitation writes the invitation email into the outbox inside
// the caller's transaction. Registered invitees get an approval request;
// unregistered addresses get a register-then-approve invite.
func (f *PartnerFlowImpl) enqueueInvitation(ctx context.Context, partner *models.Partner, account *models.Account, owner *models.User, inviteeRegistered bool) error {
	accountName := account.DisplayName()
	if accountName == "" {
		accountName = account.EntityType
	}

	kind := models.NotificationKindPartnerRegisterInvite
	subject := fmt.Sprintf("%s has added you to %s on ClearLedger", owner.FullName(), accountName)
	bodyText := fmt.Sprintf(
		"%s has listed you as a partner on %s.\r\n\r\nCreate a ClearLedger account with this email address to review and approve the request.\r\n",
		owner.FullName(), accountName,
	)
	if inviteeRegistered {
		kind = models.NotificationKindPartnerApprovalRequest
		subject = fmt.Sprintf("Approval requested: %s on ClearLedger", accountName)
		bodyText = fmt.Sprintf(
			"%s has listed you as a partner on %s.\r\n\r\nLog in to ClearLedger to approve or reject the request.\r\n",
			owner.FullName(), accountName,
		)
	}

	entry := &models.NotificationOutbox{
		UUID:          uuid.New(),
		CorrelationID: partner.CorrelationID,
		Kind:          kind,
		Recipient:     partner.Email,
		Subject:       subject,
		BodyHTML:      "<p>" + bodyText + "</p>",
		BodyText:      bodyText,
		Status:        models.OutboxStatusPending,
		NextAttemptAt: utils.UTCNow(),
	}
	return f.outboxRepo.Save(ctx, entry)
}

func (f *PartnerFlowImpl) ownedAccountWithOwner(ctx context.Context, userID uint, accountUUID string) (*models.Account, *models.User, error) {
	account, err := f.accountRepo.ByUUIDWithProfile(ctx, accountUUID)
	if err != nil {
		return nil, nil, NewBusinessError("ACCOUNT_LOOKUP_FAILED", "Failed to lookup account", err)
	}
	if account == nil {
		return nil, nil, NewBusinessError("ACCOUNT_NOT_FOUND", "Account not found", ErrAccountNotFound)
	}
	if account.UserID != userID {
		return nil, nil, NewBusinessError("ACCOUNT_ACCESS_DENIED", "Account does not belong to you", ErrAccountAccessDenied)
	}

	owner, err := f.userRepo.ByID(ctx, userID)
	if err != nil || owner == nil {
		return nil, nil, NewBusinessError("ACCOUNT_LOOKUP_FAILED", "Failed to lookup account owner", ErrUserNotFound)
	}
	return account, owner, nil
}

func (f *PartnerFlowImpl) ownedPartner(ctx context.Context, userID uint, partnerUUID string) (*models.Partner, *models.Account, *models.User, error) {
	partner, err := f.partnerRepo.ByUUID(ctx, partnerUUID)
	if err != nil {
		return nil, nil, nil, NewBusinessError("PARTNER_LOOKUP_FAILED", "Failed to lookup partner", err)
	}
	if partner == nil {
		return nil, nil, nil, NewBusinessError("PARTNER_NOT_FOUND", "Partner not found", ErrPartnerNotFound)
	}

	account, err := f.accountRepo.ByID(ctx, partner.AccountID)
	if err != nil || account == nil {
		return nil, nil, nil, NewBusinessError("ACCOUNT_NOT_FOUND", "Account not found", ErrAccountNotFound)
	}
	if account.UserID != userID {
		return nil, nil, nil, NewBusinessError("ACCOUNT_ACCESS_DENIED", "Account does not belong to you", ErrAccountAccessDenied)
	}

	owner, err := f.userRepo.ByID(ctx, userID)
	if err != nil || owner == nil {
		return nil, nil, nil, NewBusinessError("ACCOUNT_LOOKUP_FAILED", "Failed to lookup account owner", ErrUserNotFound)
	}
	return partner, account, owner, nil
}

func (f *PartnerFlowImpl) logPartnerAction(ctx context.Context, userID uint, action, description string, metadata *ClientMetadata) {
	audit := &models.AuditLog{
		UserID:      &userID,
		Action:      action,
		Description: &description,
		Success:     utils.ToPtr(true),
	}
	if metadata != nil {
		audit.IPAddress = &metadata.IPAddress
		audit.UserAgent = &metadata.UserAgent
	}
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		audit.RequestID = &requestID
	}
	_ = f.auditRepo.Save(ctx, audit)
}
