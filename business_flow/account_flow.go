// Package businessflow contains the business logic for the application.
package businessflow

import (
	"context"
	"fmt"
	"time"

	"github.com/clearledger/portal-api/app/dto"
	"github.com/clearledger/portal-api/models"
	"github.com/clearledger/portal-api/repository"
	"github.com/clearledger/portal-api/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AccountFlow manages the lifecycle of tax-entity accounts. Create,
// update, submit, close, reopen and delete are owner operations;
// activate and suspend are back-office operations.
type AccountFlow interface {
	Create(ctx context.Context, userID uint, req *dto.CreateAccountRequest, metadata *ClientMetadata) (*dto.AccountDTO, error)
	Update(ctx context.Context, userID uint, accountUUID string, req *dto.UpdateAccountRequest, metadata *ClientMetadata) (*dto.AccountDTO, error)
	Get(ctx context.Context, userID uint, accountUUID string) (*dto.AccountDTO, error)
	List(ctx context.Context, userID uint) (*dto.AccountListResponse, error)
	Submit(ctx context.Context, userID uint, accountUUID string, metadata *ClientMetadata) (*dto.AccountDTO, error)
	Close(ctx context.Context, userID uint, accountUUID string, metadata *ClientMetadata) (*dto.AccountDTO, error)
	Reopen(ctx context.Context, userID uint, accountUUID string, metadata *ClientMetadata) (*dto.AccountDTO, error)
	Delete(ctx context.Context, userID uint, accountUUID string, metadata *ClientMetadata) error

	Activate(ctx context.Context, accountUUID string, metadata *ClientMetadata) (*dto.AccountDTO, error)
	Suspend(ctx context.Context, accountUUID string, metadata *ClientMetadata) (*dto.AccountDTO, error)
	AdminList(ctx context.Context, req *dto.AdminAccountListRequest) (*dto.AdminAccountListResponse, error)
}

// AccountFlowImpl implements the account business flow
type AccountFlowImpl struct {
	accountRepo  repository.AccountRepository
	purchaseRepo repository.AccountServiceRepository
	auditRepo    repository.AuditLogRepository
	db           *gorm.DB
}

// NewAccountFlow creates a new account flow instance
func NewAccountFlow(
	accountRepo repository.AccountRepository,
	purchaseRepo repository.AccountServiceRepository,
	auditRepo repository.AuditLogRepository,
	db *gorm.DB,
) AccountFlow {
	return &AccountFlowImpl{
		accountRepo:  accountRepo,
		purchaseRepo: purchaseRepo,
		auditRepo:    auditRepo,
		db:           db,
	}
}

// Create opens a new account in DRAFT with the profile variant matching
// the requested entity type.
func (f *AccountFlowImpl) Create(ctx context.Context, userID uint, req *dto.CreateAccountRequest, metadata *ClientMetadata) (*dto.AccountDTO, error) {
	if !models.IsValidAccountType(req.EntityType) {
		return nil, NewBusinessError("INVALID_ENTITY_TYPE", "Unsupported entity type", ErrInvalidEntityType)
	}

	account := &models.Account{
		UUID:       uuid.New(),
		UserID:     userID,
		EntityType: req.EntityType,
		Status:     models.AccountStatusDraft,
		IsDefault:  req.IsDefault,
	}
	if err := attachProfile(account, req.EntityType, req.Individual, req.Company, req.Trust, req.Partnership); err != nil {
		return nil, err
	}

	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		if utils.IsTrue(req.IsDefault) {
			if err := f.accountRepo.ClearDefaultForUser(txCtx, userID); err != nil {
				return err
			}
		}
		return f.accountRepo.Save(txCtx, account)
	})
	if err != nil {
		return nil, NewBusinessError("ACCOUNT_CREATE_FAILED", "Failed to create account", err)
	}

	f.logAccountAction(ctx, userID, models.AuditActionAccountCreated, fmt.Sprintf("account created: %s (%s)", account.UUID, account.EntityType), metadata)

	out := ToAccountDTO(*account)
	return &out, nil
}

// Update patches the profile of an account the caller owns. Profile
// edits are allowed in any non-closed status; the variant must match
// the account's entity type.
func (f *AccountFlowImpl) Update(ctx context.Context, userID uint, accountUUID string, req *dto.UpdateAccountRequest, metadata *ClientMetadata) (*dto.AccountDTO, error) {
	account, err := f.ownedAccount(ctx, userID, accountUUID)
	if err != nil {
		return nil, err
	}
	if account.Status == models.AccountStatusClosed {
		return nil, NewBusinessError("INVALID_STATUS_TRANSITION", "Closed accounts cannot be edited", ErrInvalidStatusTransition)
	}

	hasPayload := req.Individual != nil || req.Company != nil || req.Trust != nil || req.Partnership != nil
	if hasPayload {
		if err := attachProfile(account, account.EntityType, req.Individual, req.Company, req.Trust, req.Partnership); err != nil {
			return nil, err
		}
	}

	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		if req.IsDefault != nil {
			if utils.IsTrue(req.IsDefault) {
				if err := f.accountRepo.ClearDefaultForUser(txCtx, userID); err != nil {
					return err
				}
			}
			account.IsDefault = req.IsDefault
		}
		return f.accountRepo.Save(txCtx, account)
	})
	if err != nil {
		return nil, NewBusinessError("ACCOUNT_UPDATE_FAILED", "Failed to update account", err)
	}

	out := ToAccountDTO(*account)
	return &out, nil
}

// Get returns one account the caller owns
func (f *AccountFlowImpl) Get(ctx context.Context, userID uint, accountUUID string) (*dto.AccountDTO, error) {
	account, err := f.ownedAccount(ctx, userID, accountUUID)
	if err != nil {
		return nil, err
	}
	out := ToAccountDTO(*account)
	return &out, nil
}

// List returns all accounts the caller owns, newest first
func (f *AccountFlowImpl) List(ctx context.Context, userID uint) (*dto.AccountListResponse, error) {
	accounts, err := f.accountRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, NewBusinessError("ACCOUNT_LIST_FAILED", "Failed to list accounts", err)
	}

	response := &dto.AccountListResponse{Accounts: make([]dto.AccountDTO, 0, len(accounts))}
	for _, account := range accounts {
		// Reload with profile so display names and masked fields come out.
		full, err := f.accountRepo.ByUUIDWithProfile(ctx, account.UUID.String())
		if err != nil || full == nil {
			response.Accounts = append(response.Accounts, ToAccountDTO(*account))
			continue
		}
		response.Accounts = append(response.Accounts, ToAccountDTO(*full))
	}
	return response, nil
}

// Submit moves a DRAFT account to PENDING for back-office review
func (f *AccountFlowImpl) Submit(ctx context.Context, userID uint, accountUUID string, metadata *ClientMetadata) (*dto.AccountDTO, error) {
	account, err := f.ownedAccount(ctx, userID, accountUUID)
	if err != nil {
		return nil, err
	}
	if account.Status != models.AccountStatusDraft {
		return nil, NewBusinessError("INVALID_STATUS_TRANSITION", "Only draft accounts can be submitted", ErrInvalidStatusTransition)
	}
	if !hasProfile(account) {
		return nil, NewBusinessError("PROFILE_REQUIRED", "Account profile must be completed before submission", ErrProfileRequired)
	}

	if err := f.transition(ctx, account, models.AccountStatusPending); err != nil {
		return nil, err
	}
	f.logAccountAction(ctx, userID, models.AuditActionAccountSubmitted, fmt.Sprintf("account submitted: %s", account.UUID), metadata)

	out := ToAccountDTO(*account)
	return &out, nil
}

// Close moves an ACTIVE or SUSPENDED account to CLOSED. Closing is
// reversible via Reopen.
func (f *AccountFlowImpl) Close(ctx context.Context, userID uint, accountUUID string, metadata *ClientMetadata) (*dto.AccountDTO, error) {
	account, err := f.ownedAccount(ctx, userID, accountUUID)
	if err != nil {
		return nil, err
	}
	if account.Status != models.AccountStatusActive && account.Status != models.AccountStatusSuspended {
		return nil, NewBusinessError("INVALID_STATUS_TRANSITION", "Only active or suspended accounts can be closed", ErrInvalidStatusTransition)
	}

	if err := f.transition(ctx, account, models.AccountStatusClosed); err != nil {
		return nil, err
	}
	f.logAccountAction(ctx, userID, models.AuditActionAccountClosed, fmt.Sprintf("account closed: %s", account.UUID), metadata)

	out := ToAccountDTO(*account)
	return &out, nil
}

// Reopen restores a CLOSED account to ACTIVE
func (f *AccountFlowImpl) Reopen(ctx context.Context, userID uint, accountUUID string, metadata *ClientMetadata) (*dto.AccountDTO, error) {
	account, err := f.ownedAccount(ctx, userID, accountUUID)
	if err != nil {
		return nil, err
	}
	if account.Status != models.AccountStatusClosed {
		return nil, NewBusinessError("INVALID_STATUS_TRANSITION", "Only closed accounts can be reopened", ErrInvalidStatusTransition)
	}

	if err := f.transition(ctx, account, models.AccountStatusActive); err != nil {
		return nil, err
	}
	f.logAccountAction(ctx, userID, models.AuditActionAccountReopened, fmt.Sprintf("account reopened: %s", account.UUID), metadata)

	out := ToAccountDTO(*account)
	return &out, nil
}

// Delete hard-deletes an account. Accounts with purchases in flight
// cannot be removed.
func (f *AccountFlowImpl) Delete(ctx context.Context, userID uint, accountUUID string, metadata *ClientMetadata) error {
	account, err := f.ownedAccount(ctx, userID, accountUUID)
	if err != nil {
		return err
	}

	purchases, err := f.purchaseRepo.ListByAccount(ctx, account.ID)
	if err != nil {
		return NewBusinessError("ACCOUNT_DELETE_FAILED", "Failed to delete account", err)
	}
	for _, p := range purchases {
		if p.Status != models.PurchaseStatusCancelled && p.Status != models.PurchaseStatusCompleted {
			return NewBusinessError("ACCOUNT_HAS_ACTIVE_SERVICES", "Account has services in progress", ErrAccountHasActiveServices)
		}
	}

	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		return f.accountRepo.Delete(txCtx, account.ID)
	})
	if err != nil {
		return NewBusinessError("ACCOUNT_DELETE_FAILED", "Failed to delete account", err)
	}

	f.logAccountAction(ctx, userID, models.AuditActionAccountDeleted, fmt.Sprintf("account deleted: %s", account.UUID), metadata)
	return nil
}

// Activate moves a PENDING or SUSPENDED account to ACTIVE (back office)
func (f *AccountFlowImpl) Activate(ctx context.Context, accountUUID string, metadata *ClientMetadata) (*dto.AccountDTO, error) {
	account, err := f.anyAccount(ctx, accountUUID)
	if err != nil {
		return nil, err
	}
	if account.Status != models.AccountStatusPending && account.Status != models.AccountStatusSuspended {
		return nil, NewBusinessError("INVALID_STATUS_TRANSITION", "Only pending or suspended accounts can be activated", ErrInvalidStatusTransition)
	}

	if err := f.transition(ctx, account, models.AccountStatusActive); err != nil {
		return nil, err
	}
	f.logAccountAction(ctx, account.UserID, models.AuditActionAccountActivated, fmt.Sprintf("account activated: %s", account.UUID), metadata)

	out := ToAccountDTO(*account)
	return &out, nil
}

// Suspend moves an ACTIVE account to SUSPENDED (back office)
func (f *AccountFlowImpl) Suspend(ctx context.Context, accountUUID string, metadata *ClientMetadata) (*dto.AccountDTO, error) {
	account, err := f.anyAccount(ctx, accountUUID)
	if err != nil {
		return nil, err
	}
	if account.Status != models.AccountStatusActive {
		return nil, NewBusinessError("INVALID_STATUS_TRANSITION", "Only active accounts can be suspended", ErrInvalidStatusTransition)
	}

	if err := f.transition(ctx, account, models.AccountStatusSuspended); err != nil {
		return nil, err
	}
	f.logAccountAction(ctx, account.UserID, models.AuditActionAccountSuspended, fmt.Sprintf("account suspended: %s", account.UUID), metadata)

	out := ToAccountDTO(*account)
	return &out, nil
}

// AdminList returns accounts across all owners for the back office,
// filtered and paginated, newest first.
func (f *AccountFlowImpl) AdminList(ctx context.Context, req *dto.AdminAccountListRequest) (*dto.AdminAccountListResponse, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	filter := models.AccountFilter{Status: req.Status, EntityType: req.EntityType}
	total, err := f.accountRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("ACCOUNT_LIST_FAILED", "Failed to list accounts", err)
	}
	rows, err := f.accountRepo.ListAll(ctx, filter, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("ACCOUNT_LIST_FAILED", "Failed to list accounts", err)
	}

	response := &dto.AdminAccountListResponse{
		Items:    make([]dto.AdminAccountRowDTO, 0, len(rows)),
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}
	for _, account := range rows {
		row := dto.AdminAccountRowDTO{
			UUID:        account.UUID.String(),
			OwnerEmail:  account.User.Email,
			EntityType:  account.EntityType,
			Status:      account.Status,
			DisplayName: account.DisplayName(),
			CreatedAt:   account.CreatedAt.Format(time.RFC3339),
		}
		if account.SubmittedAt != nil {
			row.SubmittedAt = account.SubmittedAt.Format(time.RFC3339)
		}
		if account.ActivatedAt != nil {
			row.ActivatedAt = account.ActivatedAt.Format(time.RFC3339)
		}
		response.Items = append(response.Items, row)
	}
	return response, nil
}

func (f *AccountFlowImpl) transition(ctx context.Context, account *models.Account, status string) error {
	now := utils.UTCNow()
	if err := f.accountRepo.UpdateStatus(ctx, account.ID, status, now); err != nil {
		return NewBusinessError("ACCOUNT_STATUS_UPDATE_FAILED", "Failed to update account status", err)
	}
	account.Status = status
	switch status {
	case models.AccountStatusPending:
		account.SubmittedAt = &now
	case models.AccountStatusActive:
		account.ActivatedAt = &now
	case models.AccountStatusClosed:
		account.ClosedAt = &now
	}
	return nil
}

func (f *AccountFlowImpl) ownedAccount(ctx context.Context, userID uint, accountUUID string) (*models.Account, error) {
	account, err := f.anyAccount(ctx, accountUUID)
	if err != nil {
		return nil, err
	}
	if account.UserID != userID {
		return nil, NewBusinessError("ACCOUNT_ACCESS_DENIED", "Account does not belong to you", ErrAccountAccessDenied)
	}
	return account, nil
}

func (f *AccountFlowImpl) anyAccount(ctx context.Context, accountUUID string) (*models.Account, error) {
	account, err := f.accountRepo.ByUUIDWithProfile(ctx, accountUUID)
	if err != nil {
		return nil, NewBusinessError("ACCOUNT_LOOKUP_FAILED", "Failed to lookup account", err)
	}
	if account == nil {
		return nil, NewBusinessError("ACCOUNT_NOT_FOUND", "Account not found", ErrAccountNotFound)
	}
	return account, nil
}

func (f *AccountFlowImpl) logAccountAction(ctx context.Context, userID uint, action, description string, metadata *ClientMetadata) {
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

func hasProfile(account *models.Account) bool {
	switch account.EntityType {
	case models.AccountTypeIndividual:
		return account.IndividualProfile != nil
	case models.AccountTypeCompany:
		return account.CompanyProfile != nil
	case models.AccountTypeTrust:
		return account.TrustProfile != nil
	case models.AccountTypePartnership:
		return account.PartnershipProfile != nil
	}
	return false
}

// attachProfile validates that the payload variant matches the entity
// type and attaches it to the account for save.
func attachProfile(
	account *models.Account,
	entityType string,
	individual *dto.IndividualProfilePayload,
	company *dto.CompanyProfilePayload,
	trust *dto.TrustProfilePayload,
	partnership *dto.PartnershipProfilePayload,
) error {
	switch entityType {
	case models.AccountTypeIndividual:
		if individual == nil || company != nil || trust != nil || partnership != nil {
			return NewBusinessError("PROFILE_REQUIRED", "Individual profile payload required", ErrProfileRequired)
		}
		profile := account.IndividualProfile
		if profile == nil {
			profile = &models.IndividualProfile{}
			account.IndividualProfile = profile
		}
		profile.FirstName = individual.FirstName
		profile.LastName = individual.LastName
		profile.TFN = individual.TFN
		if individual.DateOfBirth != nil {
			dob, err := time.Parse("2006-01-02", *individual.DateOfBirth)
			if err != nil {
				return NewBusinessError("PROFILE_INVALID", "Invalid date of birth", err)
			}
			profile.DateOfBirth = &dob
		}
	case models.AccountTypeCompany:
		if company == nil || individual != nil || trust != nil || partnership != nil {
			return NewBusinessError("PROFILE_REQUIRED", "Company profile payload required", ErrProfileRequired)
		}
		profile := account.CompanyProfile
		if profile == nil {
			profile = &models.CompanyProfile{}
			account.CompanyProfile = profile
		}
		profile.CompanyName = company.CompanyName
		profile.ACN = company.ACN
		profile.ABN = company.ABN
		profile.TFN = company.TFN
	case models.AccountTypeTrust:
		if trust == nil || individual != nil || company != nil || partnership != nil {
			return NewBusinessError("PROFILE_REQUIRED", "Trust profile payload required", ErrProfileRequired)
		}
		profile := account.TrustProfile
		if profile == nil {
			profile = &models.TrustProfile{}
			account.TrustProfile = profile
		}
		profile.TrustName = trust.TrustName
		profile.TrusteeName = trust.TrusteeName
		profile.ABN = trust.ABN
		profile.TFN = trust.TFN
	case models.AccountTypePartnership:
		if partnership == nil || individual != nil || company != nil || trust != nil {
			return NewBusinessError("PROFILE_REQUIRED", "Partnership profile payload required", ErrProfileRequired)
		}
		profile := account.PartnershipProfile
		if profile == nil {
			profile = &models.PartnershipProfile{}
			account.PartnershipProfile = profile
		}
		profile.PartnershipName = partnership.PartnershipName
		profile.ABN = partnership.ABN
		profile.TFN = partnership.TFN
	default:
		return NewBusinessError("INVALID_ENTITY_TYPE", "Unsupported entity type", ErrInvalidEntityType)
	}
	return nil
}
