// Package businessflow contains the business logic for the application.
package businessflow

import (
	"time"

	"github.com/clearledger/portal-api/app/dto"
	"github.com/clearledger/portal-api/models"
	"github.com/clearledger/portal-api/utils"
)

const RequestIDKey = "X-Request-ID"

// ClientMetadata holds all client-related information for audit logging and session tracking
type ClientMetadata struct {
	IPAddress  string            `json:"ip_address"`
	UserAgent  string            `json:"user_agent"`
	RequestID  string            `json:"request_id,omitempty"`
	SessionID  string            `json:"session_id,omitempty"`
	Additional map[string]string `json:"additional,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Additional: make(map[string]string),
	}
}

// AddAdditional adds additional custom information to the metadata
func (cm *ClientMetadata) AddAdditional(key, value string) {
	if cm.Additional == nil {
		cm.Additional = make(map[string]string)
	}
	cm.Additional[key] = value
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// SetSessionID sets the session ID
func (cm *ClientMetadata) SetSessionID(sessionID string) {
	cm.SessionID = sessionID
}

// ToAuthUserDTO converts a user model to AuthUserDTO for authentication responses
func ToAuthUserDTO(user models.User) dto.AuthUserDTO {
	return dto.AuthUserDTO{
		ID:              user.ID,
		UUID:            user.UUID.String(),
		Email:           user.Email,
		FirstName:       user.FirstName,
		LastName:        user.LastName,
		Mobile:          user.Mobile,
		IsActive:        user.IsActive,
		IsEmailVerified: user.IsEmailVerified,
		CreatedAt:       user.CreatedAt.Format(time.RFC3339),
	}
}

func ToSessionDTO(session models.UserSession) dto.SessionDTO {
	out := dto.SessionDTO{
		SessionToken: session.SessionToken,
		ExpiresIn:    int(time.Until(session.ExpiresAt).Seconds()),
		TokenType:    "Bearer",
		CreatedAt:    session.CreatedAt.Format(time.RFC3339),
	}
	if session.RefreshToken != nil {
		out.RefreshToken = *session.RefreshToken
	}
	return out
}

func ToAdminDTO(admin models.Admin) dto.AdminDTO {
	return dto.AdminDTO{
		ID:        admin.ID,
		UUID:      admin.UUID.String(),
		Username:  admin.Username,
		IsActive:  admin.IsActive,
		CreatedAt: admin.CreatedAt.Format(time.RFC3339),
	}
}

func ToAdminSessionDTO(accessToken, refreshToken string, expiresIn int) dto.AdminSessionDTO {
	return dto.AdminSessionDTO{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    expiresIn,
		TokenType:    "Bearer",
		CreatedAt:    utils.UTCNow().Format(time.RFC3339),
	}
}

// ToAccountDTO converts an account with its loaded profile into the API
// shape. TFN/ABN values are masked; the raw identifiers never leave the
// service.
func ToAccountDTO(account models.Account) dto.AccountDTO {
	out := dto.AccountDTO{
		UUID:        account.UUID.String(),
		EntityType:  account.EntityType,
		Status:      account.Status,
		DisplayName: account.DisplayName(),
		IsDefault:   utils.IsTrue(account.IsDefault),
		CreatedAt:   account.CreatedAt.Format(time.RFC3339),
	}
	if account.SubmittedAt != nil {
		out.SubmittedAt = utils.ToPtr(account.SubmittedAt.Format(time.RFC3339))
	}
	if account.ActivatedAt != nil {
		out.ActivatedAt = utils.ToPtr(account.ActivatedAt.Format(time.RFC3339))
	}
	if account.ClosedAt != nil {
		out.ClosedAt = utils.ToPtr(account.ClosedAt.Format(time.RFC3339))
	}

	switch account.EntityType {
	case models.AccountTypeIndividual:
		if p := account.IndividualProfile; p != nil {
			out.Profile = &dto.AccountProfileDTO{
				FirstName: utils.ToPtr(p.FirstName),
				LastName:  utils.ToPtr(p.LastName),
				MaskedTFN: maskedTFNPtr(p.TFN),
			}
			if p.DateOfBirth != nil {
				out.Profile.DateOfBirth = utils.ToPtr(p.DateOfBirth.Format("2006-01-02"))
			}
		}
	case models.AccountTypeCompany:
		if p := account.CompanyProfile; p != nil {
			out.Profile = &dto.AccountProfileDTO{
				CompanyName: utils.ToPtr(p.CompanyName),
				ACN:         p.ACN,
				MaskedABN:   maskedABNPtr(p.ABN),
				MaskedTFN:   maskedTFNPtr(p.TFN),
			}
		}
	case models.AccountTypeTrust:
		if p := account.TrustProfile; p != nil {
			out.Profile = &dto.AccountProfileDTO{
				TrustName:   utils.ToPtr(p.TrustName),
				TrusteeName: p.TrusteeName,
				MaskedABN:   maskedABNPtr(p.ABN),
				MaskedTFN:   maskedTFNPtr(p.TFN),
			}
		}
	case models.AccountTypePartnership:
		if p := account.PartnershipProfile; p != nil {
			out.Profile = &dto.AccountProfileDTO{
				PartnershipName: utils.ToPtr(p.PartnershipName),
				MaskedABN:       maskedABNPtr(p.ABN),
				MaskedTFN:       maskedTFNPtr(p.TFN),
			}
		}
	}

	return out
}

func maskedTFNPtr(tfn *string) *string {
	if tfn == nil || *tfn == "" {
		return nil
	}
	return utils.ToPtr(utils.MaskTFN(*tfn))
}

func maskedABNPtr(abn *string) *string {
	if abn == nil || *abn == "" {
		return nil
	}
	return utils.ToPtr(utils.MaskABN(*abn))
}

func ToPartnerDTO(partner models.Partner, accountUUID string) dto.PartnerDTO {
	out := dto.PartnerDTO{
		UUID:               partner.UUID.String(),
		AccountUUID:        accountUUID,
		Kind:               partner.Kind,
		Email:              partner.Email,
		DisplayName:        partner.DisplayName,
		IsDirector:         partner.IsDirector,
		IsShareholder:      partner.IsShareholder,
		Role:               partner.Role,
		BeneficiaryPercent: partner.BeneficiaryPercent,
		OwnershipPercent:   partner.OwnershipPercent,
		Status:             partner.Status,
		LinkedUserID:       partner.LinkedUserID,
		InvitedAt:          partner.InvitedAt.Format(time.RFC3339),
	}
	if partner.RespondedAt != nil {
		out.RespondedAt = partner.RespondedAt.Format(time.RFC3339)
	}
	return out
}

func ToConsentDTO(consent models.LegalConsent, accountUUID string) dto.ConsentDTO {
	return dto.ConsentDTO{
		UUID:            consent.UUID.String(),
		AccountUUID:     accountUUID,
		ConsentType:     consent.ConsentType,
		DocumentVersion: consent.DocumentVersion,
		SignatureMode:   consent.SignatureMode,
		AcceptedAt:      consent.AcceptedAt.Format(time.RFC3339),
	}
}

func ToServiceDTO(service models.Service) dto.ServiceDTO {
	out := dto.ServiceDTO{
		UUID:               service.UUID.String(),
		Code:               service.Code,
		Name:               service.Name,
		Description:        service.Description,
		AllowedEntityTypes: service.AllowedEntityTypeList(),
		RequiresConsent:    service.RequiresConsent,
	}
	for _, price := range service.Prices {
		out.Prices = append(out.Prices, dto.ServicePriceDTO{
			EntityType:  price.EntityType,
			AmountCents: price.AmountCents,
			Currency:    price.Currency,
		})
	}
	return out
}

func ToPurchaseDTO(purchase models.AccountService, accountUUID string) dto.PurchaseDTO {
	out := dto.PurchaseDTO{
		UUID:          purchase.UUID.String(),
		AccountUUID:   accountUUID,
		FinancialYear: purchase.FinancialYear,
		AmountCents:   purchase.AmountCents,
		Currency:      purchase.Currency,
		Status:        purchase.Status,
		PaymentStatus: purchase.PaymentStatus,
		CreatedAt:     purchase.CreatedAt.Format(time.RFC3339),
	}
	if purchase.Service.ID != 0 {
		out.ServiceCode = purchase.Service.Code
		out.ServiceName = purchase.Service.Name
	}
	if purchase.PaidAt != nil {
		out.PaidAt = purchase.PaidAt.Format(time.RFC3339)
	}
	return out
}
