// Package dto contains request and response types for the HTTP API
package dto

type AdminDTO struct {
	ID        uint   `json:"id" example:"1"`
	UUID      string `json:"uuid" example:"f47ac10b-58cc-4372-a567-0e02b2c3d479"`
	Username  string `json:"username" example:"admin"`
	IsActive  *bool  `json:"is_active" example:"true"`
	CreatedAt string `json:"created_at" example:"2024-01-15T10:30:00Z"`
}

type AdminSessionDTO struct {
	AccessToken  string `json:"access_token" example:"jwt"`
	RefreshToken string `json:"refresh_token" example:"jwt"`
	ExpiresIn    int    `json:"expires_in" example:"3600"`
	TokenType    string `json:"token_type" example:"Bearer"`
	CreatedAt    string `json:"created_at" example:"2024-01-15T10:30:00Z"`
}

type AdminCaptchaInitResponse struct {
	ChallengeID       string `json:"challenge_id"`
	MasterImageBase64 string `json:"master_image_base64"`
	ThumbImageBase64  string `json:"thumb_image_base64"`
}

type AdminCaptchaVerifyRequest struct {
	ChallengeID string  `json:"challenge_id" validate:"required"`
	Username    string  `json:"username" validate:"required,min=3,max=255"`
	Password    string  `json:"password" validate:"required,min=8,max=100"`
	UserAngle   float64 `json:"user_angle" validate:"required"`
}

type AdminLoginResponse struct {
	Admin   AdminDTO        `json:"admin"`
	Session AdminSessionDTO `json:"session"`
}

// AdminPurchaseListRequest filters the back-office purchase listing
type AdminPurchaseListRequest struct {
	Status        *string `query:"status" validate:"omitempty,oneof=PENDING CONSENT_REQUIRED IN_PROGRESS REVIEW COMPLETED CANCELLED"`
	PaymentStatus *string `query:"payment_status" validate:"omitempty,oneof=PENDING PAID FAILED REFUNDED PARTIAL_REFUND"`
	FinancialYear *string `query:"financial_year" validate:"omitempty,len=9"`
	Page          int     `query:"page" validate:"omitempty,min=1"`
	PageSize      int     `query:"page_size" validate:"omitempty,min=1,max=100"`
}

// AdminPurchaseRowDTO is one row of the back-office purchase listing
type AdminPurchaseRowDTO struct {
	UUID          string `json:"uuid"`
	AccountUUID   string `json:"account_uuid"`
	AccountName   string `json:"account_name"`
	EntityType    string `json:"entity_type"`
	ServiceCode   string `json:"service_code"`
	ServiceName   string `json:"service_name"`
	FinancialYear string `json:"financial_year"`
	AmountCents   int64  `json:"amount_cents"`
	Currency      string `json:"currency"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	PaidAt        string `json:"paid_at,omitempty"`
	CreatedAt     string `json:"created_at"`
}

// AdminPurchaseListResponse wraps the listing with pagination totals
type AdminPurchaseListResponse struct {
	Items    []AdminPurchaseRowDTO `json:"items"`
	Total    int64                 `json:"total"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
}

// AdminUpdatePurchaseStatusRequest advances a purchase's workflow status
type AdminUpdatePurchaseStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=IN_PROGRESS REVIEW COMPLETED CANCELLED"`
}

// AdminAccountListRequest filters the back-office account listing
type AdminAccountListRequest struct {
	Status     *string `query:"status" validate:"omitempty,oneof=DRAFT PENDING ACTIVE SUSPENDED CLOSED"`
	EntityType *string `query:"entity_type" validate:"omitempty,oneof=INDIVIDUAL COMPANY TRUST PARTNERSHIP"`
	Page       int     `query:"page" validate:"omitempty,min=1"`
	PageSize   int     `query:"page_size" validate:"omitempty,min=1,max=100"`
}

// AdminAccountRowDTO is one row of the back-office account listing
type AdminAccountRowDTO struct {
	UUID        string `json:"uuid"`
	OwnerEmail  string `json:"owner_email"`
	EntityType  string `json:"entity_type"`
	Status      string `json:"status"`
	DisplayName string `json:"display_name"`
	SubmittedAt string `json:"submitted_at,omitempty"`
	ActivatedAt string `json:"activated_at,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// AdminAccountListResponse wraps the listing with pagination totals
type AdminAccountListResponse struct {
	Items    []AdminAccountRowDTO `json:"items"`
	Total    int64                `json:"total"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
}
