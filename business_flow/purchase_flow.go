// Package businessflow contains the business logic for the application.
package businessflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/clearledger/portal-api/app/dto"
	"github.com/clearledger/portal-api/app/services"
	"github.com/clearledger/portal-api/models"
	"github.com/clearledger/portal-api/repository"
	"github.com/clearledger/portal-api/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Stripe event types the portal reacts to; everything else is recorded
// and skipped.
const (
	stripeEventCheckoutCompleted     = "checkout.session.completed"
	stripeEventCheckoutExpired       = "checkout.session.expired"
	stripeEventAsyncPaymentFailed    = "checkout.session.async_payment_failed"
	stripeEventAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
)

const webhookTolerance = 5 * time.Minute

// CheckoutURLs are the redirect targets handed to the payment gateway
type CheckoutURLs struct {
	SuccessURL string
	CancelURL  string
}

// PurchaseFlow sells catalogue services against active accounts and
// processes the payment gateway's webhook events.
type PurchaseFlow interface {
	ListServices(ctx context.Context) (*dto.ServiceListResponse, error)
	Purchase(ctx context.Context, userID uint, req *dto.PurchaseRequest, metadata *ClientMetadata) (*dto.PurchaseResponse, error)
	ListByAccount(ctx context.Context, userID uint, accountUUID string) (*dto.PurchaseListResponse, error)
	HandleStripeWebhook(ctx context.Context, payload []byte, sigHeader string) error
	PromoteConsentGated(ctx context.Context, userID uint, accountUUID string) error
}

// PurchaseFlowImpl implements the purchase business flow
type PurchaseFlowImpl struct {
	serviceRepo  repository.ServiceRepository
	purchaseRepo repository.AccountServiceRepository
	accountRepo  repository.AccountRepository
	userRepo     repository.UserRepository
	webhookRepo  repository.WebhookEventRepository
	outboxRepo   repository.NotificationOutboxRepository
	auditRepo    repository.AuditLogRepository
	consentFlow  ConsentFlow
	stripeClient services.StripeClient
	checkoutURLs CheckoutURLs
	db           *gorm.DB
}

// NewPurchaseFlow creates a new purchase flow instance
func NewPurchaseFlow(
	serviceRepo repository.ServiceRepository,
	purchaseRepo repository.AccountServiceRepository,
	accountRepo repository.AccountRepository,
	userRepo repository.UserRepository,
	webhookRepo repository.WebhookEventRepository,
	outboxRepo repository.NotificationOutboxRepository,
	auditRepo repository.AuditLogRepository,
	consentFlow ConsentFlow,
	stripeClient services.StripeClient,
	checkoutURLs CheckoutURLs,
	db *gorm.DB,
) PurchaseFlow {
	return &PurchaseFlowImpl{
		serviceRepo:  serviceRepo,
		purchaseRepo: purchaseRepo,
		accountRepo:  accountRepo,
		userRepo:     userRepo,
		webhookRepo:  webhookRepo,
		outboxRepo:   outboxRepo,
		auditRepo:    auditRepo,
		consentFlow:  consentFlow,
		stripeClient: stripeClient,
		checkoutURLs: checkoutURLs,
		db:           db,
	}
}

// ListServices returns the active catalogue with per-entity-type prices
func (f *PurchaseFlowImpl) ListServices(ctx context.Context) (*dto.ServiceListResponse, error) {
	services, err := f.serviceRepo.ListActive(ctx)
	if err != nil {
		return nil, NewBusinessError("SERVICE_LIST_FAILED", "Failed to list services", err)
	}

	response := &dto.ServiceListResponse{Services: make([]dto.ServiceDTO, 0, len(services))}
	for _, s := range services {
		response.Services = append(response.Services, ToServiceDTO(*s))
	}
	return response, nil
}

// Purchase buys a service for an account for one financial year. The
// workflow starts in PENDING, or CONSENT_REQUIRED when the service is
// consent-gated and the account's consents are incomplete. A checkout
// session is created either way; gateway unavailability degrades to a
// purchase without a checkout URL rather than an error.
func (f *PurchaseFlowImpl) Purchase(ctx context.Context, userID uint, req *dto.PurchaseRequest, metadata *ClientMetadata) (*dto.PurchaseResponse, error) {
	account, err := f.ownedAccount(ctx, userID, req.AccountUUID)
	if err != nil {
		return nil, err
	}
	if !account.IsActive() {
		return nil, NewBusinessError("ACCOUNT_NOT_ACTIVE", "Services can only be purchased for active accounts", ErrAccountNotActive)
	}

	service, err := f.serviceRepo.ByCode(ctx, req.ServiceCode)
	if err != nil {
		return nil, NewBusinessError("SERVICE_LOOKUP_FAILED", "Failed to lookup service", err)
	}
	if service == nil {
		return nil, NewBusinessError("SERVICE_NOT_FOUND", "Service not found", ErrServiceNotFound)
	}
	if !utils.IsTrue(service.IsActive) {
		return nil, NewBusinessError("SERVICE_INACTIVE", "Service is not available", ErrServiceInactive)
	}
	if !service.AllowsEntityType(account.EntityType) {
		return nil, NewBusinessError("SERVICE_NOT_ALLOWED", "Service is not available for this entity type", ErrServiceNotAllowed)
	}
	price := service.PriceFor(account.EntityType)
	if price == nil {
		return nil, NewBusinessError("SERVICE_PRICE_NOT_FOUND", "Service has no price for this entity type", ErrServicePriceNotFound)
	}

	financialYear := utils.CurrentFinancialYear()
	if req.FinancialYear != nil {
		financialYear = *req.FinancialYear
	}

	count, err := f.purchaseRepo.Count(ctx, models.AccountServiceFilter{
		AccountID:     &account.ID,
		ServiceID:     &service.ID,
		FinancialYear: &financialYear,
	})
	if err != nil {
		return nil, NewBusinessError("PURCHASE_FAILED", "Failed to purchase service", err)
	}
	if count > 0 {
		return nil, NewBusinessError("DUPLICATE_PURCHASE", "Service already purchased for this financial year", ErrDuplicatePurchase)
	}

	status := models.PurchaseStatusPending
	var missingConsents []string
	if utils.IsTrue(service.RequiresConsent) {
		hasAll, missing, err := f.consentFlow.HasRequiredConsents(ctx, account)
		if err != nil {
			return nil, NewBusinessError("PURCHASE_FAILED", "Failed to resolve consent requirements", err)
		}
		if !hasAll {
			status = models.PurchaseStatusConsentRequired
			missingConsents = missing
		}
	}

	purchase := &models.AccountService{
		UUID:          uuid.New(),
		CorrelationID: uuid.New(),
		AccountID:     account.ID,
		ServiceID:     service.ID,
		FinancialYear: financialYear,
		AmountCents:   price.AmountCents,
		Currency:      price.Currency,
		Status:        status,
		PaymentStatus: models.PaymentStatusPending,
	}

	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		if err := f.purchaseRepo.Save(txCtx, purchase); err != nil {
			if repository.IsUniqueViolation(err) {
				return ErrDuplicatePurchase
			}
			return err
		}
		return nil
	})
	if err != nil {
		if IsDuplicatePurchase(err) {
			return nil, NewBusinessError("DUPLICATE_PURCHASE", "Service already purchased for this financial year", err)
		}
		return nil, NewBusinessError("PURCHASE_FAILED", "Failed to purchase service", err)
	}

	f.logPurchaseAction(ctx, userID, models.AuditActionServicePurchased, fmt.Sprintf("service purchased: %s for %s (%s)", service.Code, account.UUID, financialYear), true, metadata)

	checkoutURL := ""
	if f.stripeClient != nil {
		owner, _ := f.userRepo.ByID(ctx, userID)
		customerEmail := ""
		if owner != nil {
			customerEmail = owner.Email
		}
		session, err := f.stripeClient.CreateCheckoutSession(ctx, services.CheckoutSessionInput{
			PurchaseUUID:  purchase.UUID.String(),
			ServiceName:   service.Name,
			FinancialYear: financialYear,
			AmountCents:   price.AmountCents,
			Currency:      price.Currency,
			CustomerEmail: customerEmail,
			SuccessURL:    f.checkoutURLs.SuccessURL,
			CancelURL:     f.checkoutURLs.CancelURL,
		})
		if err == nil && session != nil {
			purchase.CheckoutSessionID = &session.ID
			if uerr := f.purchaseRepo.Update(ctx, purchase); uerr != nil {
				// The webhook finds the purchase by session ID; a URL
				// whose session is not on record must never go out, or
				// the payment would arrive unmatchable.
				log.Printf("purchase %s: persisting checkout session failed: %v", purchase.UUID, uerr)
				purchase.CheckoutSessionID = nil
			} else {
				checkoutURL = session.URL
			}
		}
	}

	purchase.Service = *service
	return &dto.PurchaseResponse{
		Purchase:        ToPurchaseDTO(*purchase, account.UUID.String()),
		CheckoutURL:     checkoutURL,
		MissingConsents: missingConsents,
	}, nil
}

// ListByAccount lists all purchases on an account the caller owns
func (f *PurchaseFlowImpl) ListByAccount(ctx context.Context, userID uint, accountUUID string) (*dto.PurchaseListResponse, error) {
	account, err := f.ownedAccount(ctx, userID, accountUUID)
	if err != nil {
		return nil, err
	}

	purchases, err := f.purchaseRepo.ListByAccount(ctx, account.ID)
	if err != nil {
		return nil, NewBusinessError("PURCHASE_LIST_FAILED", "Failed to list purchases", err)
	}

	response := &dto.PurchaseListResponse{Purchases: make([]dto.PurchaseDTO, 0, len(purchases))}
	for _, p := range purchases {
		response.Purchases = append(response.Purchases, ToPurchaseDTO(*p, account.UUID.String()))
	}
	return response, nil
}

// PromoteConsentGated moves paid CONSENT_REQUIRED purchases to
// IN_PROGRESS once the account's consents are complete. Called after a
// consent is accepted.
func (f *PurchaseFlowImpl) PromoteConsentGated(ctx context.Context, userID uint, accountUUID string) error {
	account, err := f.ownedAccount(ctx, userID, accountUUID)
	if err != nil {
		return err
	}

	hasAll, _, err := f.consentFlow.HasRequiredConsents(ctx, account)
	if err != nil || !hasAll {
		return err
	}

	purchases, err := f.purchaseRepo.ListByAccount(ctx, account.ID)
	if err != nil {
		return NewBusinessError("PURCHASE_LIST_FAILED", "Failed to list purchases", err)
	}
	for _, p := range purchases {
		if p.Status == models.PurchaseStatusConsentRequired {
			if p.IsPaid() {
				p.Status = models.PurchaseStatusInProgress
			} else {
				p.Status = models.PurchaseStatusPending
			}
			if err := f.purchaseRepo.Update(ctx, p); err != nil {
				return NewBusinessError("PURCHASE_UPDATE_FAILED", "Failed to update purchase", err)
			}
		}
	}
	return nil
}

// HandleStripeWebhook verifies, deduplicates and applies one gateway
// event. Redelivered events are recognised by the (provider, event id)
// unique index and acknowledged without reprocessing; a stale
// "checkout expired" arriving after payment succeeded is recorded and
// ignored.
func (f *PurchaseFlowImpl) HandleStripeWebhook(ctx context.Context, payload []byte, sigHeader string) error {
	if err := f.stripeClient.VerifyWebhookSignature(payload, sigHeader, webhookTolerance); err != nil {
		return NewBusinessError("WEBHOOK_SIGNATURE_INVALID", "Webhook signature verification failed", ErrWebhookSignatureInvalid)
	}

	var event dto.StripeWebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil || event.ID == "" {
		return NewBusinessError("WEBHOOK_EVENT_MALFORMED", "Webhook payload could not be decoded", ErrWebhookEventMalformed)
	}

	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		record := &models.WebhookEvent{
			Provider:  services.StripeProviderName,
			EventID:   event.ID,
			EventType: event.Type,
			Payload:   json.RawMessage(payload),
			Status:    models.WebhookEventStatusProcessed,
		}

		detail, err := f.applyStripeEvent(txCtx, &event)
		if err != nil {
			return err
		}
		if detail != "" {
			record.Status = models.WebhookEventStatusSkipped
			record.Detail = &detail
		}

		if err := f.webhookRepo.Save(txCtx, record); err != nil {
			if repository.IsUniqueViolation(err) {
				// Redelivery; the first delivery already applied it.
				return errWebhookDuplicate
			}
			return err
		}
		return nil
	})
	if errors.Is(err, errWebhookDuplicate) {
		return nil
	}
	if err != nil {
		return NewBusinessError("WEBHOOK_PROCESSING_FAILED", "Failed to process webhook event", err)
	}
	return nil
}

var errWebhookDuplicate = errors.New("webhook event already processed")

// applyStripeEvent mutates the purchase addressed by the event. A
// non-empty detail means the event was recognised but intentionally not
// applied.
func (f *PurchaseFlowImpl) applyStripeEvent(ctx context.Context, event *dto.StripeWebhookEvent) (detail string, err error) {
	sessionID := event.Data.Object.ID
	if sessionID == "" {
		return "event carries no checkout session", nil
	}

	purchase, err := f.purchaseRepo.ByCheckoutSessionID(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if purchase == nil {
		return "no purchase for checkout session " + sessionID, nil
	}

	switch event.Type {
	case stripeEventCheckoutCompleted, stripeEventAsyncPaymentSucceeded:
		if purchase.IsPaid() {
			return "purchase already paid", nil
		}
		purchase.PaymentStatus = models.PaymentStatusPaid
		purchase.PaidAt = utils.UTCNowPtr()
		// Successful payment starts the work even when the consent gate
		// was still open at purchase time; consent is not re-checked here.
		if purchase.Status == models.PurchaseStatusPending || purchase.Status == models.PurchaseStatusConsentRequired {
			purchase.Status = models.PurchaseStatusInProgress
		}
		if err := f.purchaseRepo.Update(ctx, purchase); err != nil {
			return "", err
		}
		f.enqueueReceipt(ctx, purchase)
		f.logPurchaseAction(ctx, 0, models.AuditActionPaymentSucceeded, fmt.Sprintf("payment succeeded: purchase %s", purchase.UUID), true, nil)
		return "", nil

	case stripeEventCheckoutExpired:
		if purchase.IsPaid() {
			// Out-of-order delivery: the expiry raced a successful
			// payment and must not unwind it.
			f.logPurchaseAction(ctx, 0, models.AuditActionCheckoutExpired, fmt.Sprintf("stale checkout expiry ignored: purchase %s", purchase.UUID), true, nil)
			return "checkout expired after payment; ignored", nil
		}
		purchase.PaymentStatus = models.PaymentStatusFailed
		purchase.CheckoutSessionID = nil
		if err := f.purchaseRepo.Update(ctx, purchase); err != nil {
			return "", err
		}
		f.logPurchaseAction(ctx, 0, models.AuditActionCheckoutExpired, fmt.Sprintf("checkout expired: purchase %s", purchase.UUID), true, nil)
		return "", nil

	case stripeEventAsyncPaymentFailed:
		if purchase.IsPaid() {
			return "payment failure after success; ignored", nil
		}
		purchase.PaymentStatus = models.PaymentStatusFailed
		if err := f.purchaseRepo.Update(ctx, purchase); err != nil {
			return "", err
		}
		f.logPurchaseAction(ctx, 0, models.AuditActionPaymentFailed, fmt.Sprintf("payment failed: purchase %s", purchase.UUID), false, nil)
		return "", nil
	}

	return "unhandled event type " + event.Type, nil
}

func (f *PurchaseFlowImpl) enqueueReceipt(ctx context.Context, purchase *models.AccountService) {
	account, err := f.accountRepo.ByID(ctx, purchase.AccountID)
	if err != nil || account == nil {
		return
	}
	owner, err := f.userRepo.ByID(ctx, account.UserID)
	if err != nil || owner == nil {
		return
	}

	serviceName := purchase.Service.Name
	if serviceName == "" {
		if service, err := f.serviceRepo.ByID(ctx, purchase.ServiceID); err == nil && service != nil {
			serviceName = service.Name
		}
	}

	bodyText := fmt.Sprintf(
		"We received your payment of %s %.2f for %s (%s).\r\n\r\nWork on your service has started.\r\n",
		purchase.Currency, float64(purchase.AmountCents)/100, serviceName, purchase.FinancialYear,
	)
	entry := &models.NotificationOutbox{
		UUID:          uuid.New(),
		CorrelationID: purchase.CorrelationID,
		Kind:          models.NotificationKindPurchaseReceipt,
		Recipient:     owner.Email,
		Subject:       fmt.Sprintf("Payment received: %s (%s)", serviceName, purchase.FinancialYear),
		BodyHTML:      "<p>" + bodyText + "</p>",
		BodyText:      bodyText,
		Status:        models.OutboxStatusPending,
		NextAttemptAt: utils.UTCNow(),
	}
	_ = f.outboxRepo.Save(ctx, entry)
}

func (f *PurchaseFlowImpl) ownedAccount(ctx context.Context, userID uint, accountUUID string) (*models.Account, error) {
	account, err := f.accountRepo.ByUUID(ctx, accountUUID)
	if err != nil {
		return nil, NewBusinessError("ACCOUNT_LOOKUP_FAILED", "Failed to lookup account", err)
	}
	if account == nil {
		return nil, NewBusinessError("ACCOUNT_NOT_FOUND", "Account not found", ErrAccountNotFound)
	}
	if account.UserID != userID {
		return nil, NewBusinessError("ACCOUNT_ACCESS_DENIED", "Account does not belong to you", ErrAccountAccessDenied)
	}
	return account, nil
}

func (f *PurchaseFlowImpl) logPurchaseAction(ctx context.Context, userID uint, action, description string, success bool, metadata *ClientMetadata) {
	audit := &models.AuditLog{
		Action:      action,
		Description: &description,
		Success:     utils.ToPtr(success),
	}
	if userID != 0 {
		audit.UserID = &userID
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
