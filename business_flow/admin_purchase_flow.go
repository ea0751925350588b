// Package businessflow contains the business logic for the application.
package businessflow

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/clearledger/portal-api/app/dto"
	"github.com/clearledger/portal-api/models"
	"github.com/clearledger/portal-api/repository"
	"github.com/xuri/excelize/v2"
)

// AdminPurchaseFlow is the back-office view over purchases: filtered
// listing, workflow status updates and XLSX export.
type AdminPurchaseFlow interface {
	List(ctx context.Context, req *dto.AdminPurchaseListRequest) (*dto.AdminPurchaseListResponse, error)
	UpdateStatus(ctx context.Context, purchaseUUID string, req *dto.AdminUpdatePurchaseStatusRequest) (*dto.AdminPurchaseRowDTO, error)
	ExportXLSX(ctx context.Context, req *dto.AdminPurchaseListRequest) (string, []byte, error)
}

// AdminPurchaseFlowImpl implements the back-office purchase flow
type AdminPurchaseFlowImpl struct {
	purchaseRepo repository.AccountServiceRepository
}

func NewAdminPurchaseFlow(purchaseRepo repository.AccountServiceRepository) AdminPurchaseFlow {
	return &AdminPurchaseFlowImpl{purchaseRepo: purchaseRepo}
}

const defaultAdminPageSize = 50

// List returns one page of purchases matching the filters
func (f *AdminPurchaseFlowImpl) List(ctx context.Context, req *dto.AdminPurchaseListRequest) (*dto.AdminPurchaseListResponse, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 {
		pageSize = defaultAdminPageSize
	}

	filter := models.AccountServiceFilter{
		Status:        req.Status,
		PaymentStatus: req.PaymentStatus,
		FinancialYear: req.FinancialYear,
	}

	total, err := f.purchaseRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("PURCHASE_LIST_FAILED", "Failed to list purchases", err)
	}

	rows, err := f.purchaseRepo.ListAll(ctx, filter, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("PURCHASE_LIST_FAILED", "Failed to list purchases", err)
	}

	response := &dto.AdminPurchaseListResponse{
		Items:    make([]dto.AdminPurchaseRowDTO, 0, len(rows)),
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}
	for _, row := range rows {
		response.Items = append(response.Items, toAdminPurchaseRow(row))
	}
	return response, nil
}

// UpdateStatus advances a purchase's workflow status. Only the statuses
// an operator may set are accepted; CANCELLED also stamps CancelledAt.
func (f *AdminPurchaseFlowImpl) UpdateStatus(ctx context.Context, purchaseUUID string, req *dto.AdminUpdatePurchaseStatusRequest) (*dto.AdminPurchaseRowDTO, error) {
	purchase, err := f.purchaseRepo.ByUUID(ctx, purchaseUUID)
	if err != nil {
		return nil, NewBusinessError("PURCHASE_LOOKUP_FAILED", "Failed to lookup purchase", err)
	}
	if purchase == nil {
		return nil, NewBusinessError("PURCHASE_NOT_FOUND", "Purchase not found", ErrPurchaseNotFound)
	}

	switch req.Status {
	case models.PurchaseStatusInProgress, models.PurchaseStatusReview,
		models.PurchaseStatusCompleted, models.PurchaseStatusCancelled:
	default:
		return nil, NewBusinessError("INVALID_STATUS_TRANSITION", "Unsupported purchase status", ErrInvalidStatusTransition)
	}

	purchase.Status = req.Status
	if req.Status == models.PurchaseStatusCancelled && purchase.CancelledAt == nil {
		now := time.Now().UTC()
		purchase.CancelledAt = &now
	}
	if err := f.purchaseRepo.Update(ctx, purchase); err != nil {
		return nil, NewBusinessError("PURCHASE_UPDATE_FAILED", "Failed to update purchase", err)
	}

	row := toAdminPurchaseRow(purchase)
	return &row, nil
}

// ExportXLSX writes all purchases matching the filters into a single
// spreadsheet for the practice's workflow tooling.
func (f *AdminPurchaseFlowImpl) ExportXLSX(ctx context.Context, req *dto.AdminPurchaseListRequest) (string, []byte, error) {
	filter := models.AccountServiceFilter{
		Status:        req.Status,
		PaymentStatus: req.PaymentStatus,
		FinancialYear: req.FinancialYear,
	}

	rows, err := f.purchaseRepo.ListAll(ctx, filter, 0, 0)
	if err != nil {
		return "", nil, NewBusinessError("PURCHASE_EXPORT_FAILED", "Failed to export purchases", err)
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	sheet := "Purchases"
	xl.SetSheetName(xl.GetSheetName(0), sheet)

	header := []string{"uuid", "account_uuid", "account_name", "entity_type", "service_code", "service_name", "financial_year", "amount", "currency", "status", "payment_status", "paid_at", "created_at"}
	_ = xl.SetSheetRow(sheet, "A1", &header)

	for ri, row := range rows {
		item := toAdminPurchaseRow(row)
		record := []string{
			item.UUID,
			item.AccountUUID,
			item.AccountName,
			item.EntityType,
			item.ServiceCode,
			item.ServiceName,
			item.FinancialYear,
			strconv.FormatFloat(float64(item.AmountCents)/100, 'f', 2, 64),
			item.Currency,
			item.Status,
			item.PaymentStatus,
			item.PaidAt,
			item.CreatedAt,
		}
		cellRef, _ := excelize.CoordinatesToCellName(1, ri+2)
		_ = xl.SetSheetRow(sheet, cellRef, &record)
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}

	filename := fmt.Sprintf("purchases_%s.xlsx", time.Now().UTC().Format("20060102_150405"))
	return filename, buf.Bytes(), nil
}

func toAdminPurchaseRow(purchase *models.AccountService) dto.AdminPurchaseRowDTO {
	row := dto.AdminPurchaseRowDTO{
		UUID:          purchase.UUID.String(),
		FinancialYear: purchase.FinancialYear,
		AmountCents:   purchase.AmountCents,
		Currency:      purchase.Currency,
		Status:        purchase.Status,
		PaymentStatus: purchase.PaymentStatus,
		CreatedAt:     purchase.CreatedAt.Format(time.RFC3339),
	}
	if purchase.Account.ID != 0 {
		row.AccountUUID = purchase.Account.UUID.String()
		row.AccountName = purchase.Account.DisplayName()
		row.EntityType = purchase.Account.EntityType
	}
	if purchase.Service.ID != 0 {
		row.ServiceCode = purchase.Service.Code
		row.ServiceName = purchase.Service.Name
	}
	if purchase.PaidAt != nil {
		row.PaidAt = purchase.PaidAt.Format(time.RFC3339)
	}
	return row
}
