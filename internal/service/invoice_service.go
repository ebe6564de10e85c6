package service

import (
	"context"
	"strings"
	"time"

	"voucherpro/internal/finance"
	"voucherpro/internal/model"
	"voucherpro/internal/repository"
	"voucherpro/pkg/apperror"

	"github.com/shopspring/decimal"
)

// --- DTOs ---

type CreateInvoiceRequest struct {
	InvoiceNumber       string           `json:"invoice_number" binding:"required,max=50"`
	VendorInvoiceNumber string           `json:"vendor_invoice_number"`
	Vendor              string           `json:"vendor" binding:"required"`
	Summary             string           `json:"summary"`
	Currency            string           `json:"currency" binding:"omitempty,currency"`
	InvoiceDate         string           `json:"invoice_date"`
	DueDate             string           `json:"due_date"`
	Terms               string           `json:"terms"`
	VatableAmount       *decimal.Decimal `json:"vatable_amount"`
	NonVatableAmount    *decimal.Decimal `json:"non_vatable_amount"`
	VatRate             *decimal.Decimal `json:"vat_rate"`
	WhtRate             *decimal.Decimal `json:"wht_rate"`
	PayableAccount      string           `json:"payable_account"`
	ExpenseAssetAccount string           `json:"expense_asset_account"`
}

type UpdateInvoiceRequest struct {
	CreateInvoiceRequest
}

type InvoiceListFilter struct {
	Vendor string
	Search string
	Page   int
	Limit  int
}

type InvoiceResponse struct {
	ID                  string `json:"id"`
	InvoiceNumber       string `json:"invoice_number"`
	VendorInvoiceNumber string `json:"vendor_invoice_number"`
	Vendor              string `json:"vendor"`
	Summary             string `json:"summary"`
	Currency            string `json:"currency"`
	InvoiceDate         string `json:"invoice_date"`
	DueDate             string `json:"due_date"`
	Terms               string `json:"terms"`
	VatableAmount       string `json:"vatable_amount"`
	NonVatableAmount    string `json:"non_vatable_amount"`
	VatRate             string `json:"vat_rate"`
	WhtRate             string `json:"wht_rate"`
	VatAmount           string `json:"vat_amount"`
	WhtAmount           string `json:"wht_amount"`
	Subtotal            string `json:"subtotal"`
	TotalAmount         string `json:"total_amount"`
	PayableAccount      string `json:"payable_account"`
	ExpenseAssetAccount string `json:"expense_asset_account"`
	FileName            string `json:"file_name"`
	HasAttachment       bool   `json:"has_attachment"`
	CreatedBy           string `json:"created_by"`
	CreatedAt           string `json:"created_at"`
	LastModified        string `json:"last_modified"`
}

// InvoiceSuggestions feeds the invoice form's pick lists. InvoiceNumbers also serves
// the invoice reference field of the voucher form.
type InvoiceSuggestions struct {
	Vendors              []string `json:"vendors"`
	PayableAccounts      []string `json:"payable_accounts"`
	ExpenseAssetAccounts []string `json:"expense_asset_accounts"`
	InvoiceNumbers       []string `json:"invoice_numbers"`
}

// --- Interface ---

type InvoiceService interface {
	CreateInvoice(ctx context.Context, req CreateInvoiceRequest, attachment *Attachment) (*InvoiceResponse, error)
	ListInvoices(ctx context.Context, filter InvoiceListFilter) ([]InvoiceResponse, int64, error)
	GetInvoice(ctx context.Context, id string) (*InvoiceResponse, error)
	GetInvoiceAttachment(ctx context.Context, id string) (*Attachment, error)
	UpdateInvoice(ctx context.Context, id string, req UpdateInvoiceRequest) (*InvoiceResponse, error)
	DeleteInvoice(ctx context.Context, id string) error
	Suggestions(ctx context.Context) (*InvoiceSuggestions, error)
}

type invoiceService struct {
	txManager repository.TransactionManager
	repo      repository.InvoiceRepository
	crmRepo   repository.CRMRepository
	crm       CRMService
	audit     AuditService
}

func NewInvoiceService(
	txManager repository.TransactionManager,
	repo repository.InvoiceRepository,
	crmRepo repository.CRMRepository,
	crm CRMService,
	audit AuditService,
) InvoiceService {
	return &invoiceService{txManager: txManager, repo: repo, crmRepo: crmRepo, crm: crm, audit: audit}
}

// --- Helpers ---

func toInvoiceResponse(inv model.Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:                  inv.ID.String(),
		InvoiceNumber:       inv.InvoiceNumber,
		VendorInvoiceNumber: inv.VendorInvoiceNumber,
		Vendor:              inv.Vendor,
		Summary:             inv.Summary,
		Currency:            inv.Currency,
		InvoiceDate:         formatDate(inv.InvoiceDate),
		DueDate:             formatDate(inv.DueDate),
		Terms:               inv.Terms,
		VatableAmount:       inv.VatableAmount.StringFixed(2),
		NonVatableAmount:    inv.NonVatableAmount.StringFixed(2),
		VatRate:             inv.VatRate.String(),
		WhtRate:             inv.WhtRate.String(),
		VatAmount:           inv.VatAmount.StringFixed(2),
		WhtAmount:           inv.WhtAmount.StringFixed(2),
		Subtotal:            inv.Subtotal.StringFixed(2),
		TotalAmount:         inv.TotalAmount.StringFixed(2),
		PayableAccount:      inv.PayableAccount,
		ExpenseAssetAccount: inv.ExpenseAssetAccount,
		FileName:            inv.FileName,
		HasAttachment:       inv.FileName != "",
		CreatedBy:           inv.CreatedBy,
		CreatedAt:           inv.CreatedAt.Format(time.RFC3339),
		LastModified:        inv.LastModified.Format(time.RFC3339),
	}
}

func checkAmount(d decimal.Decimal, what string) error {
	if d.IsNegative() {
		return apperror.Validation("%s must not be negative", what)
	}
	return nil
}

func checkRate(d decimal.Decimal, what string) error {
	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(100)) {
		return apperror.Validation("%s must be between 0 and 100", what)
	}
	return nil
}

// --- Implementation ---

func (s *invoiceService) CreateInvoice(ctx context.Context, req CreateInvoiceRequest, attachment *Attachment) (*InvoiceResponse, error) {
	id, err := requirePermission(ctx, model.PermManageInvoices)
	if err != nil {
		return nil, err
	}

	number := strings.TrimSpace(req.InvoiceNumber)
	if number == "" {
		return nil, apperror.Validation("invoice number is required")
	}
	currency, err := normalizeCurrency(req.Currency)
	if err != nil {
		return nil, err
	}
	invoiceDate, err := parseDate(req.InvoiceDate, "invoice date")
	if err != nil {
		return nil, err
	}
	dueDate, err := parseDate(req.DueDate, "due date")
	if err != nil {
		return nil, err
	}
	if invoiceDate != nil && dueDate != nil && dueDate.Before(*invoiceDate) {
		return nil, apperror.Validation("due date must not be before the invoice date")
	}

	vatable := finance.OrZero(req.VatableAmount)
	nonVatable := finance.OrZero(req.NonVatableAmount)
	vatRate := finance.OrZero(req.VatRate)
	whtRate := finance.OrZero(req.WhtRate)
	for _, check := range []error{
		checkAmount(vatable, "vatable amount"),
		checkAmount(nonVatable, "non-vatable amount"),
		checkRate(vatRate, "VAT rate"),
		checkRate(whtRate, "WHT rate"),
	} {
		if check != nil {
			return nil, check
		}
	}
	totals := finance.ComputeTotals(vatable, nonVatable, vatRate, whtRate)

	invoice := &model.Invoice{
		CompanyID:           id.CompanyID,
		InvoiceNumber:       number,
		VendorInvoiceNumber: strings.TrimSpace(req.VendorInvoiceNumber),
		Vendor:              strings.TrimSpace(req.Vendor),
		Summary:             strings.TrimSpace(req.Summary),
		Currency:            currency,
		InvoiceDate:         invoiceDate,
		DueDate:             dueDate,
		Terms:               strings.TrimSpace(req.Terms),
		VatableAmount:       vatable,
		NonVatableAmount:    nonVatable,
		VatRate:             vatRate,
		WhtRate:             whtRate,
		VatAmount:           totals.Vat,
		WhtAmount:           totals.Wht,
		Subtotal:            totals.Subtotal,
		TotalAmount:         totals.Total,
		PayableAccount:      strings.TrimSpace(req.PayableAccount),
		ExpenseAssetAccount: strings.TrimSpace(req.ExpenseAssetAccount),
		CreatedBy:           id.Username,
	}
	if attachment != nil && len(attachment.Data) > 0 {
		invoice.FileName = attachment.FileName
		invoice.FileData = attachment.Data
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if refErr := s.crm.ValidateInvoiceRefs(txCtx, id.CompanyID, invoice.Vendor, invoice.PayableAccount, invoice.ExpenseAssetAccount); refErr != nil {
			return refErr
		}
		exists, existsErr := s.repo.NumberExists(txCtx, id.CompanyID, number)
		if existsErr != nil {
			return apperror.Wrap(existsErr, "failed to check invoice number")
		}
		if exists {
			return apperror.Conflict("invoice number '%s' already exists", number)
		}
		if createErr := s.repo.Create(txCtx, invoice); createErr != nil {
			if isUniqueViolation(createErr) {
				return apperror.Conflict("invoice number '%s' already exists", number)
			}
			return apperror.Wrap(createErr, "failed to create invoice")
		}
		s.audit.Record(txCtx, auditFor(id, model.ActionCreateInvoice, model.EntityInvoice, invoice.ID.String(), map[string]interface{}{
			"invoice_number": number,
			"vendor":         invoice.Vendor,
			"total_amount":   invoice.TotalAmount.StringFixed(2),
		}))
		return nil
	})
	if err != nil {
		return nil, err
	}

	res := toInvoiceResponse(*invoice)
	return &res, nil
}

func (s *invoiceService) ListInvoices(ctx context.Context, filter InvoiceListFilter) ([]InvoiceResponse, int64, error) {
	id, err := requireIdentity(ctx)
	if err != nil {
		return nil, 0, err
	}
	page, limit := normalizePage(filter.Page, filter.Limit)

	invoices, total, err := s.repo.List(ctx, repository.InvoiceFilter{
		CompanyID: id.CompanyID,
		Vendor:    strings.TrimSpace(filter.Vendor),
		Search:    filter.Search,
		Page:      page,
		Limit:     limit,
	})
	if err != nil {
		return nil, 0, apperror.Wrap(err, "failed to list invoices")
	}

	res := make([]InvoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		res = append(res, toInvoiceResponse(inv))
	}
	return res, total, nil
}

func (s *invoiceService) load(ctx context.Context, rawID string) (*model.Invoice, error) {
	id, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}
	invoiceID, err := parseID(rawID, "invoice")
	if err != nil {
		return nil, err
	}
	invoice, err := s.repo.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, lookupError(err, "invoice")
	}
	if err := checkTenant(id, invoice.CompanyID, "invoice"); err != nil {
		return nil, err
	}
	return invoice, nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, rawID string) (*InvoiceResponse, error) {
	invoice, err := s.load(ctx, rawID)
	if err != nil {
		return nil, err
	}
	res := toInvoiceResponse(*invoice)
	return &res, nil
}

func (s *invoiceService) GetInvoiceAttachment(ctx context.Context, rawID string) (*Attachment, error) {
	invoice, err := s.load(ctx, rawID)
	if err != nil {
		return nil, err
	}
	if len(invoice.FileData) == 0 {
		return nil, apperror.NotFound("invoice has no attachment")
	}
	return &Attachment{FileName: invoice.FileName, Data: invoice.FileData}, nil
}

// UpdateInvoice is not supported yet; invoices are immutable once recorded.
func (s *invoiceService) UpdateInvoice(ctx context.Context, id string, req UpdateInvoiceRequest) (*InvoiceResponse, error) {
	return nil, apperror.ErrNotImplemented
}

func (s *invoiceService) DeleteInvoice(ctx context.Context, id string) error {
	return apperror.ErrNotImplemented
}

func (s *invoiceService) Suggestions(ctx context.Context) (*InvoiceSuggestions, error) {
	id, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}
	vendors, err := s.crmRepo.VendorNames(ctx, id.CompanyID)
	if err != nil {
		return nil, apperror.Wrap(err, "failed to load vendors")
	}
	payable, err := s.crmRepo.AccountNames(ctx, id.CompanyID, model.PayableAccountTypes)
	if err != nil {
		return nil, apperror.Wrap(err, "failed to load payable accounts")
	}
	expense, err := s.crmRepo.AccountNames(ctx, id.CompanyID, model.ExpenseAssetAccountTypes)
	if err != nil {
		return nil, apperror.Wrap(err, "failed to load expense accounts")
	}
	numbers, err := s.repo.Numbers(ctx, id.CompanyID)
	if err != nil {
		return nil, apperror.Wrap(err, "failed to load invoice numbers")
	}
	return &InvoiceSuggestions{
		Vendors:              nonNil(vendors),
		PayableAccounts:      nonNil(payable),
		ExpenseAssetAccounts: nonNil(expense),
		InvoiceNumbers:       nonNil(numbers),
	}, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
