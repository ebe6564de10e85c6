package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"voucherpro/internal/finance"
	"voucherpro/internal/model"
	"voucherpro/internal/repository"
	"voucherpro/internal/reqctx"
	"voucherpro/internal/websocket"
	"voucherpro/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// maxVoucherNumberLen matches the vouchers.voucher_number column.
const maxVoucherNumberLen = 50

// --- DTOs ---

type VoucherLineRequest struct {
	Description string           `json:"description"`
	AccountName string           `json:"account_name"`
	Amount      *decimal.Decimal `json:"amount"`
	VatPercent  *decimal.Decimal `json:"vat_percent"`
	WhtPercent  *decimal.Decimal `json:"wht_percent"`
}

type CreateVoucherRequest struct {
	VoucherNumber string               `json:"voucher_number" binding:"omitempty,max=50"`
	Vendor        string               `json:"vendor" binding:"required"`
	Requester     string               `json:"requester" binding:"required"`
	InvoiceRef    string               `json:"invoice_ref"`
	Currency      string               `json:"currency" binding:"omitempty,currency"`
	BankDetails   string               `json:"bank_details"`
	Description   string               `json:"description"`
	Lines         []VoucherLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// UpdateVoucherRequest edits a draft voucher. Lines replace the existing lines when present.
type UpdateVoucherRequest struct {
	Vendor      string               `json:"vendor" binding:"required"`
	Requester   string               `json:"requester" binding:"required"`
	InvoiceRef  string               `json:"invoice_ref"`
	Currency    string               `json:"currency" binding:"omitempty,currency"`
	BankDetails string               `json:"bank_details"`
	Description string               `json:"description"`
	Lines       []VoucherLineRequest `json:"lines" binding:"omitempty,dive"`
}

type UpdateVoucherStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type VoucherListFilter struct {
	Status string
	Vendor string
	Search string
	Page   int
	Limit  int
}

type VoucherLineResponse struct {
	ID          string `json:"id"`
	LineNo      int    `json:"line_no"`
	Description string `json:"description"`
	AccountName string `json:"account_name"`
	Amount      string `json:"amount"`
	VatPercent  string `json:"vat_percent"`
	WhtPercent  string `json:"wht_percent"`
	VatValue    string `json:"vat_value"`
	WhtValue    string `json:"wht_value"`
	Total       string `json:"total"`
}

type VoucherResponse struct {
	ID            string                `json:"id"`
	VoucherNumber string                `json:"voucher_number"`
	Vendor        string                `json:"vendor"`
	Requester     string                `json:"requester"`
	InvoiceRef    string                `json:"invoice_ref"`
	Currency      string                `json:"currency"`
	BankDetails   string                `json:"bank_details"`
	Description   string                `json:"description"`
	Status        string                `json:"status"`
	CreatedBy     string                `json:"created_by"`
	ApprovedBy    *string               `json:"approved_by"`
	ApprovedAt    *string               `json:"approved_at"`
	FileName      string                `json:"file_name"`
	HasAttachment bool                  `json:"has_attachment"`
	TotalAmount   string                `json:"total_amount"`
	TotalVat      string                `json:"total_vat"`
	TotalWht      string                `json:"total_wht"`
	TotalPayable  string                `json:"total_payable"`
	Lines         []VoucherLineResponse `json:"lines,omitempty"`
	CreatedAt     string                `json:"created_at"`
	LastModified  string                `json:"last_modified"`
}

// VoucherDocument is everything needed to render a voucher for print.
type VoucherDocument struct {
	Company model.Company
	Voucher model.Voucher
}

// EventPublisher pushes live notifications to a company's connected clients.
type EventPublisher interface {
	Publish(companyID uuid.UUID, eventType string, data interface{})
}

// --- Interface ---

type VoucherService interface {
	CreateVoucher(ctx context.Context, req CreateVoucherRequest, attachment *Attachment) (*VoucherResponse, error)
	ListVouchers(ctx context.Context, filter VoucherListFilter) ([]VoucherResponse, int64, error)
	GetVoucher(ctx context.Context, id string) (*VoucherResponse, error)
	ListVoucherLines(ctx context.Context, id string) ([]VoucherLineResponse, error)
	UpdateVoucher(ctx context.Context, id string, req UpdateVoucherRequest, attachment *Attachment) (*VoucherResponse, error)
	DeleteVoucher(ctx context.Context, id string) error
	UpdateVoucherStatus(ctx context.Context, id string, status string) (*VoucherResponse, error)
	GetVoucherDocument(ctx context.Context, id string) (*VoucherDocument, error)
}

type voucherService struct {
	txManager   repository.TransactionManager
	repo        repository.VoucherRepository
	companyRepo repository.CompanyRepository
	crm         CRMService
	audit       AuditService
	events      EventPublisher
	log         *zap.Logger
	now         func() time.Time
}

func NewVoucherService(
	txManager repository.TransactionManager,
	repo repository.VoucherRepository,
	companyRepo repository.CompanyRepository,
	crm CRMService,
	audit AuditService,
	events EventPublisher,
	log *zap.Logger,
) VoucherService {
	return &voucherService{
		txManager:   txManager,
		repo:        repo,
		companyRepo: companyRepo,
		crm:         crm,
		audit:       audit,
		events:      events,
		log:         log.Named("vouchers"),
		now:         time.Now,
	}
}

// --- Helpers ---

func toVoucherLineResponse(l model.VoucherLine) VoucherLineResponse {
	return VoucherLineResponse{
		ID:          l.ID.String(),
		LineNo:      l.LineNo,
		Description: l.Description,
		AccountName: l.AccountName,
		Amount:      l.Amount.StringFixed(2),
		VatPercent:  l.VatPercent.String(),
		WhtPercent:  l.WhtPercent.String(),
		VatValue:    l.VatValue.StringFixed(2),
		WhtValue:    l.WhtValue.StringFixed(2),
		Total:       l.Total.StringFixed(2),
	}
}

func toVoucherResponse(v model.Voucher, withLines bool) VoucherResponse {
	amounts := make([]decimal.Decimal, 0, len(v.Lines))
	vats := make([]decimal.Decimal, 0, len(v.Lines))
	whts := make([]decimal.Decimal, 0, len(v.Lines))
	totals := make([]decimal.Decimal, 0, len(v.Lines))
	for _, l := range v.Lines {
		amounts = append(amounts, l.Amount)
		vats = append(vats, l.VatValue)
		whts = append(whts, l.WhtValue)
		totals = append(totals, l.Total)
	}
	var approvedBy *string
	if v.ApprovedBy != nil {
		s := v.ApprovedBy.String()
		approvedBy = &s
	}
	res := VoucherResponse{
		ID:            v.ID.String(),
		VoucherNumber: v.VoucherNumber,
		Vendor:        v.Vendor,
		Requester:     v.Requester,
		InvoiceRef:    v.InvoiceRef,
		Currency:      v.Currency,
		BankDetails:   v.BankDetails,
		Description:   v.Description,
		Status:        v.Status,
		CreatedBy:     v.CreatedBy,
		ApprovedBy:    approvedBy,
		ApprovedAt:    formatTime(v.ApprovedAt),
		FileName:      v.FileName,
		HasAttachment: v.FileName != "",
		TotalAmount:   finance.Sum(amounts...).StringFixed(2),
		TotalVat:      finance.Sum(vats...).StringFixed(2),
		TotalWht:      finance.Sum(whts...).StringFixed(2),
		TotalPayable:  finance.Sum(totals...).StringFixed(2),
		CreatedAt:     v.CreatedAt.Format(time.RFC3339),
		LastModified:  v.LastModified.Format(time.RFC3339),
	}
	if withLines {
		res.Lines = make([]VoucherLineResponse, 0, len(v.Lines))
		for _, l := range v.Lines {
			res.Lines = append(res.Lines, toVoucherLineResponse(l))
		}
	}
	return res
}

// buildLines validates the requested lines and computes their derived columns.
// At least one line must carry a positive total.
func buildLines(reqs []VoucherLineRequest) ([]model.VoucherLine, []string, error) {
	if len(reqs) == 0 {
		return nil, nil, apperror.Validation("a voucher needs at least one line")
	}
	lines := make([]model.VoucherLine, 0, len(reqs))
	accounts := make([]string, 0, len(reqs))
	hasPositive := false
	for i, r := range reqs {
		amount := finance.OrZero(r.Amount)
		vatPct := finance.OrZero(r.VatPercent)
		whtPct := finance.OrZero(r.WhtPercent)
		if err := checkAmount(amount, fmt.Sprintf("line %d amount", i+1)); err != nil {
			return nil, nil, err
		}
		if err := checkRate(vatPct, fmt.Sprintf("line %d VAT %%", i+1)); err != nil {
			return nil, nil, err
		}
		if err := checkRate(whtPct, fmt.Sprintf("line %d WHT %%", i+1)); err != nil {
			return nil, nil, err
		}
		t := finance.LineTotals(amount, vatPct, whtPct)
		if t.Total.IsPositive() {
			hasPositive = true
		}
		account := strings.TrimSpace(r.AccountName)
		if account != "" {
			accounts = append(accounts, account)
		}
		lines = append(lines, model.VoucherLine{
			LineNo:      i + 1,
			Description: strings.TrimSpace(r.Description),
			AccountName: account,
			Amount:      amount,
			VatPercent:  vatPct,
			WhtPercent:  whtPct,
			VatValue:    t.Vat,
			WhtValue:    t.Wht,
			Total:       t.Total,
		})
	}
	if !hasPositive {
		return nil, nil, apperror.Validation("at least one line must have a positive total")
	}
	return lines, accounts, nil
}

// nextVoucherNumber returns the next VCH-<year>-<seq> number for the company.
// The caller holds the numbering lock.
func (s *voucherService) nextVoucherNumber(ctx context.Context, companyID uuid.UUID) (string, error) {
	prefix := fmt.Sprintf("VCH-%d-", s.now().Year())
	last, err := s.repo.LastNumberWithPrefix(ctx, companyID, prefix)
	if err != nil {
		return "", apperror.Wrap(err, "failed to read last voucher number")
	}
	seq := 0
	if last != "" {
		if n, convErr := strconv.Atoi(strings.TrimPrefix(last, prefix)); convErr == nil {
			seq = n
		}
	}
	for {
		seq++
		candidate := fmt.Sprintf("%s%04d", prefix, seq)
		exists, existsErr := s.repo.NumberExists(ctx, companyID, candidate)
		if existsErr != nil {
			return "", apperror.Wrap(existsErr, "failed to check voucher number")
		}
		if !exists {
			return candidate, nil
		}
	}
}

func (s *voucherService) publish(companyID uuid.UUID, eventType string, data interface{}) {
	if s.events != nil {
		s.events.Publish(companyID, eventType, data)
	}
}

func (s *voucherService) load(ctx context.Context, id reqctx.Identity, rawID string) (*model.Voucher, error) {
	voucherID, err := parseID(rawID, "voucher")
	if err != nil {
		return nil, err
	}
	voucher, err := s.repo.FindByID(ctx, voucherID)
	if err != nil {
		return nil, lookupError(err, "voucher")
	}
	if err := checkTenant(id, voucher.CompanyID, "voucher"); err != nil {
		return nil, err
	}
	return voucher, nil
}

// --- Implementation ---

func (s *voucherService) CreateVoucher(ctx context.Context, req CreateVoucherRequest, attachment *Attachment) (*VoucherResponse, error) {
	id, err := requirePermission(ctx, model.PermCreateVoucher)
	if err != nil {
		return nil, err
	}

	vendor := strings.TrimSpace(req.Vendor)
	requester := strings.TrimSpace(req.Requester)
	if vendor == "" {
		return nil, apperror.Validation("vendor is required")
	}
	if requester == "" {
		return nil, apperror.Validation("requester is required")
	}
	currency, err := normalizeCurrency(req.Currency)
	if err != nil {
		return nil, err
	}
	number := strings.ToUpper(strings.TrimSpace(req.VoucherNumber))
	if len(number) > maxVoucherNumberLen {
		return nil, apperror.Validation("voucher number must be at most %d characters", maxVoucherNumberLen)
	}
	lines, accounts, err := buildLines(req.Lines)
	if err != nil {
		return nil, err
	}

	voucher := &model.Voucher{
		CompanyID:     id.CompanyID,
		VoucherNumber: number,
		Vendor:        vendor,
		Requester:     requester,
		InvoiceRef:    strings.TrimSpace(req.InvoiceRef),
		Currency:      currency,
		BankDetails:   strings.TrimSpace(req.BankDetails),
		Description:   strings.TrimSpace(req.Description),
		Status:        model.VoucherDraft,
		CreatedBy:     id.Username,
	}
	if attachment != nil && len(attachment.Data) > 0 {
		voucher.FileName = attachment.FileName
		voucher.FileData = attachment.Data
	}
	for i := range lines {
		lines[i].CompanyID = id.CompanyID
	}
	voucher.Lines = lines

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if refErr := s.crm.ValidateVoucherRefs(txCtx, id.CompanyID, vendor, requester, accounts); refErr != nil {
			return refErr
		}
		if lockErr := s.repo.LockNumbering(txCtx, id.CompanyID); lockErr != nil {
			return apperror.Wrap(lockErr, "failed to lock voucher numbering")
		}

		if voucher.VoucherNumber == "" {
			number, numErr := s.nextVoucherNumber(txCtx, id.CompanyID)
			if numErr != nil {
				return numErr
			}
			voucher.VoucherNumber = number
		} else {
			exists, existsErr := s.repo.NumberExists(txCtx, id.CompanyID, voucher.VoucherNumber)
			if existsErr != nil {
				return apperror.Wrap(existsErr, "failed to check voucher number")
			}
			if exists {
				return apperror.Validation("voucher number '%s' already exists", voucher.VoucherNumber)
			}
		}

		if createErr := s.repo.Create(txCtx, voucher); createErr != nil {
			if isUniqueViolation(createErr) {
				return apperror.Validation("voucher number '%s' already exists", voucher.VoucherNumber)
			}
			return apperror.Wrap(createErr, "failed to create voucher")
		}

		s.audit.Record(txCtx, auditFor(id, model.ActionCreateVoucher, model.EntityVoucher, voucher.ID.String(), map[string]interface{}{
			"voucher_number": voucher.VoucherNumber,
			"vendor":         vendor,
			"lines":          len(lines),
		}))
		return nil
	})
	if err != nil {
		return nil, err
	}

	res := toVoucherResponse(*voucher, true)
	s.publish(id.CompanyID, websocket.EventVoucherCreated, res)
	return &res, nil
}

func (s *voucherService) ListVouchers(ctx context.Context, filter VoucherListFilter) ([]VoucherResponse, int64, error) {
	id, err := requireIdentity(ctx)
	if err != nil {
		return nil, 0, err
	}
	if filter.Status != "" && !model.ValidVoucherStatus(filter.Status) {
		return nil, 0, apperror.Validation("invalid status filter '%s'", filter.Status)
	}
	page, limit := normalizePage(filter.Page, filter.Limit)

	vouchers, total, err := s.repo.List(ctx, repository.VoucherFilter{
		CompanyID: id.CompanyID,
		Status:    filter.Status,
		Vendor:    strings.TrimSpace(filter.Vendor),
		Search:    filter.Search,
		Page:      page,
		Limit:     limit,
	})
	if err != nil {
		return nil, 0, apperror.Wrap(err, "failed to list vouchers")
	}

	res := make([]VoucherResponse, 0, len(vouchers))
	for _, v := range vouchers {
		res = append(res, toVoucherResponse(v, false))
	}
	return res, total, nil
}

func (s *voucherService) GetVoucher(ctx context.Context, rawID string) (*VoucherResponse, error) {
	id, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}
	voucher, err := s.load(ctx, id, rawID)
	if err != nil {
		return nil, err
	}
	res := toVoucherResponse(*voucher, true)
	return &res, nil
}

func (s *voucherService) ListVoucherLines(ctx context.Context, rawID string) ([]VoucherLineResponse, error) {
	id, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}
	voucher, err := s.load(ctx, id, rawID)
	if err != nil {
		return nil, err
	}
	res := make([]VoucherLineResponse, 0, len(voucher.Lines))
	for _, l := range voucher.Lines {
		res = append(res, toVoucherLineResponse(l))
	}
	return res, nil
}

func (s *voucherService) UpdateVoucher(ctx context.Context, rawID string, req UpdateVoucherRequest, attachment *Attachment) (*VoucherResponse, error) {
	id, err := requirePermission(ctx, model.PermCreateVoucher)
	if err != nil {
		return nil, err
	}
	vendor := strings.TrimSpace(req.Vendor)
	requester := strings.TrimSpace(req.Requester)
	if vendor == "" || requester == "" {
		return nil, apperror.Validation("vendor and requester are required")
	}
	currency, err := normalizeCurrency(req.Currency)
	if err != nil {
		return nil, err
	}
	var newLines []model.VoucherLine
	var accounts []string
	if req.Lines != nil {
		if newLines, accounts, err = buildLines(req.Lines); err != nil {
			return nil, err
		}
	}

	var voucher *model.Voucher
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var loadErr error
		if voucher, loadErr = s.load(txCtx, id, rawID); loadErr != nil {
			return loadErr
		}
		if voucher.Status != model.VoucherDraft {
			return apperror.Validation("only draft vouchers can be edited; voucher is %s", voucher.Status)
		}
		if newLines == nil {
			for _, l := range voucher.Lines {
				if l.AccountName != "" {
					accounts = append(accounts, l.AccountName)
				}
			}
		}
		if refErr := s.crm.ValidateVoucherRefs(txCtx, id.CompanyID, vendor, requester, accounts); refErr != nil {
			return refErr
		}

		voucher.Vendor = vendor
		voucher.Requester = requester
		voucher.InvoiceRef = strings.TrimSpace(req.InvoiceRef)
		voucher.Currency = currency
		voucher.BankDetails = strings.TrimSpace(req.BankDetails)
		voucher.Description = strings.TrimSpace(req.Description)
		if attachment != nil && len(attachment.Data) > 0 {
			voucher.FileName = attachment.FileName
			voucher.FileData = attachment.Data
		}
		voucher.LastModified = s.now()
		if updateErr := s.repo.UpdateHeader(txCtx, voucher); updateErr != nil {
			return apperror.Wrap(updateErr, "failed to update voucher")
		}
		if newLines != nil {
			if replaceErr := s.repo.ReplaceLines(txCtx, voucher, newLines); replaceErr != nil {
				return apperror.Wrap(replaceErr, "failed to replace voucher lines")
			}
			voucher.Lines = newLines
		}

		s.audit.Record(txCtx, auditFor(id, model.ActionUpdateVoucher, model.EntityVoucher, voucher.ID.String(), map[string]interface{}{
			"voucher_number": voucher.VoucherNumber,
			"lines_replaced": newLines != nil,
		}))
		return nil
	})
	if err != nil {
		return nil, err
	}

	res := toVoucherResponse(*voucher, true)
	s.publish(id.CompanyID, websocket.EventVoucherUpdated, res)
	return &res, nil
}

func (s *voucherService) DeleteVoucher(ctx context.Context, rawID string) error {
	id, err := requirePermission(ctx, model.PermCreateVoucher)
	if err != nil {
		return err
	}

	var voucher *model.Voucher
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var loadErr error
		if voucher, loadErr = s.load(txCtx, id, rawID); loadErr != nil {
			return loadErr
		}
		if voucher.Status != model.VoucherDraft {
			return apperror.Validation("only draft vouchers can be deleted; voucher is %s", voucher.Status)
		}
		if delErr := s.repo.Delete(txCtx, voucher.ID); delErr != nil {
			return apperror.Wrap(delErr, "failed to delete voucher")
		}
		s.audit.Record(txCtx, auditFor(id, model.ActionDeleteVoucher, model.EntityVoucher, voucher.ID.String(), map[string]interface{}{
			"voucher_number": voucher.VoucherNumber,
		}))
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(id.CompanyID, websocket.EventVoucherDeleted, map[string]string{
		"id":             voucher.ID.String(),
		"voucher_number": voucher.VoucherNumber,
	})
	return nil
}

func (s *voucherService) UpdateVoucherStatus(ctx context.Context, rawID string, status string) (*VoucherResponse, error) {
	id, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}
	status = strings.ToLower(strings.TrimSpace(status))
	if !model.ValidVoucherStatus(status) {
		return nil, apperror.Validation("invalid status '%s'", status)
	}
	if status == model.VoucherApproved && !id.Has(model.PermApproveVoucher) {
		return nil, apperror.Forbidden("approving a voucher requires the '%s' permission", model.PermApproveVoucher)
	}
	if status != model.VoucherApproved && !id.Has(model.PermCreateVoucher) && !id.Has(model.PermApproveVoucher) {
		return nil, apperror.Forbidden("missing permission '%s'", model.PermCreateVoucher)
	}

	var voucher *model.Voucher
	var from string
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var loadErr error
		if voucher, loadErr = s.load(txCtx, id, rawID); loadErr != nil {
			return loadErr
		}
		from = voucher.Status
		if !model.CanTransition(from, status) {
			return apperror.Validation("cannot move voucher from %s to %s", from, status)
		}

		now := s.now()
		fields := map[string]interface{}{
			"status":        status,
			"last_modified": now,
		}
		if status == model.VoucherApproved {
			fields["approved_by"] = id.UserID
			fields["approved_at"] = now
		}
		affected, updErr := s.repo.UpdateStatus(txCtx, voucher.ID, from, fields)
		if updErr != nil {
			return apperror.Wrap(updErr, "failed to update voucher status")
		}
		if affected == 0 {
			return apperror.Conflict("voucher %s changed while updating; reload and retry", voucher.VoucherNumber)
		}

		voucher.Status = status
		voucher.LastModified = now
		if status == model.VoucherApproved {
			approver := id.UserID
			voucher.ApprovedBy = &approver
			voucher.ApprovedAt = &now
		}

		s.audit.Record(txCtx, auditFor(id, model.ActionChangeVoucherStatus, model.EntityVoucher, voucher.ID.String(), map[string]interface{}{
			"voucher_number": voucher.VoucherNumber,
			"from":           from,
			"to":             status,
		}))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("voucher status changed",
		zap.String("voucher_number", voucher.VoucherNumber),
		zap.String("from", from),
		zap.String("to", status),
		zap.String("by", id.Username),
	)
	res := toVoucherResponse(*voucher, true)
	s.publish(id.CompanyID, websocket.EventVoucherStatusChanged, res)
	return &res, nil
}

func (s *voucherService) GetVoucherDocument(ctx context.Context, rawID string) (*VoucherDocument, error) {
	id, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}
	voucher, err := s.load(ctx, id, rawID)
	if err != nil {
		return nil, err
	}
	company, err := s.companyRepo.FindByID(ctx, id.CompanyID)
	if err != nil {
		return nil, lookupError(err, "company")
	}
	return &VoucherDocument{Company: *company, Voucher: *voucher}, nil
}
