package service

import (
	"context"
	"fmt"
	"strings"

	"voucherpro/internal/export"
	"voucherpro/internal/model"
	"voucherpro/internal/repository"
	"voucherpro/pkg/apperror"
)

// Report names accepted by the export endpoint.
const (
	ReportVouchers = "vouchers"
	ReportInvoices = "invoices"
	ReportVendors  = "vendors"
	ReportAccounts = "accounts"
	ReportAll      = "all"
)

type ReportFilter struct {
	Status      string
	Vendor      string
	AccountName string
}

type ReportService interface {
	VoucherSummaries(ctx context.Context, filter ReportFilter) ([]model.VoucherSummary, error)
	InvoiceSummaries(ctx context.Context, filter ReportFilter) ([]model.InvoiceSummary, error)
	VendorPositions(ctx context.Context) ([]model.VendorPosition, error)
	AccountActivity(ctx context.Context, filter ReportFilter) ([]model.AccountActivity, error)
	InvoiceAllocation(ctx context.Context, invoiceNumber string) (*model.InvoiceAllocation, error)
	// Export renders one report, or all of them, as an .xlsx workbook.
	Export(ctx context.Context, report string, filter ReportFilter) ([]byte, string, error)
}

type reportService struct {
	repo        repository.ReportRepository
	invoiceRepo repository.InvoiceRepository
}

func NewReportService(repo repository.ReportRepository, invoiceRepo repository.InvoiceRepository) ReportService {
	return &reportService{repo: repo, invoiceRepo: invoiceRepo}
}

func (s *reportService) VoucherSummaries(ctx context.Context, filter ReportFilter) ([]model.VoucherSummary, error) {
	id, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}
	if filter.Status != "" && !model.ValidVoucherStatus(filter.Status) {
		return nil, apperror.Validation("invalid status filter '%s'", filter.Status)
	}
	rows, err := s.repo.VoucherSummaries(ctx, id.CompanyID, filter.Status, strings.TrimSpace(filter.Vendor))
	if err != nil {
		return nil, apperror.Wrap(err, "failed to build voucher report")
	}
	return nonNilRows(rows), nil
}

func (s *reportService) InvoiceSummaries(ctx context.Context, filter ReportFilter) ([]model.InvoiceSummary, error) {
	id, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.InvoiceSummaries(ctx, id.CompanyID, strings.TrimSpace(filter.Vendor))
	if err != nil {
		return nil, apperror.Wrap(err, "failed to build invoice report")
	}
	return nonNilRows(rows), nil
}

func (s *reportService) VendorPositions(ctx context.Context) ([]model.VendorPosition, error) {
	id, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.VendorPositions(ctx, id.CompanyID)
	if err != nil {
		return nil, apperror.Wrap(err, "failed to build vendor report")
	}
	return nonNilRows(rows), nil
}

func (s *reportService) AccountActivity(ctx context.Context, filter ReportFilter) ([]model.AccountActivity, error) {
	id, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.AccountActivity(ctx, id.CompanyID, strings.TrimSpace(filter.AccountName))
	if err != nil {
		return nil, apperror.Wrap(err, "failed to build account report")
	}
	return nonNilRows(rows), nil
}

func (s *reportService) InvoiceAllocation(ctx context.Context, invoiceNumber string) (*model.InvoiceAllocation, error) {
	id, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}
	invoiceNumber = strings.TrimSpace(invoiceNumber)
	if invoiceNumber == "" {
		return nil, apperror.Validation("invoice number is required")
	}
	invoice, err := s.invoiceRepo.FindByNumber(ctx, id.CompanyID, invoiceNumber)
	if err != nil {
		return nil, lookupError(err, "invoice")
	}
	paid, err := s.repo.InvoicePayments(ctx, id.CompanyID, invoice.InvoiceNumber)
	if err != nil {
		return nil, apperror.Wrap(err, "failed to sum invoice payments")
	}

	base := invoice.Subtotal
	return &model.InvoiceAllocation{
		InvoiceNumber: invoice.InvoiceNumber,
		Vendor:        invoice.Vendor,
		Currency:      invoice.Currency,
		InvoiceBase:   base,
		InvoiceVat:    invoice.VatAmount,
		InvoiceWht:    invoice.WhtAmount,
		InvoiceTotal:  invoice.TotalAmount,
		PaidBase:      paid.PaidBase,
		PaidVat:       paid.PaidVat,
		PaidWht:       paid.PaidWht,
		PaidTotal:     paid.PaidTotal,
		BalanceBase:   base.Sub(paid.PaidBase),
		BalanceVat:    invoice.VatAmount.Sub(paid.PaidVat),
		BalanceWht:    invoice.WhtAmount.Sub(paid.PaidWht),
		BalanceTotal:  invoice.TotalAmount.Sub(paid.PaidTotal),
		VoucherCount:  paid.VoucherCount,
	}, nil
}

func (s *reportService) Export(ctx context.Context, report string, filter ReportFilter) ([]byte, string, error) {
	report = strings.ToLower(strings.TrimSpace(report))
	if report == "" {
		report = ReportAll
	}

	var builders []func() (export.Sheet, error)
	switch report {
	case ReportVouchers:
		builders = append(builders, func() (export.Sheet, error) { return s.voucherSheet(ctx, filter) })
	case ReportInvoices:
		builders = append(builders, func() (export.Sheet, error) { return s.invoiceSheet(ctx, filter) })
	case ReportVendors:
		builders = append(builders, func() (export.Sheet, error) { return s.vendorSheet(ctx) })
	case ReportAccounts:
		builders = append(builders, func() (export.Sheet, error) { return s.accountSheet(ctx, filter) })
	case ReportAll:
		builders = append(builders,
			func() (export.Sheet, error) { return s.voucherSheet(ctx, filter) },
			func() (export.Sheet, error) { return s.invoiceSheet(ctx, filter) },
			func() (export.Sheet, error) { return s.vendorSheet(ctx) },
			func() (export.Sheet, error) { return s.accountSheet(ctx, filter) },
		)
	default:
		return nil, "", apperror.Validation("unknown report '%s'", report)
	}

	sheets := make([]export.Sheet, 0, len(builders))
	for _, build := range builders {
		sheet, err := build()
		if err != nil {
			return nil, "", err
		}
		sheets = append(sheets, sheet)
	}

	data, err := export.Workbook(sheets...)
	if err != nil {
		return nil, "", apperror.Wrap(err, "failed to render workbook")
	}
	return data, fmt.Sprintf("voucherpro-%s-report.xlsx", report), nil
}

func (s *reportService) voucherSheet(ctx context.Context, filter ReportFilter) (export.Sheet, error) {
	rows, err := s.VoucherSummaries(ctx, filter)
	if err != nil {
		return export.Sheet{}, err
	}
	sheet := export.Sheet{
		Name:    "Voucher Summary",
		Headers: []string{"Voucher Number", "Vendor", "Requester", "Invoice Ref", "Currency", "Status", "Lines", "Amount", "VAT", "WHT", "Total Payable"},
	}
	for _, r := range rows {
		sheet.Rows = append(sheet.Rows, []interface{}{
			r.VoucherNumber, r.Vendor, r.Requester, r.InvoiceRef, r.Currency, r.Status, r.LineCount,
			r.TotalAmount, r.TotalVat, r.TotalWht, r.TotalPayable,
		})
	}
	return sheet, nil
}

func (s *reportService) invoiceSheet(ctx context.Context, filter ReportFilter) (export.Sheet, error) {
	rows, err := s.InvoiceSummaries(ctx, filter)
	if err != nil {
		return export.Sheet{}, err
	}
	sheet := export.Sheet{
		Name:    "Invoice Summary",
		Headers: []string{"Invoice Number", "Vendor", "Currency", "Subtotal", "VAT", "WHT", "Total"},
	}
	for _, r := range rows {
		sheet.Rows = append(sheet.Rows, []interface{}{
			r.InvoiceNumber, r.Vendor, r.Currency, r.Subtotal, r.VatAmount, r.WhtAmount, r.TotalAmount,
		})
	}
	return sheet, nil
}

func (s *reportService) vendorSheet(ctx context.Context) (export.Sheet, error) {
	rows, err := s.VendorPositions(ctx)
	if err != nil {
		return export.Sheet{}, err
	}
	sheet := export.Sheet{
		Name:    "Vendor Net Position",
		Headers: []string{"Vendor", "Invoices", "Total Invoiced", "Vouchers", "Total Vouchered", "Net Outstanding"},
	}
	for _, r := range rows {
		sheet.Rows = append(sheet.Rows, []interface{}{
			r.Vendor, r.InvoiceCount, r.TotalInvoiced, r.VoucherCount, r.TotalVouchered, r.NetOutstanding,
		})
	}
	return sheet, nil
}

func (s *reportService) accountSheet(ctx context.Context, filter ReportFilter) (export.Sheet, error) {
	rows, err := s.AccountActivity(ctx, filter)
	if err != nil {
		return export.Sheet{}, err
	}
	sheet := export.Sheet{
		Name:    "Account Activity",
		Headers: []string{"Account", "Source", "Reference", "Vendor", "Description", "Amount", "VAT", "WHT", "Total"},
	}
	for _, r := range rows {
		sheet.Rows = append(sheet.Rows, []interface{}{
			r.AccountName, r.Source, r.Reference, r.Vendor, r.Description, r.Amount, r.Vat, r.Wht, r.Total,
		})
	}
	return sheet, nil
}

func nonNilRows[T any](rows []T) []T {
	if rows == nil {
		return []T{}
	}
	return rows
}
