package repository

import (
	"context"
	"strings"

	"voucherpro/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReportRepository runs the read-only aggregate queries. Every query is scoped to one company
// and missing sums come back as zero.
type ReportRepository interface {
	VoucherSummaries(ctx context.Context, companyID uuid.UUID, status, vendor string) ([]model.VoucherSummary, error)
	InvoiceSummaries(ctx context.Context, companyID uuid.UUID, vendor string) ([]model.InvoiceSummary, error)
	VendorPositions(ctx context.Context, companyID uuid.UUID) ([]model.VendorPosition, error)
	AccountActivity(ctx context.Context, companyID uuid.UUID, accountName string) ([]model.AccountActivity, error)
	InvoicePayments(ctx context.Context, companyID uuid.UUID, invoiceNumber string) (InvoicePayments, error)
}

// InvoicePayments sums the voucher lines that reference one invoice.
type InvoicePayments struct {
	PaidBase     decimal.Decimal `gorm:"column:paid_base"`
	PaidVat      decimal.Decimal `gorm:"column:paid_vat"`
	PaidWht      decimal.Decimal `gorm:"column:paid_wht"`
	PaidTotal    decimal.Decimal `gorm:"column:paid_total"`
	VoucherCount int64           `gorm:"column:voucher_count"`
}

type reportRepository struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db}
}

func (r *reportRepository) VoucherSummaries(ctx context.Context, companyID uuid.UUID, status, vendor string) ([]model.VoucherSummary, error) {
	where := []string{"v.company_id = ?"}
	args := []interface{}{companyID}
	if status != "" {
		where = append(where, "v.status = ?")
		args = append(args, status)
	}
	if vendor != "" {
		where = append(where, "v.vendor = ?")
		args = append(args, vendor)
	}

	query := `
		SELECT v.id AS voucher_id, v.voucher_number, v.vendor, v.requester, v.invoice_ref, v.currency, v.status,
			COUNT(l.id) AS line_count,
			COALESCE(SUM(l.amount), 0) AS total_amount,
			COALESCE(SUM(l.vat_value), 0) AS total_vat,
			COALESCE(SUM(l.wht_value), 0) AS total_wht,
			COALESCE(SUM(l.total), 0) AS total_payable
		FROM vouchers v
		LEFT JOIN voucher_lines l ON l.voucher_id = v.id
		WHERE ` + strings.Join(where, " AND ") + `
		GROUP BY v.id, v.voucher_number, v.vendor, v.requester, v.invoice_ref, v.currency, v.status, v.created_at
		ORDER BY v.created_at DESC`

	var rows []model.VoucherSummary
	err := GetDB(ctx, r.db).Raw(query, args...).Scan(&rows).Error
	return rows, err
}

func (r *reportRepository) InvoiceSummaries(ctx context.Context, companyID uuid.UUID, vendor string) ([]model.InvoiceSummary, error) {
	where := "company_id = ?"
	args := []interface{}{companyID}
	if vendor != "" {
		where += " AND vendor = ?"
		args = append(args, vendor)
	}

	query := `
		SELECT invoice_number, vendor, currency,
			COALESCE(subtotal, 0) AS subtotal,
			COALESCE(vat_amount, 0) AS vat_amount,
			COALESCE(wht_amount, 0) AS wht_amount,
			COALESCE(total_amount, 0) AS total_amount
		FROM invoices
		WHERE ` + where + `
		ORDER BY created_at DESC`

	var rows []model.InvoiceSummary
	err := GetDB(ctx, r.db).Raw(query, args...).Scan(&rows).Error
	return rows, err
}

// VendorPositions nets each vendor's invoices against its non-rejected vouchers.
func (r *reportRepository) VendorPositions(ctx context.Context, companyID uuid.UUID) ([]model.VendorPosition, error) {
	query := `
		SELECT vd.name AS vendor,
			COALESCE(i.total_invoiced, 0) AS total_invoiced,
			COALESCE(p.total_vouchered, 0) AS total_vouchered,
			COALESCE(i.invoice_count, 0) AS invoice_count,
			COALESCE(p.voucher_count, 0) AS voucher_count
		FROM vendors vd
		LEFT JOIN (
			SELECT vendor, SUM(total_amount) AS total_invoiced, COUNT(*) AS invoice_count
			FROM invoices
			WHERE company_id = ?
			GROUP BY vendor
		) i ON i.vendor = vd.name
		LEFT JOIN (
			SELECT vo.vendor, SUM(l.total) AS total_vouchered, COUNT(DISTINCT vo.id) AS voucher_count
			FROM vouchers vo
			JOIN voucher_lines l ON l.voucher_id = vo.id
			WHERE vo.company_id = ? AND vo.status <> ?
			GROUP BY vo.vendor
		) p ON p.vendor = vd.name
		WHERE vd.company_id = ?
		ORDER BY vd.name ASC`

	var rows []model.VendorPosition
	if err := GetDB(ctx, r.db).Raw(query, companyID, companyID, model.VoucherRejected, companyID).Scan(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].NetOutstanding = rows[i].TotalInvoiced.Sub(rows[i].TotalVouchered)
	}
	return rows, nil
}

// AccountActivity lists voucher lines and invoices posted to accounts, optionally for one account.
func (r *reportRepository) AccountActivity(ctx context.Context, companyID uuid.UUID, accountName string) ([]model.AccountActivity, error) {
	query := `
		SELECT * FROM (
			SELECT l.account_name AS account_name, 'voucher' AS source, v.voucher_number AS reference,
				v.vendor AS vendor, l.description AS description,
				l.amount AS amount, l.vat_value AS vat, l.wht_value AS wht, l.total AS total
			FROM voucher_lines l
			JOIN vouchers v ON v.id = l.voucher_id
			WHERE l.company_id = ? AND l.account_name <> ''
			UNION ALL
			SELECT expense_asset_account, 'invoice', invoice_number, vendor, summary,
				subtotal, vat_amount, wht_amount, total_amount
			FROM invoices
			WHERE company_id = ? AND expense_asset_account <> ''
			UNION ALL
			SELECT payable_account, 'invoice', invoice_number, vendor, summary,
				subtotal, vat_amount, wht_amount, total_amount
			FROM invoices
			WHERE company_id = ? AND payable_account <> ''
		) activity`
	args := []interface{}{companyID, companyID, companyID}
	if accountName != "" {
		query += " WHERE account_name = ?"
		args = append(args, accountName)
	}
	query += " ORDER BY account_name ASC, reference ASC"

	var rows []model.AccountActivity
	err := GetDB(ctx, r.db).Raw(query, args...).Scan(&rows).Error
	return rows, err
}

func (r *reportRepository) InvoicePayments(ctx context.Context, companyID uuid.UUID, invoiceNumber string) (InvoicePayments, error) {
	query := `
		SELECT COALESCE(SUM(l.amount), 0) AS paid_base,
			COALESCE(SUM(l.vat_value), 0) AS paid_vat,
			COALESCE(SUM(l.wht_value), 0) AS paid_wht,
			COALESCE(SUM(l.total), 0) AS paid_total,
			COUNT(DISTINCT v.id) AS voucher_count
		FROM vouchers v
		JOIN voucher_lines l ON l.voucher_id = v.id
		WHERE v.company_id = ? AND v.invoice_ref = ? AND v.status <> ?`

	var payments InvoicePayments
	err := GetDB(ctx, r.db).Raw(query, companyID, invoiceNumber, model.VoucherRejected).Scan(&payments).Error
	return payments, err
}
