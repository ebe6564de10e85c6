package model

import (
	"github.com/shopspring/decimal"
)

// VoucherSummary aggregates the lines of one voucher.
type VoucherSummary struct {
	VoucherID     string          `json:"voucher_id"`
	VoucherNumber string          `json:"voucher_number"`
	Vendor        string          `json:"vendor"`
	Requester     string          `json:"requester"`
	InvoiceRef    string          `json:"invoice_ref"`
	Currency      string          `json:"currency"`
	Status        string          `json:"status"`
	LineCount     int64           `json:"line_count"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	TotalVat      decimal.Decimal `json:"total_vat"`
	TotalWht      decimal.Decimal `json:"total_wht"`
	TotalPayable  decimal.Decimal `json:"total_payable"`
}

// InvoiceSummary is the reporting view of an invoice.
type InvoiceSummary struct {
	InvoiceNumber string          `json:"invoice_number"`
	Vendor        string          `json:"vendor"`
	Currency      string          `json:"currency"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	VatAmount     decimal.Decimal `json:"vat_amount"`
	WhtAmount     decimal.Decimal `json:"wht_amount"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
}

// VendorPosition is what a vendor has invoiced against what has been vouchered to them.
type VendorPosition struct {
	Vendor         string          `json:"vendor"`
	TotalInvoiced  decimal.Decimal `json:"total_invoiced"`
	TotalVouchered decimal.Decimal `json:"total_vouchered"`
	NetOutstanding decimal.Decimal `json:"net_outstanding"`
	InvoiceCount   int64           `json:"invoice_count"`
	VoucherCount   int64           `json:"voucher_count"`
}

// AccountActivity is one posting against a named account.
type AccountActivity struct {
	AccountName string          `json:"account_name"`
	Source      string          `json:"source"` // voucher or invoice
	Reference   string          `json:"reference"`
	Vendor      string          `json:"vendor"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Vat         decimal.Decimal `json:"vat"`
	Wht         decimal.Decimal `json:"wht"`
	Total       decimal.Decimal `json:"total"`
}

// InvoiceAllocation compares an invoice with what vouchers referencing it have paid.
type InvoiceAllocation struct {
	InvoiceNumber string          `json:"invoice_number"`
	Vendor        string          `json:"vendor"`
	Currency      string          `json:"currency"`
	InvoiceBase   decimal.Decimal `json:"invoice_base"`
	InvoiceVat    decimal.Decimal `json:"invoice_vat"`
	InvoiceWht    decimal.Decimal `json:"invoice_wht"`
	InvoiceTotal  decimal.Decimal `json:"invoice_total"`
	PaidBase      decimal.Decimal `json:"paid_base"`
	PaidVat       decimal.Decimal `json:"paid_vat"`
	PaidWht       decimal.Decimal `json:"paid_wht"`
	PaidTotal     decimal.Decimal `json:"paid_total"`
	BalanceBase   decimal.Decimal `json:"balance_base"`
	BalanceVat    decimal.Decimal `json:"balance_vat"`
	BalanceWht    decimal.Decimal `json:"balance_wht"`
	BalanceTotal  decimal.Decimal `json:"balance_total"`
	VoucherCount  int64           `json:"voucher_count"`
}
