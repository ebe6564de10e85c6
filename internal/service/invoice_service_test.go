package service

import (
	"context"
	"testing"

	"voucherpro/internal/model"
	"voucherpro/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func invoiceRequest(number string) CreateInvoiceRequest {
	return CreateInvoiceRequest{
		InvoiceNumber:       number,
		VendorInvoiceNumber: "GX-9912",
		Vendor:              "Globex Ltd",
		Summary:             "Stationery for Q2",
		InvoiceDate:         "2026-04-01",
		DueDate:             "2026-04-30",
		VatableAmount:       dec("1000"),
		NonVatableAmount:    dec("200"),
		VatRate:             dec("7.5"),
		WhtRate:             dec("5"),
		PayableAccount:      "Trade Payables",
		ExpenseAssetAccount: "Office Expenses",
	}
}

func newInvoiceEnv(t *testing.T) (*testEnv, context.Context) {
	t.Helper()
	env := newTestEnv(t)
	ctx, _ := env.registerCompany(t, "acme")
	env.seedMasterData(t, ctx)
	return env, ctx
}

func TestCreateInvoice_ComputesTotals(t *testing.T) {
	env, ctx := newInvoiceEnv(t)

	res, err := env.invoices.CreateInvoice(ctx, invoiceRequest("INV-001"), &Attachment{FileName: "inv.pdf", Data: []byte("%PDF-1.4")})
	require.NoError(t, err)

	assert.Equal(t, "75.00", res.VatAmount)
	assert.Equal(t, "50.00", res.WhtAmount)
	assert.Equal(t, "1200.00", res.Subtotal)
	assert.Equal(t, "1225.00", res.TotalAmount)
	assert.Equal(t, "2026-04-30", res.DueDate)
	assert.Equal(t, model.DefaultCurrency, res.Currency)
	assert.True(t, res.HasAttachment)
	assert.EqualValues(t, 1, env.countAudit(t, model.ActionCreateInvoice))

	got, err := env.invoices.GetInvoice(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, "1225.00", got.TotalAmount)

	file, err := env.invoices.GetInvoiceAttachment(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, "inv.pdf", file.FileName)
	assert.Equal(t, []byte("%PDF-1.4"), file.Data)
}

func TestCreateInvoice_DuplicateNumberConflicts(t *testing.T) {
	env, ctx := newInvoiceEnv(t)

	_, err := env.invoices.CreateInvoice(ctx, invoiceRequest("INV-001"), nil)
	require.NoError(t, err)
	_, err = env.invoices.CreateInvoice(ctx, invoiceRequest("INV-001"), nil)
	assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))

	other, _ := env.registerCompany(t, "globex")
	env.seedMasterData(t, other)
	_, err = env.invoices.CreateInvoice(other, invoiceRequest("INV-001"), nil)
	assert.NoError(t, err, "invoice numbers are unique per company")
}

func TestCreateInvoice_ValidatesAccountTypes(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *CreateInvoiceRequest)
	}{
		{"unknown vendor", func(r *CreateInvoiceRequest) { r.Vendor = "Initech" }},
		{"payable account must be liability or equity", func(r *CreateInvoiceRequest) { r.PayableAccount = "Office Expenses" }},
		{"expense account must be expense or asset", func(r *CreateInvoiceRequest) { r.ExpenseAssetAccount = "Sales" }},
		{"unknown payable account", func(r *CreateInvoiceRequest) { r.PayableAccount = "Accruals" }},
		{"due before invoice date", func(r *CreateInvoiceRequest) { r.DueDate = "2026-03-01" }},
		{"bad date", func(r *CreateInvoiceRequest) { r.InvoiceDate = "01/04/2026" }},
		{"negative amount", func(r *CreateInvoiceRequest) { r.NonVatableAmount = dec("-1") }},
		{"rate above 100", func(r *CreateInvoiceRequest) { r.WhtRate = dec("101") }},
		{"bad currency", func(r *CreateInvoiceRequest) { r.Currency = "naira" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, ctx := newInvoiceEnv(t)
			req := invoiceRequest("INV-001")
			tt.mutate(&req)

			_, err := env.invoices.CreateInvoice(ctx, req, nil)
			assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
			assert.Zero(t, env.count(t, &model.Invoice{}))
		})
	}
}

func TestCreateInvoice_AccountsAreOptional(t *testing.T) {
	env, ctx := newInvoiceEnv(t)
	req := invoiceRequest("INV-002")
	req.PayableAccount = ""
	req.ExpenseAssetAccount = ""

	_, err := env.invoices.CreateInvoice(ctx, req, nil)
	assert.NoError(t, err)
}

func TestCreateInvoice_RequiresPermission(t *testing.T) {
	env, adminCtx := newInvoiceEnv(t)
	clerk := env.userCtx(t, adminCtx, "clerk", model.PermissionFlags{CreateVoucher: true})

	_, err := env.invoices.CreateInvoice(clerk, invoiceRequest("INV-001"), nil)
	assert.Equal(t, apperror.KindForbidden, apperror.KindOf(err))

	_, _, err = env.invoices.ListInvoices(clerk, InvoiceListFilter{})
	assert.NoError(t, err, "reads are open to every user of the company")
}

func TestUpdateAndDeleteInvoice_NotImplemented(t *testing.T) {
	env, ctx := newInvoiceEnv(t)
	res, err := env.invoices.CreateInvoice(ctx, invoiceRequest("INV-001"), nil)
	require.NoError(t, err)

	_, err = env.invoices.UpdateInvoice(ctx, res.ID, UpdateInvoiceRequest{CreateInvoiceRequest: invoiceRequest("INV-001")})
	assert.Equal(t, apperror.KindNotImplemented, apperror.KindOf(err))
	assert.Equal(t, apperror.KindNotImplemented, apperror.KindOf(env.invoices.DeleteInvoice(ctx, res.ID)))
	assert.EqualValues(t, 1, env.count(t, &model.Invoice{}))
}

func TestInvoiceSuggestions(t *testing.T) {
	env, ctx := newInvoiceEnv(t)

	s, err := env.invoices.Suggestions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Globex Ltd"}, s.Vendors)
	assert.Equal(t, []string{"Trade Payables"}, s.PayableAccounts)
	assert.Equal(t, []string{"Office Expenses"}, s.ExpenseAssetAccounts)
	assert.Empty(t, s.InvoiceNumbers)

	for _, n := range []string{"INV-002", "INV-001"} {
		_, err = env.invoices.CreateInvoice(ctx, invoiceRequest(n), nil)
		require.NoError(t, err)
	}
	s, err = env.invoices.Suggestions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"INV-001", "INV-002"}, s.InvoiceNumbers)
}

func TestListInvoices_TenantScoped(t *testing.T) {
	env, acme := newInvoiceEnv(t)
	globex, _ := env.registerCompany(t, "globex")
	env.seedMasterData(t, globex)

	a, err := env.invoices.CreateInvoice(acme, invoiceRequest("INV-001"), nil)
	require.NoError(t, err)
	_, err = env.invoices.CreateInvoice(globex, invoiceRequest("INV-900"), nil)
	require.NoError(t, err)

	list, total, err := env.invoices.ListInvoices(acme, InvoiceListFilter{Search: "inv"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, "INV-001", list[0].InvoiceNumber)

	_, err = env.invoices.GetInvoice(globex, a.ID)
	assert.Equal(t, apperror.KindForbidden, apperror.KindOf(err))
}
