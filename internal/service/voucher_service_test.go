package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"voucherpro/internal/model"
	"voucherpro/internal/websocket"
	"voucherpro/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 5, 14, 10, 30, 0, 0, time.UTC)

func newVoucherEnv(t *testing.T) (*testEnv, context.Context) {
	t.Helper()
	env := newTestEnv(t)
	env.vouchers.(*voucherService).now = func() time.Time { return fixedNow }
	ctx, _ := env.registerCompany(t, "acme")
	env.seedMasterData(t, ctx)
	return env, ctx
}

func twoLines() []VoucherLineRequest {
	return []VoucherLineRequest{
		{Description: "Printer paper", AccountName: "Office Expenses", Amount: dec("100"), VatPercent: dec("5")},
		{Description: "Courier", AccountName: "Office Expenses", Amount: dec("200")},
	}
}

func TestCreateVoucher(t *testing.T) {
	env, ctx := newVoucherEnv(t)

	res, err := env.vouchers.CreateVoucher(ctx, voucherRequest(twoLines()...), nil)
	require.NoError(t, err)

	assert.Equal(t, "VCH-2026-0001", res.VoucherNumber)
	assert.Equal(t, model.VoucherDraft, res.Status)
	assert.Equal(t, model.DefaultCurrency, res.Currency)
	assert.Equal(t, "admin", res.CreatedBy)
	require.Len(t, res.Lines, 2)
	assert.Equal(t, "5.00", res.Lines[0].VatValue)
	assert.Equal(t, "105.00", res.Lines[0].Total)
	assert.Equal(t, "200.00", res.Lines[1].Total)
	assert.Equal(t, "305.00", res.TotalPayable)

	assert.EqualValues(t, 1, env.countAudit(t, model.ActionCreateVoucher))
	assert.Equal(t, []string{websocket.EventVoucherCreated}, env.events.Types())

	second, err := env.vouchers.CreateVoucher(ctx, voucherRequest(twoLines()...), nil)
	require.NoError(t, err)
	assert.Equal(t, "VCH-2026-0002", second.VoucherNumber)
}

func TestCreateVoucher_ExplicitNumber(t *testing.T) {
	env, ctx := newVoucherEnv(t)

	req := voucherRequest(twoLines()...)
	req.VoucherNumber = "pv-77"
	res, err := env.vouchers.CreateVoucher(ctx, req, nil)
	require.NoError(t, err)
	assert.Equal(t, "PV-77", res.VoucherNumber)

	_, err = env.vouchers.CreateVoucher(ctx, req, nil)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
	assert.EqualValues(t, 1, env.count(t, &model.Voucher{}))
}

func TestCreateVoucher_RejectsUnknownReferences(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *CreateVoucherRequest)
	}{
		{"unknown vendor", func(r *CreateVoucherRequest) { r.Vendor = "Initech" }},
		{"unknown requester", func(r *CreateVoucherRequest) { r.Requester = "John Smith" }},
		{"unknown line account", func(r *CreateVoucherRequest) { r.Lines[0].AccountName = "Travel" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, ctx := newVoucherEnv(t)
			req := voucherRequest(twoLines()...)
			tt.mutate(&req)

			_, err := env.vouchers.CreateVoucher(ctx, req, nil)
			assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
			assert.Zero(t, env.count(t, &model.Voucher{}))
			assert.Zero(t, env.count(t, &model.VoucherLine{}))
			assert.Zero(t, env.countAudit(t, model.ActionCreateVoucher))
			assert.Empty(t, env.events.Types())
		})
	}
}

func TestCreateVoucher_LineValidation(t *testing.T) {
	env, ctx := newVoucherEnv(t)

	_, err := env.vouchers.CreateVoucher(ctx, voucherRequest(), nil)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	_, err = env.vouchers.CreateVoucher(ctx, voucherRequest(VoucherLineRequest{Amount: dec("0")}), nil)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	_, err = env.vouchers.CreateVoucher(ctx, voucherRequest(VoucherLineRequest{Amount: dec("-5")}), nil)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	_, err = env.vouchers.CreateVoucher(ctx, voucherRequest(VoucherLineRequest{Amount: dec("10"), VatPercent: dec("150")}), nil)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	assert.Zero(t, env.count(t, &model.Voucher{}))
}

func TestCreateVoucher_RequiresPermission(t *testing.T) {
	env, adminCtx := newVoucherEnv(t)
	viewer := env.userCtx(t, adminCtx, "viewer", model.PermissionFlags{})

	_, err := env.vouchers.CreateVoucher(viewer, voucherRequest(twoLines()...), nil)
	assert.Equal(t, apperror.KindForbidden, apperror.KindOf(err))

	_, err = env.vouchers.CreateVoucher(context.Background(), voucherRequest(twoLines()...), nil)
	assert.Equal(t, apperror.KindUnauthorized, apperror.KindOf(err))
}

func TestVoucherNumbering_IsPerCompany(t *testing.T) {
	env, acme := newVoucherEnv(t)
	globex, _ := env.registerCompany(t, "globex")
	env.seedMasterData(t, globex)

	a, err := env.vouchers.CreateVoucher(acme, voucherRequest(twoLines()...), nil)
	require.NoError(t, err)
	b, err := env.vouchers.CreateVoucher(globex, voucherRequest(twoLines()...), nil)
	require.NoError(t, err)

	assert.Equal(t, "VCH-2026-0001", a.VoucherNumber)
	assert.Equal(t, "VCH-2026-0001", b.VoucherNumber)

	_, err = env.vouchers.GetVoucher(globex, a.ID)
	assert.Equal(t, apperror.KindForbidden, apperror.KindOf(err))
	_, err = env.vouchers.UpdateVoucherStatus(globex, a.ID, model.VoucherSubmitted)
	assert.Equal(t, apperror.KindForbidden, apperror.KindOf(err))
	assert.Equal(t, apperror.KindForbidden, apperror.KindOf(env.vouchers.DeleteVoucher(globex, a.ID)))

	list, total, err := env.vouchers.ListVouchers(globex, VoucherListFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, b.ID, list[0].ID)
}

func TestUpdateVoucherStatus_Workflow(t *testing.T) {
	env, ctx := newVoucherEnv(t)
	v, err := env.vouchers.CreateVoucher(ctx, voucherRequest(twoLines()...), nil)
	require.NoError(t, err)

	_, err = env.vouchers.UpdateVoucherStatus(ctx, v.ID, model.VoucherApproved)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err), "draft cannot jump to approved")

	submitted, err := env.vouchers.UpdateVoucherStatus(ctx, v.ID, "Submitted")
	require.NoError(t, err)
	assert.Equal(t, model.VoucherSubmitted, submitted.Status)
	assert.Nil(t, submitted.ApprovedBy)

	approved, err := env.vouchers.UpdateVoucherStatus(ctx, v.ID, model.VoucherApproved)
	require.NoError(t, err)
	assert.Equal(t, model.VoucherApproved, approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	require.NotNil(t, approved.ApprovedAt)

	_, err = env.vouchers.UpdateVoucherStatus(ctx, v.ID, model.VoucherRejected)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err), "approved is terminal")

	assert.EqualValues(t, 2, env.countAudit(t, model.ActionChangeVoucherStatus))
	assert.Equal(t, []string{
		websocket.EventVoucherCreated,
		websocket.EventVoucherStatusChanged,
		websocket.EventVoucherStatusChanged,
	}, env.events.Types())
}

func TestUpdateVoucherStatus_InvalidStatusChangesNothing(t *testing.T) {
	env, ctx := newVoucherEnv(t)
	v, err := env.vouchers.CreateVoucher(ctx, voucherRequest(twoLines()...), nil)
	require.NoError(t, err)

	_, err = env.vouchers.UpdateVoucherStatus(ctx, v.ID, "paid")
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	got, err := env.vouchers.GetVoucher(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, model.VoucherDraft, got.Status)
	assert.Zero(t, env.countAudit(t, model.ActionChangeVoucherStatus))
}

func TestUpdateVoucherStatus_ApprovalNeedsPermission(t *testing.T) {
	env, adminCtx := newVoucherEnv(t)
	clerk := env.userCtx(t, adminCtx, "clerk", model.PermissionFlags{CreateVoucher: true})
	approver := env.userCtx(t, adminCtx, "approver", model.PermissionFlags{ApproveVoucher: true})
	viewer := env.userCtx(t, adminCtx, "viewer", model.PermissionFlags{})

	v, err := env.vouchers.CreateVoucher(clerk, voucherRequest(twoLines()...), nil)
	require.NoError(t, err)

	_, err = env.vouchers.UpdateVoucherStatus(viewer, v.ID, model.VoucherSubmitted)
	assert.Equal(t, apperror.KindForbidden, apperror.KindOf(err))

	_, err = env.vouchers.UpdateVoucherStatus(clerk, v.ID, model.VoucherSubmitted)
	require.NoError(t, err)

	_, err = env.vouchers.UpdateVoucherStatus(clerk, v.ID, model.VoucherApproved)
	assert.Equal(t, apperror.KindForbidden, apperror.KindOf(err))

	approved, err := env.vouchers.UpdateVoucherStatus(approver, v.ID, model.VoucherApproved)
	require.NoError(t, err)
	assert.Equal(t, model.VoucherApproved, approved.Status)
}

func TestUpdateVoucher_OnlyDrafts(t *testing.T) {
	env, ctx := newVoucherEnv(t)
	v, err := env.vouchers.CreateVoucher(ctx, voucherRequest(twoLines()...), nil)
	require.NoError(t, err)

	updated, err := env.vouchers.UpdateVoucher(ctx, v.ID, UpdateVoucherRequest{
		Vendor:      "Globex Ltd",
		Requester:   "Jane Doe",
		Description: "Revised",
		Lines:       []VoucherLineRequest{{Description: "Toner", AccountName: "Office Expenses", Amount: dec("50"), WhtPercent: dec("10")}},
	}, &Attachment{FileName: "quote.pdf", Data: []byte("%PDF-1.4")})
	require.NoError(t, err)
	assert.Equal(t, "Revised", updated.Description)
	assert.True(t, updated.HasAttachment)
	require.Len(t, updated.Lines, 1)
	assert.Equal(t, "45.00", updated.TotalPayable)

	lines, err := env.vouchers.ListVoucherLines(ctx, v.ID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "5.00", lines[0].WhtValue)

	_, err = env.vouchers.UpdateVoucherStatus(ctx, v.ID, model.VoucherSubmitted)
	require.NoError(t, err)

	_, err = env.vouchers.UpdateVoucher(ctx, v.ID, UpdateVoucherRequest{Vendor: "Globex Ltd", Requester: "Jane Doe"}, nil)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(env.vouchers.DeleteVoucher(ctx, v.ID)))
}

func TestDeleteVoucher(t *testing.T) {
	env, ctx := newVoucherEnv(t)
	v, err := env.vouchers.CreateVoucher(ctx, voucherRequest(twoLines()...), nil)
	require.NoError(t, err)

	require.NoError(t, env.vouchers.DeleteVoucher(ctx, v.ID))
	assert.Zero(t, env.count(t, &model.Voucher{}))
	assert.Zero(t, env.count(t, &model.VoucherLine{}))
	assert.EqualValues(t, 1, env.countAudit(t, model.ActionDeleteVoucher))

	_, err = env.vouchers.GetVoucher(ctx, v.ID)
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
}

func TestGetVoucherDocument(t *testing.T) {
	env, ctx := newVoucherEnv(t)
	v, err := env.vouchers.CreateVoucher(ctx, voucherRequest(twoLines()...), &Attachment{FileName: "receipt.png", Data: []byte{0x89, 'P', 'N', 'G'}})
	require.NoError(t, err)

	doc, err := env.vouchers.GetVoucherDocument(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, "Company acme", doc.Company.Name)
	assert.Equal(t, v.VoucherNumber, doc.Voucher.VoucherNumber)
	assert.Len(t, doc.Voucher.Lines, 2)
	assert.Equal(t, "receipt.png", doc.Voucher.FileName)
	assert.NotEmpty(t, doc.Voucher.FileData)
}

func TestListVouchers_Filters(t *testing.T) {
	env, ctx := newVoucherEnv(t)
	for i := 0; i < 3; i++ {
		req := voucherRequest(twoLines()...)
		req.Description = fmt.Sprintf("batch %d", i)
		_, err := env.vouchers.CreateVoucher(ctx, req, nil)
		require.NoError(t, err)
	}
	first, _, err := env.vouchers.ListVouchers(ctx, VoucherListFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, first, 1)
	_, err = env.vouchers.UpdateVoucherStatus(ctx, first[0].ID, model.VoucherSubmitted)
	require.NoError(t, err)

	submitted, total, err := env.vouchers.ListVouchers(ctx, VoucherListFilter{Status: model.VoucherSubmitted})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, submitted, 1)

	_, _, err = env.vouchers.ListVouchers(ctx, VoucherListFilter{Status: "archived"})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
}

func TestCreateVoucher_AuditFailureDoesNotBlock(t *testing.T) {
	env, ctx := newVoucherEnv(t)
	require.NoError(t, env.db.Migrator().DropTable(&model.AuditLog{}))

	res, err := env.vouchers.CreateVoucher(ctx, voucherRequest(twoLines()...), nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, env.count(t, &model.Voucher{}))

	warnings := env.logs.FilterMessage("audit write failed, continuing degraded").All()
	require.Len(t, warnings, 1)
	assert.Equal(t, model.ActionCreateVoucher, warnings[0].ContextMap()["action"])
	assert.Equal(t, res.ID, warnings[0].ContextMap()["entity_ref"])
}

func TestListVouchers_ReportsLineTotals(t *testing.T) {
	env, ctx := newVoucherEnv(t)
	_, err := env.vouchers.CreateVoucher(ctx, voucherRequest(twoLines()...), nil)
	require.NoError(t, err)

	list, _, err := env.vouchers.ListVouchers(ctx, VoucherListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "300.00", list[0].TotalAmount)
	assert.Equal(t, "5.00", list[0].TotalVat)
	assert.Equal(t, "0.00", list[0].TotalWht)
	assert.Equal(t, "305.00", list[0].TotalPayable)
	assert.Empty(t, list[0].Lines, "list rows carry totals, not lines")
}

func TestCreateVoucher_LineInsertFailureRollsBack(t *testing.T) {
	env, ctx := newVoucherEnv(t)
	require.NoError(t, env.db.Exec(`CREATE TRIGGER reject_voucher_lines BEFORE INSERT ON voucher_lines
		BEGIN SELECT RAISE(ABORT, 'line store unavailable'); END`).Error)

	_, err := env.vouchers.CreateVoucher(ctx, voucherRequest(twoLines()...), nil)
	require.Error(t, err)
	assert.Equal(t, apperror.KindInternal, apperror.KindOf(err))

	assert.Zero(t, env.count(t, &model.Voucher{}))
	assert.Zero(t, env.count(t, &model.VoucherLine{}))
	assert.Zero(t, env.countAudit(t, model.ActionCreateVoucher))
	assert.Empty(t, env.events.Types())
}

func TestCreateVoucher_NumberTooLong(t *testing.T) {
	env, ctx := newVoucherEnv(t)

	req := voucherRequest(twoLines()...)
	req.VoucherNumber = strings.Repeat("9", maxVoucherNumberLen+1)
	_, err := env.vouchers.CreateVoucher(ctx, req, nil)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	req.VoucherNumber = strings.Repeat("9", maxVoucherNumberLen)
	_, err = env.vouchers.CreateVoucher(ctx, req, nil)
	assert.NoError(t, err)
}
