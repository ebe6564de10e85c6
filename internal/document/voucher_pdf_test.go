package document

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"voucherpro/internal/finance"
	"voucherpro/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleVoucher(n int) (model.Company, model.Voucher, []model.VoucherLine) {
	company := model.Company{
		ID:             uuid.New(),
		Name:           "Acme Nigeria Ltd",
		Code:           "acme",
		RCNumber:       "RC123456",
		TIN:            "TIN-0099",
		Address:        "12 Marina Road\nLagos",
		AuthorizerName: "Ada Obi",
		ApproverName:   "Tunde Bello",
	}
	voucher := model.Voucher{
		ID:            uuid.New(),
		CompanyID:     company.ID,
		VoucherNumber: "VCH-2026-0001",
		Vendor:        "Paper Supplies Co",
		Requester:     "Chidi Okafor",
		InvoiceRef:    "INV-77",
		Currency:      "NGN",
		BankDetails:   "GTBank 0123456789",
		Status:        model.VoucherDraft,
		CreatedAt:     time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC),
	}
	lines := make([]model.VoucherLine, 0, n)
	for i := 0; i < n; i++ {
		t := finance.LineTotals(decimal.NewFromInt(100), decimal.NewFromInt(5), decimal.Zero)
		lines = append(lines, model.VoucherLine{
			LineNo:      i + 1,
			Description: "Printer paper, a very long description that should be cut to fit the column width of the table",
			AccountName: "Office Supplies",
			Amount:      decimal.NewFromInt(100),
			VatPercent:  decimal.NewFromInt(5),
			WhtPercent:  decimal.Zero,
			VatValue:    t.Vat,
			WhtValue:    t.Wht,
			Total:       t.Total,
		})
	}
	return company, voucher, lines
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestVoucherPDF_ProducesPDF(t *testing.T) {
	company, voucher, lines := sampleVoucher(2)

	data, err := VoucherPDF(company, voucher, lines)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestVoucherPDF_MoreLinesThanTableRows(t *testing.T) {
	company, voucher, lines := sampleVoucher(TableRows + 3)

	data, err := VoucherPDF(company, voucher, lines)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestVoucherPDF_ImageAttachmentAddsPage(t *testing.T) {
	company, voucher, lines := sampleVoucher(1)
	plain, err := render(company, voucher, lines)
	require.NoError(t, err)

	voucher.FileName = "receipt.png"
	voucher.FileData = pngBytes(t, 64, 48)
	withImage, err := render(company, voucher, lines)
	require.NoError(t, err)

	assert.Equal(t, plain.PageCount()+1, withImage.PageCount())
}

func TestVoucherPDF_NonImageAttachmentIsOnlyNamed(t *testing.T) {
	company, voucher, lines := sampleVoucher(1)
	plain, err := render(company, voucher, lines)
	require.NoError(t, err)

	voucher.FileName = "scan.pdf"
	voucher.FileData = []byte("%PDF-1.4 not an image")
	named, err := render(company, voucher, lines)
	require.NoError(t, err)

	assert.Equal(t, plain.PageCount(), named.PageCount())
}

func TestFormatMoney(t *testing.T) {
	cases := map[string]string{
		"0":          "0.00",
		"305":        "305.00",
		"1025.5":     "1,025.50",
		"1234567.89": "1,234,567.89",
		"-4500":      "-4,500.00",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatMoney(decimal.RequireFromString(in)), in)
	}
}

func TestDisplaySizeKeepsAspectRatio(t *testing.T) {
	w, h := displaySize(image.Rect(0, 0, 400, 200), 100, 100)
	assert.InDelta(t, 100, w, 0.001)
	assert.InDelta(t, 50, h, 0.001)
}
