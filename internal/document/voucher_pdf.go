// Package document renders printable voucher documents.
package document

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	"voucherpro/internal/finance"
	"voucherpro/internal/model"

	"github.com/disintegration/imaging"
	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
)

// TableRows is the minimum number of rows in the line table; short vouchers are padded with blank rows.
const TableRows = 10

const (
	pageMargin   = 10.0
	rowHeight    = 6.0
	defaultTitle = "EFT/CHEQUE/CASH REQUISITION"
)

var lineColumns = []struct {
	title string
	width float64
	align string
}{
	{"DESCRIPTION", 102, "L"},
	{"ACCOUNT", 55, "L"},
	{"AMOUNT", 35, "R"},
	{"VAT %", 20, "R"},
	{"WHT %", 20, "R"},
	{"TOTAL", 45, "R"},
}

// VoucherPDF renders voucher on A4 landscape: the company header, the voucher details, the line table,
// the payable amount in words and a signature block. An image attachment is scaled onto a page of its own.
func VoucherPDF(company model.Company, voucher model.Voucher, lines []model.VoucherLine) ([]byte, error) {
	pdf, err := render(company, voucher, lines)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("document: write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func render(company model.Company, voucher model.Voucher, lines []model.VoucherLine) (*fpdf.Fpdf, error) {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.SetTitle(fmt.Sprintf("Voucher %s", voucher.VoucherNumber), true)
	pdf.SetCreator("VoucherPro", true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	text := func(s string) string {
		return tr(strings.ReplaceAll(s, "₦", "NGN "))
	}

	pdf.AddPage()
	writeHeader(pdf, text, company, voucher)

	var sumAmount, sumTotal decimal.Decimal
	for _, l := range lines {
		sumAmount = sumAmount.Add(l.Amount)
		sumTotal = sumTotal.Add(l.Total)
	}
	writeDetails(pdf, text, voucher, sumTotal)
	writeLines(pdf, text, lines, sumAmount, sumTotal)

	pdf.Ln(3)
	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(52, 6, "Payable amount (in words):", "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.MultiCell(0, 6, text(finance.AmountInWords(sumTotal, voucher.Currency)), "", "L", false)
	if voucher.FileName != "" {
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 5, text("Attachment: "+voucher.FileName), "", 1, "L", false, 0, "")
	}
	pdf.Ln(3)

	writeSignatures(pdf, text, company, voucher)

	if len(voucher.FileData) > 0 {
		if err := appendAttachment(pdf, text, voucher.FileName, voucher.FileData); err != nil {
			return nil, err
		}
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("document: render pdf: %w", err)
	}
	return pdf, nil
}

func writeHeader(pdf *fpdf.Fpdf, text func(string) string, company model.Company, voucher model.Voucher) {
	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 2*pageMargin
	leftW := contentW * 0.58
	top := pdf.GetY()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.MultiCell(leftW, 7, text(company.Name), "", "L", false)
	leftBottom := pdf.GetY()

	var right []string
	if company.RCNumber != "" {
		right = append(right, "RC: "+company.RCNumber)
	}
	if company.TIN != "" {
		right = append(right, "TIN: "+company.TIN)
	}
	for _, l := range strings.Split(company.Address, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			right = append(right, l)
		}
	}
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetXY(pageMargin+leftW, top)
	for _, l := range right {
		pdf.SetX(pageMargin + leftW)
		pdf.CellFormat(contentW-leftW, 4.5, text(l), "", 2, "R", false, 0, "")
	}
	if pdf.GetY() < leftBottom {
		pdf.SetY(leftBottom)
	}
	pdf.SetX(pageMargin)
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 7, defaultTitle, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(22, 5, "VOUCHER NO:", "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(0, 5, text(voucher.VoucherNumber), "", 1, "L", false, 0, "")
	pdf.Ln(2)
}

func writeDetails(pdf *fpdf.Fpdf, text func(string) string, voucher model.Voucher, total decimal.Decimal) {
	pdf.SetFillColor(245, 245, 245)
	labelW, valueW := 34.0, 104.5
	row := func(l1, v1, l2, v2 string) {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(labelW, rowHeight, l1, "1", 0, "L", true, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		pdf.CellFormat(valueW, rowHeight, text(v1), "1", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(labelW, rowHeight, l2, "1", 0, "L", true, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		pdf.CellFormat(valueW, rowHeight, text(v2), "1", 1, "L", false, 0, "")
	}

	row("DATE", voucher.CreatedAt.Format("02 Jan 2006"), "AMOUNT", voucher.Currency+" "+FormatMoney(total))
	row("REQUESTED BY", voucher.Requester, "STATUS", strings.ToUpper(voucher.Status))
	row("PAYABLE TO", voucher.Vendor, "INVOICE REF", voucher.InvoiceRef)
	row("CURRENCY", voucher.Currency, "BANK DETAILS", oneLine(voucher.BankDetails))
	if voucher.Description != "" {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(labelW, rowHeight, "DESCRIPTION", "1", 0, "L", true, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		pdf.CellFormat(2*valueW+labelW, rowHeight, text(oneLine(voucher.Description)), "1", 1, "L", false, 0, "")
	}
	pdf.Ln(3)
}

func writeLines(pdf *fpdf.Fpdf, text func(string) string, lines []model.VoucherLine, sumAmount, sumTotal decimal.Decimal) {
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(211, 211, 211)
	for _, c := range lineColumns {
		pdf.CellFormat(c.width, rowHeight, c.title, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, l := range lines {
		values := []string{
			fit(pdf, text(l.Description), lineColumns[0].width),
			fit(pdf, text(l.AccountName), lineColumns[1].width),
			FormatMoney(l.Amount),
			l.VatPercent.String(),
			l.WhtPercent.String(),
			FormatMoney(l.Total),
		}
		for i, c := range lineColumns {
			pdf.CellFormat(c.width, rowHeight, values[i], "1", 0, c.align, false, 0, "")
		}
		pdf.Ln(-1)
	}
	for i := len(lines); i < TableRows; i++ {
		for _, c := range lineColumns {
			pdf.CellFormat(c.width, rowHeight, "", "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(lineColumns[0].width+lineColumns[1].width, rowHeight, "TOTALS", "1", 0, "R", false, 0, "")
	pdf.CellFormat(lineColumns[2].width, rowHeight, FormatMoney(sumAmount), "1", 0, "R", false, 0, "")
	pdf.CellFormat(lineColumns[3].width+lineColumns[4].width, rowHeight, "", "1", 0, "R", false, 0, "")
	pdf.CellFormat(lineColumns[5].width, rowHeight, FormatMoney(sumTotal), "1", 1, "R", false, 0, "")
}

func writeSignatures(pdf *fpdf.Fpdf, text func(string) string, company model.Company, voucher model.Voucher) {
	widths := []float64{45, 120, 45, 67}
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(245, 245, 245)
	for i, h := range []string{"ACTIVITY", "NAME", "DATE", "SIGNATURE"} {
		pdf.CellFormat(widths[i], rowHeight, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	date := voucher.CreatedAt.Format("02 Jan 2006")
	approvedDate := ""
	if voucher.ApprovedAt != nil {
		approvedDate = voucher.ApprovedAt.Format("02 Jan 2006")
	}
	rows := [][3]string{
		{"Requested by", voucher.Requester, date},
		{"Authorised by", company.AuthorizerName, ""},
		{"Approved by", company.ApproverName, approvedDate},
	}
	pdf.SetFont("Helvetica", "", 9)
	for _, r := range rows {
		pdf.CellFormat(widths[0], 9, r[0], "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 9, text(r[1]), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[2], 9, r[2], "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[3], 9, "", "1", 1, "L", false, 0, "")
	}
}

// appendAttachment scales an image attachment to the printable area of a new page.
// Attachments that are not images are only named on the first page.
func appendAttachment(pdf *fpdf.Fpdf, text func(string) string, name string, data []byte) error {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil
	}

	pageW, pageH := pdf.GetPageSize()
	maxW := pageW - 2*pageMargin
	maxH := pageH - 2*pageMargin - 8

	// 150 dpi is plenty for print and keeps the document small.
	const pxPerMM = 150 / 25.4
	fitted := imaging.Fit(img, int(maxW*pxPerMM), int(maxH*pxPerMM), imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, fitted, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return fmt.Errorf("document: encode attachment: %w", err)
	}

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(0, 6, text("Attachment: "+name), "", 1, "L", false, 0, "")

	opts := fpdf.ImageOptions{ImageType: "JPG", ReadDpi: false}
	key := "attachment-" + name
	pdf.RegisterImageOptionsReader(key, opts, &buf)

	w, h := displaySize(fitted.Bounds(), maxW, maxH)
	x := pageMargin + (maxW-w)/2
	pdf.ImageOptions(key, x, pdf.GetY()+2, w, h, false, opts, 0, "")
	return nil
}

// displaySize keeps the aspect ratio of b inside maxW x maxH millimetres.
func displaySize(b image.Rectangle, maxW, maxH float64) (float64, float64) {
	iw, ih := float64(b.Dx()), float64(b.Dy())
	if iw <= 0 || ih <= 0 {
		return maxW, maxH
	}
	scale := maxW / iw
	if s := maxH / ih; s < scale {
		scale = s
	}
	return iw * scale, ih * scale
}

// FormatMoney renders d with two decimals and thousands separators.
func FormatMoney(d decimal.Decimal) string {
	s := d.Abs().StringFixed(2)
	intPart, frac := s[:len(s)-3], s[len(s)-3:]
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + frac
	if d.IsNegative() {
		return "-" + out
	}
	return out
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// fit truncates s with an ellipsis so it fits a cell of width w.
func fit(pdf *fpdf.Fpdf, s string, w float64) string {
	limit := w - 2
	if pdf.GetStringWidth(s) <= limit {
		return s
	}
	for len(s) > 0 && pdf.GetStringWidth(s+"...") > limit {
		s = s[:len(s)-1]
	}
	return s + "..."
}
