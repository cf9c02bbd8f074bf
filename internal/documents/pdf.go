package documents

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/angelmondragon/fabshop-backend/pkg/db/models"
	"github.com/angelmondragon/fabshop-backend/pkg/enums"
)

// RenderMeta carries values stamped into a document.
type RenderMeta struct {
	GeneratedAt time.Time
	ExpiresAt   *time.Time
}

// Renderer produces the bytes of one document.
type Renderer interface {
	Render(order *models.Order, docType enums.DocumentType, meta RenderMeta) ([]byte, error)
}

// PDFRenderer lays out shop packets and quotes as letter-size PDFs. Output is
// deterministic for a given order and meta.
type PDFRenderer struct {
	CompanyName string
}

const (
	pageMargin = 15.0
	lineHeight = 6.0
)

func (r PDFRenderer) Render(order *models.Order, docType enums.DocumentType, meta RenderMeta) ([]byte, error) {
	if order == nil {
		return nil, fmt.Errorf("order is required")
	}

	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetCreationDate(meta.GeneratedAt)
	pdf.SetModificationDate(meta.GeneratedAt)
	pdf.SetCatalogSort(true)
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.SetCreator(r.company(), false)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 6, tr(fmt.Sprintf("Job %s  |  page %d", order.JobID, pdf.PageNo())), "", 0, "C", false, 0, "")
	})

	switch docType {
	case enums.DocumentTypeShopPacket:
		pdf.SetTitle("Shop packet "+order.JobID, true)
		r.shopPacket(pdf, tr, order, meta)
	case enums.DocumentTypeQuote:
		pdf.SetTitle("Quote "+order.JobID, true)
		r.quote(pdf, tr, order, meta)
	default:
		return nil, fmt.Errorf("unsupported document type %q", docType)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r PDFRenderer) company() string {
	if strings.TrimSpace(r.CompanyName) == "" {
		return "Fabrication Shop"
	}
	return r.CompanyName
}

func (r PDFRenderer) header(pdf *fpdf.Fpdf, tr func(string) string, title string, order *models.Order, meta RenderMeta) {
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr(r.company()+" - "+title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, lineHeight, tr("Job: "+order.JobID), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, lineHeight, "Generated: "+meta.GeneratedAt.UTC().Format("2006-01-02 15:04 MST"), "", 1, "L", false, 0, "")
	pdf.Ln(2)
}

func (r PDFRenderer) parties(pdf *fpdf.Fpdf, tr func(string) string, order *models.Order) {
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(90, lineHeight, "Customer", "", 0, "L", false, 0, "")
	pdf.CellFormat(0, lineHeight, "Ship to", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)

	left := []string{order.Customer.Name, order.Customer.Company, order.Customer.Email, order.Customer.Phone}
	addr := order.Address
	right := []string{addr.Street, strings.TrimSpace(fmt.Sprintf("%s, %s %s", addr.City, addr.StateCode(), addr.ZipCode())), addr.Country}
	left, right = compact(left), compact(right)
	for i := 0; i < len(left) || i < len(right); i++ {
		pdf.CellFormat(90, 5, tr(at(left, i)), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 5, tr(at(right, i)), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func (r PDFRenderer) shopPacket(pdf *fpdf.Fpdf, tr func(string) string, order *models.Order, meta RenderMeta) {
	r.header(pdf, tr, "Shop Packet", order, meta)
	r.parties(pdf, tr, order)

	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, lineHeight, tr("Shipping: "+string(order.ShippingMethod)), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	for i, item := range order.Items {
		pdf.SetFillColor(230, 230, 230)
		pdf.SetFont("Helvetica", "B", 11)
		title := fmt.Sprintf("Line %d: %s", i+1, item.Title)
		pdf.CellFormat(0, 7, tr(title), "1", 1, "L", true, 0, "")

		pdf.SetFont("Helvetica", "", 10)
		specRow(pdf, tr, "Product", string(item.ProductType))
		specRow(pdf, tr, "Quantity", fmt.Sprintf("%d", item.Quantity))
		specRow(pdf, tr, "Lead time", string(item.LeadTime))
		specRow(pdf, tr, "Custom fabrication", yesNo(item.IsCustomFabrication))
		specRow(pdf, tr, "Unit weight (lb)", item.WeightLbs.StringFixed(1))
		for _, line := range item.Lines {
			key, value, found := strings.Cut(line, ":")
			if !found {
				specRow(pdf, tr, "", line)
				continue
			}
			specRow(pdf, tr, strings.TrimSpace(key), strings.TrimSpace(value))
		}
		pdf.Ln(4)
	}
}

func (r PDFRenderer) quote(pdf *fpdf.Fpdf, tr func(string) string, order *models.Order, meta RenderMeta) {
	r.header(pdf, tr, "Quote", order, meta)
	if meta.ExpiresAt != nil {
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, lineHeight, "Valid until: "+meta.ExpiresAt.UTC().Format("2006-01-02"), "", 1, "L", false, 0, "")
		pdf.Ln(2)
	}
	r.parties(pdf, tr, order)

	widths := []float64{95, 20, 30, 40}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for i, heading := range []string{"Item", "Qty", "Unit", "Line total"} {
		align := "R"
		if i == 0 {
			align = "L"
		}
		pdf.CellFormat(widths[i], 7, heading, "1", 0, align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for _, item := range order.Items {
		title := item.Title
		if item.LeadTime == enums.LeadTimeRush {
			title += " (rush)"
		}
		pdf.CellFormat(widths[0], 7, tr(title), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 7, fmt.Sprintf("%d", item.Quantity), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[2], 7, "$"+item.UnitPrice.String(), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 7, "$"+item.LineTotal.String(), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(3)

	label := widths[0] + widths[1] + widths[2]
	totalRow := func(name, value string, bold bool) {
		style := ""
		if bold {
			style = "B"
		}
		pdf.SetFont("Helvetica", style, 10)
		pdf.CellFormat(label, 6, tr(name), "", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 6, value, "", 1, "R", false, 0, "")
	}
	totalRow("Subtotal", "$"+order.SubtotalCents.String(), false)
	totalRow(fmt.Sprintf("Shipping (%s)", order.ShippingMethod), "$"+order.ShippingCents.String(), false)
	taxLabel := "Tax"
	if order.TaxExempt {
		taxLabel = "Tax (exempt)"
	} else if order.TaxRate != "" {
		taxLabel = fmt.Sprintf("Tax (%s)", order.TaxRate)
	}
	totalRow(taxLabel, "$"+order.TaxCents.String(), false)
	totalRow("Total "+string(order.Currency), "$"+order.TotalCents.String(), true)
}

func specRow(pdf *fpdf.Fpdf, tr func(string) string, key, value string) {
	pdf.CellFormat(55, 6, tr(key), "1", 0, "L", false, 0, "")
	pdf.CellFormat(0, 6, tr(value), "1", 1, "L", false, 0, "")
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func compact(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" && v != "," {
			out = append(out, v)
		}
	}
	return out
}

func at(values []string, i int) string {
	if i < len(values) {
		return values[i]
	}
	return ""
}
