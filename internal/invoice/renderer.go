// Package invoice draws ride invoices as PNG documents.
package invoice

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"

	"goride/internal/domain"
	"goride/internal/service"
)

const (
	pageWidth  = 800
	pageHeight = 1000
	margin     = 60.0
)

// Renderer implements service.InvoiceRenderer.
type Renderer struct {
	company  string
	currency string

	once    sync.Once
	fontErr error
	regular *truetype.Font
	bold    *truetype.Font
}

// Ensure Renderer implements service.InvoiceRenderer.
var _ service.InvoiceRenderer = (*Renderer)(nil)

// NewRenderer creates an invoice renderer that prints company in the header.
func NewRenderer(company, currency string) *Renderer {
	if company == "" {
		company = "GoRide"
	}
	if currency == "" {
		currency = "BDT"
	}
	return &Renderer{company: company, currency: currency}
}

// ContentType of rendered documents.
func (r *Renderer) ContentType() string { return "image/png" }

// Extension of rendered documents.
func (r *Renderer) Extension() string { return ".png" }

// Render draws the invoice and returns the encoded PNG.
func (r *Renderer) Render(data domain.InvoiceData) ([]byte, error) {
	if err := r.loadFonts(); err != nil {
		return nil, err
	}

	dc := gg.NewContext(pageWidth, pageHeight)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	// Header band.
	dc.SetRGB(0.11, 0.27, 0.53)
	dc.DrawRectangle(0, 0, pageWidth, 130)
	dc.Fill()

	dc.SetRGB(1, 1, 1)
	dc.SetFontFace(r.face(r.bold, 34))
	dc.DrawString(r.company, margin, 75)
	dc.SetFontFace(r.face(r.regular, 18))
	dc.DrawStringAnchored("RIDE INVOICE", pageWidth-margin, 75, 1, 0)

	y := 190.0
	dc.SetRGB(0.15, 0.15, 0.15)
	rows := []struct{ label, value string }{
		{"Transaction ID", data.TransactionID},
		{"Ride Date", data.RideDate.Format("Jan 02, 2006 3:04 PM")},
		{"Rider", data.RiderName},
		{"Email", data.RiderEmail},
		{"Pickup", data.PickupLocation},
		{"Destination", data.DestinationLocation},
		{"Payment Method", string(data.PaymentMethod)},
	}
	for _, row := range rows {
		dc.SetFontFace(r.face(r.bold, 16))
		dc.DrawString(row.label, margin, y)
		dc.SetFontFace(r.face(r.regular, 16))
		dc.DrawStringWrapped(row.value, 260, y-16, 0, 0, pageWidth-260-margin, 1.4, gg.AlignLeft)
		y += 52
	}

	dc.SetRGB(0.8, 0.8, 0.8)
	dc.SetLineWidth(1)
	dc.DrawLine(margin, y, pageWidth-margin, y)
	dc.Stroke()

	y += 50
	dc.SetRGB(0.11, 0.27, 0.53)
	dc.SetFontFace(r.face(r.bold, 24))
	dc.DrawString("Total Paid", margin, y)
	dc.DrawStringAnchored(fmt.Sprintf("%s %s", r.currency, data.Fare.StringFixed(2)), pageWidth-margin, y, 1, 0)

	dc.SetRGB(0.45, 0.45, 0.45)
	dc.SetFontFace(r.face(r.regular, 14))
	dc.DrawStringAnchored("Thank you for riding with us!", pageWidth/2, pageHeight-60, 0.5, 0)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode invoice: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) loadFonts() error {
	r.once.Do(func() {
		if r.regular, r.fontErr = truetype.Parse(goregular.TTF); r.fontErr != nil {
			return
		}
		r.bold, r.fontErr = truetype.Parse(gobold.TTF)
	})
	if r.fontErr != nil {
		return fmt.Errorf("load invoice fonts: %w", r.fontErr)
	}
	return nil
}

func (r *Renderer) face(f *truetype.Font, size float64) font.Face {
	return truetype.NewFace(f, &truetype.Options{Size: size})
}
