package pdf

import (
	"bytes"
	"encoding/base64"

	"github.com/go-pdf/fpdf"
	"github.com/skybi/verisuite/internal/document"
	"github.com/skybi/verisuite/internal/verifier"
)

// Renderer implements the document.Renderer interface using go-pdf/fpdf
type Renderer struct{}

var _ document.Renderer = (*Renderer)(nil)

// New creates a new PDF renderer
func New() *Renderer {
	return &Renderer{}
}

// Render produces a PDF document listing the fields of the given verification result
func (renderer *Renderer) Render(result *verifier.Result, subjectID string) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.AddPage()

	doc.SetFont("Helvetica", "B", 16)
	doc.CellFormat(0, 12, "Verification Result", "", 1, "C", false, 0, "")
	doc.Ln(4)

	valid := "No"
	if result.Valid() {
		valid = "Yes"
	}
	rows := [][2]string{
		{"Aadhaar Number", subjectID},
		{"Name", result.Name},
		{"Guardian's Name", result.CareOf},
		{"Reference ID", result.ReferenceID},
		{"Gender", result.Gender},
		{"DOB", result.DateOfBirth},
		{"Email", result.Email},
		{"Valid", valid},
		{"Message", result.Message},
		{"Address", result.Address},
	}
	for _, row := range rows {
		doc.SetFont("Helvetica", "B", 11)
		doc.CellFormat(50, 8, row[0], "1", 0, "L", false, 0, "")
		doc.SetFont("Helvetica", "", 11)
		doc.MultiCell(0, 8, row[1], "1", "L", false)
	}

	if result.Photo != "" {
		photo, err := base64.StdEncoding.DecodeString(result.Photo)
		if err == nil {
			doc.Ln(6)
			doc.RegisterImageOptionsReader("photo", fpdf.ImageOptions{ImageType: "JPEG"}, bytes.NewReader(photo))
			doc.ImageOptions("photo", doc.GetX(), doc.GetY(), 40, 0, true, fpdf.ImageOptions{ImageType: "JPEG"}, 0, "")
		}
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
