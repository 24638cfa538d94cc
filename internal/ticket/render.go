package ticket

import (
	"bytes"
	"fmt"

	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"
)

const DefaultQRSize = 256

// QRCode encodes the payload as a PNG image.
func QRCode(payload string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultQRSize
	}
	png, err := qrcode.Encode(payload, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("failed to encode qr code: %w", err)
	}
	return png, nil
}

// Sheet is the printable view of a ticket.
type Sheet struct {
	Payload    Payload
	Raw        string
	Gender     string
	Speciality string
	Status     string
}

// PDF renders a one-page A4 ticket with the QR code on the right.
func PDF(s Sheet) ([]byte, error) {
	qrPNG, err := QRCode(s.Raw, DefaultQRSize)
	if err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, "Appointment Ticket")
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 12)
	lines := []string{
		fmt.Sprintf("Serial Number: %d", s.Payload.SerialNumber),
		fmt.Sprintf("Patient: %s", s.Payload.PatientName),
		fmt.Sprintf("Doctor: %s", s.Payload.DoctorName),
		fmt.Sprintf("Date: %s", s.Payload.AppointmentDate),
		fmt.Sprintf("Appointment ID: %s", s.Payload.AppointmentID),
	}
	if s.Speciality != "" {
		lines = append(lines, fmt.Sprintf("Speciality: %s", s.Speciality))
	}
	if s.Gender != "" {
		lines = append(lines, fmt.Sprintf("Gender: %s", s.Gender))
	}
	if s.Status != "" {
		lines = append(lines, fmt.Sprintf("Status: %s", s.Status))
	}
	for _, line := range lines {
		pdf.Cell(0, 10, line)
		pdf.Ln(8)
	}

	imageOpts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", imageOpts, bytes.NewReader(qrPNG))
	pdf.ImageOptions("qr", 150, 30, 45, 45, false, imageOpts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render ticket pdf: %w", err)
	}
	return buf.Bytes(), nil
}
