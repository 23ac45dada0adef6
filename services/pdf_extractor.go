package services

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"docugraph-backend/internal/logger"
	"docugraph-backend/models"
)

// PDFExtractorService pulls plain text out of PDF files page by page.
type PDFExtractorService struct{}

func NewPDFExtractorService() *PDFExtractorService {
	return &PDFExtractorService{}
}

// ExtractFromFile reads every page of the PDF at path. A page that fails to
// decode is counted and skipped rather than aborting the whole document.
func (s *PDFExtractorService) ExtractFromFile(path string) (string, models.ExtractionStats, error) {
	stats := models.ExtractionStats{}

	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", stats, fmt.Errorf("open PDF: %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	totalPages := reader.NumPage()

	for i := 1; i <= totalPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			stats.ExtractionErrors++
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			logger.Warn("failed to extract PDF page", "page", i, "error", err)
			stats.ExtractionErrors++
			continue
		}

		sb.WriteString(text)
		sb.WriteString("\n\n")
		stats.PagesProcessed++
	}

	return strings.TrimSpace(sb.String()), stats, nil
}
