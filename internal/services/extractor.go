package services

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/nexconsult/pan-api/internal/models"
	"github.com/sirupsen/logrus"
)

// ResultMarker is the label whose presence identifies a result page
const ResultMarker = "Office"

// FieldRule reads one record field: find the first td whose text contains
// Label and take the Offset-th following sibling td
type FieldRule struct {
	Name   string
	Label  string
	Offset int
}

// PANSchema is the field layout of the portal result table
var PANSchema = []FieldRule{
	{Name: models.FieldOffice, Label: "Office", Offset: 1},
	{Name: models.FieldName, Label: "Name", Offset: 1},
	{Name: models.FieldTelephone, Label: "Telephone", Offset: 1},
	{Name: models.FieldWard, Label: "Ward", Offset: 1},
	{Name: models.FieldStreetName, Label: "Street Name", Offset: 1},
	{Name: models.FieldCityName, Label: "City Name", Offset: 1},
	{Name: models.FieldIncomeTax, Label: "Income Tax", Offset: 1},
	{Name: models.FieldVAT, Label: "VAT", Offset: 1},
	{Name: models.FieldVATFilingPeriod, Label: "VAT Filing Period", Offset: 1},
	{Name: models.FieldReturnVerifiedDate, Label: "Fiscal Year / Return Verified Date", Offset: 1},
	{Name: models.FieldNonFiler, Label: "Income Tax", Offset: 2},
	{Name: models.FieldNonFilerSince, Label: "VAT", Offset: 2},
}

// ExtractorService handles data extraction from HTML
type ExtractorService struct {
	schema []FieldRule
	logger *logrus.Logger
}

// NewExtractorService creates an extractor for schema; nil means PANSchema
func NewExtractorService(schema []FieldRule, logger *logrus.Logger) *ExtractorService {
	if schema == nil {
		schema = PANSchema
	}
	return &ExtractorService{
		schema: schema,
		logger: logger,
	}
}

// Extract reads every schema field for pan. Fields that are not on the
// page are left as NotAvailable.
func (e *ExtractorService) Extract(html, pan string) (*models.Record, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	if findLabelCell(doc, ResultMarker).Length() == 0 {
		return nil, fmt.Errorf("not on result page - extraction failed")
	}

	record := models.NewRecord(pan)
	missing := 0
	for _, rule := range e.schema {
		value, ok := extractField(doc, rule)
		if !ok {
			missing++
			continue
		}
		record.Set(rule.Name, value)
	}

	e.logger.WithFields(logrus.Fields{
		"pan":     pan,
		"name":    record.Get(models.FieldName),
		"missing": missing,
	}).Debug("PAN data extraction completed")

	return record, nil
}

// IsResultPage reports whether html contains the result table
func (e *ExtractorService) IsResultPage(html string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}
	return findLabelCell(doc, ResultMarker).Length() > 0
}

func extractField(doc *goquery.Document, rule FieldRule) (string, bool) {
	cell := findLabelCell(doc, rule.Label)
	if cell.Length() == 0 {
		return "", false
	}
	offset := rule.Offset
	if offset < 1 {
		offset = 1
	}
	value := cell.NextAllFiltered("td").Eq(offset - 1)
	if value.Length() == 0 {
		return "", false
	}
	return strings.TrimSpace(value.Text()), true
}

// findLabelCell returns the first td, in document order, whose leading text
// node contains label
func findLabelCell(doc *goquery.Document, label string) *goquery.Selection {
	return doc.Find("td").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.Contains(leadingText(s), label)
	}).First()
}

func leadingText(s *goquery.Selection) string {
	return s.Contents().FilterFunction(func(_ int, c *goquery.Selection) bool {
		return goquery.NodeName(c) == "#text"
	}).First().Text()
}
