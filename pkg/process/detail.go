package process

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Sriram-PR/film-indexer/pkg/config"
	"github.com/Sriram-PR/film-indexer/pkg/models"
	"github.com/Sriram-PR/film-indexer/pkg/utils"
)

// DetailExtractor builds a Record from a detail page using configured CSS selectors.
// It holds no mutable state and is safe for concurrent use by workers.
type DetailExtractor struct {
	sel config.SelectorConfig
}

// NewDetailExtractor creates a DetailExtractor. Empty selectors fall back to the defaults.
func NewDetailExtractor(sel config.SelectorConfig) *DetailExtractor {
	if sel.Title == "" {
		sel.Title = config.DefaultTitleSelector
	}
	if sel.Year == "" {
		sel.Year = config.DefaultYearSelector
	}
	if sel.Director == "" {
		sel.Director = config.DefaultDirectorSelector
	}
	if sel.Actors == "" {
		sel.Actors = config.DefaultActorsSelector
	}
	return &DetailExtractor{sel: sel}
}

// Extract parses body and extracts the record.
// A page without a usable title fails with utils.ErrMissingTitle; missing optional fields never fail.
func (e *DetailExtractor) Extract(body []byte) (*models.Record, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing HTML body: %w", utils.ErrParsing, err)
	}
	return e.ExtractDocument(doc)
}

// ExtractDocument is Extract for an already parsed document.
func (e *DetailExtractor) ExtractDocument(doc *goquery.Document) (*models.Record, error) {
	titleNode := doc.Find(e.sel.Title).First()
	if titleNode.Length() == 0 {
		return nil, fmt.Errorf("%w (selector '%s')", utils.ErrMissingTitle, e.sel.Title)
	}
	title := e.titleText(titleNode)
	if title == "" {
		return nil, fmt.Errorf("%w (selector '%s' matched empty text)", utils.ErrMissingTitle, e.sel.Title)
	}

	opts := []models.RecordOption{
		models.WithYear(firstText(doc, e.sel.Year)),
		models.WithDirector(firstText(doc, e.sel.Director)),
	}

	var actors []string
	doc.Find(e.sel.Actors).Each(func(_ int, s *goquery.Selection) {
		actors = append(actors, s.Text()) // Trimmed and blank-filtered by WithActors
	})
	opts = append(opts, models.WithActors(actors...))

	return models.NewRecord(title, opts...), nil
}

// titleYearWrapper is the element the classic layout nests the year link in, inside the heading.
const titleYearWrapper = "#titleYear"

// titleText is the heading's full trimmed text, inline markup included, minus any nested
// year element: <h1>Heat&nbsp;<span id="titleYear">(<a>1995</a>)</span></h1> yields "Heat".
func (e *DetailExtractor) titleText(s *goquery.Selection) string {
	heading := s.Clone()
	heading.Find(titleYearWrapper).Remove()
	heading.Find(e.sel.Year).Remove()
	return strings.TrimSpace(heading.Text())
}

func firstText(doc *goquery.Document, selector string) string {
	return strings.TrimSpace(doc.Find(selector).First().Text())
}
