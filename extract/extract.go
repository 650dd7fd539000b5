// Package extract parses company blocks out of the map page
package extract

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"suapemap/feature"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
)

// Selectors locate the fields of a company block
type Selectors struct {
	Block          string
	Title          string
	Paragraph      string
	Anchor         string
	LatAttr        string
	LngAttr        string
	ActivityPrefix string
	ClusterPrefix  string
}

// DefaultSelectors matches the markup of the Suape company map
var DefaultSelectors = Selectors{
	Block:          "div.empresa",
	Title:          ".titulo-empresa h3",
	Paragraph:      "p",
	Anchor:         "a.empresa-mapa",
	LatAttr:        "data-lat",
	LngAttr:        "data-long",
	ActivityPrefix: "Atividade:",
	ClusterPrefix:  "Polo:",
}

// BlockError reports a block that was skipped
type BlockError struct {
	Source string
	Index  int
	Err    error
}

func (e *BlockError) Error() string {
	return fmt.Sprintf("block %d (%s): %v", e.Index, e.Source, e.Err)
}

func (e *BlockError) Unwrap() error { return e.Err }

var (
	errMissingTitle  = errors.New("missing title")
	errMissingAnchor = errors.New("missing map anchor")
)

// Parser extracts features using a set of selectors
type Parser struct {
	Selectors Selectors
}

// NewParser creates a parser for the default page markup
func NewParser() *Parser {
	return &Parser{Selectors: DefaultSelectors}
}

// Companies parses doc with the default selectors
func Companies(doc *goquery.Document, source string) ([]feature.Feature, []error) {
	return NewParser().Parse(doc, source)
}

// ParseHTML reads an HTML document and parses it
func (p *Parser) ParseHTML(r io.Reader, source string) ([]feature.Feature, []error, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	features, failures := p.Parse(doc, source)
	return features, failures, nil
}

// Parse returns one feature per well-formed block. Malformed blocks are logged,
// reported in the second return value and skipped
func (p *Parser) Parse(doc *goquery.Document, source string) ([]feature.Feature, []error) {
	blocks := doc.Find(p.Selectors.Block)
	log.Info().Str("source", source).Int("blocks", blocks.Length()).Msg("company blocks found")

	features := make([]feature.Feature, 0, blocks.Length())
	var failures []error
	blocks.Each(func(i int, s *goquery.Selection) {
		f, err := p.block(s)
		if err != nil {
			berr := &BlockError{Source: source, Index: i, Err: err}
			log.Warn().Err(err).Str("source", source).Int("block", i).Msg("skipping company block")
			failures = append(failures, berr)
			return
		}
		features = append(features, f)
	})

	return features, failures
}

func (p *Parser) block(s *goquery.Selection) (f feature.Feature, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	name := CleanText(s.Find(p.Selectors.Title).First().Text())
	if name == "" {
		return feature.Feature{}, errMissingTitle
	}

	var activity, cluster string
	s.Find(p.Selectors.Paragraph).Each(func(_ int, para *goquery.Selection) {
		text := CleanText(para.Text())
		switch {
		case strings.HasPrefix(text, p.Selectors.ActivityPrefix):
			activity = strings.TrimSpace(strings.TrimPrefix(text, p.Selectors.ActivityPrefix))
		case strings.HasPrefix(text, p.Selectors.ClusterPrefix):
			cluster = strings.TrimSpace(strings.TrimPrefix(text, p.Selectors.ClusterPrefix))
		}
	})

	anchor := s.Find(p.Selectors.Anchor).First()
	if anchor.Length() == 0 {
		return feature.Feature{}, errMissingAnchor
	}
	lat, err := coordinate(anchor, p.Selectors.LatAttr)
	if err != nil {
		return feature.Feature{}, err
	}
	lng, err := coordinate(anchor, p.Selectors.LngAttr)
	if err != nil {
		return feature.Feature{}, err
	}

	return feature.Build(name, activity, cluster, lat, lng), nil
}

func coordinate(anchor *goquery.Selection, attr string) (float64, error) {
	raw, ok := anchor.Attr(attr)
	if !ok {
		return 0, fmt.Errorf("missing %s attribute", attr)
	}
	v, err := feature.ParseCoordinate(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", attr, err)
	}
	return v, nil
}

// CleanText removes extra whitespace from text
func CleanText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
