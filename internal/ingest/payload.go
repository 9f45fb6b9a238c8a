package ingest

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"

	"carprobe/internal/services"
	"carprobe/internal/store"
)

//go:embed listing.schema.json
var listingSchemaJSON []byte

const listingSchemaURL = "listing.schema.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func listingSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(listingSchemaURL, bytes.NewReader(listingSchemaJSON)); err != nil {
			schemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile(listingSchemaURL)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile schema: %w", schemaErr)
		}
	})
	return schema, schemaErr
}

// Payload is the scraper's listing shape.
type Payload struct {
	SourceID    string            `json:"source_id"`
	URL         string            `json:"url"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Price       price             `json:"price"`
	Location    string            `json:"location"`
	Images      []string          `json:"images"`
	Specs       []string          `json:"specs"`
	PostedAt    string            `json:"posted_at"`
	Status      string            `json:"status"`
	Raw         map[string]string `json:"raw"`
}

type price struct {
	value decimal.Decimal
}

func (p *price) UnmarshalJSON(data []byte) error {
	text := strings.TrimSpace(string(data))
	if text == "null" || text == "" {
		return nil
	}
	text = strings.Trim(text, `"`)
	text = strings.NewReplacer("£", "", ",", "", " ", "").Replace(text)
	if text == "" {
		return nil
	}
	value, err := decimal.NewFromString(text)
	if err != nil {
		return fmt.Errorf("price %s: %w", data, err)
	}
	p.value = value
	return nil
}

// Listing converts the payload to a store listing.
func (p Payload) Listing() (*store.Listing, error) {
	listing := &store.Listing{
		SourceID:    strings.TrimSpace(p.SourceID),
		URL:         strings.TrimSpace(p.URL),
		Title:       strings.TrimSpace(p.Title),
		Description: strings.TrimSpace(p.Description),
		Price:       p.Price.value,
		Location:    strings.TrimSpace(p.Location),
		ImageURLs:   p.Images,
		Specs:       p.Specs,
		Status:      store.ListingStatus(strings.ToLower(strings.TrimSpace(p.Status))),
		Raw:         p.Raw,
	}
	if listing.Status == "" {
		listing.Status = store.ListingActive
	}
	if posted := strings.TrimSpace(p.PostedAt); posted != "" {
		at, err := time.Parse(time.RFC3339, posted)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "ingest", "parse posted_at", posted, err)
		}
		listing.PostedAt = at.UTC()
	}
	return listing, nil
}

// Validate checks one listing document against the embedded schema.
func Validate(data []byte) error {
	compiled, err := listingSchema()
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "ingest", "load schema", "", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return services.Wrap(services.ErrValidation, "ingest", "decode listing", "", err)
	}
	if err := compiled.Validate(doc); err != nil {
		return services.Wrap(services.ErrValidation, "ingest", "validate listing", "listing does not match schema", err)
	}
	return nil
}

// Decode validates and converts a listing document. The document may be a
// single listing object or an array of them.
func Decode(data []byte) ([]*store.Listing, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, services.Wrap(services.ErrValidation, "ingest", "decode listing", "empty document", nil)
	}

	var docs []json.RawMessage
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &docs); err != nil {
			return nil, services.Wrap(services.ErrValidation, "ingest", "decode listings", "", err)
		}
	} else {
		docs = []json.RawMessage{trimmed}
	}

	listings := make([]*store.Listing, 0, len(docs))
	var errs []error
	for i, doc := range docs {
		listing, err := decodeOne(doc)
		if err != nil {
			errs = append(errs, fmt.Errorf("listing %d: %w", i, err))
			continue
		}
		listings = append(listings, listing)
	}
	return listings, errors.Join(errs...)
}

func decodeOne(doc []byte) (*store.Listing, error) {
	if err := Validate(doc); err != nil {
		return nil, err
	}
	var payload Payload
	if err := json.Unmarshal(doc, &payload); err != nil {
		return nil, services.Wrap(services.ErrValidation, "ingest", "decode listing", "", err)
	}
	return payload.Listing()
}
