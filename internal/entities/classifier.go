package entities

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ClassifierRequest is the JSON body posted to the classifier.
// Exactly one of Message / ImageURL is set.
type ClassifierRequest struct {
	UID       string  `json:"uid"`
	Timestamp int64   `json:"timestamp"`
	Message   *string `json:"message,omitempty"`
	ImageURL  *string `json:"imageUrl,omitempty"`
}

// BackendReply is what the classifier client hands back: a raw payload on
// success, or a diagnostic text meant for the end user.
type BackendReply struct {
	Payload    json.RawMessage
	Diagnostic string
	Failed     bool
}

type ResponseKind int

const (
	ResponsePlainText ResponseKind = iota
	ResponseProductPair
	ResponseProductList
	ResponseDiagnostic
)

// ClassifierResponse is the resolved shape of a classifier answer
type ClassifierResponse struct {
	Kind   ResponseKind
	Text   string    // PlainText
	Detail string    // Diagnostic
	Top    *Product  // ProductPair
	Bottom *Product  // ProductPair
	Items  []Product // ProductList
}

// Products returns the products to render, in send order
func (r ClassifierResponse) Products() []Product {
	switch r.Kind {
	case ResponseProductPair:
		var out []Product
		if r.Top != nil {
			out = append(out, *r.Top)
		}
		if r.Bottom != nil {
			out = append(out, *r.Bottom)
		}
		return out
	case ResponseProductList:
		return r.Items
	}
	return nil
}

// Product is one search match. Images keep backend order; the first is the cover.
type Product struct {
	Name   string   `json:"name"`
	Price  float64  `json:"price"`
	Link   string   `json:"link"`
	Images []string `json:"images"`

	// PriceText holds a price the backend sent as free text, e.g. "19.99 EUR"
	PriceText string `json:"-"`
}

// UnmarshalJSON accepts images as a single URL or a list, and price as a
// number or a numeric string. Any other price is kept as text or dropped.
func (p *Product) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name   string          `json:"name"`
		Price  json.RawMessage `json:"price"`
		Link   string          `json:"link"`
		Images json.RawMessage `json:"images"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.Name = raw.Name
	p.Link = raw.Link

	p.Price, p.PriceText = parsePrice(raw.Price)

	p.Images = nil
	if len(raw.Images) == 0 || string(raw.Images) == "null" {
		return nil
	}
	var single string
	if err := json.Unmarshal(raw.Images, &single); err == nil {
		if single != "" {
			p.Images = []string{single}
		}
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw.Images, &list); err != nil {
		return fmt.Errorf("product %q: invalid images: %w", raw.Name, err)
	}
	for _, u := range list {
		if u != "" {
			p.Images = append(p.Images, u)
		}
	}
	return nil
}

func parsePrice(raw json.RawMessage) (float64, string) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, ""
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, ""
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ""
	}
	if n, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64); err == nil {
		return n, ""
	}
	return 0, s
}

// DetailText renders a "detail" field: strings verbatim, anything else as compact JSON
func DetailText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
