package domain

import "strings"

// ProductInput is the form the user fills in before requesting an analysis.
type ProductInput struct {
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	TargetAudience string   `json:"targetAudience"`
	KeyBenefits    []string `json:"keyBenefits"`
}

// NewProductInput returns an empty form with a single blank benefit row.
func NewProductInput() ProductInput {
	return ProductInput{KeyBenefits: []string{""}}
}

// Clone returns a deep copy so callers never share the benefits slice.
func (p ProductInput) Clone() ProductInput {
	out := p
	out.KeyBenefits = append([]string(nil), p.KeyBenefits...)
	return out
}

// HasRequiredFields reports whether name and description are filled in.
// Whitespace is not trimmed: a single space counts as filled.
func (p ProductInput) HasRequiredFields() bool {
	return p.Name != "" && p.Description != ""
}

// JoinedBenefits renders the benefits the way the analysis prompt expects.
func (p ProductInput) JoinedBenefits() string {
	return strings.Join(p.KeyBenefits, ", ")
}

// Normalize guarantees at least one benefit row.
func (p *ProductInput) Normalize() {
	if len(p.KeyBenefits) == 0 {
		p.KeyBenefits = []string{""}
	}
}
