// Package models contains domain models and entities.
package models

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/emadnahed/flakeid/internal/idgen"
)

// Product is a catalogue entry keyed by a snowflake ID.
type Product struct {
	ID          idgen.ID   `json:"id"`
	Name        string     `json:"name"`
	Description *string    `json:"description"`
	Price       string     `json:"price"`
	Stock       int        `json:"stock"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
}

// ProductInput carries client-supplied fields for create and update. Nil
// fields are absent from the request.
type ProductInput struct {
	Name        *string      `json:"name"`
	Description *string      `json:"description"`
	Price       *json.Number `json:"price"`
	Stock       *int         `json:"stock"`
}

// Name and price limits mirror the products table definition.
const (
	MinNameLength = 3
	MaxNameLength = 255
)

// Validation errors
var (
	ErrNameRequired    = errors.New("name is required")
	ErrNameLength      = errors.New("name must be between 3 and 255 characters")
	ErrPriceRequired   = errors.New("price is required")
	ErrInvalidPrice    = errors.New("price must be a positive decimal with at most 2 decimal places")
	ErrStockRequired   = errors.New("stock is required")
	ErrNegativeStock   = errors.New("stock cannot be negative")
	ErrProductNotFound = errors.New("product not found")
)

// price fits NUMERIC(10,2).
var priceRe = regexp.MustCompile(`^[0-9]{1,8}(\.[0-9]{1,2})?$`)

// Validate validates the product model.
func (p *Product) Validate() error {
	if err := validateName(p.Name); err != nil {
		return err
	}
	if err := ValidatePrice(p.Price); err != nil {
		return err
	}
	if p.Stock < 0 {
		return ErrNegativeStock
	}
	return nil
}

// ValidateCreate checks an input used to create a product. Name and price are
// required; stock defaults to zero.
func (in *ProductInput) ValidateCreate() error {
	if in.Name == nil {
		return ErrNameRequired
	}
	if in.Price == nil {
		return ErrPriceRequired
	}
	return in.validatePresent()
}

// ValidateReplace checks an input used for a full update, where every
// required field must be supplied.
func (in *ProductInput) ValidateReplace() error {
	if err := in.ValidateCreate(); err != nil {
		return err
	}
	if in.Stock == nil {
		return ErrStockRequired
	}
	return nil
}

// ValidatePatch checks only the fields that are present.
func (in *ProductInput) ValidatePatch() error {
	return in.validatePresent()
}

func (in *ProductInput) validatePresent() error {
	if in.Name != nil {
		if err := validateName(*in.Name); err != nil {
			return err
		}
	}
	if in.Price != nil {
		if err := ValidatePrice(in.Price.String()); err != nil {
			return err
		}
	}
	if in.Stock != nil && *in.Stock < 0 {
		return ErrNegativeStock
	}
	return nil
}

// ApplyTo copies the present fields onto p. When replace is true, absent
// optional fields are reset.
func (in *ProductInput) ApplyTo(p *Product, replace bool) {
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil || replace {
		p.Description = in.Description
	}
	if in.Price != nil {
		p.Price = NormalizePrice(in.Price.String())
	}
	if in.Stock != nil {
		p.Stock = *in.Stock
	}
}

// NormalizePrice renders a valid price with exactly two decimal places.
func NormalizePrice(price string) string {
	whole, frac, _ := strings.Cut(price, ".")
	whole = strings.TrimLeft(whole, "0")
	if whole == "" {
		whole = "0"
	}
	for len(frac) < 2 {
		frac += "0"
	}
	return whole + "." + frac
}

func validateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrNameRequired
	}
	n := utf8.RuneCountInString(name)
	if n < MinNameLength || n > MaxNameLength {
		return ErrNameLength
	}
	return nil
}

// ValidatePrice checks that price is a positive decimal that fits NUMERIC(10,2).
func ValidatePrice(price string) error {
	if !priceRe.MatchString(price) {
		return ErrInvalidPrice
	}
	if strings.Trim(price, "0.") == "" {
		return ErrInvalidPrice
	}
	return nil
}
