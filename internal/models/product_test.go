package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emadnahed/flakeid/internal/idgen"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
func numPtr(s string) *json.Number {
	n := json.Number(s)
	return &n
}

func TestProduct_Validate(t *testing.T) {
	tests := []struct {
		name    string
		product Product
		wantErr error
	}{
		{"valid", Product{Name: "Widget", Price: "19.99", Stock: 3}, nil},
		{"zero stock", Product{Name: "Widget", Price: "1", Stock: 0}, nil},
		{"empty name", Product{Name: "  ", Price: "1.00"}, ErrNameRequired},
		{"short name", Product{Name: "ab", Price: "1.00"}, ErrNameLength},
		{"long name", Product{Name: strings.Repeat("x", 256), Price: "1.00"}, ErrNameLength},
		{"zero price", Product{Name: "Widget", Price: "0.00"}, ErrInvalidPrice},
		{"negative price", Product{Name: "Widget", Price: "-1.00"}, ErrInvalidPrice},
		{"three decimals", Product{Name: "Widget", Price: "1.999"}, ErrInvalidPrice},
		{"too many digits", Product{Name: "Widget", Price: "123456789.00"}, ErrInvalidPrice},
		{"not a number", Product{Name: "Widget", Price: "cheap"}, ErrInvalidPrice},
		{"negative stock", Product{Name: "Widget", Price: "1.00", Stock: -1}, ErrNegativeStock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.product.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestProductInput_ValidateCreate(t *testing.T) {
	tests := []struct {
		name    string
		input   ProductInput
		wantErr error
	}{
		{"valid", ProductInput{Name: strPtr("Widget"), Price: numPtr("9.5")}, nil},
		{"missing name", ProductInput{Price: numPtr("9.5")}, ErrNameRequired},
		{"missing price", ProductInput{Name: strPtr("Widget")}, ErrPriceRequired},
		{"bad stock", ProductInput{Name: strPtr("Widget"), Price: numPtr("1"), Stock: intPtr(-2)}, ErrNegativeStock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.input.ValidateCreate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestProductInput_ValidateReplace(t *testing.T) {
	in := ProductInput{Name: strPtr("Widget"), Price: numPtr("1")}
	assert.ErrorIs(t, in.ValidateReplace(), ErrStockRequired)

	in.Stock = intPtr(4)
	assert.NoError(t, in.ValidateReplace())
}

func TestProductInput_ValidatePatch(t *testing.T) {
	assert.NoError(t, (&ProductInput{}).ValidatePatch())
	assert.NoError(t, (&ProductInput{Stock: intPtr(0)}).ValidatePatch())
	assert.ErrorIs(t, (&ProductInput{Name: strPtr("x")}).ValidatePatch(), ErrNameLength)
	assert.ErrorIs(t, (&ProductInput{Price: numPtr("0")}).ValidatePatch(), ErrInvalidPrice)
}

func TestProductInput_ApplyTo(t *testing.T) {
	base := func() Product {
		return Product{
			ID:          idgen.ID(42),
			Name:        "Widget",
			Description: strPtr("blue"),
			Price:       "10.00",
			Stock:       7,
		}
	}

	t.Run("patch keeps absent fields", func(t *testing.T) {
		p := base()
		(&ProductInput{Stock: intPtr(2)}).ApplyTo(&p, false)

		assert.Equal(t, 2, p.Stock)
		assert.Equal(t, "Widget", p.Name)
		require.NotNil(t, p.Description)
		assert.Equal(t, "blue", *p.Description)
	})

	t.Run("replace clears description", func(t *testing.T) {
		p := base()
		(&ProductInput{Name: strPtr(" Gadget "), Price: numPtr("3.5"), Stock: intPtr(1)}).ApplyTo(&p, true)

		assert.Equal(t, "Gadget", p.Name)
		assert.Equal(t, "3.50", p.Price)
		assert.Nil(t, p.Description)
		assert.Equal(t, idgen.ID(42), p.ID)
	})
}

func TestProductInput_JSON(t *testing.T) {
	var in ProductInput
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Widget","price":"12.5","stock":3}`), &in))
	assert.Equal(t, "12.5", in.Price.String())

	require.NoError(t, json.Unmarshal([]byte(`{"price":12.5}`), &in))
	assert.Equal(t, "12.5", in.Price.String())
}

func TestNormalizePrice(t *testing.T) {
	tests := map[string]string{
		"1":     "1.00",
		"1.5":   "1.50",
		"1.55":  "1.55",
		"007.1": "7.10",
		"0.5":   "0.50",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizePrice(in), in)
	}
}

func TestProduct_JSON(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p := Product{ID: idgen.ID(1<<62 + 5), Name: "Widget", Price: "1.00", CreatedAt: created}

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"id":"4611686018427387909"`)
	assert.Contains(t, string(data), `"description":null`)
}
