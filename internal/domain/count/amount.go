package count

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/shopspring/decimal"
)

// Amount десятичное значение в API: принимается числом или строкой, отдается строкой
type Amount struct {
	decimal.Decimal
}

func NewAmount(d decimal.Decimal) Amount {
	return Amount{Decimal: d}
}

// Schema реализует huma.SchemaProvider.
func (Amount) Schema(huma.Registry) *huma.Schema {
	return &huma.Schema{
		OneOf: []*huma.Schema{
			{Type: huma.TypeNumber},
			{Type: huma.TypeString, Pattern: `^-?[0-9]+(\.[0-9]+)?$`},
		},
		Description: "Десятичное значение",
		Examples:    []any{"3", "12.50"},
	}
}
