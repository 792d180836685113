package model

import (
	"github.com/shopspring/decimal"
)

func init() {
	// Prices travel as JSON numbers; quoted decimals are still accepted on decode.
	decimal.MarshalJSONWithoutQuotes = true
}

type Product struct {
	ID    string          `json:"id"`
	Title string          `json:"title"`
	Price decimal.Decimal `json:"price"`
	Image string          `json:"image"`
}
