package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
)

// Subtotal sums price × quantity over rows that still resolve to a product
// and carry a positive quantity. Rounding happens once, on the final sum.
func Subtotal(rows []domain.CartRow) decimal.Decimal {
	subtotal := decimal.Zero
	for _, row := range rows {
		if row.Product == nil || row.Quantity <= 0 {
			continue
		}
		subtotal = subtotal.Add(row.Product.Price.Mul(decimal.NewFromInt(int64(row.Quantity))))
	}
	return subtotal.Round(2)
}
