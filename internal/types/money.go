// Common money value object used across modules.
package types

import "fmt"

type Money struct {
	Amount   int64
	Currency string
}

// String renders the amount in major units, e.g. "12.50 EUR".
func (m Money) String() string {
	return fmt.Sprintf("%d.%02d %s", m.Amount/100, m.Amount%100, m.Currency)
}

// Mul scales the amount by a line quantity.
func (m Money) Mul(n int64) Money {
	return Money{Amount: m.Amount * n, Currency: m.Currency}
}

// Add panics on currency mismatch; drafts and orders are single-currency.
func (m Money) Add(o Money) Money {
	if m.Currency != "" && o.Currency != "" && m.Currency != o.Currency {
		panic("money: currency mismatch: " + m.Currency + " + " + o.Currency)
	}
	cur := m.Currency
	if cur == "" {
		cur = o.Currency
	}
	return Money{Amount: m.Amount + o.Amount, Currency: cur}
}
