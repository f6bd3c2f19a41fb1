package screens

import (
	"github.com/shopspring/decimal"

	"github.com/five82/depot/internal/entity"
)

// Stock status labels.
const (
	StatusOutOfStock = "Out of Stock"
	StatusLowStock   = "Low Stock"
	StatusInStock    = "In Stock"
)

// Receiving status labels for procurement orders.
const (
	ReceivingPending  = "Pending"
	ReceivingPartial  = "Partial"
	ReceivingReceived = "Received"
)

// DefaultLowStock applies when the item has no minimumStock.
var DefaultLowStock = decimal.NewFromInt(5)

// Available is quantity minus lockedQuantity.
func Available(e entity.Entity) decimal.Decimal {
	return entity.DecimalAt(e, "quantity").Sub(entity.DecimalAt(e, "lockedQuantity"))
}

// StockStatus classifies an inventory row by its available quantity.
func StockStatus(e entity.Entity) string {
	avail := Available(e)
	if avail.LessThanOrEqual(decimal.Zero) {
		return StatusOutOfStock
	}
	threshold := DefaultLowStock
	if v, ok := entity.Lookup(e, "Item.minimumStock"); ok {
		if d, ok := entity.Decimal(v); ok {
			threshold = d
		}
	}
	if avail.LessThanOrEqual(threshold) {
		return StatusLowStock
	}
	return StatusInStock
}

// HoursRun is closingHours minus openingHours.
func HoursRun(e entity.Entity) decimal.Decimal {
	return entity.DecimalAt(e, "closingHours").Sub(entity.DecimalAt(e, "openingHours"))
}

// DieselUsed is openingDiesel plus dieselIssued minus closingDiesel.
func DieselUsed(e entity.Entity) decimal.Decimal {
	return entity.DecimalAt(e, "openingDiesel").
		Add(entity.DecimalAt(e, "dieselIssued")).
		Sub(entity.DecimalAt(e, "closingDiesel"))
}

// DieselAverage is litres per hour, rounded to two places. ok is false when
// no hours were run.
func DieselAverage(e entity.Entity) (decimal.Decimal, bool) {
	hours := HoursRun(e)
	if hours.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, false
	}
	return DieselUsed(e).DivRound(hours, 2), true
}

// OrderTotal sums quantity*rate over the order's items.
func OrderTotal(e entity.Entity) decimal.Decimal {
	total := decimal.Zero
	for _, item := range entity.Items(e, "items") {
		total = total.Add(entity.DecimalAt(item, "quantity").Mul(entity.DecimalAt(item, "rate")))
	}
	return total
}

// OrderRemaining sums the unreceived quantity over the order's items.
// Over-received items count as zero.
func OrderRemaining(e entity.Entity) decimal.Decimal {
	total := decimal.Zero
	for _, item := range entity.Items(e, "items") {
		left := entity.DecimalAt(item, "quantity").Sub(entity.DecimalAt(item, "receivedQuantity"))
		if left.IsPositive() {
			total = total.Add(left)
		}
	}
	return total
}

// ReceivingStatus derives the receiving state of a procurement order.
func ReceivingStatus(e entity.Entity) string {
	ordered, received := decimal.Zero, decimal.Zero
	for _, item := range entity.Items(e, "items") {
		ordered = ordered.Add(entity.DecimalAt(item, "quantity"))
		received = received.Add(entity.DecimalAt(item, "receivedQuantity"))
	}
	switch {
	case OrderRemaining(e).IsZero() && ordered.IsPositive():
		return ReceivingReceived
	case received.IsPositive():
		return ReceivingPartial
	default:
		return ReceivingPending
	}
}

// RequisitionTotals sums requested and issued quantities across items.
func RequisitionTotals(e entity.Entity) (requested, issued decimal.Decimal) {
	requested, issued = decimal.Zero, decimal.Zero
	for _, item := range entity.Items(e, "items") {
		requested = requested.Add(entity.DecimalAt(item, "requestedQuantity"))
		issued = issued.Add(entity.DecimalAt(item, "issuedQuantity"))
	}
	return requested, issued
}

// RequisitionPending is requested minus issued.
func RequisitionPending(e entity.Entity) decimal.Decimal {
	requested, issued := RequisitionTotals(e)
	return requested.Sub(issued)
}

func sumOf(rows []entity.Entity, fn func(entity.Entity) decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(fn(row))
	}
	return total
}

// at reads a numeric field, for summing with sumOf.
func at(path string) func(entity.Entity) decimal.Decimal {
	return func(e entity.Entity) decimal.Decimal { return entity.DecimalAt(e, path) }
}

func countWhere(rows []entity.Entity, fn func(entity.Entity) bool) int {
	n := 0
	for _, row := range rows {
		if fn(row) {
			n++
		}
	}
	return n
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
