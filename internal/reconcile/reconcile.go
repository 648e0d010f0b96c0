// Package reconcile settles a route: it compares what left the plant with
// what came back and what was sold, and derives the route's final status and
// debt.  Everything here is pure computation over the values passed in; the
// bottle price is an explicit input, there is no storage or clock access, and
// the functions are safe to call concurrently.
//
// Two strategies share one contract.  InventoryParity counts bottles only and
// is used when the check-in carries no itemized sales.  SalesBased compares
// the bottles missing from the truck against the itemized per-client sales.
package reconcile

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/waterlog/routeledger/internal/apperr"
	"github.com/waterlog/routeledger/internal/model"
)

// MaxCount bounds every bottle count and sales quantity.  It is far above
// any truck load and keeps sums well inside the INT columns.
const MaxCount = 1_000_000

// StrategyName identifies a reconciliation strategy.  It is persisted on
// the manifest next to the outcome.
type StrategyName string

const (
	InventoryParityName StrategyName = "INVENTORY_PARITY"
	SalesBasedName      StrategyName = "SALES_BASED"
)

// SaleLine is one client line of a check-in report.
type SaleLine struct {
	ClientID uint64
	Quantity int
}

// ClientPrice is the pricing data known for a client.  Special is NULL when
// the client uses the global price.
type ClientPrice struct {
	Special decimal.NullDecimal
}

// PriceBook maps client ids to their pricing data.  A client id missing
// from the book is unknown.
type PriceBook map[uint64]ClientPrice

// Input is everything a strategy needs to settle one route.
type Input struct {
	InitialFull      int
	InitialEmpty     int
	ReturnedFull     int
	ReturnedEmpty    int
	ReportedDamaged  int
	EvidenceVerified bool
	BottlePrice      decimal.Decimal
	Sales            []SaleLine
	Prices           PriceBook
}

// PricedLine is a sale line after price resolution.  These become the
// route's sales details.
type PricedLine struct {
	ClientID  uint64
	Quantity  int
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
}

// Result is the settlement outcome.
type Result struct {
	Strategy StrategyName
	Status   model.AuditStatus
	Debt     decimal.Decimal
	Message  string
	// Delta is the diagnostic difference: dispatched minus accounted for
	// (parity) or physically sold minus reported sold (sales-based).
	Delta int

	Lines          []PricedLine
	SkippedClients []uint64
	UnitsSold      int
}

// DebtString renders the debt rounded to the smallest currency unit.
func (r Result) DebtString() string { return r.Debt.StringFixed(2) }

// Strategy settles a route.
type Strategy interface {
	Name() StrategyName
	Reconcile(in Input) (Result, error)
}

// Select returns the strategy for in: SalesBased when at least one sales
// line carries a non-zero quantity, InventoryParity otherwise.  Negative
// quantities count so that SalesBased can reject them.
func Select(in Input) Strategy {
	for _, l := range in.Sales {
		if l.Quantity != 0 {
			return SalesBased{}
		}
	}
	return InventoryParity{}
}

// Run selects the strategy for in and applies it.
func Run(in Input) (Result, error) {
	return Select(in).Reconcile(in)
}

func validateCounts(in Input) error {
	counts := []struct {
		field string
		v     int
	}{
		{"initial_full_bottles", in.InitialFull},
		{"initial_empty_bottles", in.InitialEmpty},
		{"returned_full_bottles", in.ReturnedFull},
		{"returned_empty_bottles", in.ReturnedEmpty},
		{"reported_damaged", in.ReportedDamaged},
	}
	for _, c := range counts {
		if c.v < 0 {
			return apperr.Validation(c.field, "must be >= 0, got %d", c.v)
		}
		if c.v > MaxCount {
			return apperr.Validation(c.field, "must be <= %d, got %d", MaxCount, c.v)
		}
	}
	if !in.BottlePrice.IsPositive() {
		return apperr.Computation("bottle_price", "global bottle price must be positive, got %s", in.BottlePrice.String())
	}
	return nil
}

// addCounts sums non-negative counts, failing instead of wrapping.
func addCounts(field string, vs ...int) (int, error) {
	total := 0
	for _, v := range vs {
		if v > math.MaxInt-total {
			return 0, apperr.Computation(field, "count overflow")
		}
		total += v
	}
	return total, nil
}

// InventoryParity compares units dispatched against units accounted for at
// return.  A shortfall becomes debt unless verified damage explains it;
// a surplus is reported and never penalized.
type InventoryParity struct{}

func (InventoryParity) Name() StrategyName { return InventoryParityName }

func (s InventoryParity) Reconcile(in Input) (Result, error) {
	if err := validateCounts(in); err != nil {
		return Result{}, err
	}
	dispatched, err := addCounts("initial_bottles", in.InitialFull, in.InitialEmpty)
	if err != nil {
		return Result{}, err
	}
	accounted, err := addCounts("returned_bottles", in.ReturnedFull, in.ReturnedEmpty, in.ReportedDamaged)
	if err != nil {
		return Result{}, err
	}
	delta := dispatched - accounted

	res := Result{Strategy: s.Name(), Status: model.StatusClosed, Debt: decimal.Zero, Delta: delta}
	switch {
	case delta == 0:
		res.Message = "Route closed. Inventory balanced."
	case delta > 0 && in.ReportedDamaged > 0 && in.EvidenceVerified:
		res.Message = fmt.Sprintf("Route closed. %d damaged units covered by verified evidence.", in.ReportedDamaged)
	case delta > 0:
		res.Status = model.StatusLockedDebt
		res.Debt = decimal.NewFromInt(int64(delta)).Mul(in.BottlePrice)
		res.Message = fmt.Sprintf("MISMATCH DETECTED. Missing %d units. Debt: $%s", delta, res.DebtString())
	default:
		res.Message = fmt.Sprintf("Route closed. Surplus of %d units.", -delta)
	}
	return res, nil
}

// SalesBased compares bottles physically missing from the truck with the
// quantity the itemized sales claim.  The debt is the money collected from
// those sales, owed to the plant, whether or not the counts match; a
// mismatch locks the route for manual review.
type SalesBased struct{}

func (SalesBased) Name() StrategyName { return SalesBasedName }

func (s SalesBased) Reconcile(in Input) (Result, error) {
	if err := validateCounts(in); err != nil {
		return Result{}, err
	}
	lines, skipped, err := priceLines(in)
	if err != nil {
		return Result{}, err
	}

	sold := 0
	money := decimal.Zero
	for _, l := range lines {
		if sold, err = addCounts("sales.quantity", sold, l.Quantity); err != nil {
			return Result{}, err
		}
		money = money.Add(l.Subtotal)
	}

	accounted, err := addCounts("returned_bottles", in.ReturnedFull, in.ReportedDamaged)
	if err != nil {
		return Result{}, err
	}
	physicallySold := in.InitialFull - accounted
	diff := physicallySold - sold

	res := Result{
		Strategy:       s.Name(),
		Debt:           money,
		Delta:          diff,
		Lines:          lines,
		SkippedClients: skipped,
		UnitsSold:      sold,
	}
	if diff == 0 {
		res.Status = model.StatusClosed
		res.Message = fmt.Sprintf("Route closed. %d bottles sold, sales total $%s.", sold, res.DebtString())
	} else {
		res.Status = model.StatusLockedDebt
		res.Message = fmt.Sprintf(
			"MISMATCH DETECTED. Truck is missing %d bottles but sales report %d (difference %d). Sales total $%s held for review.",
			physicallySold, sold, diff, res.DebtString())
	}
	if len(skipped) > 0 {
		res.Message += fmt.Sprintf(" %d sales line(s) skipped for unknown clients.", len(skipped))
	}
	return res, nil
}

// priceLines merges duplicate client lines, resolves each client's
// effective unit price and drops lines for unknown clients.  Zero-quantity
// lines are ignored.  Order of first appearance is preserved.
func priceLines(in Input) ([]PricedLine, []uint64, error) {
	qty := make(map[uint64]int, len(in.Sales))
	order := make([]uint64, 0, len(in.Sales))
	for i, l := range in.Sales {
		if l.Quantity < 0 {
			return nil, nil, apperr.Validation(fmt.Sprintf("sales[%d].quantity", i), "must be >= 0, got %d", l.Quantity)
		}
		if l.Quantity > MaxCount {
			return nil, nil, apperr.Validation(fmt.Sprintf("sales[%d].quantity", i), "must be <= %d, got %d", MaxCount, l.Quantity)
		}
		if l.Quantity == 0 {
			continue
		}
		if _, seen := qty[l.ClientID]; !seen {
			order = append(order, l.ClientID)
		}
		sum, err := addCounts(fmt.Sprintf("sales[%d].quantity", i), qty[l.ClientID], l.Quantity)
		if err != nil {
			return nil, nil, err
		}
		qty[l.ClientID] = sum
	}

	var lines []PricedLine
	var skipped []uint64
	for _, id := range order {
		cp, known := in.Prices[id]
		if !known {
			skipped = append(skipped, id)
			continue
		}
		price, err := EffectivePrice(cp, in.BottlePrice)
		if err != nil {
			return nil, nil, err
		}
		q := qty[id]
		lines = append(lines, PricedLine{
			ClientID:  id,
			Quantity:  q,
			UnitPrice: price,
			Subtotal:  price.Mul(decimal.NewFromInt(int64(q))),
		})
	}
	return lines, skipped, nil
}

// EffectivePrice returns the client's special price when one is set and
// positive, otherwise the global price.
func EffectivePrice(cp ClientPrice, global decimal.Decimal) (decimal.Decimal, error) {
	if !cp.Special.Valid {
		return global, nil
	}
	if cp.Special.Decimal.IsNegative() {
		return decimal.Decimal{}, apperr.Computation("special_price", "client special price is negative: %s", cp.Special.Decimal.String())
	}
	if cp.Special.Decimal.IsZero() {
		return global, nil
	}
	return cp.Special.Decimal, nil
}
