// Package calc derives line item and estimate figures from cost, markup and
// quantity. Derived values are never authoritative; everything here is a
// function of its inputs.
package calc

import (
	"fmt"
	"math"

	"estimator/pkg/types"
)

// LineFigures are the derived values of a single line item
type LineFigures struct {
	MarkupAmount          float64 `json:"markupAmount"`
	UnitPrice             float64 `json:"unitPrice"`
	TotalPrice            float64 `json:"totalPrice"`
	GrossMargin           float64 `json:"grossMargin"`
	GrossMarginPercentage float64 `json:"grossMarginPercentage"`
}

// Summary aggregates a list of line items plus contingency
type Summary struct {
	TotalCost               float64 `json:"totalCost"`
	TotalMarkup             float64 `json:"totalMarkup"`
	Subtotal                float64 `json:"subtotal"`
	TotalGrossMargin        float64 `json:"totalGrossMargin"`
	OverallMarginPercentage float64 `json:"overallMarginPercentage"`
	ContingencyPercentage   float64 `json:"contingencyPercentage"`
	ContingencyAmount       float64 `json:"contingencyAmount"`
	GrandTotal              float64 `json:"grandTotal"`
}

// Totals returns the subset of the summary stored on an estimate row
func (s Summary) Totals() types.EstimateTotals {
	return types.EstimateTotals{
		Subtotal:          s.Subtotal,
		ContingencyAmount: s.ContingencyAmount,
		GrandTotal:        s.GrandTotal,
	}
}

func Line(cost, markupPercentage, quantity float64) LineFigures {
	markup := cost * markupPercentage / 100
	unitPrice := cost + markup

	return LineFigures{
		MarkupAmount:          markup,
		UnitPrice:             unitPrice,
		TotalPrice:            unitPrice * quantity,
		GrossMargin:           (unitPrice - cost) * quantity,
		GrossMarginPercentage: percentOf(unitPrice-cost, unitPrice),
	}
}

func ForItem(item types.DraftLineItem) LineFigures {
	return Line(item.Cost, item.MarkupPercentage, item.Quantity)
}

func Summarize(items []types.DraftLineItem, contingencyPercentage float64) Summary {
	var s Summary
	for _, item := range items {
		s.add(item.Cost, item.MarkupPercentage, item.Quantity)
	}
	return s.finish(contingencyPercentage)
}

// SummarizeLineItems totals persisted rows from their stored inputs. The
// stored derived snapshot is ignored and recomputed.
func SummarizeLineItems(items []*types.LineItem, contingencyPercentage float64) Summary {
	var s Summary
	for _, item := range items {
		if item == nil {
			continue
		}
		s.add(item.Cost, item.MarkupPercentage, item.Quantity)
	}
	return s.finish(contingencyPercentage)
}

// ApplyContingency recomputes only the contingency dependent figures,
// reusing the subtotal already on s.
func ApplyContingency(s Summary, contingencyPercentage float64) Summary {
	s.ContingencyPercentage = contingencyPercentage
	s.ContingencyAmount = s.Subtotal * contingencyPercentage / 100
	s.GrandTotal = s.Subtotal + s.ContingencyAmount
	return s
}

// Validate reports the first input that would produce a non-finite or
// nonsensical figure.
func Validate(items []types.DraftLineItem, contingencyPercentage float64) error {
	if !finite(contingencyPercentage) || contingencyPercentage < 0 {
		return fmt.Errorf("contingency percentage %v must be a non-negative number", contingencyPercentage)
	}

	for i, item := range items {
		switch {
		case !finite(item.Cost):
			return fmt.Errorf("item %d: cost %v is not a number", i, item.Cost)
		case !finite(item.MarkupPercentage):
			return fmt.Errorf("item %d: markup %v is not a number", i, item.MarkupPercentage)
		case !finite(item.Quantity):
			return fmt.Errorf("item %d: quantity %v is not a number", i, item.Quantity)
		case item.Quantity < 0:
			return fmt.Errorf("item %d: quantity %v is negative", i, item.Quantity)
		}
	}

	return nil
}

func (s *Summary) add(cost, markupPercentage, quantity float64) {
	f := Line(cost, markupPercentage, quantity)
	s.TotalCost += cost * quantity
	s.TotalMarkup += f.MarkupAmount * quantity
	s.Subtotal += f.TotalPrice
	s.TotalGrossMargin += f.GrossMargin
}

func (s Summary) finish(contingencyPercentage float64) Summary {
	s.OverallMarginPercentage = percentOf(s.TotalGrossMargin, s.Subtotal)
	return ApplyContingency(s, contingencyPercentage)
}

// percentOf returns part/whole*100, or 0 when whole is not positive.
func percentOf(part, whole float64) float64 {
	if whole <= 0 {
		return 0
	}
	return part / whole * 100
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
