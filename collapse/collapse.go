package collapse

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"

	"kpiload/models"
)

type Granularity string

const (
	Header Granularity = "header"
	Line   Granularity = "line"
)

var ErrUnknownGranularity = errors.New("unknown order granularity")

func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(s); g {
	case Header, Line:
		return g, nil
	default:
		return "", errors.Wrap(ErrUnknownGranularity, fmt.Sprintf("%q", s))
	}
}

// Collapse returns orders at the requested granularity. The input slice is never modified.
//
// Header keeps the earliest row of every order_id (ties keep input order) and
// drops line-level fields, so order totals repeated on each line are counted once.
func Collapse(orders []models.Order, g Granularity) ([]models.Order, error) {
	switch g {
	case Header:
		return Headers(orders), nil
	case Line:
		out := make([]models.Order, len(orders))
		copy(out, orders)
		return out, nil
	default:
		return nil, errors.Wrap(ErrUnknownGranularity, string(g))
	}
}

// Headers is Collapse(orders, Header) for callers that cannot get a bad granularity.
func Headers(orders []models.Order) []models.Order {
	sorted := make([]models.Order, len(orders))
	copy(sorted, orders)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].OrderDateTime.Before(sorted[j].OrderDateTime)
	})
	seen := make(map[string]struct{}, len(sorted))
	out := make([]models.Order, 0, len(sorted))
	for _, o := range sorted {
		if _, ok := seen[o.OrderID]; ok {
			continue
		}
		seen[o.OrderID] = struct{}{}
		out = append(out, models.Order{
			OrderID:       o.OrderID,
			MobileNumber:  o.MobileNumber,
			OrderDateTime: o.OrderDateTime,
			TotalAmount:   o.TotalAmount,
		})
	}
	return out
}
