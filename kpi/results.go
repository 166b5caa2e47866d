package kpi

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

type Params struct {
	Location   *time.Location // display zone for month buckets
	WindowDays int
	TopLimit   int
	Now        time.Time // zero means the engine's clock
}

// Results holds one run of all four KPIs.
type Results struct {
	Repeat   []RepeatCustomer
	Monthly  []MonthlyTrend
	Regional []RegionRevenue
	Top      []TopSpender
}

func Compute(ctx context.Context, e Engine, p Params) (Results, error) {
	var (
		res Results
		err error
	)
	if res.Repeat, err = e.RepeatCustomers(ctx); err != nil {
		return Results{}, errors.Wrap(err, "repeat customers")
	}
	if res.Monthly, err = e.MonthlyOrderTrends(ctx, p.Location); err != nil {
		return Results{}, errors.Wrap(err, "monthly order trends")
	}
	if res.Regional, err = e.RegionalRevenue(ctx); err != nil {
		return Results{}, errors.Wrap(err, "regional revenue")
	}
	if res.Top, err = e.TopCustomersWindow(ctx, p.WindowDays, p.Now, p.TopLimit); err != nil {
		return Results{}, errors.Wrap(err, "top customers")
	}
	return res, nil
}
