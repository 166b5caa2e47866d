package normalize

import (
	"encoding/xml"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"kpiload/models"
)

const orderElement = "order"

// OrderStats counts fields that were degraded to their zero value.
type OrderStats struct {
	Read          int `json:"read"`
	BadTimestamps int `json:"badTimestamps"`
	BadCounts     int `json:"badCounts"`
	BadAmounts    int `json:"badAmounts"`
}

func (s OrderStats) Degraded() int {
	return s.BadTimestamps + s.BadCounts + s.BadAmounts
}

type rawOrder struct {
	OrderID       *string `xml:"order_id"`
	MobileNumber  *string `xml:"mobile_number"`
	OrderDateTime string  `xml:"order_date_time"`
	SkuID         string  `xml:"sku_id"`
	SkuCount      string  `xml:"sku_count"`
	TotalAmount   string  `xml:"total_amount"`
}

// OrderReader decodes <order> elements one at a time, so only the current element is held in memory.
type OrderReader struct {
	dec   *xml.Decoder
	loc   *time.Location
	stats OrderStats
}

// NewOrderReader reads orders from r; timestamps without an offset are taken to be in loc.
func NewOrderReader(r io.Reader, loc *time.Location) *OrderReader {
	if loc == nil {
		loc = time.UTC
	}
	return &OrderReader{dec: xml.NewDecoder(r), loc: loc}
}

// Next returns the next order or io.EOF.
func (o *OrderReader) Next() (models.Order, error) {
	for {
		tok, err := o.dec.Token()
		if err == io.EOF {
			return models.Order{}, io.EOF
		}
		if err != nil {
			return models.Order{}, errors.Wrapf(err, "decode orders after %d records", o.stats.Read)
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != orderElement {
			continue
		}
		var raw rawOrder
		if err := o.dec.DecodeElement(&raw, &se); err != nil {
			return models.Order{}, errors.Wrapf(err, "decode order %d", o.stats.Read+1)
		}
		return o.normalize(raw)
	}
}

func (o *OrderReader) Stats() OrderStats {
	return o.stats
}

func (o *OrderReader) normalize(raw rawOrder) (models.Order, error) {
	if raw.OrderID == nil {
		return models.Order{}, &SchemaError{Source: "orders", Field: "order_id"}
	}
	if raw.MobileNumber == nil {
		return models.Order{}, &SchemaError{Source: "orders", Field: "mobile_number"}
	}
	o.stats.Read++

	ts, err := ParseTimestamp(raw.OrderDateTime, o.loc)
	if err != nil {
		o.stats.BadTimestamps++
	}
	count, ok := parseCount(raw.SkuCount)
	if !ok {
		o.stats.BadCounts++
	}
	amount, ok := ParseAmount(raw.TotalAmount)
	if !ok {
		o.stats.BadAmounts++
	}
	return models.Order{
		OrderID:       strings.TrimSpace(*raw.OrderID),
		MobileNumber:  StripSpaces(*raw.MobileNumber),
		OrderDateTime: ts,
		SkuID:         strings.TrimSpace(raw.SkuID),
		SkuCount:      count,
		TotalAmount:   amount,
	}, nil
}

// ReadAllOrders drains an order source into memory.
func ReadAllOrders(r io.Reader, loc *time.Location) ([]models.Order, OrderStats, error) {
	or := NewOrderReader(r, loc)
	var orders []models.Order
	for {
		o, err := or.Next()
		if err == io.EOF {
			return orders, or.Stats(), nil
		}
		if err != nil {
			return nil, or.Stats(), err
		}
		orders = append(orders, o)
	}
}

// an empty field is as bad as a malformed one: both become zero.
func parseCount(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// ParseAmount reads a money value rounded to cents. Empty or malformed input yields zero and false.
func ParseAmount(s string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, false
	}
	return d.Round(2), true
}
