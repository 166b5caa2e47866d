package publish

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"kpiload/kpi"
)

type Message interface {
	ToKafkaMessage() kafka.Message
	GetValueForDump() string
	GetTimestamp() time.Time
}

// KPIMessage carries one KPI row, keyed by the KPI name so that a KPI always lands on one partition.
type KPIMessage struct {
	KPI       string
	TimeStamp time.Time
	Value     []byte // JSON document
}

type envelope struct {
	KPI        string      `json:"kpi"`
	ComputedAt time.Time   `json:"computed_at"`
	Row        interface{} `json:"row"`
}

func NewKPIMessage(name string, at time.Time, row interface{}) (*KPIMessage, error) {
	b, err := json.Marshal(envelope{KPI: name, ComputedAt: at.UTC(), Row: row})
	if err != nil {
		return nil, errors.Wrapf(err, "encode %s row", name)
	}
	return &KPIMessage{KPI: name, TimeStamp: at, Value: b}, nil
}

func (m *KPIMessage) ToKafkaMessage() kafka.Message {
	return kafka.Message{Key: []byte(m.KPI), Value: m.Value, Time: m.TimeStamp}
}

func (m *KPIMessage) GetValueForDump() string {
	if m == nil {
		return ""
	}
	return string(m.Value) + "\n"
}

func (m *KPIMessage) GetTimestamp() time.Time {
	return m.TimeStamp
}

// KPI names used as message keys.
const (
	RepeatCustomersKPI = "repeat_customers"
	MonthlyTrendsKPI   = "monthly_order_trends"
	RegionalRevenueKPI = "regional_revenue"
	TopCustomersKPI    = "top_customers"
)

type regionRow struct {
	Region  string `json:"region"`
	Revenue string `json:"revenue"`
}

type spenderRow struct {
	MobileNumber string `json:"mobile_number"`
	Spend        string `json:"spend"`
	WindowDays   int    `json:"window_days"`
}

// FromResults turns every KPI row into a message. Money is sent as a fixed two digit string.
func FromResults(res kpi.Results, windowDays int, at time.Time) ([]Message, error) {
	var msgs []Message
	add := func(name string, row interface{}) error {
		m, err := NewKPIMessage(name, at, row)
		if err != nil {
			return err
		}
		msgs = append(msgs, m)
		return nil
	}
	for _, r := range res.Repeat {
		if err := add(RepeatCustomersKPI, r); err != nil {
			return nil, err
		}
	}
	for _, r := range res.Monthly {
		if err := add(MonthlyTrendsKPI, r); err != nil {
			return nil, err
		}
	}
	for _, r := range res.Regional {
		if err := add(RegionalRevenueKPI, regionRow{Region: kpi.RegionName(r.Region), Revenue: r.Revenue.StringFixed(2)}); err != nil {
			return nil, err
		}
	}
	for _, r := range res.Top {
		if err := add(TopCustomersKPI, spenderRow{MobileNumber: r.MobileNumber, Spend: r.Spend.StringFixed(2), WindowDays: windowDays}); err != nil {
			return nil, err
		}
	}
	return msgs, nil
}
