package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Customer is keyed by MobileNumber everywhere outside the table itself.
type Customer struct {
	CustomerID   string  `gorm:"primaryKey;size:64"`
	CustomerName string  `gorm:"size:200;not null"`
	MobileNumber string  `gorm:"size:32;not null;uniqueIndex:uq_customers_mobile"`
	Region       *string `gorm:"size:64;index:ix_customers_region"` // nil when the source has no region
}

func (Customer) TableName() string {
	return "customers"
}

type Order struct {
	OrderID       string          `gorm:"primaryKey;size:64"`
	MobileNumber  string          `gorm:"size:32;not null;index:ix_orders_mobile_datetime,priority:1"`
	OrderDateTime time.Time       `gorm:"not null;index:ix_orders_mobile_datetime,priority:2"` // always UTC
	SkuID         string          `gorm:"size:64;not null"`
	SkuCount      int             `gorm:"not null"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(12,2);not null"`
}

func (Order) TableName() string {
	return "orders"
}

// IngestRun is an audit row written once per ingestion.
type IngestRun struct {
	ID            string `gorm:"primaryKey;size:36"`
	StartedAt     time.Time
	FinishedAt    time.Time
	CustomersPath string `gorm:"size:512"`
	OrdersPath    string `gorm:"size:512"`
	Stats         datatypes.JSON
}

func (IngestRun) TableName() string {
	return "ingest_runs"
}
