package store

import "time"

// Decimals persist as strings to keep exact values across drivers.

// OrderRecord is one row per order state change.
type OrderRecord struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement"`
	OrderID       string `gorm:"index"`
	ClientOrderID uint64
	Symbol        string `gorm:"index"`
	Side          string
	Type          string
	Price         string
	Size          string
	Filled        string
	Status        string
	At            time.Time
}

func (OrderRecord) TableName() string { return "order_records" }

// FillRecord is one row per execution.
type FillRecord struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement"`
	OrderID string `gorm:"index"`
	Symbol  string `gorm:"index"`
	Side    string
	Price   string
	Size    string
	Fee     string
	At      time.Time
}

func (FillRecord) TableName() string { return "fill_records" }

// PnlRecord is one row per realized pnl delta.
type PnlRecord struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement"`
	Symbol string `gorm:"index"`
	Amount string
	At     time.Time
}

func (PnlRecord) TableName() string { return "pnl_records" }

// RiskEventRecord is one row per risk alert or breaker trip.
type RiskEventRecord struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement"`
	Kind   string `gorm:"index"`
	Symbol string `gorm:"index"`
	Detail string
	At     time.Time
}

func (RiskEventRecord) TableName() string { return "risk_event_records" }
