package models

import "time"

// HourlyTx is one bar of the dashboard: distinct transactions seen in an hour.
type HourlyTx struct {
	Hour    time.Time `json:"hour"`
	TxCount int64     `json:"tx_count"`
}
