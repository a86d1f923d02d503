package db

import "time"

type EventRecord struct {
	ID          int64     `json:"id"`
	JobID       string    `json:"job_id"`
	OrderName   string    `json:"order_name"`
	VariantName string    `json:"variant_name"`
	Index       int       `json:"index"`
	Quantity    int       `json:"quantity"`
	Event       string    `json:"event"`
	Status      string    `json:"status"`
	Detail      string    `json:"detail,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type PrintCounter struct {
	Date      string `json:"date"`
	Fulfilled int64  `json:"fulfilled"`
	Failed    int64  `json:"failed"`
}

type EventFilter struct {
	OrderName string
	Event     string
	Limit     int
}
