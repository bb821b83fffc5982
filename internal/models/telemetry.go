package models

import "time"

// TelemetrySample is one decoded telemetry message. Temperature and
// Humidity are pointers so a missing field on the wire can be told
// apart from a zero reading; only samples carrying both are persisted.
// ReceivedAt is stamped by the ingestor when the message arrives, not
// by the device.
type TelemetrySample struct {
	ClockID     int64     `json:"clock_id"`
	Temperature *float64  `json:"temperature"`
	Humidity    *float64  `json:"humidity"`
	ReceivedAt  time.Time `json:"received_at"`
}
