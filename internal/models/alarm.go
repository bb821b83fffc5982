package models

// RingPayload is the sentinel published on the ring topic when an
// alarm fires. Devices compare the raw payload against it; no
// structured message is involved.
const RingPayload = "Alarm is ringing"

// AlarmRecord is one row of the alarms table. Time and Date are kept
// as strings in the wire formats the store uses ("HH:MM:SS" and
// "YYYY-MM-DD"); alarm granularity is one minute, so the seconds field
// is always "00".
//
// RepeatDays is advisory: the scheduler keys only off (date, time,
// enabled). A recurring alarm has to be re-materialized as a new row
// by the write side.
type AlarmRecord struct {
	ID         int64  `json:"id"`
	ClockID    int64  `json:"clock_id"`
	Time       string `json:"alarm_time"`
	Date       string `json:"alarm_date"`
	RepeatDays string `json:"repeat_days"`
	Enabled    bool   `json:"enabled"`
}
