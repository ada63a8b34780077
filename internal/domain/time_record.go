package domain

import "time"

// WeekdayConvention documents how TimeRecord.Weekday and TimeRecord.Week are
// numbered for every row the pipeline writes.
const WeekdayConvention = "weekday 0=Monday..6=Sunday; week is ISO-8601 week of year"

// TimeRecord is a row of the time dimension keyed by the full event timestamp.
type TimeRecord struct {
	StartTime time.Time `json:"start_time"`
	Hour      int       `json:"hour"`
	Day       int       `json:"day"`
	Week      int       `json:"week"`
	Month     int       `json:"month"`
	Year      int       `json:"year"`
	Weekday   int       `json:"weekday"`
}

// DeriveTime expands an epoch-millisecond timestamp into calendar fields in
// loc (UTC when loc is nil).
func DeriveTime(ms int64, loc *time.Location) (TimeRecord, error) {
	if ms < 0 {
		return TimeRecord{}, &ValidationError{Field: "ts", Value: ms, Message: "timestamp must not be negative"}
	}
	if loc == nil {
		loc = time.UTC
	}

	t := time.UnixMilli(ms).In(loc)
	_, week := t.ISOWeek()

	return TimeRecord{
		StartTime: t,
		Hour:      t.Hour(),
		Day:       t.Day(),
		Week:      week,
		Month:     int(t.Month()),
		Year:      t.Year(),
		Weekday:   (int(t.Weekday()) + 6) % 7,
	}, nil
}
