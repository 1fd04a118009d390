// Package timectx resolves a timestamp and an IANA timezone into the
// coarse time-of-day labels the rest of the engine keys continuity
// decisions on.
package timectx

import (
	"fmt"
	"time"
)

// Label is a fine-grained time-of-day description.
type Label string

const (
	LabelEarlyMorning Label = "early-morning"
	LabelMorning      Label = "morning"
	LabelNoon         Label = "noon"
	LabelAfternoon    Label = "afternoon"
	LabelEvening      Label = "evening"
	LabelNight        Label = "night"
	LabelLateNight    Label = "late-night"
)

// Bucket is the coarse continuity bucket. Transitions between buckets
// trigger outfit regeneration; transitions within one (e.g. morning to
// early-morning) do not.
type Bucket string

const (
	BucketMorning   Bucket = "morning"
	BucketAfternoon Bucket = "afternoon"
	BucketEvening   Bucket = "evening"
	BucketNight     Bucket = "night"
)

// Context is a resolved local time description.
type Context struct {
	Label  Label
	Bucket Bucket
	Clock  string // localized clock string, e.g. "14:05"
	Local  time.Time
}

// Resolve converts a timestamp and IANA timezone name into a Context.
// An unknown timezone falls back to UTC and still produces a usable
// Context; the error tells the caller the fallback happened.
func Resolve(ts time.Time, tz string) (Context, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
		err = fmt.Errorf("unknown timezone %q, falling back to UTC: %w", tz, err)
	}

	local := ts.In(loc)
	label := labelForHour(local.Hour())

	return Context{
		Label:  label,
		Bucket: label.ToBucket(),
		Clock:  local.Format("15:04"),
		Local:  local,
	}, err
}

func labelForHour(hour int) Label {
	switch {
	case hour < 5:
		return LabelLateNight
	case hour < 8:
		return LabelEarlyMorning
	case hour < 11:
		return LabelMorning
	case hour < 13:
		return LabelNoon
	case hour < 17:
		return LabelAfternoon
	case hour < 21:
		return LabelEvening
	default:
		return LabelNight
	}
}

// ToBucket collapses a fine label into its continuity bucket.
func (l Label) ToBucket() Bucket {
	switch l {
	case LabelEarlyMorning, LabelMorning:
		return BucketMorning
	case LabelNoon, LabelAfternoon:
		return BucketAfternoon
	case LabelEvening:
		return BucketEvening
	default:
		return BucketNight
	}
}
