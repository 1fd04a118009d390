package timectx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveLabels(t *testing.T) {
	tests := []struct {
		hour   int
		label  Label
		bucket Bucket
	}{
		{2, LabelLateNight, BucketNight},
		{4, LabelLateNight, BucketNight},
		{5, LabelEarlyMorning, BucketMorning},
		{7, LabelEarlyMorning, BucketMorning},
		{8, LabelMorning, BucketMorning},
		{10, LabelMorning, BucketMorning},
		{11, LabelNoon, BucketAfternoon},
		{12, LabelNoon, BucketAfternoon},
		{13, LabelAfternoon, BucketAfternoon},
		{16, LabelAfternoon, BucketAfternoon},
		{17, LabelEvening, BucketEvening},
		{20, LabelEvening, BucketEvening},
		{21, LabelNight, BucketNight},
		{23, LabelNight, BucketNight},
	}
	for _, tt := range tests {
		ts := time.Date(2025, 6, 1, tt.hour, 30, 0, 0, time.UTC)
		tc, err := Resolve(ts, "UTC")
		require.NoError(t, err)
		assert.Equal(t, tt.label, tc.Label, "hour %d", tt.hour)
		assert.Equal(t, tt.bucket, tc.Bucket, "hour %d", tt.hour)
	}
}

func TestResolveConvertsTimezone(t *testing.T) {
	// 02:00 UTC is 11:00 in Tokyo.
	ts := time.Date(2025, 6, 1, 2, 0, 0, 0, time.UTC)
	tc, err := Resolve(ts, "Asia/Tokyo")

	require.NoError(t, err)
	assert.Equal(t, LabelNoon, tc.Label)
	assert.Equal(t, "11:00", tc.Clock)
}

func TestResolveUnknownTimezoneFallsBackToUTC(t *testing.T) {
	ts := time.Date(2025, 6, 1, 9, 15, 0, 0, time.UTC)
	tc, err := Resolve(ts, "Mars/Olympus_Mons")

	assert.Error(t, err)
	assert.Equal(t, LabelMorning, tc.Label)
	assert.Equal(t, "09:15", tc.Clock)
}

func TestBucketTransitionWithinBucket(t *testing.T) {
	early, err := Resolve(time.Date(2025, 6, 1, 6, 0, 0, 0, time.UTC), "UTC")
	require.NoError(t, err)
	morning, err := Resolve(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC), "UTC")
	require.NoError(t, err)

	assert.NotEqual(t, early.Label, morning.Label)
	assert.Equal(t, early.Bucket, morning.Bucket)
}
