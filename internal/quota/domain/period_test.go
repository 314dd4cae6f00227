package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPeriodOf(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want Period
	}{
		{
			name: "mid month",
			now:  time.Date(2025, 6, 15, 12, 30, 0, 0, time.UTC),
			want: Period("202506"),
		},
		{
			name: "last instant of month",
			now:  time.Date(2025, 6, 30, 23, 59, 59, 999999999, time.UTC),
			want: Period("202506"),
		},
		{
			name: "first instant of next month",
			now:  time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
			want: Period("202507"),
		},
		{
			name: "non-utc zone normalized to utc",
			now:  time.Date(2025, 7, 1, 5, 0, 0, 0, time.FixedZone("UTC+7", 7*3600)),
			want: Period("202506"),
		},
		{
			name: "single digit month padded",
			now:  time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
			want: Period("202501"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PeriodOf(tt.now))
		})
	}
}

func TestNextReset(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "mid month",
			now:  time.Date(2025, 6, 15, 12, 30, 0, 0, time.UTC),
			want: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "december rolls the year",
			now:  time.Date(2025, 12, 31, 23, 0, 0, 0, time.UTC),
			want: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "first instant still points to next month",
			now:  time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			want: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextReset(tt.now))
		})
	}
}
