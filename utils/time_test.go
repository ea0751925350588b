package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFinancialYearOf(t *testing.T) {
	tests := []struct {
		name     string
		date     time.Time
		expected string
	}{
		{"StartOfYear", time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), "2025-2026"},
		{"EndOfYear", time.Date(2026, 6, 30, 23, 59, 59, 0, time.UTC), "2025-2026"},
		{"MidFirstHalf", time.Date(2025, 10, 15, 12, 0, 0, 0, time.UTC), "2025-2026"},
		{"MidSecondHalf", time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), "2025-2026"},
		{"JuneBelongsToPriorYear", time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), "2024-2025"},
		{"JulyRollsOver", time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), "2026-2027"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FinancialYearOf(tt.date))
		})
	}
}

func TestCurrentFinancialYear(t *testing.T) {
	label := CurrentFinancialYear()
	assert.Len(t, label, 9)
	assert.Equal(t, byte('-'), label[4])
}

func TestUTCNow(t *testing.T) {
	now := UTCNow()
	assert.Equal(t, time.UTC, now.Location())
}

func TestIsExpired(t *testing.T) {
	assert.True(t, IsExpired(UTCNow().Add(-time.Minute)))
	assert.False(t, IsExpired(UTCNow().Add(time.Minute)))
	assert.False(t, IsExpiredPtr(nil))
}
