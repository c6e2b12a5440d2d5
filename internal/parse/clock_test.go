package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClock(t *testing.T) {
	testCases := []struct {
		name      string
		raw       string
		expected  int
		expectErr bool
	}{
		{name: "Midday", raw: "12:00", expected: 720},
		{name: "Single digit hour", raw: "8:05", expected: 485},
		{name: "Surrounding spaces", raw: " 07:30 ", expected: 450},
		{name: "Midnight", raw: "00:00", expected: 0},
		{name: "Hour out of range", raw: "24:00", expectErr: true},
		{name: "Minute out of range", raw: "10:60", expectErr: true},
		{name: "Missing colon", raw: "1200", expectErr: true},
		{name: "Empty", raw: "", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Clock(tc.raw)
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "14:30", FormatClock(870))
	assert.Equal(t, "00:00", FormatClock(-5))
	assert.Equal(t, "24:15", FormatClock(1455), "no wrap past midnight")
}

func TestDate(t *testing.T) {
	d, err := Date("2026-02-06")
	assert.NoError(t, err)
	assert.Equal(t, "Friday", d.Weekday().String())

	_, err = Date("06.02.2026")
	assert.Error(t, err)
}

func TestNumber(t *testing.T) {
	n, err := Number("T-2026-014")
	assert.NoError(t, err)
	assert.Equal(t, ParsedNumber{Year: 2026, Seq: 14}, n)

	n, err = Number("T-2026-1200")
	assert.NoError(t, err)
	assert.Equal(t, 1200, n.Seq)

	_, err = Number("E-2026-001")
	assert.Error(t, err)

	assert.Equal(t, "T-2026-007", FormatNumber(2026, 7))
	assert.Equal(t, "T-2026-1001", FormatNumber(2026, 1001))
}
