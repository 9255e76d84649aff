package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func price(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func TestProductRecord_HasDiscount(t *testing.T) {
	tests := []struct {
		name     string
		record   ProductRecord
		expected bool
	}{
		{"no prices", ProductRecord{}, false},
		{"only current", ProductRecord{CurrentPrice: price("99")}, false},
		{"original above current", ProductRecord{CurrentPrice: price("79.00"), OriginalPrice: price("99.00")}, true},
		{"original below current", ProductRecord{CurrentPrice: price("99.00"), OriginalPrice: price("79.00")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.record.HasDiscount())
		})
	}
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "N/A", FormatPrice(decimal.NullDecimal{}))
	assert.Equal(t, "$199.00", FormatPrice(price("199")))
	assert.Equal(t, "$12.35", FormatPrice(price("12.345")))
}

func TestCrawlState(t *testing.T) {
	unbounded := NewCrawlState(0)
	assert.Equal(t, 1, unbounded.CurrentPage)
	assert.False(t, unbounded.Bounded())
	assert.False(t, unbounded.AtLimit())

	negative := NewCrawlState(-3)
	assert.False(t, negative.Bounded())

	bounded := NewCrawlState(2)
	assert.True(t, bounded.Bounded())
	assert.False(t, bounded.AtLimit())
	bounded.CurrentPage = 2
	assert.True(t, bounded.AtLimit())
}

func TestPageResult_Empty(t *testing.T) {
	assert.True(t, PageResult{}.Empty())
	assert.False(t, PageResult{Records: []ProductRecord{{Name: "Drill"}}}.Empty())
}
