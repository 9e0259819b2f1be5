package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	testCases := []struct {
		raw     string
		want    Category
		wantErr bool
	}{
		{raw: "Vegetables", want: CategoryVegetables},
		{raw: " honey ", want: CategoryHoney},
		{raw: "BAKERY", want: CategoryBakery},
		{raw: "Mushrooms", wantErr: true},
		{raw: "ALL", wantErr: true},
		{raw: "", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := ParseCategory(tc.raw)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrUnknownCategory)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseUnit(t *testing.T) {
	for _, u := range Units {
		got, err := ParseUnit(string(u))
		require.NoError(t, err)
		assert.Equal(t, u, got)
	}

	got, err := ParseUnit(" KG ")
	require.NoError(t, err)
	assert.Equal(t, UnitKilogram, got)

	_, err = ParseUnit("bushel")
	assert.ErrorIs(t, err, ErrUnknownUnit)
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "1.50", FormatPrice(1.5))
	assert.Equal(t, "0.00", FormatPrice(0))
	assert.Equal(t, "8.50", FormatPrice(8.5))
}

func TestValidation(t *testing.T) {
	assert.NoError(t, validatePrice(0))
	assert.ErrorIs(t, validatePrice(-0.01), ErrNegativePrice)
	assert.NoError(t, validateScore(1))
	assert.NoError(t, validateScore(5))
	assert.ErrorIs(t, validateScore(0), ErrScoreOutOfRange)
	assert.ErrorIs(t, validateScore(6), ErrScoreOutOfRange)
}
