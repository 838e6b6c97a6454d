package amount_test

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stake-plus/multisig-relay/src/amount"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToSmallestUnit(t *testing.T) {
	tests := []struct {
		in       string
		decimals int32
		want     string
	}{
		{"10.5", 12, "10500000000000"},
		{"1", 10, "10000000000"},
		{"0.0000000001", 10, "1"},
		{" 2.50 ", 1, "25"},
		{"123456789.123456789012345678", 18, "123456789123456789012345678"},
		{"7", 0, "7"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := amount.ToSmallestUnit(tt.in, tt.decimals)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestToSmallestUnitRejects(t *testing.T) {
	tests := []struct {
		in       string
		decimals int32
	}{
		{"", 10},
		{"  ", 10},
		{"0", 10},
		{"0.000", 10},
		{"-1", 10},
		{"NaN", 10},
		{"abc", 10},
		{"1,000", 10},
		{"1.23", 1},
		{"0.1", 0},
		{"1", -1},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, err := amount.ToSmallestUnit(tt.in, tt.decimals)
			assert.ErrorIs(t, err, amount.ErrInvalidAmount)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	for _, in := range []string{"10.5", "1", "0.000000000001", "999999999.999999999999", "42.1"} {
		v, err := amount.ToSmallestUnit(in, 12)
		require.NoError(t, err)
		assert.Equal(t, in, amount.FromSmallestUnit(v, 12))
	}
}

func TestFromSmallestUnit(t *testing.T) {
	assert.Equal(t, "10.5", amount.FromSmallestUnit(big.NewInt(10500000000000), 12))
	assert.Equal(t, "0", amount.FromSmallestUnit(nil, 12))
	assert.Equal(t, "0.000000000001", amount.FromSmallestUnit(big.NewInt(1), 12))
}

func TestFormat(t *testing.T) {
	v, _ := new(big.Int).SetString("1234567891234567", 10)

	assert.Equal(t, "123,456.7891", amount.Format(v, 10, 4))
	assert.Equal(t, "123,456.78", amount.Format(v, 10, 2))
	assert.Equal(t, "123,456", amount.Format(v, 10, 0))
	assert.Equal(t, "0.00", amount.Format(big.NewInt(9), 12, 2))
	assert.Equal(t, "1.99", amount.Format(big.NewInt(1999), 3, 2))
	assert.Equal(t, "-1,000.50", amount.Format(big.NewInt(-100050), 2, 2))
	assert.Equal(t, "0.000", amount.Format(nil, 10, 3))
}

func TestFormatString(t *testing.T) {
	assert.Equal(t, "10.50", amount.FormatString("10500000000000", 12, 2))
	assert.Equal(t, "0.00", amount.FormatString("garbage", 12, 2))
}

func TestUSDValue(t *testing.T) {
	v, _ := amount.ToSmallestUnit("10.5", 10)
	assert.Equal(t, "63.00", amount.USDValue(v, 10, decimal.NewFromInt(6)))
	assert.Equal(t, "0.00", amount.USDValue(nil, 10, decimal.NewFromInt(6)))
}
