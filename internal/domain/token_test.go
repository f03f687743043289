package domain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToSmallestUnit(t *testing.T) {
	v := TokenVariant{Symbol: "NEAR", Decimals: 6}

	cases := []struct {
		in   string
		want string
	}{
		{"1", "1000000"},
		{"0.5", "500000"},
		{"100.25", "100250000"},
		{"0.0000001", "0"}, // below precision truncates
		{".25", "250000"},
		{"0", "0"},
	}
	for _, tc := range cases {
		got, err := v.ToSmallestUnit(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got.String(), tc.in)
	}

	_, err := v.ToSmallestUnit("abc")
	assert.Error(t, err)
	_, err = v.ToSmallestUnit("-1")
	assert.Error(t, err)
}

func TestFromSmallestUnit(t *testing.T) {
	v := TokenVariant{Symbol: "NEAR", Decimals: 6}

	assert.Equal(t, "1", v.FromSmallestUnit(big.NewInt(1000000)))
	assert.Equal(t, "0.5", v.FromSmallestUnit(big.NewInt(500000)))
	assert.Equal(t, "0.000001", v.FromSmallestUnit(big.NewInt(1)))
	assert.Equal(t, "0", v.FromSmallestUnit(big.NewInt(0)))

	whole := TokenVariant{Decimals: 0}
	assert.Equal(t, "42", whole.FromSmallestUnit(big.NewInt(42)))
}

func TestConditionValidate(t *testing.T) {
	valid := Condition{Metric: MetricPrice, Token: "NEAR", Operator: OpLess, Value: "3.5"}
	assert.NoError(t, valid.Validate())

	assert.Error(t, Condition{Metric: MetricPrice, Operator: OpLess, Value: "3"}.Validate(), "price needs a token")
	assert.Error(t, Condition{Metric: "volume", Operator: OpLess, Value: "3"}.Validate())
	assert.Error(t, Condition{Metric: MetricBTCDom, Operator: "<=", Value: "3"}.Validate())
	assert.Error(t, Condition{Metric: MetricBTCDom, Operator: OpLess, Value: "x"}.Validate())
	assert.NoError(t, Condition{Metric: MetricBTCDom, Operator: OpGreater, Value: "50"}.Validate())
}

func TestContractID(t *testing.T) {
	v := TokenVariant{AssetID: "nep141:usdt.tether-token.near"}
	assert.Equal(t, "usdt.tether-token.near", v.ContractID())
	assert.Equal(t, "plain", TokenVariant{AssetID: "plain"}.ContractID())
}
