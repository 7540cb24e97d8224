package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupKnownModel(t *testing.T) {
	table := NewTable()

	p, err := table.Lookup("gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Provider)
}

func TestLookupUnknownModel(t *testing.T) {
	table := NewTable()

	_, err := table.Lookup("not-a-model")
	assert.Error(t, err)
}

func TestCostUSD(t *testing.T) {
	table := NewTableWithPrices(map[string]ModelPrice{
		"test-model": price("test", "2.00", "10.00"),
	})

	// 500k input at $2/M + 100k output at $10/M = 1.00 + 1.00
	cost, err := table.CostUSD("test-model", 500_000, 100_000)
	require.NoError(t, err)
	assert.True(t, cost.Equal(decimal.NewFromInt(2)), "got %s", cost)
}

func TestWorstCaseCostDominatesActual(t *testing.T) {
	table := NewTable()

	worst, err := table.WorstCaseCostUSD("gpt-4o", 1000, 4096)
	require.NoError(t, err)

	actual, err := table.CostUSD("gpt-4o", 1000, 512)
	require.NoError(t, err)

	assert.True(t, actual.LessThanOrEqual(worst))
}

func TestOverridesWin(t *testing.T) {
	table := NewTableWithPrices(map[string]ModelPrice{
		"gpt-4o": price("openai", "1.00", "1.00"),
	})

	cost, err := table.CostUSD("gpt-4o", 1_000_000, 0)
	require.NoError(t, err)
	assert.True(t, cost.Equal(decimal.NewFromInt(1)))
}
