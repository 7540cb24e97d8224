package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/creditgw/backend/internal/domain/shared"
)

// ModelPrice defines per-1M token USD costs for one upstream model
type ModelPrice struct {
	Provider      string
	InputPerMTok  decimal.Decimal
	OutputPerMTok decimal.Decimal
}

// Table is the static per-model unit-cost lookup. It is immutable after
// construction; price changes ship as config or a new build.
type Table struct {
	prices map[string]ModelPrice
}

var million = decimal.NewFromInt(1_000_000)

// price builds a ModelPrice from per-1M token USD amounts
func price(provider, input, output string) ModelPrice {
	return ModelPrice{
		Provider:      provider,
		InputPerMTok:  decimal.RequireFromString(input),
		OutputPerMTok: decimal.RequireFromString(output),
	}
}

// defaultPrices is the compiled-in price list (USD per 1M tokens)
var defaultPrices = map[string]ModelPrice{
	"gpt-4o":            price("openai", "2.50", "10.00"),
	"gpt-4o-mini":       price("openai", "0.15", "0.60"),
	"o3-mini":           price("openai", "1.10", "4.40"),
	"claude-sonnet-4-5": price("anthropic", "3.00", "15.00"),
	"claude-haiku-4-5":  price("anthropic", "1.00", "5.00"),
	"gemini-2.5-pro":    price("google", "1.25", "10.00"),
	"gemini-2.5-flash":  price("google", "0.30", "2.50"),
	"deepseek-chat":     price("deepseek", "0.27", "1.10"),
}

// NewTable returns a table with the compiled-in price list
func NewTable() *Table {
	return NewTableWithPrices(nil)
}

// NewTableWithPrices returns a table with the compiled-in list merged with
// overrides (overrides win)
func NewTableWithPrices(overrides map[string]ModelPrice) *Table {
	prices := make(map[string]ModelPrice, len(defaultPrices)+len(overrides))
	for model, p := range defaultPrices {
		prices[model] = p
	}
	for model, p := range overrides {
		prices[model] = p
	}
	return &Table{prices: prices}
}

// Lookup returns the price entry for a model
func (t *Table) Lookup(model string) (ModelPrice, error) {
	p, ok := t.prices[model]
	if !ok {
		return ModelPrice{}, shared.NewDomainError("UNKNOWN_MODEL", "No pricing for model "+model)
	}
	return p, nil
}

// CostUSD computes the raw provider cost of a request in USD
func (t *Table) CostUSD(model string, tokensIn, tokensOut int64) (decimal.Decimal, error) {
	p, err := t.Lookup(model)
	if err != nil {
		return decimal.Zero, err
	}
	inCost := p.InputPerMTok.Mul(decimal.NewFromInt(tokensIn)).Div(million)
	outCost := p.OutputPerMTok.Mul(decimal.NewFromInt(tokensOut)).Div(million)
	return inCost.Add(outCost), nil
}

// WorstCaseCostUSD computes the pre-flight cost ceiling for a request: the
// full prompt plus the declared maximum output priced at output rates.
// The returned value is >= the eventual actual cost whenever actual output
// stays within the declared maximum.
func (t *Table) WorstCaseCostUSD(model string, promptTokens, maxOutputTokens int64) (decimal.Decimal, error) {
	return t.CostUSD(model, promptTokens, maxOutputTokens)
}

// Models returns the set of known model names
func (t *Table) Models() []string {
	models := make([]string, 0, len(t.prices))
	for model := range t.prices {
		models = append(models, model)
	}
	return models
}
