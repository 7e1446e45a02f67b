package model

// Pricing defines USD cost per 1M tokens for input/output plus a flat per-image rate.
type Pricing struct {
	InputPerM  float64
	OutputPerM float64
	PerImage   float64
}

// defaultPricing provides hardcoded USD pricing per 1M tokens (text tokens).
var defaultPricing = map[string]Pricing{
	// Source: Gemini pricing (Standard; text). Adjust for audio/image if needed.
	"gemini-2.5-flash":      {InputPerM: 0.30, OutputPerM: 2.50},
	"gemini-2.5-flash-lite": {InputPerM: 0.10, OutputPerM: 0.40},
}

// defaultImagePrice is the flat USD rate per generated image.
const defaultImagePrice = 0.04

// ResolvePricing returns hardcoded pricing for a model.
func ResolvePricing(model string) Pricing {
	p, ok := defaultPricing[model]
	if !ok {
		// fallback to zero token pricing if unknown
		p = Pricing{}
	}
	p.PerImage = defaultImagePrice
	return p
}

// ComputeCost converts running usage totals to USD. Cost is always recomputed
// from the totals, never accumulated incrementally, so it cannot drift.
func ComputeCost(totals UsageTotals, p Pricing) (inputCost, outputCost, imageCost, total float64) {
	inputCost = p.InputPerM * float64(totals.InputTokens) / 1_000_000.0
	outputCost = p.OutputPerM * float64(totals.OutputTokens) / 1_000_000.0
	imageCost = p.PerImage * float64(totals.ImagesGenerated)
	total = inputCost + outputCost + imageCost
	return
}
