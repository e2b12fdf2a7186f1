package dapplooker

import "strings"

// Characters which break a comma-joined token_tickers query.
const problematicChars = "$,&=?#%+ "

// IsProblematic reports whether symbol contains a character that makes it
// unsafe to batch with others.
func IsProblematic(symbol string) bool {
	return strings.ContainsAny(symbol, problematicChars)
}

// ClassifyTokens partitions symbols into clean and problematic ones,
// preserving their order.
func ClassifyTokens(symbols []string) (clean, problematic []string) {
	for _, symbol := range symbols {
		if IsProblematic(symbol) {
			problematic = append(problematic, symbol)
		} else {
			clean = append(clean, symbol)
		}
	}
	return clean, problematic
}
