package detection

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	webPrefix    = regexp.MustCompile(`\bwww\.`)
	domainSuffix = regexp.MustCompile(`\.(co\.uk|com|net|org|io|co|us|uk|de|it|fr|es|app|tv)\b`)
)

// noiseTokens are payment-rail words and legal-entity suffixes that say nothing about the merchant.
var noiseTokens = map[string]struct{}{
	"pos": {}, "ach": {}, "debit": {}, "purchase": {}, "ref": {}, "card": {}, "txn": {},
	"inc": {}, "llc": {}, "ltd": {}, "corp": {}, "gmbh": {},
}

// Normalize turns a raw transaction description into a comparable merchant key.
// It is pure: the same input always yields the same key. An empty result means the
// description carries no usable merchant signature.
func Normalize(raw string) string {
	s := strings.ToLower(raw)
	s = webPrefix.ReplaceAllString(s, "")
	s = domainSuffix.ReplaceAllString(s, "")

	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	kept := fields[:0]
	for _, tok := range fields {
		if isNoise(tok) {
			continue
		}
		kept = append(kept, tok)
	}
	return strings.Join(kept, " ")
}

func isNoise(tok string) bool {
	if _, ok := noiseTokens[tok]; ok {
		return true
	}
	digits, letters := 0, 0
	for _, r := range tok {
		if unicode.IsDigit(r) {
			digits++
		} else {
			letters++
		}
	}
	switch {
	case digits >= 4:
		// card tails, reference and store numbers
		return true
	case digits >= 2 && letters > 0 && len(tok) >= 5:
		// mixed reference codes such as 2k3lm4
		return true
	case isMaskedCard(tok):
		return true
	}
	return false
}

// isMaskedCard matches tokens like xxxx or xx12.
func isMaskedCard(tok string) bool {
	if len(tok) < 2 || !strings.HasPrefix(tok, "xx") {
		return false
	}
	rest := strings.TrimLeft(tok, "x")
	for _, r := range rest {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
