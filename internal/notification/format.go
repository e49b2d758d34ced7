// StreamSync - Live Stream Overlay Notification Pipeline
// Copyright 2026 git-blame-dev
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/git-blame-dev/stream-sync-sub008

package notification

import (
	"fmt"
	"strconv"
	"strings"
)

// currencySymbols maps ISO codes to display symbols. A symbol is used only
// when it is unique within this table; ambiguous symbols fall back to the
// ISO code (JPY and CNY share the yen sign).
var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"CNY": "¥",
	"KRW": "₩",
	"INR": "₹",
	"BRL": "R$",
}

// currencyWords maps platform virtual currencies to their word forms.
var currencyWords = map[string]string{
	"coins":    "coins",
	"bits":     "bits",
	"diamonds": "diamonds",
}

// zeroDecimalCurrencies render without fractional digits.
var zeroDecimalCurrencies = map[string]bool{
	"JPY": true,
	"KRW": true,
}

// invariantPlurals are word currencies whose singular equals the plural
// (yen, yuan, won).
var invariantPlurals = map[string]bool{
	"yen":  true,
	"yuan": true,
	"won":  true,
}

// ambiguousSymbols holds symbols shared by more than one code in
// currencySymbols, computed once.
var ambiguousSymbols = func() map[string]bool {
	counts := make(map[string]int)
	for _, sym := range currencySymbols {
		counts[sym]++
	}
	out := make(map[string]bool)
	for sym, n := range counts {
		if n > 1 {
			out[sym] = true
		}
	}
	return out
}()

// Singularize returns the singular form of a unit word, preserving case so
// cheermote prefixes like "ShowLove Bits" keep their capitalization.
// Invariant words (yen, yuan, won) are returned unchanged.
func Singularize(word string) string {
	lower := strings.ToLower(word)
	if invariantPlurals[lower] {
		return word
	}
	if strings.HasSuffix(lower, "s") && len(word) > 1 {
		return word[:len(word)-1]
	}
	return word
}

// PluralizeUnit returns the unit word matching the count: singular for
// exactly 1, plural otherwise.
func PluralizeUnit(n float64, word string) string {
	if n == 1 {
		return Singularize(word)
	}
	if invariantPlurals[strings.ToLower(word)] {
		return word
	}
	return word
}

// FormatAmount renders a monetary amount with its currency. Word
// currencies (coins, bits) render as "50 coins" / "1 bit"; ISO currencies
// use the symbol when unique ("$25.00") and the code otherwise
// ("500 JPY"), with zero-decimal currencies rendered without cents.
func FormatAmount(amount float64, currency string) string {
	lower := strings.ToLower(currency)
	if word, ok := currencyWords[lower]; ok {
		return trimTrailingZeros(amount) + " " + PluralizeUnit(amount, word)
	}

	code := strings.ToUpper(currency)
	decimals := 2
	if zeroDecimalCurrencies[code] {
		decimals = 0
	}
	rendered := strconv.FormatFloat(amount, 'f', decimals, 64)

	sym, ok := currencySymbols[code]
	if ok && !ambiguousSymbols[sym] {
		return sym + rendered
	}
	if code == "" {
		return rendered
	}
	return rendered + " " + code
}

// trimTrailingZeros renders a float without unnecessary fractional digits.
func trimTrailingZeros(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// FormatCoins renders a TikTok coin amount: "50 coins", "1 coin".
func FormatCoins(n float64) string {
	return FormatAmount(n, "coins")
}

// FormatViewerCount renders a raid viewer count: "5 viewers", "1 viewer",
// "0 viewers".
func FormatViewerCount(n int) string {
	if n == 1 {
		return "1 viewer"
	}
	return strconv.Itoa(n) + " viewers"
}

// FormatMonths renders a subscription duration: "3 months", "1 month".
func FormatMonths(n int) string {
	if n == 1 {
		return "1 month"
	}
	return strconv.Itoa(n) + " months"
}

// FormatGiftCount renders a speech-friendly gift count: "a Rose",
// "5 Roses".
func FormatGiftCount(n int, giftName string) string {
	if n == 1 {
		return "a " + giftName
	}
	return strconv.Itoa(n) + " " + pluralizeGiftName(giftName)
}

// pluralizeGiftName naively pluralizes a gift name for speech. Names that
// already end in s (and multi-word products like "Super Chat") are left
// unchanged to avoid mangling branded names.
func pluralizeGiftName(name string) string {
	if name == "" || strings.HasSuffix(strings.ToLower(name), "s") || strings.Contains(name, " ") {
		return name
	}
	return name + "s"
}

// FormatGiftCountForDisplay renders the compact overlay form:
// "Rose" for n=1, "Rose x 5" for n>1, "Rose x 0" for n=0.
func FormatGiftCountForDisplay(n int, giftName string) string {
	if n == 1 {
		return giftName
	}
	return fmt.Sprintf("%s x %d", giftName, n)
}

// TierSuffix renders the subscription tier label. Tier 1 is the default
// and renders empty; higher tiers render " (Tier N)". Twitch wire tiers
// ("1000", "2000", "3000") are normalized.
func TierSuffix(tier string) string {
	n := parseTier(tier)
	if n <= 1 {
		return ""
	}
	return fmt.Sprintf(" (Tier %d)", n)
}

// parseTier normalizes tier identifiers. Returns 0 for empty/unparseable.
func parseTier(tier string) int {
	tier = strings.TrimSpace(tier)
	switch tier {
	case "":
		return 0
	case "1000", "Prime", "prime":
		return 1
	case "2000":
		return 2
	case "3000":
		return 3
	}
	if n, err := strconv.Atoi(tier); err == nil && n > 0 {
		return n
	}
	return 0
}
