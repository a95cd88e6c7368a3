// Package money renders integer minor-unit amounts for display.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

const (
	defaultScale     = 2
	defaultFractions = 2
)

var DefaultLocale = language.AmericanEnglish

// languages that place the currency symbol after the number.
var suffixSymbol = map[string]struct{}{
	"de": {},
	"fr": {},
	"es": {},
}

type options struct {
	locale    language.Tag
	fractions int
}

type Option func(*options)

// WithLocale selects grouping, decimal and symbol conventions.
func WithLocale(tag language.Tag) Option {
	return func(o *options) {
		o.locale = tag
	}
}

// WithFractionDigits fixes the number of fraction digits shown.
func WithFractionDigits(n int) Option {
	return func(o *options) {
		if n < 0 {
			n = 0
		}
		o.fractions = n
	}
}

// FractionDigits applies the display rounding rule: amounts that are an exact
// multiple of 100 minor units show no fraction digits, everything else shows two.
func FractionDigits(amount int64) int {
	if amount%100 == 0 {
		return 0
	}
	return 2
}

// ToMajor converts minor units to a major-unit decimal using the currency's
// standard scale. Unknown currencies use a scale of 2.
func ToMajor(amount int64, currencyCode string) decimal.Decimal {
	scale := defaultScale
	if unit, err := currency.ParseISO(strings.TrimSpace(currencyCode)); err == nil {
		scale, _ = currency.Standard.Rounding(unit)
	}
	return decimal.New(amount, -int32(scale))
}

// Format renders amount (minor units) in currencyCode.
func Format(amount int64, currencyCode string, opts ...Option) string {
	o := options{locale: DefaultLocale, fractions: defaultFractions}
	for _, opt := range opts {
		opt(&o)
	}

	major := ToMajor(amount, currencyCode)
	negative := major.IsNegative()

	p := message.NewPrinter(o.locale)
	value := localize(major.Abs().StringFixed(int32(o.fractions)), separatorsFor(p))
	symbol := symbolFor(p, currencyCode)

	var b strings.Builder
	if negative {
		b.WriteByte('-')
	}
	if isSuffixLocale(o.locale) {
		b.WriteString(value)
		b.WriteString(" ")
		b.WriteString(symbol)
		return b.String()
	}
	b.WriteString(symbol)
	b.WriteString(value)
	return b.String()
}

// FormatRounded renders amount with the per-amount fraction digit rule.
func FormatRounded(amount int64, currencyCode string, opts ...Option) string {
	opts = append(opts, WithFractionDigits(FractionDigits(amount)))
	return Format(amount, currencyCode, opts...)
}

type separators struct {
	group    string
	decimal  string
	minGroup int
}

var defaultSeparators = separators{group: ",", decimal: ".", minGroup: 4}

// separatorsFor reads the locale's grouping and decimal marks off sample numbers,
// since x/text only formats float64 and amounts must stay exact.
func separatorsFor(p *message.Printer) separators {
	sample := p.Sprint(number.Decimal(12345.5, number.Scale(1)))
	i := strings.Index(sample, "345")
	j := strings.LastIndex(sample, "5")
	if !strings.HasPrefix(sample, "12") || i < 2 || j <= i+2 {
		return defaultSeparators
	}
	sep := separators{group: sample[2:i], decimal: sample[i+3 : j], minGroup: 4}
	if sep.decimal == "" {
		return defaultSeparators
	}
	if sep.group != "" && !strings.Contains(p.Sprint(number.Decimal(1234, number.Scale(0))), sep.group) {
		sep.minGroup = 5
	}
	return sep
}

// localize regroups a plain "1234567.89" string with the locale's marks.
func localize(plain string, sep separators) string {
	whole, frac, _ := strings.Cut(plain, ".")
	if sep.group != "" && len(whole) >= sep.minGroup {
		var b strings.Builder
		lead := len(whole) % 3
		if lead > 0 {
			b.WriteString(whole[:lead])
		}
		for k := lead; k < len(whole); k += 3 {
			if b.Len() > 0 {
				b.WriteString(sep.group)
			}
			b.WriteString(whole[k : k+3])
		}
		whole = b.String()
	}
	if frac == "" {
		return whole
	}
	return whole + sep.decimal + frac
}

func symbolFor(p *message.Printer, currencyCode string) string {
	code := strings.ToUpper(strings.TrimSpace(currencyCode))
	unit, err := currency.ParseISO(code)
	if err != nil {
		if code == "" {
			return ""
		}
		return code + " "
	}
	return p.Sprint(currency.NarrowSymbol(unit))
}

func isSuffixLocale(tag language.Tag) bool {
	base, _ := tag.Base()
	_, ok := suffixSymbol[base.String()]
	return ok
}
