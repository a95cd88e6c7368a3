// Package interval collapses a start/end pair into the shortest readable date range.
package interval

import (
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
)

const separator = " – "

type monthTable struct {
	months   [12]string
	dayFirst bool
}

var tables = map[language.Tag]monthTable{
	language.English: {
		months: [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"},
	},
	language.German: {
		months:   [12]string{"Jan.", "Feb.", "März", "Apr.", "Mai", "Juni", "Juli", "Aug.", "Sept.", "Okt.", "Nov.", "Dez."},
		dayFirst: true,
	},
	language.French: {
		months:   [12]string{"janv.", "févr.", "mars", "avr.", "mai", "juin", "juil.", "août", "sept.", "oct.", "nov.", "déc."},
		dayFirst: true,
	},
	language.Spanish: {
		months:   [12]string{"ene", "feb", "mar", "abr", "may", "jun", "jul", "ago", "sept", "oct", "nov", "dic"},
		dayFirst: true,
	},
	language.Indonesian: {
		months:   [12]string{"Jan", "Feb", "Mar", "Apr", "Mei", "Jun", "Jul", "Agu", "Sep", "Okt", "Nov", "Des"},
		dayFirst: true,
	},
	language.Dutch: {
		months:   [12]string{"jan", "feb", "mrt", "apr", "mei", "jun", "jul", "aug", "sep", "okt", "nov", "dec"},
		dayFirst: true,
	},
}

var (
	supported = []language.Tag{
		language.English, // first entry is the matcher fallback
		language.German,
		language.French,
		language.Spanish,
		language.Indonesian,
		language.Dutch,
	}
	matcher = language.NewMatcher(supported)
)

type options struct {
	locale          language.Tag
	hideCurrentYear bool
	now             func() time.Time
}

type Option func(*options)

// WithLocale picks the month names and day/month order. Unsupported locales fall back to English.
func WithLocale(tag language.Tag) Option {
	return func(o *options) {
		o.locale = tag
	}
}

// HideCurrentYear controls year elision when both dates fall in the current year. Defaults to true.
func HideCurrentYear(hide bool) Option {
	return func(o *options) {
		o.hideCurrentYear = hide
	}
}

// WithNow sets the clock used to determine the current year.
func WithNow(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// ParseLocale parses a BCP 47 tag, returning English for empty or invalid input.
func ParseLocale(raw string) language.Tag {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return language.AmericanEnglish
	}
	tag, err := language.Parse(raw)
	if err != nil {
		return language.AmericanEnglish
	}
	return tag
}

// Format renders [start, end] using calendar fields of each value's own location.
//
//	same year and month:  "Jan 5 – 9, 2025"
//	same year:            "Jan 5 – Mar 9, 2025"
//	different years:      "Dec 30, 2024 – Jan 2, 2025"
//
// The trailing year of the first two shapes is dropped when HideCurrentYear is
// set and both dates fall in the current year.
func Format(start, end time.Time, opts ...Option) string {
	o := options{
		locale:          language.AmericanEnglish,
		hideCurrentYear: true,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	table := lookup(o.locale)

	startYear, endYear := start.Year(), end.Year()
	currentYear := o.now().Year()
	showYear := !(o.hideCurrentYear && startYear == endYear && endYear == currentYear)

	switch {
	case startYear == endYear && start.Month() == end.Month():
		return table.sameMonth(start, end, showYear)
	case startYear == endYear:
		return table.sameYear(start, end, showYear)
	default:
		return table.dayMonthYear(start) + separator + table.dayMonthYear(end)
	}
}

func lookup(tag language.Tag) monthTable {
	_, idx, _ := matcher.Match(tag)
	return tables[supported[idx]]
}

func (t monthTable) month(v time.Time) string {
	return t.months[v.Month()-1]
}

func (t monthTable) dayMonth(v time.Time) string {
	day := strconv.Itoa(v.Day())
	if t.dayFirst {
		return day + " " + t.month(v)
	}
	return t.month(v) + " " + day
}

func (t monthTable) dayMonthYear(v time.Time) string {
	year := strconv.Itoa(v.Year())
	if t.dayFirst {
		return t.dayMonth(v) + " " + year
	}
	return t.dayMonth(v) + ", " + year
}

func (t monthTable) withYear(out string, v time.Time, show bool) string {
	if !show {
		return out
	}
	if t.dayFirst {
		return out + " " + strconv.Itoa(v.Year())
	}
	return out + ", " + strconv.Itoa(v.Year())
}

func (t monthTable) sameMonth(start, end time.Time, showYear bool) string {
	var out string
	if t.dayFirst {
		out = strconv.Itoa(start.Day()) + separator + t.dayMonth(end)
	} else {
		out = t.dayMonth(start) + separator + strconv.Itoa(end.Day())
	}
	return t.withYear(out, end, showYear)
}

func (t monthTable) sameYear(start, end time.Time, showYear bool) string {
	return t.withYear(t.dayMonth(start)+separator+t.dayMonth(end), end, showYear)
}

// FormatDate renders a single date in medium style, "Jan 2, 2025" or "2 Jan 2025".
// The year is always shown.
func FormatDate(v time.Time, opts ...Option) string {
	o := options{locale: language.AmericanEnglish}
	for _, opt := range opts {
		opt(&o)
	}
	return lookup(o.locale).dayMonthYear(v)
}
