package interval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func in2025() func() time.Time {
	return func() time.Time { return date(2025, time.June, 1) }
}

func TestFormatShapes(t *testing.T) {
	cases := []struct {
		name       string
		start, end time.Time
		opts       []Option
		want       string
	}{
		{
			name:  "same month current year",
			start: date(2025, time.January, 5),
			end:   date(2025, time.January, 9),
			want:  "Jan 5 – 9",
		},
		{
			name:  "different month current year",
			start: date(2025, time.January, 5),
			end:   date(2025, time.March, 9),
			want:  "Jan 5 – Mar 9",
		},
		{
			name:  "different years",
			start: date(2024, time.December, 30),
			end:   date(2025, time.January, 2),
			want:  "Dec 30, 2024 – Jan 2, 2025",
		},
		{
			name:  "same month past year",
			start: date(2024, time.January, 5),
			end:   date(2024, time.January, 9),
			want:  "Jan 5 – 9, 2024",
		},
		{
			name:  "different month past year",
			start: date(2023, time.February, 1),
			end:   date(2023, time.April, 30),
			want:  "Feb 1 – Apr 30, 2023",
		},
		{
			name:  "year shown when hiding disabled",
			start: date(2025, time.January, 5),
			end:   date(2025, time.January, 9),
			opts:  []Option{HideCurrentYear(false)},
			want:  "Jan 5 – 9, 2025",
		},
		{
			name:  "single day",
			start: date(2025, time.May, 3),
			end:   date(2025, time.May, 3),
			want:  "May 3 – 3",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts := append([]Option{WithNow(in2025())}, tc.opts...)
			assert.Equal(t, tc.want, Format(tc.start, tc.end, opts...))
		})
	}
}

func TestFormatIsStable(t *testing.T) {
	start, end := date(2024, time.December, 30), date(2025, time.January, 2)
	first := Format(start, end, WithNow(in2025()))
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Format(start, end, WithNow(in2025())))
	}
}

func TestFormatDayFirstLocale(t *testing.T) {
	opts := []Option{WithNow(in2025()), WithLocale(language.Indonesian)}

	assert.Equal(t, "5 – 9 Jan", Format(date(2025, time.January, 5), date(2025, time.January, 9), opts...))
	assert.Equal(t, "5 Jan – 9 Mar", Format(date(2025, time.January, 5), date(2025, time.March, 9), opts...))
	assert.Equal(t, "30 Des 2024 – 2 Jan 2025", Format(date(2024, time.December, 30), date(2025, time.January, 2), opts...))
	assert.Equal(t, "5 – 9 Mei 2024", Format(date(2024, time.May, 5), date(2024, time.May, 9), opts...))
}

func TestFormatUnsupportedLocaleFallsBackToEnglish(t *testing.T) {
	out := Format(date(2025, time.January, 5), date(2025, time.January, 9),
		WithNow(in2025()), WithLocale(language.Japanese))
	assert.Equal(t, "Jan 5 – 9", out)
}

func TestParseLocale(t *testing.T) {
	assert.Equal(t, language.AmericanEnglish, ParseLocale(""))
	assert.Equal(t, language.AmericanEnglish, ParseLocale("not a tag!"))
	assert.Equal(t, language.MustParse("de-DE"), ParseLocale("de-DE"))
}

func TestFormatDate(t *testing.T) {
	v := date(2025, time.February, 7)
	assert.Equal(t, "Feb 7, 2025", FormatDate(v))
	assert.Equal(t, "7 Feb 2025", FormatDate(v, WithLocale(language.Indonesian)))
}
