package chargepreview

import (
	"strings"
	"time"

	"github.com/samber/lo"
	billingdomain "github.com/smallbiznis/chargeview/internal/billingapi/domain"
	"github.com/smallbiznis/chargeview/internal/interval"
	"github.com/smallbiznis/chargeview/internal/loadstate"
	"github.com/smallbiznis/chargeview/internal/money"
	"golang.org/x/text/language"
)

const (
	missingDate    = "N/A"
	loadingValue   = "Loading…"
	canceledValue  = "Canceled"
	defaultProduct = "Subscription"
)

type RowKind string

const (
	RowProduct  RowKind = "product"
	RowSection  RowKind = "section"
	RowMeter    RowKind = "meter"
	RowSubtotal RowKind = "subtotal"
	RowDiscount RowKind = "discount"
	RowTax      RowKind = "tax"
	RowTotal    RowKind = "total"
	RowLoading  RowKind = "loading"
)

type RowStyle string

const (
	StyleDefault RowStyle = "default"
	StyleMuted   RowStyle = "muted"
	StyleHeading RowStyle = "heading"
	StyleStrong  RowStyle = "strong"
)

// Row is one line of the card. Amount is nil for rows without a figure.
type Row struct {
	Kind           RowKind  `json:"kind"`
	Label          string   `json:"label"`
	Amount         *int64   `json:"amount,omitempty"`
	FractionDigits int      `json:"fraction_digits"`
	Value          string   `json:"value"`
	Style          RowStyle `json:"style"`
}

type Header struct {
	Title          string     `json:"title"`
	DateLabel      string     `json:"date_label"`
	ChargeDate     *time.Time `json:"charge_date,omitempty"`
	ChargeDateText string     `json:"charge_date_text"`
}

// Card is the assembled decision for one subscription.
type Card struct {
	SubscriptionID string           `json:"subscription_id"`
	State          DisplayState     `json:"state"`
	HiddenReason   HiddenReason     `json:"hidden_reason,omitempty"`
	Currency       string           `json:"currency,omitempty"`
	Header         *Header          `json:"header,omitempty"`
	Rows           []Row            `json:"rows,omitempty"`
	Footnote       string           `json:"footnote,omitempty"`
	Loading        bool             `json:"loading"`
	Preview        loadstate.Status `json:"preview_status"`
}

func (c Card) Visible() bool {
	return c.State != DisplayHidden
}

type options struct {
	locale language.Tag
}

type Option func(*options)

// WithLocale controls amount and date rendering.
func WithLocale(tag language.Tag) Option {
	return func(o *options) {
		o.locale = tag
	}
}

// Assemble builds the card for sub from whatever the preview fetch has produced so far.
//
// Product and meter rows come from the subscription and are always present on a
// visible card. Preview rows appear only once the preview is ready; while it is
// loading a single placeholder total is shown, and a failed or empty preview
// contributes nothing.
func Assemble(sub billingdomain.Subscription, preview loadstate.State[billingdomain.ChargePreview], opts ...Option) Card {
	o := options{locale: money.DefaultLocale}
	for _, opt := range opts {
		opt(&o)
	}

	state, reason := Decide(sub)
	card := Card{
		SubscriptionID: sub.ID,
		State:          state,
		HiddenReason:   reason,
		Currency:       strings.ToUpper(sub.Currency),
		Preview:        preview.Status(),
	}
	if state == DisplayHidden {
		return card
	}

	cfg := displayStates[state]
	hasMeters := sub.HasMeters()
	b := rowBuilder{currency: card.Currency, locale: o.locale}

	card.Header = header(sub, cfg, o.locale)

	product := lo.Ternary(sub.Product.Name != "", sub.Product.Name, defaultProduct)
	if cfg.productCanceled {
		card.Rows = append(card.Rows, Row{Kind: RowProduct, Label: product, Value: canceledValue, Style: StyleMuted})
	} else {
		card.Rows = append(card.Rows, b.amount(RowProduct, product, sub.Amount, StyleDefault))
	}

	if hasMeters {
		card.Rows = append(card.Rows, Row{Kind: RowSection, Label: "Metered Charges", Style: StyleHeading})
		card.Rows = append(card.Rows, lo.Map(sub.Meters, func(m billingdomain.SubscriptionMeter, _ int) Row {
			label := lo.Ternary(m.Meter.Name != "", m.Meter.Name, m.MeterID)
			return b.amount(RowMeter, label, m.Amount, StyleDefault)
		})...)
	}

	switch preview.Status() {
	case loadstate.StatusLoading:
		card.Loading = true
		card.Rows = append(card.Rows, Row{Kind: RowLoading, Label: "Total", Value: loadingValue, Style: StyleMuted})
	case loadstate.StatusReady:
		p, _ := preview.Data()
		card.Rows = append(card.Rows, b.previewRows(p, totalLabel(cfg, hasMeters))...)
		card.Footnote = cfg.footnote(hasMeters)
	}
	return card
}

func header(sub billingdomain.Subscription, cfg stateConfig, locale language.Tag) *Header {
	h := &Header{
		Title:          cfg.title,
		DateLabel:      cfg.dateLabel,
		ChargeDate:     cfg.chargeDate(sub),
		ChargeDateText: missingDate,
	}
	if h.ChargeDate != nil {
		h.ChargeDateText = interval.FormatDate(*h.ChargeDate, interval.WithLocale(locale))
	}
	return h
}

func totalLabel(cfg stateConfig, hasMeters bool) string {
	parts := []string{cfg.totalLabel}
	if hasMeters {
		parts = append([]string{"Estimated"}, parts...)
	}
	return strings.Join(parts, " ")
}

type rowBuilder struct {
	currency string
	locale   language.Tag
}

func (b rowBuilder) amount(kind RowKind, label string, amount int64, style RowStyle) Row {
	return Row{
		Kind:           kind,
		Label:          label,
		Amount:         lo.ToPtr(amount),
		FractionDigits: money.FractionDigits(amount),
		Value:          money.FormatRounded(amount, b.currency, money.WithLocale(b.locale)),
		Style:          style,
	}
}

func (b rowBuilder) previewRows(p billingdomain.ChargePreview, total string) []Row {
	var rows []Row
	if p.DiscountAmount > 0 || p.TaxAmount > 0 {
		rows = append(rows, b.amount(RowSubtotal, "Subtotal", p.SubtotalAmount, StyleMuted))
	}
	if p.DiscountAmount > 0 {
		rows = append(rows, b.amount(RowDiscount, "Discount", -p.DiscountAmount, StyleMuted))
	}
	if p.TaxAmount > 0 {
		rows = append(rows, b.amount(RowTax, "Taxes", p.TaxAmount, StyleMuted))
	}
	return append(rows, b.amount(RowTotal, total, p.TotalAmount, StyleStrong))
}
