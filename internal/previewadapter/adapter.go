// Package previewadapter renders rule engine evaluations into display-ready
// figures. It is purely a formatting boundary: the exact decimal figures
// come straight from the evaluation so the preview can never disagree with
// the values submitted to the ledger.
package previewadapter

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/streampanel/creditgate/internal/domain"
	"github.com/streampanel/creditgate/pkg/moneypkg"
)

// Preview holds the user-facing projection of an evaluation. The *After
// fields carry the exact decimal figures; the *Display fields are
// locale-formatted with the currency symbol.
type Preview struct {
	Allowed                   bool   `json:"allowed"`
	Reason                    string `json:"reason,omitempty"`
	SenderBalanceAfter        string `json:"sender_balance_after"`
	TargetBalanceAfter        string `json:"target_balance_after"`
	SenderBalanceAfterDisplay string `json:"sender_balance_after_display"`
	TargetBalanceAfterDisplay string `json:"target_balance_after_display"`
}

// Adapter formats monetary figures for one locale and currency.
type Adapter struct {
	printer *message.Printer
	symbol  string
}

// New returns an adapter for the given BCP 47 locale and currency code.
// Unparsable locales fall back to English.
func New(locale, currency string) *Adapter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}

	return &Adapter{
		printer: message.NewPrinter(tag),
		symbol:  moneypkg.Symbol(currency),
	}
}

// Format projects the evaluation into display-ready figures.
func (a *Adapter) Format(eval domain.Evaluation) Preview {
	return Preview{
		Allowed:                   eval.Allowed,
		Reason:                    eval.Reason,
		SenderBalanceAfter:        eval.SenderBalanceAfter.String(),
		TargetBalanceAfter:        eval.TargetBalanceAfter.String(),
		SenderBalanceAfterDisplay: a.Money(eval.SenderBalanceAfter),
		TargetBalanceAfterDisplay: a.Money(eval.TargetBalanceAfter),
	}
}

// Money renders a decimal with the currency symbol, localized thousands
// separators and two fraction digits. Display only: rounding here never
// feeds back into any arithmetic.
func (a *Adapter) Money(d decimal.Decimal) string {
	r := d.Round(2)

	// The localized printer takes a float64. When the figure does not
	// survive the float64 round trip, exact digits beat locale grouping.
	f, _ := r.Float64()
	if !decimal.NewFromFloat(f).Round(2).Equal(r) {
		return a.symbol + r.StringFixed(2)
	}

	return a.printer.Sprintf("%s%v", a.symbol, number.Decimal(f, number.Scale(2)))
}
