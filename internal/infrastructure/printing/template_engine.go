package printing

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"maps"
	"strings"
	"time"

	invoicingapp "github.com/chantier/backend/internal/application/invoicing"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var _ invoicingapp.TemplateRenderer = (*TemplateEngine)(nil)

// TemplateEngine renders invoice templates with html/template.
// Formatting helpers follow the configured locale and currency.
type TemplateEngine struct {
	locale     language.Tag
	currency   currency.Unit
	printer    *message.Printer
	decimalSep string
	dateLayout string
	funcMap    template.FuncMap
}

// TemplateEngineOption configures the template engine
type TemplateEngineOption func(*TemplateEngine)

// WithLocale sets the language used for numbers, dates and labels
func WithLocale(tag language.Tag) TemplateEngineOption {
	return func(e *TemplateEngine) {
		e.locale = tag
	}
}

// WithCurrency sets the currency printed by formatMoney
func WithCurrency(unit currency.Unit) TemplateEngineOption {
	return func(e *TemplateEngine) {
		e.currency = unit
	}
}

// WithDateLayout overrides the locale's date layout
func WithDateLayout(layout string) TemplateEngineOption {
	return func(e *TemplateEngine) {
		e.dateLayout = layout
	}
}

// NewTemplateEngine creates a template engine, French and EUR unless configured
func NewTemplateEngine(opts ...TemplateEngineOption) *TemplateEngine {
	e := &TemplateEngine{
		locale:   language.French,
		currency: currency.EUR,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.printer = message.NewPrinter(e.locale)
	// "0,5" or "0.5": keep whatever sits between the digits
	e.decimalSep = strings.TrimSuffix(strings.TrimPrefix(e.printer.Sprintf("%.1f", 0.5), "0"), "5")
	if e.dateLayout == "" {
		e.dateLayout = dateLayoutFor(e.locale)
	}

	e.funcMap = template.FuncMap{
		"formatMoney":    e.formatMoney,
		"formatAmount":   e.formatAmount,
		"formatQuantity": e.formatQuantity,
		"formatRate":     e.formatRate,
		"formatDate":     e.formatDate,
		"statusLabel":    e.statusLabel,
		"typeLabel":      e.typeLabel,
		"currencyCode":   func() string { return e.currency.String() },
		"title":          e.title,
		"upper":          e.upper,
		"trim":           strings.TrimSpace,
		"truncate":       truncate,
		"default":        defaultFunc,
		"inc":            func(i int) int { return i + 1 },
		"nl2br":          nl2br,
		"now":            time.Now,
	}
	return e
}

// Locale returns the configured language tag
func (e *TemplateEngine) Locale() language.Tag {
	return e.locale
}

// RenderString renders content against data. Empty content renders the
// built-in invoice layout.
func (e *TemplateEngine) RenderString(ctx context.Context, name, content string, data any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(content) == "" {
		content = DefaultLayout()
	}

	tmpl, err := template.New(name).Funcs(e.funcMap).Parse(content)
	if err != nil {
		return "", NewRenderError(ErrCodeInvalidTemplate, "failed to parse template", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", NewRenderError(ErrCodeRenderFailed, "failed to execute template", err)
	}
	return buf.String(), nil
}

// Validate parses content without executing it
func (e *TemplateEngine) Validate(content string) error {
	if _, err := template.New("validate").Funcs(e.funcMap).Parse(content); err != nil {
		return NewRenderError(ErrCodeInvalidTemplate, "failed to parse template", err)
	}
	return nil
}

// FuncMap returns a copy of the template function map
func (e *TemplateEngine) FuncMap() template.FuncMap {
	out := make(template.FuncMap, len(e.funcMap))
	maps.Copy(out, e.funcMap)
	return out
}

// formatAmount prints a value with two decimals and locale grouping.
// Grouping is applied to the integer part only so no precision is lost.
func (e *TemplateEngine) formatAmount(v any) string {
	return e.formatFixed(toDecimal(v), 2)
}

// formatMoney appends the currency symbol: "1 234,50 €"
func (e *TemplateEngine) formatMoney(v any) string {
	return e.formatAmount(v) + " " + currencySymbol(e.currency)
}

// formatQuantity drops trailing zeros: 12.500 -> "12,5"
func (e *TemplateEngine) formatQuantity(v any) string {
	d := toDecimal(v)
	places := max(-d.Exponent(), 0)
	s := e.formatFixed(d, places)
	if places == 0 || !strings.Contains(s, e.decimalSep) {
		return s
	}
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, e.decimalSep)
}

// formatRate prints a fraction as a percentage: 0.055 -> "5,5 %"
func (e *TemplateEngine) formatRate(v any) string {
	pct := toDecimal(v).Shift(2)
	return e.formatQuantity(pct) + " %"
}

func (e *TemplateEngine) formatFixed(d decimal.Decimal, places int32) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	fixed := d.StringFixed(places)
	intPart, frac, _ := strings.Cut(fixed, ".")
	n, err := decimal.NewFromString(intPart)
	if err != nil || !n.IsInteger() {
		return sign + fixed
	}
	grouped := intPart
	if n.LessThan(decimal.New(1, 18)) {
		grouped = e.printer.Sprintf("%d", n.IntPart())
	}
	if frac == "" {
		return sign + grouped
	}
	return sign + grouped + e.decimalSep + frac
}

func (e *TemplateEngine) formatDate(v any) string {
	t := toTime(v)
	if t.IsZero() {
		return ""
	}
	return t.Format(e.dateLayout)
}

// Casers are stateful, so each call gets its own.
func (e *TemplateEngine) title(s string) string {
	return cases.Title(e.locale).String(s)
}

func (e *TemplateEngine) upper(s string) string {
	return cases.Upper(e.locale).String(s)
}

func (e *TemplateEngine) statusLabel(status string) string {
	return lookupLabel(e.locale, statusLabels, status)
}

func (e *TemplateEngine) typeLabel(invoiceType string) string {
	return lookupLabel(e.locale, typeLabels, invoiceType)
}

func dateLayoutFor(tag language.Tag) string {
	base, _ := tag.Base()
	switch base.String() {
	case "fr", "de", "es", "it":
		return "02/01/2006"
	case "en":
		if region, _ := tag.Region(); region.String() == "US" {
			return "01/02/2006"
		}
		return "02/01/2006"
	default:
		return "2006-01-02"
	}
}

var statusLabels = map[string]map[string]string{
	"fr": {
		"draft":     "Brouillon",
		"sent":      "Envoyé",
		"validated": "Validé",
		"paid":      "Payé",
		"overdue":   "En retard",
		"rejected":  "Refusé",
		"cancelled": "Annulé",
	},
	"en": {
		"draft":     "Draft",
		"sent":      "Sent",
		"validated": "Validated",
		"paid":      "Paid",
		"overdue":   "Overdue",
		"rejected":  "Rejected",
		"cancelled": "Cancelled",
	},
}

var typeLabels = map[string]map[string]string{
	"fr": {"quote": "Devis", "bill": "Facture"},
	"en": {"quote": "Quote", "bill": "Invoice"},
}

// lookupLabel falls back to French, then to the raw key
func lookupLabel(tag language.Tag, labels map[string]map[string]string, key string) string {
	base, _ := tag.Base()
	if l, ok := labels[base.String()][key]; ok {
		return l
	}
	if l, ok := labels["fr"][key]; ok {
		return l
	}
	return key
}

func currencySymbol(unit currency.Unit) string {
	switch unit {
	case currency.EUR:
		return "€"
	case currency.GBP:
		return "£"
	case currency.USD:
		return "$"
	case currency.CHF:
		return "CHF"
	default:
		return unit.String()
	}
}

// truncate shortens s to max runes, appending "…"
func truncate(s string, max int) string {
	runes := []rune(s)
	if max <= 0 || len(runes) <= max {
		return s
	}
	if max == 1 {
		return "…"
	}
	return string(runes[:max-1]) + "…"
}

func defaultFunc(def, val any) any {
	switch v := val.(type) {
	case nil:
		return def
	case string:
		if strings.TrimSpace(v) == "" {
			return def
		}
	case *time.Time:
		if v == nil {
			return def
		}
	}
	return val
}

// nl2br escapes s and turns newlines into <br>
func nl2br(s string) template.HTML {
	escaped := template.HTMLEscapeString(s)
	return template.HTML(strings.ReplaceAll(escaped, "\n", "<br>"))
}

// toDecimal converts template values to decimal.Decimal
func toDecimal(v any) decimal.Decimal {
	switch val := v.(type) {
	case decimal.Decimal:
		return val
	case *decimal.Decimal:
		if val == nil {
			return decimal.Zero
		}
		return *val
	case fmt.Stringer:
		d, err := decimal.NewFromString(val.String())
		if err != nil {
			return decimal.Zero
		}
		return d
	case int:
		return decimal.NewFromInt(int64(val))
	case int64:
		return decimal.NewFromInt(val)
	case float64:
		return decimal.NewFromFloat(val)
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(val))
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}

// toTime converts template values to time.Time
func toTime(v any) time.Time {
	switch val := v.(type) {
	case time.Time:
		return val
	case *time.Time:
		if val == nil {
			return time.Time{}
		}
		return *val
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(layout, val); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}
