package app

import "time"

// FormatDate renders a feed timestamp in the fixed pt-BR display format
// (two-digit day/month, numeric year, 24h time). Unparseable input is
// returned unchanged.
func FormatDate(raw string) string {
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return raw
	}
	return t.Format(DisplayDateLayout)
}

// CategoryLabel resolves a category code to its display label.
// Unrecognized codes pass through unchanged.
func CategoryLabel(code string) string {
	if label, ok := CategoryLabels[code]; ok {
		return label
	}
	return code
}
