package google

import (
	"fmt"
	"strings"
	"unicode"

	"fintrack/internal/core"
)

// totalsLabels maps the accepted row labels of a totals sheet to the
// canonical totals keys.
var totalsLabels = map[string]core.RecordKind{
	"income":         core.KindIncome,
	"incomes":        core.KindIncome,
	"total income":   core.KindIncome,
	"expense":        core.KindExpense,
	"expenses":       core.KindExpense,
	"total expenses": core.KindExpense,
	"budget":         core.KindBudget,
	"budgets":        core.KindBudget,
	"total budget":   core.KindBudget,
	"goal":           core.KindGoal,
	"goals":          core.KindGoal,
	"total goals":    core.KindGoal,
}

// parseRecords converts a values matrix into records keyed by the header
// row. Empty rows and cells past the header are dropped; cell values keep
// the type the API returned so amount coercion happens in one place.
func parseRecords(values [][]interface{}) []core.Record {
	if len(values) == 0 {
		return []core.Record{}
	}
	headers := toStrings(values[0])
	keys := make([]string, len(headers))
	for i, h := range headers {
		keys[i] = fieldKey(h)
	}

	out := make([]core.Record, 0, len(values)-1)
	for _, row := range values[1:] {
		rec := core.Record{}
		for i, cell := range row {
			if i >= len(keys) || keys[i] == "" {
				continue
			}
			if s, ok := cell.(string); ok && strings.TrimSpace(s) == "" {
				continue
			}
			rec[keys[i]] = cell
		}
		if len(rec) == 0 {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// parseTotals reads label/value rows. Unknown labels, including a header
// row, are ignored. The first row for a label wins.
func parseTotals(values [][]interface{}) map[string]any {
	out := map[string]any{}
	for _, row := range values {
		if len(row) < 2 {
			continue
		}
		label := strings.ToLower(strings.Join(strings.Fields(fmt.Sprint(row[0])), " "))
		kind, ok := totalsLabels[label]
		if !ok {
			continue
		}
		if _, seen := out[string(kind)]; seen {
			continue
		}
		out[string(kind)] = row[1]
	}
	return out
}

// fieldKey turns a header cell into a lower camel case record key:
// "Amount" -> "amount", "Target Amount" -> "targetAmount",
// "targetAmount" stays as is.
func fieldKey(header string) string {
	words := strings.FieldsFunc(header, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return ""
	}
	if len(words) == 1 {
		r := []rune(words[0])
		r[0] = unicode.ToLower(r[0])
		return string(r)
	}
	var b strings.Builder
	for i, w := range words {
		w = strings.ToLower(w)
		if i > 0 {
			r := []rune(w)
			r[0] = unicode.ToUpper(r[0])
			w = string(r)
		}
		b.WriteString(w)
	}
	return b.String()
}
