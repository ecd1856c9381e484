// Package legacy maps the free-form status and recurrence strings found in
// older maintenance records and clients onto the canonical enumerations.
//
// Matching ignores case, accents, underscores and hyphens, so "CONCLUÍDA",
// "concluido" and "Concluída" all resolve to core.StatusCompleted.
package legacy

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/fieldops/maintsched/pkg/core"
)

var statusAliases = map[string]core.Status{
	"agendado":         core.StatusScheduled,
	"agendada":         core.StatusScheduled,
	"programado":       core.StatusScheduled,
	"programada":       core.StatusScheduled,
	"pendente":         core.StatusScheduled,
	"em andamento":     core.StatusInProgress,
	"andamento":        core.StatusInProgress,
	"em execucao":      core.StatusInProgress,
	"iniciado":         core.StatusInProgress,
	"iniciada":         core.StatusInProgress,
	"concluido":        core.StatusCompleted,
	"concluida":        core.StatusCompleted,
	"finalizado":       core.StatusCompleted,
	"finalizada":       core.StatusCompleted,
	"aprovado":         core.StatusCompleted,
	"aprovada":         core.StatusCompleted,
	"convertido":       core.StatusConverted,
	"convertida":       core.StatusConverted,
	"os gerada":        core.StatusConverted,
	"convertido em os": core.StatusConverted,
	"cancelado":        core.StatusCancelled,
	"cancelada":        core.StatusCancelled,
	"canceled":         core.StatusCancelled,
}

// Recurrence is a frequency and interval pair named by a legacy label.
type Recurrence struct {
	Frequency core.Frequency
	Interval  int
}

var recurrenceAliases = map[string]Recurrence{
	"nenhuma":    {core.FrequencyNone, 0},
	"unica":      {core.FrequencyNone, 0},
	"diaria":     {core.FrequencyDaily, 1},
	"semanal":    {core.FrequencyWeekly, 1},
	"quinzenal":  {core.FrequencyWeekly, 2},
	"mensal":     {core.FrequencyMonthly, 1},
	"bimestral":  {core.FrequencyMonthly, 2},
	"trimestral": {core.FrequencyMonthly, 3},
	"semestral":  {core.FrequencyMonthly, 6},
	"anual":      {core.FrequencyYearly, 1},
}

var statusLabels = map[core.Status]string{
	core.StatusScheduled:  "Agendado",
	core.StatusInProgress: "Em andamento",
	core.StatusCompleted:  "Concluído",
	core.StatusConverted:  "Convertido em OS",
	core.StatusCancelled:  "Cancelado",
}

// Normalize folds v to the lookup form: lower case, no diacritics, single
// spaces instead of runs of blanks, underscores or hyphens.
func Normalize(v string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), cases.Fold(), norm.NFC)
	folded, _, err := transform.String(t, v)
	if err != nil {
		folded = strings.ToLower(v)
	}
	fields := strings.FieldsFunc(folded, func(r rune) bool {
		return unicode.IsSpace(r) || r == '_' || r == '-'
	})
	return strings.Join(fields, " ")
}

// ParseStatus accepts a canonical status name or any known legacy spelling.
func ParseStatus(v string) (core.Status, error) {
	key := Normalize(v)
	if s := core.Status(strings.ToUpper(strings.ReplaceAll(key, " ", "_"))); s.Valid() {
		return s, nil
	}
	if s, ok := statusAliases[key]; ok {
		return s, nil
	}
	return "", fmt.Errorf("%w: %q", core.ErrUnknownStatus, v)
}

// ParseRecurrence accepts a canonical frequency (interval 1) or a legacy
// recurrence label such as "quinzenal".
func ParseRecurrence(v string) (Recurrence, error) {
	key := Normalize(v)
	if f := core.Frequency(key); f.Valid() {
		if f == core.FrequencyNone {
			return Recurrence{Frequency: f}, nil
		}
		return Recurrence{Frequency: f, Interval: 1}, nil
	}
	if r, ok := recurrenceAliases[key]; ok {
		return r, nil
	}
	return Recurrence{}, &core.RuleError{Field: "frequency", Reason: fmt.Sprintf("unknown recurrence label %q", v)}
}

// Rule builds a recurrence rule from r and the given termination fields.
func (r Recurrence) Rule(mode core.TerminationMode) core.RecurrenceRule {
	return core.RecurrenceRule{
		Frequency:   r.Frequency,
		Interval:    r.Interval,
		Termination: mode,
	}
}

// StatusLabel returns the display label legacy screens use for s.
func StatusLabel(s core.Status) string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}
