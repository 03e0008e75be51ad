// internal/forecast/aggregate.go
package forecast

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"goalflow/internal/domain"
)

const week = 7 * 24 * time.Hour

// WeekStart returns Monday 00:00 UTC of the ISO week containing t.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
	return day.AddDate(0, 0, -offset)
}

// WeekKey formats the ISO year and week of t, e.g. "2025-W02".
func WeekKey(t time.Time) string {
	year, wk := t.UTC().ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, wk)
}

// WeeklyNetFlow buckets the movements touching accountID by ISO week and sums
// +amount where the account is the destination and -amount where it is the source.
// Movements not touching the account are ignored. Output is in ascending week order.
func WeeklyNetFlow(accountID int64, movements []domain.Movement) []domain.WeeklyFlowPoint {
	buckets := make(map[time.Time]decimal.Decimal)
	for i := range movements {
		m := &movements[i]
		touches := (m.SourceAccountID != nil && *m.SourceAccountID == accountID) ||
			(m.DestinationAccountID != nil && *m.DestinationAccountID == accountID)
		if !touches {
			continue
		}
		start := WeekStart(m.OccurredAt)
		buckets[start] = buckets[start].Add(m.EffectOn(accountID, m.Amount))
	}

	series := make([]domain.WeeklyFlowPoint, 0, len(buckets))
	for start, flow := range buckets {
		series = append(series, domain.WeeklyFlowPoint{
			Week:      WeekKey(start),
			WeekStart: start,
			NetFlow:   flow,
		})
	}
	sort.Slice(series, func(i, j int) bool {
		return series[i].WeekStart.Before(series[j].WeekStart)
	})
	return series
}

// FillGaps inserts zero-flow points for inactive weeks between the first and
// last point so the series is evenly spaced. Input must be ascending.
func FillGaps(series []domain.WeeklyFlowPoint) []domain.WeeklyFlowPoint {
	if len(series) < 2 {
		return series
	}
	filled := make([]domain.WeeklyFlowPoint, 0, len(series))
	filled = append(filled, series[0])
	for _, p := range series[1:] {
		prev := filled[len(filled)-1].WeekStart
		for next := prev.Add(week); next.Before(p.WeekStart); next = next.Add(week) {
			filled = append(filled, domain.WeeklyFlowPoint{
				Week:      WeekKey(next),
				WeekStart: next,
				NetFlow:   decimal.Zero,
			})
		}
		filled = append(filled, p)
	}
	return filled
}

// FutureWeeks returns the keys of the n weeks following the week that starts at last.
func FutureWeeks(last time.Time, n int) []string {
	keys := make([]string, 0, n)
	start := WeekStart(last)
	for i := 1; i <= n; i++ {
		keys = append(keys, WeekKey(start.Add(time.Duration(i)*week)))
	}
	return keys
}

// Values converts the net flows of a series to float64 for model fitting.
func Values(series []domain.WeeklyFlowPoint) []float64 {
	values := make([]float64, len(series))
	for i, p := range series {
		values[i] = p.NetFlow.InexactFloat64()
	}
	return values
}
