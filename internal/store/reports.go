package store

import "time"

// FillDailyCounts expands sparse per-day counts into a dense series for the
// `days` calendar days ending at now, oldest first, with zeroes for days
// that have no records. Backends share it so the report shape is uniform.
func FillDailyCounts(counts []DayCount, now time.Time, days int) []DayCount {
	byDay := make(map[string]int, len(counts))
	for _, c := range counts {
		byDay[c.Day] = c.Count
	}

	filled := make([]DayCount, 0, days)
	for i := days - 1; i >= 0; i-- {
		day := now.AddDate(0, 0, -i).Format(time.DateOnly)
		filled = append(filled, DayCount{Day: day, Count: byDay[day]})
	}
	return filled
}
