package weather

import (
	"sort"
	"time"
)

const (
	dayStartHour = 6
	dayEndHour   = 22

	unknownWeatherType = "Unknown"
)

// IsDaytimeHour reports whether a period starting at hour counts as a day period.
func IsDaytimeHour(hour int) bool {
	return dayStartHour <= hour && hour < dayEndHour
}

// SummarizeDays groups periods by calendar day and aggregates each day.
// Days are ordered by date ascending. The weather type is the most frequent
// one among day periods, falling back to night periods; ties go to the type
// seen first.
func SummarizeDays(periods []Period) Forecast {
	if len(periods) == 0 {
		return nil
	}

	sorted := make([]Period, len(periods))
	copy(sorted, periods)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})

	type dayKey string

	var (
		order  []dayKey
		byDay  = make(map[dayKey][]Period)
		noonOf = make(map[dayKey]time.Time)
	)
	for _, p := range sorted {
		if p.Time.IsZero() {
			continue
		}
		k := dayKey(p.Time.Format("2006-01-02"))
		if _, ok := byDay[k]; !ok {
			order = append(order, k)
			t := p.Time
			noonOf[k] = time.Date(t.Year(), t.Month(), t.Day(), 12, 0, 0, 0, t.Location())
		}
		byDay[k] = append(byDay[k], p)
	}

	forecast := make(Forecast, 0, len(order))
	for _, k := range order {
		forecast = append(forecast, summarizeDay(noonOf[k], byDay[k]))
	}
	return forecast
}

func summarizeDay(date time.Time, periods []Period) DailySummary {
	var day, night []Period
	for _, p := range periods {
		if IsDaytimeHour(p.Time.Hour()) {
			day = append(day, p)
		} else {
			night = append(night, p)
		}
	}

	dayType, dayCond := majority(day)
	nightType, nightCond := majority(night)

	summary := DailySummary{
		Date:             date,
		WeatherType:      dayType,
		DayWeatherType:   dayType,
		NightWeatherType: nightType,
		Condition:        dayCond,
		PeriodCount:      len(periods),
	}
	if dayType == unknownWeatherType {
		summary.WeatherType = nightType
		summary.Condition = nightCond
	}

	for _, p := range periods {
		if p.Temperature == nil {
			continue
		}
		v := *p.Temperature
		if summary.MaxTemperature == nil || v > *summary.MaxTemperature {
			summary.MaxTemperature = cloneInt(&v)
		}
		if summary.MinTemperature == nil || v < *summary.MinTemperature {
			summary.MinTemperature = cloneInt(&v)
		}
	}
	return summary
}

// majority returns the most common weather type and its condition.
func majority(periods []Period) (string, Condition) {
	if len(periods) == 0 {
		return unknownWeatherType, ConditionUnknown
	}

	counts := make(map[string]int)
	conds := make(map[string]Condition)
	var order []string
	for _, p := range periods {
		wt := p.WeatherType
		if wt == "" {
			wt = unknownWeatherType
		}
		if _, seen := counts[wt]; !seen {
			order = append(order, wt)
			cond := p.Condition
			if cond == "" {
				cond = ConditionFromText(wt)
			}
			conds[wt] = cond
		}
		counts[wt]++
	}

	best := order[0]
	for _, wt := range order[1:] {
		if counts[wt] > counts[best] {
			best = wt
		}
	}
	return best, conds[best]
}
