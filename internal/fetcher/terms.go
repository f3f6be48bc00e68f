package fetcher

import "time"

// termStart holds the first sitting-eligible date of each parliamentary term.
type termStart struct {
	term  int
	start time.Time
}

var termStarts = []termStart{
	{1, date(1979, 7, 17)},
	{2, date(1984, 7, 24)},
	{3, date(1989, 7, 25)},
	{4, date(1994, 7, 19)},
	{5, date(1999, 7, 20)},
	{6, date(2004, 7, 20)},
	{7, date(2009, 7, 14)},
	{8, date(2014, 7, 1)},
	{9, date(2019, 7, 2)},
	{10, date(2024, 7, 16)},
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// TermForDate maps a sitting date to its parliamentary term. Dates before the
// first term start still map to term 1 so that URL composition never fails.
func TermForDate(t time.Time) int {
	term := 1
	for _, ts := range termStarts {
		if t.Before(ts.start) {
			break
		}
		term = ts.term
	}
	return term
}
