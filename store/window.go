package store

import "time"

// beijing is the fixed UTC+8 offset used for the "current day" window.
// It is deliberately not the host's local zone: day boundaries must be
// stable regardless of where the service runs.
var beijing = time.FixedZone("UTC+8", 8*60*60)

// Window computes the half-open [start, end) time range covered by an
// aggregation pass.
//
// recentDays == 0 selects the current calendar day at UTC+8: start is that
// day's midnight, end is the next midnight, both at the fixed offset.
// recentDays > 0 selects [now - recentDays days, now) using the host's
// wall-clock time. The two branches intentionally use different time bases;
// the upstream data set assumes UTC+8 day boundaries but relative windows
// follow the caller's clock.
func Window(recentDays int, now time.Time) (start, end time.Time) {
	if recentDays == 0 {
		local := now.In(beijing)
		y, m, d := local.Date()
		start = time.Date(y, m, d, 0, 0, 0, 0, beijing)
		end = start.AddDate(0, 0, 1)
		return start, end
	}

	return now.AddDate(0, 0, -recentDays), now
}
