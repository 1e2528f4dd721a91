package compliance

import (
	"time"

	"github.com/notifyhub/tenant-dispatch/internal/domain"
)

// IsQuietHours reports whether now falls inside the tenant's configured
// quiet-hours window, evaluated in the tenant's timezone. The window is
// [start, end); an overnight window (start > end, e.g. 21:00-09:00) matches
// when now >= start OR now < end.
//
// An invalid timezone or window fails open (returns false): blocking every
// send for a misconfigured tenant is considered worse than the occasional
// late message. Callers relying on strict enforcement must validate the
// settings at write time.
func IsQuietHours(q domain.QuietHours, now time.Time) bool {
	if !q.Enabled {
		return false
	}
	loc, err := time.LoadLocation(q.Timezone)
	if err != nil {
		return false
	}
	start, okS := parseClock(q.Start)
	end, okE := parseClock(q.End)
	if !okS || !okE || start == end {
		return false
	}

	local := now.In(loc)
	cur := local.Hour()*60 + local.Minute()

	if start < end {
		return cur >= start && cur < end
	}
	// overnight window
	return cur >= start || cur < end
}

// NextAllowedSendTime returns the next moment quiet hours end, in the
// tenant's timezone. If now is before today's end-of-quiet it returns today's
// end; otherwise tomorrow's. If quiet hours are disabled or misconfigured it
// returns now unchanged.
func NextAllowedSendTime(q domain.QuietHours, now time.Time) time.Time {
	if !q.Enabled {
		return now
	}
	loc, err := time.LoadLocation(q.Timezone)
	if err != nil {
		return now
	}
	end, ok := parseClock(q.End)
	if !ok {
		return now
	}

	local := now.In(loc)
	endToday := time.Date(local.Year(), local.Month(), local.Day(), end/60, end%60, 0, 0, loc)
	if local.Before(endToday) {
		return endToday
	}
	return endToday.AddDate(0, 0, 1)
}

// parseClock converts "HH:MM" into minutes since midnight.
func parseClock(s string) (int, bool) {
	if len(s) != 5 || s[2] != ':' {
		return 0, false
	}
	h := int(s[0]-'0')*10 + int(s[1]-'0')
	m := int(s[3]-'0')*10 + int(s[4]-'0')
	if s[0] < '0' || s[0] > '9' || s[1] < '0' || s[1] > '9' ||
		s[3] < '0' || s[3] > '9' || s[4] < '0' || s[4] > '9' {
		return 0, false
	}
	if h > 23 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}
