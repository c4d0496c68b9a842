package helpers

import (
	"sync"
	"time"
)

var (
	jakartaOnce sync.Once
	jakartaLoc  *time.Location
)

// Jakarta returns the Asia/Jakarta location, falling back to a fixed
// UTC+7 zone when tzdata is unavailable in the runtime image.
func Jakarta() *time.Location {
	jakartaOnce.Do(func() {
		loc, err := time.LoadLocation("Asia/Jakarta")
		if err != nil {
			loc = time.FixedZone("WIB", 7*60*60)
		}
		jakartaLoc = loc
	})
	return jakartaLoc
}

// FormatWIB renders a timestamp in western Indonesian time for user-facing
// messages, e.g. "02 Jan 2006 15:04 WIB".
func FormatWIB(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.In(Jakarta()).Format("02 Jan 2006 15:04") + " WIB"
}
