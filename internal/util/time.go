package util

import "time"

var ictLocation *time.Location

func init() {
	var err error
	ictLocation, err = time.LoadLocation("Asia/Ho_Chi_Minh")
	if err != nil {
		ictLocation = time.FixedZone("ICT", 7*60*60)
	}
}

// FormatICT formats t in Indochina Time, the zone user-facing messages use.
func FormatICT(t time.Time, layout string) string {
	return t.In(ictLocation).Format(layout)
}
