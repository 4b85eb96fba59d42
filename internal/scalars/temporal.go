package scalars

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

var (
	localDateTimeLayouts = []string{"2006-01-02T15:04:05.999999999", "2006-01-02T15:04:05", "2006-01-02T15:04"}
	timeLayouts          = []string{"15:04:05.999999999Z07:00", "15:04:05Z07:00", "15:04Z07:00"}
	localTimeLayouts     = []string{"15:04:05.999999999", "15:04:05", "15:04"}
)

func parseLayouts(s string, layouts []string) (time.Time, bool) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// components reads the named integer parts of a temporal input object.
type components map[string]any

func (c components) get(name string) int {
	n, _ := toInt64(c[name])
	return int(n)
}

func (c components) zone() *time.Location {
	if _, ok := c["timeZoneOffsetSeconds"]; !ok {
		return time.UTC
	}
	offset := c.get("timeZoneOffsetSeconds")
	if offset == 0 {
		return time.UTC
	}
	return time.FixedZone("", offset)
}

func (c components) date(loc *time.Location) time.Time {
	return time.Date(c.get("year"), time.Month(c.get("month")), c.get("day"),
		c.get("hour"), c.get("minute"), c.get("second"), c.get("nanosecond"), loc)
}

func (c components) clock(loc *time.Location) time.Time {
	return time.Date(0, time.January, 1, c.get("hour"), c.get("minute"), c.get("second"), c.get("nanosecond"), loc)
}

func parseDateTime(value any) (any, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		return t, err == nil
	case map[string]any:
		c := components(v)
		return c.date(c.zone()), true
	}
	return nil, false
}

func parseLocalDateTime(value any) (any, bool) {
	switch v := value.(type) {
	case dbtype.LocalDateTime:
		return v, true
	case string:
		t, ok := parseLayouts(v, localDateTimeLayouts)
		return dbtype.LocalDateTime(t), ok
	case map[string]any:
		return dbtype.LocalDateTime(components(v).date(time.UTC)), true
	}
	return nil, false
}

func parseDate(value any) (any, bool) {
	switch v := value.(type) {
	case dbtype.Date:
		return v, true
	case string:
		if t, err := time.Parse("2006-01-02", v); err == nil {
			return dbtype.Date(t), true
		}
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return dbtype.Date(time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)), true
		}
	case map[string]any:
		c := components(v)
		return dbtype.Date(time.Date(c.get("year"), time.Month(c.get("month")), c.get("day"), 0, 0, 0, 0, time.UTC)), true
	}
	return nil, false
}

func parseTime(value any) (any, bool) {
	switch v := value.(type) {
	case dbtype.Time:
		return v, true
	case string:
		t, ok := parseLayouts(v, timeLayouts)
		return dbtype.Time(t), ok
	case map[string]any:
		c := components(v)
		return dbtype.Time(c.clock(c.zone())), true
	}
	return nil, false
}

func parseLocalTime(value any) (any, bool) {
	switch v := value.(type) {
	case dbtype.LocalTime:
		return v, true
	case string:
		t, ok := parseLayouts(v, localTimeLayouts)
		return dbtype.LocalTime(t), ok
	case map[string]any:
		return dbtype.LocalTime(components(v).clock(time.UTC)), true
	}
	return nil, false
}

var durationPattern = regexp.MustCompile(`^(-)?P(?:(\d+)Y)?(?:(\d+)M)?(?:(\d+)W)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d{1,9})?)S)?)?$`)

func parseDuration(value any) (any, bool) {
	switch v := value.(type) {
	case dbtype.Duration:
		return v, true
	case string:
		d, err := ParseISODuration(v)
		return d, err == nil
	case map[string]any:
		c := components(v)
		return dbtype.Duration{
			Months:  int64(c.get("months")),
			Days:    int64(c.get("days")),
			Seconds: int64(c.get("seconds")),
			Nanos:   c.get("nanoseconds"),
		}, true
	}
	return nil, false
}

// ParseISODuration parses an ISO 8601 duration such as "P1Y2M3DT4H5M6.5S"
// into the graph engine's months/days/seconds/nanoseconds representation.
func ParseISODuration(s string) (dbtype.Duration, error) {
	m := durationPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil || s == "P" || strings.HasSuffix(s, "T") {
		return dbtype.Duration{}, fmt.Errorf("invalid duration %q", s)
	}
	num := func(i int) int64 {
		if m[i] == "" {
			return 0
		}
		n, _ := strconv.ParseInt(m[i], 10, 64)
		return n
	}
	d := dbtype.Duration{
		Months:  num(2)*12 + num(3),
		Days:    num(4)*7 + num(5),
		Seconds: num(6)*3600 + num(7)*60,
	}
	if m[8] != "" {
		whole, frac, _ := strings.Cut(m[8], ".")
		secs, _ := strconv.ParseInt(whole, 10, 64)
		d.Seconds += secs
		if frac != "" {
			frac = (frac + "000000000")[:9]
			nanos, _ := strconv.Atoi(frac)
			d.Nanos = nanos
		}
	}
	if m[1] == "-" {
		d.Months, d.Days, d.Seconds, d.Nanos = -d.Months, -d.Days, -d.Seconds, -d.Nanos
	}
	return d, nil
}
