package model

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var durationRx = regexp.MustCompile(`^(\d+h)?(\d+m)?(\d+s)?(\d+ms)?$`)

// ParseDuration parses strings matching ^(\d+h)?(\d+m)?(\d+s)?(\d+ms)?$ into
// time.Duration. Segments must come in that order; empty string is rejected.
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, errors.New("empty duration")
	}
	m := durationRx.FindStringSubmatch(s)
	if m == nil {
		return 0, errors.New("invalid duration format")
	}
	var total time.Duration
	for _, seg := range m[1:] {
		if seg == "" {
			continue
		}
		var unit time.Duration
		var numStr string
		switch {
		case strings.HasSuffix(seg, "ms"):
			unit, numStr = time.Millisecond, seg[:len(seg)-2]
		case strings.HasSuffix(seg, "h"):
			unit, numStr = time.Hour, seg[:len(seg)-1]
		case strings.HasSuffix(seg, "m"):
			unit, numStr = time.Minute, seg[:len(seg)-1]
		case strings.HasSuffix(seg, "s"):
			unit, numStr = time.Second, seg[:len(seg)-1]
		default:
			return 0, errors.New("unknown unit in " + seg)
		}
		val, err := strconv.ParseInt(numStr, 10, 64)
		if err != nil {
			return 0, errors.New("invalid number in " + seg)
		}
		if val > int64(math.MaxInt64/unit) {
			return 0, errors.New("duration overflow")
		}
		add := unit * time.Duration(val)
		if total > time.Duration(math.MaxInt64)-add {
			return 0, errors.New("duration overflow")
		}
		total += add
	}
	return total, nil
}
