package scraper

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var sizeUnits = []string{"B", "KB", "MB", "GB"}

var sizePattern = regexp.MustCompile(`(?i)(\d[\d,]*(?:\.\d+)?)\s*(GB|MB|KB|B)\b`)

// ParseFileSize reads the first "<number> <unit>" occurrence in s and returns
// it in bytes using binary multiples (1 KB = 1024 B). Sizes that do not fit
// in an int64 are rejected.
func ParseFileSize(s string) (int64, bool) {
	m := sizePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil || value < 0 {
		return 0, false
	}
	exp := 0
	for i, u := range sizeUnits {
		if strings.EqualFold(u, m[2]) {
			exp = i
			break
		}
	}
	bytes := math.Round(value * math.Pow(1024, float64(exp)))
	if math.IsInf(bytes, 0) || math.IsNaN(bytes) || bytes >= math.MaxInt64 {
		return 0, false
	}
	return int64(bytes), true
}

// FormatFileSize renders bytes with the largest unit that keeps the value >= 1,
// two decimals by default ("1.50 MB"). More decimals are emitted only when two
// would not parse back to the same byte count.
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}
	exp := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if exp >= len(sizeUnits) {
		exp = len(sizeUnits) - 1
	}
	// guard float error right at unit boundaries
	for exp > 0 && float64(bytes) < math.Pow(1024, float64(exp)) {
		exp--
	}
	for exp < len(sizeUnits)-1 && float64(bytes) >= math.Pow(1024, float64(exp+1)) {
		exp++
	}
	unit := sizeUnits[exp]
	if exp == 0 {
		return fmt.Sprintf("%d B", bytes)
	}

	value := float64(bytes) / math.Pow(1024, float64(exp))
	var out string
	for prec := 2; prec <= 12; prec++ {
		out = strconv.FormatFloat(value, 'f', prec, 64) + " " + unit
		if back, ok := ParseFileSize(out); ok && back == bytes {
			break
		}
	}
	return out
}
