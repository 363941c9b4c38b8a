package updates

import (
	"strconv"
	"strings"
)

// CompareVersions compares dotted versions such as "v1.4.2" and "1.10".
// Missing parts count as zero and a pre-release suffix on a part is ignored.
func CompareVersions(a, b string) int {
	pa := versionParts(a)
	pb := versionParts(b)
	n := len(pa)
	if len(pb) > n {
		n = len(pb)
	}
	for i := 0; i < n; i++ {
		var x, y int
		if i < len(pa) {
			x = pa[i]
		}
		if i < len(pb) {
			y = pb[i]
		}
		switch {
		case x > y:
			return 1
		case x < y:
			return -1
		}
	}
	return 0
}

func versionParts(v string) []int {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(strings.TrimPrefix(v, "v"), "V")
	if plus := strings.IndexByte(v, '+'); plus >= 0 {
		v = v[:plus]
	}
	if v == "" {
		return nil
	}
	fields := strings.Split(v, ".")
	out := make([]int, 0, len(fields))
	for _, field := range fields {
		end := strings.IndexFunc(field, func(r rune) bool { return r < '0' || r > '9' })
		if end >= 0 {
			field = field[:end]
		}
		n, _ := strconv.Atoi(field)
		out = append(out, n)
	}
	return out
}
