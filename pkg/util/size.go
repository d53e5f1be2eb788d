package util

import (
	"strconv"
	"strings"
)

var sizeUnits = []struct {
	suffix     string
	multiplier int64
}{
	{"GB", 1024 * 1024 * 1024},
	{"MB", 1024 * 1024},
	{"KB", 1024},
	{"B", 1},
}

// ParseSize parses size string like "2GB", "512MB", "1024B" to bytes
// ParseSize 将大小字符串（如 "2GB", "512MB", "1024B"）解析为字节数
func ParseSize(sizeStr string, defaultSize int64) int64 {
	sizeStr = strings.ToUpper(strings.TrimSpace(sizeStr))
	if sizeStr == "" {
		return defaultSize
	}

	var multiplier int64 = 1
	for _, u := range sizeUnits {
		if strings.HasSuffix(sizeStr, u.suffix) {
			multiplier = u.multiplier
			sizeStr = strings.TrimSuffix(sizeStr, u.suffix)
			break
		}
	}

	size, err := strconv.ParseInt(strings.TrimSpace(sizeStr), 10, 64)
	if err != nil || size <= 0 {
		return defaultSize
	}
	return size * multiplier
}

// FormatSize renders bytes for log lines and notifications.
func FormatSize(n int64) string {
	for _, u := range sizeUnits {
		if n >= u.multiplier && u.multiplier > 1 {
			return strconv.FormatFloat(float64(n)/float64(u.multiplier), 'f', 2, 64) + " " + u.suffix
		}
	}
	return strconv.FormatInt(n, 10) + " B"
}
