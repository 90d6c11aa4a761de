package core

import "fmt"

// Byte size constants, binary (1024) based.
const (
	BytesPerKB int64 = 1024
	BytesPerMB int64 = 1024 * BytesPerKB
	BytesPerGB int64 = 1024 * BytesPerMB
	BytesPerTB int64 = 1024 * BytesPerGB
)

// FormatBytes converts a byte count to a human-readable string such as
// "512 B" or "1.50 MB". Negative counts format as "0 B".
func FormatBytes(bytes int64) string {
	units := []struct {
		size int64
		name string
	}{
		{BytesPerTB, "TB"},
		{BytesPerGB, "GB"},
		{BytesPerMB, "MB"},
		{BytesPerKB, "KB"},
	}
	for _, u := range units {
		if bytes >= u.size {
			return fmt.Sprintf("%.2f %s", float64(bytes)/float64(u.size), u.name)
		}
	}
	return fmt.Sprintf("%d B", max(bytes, 0))
}
