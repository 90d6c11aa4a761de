// Package static embeds the live view page.
package static

import "embed"

//go:embed index.html
var FS embed.FS

// ReadFile reads a file from the embedded filesystem.
func ReadFile(name string) ([]byte, error) {
	return FS.ReadFile(name)
}
