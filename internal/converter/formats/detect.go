package formats

import (
	"fmt"
	"mime"
	"strings"

	"github.com/samber/lo"
)

// Detect maps a file name to a catalog format ID using only the text after
// the final period, case-insensitively. It returns "" when the name has no
// period or the extension is unknown.
func Detect(name string) string {
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return ""
	}
	ext := strings.ToLower(name[i+1:])
	if !IsKnown(ext) {
		return ""
	}
	return ext
}

// OutputFileName replaces the final extension of name with "."+id. Names
// without a period get the extension appended.
func OutputFileName(name, id string) string {
	base := name
	if i := strings.LastIndex(name, "."); i >= 0 {
		base = name[:i]
	}
	return base + "." + id
}

// Accepts reports whether an upload passes the advisory filter: either the
// declared media type or the extension must belong to the catalog. Content is
// not inspected.
func Accepts(name, mediaType string) bool {
	if Detect(name) != "" {
		return true
	}
	if mediaType == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return false
	}
	return lo.Contains(AcceptedMediaTypes(), mt)
}

// FormatFileSize renders a byte count as KB below one MiB and MB above.
func FormatFileSize(bytes int64) string {
	if bytes < 1024*1024 {
		return fmt.Sprintf("%.2f KB", float64(bytes)/1024)
	}
	return fmt.Sprintf("%.2f MB", float64(bytes)/(1024*1024))
}
