package blob

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// validRef limits refs to a flat, path-safe alphabet so every backend can use
// them as file names or object keys verbatim.
var validRef = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

func refFromName(name string) (string, error) {
	if !validRef.MatchString(name) {
		return "", fmt.Errorf("invalid blob name %q", name)
	}
	return name, nil
}

// ContentType maps a ref's extension to the MIME type stored with objects.
func ContentType(ref string) string {
	switch strings.ToLower(path.Ext(ref)) {
	case ".csv":
		return "text/csv"
	case ".srt":
		return "application/x-subrip"
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".mov":
		return "video/quicktime"
	case ".avi":
		return "video/x-msvideo"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}
