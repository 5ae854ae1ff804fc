// Package naming derives grouping, matching and stacking keys from upload filenames.
// All functions are pure. Matching is ASCII-oriented: only extensions and the
// _split, _translated and _v<digits> suffixes are compared case-insensitively.
package naming

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	captionExtRe    = regexp.MustCompile(`(?i)\.(csv|srt)$`)
	videoExtRe      = regexp.MustCompile(`(?i)\.(mp4|webm|mov|avi)$`)
	knownExtRe      = regexp.MustCompile(`(?i)\.(csv|srt|mp4|webm|mov|avi)$`)
	splitSuffixRe   = regexp.MustCompile(`(?i)_split$`)
	versionSuffixRe = regexp.MustCompile(`(?i)^(.*)_v(\d+)$`)
	translatedRe    = regexp.MustCompile(`(?i)_translated$`)
)

// groupTokens is how many underscore-delimited tokens form a display group,
// e.g. LT0023_B251103_Person1+NL_677.
const groupTokens = 4

// IsCaption reports whether name carries a caption extension.
func IsCaption(name string) bool {
	return captionExtRe.MatchString(name)
}

// IsVideo reports whether name carries a video extension.
func IsVideo(name string) bool {
	return videoExtRe.MatchString(name)
}

// CaptionFormat returns "csv" or "srt" for a caption filename, or "" otherwise.
func CaptionFormat(name string) string {
	m := captionExtRe.FindStringSubmatch(name)
	if m == nil {
		return ""
	}
	return strings.ToLower(m[1])
}

// StripExtension removes a known caption or video extension.
// Unknown extensions are left in place.
func StripExtension(name string) string {
	return knownExtRe.ReplaceAllString(name, "")
}

// GroupKey joins the first four underscore-delimited tokens of the stripped name.
// Collisions are expected; the key is only used for display grouping.
func GroupKey(name string) string {
	tokens := strings.Split(StripExtension(name), "_")
	if len(tokens) > groupTokens {
		tokens = tokens[:groupTokens]
	}
	return strings.Join(tokens, "_")
}

// MatchKey is the key a caption and a video must share to be paired:
// the name without extension and without a trailing _split.
func MatchKey(name string) string {
	return splitSuffixRe.ReplaceAllString(StripExtension(name), "")
}

// BaseNameAndVersion splits a trailing _v<digits> suffix off the stripped name.
// The version is normalized to "v" plus at least three digits; it is empty when
// the name carries no suffix.
func BaseNameAndVersion(name string) (baseName, version string) {
	stripped := StripExtension(name)
	m := versionSuffixRe.FindStringSubmatch(stripped)
	if m == nil || m[1] == "" {
		return stripped, ""
	}
	return m[1], NormalizeVersion(m[2])
}

// NormalizeVersion zero-pads a digit group to three places: "7" -> "v007".
// Digit groups too large for an int are kept verbatim.
func NormalizeVersion(digits string) string {
	n, err := strconv.Atoi(digits)
	if err != nil {
		return "v" + digits
	}
	return fmt.Sprintf("v%03d", n)
}

// StackKey returns the base name and version used to stack an upload onto an asset.
// The _split suffix is removed first so a split caption stacks like its video.
func StackKey(name string) (baseName, version string) {
	return BaseNameAndVersion(MatchKey(name))
}

// TranslatedBase strips a trailing _translated from the stripped name.
// ok is false when the name carries no such suffix.
func TranslatedBase(name string) (base string, ok bool) {
	stripped := StripExtension(name)
	if !translatedRe.MatchString(stripped) {
		return stripped, false
	}
	return translatedRe.ReplaceAllString(stripped, ""), true
}
