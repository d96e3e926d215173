package util

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
	"unicode"

	"storefront/pkg/apierror"
)

var invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]`)

var windowsReservedNames = map[string]struct{}{
	"CON":  {},
	"PRN":  {},
	"AUX":  {},
	"NUL":  {},
	"COM1": {},
	"COM2": {},
	"COM3": {},
	"COM4": {},
	"COM5": {},
	"COM6": {},
	"COM7": {},
	"COM8": {},
	"COM9": {},
	"LPT1": {},
	"LPT2": {},
	"LPT3": {},
	"LPT4": {},
	"LPT5": {},
	"LPT6": {},
	"LPT7": {},
	"LPT8": {},
	"LPT9": {},
}

func SanitizeFilename(name string, allowHidden bool) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", apierror.BadRequest("filename cannot be empty", "")
	}

	if strings.Contains(trimmed, "\x00") {
		return "", apierror.BadRequest("filename contains null bytes", trimmed)
	}

	builder := strings.Builder{}
	builder.Grow(len(trimmed))

	for _, char := range trimmed {
		if unicode.IsControl(char) || isInvisibleUnicode(char) {
			continue
		}

		builder.WriteRune(char)
	}

	withoutControl := builder.String()
	replaced := invalidFilenameChars.ReplaceAllString(withoutControl, "_")
	cleaned := strings.TrimSpace(replaced)

	if cleaned == "" {
		return "", apierror.BadRequest("filename is invalid after sanitization", trimmed)
	}

	// Truncate by runes (not bytes) to avoid splitting multi-byte characters.
	runes := []rune(cleaned)
	if len(runes) > 255 {
		runes = runes[:255]
	}
	cleaned = string(runes)

	if strings.HasPrefix(cleaned, ".") && !allowHidden {
		return "", apierror.BadRequest("hidden filenames are not allowed", cleaned)
	}

	stem := cleaned
	if idx := strings.Index(cleaned, "."); idx >= 0 {
		stem = cleaned[:idx]
	}

	if _, exists := windowsReservedNames[strings.ToUpper(stem)]; exists {
		return "", apierror.BadRequest("reserved filename is not allowed", cleaned)
	}

	if cleaned == "." || cleaned == ".." {
		return "", apierror.BadRequest("filename cannot be current or parent directory", cleaned)
	}

	if strings.Contains(cleaned, string(rune(0))) {
		return "", fmt.Errorf("unexpected null byte in filename")
	}

	return cleaned, nil
}

// isInvisibleUnicode returns true for zero-width, formatting, and other
// invisible Unicode characters that should be stripped from filenames.
func isInvisibleUnicode(r rune) bool {
	switch r {
	case
		'\u200B', // Zero-Width Space
		'\u200C', // Zero-Width Non-Joiner
		'\u200D', // Zero-Width Joiner
		'\u200E', // Left-to-Right Mark
		'\u200F', // Right-to-Left Mark
		'\u2060', // Word Joiner
		'\u2061', // Function Application
		'\u2062', // Invisible Times
		'\u2063', // Invisible Separator
		'\u2064', // Invisible Plus
		'\uFEFF', // Zero-Width No-Break Space / BOM
		'\uFFF9', // Interlinear Annotation Anchor
		'\uFFFA', // Interlinear Annotation Separator
		'\uFFFB': // Interlinear Annotation Terminator
		return true
	}

	// Unicode categories for format and non-characters
	if unicode.Is(unicode.Cf, r) { // Format characters (Cf category)
		return true
	}

	return false
}

var invalidUsernameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// UsernameFromEmail derives an account name from the local part of an email
// address, restricted to letters, digits, underscores and hyphens and to at
// most maxLen characters.
func UsernameFromEmail(email string, maxLen int) string {
	local := strings.TrimSpace(email)
	if at := strings.IndexByte(local, '@'); at >= 0 {
		local = local[:at]
	}

	name := strings.Trim(invalidUsernameChars.ReplaceAllString(local, "_"), "_")
	if name == "" {
		name = "user"
	}
	for len(name) < 3 {
		name += "_"
	}

	if len(name) > maxLen {
		name = name[:maxLen]
	}

	return name
}

// WithRandomSuffix appends "-" and n random digits, truncating name so the
// result stays within maxLen.
func WithRandomSuffix(name string, n int, maxLen int) string {
	digits := make([]byte, n)
	for i := range digits {
		digits[i] = byte('0' + rand.IntN(10))
	}

	keep := maxLen - n - 1
	if keep < len(name) && keep >= 0 {
		name = name[:keep]
	}

	return name + "-" + string(digits)
}
