// Package pathutil holds the pure helpers the worker applies to
// controller-supplied names: the locality check that gates every
// filesystem operation, and the "%d" / "%0Nd" parameter substitution used
// to derive per-worker file and output names.
package pathutil

import (
	"fmt"
	"strings"
)

// IsPathnameLocal reports whether pathname stays inside the worker's
// working directory. Absolute paths are rejected, and so is any path
// containing ".." anywhere, including names such as "foo..bar".
func IsPathnameLocal(pathname string) bool {
	// Can't be absolute.
	if strings.HasPrefix(pathname, "/") {
		return false
	}

	// Can't reference a parent directory.
	if strings.Contains(pathname, "..") {
		return false
	}

	return true
}

// MaxParameterWidth is the widest zero padding a marker may request. A
// "%0Nd" with a larger N is not a marker.
const MaxParameterWidth = 32

// FindParameter locates the first "%d" or "%0Nd" marker in s. It returns the
// byte offsets of the marker (begin inclusive, end exclusive) and the zero
// padding width, which is 0 for "%d".
func FindParameter(s string) (begin, end, width int, ok bool) {
	i := 0
	for {
		idx := strings.IndexByte(s[i:], '%')
		if idx < 0 {
			return 0, 0, 0, false
		}
		begin = i + idx

		// Skip %.
		p := begin + 1
		if p < len(s) && (s[p] == '0' || s[p] == 'd') {
			width = 0
			tooWide := false
			for p < len(s) && s[p] >= '0' && s[p] <= '9' {
				if !tooWide {
					width = width*10 + int(s[p]-'0')
					tooWide = width > MaxParameterWidth
				}
				p++
			}
			if p < len(s) && s[p] == 'd' && !tooWide {
				return begin, p + 1, width, true
			}
		}
		i = p
	}
}

// HasParameter reports whether s contains a "%d" or "%0Nd" marker.
func HasParameter(s string) bool {
	_, _, _, ok := FindParameter(s)
	return ok
}

// SubstituteParameter replaces every "%d" or "%0Nd" marker in s with value,
// left to right. A negative value, or a string without markers, is returned
// unchanged.
func SubstituteParameter(s string, value int) string {
	if value < 0 {
		return s
	}

	var b strings.Builder
	for {
		begin, end, width, ok := FindParameter(s)
		if !ok {
			b.WriteString(s)
			return b.String()
		}

		b.WriteString(s[:begin])
		if width == 0 {
			fmt.Fprintf(&b, "%d", value)
		} else {
			fmt.Fprintf(&b, "%0*d", width, value)
		}
		s = s[end:]
	}
}
