package pathutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestIsPathnameLocal tests the locality check applied to remote pathnames
func TestIsPathnameLocal(t *testing.T) {
	tests := []struct {
		name     string
		pathname string
		want     bool
	}{
		{name: "relative file", pathname: "a/b.txt", want: true},
		{name: "bare file", pathname: "frame.png", want: true},
		{name: "current dir prefix", pathname: "./frame.png", want: true},
		{name: "empty", pathname: "", want: true},
		{name: "absolute", pathname: "/etc/passwd", want: false},
		{name: "root", pathname: "/", want: false},
		{name: "parent traversal", pathname: "a/../b", want: false},
		{name: "leading parent", pathname: "../b", want: false},
		{name: "dots inside name", pathname: "a..b", want: false},
		{name: "trailing dots", pathname: "foo..", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPathnameLocal(tt.pathname))
		})
	}
}

// TestFindParameter tests marker location and width parsing
func TestFindParameter(t *testing.T) {
	tests := []struct {
		name      string
		s         string
		wantBegin int
		wantEnd   int
		wantWidth int
		wantOK    bool
	}{
		{name: "plain", s: "out-%d.png", wantBegin: 4, wantEnd: 6, wantWidth: 0, wantOK: true},
		{name: "padded", s: "out-%03d.png", wantBegin: 4, wantEnd: 8, wantWidth: 3, wantOK: true},
		{name: "zero width", s: "%0d", wantBegin: 0, wantEnd: 3, wantWidth: 0, wantOK: true},
		{name: "wide", s: "x%012d", wantBegin: 1, wantEnd: 6, wantWidth: 12, wantOK: true},
		{name: "skips bad marker", s: "%0x-%d", wantBegin: 4, wantEnd: 6, wantWidth: 0, wantOK: true},
		{name: "double percent", s: "%%d", wantBegin: 1, wantEnd: 3, wantWidth: 0, wantOK: true},
		{name: "no marker", s: "no-params", wantOK: false},
		{name: "unpadded width", s: "%5d", wantOK: false},
		{name: "other verb", s: "%s", wantOK: false},
		{name: "trailing percent", s: "abc%", wantOK: false},
		{name: "unterminated", s: "%03", wantOK: false},
		{name: "widest", s: "w%032d", wantBegin: 1, wantEnd: 6, wantWidth: MaxParameterWidth, wantOK: true},
		{name: "too wide", s: "w%033d", wantOK: false},
		{name: "width overflows int", s: "w%018446744073709551615d", wantOK: false},
		{name: "skips too wide marker", s: "%02000000d-%02d", wantBegin: 11, wantEnd: 15, wantWidth: 2, wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			begin, end, width, ok := FindParameter(tt.s)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantBegin, begin)
				assert.Equal(t, tt.wantEnd, end)
				assert.Equal(t, tt.wantWidth, width)
			}
		})
	}
}

// TestHasParameter tests marker detection
func TestHasParameter(t *testing.T) {
	assert.True(t, HasParameter("out-%d.png"))
	assert.True(t, HasParameter("out-%04d.png"))
	assert.False(t, HasParameter("out.png"))
	assert.False(t, HasParameter("100%"))
}

// TestSubstituteParameter tests value substitution
func TestSubstituteParameter(t *testing.T) {
	tests := []struct {
		name  string
		s     string
		value int
		want  string
	}{
		{name: "plain", s: "out-%d.png", value: 7, want: "out-7.png"},
		{name: "padded", s: "out-%03d.png", value: 7, want: "out-007.png"},
		{name: "padding narrower than value", s: "%02d", value: 1234, want: "1234"},
		{name: "no params", s: "no-params", value: 7, want: "no-params"},
		{name: "every marker", s: "%d-%d", value: 3, want: "3-3"},
		{name: "mixed widths", s: "f%04d/%d.exr", value: 12, want: "f0012/12.exr"},
		{name: "negative unchanged", s: "%d", value: -1, want: "%d"},
		{name: "zero", s: "%03d", value: 0, want: "000"},
		{name: "bad marker kept", s: "%s-%d", value: 5, want: "%s-5"},
		{name: "empty", s: "", value: 5, want: ""},
		{name: "too wide kept", s: "w%02000000d", value: 7, want: "w%02000000d"},
		{name: "overflowing width kept", s: "w%018446744073709551615d", value: 7, want: "w%018446744073709551615d"},
		{name: "widest padded", s: "%032d", value: 7, want: strings.Repeat("0", 31) + "7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SubstituteParameter(tt.s, tt.value))
		})
	}
}
