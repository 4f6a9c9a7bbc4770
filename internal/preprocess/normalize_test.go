package preprocess

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "collapses whitespace runs",
			in:   "Invoice   No.\t\t12345",
			want: "Invoice No. 12345",
		},
		{
			name: "unifies CRLF",
			in:   "line one\r\nline two\rline three",
			want: "line one\nline two\nline three",
		},
		{
			name: "strips page footers",
			in:   "Tender Notice\nPage 1 of 3\npage 2\nClosing soon",
			want: "Tender Notice\nClosing soon",
		},
		{
			name: "strips numeric-only lines",
			in:   "Heading\n42\nBody text",
			want: "Heading\nBody text",
		},
		{
			name: "replaces non-ascii runs with single space",
			in:   "Supply of 10  units — urgent",
			want: "Supply of 10 units urgent",
		},
		{
			name: "mixed script content keeps word boundaries",
			in:   "Ministryوزارةof Works",
			want: "Ministry of Works",
		},
		{
			name: "trims leading and trailing whitespace",
			in:   "  \n\n  hello world  \n ",
			want: "hello world",
		},
		{
			name: "empty input",
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"plain text",
		"Invoice   No.\t12345\r\nPage 1 of 2\r\nééé total",
		"  spaced  \n\n7\nPage 3\nremainder  ",
		strings.Repeat("word … ", 40),
	}

	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestReadable(t *testing.T) {
	long := strings.Repeat("a", DefaultMinLength)

	assert.True(t, Readable(long, 0))
	assert.False(t, Readable(long[:DefaultMinLength-1], 0))
	assert.True(t, Readable("short but allowed", 5))
	assert.False(t, Readable("no", 5))
}
