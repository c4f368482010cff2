//go:build !sqlite_fts5

package index

import "testing"

func TestSnippet(t *testing.T) {
	tests := []struct {
		name, body, term string
		width            int
		want             string
	}{
		{"centered", "one two three four five", "three", 8, "…two <mark>three</mark> fou…"},
		{"case", "Hello World", "world", 20, "Hello <mark>World</mark>"},
		{"escaped", "<b>tag</b> x", "x", 40, "&lt;b&gt;tag&lt;/b&gt; <mark>x</mark>"},
		{"absent", "abcdef", "zz", 3, "abc…"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := snippet(tt.body, tt.term, tt.width); got != tt.want {
				t.Errorf("snippet = %q, want %q", got, tt.want)
			}
		})
	}
}
