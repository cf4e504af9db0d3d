package turn

import (
	"reflect"
	"testing"
)

func TestSplitBubbles(t *testing.T) {
	cases := []struct {
		name string
		text string
		want []string
	}{
		{"plain reply", "just one bubble", []string{"just one bubble"}},
		{"two bubbles", "first ||| second", []string{"first", "second"}},
		{"empty segments dropped", "||| only |||  ||| ", []string{"only"}},
		{"whitespace trimmed", "  a  |||\n b ", []string{"a", "b"}},
	}
	for _, tc := range cases {
		got := SplitBubbles(tc.text)
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%s: SplitBubbles(%q) = %v, want %v", tc.name, tc.text, got, tc.want)
		}
	}
}
