package textfmt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlain(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "   ", ""},
		{"emphasis", "A **galaxy** is *big*.", "A galaxy is big."},
		{"paragraphs", "First.\n\nSecond.", "First.\n\nSecond."},
		{"soft wrap", "one\ntwo", "one two"},
		{"bullets", "- red\n- blue", "• red\n• blue"},
		{"ordered", "1. red\n2. blue", "1. red\n2. blue"},
		{"heading", "# Title\n\nBody", "Title\n\nBody"},
		{"inline code", "use `u-g` colour", "use u-g colour"},
		{"list after text", "Causes:\n\n- a\n- b\n\nDone.", "Causes:\n\n• a\n• b\n\nDone."},
		{"table", "| Band | Value |\n|---|---|\n| u | 19.5 |\n| g | 18.9 |", "Band | Value\nu | 19.5\ng | 18.9"},
		{"table between paragraphs", "Bands:\n\n| Band | Value |\n|---|---|\n| u | 19.5 |\n\nDone.", "Bands:\n\nBand | Value\nu | 19.5\n\nDone."},
		{"image alt text", "A galaxy![img](x.png) here", "A galaxy img here"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, Plain(tc.in))
		})
	}
}
