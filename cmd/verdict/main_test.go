package main

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRewriteTopicShorthandArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "no args",
			in:   []string{"verdict"},
			want: []string{"verdict"},
		},
		{
			name: "topic first token",
			in:   []string{"verdict", "@Energy"},
			want: []string{"verdict", "tests", "list", "Energy"},
		},
		{
			name: "topic with spaces and trailing flags",
			in:   []string{"verdict", "@Solar Energy", "--expand-all"},
			want: []string{"verdict", "tests", "list", "Solar Energy", "--expand-all"},
		},
		{
			name: "topic after value flag",
			in:   []string{"verdict", "--dir", "./tmp-cache", "@Energy"},
			want: []string{"verdict", "--dir", "./tmp-cache", "tests", "list", "Energy"},
		},
		{
			name: "topic after equals flag",
			in:   []string{"verdict", "--format=yaml", "@Energy"},
			want: []string{"verdict", "--format=yaml", "tests", "list", "Energy"},
		},
		{
			name: "topic after bool flag",
			in:   []string{"verdict", "--pretty", "@Energy"},
			want: []string{"verdict", "--pretty", "tests", "list", "Energy"},
		},
		{
			name: "topic after double dash",
			in:   []string{"verdict", "--", "@Energy"},
			want: []string{"verdict", "--", "tests", "list", "Energy"},
		},
		{
			name: "bare at sign is not a topic",
			in:   []string{"verdict", "@"},
			want: []string{"verdict", "@"},
		},
		{
			name: "normal subcommand not rewritten",
			in:   []string{"verdict", "tests", "list", "@Energy"},
			want: []string{"verdict", "tests", "list", "@Energy"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if diff := cmp.Diff(tc.want, rewriteTopicShorthandArgs(tc.in)); diff != "" {
				t.Fatalf("args mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
