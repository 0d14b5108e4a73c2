package main

import (
	"reflect"
	"testing"
)

func TestRewriteDirectBoardArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "no args",
			in:   []string{"moodboard"},
			want: []string{"moodboard"},
		},
		{
			name: "direct board id first token",
			in:   []string{"moodboard", "board-abc123"},
			want: []string{"moodboard", "panel", "board-abc123"},
		},
		{
			name: "direct board id after value flag",
			in:   []string{"moodboard", "--dir", "./tmp-boards", "board-abc123"},
			want: []string{"moodboard", "--dir", "./tmp-boards", "panel", "board-abc123"},
		},
		{
			name: "direct board id after equals flag",
			in:   []string{"moodboard", "--sync=redis", "board-abc123"},
			want: []string{"moodboard", "--sync=redis", "panel", "board-abc123"},
		},
		{
			name: "direct board id after bool flag",
			in:   []string{"moodboard", "--pretty", "board-abc123"},
			want: []string{"moodboard", "--pretty", "panel", "board-abc123"},
		},
		{
			name: "direct board id after double dash",
			in:   []string{"moodboard", "--store", "file", "--", "board-abc123"},
			want: []string{"moodboard", "--store", "file", "--", "panel", "board-abc123"},
		},
		{
			name: "normal subcommand not rewritten",
			in:   []string{"moodboard", "layers", "list", "board-abc123"},
			want: []string{"moodboard", "layers", "list", "board-abc123"},
		},
		{
			name: "bare prefix is not a board id",
			in:   []string{"moodboard", "board-"},
			want: []string{"moodboard", "board-"},
		},
		{
			name: "companion flag after board id is kept",
			in:   []string{"moodboard", "board-abc123", "--companion"},
			want: []string{"moodboard", "panel", "board-abc123", "--companion"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := rewriteDirectBoardArgs(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("rewriteDirectBoardArgs(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
