package text

import (
	"errors"
	"slices"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{name: "passthrough clean text", input: "Hello world", want: "Hello world"},
		{name: "trims surrounding whitespace", input: "  Hello world  ", want: "Hello world"},
		{name: "trims tabs and newlines from edges", input: "\t\n Hello \n\t", want: "Hello"},
		{name: "normalizes CRLF to LF", input: "line one\r\nline two", want: "line one\nline two"},
		{name: "normalizes bare CR to LF", input: "line one\rline two", want: "line one\nline two"},
		{name: "preserves internal whitespace", input: "  hello   world  ", want: "hello   world"},
		{name: "rejects empty string", input: "", wantErr: ErrEmptyText},
		{name: "rejects whitespace-only string", input: "   \t\n  ", wantErr: ErrEmptyText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected error %v, got %v", tt.wantErr, err)
				}

				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseIDs(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []int
		wantErr bool
	}{
		{name: "space separated", input: "2 4 5 3", want: []int{2, 4, 5, 3}},
		{name: "comma separated", input: "2,4,5,3", want: []int{2, 4, 5, 3}},
		{name: "json style array", input: "[2, 4, 5, 3]", want: []int{2, 4, 5, 3}},
		{name: "newlines", input: "7\n8\n", want: []int{7, 8}},
		{name: "negative ids parse", input: "-1", want: []int{-1}},
		{name: "empty", input: "   ", wantErr: true},
		{name: "empty brackets", input: "[]", wantErr: true},
		{name: "not a number", input: "1 two 3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIDs(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseIDs(%q) = %v, want error", tt.input, got)
				}

				return
			}

			if err != nil {
				t.Fatalf("ParseIDs(%q): %v", tt.input, err)
			}

			if !slices.Equal(got, tt.want) {
				t.Errorf("ParseIDs(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseIDs_EmptyIsErrEmptyIDs(t *testing.T) {
	_, err := ParseIDs("")
	if !errors.Is(err, ErrEmptyIDs) {
		t.Fatalf("expected ErrEmptyIDs, got %v", err)
	}
}
