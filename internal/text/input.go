// Package text holds the text-level rules shared by the tokenizer and its
// callers: segmentation into atomic tokens, case folding, and the boundary
// checks applied to user input before it reaches the tokenizer.
package text

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrEmptyText is returned when the input text is empty or whitespace-only.
	ErrEmptyText = errors.New("text is empty")
	// ErrEmptyIDs is returned when an id list contains no ids.
	ErrEmptyIDs = errors.New("no token ids given")
)

// Normalize checks raw caller input. Line endings become \n and surrounding
// whitespace is trimmed; empty or whitespace-only input is rejected.
func Normalize(s string) (string, error) {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.TrimSpace(s)

	if s == "" {
		return "", ErrEmptyText
	}

	return s, nil
}

// ParseIDs reads a list of integer ids separated by commas and/or whitespace,
// optionally wrapped in square brackets ("[2, 4, 5, 3]" and "2 4 5 3" are equal).
func ParseIDs(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")

	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	if len(fields) == 0 {
		return nil, ErrEmptyIDs
	}

	ids := make([]int, 0, len(fields))
	for _, f := range fields {
		id, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("parse token id %q: %w", f, err)
		}

		ids = append(ids, id)
	}

	return ids, nil
}
