package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	textpkg "github.com/example/go-dyntok/internal/text"
)

// readText returns flag text, falling back to stdin.
func readText(text string, stdin io.Reader) (string, error) {
	if strings.TrimSpace(text) != "" {
		return text, nil
	}

	b, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	input, err := textpkg.Normalize(string(b))
	if err != nil {
		return "", fmt.Errorf("either provide --text or pipe text on stdin: %w", err)
	}
	return input, nil
}

// readIDs parses ids from positional args, falling back to stdin.
func readIDs(args []string, stdin io.Reader) ([]int, error) {
	if len(args) > 0 {
		return textpkg.ParseIDs(strings.Join(args, " "))
	}

	b, err := io.ReadAll(stdin)
	if err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	ids, err := textpkg.ParseIDs(string(b))
	if err != nil {
		return nil, fmt.Errorf("either pass ids as arguments or pipe them on stdin: %w", err)
	}
	return ids, nil
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func writeOutput(outPath string, data []byte, stdout io.Writer) error {
	if outPath == "-" {
		if stdout == nil {
			return fmt.Errorf("stdout writer is nil")
		}
		_, err := stdout.Write(data)
		return err
	}
	return os.WriteFile(outPath, data, 0o644)
}
