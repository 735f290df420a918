package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
)

// ErrAborted is returned by Prompt when the user presses Ctrl+C.
var ErrAborted = errors.New("prompt aborted")

// LineReader reads one line of user input after printing a prompt.
// Implementations return io.EOF when input is exhausted.
type LineReader interface {
	Prompt(prompt string) (string, error)
	Close() error
}

// LinerReader provides line editing and persistent history on a terminal.
type LinerReader struct {
	line        *liner.State
	historyFile string
}

// NewLinerReader creates a terminal reader. historyFile may be empty.
func NewLinerReader(historyFile string) *LinerReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	r := &LinerReader{line: line, historyFile: historyFile}
	if historyFile != "" {
		if f, err := os.Open(historyFile); err == nil {
			_, _ = line.ReadHistory(f)
			f.Close()
		}
	}
	return r
}

func (r *LinerReader) Prompt(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if err != nil {
		if errors.Is(err, liner.ErrPromptAborted) {
			return "", ErrAborted
		}
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves history and restores the terminal.
func (r *LinerReader) Close() error {
	if r.historyFile != "" {
		if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
			_, _ = r.line.WriteHistory(f)
			f.Close()
		}
	}
	return r.line.Close()
}

// ScannerReader reads lines from a plain stream, for piped input.
type ScannerReader struct {
	scanner *bufio.Scanner
	out     io.Writer
}

// NewScannerReader reads from in and echoes prompts to out.
func NewScannerReader(in io.Reader, out io.Writer) *ScannerReader {
	s := bufio.NewScanner(in)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &ScannerReader{scanner: s, out: out}
}

func (r *ScannerReader) Prompt(prompt string) (string, error) {
	fmt.Fprint(r.out, prompt)
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.scanner.Text(), nil
}

func (r *ScannerReader) Close() error { return nil }
