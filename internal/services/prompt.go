package services

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Prompter gates mutating actions behind operator confirmation.
type Prompter interface {
	// Confirm asks a yes/no question.
	Confirm(prompt string) (bool, error)

	// ConfirmPhrase requires the operator to type an exact phrase.
	// Used for the production tier, where a reflexive "y" is too easy.
	ConfirmPhrase(prompt, phrase string) (bool, error)
}

// TerminalPrompter reads confirmations from an input stream,
// normally stdin.
type TerminalPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewTerminalPrompter creates a prompter on stdin/stderr.
func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{
		in:  bufio.NewReader(os.Stdin),
		out: os.Stderr,
	}
}

func (p *TerminalPrompter) Confirm(prompt string) (bool, error) {
	fmt.Fprintf(p.out, "%s [y/N]: ", prompt)
	line, err := p.in.ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

func (p *TerminalPrompter) ConfirmPhrase(prompt, phrase string) (bool, error) {
	fmt.Fprintf(p.out, "%s\nType %q to continue: ", prompt, phrase)
	line, err := p.in.ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}
	return strings.TrimSpace(line) == phrase, nil
}
