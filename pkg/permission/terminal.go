package permission

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// TerminalPrompter asks for microphone access on the controlling terminal.
// The zero value prompts on stdin/stdout.
type TerminalPrompter struct {
	In  io.Reader
	Out io.Writer
}

// Query reports no cached answer: the terminal cannot inspect OS-level
// permission state, so the gate falls through to its persisted record.
func (p *TerminalPrompter) Query(ctx context.Context) (bool, bool) {
	return false, false
}

// Prompt asks the user and reads a single line. Anything other than an
// explicit yes is treated as denial.
func (p *TerminalPrompter) Prompt(ctx context.Context) (bool, error) {
	in := p.In
	if in == nil {
		in = os.Stdin
	}
	out := p.Out
	if out == nil {
		out = os.Stdout
	}

	fmt.Fprint(out, "Allow microphone access? [y/N]: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false, err
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
