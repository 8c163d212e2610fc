package telegram

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/samber/oops"
)

// StdinPrompter collects login credentials interactively. It satisfies
// the session credential prompter for transports that need them.
type StdinPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

func NewStdinPrompter() *StdinPrompter {
	return &StdinPrompter{
		in:  bufio.NewReader(os.Stdin),
		out: os.Stdout,
	}
}

func (p *StdinPrompter) Code(ctx context.Context) (string, error) {
	return p.ask(ctx, "Enter the login code: ")
}

func (p *StdinPrompter) Password(ctx context.Context) (string, error) {
	return p.ask(ctx, "Enter the two-factor password: ")
}

func (p *StdinPrompter) ask(ctx context.Context, prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)

	type answer struct {
		line string
		err  error
	}
	ch := make(chan answer, 1)
	go func() {
		line, err := p.in.ReadString('\n')
		ch <- answer{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case a := <-ch:
		if a.err != nil {
			return "", oops.With("context", "failed to read credential").Wrap(a.err)
		}
		value := strings.TrimSpace(a.line)
		if value == "" {
			return "", oops.Errorf("empty credential")
		}
		return value, nil
	}
}
