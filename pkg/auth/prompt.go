package auth

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/term"
)

// Prompter asks the user for an account on the terminal
type Prompter struct {
	In  io.Reader
	Out io.Writer
	// ReadPassword reads a line without echo. When nil the password is read
	// like any other line.
	ReadPassword func() ([]byte, error)

	reader *bufio.Reader
}

// NewTerminalPrompter prompts on stdin/stdout, hiding the password when
// stdin is a terminal
func NewTerminalPrompter() *Prompter {
	p := &Prompter{In: os.Stdin, Out: os.Stdout}
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		p.ReadPassword = func() ([]byte, error) {
			return term.ReadPassword(fd)
		}
	}
	return p
}

func (p *Prompter) line() (string, error) {
	if p.reader == nil {
		p.reader = bufio.NewReader(p.In)
	}
	s, err := p.reader.ReadString('\n')
	if err != nil && (err != io.EOF || s == "") {
		return "", err
	}
	return strings.TrimSpace(s), nil
}

// Account asks for the username unless one is given, then the password
func (p *Prompter) Account(username string) (*Account, error) {
	if username == "" {
		fmt.Fprint(p.Out, "Musinsa ID: ")
		input, err := p.line()
		if err != nil {
			return nil, fmt.Errorf("failed to read username: %w", err)
		}
		username = input
	}
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidCredentials)
	}

	fmt.Fprint(p.Out, "Password: ")
	var password string
	if p.ReadPassword != nil {
		raw, err := p.ReadPassword()
		fmt.Fprintln(p.Out)
		if err != nil {
			return nil, fmt.Errorf("failed to read password: %w", err)
		}
		password = strings.TrimSpace(string(raw))
	} else {
		input, err := p.line()
		if err != nil {
			return nil, fmt.Errorf("failed to read password: %w", err)
		}
		password = input
	}
	if password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidCredentials)
	}

	return &Account{Username: username, Password: password, LastModified: time.Now()}, nil
}

// Confirm asks a yes/no question, defaulting to yes on an empty answer
func (p *Prompter) Confirm(question string) bool {
	fmt.Fprintf(p.Out, "%s (Y/n): ", question)
	answer, err := p.line()
	if err != nil {
		return false
	}
	answer = strings.ToLower(answer)
	return answer == "" || answer == "y" || answer == "yes"
}

// Ask prints prompt and returns the trimmed answer
func (p *Prompter) Ask(prompt string) (string, error) {
	fmt.Fprint(p.Out, prompt)
	return p.line()
}

// Choice reads a menu number
func (p *Prompter) Choice(prompt string) (int, error) {
	answer, err := p.Ask(prompt)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(answer)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", answer)
	}
	return n, nil
}
