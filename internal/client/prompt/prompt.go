// Package prompt reads the shell's interactive input: command lines, login
// credentials with hidden password entry, and the terminal stand-in for the
// device biometric check.
package prompt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter reads answers from in and writes labels to out.
type Prompter struct {
	in      io.Reader
	out     io.Writer
	scanner *bufio.Scanner
}

// New returns a Prompter. When in is a terminal, passwords are read without
// echo.
func New(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: in, out: out, scanner: bufio.NewScanner(in)}
}

// Line prints label and reads one trimmed line. It returns io.EOF when the
// input is exhausted.
func (p *Prompter) Line(label string) (string, error) {
	if label != "" {
		fmt.Fprint(p.out, label)
	}
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(p.scanner.Text()), nil
}

// Password prints label and reads a secret, hidden when in is a terminal.
func (p *Prompter) Password(label string) (string, error) {
	f, ok := p.in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return p.Line(label)
	}
	fmt.Fprint(p.out, label)
	b, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}

// Credentials asks for a username and a password.
func (p *Prompter) Credentials() (username, password string, err error) {
	username, err = p.Line("Username: ")
	if err != nil {
		return "", "", err
	}
	password, err = p.Password("Password: ")
	if err != nil {
		return "", "", err
	}
	return username, password, nil
}

// Confirm asks a yes/no question. Anything but y or yes is a no.
func (p *Prompter) Confirm(question string) (bool, error) {
	answer, err := p.Line(question + " [y/N]: ")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// TerminalBiometrics stands in for a fingerprint or face check by asking the
// user to confirm on the terminal.
type TerminalBiometrics struct {
	Prompter *Prompter
	// Enrolled reports whether a biometric is registered. When false the
	// challenge is never shown.
	Enrolled bool
}

// HasHardware reports whether there is a terminal to confirm on.
func (b *TerminalBiometrics) HasHardware(context.Context) bool {
	return b.Prompter != nil
}

// IsEnrolled returns b.Enrolled.
func (b *TerminalBiometrics) IsEnrolled(context.Context) bool {
	return b.Enrolled
}

// Authenticate shows prompt and waits for a confirmation.
func (b *TerminalBiometrics) Authenticate(ctx context.Context, prompt string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return b.Prompter.Confirm(prompt + ": confirm biometric")
}
