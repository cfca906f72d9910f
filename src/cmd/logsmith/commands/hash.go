package commands

import (
	"crypto/rand"
	"encoding/base64"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"logsmith/src/internal/trace"

	"golang.org/x/term"
)

const defaultTokenLength = 32

// HashCommand generates credentials for the trace HTTP endpoint
type HashCommand struct {
	output io.Writer
	errOut io.Writer
	// Reads a password without echo; replaced in tests
	readPassword func(prompt string) (string, error)
}

func NewHashCommand() *HashCommand {
	c := &HashCommand{
		output: os.Stdout,
		errOut: os.Stderr,
	}
	c.readPassword = c.promptPassword
	return c
}

func (hc *HashCommand) Execute(args []string) error {
	cmd := flag.NewFlagSet("hash", flag.ContinueOnError)
	cmd.SetOutput(hc.errOut)

	var (
		username     = cmd.String("u", "", "Username")
		usernameLong = cmd.String("user", "", "Username")
		password     = cmd.String("p", "", "Password (will prompt if not provided)")
		passwordLong = cmd.String("password", "", "Password (will prompt if not provided)")
		genToken     = cmd.Bool("k", false, "Generate a random bearer token instead")
		genTokenLong = cmd.Bool("token", false, "Generate a random bearer token instead")
		tokenLen     = cmd.Int("l", defaultTokenLength, "Token length in bytes")
	)
	cmd.Usage = func() {
		fmt.Fprint(hc.errOut, hc.Help())
	}

	if err := cmd.Parse(args); err != nil {
		return err
	}
	if cmd.NArg() > 0 {
		return fmt.Errorf("unexpected argument(s): %s", strings.Join(cmd.Args(), " "))
	}

	if *genToken || *genTokenLong {
		return hc.generateToken(*tokenLen)
	}

	user := coalesceString(*username, *usernameLong)
	if user == "" {
		cmd.Usage()
		return fmt.Errorf("username required")
	}

	pass := coalesceString(*password, *passwordLong)
	if pass == "" {
		var err error
		if pass, err = hc.promptForPassword(); err != nil {
			return err
		}
	}
	return hc.generateBasicAuth(user, pass)
}

func (hc *HashCommand) Description() string {
	return "Generate trace endpoint credentials (argon2id hashes, bearer tokens)"
}

func (hc *HashCommand) Help() string {
	return `Hash Command - Generate credentials for the trace HTTP endpoint

Usage:
  logsmith hash -u <user> [-p <password>]
  logsmith hash -k [-l <bytes>]

Options:
  -u, --user <name>        Username for basic auth
  -p, --password <pass>    Password (prompted without echo if omitted)
  -k, --token              Generate a random bearer token
  -l <bytes>               Token length in bytes (default: 32)

Output:
  A TOML snippet for [logging.trace.http.auth] in logsmith.toml.
`
}

func (hc *HashCommand) promptForPassword() (string, error) {
	pass1, err := hc.readPassword("Enter password: ")
	if err != nil {
		return "", err
	}
	pass2, err := hc.readPassword("Confirm password: ")
	if err != nil {
		return "", err
	}
	if pass1 != pass2 {
		return "", fmt.Errorf("passwords don't match")
	}
	if pass1 == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	return pass1, nil
}

func (hc *HashCommand) promptPassword(prompt string) (string, error) {
	fmt.Fprint(hc.errOut, prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(hc.errOut)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(password), nil
}

// generateBasicAuth prints an argon2id PHC hash as a config snippet
func (hc *HashCommand) generateBasicAuth(username, password string) error {
	phc, err := trace.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	fmt.Fprintln(hc.output, "\n# Basic auth for the trace HTTP endpoint")
	fmt.Fprintln(hc.output, "# Credentials travel in clear text unless a TLS proxy fronts the endpoint")
	fmt.Fprintln(hc.output, "")
	fmt.Fprintln(hc.output, "[logging.trace.http.auth]")
	fmt.Fprintln(hc.output, `type = "basic"`)
	fmt.Fprintln(hc.output, "")
	fmt.Fprintln(hc.output, "[[logging.trace.http.auth.users]]")
	fmt.Fprintf(hc.output, "username = %q\n", username)
	fmt.Fprintf(hc.output, "password_hash = %q\n", phc)
	return nil
}

func (hc *HashCommand) generateToken(length int) error {
	if length < 16 {
		fmt.Fprintln(hc.errOut, "Warning: tokens < 16 bytes are cryptographically weak")
	}
	if length > 512 {
		return fmt.Errorf("token length exceeds maximum (512 bytes)")
	}

	token := make([]byte, length)
	if _, err := rand.Read(token); err != nil {
		return fmt.Errorf("failed to generate random bytes: %w", err)
	}
	b64 := base64.RawURLEncoding.EncodeToString(token)

	fmt.Fprintln(hc.output, "\n# Bearer token for the trace HTTP endpoint")
	fmt.Fprintln(hc.output, "")
	fmt.Fprintln(hc.output, "[logging.trace.http.auth]")
	fmt.Fprintln(hc.output, `type = "bearer"`)
	fmt.Fprintf(hc.output, "tokens = [%q]\n", b64)
	return nil
}
