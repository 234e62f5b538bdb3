// Command client registers or logs in against the auth API from a terminal.
//
//	client register -full-name "Jane Doe" -email jane@x.com -username janed
//	client login -email jane@x.com
//
// Missing fields are prompted for; passwords are always read without echo
// unless -password is given.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"andromeda-healthcare/internal/client"
)

// readPassword is swapped out in tests.
var readPassword = func() ([]byte, error) { return term.ReadPassword(int(os.Stdin.Fd())) }

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}

	cmd, rest := args[0], args[1:]
	fs := flag.NewFlagSet("client "+cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)
	baseURL := fs.String("url", envOr("AUTH_API_URL", "http://localhost:8080"), "auth API base URL")
	timeout := fs.Duration("timeout", 10*time.Second, "request timeout")
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "password (prompted without echo when empty)")

	var fullName, username *string
	switch cmd {
	case "register":
		fullName = fs.String("full-name", "", "full name")
		username = fs.String("username", "", "username")
	case "login":
	case "-h", "-help", "--help", "help":
		usage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", cmd)
		usage(stderr)
		return 2
	}
	if err := fs.Parse(rest); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	c, err := client.New(*baseURL, client.WithTimeout(*timeout))
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	p := &prompter{in: bufio.NewReader(stdin), out: stdout}
	var res *client.Result
	if cmd == "register" {
		req := client.RegisterRequest{
			FullName: p.text(*fullName, "Full name"),
			Email:    p.text(*email, "Email"),
			Username: p.text(*username, "Username"),
			Password: p.secret(*password),
		}
		if p.err != nil {
			fmt.Fprintln(stderr, p.err)
			return 1
		}
		res, err = c.Register(ctx, req)
	} else {
		req := client.LoginRequest{
			Email:    p.text(*email, "Email"),
			Password: p.secret(*password),
		}
		if p.err != nil {
			fmt.Fprintln(stderr, p.err)
			return 1
		}
		res, err = c.Login(ctx, req)
	}

	var fe *client.FieldError
	switch {
	case errors.As(err, &fe):
		fmt.Fprintln(stderr, fe.Message)
		return 1
	case err != nil:
		fmt.Fprintln(stderr, client.FallbackUnexpected)
		fmt.Fprintln(stderr, err)
		return 1
	case !res.OK:
		fmt.Fprintln(stderr, res.Message)
		return 1
	}

	fmt.Fprintln(stdout, res.Message)
	if res.UserID != 0 {
		fmt.Fprintf(stdout, "user id: %d\n", res.UserID)
	}
	return 0
}

// prompter asks only for values not already given; the first error sticks.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
	err error
}

func (p *prompter) text(given, label string) string {
	if given != "" || p.err != nil {
		return given
	}
	fmt.Fprintf(p.out, "%s: ", label)
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		p.err = fmt.Errorf("read %s failed: %w", strings.ToLower(label), err)
		return ""
	}
	return strings.TrimSpace(line)
}

func (p *prompter) secret(given string) string {
	if given != "" || p.err != nil {
		return given
	}
	fmt.Fprint(p.out, "Password: ")
	pw, err := readPassword()
	fmt.Fprintln(p.out)
	if err != nil {
		p.err = fmt.Errorf("read password failed: %w", err)
		return ""
	}
	return string(pw)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: client <register|login> [flags]")
	fmt.Fprintln(w, "run 'client <command> -h' for the flags of a command")
}
