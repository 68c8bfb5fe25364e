// Package cli is the terminal front end: it parses subcommands, drives the
// session, recipe and rating components and prints their view state.
package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"flavorai-client/gateway"
	"flavorai-client/recipes"
	"flavorai-client/session"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// ErrUsage is returned for malformed command lines.
var ErrUsage = errors.New("usage error")

type command struct {
	usage string
	// restore makes the command wait for session restoration first.
	restore bool
	run     func(ctx context.Context, a *App, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"login":    {usage: "login -email <email> [-password <password>]", restore: true, run: runLogin},
		"register": {usage: "register -email <email> [-password <password>] [-name <name>]", restore: true, run: runRegister},
		"logout":   {usage: "logout", run: runLogout},
		"whoami":   {usage: "whoami", restore: true, run: runWhoami},
		"list":     {usage: "list [-search <term>]", restore: true, run: runList},
		"mine":     {usage: "mine", restore: true, run: runMine},
		"show":     {usage: "show <id>", restore: true, run: runShow},
		"create":   {usage: "create -title <title> -ingredient <line>... -step <line>... [-description <text>] [-cuisine <name>] [-image <path>]", restore: true, run: runCreate},
		"edit":     {usage: "edit <id> [-title ...] [-ingredient ...] [-step ...] [-description ...] [-cuisine ...] [-image <path>]", restore: true, run: runEdit},
		"delete":   {usage: "delete <id> [-yes]", restore: true, run: runDelete},
		"rate":     {usage: "rate <id> <1-5>", restore: true, run: runRate},
	}
}

// App wires the client components to a terminal.
type App struct {
	Gateway *gateway.Gateway
	Session *session.Manager
	Recipes *recipes.Controller

	out io.Writer
	in  *bufio.Reader
}

// New creates an App. Prompts read from in and output goes to out.
func New(gw *gateway.Gateway, mgr *session.Manager, in io.Reader, out io.Writer) *App {
	return &App{
		Gateway: gw,
		Session: mgr,
		Recipes: recipes.NewController(gw, mgr),
		out:     out,
		in:      bufio.NewReader(in),
	}
}

// Run executes one command line, e.g. []string{"show", "01H..."}.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		a.Usage()
		return ErrUsage
	}
	cmd, ok := commands[args[0]]
	if !ok {
		a.Usage()
		return fmt.Errorf("%w: unknown command %q", ErrUsage, args[0])
	}

	if cmd.restore {
		a.Session.Restore(ctx)
		if err := a.Session.Await(ctx); err != nil {
			return err
		}
	}

	logrus.WithField("command", args[0]).Debug("Running command")
	return cmd.run(ctx, a, args[1:])
}

// Usage prints the command summary.
func (a *App) Usage() {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(a.out, "Usage: flavorai-client [flags] <command> [args]")
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, "Commands:")
	for _, name := range names {
		fmt.Fprintf(a.out, "  %s\n", commands[name].usage)
	}
	fmt.Fprintln(a.out, "  mockapi [-listen <addr>]")
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// prompt asks a question and returns the trimmed answer.
func (a *App) prompt(question string) (string, error) {
	a.printf("%s ", question)
	line, err := a.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// confirm implements recipes.Confirmer over the terminal.
func (a *App) confirm(question string) bool {
	answer, err := a.prompt(question + " [y/N]")
	if err != nil {
		return false
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// parseArgs parses flags that may appear before or after positional
// arguments and returns the positionals.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUsage, err)
		}
		rest := fs.Args()
		if len(rest) == 0 {
			return positional, nil
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
}

func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

func requireArgs(name string, got []string, n int) error {
	if len(got) != n {
		return fmt.Errorf("%w: %s", ErrUsage, commands[name].usage)
	}
	return nil
}
