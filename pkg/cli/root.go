package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
)

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Run         func(args []string) error
	Subcommands map[string]*Command
	Flags       *flag.FlagSet

	out io.Writer
}

// NewRootCommand creates the root command bound to app.
func NewRootCommand(app *App) *Command {
	root := newGroup(app, "ssoadmin", "ssoadmin - SSO administration CLI")

	root.Subcommands["login"] = newLoginCommand(app)
	root.Subcommands["exchange"] = newExchangeCommand(app)
	root.Subcommands["logout"] = newLogoutCommand(app)
	root.Subcommands["status"] = newStatusCommand(app)
	root.Subcommands["sessions"] = newSessionsCommand(app)
	root.Subcommands["refresh"] = newRefreshCommand(app)
	root.Subcommands["apps"] = newAppsCommand(app)
	root.Subcommands["users"] = newUsersCommand(app)
	root.Subcommands["audit"] = newAuditCommand(app)

	return root
}

func newGroup(app *App, name, description string) *Command {
	return &Command{
		Name:        name,
		Description: description,
		Subcommands: make(map[string]*Command),
		out:         app.Out,
	}
}

func newLeaf(app *App, name, description string) *Command {
	flags := flag.NewFlagSet(name, flag.ContinueOnError)
	flags.SetOutput(app.Err)
	return &Command{
		Name:        name,
		Description: description,
		Flags:       flags,
		out:         app.Out,
	}
}

// Execute runs the command
func (c *Command) Execute(args []string) error {
	if len(c.Subcommands) == 0 && c.Run != nil {
		err := c.Run(args)
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		return c.usage()
	}

	// Check for subcommand
	if subcmd, ok := c.Subcommands[args[0]]; ok {
		return subcmd.Execute(args[1:])
	}

	return fmt.Errorf("unknown command: %s", args[0])
}

// usage prints the command usage
func (c *Command) usage() error {
	fmt.Fprintf(c.out, "Usage: %s <command> [args]\n\n", c.Name)
	fmt.Fprintf(c.out, "Commands:\n")
	names := make([]string, 0, len(c.Subcommands))
	for name := range c.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(c.out, "  %-15s %s\n", name, c.Subcommands[name].Description)
	}
	return nil
}
