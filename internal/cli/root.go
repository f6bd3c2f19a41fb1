// Package cli is depot's command line: the TUI entry point plus one-shot
// commands for listing, showing and editing records from scripts.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/five82/depot/internal/app"
	"github.com/five82/depot/internal/render"
	"github.com/five82/depot/internal/screens"
)

// globalFlags are the session overrides shared by every command.
type globalFlags struct {
	configPath string
	prefsPath  string
	apiURL     string
	token      string
	role       string
	logLevel   string
	noCache    bool
}

func (g *globalFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&g.configPath, "config", "", "config file (default ~/.config/depot/config.toml)")
	fs.StringVar(&g.prefsPath, "prefs", "", "preferences file (default ~/.config/depot/prefs.toml)")
	fs.StringVar(&g.apiURL, "api-url", "", "API base URL")
	fs.StringVar(&g.token, "token", "", "bearer token (or $DEPOT_TOKEN)")
	fs.StringVar(&g.role, "role", "", "role override: admin, manager, storekeeper or viewer")
	fs.StringVar(&g.logLevel, "log-level", "", "debug, info, warn or error")
	fs.BoolVar(&g.noCache, "no-cache", false, "skip the offline snapshot cache")
}

func (g *globalFlags) options(target app.LogTarget, stderr io.Writer) app.Options {
	return app.Options{
		ConfigPath: g.configPath,
		PrefsPath:  g.prefsPath,
		APIURL:     g.apiURL,
		Token:      g.token,
		Role:       g.role,
		LogLevel:   g.logLevel,
		LogTarget:  target,
		Stderr:     stderr,
		NoCache:    g.noCache,
	}
}

// open starts a session logging to the command's stderr.
func (g *globalFlags) open(cmd *cobra.Command) (*app.Session, error) {
	return app.Open(cmd.Context(), g.options(app.LogToStderr, cmd.ErrOrStderr()))
}

// formatValue is the --output flag.
type formatValue struct {
	format render.Format
}

func (f *formatValue) String() string {
	if f.format == "" {
		return string(render.FormatTable)
	}
	return string(f.format)
}

func (f *formatValue) Set(s string) error {
	format, err := render.ParseFormat(s)
	if err != nil {
		return err
	}
	f.format = format
	return nil
}

func (f *formatValue) Type() string { return "format" }

func (f *formatValue) get() render.Format {
	if f.format == "" {
		return render.FormatTable
	}
	return f.format
}

func addOutputFlag(cmd *cobra.Command) *formatValue {
	f := &formatValue{}
	cmd.Flags().VarP(f, "output", "o", "output format: table, json or yaml")
	return f
}

// NewRootCommand builds the depot command tree.
func NewRootCommand(version string) *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "depot",
		Short: "Terminal client for the fleet and inventory API",
		Long: `depot - browse and edit fleet, inventory and procurement records from the terminal.

Run without a command on a terminal to open the interactive UI.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !render.IsTerminal() {
				return cmd.Help()
			}
			return app.Run(cmd.Context(), g.options(app.LogToFile, nil), "")
		},
	}
	g.register(root.PersistentFlags())

	root.AddGroup(
		&cobra.Group{ID: "browse", Title: "Browse Commands:"},
		&cobra.Group{ID: "edit", Title: "Edit Commands:"},
		&cobra.Group{ID: "system", Title: "System Commands:"},
	)
	root.SetHelpCommandGroupID("system")
	root.SetCompletionCommandGroupID("system")

	root.AddCommand(
		newTUICommand(g),
		newResourcesCommand(g),
		newListCommand(g),
		newShowCommand(g),
		newCreateCommand(g),
		newUpdateCommand(g),
		newDeleteCommand(g),
		newDemoServerCommand(),
		newLogsCommand(g),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, version string, args []string, stdout, stderr io.Writer) int {
	root := NewRootCommand(version)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// lookupScreen resolves a resource argument.
func lookupScreen(name string) (screens.Screen, error) {
	s, ok := screens.Lookup(name)
	if !ok {
		return screens.Screen{}, fmt.Errorf("unknown resource %q (want one of %s)", name, strings.Join(screens.Names(), ", "))
	}
	return s, nil
}

// completeResources offers resource names for the first argument.
func completeResources(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return screens.Names(), cobra.ShellCompDirectiveNoFileComp
}
