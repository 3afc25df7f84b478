package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/toolvault/toolvault/internal/config"
	"github.com/toolvault/toolvault/internal/prefs"
	"github.com/toolvault/toolvault/internal/registry"
)

// NewPrefsCmd creates the 'prefs' command group for logging preferences.
func NewPrefsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Inspect and set per-tool logging preferences",
	}

	cmd.AddCommand(newPrefsListCmd())
	cmd.AddCommand(newPrefsGetCmd())
	cmd.AddCommand(newPrefsSetCmd())

	return cmd
}

func newPrefsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show the effective preference for every known tool",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrefsList()
		},
	}

	return cmd
}

func runPrefsList() error {
	settings, resolver, reg, err := openPrefs()
	if err != nil {
		return err
	}

	snapshot := settings.Snapshot()
	state := "enabled"
	if !snapshot.IsHistoryEnabled {
		state = "disabled"
	}
	fmt.Printf("History logging: %s\n\n", state)

	for _, tool := range reg.Tools() {
		pref := resolver.Effective(context.Background(), tool.Route)
		marker := " "
		if _, has := snapshot.ToolPreferences[tool.Route]; has {
			marker = "*"
		}
		fmt.Printf("  %s %-24s %s\n", marker, tool.Route, pref)
	}
	fmt.Println("\n  * = explicit override")
	return nil
}

func newPrefsGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <route>",
		Short: "Show the effective preference for one tool route",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrefsGet(args[0])
		},
	}

	return cmd
}

func runPrefsGet(route string) error {
	settings, resolver, _, err := openPrefs()
	if err != nil {
		return err
	}

	fmt.Printf("Route:     %s\n", route)
	fmt.Printf("Effective: %s\n", resolver.Effective(context.Background(), route))
	if override, has := settings.Override(route); has {
		fmt.Printf("Override:  %s\n", override)
	} else {
		fmt.Printf("Default:   %s\n", resolver.CachedDefault(route))
	}
	return nil
}

func newPrefsSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <route> <on|restrictive|off>",
		Short: "Set a tool's logging preference",
		Long: `Set the logging preference for one tool route.

Setting a route to its own default removes the override instead of storing
a redundant one.`,
		Example: `  toolvault prefs set /t/wallet-generator off`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrefsSet(args[0], args[1])
		},
	}

	return cmd
}

func runPrefsSet(route, value string) error {
	pref, err := config.ParsePreference(value)
	if err != nil {
		return err
	}

	_, resolver, _, err := openPrefs()
	if err != nil {
		return err
	}

	if err := resolver.Set(context.Background(), route, pref); err != nil {
		return fmt.Errorf("failed to set preference: %w", err)
	}

	fmt.Printf("✓ %s is now %s\n", route, resolver.Effective(context.Background(), route))
	return nil
}

// openPrefs loads the settings store and a registry-seeded resolver.
func openPrefs() (*config.Store, *prefs.Resolver, *registry.Registry, error) {
	path, err := config.DefaultPath()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to resolve settings path: %w", err)
	}
	settings, err := config.NewStore(path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load settings: %w", err)
	}

	reg := registry.Default()
	resolver := prefs.NewResolver(settings, "", reg.Directive)
	for _, tool := range reg.Tools() {
		resolver.SeedDefault(tool.Route, tool.DefaultLogging)
	}
	return settings, resolver, reg, nil
}
