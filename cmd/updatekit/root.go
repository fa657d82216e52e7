package main

import (
	"github.com/spf13/cobra"

	"updatekit/internal/debug"
)

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	env := &appEnv{}

	cmd := &cobra.Command{
		Use:   "updatekit",
		Short: "Keep an application up to date from an appcast feed",
		Long: `updatekit checks a Sparkle-style appcast feed for newer builds of an
application. Run it without a subcommand for the interactive update screen.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.showVersion && cmd == cmd.Root() {
				return nil
			}
			return env.setup(cmd, opts)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			debug.Close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.showVersion {
				printVersion(cmd.OutOrStdout())
				return nil
			}
			return runTUI(cmd.Context(), env)
		},
	}

	flags := cmd.PersistentFlags()
	flags.BoolVar(&opts.debug, "debug", false, "Write a debug log to ~/.updatekit/debug.log")
	flags.StringVar(&opts.manifestPath, "manifest", "", "Application manifest (default: updatekit.toml in the working or executable directory)")
	flags.StringVar(&opts.feedURL, "feed-url", "", "Appcast feed URL, overriding config and manifest")
	cmd.Flags().BoolVar(&opts.showVersion, "version", false, "Print version information and exit")

	cmd.AddCommand(
		newCheckCmd(env),
		newStatusCmd(env),
		newServeCmd(env),
		newPrefsCmd(env),
	)
	return cmd
}
