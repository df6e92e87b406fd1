package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"yt-allinone/internal/config"
	"yt-allinone/internal/version"
)

// Run executes the command line and returns the first error for main to
// report.
func Run(args []string) error {
	return run(args, os.Stdout, os.Stderr)
}

func run(args []string, stdout, stderr io.Writer) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, a := newRootCommand(stdout, stderr)
	defer a.close()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func newRootCommand(stdout, stderr io.Writer) (*cobra.Command, *app) {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "yt-allinone",
		Short:         "Fetch YouTube videos, shorts, audio, thumbnails and tags",
		Version:       version.Value,
		SilenceUsage:  true,
		SilenceErrors: true,
		Example: `  yt-allinone get https://youtu.be/dQw4w9WgXcQ --quality 720p
  yt-allinone get @handle --only-shorts --limit 10 --dry-run
  yt-allinone get @handle --only-regular --limit 10 --export-tags --thumb
  yt-allinone doctor`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations["skip-load"] == "true" {
				return nil
			}
			return a.load()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default "+config.DefaultPath()+")")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug|info|warn|error")
	flags.StringVar(&a.locale, "locale", "", "language for error hints: en|vi")

	root.AddCommand(
		newGetCommand(a),
		newAudioCommand(a),
		newDoctorCommand(a),
		newServeCommand(a),
		newConfigCommand(a),
		newVersionCommand(a),
	)
	return root, a
}

func newVersionCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print the version",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skip-load": "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := io.WriteString(a.stdout, "yt-allinone "+version.Value+"\n")
			return err
		},
	}
}
