package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"yt-allinone/internal/config"
)

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or inspect the config file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a config file with default values",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skip-load": "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := a.configPath
			if path == "" {
				path = config.DefaultPath()
			}
			if err := config.WriteDefault(path, force); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := a.cfg.YAML()
			if err != nil {
				return err
			}
			if a.cfg.Path != "" {
				fmt.Fprintf(a.stdout, "# %s\n", a.cfg.Path)
			} else {
				fmt.Fprintln(a.stdout, "# defaults (no config file)")
			}
			_, err = a.stdout.Write(data)
			return err
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}
