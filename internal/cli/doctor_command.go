package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"yt-allinone/internal/config"
	"yt-allinone/internal/discovery"
)

func newDoctorCommand(a *app) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check yt-dlp, ffmpeg, ffprobe and the output directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath := a.cfg.Path
			if cfgPath == "" {
				cfgPath = config.DefaultPath()
			}
			res, err := discovery.Doctor(cmd.Context(), discovery.DoctorOptions{
				OutputDir:   a.cfg.Download.OutDir,
				ConfigPath:  cfgPath,
				YTDLPPath:   a.cfg.Engine.YTDLPPath,
				FFmpegPath:  a.cfg.Engine.FFmpegPath,
				FFprobePath: a.cfg.Engine.FFprobePath,
				Engine:      a.client(),
			})
			if err != nil {
				return err
			}
			if jsonOut {
				if err := printJSON(a.stdout, res); err != nil {
					return err
				}
			} else {
				for _, c := range res.Checks {
					status := "ok"
					switch {
					case !c.OK && c.Optional:
						status = "warn"
					case !c.OK:
						status = "fail"
					}
					fmt.Fprintf(a.stdout, "%s: %s (%s)\n", c.Name, status, c.Message)
				}
				if res.OK {
					fmt.Fprintln(a.stdout, "doctor: all checks passed")
				}
			}
			if !res.OK {
				return errors.New("doctor: one or more checks failed")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print results as JSON")
	return cmd
}
