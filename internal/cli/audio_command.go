package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"yt-allinone/internal/audio"
)

func newAudioCommand(a *app) *cobra.Command {
	var (
		output string
		title  string
		artist string
		cover  string
	)
	cmd := &cobra.Command{
		Use:   "audio <input-file>",
		Short: "Convert a local media file to MP3 with ffmpeg",
		Long: `Transcode a downloaded file to a VBR MP3, optionally embedding a JPEG cover
and title/artist tags. The result is checked with ffprobe.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := args[0]
			out := strings.TrimSpace(output)
			if out == "" {
				out = strings.TrimSuffix(input, filepath.Ext(input)) + ".mp3"
			}
			if filepath.Clean(out) == filepath.Clean(input) {
				return fmt.Errorf("output %s would overwrite the input", out)
			}
			meta := audio.Metadata{Title: title, Artist: artist}
			if err := a.transcoder().ExtractMP3(cmd.Context(), input, out, meta, cover); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "wrote %s\n", out)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&output, "output", "o", "", "output path (default: input with .mp3 extension)")
	f.StringVar(&title, "title", "", "title tag")
	f.StringVar(&artist, "artist", "", "artist tag")
	f.StringVar(&cover, "cover", "", "JPEG to embed as front cover")
	return cmd
}
