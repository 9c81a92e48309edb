package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/forPelevin/tredit/internal/devserver"
	"github.com/forPelevin/tredit/internal/editor"
	"github.com/forPelevin/tredit/internal/playback"
	"github.com/forPelevin/tredit/internal/ports/adapters/httpapi"
)

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	root := newRootCmd()
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tredit",
		Short:         "Edit timed transcripts of YouTube videos",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("log-level", "", "Log level (overrides TREDIT_LOG_LEVEL)")
	root.PersistentFlags().String("log-format", "", "Log format: text or json")

	edit := &cobra.Command{
		Use:   "edit [youtube-url]",
		Short: "Transcribe a video and edit its segments interactively",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := ""
			if len(args) == 1 {
				url = args[0]
			}
			return runEdit(cmd, url)
		},
	}
	edit.Flags().String("prompt", "", "Transcription prompt (names, jargon)")
	edit.Flags().Bool("resume", false, "Resume the backend's cached transcription")
	edit.Flags().Duration("text-debounce", editor.DefaultTextDebounce, "Delay before a text edit is saved")
	edit.Flags().Duration("bounds-debounce", editor.DefaultBoundsDebounce, "Delay before a start/end edit is saved")
	edit.Flags().Duration("poll", playback.DefaultPollInterval, "Playback bounds check interval")
	edit.Flags().Duration("timeout", httpapi.DefaultRequestTimeout, "Per-request backend timeout")
	edit.Flags().Bool("autoplay", true, "Play the selected segment on a loop")
	edit.Flags().Float64("duration", 0, "Source duration in seconds when it can't be detected")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the in-memory development backend",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	serve.Flags().String("addr", devserver.DefaultAddr, "Listen address")
	serve.Flags().String("fixture", "", "JSON transcript served for every video")
	serve.Flags().Duration("max-duration", devserver.DefaultMaxDuration, "Reject longer videos (0 disables)")

	// Hidden tuning flag (internal)
	serve.Flags().Duration("shutdown-timeout", 5*time.Second, "Graceful shutdown timeout")
	_ = serve.Flags().MarkHidden("shutdown-timeout")

	root.AddCommand(edit, serve)
	return root
}
