package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/forPelevin/tredit/internal/app"
	"github.com/forPelevin/tredit/internal/devserver"
	"github.com/forPelevin/tredit/internal/ports/adapters/fixture"
)

func runEdit(cmd *cobra.Command, sourceURL string) error {
	resume, _ := cmd.Flags().GetBool("resume")
	prompt, _ := cmd.Flags().GetString("prompt")
	if sourceURL == "" && !resume {
		return errors.New("a video URL or --resume is required")
	}

	cfg := app.ConfigFromEnv()
	applyLogFlags(cmd, &cfg)
	cfg.TextDebounce, _ = cmd.Flags().GetDuration("text-debounce")
	cfg.BoundsDebounce, _ = cmd.Flags().GetDuration("bounds-debounce")
	cfg.PollInterval, _ = cmd.Flags().GetDuration("poll")
	cfg.RequestTimeout, _ = cmd.Flags().GetDuration("timeout")
	cfg.AutoContinue, _ = cmd.Flags().GetBool("autoplay")
	cfg.FallbackDuration, _ = cmd.Flags().GetFloat64("duration")
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, err := app.NewLogger(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	out := &syncWriter{w: cmd.OutOrStdout()}
	view := newTableView(out)
	sess, err := app.NewSession(cfg, log, newAlerter(cmd.ErrOrStderr()), view)
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	found := false
	if resume {
		if found, err = sess.Resume(ctx); err != nil {
			return err
		}
		if !found && sourceURL == "" {
			return errors.New("no cached transcription on the backend")
		}
	}
	if !found {
		fmt.Fprintln(out, "transcribing...")
		if err := sess.Open(ctx, sourceURL, prompt); err != nil {
			return err
		}
	}

	view.Print(sess.Store.Snapshot())
	return newREPL(sess, view, out).Run(ctx, cmd.InOrStdin())
}

func runServe(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	path, _ := cmd.Flags().GetString("fixture")
	maxDur, _ := cmd.Flags().GetDuration("max-duration")
	grace, _ := cmd.Flags().GetDuration("shutdown-timeout")
	if maxDur < 0 {
		return errors.New("config: max duration must be >= 0")
	}

	cfg := app.ConfigFromEnv()
	applyLogFlags(cmd, &cfg)
	log, err := app.NewLogger(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	tr := fixture.Sample()
	if path != "" {
		if tr, err = fixture.Load(path); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	srv, err := devserver.New(devserver.Options{Transcriber: tr, MaxDuration: maxDur, Logger: log})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() { errc <- srv.Listen(addr) }()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.WithField("timeout", grace).Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func applyLogFlags(cmd *cobra.Command, cfg *app.Config) {
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if v, _ := cmd.Flags().GetString("log-format"); v != "" {
		cfg.LogFormat = v
	}
}
