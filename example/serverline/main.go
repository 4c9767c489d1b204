// Package main is an interactive demo of serverline: a background ticker logs
// while the user types commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/nao1215/serverline"
	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

var commands = []string{"help", "secret", "question", "mute", "unmute", "prompt", "history", "exit"}

type flags struct {
	config        string
	completions   string
	historyFile   string
	theme         string
	forceTerminal bool
	interval      time.Duration
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:           "serverline",
		Short:         "Type commands while a ticker keeps logging",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), f)
		},
	}
	root.SetVersionTemplate("{{printf \"%s\\n\" .Version}}")
	root.Flags().StringVar(&f.config, "config", "", "TOML file with session options")
	root.Flags().StringVar(&f.completions, "completions", "", "file with one completion candidate per line, reloaded on change")
	root.Flags().StringVar(&f.historyFile, "history-file", "", "persist history to this file")
	root.Flags().StringVar(&f.theme, "theme", "", "colour theme (dark, light, solarized-dark, dracula, plain)")
	root.Flags().BoolVar(&f.forceTerminal, "force-terminal", false, "behave as on a terminal even when redirected")
	root.Flags().DurationVar(&f.interval, "interval", 2*time.Second, "ticker interval, 0 disables it")
	return root
}

func run(ctx context.Context, f *flags) error {
	var opts []serverline.Option
	if f.config != "" {
		fileOpts, err := serverline.LoadOptions(f.config)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		opts = append(opts, fileOpts...)
	}
	if f.theme != "" {
		theme, err := serverline.ThemeByName(f.theme)
		if err != nil {
			return err
		}
		opts = append(opts, serverline.WithColorScheme(theme))
	}
	if f.historyFile != "" {
		opts = append(opts, serverline.WithFileHistory(f.historyFile, 0))
	}
	if f.forceTerminal {
		opts = append(opts, serverline.WithForceTerminal(true))
	}
	opts = append(opts, serverline.WithCompletions(commands), serverline.WithCompatibilityCheck(true))

	s, err := serverline.New("> ", opts...)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	logger := s.Logger()

	s.OnLine(func(line string) {
		handleCommand(s, strings.TrimSpace(line))
	})
	s.OnInterrupt(func() bool {
		s.Println("Type 'exit' or press Ctrl+D to quit.")
		return true
	})
	s.OnCompletion(func(req *serverline.CompletionRequest) {
		if req.Line == "" {
			req.Hits = nil
		}
	})
	_ = s.On(serverline.EventClose, func() {
		fmt.Fprintln(os.Stdout, "bye")
	})

	if err := s.Start(ctx); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer s.Close()

	if f.completions != "" {
		if err := s.WatchCompletions(ctx, f.completions); err != nil {
			logger.Warn("completions file not watched", "err", err)
		}
	}
	if f.interval > 0 {
		go tick(ctx, s, f.interval)
	}

	if err := s.Wait(); err != nil && !errors.Is(err, serverline.ErrStreamClosed) {
		return err
	}
	return nil
}

func tick(ctx context.Context, s *serverline.Session, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	n := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n++
			s.Logger().Info("tick", "n", n)
		}
	}
}

func handleCommand(s *serverline.Session, line string) {
	name, arg, _ := strings.Cut(line, " ")
	switch name {
	case "":
	case "help":
		s.Println("commands:", strings.Join(commands, ", "))
	case "secret":
		s.Secret("Password: ", func(answer string) {
			s.Printf("the secret has %d characters\n", len([]rune(answer)))
		})
	case "question":
		s.Question("Your name? ", func(answer string) {
			s.Printf("hello %s\n", answer)
		})
	case "mute":
		s.SetMuted(true, "")
	case "unmute":
		s.SetMuted(false, "")
	case "prompt":
		if arg == "" {
			arg = serverline.DefaultPrompt
		}
		s.SetPrompt(arg, false)
	case "history":
		for i, entry := range s.History() {
			s.Printf("%3d  %s\n", i+1, entry)
		}
	case "exit":
		s.Close()
	default:
		s.Logger().Warn("unknown command", "command", name)
	}
}
