// Package serverline reads lines from a terminal while the program keeps
// printing.
//
// A Session owns the input line. Everything the program prints through the
// session's writers is placed above the line, which is then drawn again, so
// log output from any goroutine never ends up inside what the user is typing.
//
// Key Features:
//
//   - Output interception: Stdout, Stderr, Logger, Println and Printf print above the line
//   - Masked input: SetMuted and Secret hide what is typed, secret answers never reach the history
//   - Tab completion: prefix matching over a candidate list, negotiable through OnCompletion
//   - Questions: Question and Secret route the next line to a callback
//   - History with optional file persistence and rotation
//   - Configuration through functional options or a TOML file (LoadOptions)
//   - Completion candidates reloaded from a watched file (WatchCompletions)
//
// Quick Start:
//
//	package main
//
//	import (
//		"context"
//		"log"
//		"time"
//
//		"github.com/nao1215/serverline"
//	)
//
//	func main() {
//		s, err := serverline.New("> ", serverline.WithCompletions([]string{"help", "exit"}))
//		if err != nil {
//			log.Fatal(err)
//		}
//		s.OnLine(func(line string) {
//			if line == "exit" {
//				s.Close()
//				return
//			}
//			s.Printf("you typed %q\n", line)
//		})
//		if err := s.Start(context.Background()); err != nil {
//			log.Fatal(err)
//		}
//		go func() {
//			for range time.Tick(time.Second) {
//				s.Logger().Info("tick")
//			}
//		}()
//		s.Wait()
//	}
//
// When the streams are not a terminal (pipes, files) the session runs in
// compatibility mode: lines are read without echo or editing, output is
// passed through untouched and no history is kept. WithForceTerminal turns
// terminal behaviour on regardless, which is mostly useful in tests.
package serverline
