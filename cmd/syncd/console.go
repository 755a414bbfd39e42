package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/chzyer/readline"
	shellquote "github.com/kballard/go-shellquote"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/stanislav-tkach/mintlayer-core/internal/fakechain"
	"github.com/stanislav-tkach/mintlayer-core/pkg/syncmgr"
)

// runConsole drives an interactive operator shell: "state", "height", and
// "exit", parsed with the same split-then-dispatch shape as the upstream
// VM console (shellquote splits one line into argv, a small *cli.App
// dispatches it).
func runConsole(ctx context.Context, log *zap.Logger, mgr *syncmgr.Manager, ch *fakechain.FakeChain) error {
	l, err := readline.NewEx(&readline.Config{Prompt: "syncd> "})
	if err != nil {
		return fmt.Errorf("console: opening readline: %w", err)
	}
	defer l.Close()

	app := &cli.App{
		Name:           "syncd",
		Usage:          "interactive sync daemon console",
		Writer:         l.Stdout(),
		ErrWriter:      l.Stderr(),
		ExitErrHandler: func(*cli.Context, error) {},
		Commands: []*cli.Command{
			{
				Name:  "state",
				Usage: "print the manager's global state",
				Action: func(c *cli.Context) error {
					fmt.Fprintln(l.Stdout(), mgr.State())
					return nil
				},
			},
			{
				Name:  "height",
				Usage: "print the local chain's best height",
				Action: func(c *cli.Context) error {
					h, err := ch.BestHeight(ctx)
					if err != nil {
						return err
					}
					fmt.Fprintln(l.Stdout(), h)
					return nil
				},
			},
			{
				Name:  "exit",
				Usage: "exit the console",
				Action: func(c *cli.Context) error {
					return errExitConsole
				},
			},
		},
	}

	for {
		line, err := l.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if line == "" {
			continue
		}

		args, err := shellquote.Split(line)
		if err != nil {
			log.Warn("console: could not parse line", zap.Error(err))
			continue
		}
		if err := app.Run(append([]string{"syncd"}, args...)); err != nil {
			if errors.Is(err, errExitConsole) {
				return nil
			}
			fmt.Fprintln(l.Stderr(), err)
		}
	}
}

var errExitConsole = errors.New("console: exit requested")
