package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/poiesic/askq/core"
	"github.com/poiesic/askq/transport/httpapi"
	"github.com/pterm/pterm"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"
)

var serverFlag = &cli.StringFlag{
	Name:    "server",
	Aliases: []string{"s"},
	Usage:   "Base URL of a running askd server",
	Value:   "http://localhost:5000",
	EnvVars: []string{"ASKQ_SERVER"},
}

func askCmd() *cli.Command {
	return &cli.Command{
		Name:      "ask",
		Usage:     "Ask a running server a question and stream the answer",
		ArgsUsage: "QUESTION...",
		Action:    askCommand,
		Flags: []cli.Flag{
			serverFlag,
			&cli.StringFlag{
				Name:    "conversation-id",
				Aliases: []string{"c"},
				Usage:   "Continue this conversation",
			},
			&cli.StringFlag{
				Name:    "parent-id",
				Aliases: []string{"p"},
				Usage:   "Reply to this message (defaults to the latest)",
			},
			&cli.DurationFlag{
				Name:  "poll-interval",
				Usage: "Delay between polls",
				Value: httpapi.DefaultPollInterval,
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Give up waiting for the answer after this long",
				Value: 2 * time.Minute,
			},
		},
	}
}

func askCommand(c *cli.Context) error {
	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return errors.New("a question is required")
	}

	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()

	client := httpapi.NewClient(c.String("server"), httpapi.WithPollInterval(c.Duration("poll-interval")))

	var spinner *pterm.SpinnerPrinter
	if isTerminal(c.App.ErrWriter) {
		spinner, _ = pterm.DefaultSpinner.WithWriter(c.App.ErrWriter).Start("Waiting for answer...")
	}
	stopSpinner := func() {
		if spinner != nil {
			_ = spinner.Stop()
		}
	}
	streaming := false
	answer, err := client.Ask(ctx, httpapi.QuestionRequest{
		Text:           question,
		ConversationID: c.String("conversation-id"),
		ParentID:       c.String("parent-id"),
	}, func(partial core.Answer) {
		if partial.Text == "" {
			return
		}
		if !streaming {
			streaming = true
			stopSpinner()
		}
		fmt.Fprint(c.App.Writer, partial.Text)
	})
	if streaming {
		fmt.Fprintln(c.App.Writer)
	} else {
		stopSpinner()
	}
	if err != nil {
		return err
	}
	if answer.Failed() {
		pterm.Error.WithWriter(c.App.ErrWriter).Println(answer.Error)
		return fmt.Errorf("answer failed: %s", answer.Error)
	}

	pterm.Info.WithWriter(c.App.ErrWriter).Printfln("conversation %s, parent %s", answer.ConversationID, answer.ParentID)
	return nil
}

// isTerminal reports whether w is an interactive terminal. The spinner
// animates from its own goroutine and is only worth running there.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func statsCmd() *cli.Command {
	return &cli.Command{
		Name:   "stats",
		Usage:  "Show queue, worker and buffer counts of a running server",
		Action: statsCommand,
		Flags:  []cli.Flag{serverFlag},
	}
}

func statsCommand(c *cli.Context) error {
	stats, err := httpapi.NewClient(c.String("server")).Stats(c.Context)
	if err != nil {
		return err
	}

	return pterm.DefaultTable.WithHasHeader().WithWriter(c.App.Writer).WithData(pterm.TableData{
		{"queued", "workers", "running", "buffers", "streaming", "finished", "pending"},
		{
			fmt.Sprint(stats.Queued),
			fmt.Sprint(stats.Workers),
			fmt.Sprint(stats.Running),
			fmt.Sprint(stats.Registry.Buffers),
			fmt.Sprint(stats.Registry.Streaming),
			fmt.Sprint(stats.Registry.Finished),
			fmt.Sprint(stats.Registry.Pending),
		},
	}).Render()
}
