package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/benvon/health-chat/internal/logger"
	"github.com/benvon/health-chat/internal/stream"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewChatCmd creates the chat command
func NewChatCmd() *cobra.Command {
	var (
		remote  remoteFlags
		message string
		debug   bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant",
		Long:  "Open an interactive chat against a running server. Press Ctrl-C while a reply streams to stop listening to it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			log := zap.NewNop()
			if debug {
				l, err := logger.NewDevelopmentLogger(true)
				if err != nil {
					return fmt.Errorf("failed to create logger: %w", err)
				}
				log = l
				defer func() { _ = logger.Sync(log) }()
			}

			opts := []stream.ClientOption{stream.WithClientLogger(log)}
			httpClient, err := remote.httpClient(ctx)
			if err != nil {
				return err
			}
			if httpClient != nil {
				opts = append(opts, stream.WithHTTPClient(httpClient))
			} else {
				opts = append(opts, stream.WithBearerToken(remote.token))
			}
			client := stream.NewClient(remote.endpoint("/api/v1/chat/stream"), opts...)

			p := &printer{out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr()}
			session := stream.NewSession(client, stream.WithSessionLogger(log), stream.WithListener(p.listen))
			defer session.Close()

			if message != "" {
				snap, err := runTurn(ctx, session, message, p)
				if err != nil {
					return err
				}
				if snap.State == stream.StateError {
					return errors.New(snap.Err)
				}
				return nil
			}

			return interactive(ctx, session, cmd.InOrStdin(), p)
		},
	}

	remote.register(cmd)
	cmd.Flags().StringVarP(&message, "message", "m", "", "Send a single message and exit")
	cmd.Flags().BoolVar(&debug, "debug", false, "Log stream internals to stderr")

	return cmd
}

func interactive(ctx context.Context, session *stream.Session, in io.Reader, p *printer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(p.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(p.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		}

		if _, err := runTurn(ctx, session, line, p); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(p.errOut, "error: %v\n", err)
		}
	}
}

// runTurn submits one message and waits for the reply. An interrupt while waiting cancels
// the turn instead of exiting.
func runTurn(ctx context.Context, session *stream.Session, content string, p *printer) (stream.Snapshot, error) {
	if err := session.Submit(ctx, content); err != nil {
		return stream.Snapshot{}, err
	}

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-interrupts:
			_ = session.Cancel()
		case <-waitCtx.Done():
		}
	}()

	snap, err := session.Wait(ctx)
	if err == nil && snap.Canceled {
		fmt.Fprintln(p.out)
		fmt.Fprintln(p.errOut, "[canceled]")
	}
	return snap, err
}

type printer struct {
	out    io.Writer
	errOut io.Writer
}

func (p *printer) listen(e stream.Event, _ stream.Snapshot) {
	switch ev := e.(type) {
	case stream.TokensEvent:
		fmt.Fprint(p.out, ev.Text)
	case stream.StatusEvent:
		switch ev.Stage {
		case stream.StageRouting:
			fmt.Fprintf(p.errOut, "[%s]\n", ev.Agent)
		case stream.StageRAG:
			if len(ev.Sources) > 0 {
				fmt.Fprintf(p.errOut, "[sources: %s]\n", strings.Join(ev.Sources, ", "))
			}
		}
	case stream.DoneEvent:
		fmt.Fprintln(p.out)
	case stream.ErrorEvent:
		fmt.Fprintf(p.errOut, "\nerror: %s\n", ev.Message)
	}
}
