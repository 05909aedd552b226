// cmd/punkhunt/chat.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tbourn/punkhunt/internal/domain"
	"github.com/tbourn/punkhunt/internal/events"
	"github.com/tbourn/punkhunt/internal/realtime"
	"github.com/tbourn/punkhunt/internal/services"
)

const (
	connectWait = 15 * time.Second
	historyWait = 750 * time.Millisecond
)

var (
	chatUserColor   = color.New(color.FgHiGreen)
	chatSystemColor = color.New(color.FgYellow)
)

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "chat",
		Aliases: []string{"trollbox"},
		Short:   "Read or write the trollbox",
	}
	cmd.AddCommand(newChatTailCmd(), newChatSendCmd())
	return cmd
}

func newChatTailCmd() *cobra.Command {
	var last int
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print recent messages and follow new ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			a, err := openChat(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			ch, cancel := a.hub.Subscribe(events.TopicChat, events.TopicContract)
			defer cancel()
			go func() { _ = a.run(ctx, runOptions{socket: true}) }()

			if err := waitConnected(ctx, a.feed, connectWait); err != nil {
				return err
			}
			// History arrives right after the handshake.
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(historyWait):
			}
			out := cmd.OutOrStdout()
			history := a.chat.History(last)
			for _, m := range history {
				printChat(out, m)
			}
			return tailChat(ctx, ch, out)
		},
	}
	cmd.Flags().IntVarP(&last, "last", "n", 20, "number of history messages to print")
	return cmd
}

// tailChat prints chat events until ctx ends or the hub closes.
func tailChat(ctx context.Context, ch <-chan events.Event, out io.Writer) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, open := <-ch:
			if !open {
				return nil
			}
			switch data := ev.Data.(type) {
			case domain.ChatMessage:
				printChat(out, data)
			case realtime.ContractEvent:
				if data.Type == "PlayerEliminated" && data.RemainingSupply != nil && *data.RemainingSupply == 1 {
					chatSystemColor.Fprintln(out, "*** The last duck stands. The hunt is over. ***")
				}
			}
		}
	}
}

func newChatSendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <message...>",
		Short: "Post a message as the configured wallet",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			a, err := openChat(ctx)
			if err != nil {
				return err
			}
			defer a.close()
			if a.address() == "" {
				return services.ErrWalletDisconnected
			}

			go func() { _ = a.run(ctx, runOptions{socket: true}) }()
			if err := waitConnected(ctx, a.feed, connectWait); err != nil {
				return err
			}
			msg, err := a.chat.Send(ctx, a.address(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			dimColor.Fprintf(cmd.OutOrStdout(), "sent as %s: %s\n", msg.User, msg.Message)
			return nil
		},
	}
}

// openChat builds a read-only app; chatting never signs.
func openChat(ctx context.Context) (*app, error) {
	rc, err := readOnly(cfg)
	if err != nil {
		return nil, err
	}
	return newApp(ctx, rc, nil)
}

// connectionState is what waitConnected polls.
type connectionState interface {
	Connected() bool
}

// waitConnected polls c until it reports connected or timeout passes.
func waitConnected(ctx context.Context, c connectionState, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for !c.Connected() {
		select {
		case <-ctx.Done():
			return errCancelled
		case <-deadline.C:
			return errors.New("trollbox: could not connect")
		case <-tick.C:
		}
	}
	return nil
}

func printChat(out io.Writer, m domain.ChatMessage) {
	ts := ""
	if m.Timestamp > 0 {
		ts = m.Time().Local().Format("15:04") + " "
	}
	if m.IsSystem {
		chatSystemColor.Fprintf(out, "%s* %s\n", ts, m.Message)
		return
	}
	dimColor.Fprint(out, ts)
	chatUserColor.Fprint(out, m.User)
	fmt.Fprintf(out, ": %s\n", m.Message)
}
