// cmd/punkhunt/lanes.go
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
	"github.com/tbourn/punkhunt/internal/sysutil"
	"github.com/tbourn/punkhunt/internal/utils"
)

// laneSpec describes one lane command.
type laneSpec struct {
	lane    domain.Lane
	aliases []string
	short   string
	example string
}

var (
	laneMintDucks = laneSpec{
		lane:    domain.LaneMintDucks,
		aliases: []string{"ducks"},
		short:   "Mint ducks at the current duck price",
		example: "  punkhunt mint-ducks 3",
	}
	laneMintZappers = laneSpec{
		lane:    domain.LaneMintZappers,
		aliases: []string{"zappers"},
		short:   "Mint zappers at the current zapper price",
		example: "  punkhunt mint-zappers 10 --yes",
	}
	laneShoot = laneSpec{
		lane:    domain.LaneShoot,
		aliases: []string{"fire"},
		short:   "Fire zappers at random ducks",
		example: "  punkhunt shoot 2",
	}
)

var (
	stageColor = map[domain.Stage]*color.Color{
		domain.StagePreparing:  color.New(color.FgCyan),
		domain.StagePending:    color.New(color.FgCyan),
		domain.StageConfirming: color.New(color.FgCyan),
		domain.StageConfirmed:  color.New(color.FgGreen, color.Bold),
		domain.StageFailed:     color.New(color.FgRed, color.Bold),
	}
	styleColor = map[domain.Style]*color.Color{
		domain.StyleSuccess: color.New(color.FgGreen),
		domain.StyleMiss:    color.New(color.FgYellow),
		domain.StyleSelfHit: color.New(color.FgMagenta),
		domain.StyleInfo:    color.New(color.FgCyan),
	}
)

func newLaneCmd(spec laneSpec) *cobra.Command {
	var (
		yes    bool
		settle time.Duration
	)
	cmd := &cobra.Command{
		Use:     string(spec.lane) + " <amount>",
		Aliases: spec.aliases,
		Short:   spec.short,
		Long: spec.short + `.

The request is validated against cached game data and balances, confirmed
on the terminal (unless --yes), signed with PUNKHUNT_WALLET_KEY and
followed until it is mined. Outcome notifications are printed as they
arrive.`,
		Example: spec.example,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := utils.ParseAmount(args[0])
			if err != nil {
				return err
			}
			if cfg.Game.WalletKey == "" {
				return errors.New("PUNKHUNT_WALLET_KEY is required to send transactions")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, confirmer(yes))
			if err != nil {
				return err
			}
			defer a.close()

			go func() { _ = a.run(ctx, runOptions{}) }()
			return runLane(ctx, a, spec.lane, amount, settle, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", sysutil.IsTruthy(os.Getenv("PUNKHUNT_ASSUME_YES")), "skip the confirmation prompt (default from PUNKHUNT_ASSUME_YES)")
	cmd.Flags().DurationVar(&settle, "settle", 6*time.Second, "how long to wait for outcome notifications after confirmation")
	return cmd
}

// runLane refreshes the caches the validation reads, submits, and follows
// the attempt to its end.
func runLane(ctx context.Context, a *app, lane domain.Lane, amount int64, settle time.Duration, out io.Writer) error {
	if snap, err := a.game.Refresh(ctx); err != nil || snap.Fallback {
		dimColor.Fprintln(out, "Game data unavailable; using fallback prices.")
	}
	if addr := a.address(); addr != "" {
		if _, err := a.users.User(addr).Refresh(ctx); err != nil {
			dimColor.Fprintf(out, "Balances unavailable: %v\n", err)
		}
	}

	ch, cancel := a.hub.Subscribe(events.TopicStage, events.TopicNotification)
	defer cancel()

	att, err := a.lanes.Submit(ctx, lane, amount)
	if err != nil {
		return err
	}
	printStage(out, att, a.cfg.Game.ExplorerTxURL)
	return follow(ctx, ch, att, settle, out, a.cfg.Game.ExplorerTxURL)
}

// follow prints stage changes of att and its notifications. It returns
// once notifications stop arriving for settle after confirmation, or with
// the attempt error on failure.
func follow(ctx context.Context, ch <-chan events.Event, att domain.TransactionAttempt, settle time.Duration, out io.Writer, explorer string) error {
	var (
		hash  string
		quiet <-chan time.Time
		timer *time.Timer
	)
	arm := func() {
		if timer != nil {
			timer.Stop()
		}
		timer = time.NewTimer(settle)
		quiet = timer.C
	}
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	last := att.Stage
	for {
		select {
		case <-ctx.Done():
			return errCancelled
		case <-quiet:
			return nil
		case ev, open := <-ch:
			if !open {
				return nil
			}
			switch data := ev.Data.(type) {
			case domain.TransactionAttempt:
				if data.Lane != att.Lane || data.Seq != att.Seq || data.Stage == last {
					continue
				}
				last = data.Stage
				if data.ID != "" {
					hash = data.ID
				}
				switch data.Stage {
				case domain.StageIdle:
					continue
				case domain.StageFailed:
					printStage(out, data, explorer)
					return fmt.Errorf("transaction failed: %s", data.Error)
				case domain.StageConfirmed:
					printStage(out, data, explorer)
					arm()
				default:
					printStage(out, data, explorer)
				}
			case domain.Notification:
				if hash == "" || !strings.EqualFold(data.TransactionID, hash) {
					continue
				}
				printNotification(out, data)
				arm()
			}
		}
	}
}

// stageText is the one-line description of a stage.
func stageText(att domain.TransactionAttempt) string {
	switch att.Stage {
	case domain.StagePreparing:
		return "Confirm in wallet..."
	case domain.StagePending:
		return "Transaction sent"
	case domain.StageConfirming:
		return "Waiting for confirmation..."
	case domain.StageConfirmed:
		return "Confirmed"
	case domain.StageFailed:
		if att.Error != "" {
			return "Failed: " + att.Error
		}
		return "Failed"
	}
	return string(att.Stage)
}

func printStage(out io.Writer, att domain.TransactionAttempt, explorer string) {
	c, found := stageColor[att.Stage]
	if !found {
		c = dimColor
	}
	line := fmt.Sprintf("[%s] %s", att.Lane, stageText(att))
	if att.ID != "" && att.Stage != domain.StagePreparing {
		line += " " + txLink(explorer, att.ID)
	}
	c.Fprintln(out, line)
}

func printNotification(out io.Writer, n domain.Notification) {
	c, found := styleColor[n.Style]
	if !found {
		c = boldColor
	}
	c.Fprintln(out, "  "+n.Text)
}

// txLink fills the explorer template, falling back to the bare hash.
func txLink(explorer, hash string) string {
	if !strings.Contains(explorer, "%s") {
		return hash
	}
	return fmt.Sprintf(explorer, hash)
}
