// cmd/punkhunt/status.go
package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tbourn/punkhunt/internal/chain"
	"github.com/tbourn/punkhunt/internal/config"
	"github.com/tbourn/punkhunt/internal/domain"
	"github.com/tbourn/punkhunt/internal/services"
)

// readOnly returns a copy of c that never signs: the key is replaced by
// the address it controls.
func readOnly(c config.Config) (config.Config, error) {
	if c.Game.WalletKey != "" && c.Game.WalletAddress == "" {
		w, err := chain.NewKeyedWallet(chain.NewClient(""), common.Address{}, c.Game.WalletKey, nil, 0)
		if err != nil {
			return c, err
		}
		c.Game.WalletAddress = w.Address()
	}
	c.Game.WalletKey = ""
	return c, nil
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [address]",
		Short: "Show game state and balances",
		Long: `Show the current game state: season, live ducks, mint countdown, prices
and prize pools. With an address (or a configured wallet) the duck and
zapper balances are shown as well.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := readOnly(cfg)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				rc.Game.WalletAddress = args[0]
			}
			a, err := newApp(cmd.Context(), rc, nil)
			if err != nil {
				return err
			}
			defer a.close()
			return printStatus(cmd.Context(), a, cmd.OutOrStdout(), time.Now())
		},
	}
}

func printStatus(ctx context.Context, a *app, out io.Writer, now time.Time) error {
	// On error the store still serves its last value or the defaults.
	snap, _ := a.game.Refresh(ctx)
	v := services.ProjectGame(snap, now)

	boldColor.Fprintln(out, "PUNK HUNT")
	if v.Fallback {
		dimColor.Fprintln(out, "(game data unavailable; showing defaults)")
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Season\t%s\n", seasonText(v))
	fmt.Fprintf(w, "Ducks\t%d live / %d minted / %d rekt\n", v.LiveDucks, v.Data.DucksMinted, v.Data.DucksRekt)
	fmt.Fprintf(w, "Zappers\t%d minted / %d burned\n", v.Data.ZappersMinted, v.Data.ZappersBurned)
	fmt.Fprintf(w, "Mint\t%s\n", v.MintCountdown)
	fmt.Fprintf(w, "Prices\tduck %s, zapper %s\n", v.DuckPrice, v.ZapperPrice)
	fmt.Fprintf(w, "Prize pools\tducks %s, zappers %s\n", v.DuckPrizePool, v.ZapperPrizePool)
	fmt.Fprintf(w, "Hunt progress\t%.1f%%\n", v.HuntProgress*100)
	if v.GameOver {
		fmt.Fprintf(w, "Winner\t%s\n", v.Data.Winner)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	addr := a.address()
	if addr == "" {
		return nil
	}
	user, err := a.users.User(addr).Refresh(ctx)
	fmt.Fprintln(out)
	boldColor.Fprintf(out, "Wallet %s\n", services.ShortAddress(addr))
	if err != nil && !user.Loaded {
		color.New(color.FgRed).Fprintf(out, "  balances unavailable: %v\n", err)
		return nil
	}
	fmt.Fprintf(out, "  ducks %d, zappers %d, shots %d\n", user.Balances.DuckBalance, user.Balances.ZapperBalance, user.Balances.ZapCount)
	return nil
}

func seasonText(v services.GameView) string {
	switch {
	case v.GameOver:
		return "game over"
	case v.Data.HuntingSeason:
		return "hunting season open"
	case v.Data.GameStarted:
		return "minting"
	}
	return "not started"
}

func newHoldersCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "holders",
		Aliases: []string{"leaderboard"},
		Short:   "Show the top holders and hunters",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := readOnly(cfg)
			if err != nil {
				return err
			}
			rc.Game.WalletAddress = ""
			a, err := newApp(cmd.Context(), rc, nil)
			if err != nil {
				return err
			}
			defer a.close()
			return printHolders(cmd.Context(), a, cmd.OutOrStdout())
		},
	}
}

func printHolders(ctx context.Context, a *app, out io.Writer) error {
	snap, _ := a.game.Refresh(ctx)
	holders, err := a.holders.Holders(ctx)
	if err != nil && len(holders) == 0 {
		return fmt.Errorf("holders: %w", err)
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	boldColor.Fprintln(out, "Top holders")
	for i, h := range services.DisplayHolders(holders, snap.Data) {
		fmt.Fprintf(w, "%d.\t%s\t%s\n", i+1, services.ShortAddress(h.Address), h.Balance)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	lb, err := a.holders.Leaderboard(ctx)
	if err != nil || len(lb.TopHunters) == 0 {
		return nil
	}
	fmt.Fprintln(out)
	boldColor.Fprintln(out, "Top hunters")
	for i, h := range topHunters(lb, 5) {
		fmt.Fprintf(w, "%d.\t%s\t%d zaps\n", i+1, services.ShortAddress(h.Address), h.ZapCount)
	}
	return w.Flush()
}

func topHunters(lb domain.Leaderboard, n int) []domain.Hunter {
	if len(lb.TopHunters) > n {
		return lb.TopHunters[:n]
	}
	return lb.TopHunters
}
