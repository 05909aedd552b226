package services

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tbourn/punkhunt/internal/cache"
	"github.com/tbourn/punkhunt/internal/domain"
)

// Display strings.
const (
	HappyHunting = "HAPPY HUNTING!"
	LoadingPrice = "Loading price..."
)

var weiPerEth = decimal.New(1, 18)

// GameView is the read-side projection the panels render.
type GameView struct {
	Data            domain.GameData `json:"data"`
	Fallback        bool            `json:"fallback"`
	LiveDucks       int64           `json:"live_ducks"`
	GameOver        bool            `json:"game_over"`
	MintCountdown   string          `json:"mint_countdown"`
	MintClosed      bool            `json:"mint_closed"`
	DuckPrizePool   string          `json:"duck_prize_pool"`
	ZapperPrizePool string          `json:"zapper_prize_pool"`
	HuntProgress    float64         `json:"hunt_progress"`
	DuckPrice       string          `json:"duck_price"`
	ZapperPrice     string          `json:"zapper_price"`
}

// ProjectGame derives the view from a store snapshot at now.
func ProjectGame(snap cache.GameSnapshot, now time.Time) GameView {
	d := snap.Data
	v := GameView{
		Data:            d,
		Fallback:        snap.Fallback,
		LiveDucks:       d.LiveDucks(),
		GameOver:        d.IsGameOver(),
		MintCountdown:   MintCountdown(d.DucksMintEndTimestamp, now),
		DuckPrizePool:   PrizePool(d.DuckPrice, d.DucksMinted),
		ZapperPrizePool: PrizePool(d.ZapperPrice, paidZapperMints(d)),
		HuntProgress:    HuntProgress(d),
		DuckPrice:       FormatUnitPrice(d.DuckPrice),
		ZapperPrice:     FormatUnitPrice(d.ZapperPrice),
	}
	v.MintClosed = v.MintCountdown == HappyHunting
	return v
}

// MintCountdown renders the time left until end (unix seconds) as
// DD:HH:MM:SS, or HAPPY HUNTING! once it has passed. An unknown end (0)
// renders as a two week countdown from now.
func MintCountdown(end int64, now time.Time) string {
	endAt := time.Unix(end, 0)
	if end <= 0 {
		endAt = now.Add(14 * 24 * time.Hour)
	}
	left := endAt.Sub(now)
	if left <= 0 {
		return HappyHunting
	}
	secs := int64(left / time.Second)
	days := secs / 86400
	hours := secs % 86400 / 3600
	mins := secs % 3600 / 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", days, hours, mins, secs%60)
}

// paidZapperMints excludes the free zapper that comes with each duck.
func paidZapperMints(d domain.GameData) int64 {
	if d.DucksMinted == 0 {
		return 0
	}
	if n := d.ZappersMinted - d.DucksMinted; n > 0 {
		return n
	}
	return 0
}

// PrizePool returns half of price × count, in ETH with three decimals.
func PrizePool(priceWei string, count int64) string {
	p, ok := parseWei(priceWei)
	if !ok || count <= 0 {
		return "0.000"
	}
	eth := p.Mul(decimal.NewFromInt(count)).Div(weiPerEth).Mul(decimal.NewFromFloat(0.5))
	return eth.StringFixed(3)
}

// HuntProgress is rekt / minted as a percentage clamped to [0, 100].
func HuntProgress(d domain.GameData) float64 {
	if d.DucksMinted <= 0 {
		return 0
	}
	pct, _ := decimal.NewFromInt(d.DucksRekt).
		Div(decimal.NewFromInt(d.DucksMinted)).
		Mul(decimal.NewFromInt(100)).
		Float64()
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return pct
}

// FormatUnitPrice renders a wei price in ETH, trimming trailing zeros.
func FormatUnitPrice(priceWei string) string {
	p, ok := parseWei(priceWei)
	if !ok {
		return LoadingPrice
	}
	return p.Div(weiPerEth).String() + "Ξ"
}

// PriceTotal renders price × amount scaled to E, mE or μE.
func PriceTotal(priceWei string, amount int64) string {
	p, ok := parseWei(priceWei)
	if !ok || amount <= 0 {
		return LoadingPrice
	}
	return FormatEth(p.Mul(decimal.NewFromInt(amount)).BigInt())
}

// FormatEth renders wei as ETH (E) above 0.001, milli-ETH (mE) above
// 0.000001, and micro-ETH (μE) below.
func FormatEth(wei *big.Int) string {
	eth := decimal.NewFromBigInt(wei, -18)
	switch {
	case eth.GreaterThanOrEqual(decimal.New(1, -3)):
		return eth.StringFixed(3) + "E"
	case eth.GreaterThanOrEqual(decimal.New(1, -6)):
		return eth.Shift(3).StringFixed(3) + "mE"
	}
	return eth.Shift(6).StringFixed(3) + "μE"
}

func parseWei(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() {
		return decimal.Zero, false
	}
	return d, true
}

// ShortAddress renders 0x1234...abcd.
func ShortAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:4] + "..." + addr[len(addr)-4:]
}

// DisplayHolder is one row of the holders panel.
type DisplayHolder struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
	Podium  bool   `json:"podium"`
}

// DisplayHolders injects second and third place (when set) at positions two
// and three, removes their regular rows, and keeps the top five.
func DisplayHolders(holders []domain.Holder, d domain.GameData) []DisplayHolder {
	rows := make([]DisplayHolder, 0, len(holders)+2)
	for _, h := range holders {
		rows = append(rows, DisplayHolder{Address: h.Address, Balance: fmt.Sprint(h.Balance)})
	}
	inject := func(addr string, at int) {
		if addr == "" || addr == domain.ZeroAddress {
			return
		}
		kept := rows[:0]
		for _, r := range rows {
			if !strings.EqualFold(r.Address, addr) {
				kept = append(kept, r)
			}
		}
		rows = kept
		if at > len(rows) {
			at = len(rows)
		}
		rows = append(rows, DisplayHolder{})
		copy(rows[at+1:], rows[at:])
		rows[at] = DisplayHolder{Address: addr, Balance: "WINNER", Podium: true}
	}
	inject(d.SecondPlace, 1)
	inject(d.ThirdPlace, 2)
	if len(rows) > 5 {
		rows = rows[:5]
	}
	return rows
}

// ButtonInput is everything a lane button label depends on.
type ButtonInput struct {
	Lane      domain.Lane
	Attempt   domain.TransactionAttempt
	Game      domain.GameData
	Zappers   int64
	Connected bool
	Amount    int64
	Now       time.Time
}

// ButtonLabel returns the label of a lane's action button and whether it is
// disabled.
func ButtonLabel(in ButtonInput) (string, bool) {
	badAmount := in.Amount <= 0
	stage := in.Attempt.Stage

	switch in.Lane {
	case domain.LaneMintDucks:
		switch {
		case in.Game.IsGameOver():
			return "GAME OVER!", true
		case !in.Connected:
			return "CONNECT WALLET", true
		case MintCountdown(in.Game.DucksMintEndTimestamp, in.Now) == HappyHunting:
			return "MINT CLOSED", true
		}
		if label, busy := stageLabel(stage, "MINTING...", "SUCCESS!"); label != "" {
			return label, busy
		}
		return fmt.Sprintf("MINT %d DUCKS!", in.Amount), badAmount

	case domain.LaneMintZappers:
		if !in.Connected {
			return "CONNECT WALLET", true
		}
		if label, busy := stageLabel(stage, "MINTING...", "SUCCESS!"); label != "" {
			return label, busy
		}
		return fmt.Sprintf("MINT %d ZAPPERS", in.Amount), badAmount

	case domain.LaneShoot:
		switch {
		case !in.Connected:
			return "CONNECT WALLET", true
		case in.Game.LiveDucks() <= 1:
			return "HUNTING SZN CLOSED", true
		case !in.Game.HuntingSeason:
			return "HUNTING SZN SOON", true
		case in.Amount > in.Zappers:
			return fmt.Sprintf("NEED %d MORE ZAPPERS", in.Amount-in.Zappers), true
		}
		if label, busy := stageLabel(stage, "FIRING...", "SHOTS FIRED!"); label != "" {
			return label, busy
		}
		return fmt.Sprintf("SHOOT %d DUCKS!", in.Amount), badAmount
	}
	return "", true
}

// stageLabel maps an in-flight or just-confirmed stage to its label.
func stageLabel(s domain.Stage, confirming, success string) (string, bool) {
	switch s {
	case domain.StagePreparing:
		return "CONFIRM IN WALLET...", true
	case domain.StagePending, domain.StageConfirming:
		return confirming, true
	case domain.StageConfirmed:
		return success, false
	}
	return "", false
}
