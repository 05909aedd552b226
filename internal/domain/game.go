package domain

import "time"

// ZeroAddress is what the contract reports for unset placements.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// GameData mirrors GET /api/game-data. Prices are wei amounts encoded as
// decimal strings; an empty price means "not loaded".
type GameData struct {
	DuckPrice             string `json:"duckPrice"`
	ZapperPrice           string `json:"zapperPrice"`
	HuntingSeason         bool   `json:"huntingSeason"`
	GameStarted           bool   `json:"gameStarted"`
	DucksMinted           int64  `json:"ducksMinted"`
	DucksRekt             int64  `json:"ducksRekt"`
	ZappersMinted         int64  `json:"zappersMinted"`
	ZappersBurned         int64  `json:"zappersBurned"`
	DucksMintEndTimestamp int64  `json:"ducksMintEndTimestamp"`
	Winner                string `json:"winner"`
	SecondPlace           string `json:"secondPlace"`
	ThirdPlace            string `json:"thirdPlace"`
	TopShooter            string `json:"topShooter"`
	LastUpdate            int64  `json:"lastUpdate"`
}

// LiveDucks is minted minus rekt, floored at zero.
func (g GameData) LiveDucks() int64 {
	if n := g.DucksMinted - g.DucksRekt; n > 0 {
		return n
	}
	return 0
}

// IsGameOver reports whether the contract has crowned a winner.
func (g GameData) IsGameOver() bool {
	return g.Winner != "" && g.Winner != ZeroAddress
}

// UserBalances mirrors GET /api/user/{address}/balances.
type UserBalances struct {
	Address       string `json:"address,omitempty"`
	DuckBalance   int64  `json:"duckBalance"`
	ZapperBalance int64  `json:"zapperBalance"`
	ZapCount      int64  `json:"zapCount"`
	LastUpdate    int64  `json:"lastUpdate,omitempty"`
}

// Holder is one entry of GET /api/holders.
type Holder struct {
	Address string `json:"address"`
	Balance int64  `json:"balance"`
}

// Hunter is one entry of the leaderboard's topHunters list.
type Hunter struct {
	Address  string `json:"address"`
	ZapCount int64  `json:"zapCount"`
}

// Leaderboard mirrors GET /api/leaderboard.
type Leaderboard struct {
	TopHunters []Hunter `json:"topHunters"`
	TopHolders []Holder `json:"topHolders"`
	LastUpdate int64    `json:"lastUpdate,omitempty"`
}

// ChatMessage is one trollbox message as relayed over Socket.IO.
type ChatMessage struct {
	ID        string `json:"id,omitempty"`
	User      string `json:"user"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
	IsSystem  bool   `json:"isSystem,omitempty"`
}

// Time converts the millisecond timestamp.
func (m ChatMessage) Time() time.Time { return time.UnixMilli(m.Timestamp) }
