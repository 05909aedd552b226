package chain

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	testContract = common.HexToAddress("0x85244A9D4A539C42dD71d0c5EcE83B9139EEd0C8")
	testShooter  = common.HexToAddress("0x00000000000000000000000000000000000000b0")
)

func TestGameABI_HasMethodsAndEvent(t *testing.T) {
	for _, m := range []string{MethodMintDucks, MethodMintZappers, MethodSendZappers, "duckPrice", "zapperPrice"} {
		if _, ok := GameABI.Methods[m]; !ok {
			t.Fatalf("missing method %s", m)
		}
	}
	if !GameABI.Methods[MethodMintDucks].IsPayable() || GameABI.Methods[MethodSendZappers].IsPayable() {
		t.Fatalf("payability mismatch")
	}
	if SentZapperID == (common.Hash{}) {
		t.Fatalf("SentZapper id not computed")
	}
}

func TestDecodeSentZapper_RoundTrip(t *testing.T) {
	lg := NewSentZapperLog(testContract, testShooter, 42, true, false, 99, 7)
	got, err := DecodeSentZapper(lg)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.From != testShooter || got.TokenID.Uint64() != 42 || !got.Hit || got.Owned {
		t.Fatalf("unexpected decode: %+v", got)
	}
	if got.DucksRemaining.Uint64() != 99 || got.ZappersRemaining.Uint64() != 7 {
		t.Fatalf("unexpected remaining counts: %+v", got)
	}
}

func TestDecodeSentZapper_Rejects(t *testing.T) {
	good := NewSentZapperLog(testContract, testShooter, 1, false, false, 0, 0)

	wrongTopic := good
	wrongTopic.Topics = append([]common.Hash{common.HexToHash("0x01")}, good.Topics[1:]...)

	shortData := good
	shortData.Data = good.Data[:32]

	for name, lg := range map[string]types.Log{
		"empty":       {Address: testContract},
		"wrong topic": wrongTopic,
		"short data":  shortData,
	} {
		if _, err := DecodeSentZapper(lg); !errors.Is(err, ErrNotSentZapper) {
			t.Fatalf("%s: expected ErrNotSentZapper, got %v", name, err)
		}
	}
}

func TestPackAmountCall(t *testing.T) {
	data, err := PackAmountCall(MethodSendZappers, 5)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	if len(data) != 4+32 {
		t.Fatalf("len = %d", len(data))
	}
	if _, err := PackAmountCall("burnEverything", 1); err == nil {
		t.Fatalf("expected error for unknown method")
	}
}
