package chain

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

type fakeBackend struct {
	sent     []*types.Transaction
	receipts map[common.Hash]*types.Receipt
	sendErr  error
	calls    int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{receipts: map[common.Hash]*types.Receipt{}}
}

func (f *fakeBackend) ChainID(context.Context) (*big.Int, error) { return big.NewInt(8453), nil }
func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return uint64(len(f.sent)), nil
}
func (f *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) { return big.NewInt(1e6), nil }
func (f *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{BaseFee: big.NewInt(1e7)}, nil
}
func (f *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) { return 100000, nil }
func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	return nil
}
func (f *fakeBackend) TransactionReceipt(_ context.Context, h common.Hash) (*types.Receipt, error) {
	f.calls++
	if r, ok := f.receipts[h]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}
func (f *fakeBackend) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return common.BigToHash(big.NewInt(2220000000000000)).Bytes(), nil
}

func newTestWallet(t *testing.T, fb *fakeBackend, confirm Confirmer) *KeyedWallet {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	hexKey := common.Bytes2Hex(crypto.FromECDSA(key))
	w, err := NewKeyedWallet(NewClientWithBackend(fb, big.NewInt(8453)), testContract, "0x"+hexKey, confirm, time.Second)
	if err != nil {
		t.Fatalf("NewKeyedWallet: %v", err)
	}
	return w
}

func TestNewKeyedWallet_Errors(t *testing.T) {
	c := NewClientWithBackend(newFakeBackend(), big.NewInt(1))
	if _, err := NewKeyedWallet(c, testContract, "  ", nil, 0); !errors.Is(err, ErrNoKey) {
		t.Fatalf("expected ErrNoKey, got %v", err)
	}
	if _, err := NewKeyedWallet(c, testContract, "zz", nil, 0); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestKeyedWallet_SubmitSignsDynamicFeeTx(t *testing.T) {
	fb := newFakeBackend()
	w := newTestWallet(t, fb, nil)

	value := big.NewInt(6660000000000000)
	hash, err := w.Submit(context.Background(), Call{Method: MethodMintDucks, Amount: 3, Value: value})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(fb.sent) != 1 {
		t.Fatalf("expected 1 tx sent, got %d", len(fb.sent))
	}
	tx := fb.sent[0]
	if tx.Hash().Hex() != hash {
		t.Fatalf("hash mismatch")
	}
	if tx.Type() != types.DynamicFeeTxType || tx.Value().Cmp(value) != 0 || *tx.To() != testContract {
		t.Fatalf("unexpected tx: type=%d value=%s to=%s", tx.Type(), tx.Value(), tx.To())
	}
	if tx.Gas() != 120000 {
		t.Fatalf("gas = %d, want padded estimate", tx.Gas())
	}
	if tx.GasFeeCap().Cmp(big.NewInt(1e6+2e7)) != 0 {
		t.Fatalf("fee cap = %s", tx.GasFeeCap())
	}
	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(8453)), tx)
	if err != nil || !strings.EqualFold(sender.Hex(), w.Address()) {
		t.Fatalf("sender = %s, %v; want %s", sender.Hex(), err, w.Address())
	}
}

func TestKeyedWallet_RejectedNeverBroadcasts(t *testing.T) {
	fb := newFakeBackend()
	w := newTestWallet(t, fb, ConfirmFunc(func(context.Context, Call) error { return ErrUserRejected }))
	_, err := w.Submit(context.Background(), Call{Method: MethodSendZappers, Amount: 1})
	if !errors.Is(err, ErrUserRejected) {
		t.Fatalf("expected ErrUserRejected, got %v", err)
	}
	if len(fb.sent) != 0 {
		t.Fatalf("rejected call must not be sent")
	}
}

func TestKeyedWallet_SendError(t *testing.T) {
	fb := newFakeBackend()
	fb.sendErr = errors.New("insufficient funds")
	w := newTestWallet(t, fb, nil)
	if _, err := w.Submit(context.Background(), Call{Method: MethodSendZappers, Amount: 1}); err == nil || !strings.Contains(err.Error(), "insufficient funds") {
		t.Fatalf("expected wrapped send error, got %v", err)
	}
}

func TestKeyedWallet_WaitStatus(t *testing.T) {
	fb := newFakeBackend()
	w := newTestWallet(t, fb, nil)

	ok := common.HexToHash("0x01")
	bad := common.HexToHash("0x02")
	fb.receipts[ok] = &types.Receipt{Status: types.ReceiptStatusSuccessful}
	fb.receipts[bad] = &types.Receipt{Status: types.ReceiptStatusFailed}

	if success, err := w.Wait(context.Background(), ok.Hex()); err != nil || !success {
		t.Fatalf("Wait ok = %v, %v", success, err)
	}
	if success, err := w.Wait(context.Background(), bad.Hex()); err != nil || success {
		t.Fatalf("Wait reverted = %v, %v; want false, nil", success, err)
	}
}

func TestClient_WaitMinedHonorsContext(t *testing.T) {
	c := NewClientWithBackend(newFakeBackend(), big.NewInt(1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.WaitMined(ctx, common.HexToHash("0xff"), time.Minute); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestClient_NotConnected(t *testing.T) {
	c := NewClient("http://127.0.0.1:0")
	if _, err := c.TransactionReceipt(context.Background(), common.Hash{}); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if _, err := c.ChainID(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestClient_Uint256(t *testing.T) {
	c := NewClientWithBackend(newFakeBackend(), big.NewInt(1))
	v, err := c.Uint256(context.Background(), testContract, "duckPrice")
	if err != nil || v.String() != "2220000000000000" {
		t.Fatalf("Uint256 = %v, %v", v, err)
	}
}

func TestWatchWallet(t *testing.T) {
	if _, err := NewWatchWallet("not-an-address"); err == nil {
		t.Fatal("expected error for malformed address")
	}
	w, err := NewWatchWallet("0xabcdef0123456789abcdef0123456789abcdef01")
	if err != nil {
		t.Fatalf("NewWatchWallet: %v", err)
	}
	if !strings.EqualFold(w.Address(), "0xabcdef0123456789abcdef0123456789abcdef01") {
		t.Fatalf("Address = %s", w.Address())
	}
	if _, err := w.Submit(context.Background(), Call{Method: MethodSendZappers, Amount: 1}); !errors.Is(err, ErrNoKey) {
		t.Fatalf("Submit err = %v", err)
	}
	if _, err := w.Wait(context.Background(), "0x01"); !errors.Is(err, ErrNoKey) {
		t.Fatalf("Wait err = %v", err)
	}
}
