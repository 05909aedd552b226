package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog/log"
)

var (
	// ErrReverted describes a mined transaction whose receipt status is failed.
	ErrReverted = errors.New("transaction reverted")
	// ErrUserRejected is returned when the confirmer declines a call.
	ErrUserRejected = errors.New("user rejected the request")
	// ErrNoKey is returned when a wallet is built without a private key.
	ErrNoKey = errors.New("wallet key not configured")
)

// Call is one contract write the wallet is asked to sign.
type Call struct {
	Method string
	Amount int64
	Value  *big.Int // nil for non-payable calls
}

// Confirmer asks the user to approve a call before it is signed. Returning
// an error aborts the submission; ErrUserRejected signals a plain "no".
type Confirmer interface {
	Confirm(ctx context.Context, call Call) error
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, call Call) error

// Confirm implements Confirmer.
func (f ConfirmFunc) Confirm(ctx context.Context, call Call) error { return f(ctx, call) }

// AutoApprove confirms every call. The server uses it since approval happens
// in the view before a submit request is sent.
var AutoApprove = ConfirmFunc(func(context.Context, Call) error { return nil })

// KeyedWallet signs EIP-1559 transactions with a local private key.
type KeyedWallet struct {
	client   *Client
	contract common.Address
	key      *ecdsa.PrivateKey
	from     common.Address
	confirm  Confirmer
	timeout  time.Duration
}

// NewKeyedWallet builds a wallet for hexKey (with or without 0x) that sends
// to contract through client.
func NewKeyedWallet(client *Client, contract common.Address, hexKey string, confirm Confirmer, receiptTimeout time.Duration) (*KeyedWallet, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, ErrNoKey
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse wallet key: %w", err)
	}
	if confirm == nil {
		confirm = AutoApprove
	}
	if receiptTimeout <= 0 {
		receiptTimeout = 2 * time.Minute
	}
	return &KeyedWallet{
		client:   client,
		contract: contract,
		key:      key,
		from:     crypto.PubkeyToAddress(key.PublicKey),
		confirm:  confirm,
		timeout:  receiptTimeout,
	}, nil
}

// Address returns the checksummed sender address.
func (w *KeyedWallet) Address() string { return w.from.Hex() }

// Submit packs, confirms, signs and broadcasts call. It returns the
// transaction hash as soon as the node accepts it.
func (w *KeyedWallet) Submit(ctx context.Context, call Call) (string, error) {
	backend := w.client.Backend()
	if backend == nil {
		return "", ErrNotConnected
	}
	data, err := PackAmountCall(call.Method, call.Amount)
	if err != nil {
		return "", err
	}
	if err := w.confirm.Confirm(ctx, call); err != nil {
		return "", err
	}

	chainID, err := w.client.ChainID(ctx)
	if err != nil {
		return "", err
	}
	nonce, err := backend.PendingNonceAt(ctx, w.from)
	if err != nil {
		return "", fmt.Errorf("failed to get pending nonce: %w", err)
	}
	tip, err := backend.SuggestGasTipCap(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to suggest tip: %w", err)
	}
	head, err := backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to get head: %w", err)
	}
	feeCap := new(big.Int).Set(tip)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}

	value := call.Value
	if value == nil {
		value = new(big.Int)
	}
	gas, err := backend.EstimateGas(ctx, ethereum.CallMsg{
		From:  w.from,
		To:    &w.contract,
		Value: value,
		Data:  data,
	})
	if err != nil {
		return "", fmt.Errorf("failed to estimate gas: %w", err)
	}
	gas += gas / 5

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &w.contract,
		Value:     value,
		Data:      data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), w.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}
	if err := backend.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("failed to send transaction: %w", err)
	}
	log.Info().
		Str("method", call.Method).
		Int64("amount", call.Amount).
		Str("tx", signed.Hash().Hex()).
		Msg("transaction broadcast")
	return signed.Hash().Hex(), nil
}

// Wait blocks until hash is mined and reports whether the receipt status
// is successful.
func (w *KeyedWallet) Wait(ctx context.Context, hash string) (bool, error) {
	receipt, err := w.client.WaitMined(ctx, common.HexToHash(hash), w.timeout)
	if err != nil {
		return false, err
	}
	return receipt.Status == types.ReceiptStatusSuccessful, nil
}

// WatchWallet reports an address for balance reads but cannot sign.
type WatchWallet struct {
	addr common.Address
}

// NewWatchWallet validates address and returns a read-only wallet.
func NewWatchWallet(address string) (*WatchWallet, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid wallet address %q", address)
	}
	return &WatchWallet{addr: common.HexToAddress(address)}, nil
}

// Address returns the checksummed address.
func (w *WatchWallet) Address() string { return w.addr.Hex() }

// Submit always fails with ErrNoKey.
func (w *WatchWallet) Submit(context.Context, Call) (string, error) { return "", ErrNoKey }

// Wait always fails with ErrNoKey.
func (w *WatchWallet) Wait(context.Context, string) (bool, error) { return false, ErrNoKey }
