// cmd/punkhunt/confirm.go
package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"

	"github.com/tbourn/punkhunt/internal/chain"
	"github.com/tbourn/punkhunt/internal/services"
)

// errCancelled marks a command the user interrupted.
var errCancelled = errors.New("cancelled")

// promptRunner is the part of promptui.Prompt the confirmer needs.
type promptRunner interface {
	Run() (string, error)
}

// newPrompt builds a yes/no prompt; tests swap it out.
var newPrompt = func(label string) promptRunner {
	return &promptui.Prompt{Label: label, IsConfirm: true}
}

// callLabel describes a wallet request the way a wallet popup would.
func callLabel(call chain.Call) string {
	label := fmt.Sprintf("Send %s(%d)", call.Method, call.Amount)
	if call.Value != nil && call.Value.Sign() > 0 {
		label += " paying " + services.FormatEth(call.Value)
	}
	return label
}

// promptConfirm asks on the terminal before every wallet request. Declining,
// Ctrl+C and EOF all count as the user rejecting the request.
func promptConfirm(ctx context.Context, call chain.Call) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := newPrompt(callLabel(call)).Run()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, promptui.ErrAbort), errors.Is(err, promptui.ErrInterrupt), errors.Is(err, promptui.ErrEOF):
		return chain.ErrUserRejected
	default:
		return err
	}
}

// confirmer picks the prompt or auto-approval.
func confirmer(yes bool) chain.Confirmer {
	if yes {
		return chain.AutoApprove
	}
	return chain.ConfirmFunc(promptConfirm)
}
