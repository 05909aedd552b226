package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gorm.io/gorm"

	"github.com/tbourn/punkhunt/internal/chain"
	"github.com/tbourn/punkhunt/internal/domain"
	"github.com/tbourn/punkhunt/internal/repo"
)

// DefaultStagger separates successive pushes from one batch.
const DefaultStagger = 200 * time.Millisecond

// Fixed notification texts.
const (
	TextMiss         = "You Missed!"
	TextUnknownShot  = "Shot fired!"
	TextTxCompleted  = "Transaction completed!"
	receiptFetchTime = 15 * time.Second
)

// ReceiptFetcher looks up a mined transaction's receipt. *chain.Client and
// ethclient both satisfy it.
type ReceiptFetcher interface {
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// ReconcileRequest is emitted by a controller when an attempt confirms.
type ReconcileRequest struct {
	TransactionID string
	PayloadAmount int64
	Lane          domain.Lane
}

// OutcomeHandler receives reconciliation requests. Handle must not return
// errors to the controller; failures are the handler's to log.
type OutcomeHandler interface {
	Handle(ctx context.Context, req ReconcileRequest)
}

// ReconcilerOptions configures a Reconciler.
type ReconcilerOptions struct {
	Contract common.Address
	Receipts ReceiptFetcher
	Queue    *NotificationQueue
	DB       *gorm.DB // optional; persists the processed set across restarts
	Stagger  time.Duration
	Clock    Clock
}

// Reconciler turns confirmed transactions into notifications, at most once
// per transaction id.
type Reconciler struct {
	contract common.Address
	receipts ReceiptFetcher
	queue    *NotificationQueue
	db       *gorm.DB
	stagger  time.Duration
	clock    Clock
	printer  *message.Printer

	mu        sync.Mutex
	processed map[string]struct{}
}

// NewReconciler builds a reconciler.
func NewReconciler(opts ReconcilerOptions) *Reconciler {
	if opts.Stagger < 0 {
		opts.Stagger = 0
	}
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}
	return &Reconciler{
		contract:  opts.Contract,
		receipts:  opts.Receipts,
		queue:     opts.Queue,
		db:        opts.DB,
		stagger:   opts.Stagger,
		clock:     opts.Clock,
		printer:   message.NewPrinter(language.English),
		processed: map[string]struct{}{},
	}
}

// Handle dispatches req by lane. Shots are decoded from the receipt; mints
// only need the submitted amount.
func (r *Reconciler) Handle(ctx context.Context, req ReconcileRequest) {
	switch req.Lane {
	case domain.LaneShoot:
		r.Reconcile(ctx, req)
	case domain.LaneMintDucks, domain.LaneMintZappers:
		r.reconcileMint(ctx, req)
	default:
		log.Warn().Str("lane", string(req.Lane)).Msg("reconcile: unknown lane")
	}
}

// claim records id as processed and reports whether this caller won.
func (r *Reconciler) claim(ctx context.Context, req ReconcileRequest) bool {
	id := strings.ToLower(req.TransactionID)
	r.mu.Lock()
	if _, seen := r.processed[id]; seen {
		r.mu.Unlock()
		return false
	}
	r.processed[id] = struct{}{}
	r.mu.Unlock()

	if r.db == nil {
		return true
	}
	err := repo.MarkProcessed(ctx, r.db, id, string(req.Lane), req.PayloadAmount)
	switch {
	case err == nil:
		return true
	case errors.Is(err, repo.ErrDuplicate):
		return false
	default:
		// The in-memory set still guards this process.
		log.Warn().Err(err).Str("tx", id).Msg("persist processed transaction failed")
		return true
	}
}

// Reconcile decodes the receipt of a confirmed shot into outcomes, queues
// one notification per outcome with a stagger, and returns the outcomes. It
// never fails; every error path degrades to a generic notification.
func (r *Reconciler) Reconcile(ctx context.Context, req ReconcileRequest) []domain.DecodedOutcome {
	tr := otel.Tracer("services/Reconciler")
	ctx, span := tr.Start(ctx, "Reconcile",
		trace.WithAttributes(
			attribute.String("tx.hash", req.TransactionID),
			attribute.Int64("tx.amount", req.PayloadAmount),
		),
	)
	defer span.End()

	if !r.claim(ctx, req) {
		reconciliations.WithLabelValues("duplicate").Inc()
		log.Debug().Str("tx", req.TransactionID).Msg("reconcile: already processed")
		return nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, receiptFetchTime)
	receipt, err := r.receipts.TransactionReceipt(fetchCtx, common.HexToHash(req.TransactionID))
	cancel()
	if err != nil || receipt == nil {
		reconciliations.WithLabelValues("receipt_error").Inc()
		log.Warn().Err(err).Str("tx", req.TransactionID).Msg("reconcile: receipt fetch failed")
		r.pushStaggered([]domain.Notification{r.note(req, TextTxCompleted, domain.StyleInfo)})
		return nil
	}

	var matching []*types.Log
	for _, lg := range receipt.Logs {
		// Address bytes compare equal regardless of hex case.
		if lg != nil && lg.Address == r.contract {
			matching = append(matching, lg)
		}
	}
	if len(matching) == 0 {
		reconciliations.WithLabelValues("no_logs").Inc()
		text := r.printer.Sprintf("%d shots fired!", req.PayloadAmount)
		r.pushStaggered([]domain.Notification{r.note(req, text, domain.StyleInfo)})
		return nil
	}

	outcomes := make([]domain.DecodedOutcome, 0, len(matching))
	notes := make([]domain.Notification, 0, len(matching))
	for _, lg := range matching {
		o := domain.DecodedOutcome{Kind: domain.OutcomeUnknown, SourceTransactionID: req.TransactionID}
		if sz, err := chain.DecodeSentZapper(*lg); err == nil {
			o = Classify(sz, req.TransactionID)
		} else {
			log.Debug().Err(err).Str("tx", req.TransactionID).Uint("log_index", lg.Index).Msg("reconcile: undecodable log")
		}
		outcomes = append(outcomes, o)
		text, style := OutcomeText(o)
		notes = append(notes, r.note(req, text, style))
	}
	reconciliations.WithLabelValues("decoded").Inc()
	span.SetAttributes(attribute.Int("outcomes", len(outcomes)))
	r.pushStaggered(notes)
	return outcomes
}

func (r *Reconciler) reconcileMint(ctx context.Context, req ReconcileRequest) {
	if !r.claim(ctx, req) {
		reconciliations.WithLabelValues("duplicate").Inc()
		return
	}
	reconciliations.WithLabelValues("mint").Inc()
	n := r.printer.Sprintf("%d", req.PayloadAmount)
	switch req.Lane {
	case domain.LaneMintDucks:
		// Every duck comes with one free zapper.
		r.pushStaggered([]domain.Notification{
			r.note(req, "Minted "+n+" Ducks!", domain.StyleSuccess),
			r.note(req, "+"+n+" Zappers!", domain.StyleSuccess),
		})
	case domain.LaneMintZappers:
		r.pushStaggered([]domain.Notification{r.note(req, "Minted "+n+" Zappers!", domain.StyleSuccess)})
	}
}

func (r *Reconciler) note(req ReconcileRequest, text string, style domain.Style) domain.Notification {
	return domain.Notification{Text: text, TransactionID: req.TransactionID, Lane: req.Lane, Style: style}
}

// pushStaggered pushes the first note now and each following one a stagger
// after its predecessor, preserving order.
func (r *Reconciler) pushStaggered(notes []domain.Notification) {
	if len(notes) == 0 || r.queue == nil {
		return
	}
	r.queue.Push(notes[0])
	if len(notes) == 1 {
		return
	}
	if r.stagger == 0 {
		for _, n := range notes[1:] {
			r.queue.Push(n)
		}
		return
	}
	rest := notes[1:]
	r.clock.AfterFunc(r.stagger, func() { r.pushStaggered(rest) })
}

// Classify maps a decoded SentZapper to an outcome.
func Classify(sz *chain.SentZapper, txID string) domain.DecodedOutcome {
	o := domain.DecodedOutcome{SourceTransactionID: txID}
	switch {
	case !sz.Hit:
		o.Kind = domain.OutcomeMiss
	case sz.Owned:
		o.Kind = domain.OutcomeHitOwnDuck
	default:
		o.Kind = domain.OutcomeHitOpponentDuck
	}
	if sz.TokenID != nil && sz.TokenID.IsUint64() {
		o.TokenID = sz.TokenID.Uint64()
	}
	return o
}

// OutcomeText returns the notification text and style for o.
func OutcomeText(o domain.DecodedOutcome) (string, domain.Style) {
	id := strconv.FormatUint(o.TokenID, 10)
	switch o.Kind {
	case domain.OutcomeMiss:
		return TextMiss, domain.StyleMiss
	case domain.OutcomeHitOwnDuck:
		return "You Shot your Own Duck #" + id + "!", domain.StyleSelfHit
	case domain.OutcomeHitOpponentDuck:
		return "You hit Duck #" + id + "!", domain.StyleSuccess
	}
	return TextUnknownShot, domain.StyleInfo
}
