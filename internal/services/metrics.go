package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// stageTransitions counts lane stage changes.
	stageTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "punkhunt_stage_transitions_total",
			Help: "Transaction attempt stage transitions by lane and target stage.",
		},
		[]string{"lane", "stage"},
	)

	// actionRejections counts actions refused before reaching the wallet.
	actionRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "punkhunt_action_rejections_total",
			Help: "Actions rejected by validation or the in-flight guard.",
		},
		[]string{"lane", "reason"},
	)

	// notificationsPushed counts notifications by style.
	notificationsPushed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "punkhunt_notifications_total",
			Help: "Notifications pushed to the queue by style.",
		},
		[]string{"style"},
	)

	// reconciliations counts reconcile runs by result.
	reconciliations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "punkhunt_reconciliations_total",
			Help: "Receipt reconciliations by result (decoded, no_logs, receipt_error, duplicate, mint).",
		},
		[]string{"result"},
	)

	// inFlight gauges lanes currently transacting.
	inFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "punkhunt_lanes_in_flight",
			Help: "Number of lanes with a transaction in flight.",
		},
	)
)

func init() {
	prometheus.MustRegister(stageTransitions, actionRejections, notificationsPushed, reconciliations, inFlight)
}

func rejectionReason(err error) string {
	switch err {
	case ErrTransactionInFlight:
		return "in_flight"
	case ErrWalletDisconnected:
		return "wallet"
	case ErrInvalidAmount:
		return "amount"
	case ErrPriceUnavailable:
		return "price"
	case ErrInsufficientZappers:
		return "balance"
	case ErrHuntingClosed:
		return "season"
	case ErrGameOver:
		return "game_over"
	case ErrMintClosed:
		return "mint_closed"
	}
	return "other"
}
