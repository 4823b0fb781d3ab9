package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		pixPaymentsTotal,
		pixAmountTotal,
	)
}

var (
	pixPaymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pix_payments_total",
			Help: "PIX charge attempts by gateway and status (created/failed/rejected).",
		},
		[]string{"gateway", "status"},
	)

	pixAmountTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pix_amount_cents_total",
			Help: "Sum of created PIX charges in cents, by gateway.",
		},
		[]string{"gateway"},
	)
)

func IncPixPayment(gateway, status string) {
	pixPaymentsTotal.WithLabelValues(norm(gateway), norm(status)).Inc()
}

func AddPixAmount(gateway string, cents int64) {
	pixAmountTotal.WithLabelValues(norm(gateway)).Add(float64(cents))
}
