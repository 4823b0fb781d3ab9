package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		registrationsTotal,
		reapedBotsTotal,
		reaperStepFailuresTotal,
		oauthLinksTotal,
	)
}

var (
	registrationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_registrations_total",
			Help: "Bot registration attempts by result (ok/invalid/duplicate/failed).",
		},
		[]string{"result"},
	)

	reapedBotsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bots_reaped_total",
			Help: "Bots removed for inactivity.",
		},
	)

	reaperStepFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reaper_step_failures_total",
			Help: "Best-effort reaping steps that failed, by step.",
		},
		[]string{"step"},
	)

	oauthLinksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oauth_links_total",
			Help: "Mercado Pago account links by result.",
		},
		[]string{"result"},
	)
)

func IncRegistration(result string) {
	registrationsTotal.WithLabelValues(norm(result)).Inc()
}

func IncBotReaped() {
	reapedBotsTotal.Inc()
}

func IncReaperStepFailure(step string) {
	reaperStepFailuresTotal.WithLabelValues(norm(step)).Inc()
}

func IncOAuthLink(result string) {
	oauthLinksTotal.WithLabelValues(norm(result)).Inc()
}
