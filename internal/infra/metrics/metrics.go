package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the bot's collectors; kept off the global default registry.
	Registry = prometheus.NewRegistry()

	applicationsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "verification",
			Subsystem: "applications",
			Name:      "submitted_total",
			Help:      "Applications accepted and sent to review.",
		},
		[]string{"guild"},
	)

	applicationsResolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "verification",
			Subsystem: "applications",
			Name:      "resolved_total",
			Help:      "Applications moved to a terminal status.",
		},
		[]string{"guild", "status"},
	)

	roleGrants = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "verification",
			Subsystem: "roles",
			Name:      "grants_total",
			Help:      "Verified role grant attempts by result.",
		},
		[]string{"result"},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "verification",
			Subsystem: "notifications",
			Name:      "sent_total",
			Help:      "Direct notifications to applicants by result.",
		},
		[]string{"result"},
	)

	configUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "verification",
			Subsystem: "config",
			Name:      "updates_total",
			Help:      "Guild configuration writes by result.",
		},
		[]string{"result"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		applicationsSubmitted,
		applicationsResolved,
		roleGrants,
		notifications,
		configUpdates,
	)
}

// Handler exposes Registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func ApplicationSubmitted(guildID string) {
	applicationsSubmitted.WithLabelValues(guildID).Inc()
}

func ApplicationResolved(guildID, status string) {
	applicationsResolved.WithLabelValues(guildID, status).Inc()
}

func RoleGrant(result string) { roleGrants.WithLabelValues(result).Inc() }

func Notification(result string) { notifications.WithLabelValues(result).Inc() }

func ConfigUpdate(result string) { configUpdates.WithLabelValues(result).Inc() }
