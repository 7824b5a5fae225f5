package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebhookMetrics counts webhook ingestion outcomes per provider.
type WebhookMetrics struct {
	received      *prometheus.CounterVec
	duplicates    *prometheus.CounterVec
	unknownTenant *prometheus.CounterVec
	rejected      *prometheus.CounterVec
}

// NewWebhookMetrics registers the webhook counters on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	received := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Webhook deliveries that passed signature verification.",
	}, []string{"provider"})
	duplicates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_duplicate_total",
		Help: "Webhook deliveries discarded as duplicates.",
	}, []string{"provider"})
	unknownTenant := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_unknown_tenant_total",
		Help: "Webhook deliveries accepted but dropped because no integration owns the account.",
	}, []string{"provider"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_signature_rejected_total",
		Help: "Webhook deliveries rejected on signature verification.",
	}, []string{"provider"})
	reg.MustRegister(received, duplicates, unknownTenant, rejected)
	return &WebhookMetrics{
		received:      received,
		duplicates:    duplicates,
		unknownTenant: unknownTenant,
		rejected:      rejected,
	}
}

// IncReceived counts an accepted delivery for the provider.
func (m *WebhookMetrics) IncReceived(provider string) {
	if m == nil || m.received == nil {
		return
	}
	m.received.WithLabelValues(provider).Inc()
}

// IncDuplicate counts a delivery discarded as a duplicate.
func (m *WebhookMetrics) IncDuplicate(provider string) {
	if m == nil || m.duplicates == nil {
		return
	}
	m.duplicates.WithLabelValues(provider).Inc()
}

// IncUnknownTenant counts a delivery dropped for lack of an owning tenant.
func (m *WebhookMetrics) IncUnknownTenant(provider string) {
	if m == nil || m.unknownTenant == nil {
		return
	}
	m.unknownTenant.WithLabelValues(provider).Inc()
}

// IncRejected counts a delivery rejected on signature verification.
func (m *WebhookMetrics) IncRejected(provider string) {
	if m == nil || m.rejected == nil {
		return
	}
	m.rejected.WithLabelValues(provider).Inc()
}
