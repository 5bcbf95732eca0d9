package domain

// ─── Billing Event Types ────────────────────────────────────────────────────
// Inbound provider notifications are consumed, not stored as entities; only
// the (provider, event id, kind) key is persisted so duplicate deliveries
// apply no effect.

// BillingProvider identifies the payload class an event arrived through.
type BillingProvider string

const (
	ProviderSigned BillingProvider = "signed" // HMAC-signed JSON webhook
	ProviderForm   BillingProvider = "form"   // form-encoded webhook
)

// BillingEventKind classifies what a provider notification means.
type BillingEventKind string

const (
	SubscriptionActivated BillingEventKind = "subscription_activated"
	SubscriptionRenewed   BillingEventKind = "subscription_renewed"
	SubscriptionExpired   BillingEventKind = "subscription_expired"
	SubscriptionDisputed  BillingEventKind = "subscription_disputed"
	TopUpPurchased        BillingEventKind = "top_up_purchased"
)

// BillingEvent is a classified, authenticity-verified provider notification
// ready to be applied to an account.
type BillingEvent struct {
	Provider  BillingProvider  `json:"provider"`
	EventID   string           `json:"event_id"`
	Kind      BillingEventKind `json:"kind"`
	AccountID string           `json:"account_id"`
	Credits   int64            `json:"credits"` // delta to add, never negative
}

// NextPlan returns the plan an account moves to when a billing event of the
// given kind arrives. The beta tier is protected: no billing event ever
// downgrades it. A second return of false means the plan is unchanged.
func NextPlan(current PlanStatus, kind BillingEventKind) (PlanStatus, bool) {
	if current == PlanBeta {
		return current, false
	}
	switch kind {
	case SubscriptionActivated, SubscriptionRenewed:
		return PlanPro, current != PlanPro
	case SubscriptionExpired, SubscriptionDisputed:
		return PlanExpired, current != PlanExpired
	default:
		return current, false
	}
}
