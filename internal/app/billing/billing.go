// Package billing reconciles asynchronous provider notifications into
// credit balance and plan-tier state. Deliveries are at-least-once and may
// race: the event id and its effect commit in one transaction, so a
// duplicate delivery is acknowledged and applies nothing, and a failed
// application releases the event id for the provider's retry.
package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/nexus-hq/nexusd/internal/domain"
	"github.com/nexus-hq/nexusd/internal/infra/observability"
	"github.com/nexus-hq/nexusd/internal/infra/sqlite"
)

// ErrPayload marks a delivery whose payload cannot be understood or
// attributed. The API layer answers these 400 — retrying the same bytes
// can never succeed — while every other failure is answered 500 so the
// provider retries.
var ErrPayload = errors.New("malformed provider payload")

// Config holds the reconciler's provider settings.
type Config struct {
	// SigningSecret is the shared HMAC-SHA256 secret of the signed provider.
	SigningSecret string
	// RenewalCredits is granted on each subscription renewal.
	RenewalCredits int64
	// ProProduct is the permalink/variant selecting the pro subscription.
	ProProduct string
	// Products maps a top-up permalink or variant name to its credit grant.
	Products map[string]int64
}

// Reconciler applies billing events to accounts.
type Reconciler struct {
	cfg Config
	db  *sqlite.DB
}

// New creates a billing reconciler.
func New(cfg Config, db *sqlite.DB) *Reconciler {
	return &Reconciler{cfg: cfg, db: db}
}

// ─── Signed JSON Provider ───────────────────────────────────────────────────

// signedPayload is the JSON shape of the signed provider's webhook.
type signedPayload struct {
	Meta struct {
		EventName  string `json:"event_name"`
		CustomData struct {
			AccountID string `json:"account_id"`
		} `json:"custom_data"`
	} `json:"meta"`
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			CustomerID     int64  `json:"customer_id"`
			SubscriptionID string `json:"subscription_id"`
			VariantName    string `json:"variant_name"`
			Status         string `json:"status"`
			RenewsAt       string `json:"renews_at"`
		} `json:"attributes"`
	} `json:"data"`
}

var signedEventKinds = map[string]domain.BillingEventKind{
	"subscription_created":         domain.SubscriptionActivated,
	"subscription_payment_success": domain.SubscriptionRenewed,
	"subscription_expired":         domain.SubscriptionExpired,
	"order_chargeback":             domain.SubscriptionDisputed,
	"order_created":                domain.TopUpPurchased,
}

// VerifySignature checks the HMAC-SHA256 hex digest of the raw body against
// the signature header in constant time.
func (r *Reconciler) VerifySignature(rawBody []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(r.cfg.SigningSecret))
	mac.Write(rawBody)
	expected := mac.Sum(nil)
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, got)
}

// HandleSigned verifies, classifies, and applies one signed-provider
// delivery. Unknown event names are acknowledged without effect.
func (r *Reconciler) HandleSigned(rawBody []byte, signature string) error {
	if !r.VerifySignature(rawBody, signature) {
		observability.WebhookRejected.Inc()
		return domain.ErrInvalidSignature
	}

	var p signedPayload
	if err := json.Unmarshal(rawBody, &p); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrPayload, err)
	}
	kind, ok := signedEventKinds[p.Meta.EventName]
	if !ok {
		return nil
	}
	if p.Meta.CustomData.AccountID == "" || p.Data.ID == "" {
		return fmt.Errorf("%w: missing account id or event id", ErrPayload)
	}

	evt := domain.BillingEvent{
		Provider:  domain.ProviderSigned,
		EventID:   p.Data.ID,
		Kind:      kind,
		AccountID: p.Meta.CustomData.AccountID,
	}
	switch kind {
	case domain.SubscriptionRenewed:
		evt.Credits = r.cfg.RenewalCredits
	case domain.TopUpPurchased:
		evt.Credits = r.cfg.Products[p.Data.Attributes.VariantName]
	}
	return r.Apply(evt)
}

// ─── Form-Encoded Provider ──────────────────────────────────────────────────

// HandleForm classifies and applies one form-encoded delivery. Boolean
// flags arrive as the strings "true"/"false"; the product permalink
// selects the credit/plan effect. Trusted-field authenticity: the provider
// posts from its own servers, there is no signature to verify.
func (r *Reconciler) HandleForm(values url.Values) error {
	saleID := values.Get("sale_id")
	if saleID == "" {
		return fmt.Errorf("%w: missing sale_id", ErrPayload)
	}
	accountID := values.Get("account_id")
	if accountID == "" {
		// Older checkout links carry only the purchaser's email.
		email := values.Get("email")
		if email == "" {
			return fmt.Errorf("%w: missing account_id and email", ErrPayload)
		}
		// An unknown email is left a retryable failure, not a payload
		// error: signup may still be in flight when the purchase lands.
		account, err := r.db.GetAccountByEmail(email)
		if err != nil {
			return fmt.Errorf("resolve purchaser %q: %w", email, err)
		}
		accountID = account.ID
	}

	evt := domain.BillingEvent{
		Provider:  domain.ProviderForm,
		EventID:   saleID,
		AccountID: accountID,
	}
	permalink := values.Get("product_permalink")
	switch {
	case values.Get("disputed") == "true" || values.Get("refunded") == "true":
		evt.Kind = domain.SubscriptionDisputed
	case values.Get("cancelled") == "true":
		evt.Kind = domain.SubscriptionExpired
	case permalink == r.cfg.ProProduct:
		evt.Kind = domain.SubscriptionActivated
	default:
		credits, ok := r.cfg.Products[permalink]
		if !ok {
			return fmt.Errorf("%w: unknown product permalink %q", ErrPayload, permalink)
		}
		evt.Kind = domain.TopUpPurchased
		evt.Credits = credits
	}
	return r.Apply(evt)
}

// ─── Event Application ──────────────────────────────────────────────────────

// Apply hands the classified event to the storage layer, which records the
// event id and applies the plan transition and credit grant in a single
// transaction. A previously seen event is acknowledged without effect; a
// failed application leaves no trace, so a retry of the same delivery gets
// a clean attempt. A billing event never decreases a credit balance and
// never downgrades the beta tier.
func (r *Reconciler) Apply(evt domain.BillingEvent) error {
	applied, err := r.db.ApplyBillingEvent(evt)
	if err != nil {
		return err
	}
	if !applied {
		observability.WebhookDuplicates.Inc()
		return nil
	}
	observability.WebhookEvents.WithLabelValues(string(evt.Provider), string(evt.Kind)).Inc()
	return nil
}

// SpendCredits is the consumable gate for report generation: a guarded
// atomic debit that fails with ErrInsufficientCredits rather than letting
// a balance go negative.
func (r *Reconciler) SpendCredits(accountID string, n int64) error {
	if n <= 0 {
		return nil
	}
	return r.db.SpendCredits(accountID, n)
}
