package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/nexus-hq/nexusd/internal/domain"
	"github.com/nexus-hq/nexusd/internal/infra/sqlite"
)

const testSecret = "whsec-test"

func newTestReconciler(t *testing.T) (*Reconciler, *sqlite.DB) {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := Config{
		SigningSecret:  testSecret,
		RenewalCredits: 100,
		ProProduct:     "nexus-pro",
		Products:       map[string]int64{"credits-500": 500},
	}
	return New(cfg, db), db
}

func seedAccount(t *testing.T, db *sqlite.DB, plan domain.PlanStatus) {
	t.Helper()
	if err := db.InsertAccount(domain.Account{
		ID: "acct", Email: "a@example.com", PlanStatus: plan,
	}); err != nil {
		t.Fatal(err)
	}
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func signedBody(eventName, eventID string) []byte {
	return []byte(fmt.Sprintf(`{
		"meta": {"event_name": %q, "custom_data": {"account_id": "acct"}},
		"data": {"id": %q, "attributes": {"customer_id": 7, "variant_name": "credits-500", "status": "active"}}
	}`, eventName, eventID))
}

// ─── Signature Verification ─────────────────────────────────────────────────

func TestHandleSigned_BadSignature(t *testing.T) {
	r, _ := newTestReconciler(t)
	body := signedBody("subscription_created", "evt-1")

	err := r.HandleSigned(body, "deadbeef")
	if !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("error = %v, want ErrInvalidSignature", err)
	}
}

func TestHandleSigned_TamperedBody(t *testing.T) {
	r, _ := newTestReconciler(t)
	body := signedBody("subscription_created", "evt-1")
	sig := sign(body)
	tampered := append([]byte{}, body...)
	tampered[len(tampered)-2] = 'x'

	if err := r.HandleSigned(tampered, sig); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("error = %v, want ErrInvalidSignature", err)
	}
}

// ─── Plan State Machine ─────────────────────────────────────────────────────

func TestHandleSigned_Activation(t *testing.T) {
	r, db := newTestReconciler(t)
	seedAccount(t, db, domain.PlanFree)
	body := signedBody("subscription_created", "evt-1")

	if err := r.HandleSigned(body, sign(body)); err != nil {
		t.Fatal(err)
	}
	a, _ := db.GetAccount("acct")
	if a.PlanStatus != domain.PlanPro {
		t.Errorf("plan = %s, want pro", a.PlanStatus)
	}
}

func TestHandleSigned_RenewalGrantsCredits(t *testing.T) {
	r, db := newTestReconciler(t)
	seedAccount(t, db, domain.PlanPro)
	body := signedBody("subscription_payment_success", "evt-2")

	if err := r.HandleSigned(body, sign(body)); err != nil {
		t.Fatal(err)
	}
	a, _ := db.GetAccount("acct")
	if a.PlanStatus != domain.PlanPro {
		t.Errorf("plan = %s, want pro (renewal keeps pro)", a.PlanStatus)
	}
	if a.CreditBalance != 100 {
		t.Errorf("credits = %d, want 100", a.CreditBalance)
	}
}

func TestHandleSigned_ExpiryRespectsBeta(t *testing.T) {
	tests := []struct {
		plan domain.PlanStatus
		want domain.PlanStatus
	}{
		{domain.PlanPro, domain.PlanExpired},
		{domain.PlanBeta, domain.PlanBeta},
	}
	for _, tt := range tests {
		r, db := newTestReconciler(t)
		seedAccount(t, db, tt.plan)
		body := signedBody("subscription_expired", "evt-3")

		if err := r.HandleSigned(body, sign(body)); err != nil {
			t.Fatal(err)
		}
		a, _ := db.GetAccount("acct")
		if a.PlanStatus != tt.want {
			t.Errorf("expiry on %s: plan = %s, want %s", tt.plan, a.PlanStatus, tt.want)
		}
	}
}

func TestHandleSigned_TopUp(t *testing.T) {
	r, db := newTestReconciler(t)
	seedAccount(t, db, domain.PlanFree)
	body := signedBody("order_created", "evt-4")

	if err := r.HandleSigned(body, sign(body)); err != nil {
		t.Fatal(err)
	}
	a, _ := db.GetAccount("acct")
	if a.CreditBalance != 500 {
		t.Errorf("credits = %d, want 500", a.CreditBalance)
	}
	if a.PlanStatus != domain.PlanFree {
		t.Errorf("plan = %s, want free (top-up is not a subscription)", a.PlanStatus)
	}
}

// ─── Idempotency ────────────────────────────────────────────────────────────

func TestHandleSigned_DuplicateDeliveryAppliesOnce(t *testing.T) {
	r, db := newTestReconciler(t)
	seedAccount(t, db, domain.PlanPro)
	body := signedBody("subscription_payment_success", "evt-5")
	sig := sign(body)

	if err := r.HandleSigned(body, sig); err != nil {
		t.Fatal(err)
	}
	// Provider retry: acknowledged, but no double credit.
	if err := r.HandleSigned(body, sig); err != nil {
		t.Fatalf("duplicate delivery error = %v, want nil (acknowledged)", err)
	}

	a, _ := db.GetAccount("acct")
	if a.CreditBalance != 100 {
		t.Errorf("credits = %d, want 100 (not doubled)", a.CreditBalance)
	}
}

func TestHandleSigned_UnknownEventIgnored(t *testing.T) {
	r, _ := newTestReconciler(t)
	body := signedBody("license_key_created", "evt-6")
	if err := r.HandleSigned(body, sign(body)); err != nil {
		t.Fatalf("unknown event error = %v, want nil", err)
	}
}

func TestHandleSigned_FailedApplyRetries(t *testing.T) {
	r, db := newTestReconciler(t)
	body := signedBody("subscription_payment_success", "evt-7")
	sig := sign(body)

	// The renewal lands before the account exists. The failure must not be
	// a payload error (the provider should retry) and must not consume the
	// event id.
	err := r.HandleSigned(body, sig)
	if err == nil {
		t.Fatal("renewal for an unknown account should fail")
	}
	if errors.Is(err, ErrPayload) {
		t.Fatalf("error = %v, must not be a payload error", err)
	}

	seedAccount(t, db, domain.PlanPro)
	if err := r.HandleSigned(body, sig); err != nil {
		t.Fatalf("redelivery error = %v", err)
	}
	a, _ := db.GetAccount("acct")
	if a.CreditBalance != 100 {
		t.Errorf("credits = %d, want 100 on redelivery", a.CreditBalance)
	}
}

func TestHandleSigned_PayloadErrors(t *testing.T) {
	r, _ := newTestReconciler(t)

	garbage := []byte(`{not json`)
	if err := r.HandleSigned(garbage, sign(garbage)); !errors.Is(err, ErrPayload) {
		t.Fatalf("garbage body error = %v, want ErrPayload", err)
	}

	noIDs := []byte(`{"meta": {"event_name": "subscription_created"}, "data": {}}`)
	if err := r.HandleSigned(noIDs, sign(noIDs)); !errors.Is(err, ErrPayload) {
		t.Fatalf("missing ids error = %v, want ErrPayload", err)
	}
}

// ─── Form-Encoded Provider ──────────────────────────────────────────────────

func TestHandleForm_ProPurchase(t *testing.T) {
	r, db := newTestReconciler(t)
	seedAccount(t, db, domain.PlanFree)

	v := url.Values{}
	v.Set("account_id", "acct")
	v.Set("sale_id", "sale-1")
	v.Set("product_permalink", "nexus-pro")
	v.Set("email", "a@example.com")
	v.Set("refunded", "false")
	v.Set("disputed", "false")

	if err := r.HandleForm(v); err != nil {
		t.Fatal(err)
	}
	a, _ := db.GetAccount("acct")
	if a.PlanStatus != domain.PlanPro {
		t.Errorf("plan = %s, want pro", a.PlanStatus)
	}
}

func TestHandleForm_DisputeFlag(t *testing.T) {
	r, db := newTestReconciler(t)
	seedAccount(t, db, domain.PlanPro)

	v := url.Values{}
	v.Set("account_id", "acct")
	v.Set("sale_id", "sale-2")
	v.Set("product_permalink", "nexus-pro")
	v.Set("disputed", "true")

	if err := r.HandleForm(v); err != nil {
		t.Fatal(err)
	}
	a, _ := db.GetAccount("acct")
	if a.PlanStatus != domain.PlanExpired {
		t.Errorf("plan = %s, want expired", a.PlanStatus)
	}
}

func TestHandleForm_TopUpCredits(t *testing.T) {
	r, db := newTestReconciler(t)
	seedAccount(t, db, domain.PlanBeta)

	v := url.Values{}
	v.Set("account_id", "acct")
	v.Set("sale_id", "sale-3")
	v.Set("product_permalink", "credits-500")

	if err := r.HandleForm(v); err != nil {
		t.Fatal(err)
	}
	a, _ := db.GetAccount("acct")
	if a.CreditBalance != 500 {
		t.Errorf("credits = %d, want 500", a.CreditBalance)
	}
}

func TestHandleForm_RefundAfterSaleIsNotADuplicate(t *testing.T) {
	r, db := newTestReconciler(t)
	seedAccount(t, db, domain.PlanFree)

	v := url.Values{}
	v.Set("account_id", "acct")
	v.Set("sale_id", "sale-9")
	v.Set("product_permalink", "nexus-pro")
	if err := r.HandleForm(v); err != nil {
		t.Fatal(err)
	}

	// The provider reuses the sale id when the same sale is refunded. That
	// follow-up is a distinct event and must still land.
	v.Set("refunded", "true")
	if err := r.HandleForm(v); err != nil {
		t.Fatal(err)
	}
	a, _ := db.GetAccount("acct")
	if a.PlanStatus != domain.PlanExpired {
		t.Errorf("plan = %s, want expired after the refund", a.PlanStatus)
	}
}

func TestHandleForm_ResolvesAccountByEmail(t *testing.T) {
	r, db := newTestReconciler(t)
	seedAccount(t, db, domain.PlanFree)

	v := url.Values{}
	v.Set("sale_id", "sale-10")
	v.Set("email", "a@example.com")
	v.Set("product_permalink", "credits-500")
	if err := r.HandleForm(v); err != nil {
		t.Fatal(err)
	}
	a, _ := db.GetAccount("acct")
	if a.CreditBalance != 500 {
		t.Errorf("credits = %d, want 500 via email attribution", a.CreditBalance)
	}
}

func TestHandleForm_MissingFields(t *testing.T) {
	r, _ := newTestReconciler(t)
	v := url.Values{}
	v.Set("product_permalink", "credits-500")
	if err := r.HandleForm(v); !errors.Is(err, ErrPayload) {
		t.Fatalf("error = %v, want ErrPayload without sale_id/account_id/email", err)
	}
}

// ─── Credit Spend Gate ──────────────────────────────────────────────────────

func TestSpendCredits(t *testing.T) {
	r, db := newTestReconciler(t)
	seedAccount(t, db, domain.PlanPro)
	if err := db.AddCredits("acct", 3); err != nil {
		t.Fatal(err)
	}

	if err := r.SpendCredits("acct", 2); err != nil {
		t.Fatal(err)
	}
	if err := r.SpendCredits("acct", 2); !errors.Is(err, domain.ErrInsufficientCredits) {
		t.Fatalf("error = %v, want ErrInsufficientCredits", err)
	}
	a, _ := db.GetAccount("acct")
	if a.CreditBalance != 1 {
		t.Errorf("credits = %d, want 1", a.CreditBalance)
	}
}
