package stripe

import (
	"context"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/laggedout/storefront-backend/pkg/config"
)

func TestNewClientValidatesKeyForEnvironment(t *testing.T) {
	_, err := NewClient(context.Background(), config.StripeConfig{APIKey: "sk_live_abc", WebhookSecret: "whsec", Env: "test"}, nil)
	if err == nil {
		t.Fatal("expected live key to be rejected in test env")
	}

	c, err := NewClient(context.Background(), config.StripeConfig{APIKey: "sk_test_abc", WebhookSecret: "whsec", Env: "TEST"}, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if c.Environment() != testEnv || c.API() == nil {
		t.Fatalf("unexpected client %+v", c)
	}
}

func TestNewClientRequiresSecrets(t *testing.T) {
	if _, err := NewClient(context.Background(), config.StripeConfig{WebhookSecret: "whsec"}, nil); err == nil {
		t.Fatal("expected missing api key error")
	}
	if _, err := NewClient(context.Background(), config.StripeConfig{APIKey: "sk_test_abc"}, nil); err == nil {
		t.Fatal("expected missing webhook secret error")
	}
	if _, err := NewClient(context.Background(), config.StripeConfig{APIKey: "sk_test_abc", WebhookSecret: "x", Env: "staging"}, nil); err == nil {
		t.Fatal("expected invalid env error")
	}
}

func TestParseWebhookVerifiesSignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1","object":"payment_intent"}}}`)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    "whsec_test",
		Timestamp: time.Now(),
	})

	evt, err := ParseWebhook(signed.Payload, signed.Header, "whsec_test")
	if err != nil {
		t.Fatalf("ParseWebhook: %v", err)
	}
	if evt.ID != "evt_1" || string(evt.Type) != "payment_intent.succeeded" {
		t.Fatalf("unexpected event %+v", evt)
	}

	if _, err := ParseWebhook(signed.Payload, signed.Header, "whsec_other"); err == nil {
		t.Fatal("expected signature failure with wrong secret")
	}
}
