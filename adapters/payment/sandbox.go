package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/wkarimi/kodisha/ports"
)

// Sandbox is a development provider that acknowledges every push without
// contacting anything. Use it to exercise the initiate/poll/callback loop
// when real provider credentials aren't available.
//
// Deterministic behaviour keyed off the phone suffix:
//   - numbers ending in 00 are rejected at push time
//   - everything else is acknowledged; the test driver decides the outcome
//     by posting a sandbox callback
type Sandbox struct{}

// NewSandbox creates a sandbox provider.
func NewSandbox() *Sandbox { return &Sandbox{} }

// Name returns the provider name.
func (*Sandbox) Name() string { return "sandbox" }

// ValidatePhone applies the same MSISDN rules as the real provider.
func (*Sandbox) ValidatePhone(msisdn string) error {
	_, err := NormalizePhone(msisdn)
	return err
}

// Push acknowledges the charge with a generated reference.
func (*Sandbox) Push(ctx context.Context, req ports.ChargeRequest) (ports.ChargeAck, error) {
	msisdn, err := NormalizePhone(req.PhoneNumber)
	if err != nil {
		return ports.ChargeAck{}, err
	}
	if strings.HasSuffix(msisdn, "00") {
		return ports.ChargeAck{}, fmt.Errorf("sandbox: push rejected for %s", msisdn)
	}
	return ports.ChargeAck{
		ProviderRef: "sbx-" + uuid.New().String(),
		Message:     "Sandbox prompt sent, post a callback to settle",
	}, nil
}

// sandboxCallback is the flat callback shape the sandbox accepts.
type sandboxCallback struct {
	ProviderRef string `json:"provider_ref"`
	Outcome     string `json:"outcome"` // "success" or "failed"
	Receipt     string `json:"receipt"`
	FailReason  string `json:"fail_reason"`
}

// ParseCallback parses the sandbox's flat callback payload.
func (*Sandbox) ParseCallback(payload []byte) (ports.CallbackResult, error) {
	var cb sandboxCallback
	if err := json.Unmarshal(payload, &cb); err != nil {
		return ports.CallbackResult{}, fmt.Errorf("sandbox callback decode: %w", err)
	}
	if cb.ProviderRef == "" {
		return ports.CallbackResult{}, fmt.Errorf("sandbox callback missing provider_ref")
	}

	res := ports.CallbackResult{ProviderRef: cb.ProviderRef}
	switch cb.Outcome {
	case "success":
		res.Outcome = ports.OutcomeSuccess
		res.Receipt = cb.Receipt
		if res.Receipt == "" {
			res.Receipt = "SBX" + strings.ToUpper(uuid.New().String()[:8])
		}
	case "failed":
		res.Outcome = ports.OutcomeFailed
		res.FailReason = cb.FailReason
	default:
		return ports.CallbackResult{}, fmt.Errorf("sandbox callback unknown outcome %q", cb.Outcome)
	}
	return res, nil
}

// Ensure interface compliance.
var _ ports.PaymentProvider = (*Sandbox)(nil)
