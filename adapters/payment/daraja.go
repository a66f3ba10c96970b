// Package payment provides PaymentProvider implementations for the STK-push
// mobile-money channel.
package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/wkarimi/kodisha/ports"
)

// DarajaConfig configures the Daraja STK-push client.
type DarajaConfig struct {
	BaseURL        string // e.g. https://sandbox.safaricom.co.ke
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	Passkey        string
	CallbackURL    string
	Timeout        time.Duration // per provider round-trip, default 10s
}

// Daraja implements ports.PaymentProvider against the Daraja STK-push API.
// A provider timeout is reported as a timeout error so the caller can leave
// the payment PENDING; only explicit provider rejections are failures.
type Daraja struct {
	cfg    DarajaConfig
	client *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewDaraja creates a Daraja STK-push client.
func NewDaraja(cfg DarajaConfig) *Daraja {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Daraja{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Name returns the provider name.
func (d *Daraja) Name() string { return "daraja" }

// ValidatePhone checks the number against the provider's MSISDN rules.
func (d *Daraja) ValidatePhone(msisdn string) error {
	_, err := NormalizePhone(msisdn)
	return err
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	MerchantRequestID string `json:"MerchantRequestID"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
	ResponseCode      string `json:"ResponseCode"`
	CustomerMessage   string `json:"CustomerMessage"`
	ErrorMessage      string `json:"errorMessage"`
}

// Push initiates the payment prompt on the payer's phone.
func (d *Daraja) Push(ctx context.Context, req ports.ChargeRequest) (ports.ChargeAck, error) {
	msisdn, err := NormalizePhone(req.PhoneNumber)
	if err != nil {
		return ports.ChargeAck{}, err
	}

	token, err := d.token(ctx)
	if err != nil {
		return ports.ChargeAck{}, fmt.Errorf("daraja auth: %w", err)
	}

	ts := time.Now().UTC().Format("20060102150405")
	body := stkPushRequest{
		BusinessShortCode: d.cfg.ShortCode,
		Password:          base64.StdEncoding.EncodeToString([]byte(d.cfg.ShortCode + d.cfg.Passkey + ts)),
		Timestamp:         ts,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            req.Amount / 100, // provider bills whole shillings
		PartyA:            msisdn,
		PartyB:            d.cfg.ShortCode,
		PhoneNumber:       msisdn,
		CallBackURL:       d.cfg.CallbackURL,
		AccountReference:  req.PaymentID,
		TransactionDesc:   req.Description,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return ports.ChargeAck{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		d.cfg.BaseURL+"/mpesa/stkpush/v1/processrequest", bytes.NewReader(payload))
	if err != nil {
		return ports.ChargeAck{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return ports.ChargeAck{}, fmt.Errorf("daraja push: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return ports.ChargeAck{}, fmt.Errorf("daraja push read: %w", err)
	}

	var out stkPushResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return ports.ChargeAck{}, fmt.Errorf("daraja push decode: %w", err)
	}

	if resp.StatusCode != http.StatusOK || out.ResponseCode != "0" {
		msg := out.ErrorMessage
		if msg == "" {
			msg = out.CustomerMessage
		}
		return ports.ChargeAck{}, fmt.Errorf("daraja push rejected: %s", msg)
	}

	return ports.ChargeAck{
		ProviderRef: out.CheckoutRequestID,
		Message:     out.CustomerMessage,
	}, nil
}

// stkCallback is the provider's asynchronous result envelope.
type stkCallback struct {
	Body struct {
		StkCallback struct {
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []struct {
					Name  string      `json:"Name"`
					Value interface{} `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// ParseCallback normalizes an inbound STK callback.
func (d *Daraja) ParseCallback(payload []byte) (ports.CallbackResult, error) {
	var cb stkCallback
	if err := json.Unmarshal(payload, &cb); err != nil {
		return ports.CallbackResult{}, fmt.Errorf("daraja callback decode: %w", err)
	}

	sc := cb.Body.StkCallback
	if sc.CheckoutRequestID == "" {
		return ports.CallbackResult{}, fmt.Errorf("daraja callback missing checkout request id")
	}

	res := ports.CallbackResult{ProviderRef: sc.CheckoutRequestID}
	if sc.ResultCode == 0 {
		res.Outcome = ports.OutcomeSuccess
		for _, item := range sc.CallbackMetadata.Item {
			if item.Name == "MpesaReceiptNumber" {
				if s, ok := item.Value.(string); ok {
					res.Receipt = s
				}
			}
		}
	} else {
		res.Outcome = ports.OutcomeFailed
		res.FailReason = sc.ResultDesc
	}
	return res, nil
}

// token returns a cached OAuth access token, refreshing when near expiry.
func (d *Daraja) token(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.accessToken != "" && time.Now().Before(d.tokenExpiry.Add(-30*time.Second)) {
		return d.accessToken, nil
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		d.cfg.BaseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", err
	}
	httpReq.SetBasicAuth(d.cfg.ConsumerKey, d.cfg.ConsumerSecret)

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned %d", resp.StatusCode)
	}

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   string `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned empty token")
	}

	d.accessToken = out.AccessToken
	d.tokenExpiry = time.Now().Add(50 * time.Minute)
	return d.accessToken, nil
}

// Ensure interface compliance.
var _ ports.PaymentProvider = (*Daraja)(nil)
