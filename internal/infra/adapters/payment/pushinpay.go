package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/oklog/ulid/v2"

	"telegram-pix-manager/internal/domain/model"
	"telegram-pix-manager/internal/domain/ports/adapter"
)

var _ adapter.PaymentProvider = (*PushInPay)(nil)

// PushInPay creates PIX charges with a per-bot API token. Amounts travel in
// integer cents and the operator fee is a split rule to a fixed account.
type PushInPay struct {
	baseURL        string
	splitAccountID string
}

func NewPushInPay(baseURL, splitAccountID string) (*PushInPay, error) {
	if baseURL == "" {
		return nil, errors.New("pushinpay base url empty")
	}
	if splitAccountID == "" {
		return nil, errors.New("pushinpay split account id empty")
	}
	return &PushInPay{baseURL: strings.TrimRight(baseURL, "/"), splitAccountID: splitAccountID}, nil
}

func (p *PushInPay) Kind() model.GatewayKind { return model.GatewayPushInPay }

func (p *PushInPay) BuildRequest(ctx context.Context, req adapter.PixRequest) (*http.Request, error) {
	payload := map[string]any{
		"value":       model.AmountInCents(req.Amount),
		"external_id": fmt.Sprintf("USER_%d_%s", req.PayerID, ulid.Make().String()),
		"split_rules": []map[string]any{{
			"value":      model.SplitCents(req.Amount),
			"account_id": p.splitAccountID,
		}},
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/pix/cashIn", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+req.Credential)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	return httpReq, nil
}

func (p *PushInPay) ParseResponse(resp *http.Response) (string, error) {
	if resp.StatusCode != http.StatusOK {
		return "", statusError("pushinpay", resp)
	}
	var out struct {
		QRCode string `json:"qr_code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("pushinpay decode: %w", err)
	}
	if out.QRCode == "" {
		return "", errors.New("pushinpay response without qr_code")
	}
	return out.QRCode, nil
}

func statusError(provider string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("%s: unexpected status %d: %s", provider, resp.StatusCode, strings.TrimSpace(string(body)))
}
