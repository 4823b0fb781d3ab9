package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"telegram-pix-manager/internal/domain/model"
	"telegram-pix-manager/internal/domain/ports/adapter"
	"telegram-pix-manager/internal/infra/logging"
)

var (
	_ adapter.PaymentProvider = (*MercadoPago)(nil)
	_ adapter.TokenValidator  = (*MercadoPago)(nil)
)

// MercadoPago creates PIX charges with an OAuth access token. Amounts travel
// as decimals and the operator fee is an application_fee.
type MercadoPago struct {
	apiBase         string
	notificationURL string
	client          *http.Client
}

func NewMercadoPago(apiBase, notificationURL string, timeout time.Duration) (*MercadoPago, error) {
	if apiBase == "" {
		return nil, errors.New("mercadopago api base empty")
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &MercadoPago{
		apiBase:         strings.TrimRight(apiBase, "/"),
		notificationURL: notificationURL,
		client:          &http.Client{Timeout: timeout},
	}, nil
}

func (m *MercadoPago) Kind() model.GatewayKind { return model.GatewayMercadoPago }

func (m *MercadoPago) BuildRequest(ctx context.Context, req adapter.PixRequest) (*http.Request, error) {
	if req.IdempotencyKey == "" {
		return nil, errors.New("mercadopago requires an idempotency key")
	}
	payload := map[string]any{
		"transaction_amount": model.RoundCurrency(req.Amount),
		"description":        fmt.Sprintf("Pagamento PIX - User %d", req.PayerID),
		"payment_method_id":  "pix",
		"payer": map[string]any{
			"email": fmt.Sprintf("user_%d@test.com", req.PayerID),
		},
		"application_fee": model.ApplicationFee(req.Amount),
		"metadata": map[string]any{
			"user_id": req.PayerID,
			"bot_id":  logging.BotID(req.BotToken),
		},
	}
	if m.notificationURL != "" {
		payload["notification_url"] = m.notificationURL
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.apiBase+"/v1/payments", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+req.Credential)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Idempotency-Key", req.IdempotencyKey)
	return httpReq, nil
}

func (m *MercadoPago) ParseResponse(resp *http.Response) (string, error) {
	if resp.StatusCode != http.StatusCreated {
		return "", statusError("mercadopago", resp)
	}
	var out struct {
		PointOfInteraction struct {
			TransactionData struct {
				QRCode string `json:"qr_code"`
			} `json:"transaction_data"`
		} `json:"point_of_interaction"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("mercadopago decode: %w", err)
	}
	code := out.PointOfInteraction.TransactionData.QRCode
	if code == "" {
		return "", errors.New("mercadopago response without qr_code")
	}
	return code, nil
}

// ValidateAccessToken lists payment methods with the token; only a 200 counts as valid.
func (m *MercadoPago) ValidateAccessToken(ctx context.Context, accessToken string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.apiBase+"/v1/payment_methods", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := m.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
