package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"telegram-pix-manager/internal/config"
	"telegram-pix-manager/internal/domain"
	"telegram-pix-manager/internal/domain/model"
	"telegram-pix-manager/internal/domain/ports/adapter"
)

var _ adapter.OAuthClient = (*MercadoPagoOAuth)(nil)

// MercadoPagoOAuth runs the authorization-code flow that links an owner's
// Mercado Pago account to their bot.
type MercadoPagoOAuth struct {
	apiBase      string
	authBase     string
	clientID     string
	clientSecret string
	redirectURI  string
	client       *http.Client
}

func NewMercadoPagoOAuth(cfg config.MercadoPagoConfig, timeout time.Duration) (*MercadoPagoOAuth, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("mercadopago client id/secret empty")
	}
	if _, err := url.Parse(cfg.RedirectURI); err != nil || cfg.RedirectURI == "" {
		return nil, fmt.Errorf("invalid mercadopago redirect uri %q", cfg.RedirectURI)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &MercadoPagoOAuth{
		apiBase:      strings.TrimRight(cfg.APIBase, "/"),
		authBase:     strings.TrimRight(cfg.AuthBase, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		redirectURI:  cfg.RedirectURI,
		client:       &http.Client{Timeout: timeout},
	}, nil
}

// AuthorizationURL is where the owner authorizes the application; state comes
// back untouched on the redirect.
func (o *MercadoPagoOAuth) AuthorizationURL(state string) string {
	q := url.Values{}
	q.Set("client_id", o.clientID)
	q.Set("response_type", "code")
	q.Set("platform_id", "mp")
	q.Set("state", state)
	q.Set("redirect_uri", o.redirectURI)
	return o.authBase + "/authorization?" + q.Encode()
}

func (o *MercadoPagoOAuth) ExchangeCode(ctx context.Context, code string) (model.MercadoPagoCredential, error) {
	payload := map[string]any{
		"client_id":     o.clientID,
		"client_secret": o.clientSecret,
		"grant_type":    "authorization_code",
		"code":          code,
		"redirect_uri":  o.redirectURI,
	}
	b, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.apiBase+"/oauth/token", bytes.NewReader(b))
	if err != nil {
		return model.MercadoPagoCredential{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	resp, err := o.client.Do(req)
	if err != nil {
		return model.MercadoPagoCredential{}, fmt.Errorf("%w: %v", domain.ErrOAuthExchange, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return model.MercadoPagoCredential{}, fmt.Errorf("%w: %v", domain.ErrOAuthExchange, statusError("mercadopago oauth", resp))
	}

	var out struct {
		AccessToken  string      `json:"access_token"`
		RefreshToken string      `json:"refresh_token"`
		UserID       json.Number `json:"user_id"`
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return model.MercadoPagoCredential{}, fmt.Errorf("%w: decode: %v", domain.ErrOAuthExchange, err)
	}
	if out.AccessToken == "" {
		return model.MercadoPagoCredential{}, fmt.Errorf("%w: response without access_token", domain.ErrOAuthExchange)
	}
	return model.MercadoPagoCredential{
		AccessToken:  out.AccessToken,
		RefreshToken: out.RefreshToken,
		UserID:       out.UserID.String(),
	}, nil
}
