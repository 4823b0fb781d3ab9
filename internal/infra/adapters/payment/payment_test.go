//go:build !integration

package payment

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-pix-manager/internal/config"
	"telegram-pix-manager/internal/domain"
	"telegram-pix-manager/internal/domain/model"
)

const botToken = "123456789:AAExampleSecretForTests"

type fakeCreds struct {
	kind model.GatewayKind
	cred string
	err  error
}

func (f fakeCreds) GatewayCredential(context.Context, string) (model.GatewayKind, string, error) {
	return f.kind, f.cred, f.err
}

type captured struct {
	mu      sync.Mutex
	path    string
	headers http.Header
	body    map[string]any
	keys    []string
}

func (c *captured) record(r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.path = r.URL.Path
	c.headers = r.Header.Clone()
	c.keys = append(c.keys, r.Header.Get("X-Idempotency-Key"))
	b, _ := io.ReadAll(r.Body)
	c.body = map[string]any{}
	_ = json.Unmarshal(b, &c.body)
}

func newGateway(t *testing.T, creds CredentialSource, base string) *Gateway {
	t.Helper()
	pp, err := NewPushInPay(base, "SPLIT-ACCOUNT")
	require.NoError(t, err)
	mp, err := NewMercadoPago(base, "https://example.test/notify", time.Second)
	require.NoError(t, err)
	logger := zerolog.Nop()
	return NewGateway(creds, time.Second, &logger, pp, mp)
}

func TestGateway_PushInPay(t *testing.T) {
	t.Run("success builds cents and split", func(t *testing.T) {
		// --- Arrange ---
		var got captured
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got.record(r)
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"qr_code":"000201PIXCODE"}`))
		}))
		defer srv.Close()
		g := newGateway(t, fakeCreds{kind: model.GatewayPushInPay, cred: "1234|secret"}, srv.URL)

		// --- Act ---
		kind, code, err := g.CreatePayment(context.Background(), botToken, 33.335, 77)

		// --- Assert ---
		require.NoError(t, err)
		assert.Equal(t, model.GatewayPushInPay, kind)
		assert.Equal(t, "000201PIXCODE", code)
		assert.Equal(t, "/api/pix/cashIn", got.path)
		assert.Equal(t, "Bearer 1234|secret", got.headers.Get("Authorization"))
		assert.EqualValues(t, 3333, got.body["value"])
		rules := got.body["split_rules"].([]any)
		require.Len(t, rules, 1)
		rule := rules[0].(map[string]any)
		assert.EqualValues(t, 99, rule["value"])
		assert.Equal(t, "SPLIT-ACCOUNT", rule["account_id"])
		assert.True(t, strings.HasPrefix(got.body["external_id"].(string), "USER_77_"))
	})

	t.Run("non-200 fails", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"qr_code":"ignored"}`))
		}))
		defer srv.Close()
		g := newGateway(t, fakeCreds{kind: model.GatewayPushInPay, cred: "x"}, srv.URL)

		_, code, err := g.CreatePayment(context.Background(), botToken, 10, 1)

		assert.ErrorIs(t, err, domain.ErrPaymentFailed)
		assert.Empty(t, code)
	})

	t.Run("missing qr_code fails", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{}`))
		}))
		defer srv.Close()
		g := newGateway(t, fakeCreds{kind: model.GatewayPushInPay, cred: "x"}, srv.URL)

		_, _, err := g.CreatePayment(context.Background(), botToken, 10, 1)

		assert.ErrorIs(t, err, domain.ErrPaymentFailed)
	})
}

func TestGateway_MercadoPago(t *testing.T) {
	t.Run("success reads nested qr_code", func(t *testing.T) {
		// --- Arrange ---
		var got captured
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got.record(r)
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"point_of_interaction":{"transaction_data":{"qr_code":"MPCODE"}}}`))
		}))
		defer srv.Close()
		g := newGateway(t, fakeCreds{kind: model.GatewayMercadoPago, cred: "APP_USR-token"}, srv.URL)

		// --- Act ---
		kind, code, err := g.CreatePayment(context.Background(), botToken, 33.335, 77)

		// --- Assert ---
		require.NoError(t, err)
		assert.Equal(t, model.GatewayMercadoPago, kind)
		assert.Equal(t, "MPCODE", code)
		assert.Equal(t, "/v1/payments", got.path)
		assert.Equal(t, "Bearer APP_USR-token", got.headers.Get("Authorization"))
		assert.NotEmpty(t, got.headers.Get("X-Idempotency-Key"))
		assert.Equal(t, "pix", got.body["payment_method_id"])
		assert.Equal(t, 1.0, got.body["application_fee"])
		assert.Equal(t, "Pagamento PIX - User 77", got.body["description"])
		assert.Equal(t, "https://example.test/notify", got.body["notification_url"])
		payer := got.body["payer"].(map[string]any)
		assert.Equal(t, "user_77@test.com", payer["email"])
		meta := got.body["metadata"].(map[string]any)
		assert.Equal(t, "123456789", meta["bot_id"])
		assert.NotContains(t, meta, "bot_token")
	})

	t.Run("idempotency key differs per attempt", func(t *testing.T) {
		var got captured
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got.record(r)
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"point_of_interaction":{"transaction_data":{"qr_code":"MPCODE"}}}`))
		}))
		defer srv.Close()
		g := newGateway(t, fakeCreds{kind: model.GatewayMercadoPago, cred: "t"}, srv.URL)

		_, _, err1 := g.CreatePayment(context.Background(), botToken, 10, 1)
		_, _, err2 := g.CreatePayment(context.Background(), botToken, 10, 1)

		require.NoError(t, err1)
		require.NoError(t, err2)
		require.Len(t, got.keys, 2)
		assert.NotEqual(t, got.keys[0], got.keys[1])
	})

	t.Run("200 is not success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"point_of_interaction":{"transaction_data":{"qr_code":"MPCODE"}}}`))
		}))
		defer srv.Close()
		g := newGateway(t, fakeCreds{kind: model.GatewayMercadoPago, cred: "t"}, srv.URL)

		_, _, err := g.CreatePayment(context.Background(), botToken, 10, 1)

		assert.ErrorIs(t, err, domain.ErrPaymentFailed)
	})
}

func TestGateway_CredentialErrors(t *testing.T) {
	g := newGateway(t, fakeCreds{kind: model.GatewayPushInPay, err: domain.ErrGatewayNotConfigured}, "http://127.0.0.1:1")
	_, _, err := g.CreatePayment(context.Background(), botToken, 10, 1)
	assert.ErrorIs(t, err, domain.ErrGatewayNotConfigured)

	g = newGateway(t, fakeCreds{kind: model.GatewayNone, cred: "x"}, "http://127.0.0.1:1")
	_, _, err = g.CreatePayment(context.Background(), botToken, 10, 1)
	assert.ErrorIs(t, err, domain.ErrGatewayNotConfigured)
}

func TestGateway_TransportErrorIsPaymentFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := srv.URL
	srv.Close()
	g := newGateway(t, fakeCreds{kind: model.GatewayPushInPay, cred: "x"}, base)

	_, _, err := g.CreatePayment(context.Background(), botToken, 10, 1)

	assert.ErrorIs(t, err, domain.ErrPaymentFailed)
}

func TestMercadoPago_ValidateAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payment_methods" || r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()
	mp, err := NewMercadoPago(srv.URL, "", time.Second)
	require.NoError(t, err)

	assert.True(t, mp.ValidateAccessToken(context.Background(), "good"))
	assert.False(t, mp.ValidateAccessToken(context.Background(), "bad"))
}

func newOAuth(t *testing.T, base string) *MercadoPagoOAuth {
	t.Helper()
	o, err := NewMercadoPagoOAuth(config.MercadoPagoConfig{
		APIBase:      base,
		AuthBase:     "https://auth.example.test/",
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		RedirectURI:  "https://host.example/mp/callback",
	}, time.Second)
	require.NoError(t, err)
	return o
}

func TestMercadoPagoOAuth_AuthorizationURL(t *testing.T) {
	o := newOAuth(t, "https://api.example.test")

	raw := o.AuthorizationURL("state-xyz")

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "auth.example.test", u.Host)
	assert.Equal(t, "/authorization", u.Path)
	q := u.Query()
	assert.Equal(t, "client-1", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "mp", q.Get("platform_id"))
	assert.Equal(t, "state-xyz", q.Get("state"))
	assert.Equal(t, "https://host.example/mp/callback", q.Get("redirect_uri"))
}

func TestMercadoPagoOAuth_ExchangeCode(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		// --- Arrange ---
		var got captured
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got.record(r)
			_, _ = w.Write([]byte(`{"access_token":"AT","refresh_token":"RT","user_id":123456789012}`))
		}))
		defer srv.Close()
		o := newOAuth(t, srv.URL)

		// --- Act ---
		cred, err := o.ExchangeCode(context.Background(), "code-1")

		// --- Assert ---
		require.NoError(t, err)
		assert.Equal(t, model.MercadoPagoCredential{AccessToken: "AT", RefreshToken: "RT", UserID: "123456789012"}, cred)
		assert.Equal(t, "/oauth/token", got.path)
		assert.Equal(t, "authorization_code", got.body["grant_type"])
		assert.Equal(t, "code-1", got.body["code"])
		assert.Equal(t, "secret-1", got.body["client_secret"])
	})

	t.Run("missing access token", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"refresh_token":"RT"}`))
		}))
		defer srv.Close()

		_, err := newOAuth(t, srv.URL).ExchangeCode(context.Background(), "c")

		assert.ErrorIs(t, err, domain.ErrOAuthExchange)
	})

	t.Run("provider rejects code", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
		}))
		defer srv.Close()

		_, err := newOAuth(t, srv.URL).ExchangeCode(context.Background(), "c")

		assert.ErrorIs(t, err, domain.ErrOAuthExchange)
	})
}

func TestNewMercadoPagoOAuth_RequiresClient(t *testing.T) {
	_, err := NewMercadoPagoOAuth(config.MercadoPagoConfig{RedirectURI: "https://x"}, 0)
	assert.Error(t, err)
}
