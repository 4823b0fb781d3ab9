package api

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"telegram-pix-manager/internal/domain"
	"telegram-pix-manager/internal/infra/logging"
	"telegram-pix-manager/internal/infra/metrics"
	"telegram-pix-manager/internal/usecase"
)

// Server exposes the Mercado Pago OAuth redirect target plus health and
// metrics endpoints.
type Server struct {
	oauthUC usecase.OAuthUseCase
	cbPath  string
	log     *zerolog.Logger
}

// NewServer builds the callback server. callbackPath must match the path of
// payment.mercadopago.redirect_uri.
func NewServer(oauthUC usecase.OAuthUseCase, callbackPath string, logger *zerolog.Logger) *Server {
	if callbackPath == "" {
		callbackPath = "/mp/callback"
	}
	l := logger.With().Str("component", "CallbackServer").Logger()
	return &Server{oauthUC: oauthUC, cbPath: callbackPath, log: &l}
}

// Router returns the chi router with middleware attached.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP, TraceID(), RequestLog(s.log), Recover(s.log), middleware.Timeout(30*time.Second))

	r.Get(s.cbPath, s.handleCallback)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	return r
}

// ListenAndServe runs until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Str("callback", s.cbPath).Msg("callback server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info().Msg("callback server stopped")
	return nil
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logging.With(ctx, s.log)

	q := r.URL.Query()
	err := s.oauthUC.CompleteLink(ctx, q.Get("code"), q.Get("state"))
	switch {
	case err == nil:
		s.renderHTML(w, http.StatusOK, true, "Sua conta do Mercado Pago foi vinculada ao bot.")
	case errors.Is(err, domain.ErrInvalidArgument):
		s.renderHTML(w, http.StatusBadRequest, false, "Parâmetros inválidos.")
	case errors.Is(err, domain.ErrOAuthExchange):
		s.renderHTML(w, http.StatusBadRequest, false, "Não foi possível obter o token do Mercado Pago.")
	case errors.Is(err, domain.ErrNotFound):
		s.renderHTML(w, http.StatusBadRequest, false, "Bot não encontrado. Gere um novo link pelo comando /gateway.")
	default:
		log.Error().Err(err).Msg("oauth callback failed")
		s.renderHTML(w, http.StatusInternalServerError, false, "Erro interno. Tente novamente em instantes.")
	}
}

var page = template.Must(template.New("cb").Parse(`<!doctype html>
<html lang="pt-BR">
<head>
<meta charset="utf-8" />
<meta name="viewport" content="width=device-width,initial-scale=1" />
<title>{{if .OK}}Conexão Realizada{{else}}Falha na Conexão{{end}}</title>
<style>
body{font-family:system-ui,Arial,sans-serif;display:flex;justify-content:center;align-items:center;min-height:100vh;margin:0;background:#f0f2f5;}
.card{text-align:center;background:#fff;max-width:560px;padding:40px;border-radius:20px;box-shadow:0 4px 6px rgba(0,0,0,.1);margin:20px;}
.ok{color:#32cd32} .fail{color:#b00020}
.small{font-size:14px;color:#888}
</style>
</head>
<body>
<div class="card">
  <h1 class="{{if .OK}}ok{{else}}fail{{end}}">{{if .OK}}✅ Conta Conectada com Sucesso!{{else}}⚠️ Não foi possível conectar{{end}}</h1>
  <p>{{.Msg}}</p>
  {{if .OK}}<p>Volte para o Telegram e comece a gerar pagamentos PIX!</p>{{end}}
  <p class="small">Você já pode fechar esta janela.</p>
</div>
</body>
</html>`))

func (s *Server) renderHTML(w http.ResponseWriter, code int, ok bool, msg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	_ = page.Execute(w, struct {
		OK  bool
		Msg string
	}{
		OK:  ok,
		Msg: msg,
	})
}
