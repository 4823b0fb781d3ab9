//go:build !integration

package application_test

import (
	"context"
	"strings"
	"testing"

	"telegram-pix-manager/internal/application"
	"telegram-pix-manager/internal/domain"
	"telegram-pix-manager/internal/domain/model"
	"telegram-pix-manager/internal/usecase"
)

type workerDeps struct {
	bots *fakeBots
	pix  *fakePix
	w    *application.WorkerFacade
}

func newWorkerDeps() *workerDeps {
	d := &workerDeps{bots: newFakeBots(), pix: &fakePix{ready: true}}
	d.w = application.NewWorkerFacade(testToken, "GeradorPix_Bot", d.bots, d.pix, fakeOAuth{},
		newConversation("111"), newTestTranslator(), newTestLogger())
	return d
}

func TestWorkerFacade_Start(t *testing.T) {
	ctx := context.Background()
	tr := newTestTranslator()
	d := newWorkerDeps()

	if got := d.w.HandleStart(ctx, ownerID).Text; got != tr.T("worker_welcome_owner") {
		t.Errorf("owner welcome = %q", got)
	}
	got := d.w.HandleStart(ctx, otherID).Text
	if !strings.Contains(got, "GeradorPix\\_Bot") {
		t.Errorf("private notice = %q, want escaped registration bot", got)
	}

	d.bots.bot.IsPublic = true
	if got := d.w.HandleStart(ctx, otherID).Text; got != tr.T("worker_welcome_public") {
		t.Errorf("public welcome = %q", got)
	}
	if d.bots.touches != 3 {
		t.Errorf("touches = %d, want 3", d.bots.touches)
	}
}

func TestWorkerFacade_PrivateNoticeWithoutRegistrationBot(t *testing.T) {
	// --- Arrange ---
	tr := newTestTranslator()
	bots := newFakeBots()
	w := application.NewWorkerFacade(testToken, "", bots, &fakePix{ready: true}, fakeOAuth{},
		newConversation("111"), tr, newTestLogger())

	// --- Act ---
	got := w.HandleStart(context.Background(), otherID).Text

	// --- Assert ---
	if got != tr.T("worker_private_closed") {
		t.Errorf("private notice = %q", got)
	}
	if strings.Contains(got, "@") {
		t.Errorf("notice should not mention an empty username: %q", got)
	}
}

func TestWorkerFacade_PushInPayFlow(t *testing.T) {
	ctx := context.Background()
	tr := newTestTranslator()

	t.Run("should save a valid token and delete the message", func(t *testing.T) {
		// --- Arrange ---
		d := newWorkerDeps()
		d.w.HandleGateway(ctx, ownerID)
		sel := d.w.HandleCallback(ctx, ownerID, application.CbSelectPushInPay)

		// --- Act ---
		r := d.w.HandleText(ctx, ownerID, " 123456789|abcdefghijklmnopqrstuvwxyz123456 ")

		// --- Assert ---
		if !sel.Edit || sel.Text != tr.T("pushinpay_token_prompt") {
			t.Errorf("selection reply = %+v", sel)
		}
		if r.Text != tr.T("gateway_token_saved") || !r.DeleteIncoming {
			t.Errorf("reply = %+v", r)
		}
		if d.bots.savedTok != "123456789|abcdefghijklmnopqrstuvwxyz123456" {
			t.Errorf("saved = %q", d.bots.savedTok)
		}
		if d.w.AwaitsText(ctx, ownerID) {
			t.Error("flow still waiting after save")
		}
	})

	t.Run("should end the flow on an invalid token", func(t *testing.T) {
		// --- Arrange ---
		d := newWorkerDeps()
		d.w.HandleGateway(ctx, ownerID)
		d.w.HandleCallback(ctx, ownerID, application.CbSelectPushInPay)

		// --- Act ---
		r := d.w.HandleText(ctx, ownerID, "123|short")
		again := d.w.HandleText(ctx, ownerID, "123456789|abcdefghijklmnopqrstuvwxyz123456")

		// --- Assert ---
		if r.Text != tr.T("gateway_token_invalid") || r.DeleteIncoming {
			t.Errorf("reply = %+v", r)
		}
		if again.Text != "" {
			t.Errorf("second attempt was consumed: %+v", again)
		}
	})

	t.Run("should abort the wait on any command", func(t *testing.T) {
		d := newWorkerDeps()
		d.w.HandleGateway(ctx, ownerID)
		d.w.HandleCallback(ctx, ownerID, application.CbSelectPushInPay)

		d.w.HandleStart(ctx, ownerID)

		if d.w.AwaitsText(ctx, ownerID) {
			t.Error("command did not cancel the wait")
		}
	})

	t.Run("should refuse gateway selection to strangers", func(t *testing.T) {
		d := newWorkerDeps()
		r := d.w.HandleCallback(ctx, otherID, application.CbSelectPushInPay)
		if !r.Alert || d.bots.bot.Gateway != model.GatewayPushInPay {
			t.Errorf("reply = %+v gateway = %s", r, d.bots.bot.Gateway)
		}
		if d.w.AwaitsText(ctx, otherID) {
			t.Error("stranger entered the token flow")
		}
	})
}

func TestWorkerFacade_MercadoPagoSelection(t *testing.T) {
	ctx := context.Background()
	d := newWorkerDeps()

	r := d.w.HandleCallback(ctx, ownerID, application.CbSelectMercadoPago)

	if d.bots.bot.Gateway != model.GatewayMercadoPago {
		t.Errorf("gateway = %s", d.bots.bot.Gateway)
	}
	if len(r.Buttons) != 2 || r.Buttons[0][0].URL == "" {
		t.Fatalf("buttons = %+v, want an authorization link", r.Buttons)
	}
	if d.w.AwaitsText(ctx, ownerID) {
		t.Error("oauth path must not wait for text")
	}
}

func TestWorkerFacade_PixFlow(t *testing.T) {
	ctx := context.Background()
	tr := newTestTranslator()

	t.Run("should show code and fee", func(t *testing.T) {
		// --- Arrange ---
		d := newWorkerDeps()
		d.pix.charge = &usecase.PixCharge{Gateway: model.GatewayPushInPay, Amount: 100.5, Fee: 3.01, Code: "00020126PIX"}
		prompt := d.w.HandlePix(ctx, ownerID)

		// --- Act ---
		r := d.w.HandleText(ctx, ownerID, "100,50")

		// --- Assert ---
		if prompt.Text != tr.T("pix_amount_prompt") {
			t.Errorf("prompt = %q", prompt.Text)
		}
		for _, want := range []string{"100.50", "3.01", "00020126PIX"} {
			if !strings.Contains(r.Text, want) {
				t.Errorf("reply %q missing %q", r.Text, want)
			}
		}
	})

	t.Run("should distinguish invalid from out of range", func(t *testing.T) {
		d := newWorkerDeps()
		d.w.HandlePix(ctx, ownerID)
		if r := d.w.HandleText(ctx, ownerID, "abc"); r.Text != tr.T("pix_amount_invalid") {
			t.Errorf("non numeric reply = %q", r.Text)
		}
		d.w.HandlePix(ctx, ownerID)
		if r := d.w.HandleText(ctx, ownerID, "20000"); r.Text != tr.T("pix_amount_out_of_range") {
			t.Errorf("out of range reply = %q", r.Text)
		}
	})

	t.Run("should word failures per provider", func(t *testing.T) {
		d := newWorkerDeps()
		d.pix.charge = &usecase.PixCharge{Gateway: model.GatewayMercadoPago, Amount: 50}
		d.pix.err = domain.ErrPaymentFailed
		d.w.HandlePix(ctx, ownerID)
		if r := d.w.HandleText(ctx, ownerID, "50"); r.Text != tr.T("pix_failed_mercadopago") {
			t.Errorf("reply = %q", r.Text)
		}

		d.pix.charge = &usecase.PixCharge{Gateway: model.GatewayPushInPay, Amount: 50}
		d.w.HandlePix(ctx, ownerID)
		if r := d.w.HandleText(ctx, ownerID, "50"); r.Text != tr.T("pix_failed_pushinpay") {
			t.Errorf("reply = %q", r.Text)
		}
	})

	t.Run("should guide owner and users differently without a gateway", func(t *testing.T) {
		d := newWorkerDeps()
		d.pix.ready = false
		d.bots.bot.IsPublic = true
		if r := d.w.HandlePix(ctx, ownerID); r.Text != tr.T("pix_gateway_missing_owner") {
			t.Errorf("owner reply = %q", r.Text)
		}
		if r := d.w.HandlePix(ctx, otherID); r.Text != tr.T("pix_gateway_missing_user") {
			t.Errorf("user reply = %q", r.Text)
		}
	})

	t.Run("should keep private bots private", func(t *testing.T) {
		d := newWorkerDeps()
		r := d.w.HandlePix(ctx, otherID)
		if !strings.Contains(r.Text, "privado") {
			t.Errorf("reply = %q", r.Text)
		}
		if d.w.AwaitsText(ctx, otherID) || len(d.pix.inputs) != 0 {
			t.Error("stranger entered the pix flow")
		}
	})
}

func TestWorkerFacade_Livre(t *testing.T) {
	ctx := context.Background()
	tr := newTestTranslator()
	d := newWorkerDeps()

	menu := d.w.HandleLivre(ctx, ownerID)
	if len(menu.Buttons) != 1 || !strings.Contains(menu.Buttons[0][1].Text, "✅") {
		t.Errorf("private bot should mark No: %+v", menu.Buttons)
	}

	r := d.w.HandleCallback(ctx, ownerID, application.CbLivreYes)
	if !d.bots.bot.IsPublic || !r.Edit || r.Notice != tr.T("livre_public_set") {
		t.Errorf("reply = %+v public = %v", r, d.bots.bot.IsPublic)
	}
	if !strings.Contains(r.Buttons[0][0].Text, "✅") {
		t.Errorf("yes not marked: %+v", r.Buttons)
	}

	r = d.w.HandleCallback(ctx, otherID, application.CbLivreNo)
	if !r.Alert || !d.bots.bot.IsPublic {
		t.Errorf("stranger changed access: %+v", r)
	}
}
