//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"

	"telegram-pix-manager/internal/domain"
	"telegram-pix-manager/internal/domain/model"
	"telegram-pix-manager/internal/usecase"
)

func seedBot(t *testing.T, store *memStore, token string, owner int64) {
	t.Helper()
	err := store.Insert(context.Background(), &model.BotRegistration{
		Token:    token,
		OwnerID:  owner,
		IsActive: true,
		Gateway:  model.GatewayPushInPay,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestBotUseCase_Authorize(t *testing.T) {
	ctx := context.Background()
	token := validToken("111")
	store := newMemStore()
	seedBot(t, store, token, 10)
	uc := usecase.NewBotUseCase(store, store, newTestLogger())

	if _, err := uc.Authorize(ctx, token, 10, model.CommandGateway); err != nil {
		t.Errorf("owner refused: %v", err)
	}
	b, err := uc.Authorize(ctx, token, 20, model.CommandPix)
	if !errors.Is(err, domain.ErrOwnerOnly) {
		t.Errorf("stranger on private bot: err = %v, want ErrOwnerOnly", err)
	}
	if b == nil || b.OwnerID != 10 {
		t.Error("expected the registration alongside ErrOwnerOnly")
	}

	_ = store.SetPublicAccess(ctx, token, true)
	if _, err := uc.Authorize(ctx, token, 20, model.CommandPix); err != nil {
		t.Errorf("stranger on public bot refused pix: %v", err)
	}
	if _, err := uc.Authorize(ctx, token, 20, model.CommandLivre); !errors.Is(err, domain.ErrOwnerOnly) {
		t.Errorf("stranger ran /livre: err = %v", err)
	}
}

func TestBotUseCase_SavePushInPayToken(t *testing.T) {
	ctx := context.Background()
	token := validToken("111")

	t.Run("should store a valid token and select pushinpay", func(t *testing.T) {
		// --- Arrange ---
		store := newMemStore()
		seedBot(t, store, token, 10)
		_ = store.SetGatewayKind(ctx, token, model.GatewayMercadoPago)
		uc := usecase.NewBotUseCase(store, store, newTestLogger())

		// --- Act ---
		err := uc.SavePushInPayToken(ctx, token, 10, "123456789|abcdefghijklmnopqrstuvwxyz123456")

		// --- Assert ---
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		kind, cred, err := store.GatewayCredential(ctx, token)
		if err != nil || kind != model.GatewayPushInPay || cred == "" {
			t.Errorf("credential = %s %q %v", kind, cred, err)
		}
	})

	t.Run("should reject a malformed token", func(t *testing.T) {
		// --- Arrange ---
		store := newMemStore()
		seedBot(t, store, token, 10)
		uc := usecase.NewBotUseCase(store, store, newTestLogger())

		// --- Act ---
		err := uc.SavePushInPayToken(ctx, token, 10, "123|short")

		// --- Assert ---
		if !errors.Is(err, domain.ErrInvalidGatewayToken) {
			t.Fatalf("err = %v, want ErrInvalidGatewayToken", err)
		}
		b, _ := store.FindByToken(ctx, token)
		if b.PushInPayToken != "" {
			t.Error("malformed token was stored")
		}
	})

	t.Run("should refuse non owners", func(t *testing.T) {
		store := newMemStore()
		seedBot(t, store, token, 10)
		uc := usecase.NewBotUseCase(store, store, newTestLogger())

		err := uc.SavePushInPayToken(ctx, token, 99, "123456789|abcdefghijklmnopqrstuvwxyz123456")
		if !errors.Is(err, domain.ErrOwnerOnly) {
			t.Fatalf("err = %v, want ErrOwnerOnly", err)
		}
	})
}

func TestBotUseCase_SelectGatewayRejectsNone(t *testing.T) {
	store := newMemStore()
	token := validToken("111")
	seedBot(t, store, token, 10)
	uc := usecase.NewBotUseCase(store, store, newTestLogger())

	err := uc.SelectGateway(context.Background(), token, 10, model.GatewayNone)
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestBotUseCase_RecordProcess(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	token := validToken("111")
	uc := usecase.NewBotUseCase(store, store, newTestLogger())

	if err := uc.RecordProcess(ctx, token, 42); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unregistered bot: err = %v, want ErrNotFound", err)
	}

	seedBot(t, store, token, 10)
	if err := uc.RecordProcess(ctx, token, 42); err != nil {
		t.Fatalf("RecordProcess: %v", err)
	}
	if err := uc.RecordProcess(ctx, token, 43); err != nil {
		t.Fatalf("RecordProcess overwrite: %v", err)
	}
	rec, err := store.FindProcess(ctx, token)
	if err != nil || rec.PID != 43 {
		t.Errorf("process record = %+v, %v; want pid 43", rec, err)
	}
}
