//go:build !integration

package application_test

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"

	"telegram-pix-manager/internal/application"
	"telegram-pix-manager/internal/domain"
	"telegram-pix-manager/internal/domain/model"
	"telegram-pix-manager/internal/infra/i18n"
	"telegram-pix-manager/internal/infra/memory"
	"telegram-pix-manager/internal/usecase"
)

const (
	testToken = "111:AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	ownerID   = int64(10)
	otherID   = int64(20)
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func newTestTranslator() *i18n.Translator {
	t, err := i18n.Default()
	if err != nil {
		panic(err)
	}
	return t
}

func newConversation(scope string) *application.Conversation {
	return application.NewConversation(memory.NewStateRepo(time.Minute), scope, newTestLogger())
}

// fakeBots holds a single registration and applies the real access rule.
type fakeBots struct {
	bot      model.BotRegistration
	touches  int
	savedTok string
	saveErr  error
}

func newFakeBots() *fakeBots {
	return &fakeBots{bot: model.BotRegistration{Token: testToken, OwnerID: ownerID, IsActive: true, Gateway: model.GatewayPushInPay}}
}

func (f *fakeBots) Get(ctx context.Context, token string) (*model.BotRegistration, error) {
	cp := f.bot
	return &cp, nil
}

func (f *fakeBots) Touch(ctx context.Context, token string) { f.touches++ }

func (f *fakeBots) Authorize(ctx context.Context, token string, userID int64, kind model.CommandKind) (*model.BotRegistration, error) {
	cp := f.bot
	if !model.Permit(cp.IsOwner(userID), cp.IsPublic, kind) {
		return &cp, domain.ErrOwnerOnly
	}
	return &cp, nil
}

func (f *fakeBots) SetPublicAccess(ctx context.Context, token string, userID int64, public bool) error {
	if _, err := f.Authorize(ctx, token, userID, model.CommandLivre); err != nil {
		return err
	}
	f.bot.IsPublic = public
	return nil
}

func (f *fakeBots) SelectGateway(ctx context.Context, token string, userID int64, kind model.GatewayKind) error {
	if _, err := f.Authorize(ctx, token, userID, model.CommandGateway); err != nil {
		return err
	}
	f.bot.Gateway = kind
	return nil
}

func (f *fakeBots) SavePushInPayToken(ctx context.Context, token string, userID int64, raw string) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	if !model.ValidPushInPayToken(raw) {
		return domain.ErrInvalidGatewayToken
	}
	f.savedTok = raw
	return nil
}

func (f *fakeBots) RecordProcess(ctx context.Context, token string, pid int) error { return nil }

type fakePix struct {
	ready  bool
	charge *usecase.PixCharge
	err    error
	inputs []string
}

func (f *fakePix) Ready(ctx context.Context, token string) (bool, error) { return f.ready, nil }

func (f *fakePix) Generate(ctx context.Context, token string, payerID int64, input string) (*usecase.PixCharge, error) {
	f.inputs = append(f.inputs, input)
	if _, err := usecase.ParseAmount(input); err != nil {
		return nil, err
	}
	return f.charge, f.err
}

type fakeOAuth struct{}

func (fakeOAuth) AuthorizationURL(botToken string) (string, error) {
	return "https://auth.example/authorization?state=signed", nil
}

func (fakeOAuth) CompleteLink(ctx context.Context, code, state string) error { return nil }

type fakeRegistration struct {
	bot   *model.BotRegistration
	err   error
	owned []*model.BotRegistration
	calls []string
}

func (f *fakeRegistration) Register(ctx context.Context, who usecase.Registrant, raw string) (*model.BotRegistration, error) {
	f.calls = append(f.calls, raw)
	return f.bot, f.err
}

func (f *fakeRegistration) ListOwned(ctx context.Context, ownerID int64) ([]*model.BotRegistration, error) {
	return f.owned, nil
}
