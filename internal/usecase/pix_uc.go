// File: internal/usecase/pix_uc.go
package usecase

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"telegram-pix-manager/internal/domain"
	"telegram-pix-manager/internal/domain/model"
	"telegram-pix-manager/internal/domain/ports/adapter"
	"telegram-pix-manager/internal/domain/ports/repository"
	"telegram-pix-manager/internal/infra/logging"
)

// Compile-time check
var _ PixUseCase = (*pixUC)(nil)

// PixCharge is a generated PIX code with the figures shown to the payer.
type PixCharge struct {
	Gateway model.GatewayKind
	Amount  float64
	Fee     float64
	Code    string
}

type PixUseCase interface {
	// Ready reports whether the bot has a usable gateway credential.
	Ready(ctx context.Context, token string) (bool, error)
	// Generate parses input and creates a charge. Parse errors never reach the
	// gateway. On ErrPaymentFailed the returned charge carries the gateway kind.
	Generate(ctx context.Context, token string, payerID int64, input string) (*PixCharge, error)
}

type pixUC struct {
	bots    repository.BotRepository
	gateway adapter.PaymentGateway
	log     *zerolog.Logger
}

func NewPixUseCase(bots repository.BotRepository, gateway adapter.PaymentGateway, logger *zerolog.Logger) *pixUC {
	return &pixUC{bots: bots, gateway: gateway, log: logger}
}

// plainDecimal is an optionally negative decimal with a single point.
// Exponents, hex floats, signs like "+" and Inf/NaN do not match.
var plainDecimal = regexp.MustCompile(`^-?(\d+\.?\d*|\.\d+)$`)

// ParseAmount accepts "100", "100.50" and "100,50". Non-numbers are
// ErrAmountNotNumeric; numbers outside [MinPixAmount, MaxPixAmount] are ErrAmountOutOfRange.
func ParseAmount(input string) (float64, error) {
	s := strings.ReplaceAll(strings.TrimSpace(input), ",", ".")
	if !plainDecimal.MatchString(s) {
		return 0, domain.ErrAmountNotNumeric
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, domain.ErrAmountNotNumeric
	}
	if v < model.MinPixAmount || v > model.MaxPixAmount {
		return v, domain.ErrAmountOutOfRange
	}
	return v, nil
}

func (u *pixUC) Ready(ctx context.Context, token string) (bool, error) {
	_, _, err := u.bots.GatewayCredential(ctx, token)
	if errors.Is(err, domain.ErrGatewayNotConfigured) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (u *pixUC) Generate(ctx context.Context, token string, payerID int64, input string) (*PixCharge, error) {
	defer logging.TraceDuration(u.log, "PixUseCase.Generate")()
	amount, err := ParseAmount(input)
	if err != nil {
		return nil, err
	}

	kind, code, err := u.gateway.CreatePayment(ctx, token, amount, payerID)
	if err != nil {
		logging.With(ctx, u.log).Warn().Err(err).Str("gateway", string(kind)).Msg("pix generation failed")
		return &PixCharge{Gateway: kind, Amount: amount}, err
	}
	return &PixCharge{
		Gateway: kind,
		Amount:  amount,
		Fee:     model.ServiceFee(kind, amount),
		Code:    code,
	}, nil
}
