package application

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"telegram-pix-manager/internal/domain"
	"telegram-pix-manager/internal/domain/ports/repository"
)

// Step is where a user stands in a multi-step conversation.
type Step string

const (
	StepIdle                Step = ""
	StepSelectingGateway    Step = "selecting_gateway"
	StepWaitingGatewayToken Step = "waiting_gateway_token"
	StepWaitingPixValue     Step = "waiting_pix_value"
	StepAwaitingBotToken    Step = "awaiting_bot_token"
)

// AwaitsText reports whether the next plain message is consumed as input.
func (s Step) AwaitsText() bool {
	switch s {
	case StepWaitingGatewayToken, StepWaitingPixValue, StepAwaitingBotToken:
		return true
	}
	return false
}

// transitions lists the forward edges. Every step may also return to Idle.
var transitions = map[Step][]Step{
	StepIdle:                {StepSelectingGateway, StepWaitingPixValue, StepAwaitingBotToken},
	StepSelectingGateway:    {StepSelectingGateway, StepWaitingGatewayToken},
	StepWaitingGatewayToken: {StepSelectingGateway},
	StepWaitingPixValue:     {},
	StepAwaitingBotToken:    {StepAwaitingBotToken},
}

// CanMove reports whether from -> to is an edge of the conversation graph.
func CanMove(from, to Step) bool {
	if to == StepIdle {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Conversation keeps the per-user step of one bot in a StateRepository.
type Conversation struct {
	states repository.StateRepository
	scope  string
	log    *zerolog.Logger
}

func NewConversation(states repository.StateRepository, scope string, logger *zerolog.Logger) *Conversation {
	return &Conversation{states: states, scope: scope, log: logger}
}

// Current returns the user's step. Lookup failures read as Idle.
func (c *Conversation) Current(ctx context.Context, userID int64) Step {
	st, err := c.states.GetState(ctx, c.scope, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			c.log.Warn().Err(err).Int64("tg_id", userID).Msg("read conversation state")
		}
		return StepIdle
	}
	return Step(st.Step)
}

// Move follows an edge from the current step. Buttons pressed on a stale
// message may ask for an edge that does not exist; those start over from Idle.
func (c *Conversation) Move(ctx context.Context, userID int64, to Step) {
	from := c.Current(ctx, userID)
	if !CanMove(from, to) && !CanMove(StepIdle, to) {
		c.log.Debug().Str("from", string(from)).Str("to", string(to)).Msg("conversation edge refused")
		return
	}
	if to == StepIdle {
		c.Cancel(ctx, userID)
		return
	}
	if err := c.states.SetState(ctx, c.scope, userID, &repository.ConversationState{Step: string(to)}); err != nil {
		c.log.Warn().Err(err).Int64("tg_id", userID).Msg("write conversation state")
	}
}

// Cancel is the edge every command takes: any step back to Idle.
func (c *Conversation) Cancel(ctx context.Context, userID int64) {
	if err := c.states.ClearState(ctx, c.scope, userID); err != nil {
		c.log.Warn().Err(err).Int64("tg_id", userID).Msg("clear conversation state")
	}
}
