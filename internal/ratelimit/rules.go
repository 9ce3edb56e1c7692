package ratelimit

import "time"

// Action is an enumerated category of user-initiated write operation subject
// to its own independent limit and window.
type Action string

const (
	ActionPostCreate    Action = "post_create"
	ActionCommentCreate Action = "comment_create"
	ActionMessageSend   Action = "message_send"
	ActionLike          Action = "like"
	ActionFollow        Action = "follow"
	ActionAuthLogin     Action = "auth_login"
	ActionAuthSignup    Action = "auth_signup"
)

// Rule is the static limit for one action kind.
type Rule struct {
	MaxRequests int
	Window      time.Duration
}

// UnlimitedRemaining is the sentinel remaining value returned for action
// kinds that have no configured rule. Unknown actions are allowed through so
// that a newly introduced action without a rule does not break writes.
const UnlimitedRemaining = 999999

// CleanupHorizon is the age past which records become eligible for deletion.
// It is far larger than every configured window, so the sweep can never
// change a live decision.
const CleanupHorizon = 24 * time.Hour

// DefaultRules maps every recognized action kind to its limit.
var DefaultRules = map[Action]Rule{
	ActionPostCreate:    {MaxRequests: 10, Window: time.Minute},
	ActionCommentCreate: {MaxRequests: 20, Window: time.Minute},
	ActionMessageSend:   {MaxRequests: 30, Window: time.Minute},
	ActionLike:          {MaxRequests: 50, Window: time.Minute},
	ActionFollow:        {MaxRequests: 20, Window: time.Minute},
	ActionAuthLogin:     {MaxRequests: 5, Window: 5 * time.Minute},
	ActionAuthSignup:    {MaxRequests: 3, Window: time.Hour},
}

// KnownActions returns the configured action kinds in stable order.
func KnownActions() []Action {
	return []Action{
		ActionPostCreate,
		ActionCommentCreate,
		ActionMessageSend,
		ActionLike,
		ActionFollow,
		ActionAuthLogin,
		ActionAuthSignup,
	}
}
