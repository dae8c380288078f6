package bot

import (
	"fmt"

	"github.com/dirtypig/pig/pkg/telegram"
)

// Decision is the outcome of an authorization check
type Decision struct {
	allowed bool
	reason  string
}

// Allow makes a positive decision
func Allow() Decision { return Decision{allowed: true} }

// Deny makes a negative decision with a reason
func Deny(reason string) Decision { return Decision{reason: reason} }

// Allowed reports if the action may proceed
func (d Decision) Allowed() bool { return d.allowed }

// Reason explains denial, empty for allowed decisions
func (d Decision) Reason() string { return d.reason }

// Guard checks users against a fixed allow-list
type Guard struct {
	allowed map[int64]struct{}
}

// NewGuard makes a guard for the given user ids. Empty list denies everyone.
func NewGuard(ids []int64) *Guard {
	allowed := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		allowed[id] = struct{}{}
	}
	return &Guard{allowed: allowed}
}

// Check decides if user may run privileged actions
func (g *Guard) Check(user *telegram.User) Decision {
	if user == nil {
		return Deny("anonymous user")
	}
	if _, ok := g.allowed[user.ID]; !ok {
		return Deny(fmt.Sprintf("user %d is not in whitelist", user.ID))
	}
	return Allow()
}
