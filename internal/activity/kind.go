// Package activity implements the per-kind activity handlers, the dispatcher
// that routes execution units to them and the idempotency guard wrapping the
// uniqueness-sensitive ones.
package activity

import "fmt"

// Kind is the closed set of simulated activities.
type Kind uint8

const (
	KindPost Kind = iota
	KindComment
	KindLike
	KindFriendRequest
	KindTest
	KindLiveCoding
	KindBugFix
	KindLesson
	KindChat
	KindHackathonApplication
	KindFreelancerBid

	kindCount
)

var kindNames = [...]string{
	KindPost:                 "POST",
	KindComment:              "COMMENT",
	KindLike:                 "LIKE",
	KindFriendRequest:        "FRIEND_REQUEST",
	KindTest:                 "TEST",
	KindLiveCoding:           "LIVE_CODING",
	KindBugFix:               "BUG_FIX",
	KindLesson:               "LESSON",
	KindChat:                 "CHAT",
	KindHackathonApplication: "HACKATHON_APPLICATION",
	KindFreelancerBid:        "FREELANCER_BID",
}

// Fails to compile unless every kind has a name.
var _ = [1]struct{}{}[len(kindNames)-int(kindCount)]

func (k Kind) Valid() bool { return k < kindCount }

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
	return kindNames[k]
}

// ParseKind maps a wire tag such as "LIKE" to its Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown activity type %q", s)
}

// Kinds returns every kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, kindCount)
	for i := range out {
		out[i] = Kind(i)
	}
	return out
}
