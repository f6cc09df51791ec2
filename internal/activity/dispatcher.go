package activity

import (
	"context"
	"fmt"

	appErrors "github.com/unclebandit/activity-sim/internal/errors"
)

// Dispatcher routes a request to the handler registered for its kind.
type Dispatcher struct {
	handlers [kindCount]Handler
}

// NewDispatcher builds the handler registry.
func NewDispatcher(deps *Deps) (*Dispatcher, error) {
	d := deps.withDefaults()
	if d.Personas == nil || d.Content == nil || d.Generator == nil {
		return nil, fmt.Errorf("activity: personas, content and generator are required")
	}

	handlers := [...]Handler{
		KindPost:                 &postHandler{d},
		KindComment:              &commentHandler{d},
		KindLike:                 &likeHandler{d},
		KindFriendRequest:        &friendRequestHandler{d},
		KindTest:                 &testHandler{d},
		KindLiveCoding:           &exerciseHandler{Deps: d, kind: "live_coding", passMark: 70},
		KindBugFix:               &exerciseHandler{Deps: d, kind: "bug_fix", passMark: 60},
		KindLesson:               &lessonHandler{d},
		KindChat:                 &chatHandler{d},
		KindHackathonApplication: &applicationHandler{Deps: d, openingKind: "hackathon"},
		KindFreelancerBid:        &applicationHandler{Deps: d, openingKind: "project", bid: true},
	}
	// Fails to compile when a kind is appended without a handler here.
	_ = [1]struct{}{}[len(handlers)-int(kindCount)]

	for k, h := range handlers {
		if h == nil {
			return nil, fmt.Errorf("activity: no handler for %s", Kind(k))
		}
	}
	return &Dispatcher{handlers: handlers}, nil
}

// Dispatch runs req and classifies the result. Handler errors and panics
// become failed results; they never escape.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("handler panic: %v", r)
			res = Result{ErrorKind: appErrors.KindInternal, Err: err}
		}
	}()

	if !req.Kind.Valid() {
		err := appErrors.Validation("unknown activity type %s", req.Kind)
		return Result{ErrorKind: appErrors.KindValidation, Err: err}
	}
	out, err := d.handlers[req.Kind].Handle(ctx, req)
	if err != nil {
		return Result{TargetID: out.TargetID, ErrorKind: appErrors.KindOf(err), Err: err}
	}
	return Result{Success: true, TargetID: out.TargetID, ResultID: out.ResultID}
}
