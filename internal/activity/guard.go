package activity

import (
	"context"
	"errors"

	appErrors "github.com/unclebandit/activity-sim/internal/errors"
	"github.com/unclebandit/activity-sim/internal/repository"
)

// Guard prevents duplicate (actor, target) side effects. The pre-check keeps
// the common case cheap; the storage uniqueness constraint is authoritative,
// so a unique violation raised by create is also reported as a duplicate.
type Guard struct {
	Op     string
	Exists func(ctx context.Context, actorID, targetID string) (bool, error)
}

func (g Guard) Do(ctx context.Context, actorID, targetID string, create func(ctx context.Context) error) error {
	exists, err := g.Exists(ctx, actorID, targetID)
	if err != nil {
		return err
	}
	if exists {
		return appErrors.Duplicate(g.Op, "actor %s already has %s on %s", actorID, g.Op, targetID)
	}
	if err := create(ctx); err != nil {
		if errors.Is(err, repository.ErrUniqueViolation) {
			return &appErrors.Error{
				Kind: appErrors.KindDuplicate,
				Op:   g.Op,
				Msg:  "actor " + actorID + " raced to " + g.Op + " " + targetID,
				Err:  err,
			}
		}
		return err
	}
	return nil
}
