package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Evaluator looks a code up and applies it to a checkout snapshot.
type Evaluator interface {
	Evaluate(ctx context.Context, code string, s Snapshot) (Applied, error)
}

// RepoValidator implements Evaluator on top of a Repository.
type RepoValidator struct {
	repo Repository
	now  func() time.Time
}

// NewRepoValidator creates a RepoValidator backed by the given Repository.
func NewRepoValidator(repo Repository) *RepoValidator {
	return &RepoValidator{repo: repo, now: time.Now}
}

// Evaluate resolves code and applies it. Unknown codes yield ErrNotFound;
// rule failures yield *RejectedError.
func (v *RepoValidator) Evaluate(ctx context.Context, code string, s Snapshot) (Applied, error) {
	c, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Applied{}, ErrNotFound
		}
		return Applied{}, errors.Wrap(err, "lookup coupon")
	}
	if c == nil {
		return Applied{}, ErrNotFound
	}

	applied, err := Apply(c, s, v.now())
	if err != nil {
		var rejected *RejectedError
		if errors.As(err, &rejected) {
			zctx.From(ctx).Debug("Coupon rejected",
				zap.String("code", code),
				zap.String("reason", string(rejected.Reason)),
			)
		}
		return Applied{}, err
	}
	return applied, nil
}

// Message returns the customer-facing message for an Evaluate error, and
// false for errors that are not about the coupon itself.
func Message(err error) (string, bool) {
	if errors.Is(err, ErrNotFound) {
		return NotFoundMessage, true
	}
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		return rejected.Message, true
	}
	return "", false
}
