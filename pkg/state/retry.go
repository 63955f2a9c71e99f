package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	draft "github.com/goliatone/go-draft"
)

var _ draft.Sink[struct{}, struct{}, struct{}] = (*RetrySink[struct{}, struct{}, struct{}])(nil)

const defaultRetryMaxElapsed = 15 * time.Second

// RetrySink wraps a sink with exponential backoff for transient save
// failures. Only errors the classifier reports as retryable are attempted
// again; everything else fails the save immediately.
type RetrySink[E, F, S any] struct {
	sink            draft.Sink[E, F, S]
	maxElapsed      time.Duration
	initialInterval time.Duration
	retryable       func(error) bool
}

type RetryOption[E, F, S any] func(*RetrySink[E, F, S])

// RetryWithMaxElapsed caps the total time spent retrying one save.
func RetryWithMaxElapsed[E, F, S any](d time.Duration) RetryOption[E, F, S] {
	return func(r *RetrySink[E, F, S]) {
		if d > 0 {
			r.maxElapsed = d
		}
	}
}

// RetryWithInitialInterval overrides the first backoff interval.
func RetryWithInitialInterval[E, F, S any](d time.Duration) RetryOption[E, F, S] {
	return func(r *RetrySink[E, F, S]) {
		if d > 0 {
			r.initialInterval = d
		}
	}
}

// RetryWithClassifier replaces the transient-error classifier.
func RetryWithClassifier[E, F, S any](fn func(error) bool) RetryOption[E, F, S] {
	return func(r *RetrySink[E, F, S]) {
		if fn != nil {
			r.retryable = fn
		}
	}
}

func NewRetrySink[E, F, S any](sink draft.Sink[E, F, S], opts ...RetryOption[E, F, S]) (*RetrySink[E, F, S], error) {
	if sink == nil {
		return nil, fmt.Errorf("state: sink is required")
	}
	r := &RetrySink[E, F, S]{
		sink:       sink,
		maxElapsed: defaultRetryMaxElapsed,
		retryable:  retryableSaveError,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

func (r *RetrySink[E, F, S]) newBackoff() backoff.BackOff {
	// BackOff implementations are stateful; always build a fresh instance.
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = r.maxElapsed
	if r.initialInterval > 0 {
		bo.InitialInterval = r.initialInterval
	}
	return bo
}

func (r *RetrySink[E, F, S]) Save(ctx context.Context, original *E, form F, items []S) (*E, error) {
	var saved *E
	op := func() error {
		entity, err := r.sink.Save(ctx, original, form, items)
		if err != nil {
			if r.retryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		saved = entity
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(r.newBackoff(), ctx)); err != nil {
		return nil, err
	}
	return saved, nil
}

// retryableSaveError reports whether a sink error looks transient. Validation
// failures, context cancellation, and concurrency-precondition failures never
// retry; everything else retries only when the message carries a known
// transient marker.
func retryableSaveError(err error) bool {
	if err == nil {
		return false
	}
	var validation *draft.ValidationError
	if errors.As(err, &validation) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrETagMismatch) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"i/o timeout",
		"temporarily unavailable",
		"database is locked",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
