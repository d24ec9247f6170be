// Package poller implements the buyer-side status loop: a fixed number of
// read-only status checks that ends early on a settled order, and then hands
// over to manual verification.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"payment-service/internal/domain"
)

type StatusFetcher interface {
	FetchStatus(ctx context.Context, orderID string) (domain.StatusView, error)
}

type Verdict string

const (
	VerdictPaid     Verdict = "paid"
	VerdictFailed   Verdict = "failed"
	VerdictTimedOut Verdict = "timed_out"
)

type Result struct {
	Verdict  Verdict
	Last     domain.StatusView
	Attempts int
}

// OfferManualVerify reports whether the buyer should be given the fallback.
func (r Result) OfferManualVerify() bool {
	return r.Verdict == VerdictTimedOut
}

type Poller struct {
	fetcher     StatusFetcher
	interval    time.Duration
	maxAttempts int
	logger      *slog.Logger
}

func New(f StatusFetcher, interval time.Duration, maxAttempts int, logger *slog.Logger) *Poller {
	return &Poller{fetcher: f, interval: interval, maxAttempts: maxAttempts, logger: logger}
}

// Run polls once per interval until the order settles, maxAttempts is
// reached or ctx is cancelled. onTick, if set, sees every successful read.
// Fetch errors count as attempts; an unknown or forbidden order stops the loop.
func (p *Poller) Run(ctx context.Context, orderID string, onTick func(attempt int, v domain.StatusView)) (Result, error) {
	t := time.NewTicker(p.interval)
	defer t.Stop()

	var res Result
	for res.Attempts < p.maxAttempts {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case <-t.C:
		}
		res.Attempts++

		v, err := p.fetcher.FetchStatus(ctx, orderID)
		if err != nil {
			if errors.Is(err, domain.ErrOrderNotFound) || errors.Is(err, domain.ErrForbidden) {
				return res, err
			}
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			p.logger.Debug("status check failed", "order_id", orderID, "attempt", res.Attempts, "error", err)
			continue
		}
		res.Last = v
		if onTick != nil {
			onTick(res.Attempts, v)
		}

		if v.Status.IsTerminal() {
			res.Verdict = VerdictFailed
			if v.IsPaid {
				res.Verdict = VerdictPaid
			}
			return res, nil
		}
	}

	res.Verdict = VerdictTimedOut
	return res, nil
}
