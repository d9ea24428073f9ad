package integration

import (
	"context"
	"errors"
	"iter"
	"sync/atomic"
	"time"

	"github.com/OsbanCerejo/inventoz-sub000/internal/domain/integration"
	"go.uber.org/zap"
)

// ErrSequenceConsumed is yielded when an order sequence is ranged over a second time
var ErrSequenceConsumed = errors.New("integration: order sequence already consumed")

// OrderFetcherConfig controls paging against the order list
type OrderFetcherConfig struct {
	PageSize int
	// PageDelay is the fixed pause between two successful pages
	PageDelay time.Duration
	// RetryBackoff is the pause before re-requesting a failed page
	RetryBackoff time.Duration
}

// DefaultOrderFetcherConfig returns the default paging settings
func DefaultOrderFetcherConfig() OrderFetcherConfig {
	return OrderFetcherConfig{
		PageSize:     50,
		PageDelay:    time.Second,
		RetryBackoff: 30 * time.Second,
	}
}

// OrderFetcher walks the marketplace order list page by page
type OrderFetcher struct {
	source   integration.OrderPageSource
	config   OrderFetcherConfig
	recorder SyncRecorder
	logger   *zap.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// OrderFetcherOption configures an OrderFetcher
type OrderFetcherOption func(*OrderFetcher)

// WithFetcherRecorder sets the metrics recorder
func WithFetcherRecorder(recorder SyncRecorder) OrderFetcherOption {
	return func(f *OrderFetcher) {
		if recorder != nil {
			f.recorder = recorder
		}
	}
}

// WithFetcherSleep replaces the delay function (tests)
func WithFetcherSleep(sleep func(ctx context.Context, d time.Duration) error) OrderFetcherOption {
	return func(f *OrderFetcher) {
		f.sleep = sleep
	}
}

// NewOrderFetcher creates a new OrderFetcher
func NewOrderFetcher(source integration.OrderPageSource, config OrderFetcherConfig, logger *zap.Logger, opts ...OrderFetcherOption) *OrderFetcher {
	defaults := DefaultOrderFetcherConfig()
	if config.PageSize <= 0 {
		config.PageSize = defaults.PageSize
	}
	if config.PageDelay < 0 {
		config.PageDelay = 0
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = defaults.RetryBackoff
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &OrderFetcher{
		source:   source,
		config:   config,
		recorder: noopRecorder{},
		logger:   logger.Named("order_fetcher"),
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchOrders returns the orders created in [windowStart, windowEnd) as a lazy
// sequence. Failed pages are retried after RetryBackoff until they succeed or
// ctx ends; permanent and credential failures are yielded and end the sequence.
// Once ctx is done no new page is requested and the sequence yields ctx.Err().
// The sequence can be ranged over once.
func (f *OrderFetcher) FetchOrders(ctx context.Context, windowStart, windowEnd time.Time) iter.Seq2[integration.RemoteOrder, error] {
	var consumed atomic.Bool
	return func(yield func(integration.RemoteOrder, error) bool) {
		if !consumed.CompareAndSwap(false, true) {
			yield(integration.RemoteOrder{}, ErrSequenceConsumed)
			return
		}

		req := integration.OrderPageRequest{
			WindowStart: windowStart,
			WindowEnd:   windowEnd,
			Limit:       f.config.PageSize,
		}
		pageNum := 0
		for {
			page, err := f.fetchPage(ctx, req, pageNum)
			if err != nil {
				yield(integration.RemoteOrder{}, err)
				return
			}
			pageNum++

			for _, order := range page.Orders {
				if !yield(order, nil) {
					return
				}
			}
			if !page.HasNext() {
				f.logger.Debug("Order window exhausted",
					zap.Time("window_start", windowStart),
					zap.Time("window_end", windowEnd),
					zap.Int("pages", pageNum),
				)
				return
			}
			req.Cursor = page.Next

			if err := f.sleep(ctx, f.config.PageDelay); err != nil {
				yield(integration.RemoteOrder{}, err)
				return
			}
		}
	}
}

// fetchPage requests one page, retrying it until it succeeds, fails permanently, or ctx ends
func (f *OrderFetcher) fetchPage(ctx context.Context, req integration.OrderPageRequest, pageNum int) (*integration.OrderPage, error) {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// A started request is allowed to finish after the cycle deadline.
		page, err := f.source.FetchOrderPage(context.WithoutCancel(ctx), req)
		if err == nil {
			if page == nil {
				page = &integration.OrderPage{}
			}
			return page, nil
		}

		if !retryablePageError(err) {
			f.logger.Error("Order page failed permanently",
				zap.Int("page", pageNum),
				zap.Int("attempt", attempt),
				zap.String("payload", integration.FailurePayload(err)),
			)
			return nil, err
		}

		delay := f.config.RetryBackoff
		if hint, ok := integration.RetryAfterHint(err); ok && hint > delay {
			delay = hint
		}
		reason := "transient"
		if errors.Is(err, integration.ErrRateLimited) {
			reason = "rate_limited"
		} else if errors.Is(err, integration.ErrInvalidResponse) {
			reason = "invalid_response"
		}
		f.recorder.RecordPageRetry(ctx, reason)
		f.logger.Warn("Order page failed, retrying same page",
			zap.Int("page", pageNum),
			zap.Int("attempt", attempt),
			zap.String("reason", reason),
			zap.Duration("backoff", delay),
			zap.String("payload", integration.FailurePayload(err)),
		)

		if err := f.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

func retryablePageError(err error) bool {
	if errors.Is(err, integration.ErrCredentialUnavailable) {
		return false
	}
	return integration.IsRetryable(err) || errors.Is(err, integration.ErrInvalidResponse)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
