package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/trickstertwo/xlog4"
)

// loadPlan drives generate.
type loadPlan struct {
	Producers int
	// Rate is events per second per producer; zero means unthrottled.
	Rate     float64
	Duration time.Duration
	Loggers  []string
}

type loadResult struct {
	Events  uint64
	Errors  uint64
	Elapsed time.Duration
}

// generate logs from plan.Producers goroutines until ctx ends or
// plan.Duration elapses. Each producer declares its own thread identity and
// cycles through plan.Loggers and the standard levels.
func generate(ctx context.Context, lctx *xlog4.LoggerContext, plan loadPlan) loadResult {
	if plan.Producers <= 0 {
		plan.Producers = 1
	}
	if len(plan.Loggers) == 0 {
		plan.Loggers = []string{"load"}
	}
	if plan.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, plan.Duration)
		defer cancel()
	}
	levels := []xlog4.Level{xlog4.LevelTrace, xlog4.LevelDebug, xlog4.LevelInfo, xlog4.LevelWarn, xlog4.LevelError}

	var events, failures atomic.Uint64
	var wg sync.WaitGroup
	start := time.Now()
	for p := 0; p < plan.Producers; p++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			pctx := xlog4.WithThread(ctx, xlog4.ThreadInfo{ID: int64(id), Name: fmt.Sprintf("producer-%d", id)})
			var lim *rate.Limiter
			if plan.Rate > 0 {
				lim = rate.NewLimiter(rate.Limit(plan.Rate), 1)
			}
			for seq := 0; ; seq++ {
				if lim != nil {
					if err := lim.Wait(pctx); err != nil {
						return
					}
				} else if pctx.Err() != nil {
					return
				}
				l := lctx.Logger(plan.Loggers[seq%len(plan.Loggers)])
				lvl := levels[seq%len(levels)]
				err := l.Log(pctx, lvl, "synthetic event",
					xlog4.Int("producer", id),
					xlog4.Int("seq", seq),
				)
				if err != nil && !errors.Is(err, context.Canceled) {
					failures.Add(1)
				}
				events.Add(1)
			}
		}(p)
	}
	wg.Wait()
	return loadResult{Events: events.Load(), Errors: failures.Load(), Elapsed: time.Since(start)}
}
