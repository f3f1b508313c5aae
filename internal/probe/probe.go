// Package probe drives verification exchanges against the streaming API:
// one-shot runs, session turns with linking and rollback, budget scaling
// sweeps, and signature analysis.
package probe

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/hicap-labs/thinkprobe/internal/api"
	"github.com/hicap-labs/thinkprobe/internal/chat"
	"github.com/hicap-labs/thinkprobe/internal/logging"
	"github.com/hicap-labs/thinkprobe/internal/stream"
)

// DefaultTimeout bounds one full exchange, connection through stream end.
const DefaultTimeout = 120 * time.Second

// Indicator shows activity while a request is in flight. Start returns a
// stop handle scoped to that one exchange; stop must be idempotent, and the
// engine releases it on every exit path so no indicator outlives its
// request.
type Indicator interface {
	Start(message string) (stop func())
}

// Options configures one exchange. Sink and Indicator are optional; the
// engine behaves identically without them.
type Options struct {
	Model     string
	Budget    int
	MaxTokens int
	Timeout   time.Duration
	Sink      stream.Sink
	Indicator Indicator
}

// Exchange performs one request/stream cycle and folds the stream into a
// TurnResult. Every termination path returns the partially filled result;
// Err is set only on abnormal ones. No retries: a retry is a new call.
func Exchange(ctx context.Context, client *api.Client, msgs []chat.Message, opts Options) stream.TurnResult {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	acc := stream.NewAccumulator(opts.Budget, opts.Sink)

	stop := func() {}
	if opts.Indicator != nil {
		stop = opts.Indicator.Start("")
	}
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	st, err := client.Stream(ctx, api.Request{
		Model:        opts.Model,
		MaxTokens:    opts.MaxTokens,
		BudgetTokens: opts.Budget,
		Messages:     msgs,
	})
	// Headers have arrived or the request failed; the indicator ends here
	// either way.
	stop()
	if err != nil {
		return acc.Result(err)
	}
	defer st.Close()

	log := logging.With("probe")
	for {
		ev, rerr := st.Next()
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return acc.Result(nil)
			}
			return acc.Result(api.Classify(rerr, timeout))
		}
		if !acc.Apply(ev) {
			res := acc.Result(nil)
			log.Debug().
				Int("events", res.EventCount).
				Bool("passed", res.Passed).
				Msg("stream ended")
			return res
		}
	}
}

// RunTurn submits userText to the session, runs the exchange with the full
// history, and links on success or rolls back on failure. The TurnResult
// comes back on both paths so callers can inspect partial content after a
// failure; the returned error is the turn-level outcome.
func RunTurn(ctx context.Context, client *api.Client, sess *chat.Session, userText string, opts Options) (stream.TurnResult, error) {
	if err := sess.Submit(userText); err != nil {
		return stream.TurnResult{}, err
	}

	res := Exchange(ctx, client, sess.Messages(), opts)
	if res.Err != nil {
		if rbErr := sess.Rollback(); rbErr != nil {
			return res, rbErr
		}
		return res, res.Err
	}
	if err := sess.Link(res); err != nil {
		return res, err
	}
	return res, nil
}
