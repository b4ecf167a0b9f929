// Package coordinator drives the proof lifecycle of a single deal: it follows
// the chain head, and for every proof window derives the challenge from the
// window's block hash, builds the slice proof from the deal's content and
// outboard tree, checks it, and submits it.
//
// A Coordinator is driven by calling Tick, typically once per new chain head.
// Tick is idempotent: a window that already has an accepted proof on chain
// is never submitted again, and windows that closed without one are recorded
// as missed exactly once.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/raulk/clock"
	"go.uber.org/zap/zapcore"

	"github.com/storacha/proofbuddy/pkg/dealproof/chain"
	"github.com/storacha/proofbuddy/pkg/dealproof/source"
	"github.com/storacha/proofbuddy/pkg/dealproof/types"
	"github.com/storacha/proofbuddy/pkg/dealproof/window"
)

var log = logging.Logger("dealproof/coordinator")

const (
	defaultRetryInitial = 500 * time.Millisecond
	defaultRetryMax     = 30 * time.Second
	defaultCallTimeout  = time.Minute
)

// Opener gives random access to a deal's content.
type Opener interface {
	Open(ctx context.Context, deal types.Deal) (source.Source, error)
}

// OpenerFunc adapts a function to an Opener.
type OpenerFunc func(ctx context.Context, deal types.Deal) (source.Source, error)

func (f OpenerFunc) Open(ctx context.Context, deal types.Deal) (source.Source, error) {
	return f(ctx, deal)
}

// Recorder receives every proof accepted on chain.
type Recorder interface {
	RecordProof(ctx context.Context, proof types.Proof, block types.BlockNum, root types.RootDigest) error
}

// Outcome is how a window was resolved.
type Outcome int

const (
	// OutcomeProven means this coordinator's submission was accepted.
	OutcomeProven Outcome = iota + 1
	// OutcomeAlreadyRecorded means the chain already held a proof for the
	// window, from an earlier run or another instance.
	OutcomeAlreadyRecorded
	// OutcomeMissed means the window closed without an accepted proof.
	OutcomeMissed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeProven:
		return "proven"
	case OutcomeAlreadyRecorded:
		return "already-recorded"
	case OutcomeMissed:
		return "missed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// WindowResult is the resolution of one window.
type WindowResult struct {
	Window  types.ProofWindow
	Outcome Outcome
	// Block is the inclusion block of the window's proof. Zero when missed.
	Block types.BlockNum
	// Proof is set when this coordinator submitted the accepted proof.
	Proof *types.Proof
}

func (r WindowResult) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddUint64("window", r.Window.Index)
	enc.AddString("outcome", r.Outcome.String())
	if r.Block != 0 {
		enc.AddUint64("block", r.Block.Uint64())
	}
	return nil
}

// Report describes what a single Tick did.
type Report struct {
	Head  types.BlockNum
	State types.WindowState
	// Resolved lists the windows resolved during this tick, in window order.
	Resolved []WindowResult
	// Done is true once every window of the deal has been resolved.
	Done bool
}

type RetryConfig struct {
	// Initial is the first backoff interval.
	Initial time.Duration
	// Max caps the backoff interval.
	Max time.Duration
	// MaxElapsed bounds the total time spent retrying one call within a tick.
	// Retrying also stops once the window expires. Zero means no bound other
	// than expiry.
	MaxElapsed time.Duration
}

type Option func(*Coordinator)

func WithClock(clk clock.Clock) Option {
	return func(c *Coordinator) {
		c.clock = clk
	}
}

func WithRetry(cfg RetryConfig) Option {
	return func(c *Coordinator) {
		c.retry = cfg
	}
}

// WithCallTimeout bounds each individual chain or content call.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		c.callTimeout = d
	}
}

// WithTrees sets how outboard trees are obtained. The default builds the tree
// from the content on every proof.
func WithTrees(trees TreeSource) Option {
	return func(c *Coordinator) {
		c.trees = trees
	}
}

func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) {
		c.recorder = r
	}
}

// Coordinator proves one deal. It is safe for concurrent use; concurrent Ticks
// are serialized.
type Coordinator struct {
	deal     types.Deal
	count    uint64
	chain    chain.API
	opener   Opener
	trees    TreeSource
	recorder Recorder

	clock       clock.Clock
	retry       RetryConfig
	callTimeout time.Duration
	metrics     *metrics

	mu sync.Mutex
	// next is the lowest window not yet resolved.
	next    uint64
	results []WindowResult
	failure error
}

func New(deal types.Deal, api chain.API, opener Opener, opts ...Option) (*Coordinator, error) {
	if err := deal.Timeline.Validate(); err != nil {
		return nil, fmt.Errorf("deal %s: %w", deal.ID, err)
	}
	if deal.FileSize == 0 {
		return nil, fmt.Errorf("deal %s: %w", deal.ID, types.ErrEmptyContent)
	}
	count, err := window.Count(deal.Timeline)
	if err != nil {
		return nil, fmt.Errorf("deal %s: %w", deal.ID, err)
	}
	c := &Coordinator{
		deal:   deal,
		count:  count,
		chain:  api,
		opener: opener,
		trees:  Builder{},
		clock:  clock.New(),
		retry: RetryConfig{
			Initial: defaultRetryInitial,
			Max:     defaultRetryMax,
		},
		callTimeout: defaultCallTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.metrics = newMetrics(c.clock)
	return c, nil
}

func (c *Coordinator) Deal() types.Deal {
	return c.deal
}

// Results returns the windows resolved so far, in window order.
func (c *Coordinator) Results() []WindowResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]WindowResult(nil), c.results...)
}

// Done reports whether every window of the deal has been resolved.
func (c *Coordinator) Done() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.next >= c.count
}

// Failure returns the terminal failure of the deal, if any.
func (c *Coordinator) Failure() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failure
}

// Tick brings the deal up to date with the current chain head. Windows that
// closed since the last tick are resolved from the chain's record, and the
// active window, if unresolved, is proven and submitted.
//
// A transient failure is returned as is and the same work is retried on the
// next tick. A failure that makes the deal unprovable is returned as a
// *types.DealFailure, and every later Tick returns it again.
func (c *Coordinator) Tick(ctx context.Context) (Report, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var report Report
	if c.failure != nil {
		return report, c.failure
	}

	head, err := c.head(ctx)
	if err != nil {
		return report, fmt.Errorf("reading chain head: %w", err)
	}
	report.Head = head

	state, err := window.Current(c.deal.Timeline, head)
	if err != nil {
		return report, err
	}
	report.State = state

	// Every window below limit has expired at head.
	limit := uint64(0)
	switch state.Status {
	case types.StatusActive:
		limit = state.Window.Index
	case types.StatusPast:
		limit = c.count
	}

	for c.next < limit {
		res, err := c.resolveExpired(ctx, c.next)
		if err != nil {
			return report, err
		}
		c.resolve(&report, res)
	}

	if state.Status == types.StatusActive && c.next == state.Window.Index {
		res, err := c.proveWindow(ctx, state.Window)
		if err != nil {
			if types.IsDealFailure(err) {
				c.failure = err
				c.metrics.dealFailures.Inc(ctx, dealAttr(c.deal.ID))
				log.Errorw("deal can no longer be proven", "deal", c.deal.ID, "window", state.Window, "error", err)
			}
			return report, err
		}
		c.resolve(&report, res)
	}

	report.Done = c.next >= c.count
	c.metrics.pendingWindows.Record(ctx, int64(c.count-c.next), dealAttr(c.deal.ID))
	return report, nil
}

func (c *Coordinator) resolve(report *Report, res WindowResult) {
	c.results = append(c.results, res)
	c.next = res.Window.Index + 1
	report.Resolved = append(report.Resolved, res)
	log.Infow("resolved proof window", "deal", c.deal.ID, "result", res)
}

// resolveExpired settles a window that closed while nobody was looking: it
// is either already on chain or missed.
func (c *Coordinator) resolveExpired(ctx context.Context, idx uint64) (WindowResult, error) {
	w, err := window.Window(c.deal.Timeline, idx)
	if err != nil {
		return WindowResult{}, err
	}
	block, ok, err := c.priorSubmission(ctx, idx)
	if err != nil {
		return WindowResult{}, fmt.Errorf("checking prior submission for window %d: %w", idx, err)
	}
	if ok {
		return WindowResult{Window: w, Outcome: OutcomeAlreadyRecorded, Block: block}, nil
	}
	c.missed(ctx, w, "expired before proving")
	return WindowResult{Window: w, Outcome: OutcomeMissed}, nil
}

func (c *Coordinator) missed(ctx context.Context, w types.ProofWindow, reason string) {
	c.metrics.windowsMissed.Inc(ctx, dealAttr(c.deal.ID))
	log.Warnw("missed proof window", "deal", c.deal.ID, "window", w, "reason", reason)
}

func (c *Coordinator) head(ctx context.Context) (types.BlockNum, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()
	return c.chain.CurrentBlockNumber(ctx)
}

func (c *Coordinator) priorSubmission(ctx context.Context, idx uint64) (types.BlockNum, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()
	return c.chain.PriorSubmission(ctx, c.deal.ID, idx)
}

func (c *Coordinator) fail(idx uint64, err error) error {
	var f *types.DealFailure
	if errors.As(err, &f) {
		return err
	}
	return &types.DealFailure{DealID: c.deal.ID, Window: idx, Err: err}
}
