// Package prover runs deal coordinators for many deals against one chain
// connection and one content store.
package prover

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/samber/lo"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/storacha/proofbuddy/pkg/dealproof/chain"
	"github.com/storacha/proofbuddy/pkg/dealproof/content"
	"github.com/storacha/proofbuddy/pkg/dealproof/coordinator"
	"github.com/storacha/proofbuddy/pkg/dealproof/source"
	"github.com/storacha/proofbuddy/pkg/dealproof/types"
	"github.com/storacha/proofbuddy/pkg/dealproof/window"
)

var log = logging.Logger("dealproof/prover")

const defaultMaxConcurrent = 8

var ErrDealExists = errors.New("deal already added")

type config struct {
	maxConcurrent int
	coordinator   []coordinator.Option
	trees         coordinator.TreeSource
	recorder      coordinator.Recorder
	closers       []io.Closer
}

type Option func(*config)

// WithMaxConcurrent bounds how many deals are ticked at once.
func WithMaxConcurrent(n int) Option {
	return func(c *config) {
		c.maxConcurrent = n
	}
}

// WithCoordinatorOptions are applied to every coordinator the service creates.
func WithCoordinatorOptions(opts ...coordinator.Option) Option {
	return func(c *config) {
		c.coordinator = append(c.coordinator, opts...)
	}
}

// WithTrees shares one tree source, typically a TreeCache, across all deals.
func WithTrees(trees coordinator.TreeSource) Option {
	return func(c *config) {
		c.trees = trees
	}
}

func WithRecorder(r coordinator.Recorder) Option {
	return func(c *config) {
		c.recorder = r
	}
}

// WithCloser registers resources released by Close.
func WithCloser(closers ...io.Closer) Option {
	return func(c *config) {
		c.closers = append(c.closers, closers...)
	}
}

// Result is the outcome of ticking one deal.
type Result struct {
	Deal   types.DealID
	Report coordinator.Report
	Err    error
}

// Service drives the proof lifecycle of a set of deals.
type Service struct {
	chain  chain.API
	opener coordinator.Opener
	cfg    config
	// sem bounds the ticks started by HandleHead.
	sem *semaphore.Weighted
	wg  sync.WaitGroup

	mu       sync.Mutex
	deals    map[types.DealID]*coordinator.Coordinator
	inFlight map[types.DealID]struct{}
	closed   bool
}

func New(api chain.API, opener coordinator.Opener, opts ...Option) *Service {
	cfg := config{maxConcurrent: defaultMaxConcurrent}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.maxConcurrent <= 0 {
		cfg.maxConcurrent = defaultMaxConcurrent
	}
	return &Service{
		chain:  api,
		opener: opener,
		cfg:      cfg,
		sem:      semaphore.NewWeighted(int64(cfg.maxConcurrent)),
		deals:    make(map[types.DealID]*coordinator.Coordinator),
		inFlight: make(map[types.DealID]struct{}),
	}
}

// AddDeal starts tracking deal.
func (s *Service) AddDeal(deal types.Deal) error {
	opts := slices.Clone(s.cfg.coordinator)
	if s.cfg.trees != nil {
		opts = append(opts, coordinator.WithTrees(s.cfg.trees))
	}
	if s.cfg.recorder != nil {
		opts = append(opts, coordinator.WithRecorder(s.cfg.recorder))
	}
	c, err := coordinator.New(deal, s.chain, s.opener, opts...)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("prover is closed")
	}
	if _, ok := s.deals[deal.ID]; ok {
		return fmt.Errorf("deal %s: %w", deal.ID, ErrDealExists)
	}
	s.deals[deal.ID] = c
	log.Infow("tracking deal", "deal", deal.ID, "timeline", deal.Timeline, "size", deal.FileSize, "root", deal.Root)
	return nil
}

// AddDeals looks up each id and adds it.
func (s *Service) AddDeals(ctx context.Context, reader chain.DealReader, ids ...types.DealID) error {
	var errs error
	for _, id := range ids {
		deal, err := reader.GetDeal(ctx, id)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("looking up deal %s: %w", id, err))
			continue
		}
		errs = multierr.Append(errs, s.AddDeal(deal))
	}
	return errs
}

// RemoveDeal stops tracking a deal.
func (s *Service) RemoveDeal(id types.DealID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.deals, id)
	if f, ok := s.cfg.trees.(coordinator.Forgetter); ok {
		f.Forget(id)
	}
}

// Deals returns the tracked deal ids in ascending order.
func (s *Service) Deals() []types.DealID {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := lo.Keys(s.deals)
	slices.Sort(ids)
	return ids
}

func (s *Service) Coordinator(id types.DealID) (*coordinator.Coordinator, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.deals[id]
	return c, ok
}

// TickAll ticks every deal that has work at head, at most maxConcurrent at a
// time. Deals that are done, failed, or not started at head are skipped.
// Results are in deal id order. The returned error combines the non-terminal
// failures; terminal deal failures are only reported in the results.
func (s *Service) TickAll(ctx context.Context, head types.BlockNum) ([]Result, error) {
	s.mu.Lock()
	ids := lo.Keys(s.deals)
	slices.Sort(ids)
	active := lo.FilterMap(ids, func(id types.DealID, _ int) (*coordinator.Coordinator, bool) {
		c := s.deals[id]
		return c, needsTick(c, head)
	})
	s.mu.Unlock()

	results := make([]Result, len(active))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.maxConcurrent)
	for i, c := range active {
		g.Go(func() error {
			report, err := c.Tick(gctx)
			results[i] = Result{Deal: c.Deal().ID, Report: report, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	var errs error
	for _, r := range results {
		if r.Err != nil && !types.IsDealFailure(r.Err) {
			errs = multierr.Append(errs, fmt.Errorf("deal %s: %w", r.Deal, r.Err))
		}
	}
	log.Debugw("ticked deals", "head", head, "deals", len(active), "errors", len(multierr.Errors(errs)))
	return results, errs
}

func needsTick(c *coordinator.Coordinator, head types.BlockNum) bool {
	if c.Done() || c.Failure() != nil {
		return false
	}
	state, err := window.Current(c.Deal().Timeline, head)
	if err != nil {
		return true
	}
	return state.Status != types.StatusFuture
}

// HandleHead is a chainsched.UpdateFunc. It starts a tick for every deal with
// work at head and returns without waiting, so a deal stuck retrying holds up
// neither head polling nor the other deals. A deal whose previous tick is
// still running is skipped. The ticks run under ctx, at most maxConcurrent at
// a time.
func (s *Service) HandleHead(ctx context.Context, _, head types.BlockNum) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	ids := lo.Keys(s.deals)
	slices.Sort(ids)
	var started, busy int
	for _, id := range ids {
		c := s.deals[id]
		if !needsTick(c, head) {
			continue
		}
		if _, ok := s.inFlight[id]; ok {
			busy++
			continue
		}
		s.inFlight[id] = struct{}{}
		s.wg.Add(1)
		started++
		go s.tickInBackground(ctx, c)
	}
	log.Debugw("started deal ticks", "head", head, "started", started, "in_flight", busy)
	return nil
}

func (s *Service) tickInBackground(ctx context.Context, c *coordinator.Coordinator) {
	defer s.wg.Done()
	id := c.Deal().ID
	defer func() {
		s.mu.Lock()
		delete(s.inFlight, id)
		s.mu.Unlock()
	}()

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer s.sem.Release(1)

	report, err := c.Tick(ctx)
	switch {
	case types.IsDealFailure(err):
		log.Errorw("deal can no longer be proven", "deal", id, "error", err)
	case err != nil:
		log.Warnw("deal tick failed, retrying on a later head", "deal", id, "head", report.Head, "error", err)
	default:
		log.Debugw("ticked deal", "deal", id, "head", report.Head, "resolved", len(report.Resolved), "done", report.Done)
	}
}

// Close waits for ticks started by HandleHead, then releases registered
// resources. Deals can no longer be added.
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()

	var errs error
	for _, c := range s.cfg.closers {
		errs = multierr.Append(errs, c.Close())
	}
	return errs
}

// ContentOpener opens deal content from a content store, bounding each range
// fetch by callTimeout.
func ContentOpener(store *content.Store, callTimeout time.Duration) coordinator.Opener {
	return coordinator.OpenerFunc(func(ctx context.Context, deal types.Deal) (source.Source, error) {
		var opts []source.RemoteOption
		if callTimeout > 0 {
			opts = append(opts, source.WithCallTimeout(callTimeout))
		}
		src, err := store.Open(ctx, deal.Content, opts...)
		if err != nil {
			return nil, err
		}
		return src, nil
	})
}
