// Package chainsched polls the chain head and fans new heights out to
// registered handlers.
package chainsched

import (
	"context"
	"sync"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/raulk/clock"
	"golang.org/x/xerrors"

	"github.com/storacha/proofbuddy/pkg/dealproof/types"
)

var log = logging.Logger("dealproof/chainsched")

const (
	DefaultPollInterval = 12 * time.Second
	// if the head does not advance within this time frame something is
	// probably wrong with the endpoint
	DefaultStallTimeout = 5 * time.Minute
)

type HeadReader interface {
	CurrentBlockNumber(ctx context.Context) (types.BlockNum, error)
}

// UpdateFunc is called with the previously seen head (zero on the first
// call) and the new one.
type UpdateFunc func(ctx context.Context, prev, head types.BlockNum) error

type Scheduler struct {
	api HeadReader

	callbacks    []UpdateFunc
	lk           sync.RWMutex
	started      bool
	clock        clock.Clock
	pollInterval time.Duration
	stallTimeout time.Duration

	last     types.BlockNum
	seen     bool
	lastMove time.Time
}

type Option func(*Scheduler)

func WithClock(clock clock.Clock) Option {
	return func(s *Scheduler) {
		s.clock = clock
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		s.pollInterval = d
	}
}

func WithStallTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		s.stallTimeout = d
	}
}

func New(api HeadReader, opts ...Option) *Scheduler {
	s := &Scheduler{
		api:          api,
		clock:        clock.New(),
		pollInterval: DefaultPollInterval,
		stallTimeout: DefaultStallTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) AddHandler(ch UpdateFunc) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	if s.started {
		return xerrors.Errorf("cannot add handler after start")
	}
	s.callbacks = append(s.callbacks, ch)
	return nil
}

// Run polls until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	s.lk.Lock()
	s.started = true
	s.lk.Unlock()

	ticker := s.clock.Ticker(s.pollInterval)
	defer ticker.Stop()
	s.lastMove = s.clock.Now()

	s.Poll(ctx)
	for {
		select {
		case <-ticker.C:
			s.Poll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Poll reads the head once and notifies handlers if it advanced. It must not
// be called concurrently with itself or Run.
func (s *Scheduler) Poll(ctx context.Context) {
	head, err := s.api.CurrentBlockNumber(ctx)
	if err != nil {
		log.Errorw("reading chain head", "error", err)
		return
	}
	if s.seen && head <= s.last {
		if since := s.clock.Since(s.lastMove); since > s.stallTimeout {
			log.Warnw("chain head has not advanced", "head", head, "since", since)
		}
		return
	}
	prev := s.last
	s.last, s.seen = head, true
	s.lastMove = s.clock.Now()
	log.Debugw("chain head advanced", "prev", prev, "head", head)
	s.update(ctx, prev, head)
}

// Head returns the last head seen.
func (s *Scheduler) Head() (types.BlockNum, bool) {
	return s.last, s.seen
}

func (s *Scheduler) update(ctx context.Context, prev, head types.BlockNum) {
	s.lk.RLock()
	callbacksCopy := make([]UpdateFunc, len(s.callbacks))
	copy(callbacksCopy, s.callbacks)
	s.lk.RUnlock()

	for _, ch := range callbacksCopy {
		if err := ch(ctx, prev, head); err != nil {
			log.Errorw("handling head update", "head", head, "error", err)
		}
	}
}
