package chainsched_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/raulk/clock"
	"github.com/stretchr/testify/require"

	"github.com/storacha/proofbuddy/pkg/dealproof/chainsched"
	"github.com/storacha/proofbuddy/pkg/dealproof/types"
)

type fakeHead struct {
	mu   sync.Mutex
	head types.BlockNum
	err  error
}

func (f *fakeHead) CurrentBlockNumber(ctx context.Context) (types.BlockNum, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.head, f.err
}

func (f *fakeHead) set(n types.BlockNum, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.head, f.err = n, err
}

type update struct {
	prev, head types.BlockNum
}

func TestPoll(t *testing.T) {
	ctx := context.Background()
	api := &fakeHead{head: 10}
	s := chainsched.New(api, chainsched.WithClock(clock.NewMock()))

	var got []update
	require.NoError(t, s.AddHandler(func(ctx context.Context, prev, head types.BlockNum) error {
		got = append(got, update{prev, head})
		return nil
	}))
	require.NoError(t, s.AddHandler(func(ctx context.Context, prev, head types.BlockNum) error {
		return errors.New("handler errors are logged, not fatal")
	}))

	s.Poll(ctx)
	s.Poll(ctx)
	api.set(12, nil)
	s.Poll(ctx)
	api.set(0, errors.New("rpc down"))
	s.Poll(ctx)
	// reorg to a lower height is ignored
	api.set(11, nil)
	s.Poll(ctx)

	require.Equal(t, []update{{0, 10}, {10, 12}}, got)
	head, ok := s.Head()
	require.True(t, ok)
	require.Equal(t, types.BlockNum(12), head)
}

func TestRun(t *testing.T) {
	api := &fakeHead{head: 1}
	mock := clock.NewMock()
	s := chainsched.New(api, chainsched.WithClock(mock), chainsched.WithPollInterval(time.Second))

	heads := make(chan types.BlockNum, 10)
	require.NoError(t, s.AddHandler(func(ctx context.Context, prev, head types.BlockNum) error {
		heads <- head
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Equal(t, types.BlockNum(1), <-heads)
	require.Error(t, s.AddHandler(func(ctx context.Context, prev, head types.BlockNum) error { return nil }))

	api.set(2, nil)
	require.Eventually(t, func() bool {
		mock.Add(time.Second)
		select {
		case h := <-heads:
			return h == 2
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
