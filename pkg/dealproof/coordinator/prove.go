package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/storacha/proofbuddy/pkg/dealproof/challenge"
	"github.com/storacha/proofbuddy/pkg/dealproof/outboard"
	"github.com/storacha/proofbuddy/pkg/dealproof/source"
	"github.com/storacha/proofbuddy/pkg/dealproof/types"
)

// proveWindow resolves the active window w. It returns a DealFailure when the
// deal cannot be proven at all, and any other error when the attempt should
// be repeated on a later tick.
func (c *Coordinator) proveWindow(ctx context.Context, w types.ProofWindow) (WindowResult, error) {
	block, ok, err := c.priorSubmission(ctx, w.Index)
	if err != nil {
		return WindowResult{}, fmt.Errorf("checking prior submission for window %d: %w", w.Index, err)
	}
	if ok {
		return WindowResult{Window: w, Outcome: OutcomeAlreadyRecorded, Block: block}, nil
	}

	hash, err := withRetry(ctx, c, w, "fetch block hash", func() (types.Hash, error) {
		ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
		return c.chain.BlockHash(ctx, w.TargetBlock)
	})
	if errors.Is(err, types.ErrWindowExpired) {
		c.missed(ctx, w, "block hash unavailable before expiry")
		return WindowResult{Window: w, Outcome: OutcomeMissed}, nil
	}
	if err != nil {
		c.metrics.proofsFailed.Inc(ctx, dealAttr(c.deal.ID), reasonAttr(err))
		return WindowResult{}, fmt.Errorf("fetching hash of block %s: %w", w.TargetBlock, err)
	}

	ch, err := challenge.Derive(hash, c.deal.FileSize)
	if err != nil {
		return WindowResult{}, c.fail(w.Index, err)
	}
	log.Debugw("derived challenge", "deal", c.deal.ID, "window", w, "challenge", ch)

	sw := c.metrics.generation.Start(dealAttr(c.deal.ID))
	artifact, err := c.generate(ctx, w, ch)
	if errors.Is(err, types.ErrWindowExpired) {
		c.missed(ctx, w, "expired while generating proof")
		return WindowResult{Window: w, Outcome: OutcomeMissed}, nil
	}
	if err != nil {
		c.metrics.proofsFailed.Inc(ctx, dealAttr(c.deal.ID), reasonAttr(err))
		return WindowResult{}, err
	}
	elapsed := sw.Stop(ctx)

	proof := types.Proof{
		DealID:      c.deal.ID,
		Window:      w.Index,
		TargetBlock: w.TargetBlock,
		Challenge:   ch,
		Data:        artifact,
	}
	log.Infow("submitting proof", "deal", c.deal.ID, "proof", proof, "generation", elapsed)

	block, err = withRetry(ctx, c, w, "submit proof", func() (types.BlockNum, error) {
		ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
		return c.chain.SubmitProof(ctx, proof)
	})
	switch {
	case errors.Is(err, types.ErrAlreadyRecorded):
		// An earlier attempt or another instance got there first.
		return WindowResult{Window: w, Outcome: OutcomeAlreadyRecorded, Block: block}, nil
	case errors.Is(err, types.ErrWindowExpired):
		c.missed(ctx, w, "expired before submission was accepted")
		return WindowResult{Window: w, Outcome: OutcomeMissed}, nil
	case err != nil:
		c.metrics.proofsFailed.Inc(ctx, dealAttr(c.deal.ID), reasonAttr(err))
		return WindowResult{}, fmt.Errorf("submitting proof for window %d: %w", w.Index, err)
	}

	c.metrics.proofsSubmitted.Inc(ctx, dealAttr(c.deal.ID))
	if c.recorder != nil {
		if err := c.recorder.RecordProof(ctx, proof, block, c.deal.Root); err != nil {
			// The proof is on chain, losing the audit copy is not fatal.
			log.Warnw("failed to record proof", "deal", c.deal.ID, "window", w.Index, "error", err)
		}
	}
	return WindowResult{Window: w, Outcome: OutcomeProven, Block: block, Proof: &proof}, nil
}

// generate produces a proof for ch that is known to verify against the deal's
// root.
func (c *Coordinator) generate(ctx context.Context, w types.ProofWindow, ch types.Challenge) (types.ProofArtifact, error) {
	src, err := withRetry(ctx, c, w, "open content", func() (source.Source, error) {
		return c.opener.Open(ctx, c.deal)
	})
	if err != nil {
		return nil, c.classify(w, err)
	}
	if src.Size() != c.deal.FileSize {
		return nil, c.fail(w.Index, types.NewErrorf(types.KindShortRead, "content is %d bytes, deal expects %d", src.Size(), c.deal.FileSize))
	}

	// A kept tree that fails to produce a verifying proof is rebuilt once.
	for attempt := 0; ; attempt++ {
		tree, err := c.trees.Tree(ctx, c.deal, src)
		if err != nil {
			return nil, c.classify(w, err)
		}
		root := tree.Root()
		if !c.deal.Root.IsZero() {
			root = c.deal.Root
		}

		artifact, err := withRetry(ctx, c, w, "extract slice", func() (types.ProofArtifact, error) {
			return outboard.GenerateRemoteSlice(src, tree.Reader(), ch.Offset, ch.Size)
		})
		if err != nil {
			return nil, c.classify(w, err)
		}
		if outboard.VerifySlice(artifact, root, ch.Offset, ch.Size) {
			return artifact, nil
		}

		forgetter, ok := c.trees.(Forgetter)
		if !ok || attempt > 0 {
			return nil, c.fail(w.Index, types.NewErrorf(types.KindProofVerificationFailed, "proof for %s does not verify against root %s", ch, root))
		}
		log.Warnw("proof from kept tree does not verify, rebuilding", "deal", c.deal.ID, "window", w.Index)
		forgetter.Forget(c.deal.ID)
	}
}

// classify turns permanent content or tree errors into a deal failure and
// passes everything else through.
func (c *Coordinator) classify(w types.ProofWindow, err error) error {
	switch {
	case errors.Is(err, types.ErrWindowExpired), types.IsRetryable(err):
		return err
	case errors.Is(err, context.Canceled):
		return err
	default:
		return c.fail(w.Index, err)
	}
}

// withRetry runs op until it succeeds, fails permanently or the window
// expires. Only retryable errors are retried. Once the chain head reaches the
// window's expiry the result is ErrWindowExpired.
func withRetry[T any](ctx context.Context, c *Coordinator, w types.ProofWindow, what string, op func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retry.Initial
	b.MaxInterval = c.retry.Max

	return backoff.Retry(ctx, func() (T, error) {
		var zero T
		head, err := c.head(ctx)
		if err != nil {
			if types.IsRetryable(err) {
				return zero, err
			}
			return zero, backoff.Permanent(err)
		}
		if head >= w.ExpiryBlock {
			return zero, backoff.Permanent(fmt.Errorf("%s at block %s: %w", what, head, types.ErrWindowExpired))
		}

		v, err := op()
		if err != nil && !types.IsRetryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(b),
		// zero disables the elapsed limit, leaving expiry as the only bound
		backoff.WithMaxElapsedTime(c.retry.MaxElapsed),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Debugw("retrying", "op", what, "deal", c.deal.ID, "window", w.Index, "in", next, "error", err)
		}),
	)
}
