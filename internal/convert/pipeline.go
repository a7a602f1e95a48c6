package convert

import (
	"context"

	"golang.org/x/sync/errgroup"

	"gitlab.com/vcs-tools/subconvert/internal/svndump"
)

// pipelineDepth bounds the parse-ahead queue between the reader goroutine
// and the applier.
const pipelineDepth = 256

// Pipeline overlaps dump parsing with node application: a producer goroutine
// drives the reader and pushes cloned nodes onto a bounded channel; the
// consumer drains Nodes until it closes. Ordering is exactly the stream
// order.
type Pipeline struct {
	ch     chan *svndump.Node
	group  *errgroup.Group
	cancel context.CancelFunc
}

// NewPipeline starts the producer. Nodes below start are filtered out; the
// first node of revision cutoff or later ends the stream cleanly, so no node
// of the cutoff revision itself is delivered. Pass -1 to disable either
// bound.
func NewPipeline(r *svndump.Reader, ignoreText, verify bool, start, cutoff int) *Pipeline {
	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)

	p := &Pipeline{
		ch:     make(chan *svndump.Node, pipelineDepth),
		group:  group,
		cancel: cancel,
	}

	group.Go(func() error {
		defer close(p.ch)

		for {
			ok, err := r.ReadNext(ignoreText, verify)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}

			node := r.CurrNode()
			if cutoff >= 0 && node.Rev >= cutoff {
				return nil
			}
			if start >= 0 && node.Rev < start {
				continue
			}

			select {
			case p.ch <- node.Clone():
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	return p
}

// Nodes returns the stream; it closes when the producer finishes or fails.
func (p *Pipeline) Nodes() <-chan *svndump.Node {
	return p.ch
}

// Wait returns the producer's error after Nodes has been drained.
func (p *Pipeline) Wait() error {
	err := p.group.Wait()
	p.cancel()
	return err
}

// Abort stops the producer early (consumer-side failure) and drains the
// queue so the goroutine can exit.
func (p *Pipeline) Abort() {
	p.cancel()
	for range p.ch {
	}
	_ = p.group.Wait()
}
