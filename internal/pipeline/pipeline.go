// Package pipeline streams documents through a sentence model in batches
// on a fixed number of workers, delivering results in input order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	sentsplit "github.com/jamesainslie/go-sentsplit"
)

// DefaultBatchSize is used when Options.BatchSize is not positive.
const DefaultBatchSize = 1000

// Source yields documents one at a time and returns io.EOF after the last.
type Source interface {
	Next() (string, error)
}

// Doc is one segmented document.
type Doc struct {
	// Index is the 0-based position of the document in the source.
	Index int
	Text  string
	Sents []sentsplit.Span
}

// Options controls batching and parallelism.
type Options struct {
	// BatchSize is the number of documents handed to a worker at once.
	BatchSize int
	// Workers is the number of concurrent segmentation workers.
	Workers int
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	return o
}

type batch struct {
	first int
	texts []string
	docs  []Doc
	err   error
	done  chan struct{}
}

// Pipe reads every document from src, segments it with model and calls
// sink once per document in source order. sink runs on the calling
// goroutine. An error from src or model is returned when its document's
// turn comes, after every earlier document has reached sink. An error from
// sink or ctx stops the pipeline at once.
func Pipe(ctx context.Context, src Source, model sentsplit.Model, opts Options, sink func(Doc) error) error {
	opts = opts.withDefaults()

	// Cancelled on the first failure: no further documents are read and
	// batches dequeued afterwards are skipped. Batches ahead of the failure
	// still segment under ctx.
	readCtx, stopReading := context.WithCancel(ctx)
	defer stopReading()

	var g errgroup.Group
	jobs := make(chan *batch)
	// Bounds the batches in flight and records their order.
	order := make(chan *batch, 2*opts.Workers)

	g.Go(func() error {
		defer close(jobs)
		defer close(order)
		produce(readCtx, src, opts.BatchSize, order, jobs)
		return nil
	})

	for range opts.Workers {
		g.Go(func() error {
			for b := range jobs {
				if err := readCtx.Err(); err != nil {
					b.err = err
				} else {
					b.docs, b.err = segment(ctx, model, b)
				}
				if b.err != nil {
					stopReading()
				}
				close(b.done)
			}
			return nil
		})
	}

	err := emit(ctx, order, sink)
	stopReading()
	_ = g.Wait()
	return err
}

// produce queues batches in source order. Every batch sent on order is
// eventually marked done; a read error travels as a final failed batch.
func produce(ctx context.Context, src Source, size int, order, jobs chan<- *batch) {
	next := 0
	for {
		b := newBatch(next)
		var readErr error
		for len(b.texts) < size {
			text, err := src.Next()
			if err != nil {
				readErr = err
				break
			}
			b.texts = append(b.texts, text)
		}

		if len(b.texts) > 0 {
			select {
			case order <- b:
			case <-ctx.Done():
				return
			}
			select {
			case jobs <- b:
			case <-ctx.Done():
				b.fail(ctx.Err())
				return
			}
			next += len(b.texts)
		}

		if errors.Is(readErr, io.EOF) {
			return
		}
		if readErr != nil {
			failed := newBatch(next)
			failed.fail(readErr)
			select {
			case order <- failed:
			case <-ctx.Done():
			}
			return
		}
	}
}

func newBatch(first int) *batch {
	return &batch{first: first, done: make(chan struct{})}
}

func (b *batch) fail(err error) {
	b.err = err
	close(b.done)
}

func segment(ctx context.Context, model sentsplit.Model, b *batch) ([]Doc, error) {
	docs := make([]Doc, len(b.texts))
	for i, text := range b.texts {
		sents, err := model.Sentences(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", b.first+i+1, err)
		}
		docs[i] = Doc{Index: b.first + i, Text: text, Sents: sents}
	}
	return docs, nil
}

func emit(ctx context.Context, order <-chan *batch, sink func(Doc) error) error {
	for b := range order {
		select {
		case <-b.done:
		case <-ctx.Done():
			return ctx.Err()
		}
		if b.err != nil {
			return b.err
		}
		for _, d := range b.docs {
			if err := sink(d); err != nil {
				return err
			}
		}
	}
	return ctx.Err()
}
