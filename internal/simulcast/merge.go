// Package simulcast fans several chat sources into one event stream.
package simulcast

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"simulchat/internal/message"
)

// Streamer is one platform connection: it delivers messages on the channel
// until the chat ends or ctx is cancelled, then returns. A nil return means
// the chat ended normally.
type Streamer interface {
	Connect(ctx context.Context, messages chan<- *message.Message) error
}

// SourceID names a source within a merged stream.
type SourceID struct {
	Platform message.Platform
	Name     string
}

func (id SourceID) String() string {
	return id.Platform.String() + "/" + id.Name
}

// Source pairs an identity with its connection.
type Source struct {
	ID       SourceID
	Streamer Streamer
}

// Event is one item of a merged stream: a message from some source, or that
// source's terminal error. A source emits at most one Err event, always last.
type Event struct {
	Source  SourceID
	Seq     uint64
	Message *message.Message
	Err     error
}

// Merge runs every source concurrently and interleaves their output on a
// single channel. Messages from the same source keep their relative order;
// across sources the interleaving is whichever source is ready first. The
// returned channel is closed once every source has finished. Seq is a global
// emission counter, so consumers can reconstruct arrival order after
// buffering.
func Merge(ctx context.Context, sources ...Source) <-chan Event {
	out := make(chan Event)
	var seq atomic.Uint64

	var wg sync.WaitGroup
	for _, src := range sources {
		wg.Add(1)
		go func(src Source) {
			defer wg.Done()
			runSource(ctx, src, out, &seq)
		}(src)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

func runSource(ctx context.Context, src Source, out chan<- Event, seq *atomic.Uint64) {
	msgs := make(chan *message.Message, 16)
	errc := make(chan error, 1)
	go func() {
		errc <- src.Streamer.Connect(ctx, msgs)
		close(msgs)
	}()

	for m := range msgs {
		ev := Event{Source: src.ID, Seq: seq.Add(1), Message: m}
		select {
		case out <- ev:
		case <-ctx.Done():
			// Drain so the connect goroutine can finish.
			for range msgs {
			}
			<-errc
			return
		}
	}

	err := <-errc
	if err == nil || ctx.Err() != nil {
		if err == nil {
			slog.Info("source ended", slog.String("source", src.ID.String()))
		}
		return
	}
	slog.Error("source failed",
		slog.String("source", src.ID.String()), slog.Any("err", err))
	select {
	case out <- Event{Source: src.ID, Seq: seq.Add(1), Err: err}:
	case <-ctx.Done():
	}
}
