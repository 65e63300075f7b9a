package response

import (
	"context"
	"strings"
)

// Chunk is one event of a streamed reply. The last event has Done set and
// carries either Reply or Err.
type Chunk struct {
	Text  string
	Done  bool
	Reply *Reply
	Err   error
}

// streamPieceWords is how many words each text chunk carries
const streamPieceWords = 8

// Stream runs Generate as a task and delivers the reply over a channel.
// Cancelling ctx before the completion returns aborts the call and nothing is
// recorded; cancelling later only stops delivery. The channel is always closed.
func (g *Generator) Stream(ctx context.Context, sessionID, userMessage string, useRetrieval bool) <-chan Chunk {
	out := make(chan Chunk, 1)

	go func() {
		defer close(out)

		reply, err := g.Generate(ctx, sessionID, userMessage, useRetrieval)
		if err != nil {
			send(ctx, out, Chunk{Done: true, Err: err})
			return
		}

		for _, piece := range splitWords(reply.Text, streamPieceWords) {
			if !send(ctx, out, Chunk{Text: piece}) {
				return
			}
		}
		send(ctx, out, Chunk{Done: true, Reply: reply})
	}()

	return out
}

func send(ctx context.Context, out chan<- Chunk, c Chunk) bool {
	select {
	case out <- c:
		return true
	case <-ctx.Done():
		return false
	}
}

// splitWords cuts text into pieces of n words, keeping the original spacing so
// the pieces concatenate back to text.
func splitWords(text string, n int) []string {
	var pieces []string
	var b strings.Builder
	words := 0
	inWord := false

	for _, r := range text {
		space := r == ' ' || r == '\n' || r == '\t'
		if !space && !inWord {
			if words == n {
				pieces = append(pieces, b.String())
				b.Reset()
				words = 0
			}
			words++
		}
		inWord = !space
		b.WriteRune(r)
	}
	if b.Len() > 0 {
		pieces = append(pieces, b.String())
	}
	return pieces
}
