package stream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/atelier-ai/server/internal/assistant/model"
	errx "github.com/atelier-ai/server/internal/core/error"
	logx "github.com/atelier-ai/server/pkg/logger"
)

// MessageField is the one field of the structured document that is streamed
// to the client while the rest of the document is still incomplete.
const MessageField = "message"

// maxFragmentErrors bounds how many consecutive undecodable fragments are
// skipped before the stream is treated as ended.
const maxFragmentErrors = 8

// EventWriter receives the wire events of one turn. Chunk may be called any
// number of times; Done and Error are terminal and mutually exclusive. The
// relay itself only writes Chunk: the orchestrator owns the terminal event
// because the image decision is resolved after the stream ends.
type EventWriter interface {
	Chunk(text string) error
	Done(message string, shouldGenerateImage bool) error
	Error(reason string) error
}

// Outcome is the finalized result of one relay run. Reply is nil on the
// fallback path, in which case Message carries the raw concatenated text.
type Outcome struct {
	Message string
	Reply   *model.StructuredReply
	RawText string
	Usage   *schema.TokenUsage
}

// Relay drives one streaming chat-model call end to end: it accumulates raw
// fragments, forwards the growing "message" field as chunk events, and
// finalizes the accumulated buffer once the upstream stream ends.
type Relay struct {
	cm einomodel.BaseChatModel
}

func NewRelay(cm einomodel.BaseChatModel) *Relay {
	return &Relay{cm: cm}
}

// Run executes one turn's streaming call. A stream that cannot be opened at
// all is fatal and returned as an *errx.Error; everything after that point
// degrades to the fallback outcome instead of failing the turn.
//
// When ctx is cancelled mid-stream (client disconnect), Run stops forwarding
// chunk events but still drains and finalizes so the turn is not lost.
func (r *Relay) Run(ctx context.Context, conversationID string, msgs []*schema.Message, w EventWriter) (*Outcome, error) {
	sr, err := r.cm.Stream(ctx, msgs)
	if err != nil {
		logx.Error().Err(err).Str("conversation_id", conversationID).Msg("failed to open model stream")
		return nil, errx.New(err, http.StatusBadGateway, errx.UpstreamErrorMessage)
	}
	defer sr.Close()

	var (
		buf        strings.Builder
		tracker    DeltaTracker
		usage      *schema.TokenUsage
		recvErrors int
		forwarding = true
	)

	for {
		frag, err := sr.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			recvErrors++
			logx.Warn().Err(err).
				Str("conversation_id", conversationID).
				Int("consecutive_errors", recvErrors).
				Msg("skipping undecodable stream fragment")
			if recvErrors >= maxFragmentErrors {
				logx.Error().Str("conversation_id", conversationID).
					Msg("too many consecutive fragment errors; finalizing with accumulated buffer")
				break
			}
			continue
		}
		recvErrors = 0
		if frag == nil {
			continue
		}

		// Usage arrives on the trailing fragments; keep the latest report.
		if frag.ResponseMeta != nil && frag.ResponseMeta.Usage != nil {
			usage = frag.ResponseMeta.Usage
		}
		if frag.Content == "" {
			continue
		}
		buf.WriteString(frag.Content)

		if ctx.Err() != nil {
			forwarding = false
		}
		if !forwarding {
			continue
		}

		extracted, ok := ExtractField(buf.String(), MessageField)
		if !ok {
			continue
		}
		delta := tracker.Next(extracted)
		if delta == "" {
			continue
		}
		if err := w.Chunk(delta); err != nil {
			logx.Warn().Err(err).Str("conversation_id", conversationID).
				Msg("chunk write failed; draining stream without forwarding")
			forwarding = false
		}
	}

	raw := buf.String()
	out := &Outcome{RawText: raw, Usage: usage}
	if reply, ok := model.ParseStructuredReply(raw); ok {
		out.Reply = reply
		out.Message = reply.Message
	} else {
		// Not a structured document: the raw text is still a valid reply.
		out.Message = raw
	}

	logx.Debug().
		Str("conversation_id", conversationID).
		Bool("structured", out.Reply != nil).
		Int("emitted_bytes", tracker.Emitted()).
		Int("buffer_bytes", len(raw)).
		Msg("stream finalized")

	return out, nil
}
