package stream

import (
	"context"
	"errors"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errx "github.com/atelier-ai/server/internal/core/error"
)

type fakeChatModel struct {
	fragments []string
	usage     *schema.TokenUsage
	streamErr error
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	return nil, errors.New("not used")
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	msgs := make([]*schema.Message, 0, len(f.fragments)+1)
	for _, s := range f.fragments {
		msgs = append(msgs, &schema.Message{Role: schema.Assistant, Content: s})
	}
	if f.usage != nil {
		msgs = append(msgs, &schema.Message{
			Role:         schema.Assistant,
			ResponseMeta: &schema.ResponseMeta{Usage: f.usage},
		})
	}
	return schema.StreamReaderFromArray(msgs), nil
}

type eventCollector struct {
	chunks   []string
	doneMsg  string
	doneGen  bool
	dones    int
	errors   []string
	chunkErr error
}

func (e *eventCollector) Chunk(text string) error {
	if e.chunkErr != nil {
		return e.chunkErr
	}
	e.chunks = append(e.chunks, text)
	return nil
}

func (e *eventCollector) Done(message string, shouldGenerateImage bool) error {
	e.dones++
	e.doneMsg = message
	e.doneGen = shouldGenerateImage
	return nil
}

func (e *eventCollector) Error(reason string) error {
	e.errors = append(e.errors, reason)
	return nil
}

func TestRelayEmitsDeltasAcrossFragmentBoundaries(t *testing.T) {
	cm := &fakeChatModel{fragments: []string{`{"mess`, `age":"Hel`, `lo"}`}}
	var sink eventCollector

	out, err := NewRelay(cm).Run(context.Background(), "c1", nil, &sink)
	require.NoError(t, err)

	assert.Equal(t, []string{"Hel", "lo"}, sink.chunks)
	assert.Equal(t, "Hello", out.Message)
	require.NotNil(t, out.Reply)
	assert.Nil(t, out.Reply.Metadata)
	assert.Nil(t, out.Reply.ShouldGenerateImage)
}

func TestRelayFinalizesStructuredDocument(t *testing.T) {
	doc := `{"message":"Warm oak it is.","metadata":{"type":"confirmation","summary":"oak flooring"},"shouldGenerateImage":true}`
	cm := &fakeChatModel{
		fragments: []string{doc[:18], doc[18:40], doc[40:]},
		usage:     &schema.TokenUsage{PromptTokens: 100, CompletionTokens: 50},
	}
	var sink eventCollector

	out, err := NewRelay(cm).Run(context.Background(), "c1", nil, &sink)
	require.NoError(t, err)

	require.NotNil(t, out.Reply)
	assert.Equal(t, "Warm oak it is.", out.Message)
	require.NotNil(t, out.Reply.ShouldGenerateImage)
	assert.True(t, *out.Reply.ShouldGenerateImage)
	require.NotNil(t, out.Usage)
	assert.Equal(t, 100, out.Usage.PromptTokens)
	assert.Equal(t, 50, out.Usage.CompletionTokens)

	// concatenated deltas reproduce the display message with no gaps or repeats
	var rebuilt string
	for _, c := range sink.chunks {
		rebuilt += c
	}
	assert.Equal(t, "Warm oak it is.", rebuilt)
}

func TestRelayFallsBackToRawTextForMalformedStream(t *testing.T) {
	cm := &fakeChatModel{fragments: []string{"Sorry, I", " cannot respond."}}
	var sink eventCollector

	out, err := NewRelay(cm).Run(context.Background(), "c1", nil, &sink)
	require.NoError(t, err)

	assert.Empty(t, sink.chunks)
	assert.Nil(t, out.Reply)
	assert.Equal(t, "Sorry, I cannot respond.", out.Message)
	assert.Equal(t, "Sorry, I cannot respond.", out.RawText)
}

func TestRelayOpenFailureIsFatal(t *testing.T) {
	cm := &fakeChatModel{streamErr: errors.New("transport down")}
	var sink eventCollector

	out, err := NewRelay(cm).Run(context.Background(), "c1", nil, &sink)
	require.Error(t, err)
	assert.Nil(t, out)

	var xe *errx.Error
	require.ErrorAs(t, err, &xe)
	assert.Equal(t, errx.UpstreamErrorMessage, xe.Message)
}

func TestRelayKeepsDrainingWhenClientWritesFail(t *testing.T) {
	doc := `{"message":"Hello","metadata":{"type":"info"},"shouldGenerateImage":false}`
	cm := &fakeChatModel{fragments: []string{doc[:20], doc[20:]}}
	sink := eventCollector{chunkErr: errors.New("broken pipe")}

	out, err := NewRelay(cm).Run(context.Background(), "c1", nil, &sink)
	require.NoError(t, err)

	// no chunks reached the client, but the turn still finalized
	assert.Empty(t, sink.chunks)
	require.NotNil(t, out.Reply)
	assert.Equal(t, "Hello", out.Message)
}

func TestRelayEmptyStreamFallsBackToEmptyMessage(t *testing.T) {
	cm := &fakeChatModel{}
	var sink eventCollector

	out, err := NewRelay(cm).Run(context.Background(), "c1", nil, &sink)
	require.NoError(t, err)
	assert.Empty(t, sink.chunks)
	assert.Nil(t, out.Reply)
	assert.Equal(t, "", out.Message)
}
