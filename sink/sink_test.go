package sink

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/convoflow/core"
	"github.com/poiesic/convoflow/index"
	"github.com/poiesic/convoflow/index/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConvs(n int) []*core.Conversation {
	convs := make([]*core.Conversation, n)
	for i := range convs {
		convs[i] = &core.Conversation{
			ChatID:         int64(i + 1),
			ID:             core.ConversationID(int64(i+1), 100),
			StartTimestamp: 100,
			EndTimestamp:   200,
			Texts:          "ann: hello",
		}
	}
	return convs
}

func TestNewSink_RequiresIndex(t *testing.T) {
	_, err := NewSink(nil, Config{})
	assert.ErrorIs(t, err, ErrIndexRequired)
}

func TestSinkWrite_Empty(t *testing.T) {
	idx := mock.NewMockIndex()
	s, err := NewSink(idx, Config{Pacing: 0})
	require.NoError(t, err)

	require.NoError(t, s.Write(context.Background(), nil))
	assert.Empty(t, idx.Batches())
}

func TestSinkWrite_SingleBatch(t *testing.T) {
	idx := mock.NewMockIndex()
	s, err := NewSink(idx, Config{TargetBatchSize: 64, Pacing: 0})
	require.NoError(t, err)

	convs := testConvs(3)
	require.NoError(t, s.Write(context.Background(), convs))

	batches := idx.Batches()
	require.Len(t, batches, 1)
	assert.Len(t, batches[0], 3)

	row, ok := idx.Row(convs[0].UUID())
	require.True(t, ok)
	assert.Equal(t, "ann: hello", row.Texts)
	assert.Equal(t, *convs[0], row.Meta)
}

func TestSinkWrite_SplitsIntoBatches(t *testing.T) {
	idx := mock.NewMockIndex()
	s, err := NewSink(idx, Config{TargetBatchSize: 2, Pacing: time.Millisecond})
	require.NoError(t, err)

	require.NoError(t, s.Write(context.Background(), testConvs(5)))

	batches := idx.Batches()
	assert.Len(t, batches, 3)
	assert.Equal(t, 5, idx.Rows())
}

func TestSinkWrite_RewriteOverwrites(t *testing.T) {
	idx := mock.NewMockIndex()
	s, err := NewSink(idx, Config{TargetBatchSize: 64, Pacing: 0})
	require.NoError(t, err)

	convs := testConvs(3)
	require.NoError(t, s.Write(context.Background(), convs))
	require.NoError(t, s.Write(context.Background(), convs))

	// Deterministic ids make the second write an overwrite, not a duplicate.
	assert.Equal(t, 3, idx.Rows())
}

func TestSinkWrite_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	idx := mock.NewMockIndex()
	idx.UpsertFunc = func(ctx context.Context, rows []index.Row) error {
		if calls.Add(1) < 3 {
			return errors.New("index unavailable")
		}
		return nil
	}

	s, err := NewSink(idx, Config{TargetBatchSize: 64, Pacing: 0, MaxAttempts: 3, RetryWait: time.Millisecond})
	require.NoError(t, err)

	require.NoError(t, s.Write(context.Background(), testConvs(2)))
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 2, idx.Rows())
}

func TestSinkWrite_SkipsBatchAfterExhaustion(t *testing.T) {
	var calls atomic.Int32
	idx := mock.NewMockIndex()
	idx.UpsertFunc = func(ctx context.Context, rows []index.Row) error {
		// Fail only the first bin; subsequent bins succeed.
		if calls.Add(1) <= 2 {
			return errors.New("persistent failure")
		}
		return nil
	}

	s, err := NewSink(idx, Config{TargetBatchSize: 2, Pacing: time.Millisecond, MaxAttempts: 2, RetryWait: time.Millisecond})
	require.NoError(t, err)

	// 4 conversations, 2 bins. The first bin burns both attempts and is
	// skipped; the write still reports success so the pipeline keeps moving.
	require.NoError(t, s.Write(context.Background(), testConvs(4)))
	assert.Equal(t, 2, idx.Rows())
}

func TestSinkWrite_ContextCancelPropagates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	idx := mock.NewMockIndex()
	s, err := NewSink(idx, Config{TargetBatchSize: 1, Pacing: time.Second})
	require.NoError(t, err)

	err = s.Write(ctx, testConvs(3))
	assert.ErrorIs(t, err, context.Canceled)
}
