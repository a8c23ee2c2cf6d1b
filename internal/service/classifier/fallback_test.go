package classifier

import (
	"context"
	"errors"
	"testing"

	"github.com/KNICEX/listing-agent/internal/service/exchange"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClassifier struct {
	res   []Classification
	err   error
	calls int
}

func (s *stubClassifier) Classify(ctx context.Context, message string) ([]Classification, error) {
	s.calls++
	return s.res, s.err
}

func TestFallback(t *testing.T) {
	hit := []Classification{{Exchange: "Binance", Tokens: []string{"EXT"}, Market: exchange.MarketSpot}}

	t.Run("primary 命中不调用 secondary", func(t *testing.T) {
		primary, secondary := &stubClassifier{res: hit}, &stubClassifier{}
		got, err := Fallback(primary, secondary).Classify(context.Background(), "msg")
		require.NoError(t, err)
		assert.Equal(t, hit, got)
		assert.Equal(t, 0, secondary.calls)
	})

	t.Run("primary 无结果时回退", func(t *testing.T) {
		primary, secondary := &stubClassifier{}, &stubClassifier{res: hit}
		got, err := Fallback(primary, secondary).Classify(context.Background(), "msg")
		require.NoError(t, err)
		assert.Equal(t, hit, got)
		assert.Equal(t, 1, secondary.calls)
	})

	t.Run("primary 出错时回退", func(t *testing.T) {
		primary, secondary := &stubClassifier{err: errors.New("boom")}, &stubClassifier{res: hit}
		got, err := Fallback(primary, secondary).Classify(context.Background(), "msg")
		require.NoError(t, err)
		assert.Equal(t, hit, got)
	})

	t.Run("context 取消后不再回退", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		primary, secondary := &stubClassifier{}, &stubClassifier{res: hit}
		_, err := Fallback(primary, secondary).Classify(ctx, "msg")
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, secondary.calls)
	})
}

func TestNewStrategy(t *testing.T) {
	rule, gen := &stubClassifier{}, &stubClassifier{}

	c, err := NewStrategy(StrategyRule, rule, nil)
	require.NoError(t, err)
	assert.Same(t, rule, c)

	c, err = NewStrategy(StrategyLLM, rule, gen)
	require.NoError(t, err)
	assert.Same(t, gen, c)

	_, err = NewStrategy("", rule, gen)
	assert.NoError(t, err)

	_, err = NewStrategy(StrategyLLMThenRule, rule, nil)
	assert.Error(t, err)

	_, err = NewStrategy("magic", rule, gen)
	assert.Error(t, err)
}
