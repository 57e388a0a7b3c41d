package alignmentcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"speech-data-explorer/backend/internal/coreengine/aligner"
	"speech-data-explorer/backend/internal/coreengine/scorer"
	"speech-data-explorer/backend/internal/coreengine/tokenizer"
)

func countingCache(t *testing.T, size int) (*Cache, *int) {
	t.Helper()
	c, err := New(size)
	require.NoError(t, err)
	calls := 0
	c.compute = func(reference, hypothesis string, g tokenizer.Granularity) aligner.Alignment[string] {
		calls++
		return scorer.AlignText(reference, hypothesis, g)
	}
	return c, &calls
}

func TestCacheHit(t *testing.T) {
	c, calls := countingCache(t, 8)

	first := c.Align("a b c", "a x c", tokenizer.Word)
	second := c.Align("a b c", "a x c", tokenizer.Word)
	assert.Equal(t, 1, *calls)
	assert.Equal(t, first, second)
	assert.Equal(t, scorer.AlignText("a b c", "a x c", tokenizer.Word), second)
}

func TestCacheKeyIncludesGranularity(t *testing.T) {
	c, calls := countingCache(t, 8)
	c.Align("ab", "ab", tokenizer.Word)
	c.Align("ab", "ab", tokenizer.Char)
	assert.Equal(t, 2, *calls)
	assert.Equal(t, 2, c.Len())
}

func TestCacheEvicts(t *testing.T) {
	c, calls := countingCache(t, 1)
	c.Align("a", "b", tokenizer.Word)
	c.Align("c", "d", tokenizer.Word)
	c.Align("a", "b", tokenizer.Word)
	assert.Equal(t, 3, *calls)
	assert.Equal(t, 1, c.Len())

	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestCachePlugsIntoScorer(t *testing.T) {
	c, calls := countingCache(t, 16)
	s := scorer.New(scorer.WithAligner(c.Align))
	want := scorer.New().Score("the cat sat", "the cat sits")
	assert.Equal(t, want, s.Score("the cat sat", "the cat sits"))
	assert.Equal(t, want, s.Score("the cat sat", "the cat sits"))
	assert.Equal(t, 2, *calls)
}

func TestNewRejectsNonPositiveSize(t *testing.T) {
	_, err := New(0)
	assert.Error(t, err)
}
