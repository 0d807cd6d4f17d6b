package content

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitFrontMatter_SplitsFrontMatterAndBody(t *testing.T) {
	doc := []byte("---\ntitle: Intro\n---\n# Heading\n")

	fm, body, had, err := splitFrontMatter(doc)
	require.NoError(t, err)
	require.True(t, had)
	require.Equal(t, "title: Intro\n", string(fm))
	require.Equal(t, "# Heading\n", string(body))
}

func TestSplitFrontMatter_NoFrontMatterReturnsFullBody(t *testing.T) {
	doc := []byte("# Heading\nplain body\n")

	fm, body, had, err := splitFrontMatter(doc)
	require.NoError(t, err)
	require.False(t, had)
	require.Nil(t, fm)
	require.Equal(t, doc, body)
}

func TestSplitFrontMatter_MissingClosingDelimiterFails(t *testing.T) {
	doc := []byte("---\ntitle: Broken\nbody without closing\n")

	_, _, _, err := splitFrontMatter(doc)
	require.ErrorIs(t, err, ErrMissingClosingDelimiter)
}

func TestSplitFrontMatter_CRLFDocument(t *testing.T) {
	doc := []byte("---\r\ntitle: Intro\r\n---\r\nbody\r\n")

	fm, body, had, err := splitFrontMatter(doc)
	require.NoError(t, err)
	require.True(t, had)
	require.Equal(t, "title: Intro\r\n", string(fm))
	require.Equal(t, "body\r\n", string(body))
}

func TestSplitFrontMatter_EmptyBlock(t *testing.T) {
	doc := []byte("---\n---\nbody\n")

	fm, body, had, err := splitFrontMatter(doc)
	require.NoError(t, err)
	require.True(t, had)
	require.Empty(t, fm)
	require.Equal(t, "body\n", string(body))
}

func TestSplitFrontMatter_ClosingDelimiterAtEOF(t *testing.T) {
	doc := []byte("---\ntitle: Intro\n---")

	fm, body, had, err := splitFrontMatter(doc)
	require.NoError(t, err)
	require.True(t, had)
	require.Equal(t, "title: Intro\n", string(fm))
	require.Empty(t, body)
}
