package kv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, dir string) *Store {
	t.Helper()
	s, err := Open(dir)
	require.NoError(t, err)
	return s
}

func TestSetGet(t *testing.T) {
	s := openTestStore(t, t.TempDir())
	defer s.Close()

	require.NoError(t, s.Set("greeting", "hello"))

	var got string
	ok, err := s.Get("greeting", &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "hello", got)

	ok, err = s.Get("missing", &got)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLatestWriteWinsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	s := openTestStore(t, dir)
	require.NoError(t, s.Set("counter", 1))
	require.NoError(t, s.Set("counter", 2))
	require.NoError(t, s.Set("other", "kept"))
	require.NoError(t, s.Close())

	s = openTestStore(t, dir)
	defer s.Close()

	var counter int
	ok, err := s.Get("counter", &counter)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 2, counter)

	var other string
	ok, err = s.Get("other", &other)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "kept", other)
}

func TestHasAndKeys(t *testing.T) {
	s := openTestStore(t, t.TempDir())
	defer s.Close()

	require.False(t, s.Has("a"))
	require.NoError(t, s.Set("a", 1))
	require.NoError(t, s.Set("b", 2))
	require.True(t, s.Has("a"))
	require.ElementsMatch(t, []string{"a", "b"}, s.Keys())
}
