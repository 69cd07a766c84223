package regs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPageAlignedSize(t *testing.T) {
	pageSize := PageAlignedSize(1)
	require.Greater(t, pageSize, 0)
	require.Equal(t, pageSize, PageAlignedSize(pageSize))
	require.Equal(t, pageSize*2, PageAlignedSize(pageSize+1))
}

func TestFakeMapperRoundTrip(t *testing.T) {
	m := NewFakeMapper()
	backing := make([]byte, 64)
	m.Put(0x1000, backing)

	mem, err := m.Map(0x1000, 32)
	require.NoError(t, err)
	require.Len(t, mem, 32)

	require.NoError(t, m.Unmap(mem))
	require.NoError(t, m.Unmap(nil))
}

func TestFakeMapperMissingRegion(t *testing.T) {
	m := NewFakeMapper()
	_, err := m.Map(0x2000, 32)
	require.Error(t, err)
}

func TestFakeMapperFailMap(t *testing.T) {
	m := NewFakeMapper()
	m.Put(0x1000, make([]byte, 64))
	m.FailMap(0x1000)
	_, err := m.Map(0x1000, 32)
	require.Error(t, err)
}
