package configstore

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStoreUpdate(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	s := NewMemStore()
	require.NoError(s.Set(ctx, "a", "1"))

	err := s.Update(ctx, []string{"a", "b"}, func(cur map[string]string) (map[string]string, error) {
		assert.Equal("1", cur["a"])
		_, ok := cur["b"]
		assert.False(ok, "never-set keys are absent from cur")
		return map[string]string{"a": "2", "b": "0"}, nil
	})
	require.NoError(err)

	v, err := s.Get(ctx, "a")
	require.NoError(err)
	assert.Equal("2", v)
	v, err = s.Get(ctx, "b")
	require.NoError(err)
	assert.Equal("0", v)
}

func TestMemStoreUpdateError(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	s := NewMemStore()
	require.NoError(s.Set(ctx, "a", "1"))

	err := s.Update(ctx, []string{"a"}, func(cur map[string]string) (map[string]string, error) {
		return nil, fmt.Errorf("recompute failed")
	})
	assert.Error(err)
	v, err := s.Get(ctx, "a")
	require.NoError(err)
	assert.Equal("1", v, "failed update writes nothing")
}

func TestMemStoreUpdateConcurrent(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	s := NewMemStore()

	// 20 read-modify-write increments of the same key from concurrent
	// goroutines. Run with `-race`; every increment must survive.
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Update(ctx, []string{"n"}, func(cur map[string]string) (map[string]string, error) {
				n, _ := strconv.Atoi(cur["n"])
				return map[string]string{"n": strconv.Itoa(n + 1)}, nil
			})
			assert.NoError(err)
		}()
	}
	wg.Wait()

	v, err := s.Get(ctx, "n")
	assert.NoError(err)
	assert.Equal("20", v)
}
