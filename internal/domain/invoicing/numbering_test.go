package invoicing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySequence struct {
	mu   sync.Mutex
	last map[string]int64
	err  error
}

func (m *memorySequence) Next(_ context.Context, t Type, year int) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := FormatNumber(t, year, 0)
	m.last[key]++
	return m.last[key], nil
}

func TestFormatAndParseNumber(t *testing.T) {
	assert.Equal(t, "DEV-2026-00042", FormatNumber(TypeQuote, 2026, 42))
	assert.Equal(t, "FAC-2026-00042", FormatNumber(TypeBill, 2026, 42))
	assert.Equal(t, "FAC-2026-123456", FormatNumber(TypeBill, 2026, 123456))

	typ, year, seq, err := ParseNumber("FAC-2027-00007")
	require.NoError(t, err)
	assert.Equal(t, TypeBill, typ)
	assert.Equal(t, 2027, year)
	assert.Equal(t, int64(7), seq)

	_, _, _, err = ParseNumber("INV-1")
	assert.Error(t, err)
}

func TestNumberingService_Concurrent(t *testing.T) {
	clock := func() time.Time { return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) }
	svc := NewNumberingService(&memorySequence{last: map[string]int64{}}, clock)

	const n = 50
	var wg sync.WaitGroup
	results := make(chan string, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			num, err := svc.Next(context.Background(), TypeBill)
			assert.NoError(t, err)
			results <- num
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[string]bool)
	for num := range results {
		assert.False(t, seen[num], "duplicate number %s", num)
		seen[num] = true
	}
	assert.Len(t, seen, n)
	assert.True(t, seen["FAC-2026-00001"])
	assert.True(t, seen["FAC-2026-00050"])
}

func TestNumberingService_PropagatesContention(t *testing.T) {
	svc := NewNumberingService(&memorySequence{err: ErrNumberingContention}, nil)
	_, err := svc.Next(context.Background(), TypeQuote)
	assert.ErrorIs(t, err, ErrNumberingContention)

	_, err = svc.Next(context.Background(), "credit")
	assertCode(t, err, "INVALID_INPUT")
}

func TestNumberingService_YearFollowsClaimTime(t *testing.T) {
	now := time.Date(2026, 12, 31, 23, 59, 0, 0, time.UTC)
	svc := NewNumberingService(&memorySequence{last: map[string]int64{}}, func() time.Time { return now })

	first, err := svc.Next(context.Background(), TypeBill)
	require.NoError(t, err)
	assert.Equal(t, "FAC-2026-00001", first)

	now = now.Add(2 * time.Minute)
	second, err := svc.Next(context.Background(), TypeBill)
	require.NoError(t, err)
	assert.Equal(t, "FAC-2027-00001", second)
	assert.Less(t, first, second)
}
