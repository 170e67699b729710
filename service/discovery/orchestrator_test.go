package discovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ZaphyrRobin/firstdeploy/service/cache"
	natspub "github.com/ZaphyrRobin/firstdeploy/service/nats"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSource is a Source with a canned answer and a call counter.
type stubSource struct {
	name  string
	ts    int64
	err   error
	calls int
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) FirstTransactionTimestamp(ctx context.Context, program solanago.PublicKey, mainnet bool) (int64, error) {
	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	return s.ts, nil
}

// failingCache errors on every operation.
type failingCache struct{}

func (failingCache) Get(ctx context.Context, key string) (int64, bool, error) {
	return 0, false, errors.New("cache down")
}
func (failingCache) Set(ctx context.Context, key string, value int64) error {
	return errors.New("cache down")
}
func (failingCache) Delete(ctx context.Context, key string) error {
	return errors.New("cache down")
}

func TestDiscover_CacheHitShortCircuits(t *testing.T) {
	ctx := context.Background()
	mem := cache.NewMemory()
	require.NoError(t, mem.Set(ctx, CacheKey(testProgram.String(), true), 1234567890))

	source := &stubSource{name: SourceNameRPC, ts: 999}
	d := NewDiscoverer([]Source{source}, mem, discardLogger())

	result, err := d.Discover(ctx, testProgram, true)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, int64(1234567890), result.UnixTimestamp)
	assert.Equal(t, time.Unix(1234567890, 0).UTC(), result.UTCTime)
	// The cached answer must not trigger any source work.
	assert.Zero(t, source.calls)
}

func TestDiscover_CacheKeyIsNetworkScoped(t *testing.T) {
	ctx := context.Background()
	mem := cache.NewMemory()
	// Mainnet entry must not satisfy a devnet lookup.
	require.NoError(t, mem.Set(ctx, CacheKey(testProgram.String(), true), 1234567890))

	source := &stubSource{name: SourceNameRPC, ts: 555}
	d := NewDiscoverer([]Source{source}, mem, discardLogger())

	result, err := d.Discover(ctx, testProgram, false)
	require.NoError(t, err)
	assert.Equal(t, int64(555), result.UnixTimestamp)
	assert.Equal(t, 1, source.calls)
}

func TestDiscover_WritesBackToCache(t *testing.T) {
	ctx := context.Background()
	mem := cache.NewMemory()
	source := &stubSource{name: SourceNameHelius, ts: 1714099300}

	d := NewDiscoverer([]Source{source}, mem, discardLogger())

	result, err := d.Discover(ctx, testProgram, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1714099300), result.UnixTimestamp)

	value, ok, err := mem.Get(ctx, CacheKey(testProgram.String(), false))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1714099300), value)
}

func TestDiscover_SourceFailureNormalized(t *testing.T) {
	source := &stubSource{name: SourceNameRPC, err: ErrNoTransactions}
	d := NewDiscoverer([]Source{source}, cache.NewMemory(), discardLogger())

	result, err := d.Discover(context.Background(), testProgram, false)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrNoTransactions)
}

func TestDiscover_ZeroTimestampIsFailure(t *testing.T) {
	source := &stubSource{name: SourceNameHelius, ts: 0}
	d := NewDiscoverer([]Source{source}, cache.NewMemory(), discardLogger())

	result, err := d.Discover(context.Background(), testProgram, false)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrNoTransactions)
}

func TestDiscover_PickSelectsSource(t *testing.T) {
	first := &stubSource{name: SourceNameHelius, ts: 111}
	second := &stubSource{name: SourceNameRPC, ts: 222}

	d := NewDiscoverer([]Source{first, second}, cache.NewMemory(), discardLogger(),
		WithPick(func(n int) int { return 1 }))

	result, err := d.Discover(context.Background(), testProgram, false)
	require.NoError(t, err)
	assert.Equal(t, int64(222), result.UnixTimestamp)
	assert.Zero(t, first.calls)
	assert.Equal(t, 1, second.calls)
}

func TestDiscover_PublishesEventOnSuccess(t *testing.T) {
	publisher := natspub.NewMockPublisher()
	source := &stubSource{name: SourceNameRPC, ts: 1714099300}

	d := NewDiscoverer([]Source{source}, cache.NewMemory(), discardLogger(),
		WithPublisher(publisher))

	_, err := d.Discover(context.Background(), testProgram, true)
	require.NoError(t, err)

	events := publisher.GetPublishedEvents()
	require.Len(t, events, 1)
	assert.Equal(t, testProgram.String(), events[0].ProgramID)
	assert.Equal(t, "mainnet", events[0].Network)
	assert.Equal(t, int64(1714099300), events[0].FirstTransactionTimestamp)
	assert.Equal(t, time.Unix(1714099300, 0).UTC(), events[0].FirstTransactionTime)
	assert.Equal(t, SourceNameRPC, events[0].Source)
}

func TestDiscover_PublishFailureDoesNotFailDiscovery(t *testing.T) {
	publisher := natspub.NewMockPublisher()
	publisher.SetPublishError(errors.New("nats down"))
	source := &stubSource{name: SourceNameRPC, ts: 42}

	d := NewDiscoverer([]Source{source}, cache.NewMemory(), discardLogger(),
		WithPublisher(publisher))

	result, err := d.Discover(context.Background(), testProgram, false)
	require.NoError(t, err)
	assert.Equal(t, int64(42), result.UnixTimestamp)
}

func TestDiscover_BrokenCacheDegradesToLookup(t *testing.T) {
	source := &stubSource{name: SourceNameRPC, ts: 7777}
	d := NewDiscoverer([]Source{source}, failingCache{}, discardLogger())

	result, err := d.Discover(context.Background(), testProgram, false)
	require.NoError(t, err)
	assert.Equal(t, int64(7777), result.UnixTimestamp)
	assert.Equal(t, 1, source.calls)
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t,
		"program_first_deployment_timestamp:abc:true",
		CacheKey("abc", true))
	assert.Equal(t,
		"program_first_deployment_timestamp:abc:false",
		CacheKey("abc", false))
}
