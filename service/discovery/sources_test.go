package discovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ZaphyrRobin/firstdeploy/service/retry"
	"github.com/ZaphyrRobin/firstdeploy/service/solana"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeliusSource_LastRecordIsEstimate(t *testing.T) {
	devnet := &scriptedFetcher{script: []pageResult{
		{page: solana.SignaturePage{record("newest", 3000), record("middle", 2000), record("oldest", 1000)}},
	}}

	source := NewHeliusSource(&scriptedFetcher{}, devnet, fastRetry(), discardLogger())

	ts, err := source.FirstTransactionTimestamp(context.Background(), testProgram, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), ts)

	// A single unbounded call: no cursor, no explicit limit.
	require.Len(t, devnet.calls, 1)
	assert.Equal(t, "", devnet.calls[0].Before)
	assert.Equal(t, 0, devnet.calls[0].Limit)
}

func TestHeliusSource_PicksNetworkFetcher(t *testing.T) {
	mainnet := &scriptedFetcher{script: []pageResult{
		{page: solana.SignaturePage{record("m", 42)}},
	}}
	devnet := &scriptedFetcher{}

	source := NewHeliusSource(mainnet, devnet, fastRetry(), discardLogger())

	ts, err := source.FirstTransactionTimestamp(context.Background(), testProgram, true)
	require.NoError(t, err)
	assert.Equal(t, int64(42), ts)
	assert.Len(t, mainnet.calls, 1)
	assert.Empty(t, devnet.calls)
}

func TestHeliusSource_EmptyHistoryIsPermanent(t *testing.T) {
	devnet := &scriptedFetcher{script: []pageResult{
		{page: solana.SignaturePage{}},
	}}

	policy := retry.Policy{MaxTries: 3, InitialDelay: time.Millisecond, Multiplier: 2.0}
	source := NewHeliusSource(&scriptedFetcher{}, devnet, policy, discardLogger())

	_, err := source.FirstTransactionTimestamp(context.Background(), testProgram, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoTransactions)
	// No point retrying an empty history.
	assert.Len(t, devnet.calls, 1)
}

func TestHeliusSource_RetriesTransportFailures(t *testing.T) {
	devnet := &scriptedFetcher{script: []pageResult{
		{err: errors.New("connection reset")},
		{page: solana.SignaturePage{record("only", 777)}},
	}}

	policy := retry.Policy{MaxTries: 2, InitialDelay: time.Millisecond, Multiplier: 2.0}
	source := NewHeliusSource(&scriptedFetcher{}, devnet, policy, discardLogger())

	ts, err := source.FirstTransactionTimestamp(context.Background(), testProgram, false)
	require.NoError(t, err)
	assert.Equal(t, int64(777), ts)
	assert.Len(t, devnet.calls, 2)
}

func TestRPCSource_PicksNetworkEngine(t *testing.T) {
	mainnetFetcher := &scriptedFetcher{script: []pageResult{
		{page: solana.SignaturePage{record("m1", 500)}},
		{page: solana.SignaturePage{}},
	}}
	devnetFetcher := &scriptedFetcher{}

	var sleeps []time.Duration
	source := NewRPCSource(
		newTestEngine(mainnetFetcher, &sleeps, WithPageDelay(MainnetPageDelay)),
		newTestEngine(devnetFetcher, &sleeps),
	)
	assert.Equal(t, SourceNameRPC, source.Name())

	ts, err := source.FirstTransactionTimestamp(context.Background(), testProgram, true)
	require.NoError(t, err)
	assert.Equal(t, int64(500), ts)
	assert.Len(t, mainnetFetcher.calls, 2)
	assert.Empty(t, devnetFetcher.calls)
}
