// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package provision

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect(t *testing.T) {
	t.Run("always failing connect exhausts attempts", func(t *testing.T) {
		connector := &fakeConnector{host: newFakeHost(), failures: -1, err: io.ErrUnexpectedEOF}
		p, rec := newTestProvisioner(testConfig(), connector)

		sess, attempts, err := p.Connect(context.Background(), testTarget)
		require.Error(t, err)
		require.Nil(t, sess)
		require.ErrorIs(t, err, ErrConnectionExhausted)
		require.ErrorIs(t, err, io.ErrUnexpectedEOF)
		require.Equal(t, 3, connector.calls)
		require.Len(t, attempts, 3)
		require.Len(t, rec.delays, 2)

		var connErr *ConnectionError
		require.ErrorAs(t, err, &connErr)
		assert.Equal(t, 3, connErr.Attempts)
		assert.Equal(t, testTarget.String(), connErr.Target)
	})

	t.Run("success on attempt k records k attempts", func(t *testing.T) {
		for k := 1; k <= 3; k++ {
			connector := &fakeConnector{host: newFakeHost(), failures: k - 1, err: errors.New("ssh: handshake failed: EOF")}
			p, rec := newTestProvisioner(testConfig(), connector)

			sess, attempts, err := p.Connect(context.Background(), testTarget)
			require.NoError(t, err)
			require.NotNil(t, sess)
			require.Len(t, attempts, k)
			for i, a := range attempts {
				assert.Equal(t, i+1, a.Number)
				assert.Equal(t, i == k-1, a.Succeeded())
			}
			// No delay follows the successful attempt.
			require.Len(t, rec.delays, k-1)
			for _, d := range rec.delays {
				assert.Equal(t, 5*time.Second, d)
			}
		}
	})

	t.Run("permanent error does not consume retry budget", func(t *testing.T) {
		connector := &fakeConnector{host: newFakeHost(), failures: -1, err: Permanent(errors.New("ssh: no key found"))}
		p, rec := newTestProvisioner(testConfig(), connector)

		_, attempts, err := p.Connect(context.Background(), testTarget)
		require.ErrorIs(t, err, ErrNonRetryableConnection)
		require.NotErrorIs(t, err, ErrConnectionExhausted)
		require.Equal(t, 1, connector.calls)
		require.Len(t, attempts, 1)
		require.Empty(t, rec.delays)
	})

	t.Run("cancelled context stops between attempts", func(t *testing.T) {
		connector := &fakeConnector{host: newFakeHost(), failures: -1, err: errors.New("connection refused")}
		p, err := New(testConfig(), connector)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		p.sleep = func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		}

		_, attempts, err := p.Connect(ctx, testTarget)
		require.ErrorIs(t, err, context.Canceled)
		require.Len(t, attempts, 1)
		require.Equal(t, 1, connector.calls)
	})

	t.Run("single attempt config", func(t *testing.T) {
		cfg := testConfig()
		cfg.MaxAttempts = 1
		connector := &fakeConnector{host: newFakeHost(), failures: -1, err: errors.New("i/o timeout")}
		p, rec := newTestProvisioner(cfg, connector)

		_, _, err := p.Connect(context.Background(), testTarget)
		require.ErrorIs(t, err, ErrConnectionExhausted)
		require.Equal(t, 1, connector.calls)
		require.Empty(t, rec.delays)
	})
}

func TestSleepContext(t *testing.T) {
	t.Run("zero delay returns immediately", func(t *testing.T) {
		require.NoError(t, sleepContext(context.Background(), 0))
	})

	t.Run("cancelled context interrupts the wait", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		start := time.Now()
		require.ErrorIs(t, sleepContext(ctx, time.Minute), context.Canceled)
		require.Less(t, time.Since(start), time.Second)
	})
}

func TestConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().IsValid())

	cfg := DefaultConfig()
	cfg.MaxAttempts = 0
	require.Error(t, cfg.IsValid())

	cfg = DefaultConfig()
	cfg.InterAttemptDelay = -time.Second
	require.Error(t, cfg.IsValid())

	cfg = DefaultConfig()
	cfg.Username = ""
	require.Error(t, cfg.IsValid())

	_, err := New(DefaultConfig(), nil)
	require.Error(t, err)
}
