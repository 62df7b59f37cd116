package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIPRestrictionBlockUnblock(t *testing.T) {
	type call struct {
		blocked bool
		reason  string
	}
	var calls []call
	repo := &MockIPRestrictionRepo{
		SetBlockedFunc: func(ctx context.Context, ip string, blocked bool, reason string) error {
			calls = append(calls, call{blocked, reason})
			return nil
		},
	}
	svc := NewIPRestrictionService(repo, testLogger())
	ctx := context.Background()

	require.NoError(t, svc.Block(ctx, "10.0.0.1", "manual block"))
	require.NoError(t, svc.Block(ctx, "10.0.0.1", "manual block"))
	require.NoError(t, svc.Unblock(ctx, "10.0.0.1"))

	require.Len(t, calls, 3)
	assert.True(t, calls[0].blocked)
	assert.Equal(t, "manual block", calls[0].reason)
	assert.False(t, calls[2].blocked)
}

func TestIPRestrictionFlagMultiAccountDoesNotBlock(t *testing.T) {
	var gotBlocked *bool
	repo := &MockIPRestrictionRepo{
		CreateIfAbsentFunc: func(ctx context.Context, ip string, blocked bool, reason string) (bool, error) {
			gotBlocked = &blocked
			return true, nil
		},
	}
	svc := NewIPRestrictionService(repo, testLogger())

	require.NoError(t, svc.FlagMultiAccount(context.Background(), "10.0.0.1", 4))
	require.NotNil(t, gotBlocked)
	assert.False(t, *gotBlocked, "the login-path flag records, it does not block")
}

func TestIPRestrictionAutoBlockFirstWriterWins(t *testing.T) {
	exists := false
	repo := &MockIPRestrictionRepo{
		CreateIfAbsentFunc: func(ctx context.Context, ip string, blocked bool, reason string) (bool, error) {
			if exists {
				return false, nil
			}
			exists = true
			return true, nil
		},
	}
	svc := NewIPRestrictionService(repo, testLogger())
	ctx := context.Background()

	created, err := svc.AutoBlock(ctx, "10.0.0.1", "auto")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.AutoBlock(ctx, "10.0.0.1", "auto")
	require.NoError(t, err)
	assert.False(t, created)
}
