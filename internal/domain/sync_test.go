package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSyncDue_NoCursor(t *testing.T) {
	require.True(t, SyncDue(nil, time.Hour, time.Now()))
}

func TestSyncDue_NotElapsed(t *testing.T) {
	now := time.Now()
	last := &SyncRun{LastSyncAt: now.Add(-30 * time.Minute)}

	require.False(t, SyncDue(last, time.Hour, now))
}

func TestSyncDue_Elapsed(t *testing.T) {
	now := time.Now()
	last := &SyncRun{LastSyncAt: now.Add(-2 * time.Hour)}

	require.True(t, SyncDue(last, time.Hour, now))
}

func TestSyncDue_ExactBoundary(t *testing.T) {
	now := time.Now()
	last := &SyncRun{LastSyncAt: now.Add(-time.Hour)}

	require.True(t, SyncDue(last, time.Hour, now))
}

func TestHashCredential_NeverRawKey(t *testing.T) {
	hash := HashCredential("sk_live_very_secret")

	require.Len(t, hash, 64)
	require.NotContains(t, hash, "sk_live")
	require.Equal(t, hash, HashCredential("sk_live_very_secret"))
	require.NotEqual(t, hash, HashCredential("sk_live_other"))
}
