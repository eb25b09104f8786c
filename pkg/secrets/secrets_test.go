package secrets

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordStoreSetAndVerify(t *testing.T) {
	store := NewPasswordStore()
	require.NoError(t, store.SetPassword("admin", "hunter2"))

	assert.NoError(t, store.Verify("admin", "hunter2"))
	assert.True(t, store.HasAccount("admin"))
}

func TestPasswordStoreVerifyRejectsWrongPassword(t *testing.T) {
	store := NewPasswordStore()
	require.NoError(t, store.SetPassword("admin", "hunter2"))

	err := store.Verify("admin", "wrong")
	require.Error(t, err)
}

func TestPasswordStoreVerifyRejectsUnknownAccount(t *testing.T) {
	store := NewPasswordStore()
	err := store.Verify("ghost", "anything")
	require.Error(t, err)
}

func TestPasswordStoreRemove(t *testing.T) {
	store := NewPasswordStore()
	require.NoError(t, store.SetPassword("admin", "hunter2"))
	store.Remove("admin")
	assert.False(t, store.HasAccount("admin"))
}

func TestTokenCacheIssueAndValidate(t *testing.T) {
	cache := NewTokenCache()
	token, err := cache.Issue(time.Hour)
	require.NoError(t, err)

	valid, needsRefresh := cache.Validate(token)
	assert.True(t, valid)
	assert.False(t, needsRefresh)
}

func TestTokenCacheValidateRejectsUnknownToken(t *testing.T) {
	cache := NewTokenCache()
	valid, _ := cache.Validate("nonexistent")
	assert.False(t, valid)
}

func TestTokenCacheValidateExpired(t *testing.T) {
	cache := NewTokenCache()
	token, err := cache.Issue(time.Millisecond)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	valid, _ := cache.Validate(token)
	assert.False(t, valid)
}

func TestTokenCacheValidateReportsRefreshMargin(t *testing.T) {
	cache := NewTokenCache()
	ttl := 32 * time.Millisecond
	token, err := cache.Issue(ttl)
	require.NoError(t, err)

	// Within the first 31/32 of the TTL, no refresh is needed yet.
	valid, needsRefresh := cache.Validate(token)
	assert.True(t, valid)
	assert.False(t, needsRefresh)

	// Sleep past the refresh margin (the final ttl/32) but before expiry.
	time.Sleep(ttl - time.Millisecond/2)
	valid, needsRefresh = cache.Validate(token)
	if valid {
		assert.True(t, needsRefresh)
	}
}

func TestTokenCacheRevoke(t *testing.T) {
	cache := NewTokenCache()
	token, err := cache.Issue(time.Hour)
	require.NoError(t, err)

	cache.Revoke(token)
	valid, _ := cache.Validate(token)
	assert.False(t, valid)
}

func TestTokenCachePurgeExpired(t *testing.T) {
	cache := NewTokenCache()
	_, err := cache.Issue(time.Millisecond)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	cache.PurgeExpired()

	cache.mu.RLock()
	count := len(cache.tokens)
	cache.mu.RUnlock()
	assert.Equal(t, 0, count)
}

func TestTokenCacheRunPurgeLoopStopsOnCancel(t *testing.T) {
	cache := NewTokenCache()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		cache.RunPurgeLoop(ctx, time.Millisecond)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunPurgeLoop did not stop after context cancellation")
	}
}
