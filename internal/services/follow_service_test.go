package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zheer/internal/apperrors"
)

func TestFollowUnfollow(t *testing.T) {
	gdb := newTestDB(t)
	identity := newIdentity(gdb)
	follows := NewFollowService(gdb)

	alice := registerUser(t, identity, "alice@example.com", "alice")
	bob := registerUser(t, identity, "bob@example.com", "bob")

	ok, err := follows.IsFollowing(alice.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, follows.Follow(alice.ID, bob.ID))

	ok, err = follows.IsFollowing(alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	// The edge is directed.
	ok, err = follows.IsFollowing(bob.ID, alice.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, follows.Unfollow(alice.ID, bob.ID))

	ok, err = follows.IsFollowing(alice.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFollowIsIdempotent(t *testing.T) {
	gdb := newTestDB(t)
	identity := newIdentity(gdb)
	follows := NewFollowService(gdb)

	alice := registerUser(t, identity, "alice@example.com", "alice")
	bob := registerUser(t, identity, "bob@example.com", "bob")

	require.NoError(t, follows.Follow(alice.ID, bob.ID))
	require.NoError(t, follows.Follow(alice.ID, bob.ID))

	page, err := follows.FollowedBy(alice.ID, 1, 10)
	require.NoError(t, err)
	// Self-edge plus bob, exactly once each.
	assert.Equal(t, int64(2), page.Total)
}

func TestUnfollowSelfRefused(t *testing.T) {
	gdb := newTestDB(t)
	identity := newIdentity(gdb)
	follows := NewFollowService(gdb)

	alice := registerUser(t, identity, "alice@example.com", "alice")

	err := follows.Unfollow(alice.ID, alice.ID)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	ok, err := follows.IsFollowing(alice.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUnfollowAbsentEdge(t *testing.T) {
	gdb := newTestDB(t)
	identity := newIdentity(gdb)
	follows := NewFollowService(gdb)

	alice := registerUser(t, identity, "alice@example.com", "alice")
	bob := registerUser(t, identity, "bob@example.com", "bob")

	require.NoError(t, follows.Unfollow(alice.ID, bob.ID))
}

func TestFollowersAndFollowed(t *testing.T) {
	gdb := newTestDB(t)
	identity := newIdentity(gdb)
	follows := NewFollowService(gdb)

	alice := registerUser(t, identity, "alice@example.com", "alice")
	bob := registerUser(t, identity, "bob@example.com", "bob")
	carol := registerUser(t, identity, "carol@example.com", "carol")

	require.NoError(t, follows.Follow(bob.ID, alice.ID))
	require.NoError(t, follows.Follow(carol.ID, alice.ID))
	require.NoError(t, follows.Follow(alice.ID, bob.ID))

	followers, err := follows.FollowersOf(alice.ID, 1, 10)
	require.NoError(t, err)
	// bob, carol and the self-edge.
	assert.Equal(t, int64(3), followers.Total)
	ids := map[uint]bool{}
	for _, edge := range followers.Items {
		ids[edge.FollowerID] = true
		assert.NotZero(t, edge.Follower.ID, "follower association is preloaded")
	}
	assert.True(t, ids[alice.ID] && ids[bob.ID] && ids[carol.ID])

	followed, err := follows.FollowedBy(alice.ID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), followed.Total)
}

func TestFollowersPagination(t *testing.T) {
	gdb := newTestDB(t)
	identity := newIdentity(gdb)
	follows := NewFollowService(gdb)

	alice := registerUser(t, identity, "alice@example.com", "alice")
	for i := 0; i < 5; i++ {
		fan := registerUser(t, identity, usernameEmail(i), usernameName(i))
		require.NoError(t, follows.Follow(fan.ID, alice.ID))
	}

	page1, err := follows.FollowersOf(alice.ID, 1, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(6), page1.Total)
	assert.Len(t, page1.Items, 4)
	assert.True(t, page1.HasNext)
	assert.False(t, page1.HasPrev)

	page2, err := follows.FollowersOf(alice.ID, 2, 4)
	require.NoError(t, err)
	assert.Len(t, page2.Items, 2)
	assert.False(t, page2.HasNext)
	assert.True(t, page2.HasPrev)
}

func usernameEmail(i int) string { return string(rune('a'+i)) + "fan@example.com" }
func usernameName(i int) string  { return string(rune('a'+i)) + "fan" }
