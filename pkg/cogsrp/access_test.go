package cogsrp_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nickarocho/cogsrp/pkg/cogsrp"
)

// TestGlobalSignOut_RequiresValidSession covers spec.md §4.5 scenario S5:
// GlobalSignOut must fail the same way GetSession would for a user with no
// established session, rather than reaching the identity provider at all.
func TestGlobalSignOut_RequiresValidSession(t *testing.T) {
	t.Parallel()

	pool, _ := newTestPool(t)
	user, err := cogsrp.NewUser("nobody-signed-in", pool)
	require.NoError(t, err)

	err = user.GlobalSignOut(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, cogsrp.ErrNotAuthorized)
}

// TestGlobalSignOut_ClearsSessionAndCache authenticates, signs out globally,
// and asserts both the in-memory session and the cached blob are gone, so a
// subsequent GetSession on the same User fails instead of replaying a
// revoked session.
func TestGlobalSignOut_ClearsSessionAndCache(t *testing.T) {
	t.Parallel()

	pool, fake := newTestPool(t)
	fake.Seed("dave", "correct-horse-battery-staple-1!", nil)

	user, err := cogsrp.NewUser("dave", pool)
	require.NoError(t, err)

	next := <-user.AuthenticateCh(context.Background(), cogsrp.AuthenticationDetails{
		Username: "dave",
		Password: "correct-horse-battery-staple-1!",
	})
	require.NoError(t, next.Err)
	require.Equal(t, cogsrp.NextDone, next.Kind)

	require.NoError(t, user.GlobalSignOut(context.Background()))

	_, ok := user.Session()
	require.False(t, ok)

	_, err = user.GetSession(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, cogsrp.ErrNotAuthorized)
}

// TestSignOut_ClearsWithoutContactingIdP exercises the purely local
// counterpart to GlobalSignOut (spec.md §8 invariant 3): it must not need a
// context or a round trip to drop the session.
func TestSignOut_ClearsWithoutContactingIdP(t *testing.T) {
	t.Parallel()

	pool, fake := newTestPool(t)
	fake.Seed("erin", "correct-horse-battery-staple-1!", nil)

	user, err := cogsrp.NewUser("erin", pool)
	require.NoError(t, err)

	next := <-user.AuthenticateCh(context.Background(), cogsrp.AuthenticationDetails{
		Username: "erin",
		Password: "correct-horse-battery-staple-1!",
	})
	require.NoError(t, next.Err)

	user.SignOut()

	_, ok := user.Session()
	require.False(t, ok)
}
