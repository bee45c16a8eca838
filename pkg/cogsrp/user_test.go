package cogsrp_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nickarocho/cogsrp/internal/testidp"
	"github.com/nickarocho/cogsrp/pkg/cogsrp"
	"github.com/nickarocho/cogsrp/pkg/idp"
	"github.com/nickarocho/cogsrp/pkg/session"
)

const (
	testPoolShortID = "Demo1234"
	testUserPoolID  = "us-east-1_Demo1234"
	testClientID    = "demoapp0000000000000000000000"
)

func newTestPool(t *testing.T) (*cogsrp.Pool, *testidp.IdP) {
	t.Helper()

	fake := testidp.New(testPoolShortID, testClientID)
	pool, err := cogsrp.NewPool(cogsrp.PoolOptions{
		UserPoolID: testUserPoolID,
		ClientID:   testClientID,
		IdPClient:  idp.NewClient("us-east-1", idp.WithHTTPClient(&http.Client{Transport: fake})),
	})
	require.NoError(t, err)
	return pool, fake
}

func TestNewUser_RequiresUsernameAndPool(t *testing.T) {
	t.Parallel()

	pool, _ := newTestPool(t)

	_, err := cogsrp.NewUser("", pool)
	require.Error(t, err)
	require.ErrorIs(t, err, cogsrp.ErrInvalidParameter)

	_, err = cogsrp.NewUser("someone", nil)
	require.Error(t, err)
	require.ErrorIs(t, err, cogsrp.ErrInvalidParameter)
}

func TestAuthenticateUser_InvalidFlowType_CallsOnFailureOnly(t *testing.T) {
	t.Parallel()

	pool, _ := newTestPool(t)
	user, err := cogsrp.NewUser("someone", pool)
	require.NoError(t, err)

	var failure error
	calls := 0
	cb := cogsrp.Callback{
		OnFailure: func(err error) { calls++; failure = err },
		OnSuccess: func(s session.Session, _ bool) {
			t.Fatal("unexpected OnSuccess")
		},
	}

	user.AuthenticateUser(context.Background(), cogsrp.AuthenticationDetails{
		Username:               "someone",
		AuthenticationFlowType: "BOGUS_FLOW",
	}, cb)

	require.Equal(t, 1, calls)
	require.ErrorIs(t, failure, cogsrp.ErrInvalidAuthenticationFlowType)
}

func TestAuthenticateUser_SRPHappyPath(t *testing.T) {
	t.Parallel()

	pool, fake := newTestPool(t)
	fake.Seed("alice", "correct-horse-battery-staple-1!", map[string]string{"email": "alice@example.com"})

	user, err := cogsrp.NewUser("alice", pool)
	require.NoError(t, err)

	next := <-user.AuthenticateCh(context.Background(), cogsrp.AuthenticationDetails{
		Username: "alice",
		Password: "correct-horse-battery-staple-1!",
	})

	require.NoError(t, next.Err)
	require.Equal(t, cogsrp.NextDone, next.Kind)
	require.True(t, next.Session.IsValid(time.Now()))

	s, ok := user.Session()
	require.True(t, ok)
	require.Equal(t, next.Session.AccessToken.JWT(), s.AccessToken.JWT())
}

func TestAuthenticateUser_CustomChallenge_SessionCarriesThrough(t *testing.T) {
	t.Parallel()

	pool, fake := newTestPool(t)
	fake.Seed("bob", "irrelevant-for-custom-auth", nil)

	user, err := cogsrp.NewUser("bob", pool)
	require.NoError(t, err)

	next := <-user.AuthenticateCh(context.Background(), cogsrp.AuthenticationDetails{
		Username:               "bob",
		AuthenticationFlowType: "CUSTOM_AUTH",
	})
	require.NoError(t, next.Err)
	require.Equal(t, cogsrp.NextNeedsCustom, next.Kind)

	name, _ := user.LastChallenge()
	require.Equal(t, "CUSTOM_CHALLENGE", name)
	require.NotEmpty(t, user.ProtocolSession())

	next2, err := user.SendCustomChallengeAnswer(context.Background(), "the-answer", nil)
	require.NoError(t, err)
	require.Equal(t, cogsrp.NextDone, next2.Kind)

	_, ok := user.Session()
	require.True(t, ok)
}

func TestAuthenticateUser_SRPUnknownUser_FailsWithoutPanicking(t *testing.T) {
	t.Parallel()

	pool, _ := newTestPool(t)
	user, err := cogsrp.NewUser("nobody", pool)
	require.NoError(t, err)

	next := <-user.AuthenticateCh(context.Background(), cogsrp.AuthenticationDetails{
		Username: "nobody",
		Password: "whatever",
	})
	require.Error(t, next.Err)
	require.True(t, errors.Is(next.Err, cogsrp.ErrIdP) || errors.Is(next.Err, cogsrp.ErrNotAuthorized))
}
