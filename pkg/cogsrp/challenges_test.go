package cogsrp_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nickarocho/cogsrp/pkg/cogsrp"
)

func authenticateSRP(t *testing.T, user *cogsrp.User, username, password string) cogsrp.Next {
	t.Helper()
	next := <-user.AuthenticateCh(context.Background(), cogsrp.AuthenticationDetails{
		Username: username,
		Password: password,
	})
	require.NoError(t, next.Err)
	return next
}

func TestSendMFACode_SMS_CompletesAuthentication(t *testing.T) {
	t.Parallel()

	pool, fake := newTestPool(t)
	fake.SeedWithChallenge("frank", "correct-horse-battery-staple-1!", nil, "SMS_MFA")

	user, err := cogsrp.NewUser("frank", pool)
	require.NoError(t, err)

	next := authenticateSRP(t, user, "frank", "correct-horse-battery-staple-1!")
	require.Equal(t, cogsrp.NextNeedsSmsMfa, next.Kind)

	next2, err := user.SendMFACode(context.Background(), "123456", "SMS_MFA", nil)
	require.NoError(t, err)
	require.Equal(t, cogsrp.NextDone, next2.Kind)

	_, ok := user.Session()
	require.True(t, ok)
}

func TestSendMFACode_SoftwareToken_CompletesAuthentication(t *testing.T) {
	t.Parallel()

	pool, fake := newTestPool(t)
	fake.SeedWithChallenge("gina", "correct-horse-battery-staple-1!", nil, "SOFTWARE_TOKEN_MFA")

	user, err := cogsrp.NewUser("gina", pool)
	require.NoError(t, err)

	next := authenticateSRP(t, user, "gina", "correct-horse-battery-staple-1!")
	require.Equal(t, cogsrp.NextNeedsTotp, next.Kind)

	next2, err := user.SendMFACode(context.Background(), "654321", "SOFTWARE_TOKEN_MFA", nil)
	require.NoError(t, err)
	require.Equal(t, cogsrp.NextDone, next2.Kind)
}

func TestSendMFASelectionAnswer_RejectsUnknownType(t *testing.T) {
	t.Parallel()

	pool, _ := newTestPool(t)
	user, err := cogsrp.NewUser("someone", pool)
	require.NoError(t, err)

	_, err = user.SendMFASelectionAnswer(context.Background(), "CARRIER_PIGEON")
	require.Error(t, err)
	require.ErrorIs(t, err, cogsrp.ErrInvalidParameter)
}

func TestSendMFASelectionAnswer_ChainsIntoChosenChallenge(t *testing.T) {
	t.Parallel()

	pool, fake := newTestPool(t)
	fake.SeedWithChallenge("harry", "correct-horse-battery-staple-1!", nil, "SELECT_MFA_TYPE")

	user, err := cogsrp.NewUser("harry", pool)
	require.NoError(t, err)

	next := authenticateSRP(t, user, "harry", "correct-horse-battery-staple-1!")
	require.Equal(t, cogsrp.NextNeedsMfaSelection, next.Kind)

	next2, err := user.SendMFASelectionAnswer(context.Background(), "SMS_MFA")
	require.NoError(t, err)
	require.Equal(t, cogsrp.NextNeedsSmsMfa, next2.Kind)

	next3, err := user.SendMFACode(context.Background(), "000000", "SMS_MFA", nil)
	require.NoError(t, err)
	require.Equal(t, cogsrp.NextDone, next3.Kind)
}

func TestCompleteNewPasswordChallenge_CompletesAuthentication(t *testing.T) {
	t.Parallel()

	pool, fake := newTestPool(t)
	fake.SeedWithChallenge("iris", "temporary-password-1!", map[string]string{"email": "iris@example.com"}, "NEW_PASSWORD_REQUIRED")

	user, err := cogsrp.NewUser("iris", pool)
	require.NoError(t, err)

	next := authenticateSRP(t, user, "iris", "temporary-password-1!")
	require.Equal(t, cogsrp.NextNeedsNewPassword, next.Kind)
	require.Contains(t, next.RequiredAttributes, "email")
	require.Equal(t, "iris@example.com", next.UserAttributes["email"])

	next2, err := user.CompleteNewPasswordChallenge(context.Background(), "correct-horse-battery-staple-2!", nil, nil)
	require.NoError(t, err)
	require.Equal(t, cogsrp.NextDone, next2.Kind)
}

func TestCompleteNewPasswordChallenge_RejectsEmptyPassword(t *testing.T) {
	t.Parallel()

	pool, _ := newTestPool(t)
	user, err := cogsrp.NewUser("someone", pool)
	require.NoError(t, err)

	_, err = user.CompleteNewPasswordChallenge(context.Background(), "", nil, nil)
	require.Error(t, err)
	require.ErrorIs(t, err, cogsrp.ErrInvalidParameter)
}

func TestAssociateAndVerifySoftwareToken_MidAuthentication(t *testing.T) {
	t.Parallel()

	pool, fake := newTestPool(t)
	fake.SeedWithChallenge("jack", "correct-horse-battery-staple-1!", nil, "MFA_SETUP")

	user, err := cogsrp.NewUser("jack", pool)
	require.NoError(t, err)

	next := authenticateSRP(t, user, "jack", "correct-horse-battery-staple-1!")
	require.Equal(t, cogsrp.NextNeedsMfaSetup, next.Kind)
	require.NotEmpty(t, user.ProtocolSession())

	setup, err := user.AssociateSoftwareToken(context.Background(), "jack", "cogsrp-demo")
	require.NoError(t, err)
	require.NotEmpty(t, setup.SecretCode)
	require.Contains(t, setup.OTPAuthURL, "otpauth://totp/")

	next2, err := user.VerifySoftwareToken(context.Background(), "123456", "my-phone")
	require.NoError(t, err)
	require.Equal(t, cogsrp.NextDone, next2.Kind)
}
