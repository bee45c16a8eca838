package cogsrp_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nickarocho/cogsrp/pkg/cogsrp"
)

// confirmedDeviceUser signs kim in once with device confirmation offered,
// leaving a remembered device cached for the returned *User.
func confirmedDeviceUser(t *testing.T, username, password string) (*cogsrp.Pool, *cogsrp.User) {
	t.Helper()

	pool, fake := newTestPool(t)
	fake.OfferNewDevice = true
	fake.Seed(username, password, nil)

	user, err := cogsrp.NewUser(username, pool)
	require.NoError(t, err)

	next := authenticateSRP(t, user, username, password)
	require.Equal(t, cogsrp.NextDone, next.Kind)

	deviceKey, _, _, ok := user.GetCachedDeviceKeyAndPassword()
	require.True(t, ok, "authenticating with OfferNewDevice must confirm and cache a device")
	require.NotEmpty(t, deviceKey)

	return pool, user
}

func TestTerminalAuthentication_ConfirmsOfferedDevice(t *testing.T) {
	t.Parallel()
	confirmedDeviceUser(t, "kim", "correct-horse-battery-staple-1!")
}

func TestListDevices_ReturnsConfirmedDevice(t *testing.T) {
	t.Parallel()

	_, user := confirmedDeviceUser(t, "liam", "correct-horse-battery-staple-1!")

	deviceKey, _, _, ok := user.GetCachedDeviceKeyAndPassword()
	require.True(t, ok)

	devices, _, err := user.ListDevices(context.Background(), 0, "")
	require.NoError(t, err)
	require.Len(t, devices, 1)
	require.Equal(t, deviceKey, devices[0].DeviceKey)
}

func TestGetDevice_DefaultsToCachedDevice(t *testing.T) {
	t.Parallel()

	_, user := confirmedDeviceUser(t, "mia", "correct-horse-battery-staple-1!")

	deviceKey, _, _, ok := user.GetCachedDeviceKeyAndPassword()
	require.True(t, ok)

	device, err := user.GetDevice(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, deviceKey, device.DeviceKey)
}

func TestForgetDevice_ClearsCache(t *testing.T) {
	t.Parallel()

	_, user := confirmedDeviceUser(t, "noah", "correct-horse-battery-staple-1!")

	require.NoError(t, user.ForgetDevice(context.Background()))

	_, _, _, ok := user.GetCachedDeviceKeyAndPassword()
	require.False(t, ok)
}

func TestForgetDevice_NoneRememberedFails(t *testing.T) {
	t.Parallel()

	pool, fake := newTestPool(t)
	fake.Seed("olive", "correct-horse-battery-staple-1!", nil)

	user, err := cogsrp.NewUser("olive", pool)
	require.NoError(t, err)
	authenticateSRP(t, user, "olive", "correct-horse-battery-staple-1!")

	err = user.ForgetDevice(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, cogsrp.ErrNotAuthorized)
}

// TestDeviceSRPReauthentication exercises spec.md §4.3.c end to end: a
// second *User instance for the same username, sharing the same pool (and
// therefore the same token cache), authenticates via DEVICE_SRP_AUTH
// without the caller ever seeing that extra round trip. SignOut must leave
// the remembered device in place for this to be reachable at all; the
// device key, group key, and random password staying exactly the same
// across the reauth is what proves DEVICE_SRP_AUTH actually ran, rather
// than the fake IdP falling through to a second ConfirmDevice (which would
// mint a fresh device key).
func TestDeviceSRPReauthentication(t *testing.T) {
	t.Parallel()

	pool, firstUser := confirmedDeviceUser(t, "paula", "correct-horse-battery-staple-1!")
	deviceKey, deviceGroupKey, randomPassword, ok := firstUser.GetCachedDeviceKeyAndPassword()
	require.True(t, ok)

	firstUser.SignOut()

	secondUser, err := cogsrp.NewUser("paula", pool)
	require.NoError(t, err)

	next := authenticateSRP(t, secondUser, "paula", "correct-horse-battery-staple-1!")
	require.Equal(t, cogsrp.NextDone, next.Kind)
	require.False(t, next.UserConfirmationNecessary, "DEVICE_SRP_AUTH must not trigger a fresh device confirmation")

	_, ok = secondUser.Session()
	require.True(t, ok)

	gotKey, gotGroupKey, gotPassword, ok := secondUser.GetCachedDeviceKeyAndPassword()
	require.True(t, ok)
	require.Equal(t, deviceKey, gotKey, "device key must survive DEVICE_SRP_AUTH unchanged")
	require.Equal(t, deviceGroupKey, gotGroupKey)
	require.Equal(t, randomPassword, gotPassword)
}

func TestSetDeviceStatusRemembered_RequiresCachedDevice(t *testing.T) {
	t.Parallel()

	pool, fake := newTestPool(t)
	fake.Seed("quinn", "correct-horse-battery-staple-1!", nil)

	user, err := cogsrp.NewUser("quinn", pool)
	require.NoError(t, err)
	authenticateSRP(t, user, "quinn", "correct-horse-battery-staple-1!")

	err = user.SetDeviceStatusRemembered(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, cogsrp.ErrNotAuthorized)
}
