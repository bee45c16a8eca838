package cogsrp

import (
	"context"

	"github.com/nickarocho/cogsrp/pkg/idp"
)

// Device describes one device the identity provider has on record for the
// signed-in user.
type Device struct {
	DeviceKey                   string
	DeviceAttributes            map[string]string
	DeviceCreateDate            string
	DeviceLastModifiedDate      string
	DeviceLastAuthenticatedDate string
}

func deviceFromMap(m map[string]any) Device {
	attrs := make(map[string]string)
	if raw, ok := m["DeviceAttributes"].([]any); ok {
		for _, item := range raw {
			am, ok := item.(map[string]any)
			if !ok {
				continue
			}
			attrs[stringField(am, "Name")] = stringField(am, "Value")
		}
	}
	return Device{
		DeviceKey:                   stringField(m, "DeviceKey"),
		DeviceAttributes:            attrs,
		DeviceCreateDate:            stringField(m, "DeviceCreateDate"),
		DeviceLastModifiedDate:      stringField(m, "DeviceLastModifiedDate"),
		DeviceLastAuthenticatedDate: stringField(m, "DeviceLastAuthenticatedDate"),
	}
}

// ListDevices lists every device the identity provider has on record for
// the signed-in user.
func (u *User) ListDevices(ctx context.Context, limit int, paginationToken string) ([]Device, string, error) {
	s, err := u.GetSession(ctx)
	if err != nil {
		return nil, "", err
	}

	args := map[string]any{
		"AccessToken": s.AccessToken.JWT(),
	}
	if limit > 0 {
		args["Limit"] = limit
	}
	if paginationToken != "" {
		args["PaginationToken"] = paginationToken
	}

	out, err := u.pool.IdP.Do(ctx, idp.ActionListDevices, args)
	if err != nil {
		return nil, "", translateIdPError(err)
	}

	raw, _ := out["Devices"].([]any)
	devices := make([]Device, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		devices = append(devices, deviceFromMap(m))
	}

	return devices, stringField(out, "PaginationToken"), nil
}

// GetDevice fetches one device's details. An empty deviceKey uses the
// currently remembered device (spec.md §9 supplemental feature).
func (u *User) GetDevice(ctx context.Context, deviceKey string) (Device, error) {
	s, err := u.GetSession(ctx)
	if err != nil {
		return Device{}, err
	}
	if deviceKey == "" {
		deviceKey, _, _, _ = u.GetCachedDeviceKeyAndPassword()
	}

	out, err := u.pool.IdP.Do(ctx, idp.ActionGetDevice, map[string]any{
		"AccessToken": s.AccessToken.JWT(),
		"DeviceKey":   deviceKey,
	})
	if err != nil {
		return Device{}, translateIdPError(err)
	}

	m, _ := out["Device"].(map[string]any)
	return deviceFromMap(m), nil
}

// ForgetDevice forgets the currently remembered device and clears its
// cached SRP credentials.
func (u *User) ForgetDevice(ctx context.Context) error {
	deviceKey, _, _, ok := u.GetCachedDeviceKeyAndPassword()
	if !ok {
		return newError(KindNotAuthorized, "no device is currently remembered for this user")
	}
	return u.ForgetSpecificDevice(ctx, deviceKey)
}

// ForgetSpecificDevice forgets deviceKey regardless of which device, if
// any, is currently remembered locally.
func (u *User) ForgetSpecificDevice(ctx context.Context, deviceKey string) error {
	s, err := u.GetSession(ctx)
	if err != nil {
		return err
	}

	_, err = u.pool.IdP.Do(ctx, idp.ActionForgetDevice, map[string]any{
		"AccessToken": s.AccessToken.JWT(),
		"DeviceKey":   deviceKey,
	})
	if err != nil {
		return translateIdPError(err)
	}

	cachedKey, _, _, ok := u.GetCachedDeviceKeyAndPassword()
	if ok && cachedKey == deviceKey {
		u.pool.Cache.ClearDevice(u.Username())
	}
	return nil
}

// SetDeviceStatusRemembered marks the currently remembered device as
// "remembered" so future authentications skip device SRP confirmation.
func (u *User) SetDeviceStatusRemembered(ctx context.Context) error {
	return u.setDeviceStatus(ctx, "remembered")
}

// SetDeviceStatusNotRemembered marks the currently remembered device as
// "not_remembered".
func (u *User) SetDeviceStatusNotRemembered(ctx context.Context) error {
	return u.setDeviceStatus(ctx, "not_remembered")
}

func (u *User) setDeviceStatus(ctx context.Context, status string) error {
	s, err := u.GetSession(ctx)
	if err != nil {
		return err
	}
	deviceKey, _, _, ok := u.GetCachedDeviceKeyAndPassword()
	if !ok {
		return newError(KindNotAuthorized, "no device is currently remembered for this user")
	}

	_, err = u.pool.IdP.Do(ctx, idp.ActionUpdateDeviceStatus, map[string]any{
		"AccessToken":            s.AccessToken.JWT(),
		"DeviceKey":              deviceKey,
		"DeviceRememberedStatus": status,
	})
	if err != nil {
		return translateIdPError(err)
	}
	return nil
}

// GetCachedDeviceKeyAndPassword returns the device SRP credentials cached
// for this user by a previous device confirmation, if any.
func (u *User) GetCachedDeviceKeyAndPassword() (deviceKey, deviceGroupKey, randomPassword string, ok bool) {
	return u.pool.Cache.LoadDevice(u.Username())
}
