package cogsrp

import (
	"context"

	"github.com/nickarocho/cogsrp/pkg/idp"
)

// ChangePassword changes a signed-in user's password.
func (u *User) ChangePassword(ctx context.Context, previousPassword, proposedPassword string) error {
	s, err := u.GetSession(ctx)
	if err != nil {
		return err
	}

	_, err = u.pool.IdP.Do(ctx, idp.ActionChangePassword, map[string]any{
		"AccessToken":      s.AccessToken.JWT(),
		"PreviousPassword": previousPassword,
		"ProposedPassword": proposedPassword,
	})
	if err != nil {
		return translateIdPError(err)
	}
	return nil
}

// ForgotPassword begins an out-of-band password reset for username.
func (p *Pool) ForgotPassword(ctx context.Context, username string, clientMetadata map[string]string) error {
	args := map[string]any{
		"ClientId": p.ClientID,
		"Username": username,
	}
	if sh := p.secretHash(username); sh != "" {
		args["SecretHash"] = sh
	}
	if len(clientMetadata) > 0 {
		args["ClientMetadata"] = clientMetadata
	}

	_, err := p.IdP.Do(ctx, idp.ActionForgotPassword, args)
	if err != nil {
		return translateIdPError(err)
	}
	return nil
}

// ConfirmPassword completes a password reset begun with ForgotPassword.
func (p *Pool) ConfirmPassword(ctx context.Context, username, confirmationCode, newPassword string, clientMetadata map[string]string) error {
	args := map[string]any{
		"ClientId":         p.ClientID,
		"Username":         username,
		"ConfirmationCode": confirmationCode,
		"Password":         newPassword,
	}
	if sh := p.secretHash(username); sh != "" {
		args["SecretHash"] = sh
	}
	if len(clientMetadata) > 0 {
		args["ClientMetadata"] = clientMetadata
	}

	_, err := p.IdP.Do(ctx, idp.ActionConfirmForgotPassword, args)
	if err != nil {
		return translateIdPError(err)
	}
	return nil
}

// GetAttributeVerificationCode requests a verification code for one
// attribute (e.g. "email", "phone_number") on the signed-in user.
func (u *User) GetAttributeVerificationCode(ctx context.Context, attributeName string, clientMetadata map[string]string) error {
	s, err := u.GetSession(ctx)
	if err != nil {
		return err
	}

	args := map[string]any{
		"AccessToken":   s.AccessToken.JWT(),
		"AttributeName": attributeName,
	}
	if len(clientMetadata) > 0 {
		args["ClientMetadata"] = clientMetadata
	}

	_, err = u.pool.IdP.Do(ctx, idp.ActionGetUserAttributeVerificationCode, args)
	if err != nil {
		return translateIdPError(err)
	}
	return nil
}

// VerifyAttribute confirms an attribute verification code sent by
// GetAttributeVerificationCode.
func (u *User) VerifyAttribute(ctx context.Context, attributeName, code string) error {
	s, err := u.GetSession(ctx)
	if err != nil {
		return err
	}

	_, err = u.pool.IdP.Do(ctx, idp.ActionVerifyUserAttribute, map[string]any{
		"AccessToken":   s.AccessToken.JWT(),
		"AttributeName": attributeName,
		"Code":          code,
	})
	if err != nil {
		return translateIdPError(err)
	}
	return nil
}

// UpdateAttributes writes a signed-in user's attributes.
func (u *User) UpdateAttributes(ctx context.Context, attrs map[string]string, clientMetadata map[string]string) error {
	s, err := u.GetSession(ctx)
	if err != nil {
		return err
	}

	args := map[string]any{
		"AccessToken":    s.AccessToken.JWT(),
		"UserAttributes": attributeList(attrs),
	}
	if len(clientMetadata) > 0 {
		args["ClientMetadata"] = clientMetadata
	}

	_, err = u.pool.IdP.Do(ctx, idp.ActionUpdateUserAttributes, args)
	if err != nil {
		return translateIdPError(err)
	}
	for name, value := range attrs {
		u.pool.Cache.SaveUserAttribute(u.Username(), name, value)
	}
	return nil
}

// DeleteAttributes removes the named attributes from a signed-in user.
func (u *User) DeleteAttributes(ctx context.Context, names []string) error {
	s, err := u.GetSession(ctx)
	if err != nil {
		return err
	}

	_, err = u.pool.IdP.Do(ctx, idp.ActionDeleteUserAttributes, map[string]any{
		"AccessToken":        s.AccessToken.JWT(),
		"UserAttributeNames": names,
	})
	if err != nil {
		return translateIdPError(err)
	}
	return nil
}

// UserAttribute is one name/value pair the identity provider returns from
// GetUserAttributes.
type UserAttribute struct {
	Name  string
	Value string
}

// GetUserAttributes fetches the signed-in user's full attribute set, and
// caches each value under its own key so a later UserAttributes lookup can
// serve it without a round trip.
func (u *User) GetUserAttributes(ctx context.Context) ([]UserAttribute, error) {
	s, err := u.GetSession(ctx)
	if err != nil {
		return nil, err
	}

	out, err := u.pool.IdP.Do(ctx, idp.ActionGetUser, map[string]any{
		"AccessToken": s.AccessToken.JWT(),
	})
	if err != nil {
		return nil, translateIdPError(err)
	}

	raw, _ := out["UserAttributes"].([]any)
	attrs := make([]UserAttribute, 0, len(raw))
	username := u.Username()
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name := stringField(m, "Name")
		value := stringField(m, "Value")
		attrs = append(attrs, UserAttribute{Name: name, Value: value})
		u.pool.Cache.SaveUserAttribute(username, name, value)
	}
	return attrs, nil
}

// MFAOption describes one MFA delivery mechanism the identity provider
// reports as enabled for the signed-in user.
type MFAOption struct {
	DeliveryMedium string
	AttributeName  string
}

// GetMFAOptions fetches the signed-in user's legacy MFA option list (the
// SMS-only predecessor to SetUserMFAPreference).
func (u *User) GetMFAOptions(ctx context.Context) ([]MFAOption, error) {
	s, err := u.GetSession(ctx)
	if err != nil {
		return nil, err
	}

	out, err := u.pool.IdP.Do(ctx, idp.ActionGetUser, map[string]any{
		"AccessToken": s.AccessToken.JWT(),
	})
	if err != nil {
		return nil, translateIdPError(err)
	}

	raw, _ := out["MFAOptions"].([]any)
	opts := make([]MFAOption, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		opts = append(opts, MFAOption{
			DeliveryMedium: stringField(m, "DeliveryMedium"),
			AttributeName:  stringField(m, "AttributeName"),
		})
	}
	return opts, nil
}

// SetUserMFAPreference sets whether SMS and/or software-token MFA are
// enabled and/or preferred for the signed-in user.
func (u *User) SetUserMFAPreference(ctx context.Context, smsEnabled, smsPreferred, totpEnabled, totpPreferred bool) error {
	s, err := u.GetSession(ctx)
	if err != nil {
		return err
	}

	_, err = u.pool.IdP.Do(ctx, idp.ActionSetUserMFAPreference, map[string]any{
		"AccessToken": s.AccessToken.JWT(),
		"SMSMfaSettings": map[string]any{
			"Enabled":      smsEnabled,
			"PreferredMfa": smsPreferred,
		},
		"SoftwareTokenMfaSettings": map[string]any{
			"Enabled":      totpEnabled,
			"PreferredMfa": totpPreferred,
		},
	})
	if err != nil {
		return translateIdPError(err)
	}
	return nil
}

// DeleteUser permanently deletes the signed-in user's account, then clears
// the local session and any remembered device — the account is gone, so
// there is nothing left for a cached device key to re-authenticate into.
func (u *User) DeleteUser(ctx context.Context) error {
	s, err := u.GetSession(ctx)
	if err != nil {
		return err
	}

	_, err = u.pool.IdP.Do(ctx, idp.ActionDeleteUser, map[string]any{
		"AccessToken": s.AccessToken.JWT(),
	})
	if err != nil {
		return translateIdPError(err)
	}

	u.clearSession()
	u.pool.Cache.ClearDevice(u.Username())
	return nil
}
