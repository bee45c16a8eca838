package cogsrp

import "github.com/nickarocho/cogsrp/pkg/session"

// NextKind tags what a caller must do next after one authentication step.
type NextKind int

const (
	// NextDone is terminal: Session carries the established session.
	NextDone NextKind = iota
	NextNeedsSmsMfa
	NextNeedsTotp
	NextNeedsCustom
	NextNeedsNewPassword
	NextNeedsMfaSetup
	NextNeedsMfaSelection
)

// Next is the sum-type alternative to the callback-record API (spec.md §9
// DESIGN NOTES): one value describing either a terminal result, the next
// challenge the caller must answer, or a failure. Err is non-nil exactly
// when the step failed; callers must check it before reading Kind.
type Next struct {
	Kind NextKind
	Err  error

	// Valid when Kind == NextDone.
	Session                   session.Session
	UserConfirmationNecessary bool

	// Valid for every challenge kind; the raw ChallengeParameters map.
	Params map[string]string

	// Valid when Kind == NextNeedsNewPassword.
	UserAttributes     map[string]string
	RequiredAttributes []string
}

// Callback is the literal callback-record API spec.md §6 describes:
// exactly one of these fields is invoked per challenge name, never more
// than once, and OnSuccess/OnFailure are mutually exclusive terminal calls.
type Callback struct {
	OnSuccess func(s session.Session, userConfirmationNecessary bool)
	OnFailure func(err error)

	MFARequired           func(challengeName string, params map[string]string)
	MFASetup              func(params map[string]string)
	TOTPRequired          func(params map[string]string)
	SelectMFAType         func(params map[string]string)
	CustomChallenge       func(params map[string]string)
	NewPasswordRequired   func(userAttributes map[string]string, requiredAttributes []string)
	InputVerificationCode func(params map[string]string)
	AssociateSecretCode   func(secretCode string)
}

// dispatch invokes the Callback field matching next, or OnFailure if err is
// non-nil. Exactly one field is called.
func dispatch(cb Callback, next Next, err error) {
	if err != nil {
		if cb.OnFailure != nil {
			cb.OnFailure(err)
		}
		return
	}

	switch next.Kind {
	case NextDone:
		if cb.OnSuccess != nil {
			cb.OnSuccess(next.Session, next.UserConfirmationNecessary)
		}
	case NextNeedsSmsMfa:
		if cb.MFARequired != nil {
			cb.MFARequired("SMS_MFA", next.Params)
		}
	case NextNeedsTotp:
		if cb.TOTPRequired != nil {
			cb.TOTPRequired(next.Params)
		}
	case NextNeedsCustom:
		if cb.CustomChallenge != nil {
			cb.CustomChallenge(next.Params)
		}
	case NextNeedsNewPassword:
		if cb.NewPasswordRequired != nil {
			cb.NewPasswordRequired(next.UserAttributes, next.RequiredAttributes)
		}
	case NextNeedsMfaSetup:
		if cb.MFASetup != nil {
			cb.MFASetup(next.Params)
		}
	case NextNeedsMfaSelection:
		if cb.SelectMFAType != nil {
			cb.SelectMFAType(next.Params)
		}
	}
}

// asChannel runs fn (a core state-machine step) and reports its result on a
// single-value channel, closed after the send, implementing the Next
// channel alternative to the callback-record API. On failure the returned
// Next carries a non-nil Err and its zero Kind.
func asChannel(fn func() (Next, error)) <-chan Next {
	ch := make(chan Next, 1)
	go func() {
		defer close(ch)
		next, err := fn()
		if err != nil {
			ch <- Next{Err: err}
			return
		}
		ch <- next
	}()
	return ch
}
