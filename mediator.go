package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Credentials are the raw tokens presented with a request. Empty means absent.
type Credentials struct {
	AccessToken  string
	RefreshToken string
}

// Admission is the outcome of a successful mediation. Renewed is set when
// the access credential had expired and a rotation took place; the caller
// must hand the new pair back to the client.
type Admission struct {
	PrincipalID uuid.UUID
	Renewed     *TokenPair
}

// AccessState classifies the presented access credential.
type AccessState int

const (
	AccessMissing AccessState = iota
	AccessValid
	AccessExpired
	AccessInvalid
)

func (s AccessState) String() string {
	switch s {
	case AccessMissing:
		return "missing"
	case AccessValid:
		return "valid"
	case AccessExpired:
		return "expired"
	default:
		return "invalid"
	}
}

// Mediator decides for every protected request whether to admit it, renew
// its credentials or reject it.
type Mediator struct {
	tokens     *TokenService
	rotator    *Rotator
	principals PrincipalLookup
	cookies    *CookieWriter
	logger     Logger
}

func NewMediator(tokens *TokenService, rotator *Rotator, principals PrincipalLookup, cookies *CookieWriter) *Mediator {
	return &Mediator{
		tokens:     tokens,
		rotator:    rotator,
		principals: principals,
		cookies:    cookies,
		logger:     defaultLogger(),
	}
}

func (m *Mediator) WithLogger(logger Logger) *Mediator {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// Admit runs the state machine over creds.
func (m *Mediator) Admit(ctx context.Context, creds Credentials) (*Admission, error) {
	state, claims, err := m.classify(creds.AccessToken)

	m.logger.Trace("mediating request", "access_state", state.String())

	switch state {
	case AccessValid:
		principalID, _ := claims.PrincipalID()
		if _, err := m.principals.GetByID(ctx, principalID); err != nil {
			if isNotFound(err) {
				return nil, ErrUserNotFound
			}
			return nil, wrapStorage(err, "principal.get")
		}
		return &Admission{PrincipalID: principalID}, nil

	case AccessInvalid:
		m.logger.Debug("rejecting access credential", "error", err)
		return nil, ErrJwtError

	case AccessMissing, AccessExpired:
		if creds.RefreshToken == "" {
			return nil, ErrUnauthorized
		}
		principalID, pair, err := m.rotator.Rotate(ctx, creds.RefreshToken)
		if err != nil {
			return nil, err
		}
		return &Admission{PrincipalID: principalID, Renewed: pair}, nil
	}

	return nil, ErrUnauthorized
}

func (m *Mediator) classify(accessToken string) (AccessState, *AccessClaims, error) {
	if accessToken == "" {
		return AccessMissing, nil, nil
	}

	claims, err := m.tokens.VerifyAccess(accessToken)
	switch {
	case err == nil:
		return AccessValid, claims, nil
	case err == ErrTokenExpired:
		return AccessExpired, nil, err
	default:
		return AccessInvalid, nil, err
	}
}

// Middleware adapts the mediator to fiber. On admission the principal id is
// available through PrincipalIDFromFiber and PrincipalIDFromContext. Renewed
// credentials are written after the handler returns, whatever its outcome,
// since the session pointer has already moved.
func (m *Mediator) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		admission, err := m.Admit(c.UserContext(), Credentials{
			AccessToken:  c.Cookies(AccessTokenCookie),
			RefreshToken: c.Cookies(RefreshTokenCookie),
		})
		if err != nil {
			return err
		}

		c.Locals(PrincipalLocalsKey, admission.PrincipalID)
		c.SetUserContext(WithPrincipalID(c.UserContext(), admission.PrincipalID))

		nextErr := c.Next()

		if admission.Renewed != nil {
			m.cookies.SetPair(c, admission.Renewed)
		}

		return nextErr
	}
}
