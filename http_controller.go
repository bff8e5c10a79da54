package auth

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
)

// AuthHandlers groups the flow handlers served by AuthController.
type AuthHandlers struct {
	SignUp             *SignUpHandler
	SignIn             *SignInHandler
	VerifyAccount      *VerifyAccountHandler
	ForgotPassword     *ForgotPasswordHandler
	ResetPassword      *ResetPasswordHandler
	ResendVerification *ResendVerificationHandler
	SignOut            *SignOutHandler
}

type AuthControllerRoutes struct {
	SignUp             string
	SignIn             string
	SignOut            string
	VerifyAccount      string
	ForgotPassword     string
	ResetPassword      string
	ResendVerification string
	Me                 string
}

type AuthController struct {
	Debug    bool
	Logger   Logger
	Repo     RepositoryManager
	Routes   *AuthControllerRoutes
	Handlers AuthHandlers
	Cookies  *CookieWriter
}

type AuthControllerOption func(*AuthController) *AuthController

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithControllerDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

func WithControllerRoutes(routes *AuthControllerRoutes) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if routes != nil {
			c.Routes = routes
		}
		return c
	}
}

func NewAuthController(repo RepositoryManager, handlers AuthHandlers, cookies *CookieWriter, opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:   defaultLogger(),
		Repo:     repo,
		Handlers: handlers,
		Cookies:  cookies,
		Routes: &AuthControllerRoutes{
			SignUp:             "/auth/sign-up",
			SignIn:             "/auth/sign-in",
			SignOut:            "/auth/sign-out",
			VerifyAccount:      "/auth/verify-account",
			ForgotPassword:     "/auth/forgot-password",
			ResetPassword:      "/auth/reset-password",
			ResendVerification: "/auth/resend-verification",
			Me:                 "/users/me",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in auth controller...")
	}

	if c.Cookies == nil {
		panic("Missing CookieWriter in auth controller...")
	}

	return c
}

// RegisterRoutes mounts the public endpoints behind limiter and the
// protected ones behind protected. Either handler may be nil.
func (a *AuthController) RegisterRoutes(app fiber.Router, protected, limiter fiber.Handler) {
	public := func(h fiber.Handler) []fiber.Handler {
		if limiter == nil {
			return []fiber.Handler{h}
		}
		return []fiber.Handler{limiter, h}
	}
	guarded := func(h fiber.Handler) []fiber.Handler {
		if protected == nil {
			return []fiber.Handler{h}
		}
		return []fiber.Handler{protected, h}
	}

	app.Post(a.Routes.SignUp, public(a.SignUp)...).Name("sign-up.post")
	app.Post(a.Routes.SignIn, public(a.SignIn)...).Name("sign-in.post")
	app.Patch(a.Routes.VerifyAccount, public(a.VerifyAccount)...).Name("verify-account.patch")
	app.Post(a.Routes.ForgotPassword, public(a.ForgotPassword)...).Name("forgot-password.post")
	app.Patch(a.Routes.ResetPassword, public(a.ResetPassword)...).Name("reset-password.patch")
	app.Post(a.Routes.ResendVerification, public(a.ResendVerification)...).Name("resend-verification.post")

	app.Post(a.Routes.SignOut, guarded(a.SignOut)...).Name("sign-out.post")
	app.Get(a.Routes.Me, guarded(a.Me)...).Name("users-me.get")
}

// SignUpPayload is the sign-up request body
type SignUpPayload struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Role            Role   `json:"role"`
}

// Validate will validate the payload
func (r SignUpPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 32)),
		validation.Field(
			&r.PasswordConfirm,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
		validation.Field(&r.FirstName, validation.By(ValidateName)),
		validation.Field(&r.LastName, validation.By(ValidateName)),
		validation.Field(&r.Role, validation.Required, validation.In(SelfServiceRoles...)),
	)
}

func (a *AuthController) SignUp(c *fiber.Ctx) error {
	payload := new(SignUpPayload)
	if err := a.bind(c, payload); err != nil {
		return err
	}

	var created *Principal
	err := a.Handlers.SignUp.Execute(c.UserContext(), SignUpMessage{
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Email:     payload.Email,
		Password:  payload.Password,
		Role:      payload.Role,
		OnResponse: func(p *Principal) {
			created = p
		},
	})
	if err != nil {
		return err
	}

	return respondSuccess(c, fiber.StatusOK, created.Public())
}

// SignInPayload is the sign-in request body
type SignInPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate will run validation rules
func (r SignInPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 32)),
	)
}

func (a *AuthController) SignIn(c *fiber.Ctx) error {
	payload := new(SignInPayload)
	if err := a.bind(c, payload); err != nil {
		return err
	}

	var res *SignInResponse
	err := a.Handlers.SignIn.Execute(c.UserContext(), SignInMessage{
		Email:    payload.Email,
		Password: payload.Password,
		OnResponse: func(r *SignInResponse) {
			res = r
		},
	})
	if err != nil {
		return err
	}

	a.Cookies.SetPair(c, res.Tokens)

	return respondSuccess(c, fiber.StatusOK, res.Principal.Public())
}

// TokenPayload carries an ephemeral token
type TokenPayload struct {
	Token string `json:"token"`
}

func (r TokenPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required.Error("Token is required")),
	)
}

func (a *AuthController) VerifyAccount(c *fiber.Ctx) error {
	payload := new(TokenPayload)
	if err := a.bind(c, payload); err != nil {
		return err
	}

	if err := a.Handlers.VerifyAccount.Execute(c.UserContext(), VerifyAccountMessage{
		Token: payload.Token,
	}); err != nil {
		return err
	}

	return respondSuccess(c, fiber.StatusOK, nil)
}

// EmailPayload carries a single email address
type EmailPayload struct {
	Email string `json:"email"`
}

func (r EmailPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

func (a *AuthController) ForgotPassword(c *fiber.Ctx) error {
	payload := new(EmailPayload)
	if err := a.bind(c, payload); err != nil {
		return err
	}

	if err := a.Handlers.ForgotPassword.Execute(c.UserContext(), ForgotPasswordMessage{
		Email: payload.Email,
	}); err != nil {
		return err
	}

	return respondSuccess(c, fiber.StatusOK, nil)
}

func (a *AuthController) ResendVerification(c *fiber.Ctx) error {
	payload := new(EmailPayload)
	if err := a.bind(c, payload); err != nil {
		return err
	}

	if err := a.Handlers.ResendVerification.Execute(c.UserContext(), ResendVerificationMessage{
		Email: payload.Email,
	}); err != nil {
		return err
	}

	return respondSuccess(c, fiber.StatusOK, nil)
}

// ResetPasswordPayload holds values for password reset
type ResetPasswordPayload struct {
	Email           string `json:"email"`
	Token           string `json:"token"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

// Validate will validate the payload
func (r ResetPasswordPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Token, validation.Required.Error("Token is required")),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 32)),
		validation.Field(
			&r.PasswordConfirm,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AuthController) ResetPassword(c *fiber.Ctx) error {
	payload := new(ResetPasswordPayload)
	if err := a.bind(c, payload); err != nil {
		return err
	}

	if err := a.Handlers.ResetPassword.Execute(c.UserContext(), ResetPasswordMessage{
		Email:    payload.Email,
		Token:    payload.Token,
		Password: payload.Password,
	}); err != nil {
		return err
	}

	return respondSuccess(c, fiber.StatusOK, nil)
}

func (a *AuthController) SignOut(c *fiber.Ctx) error {
	principalID, ok := PrincipalIDFromFiber(c)
	if !ok {
		return ErrUnauthorized
	}

	if err := a.Handlers.SignOut.Execute(c.UserContext(), SignOutMessage{
		PrincipalID: principalID,
	}); err != nil {
		return err
	}

	a.Cookies.Clear(c)

	return respondSuccess(c, fiber.StatusOK, nil)
}

func (a *AuthController) Me(c *fiber.Ctx) error {
	principalID, ok := PrincipalIDFromFiber(c)
	if !ok {
		return ErrUnauthorized
	}

	principal, err := a.Repo.Principals().GetByID(c.UserContext(), principalID)
	if err != nil {
		if isNotFound(err) {
			return ErrUserNotFound
		}
		return wrapStorage(err, "principal.get")
	}

	return respondSuccess(c, fiber.StatusOK, principal.Public())
}

type validatable interface {
	Validate() error
}

func (a *AuthController) bind(c *fiber.Ctx, payload validatable) error {
	if err := c.BodyParser(payload); err != nil {
		a.Logger.Debug("failed to parse payload", "path", c.Path(), "error", err)
		return fiber.NewError(fiber.StatusBadRequest, "Failed to parse request body")
	}

	if a.Debug {
		a.Logger.Debug("request payload", "path", c.Path(), "payload", print.MaybePrettyJSON(payload))
	}

	return payload.Validate()
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}

const forbiddenNameChars = `/()"<>\{}.,`

// ValidateName accepts non blank names up to 256 characters without
// punctuation that could be used for markup or path tricks.
func ValidateName(value any) error {
	s, _ := value.(string)
	switch {
	case strings.TrimSpace(s) == "":
		return errors.New("cannot be blank")
	case len([]rune(s)) > 256:
		return errors.New("must be at most 256 characters")
	case strings.ContainsAny(s, forbiddenNameChars):
		return errors.New("contains forbidden characters")
	}
	return nil
}

// FormatValidationErrorToMap flattens ozzo validation errors to field/message
// pairs. Anything else is reported under "form".
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	var errs validation.Errors
	if !errors.As(err, &errs) {
		out["form"] = err.Error()
		return out
	}

	for field, fieldErr := range errs {
		if fieldErr == nil {
			continue
		}
		out[field] = fieldErr.Error()
	}

	return out
}
