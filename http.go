package auth

import (
	"context"
	stderrors "errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
)

const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
)

// CookieWriter writes the credential cookies. Cookies are HTTP only,
// SameSite strict and live as long as the credential they carry.
type CookieWriter struct {
	secure     bool
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewCookieWriter(cfg Config) *CookieWriter {
	return &CookieWriter{
		secure:     cfg.GetSecureCookies(),
		accessTTL:  time.Duration(cfg.GetAccessTokenTTLMinutes()) * time.Minute,
		refreshTTL: time.Duration(cfg.GetRefreshTokenTTLMinutes()) * time.Minute,
	}
}

// SetPair writes both credentials.
func (w *CookieWriter) SetPair(c *fiber.Ctx, pair *TokenPair) {
	if pair == nil {
		return
	}
	w.set(c, AccessTokenCookie, pair.AccessToken, w.accessTTL)
	w.set(c, RefreshTokenCookie, pair.RefreshToken, w.refreshTTL)
}

// Clear expires both credentials on the client.
func (w *CookieWriter) Clear(c *fiber.Ctx) {
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie} {
		c.Cookie(&fiber.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			Expires:  time.Unix(0, 0),
			Secure:   w.secure,
			HTTPOnly: true,
			SameSite: fiber.CookieSameSiteStrictMode,
		})
	}
}

func (w *CookieWriter) set(c *fiber.Ctx, name, value string, ttl time.Duration) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		Secure:   w.secure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

// SuccessResponse is the envelope of every successful response
type SuccessResponse struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
}

// ErrorResponse is the envelope of every failed response
type ErrorResponse struct {
	Status   string            `json:"status"`
	Message  string            `json:"message"`
	Code     string            `json:"code,omitempty"`
	Messages map[string]string `json:"messages,omitempty"`
}

func respondSuccess(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(SuccessResponse{Status: "success", Data: data})
}

// NewErrorHandler renders errors as the JSON error envelope. Internal details
// are logged and never sent to the client.
func NewErrorHandler(logger Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = defaultLogger()
	}

	return func(c *fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if stderrors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(ErrorResponse{
				Status:  "error",
				Message: fiberErr.Message,
			})
		}

		var validationErrs validation.Errors
		if stderrors.As(err, &validationErrs) {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Status:   "error",
				Message:  "Validation error",
				Code:     TextCodeValidation,
				Messages: FormatValidationErrorToMap(validationErrs),
			})
		}

		if stderrors.Is(err, context.DeadlineExceeded) {
			err = ErrRequestTimeout
		}

		var richErr *errors.Error
		if !errors.As(err, &richErr) {
			richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
				WithCode(errors.CodeInternal)
		}

		status := statusFor(richErr)
		log := logger.WithContext(c.UserContext())

		if status >= fiber.StatusInternalServerError {
			log.Error("request failed",
				"path", c.Path(),
				"error", richErr,
			)
		} else {
			log.Debug("request rejected",
				"path", c.Path(),
				"error", richErr.Message,
				"text_code", richErr.TextCode,
			)
		}

		return c.Status(status).JSON(ErrorResponse{
			Status:  "error",
			Message: publicMessage(richErr, status),
			Code:    publicCode(richErr, status),
		})
	}
}

// errorStatus resolves the status NewErrorHandler would answer err with.
func errorStatus(err error) int {
	var fiberErr *fiber.Error
	if stderrors.As(err, &fiberErr) {
		return fiberErr.Code
	}
	var validationErrs validation.Errors
	if stderrors.As(err, &validationErrs) {
		return fiber.StatusBadRequest
	}
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return statusFor(richErr)
	}
	return fiber.StatusInternalServerError
}

func statusFor(richErr *errors.Error) int {
	if richErr.Code >= 400 && richErr.Code < 600 {
		return richErr.Code
	}

	switch richErr.Category {
	case errors.CategoryAuth:
		return fiber.StatusUnauthorized
	case errors.CategoryAuthz:
		return fiber.StatusForbidden
	case errors.CategoryNotFound:
		return fiber.StatusNotFound
	case errors.CategoryConflict:
		return fiber.StatusConflict
	case errors.CategoryValidation, errors.CategoryBadInput:
		return fiber.StatusBadRequest
	case errors.CategoryRateLimit:
		return fiber.StatusTooManyRequests
	default:
		return fiber.StatusInternalServerError
	}
}

// Every 401 renders the same body. The precise cause stays in the log so a
// client cannot tell a forged credential from an expired or replayed one.
func publicCode(richErr *errors.Error, status int) string {
	if status == fiber.StatusUnauthorized {
		return TextCodeUnauthorized
	}
	return richErr.TextCode
}

func publicMessage(richErr *errors.Error, status int) string {
	switch {
	case status == fiber.StatusUnauthorized:
		return "Unauthorized"
	case status >= fiber.StatusInternalServerError && richErr.TextCode != TextCodeSendingEmail:
		return "Internal server error"
	default:
		return richErr.Message
	}
}
