package auth

import (
	"net/http"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

const (
	TextCodeUnauthorized               = "UNAUTHORIZED"
	TextCodeInvalidCredentials         = "INVALID_CREDENTIALS"
	TextCodeJwtError                   = "JWT_ERROR"
	TextCodeTokenExpired               = "TOKEN_EXPIRED"
	TextCodeTokenMalformed             = "TOKEN_MALFORMED"
	TextCodeTokenBadSignature          = "TOKEN_BAD_SIGNATURE"
	TextCodeUserNotFound               = "USER_NOT_FOUND"
	TextCodeUserAlreadyExists          = "USER_ALREADY_EXISTS"
	TextCodeNotVerified                = "NOT_VERIFIED"
	TextCodeAlreadyVerified            = "ALREADY_VERIFIED"
	TextCodeVerificationTokenNotFound  = "VERIFICATION_TOKEN_NOT_FOUND"
	TextCodeVerificationTokenExpired   = "VERIFICATION_TOKEN_EXPIRED"
	TextCodePasswordResetTokenNotFound = "PASSWORD_RESET_TOKEN_NOT_FOUND"
	TextCodePasswordResetTokenExpired  = "PASSWORD_RESET_TOKEN_EXPIRED"
	TextCodePasswordHash               = "PASSWORD_HASH_FAILURE"
	TextCodeSendingEmail               = "SENDING_EMAIL_ERROR"
	TextCodeStorage                    = "STORAGE_FAILURE"
	TextCodeRequestTimeout             = "REQUEST_TIMEOUT"
	TextCodeTooManyRequests            = "TOO_MANY_REQUESTS"
	TextCodeValidation                 = "VALIDATION_ERROR"
)

// ErrUnauthorized is returned when a protected request carries no credentials.
var ErrUnauthorized = errors.New("unauthorized", errors.CategoryAuth).
	WithTextCode(TextCodeUnauthorized).
	WithCode(errors.CodeUnauthorized)

// ErrInvalidCredentials covers unknown emails, wrong passwords and refresh replay.
var ErrInvalidCredentials = errors.New("invalid credentials", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)

// ErrJwtError is returned for an access credential that is malformed or forged.
var ErrJwtError = errors.New("invalid access token", errors.CategoryAuth).
	WithTextCode(TextCodeJwtError).
	WithCode(errors.CodeUnauthorized)

var ErrTokenExpired = errors.New("token expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

var ErrTokenMalformed = errors.New("token malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

var ErrTokenBadSignature = errors.New("token signature is invalid", errors.CategoryAuth).
	WithTextCode(TextCodeTokenBadSignature).
	WithCode(errors.CodeUnauthorized)

var ErrUserNotFound = errors.New("user not found", errors.CategoryNotFound).
	WithTextCode(TextCodeUserNotFound).
	WithCode(errors.CodeNotFound)

var ErrUserAlreadyExists = errors.New("user already exists", errors.CategoryConflict).
	WithTextCode(TextCodeUserAlreadyExists).
	WithCode(errors.CodeConflict)

// ErrNotVerified is returned on sign-in before the account email is verified.
var ErrNotVerified = errors.New("account is not verified", errors.CategoryAuthz).
	WithTextCode(TextCodeNotVerified).
	WithCode(errors.CodeForbidden)

var ErrAlreadyVerified = errors.New("account is already verified", errors.CategoryConflict).
	WithTextCode(TextCodeAlreadyVerified).
	WithCode(errors.CodeConflict)

var ErrVerificationTokenNotFound = errors.New("verification token not found", errors.CategoryNotFound).
	WithTextCode(TextCodeVerificationTokenNotFound).
	WithCode(errors.CodeNotFound)

var ErrVerificationTokenExpired = errors.New("verification token expired", errors.CategoryValidation).
	WithTextCode(TextCodeVerificationTokenExpired).
	WithCode(http.StatusGone)

var ErrPasswordResetTokenNotFound = errors.New("password reset token not found", errors.CategoryNotFound).
	WithTextCode(TextCodePasswordResetTokenNotFound).
	WithCode(errors.CodeNotFound)

var ErrPasswordResetTokenExpired = errors.New("password reset token expired", errors.CategoryValidation).
	WithTextCode(TextCodePasswordResetTokenExpired).
	WithCode(http.StatusGone)

var ErrPasswordHash = errors.New("password hashing failed", errors.CategoryInternal).
	WithTextCode(TextCodePasswordHash).
	WithCode(errors.CodeInternal)

// ErrSendingEmail is returned after the records were committed but the
// outbound email could not be delivered.
var ErrSendingEmail = errors.New("could not send email", errors.CategoryExternal).
	WithTextCode(TextCodeSendingEmail).
	WithCode(http.StatusBadGateway)

var ErrRequestTimeout = errors.New("request timed out", errors.CategoryInternal).
	WithTextCode(TextCodeRequestTimeout).
	WithCode(errors.CodeInternal)

var ErrTooManyRequests = errors.New("too many requests", errors.CategoryRateLimit).
	WithTextCode(TextCodeTooManyRequests).
	WithCode(http.StatusTooManyRequests)

// ErrNoEmptyString is returned when hashing an empty password.
var ErrNoEmptyString = errors.New("password must not be empty", errors.CategoryBadInput).
	WithTextCode(TextCodeValidation).
	WithCode(errors.CodeBadRequest)

// ErrMismatchedHashAndPassword is returned by hashers when the digest does not match.
var ErrMismatchedHashAndPassword = errors.New("password does not match", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)

// wrapStorage turns a store failure into an internal error that keeps
// the cause for logging. Rich errors pass through untouched.
func wrapStorage(err error, op string) error {
	if err == nil {
		return nil
	}
	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr.TextCode != "" {
		return richErr
	}
	return errors.Wrap(err, errors.CategoryInternal, "storage operation failed").
		WithTextCode(TextCodeStorage).
		WithCode(errors.CodeInternal).
		WithMetadata(map[string]any{"operation": op})
}

// HasTextCode reports whether err is a rich error carrying code.
func HasTextCode(err error, code string) bool {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == code
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	return errors.IsNotFound(err) || repository.IsRecordNotFound(err)
}
