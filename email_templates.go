package auth

import (
	"strings"

	"github.com/flosch/pongo2/v6"
	goerrors "github.com/goliatone/go-errors"
)

const (
	VerificationEmailSubject  = "Account verification"
	PasswordResetEmailSubject = "Reset password"
)

const verificationEmailTemplate = `<p>Hello {{ first_name }},</p>
<p>Please confirm your email address to activate your account.</p>
<p><a href="{{ base_url }}/verify-account?token={{ token }}">Verify account</a></p>
<p>This link expires in {{ ttl }}.</p>`

const passwordResetEmailTemplate = `<p>Hello {{ first_name }},</p>
<p>We received a request to reset your password.</p>
<p><a href="{{ base_url }}/reset-password?token={{ token }}&email={{ email|urlencode }}">Reset password</a></p>
<p>This link expires in {{ ttl }}. If you did not ask for it you can ignore this email.</p>`

// EmailTemplates renders the bodies of the account emails.
type EmailTemplates struct {
	baseURL       string
	verification  *pongo2.Template
	passwordReset *pongo2.Template
}

// NewEmailTemplates compiles the built in templates. Links point at baseURL.
func NewEmailTemplates(baseURL string) (*EmailTemplates, error) {
	verification, err := pongo2.FromString(verificationEmailTemplate)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to compile verification email template")
	}

	passwordReset, err := pongo2.FromString(passwordResetEmailTemplate)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to compile password reset email template")
	}

	return &EmailTemplates{
		baseURL:       strings.TrimRight(baseURL, "/"),
		verification:  verification,
		passwordReset: passwordReset,
	}, nil
}

func (t *EmailTemplates) Verification(principal *Principal, token EphemeralToken, ttl string) (string, error) {
	return t.verification.Execute(pongo2.Context{
		"base_url":   t.baseURL,
		"first_name": principal.FirstName,
		"token":      token.Token,
		"ttl":        ttl,
	})
}

func (t *EmailTemplates) PasswordReset(principal *Principal, token EphemeralToken, ttl string) (string, error) {
	return t.passwordReset.Execute(pongo2.Context{
		"base_url":   t.baseURL,
		"first_name": principal.FirstName,
		"email":      principal.Email,
		"token":      token.Token,
		"ttl":        ttl,
	})
}
