package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/subsidy-console/internal/model"
)

// AuthError indicates that authentication has failed or expired for a role.
// It is returned by fetchers when a 401 response is received.
type AuthError struct {
	Role    string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.Role, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// FormatError indicates that the server answered with something other than
// a JSON notification feed, such as an HTML error page.
type FormatError struct {
	ContentType string
	Reason      string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("unexpected response format (%s): %s", e.ContentType, e.Reason)
}

// Fetcher reads the server-side notification feed for a role.
type Fetcher interface {
	FetchNotifications(ctx context.Context, role, token string) ([]model.Notification, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, role, token string) ([]model.Notification, error)

// FetchNotifications calls f.
func (f FetcherFunc) FetchNotifications(ctx context.Context, role, token string) ([]model.Notification, error) {
	return f(ctx, role, token)
}
