package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	goauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// UserInfoFetcher retrieves the Google profile for an access token. A
// single call is one attempt; retries are handled by Retry.
type UserInfoFetcher interface {
	Fetch(ctx context.Context, ts oauth2.TokenSource) (Profile, error)
}

// GoogleUserInfo fetches the profile from the Google OAuth2 v2 user-info
// endpoint. Endpoint is overridable for tests and defaults to the public
// API.
type GoogleUserInfo struct {
	Endpoint string
}

func (g *GoogleUserInfo) Fetch(ctx context.Context, ts oauth2.TokenSource) (Profile, error) {
	opts := []option.ClientOption{option.WithTokenSource(ts)}
	if g.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(g.Endpoint))
	}

	service, err := goauth2.NewService(ctx, opts...)
	if err != nil {
		return Profile{}, fmt.Errorf("unable to create user-info client (%w)", err)
	}

	info, err := service.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return Profile{}, err
	}

	return Profile{
		Email:   info.Email,
		Name:    info.Name,
		Picture: info.Picture,
	}, nil
}

// Retry wraps a user-info attempt with the workflow's retry policy:
// up to Attempts tries, exponential backoff starting at Backoff, each
// attempt bounded by Timeout. Sleep is injectable for tests.
type Retry struct {
	Attempts int
	Backoff  time.Duration
	Timeout  time.Duration
	Sleep    func(time.Duration)
}

func DefaultRetry() Retry {
	return Retry{
		Attempts: 3,
		Backoff:  1 * time.Second,
		Timeout:  10 * time.Second,
		Sleep:    time.Sleep,
	}
}

func (r Retry) Do(ctx context.Context, fetch func(context.Context) (Profile, error)) (Profile, error) {
	delay := r.Backoff
	var last error

	for attempt := 0; attempt < r.Attempts; attempt++ {
		actx, cancel := context.WithTimeout(ctx, r.Timeout)
		profile, err := fetch(actx)
		cancel()

		if err == nil {
			return profile, nil
		}

		last = err

		if !retryable(err) {
			return Profile{}, fmt.Errorf("%w (%v)", ErrUserInfoUnavailable, err)
		}

		if attempt < r.Attempts-1 {
			r.Sleep(delay)
			delay *= 2
		}
	}

	return Profile{}, fmt.Errorf("%w (retries exhausted: %v)", ErrUserInfoUnavailable, last)
}

// retryable classifies an attempt failure: network timeouts and HTTP
// 429/500/502/503/504 are worth another attempt, anything else is
// terminal.
func retryable(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case 429, 500, 502, 503, 504:
			return true
		}
		return false
	}

	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}

	return errors.Is(err, context.DeadlineExceeded)
}
