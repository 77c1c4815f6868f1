package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/gradebook-io/gradebook/internal/config"
	"github.com/gradebook-io/gradebook/internal/logger"
)

// Scopes requested from the authorization endpoint. Only user profile
// information - spreadsheet access uses the service account.
var Scopes = []string{
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
	"openid",
}

// Workflow turns an authorization code into a verified identity: token
// exchange, retried user-info fetch, student id derivation. It does not
// perform the grade lookup - the web layer sequences the two.
type Workflow struct {
	oauth    *oauth2.Config
	userinfo UserInfoFetcher
	retry    Retry
	log      zerolog.Logger
}

func NewWorkflow(c config.OAuth) *Workflow {
	return &Workflow{
		oauth:    NewOAuthConfig(c),
		userinfo: &GoogleUserInfo{},
		retry:    DefaultRetry(),
		log:      logger.Get(),
	}
}

func NewOAuthConfig(c config.OAuth) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURI,
		Scopes:       Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  c.AuthURI,
			TokenURL: c.TokenURI,
		},
	}
}

// AuthCodeURL is the authorization endpoint URL the browser is sent to.
func (w *Workflow) AuthCodeURL(state string) string {
	return w.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("include_granted_scopes", "true"))
}

func (w *Workflow) Authenticate(ctx context.Context, code string) (Identity, error) {
	token, err := w.exchange(ctx, code)
	if err != nil {
		return Identity{}, err
	}

	w.log.Debug().Msg("token exchange succeeded, fetching user info")

	profile, err := w.retry.Do(ctx, func(ctx context.Context) (Profile, error) {
		return w.userinfo.Fetch(ctx, w.oauth.TokenSource(ctx, token))
	})
	if err != nil {
		return Identity{}, err
	}

	id, err := ExtractStudentID(profile.Email)
	if err != nil {
		return Identity{}, err
	}

	w.log.Info().Str("student_id", id).Msg("authenticated")

	return Identity{Profile: profile, StudentID: id}, nil
}

// exchange trades the authorization code for an access token. Never
// retried: a consumed or expired code fails with 'invalid_grant' and
// retrying can only fail again.
func (w *Workflow) exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := w.oauth.Exchange(ctx, code)
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) {
			if rerr.ErrorCode == "invalid_grant" || strings.Contains(string(rerr.Body), "invalid_grant") {
				return nil, ErrCodeExpiredOrReused
			}
		}

		return nil, fmt.Errorf("%w (%v)", ErrTokenExchange, err)
	}

	return token, nil
}
