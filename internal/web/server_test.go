package web

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gradebook-io/gradebook/internal/auth"
	"github.com/gradebook-io/gradebook/internal/grades"
	"github.com/gradebook-io/gradebook/internal/session"
)

type fakeAuth struct {
	identities map[string]auth.Identity
	err        error
	calls      int
}

func (f *fakeAuth) AuthCodeURL(state string) string {
	return "https://accounts.example.com/o/oauth2/auth?state=" + state
}

func (f *fakeAuth) Authenticate(ctx context.Context, code string) (auth.Identity, error) {
	f.calls++

	if f.err != nil {
		return auth.Identity{}, f.err
	}

	if identity, ok := f.identities[code]; ok {
		return identity, nil
	}

	return auth.Identity{}, auth.ErrCodeExpiredOrReused
}

type fakeLookup struct {
	rows  map[string]grades.Row
	err   error
	calls int
}

func (f *fakeLookup) Lookup(ctx context.Context, studentID string) (grades.Row, error) {
	f.calls++

	if f.err != nil {
		return grades.Row{}, f.err
	}

	if row, ok := f.rows[studentID]; ok {
		return row, nil
	}

	return grades.Row{}, &grades.NotFoundError{StudentID: studentID}
}

type testenv struct {
	auth   *fakeAuth
	lookup *fakeLookup
	store  *session.MemoryStore
	codec  *session.CookieCodec
	server *httptest.Server
	client *http.Client
}

func setup(t *testing.T) *testenv {
	t.Helper()

	env := testenv{
		auth: &fakeAuth{
			identities: map[string]auth.Identity{
				"abc123": {
					Profile:   auth.Profile{Email: "1801@gmail.com", Name: "Test Student", Picture: "https://example.com/photo.jpg"},
					StudentID: "1801",
				},
			},
		},
		lookup: &fakeLookup{
			rows: map[string]grades.Row{
				"1801": {
					Header: []string{"ID", "Math", "English"},
					Values: []string{"1801", "92", "B+"},
				},
			},
		},
		store: session.NewMemoryStore(),
		codec: session.NewCookieCodec([]byte("test-secret"), time.Hour),
	}

	server, err := NewServer(env.auth, env.lookup, env.store, env.codec)
	if err != nil {
		t.Fatalf("unexpected error creating server (%v)", err)
	}

	env.server = httptest.NewServer(server.Router())
	t.Cleanup(env.server.Close)

	jar, _ := cookiejar.New(nil)
	env.client = &http.Client{Jar: jar}

	return &env
}

func (env *testenv) get(t *testing.T, path string) string {
	t.Helper()

	response, err := env.client.Get(env.server.URL + path)
	if err != nil {
		t.Fatalf("unexpected error for GET %s (%v)", path, err)
	}
	defer response.Body.Close()

	body, _ := io.ReadAll(response.Body)

	return string(body)
}

func (env *testenv) post(t *testing.T, path string, form url.Values) string {
	t.Helper()

	response, err := env.client.PostForm(env.server.URL+path, form)
	if err != nil {
		t.Fatalf("unexpected error for POST %s (%v)", path, err)
	}
	defer response.Body.Close()

	body, _ := io.ReadAll(response.Body)

	return string(body)
}

func (env *testenv) session(t *testing.T) session.Session {
	t.Helper()

	u, _ := url.Parse(env.server.URL)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, cookie := range env.client.Jar.Cookies(u) {
		r.AddCookie(cookie)
	}

	id, ok := env.codec.Decode(r)
	if !ok {
		t.Fatalf("no session cookie issued")
	}

	sess, err := env.store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("unexpected error loading session (%v)", err)
	}

	return sess
}

func TestHomeRendersLoginPage(t *testing.T) {
	env := setup(t)

	body := env.get(t, "/")

	if !strings.Contains(body, "Login with Google") {
		t.Errorf("expected login page, got:\n%s", body)
	}
}

func TestLoginRedirectsToAuthorizationURL(t *testing.T) {
	env := setup(t)
	env.client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}

	response, err := env.client.Get(env.server.URL + "/login")
	if err != nil {
		t.Fatalf("unexpected error (%v)", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusFound {
		t.Fatalf("expected redirect, got %d", response.StatusCode)
	}

	location := response.Header.Get("Location")
	if !strings.HasPrefix(location, "https://accounts.example.com/o/oauth2/auth?state=") {
		t.Errorf("incorrect authorization URL: %s", location)
	}
}

func TestCallbackAuthenticatesAndShowsGrades(t *testing.T) {
	env := setup(t)

	env.get(t, "/")

	body := env.get(t, "/oauth/callback?code=abc123&scope=email")

	if !strings.Contains(body, "Welcome, Test Student!") {
		t.Errorf("expected dashboard after authentication, got:\n%s", body)
	}

	for _, expected := range []string{"Student ID: 1801", "<dt>Math</dt>", "<dd>92</dd>", "<dt>English</dt>", "<dd>B+</dd>"} {
		if !strings.Contains(body, expected) {
			t.Errorf("expected dashboard to contain %q", expected)
		}
	}

	// The ID column is excluded from the grades list.
	if strings.Contains(body, "<dt>ID</dt>") {
		t.Errorf("expected ID column to be excluded from the grades list")
	}

	sess := env.session(t)
	if !sess.Authenticated {
		t.Errorf("expected session to be authenticated")
	}

	if sess.PendingAuthCode != "" {
		t.Errorf("expected pending authorization code to be cleared, got %q", sess.PendingAuthCode)
	}
}

func TestCallbackWithUnknownStudent(t *testing.T) {
	env := setup(t)
	env.lookup.rows = map[string]grades.Row{}

	env.get(t, "/")

	body := env.get(t, "/oauth/callback?code=abc123")

	if !strings.Contains(body, "No records found for student ID: 1801") {
		t.Errorf("expected not-found message, got:\n%s", body)
	}

	sess := env.session(t)
	if sess.Authenticated {
		t.Errorf("expected session to remain unauthenticated after failed lookup")
	}
}

func TestCallbackWithExpiredCode(t *testing.T) {
	env := setup(t)
	env.auth.err = auth.ErrCodeExpiredOrReused

	env.get(t, "/")

	body := env.get(t, "/oauth/callback?code=abc123")

	if !strings.Contains(body, "expired or already been used") {
		t.Errorf("expected expired-code message, got:\n%s", body)
	}

	sess := env.session(t)
	if sess.PendingAuthCode != "" {
		t.Errorf("expected pending authorization code to be cleared, got %q", sess.PendingAuthCode)
	}

	if env.lookup.calls != 0 {
		t.Errorf("expected no grade lookup after failed authentication, got %d", env.lookup.calls)
	}
}

func TestCallbackKeepsCodeOnTransientExchangeFailure(t *testing.T) {
	env := setup(t)
	env.auth.err = auth.ErrTokenExchange

	env.get(t, "/")
	env.get(t, "/oauth/callback?code=abc123")

	sess := env.session(t)
	if sess.PendingAuthCode != "abc123" {
		t.Errorf("expected pending authorization code to be retained, got %q", sess.PendingAuthCode)
	}
}

func TestCallbackWithUnavailableSource(t *testing.T) {
	env := setup(t)
	env.lookup.err = &grades.SourceError{Err: io.ErrUnexpectedEOF}

	env.get(t, "/")

	body := env.get(t, "/oauth/callback?code=abc123")

	if !strings.Contains(body, "Error fetching grades") {
		t.Errorf("expected source-error message, got:\n%s", body)
	}

	if sess := env.session(t); sess.Authenticated {
		t.Errorf("expected session to remain unauthenticated")
	}
}

func TestCallbackWithoutCode(t *testing.T) {
	env := setup(t)

	body := env.get(t, "/oauth/callback")

	if !strings.Contains(body, "did not include a code") {
		t.Errorf("expected missing-code message, got:\n%s", body)
	}

	if env.auth.calls != 0 {
		t.Errorf("expected no authentication attempt without a code, got %d", env.auth.calls)
	}
}

func TestManualCodeSubmission(t *testing.T) {
	env := setup(t)

	env.get(t, "/")

	body := env.post(t, "/code", url.Values{
		"redirect_url": {"http://localhost:8080/oauth/callback?code=abc123&scope=email%20profile"},
	})

	if !strings.Contains(body, "Welcome, Test Student!") {
		t.Errorf("expected dashboard after manual code submission, got:\n%s", body)
	}
}

func TestManualCodeSubmissionWithoutCode(t *testing.T) {
	env := setup(t)

	body := env.post(t, "/code", url.Values{
		"redirect_url": {"http://localhost:8080/oauth/callback?error=access_denied"},
	})

	if !strings.Contains(body, "Could not extract the authorization code") {
		t.Errorf("expected extraction error message, got:\n%s", body)
	}
}

func TestLogout(t *testing.T) {
	env := setup(t)

	env.get(t, "/")
	env.get(t, "/oauth/callback?code=abc123")

	body := env.post(t, "/logout", nil)

	if !strings.Contains(body, "Login with Google") {
		t.Errorf("expected login page after logout, got:\n%s", body)
	}

	sess := env.session(t)
	if sess.Authenticated || sess.StudentID != "" || sess.GradeRow != nil {
		t.Errorf("expected logout to clear all session state, got %+v", sess)
	}
}

// A fresh login after logout behaves exactly like a first login.
func TestLoginAfterLogout(t *testing.T) {
	env := setup(t)

	env.get(t, "/")
	env.get(t, "/oauth/callback?code=abc123")
	env.post(t, "/logout", nil)

	body := env.get(t, "/oauth/callback?code=abc123")

	if !strings.Contains(body, "Welcome, Test Student!") {
		t.Errorf("expected dashboard after re-authentication, got:\n%s", body)
	}

	if sess := env.session(t); !sess.Authenticated {
		t.Errorf("expected session to be authenticated after re-login")
	}
}

func TestCallbackWithMismatchedState(t *testing.T) {
	env := setup(t)
	env.client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}

	env.client.Get(env.server.URL + "/login")

	env.client.CheckRedirect = nil

	body := env.get(t, "/oauth/callback?code=abc123&state=wrong")

	if !strings.Contains(body, "did not match this session") {
		t.Errorf("expected state mismatch message, got:\n%s", body)
	}

	if env.auth.calls != 0 {
		t.Errorf("expected no authentication attempt on state mismatch, got %d", env.auth.calls)
	}
}
