package web

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gradebook-io/gradebook/internal/auth"
	"github.com/gradebook-io/gradebook/internal/grades"
	"github.com/gradebook-io/gradebook/internal/logger"
	"github.com/gradebook-io/gradebook/internal/session"
	"github.com/gradebook-io/gradebook/internal/web/html"
)

// Authenticator is the slice of the auth workflow the web layer needs.
type Authenticator interface {
	AuthCodeURL(state string) string
	Authenticate(ctx context.Context, code string) (auth.Identity, error)
}

// GradeLookup is the slice of the grades service the web layer needs.
type GradeLookup interface {
	Lookup(ctx context.Context, studentID string) (grades.Row, error)
}

type Server struct {
	auth     Authenticator
	grades   GradeLookup
	sessions session.Store
	cookies  *session.CookieCodec
	tmpl     *template.Template
	log      zerolog.Logger
}

func NewServer(authenticator Authenticator, lookup GradeLookup, sessions session.Store, cookies *session.CookieCodec) (*Server, error) {
	tmpl, err := template.ParseFS(html.HTML, "*.html")
	if err != nil {
		return nil, fmt.Errorf("unable to parse page templates (%w)", err)
	}

	return &Server{
		auth:     authenticator,
		grades:   lookup,
		sessions: sessions,
		cookies:  cookies,
		tmpl:     tmpl,
		log:      logger.Get(),
	}, nil
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedMethods:   []string{"GET", "POST"},
		AllowCredentials: true,
	}))

	r.Get("/", s.home)
	r.Get("/login", s.login)
	r.Get("/oauth/callback", s.callback)
	r.Post("/code", s.manualCode)
	r.Post("/logout", s.logout)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	return r
}

// sessionFor resolves the browser's session, issuing a fresh id and
// cookie when none is presented.
func (s *Server) sessionFor(w http.ResponseWriter, r *http.Request) (string, session.Session) {
	id, ok := s.cookies.Decode(r)
	if !ok {
		id = uuid.NewString()
		if cookie, err := s.cookies.Issue(id); err != nil {
			s.log.Error().Err(err).Msg("unable to issue session cookie")
		} else {
			http.SetCookie(w, cookie)
		}
	}

	sess, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		s.log.Warn().Err(err).Msg("unable to load session, starting fresh")
		sess = session.Session{}
	}

	return id, sess
}

func (s *Server) home(w http.ResponseWriter, r *http.Request) {
	_, sess := s.sessionFor(w, r)

	if sess.Authenticated {
		s.renderDashboard(w, sess)
		return
	}

	s.renderLogin(w, "")
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	id, sess := s.sessionFor(w, r)

	state := uuid.NewString()
	sess.OAuthState = state

	if err := s.sessions.Put(r.Context(), id, sess); err != nil {
		s.log.Error().Err(err).Msg("unable to store session")
		s.renderLogin(w, "Unable to start the login flow. Please try again.")
		return
	}

	http.Redirect(w, r, s.auth.AuthCodeURL(state), http.StatusFound)
}

func (s *Server) callback(w http.ResponseWriter, r *http.Request) {
	id, sess := s.sessionFor(w, r)

	code := r.URL.Query().Get("code")
	if code == "" {
		s.renderLogin(w, "Authorization response did not include a code.")
		return
	}

	if sess.OAuthState != "" && r.URL.Query().Get("state") != sess.OAuthState {
		s.renderLogin(w, "Authorization response did not match this session. Please try logging in again.")
		return
	}

	sess.PendingAuthCode = code
	sess.OAuthState = ""

	s.processCode(w, r, id, sess)
}

// manualCode handles the fallback where the user pastes the full
// redirect URL because automatic capture did not work.
func (s *Server) manualCode(w http.ResponseWriter, r *http.Request) {
	id, sess := s.sessionFor(w, r)

	code, err := extractAuthCode(r.FormValue("redirect_url"))
	if err != nil {
		s.renderLogin(w, "Could not extract the authorization code from the URL.")
		return
	}

	sess.PendingAuthCode = code
	sess.OAuthState = ""

	s.processCode(w, r, id, sess)
}

// processCode runs the pending authorization code through the auth
// workflow and then the grade lookup. The session only becomes
// authenticated when both succeed.
func (s *Server) processCode(w http.ResponseWriter, r *http.Request, id string, sess session.Session) {
	ctx := r.Context()
	code := sess.PendingAuthCode

	identity, err := s.auth.Authenticate(ctx, code)
	if err != nil {
		// A code rejected with 'invalid_grant' is burned; anything else
		// from the token exchange may be retried with the same code.
		if !errors.Is(err, auth.ErrTokenExchange) {
			sess.PendingAuthCode = ""
		}

		s.store(ctx, id, sess)
		s.log.Warn().Err(err).Msg("authentication failed")
		s.renderLogin(w, userMessage(err))
		return
	}

	row, err := s.grades.Lookup(ctx, identity.StudentID)
	if err != nil {
		sess.PendingAuthCode = ""
		s.store(ctx, id, sess)
		s.log.Warn().Err(err).Str("student_id", identity.StudentID).Msg("grade lookup failed")
		s.renderLogin(w, userMessage(err))
		return
	}

	s.store(ctx, id, session.Session{
		Authenticated: true,
		Profile:       &identity.Profile,
		StudentID:     identity.StudentID,
		GradeRow:      &row,
	})

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if id, ok := s.cookies.Decode(r); ok {
		if err := s.sessions.Clear(r.Context(), id); err != nil {
			s.log.Error().Err(err).Msg("unable to clear session")
		}
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) store(ctx context.Context, id string, sess session.Session) {
	if err := s.sessions.Put(ctx, id, sess); err != nil {
		s.log.Error().Err(err).Msg("unable to store session")
	}
}

type loginPage struct {
	Message string
}

type gradeView struct {
	Subject string
	Value   string
}

type dashboardPage struct {
	Name      string
	Email     string
	Picture   string
	StudentID string
	Grades    []gradeView
}

func (s *Server) renderLogin(w http.ResponseWriter, message string) {
	if err := s.tmpl.ExecuteTemplate(w, "login.html", loginPage{Message: message}); err != nil {
		s.log.Error().Err(err).Msg("unable to render login page")
	}
}

func (s *Server) renderDashboard(w http.ResponseWriter, sess session.Session) {
	page := dashboardPage{
		StudentID: sess.StudentID,
	}

	if sess.Profile != nil {
		page.Name = sess.Profile.Name
		page.Email = sess.Profile.Email
		page.Picture = sess.Profile.Picture
	}

	if page.Name == "" {
		page.Name = "Student"
	}

	// The ID column is part of the row but not of the display.
	if sess.GradeRow != nil {
		for i, column := range sess.GradeRow.Header {
			if column == grades.IDColumn || i >= len(sess.GradeRow.Values) {
				continue
			}

			page.Grades = append(page.Grades, gradeView{Subject: column, Value: sess.GradeRow.Values[i]})
		}
	}

	if err := s.tmpl.ExecuteTemplate(w, "dashboard.html", page); err != nil {
		s.log.Error().Err(err).Msg("unable to render dashboard")
	}
}

func extractAuthCode(redirect string) (string, error) {
	u, err := url.Parse(redirect)
	if err != nil {
		return "", err
	}

	code := u.Query().Get("code")
	if code == "" {
		return "", fmt.Errorf("no authorization code in URL")
	}

	return code, nil
}

// userMessage converts workflow errors into the message shown on the
// login page. Nothing propagates as an unhandled fault.
func userMessage(err error) string {
	var notfound *grades.NotFoundError
	var source *grades.SourceError

	switch {
	case errors.Is(err, auth.ErrCodeExpiredOrReused):
		return "The authorization code has expired or already been used. Please try logging in again."

	case errors.Is(err, auth.ErrTokenExchange):
		return "Sign-in failed while exchanging the authorization code. Please try again."

	case errors.Is(err, auth.ErrUserInfoUnavailable):
		return "Could not retrieve your Google profile. Please try again later."

	case errors.Is(err, auth.ErrIdentityDerivation):
		return "Could not determine a student ID from your email address. Please use your school account."

	case errors.As(err, &notfound):
		return fmt.Sprintf("No records found for student ID: %s", notfound.StudentID)

	case errors.As(err, &source):
		return "Error fetching grades. Please try again later or contact the gradebook owner."

	default:
		return "Something went wrong. Please try again."
	}
}
