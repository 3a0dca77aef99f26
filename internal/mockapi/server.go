// Package mockapi is an in-memory stand-in for the school backend. It
// serves the notification and login endpoints the client depends on, so
// the terminal client can be run and tested without the real backend.
package mockapi

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/schoolone/portal/internal/model"
)

const tokenTTL = 24 * time.Hour

// student is the profile a notification can target.
type student struct {
	id      int
	grade   string
	section string
}

type account struct {
	password string
	user     model.User
	// profile is nil for accounts without a student profile.
	profile *student
}

// Target selects the recipients of a send. A student id wins over grade
// and section; an empty Target is a global announcement.
type Target struct {
	StudentID *int
	Grade     string
	Section   string
}

func (t Target) global() bool {
	return t.StudentID == nil && t.Grade == "" && t.Section == ""
}

// Batch is one send, with delivery statistics filled in by /sent.
type Batch struct {
	ID              int       `json:"id"`
	Title           string    `json:"title"`
	Message         string    `json:"message"`
	TargetGrade     *string   `json:"target_grade"`
	TargetSection   *string   `json:"target_section"`
	TargetStudentID *int      `json:"target_student_id"`
	AttachmentURL   *string   `json:"attachment_url"`
	CreatedAt       time.Time `json:"created_at"`
	TotalCount      int       `json:"total_count"`
	ReadCount       int       `json:"read_count"`
}

// Server holds the backend state and its echo router.
type Server struct {
	mu            sync.Mutex
	notifications []model.Notification
	batches       []Batch
	nextID        int
	nextBatchID   int
	nextStudentID int
	accounts      map[string]account
	failures      []int
	readDelay     time.Duration

	secret []byte
	log    zerolog.Logger
	now    func() time.Time
	echo   *echo.Echo
}

// New creates an empty backend signing tokens with secret.
func New(secret string, logger zerolog.Logger) *Server {
	s := &Server{
		nextID:        1,
		nextBatchID:   1,
		nextStudentID: 1,
		accounts:      make(map[string]account),
		secret:        []byte(secret),
		log:           logger.With().Str("component", "mockapi").Logger(),
		now:           time.Now,
	}
	s.echo = s.newRouter()
	return s
}

// Handler returns the HTTP handler serving /api/v1.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown stops the listener started by Start.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// AddUser registers a login. Accounts with role "student" get a student
// profile without a class; other roles have none and cannot list
// notifications.
func (s *Server) AddUser(email, password, name, role string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var profile *student
	if role == "student" {
		profile = s.newStudentLocked("", "")
	}
	s.addLocked(email, password, name, role, profile)
}

// AddStudent registers a student login in grade and section and returns
// the student profile id.
func (s *Server) AddStudent(email, password, name, grade, section string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile := s.newStudentLocked(grade, section)
	s.addLocked(email, password, name, "student", profile)
	return profile.id
}

func (s *Server) newStudentLocked(grade, section string) *student {
	st := &student{id: s.nextStudentID, grade: grade, section: section}
	s.nextStudentID++
	return st
}

func (s *Server) addLocked(email, password, name, role string, profile *student) {
	s.accounts[strings.ToLower(email)] = account{
		password: password,
		user: model.User{
			ID:    len(s.accounts) + 1,
			Email: email,
			Name:  name,
			Role:  role,
		},
		profile: profile,
	}
}

// Publish adds a global notification and returns it.
func (s *Server) Publish(title, message string, attachment *string) model.Notification {
	_, created := s.Send(Target{}, title, message, attachment)
	return created[0]
}

// Send records a batch and fans it out: one notification for a targeted
// student, one per matching student for a grade or section, or one shared
// global notification. A class with no students yields an empty batch.
func (s *Server) Send(t Target, title, message string, attachment *string) (Batch, []model.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	b := Batch{
		ID:              s.nextBatchID,
		Title:           title,
		Message:         message,
		TargetStudentID: t.StudentID,
		AttachmentURL:   attachment,
		CreatedAt:       now,
	}
	if t.Grade != "" {
		b.TargetGrade = &t.Grade
	}
	if t.Section != "" {
		b.TargetSection = &t.Section
	}
	s.nextBatchID++
	s.batches = append(s.batches, b)

	var recipients []*int
	switch {
	case t.StudentID != nil:
		id := *t.StudentID
		recipients = append(recipients, &id)
	case t.global():
		recipients = append(recipients, nil)
	default:
		for _, id := range s.classLocked(t.Grade, t.Section) {
			recipients = append(recipients, &id)
		}
	}

	created := make([]model.Notification, 0, len(recipients))
	for _, studentID := range recipients {
		batchID := b.ID
		n := model.Notification{
			ID:            s.nextID,
			Title:         title,
			Message:       message,
			AttachmentURL: attachment,
			StudentID:     studentID,
			BatchID:       &batchID,
			CreatedAt:     now,
		}
		s.nextID++
		s.notifications = append(s.notifications, n)
		created = append(created, n)
	}
	return b, created
}

// classLocked returns the profile ids matching grade and section, lowest
// id first. An empty filter matches everyone.
func (s *Server) classLocked(grade, section string) []int {
	var ids []int
	for _, a := range s.accounts {
		p := a.profile
		if p == nil {
			continue
		}
		if grade != "" && p.grade != grade {
			continue
		}
		if section != "" && p.section != section {
			continue
		}
		ids = append(ids, p.id)
	}
	sort.Ints(ids)
	return ids
}

// MarkRead flips a notification to read directly, as if another device
// had opened it.
func (s *Server) MarkRead(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notifications {
		if s.notifications[i].ID == id {
			s.notifications[i].IsRead = true
			return true
		}
	}
	return false
}

// UnreadCount returns the server-side unread count over all students.
func (s *Server) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.CountUnread(s.notifications)
}

// FailNext makes the next notification requests answer with the given
// statuses, one per request, before normal service resumes.
func (s *Server) FailNext(statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, statuses...)
}

// SetReadDelay delays mark-as-read persistence, simulating a backend whose
// list endpoint lags behind writes.
func (s *Server) SetReadDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readDelay = d
}

// Seed loads a demo account and a few announcements.
func (s *Server) Seed() {
	me := s.AddStudent("student@school.test", "password", "Jeevan M", "10", "A")
	s.AddStudent("classmate@school.test", "password", "Priya K", "10", "B")
	syllabus := "/static/uploads/syllabus.pdf"
	s.Publish("Welcome back", "Term 2 starts on Monday. Please carry your ID cards.", nil)
	s.Send(Target{Grade: "10"}, "Fee reminder", "Second instalment is due by the 15th.", nil)
	s.Send(Target{Grade: "10", Section: "A"}, "Syllabus update", "The revised maths syllabus is attached.", &syllabus)
	s.Send(Target{StudentID: &me}, "Library", "Please return the borrowed atlas.", nil)
}

func (s *Server) newRouter() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.log.Debug().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Msg("request")
			return nil
		},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	v1 := e.Group("/api/v1")
	v1.POST("/auth/login", s.login)

	authed := v1.Group("")
	authed.Use(s.requireToken)
	authed.Use(s.injectFailures)
	authed.GET("/notifications/", s.listNotifications)
	authed.GET("/notifications/sent", s.listSent)
	authed.POST("/notifications/", s.createNotification)
	authed.PUT("/notifications/:id/read", s.markRead)

	return e
}

func detail(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"detail": msg})
}

func (s *Server) login(c echo.Context) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return detail(c, http.StatusBadRequest, "invalid request body")
	}

	s.mu.Lock()
	acct, ok := s.accounts[strings.ToLower(req.Email)]
	s.mu.Unlock()
	if !ok || acct.password != req.Password {
		return detail(c, http.StatusBadRequest, "Incorrect email or password")
	}

	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   acct.user.Email,
		"email": acct.user.Email,
		"role":  acct.user.Role,
		"iat":   now.Unix(),
		"exp":   now.Add(tokenTTL).Unix(),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		s.log.Error().Err(err).Msg("signing token")
		return detail(c, http.StatusInternalServerError, "could not issue token")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"access_token": signed,
		"token_type":   "bearer",
		"user":         acct.user,
	})
}

// requireToken validates the HS256 bearer token issued by login.
func (s *Server) requireToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return detail(c, http.StatusUnauthorized, "Not authenticated")
		}
		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
			return s.secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			s.log.Warn().Err(err).Msg("rejected token")
			return detail(c, http.StatusUnauthorized, "Could not validate credentials")
		}

		sub, _ := token.Claims.GetSubject()
		c.Set("email", sub)
		return next(c)
	}
}

// injectFailures answers with a queued failure status, if any.
func (s *Server) injectFailures(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		s.mu.Lock()
		var status int
		if len(s.failures) > 0 {
			status = s.failures[0]
			s.failures = s.failures[1:]
		}
		s.mu.Unlock()

		if status != 0 {
			return detail(c, status, http.StatusText(status))
		}
		return next(c)
	}
}

// profileOf returns the student profile of the authenticated caller.
func (s *Server) profileOf(c echo.Context) *student {
	email, _ := c.Get("email").(string)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[strings.ToLower(email)].profile
}

func (s *Server) listNotifications(c echo.Context) error {
	profile := s.profileOf(c)
	if profile == nil {
		return detail(c, http.StatusNotFound, "Student profile not found")
	}

	s.mu.Lock()
	out := make([]model.Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		if n.StudentID == nil || *n.StudentID == profile.id {
			out = append(out, n)
		}
	}
	s.mu.Unlock()

	// Unread first, then newest first.
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsRead != out[j].IsRead {
			return !out[i].IsRead
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return c.JSON(http.StatusOK, out)
}

// listSent returns every batch, newest first, with total and read counts.
func (s *Server) listSent(c echo.Context) error {
	s.mu.Lock()
	out := make([]Batch, len(s.batches))
	copy(out, s.batches)
	for i := range out {
		for _, n := range s.notifications {
			if n.BatchID == nil || *n.BatchID != out[i].ID {
				continue
			}
			out[i].TotalCount++
			if n.IsRead {
				out[i].ReadCount++
			}
		}
	}
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})

	return c.JSON(http.StatusOK, out)
}

func (s *Server) createNotification(c echo.Context) error {
	var req struct {
		Title         string  `json:"title"`
		Message       string  `json:"message"`
		AttachmentURL *string `json:"attachment_url"`
		StudentID     *int    `json:"student_id"`
		Grade         *string `json:"grade"`
		Section       *string `json:"section"`
	}
	if err := c.Bind(&req); err != nil {
		return detail(c, http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Message) == "" {
		return detail(c, http.StatusUnprocessableEntity, "title and message are required")
	}

	t := Target{StudentID: req.StudentID}
	if req.Grade != nil {
		t.Grade = *req.Grade
	}
	if req.Section != nil {
		t.Section = *req.Section
	}

	b, created := s.Send(t, req.Title, req.Message, req.AttachmentURL)
	if len(created) == 0 {
		// No matching students: answer with a placeholder tied to the batch.
		batchID := b.ID
		return c.JSON(http.StatusOK, model.Notification{
			Title:     req.Title,
			Message:   req.Message,
			BatchID:   &batchID,
			CreatedAt: b.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, created[0])
}

func (s *Server) markRead(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return detail(c, http.StatusUnprocessableEntity, "notification id must be an integer")
	}
	profile := s.profileOf(c)

	s.mu.Lock()
	idx := -1
	for i := range s.notifications {
		if s.notifications[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return detail(c, http.StatusNotFound, "Notification not found")
	}
	n := s.notifications[idx]
	if n.StudentID != nil && (profile == nil || *n.StudentID != profile.id) {
		s.mu.Unlock()
		return detail(c, http.StatusForbidden, "Not authorized to access this notification")
	}
	n.IsRead = true
	delay := s.readDelay
	if delay == 0 {
		s.notifications[idx].IsRead = true
	}
	s.mu.Unlock()

	if delay > 0 {
		time.AfterFunc(delay, func() { s.MarkRead(id) })
	}

	return c.JSON(http.StatusOK, n)
}
