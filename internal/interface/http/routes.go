package http

import (
	"net/http"
	"time"

	"github.com/hobby-university/learner-hub/internal/application/command"
	"github.com/hobby-university/learner-hub/internal/application/query"
	"github.com/hobby-university/learner-hub/internal/domain/learner"
	"github.com/hobby-university/learner-hub/internal/domain/progress"
	"github.com/hobby-university/learner-hub/internal/interface/http/handlers"
	"github.com/hobby-university/learner-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot returns basic service information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"service": "learner-hub",
		"version": s.config.Version,
		"status":  "running",
		"uptime":  s.Uptime().Round(time.Second).String(),
	})
}

// handleHealth reports the status of every dependency.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	status := s.deps.HealthChecker.Check(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, r, code, status)
}

// handleReady is the readiness probe.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		if status := s.deps.HealthChecker.Check(r.Context()); !status.Ready {
			writeJSONError(w, r, http.StatusServiceUnavailable, "not_ready", status.Message)
			return
		}
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive is the liveness probe. It never touches dependencies.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// LEARNER HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// registerRequest is the sign-up form.
type registerRequest struct {
	Email      string `json:"email"`
	FullName   string `json:"full_name"`
	Age        int    `json:"age"`
	Location   string `json:"location"`
	Hobby      string `json:"hobby"`
	Motivation string `json:"motivation"`
}

// profileResponse is the public shape of a learner profile.
type profileResponse struct {
	ID                string  `json:"id"`
	Email             string  `json:"email"`
	FullName          string  `json:"full_name"`
	Age               int     `json:"age"`
	Location          string  `json:"location"`
	Hobby             string  `json:"hobby"`
	Motivation        string  `json:"motivation"`
	TrialStartDate    string  `json:"trial_start_date"`
	TrialCompleted    bool    `json:"trial_completed"`
	CertificateEarned bool    `json:"certificate_earned"`
	CurrentCourseID   *string `json:"current_course_id,omitempty"`
	Phase             string  `json:"phase"`
}

func newProfileResponse(p *learner.Profile) profileResponse {
	return profileResponse{
		ID:                p.ID,
		Email:             p.Email,
		FullName:          p.FullName,
		Age:               p.Age,
		Location:          p.Location,
		Hobby:             p.Hobby.String(),
		Motivation:        p.Motivation,
		TrialStartDate:    timeutil.FormatDate(p.TrialStartDate),
		TrialCompleted:    p.TrialCompleted,
		CertificateEarned: p.CertificateEarned,
		CurrentCourseID:   p.CurrentCourseID,
		Phase:             string(progress.DeterminePhase(p)),
	}
}

// handleRegisterLearner creates the caller's profile and starts the trial.
func (s *Server) handleRegisterLearner(w http.ResponseWriter, r *http.Request) {
	if s.deps.RegisterLearner == nil {
		notImplemented(w, r)
		return
	}
	principal, _ := handlers.PrincipalFromContext(r.Context())

	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_json", "Request body is not valid JSON")
		return
	}
	if req.Email == "" {
		req.Email = principal.Email
	}

	result, err := s.deps.RegisterLearner.Handle(r.Context(), command.RegisterLearnerCommand{
		LearnerID:  principal.LearnerID,
		Email:      req.Email,
		FullName:   req.FullName,
		Age:        req.Age,
		Location:   req.Location,
		Hobby:      req.Hobby,
		Motivation: req.Motivation,
	})
	if err != nil {
		s.writeError(w, r, "RegisterLearner", err)
		return
	}

	writeJSON(w, r, http.StatusCreated, newProfileResponse(result.Profile))
}

// handleGetDashboard returns the caller's dashboard.
func (s *Server) handleGetDashboard(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetDashboard == nil {
		notImplemented(w, r)
		return
	}
	principal, _ := handlers.PrincipalFromContext(r.Context())

	view, err := s.deps.GetDashboard.Handle(r.Context(), query.GetDashboardQuery{LearnerID: principal.LearnerID})
	if err != nil {
		s.writeError(w, r, "GetDashboard", err)
		return
	}

	writeJSON(w, r, http.StatusOK, view)
}

// handleGetTodayLesson returns the lesson the caller should take next.
func (s *Server) handleGetTodayLesson(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetTodayLesson == nil {
		notImplemented(w, r)
		return
	}
	principal, _ := handlers.PrincipalFromContext(r.Context())

	view, err := s.deps.GetTodayLesson.Handle(r.Context(), query.GetTodayLessonQuery{LearnerID: principal.LearnerID})
	if err != nil {
		s.writeError(w, r, "GetTodayLesson", err)
		return
	}

	writeJSON(w, r, http.StatusOK, view)
}

// submitQuizRequest carries the chosen option per question.
type submitQuizRequest struct {
	Answers       []int `json:"answers"`
	VideoProgress int   `json:"video_progress"`
}

// handleSubmitQuiz grades a quiz and records the day's attendance.
func (s *Server) handleSubmitQuiz(w http.ResponseWriter, r *http.Request) {
	if s.deps.SubmitQuiz == nil {
		notImplemented(w, r)
		return
	}
	principal, _ := handlers.PrincipalFromContext(r.Context())

	var req submitQuizRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_json", "Request body is not valid JSON")
		return
	}

	result, err := s.deps.SubmitQuiz.Handle(r.Context(), command.SubmitQuizCommand{
		LearnerID:     principal.LearnerID,
		LessonID:      r.PathValue("id"),
		Answers:       req.Answers,
		VideoProgress: req.VideoProgress,
	})
	if err != nil {
		s.writeError(w, r, "SubmitQuiz", err)
		return
	}

	writeJSON(w, r, http.StatusOK, result)
}

// handleGetCertificate issues the caller's trial certificate.
func (s *Server) handleGetCertificate(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetCertificate == nil {
		notImplemented(w, r)
		return
	}
	principal, _ := handlers.PrincipalFromContext(r.Context())

	view, err := s.deps.GetCertificate.Handle(r.Context(), query.GetCertificateQuery{LearnerID: principal.LearnerID})
	if err != nil {
		s.writeError(w, r, "GetCertificate", err)
		return
	}

	writeJSON(w, r, http.StatusOK, view)
}

// handleVerifyCertificate looks up an issued certificate by its ID. It needs
// no token: the ID printed on the certificate is what gets shared.
func (s *Server) handleVerifyCertificate(w http.ResponseWriter, r *http.Request) {
	if s.deps.VerifyCertificate == nil {
		notImplemented(w, r)
		return
	}

	view, err := s.deps.VerifyCertificate.Handle(r.Context(), query.VerifyCertificateQuery{
		CertificateID: r.PathValue("id"),
	})
	if err != nil {
		s.writeError(w, r, "VerifyCertificate", err)
		return
	}

	writeJSON(w, r, http.StatusOK, view)
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// enrollmentRequest moves a learner forward through the programme.
type enrollmentRequest struct {
	Action   string `json:"action"`
	CourseID string `json:"course_id,omitempty"`
}

// handleUpdateEnrollment applies an enrollment transition to a learner.
func (s *Server) handleUpdateEnrollment(w http.ResponseWriter, r *http.Request) {
	if s.deps.UpdateEnrollment == nil {
		notImplemented(w, r)
		return
	}

	var req enrollmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_json", "Request body is not valid JSON")
		return
	}

	result, err := s.deps.UpdateEnrollment.Handle(r.Context(), command.UpdateEnrollmentCommand{
		LearnerID: r.PathValue("id"),
		Action:    command.EnrollmentAction(req.Action),
		CourseID:  req.CourseID,
	})
	if err != nil {
		s.writeError(w, r, "UpdateEnrollment", err)
		return
	}

	resp := newProfileResponse(result.Profile)
	resp.Phase = string(result.Phase)
	writeJSON(w, r, http.StatusOK, resp)
}

func notImplemented(w http.ResponseWriter, r *http.Request) {
	writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "This endpoint is not available")
}
