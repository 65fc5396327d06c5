package scheduler

import (
	"errors"
	"net/http"
	"time"

	"github.com/bytedance/sonic"

	"github.com/hobby-university/learner-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN ENDPOINTS
// ══════════════════════════════════════════════════════════════════════════════

// JobStatus is one entry of GET /jobs.
type JobStatus struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Schedule    string    `json:"schedule"`
	NextRun     time.Time `json:"next_run"`
	RunCount    int64     `json:"run_count"`
}

// JobsView is the body of GET /jobs.
type JobsView struct {
	Running bool        `json:"running"`
	Jobs    []JobStatus `json:"jobs"`
}

// RunView is the body of POST /jobs/{name}/run.
type RunView struct {
	Job      string `json:"job"`
	Success  bool   `json:"success"`
	Skipped  bool   `json:"skipped,omitempty"`
	Duration string `json:"duration"`
	Error    string `json:"error,omitempty"`
}

// AdminHandler exposes the scheduler to operators:
//
//	GET  /jobs             registered jobs and whether the scheduler runs
//	POST /jobs/{name}/run  runs a job now, outside its schedule
//
// A manual run still takes the job lock, so it answers 409 while another
// replica holds it. Callers mount the handler behind their own auth.
func (s *Scheduler) AdminHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /jobs", s.handleListJobs)
	mux.HandleFunc("POST /jobs/{name}/run", s.handleRunJob)
	return mux
}

func (s *Scheduler) handleListJobs(w http.ResponseWriter, _ *http.Request) {
	infos := s.ListJobs()
	view := JobsView{Running: s.IsRunning(), Jobs: make([]JobStatus, 0, len(infos))}
	for _, info := range infos {
		view.Jobs = append(view.Jobs, JobStatus{
			Name:        info.Name,
			Description: info.Description,
			Schedule:    info.Schedule,
			NextRun:     info.NextRun,
			RunCount:    info.RunCount,
		})
	}
	writeAdminJSON(w, http.StatusOK, view)
}

func (s *Scheduler) handleRunJob(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	s.log.Info("manual job run requested", logger.String("job", name))

	res, err := s.RunNow(r.Context(), name)
	if errors.Is(err, ErrJobNotFound) {
		writeAdminJSON(w, http.StatusNotFound, RunView{Job: name, Error: err.Error()})
		return
	}

	view := RunView{
		Job:      name,
		Success:  res.Success,
		Skipped:  res.Skipped,
		Duration: res.Duration.Round(time.Millisecond).String(),
	}
	status := http.StatusOK
	switch {
	case err != nil:
		view.Error = err.Error()
		status = http.StatusInternalServerError
	case res.Skipped:
		status = http.StatusConflict
	}
	writeAdminJSON(w, status, view)
}

func writeAdminJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = sonic.ConfigStd.NewEncoder(w).Encode(body)
}
