package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hobby-university/learner-hub/internal/domain/certificate"
	"github.com/hobby-university/learner-hub/internal/domain/learner"
	"github.com/hobby-university/learner-hub/internal/domain/progress"
	"github.com/hobby-university/learner-hub/internal/domain/shared"
	"github.com/hobby-university/learner-hub/pkg/logger"
	"github.com/hobby-university/learner-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET CERTIFICATE QUERY
// Builds the completion certificate and, when archiving is on, stores a copy
// in object storage.
// ══════════════════════════════════════════════════════════════════════════════

// GetCertificateQuery identifies the learner.
type GetCertificateQuery struct {
	LearnerID string `validate:"required"`
}

// Validate validates the query.
func (q GetCertificateQuery) Validate() error {
	if err := validate.Struct(q); err != nil {
		return validationError("GetCertificate", err)
	}
	return nil
}

// CertificateView is the certificate payload plus where it was archived.
type CertificateView struct {
	Certificate *certificate.Certificate `json:"certificate"`
	ObjectKey   string                   `json:"object_key,omitempty"`
}

// CertificateRecorder counts issued certificates. *metrics.Metrics satisfies it.
type CertificateRecorder interface {
	CertificateIssued()
}

// GetCertificateDeps groups the collaborators of GetCertificateHandler.
type GetCertificateDeps struct {
	Learners   learner.Repository
	Attendance progress.AttendanceRepository
	Results    progress.ResultRepository
	Calendar   timeutil.Calendar
	Clock      timeutil.Clock
	Logger     *logger.Logger

	// Archive is optional. When set, ArchiveFlag gates it per learner.
	Archive     certificate.Archive
	Features    FeatureGate
	ArchiveFlag string
	Recorder    CertificateRecorder
}

// GetCertificateHandler handles GetCertificateQuery.
type GetCertificateHandler struct {
	learners   learner.Repository
	attendance progress.AttendanceRepository
	results    progress.ResultRepository
	calendar   timeutil.Calendar
	clock      timeutil.Clock
	log        *logger.Logger

	archive     certificate.Archive
	features    FeatureGate
	archiveFlag string
	recorder    CertificateRecorder
}

// NewGetCertificateHandler creates a new GetCertificateHandler.
func NewGetCertificateHandler(deps GetCertificateDeps) *GetCertificateHandler {
	if deps.Clock == nil {
		deps.Clock = timeutil.SystemClock()
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	return &GetCertificateHandler{
		learners:    deps.Learners,
		attendance:  deps.Attendance,
		results:     deps.Results,
		calendar:    deps.Calendar,
		clock:       deps.Clock,
		log:         deps.Logger,
		archive:     deps.Archive,
		features:    deps.Features,
		archiveFlag: deps.ArchiveFlag,
		recorder:    deps.Recorder,
	}
}

// Handle executes the query. Archive failures are logged and the
// certificate is still returned, without an object key.
func (h *GetCertificateHandler) Handle(ctx context.Context, q GetCertificateQuery) (*CertificateView, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	profile, err := h.learners.GetByID(ctx, q.LearnerID)
	if err != nil {
		return nil, err
	}

	now := h.clock.Now()
	today := h.calendar.DateOf(now)

	snap, err := loadSnapshot(ctx, h.attendance, profile, today)
	switch {
	case errors.Is(err, shared.ErrInvalidRange):
		// A trial start after today (an admin-moved start date, or a clock in
		// another timezone) leaves no progress to show. Eligibility rests on
		// the trial flag alone, so the certificate is still issued.
		snap = progress.Snapshot{}
	case err != nil:
		return nil, err
	}
	if !progress.EvaluateCertificateEligibility(profile, snap) {
		return nil, shared.ErrCertificateNotAvailable
	}

	results, err := h.results.ListByLearner(ctx, profile.ID)
	if err != nil {
		return nil, fmt.Errorf("load results: %w", err)
	}

	cert, err := certificate.Issue(profile, snap, results, h.completionDate(profile, results, today), now)
	if err != nil {
		return nil, err
	}
	if h.recorder != nil {
		h.recorder.CertificateIssued()
	}

	view := &CertificateView{Certificate: cert}
	if h.archive != nil && enabled(h.features, h.archiveFlag, profile.ID) {
		key, err := h.archive.Put(ctx, cert)
		if err != nil {
			h.log.Warn("certificate archive failed",
				logger.LearnerID(profile.ID),
				logger.String("certificate_id", cert.CertificateID),
				logger.Err(err),
			)
		} else {
			view.ObjectKey = key
		}
	}

	h.log.Info("certificate issued",
		logger.LearnerID(profile.ID),
		logger.String("certificate_id", cert.CertificateID),
		logger.String("grade", cert.Grade),
	)
	return view, nil
}

// completionDate is the calendar date of the last quiz. Without quizzes it
// is the last trial day, or today if the trial was completed early.
func (h *GetCertificateHandler) completionDate(p *learner.Profile, results []progress.LessonResult, today time.Time) time.Time {
	var last time.Time
	for _, r := range results {
		if r.CompletedAt.After(last) {
			last = r.CompletedAt
		}
	}
	if !last.IsZero() {
		return h.calendar.DateOf(last)
	}

	trialEnd := timeutil.AddDays(p.TrialStartDate, progress.TrialLengthDays-1)
	if trialEnd.After(today) {
		return today
	}
	return trialEnd
}
