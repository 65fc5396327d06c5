package query

import (
	"context"
	"fmt"
	"time"

	"github.com/hobby-university/learner-hub/internal/domain/learner"
	"github.com/hobby-university/learner-hub/internal/domain/progress"
	"github.com/hobby-university/learner-hub/pkg/logger"
	"github.com/hobby-university/learner-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET DASHBOARD QUERY
// Everything the learner sees on the home screen: day count, completed days,
// streak, attendance rate, phase, achievements and the next lesson.
// ══════════════════════════════════════════════════════════════════════════════

// GetDashboardQuery identifies the learner.
type GetDashboardQuery struct {
	LearnerID string `validate:"required"`
}

// Validate validates the query.
func (q GetDashboardQuery) Validate() error {
	if err := validate.Struct(q); err != nil {
		return validationError("GetDashboard", err)
	}
	return nil
}

// DashboardView is the dashboard payload.
type DashboardView struct {
	LearnerID string `json:"learner_id"`
	FirstName string `json:"first_name"`
	FullName  string `json:"full_name"`
	Hobby     string `json:"hobby"`
	Location  string `json:"location"`

	Phase      progress.Phase `json:"phase"`
	PhaseLabel string         `json:"phase_label"`

	Progress       progress.Snapshot `json:"progress"`
	NextLessonDay  int               `json:"next_lesson_day"`
	DayLabel       string            `json:"day_label"`
	CourseProgress int               `json:"course_progress"`

	CertificateAvailable bool                   `json:"certificate_available"`
	Achievements         []progress.Achievement `json:"achievements"`

	TrialStartDate string `json:"trial_start_date"`
	AsOf           string `json:"as_of"`
}

// DashboardCache stores computed dashboards per learner, generation and
// calendar day. Invalidation moves a learner to a new generation, so a view
// computed before it is written where later readers never look.
// *redis.DashboardCache satisfies it.
type DashboardCache interface {
	Generation(ctx context.Context, learnerID string) (int64, error)
	Get(ctx context.Context, learnerID string, gen int64, day time.Time, dest any) (bool, error)
	Set(ctx context.Context, learnerID string, gen int64, day time.Time, view any) error
}

// CacheRecorder counts cache hits and misses. *metrics.Metrics satisfies it.
type CacheRecorder interface {
	CacheLookup(cache string, hit bool)
}

// GetDashboardDeps groups the collaborators of GetDashboardHandler.
type GetDashboardDeps struct {
	Learners   learner.Repository
	Attendance progress.AttendanceRepository
	Calendar   timeutil.Calendar
	Clock      timeutil.Clock
	Logger     *logger.Logger

	// Cache is optional. When set, CacheFlag gates it per learner.
	Cache     DashboardCache
	Features  FeatureGate
	CacheFlag string
	Recorder  CacheRecorder
}

// GetDashboardHandler handles GetDashboardQuery.
type GetDashboardHandler struct {
	learners   learner.Repository
	attendance progress.AttendanceRepository
	calendar   timeutil.Calendar
	clock      timeutil.Clock
	log        *logger.Logger

	cache     DashboardCache
	features  FeatureGate
	cacheFlag string
	recorder  CacheRecorder
}

// NewGetDashboardHandler creates a new GetDashboardHandler.
func NewGetDashboardHandler(deps GetDashboardDeps) *GetDashboardHandler {
	if deps.Clock == nil {
		deps.Clock = timeutil.SystemClock()
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	return &GetDashboardHandler{
		learners:   deps.Learners,
		attendance: deps.Attendance,
		calendar:   deps.Calendar,
		clock:      deps.Clock,
		log:        deps.Logger,
		cache:      deps.Cache,
		features:   deps.Features,
		cacheFlag:  deps.CacheFlag,
		recorder:   deps.Recorder,
	}
}

// Handle executes the query.
func (h *GetDashboardHandler) Handle(ctx context.Context, q GetDashboardQuery) (*DashboardView, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	today := h.calendar.Today(h.clock)
	useCache := h.cache != nil && enabled(h.features, h.cacheFlag, q.LearnerID)

	// The generation is read before any data so that an invalidation racing
	// this request lands on a newer generation than the one written below.
	var gen int64
	if useCache {
		var err error
		if gen, err = h.cache.Generation(ctx, q.LearnerID); err != nil {
			h.log.Warn("dashboard cache unavailable", logger.LearnerID(q.LearnerID), logger.Err(err))
			useCache = false
		}
	}

	if useCache {
		var cached DashboardView
		hit, err := h.cache.Get(ctx, q.LearnerID, gen, today, &cached)
		if err != nil {
			h.log.Warn("dashboard cache read failed", logger.LearnerID(q.LearnerID), logger.Err(err))
		}
		h.recordLookup(hit)
		if hit {
			return &cached, nil
		}
	}

	profile, err := h.learners.GetByID(ctx, q.LearnerID)
	if err != nil {
		return nil, err
	}

	snap, err := loadSnapshot(ctx, h.attendance, profile, today)
	if err != nil {
		return nil, err
	}

	view := BuildDashboard(profile, snap, today)

	if useCache {
		if err := h.cache.Set(ctx, q.LearnerID, gen, today, view); err != nil {
			h.log.Warn("dashboard cache write failed", logger.LearnerID(q.LearnerID), logger.Err(err))
		}
	}

	return view, nil
}

func (h *GetDashboardHandler) recordLookup(hit bool) {
	if h.recorder != nil {
		h.recorder.CacheLookup("dashboard", hit)
	}
}

// BuildDashboard assembles the dashboard from a profile and its snapshot.
func BuildDashboard(p *learner.Profile, snap progress.Snapshot, today time.Time) *DashboardView {
	phase := progress.DeterminePhase(p)
	next := progress.NextLessonDay(snap)

	return &DashboardView{
		LearnerID:            p.ID,
		FirstName:            p.FirstName(),
		FullName:             p.FullName,
		Hobby:                p.Hobby.String(),
		Location:             p.Location,
		Phase:                phase,
		PhaseLabel:           phase.Label(),
		Progress:             snap,
		NextLessonDay:        next,
		DayLabel:             fmt.Sprintf("Day %d of %d", next, snap.TotalDays),
		CourseProgress:       progress.CourseProgress(snap),
		CertificateAvailable: progress.EvaluateCertificateEligibility(p, snap),
		Achievements:         progress.EvaluateAchievements(p, snap),
		TrialStartDate:       timeutil.FormatDate(p.TrialStartDate),
		AsOf:                 timeutil.FormatDate(today),
	}
}
