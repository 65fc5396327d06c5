// Package learner contains the domain model of a Hobby University learner.
//
// A Profile is created at sign-up with the trial starting on the sign-up date.
// Its enrollment flags (TrialCompleted, CertificateEarned, CurrentCourseID)
// are changed only by the enrollment transitions in this package, and only
// forward:
//
//	Trial --CompleteTrial--> (trial done) --AwardCertificate--> Certified --StartCourse--> Advanced
//
// Progress derivation (days, streaks, phase) lives in the progress package,
// which reads profiles but never writes them.
package learner
