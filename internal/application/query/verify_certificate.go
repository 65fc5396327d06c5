package query

import (
	"context"

	"github.com/hobby-university/learner-hub/internal/domain/certificate"
	"github.com/hobby-university/learner-hub/internal/domain/shared"
	"github.com/hobby-university/learner-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// VERIFY CERTIFICATE QUERY
// Lets anyone holding a certificate ID (an employer, a club) check it against
// the archived copy.
// ══════════════════════════════════════════════════════════════════════════════

// VerifyCertificateQuery identifies an issued certificate.
type VerifyCertificateQuery struct {
	CertificateID string `validate:"required,startswith=CERT-,len=13"`
}

// Validate validates the query.
func (q VerifyCertificateQuery) Validate() error {
	if err := validate.Struct(q); err != nil {
		return validationError("VerifyCertificate", err)
	}
	return nil
}

// VerifiedCertificateView is the archived payload of a genuine certificate.
type VerifiedCertificateView struct {
	Valid       bool                     `json:"valid"`
	Certificate *certificate.Certificate `json:"certificate"`
}

// VerifyCertificateHandler handles VerifyCertificateQuery.
type VerifyCertificateHandler struct {
	archive certificate.Archive
	log     *logger.Logger
}

// NewVerifyCertificateHandler creates a new VerifyCertificateHandler. A nil
// archive makes every lookup report the service as unavailable.
func NewVerifyCertificateHandler(archive certificate.Archive, log *logger.Logger) *VerifyCertificateHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &VerifyCertificateHandler{archive: archive, log: log}
}

// Handle executes the query. An ID that was never archived is
// shared.ErrCertificateNotFound.
func (h *VerifyCertificateHandler) Handle(ctx context.Context, q VerifyCertificateQuery) (*VerifiedCertificateView, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if h.archive == nil {
		return nil, shared.ErrArchiveDisabled
	}

	cert, err := h.archive.Get(ctx, q.CertificateID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.ErrCertificateNotFound
		}
		return nil, err
	}

	h.log.Debug("certificate verified", logger.String("certificate_id", cert.CertificateID))
	return &VerifiedCertificateView{Valid: true, Certificate: cert}, nil
}
