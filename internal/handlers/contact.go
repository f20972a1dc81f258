package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/cutroom/cutroom/internal/inquiries"
	"github.com/cutroom/cutroom/internal/metrics"
)

// mailTimeout bounds the SMTP conversation so a slow relay cannot hold the
// response hostage.
const mailTimeout = 10 * time.Second

// InquiryMailer sends a notification for a persisted inquiry. Satisfied by
// *mailer.Mailer; faked in tests.
type InquiryMailer interface {
	SendInquiry(ctx context.Context, inq *inquiries.Inquiry) error
}

// ContactRequest is the validated contact/booking form payload.
type ContactRequest struct {
	Name    string `json:"name" minLength:"1" maxLength:"120" doc:"Client name"`
	Email   string `json:"email" format:"email" maxLength:"254" doc:"Reply-to address"`
	Phone   string `json:"phone,omitempty" maxLength:"40" doc:"Optional phone number"`
	Service string `json:"service,omitempty" maxLength:"60" doc:"Requested service (editing, color, motion, other)"`
	Message string `json:"message" minLength:"1" maxLength:"4000" doc:"Project description"`
}

// ContactInput is the huma input wrapper for the contact operation.
type ContactInput struct {
	Body ContactRequest
}

// ContactBody acknowledges a received inquiry.
type ContactBody struct {
	ID     string `json:"id" doc:"Inquiry reference"`
	Status string `json:"status" example:"received" doc:"Submission status"`
}

// ContactOutput is the huma output wrapper for the contact operation.
type ContactOutput struct {
	Status int
	Body   ContactBody
}

// ContactHandler validates, persists, and forwards booking inquiries.
// Persistence is the source of truth: once an inquiry is saved, a mail
// failure is logged but never fails the request.
type ContactHandler struct {
	store  *inquiries.Store
	mailer InquiryMailer
}

// NewContactHandler creates a ContactHandler. The mailer may be nil when no
// SMTP relay is configured; inquiries are then only persisted.
func NewContactHandler(store *inquiries.Store, mailer InquiryMailer) *ContactHandler {
	return &ContactHandler{store: store, mailer: mailer}
}

// Register wires the contact operation into the huma API. Field validation
// (lengths, email format) is enforced by huma from the struct tags before
// the handler runs.
func (h *ContactHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "post-contact",
		Method:        http.MethodPost,
		Path:          "/api/contact",
		Summary:       "Submit a booking inquiry",
		Description:   "Validates and records a contact/booking inquiry, then notifies the studio by email.",
		Tags:          []string{"Contact"},
		DefaultStatus: http.StatusCreated,
	}, h.submit)
}

func (h *ContactHandler) submit(ctx context.Context, in *ContactInput) (*ContactOutput, error) {
	inq := &inquiries.Inquiry{
		Name:    in.Body.Name,
		Email:   in.Body.Email,
		Phone:   in.Body.Phone,
		Service: in.Body.Service,
		Message: in.Body.Message,
	}

	if err := h.store.Save(ctx, inq); err != nil {
		slog.Error("saving inquiry failed", "error", err)
		metrics.InquiriesTotal.WithLabelValues("error").Inc()
		return nil, huma.Error500InternalServerError("Failed to record inquiry")
	}

	if h.mailer != nil {
		mailCtx, cancel := context.WithTimeout(ctx, mailTimeout)
		defer cancel()
		if err := h.mailer.SendInquiry(mailCtx, inq); err != nil {
			// The inquiry is already durable; delivery is retried by humans
			// reading the inquiries table.
			slog.Error("inquiry notification mail failed", "inquiry", inq.ID, "error", err)
		}
	}

	metrics.InquiriesTotal.WithLabelValues("received").Inc()
	slog.Info("inquiry received", "inquiry", inq.ID, "service", inq.Service)

	return &ContactOutput{
		Status: http.StatusCreated,
		Body:   ContactBody{ID: inq.ID, Status: "received"},
	}, nil
}
