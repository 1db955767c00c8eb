package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/service"
	"go.uber.org/zap"
)

// CommentHandler serves comments and attachment metadata for any entity kind
type CommentHandler struct {
	commentService *service.CommentService
	logger         *zap.Logger
}

func NewCommentHandler(commentService *service.CommentService, logger *zap.Logger) *CommentHandler {
	return &CommentHandler{
		commentService: commentService,
		logger:         logger,
	}
}

// @Summary List comments
// @Tags Comments
// @Produce json
// @Param kind query string true "Entity kind (account, lead, case, opportunity, task)"
// @Param id query string true "Entity ID"
// @Success 200 {array} domain.CommentDTO
// @Failure 400 {object} domain.ErrorResponse
// @Failure 404 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /comments [get]
func (h *CommentHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	entity, ok := entityQuery(w, r)
	if !ok {
		return
	}

	comments, err := h.commentService.ListComments(r.Context(), tc, entity)
	if err != nil {
		respondServiceError(w, h.logger, err, "list comments")
		return
	}
	respondJSON(w, http.StatusOK, comments)
}

// @Summary Add comment
// @Description The entity comes from the body, or from the kind and id query parameters when the body has none
// @Tags Comments
// @Accept json
// @Produce json
// @Param kind query string false "Entity kind"
// @Param id query string false "Entity ID"
// @Param request body domain.CreateCommentRequest true "Comment"
// @Success 201 {object} domain.CommentDTO
// @Failure 400 {object} domain.ErrorResponse
// @Failure 404 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /comments [post]
func (h *CommentHandler) CreateComment(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	var req domain.CreateCommentRequest
	req.Entity = entityFromQuery(r)
	if !decodeAndValidate(w, r, &req) {
		return
	}

	comment, err := h.commentService.CreateComment(r.Context(), tc, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "create comment")
		return
	}
	respondJSON(w, http.StatusCreated, comment)
}

// @Summary List attachments
// @Tags Comments
// @Produce json
// @Param kind query string true "Entity kind"
// @Param id query string true "Entity ID"
// @Success 200 {array} domain.AttachmentDTO
// @Failure 400 {object} domain.ErrorResponse
// @Failure 404 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /attachments [get]
func (h *CommentHandler) ListAttachments(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	entity, ok := entityQuery(w, r)
	if !ok {
		return
	}

	attachments, err := h.commentService.ListAttachments(r.Context(), tc, entity)
	if err != nil {
		respondServiceError(w, h.logger, err, "list attachments")
		return
	}
	respondJSON(w, http.StatusOK, attachments)
}

// @Summary Register attachment
// @Description Records the metadata of a file already uploaded to storage
// @Tags Comments
// @Accept json
// @Produce json
// @Param request body domain.CreateAttachmentRequest true "Attachment metadata"
// @Success 201 {object} domain.AttachmentDTO
// @Failure 400 {object} domain.ErrorResponse
// @Failure 404 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /attachments [post]
func (h *CommentHandler) CreateAttachment(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	var req domain.CreateAttachmentRequest
	req.Entity = entityFromQuery(r)
	if !decodeAndValidate(w, r, &req) {
		return
	}

	attachment, err := h.commentService.CreateAttachment(r.Context(), tc, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "create attachment")
		return
	}
	respondJSON(w, http.StatusCreated, attachment)
}

func entityFromQuery(r *http.Request) domain.EntityRef {
	q := r.URL.Query()
	ref := domain.EntityRef{Kind: domain.EntityKind(q.Get("kind"))}
	if id, err := uuid.Parse(q.Get("id")); err == nil {
		ref.ID = id
	}
	return ref
}

// entityQuery requires both kind and id on a list request
func entityQuery(w http.ResponseWriter, r *http.Request) (domain.EntityRef, bool) {
	ref := entityFromQuery(r)
	errs := domain.ValidationErrors{}
	if ref.Kind == "" {
		errs.Add("kind", "This field is required")
	}
	if ref.ID == uuid.Nil {
		errs.Add("id", "Must be a valid UUID")
	}
	if len(errs) > 0 {
		respondFieldErrors(w, errs)
		return domain.EntityRef{}, false
	}
	return ref, true
}
