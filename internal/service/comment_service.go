package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/mapper"
	"github.com/straye-as/pipeline-api/internal/repository"
	"go.uber.org/zap"
)

// CommentService attaches comments and file metadata to entities of the tenant
type CommentService struct {
	commentRepo *repository.CommentRepository
	profileRepo *repository.ProfileRepository
	logger      *zap.Logger
}

func NewCommentService(commentRepo *repository.CommentRepository, profileRepo *repository.ProfileRepository, logger *zap.Logger) *CommentService {
	return &CommentService{commentRepo: commentRepo, profileRepo: profileRepo, logger: logger}
}

func (s *CommentService) CreateComment(ctx context.Context, tc domain.TenantContext, req *domain.CreateCommentRequest) (*domain.CommentDTO, error) {
	if err := s.checkEntity(ctx, tc, req.Entity); err != nil {
		return nil, err
	}
	body := strings.TrimSpace(req.Body)
	if body == "" {
		return nil, domain.ValidationErrors{"comment": "This field is required"}
	}

	comment := &domain.Comment{
		OrgID:    tc.OrgID,
		Entity:   req.Entity,
		Body:     body,
		AuthorID: tc.ActorID(),
	}
	if err := s.commentRepo.CreateComment(ctx, comment); err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}

	dto := mapper.ToCommentDTO(comment)
	return &dto, nil
}

func (s *CommentService) ListComments(ctx context.Context, tc domain.TenantContext, entity domain.EntityRef) ([]domain.CommentDTO, error) {
	if err := s.checkEntity(ctx, tc, entity); err != nil {
		return nil, err
	}
	comments, err := s.commentRepo.ListComments(ctx, tc.OrgID, entity)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}

	dtos := make([]domain.CommentDTO, len(comments))
	for i := range comments {
		dtos[i] = mapper.ToCommentDTO(&comments[i])
	}
	return dtos, nil
}

func (s *CommentService) CreateAttachment(ctx context.Context, tc domain.TenantContext, req *domain.CreateAttachmentRequest) (*domain.AttachmentDTO, error) {
	if err := s.checkEntity(ctx, tc, req.Entity); err != nil {
		return nil, err
	}

	attachment := &domain.Attachment{
		OrgID:        tc.OrgID,
		Entity:       req.Entity,
		FileName:     strings.TrimSpace(req.FileName),
		ContentType:  req.ContentType,
		Size:         req.Size,
		URL:          req.URL,
		UploadedByID: tc.ActorID(),
	}
	if err := s.commentRepo.CreateAttachment(ctx, attachment); err != nil {
		return nil, fmt.Errorf("failed to create attachment: %w", err)
	}

	s.logger.Info("attachment added",
		zap.String("entity", req.Entity.String()),
		zap.String("file_name", attachment.FileName))

	dto := mapper.ToAttachmentDTO(attachment)
	return &dto, nil
}

func (s *CommentService) ListAttachments(ctx context.Context, tc domain.TenantContext, entity domain.EntityRef) ([]domain.AttachmentDTO, error) {
	if err := s.checkEntity(ctx, tc, entity); err != nil {
		return nil, err
	}
	attachments, err := s.commentRepo.ListAttachments(ctx, tc.OrgID, entity)
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}

	dtos := make([]domain.AttachmentDTO, len(attachments))
	for i := range attachments {
		dtos[i] = mapper.ToAttachmentDTO(&attachments[i])
	}
	return dtos, nil
}

// checkEntity validates the kind and, for kinds stored here, that the target exists in the org
func (s *CommentService) checkEntity(ctx context.Context, tc domain.TenantContext, entity domain.EntityRef) error {
	if !entity.Kind.IsValid() {
		return domain.ValidationErrors{"entity.kind": fmt.Sprintf("%q is not a supported entity kind", entity.Kind)}
	}

	var model interface{}
	switch entity.Kind {
	case domain.EntityKindOpportunity:
		model = &domain.Opportunity{}
	case domain.EntityKindAccount:
		model = &domain.Account{}
	default:
		return nil
	}

	missing, err := s.profileRepo.MissingIDs(ctx, tc.OrgID, model, []uuid.UUID{entity.ID})
	if err != nil {
		return fmt.Errorf("failed to check entity: %w", err)
	}
	if len(missing) > 0 {
		if entity.Kind == domain.EntityKindOpportunity {
			return ErrOpportunityNotFound
		}
		return ErrNotFound
	}
	return nil
}
