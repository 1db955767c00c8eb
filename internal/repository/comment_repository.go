package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/straye-as/pipeline-api/internal/domain"
	"gorm.io/gorm"
)

// CommentRepository stores comments and attachments keyed by EntityRef
type CommentRepository struct {
	db *gorm.DB
}

func NewCommentRepository(db *gorm.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

func (r *CommentRepository) CreateComment(ctx context.Context, comment *domain.Comment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

func (r *CommentRepository) ListComments(ctx context.Context, orgID uuid.UUID, entity domain.EntityRef) ([]domain.Comment, error) {
	var comments []domain.Comment
	err := ForOrg(r.db.WithContext(ctx), orgID).
		Where("entity_kind = ? AND entity_id = ?", entity.Kind, entity.ID).
		Order("created_at ASC").
		Find(&comments).Error
	return comments, err
}

func (r *CommentRepository) CreateAttachment(ctx context.Context, attachment *domain.Attachment) error {
	return r.db.WithContext(ctx).Create(attachment).Error
}

func (r *CommentRepository) ListAttachments(ctx context.Context, orgID uuid.UUID, entity domain.EntityRef) ([]domain.Attachment, error) {
	var attachments []domain.Attachment
	err := ForOrg(r.db.WithContext(ctx), orgID).
		Where("entity_kind = ? AND entity_id = ?", entity.Kind, entity.ID).
		Order("created_at ASC").
		Find(&attachments).Error
	return attachments, err
}
