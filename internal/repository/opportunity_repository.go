package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/pipeline-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrStaleVersion is returned when an opportunity changed since it was read
var ErrStaleVersion = errors.New("opportunity was modified concurrently")

// OpportunityFilters contains the filter options for listing opportunities
type OpportunityFilters struct {
	Stage      *domain.Stage
	AssignedTo *uuid.UUID
	AccountID  *uuid.UUID
	IsActive   *bool
	OpenOnly   bool
	Search     string
}

// OpportunityLinks are the many-to-many references of an opportunity.
// A nil slice leaves that association untouched, an empty one clears it.
type OpportunityLinks struct {
	AssignedTo []uuid.UUID
	Teams      []uuid.UUID
	Contacts   []uuid.UUID
	Tags       []uuid.UUID
}

var opportunitySortFields = map[string]string{
	"name":           "name",
	"stage":          "stage",
	"amount":         "amount",
	"probability":    "probability",
	"closedOn":       "closed_on",
	"stageChangedAt": "stage_changed_at",
	"createdAt":      "created_at",
	"updatedAt":      "updated_at",
}

type linkTable struct {
	table  string
	column string
}

var (
	assigneeLinks = linkTable{"opportunity_assignees", "profile_id"}
	teamLinks     = linkTable{"opportunity_teams", "team_id"}
	contactLinks  = linkTable{"opportunity_contacts", "contact_id"}
	tagLinks      = linkTable{"opportunity_tags", "tag_id"}
)

type OpportunityRepository struct {
	db *gorm.DB
}

func NewOpportunityRepository(db *gorm.DB) *OpportunityRepository {
	return &OpportunityRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *OpportunityRepository) WithTx(tx *gorm.DB) *OpportunityRepository {
	return &OpportunityRepository{db: tx}
}

// Create inserts the opportunity and its links. Associations are written
// through the join tables only; referenced rows must already exist.
func (r *OpportunityRepository) Create(ctx context.Context, opp *domain.Opportunity, links OpportunityLinks) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(opp).Error; err != nil {
			return err
		}
		return replaceLinks(tx, opp.ID, links)
	})
}

// GetByID loads one opportunity with its links and line items
func (r *OpportunityRepository) GetByID(ctx context.Context, orgID, id uuid.UUID) (*domain.Opportunity, error) {
	var opp domain.Opportunity
	err := ForOrg(r.preloaded(ctx), orgID).
		Where("id = ?", id).
		First(&opp).Error
	if err != nil {
		return nil, err
	}
	return &opp, nil
}

// Find loads the bare opportunity row without associations
func (r *OpportunityRepository) Find(ctx context.Context, orgID, id uuid.UUID) (*domain.Opportunity, error) {
	var opp domain.Opportunity
	if err := ForOrg(r.db.WithContext(ctx), orgID).Where("id = ?", id).First(&opp).Error; err != nil {
		return nil, err
	}
	return &opp, nil
}

// GetForUpdate reads the bare opportunity row with a row lock where the database supports it
func (r *OpportunityRepository) GetForUpdate(ctx context.Context, orgID, id uuid.UUID) (*domain.Opportunity, error) {
	var opp domain.Opportunity
	err := ForOrg(r.db.WithContext(ctx), orgID).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&opp).Error
	if err != nil {
		return nil, err
	}
	return &opp, nil
}

// NameTaken reports whether another opportunity in the org already uses nameKey
func (r *OpportunityRepository) NameTaken(ctx context.Context, orgID uuid.UUID, nameKey string, excludeID *uuid.UUID) (bool, error) {
	var count int64
	query := ForOrg(r.db.WithContext(ctx).Model(&domain.Opportunity{}), orgID).
		Where("name_key = ?", nameKey)
	if excludeID != nil {
		query = query.Where("id <> ?", *excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Update writes every column of opp guarded by its version, then bumps the version.
// ErrStaleVersion is returned when the row changed since it was read.
func (r *OpportunityRepository) Update(ctx context.Context, opp *domain.Opportunity, links OpportunityLinks) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		readVersion := opp.Version
		opp.Version = readVersion + 1

		result := tx.Model(opp).
			Where("org_id = ? AND version = ?", opp.OrgID, readVersion).
			Select("*").
			Omit("ID", "CreatedAt", "OrgID", clause.Associations).
			Updates(opp)
		if result.Error != nil {
			opp.Version = readVersion
			return result.Error
		}
		if result.RowsAffected == 0 {
			opp.Version = readVersion
			return ErrStaleVersion
		}
		return replaceLinks(tx, opp.ID, links)
	})
}

// Delete removes the opportunity together with its line items, links, history,
// comments and attachments
func (r *OpportunityRepository) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := ForOrg(tx, orgID).Where("id = ?", id).Delete(&domain.Opportunity{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		if err := tx.Where("opportunity_id = ?", id).Delete(&domain.OpportunityLineItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("opportunity_id = ?", id).Delete(&domain.OpportunityStageHistory{}).Error; err != nil {
			return err
		}
		for _, lt := range []linkTable{assigneeLinks, teamLinks, contactLinks, tagLinks} {
			if err := tx.Exec("DELETE FROM "+lt.table+" WHERE opportunity_id = ?", id).Error; err != nil {
				return err
			}
		}
		entity := domain.EntityRef{Kind: domain.EntityKindOpportunity, ID: id}
		if err := tx.Where("entity_kind = ? AND entity_id = ?", entity.Kind, entity.ID).Delete(&domain.Comment{}).Error; err != nil {
			return err
		}
		return tx.Where("entity_kind = ? AND entity_id = ?", entity.Kind, entity.ID).Delete(&domain.Attachment{}).Error
	})
}

// List returns a page of opportunities matching filters
func (r *OpportunityRepository) List(ctx context.Context, orgID uuid.UUID, page, pageSize int, filters *OpportunityFilters, sort SortConfig) ([]domain.Opportunity, int64, error) {
	var opps []domain.Opportunity
	var total int64

	query := r.applyFilters(ForOrg(r.db.WithContext(ctx).Model(&domain.Opportunity{}), orgID), filters)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, pageSize = NormalizePage(page, pageSize)
	err := r.applyFilters(ForOrg(r.preloaded(ctx), orgID), filters).
		Order(BuildOrderClause(sort, opportunitySortFields, "updated_at")).
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&opps).Error

	return opps, total, err
}

// ListAll returns every opportunity matching filters, for filters that cannot be expressed in SQL
func (r *OpportunityRepository) ListAll(ctx context.Context, orgID uuid.UUID, filters *OpportunityFilters, sort SortConfig) ([]domain.Opportunity, error) {
	var opps []domain.Opportunity
	err := r.applyFilters(ForOrg(r.preloaded(ctx), orgID), filters).
		Order(BuildOrderClause(sort, opportunitySortFields, "updated_at")).
		Find(&opps).Error
	return opps, err
}

// ListOpenForSweep returns active opportunities in open stages with a stage timestamp,
// with assignees loaded
func (r *OpportunityRepository) ListOpenForSweep(ctx context.Context, orgID uuid.UUID) ([]domain.Opportunity, error) {
	var opps []domain.Opportunity
	err := ForOrg(r.db.WithContext(ctx), orgID).
		Preload("AssignedTo").
		Where("is_active = ?", true).
		Where("stage IN ?", domain.OpenStages()).
		Where("stage_changed_at IS NOT NULL").
		Order("stage_changed_at ASC").
		Find(&opps).Error
	return opps, err
}

// ListOpen returns active opportunities in open stages without associations
func (r *OpportunityRepository) ListOpen(ctx context.Context, orgID uuid.UUID) ([]domain.Opportunity, error) {
	var opps []domain.Opportunity
	err := ForOrg(r.db.WithContext(ctx), orgID).
		Where("is_active = ?", true).
		Where("stage IN ?", domain.OpenStages()).
		Find(&opps).Error
	return opps, err
}

// ListClosedWon returns CLOSED_WON opportunities closed within [from, to].
// A non-nil assignees restricts to opportunities assigned to at least one of them.
func (r *OpportunityRepository) ListClosedWon(ctx context.Context, orgID uuid.UUID, from, to time.Time, assignees []uuid.UUID) ([]domain.Opportunity, error) {
	var opps []domain.Opportunity
	query := ForOrg(r.db.WithContext(ctx), orgID).
		Where("stage = ?", domain.StageClosedWon).
		Where("closed_on >= ? AND closed_on <= ?", domain.DateOnly(from), domain.DateOnly(to))

	if assignees != nil {
		if len(assignees) == 0 {
			return nil, nil
		}
		query = query.Where("id IN (?)",
			r.db.Table(assigneeLinks.table).Select("opportunity_id").Where("profile_id IN ?", assignees))
	}

	err := query.Order("closed_on ASC").Find(&opps).Error
	return opps, err
}

func (r *OpportunityRepository) preloaded(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("AssignedTo").
		Preload("Teams").
		Preload("Contacts").
		Preload("Tags").
		Preload("LineItems", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC, created_at ASC")
		})
}

func (r *OpportunityRepository) applyFilters(query *gorm.DB, filters *OpportunityFilters) *gorm.DB {
	if filters == nil {
		return query
	}
	if filters.Stage != nil {
		query = query.Where("stage = ?", *filters.Stage)
	}
	if filters.OpenOnly {
		query = query.Where("stage IN ?", domain.OpenStages())
	}
	if filters.AccountID != nil {
		query = query.Where("account_id = ?", *filters.AccountID)
	}
	if filters.IsActive != nil {
		query = query.Where("is_active = ?", *filters.IsActive)
	}
	if filters.AssignedTo != nil {
		query = query.Where("id IN (?)",
			r.db.Table(assigneeLinks.table).Select("opportunity_id").Where("profile_id = ?", *filters.AssignedTo))
	}
	if s := strings.TrimSpace(filters.Search); s != "" {
		query = query.Where("name_key LIKE ?", "%"+domain.NormalizeName(s)+"%")
	}
	return query
}

func replaceLinks(tx *gorm.DB, oppID uuid.UUID, links OpportunityLinks) error {
	sets := []struct {
		lt  linkTable
		ids []uuid.UUID
	}{
		{assigneeLinks, links.AssignedTo},
		{teamLinks, links.Teams},
		{contactLinks, links.Contacts},
		{tagLinks, links.Tags},
	}

	for _, s := range sets {
		if s.ids == nil {
			continue
		}
		if err := tx.Exec("DELETE FROM "+s.lt.table+" WHERE opportunity_id = ?", oppID).Error; err != nil {
			return err
		}
		if len(s.ids) == 0 {
			continue
		}
		rows := make([]map[string]interface{}, 0, len(s.ids))
		for _, id := range s.ids {
			rows = append(rows, map[string]interface{}{"opportunity_id": oppID, s.lt.column: id})
		}
		if err := tx.Table(s.lt.table).Create(rows).Error; err != nil {
			return err
		}
	}
	return nil
}
