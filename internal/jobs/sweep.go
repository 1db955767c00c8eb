package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/pipeline-api/internal/domain"
	"go.uber.org/zap"
)

// OrganizationLister lists the organizations a sweep visits
type OrganizationLister interface {
	ListActive(ctx context.Context) ([]domain.Organization, error)
}

// sweepAll runs fn for every active organization. A failing or panicking org is
// logged and skipped; the others are still processed.
func sweepAll(ctx context.Context, name string, orgs OrganizationLister, logger *zap.Logger, fn func(ctx context.Context, orgID uuid.UUID) (*RunResult, error)) {
	start := time.Now()

	list, err := orgs.ListActive(ctx)
	if err != nil {
		logger.Error("failed to list organizations", zap.String("job_name", name), zap.Error(err))
		return
	}

	var total RunResult
	failedOrgs := 0
	for _, org := range list {
		res, err := runIsolated(ctx, org.ID, fn)
		if err != nil {
			failedOrgs++
			logger.Error("job failed for organization",
				zap.String("job_name", name),
				zap.String("org_id", org.ID.String()),
				zap.Error(err))
			continue
		}
		total.Checked += res.Checked
		total.Matched += res.Matched
		total.Notified += res.Notified
		total.Failed += res.Failed
	}

	logger.Info("job sweep completed",
		zap.String("job_name", name),
		zap.Int("organizations", len(list)),
		zap.Int("failed_organizations", failedOrgs),
		zap.Int("checked", total.Checked),
		zap.Int("matched", total.Matched),
		zap.Int("notified", total.Notified),
		zap.Int("failed", total.Failed),
		zap.Duration("duration", time.Since(start)))
}

func runIsolated(ctx context.Context, orgID uuid.UUID, fn func(ctx context.Context, orgID uuid.UUID) (*RunResult, error)) (res *RunResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, orgID)
}

// recipient collects what one person is told about in a single email
type recipient struct {
	profile domain.Profile
	items   []map[string]interface{}
}

// recipientSet keeps recipients in first-seen order
type recipientSet struct {
	order []uuid.UUID
	byID  map[uuid.UUID]*recipient
}

func newRecipientSet() *recipientSet {
	return &recipientSet{byID: make(map[uuid.UUID]*recipient)}
}

func (s *recipientSet) add(p domain.Profile, item map[string]interface{}) {
	r, ok := s.byID[p.ID]
	if !ok {
		r = &recipient{profile: p}
		s.byID[p.ID] = r
		s.order = append(s.order, p.ID)
	}
	r.items = append(r.items, item)
}

func (s *recipientSet) each(fn func(r *recipient)) {
	for _, id := range s.order {
		fn(s.byID[id])
	}
}
