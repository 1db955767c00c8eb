package jobs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/mail"
	"go.uber.org/zap"
)

// StaleOpportunitiesJobName is the name of the stale opportunity sweep
const StaleOpportunitiesJobName = "stale-opportunities"

// OpenOpportunityLister loads the open opportunities of an org with their assignees
type OpenOpportunityLister interface {
	ListOpenForSweep(ctx context.Context, orgID uuid.UUID) ([]domain.Opportunity, error)
}

// AgingConfigLoader loads an org's stage aging overrides
type AgingConfigLoader interface {
	ConfigSet(ctx context.Context, orgID uuid.UUID) (domain.AgingConfigSet, error)
}

// AdminLister lists the active admins of an org
type AdminLister interface {
	ListAdmins(ctx context.Context, orgID uuid.UUID) ([]domain.Profile, error)
}

// StaleOpportunitiesJob finds opportunities that have sat in their stage past the rotten
// threshold and sends each responsible person one summary email.
type StaleOpportunitiesJob struct {
	orgs      OrganizationLister
	opps      OpenOpportunityLister
	aging     AgingConfigLoader
	admins    AdminLister
	mailer    mail.Mailer
	logger    *zap.Logger
	timeout   time.Duration
	publicURL string
	now       func() time.Time
}

func NewStaleOpportunitiesJob(
	orgs OrganizationLister,
	opps OpenOpportunityLister,
	aging AgingConfigLoader,
	admins AdminLister,
	mailer mail.Mailer,
	logger *zap.Logger,
	timeout time.Duration,
	publicURL string,
) *StaleOpportunitiesJob {
	return &StaleOpportunitiesJob{
		orgs:      orgs,
		opps:      opps,
		aging:     aging,
		admins:    admins,
		mailer:    mailer,
		logger:    logger.With(zap.String("job_name", StaleOpportunitiesJobName)),
		timeout:   timeout,
		publicURL: strings.TrimRight(publicURL, "/"),
		now:       time.Now,
	}
}

// SetClock replaces the time source
func (j *StaleOpportunitiesJob) SetClock(now func() time.Time) {
	j.now = now
}

func (j *StaleOpportunitiesJob) Name() string {
	return StaleOpportunitiesJobName
}

// Run sweeps every active organization. Called by the scheduler.
func (j *StaleOpportunitiesJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	sweepAll(ctx, j.Name(), j.orgs, j.logger, j.RunForOrg)
}

// RunForOrg checks one organization's open opportunities. Deals without assignees
// are reported to every admin. A failed email is logged and counted, not returned.
func (j *StaleOpportunitiesJob) RunForOrg(ctx context.Context, orgID uuid.UUID) (*RunResult, error) {
	start := time.Now()
	now := j.now()
	res := &RunResult{Job: j.Name(), OrgID: orgID}

	configs, err := j.aging.ConfigSet(ctx, orgID)
	if err != nil {
		return nil, err
	}
	opps, err := j.opps.ListOpenForSweep(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list open opportunities: %w", err)
	}
	res.Checked = len(opps)

	recipients := newRecipientSet()
	var admins []domain.Profile
	adminsLoaded := false

	for i := range opps {
		opp := &opps[i]
		check := domain.CheckStale(opp, configs, now)
		if !check.Stale {
			continue
		}
		res.Matched++

		item := j.staleItem(opp, check)
		if len(opp.AssignedTo) > 0 {
			for _, p := range opp.AssignedTo {
				recipients.add(p, item)
			}
			continue
		}

		if !adminsLoaded {
			admins, err = j.admins.ListAdmins(ctx, orgID)
			if err != nil {
				return nil, fmt.Errorf("failed to list admins: %w", err)
			}
			adminsLoaded = true
		}
		for _, p := range admins {
			recipients.add(p, item)
		}
	}

	recipients.each(func(r *recipient) {
		if r.profile.Email == "" || !r.profile.IsActive {
			return
		}
		err := j.mailer.Send(ctx, mail.TemplateStaleOpportunities, []string{r.profile.Email}, map[string]interface{}{
			"RecipientName": r.profile.Name,
			"Opportunities": r.items,
		})
		if err != nil {
			res.Failed++
			j.logger.Warn("failed to send stale opportunity email",
				zap.String("org_id", orgID.String()),
				zap.String("profile_id", r.profile.ID.String()),
				zap.Error(err))
			return
		}
		res.Notified++
	})

	j.logger.Info("stale opportunity check completed",
		zap.String("org_id", orgID.String()),
		zap.Int("open", res.Checked),
		zap.Int("stale", res.Matched),
		zap.Int("emails_sent", res.Notified),
		zap.Int("emails_failed", res.Failed),
		zap.Duration("duration", time.Since(start)))
	return res, nil
}

func (j *StaleOpportunitiesJob) staleItem(opp *domain.Opportunity, check domain.StaleCheck) map[string]interface{} {
	item := map[string]interface{}{
		"ID":           opp.ID.String(),
		"Name":         opp.Name,
		"Stage":        opp.Stage.Label(),
		"DaysInStage":  check.DaysInStage,
		"ExpectedDays": check.ExpectedDays,
		"URL":          "",
	}
	if j.publicURL != "" {
		item["URL"] = fmt.Sprintf("%s/opportunities/%s", j.publicURL, opp.ID)
	}
	return item
}
