package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/mail"
	"go.uber.org/zap"
)

// GoalMilestonesJobName is the name of the goal milestone check
const GoalMilestonesJobName = "goal-milestones"

// GoalStore lists goals and records fired milestones
type GoalStore interface {
	ListActiveOn(ctx context.Context, orgID uuid.UUID, day time.Time, periodType *domain.PeriodType) ([]domain.SalesGoal, error)
	ClaimMilestone(ctx context.Context, orgID, goalID uuid.UUID, m domain.Milestone) (bool, error)
}

// GoalEvaluator computes the current progress of a goal
type GoalEvaluator interface {
	Evaluate(ctx context.Context, goal *domain.SalesGoal) (domain.GoalProgress, error)
}

// ProfileDirectory resolves who hears about a goal
type ProfileDirectory interface {
	AdminLister
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*domain.Profile, error)
	ListTeamMembers(ctx context.Context, orgID, teamID uuid.UUID) ([]domain.Profile, error)
}

// GoalMilestonesJob fires the 50/90/100% notifications of goals whose period contains today.
// Each goal fires at most one milestone per run, and never the same milestone twice.
type GoalMilestonesJob struct {
	orgs      OrganizationLister
	goals     GoalStore
	evaluator GoalEvaluator
	profiles  ProfileDirectory
	mailer    mail.Mailer
	logger    *zap.Logger
	timeout   time.Duration
	now       func() time.Time
}

func NewGoalMilestonesJob(
	orgs OrganizationLister,
	goals GoalStore,
	evaluator GoalEvaluator,
	profiles ProfileDirectory,
	mailer mail.Mailer,
	logger *zap.Logger,
	timeout time.Duration,
) *GoalMilestonesJob {
	return &GoalMilestonesJob{
		orgs:      orgs,
		goals:     goals,
		evaluator: evaluator,
		profiles:  profiles,
		mailer:    mailer,
		logger:    logger.With(zap.String("job_name", GoalMilestonesJobName)),
		timeout:   timeout,
		now:       time.Now,
	}
}

// SetClock replaces the time source used to pick the goals in period
func (j *GoalMilestonesJob) SetClock(now func() time.Time) {
	j.now = now
}

func (j *GoalMilestonesJob) Name() string {
	return GoalMilestonesJobName
}

// Run checks every active organization. Called by the scheduler.
func (j *GoalMilestonesJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	sweepAll(ctx, j.Name(), j.orgs, j.logger, j.RunForOrg)
}

// RunForOrg checks the goals of one organization. The milestone flag is claimed
// before any email goes out, so a concurrent or repeated run cannot send it again.
func (j *GoalMilestonesJob) RunForOrg(ctx context.Context, orgID uuid.UUID) (*RunResult, error) {
	start := time.Now()
	res := &RunResult{Job: j.Name(), OrgID: orgID}

	goals, err := j.goals.ListActiveOn(ctx, orgID, j.now(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	res.Checked = len(goals)

	for i := range goals {
		goal := &goals[i]
		log := j.logger.With(zap.String("org_id", orgID.String()), zap.String("goal_id", goal.ID.String()))

		progress, err := j.evaluator.Evaluate(ctx, goal)
		if err != nil {
			res.Failed++
			log.Error("failed to evaluate goal", zap.Error(err))
			continue
		}

		milestone, ok := goal.NextMilestone(progress.Percent)
		if !ok {
			continue
		}
		claimed, err := j.goals.ClaimMilestone(ctx, orgID, goal.ID, milestone)
		if err != nil {
			res.Failed++
			log.Error("failed to record milestone", zap.Int("milestone", int(milestone)), zap.Error(err))
			continue
		}
		if !claimed {
			continue
		}
		goal.MarkNotified(milestone)
		res.Matched++

		recipients, err := j.recipients(ctx, goal)
		if err != nil {
			res.Failed++
			log.Error("failed to resolve milestone recipients", zap.Error(err))
			continue
		}
		for _, p := range recipients {
			if err := j.mailer.Send(ctx, mail.TemplateGoalMilestone, []string{p.Email}, milestoneData(goal, milestone, progress, p)); err != nil {
				res.Failed++
				log.Warn("failed to send milestone email", zap.String("profile_id", p.ID.String()), zap.Error(err))
				continue
			}
			res.Notified++
		}

		log.Info("goal milestone reached",
			zap.Int("milestone", int(milestone)),
			zap.Int("percent", progress.Percent),
			zap.Int("recipients", len(recipients)))
	}

	j.logger.Info("goal milestone check completed",
		zap.String("org_id", orgID.String()),
		zap.Int("goals", res.Checked),
		zap.Int("milestones", res.Matched),
		zap.Int("emails_sent", res.Notified),
		zap.Int("failed", res.Failed),
		zap.Duration("duration", time.Since(start)))
	return res, nil
}

// recipients is the assignee, else the team members, else the org admins
func (j *GoalMilestonesJob) recipients(ctx context.Context, goal *domain.SalesGoal) ([]domain.Profile, error) {
	var profiles []domain.Profile
	switch {
	case goal.AssignedToID != nil:
		p, err := j.profiles.GetByID(ctx, goal.OrgID, *goal.AssignedToID)
		if err != nil {
			return nil, err
		}
		profiles = []domain.Profile{*p}
	case goal.TeamID != nil:
		members, err := j.profiles.ListTeamMembers(ctx, goal.OrgID, *goal.TeamID)
		if err != nil {
			return nil, err
		}
		profiles = members
	default:
		admins, err := j.profiles.ListAdmins(ctx, goal.OrgID)
		if err != nil {
			return nil, err
		}
		profiles = admins
	}

	out := profiles[:0]
	for _, p := range profiles {
		if p.IsActive && p.Email != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

func milestoneData(goal *domain.SalesGoal, m domain.Milestone, progress domain.GoalProgress, p domain.Profile) map[string]interface{} {
	return map[string]interface{}{
		"RecipientName": p.Name,
		"GoalName":      goal.Name,
		"Milestone":     int(m),
		"Progress":      progress.Progress.StringFixed(2),
		"Target":        goal.TargetValue.StringFixed(2),
		"Percent":       progress.Percent,
		"PeriodStart":   goal.PeriodStart.Format("2006-01-02"),
		"PeriodEnd":     goal.PeriodEnd.Format("2006-01-02"),
	}
}
