package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/logger"
	"github.com/straye-as/pipeline-api/internal/mapper"
	"github.com/straye-as/pipeline-api/internal/repository"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// progressWorkers bounds concurrent progress queries per request
const progressWorkers = 4

// RankedGoal is one leaderboard row before conversion
type RankedGoal struct {
	Rank     int
	Goal     domain.SalesGoal
	Progress domain.GoalProgress
}

type GoalService struct {
	goalRepo    *repository.GoalRepository
	oppRepo     *repository.OpportunityRepository
	profileRepo *repository.ProfileRepository
	logger      *zap.Logger
	now         func() time.Time
	leaderboard singleflight.Group
}

func NewGoalService(
	goalRepo *repository.GoalRepository,
	oppRepo *repository.OpportunityRepository,
	profileRepo *repository.ProfileRepository,
	logger *zap.Logger,
) *GoalService {
	return &GoalService{
		goalRepo:    goalRepo,
		oppRepo:     oppRepo,
		profileRepo: profileRepo,
		logger:      logger,
		now:         time.Now,
	}
}

// SetClock replaces the time source
func (s *GoalService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *GoalService) Create(ctx context.Context, tc domain.TenantContext, req *domain.CreateGoalRequest) (*domain.SalesGoalDTO, error) {
	if !tc.IsAdmin() {
		return nil, ErrPermissionDenied
	}

	goal := &domain.SalesGoal{
		OrgID:       tc.OrgID,
		Name:        strings.TrimSpace(req.Name),
		GoalType:    req.GoalType,
		TargetValue: req.TargetValue,
		PeriodType:  req.PeriodType,
		PeriodStart: domain.DateOnly(req.PeriodStart.Time),
		PeriodEnd:   domain.DateOnly(req.PeriodEnd.Time),
		IsActive:    true,
		CreatedByID: tc.ActorID(),
	}
	if req.IsActive != nil {
		goal.IsActive = *req.IsActive
	}
	goal.AssignedToID = refID(req.AssignedTo)
	goal.TeamID = refID(req.Team)

	if err := goal.Clean(); err != nil {
		return nil, err
	}
	if err := s.checkScope(ctx, tc.OrgID, goal); err != nil {
		return nil, err
	}

	if err := s.goalRepo.Create(ctx, goal); err != nil {
		return nil, fmt.Errorf("failed to create goal: %w", err)
	}

	logger.WithTenant(s.logger, tc).Info("goal created", zap.String("goal_id", goal.ID.String()))
	return s.GetByID(ctx, tc, goal.ID)
}

// GetByID returns a goal with its current progress
func (s *GoalService) GetByID(ctx context.Context, tc domain.TenantContext, id uuid.UUID) (*domain.SalesGoalDTO, error) {
	goal, err := s.goalRepo.GetByID(ctx, tc.OrgID, id)
	if err != nil {
		return nil, notFound(err, ErrGoalNotFound)
	}
	progress, err := s.Evaluate(ctx, goal)
	if err != nil {
		return nil, err
	}
	dto := mapper.ToSalesGoalDTO(goal, &progress)
	return &dto, nil
}

// Progress computes the current progress of one goal
func (s *GoalService) Progress(ctx context.Context, tc domain.TenantContext, id uuid.UUID) (*domain.GoalProgressDTO, error) {
	goal, err := s.goalRepo.GetByID(ctx, tc.OrgID, id)
	if err != nil {
		return nil, notFound(err, ErrGoalNotFound)
	}
	progress, err := s.Evaluate(ctx, goal)
	if err != nil {
		return nil, err
	}
	dto := mapper.ToGoalProgressDTO(goal, progress)
	return &dto, nil
}

func (s *GoalService) Update(ctx context.Context, tc domain.TenantContext, id uuid.UUID, req *domain.UpdateGoalRequest) (*domain.SalesGoalDTO, error) {
	if !tc.IsAdmin() {
		return nil, ErrPermissionDenied
	}

	goal, err := s.goalRepo.GetByID(ctx, tc.OrgID, id)
	if err != nil {
		return nil, notFound(err, ErrGoalNotFound)
	}

	applyGoalUpdate(goal, req)
	if err := goal.Clean(); err != nil {
		return nil, err
	}
	if err := s.checkScope(ctx, tc.OrgID, goal); err != nil {
		return nil, err
	}

	if err := s.goalRepo.Update(ctx, goal); err != nil {
		return nil, fmt.Errorf("failed to update goal: %w", err)
	}
	return s.GetByID(ctx, tc, goal.ID)
}

func (s *GoalService) Delete(ctx context.Context, tc domain.TenantContext, id uuid.UUID) error {
	if !tc.IsAdmin() {
		return ErrPermissionDenied
	}
	if err := s.goalRepo.Delete(ctx, tc.OrgID, id); err != nil {
		return notFound(err, ErrGoalNotFound)
	}
	logger.WithTenant(s.logger, tc).Info("goal deleted", zap.String("goal_id", id.String()))
	return nil
}

// List returns goals with their progress
func (s *GoalService) List(ctx context.Context, tc domain.TenantContext, filters *repository.GoalFilters) ([]domain.SalesGoalDTO, error) {
	goals, err := s.goalRepo.List(ctx, tc.OrgID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}

	progress, err := s.evaluateAll(ctx, goals)
	if err != nil {
		return nil, err
	}

	dtos := make([]domain.SalesGoalDTO, len(goals))
	for i := range goals {
		dtos[i] = mapper.ToSalesGoalDTO(&goals[i], &progress[i])
	}
	return dtos, nil
}

// ComputeProgress sums (REVENUE) or counts (DEALS_CLOSED) the CLOSED_WON opportunities
// in the goal's scope closed within its period, both ends inclusive
func (s *GoalService) ComputeProgress(ctx context.Context, goal *domain.SalesGoal) (decimal.Decimal, error) {
	assignees, err := s.scopeAssignees(ctx, goal)
	if err != nil {
		return decimal.Zero, err
	}

	opps, err := s.oppRepo.ListClosedWon(ctx, goal.OrgID, goal.PeriodStart, goal.PeriodEnd, assignees)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load closed opportunities: %w", err)
	}

	if goal.GoalType == domain.GoalTypeDealsClosed {
		return decimal.NewFromInt(int64(len(opps))), nil
	}
	return mapper.SumAmounts(opps), nil
}

// Evaluate computes progress, percent and pace status at the current time
func (s *GoalService) Evaluate(ctx context.Context, goal *domain.SalesGoal) (domain.GoalProgress, error) {
	progress, err := s.ComputeProgress(ctx, goal)
	if err != nil {
		return domain.GoalProgress{}, err
	}
	return goal.EvaluateProgress(progress, s.now()), nil
}

// Leaderboard ranks the active single-profile goals of periodType whose period contains
// today. Concurrent requests for the same org and period share one computation.
func (s *GoalService) Leaderboard(ctx context.Context, tc domain.TenantContext, periodType domain.PeriodType) ([]domain.LeaderboardEntryDTO, error) {
	ranked, err := s.rankedGoals(ctx, tc.OrgID, periodType)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.LeaderboardEntryDTO, len(ranked))
	for i := range ranked {
		entries[i] = mapper.ToLeaderboardEntryDTO(ranked[i].Rank, &ranked[i].Goal, ranked[i].Progress)
	}
	return entries, nil
}

// LeaderboardXLSX renders the leaderboard as a spreadsheet
func (s *GoalService) LeaderboardXLSX(ctx context.Context, tc domain.TenantContext, periodType domain.PeriodType) ([]byte, error) {
	entries, err := s.Leaderboard(ctx, tc, periodType)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Leaderboard"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	headers := []string{"Rank", "Sales rep", "Goal", "Type", "Progress", "Target", "Percent", "Status"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	for i, e := range entries {
		row := i + 2
		progress, _ := e.Progress.Float64()
		target, _ := e.TargetValue.Float64()
		values := []interface{}{e.Rank, e.ProfileName, e.GoalName, string(e.GoalType), progress, target, e.ProgressPercent, string(e.Status)}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			f.SetCellValue(sheet, cell, v)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write leaderboard: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *GoalService) rankedGoals(ctx context.Context, orgID uuid.UUID, periodType domain.PeriodType) ([]RankedGoal, error) {
	today := domain.DateOnly(s.now())
	key := fmt.Sprintf("%s:%s:%s", orgID, periodType, today.Format("2006-01-02"))

	ch := s.leaderboard.DoChan(key, func() (interface{}, error) {
		return s.computeLeaderboard(context.WithoutCancel(ctx), orgID, periodType, today)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]RankedGoal), nil
	}
}

func (s *GoalService) computeLeaderboard(ctx context.Context, orgID uuid.UUID, periodType domain.PeriodType, today time.Time) ([]RankedGoal, error) {
	goals, err := s.goalRepo.ListActiveOn(ctx, orgID, today, &periodType)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}

	individual := goals[:0]
	for _, g := range goals {
		if g.AssignedToID != nil && !g.IsTeamGoal() {
			individual = append(individual, g)
		}
	}

	progress, err := s.evaluateAll(ctx, individual)
	if err != nil {
		return nil, err
	}

	ranked := make([]RankedGoal, len(individual))
	for i := range individual {
		ranked[i] = RankedGoal{Goal: individual[i], Progress: progress[i]}
	}
	RankGoals(ranked)
	return ranked, nil
}

// RankGoals sorts by percent descending and numbers the rows from 1. Equal percents
// keep their input order and still receive consecutive ranks.
func RankGoals(ranked []RankedGoal) {
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Progress.Percent > ranked[j].Progress.Percent
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
}

// evaluateAll computes progress for goals concurrently, preserving order
func (s *GoalService) evaluateAll(ctx context.Context, goals []domain.SalesGoal) ([]domain.GoalProgress, error) {
	results := make([]domain.GoalProgress, len(goals))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(progressWorkers)

	for i := range goals {
		i := i
		g.Go(func() error {
			p, err := s.Evaluate(gCtx, &goals[i])
			if err != nil {
				return fmt.Errorf("goal %s: %w", goals[i].ID, err)
			}
			results[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// scopeAssignees resolves whose deals count toward goal. nil means the whole org.
func (s *GoalService) scopeAssignees(ctx context.Context, goal *domain.SalesGoal) ([]uuid.UUID, error) {
	switch {
	case goal.AssignedToID != nil:
		return []uuid.UUID{*goal.AssignedToID}, nil
	case goal.TeamID != nil:
		ids, err := s.profileRepo.TeamMemberIDs(ctx, goal.OrgID, *goal.TeamID)
		if err != nil {
			return nil, fmt.Errorf("failed to load team members: %w", err)
		}
		return ids, nil
	}
	return nil, nil
}

func (s *GoalService) checkScope(ctx context.Context, orgID uuid.UUID, goal *domain.SalesGoal) error {
	if goal.AssignedToID != nil {
		if _, err := s.profileRepo.GetByID(ctx, orgID, *goal.AssignedToID); err != nil {
			return scopeError(err, "assigned_to", "Unknown profile")
		}
	}
	if goal.TeamID != nil {
		if _, err := s.profileRepo.GetTeam(ctx, orgID, *goal.TeamID); err != nil {
			return scopeError(err, "team", "Unknown team")
		}
	}
	return nil
}

func scopeError(err error, field, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %w", ErrCrossTenant, domain.ValidationErrors{field: msg})
	}
	return fmt.Errorf("failed to check goal scope: %w", err)
}

// applyGoalUpdate copies the set fields of req. Setting one scope clears the other.
func applyGoalUpdate(goal *domain.SalesGoal, req *domain.UpdateGoalRequest) {
	if req.Name != nil {
		goal.Name = strings.TrimSpace(*req.Name)
	}
	if req.GoalType != nil {
		goal.GoalType = *req.GoalType
	}
	if req.TargetValue != nil {
		goal.TargetValue = *req.TargetValue
	}
	if req.PeriodType != nil {
		goal.PeriodType = *req.PeriodType
	}
	if req.PeriodStart != nil {
		goal.PeriodStart = domain.DateOnly(req.PeriodStart.Time)
	}
	if req.PeriodEnd != nil {
		goal.PeriodEnd = domain.DateOnly(req.PeriodEnd.Time)
	}
	if req.IsActive != nil {
		goal.IsActive = *req.IsActive
	}

	// null clears a scope; a goal with neither scope is org-wide
	if req.AssignedTo.Set {
		goal.AssignedToID = refID(&req.AssignedTo.Ref)
		if !req.AssignedTo.Clears() && !req.Team.Set {
			goal.TeamID = nil
		}
	}
	if req.Team.Set {
		goal.TeamID = refID(&req.Team.Ref)
		if !req.Team.Clears() && !req.AssignedTo.Set {
			goal.AssignedToID = nil
		}
	}
	goal.AssignedTo, goal.Team = nil, nil
}

// refID returns the referenced id, or nil for an empty reference
func refID(r *domain.Ref) *uuid.UUID {
	if r == nil || r.ID == uuid.Nil {
		return nil
	}
	id := r.ID
	return &id
}
