package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/PhoenixSmith/seraph-v2-sub000/internal/entity"
	challengeDto "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/challenge/dto"
	challengeRepo "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/challenge/repository"
	notifService "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/notification/service"
	"github.com/PhoenixSmith/seraph-v2-sub000/internal/queue"
	"github.com/PhoenixSmith/seraph-v2-sub000/pkg/apperror"
	"github.com/google/uuid"
)

// ActiveWindow is how far back a member's last XP event may be for them to count as active.
const ActiveWindow = 7 * 24 * time.Hour

const (
	ViewerChallengerLeader = "challenger_leader"
	ViewerChallengedLeader = "challenged_leader"
)

// RateLimiter claims a per-user action slot.
type RateLimiter interface {
	Allow(ctx context.Context, userID uuid.UUID, action string, window time.Duration) error
	Clear(ctx context.Context, userID uuid.UUID, action string) error
}

type ChallengeService interface {
	CreateChallenge(ctx context.Context, actorID uuid.UUID, challengerID, challengedID uuid.UUID) (*challengeDto.ChallengeResponse, error)
	AcceptChallenge(ctx context.Context, actorID, challengeID uuid.UUID) (*challengeDto.ChallengeResponse, error)
	DeclineChallenge(ctx context.Context, actorID, challengeID uuid.UUID) (*challengeDto.ChallengeResponse, error)
	CancelChallenge(ctx context.Context, actorID, challengeID uuid.UUID) (*challengeDto.ChallengeResponse, error)
	// GetChallenge resolves an expired challenge before answering.
	GetChallenge(ctx context.Context, actorID, challengeID uuid.UUID) (*challengeDto.ChallengeResponse, error)
	ListGroupChallenges(ctx context.Context, actorID, groupID uuid.UUID, status string) ([]challengeDto.ChallengeResponse, error)
	// ResolveChallenge is a no-op unless the challenge is active and past its end time.
	ResolveChallenge(ctx context.Context, challengeID uuid.UUID) (*entity.Challenge, error)
	ResolveExpired(ctx context.Context) (int, error)
}

type challengeService struct {
	repo         challengeRepo.ChallengeRepository
	tasks        queue.Producer
	notifier     notifService.NotificationService
	limiter      RateLimiter
	createWindow time.Duration
	now          func() time.Time
}

func NewChallengeService(repo challengeRepo.ChallengeRepository, tasks queue.Producer, notifier notifService.NotificationService, limiter RateLimiter, createWindow time.Duration) ChallengeService {
	return &challengeService{
		repo:         repo,
		tasks:        tasks,
		notifier:     notifier,
		limiter:      limiter,
		createWindow: createWindow,
		now:          time.Now,
	}
}

// ComputeScore is XP per active member. At least one member always counts, so an idle
// group scores zero rather than dividing by zero.
func ComputeScore(xp, activeMembers int) float64 {
	return float64(xp) / float64(max(1, activeMembers))
}

// DecideWinner returns the side with the strictly higher score, or nil for a tie.
func DecideWinner(challengerID, challengedID uuid.UUID, challengerScore, challengedScore float64) *uuid.UUID {
	switch {
	case challengerScore > challengedScore:
		return &challengerID
	case challengedScore > challengerScore:
		return &challengedID
	}
	return nil
}

func (s *challengeService) notify(ctx context.Context, userID uuid.UUID, kind string, challengeID uuid.UUID, message string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, userID, kind, "challenge", challengeID.String(), message)
}

func (s *challengeService) CreateChallenge(ctx context.Context, actorID uuid.UUID, challengerID, challengedID uuid.UUID) (*challengeDto.ChallengeResponse, error) {
	challenger, err := s.repo.FindGroup(ctx, challengerID)
	if err != nil {
		return nil, err
	}
	if challenger.LeaderID != actorID {
		return nil, apperror.Transition("only the group leader can issue challenges")
	}
	if challengerID == challengedID {
		return nil, apperror.Transition("a group cannot challenge itself")
	}

	challenged, err := s.repo.FindGroup(ctx, challengedID)
	if err != nil {
		return nil, err
	}
	if !challenged.OpenForChallenges {
		return nil, apperror.Transition(fmt.Sprintf("%s is not accepting challenges", challenged.Name))
	}

	const action = "challenge:create"
	if s.limiter != nil {
		if err := s.limiter.Allow(ctx, actorID, action, s.createWindow); err != nil {
			return nil, err
		}
	}

	challenge := &entity.Challenge{
		ChallengerGroupID: challengerID,
		ChallengedGroupID: challengedID,
		CreatedByID:       actorID,
		Status:            entity.ChallengePending,
	}
	err = s.repo.Transaction(ctx, func(tx challengeRepo.ChallengeRepository) error {
		if err := tx.LockGroups(ctx, []uuid.UUID{challengerID, challengedID}); err != nil {
			return err
		}
		open, err := tx.HasOpenChallenge(ctx, challengerID, challengedID)
		if err != nil {
			return err
		}
		if open {
			return apperror.Transition("these groups already have a pending or active challenge")
		}
		return tx.Create(ctx, challenge)
	})
	if err != nil {
		if s.limiter != nil {
			_ = s.limiter.Clear(ctx, actorID, action)
		}
		return nil, err
	}

	s.notify(ctx, challenged.LeaderID, entity.NotificationChallengeReceived, challenge.ID,
		fmt.Sprintf("%s challenged %s to a week of reading", challenger.Name, challenged.Name))

	return s.GetChallenge(ctx, actorID, challenge.ID)
}

// transition applies a leader-only move out of pending under a row lock.
func (s *challengeService) transition(ctx context.Context, actorID, challengeID uuid.UUID, asChallenger bool, verb string, apply func(tx challengeRepo.ChallengeRepository, c *entity.Challenge) error) (*entity.Challenge, error) {
	var updated *entity.Challenge

	err := s.repo.Transaction(ctx, func(tx challengeRepo.ChallengeRepository) error {
		challenge, err := tx.Lock(ctx, challengeID)
		if err != nil {
			return err
		}

		groupID := challenge.ChallengedGroupID
		side := "challenged"
		if asChallenger {
			groupID = challenge.ChallengerGroupID
			side = "challenging"
		}
		group, err := tx.FindGroup(ctx, groupID)
		if err != nil {
			return err
		}
		if group.LeaderID != actorID {
			return apperror.Transition(fmt.Sprintf("only the leader of the %s group can %s this challenge", side, verb))
		}
		if challenge.Status != entity.ChallengePending {
			return apperror.Transition(fmt.Sprintf("cannot %s a challenge that is %s", verb, challenge.Status))
		}

		if err := apply(tx, challenge); err != nil {
			return err
		}
		if err := tx.Save(ctx, challenge); err != nil {
			return err
		}
		updated = challenge
		return nil
	})
	return updated, err
}

func (s *challengeService) AcceptChallenge(ctx context.Context, actorID, challengeID uuid.UUID) (*challengeDto.ChallengeResponse, error) {
	challenge, err := s.transition(ctx, actorID, challengeID, false, "accept", func(tx challengeRepo.ChallengeRepository, c *entity.Challenge) error {
		now := s.now()
		end := now.Add(entity.ChallengeDuration)

		challengerXP, err := tx.TotalXP(ctx, c.ChallengerGroupID)
		if err != nil {
			return err
		}
		challengedXP, err := tx.TotalXP(ctx, c.ChallengedGroupID)
		if err != nil {
			return err
		}
		active, err := tx.Metrics(ctx, []uuid.UUID{c.ChallengerGroupID, c.ChallengedGroupID}, challengeRepo.MetricsWindow{
			Since:      now,
			ActiveFrom: now.Add(-ActiveWindow),
			To:         now,
		})
		if err != nil {
			return err
		}

		c.Status = entity.ChallengeActive
		c.AcceptedAt = &now
		c.EndTime = &end
		c.ChallengerStartXP = challengerXP
		c.ChallengedStartXP = challengedXP
		c.ChallengerStartActive = active[c.ChallengerGroupID].Active
		c.ChallengedStartActive = active[c.ChallengedGroupID].Active
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyLeaderOf(ctx, challenge.ChallengerGroupID, entity.NotificationChallengeAccepted, challenge.ID, "Your challenge was accepted. The week starts now")
	return s.GetChallenge(ctx, actorID, challengeID)
}

func (s *challengeService) DeclineChallenge(ctx context.Context, actorID, challengeID uuid.UUID) (*challengeDto.ChallengeResponse, error) {
	challenge, err := s.transition(ctx, actorID, challengeID, false, "decline", func(_ challengeRepo.ChallengeRepository, c *entity.Challenge) error {
		c.Status = entity.ChallengeDeclined
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyLeaderOf(ctx, challenge.ChallengerGroupID, entity.NotificationChallengeDeclined, challenge.ID, "Your challenge was declined")
	return s.GetChallenge(ctx, actorID, challengeID)
}

func (s *challengeService) CancelChallenge(ctx context.Context, actorID, challengeID uuid.UUID) (*challengeDto.ChallengeResponse, error) {
	challenge, err := s.transition(ctx, actorID, challengeID, true, "cancel", func(_ challengeRepo.ChallengeRepository, c *entity.Challenge) error {
		c.Status = entity.ChallengeCancelled
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyLeaderOf(ctx, challenge.ChallengedGroupID, entity.NotificationChallengeCancelled, challenge.ID, "A challenge against your group was withdrawn")
	return s.GetChallenge(ctx, actorID, challengeID)
}

func (s *challengeService) notifyLeaderOf(ctx context.Context, groupID uuid.UUID, kind string, challengeID uuid.UUID, message string) {
	if s.notifier == nil {
		return
	}
	group, err := s.repo.FindGroup(ctx, groupID)
	if err != nil {
		log.Printf("Failed to load group %s for notification: %v", groupID, err)
		return
	}
	s.notify(ctx, group.LeaderID, kind, challengeID, message)
}

func (s *challengeService) ResolveChallenge(ctx context.Context, challengeID uuid.UUID) (*entity.Challenge, error) {
	var (
		resolved *entity.Challenge
		changed  bool
	)

	err := s.repo.Transaction(ctx, func(tx challengeRepo.ChallengeRepository) error {
		challenge, err := tx.Lock(ctx, challengeID)
		if err != nil {
			return err
		}
		resolved = challenge

		if challenge.Status != entity.ChallengeActive || challenge.EndTime == nil || challenge.AcceptedAt == nil {
			return nil
		}
		now := s.now()
		if now.Before(*challenge.EndTime) {
			return nil
		}

		end := *challenge.EndTime
		metrics, err := tx.Metrics(ctx, []uuid.UUID{challenge.ChallengerGroupID, challenge.ChallengedGroupID}, challengeRepo.MetricsWindow{
			Since:      *challenge.AcceptedAt,
			ActiveFrom: end.Add(-ActiveWindow),
			To:         end,
		})
		if err != nil {
			return err
		}

		challenger := metrics[challenge.ChallengerGroupID]
		challenged := metrics[challenge.ChallengedGroupID]
		challenge.ChallengerXP = challenger.XP
		challenge.ChallengedXP = challenged.XP
		challenge.ChallengerActive = challenger.Active
		challenge.ChallengedActive = challenged.Active
		challenge.ChallengerScore = ComputeScore(challenger.XP, challenger.Active)
		challenge.ChallengedScore = ComputeScore(challenged.XP, challenged.Active)
		challenge.WinnerGroupID = DecideWinner(challenge.ChallengerGroupID, challenge.ChallengedGroupID, challenge.ChallengerScore, challenge.ChallengedScore)
		challenge.Status = entity.ChallengeCompleted
		challenge.ResolvedAt = &now

		if challenge.WinnerGroupID != nil {
			if err := tx.RecordWin(ctx, *challenge.WinnerGroupID); err != nil {
				return err
			}
		}
		if err := tx.Save(ctx, challenge); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.afterResolve(ctx, resolved)
	}
	return resolved, nil
}

func (s *challengeService) afterResolve(ctx context.Context, c *entity.Challenge) {
	for _, groupID := range []uuid.UUID{c.ChallengerGroupID, c.ChallengedGroupID} {
		members, err := s.repo.MemberIDs(ctx, groupID)
		if err != nil {
			log.Printf("Failed to list members of group %s: %v", groupID, err)
			continue
		}

		message := "Your challenge ended in a tie"
		won := c.WinnerGroupID != nil && *c.WinnerGroupID == groupID
		switch {
		case won:
			message = "Your group won the challenge"
		case c.WinnerGroupID != nil:
			message = "Your group lost the challenge"
		}

		for _, userID := range members {
			s.notify(ctx, userID, entity.NotificationChallengeCompleted, c.ID, message)
			if won && s.tasks != nil {
				if err := s.tasks.Enqueue(context.WithoutCancel(ctx), queue.NewTask(queue.TaskCheckMiscAchievements, userID)); err != nil {
					log.Printf("Failed to enqueue achievement check for user %s: %v", userID, err)
				}
			}
		}
	}
}

func (s *challengeService) ResolveExpired(ctx context.Context) (int, error) {
	ids, err := s.repo.ListExpiredActive(ctx, s.now())
	if err != nil {
		return 0, err
	}

	resolved := 0
	for _, id := range ids {
		if _, err := s.ResolveChallenge(ctx, id); err != nil {
			log.Printf("Failed to resolve challenge %s: %v", id, err)
			continue
		}
		resolved++
	}
	return resolved, nil
}

func (s *challengeService) GetChallenge(ctx context.Context, actorID, challengeID uuid.UUID) (*challengeDto.ChallengeResponse, error) {
	challenge, err := s.repo.FindByID(ctx, challengeID)
	if err != nil {
		return nil, err
	}

	if challenge.Status == entity.ChallengeActive && challenge.EndTime != nil && !s.now().Before(*challenge.EndTime) {
		if _, err := s.ResolveChallenge(ctx, challengeID); err != nil {
			return nil, err
		}
		if challenge, err = s.repo.FindByID(ctx, challengeID); err != nil {
			return nil, err
		}
	}

	return s.toResponse(ctx, challenge, actorID)
}

func (s *challengeService) ListGroupChallenges(ctx context.Context, actorID, groupID uuid.UUID, status string) ([]challengeDto.ChallengeResponse, error) {
	if _, err := s.repo.FindGroup(ctx, groupID); err != nil {
		return nil, err
	}

	challenges, err := s.repo.ListByGroup(ctx, groupID, status)
	if err != nil {
		return nil, err
	}

	responses := make([]challengeDto.ChallengeResponse, 0, len(challenges))
	for i := range challenges {
		// Stored values only; live scores are one GetChallenge away.
		responses = append(responses, s.baseResponse(&challenges[i], actorID))
	}
	return responses, nil
}

func side(groupID uuid.UUID, group *entity.Group) challengeDto.SideResponse {
	resp := challengeDto.SideResponse{GroupID: groupID.String()}
	if group != nil {
		resp.Name = group.Name
		resp.ImageURL = group.ImageURL
	}
	return resp
}

func (s *challengeService) baseResponse(c *entity.Challenge, actorID uuid.UUID) challengeDto.ChallengeResponse {
	resp := challengeDto.ChallengeResponse{
		ID:         c.ID.String(),
		Status:     c.Status,
		Challenger: side(c.ChallengerGroupID, c.ChallengerGroup),
		Challenged: side(c.ChallengedGroupID, c.ChallengedGroup),
		CreatedAt:  c.CreatedAt,
		AcceptedAt: c.AcceptedAt,
		EndTime:    c.EndTime,
		ResolvedAt: c.ResolvedAt,
	}
	resp.Challenger.StartXP = c.ChallengerStartXP
	resp.Challenger.StartActive = c.ChallengerStartActive
	resp.Challenged.StartXP = c.ChallengedStartXP
	resp.Challenged.StartActive = c.ChallengedStartActive

	if c.Status == entity.ChallengeCompleted {
		resp.Challenger.XP, resp.Challenger.ActiveMembers, resp.Challenger.Score = c.ChallengerXP, c.ChallengerActive, c.ChallengerScore
		resp.Challenged.XP, resp.Challenged.ActiveMembers, resp.Challenged.Score = c.ChallengedXP, c.ChallengedActive, c.ChallengedScore
		if c.WinnerGroupID != nil {
			winner := c.WinnerGroupID.String()
			resp.WinnerGroupID = &winner
		} else {
			resp.IsTie = true
		}
	}

	if c.ChallengerGroup != nil && c.ChallengerGroup.LeaderID == actorID {
		resp.ViewerRole = ViewerChallengerLeader
	} else if c.ChallengedGroup != nil && c.ChallengedGroup.LeaderID == actorID {
		resp.ViewerRole = ViewerChallengedLeader
	}
	return resp
}

func (s *challengeService) toResponse(ctx context.Context, c *entity.Challenge, actorID uuid.UUID) (*challengeDto.ChallengeResponse, error) {
	resp := s.baseResponse(c, actorID)
	if c.Status != entity.ChallengeActive || c.AcceptedAt == nil || c.EndTime == nil {
		return &resp, nil
	}

	now := s.now()
	metrics, err := s.repo.Snapshot(ctx, []uuid.UUID{c.ChallengerGroupID, c.ChallengedGroupID}, challengeRepo.MetricsWindow{
		Since:      *c.AcceptedAt,
		ActiveFrom: now.Add(-ActiveWindow),
		To:         now,
	})
	if err != nil {
		return nil, err
	}

	challenger := metrics[c.ChallengerGroupID]
	challenged := metrics[c.ChallengedGroupID]
	resp.Challenger.XP, resp.Challenger.ActiveMembers = challenger.XP, challenger.Active
	resp.Challenger.Score = ComputeScore(challenger.XP, challenger.Active)
	resp.Challenged.XP, resp.Challenged.ActiveMembers = challenged.XP, challenged.Active
	resp.Challenged.Score = ComputeScore(challenged.XP, challenged.Active)
	resp.SecondsLeft = int64(c.EndTime.Sub(now).Seconds())
	return &resp, nil
}
