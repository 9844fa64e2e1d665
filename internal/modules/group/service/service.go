package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"html"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/PhoenixSmith/seraph-v2-sub000/internal/entity"
	groupDto "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/group/dto"
	groupRepo "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/group/repository"
	notifService "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/notification/service"
	searchService "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/search/service"
	"github.com/PhoenixSmith/seraph-v2-sub000/pkg/apperror"
	"github.com/PhoenixSmith/seraph-v2-sub000/pkg/calendar"
	commonDto "github.com/PhoenixSmith/seraph-v2-sub000/pkg/dto"
	"github.com/PhoenixSmith/seraph-v2-sub000/pkg/storage"
	"github.com/PhoenixSmith/seraph-v2-sub000/pkg/tier"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
)

const (
	inviteCodeLength   = 8
	inviteCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	reindexBatchSize   = 500
	imageFolder        = "groups"
)

// RateLimiter claims a per-user action slot.
type RateLimiter interface {
	Allow(ctx context.Context, userID uuid.UUID, action string, window time.Duration) error
	Clear(ctx context.Context, userID uuid.UUID, action string) error
}

type GroupService interface {
	CreateGroup(ctx context.Context, userID uuid.UUID, req groupDto.CreateGroupRequest) (*groupDto.GroupDetailResponse, error)
	GetGroup(ctx context.Context, userID, groupID uuid.UUID) (*groupDto.GroupDetailResponse, error)
	ListMyGroups(ctx context.Context, userID uuid.UUID) ([]groupDto.GroupResponse, error)
	BrowseGroups(ctx context.Context, query groupDto.BrowseGroupsQuery) ([]groupDto.GroupResponse, commonDto.PaginationMeta, error)
	UpdateGroup(ctx context.Context, actorID, groupID uuid.UUID, req groupDto.UpdateGroupRequest) (*groupDto.GroupResponse, error)
	JoinGroup(ctx context.Context, userID uuid.UUID, inviteCode string) (*groupDto.JoinGroupResult, error)
	LeaveGroup(ctx context.Context, userID, groupID uuid.UUID) (*groupDto.LeaveGroupResult, error)
	RemoveMember(ctx context.Context, actorID, groupID, memberID uuid.UUID) error
	TransferLeadership(ctx context.Context, actorID, groupID, newLeaderID uuid.UUID) error
	GetInviteCode(ctx context.Context, actorID, groupID uuid.UUID) (string, error)
	RegenerateInviteCode(ctx context.Context, actorID, groupID uuid.UUID) (string, error)
	UploadImage(ctx context.Context, actorID, groupID uuid.UUID, r io.Reader, fileName string) (*groupDto.GroupResponse, error)
	// ReindexGroups pushes every group to the search index.
	ReindexGroups(ctx context.Context) (int, error)
}

type groupService struct {
	repo         groupRepo.GroupRepository
	search       searchService.SearchService
	images       storage.ImageStorage
	limiter      RateLimiter
	notifier     notifService.NotificationService
	sanitizer    *bluemonday.Policy
	inviteWindow time.Duration
	loc          *time.Location
	now          func() time.Time
}

// NewGroupService wires the group rules. search, images and limiter are optional.
func NewGroupService(
	repo groupRepo.GroupRepository,
	search searchService.SearchService,
	images storage.ImageStorage,
	limiter RateLimiter,
	notifier notifService.NotificationService,
	inviteWindow time.Duration,
	loc *time.Location,
) GroupService {
	if loc == nil {
		loc = time.UTC
	}
	return &groupService{
		repo:         repo,
		search:       search,
		images:       images,
		limiter:      limiter,
		notifier:     notifier,
		sanitizer:    bluemonday.StrictPolicy(),
		inviteWindow: inviteWindow,
		loc:          loc,
		now:          time.Now,
	}
}

func (s *groupService) clean(text string) string {
	return strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(text)))
}

func newInviteCode() (string, error) {
	buf := make([]byte, inviteCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = inviteCodeAlphabet[int(b)%len(inviteCodeAlphabet)]
	}
	return string(buf), nil
}

func (s *groupService) uniqueInviteCode(ctx context.Context, repo groupRepo.GroupRepository) (string, error) {
	for range 5 {
		code, err := newInviteCode()
		if err != nil {
			return "", err
		}
		if _, err := repo.FindByInviteCode(ctx, code); err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				return code, nil
			}
			return "", err
		}
	}
	return "", fmt.Errorf("could not generate a unique invite code: %w", apperror.ErrInternal)
}

// effectiveWeek reports the weekly XP as of now: a group whose stored week has
// passed has earned nothing this week yet.
func (s *groupService) effectiveWeek(g *entity.Group) int {
	if g.WeekStartDate != calendar.WeekStart(s.now(), s.loc) {
		return 0
	}
	return g.WeeklyXP
}

func (s *groupService) toResponse(g *entity.Group, members int64, role string) groupDto.GroupResponse {
	weekly := s.effectiveWeek(g)
	return groupDto.GroupResponse{
		ID:                g.ID.String(),
		Name:              g.Name,
		Description:       g.Description,
		ImageURL:          g.ImageURL,
		LeaderID:          g.LeaderID.String(),
		MemberCount:       members,
		WeeklyXP:          weekly,
		Level:             tier.ClassifyGroup(weekly),
		StoredWeeklyXP:    g.WeeklyXP,
		StoredLevel:       g.CurrentLevel,
		WeekStartDate:     g.WeekStartDate,
		OpenForChallenges: g.OpenForChallenges,
		MembersCanInvite:  g.MembersCanInvite,
		ChallengeWins:     g.ChallengeWins,
		Role:              role,
		CreatedAt:         g.CreatedAt,
	}
}

func (s *groupService) toDetail(g *entity.Group, callerID uuid.UUID) *groupDto.GroupDetailResponse {
	role := ""
	members := make([]groupDto.MemberResponse, 0, len(g.Members))
	for _, m := range g.Members {
		if m.UserID == callerID {
			role = m.Role
		}
		members = append(members, groupDto.MemberResponse{
			User: commonDto.AuthorResponse{
				ID:          m.UserID.String(),
				Username:    m.User.Username,
				DisplayName: m.User.DisplayName,
				CurrentTier: m.User.CurrentTier,
			},
			Role:     m.Role,
			TotalXP:  m.User.TotalXP,
			JoinedAt: m.JoinedAt,
		})
	}
	return &groupDto.GroupDetailResponse{
		GroupResponse: s.toResponse(g, int64(len(g.Members)), role),
		Members:       members,
	}
}

// requireLeader loads the group and rejects callers other than its leader.
func requireLeader(ctx context.Context, repo groupRepo.GroupRepository, groupID, actorID uuid.UUID, lock bool, action string) (*entity.Group, error) {
	var (
		group *entity.Group
		err   error
	)
	if lock {
		group, err = repo.LockGroup(ctx, groupID)
	} else {
		group, err = repo.FindByID(ctx, groupID)
	}
	if err != nil {
		return nil, err
	}
	if group.LeaderID != actorID {
		return nil, apperror.Transition("only the group leader can " + action)
	}
	return group, nil
}

func (s *groupService) CreateGroup(ctx context.Context, userID uuid.UUID, req groupDto.CreateGroupRequest) (*groupDto.GroupDetailResponse, error) {
	name := s.clean(req.Name)
	if name == "" {
		return nil, fmt.Errorf("group name is empty: %w", apperror.ErrInvalidInput)
	}

	now := s.now()
	group := &entity.Group{
		Name:              name,
		Description:       s.clean(req.Description),
		LeaderID:          userID,
		WeekStartDate:     calendar.WeekStart(now, s.loc),
		CurrentLevel:      tier.ClassifyGroup(0).Name,
		OpenForChallenges: req.OpenForChallenges,
		MembersCanInvite:  req.MembersCanInvite,
	}

	err := s.repo.Transaction(ctx, func(tx groupRepo.GroupRepository) error {
		if _, err := tx.FindUser(ctx, userID); err != nil {
			return err
		}

		code, err := s.uniqueInviteCode(ctx, tx)
		if err != nil {
			return err
		}
		group.InviteCode = code

		if err := tx.Create(ctx, group); err != nil {
			return err
		}
		_, err = tx.AddMember(ctx, &entity.GroupMembership{
			GroupID:  group.ID,
			UserID:   userID,
			Role:     entity.GroupRoleLeader,
			JoinedAt: now,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.reindex(ctx, group.ID)
	return s.GetGroup(ctx, userID, group.ID)
}

func (s *groupService) GetGroup(ctx context.Context, userID, groupID uuid.UUID) (*groupDto.GroupDetailResponse, error) {
	group, err := s.repo.FindByIDWithMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return s.toDetail(group, userID), nil
}

func (s *groupService) ListMyGroups(ctx context.Context, userID uuid.UUID) ([]groupDto.GroupResponse, error) {
	groups, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.withCounts(ctx, groups, func(g *entity.Group) string {
		if g.LeaderID == userID {
			return entity.GroupRoleLeader
		}
		return entity.GroupRoleMember
	})
}

func (s *groupService) withCounts(ctx context.Context, groups []entity.Group, role func(*entity.Group) string) ([]groupDto.GroupResponse, error) {
	ids := make([]uuid.UUID, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.ID)
	}
	counts, err := s.repo.MemberCounts(ctx, ids)
	if err != nil {
		return nil, err
	}

	responses := make([]groupDto.GroupResponse, 0, len(groups))
	for i := range groups {
		responses = append(responses, s.toResponse(&groups[i], counts[groups[i].ID], role(&groups[i])))
	}
	return responses, nil
}

func (s *groupService) BrowseGroups(ctx context.Context, query groupDto.BrowseGroupsQuery) ([]groupDto.GroupResponse, commonDto.PaginationMeta, error) {
	query.Normalize()
	term := s.clean(query.Query)

	if s.search != nil {
		docs, total, err := s.search.SearchOpenGroups(term, query.Limit, query.Offset())
		if err == nil {
			responses := make([]groupDto.GroupResponse, 0, len(docs))
			for _, doc := range docs {
				responses = append(responses, s.fromDocument(doc))
			}
			return responses, commonDto.NewPaginationMeta(query.PageQuery, total), nil
		}
		log.Printf("Group search failed, falling back to database: %v", err)
	}

	groups, total, err := s.repo.ListOpen(ctx, term, query.Limit, query.Offset())
	if err != nil {
		return nil, commonDto.PaginationMeta{}, err
	}
	responses, err := s.withCounts(ctx, groups, func(*entity.Group) string { return "" })
	if err != nil {
		return nil, commonDto.PaginationMeta{}, err
	}
	return responses, commonDto.NewPaginationMeta(query.PageQuery, total), nil
}

func (s *groupService) fromDocument(doc searchService.GroupDocument) groupDto.GroupResponse {
	g := &entity.Group{
		Name:              doc.Name,
		Description:       doc.Description,
		WeeklyXP:          doc.WeeklyXP,
		WeekStartDate:     doc.WeekStartDate,
		CurrentLevel:      doc.CurrentLevel,
		OpenForChallenges: doc.OpenForChallenges,
		ChallengeWins:     doc.ChallengeWins,
		CreatedAt:         time.Unix(doc.CreatedAt, 0).UTC(),
	}
	g.ID, _ = uuid.Parse(doc.ID)
	g.LeaderID, _ = uuid.Parse(doc.LeaderID)
	if doc.ImageURL != "" {
		url := doc.ImageURL
		g.ImageURL = &url
	}
	return s.toResponse(g, doc.MemberCount, "")
}

func (s *groupService) UpdateGroup(ctx context.Context, actorID, groupID uuid.UUID, req groupDto.UpdateGroupRequest) (*groupDto.GroupResponse, error) {
	updates := map[string]interface{}{}
	if req.Name != nil {
		name := s.clean(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("group name is empty: %w", apperror.ErrInvalidInput)
		}
		updates["name"] = name
	}
	if req.Description != nil {
		updates["description"] = s.clean(*req.Description)
	}
	if req.OpenForChallenges != nil {
		updates["open_for_challenges"] = *req.OpenForChallenges
	}
	if req.MembersCanInvite != nil {
		updates["members_can_invite"] = *req.MembersCanInvite
	}

	err := s.repo.Transaction(ctx, func(tx groupRepo.GroupRepository) error {
		if _, err := requireLeader(ctx, tx, groupID, actorID, true, "change group settings"); err != nil {
			return err
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Update(ctx, groupID, updates)
	})
	if err != nil {
		return nil, err
	}

	s.reindex(ctx, groupID)
	return s.summary(ctx, groupID, entity.GroupRoleLeader)
}

func (s *groupService) summary(ctx context.Context, groupID uuid.UUID, role string) (*groupDto.GroupResponse, error) {
	group, err := s.repo.FindByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	count, err := s.repo.CountMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}
	resp := s.toResponse(group, count, role)
	return &resp, nil
}

func (s *groupService) JoinGroup(ctx context.Context, userID uuid.UUID, inviteCode string) (*groupDto.JoinGroupResult, error) {
	code := strings.ToUpper(strings.TrimSpace(inviteCode))

	var (
		group  *entity.Group
		joined bool
	)
	err := s.repo.Transaction(ctx, func(tx groupRepo.GroupRepository) error {
		if _, err := tx.FindUser(ctx, userID); err != nil {
			return err
		}

		var err error
		group, err = tx.FindByInviteCode(ctx, code)
		if err != nil {
			return err
		}

		joined, err = tx.AddMember(ctx, &entity.GroupMembership{
			GroupID:  group.ID,
			UserID:   userID,
			Role:     entity.GroupRoleMember,
			JoinedAt: s.now(),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if joined {
		s.reindex(ctx, group.ID)
	}

	role := entity.GroupRoleMember
	if group.LeaderID == userID {
		role = entity.GroupRoleLeader
	}
	resp, err := s.summary(ctx, group.ID, role)
	if err != nil {
		return nil, err
	}
	return &groupDto.JoinGroupResult{Group: *resp, AlreadyMember: !joined}, nil
}

func (s *groupService) LeaveGroup(ctx context.Context, userID, groupID uuid.UUID) (*groupDto.LeaveGroupResult, error) {
	var result groupDto.LeaveGroupResult

	err := s.repo.Transaction(ctx, func(tx groupRepo.GroupRepository) error {
		group, err := tx.LockGroup(ctx, groupID)
		if err != nil {
			return err
		}

		membership, err := tx.FindMembership(ctx, groupID, userID)
		if err != nil {
			return err
		}
		if membership == nil {
			return apperror.Transition("you are not a member of this group")
		}

		if group.LeaderID != userID {
			return tx.RemoveMember(ctx, groupID, userID)
		}

		count, err := tx.CountMembers(ctx, groupID)
		if err != nil {
			return err
		}
		if count > 1 {
			return apperror.Transition("transfer leadership before leaving the group")
		}

		result.GroupDeleted = true
		return tx.Delete(ctx, groupID)
	})
	if err != nil {
		return nil, err
	}

	if result.GroupDeleted {
		if s.search != nil {
			if err := s.search.DeleteGroup(groupID.String()); err != nil {
				log.Printf("Failed to remove group %s from search: %v", groupID, err)
			}
		}
	} else {
		s.reindex(ctx, groupID)
	}
	return &result, nil
}

func (s *groupService) RemoveMember(ctx context.Context, actorID, groupID, memberID uuid.UUID) error {
	if actorID == memberID {
		return apperror.Transition("leaders leave through the leave action")
	}

	err := s.repo.Transaction(ctx, func(tx groupRepo.GroupRepository) error {
		if _, err := requireLeader(ctx, tx, groupID, actorID, true, "remove members"); err != nil {
			return err
		}

		membership, err := tx.FindMembership(ctx, groupID, memberID)
		if err != nil {
			return err
		}
		if membership == nil {
			return fmt.Errorf("member not found: %w", apperror.ErrNotFound)
		}
		return tx.RemoveMember(ctx, groupID, memberID)
	})
	if err != nil {
		return err
	}

	s.reindex(ctx, groupID)
	return nil
}

func (s *groupService) TransferLeadership(ctx context.Context, actorID, groupID, newLeaderID uuid.UUID) error {
	var groupName string

	err := s.repo.Transaction(ctx, func(tx groupRepo.GroupRepository) error {
		group, err := requireLeader(ctx, tx, groupID, actorID, true, "transfer leadership")
		if err != nil {
			return err
		}
		if newLeaderID == actorID {
			return apperror.Transition("you already lead this group")
		}

		membership, err := tx.FindMembership(ctx, groupID, newLeaderID)
		if err != nil {
			return err
		}
		if membership == nil {
			return apperror.Transition("the new leader must be a member of the group")
		}

		if err := tx.SetRole(ctx, groupID, actorID, entity.GroupRoleMember); err != nil {
			return err
		}
		if err := tx.SetRole(ctx, groupID, newLeaderID, entity.GroupRoleLeader); err != nil {
			return err
		}
		groupName = group.Name
		return tx.Update(ctx, groupID, map[string]interface{}{"leader_id": newLeaderID})
	})
	if err != nil {
		return err
	}

	if s.notifier != nil {
		s.notifier.Notify(ctx, newLeaderID, entity.NotificationLeadershipReceived, "group", groupID.String(),
			fmt.Sprintf("You are now the leader of %s", groupName))
	}
	s.reindex(ctx, groupID)
	return nil
}

func (s *groupService) GetInviteCode(ctx context.Context, actorID, groupID uuid.UUID) (string, error) {
	group, err := s.repo.FindByID(ctx, groupID)
	if err != nil {
		return "", err
	}
	if group.LeaderID == actorID {
		return group.InviteCode, nil
	}

	membership, err := s.repo.FindMembership(ctx, groupID, actorID)
	if err != nil {
		return "", err
	}
	if membership == nil || !group.MembersCanInvite {
		return "", apperror.Transition("only the group leader can share the invite code")
	}
	return group.InviteCode, nil
}

func (s *groupService) RegenerateInviteCode(ctx context.Context, actorID, groupID uuid.UUID) (string, error) {
	if _, err := requireLeader(ctx, s.repo, groupID, actorID, false, "regenerate the invite code"); err != nil {
		return "", err
	}

	action := "invite_code:" + groupID.String()
	if s.limiter != nil {
		if err := s.limiter.Allow(ctx, actorID, action, s.inviteWindow); err != nil {
			return "", err
		}
	}

	var code string
	err := s.repo.Transaction(ctx, func(tx groupRepo.GroupRepository) error {
		if _, err := requireLeader(ctx, tx, groupID, actorID, true, "regenerate the invite code"); err != nil {
			return err
		}

		var err error
		code, err = s.uniqueInviteCode(ctx, tx)
		if err != nil {
			return err
		}
		return tx.Update(ctx, groupID, map[string]interface{}{"invite_code": code})
	})
	if err != nil {
		if s.limiter != nil {
			_ = s.limiter.Clear(ctx, actorID, action)
		}
		return "", err
	}
	return code, nil
}

func (s *groupService) UploadImage(ctx context.Context, actorID, groupID uuid.UUID, r io.Reader, fileName string) (*groupDto.GroupResponse, error) {
	group, err := requireLeader(ctx, s.repo, groupID, actorID, false, "change the group image")
	if err != nil {
		return nil, err
	}
	if s.images == nil {
		return nil, apperror.New(http.StatusServiceUnavailable, "image storage is not configured", apperror.ErrInternal)
	}

	url, err := s.images.UploadImage(ctx, r, imageFolder, groupID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", fileName, err)
	}

	if err := s.repo.Update(ctx, groupID, map[string]interface{}{"image_url": url}); err != nil {
		return nil, err
	}

	if group.ImageURL != nil && *group.ImageURL != "" && *group.ImageURL != url {
		if err := s.images.DeleteImage(ctx, *group.ImageURL); err != nil {
			log.Printf("Failed to delete old image for group %s: %v", groupID, err)
		}
	}

	s.reindex(ctx, groupID)
	return s.summary(ctx, groupID, entity.GroupRoleLeader)
}

func (s *groupService) document(g *entity.Group, members int64) searchService.GroupDocument {
	doc := searchService.GroupDocument{
		ID:                g.ID.String(),
		Name:              g.Name,
		Description:       g.Description,
		LeaderID:          g.LeaderID.String(),
		MemberCount:       members,
		WeeklyXP:          g.WeeklyXP,
		WeekStartDate:     g.WeekStartDate,
		CurrentLevel:      g.CurrentLevel,
		OpenForChallenges: g.OpenForChallenges,
		ChallengeWins:     g.ChallengeWins,
		CreatedAt:         g.CreatedAt.Unix(),
	}
	if g.ImageURL != nil {
		doc.ImageURL = *g.ImageURL
	}
	return doc
}

// reindex refreshes one group in the search index; failures only cost freshness.
func (s *groupService) reindex(ctx context.Context, groupID uuid.UUID) {
	if s.search == nil {
		return
	}
	group, err := s.repo.FindByID(ctx, groupID)
	if err != nil {
		log.Printf("Failed to load group %s for indexing: %v", groupID, err)
		return
	}
	count, err := s.repo.CountMembers(ctx, groupID)
	if err != nil {
		log.Printf("Failed to count members of group %s: %v", groupID, err)
		return
	}
	if err := s.search.IndexGroups([]searchService.GroupDocument{s.document(group, count)}); err != nil {
		log.Printf("Failed to index group %s: %v", groupID, err)
	}
}

func (s *groupService) ReindexGroups(ctx context.Context) (int, error) {
	if s.search == nil {
		return 0, nil
	}

	groups, err := s.repo.ListAll(ctx)
	if err != nil {
		return 0, err
	}

	indexed := 0
	for start := 0; start < len(groups); start += reindexBatchSize {
		batch := groups[start:min(start+reindexBatchSize, len(groups))]

		ids := make([]uuid.UUID, 0, len(batch))
		for _, g := range batch {
			ids = append(ids, g.ID)
		}
		counts, err := s.repo.MemberCounts(ctx, ids)
		if err != nil {
			return indexed, err
		}

		docs := make([]searchService.GroupDocument, 0, len(batch))
		for i := range batch {
			docs = append(docs, s.document(&batch[i], counts[batch[i].ID]))
		}
		if err := s.search.IndexGroups(docs); err != nil {
			return indexed, err
		}
		indexed += len(docs)
	}
	return indexed, nil
}
