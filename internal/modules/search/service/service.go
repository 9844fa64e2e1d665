// Package service keeps the directory of challengeable groups in Meilisearch.
package service

import (
	"encoding/json"
	"fmt"
	"html"
	"log"
	"strings"

	"github.com/meilisearch/meilisearch-go"
	"github.com/microcosm-cc/bluemonday"
)

const groupsIndex = "groups"

// GroupDocument is the indexed view of a group.
type GroupDocument struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Description       string `json:"description"`
	ImageURL          string `json:"image_url"`
	LeaderID          string `json:"leader_id"`
	MemberCount       int64  `json:"member_count"`
	WeeklyXP          int    `json:"weekly_xp"`
	WeekStartDate     string `json:"week_start_date"`
	CurrentLevel      string `json:"current_level"`
	OpenForChallenges bool   `json:"open_for_challenges"`
	ChallengeWins     int    `json:"challenge_wins"`
	CreatedAt         int64  `json:"created_at"`
}

type SearchService interface {
	IndexGroups(docs []GroupDocument) error
	DeleteGroup(id string) error
	// SearchOpenGroups only returns groups that accept challenges.
	SearchOpenGroups(query string, limit, offset int) ([]GroupDocument, int64, error)
}

type meiliSearchService struct {
	client    meilisearch.ServiceManager
	sanitizer *bluemonday.Policy
}

func NewSearchService(client meilisearch.ServiceManager) SearchService {
	s := &meiliSearchService{
		client:    client,
		sanitizer: bluemonday.StrictPolicy(),
	}
	s.initIndexes()
	return s
}

func (s *meiliSearchService) initIndexes() {
	filterable := []any{"open_for_challenges", "current_level"}
	if _, err := s.client.Index(groupsIndex).UpdateFilterableAttributes(&filterable); err != nil {
		log.Printf("Failed to update groups filterable attributes: %v", err)
	}

	sortable := []string{"weekly_xp", "challenge_wins", "created_at"}
	if _, err := s.client.Index(groupsIndex).UpdateSortableAttributes(&sortable); err != nil {
		log.Printf("Failed to update groups sortable attributes: %v", err)
	}

	log.Println("Meilisearch indexes initialized")
}

func (s *meiliSearchService) cleanForIndex(content string) string {
	content = strings.ReplaceAll(content, "</p>", " ")
	content = strings.ReplaceAll(content, "<br>", " ")

	cleanText := html.UnescapeString(s.sanitizer.Sanitize(content))
	return strings.Join(strings.Fields(cleanText), " ")
}

func (s *meiliSearchService) IndexGroups(docs []GroupDocument) error {
	if len(docs) == 0 {
		return nil
	}
	for i := range docs {
		docs[i].Name = s.cleanForIndex(docs[i].Name)
		docs[i].Description = s.cleanForIndex(docs[i].Description)
	}

	task, err := s.client.Index(groupsIndex).AddDocuments(docs, strPtr("id"))
	if err != nil {
		return err
	}
	log.Printf("Indexed %d groups, task id: %d", len(docs), task.TaskUID)
	return nil
}

func (s *meiliSearchService) DeleteGroup(id string) error {
	_, err := s.client.Index(groupsIndex).DeleteDocument(id)
	return err
}

type searchResult struct {
	Hits               []GroupDocument `json:"hits"`
	EstimatedTotalHits int64           `json:"estimatedTotalHits"`
}

func (s *meiliSearchService) SearchOpenGroups(query string, limit, offset int) ([]GroupDocument, int64, error) {
	raw, err := s.client.Index(groupsIndex).SearchRaw(query, &meilisearch.SearchRequest{
		Filter: "open_for_challenges = true",
		Sort:   []string{"weekly_xp:desc"},
		Limit:  int64(limit),
		Offset: int64(offset),
	})
	if err != nil {
		return nil, 0, err
	}
	if raw == nil {
		return nil, 0, fmt.Errorf("empty search response")
	}

	var result searchResult
	if err := json.Unmarshal(*raw, &result); err != nil {
		return nil, 0, fmt.Errorf("decode search response: %w", err)
	}
	return result.Hits, result.EstimatedTotalHits, nil
}

func strPtr(s string) *string {
	return &s
}
