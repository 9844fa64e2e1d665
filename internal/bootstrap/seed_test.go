package bootstrap

import (
	"testing"

	"github.com/PhoenixSmith/seraph-v2-sub000/internal/entity"
	"github.com/PhoenixSmith/seraph-v2-sub000/pkg/scripture"
	"github.com/stretchr/testify/assert"
)

func TestBookAchievementKey(t *testing.T) {
	assert.Equal(t, "book_ruth", BookAchievementKey("Ruth"))
	assert.Equal(t, "book_1_samuel", BookAchievementKey("1 Samuel"))
	assert.Equal(t, "book_song_of_solomon", BookAchievementKey("Song of Solomon"))
}

func TestAchievementCatalog(t *testing.T) {
	catalog := achievementCatalog()

	keys := map[string]bool{}
	books := 0
	for _, a := range catalog {
		assert.False(t, keys[a.Key], "duplicate key %s", a.Key)
		keys[a.Key] = true

		req := a.ParsedRequirement()
		if a.Category == entity.CategoryBookCompletion {
			books++
			_, ok := scripture.Lookup(req.Book)
			assert.True(t, ok, "unknown book in %s", a.Key)
		} else {
			assert.Positive(t, req.Value, "%s needs a positive threshold", a.Key)
		}
	}
	assert.Equal(t, len(scripture.Books()), books)
}

func TestLinkedAvatarItemsMatchAchievements(t *testing.T) {
	keys := map[string]bool{}
	for _, a := range achievementCatalog() {
		keys[a.Key] = true
	}

	for _, item := range avatarCatalog() {
		if item.Unlockable {
			assert.True(t, keys[item.Key], "%s is not an achievement key", item.Key)
			assert.Zero(t, item.TalentCost)
		} else {
			assert.False(t, keys[item.Key], "%s collides with an achievement key", item.Key)
			assert.Positive(t, item.TalentCost)
		}
	}
}
