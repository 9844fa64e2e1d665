package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublicIDFromURL(t *testing.T) {
	tests := []struct {
		Desc string
		URL  string
		Want string
	}{
		{
			Desc: "versioned with folder",
			URL:  "https://res.cloudinary.com/demo/image/upload/v1712345678/seraph/groups/1712-banner.webp",
			Want: "seraph/groups/1712-banner",
		},
		{
			Desc: "no version",
			URL:  "https://res.cloudinary.com/demo/image/upload/groups/crest.png",
			Want: "groups/crest",
		},
		{
			Desc: "folder that starts with v but is not a version",
			URL:  "https://res.cloudinary.com/demo/image/upload/victory/crest.png",
			Want: "victory/crest",
		},
		{
			Desc: "not a cloudinary upload url",
			URL:  "https://example.com/crest.png",
			Want: "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.Desc, func(t *testing.T) {
			assert.Equal(t, tc.Want, PublicIDFromURL(tc.URL))
		})
	}
}
