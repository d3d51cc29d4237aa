package testutil

import (
	"time"

	"unscored/internal/ident"
	"unscored/internal/models"

	"github.com/brianvoe/gofakeit/v6"
)

// LivePost returns a visible platform post with generated content.
func LivePost(id uint64, community, author string) models.LivePost {
	return models.LivePost{
		ID:         id,
		UUID:       ident.ToUUID(id),
		Author:     author,
		Community:  community,
		Created:    time.Now().Add(-time.Hour).UnixMilli(),
		Type:       "text",
		Title:      gofakeit.Sentence(6),
		RawContent: gofakeit.Paragraph(1, 3, 12, " "),
		Score:      gofakeit.Number(1, 100),
	}
}

// LiveComment returns a visible platform comment on postID.
func LiveComment(id, postID uint64, community, author string) models.LiveComment {
	return models.LiveComment{
		ID:         id,
		UUID:       ident.ToUUID(id),
		Author:     author,
		Community:  community,
		Created:    time.Now().Add(-time.Hour).UnixMilli(),
		RawContent: gofakeit.Sentence(10),
		ParentID:   postID,
		ParentUUID: ident.ToUUID(postID),
		Score:      gofakeit.Number(1, 50),
	}
}
