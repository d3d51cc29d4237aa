package service

import (
	"testing"

	"unscored/internal/ident"
	"unscored/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURL(t *testing.T) {
	dir := newFakeStates(
		models.IngestState{Community: "TheDonald", Domain: "patriots.win"},
		models.IngestState{Community: "test"},
	)
	post := ident.ToUUID(1000)
	comment := ident.ToUUID(2000)

	tests := []struct {
		name string
		raw  string
		want ParsedURL
	}{
		{
			name: "bare username",
			raw:  "some_user",
			want: ParsedURL{Type: URLProfile, User: "some_user", Content: "removed", Page: 1, NormalizedPath: "/u/some_user?type=removed"},
		},
		{
			name: "profile with type",
			raw:  "https://scored.co/u/alice?type=post&page=3",
			want: ParsedURL{Type: URLProfile, User: "alice", Content: "post", Page: 3, NormalizedPath: "/u/alice?type=post"},
		},
		{
			name: "relative community feed",
			raw:  "c/test",
			want: ParsedURL{Type: URLFeed, Community: "test", Sort: "new", NormalizedPath: "/c/test/new"},
		},
		{
			name: "hot feed served as new",
			raw:  "https://communities.win/c/test/top?from=abc",
			want: ParsedURL{Type: URLFeed, Community: "test", Sort: "new", FromUUID: "abc", NormalizedPath: "/c/test/new?from=abc"},
		},
		{
			name: "standalone domain feed",
			raw:  "https://patriots.win/new",
			want: ParsedURL{Type: URLFeed, Community: "TheDonald", Sort: "new", NormalizedPath: "/c/TheDonald/new"},
		},
		{
			name: "modlog defaults",
			raw:  "https://scored.co/c/test/logs?moderator=janitor",
			want: ParsedURL{
				Type: URLModlog, Community: "test", Action: "*", Moderator: "janitor", Target: "*", Page: 1,
				NormalizedPath: "/c/test/logs?type=*&moderator=janitor&target=*&page=1",
			},
		},
		{
			name: "communities",
			raw:  "/communities?sort=name",
			want: ParsedURL{Type: URLCommunities, Page: 1, Sort: "name", NormalizedPath: "/communities?sort=name&page=1"},
		},
		{
			name: "comment permalink",
			raw:  "https://patriots.win/p/" + post + "/some-title/c/" + comment,
			want: ParsedURL{
				Type: URLThread, Community: "TheDonald", PostUUID: post, PostID: 1000, CommentUUID: comment, CommentID: 2000,
				Sort: "top", NormalizedPath: "/c/TheDonald/p/" + post + "/x/c/" + comment,
			},
		},
		{
			name: "thread with sort",
			raw:  "https://scored.co/c/test/p/" + post + "?sort=new",
			want: ParsedURL{
				Type: URLThread, Community: "test", PostUUID: post, PostID: 1000,
				Sort: "new", NormalizedPath: "/c/test/p/" + post + "?sort=new",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseURL(dir, tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestParseURLRejects(t *testing.T) {
	dir := newFakeStates()

	for _, raw := range []string{
		"https://unknown.example/c/test",
		"https://scored.co/settings",
		"https://scored.co/u/",
		"https://scored.co/c/test/p/not*a*uuid",
	} {
		_, err := ParseURL(dir, raw)
		assert.True(t, models.HasCode(err, models.CodeInvalidURL), raw)
	}
}

func TestContentURLs(t *testing.T) {
	dir := newFakeStates(models.IngestState{Community: "TheDonald", Domain: "patriots.win"})
	post := ident.ToUUID(10)
	comment := ident.ToUUID(11)

	assert.Equal(t, []string{
		"https://scored.co/c/TheDonald/p/" + post + "/x/c/" + comment,
		"https://communities.win/c/TheDonald/p/" + post + "/x/c/" + comment,
		"https://patriots.win/p/" + post + "/x/c/" + comment,
	}, ContentURLs(dir, "TheDonald", 10, 11))

	assert.Len(t, ContentURLs(dir, "other", 10, 0), 2)
}
