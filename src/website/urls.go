package website

import "regexp"

const (
	uuidPattern = `[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`
	slugPattern = `[a-z0-9]+(?:-[a-z0-9]+)*`
)

var RegexHealth = regexp.MustCompile(`^/health$`)
var RegexShareArticle = regexp.MustCompile(`^/share/article/(?P<slug>` + slugPattern + `)$`)
var RegexPerfmon = regexp.MustCompile(`^/admin/perfmon$`)

var RegexApi = regexp.MustCompile(`^/api/v1`)

var RegexRegister = regexp.MustCompile(`^/auth/register$`)
var RegexLogin = regexp.MustCompile(`^/auth/login$`)
var RegexMe = regexp.MustCompile(`^/auth/me$`)

var RegexArticles = regexp.MustCompile(`^/articles$`)
var RegexArticle = regexp.MustCompile(`^/articles/(?P<articleid>` + uuidPattern + `)$`)
var RegexArticleBySlug = regexp.MustCompile(`^/articles/slug/(?P<slug>` + slugPattern + `)$`)
var RegexTrending = regexp.MustCompile(`^/articles/trending$`)
var RegexFeatured = regexp.MustCompile(`^/articles/featured$`)
var RegexFeed = regexp.MustCompile(`^/articles/feed$`)
var RegexDrafts = regexp.MustCompile(`^/articles/drafts$`)
var RegexAutoSave = regexp.MustCompile(`^/articles/autosave$`)

func articleSubpath(name string) *regexp.Regexp {
	return regexp.MustCompile(`^/articles/(?P<articleid>` + uuidPattern + `)/` + name + `$`)
}

var RegexPublish = articleSubpath("publish")
var RegexRecordView = articleSubpath("view")
var RegexRecordRead = articleSubpath("read")
var RegexToggleFeatured = articleSubpath("featured")
var RegexClap = articleSubpath("clap")
var RegexBookmark = articleSubpath("bookmark")
var RegexComments = articleSubpath("comments")
var RegexArticleStats = articleSubpath("stats")
var RegexArticleLive = articleSubpath("live")

var RegexUserByUsername = regexp.MustCompile(`^/users/profile/(?P<username>[A-Za-z0-9_]{1,30})$`)
var RegexMyProfile = regexp.MustCompile(`^/users/profile$`)
var RegexMyBookmarks = regexp.MustCompile(`^/users/me/bookmarks$`)
var RegexUser = regexp.MustCompile(`^/users/(?P<userid>` + uuidPattern + `)$`)

func userSubpath(name string) *regexp.Regexp {
	return regexp.MustCompile(`^/users/(?P<userid>` + uuidPattern + `)/` + name + `$`)
}

var RegexFollow = userSubpath("follow")
var RegexFollowStatus = userSubpath("follow-status")
var RegexFollowers = userSubpath("followers")
var RegexFollowing = userSubpath("following")
var RegexUserArticles = userSubpath("articles")
var RegexAuthorStats = userSubpath("stats")

var RegexSearch = regexp.MustCompile(`^/search$`)
var RegexSearchArticles = regexp.MustCompile(`^/search/articles$`)
var RegexSearchUsers = regexp.MustCompile(`^/search/users$`)
var RegexSearchTags = regexp.MustCompile(`^/search/tags$`)
var RegexSearchSuggestions = regexp.MustCompile(`^/search/suggestions$`)

var RegexUploadAvatar = regexp.MustCompile(`^/upload/avatar$`)
var RegexUploadImage = regexp.MustCompile(`^/upload/image$`)

var RegexCatchAll = regexp.MustCompile(`^`)
