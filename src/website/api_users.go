package website

import (
	"net/http"

	"github.com/arsyadal/fastblog/src/blogdata"
	"github.com/arsyadal/fastblog/src/events"
	"github.com/arsyadal/fastblog/src/models"
	"github.com/google/uuid"
)

func (c *RequestContext) profile(user *models.User) ResponseData {
	profile, err := blogdata.FetchUserProfile(c, c.Conn, user)
	if err != nil {
		return c.DataError(err)
	}
	return c.JsonResponse(http.StatusOK, newApiProfile(profile))
}

func UserProfileByUsername(c *RequestContext) ResponseData {
	user, err := blogdata.FetchUserByUsername(c, c.Conn, c.PathParams["username"])
	if err != nil {
		return c.DataError(err)
	}
	return c.profile(user)
}

func UserProfile(c *RequestContext) ResponseData {
	userID, ok := c.PathUUID("userid")
	if !ok {
		return FourOhFour(c)
	}
	user, err := blogdata.FetchUser(c, c.Conn, userID)
	if err != nil {
		return c.DataError(err)
	}
	return c.profile(user)
}

func UpdateProfile(c *RequestContext) ResponseData {
	var body struct {
		DisplayName *string `json:"display_name"`
		Bio         *string `json:"bio"`
		AvatarUrl   *string `json:"avatar_url"`
	}
	if res, ok := c.ReadJson(&body); !ok {
		return res
	}

	user, err := blogdata.UpdateProfile(c, c.Conn, c.CurrentUser.UserID, blogdata.ProfileInput{
		DisplayName: body.DisplayName,
		Bio:         body.Bio,
		AvatarUrl:   body.AvatarUrl,
	})
	if err != nil {
		return c.DataError(err)
	}
	return c.JsonResponse(http.StatusOK, newApiUser(user))
}

func followResponse(c *RequestContext, userID uuid.UUID, following bool, result blogdata.FollowResult) ResponseData {
	if result.Changed && following {
		c.Publish(events.NewUserEvent(events.UserFollowed, userID, map[string]int64{
			"followers_count": int64(result.FollowersCount),
		}))
	}
	return c.JsonResponse(http.StatusOK, map[string]any{
		"is_following":    following,
		"changed":         result.Changed,
		"followers_count": result.FollowersCount,
	})
}

func Follow(c *RequestContext) ResponseData {
	userID, ok := c.PathUUID("userid")
	if !ok {
		return FourOhFour(c)
	}
	result, err := blogdata.Follow(c, c.Conn, c.CurrentUser.UserID, userID)
	if err != nil {
		return c.DataError(err)
	}
	return followResponse(c, userID, true, result)
}

func Unfollow(c *RequestContext) ResponseData {
	userID, ok := c.PathUUID("userid")
	if !ok {
		return FourOhFour(c)
	}
	result, err := blogdata.Unfollow(c, c.Conn, c.CurrentUser.UserID, userID)
	if err != nil {
		return c.DataError(err)
	}
	return followResponse(c, userID, false, result)
}

func FollowStatus(c *RequestContext) ResponseData {
	userID, ok := c.PathUUID("userid")
	if !ok {
		return FourOhFour(c)
	}
	following, err := blogdata.IsFollowing(c, c.Conn, c.CurrentUser.UserID, userID)
	if err != nil {
		return c.DataError(err)
	}
	return c.JsonResponse(http.StatusOK, map[string]bool{"is_following": following})
}

func listFollows(c *RequestContext, direction blogdata.FollowDirection) ResponseData {
	userID, ok := c.PathUUID("userid")
	if !ok {
		return FourOhFour(c)
	}
	paged, err := blogdata.FetchFollows(c, c.Conn, userID, direction, getPage(c))
	if err != nil {
		return c.DataError(err)
	}
	return c.JsonResponse(http.StatusOK, pagedJsonOf(paged, paged.Items))
}

func Followers(c *RequestContext) ResponseData {
	return listFollows(c, blogdata.Followers)
}

func Following(c *RequestContext) ResponseData {
	return listFollows(c, blogdata.Following)
}

func UserArticles(c *RequestContext) ResponseData {
	userID, ok := c.PathUUID("userid")
	if !ok {
		return FourOhFour(c)
	}
	paged, err := blogdata.FetchArticlesPaged(c, c.Conn, c.ViewerID(), blogdata.ArticlesQuery{
		AuthorIDs:     []uuid.UUID{userID},
		OnlyPublished: true,
		Sort:          blogdata.ParseArticleSort(c.Req.URL.Query().Get("sort")),
	}, getPage(c))
	if err != nil {
		return c.DataError(err)
	}
	return c.articleViews(paged)
}

func MyBookmarks(c *RequestContext) ResponseData {
	paged, err := blogdata.FetchBookmarkedArticles(c, c.Conn, c.CurrentUser.UserID, getPage(c))
	if err != nil {
		return c.DataError(err)
	}
	return c.articleViews(paged)
}

func AuthorStats(c *RequestContext) ResponseData {
	userID, ok := c.PathUUID("userid")
	if !ok {
		return FourOhFour(c)
	}
	stats, err := blogdata.FetchAuthorStats(c, c.Conn, userID)
	if err != nil {
		return c.DataError(err)
	}
	return c.JsonResponse(http.StatusOK, newApiAuthorStats(stats))
}
