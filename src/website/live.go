package website

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/arsyadal/fastblog/src/blogdata"
	"github.com/arsyadal/fastblog/src/config"
	"github.com/arsyadal/fastblog/src/events"
	"github.com/arsyadal/fastblog/src/logging"
	"github.com/arsyadal/fastblog/src/models"
	"github.com/arsyadal/fastblog/src/utils"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	liveSnapshotInterval = 30 * time.Second
	liveWriteTimeout     = 10 * time.Second
	livePongTimeout      = 60 * time.Second
	liveEventBuffer      = 64
)

var liveUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(config.Config.CorsOrigins, origin) || slices.Contains(config.Config.CorsOrigins, "*")
	},
}

type liveMessage struct {
	Type      string           `json:"type"`
	ArticleID uuid.UUID        `json:"article_id"`
	Event     *events.Event    `json:"event,omitempty"`
	Counters  map[string]int64 `json:"counters,omitempty"`
}

func articleCounters(a *models.Article) map[string]int64 {
	return map[string]int64{
		"claps_count":     a.ClapsCount,
		"comments_count":  int64(a.CommentsCount),
		"bookmarks_count": int64(a.BookmarksCount),
		"views_count":     a.ViewsCount,
		"reads_count":     a.ReadsCount,
	}
}

/*
Streams an article's engagement over a websocket: a counter snapshot right
away and then every liveSnapshotInterval, plus every engagement event for
the article as it happens.
*/
func ArticleLive(c *RequestContext) ResponseData {
	articleID, ok := c.PathUUID("articleid")
	if !ok {
		return FourOhFour(c)
	}
	viewerID := c.ViewerID()
	if _, err := blogdata.FetchArticle(c, c.Conn, viewerID, articleID); err != nil {
		return c.DataError(err)
	}

	conn, err := liveUpgrader.Upgrade(c.Res, c.Req, nil)
	if err != nil {
		// The upgrader has already written an error response.
		c.Logger.Debug().Err(err).Msg("websocket upgrade failed")
		return ResponseData{hijacked: true}
	}

	go serveLive(c, conn, articleID, viewerID)
	return ResponseData{hijacked: true}
}

func serveLive(c *RequestContext, conn *websocket.Conn, articleID uuid.UUID, viewerID *uuid.UUID) {
	logger := c.Logger.With().Str("articleId", articleID.String()).Logger()
	defer logging.LogPanics(&logger)
	defer conn.Close()

	// The request context dies when the handler returns, so the connection
	// lives on the server's context instead.
	serverCtx := c.ServerCtx
	if serverCtx == nil {
		serverCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(logging.AttachLoggerToContext(&logger, serverCtx))
	defer cancel()

	sub := c.Bus.Subscribe("live:"+articleID.String(), liveEventBuffer)
	defer sub.Close()
	logger.Debug().Int("subscribers", c.Bus.NumSubscribers()).Msg("live client connected")

	// Reads only serve to notice the client going away and to process pongs.
	conn.SetReadDeadline(time.Now().Add(livePongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(livePongTimeout))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(msg liveMessage) bool {
		conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
		if err := conn.WriteJSON(msg); err != nil {
			logger.Debug().Err(err).Msg("live connection closed")
			return false
		}
		return true
	}

	ticker := utils.NewInstaTicker(liveSnapshotInterval)
	defer ticker.Stop()

	logger.Debug().Msg("live connection opened")
	for {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(time.Second))
			return
		case <-ticker.C:
			article, err := blogdata.FetchArticle(ctx, c.Conn, viewerID, articleID)
			if err != nil {
				logger.Debug().Err(err).Msg("article went away, closing live connection")
				return
			}
			if !send(liveMessage{Type: "snapshot", ArticleID: articleID, Counters: articleCounters(article)}) {
				return
			}
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteTimeout)); err != nil {
				return
			}
		case evt, ok := <-sub.C:
			if !ok {
				return
			}
			if evt.ArticleID == nil || *evt.ArticleID != articleID {
				continue
			}
			if !send(liveMessage{Type: "event", ArticleID: articleID, Event: &evt, Counters: evt.Counters}) {
				return
			}
		}
	}
}
