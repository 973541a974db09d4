package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/jason-s-yu/heartline/internal/apperr"
	"github.com/jason-s-yu/heartline/internal/middleware"
	"github.com/jason-s-yu/heartline/internal/snapshot"
	"github.com/sirupsen/logrus"
)

const watchWriteTimeout = 5 * time.Second

// handleWatch streams the lobby snapshot over a websocket: once on connect,
// after every in-process refresh, and on each poll tick where the cached
// version moved. Refreshes made by another process are picked up by the poll.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	actor := mustActor(r)
	if err := requireMember(actor); err != nil {
		s.fail(w, r, err)
		return
	}
	tz, err := queryInt(r, "tz", 0)
	if err == nil {
		err = snapshot.ValidateOffset(tz)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}

	// Same-origin requests are always accepted; cross-origin ones must match a configured host.
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.wsOrigins,
	})
	if err != nil {
		s.logger.WithError(err).Warn("websocket accept error")
		return
	}
	defer c.CloseNow()
	middleware.LogWebSocketConnect(s.logger, r.RemoteAddr, r.URL.Path)

	// Clients never send; CloseRead handles control frames and cancels ctx on close.
	ctx := c.CloseRead(r.Context())
	updates, unsubscribe := s.snapshots.Hub().Subscribe(actor.LobbyID)
	defer unsubscribe()
	ticker := time.NewTicker(s.watchPoll)
	defer ticker.Stop()

	log := s.logger.WithFields(logrus.Fields{"lobby_id": actor.LobbyID, "actor_id": actor.UserID})
	sent := int64(-1)
	push := func(force bool) error {
		if !force {
			v, err := s.snapshots.Version(ctx, actor.LobbyID)
			if err != nil {
				log.WithError(err).Debug("watch version poll failed")
				return nil
			}
			if v <= sent {
				return nil
			}
		}
		snap, err := s.snapshots.Read(ctx, actor.LobbyID, tz, false)
		if err != nil {
			return err
		}
		wctx, cancel := context.WithTimeout(ctx, watchWriteTimeout)
		defer cancel()
		if err := wsjson.Write(wctx, c, snap); err != nil {
			return err
		}
		sent = snap.Version
		return nil
	}

	err = push(true)
	for err == nil {
		select {
		case <-ctx.Done():
			middleware.LogWebSocketDisconnect(s.logger, r.RemoteAddr, r.URL.Path, nil)
			return
		case <-updates:
			err = push(false)
		case <-ticker.C:
			err = push(false)
		}
	}

	middleware.LogWebSocketDisconnect(s.logger, r.RemoteAddr, r.URL.Path, err)
	if ctx.Err() == nil {
		c.Close(SnapshotUnavailableError, apperr.MessageOf(err))
	}
}

// originHosts turns CORS origins into websocket host patterns. Patterns that
// match every host are dropped.
func originHosts(origins []string) []string {
	var hosts []string
	for _, o := range origins {
		host := o
		if i := strings.Index(host, "://"); i >= 0 {
			host = host[i+3:]
		}
		host = strings.TrimSuffix(host, "/")
		if host == "" || host == "*" {
			continue
		}
		hosts = append(hosts, host)
	}
	return hosts
}
