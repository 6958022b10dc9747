package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/PaulBabatuyi/ilinkon-realtime/internal/chatv1"
	"github.com/PaulBabatuyi/ilinkon-realtime/internal/errs"
	"github.com/PaulBabatuyi/ilinkon-realtime/internal/metrics"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 25 * time.Second
	wsPingTimeout  = 5 * time.Second
)

// wsHandler upgrades browser clients onto the same registry and pipeline as
// the gRPC stream.
type wsHandler struct {
	srv            *Server
	verifier       TokenVerifier
	originPatterns []string
}

// newRouter builds the HTTP surface: websocket gateway, metrics and health.
func newRouter(srv *Server, verifier TokenVerifier, m *metrics.Metrics, originPatterns []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "connections": srv.registry.Len()})
	})
	r.GET("/metrics", gin.WrapH(m.Handler()))

	h := &wsHandler{srv: srv, verifier: verifier, originPatterns: originPatterns}
	r.GET("/ws", h.Handle)
	return r
}

// Handle authenticates with ?token= since browsers cannot set headers on
// the upgrade request.
func (h *wsHandler) Handle(c *gin.Context) {
	tokenStr := c.Query("token")
	if tokenStr == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "missing token"})
		return
	}
	claims, err := h.verifier.VerifyToken(tokenStr)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid token"})
		return
	}

	user, err := h.srv.sender(c.Request.Context(), claims)
	if err != nil {
		code := http.StatusInternalServerError
		if errs.Is(err, errs.KindNotFound) {
			code = http.StatusNotFound
		}
		c.JSON(code, gin.H{"message": errs.PublicMessage(err)})
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		// Accept already wrote the response
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	go keepAlive(ctx, conn)

	ws := &wsConn{conn: conn}
	err = h.srv.serve(ctx, user, transportWS, ws.recv(ctx), ws)

	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
		return
	}
	if errors.Is(err, context.Canceled) {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	h.srv.log.Debug().Err(err).Int64("user_id", user.ID).Msg("websocket closed")
	_ = conn.Close(websocket.StatusInternalError, "read failed")
}

// wsConn adapts a websocket connection to the frame sender the registry uses.
type wsConn struct {
	conn *websocket.Conn
}

func (w *wsConn) Send(resp *chatv1.ChatStreamResponse) error {
	ctx, cancel := context.WithTimeout(context.Background(), wsWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, w.conn, resp)
}

func (w *wsConn) recv(ctx context.Context) func() (*chatv1.ChatStreamRequest, error) {
	return func() (*chatv1.ChatStreamRequest, error) {
		var req chatv1.ChatStreamRequest
		if err := wsjson.Read(ctx, w.conn, &req); err != nil {
			return nil, err
		}
		return &req, nil
	}
}

func keepAlive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, wsPingTimeout)
			_ = conn.Ping(pingCtx)
			cancel()
		}
	}
}
