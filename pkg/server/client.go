package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/chazu/stepview/pkg/logger"
	"github.com/chazu/stepview/pkg/view"
	"github.com/chazu/stepview/pkg/viewer"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Message is what the server pushes over the websocket.
type Message struct {
	Type  string        `json:"type"`
	State *viewer.State `json:"state,omitempty"`
	Error string        `json:"error,omitempty"`
}

// Command is what a websocket client may send.
type Command struct {
	Action string `json:"action"` // view, zoom_in, zoom_out, fit, state
	View   string `json:"view,omitempty"`
}

// Client connects one websocket to the viewer.
type Client struct {
	ID     int
	Viewer *viewer.Service
	Hub    *Broadcaster
	Conn   *websocket.Conn
	Send   chan Message
}

func (c *Client) readPump() {
	defer func() {
		c.Hub.Unregister(c.ID)
		if err := c.Conn.Close(); err != nil {
			logger.Log.WithError(err).Debug("server: websocket close failed")
		}
		logger.Log.WithField("client", c.ID).Info("server: client disconnected")
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	if err := c.Conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logger.Log.WithError(err).Warn("server: failed to set read deadline")
	}
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var cmd Command
		if err := c.Conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.WithError(err).Warn("server: websocket read failed")
			}
			return
		}
		c.handle(cmd)
	}
}

// handle runs one command. State changes reach every client through the
// viewer's events; errors and explicit state requests go to this client.
func (c *Client) handle(cmd Command) {
	logger.Log.WithFields(logrus.Fields{"client": c.ID, "action": cmd.Action}).Debug("server: command")
	switch cmd.Action {
	case "view":
		v, err := view.ParseView(cmd.View)
		if err != nil {
			c.Hub.SendTo(c.ID, Message{Type: "error", Error: err.Error()})
			return
		}
		c.Viewer.SetView(v)
	case "zoom_in":
		c.Viewer.ZoomIn()
	case "zoom_out":
		c.Viewer.ZoomOut()
	case "fit":
		c.Viewer.FitToView()
	case "state":
		st := c.Viewer.State()
		c.Hub.SendTo(c.ID, Message{Type: "state", State: &st})
	default:
		c.Hub.SendTo(c.ID, Message{Type: "error", Error: "unknown action " + cmd.Action})
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := c.Conn.Close(); err != nil {
			logger.Log.WithError(err).Debug("server: websocket close failed in writePump")
		}
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logger.Log.WithError(err).Warn("server: failed to set write deadline")
			}
			if !ok {
				if err := c.Conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					logger.Log.WithError(err).Debug("server: write close message failed")
				}
				return
			}
			if err := c.Conn.WriteJSON(msg); err != nil {
				logger.Log.WithError(err).Debug("server: write message failed")
				return
			}
		case <-ticker.C:
			if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logger.Log.WithError(err).Warn("server: failed to set ping write deadline")
			}
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Log.WithError(err).Debug("server: ping failed")
				return
			}
		}
	}
}
