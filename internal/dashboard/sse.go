package dashboard

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/skimmer/internal/events"
)

// heartbeatInterval is how often an idle stream gets a keepalive event.
var heartbeatInterval = 15 * time.Second

var streamHeaders = map[string]string{
	"Content-Type":      "text/event-stream",
	"Cache-Control":     "no-cache",
	"Connection":        "keep-alive",
	"X-Accel-Buffering": "no",
}

// handleSSE relays hub events to the client, each named by its kind. A nil
// hub yields only the connected event.
func handleSSE(hub *events.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		for k, v := range streamHeaders {
			c.Header(k, v)
		}
		c.Status(http.StatusOK)

		send := func(name string, data any) bool {
			if err := writeSSE(c.Writer, name, data); err != nil {
				return false
			}
			c.Writer.Flush()
			return true
		}

		if !send("connected", map[string]string{"type": "connected"}) || hub == nil {
			return
		}
		sub, unsubscribe := hub.Subscribe()
		defer unsubscribe()

		keepalive := time.NewTicker(heartbeatInterval)
		defer keepalive.Stop()

		done := c.Request.Context().Done()
		for {
			var ok bool
			select {
			case <-done:
				return
			case now := <-keepalive.C:
				ok = send("heartbeat", map[string]string{"timestamp": now.UTC().Format(time.RFC3339)})
			case e, open := <-sub:
				if !open {
					return
				}
				ok = send(string(e.Kind), e)
			}
			if !ok {
				return
			}
		}
	}
}

// writeSSE writes one event frame.
func writeSSE(w io.Writer, name string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("dashboard: encode %s event: %w", name, err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, payload)
	return err
}
