// Package signal is the dialing side of the room signaling channel.
package signal

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Interview/internal/core"
	"github.com/dkeye/Interview/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

const (
	sendQueue    = 32
	writeTimeout = 5 * time.Second
)

// WSClient talks join/offer/answer/candidate JSON envelopes over one
// websocket connection.
type WSClient struct {
	url  string
	conn *websocket.Conn
	send chan []byte

	onAnswer    func(sdp string)
	onCandidate func(ci webrtc.ICECandidateInit)
	onEvent     func(ev core.RoomEvent)

	mu     sync.RWMutex
	closed bool
}

func NewWSClient(url string) *WSClient {
	return &WSClient{
		url:  url,
		send: make(chan []byte, sendQueue),
	}
}

func (c *WSClient) Dial(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return err
	}
	c.conn = conn
	go c.writePump(ctx)
	go c.readPump(ctx)
	log.Info().Str("module", "signal").Str("url", c.url).Msg("signal channel open")
	return nil
}

func (c *WSClient) Join(token domain.RoomToken, room domain.RoomName) error {
	return c.sendJSON(struct {
		Type  string `json:"type"`
		Token string `json:"token"`
		Room  string `json:"room"`
	}{"join", string(token), string(room)})
}

func (c *WSClient) SendOffer(sdp string) error {
	return c.sendJSON(struct {
		Type string `json:"type"`
		SDP  string `json:"sdp"`
	}{"offer", sdp})
}

func (c *WSClient) SendCandidate(ci webrtc.ICECandidateInit) error {
	msg := struct {
		Type          string `json:"type"`
		Candidate     string `json:"candidate"`
		SDPMid        string `json:"sdpMid,omitempty"`
		SDPMLineIndex uint16 `json:"sdpMLineIndex,omitempty"`
	}{
		Type:      "candidate",
		Candidate: ci.Candidate,
	}
	if ci.SDPMid != nil {
		msg.SDPMid = *ci.SDPMid
	}
	if ci.SDPMLineIndex != nil {
		msg.SDPMLineIndex = *ci.SDPMLineIndex
	}
	return c.sendJSON(msg)
}

func (c *WSClient) OnAnswer(fn func(sdp string)) { c.onAnswer = fn }

func (c *WSClient) OnCandidate(fn func(webrtc.ICECandidateInit)) { c.onCandidate = fn }

func (c *WSClient) OnEvent(fn func(core.RoomEvent)) { c.onEvent = fn }

func (c *WSClient) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.mu.Unlock()
}

func (c *WSClient) trySend(b []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- b:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WSClient) sendJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.trySend(b)
}

func (c *WSClient) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (c *WSClient) readPump(ctx context.Context) {
	defer func() {
		log.Info().Str("module", "signal").Msg("readPump closing")
		c.Close()
		if c.onEvent != nil {
			c.onEvent(core.RoomEvent{Kind: core.EventRoomDisconnected})
		}
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("readPump read error")
				return
			}
			c.handleMessage(data)
		}
	}
}

func (c *WSClient) handleMessage(data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		return
	}

	switch env.Type {
	case "answer":
		var p struct {
			SDP string `json:"sdp"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			log.Error().Err(err).Str("module", "signal").Msg("bad answer payload")
			return
		}
		if c.onAnswer != nil {
			c.onAnswer(p.SDP)
		}
	case "candidate":
		var p struct {
			Candidate     string `json:"candidate"`
			SDPMid        string `json:"sdpMid"`
			SDPMLineIndex uint16 `json:"sdpMLineIndex"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			log.Error().Err(err).Str("module", "signal").Msg("bad candidate payload")
			return
		}
		ci := webrtc.ICECandidateInit{Candidate: p.Candidate}
		if p.SDPMid != "" {
			ci.SDPMid = &p.SDPMid
		}
		ci.SDPMLineIndex = &p.SDPMLineIndex
		if c.onCandidate != nil {
			c.onCandidate(ci)
		}
	case "member_joined":
		c.emitEvent(core.EventParticipantJoined, data)
	case "member_left":
		c.emitEvent(core.EventParticipantLeft, data)
	case "pong", "room_state":
		// informational only
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
	}
}

func (c *WSClient) emitEvent(kind core.RoomEventKind, data []byte) {
	var p struct {
		User struct {
			Username string `json:"username"`
		} `json:"user"`
	}
	_ = json.Unmarshal(data, &p)
	if c.onEvent != nil {
		c.onEvent(core.RoomEvent{Kind: kind, Participant: p.User.Username})
	}
}
