// StreamSync - Live Stream Overlay Notification Pipeline
// Copyright 2026 git-blame-dev
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/git-blame-dev/stream-sync-sub008

package overlay

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/git-blame-dev/stream-sync-sub008/internal/config"
	"github.com/git-blame-dev/stream-sync-sub008/internal/logging"
	"github.com/git-blame-dev/stream-sync-sub008/internal/metrics"
)

// obs-websocket v5 opcodes.
const (
	opHello      = 0
	opIdentify   = 1
	opIdentified = 2
	opRequest    = 6
	opResponse   = 7
)

const (
	obsWriteWait   = 10 * time.Second
	obsRequestWait = 10 * time.Second
	rpcVersion     = 1
)

type obsEnvelope struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
}

type obsHello struct {
	Authentication *struct {
		Challenge string `json:"challenge"`
		Salt      string `json:"salt"`
	} `json:"authentication"`
}

type obsRequest struct {
	RequestType string         `json:"requestType"`
	RequestID   string         `json:"requestId"`
	RequestData map[string]any `json:"requestData,omitempty"`
}

type obsResponse struct {
	RequestType   string          `json:"requestType"`
	RequestID     string          `json:"requestId"`
	RequestStatus struct {
		Result  bool   `json:"result"`
		Code    int    `json:"code"`
		Comment string `json:"comment"`
	} `json:"requestStatus"`
	ResponseData json.RawMessage `json:"responseData"`
}

// OBSClient implements Display over the obs-websocket v5 protocol.
// Requests are correlated to responses by request ID; a read loop
// dispatches responses to per-request channels.
type OBSClient struct {
	cfg config.OverlayConfig

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[string]chan *obsResponse
	closed  bool
}

// NewOBSClient creates a client; call Connect before use.
func NewOBSClient(cfg config.OverlayConfig) *OBSClient {
	return &OBSClient{
		cfg:     cfg,
		pending: make(map[string]chan *obsResponse),
	}
}

// Connect dials OBS and completes the Hello/Identify handshake,
// including the password challenge when OBS requires one.
func (c *OBSClient) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.ConnectTimeout}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial obs at %s: %w", c.cfg.URL, err)
	}

	var hello obsEnvelope
	if err := conn.ReadJSON(&hello); err != nil {
		_ = conn.Close()
		return fmt.Errorf("read obs hello: %w", err)
	}
	if hello.Op != opHello {
		_ = conn.Close()
		return fmt.Errorf("expected hello opcode, got %d", hello.Op)
	}

	var helloData obsHello
	if err := json.Unmarshal(hello.D, &helloData); err != nil {
		_ = conn.Close()
		return fmt.Errorf("parse obs hello: %w", err)
	}

	identify := map[string]any{"rpcVersion": rpcVersion}
	if helloData.Authentication != nil {
		identify["authentication"] = authResponse(
			c.cfg.Password,
			helloData.Authentication.Salt,
			helloData.Authentication.Challenge,
		)
	}
	if err := writeEnvelope(conn, opIdentify, identify); err != nil {
		_ = conn.Close()
		return fmt.Errorf("send obs identify: %w", err)
	}

	var identified obsEnvelope
	if err := conn.ReadJSON(&identified); err != nil {
		_ = conn.Close()
		return fmt.Errorf("read obs identified: %w", err)
	}
	if identified.Op != opIdentified {
		_ = conn.Close()
		return fmt.Errorf("obs rejected identify (opcode %d)", identified.Op)
	}

	c.mu.Lock()
	c.conn = conn
	c.closed = false
	c.mu.Unlock()

	metrics.OverlayConnected.Set(1)
	logging.Info().Str("url", c.cfg.URL).Msg("Connected to OBS")

	go c.readLoop(conn)
	return nil
}

// authResponse computes the obs-websocket v5 authentication string:
// base64(sha256(base64(sha256(password+salt)) + challenge)).
func authResponse(password, salt, challenge string) string {
	secretSum := sha256.Sum256([]byte(password + salt))
	secret := base64.StdEncoding.EncodeToString(secretSum[:])
	authSum := sha256.Sum256([]byte(secret + challenge))
	return base64.StdEncoding.EncodeToString(authSum[:])
}

func writeEnvelope(conn *websocket.Conn, op int, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if err := conn.SetWriteDeadline(time.Now().Add(obsWriteWait)); err != nil {
		return err
	}
	return conn.WriteJSON(obsEnvelope{Op: op, D: payload})
}

// readLoop dispatches responses to waiting requests until the connection
// drops. Event opcodes are ignored.
func (c *OBSClient) readLoop(conn *websocket.Conn) {
	defer func() {
		metrics.OverlayConnected.Set(0)
		c.failPending()
	}()

	for {
		var env obsEnvelope
		if err := conn.ReadJSON(&env); err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if !closed {
				logging.Warn().Err(err).Msg("OBS connection lost")
			}
			return
		}
		if env.Op != opResponse {
			continue
		}

		var resp obsResponse
		if err := json.Unmarshal(env.D, &resp); err != nil {
			logging.Warn().Err(err).Msg("Malformed OBS response")
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[resp.RequestID]
		delete(c.pending, resp.RequestID)
		c.mu.Unlock()
		if ok {
			ch <- &resp
		}
	}
}

// failPending unblocks all in-flight requests after a disconnect.
func (c *OBSClient) failPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

// request sends one request and waits for its response.
func (c *OBSClient) request(ctx context.Context, requestType string, data map[string]any) (*obsResponse, error) {
	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("obs not connected")
	}
	id := uuid.New().String()
	ch := make(chan *obsResponse, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	req := obsRequest{RequestType: requestType, RequestID: id, RequestData: data}
	if err := writeEnvelope(conn, opRequest, req); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		metrics.OverlayRequestErrors.WithLabelValues(requestType).Inc()
		return nil, fmt.Errorf("send %s: %w", requestType, err)
	}

	timer := time.NewTimer(obsRequestWait)
	defer timer.Stop()

	select {
	case resp, ok := <-ch:
		if !ok {
			metrics.OverlayRequestErrors.WithLabelValues(requestType).Inc()
			return nil, fmt.Errorf("%s: connection lost", requestType)
		}
		if !resp.RequestStatus.Result {
			metrics.OverlayRequestErrors.WithLabelValues(requestType).Inc()
			return nil, fmt.Errorf("%s failed: code %d %s",
				requestType, resp.RequestStatus.Code, resp.RequestStatus.Comment)
		}
		return resp, nil
	case <-timer.C:
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		metrics.OverlayRequestErrors.WithLabelValues(requestType).Inc()
		return nil, fmt.Errorf("%s: timed out", requestType)
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, ctx.Err()
	}
}

// UpdateTextSource sets the text of a text source.
func (c *OBSClient) UpdateTextSource(ctx context.Context, source, text string) error {
	_, err := c.request(ctx, "SetInputSettings", map[string]any{
		"inputName":     source,
		"inputSettings": map[string]any{"text": text},
	})
	return err
}

// ClearTextSource blanks a text source.
func (c *OBSClient) ClearTextSource(ctx context.Context, source string) error {
	return c.UpdateTextSource(ctx, source, "")
}

// SetSourceVisibility shows or hides a source in the current program
// scene.
func (c *OBSClient) SetSourceVisibility(ctx context.Context, source string, visible bool) error {
	scene, err := c.request(ctx, "GetCurrentProgramScene", nil)
	if err != nil {
		return err
	}
	var sceneData struct {
		SceneName string `json:"currentProgramSceneName"`
	}
	if err := json.Unmarshal(scene.ResponseData, &sceneData); err != nil {
		return fmt.Errorf("parse current scene: %w", err)
	}

	item, err := c.request(ctx, "GetSceneItemId", map[string]any{
		"sceneName":  sceneData.SceneName,
		"sourceName": source,
	})
	if err != nil {
		return err
	}
	var itemData struct {
		SceneItemID int `json:"sceneItemId"`
	}
	if err := json.Unmarshal(item.ResponseData, &itemData); err != nil {
		return fmt.Errorf("parse scene item id: %w", err)
	}

	_, err = c.request(ctx, "SetSceneItemEnabled", map[string]any{
		"sceneName":        sceneData.SceneName,
		"sceneItemId":      itemData.SceneItemID,
		"sceneItemEnabled": visible,
	})
	return err
}

// PlayMedia points a media source at a file and restarts it.
func (c *OBSClient) PlayMedia(ctx context.Context, source, path string) error {
	_, err := c.request(ctx, "SetInputSettings", map[string]any{
		"inputName":     source,
		"inputSettings": map[string]any{"local_file": path},
	})
	if err != nil {
		return err
	}
	_, err = c.request(ctx, "TriggerMediaInputAction", map[string]any{
		"inputName":   source,
		"mediaAction": "OBS_WEBSOCKET_MEDIA_INPUT_ACTION_RESTART",
	})
	return err
}

// Close tears down the connection.
func (c *OBSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
