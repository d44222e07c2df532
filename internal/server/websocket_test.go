package server

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MeKo-Tech/dermascan/internal/testutil"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingConn captures frames written by the handler.
type recordingConn struct {
	frames []WebSocketScanResponse
	err    error
}

func (c *recordingConn) WriteMessage(_ int, data []byte) error {
	if c.err != nil {
		return c.err
	}
	var resp WebSocketScanResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return err
	}
	c.frames = append(c.frames, resp)
	return nil
}

func TestHandleWebSocketMessage_Errors(t *testing.T) {
	s := newTestServer(t, testutil.NewBinarySession(0.5))

	tests := []struct {
		name      string
		payload   string
		wantType  string
		wantReqID string
	}{
		{"invalid json", "{", "invalid_request", ""},
		{"unknown type", `{"type":"resize","request_id":"r1","image":"AQID"}`, "invalid_request", "r1"},
		{"no image", `{"type":"scan","request_id":"r2"}`, "invalid_request", "r2"},
		{"bad mode", `{"type":"scan","request_id":"r3","image":"AQID","mode":"oval"}`, "invalid_request", "r3"},
		{"undecodable", `{"type":"scan","request_id":"r4","image":"AQID"}`, "decode_error", "r4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &recordingConn{}
			s.handleWebSocketMessage(t.Context(), conn, []byte(tt.payload))

			require.NotEmpty(t, conn.frames)
			last := conn.frames[len(conn.frames)-1]
			assert.Equal(t, "error", last.Type)
			assert.Equal(t, "error", last.Status)
			assert.Equal(t, tt.wantType, last.ErrorType)
			assert.Equal(t, tt.wantReqID, last.RequestID)
		})
	}
}

func TestHandleWebSocketMessage_GeneratesRequestID(t *testing.T) {
	s := newTestServer(t, nil)
	conn := &recordingConn{}

	payload, err := json.Marshal(WebSocketScanRequest{Type: "crop", Image: testutil.LesionJPEG(t, 80, 60)})
	require.NoError(t, err)
	s.handleWebSocketMessage(t.Context(), conn, payload)

	require.Len(t, conn.frames, 2)
	assert.Equal(t, "processing", conn.frames[0].Status)
	assert.Equal(t, "completed", conn.frames[1].Status)
	assert.Equal(t, "crop_response", conn.frames[1].Type)
	assert.Len(t, conn.frames[1].RequestID, 36)
	assert.Equal(t, conn.frames[0].RequestID, conn.frames[1].RequestID)
}

func TestHandleWebSocketMessage_WriteFailure(t *testing.T) {
	s := newTestServer(t, nil)
	conn := &recordingConn{err: errors.New("broken pipe")}

	assert.NotPanics(t, func() {
		s.handleWebSocketMessage(t.Context(), conn, []byte("{"))
	})
}

func TestScanWebSocket_EndToEnd(t *testing.T) {
	s := newTestServer(t, testutil.NewBinarySession(0.29))
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/scan"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	defer func() { _ = conn.Close() }()

	req := WebSocketScanRequest{
		Type:      "scan",
		RequestID: "lesion-1",
		Image:     testutil.LesionJPEG(t, 1200, 1600),
		Filename:  "arm.jpg",
		scanParams: scanParams{
			PreviewWidth:  390,
			PreviewHeight: 520,
		},
	}
	require.NoError(t, conn.WriteJSON(req))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))

	var processing WebSocketScanResponse
	require.NoError(t, conn.ReadJSON(&processing))
	assert.Equal(t, "processing", processing.Status)
	assert.Equal(t, "lesion-1", processing.RequestID)

	var done struct {
		Type      string `json:"type"`
		Status    string `json:"status"`
		RequestID string `json:"request_id"`
		Result    struct {
			Filename string `json:"filename"`
			Crop     struct {
				X      int `json:"x"`
				Y      int `json:"y"`
				Width  int `json:"width"`
				Height int `json:"height"`
			} `json:"crop"`
			Classification struct {
				Label      string  `json:"label"`
				Confidence float64 `json:"confidence"`
			} `json:"classification"`
		} `json:"result"`
	}
	require.NoError(t, conn.ReadJSON(&done))
	assert.Equal(t, "scan_response", done.Type)
	assert.Equal(t, "completed", done.Status)
	assert.Equal(t, "lesion-1", done.RequestID)
	assert.Equal(t, "arm.jpg", done.Result.Filename)
	assert.Equal(t, 262, done.Result.Crop.X)
	assert.Equal(t, 677, done.Result.Crop.Width)
	assert.Equal(t, "Benign", done.Result.Classification.Label)
	assert.InDelta(t, 0.71, done.Result.Classification.Confidence, 1e-6)
}
