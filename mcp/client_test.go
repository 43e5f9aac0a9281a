package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/careflow/types"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// startServerClient wires a client to a real Server over in-memory pipes
// and completes the initialize handshake.
func startServerClient(t *testing.T, srv *Server) *StdioClient {
	t.Helper()

	clientReader, serverWriter := io.Pipe()
	serverReader, clientWriter := io.Pipe()

	serveDone := make(chan error, 1)
	go func() {
		serveDone <- srv.Serve(context.Background(), serverReader, serverWriter)
		serverWriter.Close()
	}()

	client := NewStdioClient(ClientConfig{ClientName: "careflow-test", ClientVersion: "0.0.1"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, client.Attach(ctx, clientReader, clientWriter))

	t.Cleanup(func() {
		require.NoError(t, client.Close())
		select {
		case err := <-serveDone:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("server did not stop after client close")
		}
	})

	return client
}

// runScriptedPeer plays the server side of the pipes by hand. The handle
// callback returns the raw bytes to write back for each request and
// whether the peer should keep serving; returning false closes the
// peer's write side.
func runScriptedPeer(t *testing.T, r io.Reader, w io.WriteCloser, handle func(req Request) (string, bool)) {
	t.Helper()

	go func() {
		defer w.Close()

		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			var req Request
			if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
				continue
			}

			reply, keep := handle(req)
			if reply != "" {
				if _, err := io.WriteString(w, reply); err != nil {
					return
				}
			}
			if !keep {
				return
			}
		}
	}()
}

// attachScripted connects a client to a scripted peer that answers the
// initialize handshake itself.
func attachScripted(t *testing.T, onRequest func(req Request) (string, bool)) *StdioClient {
	t.Helper()

	clientReader, peerWriter := io.Pipe()
	peerReader, clientWriter := io.Pipe()

	runScriptedPeer(t, peerReader, peerWriter, func(req Request) (string, bool) {
		if req.Method == MethodInitialize {
			return initializeLine(req.ID), true
		}
		return onRequest(req)
	})

	client := NewStdioClient(ClientConfig{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, client.Attach(ctx, clientReader, clientWriter))

	t.Cleanup(func() { _ = client.Close() })

	return client
}

func respLine(id any, result any) string {
	resp, _ := NewResponse(id, result)
	body, _ := json.Marshal(resp)
	return string(body) + "\n"
}

func errorRespLine(id any, code int, message string) string {
	body, _ := json.Marshal(NewErrorResponse(id, code, message))
	return string(body) + "\n"
}

func initializeLine(id any) string {
	return respLine(id, InitializeResult{
		ProtocolVersion: ProtocolVersion,
		ServerInfo:      ServerInfo{Name: "scripted", Version: "0.0.1"},
	})
}

func textResultLine(id any, text string) string {
	return respLine(id, CallResult{Content: []ContentBlock{TextContent(text)}})
}

// ---------------------------------------------------------------------------
// Against a real server
// ---------------------------------------------------------------------------

func TestStdioClient_Handshake(t *testing.T) {
	client := startServerClient(t, newToolServer(t))

	info := client.ServerInfo()
	require.NotNil(t, info)
	assert.Equal(t, "careflow-tools", info.Name)
	assert.Equal(t, "1.0.0", info.Version)
}

func TestStdioClient_CallTool(t *testing.T) {
	client := startServerClient(t, newToolServer(t))

	raw, err := client.CallTool(context.Background(), "get_customer", map[string]any{"customer_id": 1})
	require.NoError(t, err)

	var customer map[string]any
	require.NoError(t, json.Unmarshal(raw, &customer))
	assert.Equal(t, "Ashwin Ram", customer["name"])
}

func TestStdioClient_CallTool_ToolError(t *testing.T) {
	client := startServerClient(t, newToolServer(t))

	_, err := client.CallTool(context.Background(), "get_customer", map[string]any{"customer_id": 99})
	require.Error(t, err)
	assert.Equal(t, types.ErrToolFailed, types.GetErrorCode(err))
	assert.Contains(t, err.Error(), "not found")
}

func TestStdioClient_CallTool_UnknownTool(t *testing.T) {
	client := startServerClient(t, newToolServer(t))

	_, err := client.CallTool(context.Background(), "teleport_customer", nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrToolFailed, types.GetErrorCode(err))
	assert.Contains(t, err.Error(), "tool not found")
}

func TestStdioClient_ListTools(t *testing.T) {
	client := startServerClient(t, newToolServer(t))

	tools, err := client.ListTools(context.Background())
	require.NoError(t, err)

	require.Len(t, tools, 1)
	assert.Equal(t, "get_customer", tools[0].Name)
	require.NotNil(t, tools[0].InputSchema)
	assert.Equal(t, "object", tools[0].InputSchema.Type)
}

func TestStdioClient_Ping(t *testing.T) {
	client := startServerClient(t, newToolServer(t))

	require.NoError(t, client.Ping(context.Background()))
}

func TestStdioClient_SequentialCalls(t *testing.T) {
	client := startServerClient(t, newToolServer(t))

	for i := 0; i < 3; i++ {
		raw, err := client.CallTool(context.Background(), "get_customer", map[string]any{"customer_id": 1})
		require.NoError(t, err)
		assert.Contains(t, string(raw), "Ashwin Ram")
	}
}

// ---------------------------------------------------------------------------
// Against a scripted peer
// ---------------------------------------------------------------------------

func TestStdioClient_RPCErrorSurfaced(t *testing.T) {
	client := attachScripted(t, func(req Request) (string, bool) {
		return errorRespLine(req.ID, ErrorCodeInternalError, "boom"), true
	})

	err := client.Ping(context.Background())
	require.Error(t, err)
	assert.Equal(t, types.ErrToolFailed, types.GetErrorCode(err))
	assert.Contains(t, err.Error(), "boom")

	var rpcErr *RPCError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, ErrorCodeInternalError, rpcErr.Code)
}

func TestStdioClient_NoiseResync(t *testing.T) {
	var calls atomic.Int32
	client := attachScripted(t, func(req Request) (string, bool) {
		if req.Method != MethodCallTool {
			return "", true
		}
		if calls.Add(1) == 1 {
			// Log noise before the real reply poisons the first call.
			return "tool server diagnostics on stdout\n" + textResultLine(req.ID, `{"ok":true}`), true
		}
		return textResultLine(req.ID, `{"ok":true}`), true
	})

	_, err := client.CallTool(context.Background(), "noisy_tool", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse response")

	// The stale reply to the failed call is discarded by ID on the next
	// round trip.
	raw, err := client.CallTool(context.Background(), "noisy_tool", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(raw))
}

func TestStdioClient_ToolIsErrorWithoutContent(t *testing.T) {
	client := attachScripted(t, func(req Request) (string, bool) {
		return respLine(req.ID, CallResult{IsError: true}), true
	})

	_, err := client.CallTool(context.Background(), "broken_tool", nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrToolFailed, types.GetErrorCode(err))
}

func TestStdioClient_NoTextContent(t *testing.T) {
	client := attachScripted(t, func(req Request) (string, bool) {
		return respLine(req.ID, CallResult{Content: []ContentBlock{{Type: "image"}}}), true
	})

	_, err := client.CallTool(context.Background(), "image_tool", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no text content")
}

func TestStdioClient_ContextCanceled(t *testing.T) {
	client := attachScripted(t, func(req Request) (string, bool) {
		// Never answer tool calls.
		return "", true
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := client.CallTool(ctx, "slow_tool", nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStdioClient_StreamClosed(t *testing.T) {
	client := attachScripted(t, func(req Request) (string, bool) {
		return "", false
	})

	err := client.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed the stream")
}

func TestStdioClient_RejectsUnsupportedProtocol(t *testing.T) {
	clientReader, peerWriter := io.Pipe()
	peerReader, clientWriter := io.Pipe()

	runScriptedPeer(t, peerReader, peerWriter, func(req Request) (string, bool) {
		return respLine(req.ID, InitializeResult{
			ProtocolVersion: "1999-01-01",
			ServerInfo:      ServerInfo{Name: "ancient", Version: "0.0.1"},
		}), true
	})

	client := NewStdioClient(ClientConfig{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := client.Attach(ctx, clientReader, clientWriter)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported protocol version")

	require.NoError(t, client.Close())
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

func TestStdioClient_CloseIdempotent(t *testing.T) {
	t.Run("attached", func(t *testing.T) {
		client := attachScripted(t, func(req Request) (string, bool) { return "", true })

		require.NoError(t, client.Close())
		require.NoError(t, client.Close())
	})

	t.Run("never connected", func(t *testing.T) {
		client := NewStdioClient(ClientConfig{})

		require.NoError(t, client.Close())
		require.NoError(t, client.Close())
	})
}

func TestStdioClient_CallAfterClose(t *testing.T) {
	client := attachScripted(t, func(req Request) (string, bool) { return "", true })
	require.NoError(t, client.Close())

	_, err := client.CallTool(context.Background(), "get_customer", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")
}

func TestStdioClient_NotConnected(t *testing.T) {
	client := NewStdioClient(ClientConfig{})

	_, err := client.CallTool(context.Background(), "get_customer", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
}

func TestStdioClient_SpawnCommandNotFound(t *testing.T) {
	client := NewStdioClient(DefaultClientConfig("/nonexistent/careflow-tools"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := client.Spawn(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start tool server")
}
