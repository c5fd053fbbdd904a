package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/tetrad/internal/config"
	"github.com/harrison/tetrad/internal/logger"
)

// echoConfig wires every reviewer to /bin/echo with a canned JSON verdict,
// so evaluations are fast and deterministic.
func echoConfig(t *testing.T) *config.Config {
	t.Helper()

	verdict := `{"vote": "PASS", "score": 90, "reasoning": "looks good", "issues": [], "suggestions": []}`
	cfg := config.DefaultConfig()
	for name, ec := range cfg.Executors {
		ec.Command = "echo"
		ec.Args = []string{verdict}
		ec.TimeoutSecs = 10
		cfg.Executors[name] = ec
	}
	cfg.Reasoning.DBPath = filepath.Join(t.TempDir(), "bank.db")
	return cfg
}

func newTestHandler(t *testing.T, cfg *config.Config) *Handler {
	t.Helper()

	handler, err := NewHandler(cfg, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { handler.Close() })
	return handler
}

func serve(t *testing.T, handler *Handler, input string) []map[string]any {
	t.Helper()

	var out bytes.Buffer
	transport := NewTransport(strings.NewReader(input), &out)
	server := NewServer(transport, handler, ServerInfo{Name: "tetrad", Version: "test"}, logger.Nop())
	require.NoError(t, server.Serve(context.Background()))

	var responses []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if line == "" {
			continue
		}
		var msg map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &msg), line)
		responses = append(responses, msg)
	}
	return responses
}

func TestInitializeHandshake(t *testing.T) {
	handler := newTestHandler(t, echoConfig(t))
	responses := serve(t, handler, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`+"\n")

	require.Len(t, responses, 1)
	assert.Equal(t, "2.0", responses[0]["jsonrpc"])
	assert.Equal(t, float64(1), responses[0]["id"])

	result := responses[0]["result"].(map[string]any)
	assert.Equal(t, "2024-11-05", result["protocolVersion"])
	serverInfo := result["serverInfo"].(map[string]any)
	assert.Equal(t, "tetrad", serverInfo["name"])
	_, hasTools := result["capabilities"].(map[string]any)["tools"]
	assert.True(t, hasTools)
}

func TestInitializedNotificationIsSilent(t *testing.T) {
	handler := newTestHandler(t, echoConfig(t))
	input := `{"jsonrpc":"2.0","method":"notifications/initialized"}` + "\n" +
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}` + "\n"

	responses := serve(t, handler, input)

	// Only tools/list answers; the notification does not.
	require.Len(t, responses, 1)
	assert.Equal(t, float64(2), responses[0]["id"])
}

func TestShutdownReturnsNull(t *testing.T) {
	handler := newTestHandler(t, echoConfig(t))
	responses := serve(t, handler, `{"jsonrpc":"2.0","id":3,"method":"shutdown"}`+"\n")

	require.Len(t, responses, 1)
	result, present := responses[0]["result"]
	assert.True(t, present)
	assert.Nil(t, result)
}

func TestToolsListEnumeratesSixTools(t *testing.T) {
	handler := newTestHandler(t, echoConfig(t))
	responses := serve(t, handler, `{"jsonrpc":"2.0","id":4,"method":"tools/list"}`+"\n")

	require.Len(t, responses, 1)
	tools := responses[0]["result"].(map[string]any)["tools"].([]any)
	require.Len(t, tools, 6)

	names := make([]string, len(tools))
	for i, tool := range tools {
		entry := tool.(map[string]any)
		names[i] = entry["name"].(string)
		assert.NotEmpty(t, entry["description"])
		assert.Equal(t, "object", entry["inputSchema"].(map[string]any)["type"])
	}
	assert.Equal(t, []string{
		"tetrad_review_plan",
		"tetrad_review_code",
		"tetrad_review_tests",
		"tetrad_confirm",
		"tetrad_final_check",
		"tetrad_status",
	}, names)
}

func TestParseErrorResponse(t *testing.T) {
	handler := newTestHandler(t, echoConfig(t))
	responses := serve(t, handler, "this is not json\n")

	require.Len(t, responses, 1)
	errObj := responses[0]["error"].(map[string]any)
	assert.Equal(t, float64(CodeParseError), errObj["code"])
	assert.Equal(t, "Parse error", errObj["message"])
	assert.Nil(t, responses[0]["id"])
}

func TestMethodNotFound(t *testing.T) {
	handler := newTestHandler(t, echoConfig(t))
	responses := serve(t, handler, `{"jsonrpc":"2.0","id":"str-id","method":"bogus/method"}`+"\n")

	require.Len(t, responses, 1)
	// String ids are echoed back as strings.
	assert.Equal(t, "str-id", responses[0]["id"])
	errObj := responses[0]["error"].(map[string]any)
	assert.Equal(t, float64(CodeMethodNotFound), errObj["code"])
	assert.Equal(t, "Method not found: bogus/method", errObj["message"])
}

func TestUnknownMethodNotificationGetsNoResponse(t *testing.T) {
	handler := newTestHandler(t, echoConfig(t))
	input := `{"jsonrpc":"2.0","method":"bogus/method"}` + "\n" +
		`{"jsonrpc":"2.0","id":9,"method":"shutdown"}` + "\n"

	responses := serve(t, handler, input)
	require.Len(t, responses, 1)
	assert.Equal(t, float64(9), responses[0]["id"])
}

func TestInvalidVersionRejected(t *testing.T) {
	handler := newTestHandler(t, echoConfig(t))
	responses := serve(t, handler, `{"jsonrpc":"1.0","id":5,"method":"tools/list"}`+"\n")

	require.Len(t, responses, 1)
	errObj := responses[0]["error"].(map[string]any)
	assert.Equal(t, float64(CodeInvalidRequest), errObj["code"])
}

func TestToolsCallInvalidParams(t *testing.T) {
	handler := newTestHandler(t, echoConfig(t))
	responses := serve(t, handler, `{"jsonrpc":"2.0","id":6,"method":"tools/call","params":{"arguments":{}}}`+"\n")

	require.Len(t, responses, 1)
	errObj := responses[0]["error"].(map[string]any)
	assert.Equal(t, float64(CodeInvalidParams), errObj["code"])
}

func TestToolsCallReviewCode(t *testing.T) {
	handler := newTestHandler(t, echoConfig(t))
	call := `{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"tetrad_review_code","arguments":{"code":"fn main() {}","language":"rust"}}}`

	responses := serve(t, handler, call+"\n")
	require.Len(t, responses, 1)

	result := responses[0]["result"].(map[string]any)
	_, hasError := result["isError"]
	assert.False(t, hasError)

	content := result["content"].([]any)
	require.Len(t, content, 1)
	block := content[0].(map[string]any)
	assert.Equal(t, "text", block["type"])

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(block["text"].(string)), &payload))
	assert.Equal(t, "PASS", payload["decision"])
	assert.Equal(t, float64(90), payload["score"])
	assert.Equal(t, true, payload["consensus_achieved"])
	assert.Len(t, payload["votes"].(map[string]any), 3)
}

func TestServerSurvivesToolFailure(t *testing.T) {
	handler := newTestHandler(t, echoConfig(t))
	input := `{"jsonrpc":"2.0","id":8,"method":"tools/call","params":{"name":"tetrad_review_code","arguments":{}}}` + "\n" +
		`{"jsonrpc":"2.0","id":9,"method":"tools/list"}` + "\n"

	responses := serve(t, handler, input)
	require.Len(t, responses, 2)

	// Missing required argument is a tool-level error, not a JSON-RPC one.
	result := responses[0]["result"].(map[string]any)
	assert.Equal(t, true, result["isError"])
	text := result["content"].([]any)[0].(map[string]any)["text"].(string)
	assert.Contains(t, text, "code")

	assert.NotNil(t, responses[1]["result"])
}

func TestEveryRequestGetsExactlyOneResponse(t *testing.T) {
	handler := newTestHandler(t, echoConfig(t))

	var input strings.Builder
	for i := 1; i <= 5; i++ {
		fmt.Fprintf(&input, `{"jsonrpc":"2.0","id":%d,"method":"tools/list"}`+"\n", i)
	}

	responses := serve(t, handler, input.String())
	require.Len(t, responses, 5)
	for i, resp := range responses {
		assert.Equal(t, float64(i+1), resp["id"])
		assert.Equal(t, "2.0", resp["jsonrpc"])
	}
}
