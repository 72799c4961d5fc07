package controller

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"metabolite-assistant-be/internal/pkg/logger"
	"metabolite-assistant-be/internal/pkg/serverutils"
	"metabolite-assistant-be/internal/repository/memory"
	"metabolite-assistant-be/internal/service"
	"metabolite-assistant-be/pkg/assistant"
	"metabolite-assistant-be/pkg/chat"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type replyClient struct {
	reply assistant.Reply
	calls int
}

func (c *replyClient) Send(context.Context, assistant.RequestPayload) assistant.Reply {
	c.calls++
	return c.reply
}

func newTestApp(t *testing.T, client assistant.Client) *fiber.App {
	t.Helper()
	log := logger.NewIsolatedLogger(filepath.Join(t.TempDir(), "test.log"))
	svc := service.NewAssistantService(
		context.Background(),
		memory.NewSessionRepository(time.Hour),
		memory.NewExchangeRepository(time.Hour),
		chat.NewOrchestrator(client, nil),
		service.NewExchangeEventService(nil, log),
		log,
	)

	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware())
	api := app.Group("/api")
	NewAssistantController(svc, nil).RegisterRoutes(api)
	NewDiagnosticsController(service.NewDiagnosticsService(log)).RegisterRoutes(api)
	return app
}

type envelope struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func call(t *testing.T, app *fiber.App, method, path, body string) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	return resp.StatusCode, env
}

func createSession(t *testing.T, app *fiber.App, body string) string {
	t.Helper()
	code, env := call(t, app, http.MethodPost, "/api/assistant/v1/sessions", body)
	require.Equal(t, http.StatusCreated, code)

	var s struct {
		Id string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &s))
	return s.Id
}

const dashboardJSON = `{"state":{
	"filters":{"class":"Amino acids"},
	"sampleMeta":[{"group":"Normal"},{"group":"tumor-1"},{"group":"QC"}],
	"metabolites":[{"metabolite":"glycine","p":0.2},{"metabolite":"serine","p":"n/a"},{"metabolite":"alanine","p":0.001}],
	"selected":{"metabolite":"alanine","p":0.001,"normalMean":1,"tumorMean":2,
		"sampleValues":[{"group":"Tumor","value":2},{"group":"Normal","value":"x"}]}
}}`

func TestSessionLifecycle(t *testing.T) {
	client := &replyClient{reply: assistant.Reply{Reply: "Alanine leads.\n```\np < 0.01\n```"}}
	app := newTestApp(t, client)
	id := createSession(t, app, dashboardJSON)
	base := "/api/assistant/v1/sessions/" + id

	code, env := call(t, app, http.MethodGet, base+"/snapshot", "")
	require.Equal(t, http.StatusOK, code)
	var snap struct {
		SampleSummary map[string]int   `json:"sampleSummary"`
		TopHits       []map[string]any `json:"topHits"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Equal(t, map[string]int{"normal": 1, "tumor": 1, "other": 1}, snap.SampleSummary)
	require.Len(t, snap.TopHits, 2)
	assert.Equal(t, "alanine", snap.TopHits[0]["metabolite"])

	code, env = call(t, app, http.MethodPost, base+"/messages", `{"message":"what leads?"}`)
	require.Equal(t, http.StatusOK, code)
	var result struct {
		Exchange struct {
			Reply     string `json:"reply"`
			ReplyHtml string `json:"reply_html"`
		} `json:"exchange"`
		Session struct {
			Messages []struct {
				Role string `json:"role"`
			} `json:"messages"`
		} `json:"session"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Contains(t, result.Exchange.ReplyHtml, "<pre><code>\np &lt; 0.01\n</code></pre>")
	assert.Len(t, result.Session.Messages, 2)

	code, _ = call(t, app, http.MethodPost, base+"/tasks/explain-selection", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2, client.calls)

	code, env = call(t, app, http.MethodGet, base+"/exchanges?limit=1&offset=1", "")
	require.Equal(t, http.StatusOK, code)
	var list struct {
		Items []struct {
			Task string `json:"task"`
		} `json:"items"`
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, 2, list.Total)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "metabolite_detail", list.Items[0].Task)

	code, env = call(t, app, http.MethodPost, base+"/panel/close", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"panel_open":false,"typing":false}`, string(env.Data))

	code, _ = call(t, app, http.MethodDelete, base, "")
	assert.Equal(t, http.StatusOK, code)
	code, env = call(t, app, http.MethodGet, base, "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.False(t, env.Success)
}

func TestSendMessage_BlankAndInvalid(t *testing.T) {
	client := &replyClient{reply: assistant.Reply{Reply: "unused"}}
	app := newTestApp(t, client)
	id := createSession(t, app, "")
	base := "/api/assistant/v1/sessions/" + id

	code, env := call(t, app, http.MethodPost, base+"/messages", `{"message":"   "}`)
	require.Equal(t, http.StatusOK, code)
	assert.NotContains(t, string(env.Data), `"exchange"`)
	assert.Zero(t, client.calls)

	code, _ = call(t, app, http.MethodPost, base+"/messages", `{"message":"`+strings.Repeat("x", 4001)+`"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = call(t, app, http.MethodPost, base+"/messages/user", `{"text":""}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = call(t, app, http.MethodGet, "/api/assistant/v1/sessions/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = call(t, app, http.MethodGet, "/api/assistant/v1/sessions/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, code)
}

type gatedClient struct {
	started chan struct{}
	release chan struct{}
}

func (c *gatedClient) Send(context.Context, assistant.RequestPayload) assistant.Reply {
	c.started <- struct{}{}
	<-c.release
	return assistant.Reply{Reply: "eventually"}
}

func TestSendMessage_AsyncThenConflict(t *testing.T) {
	client := &gatedClient{started: make(chan struct{}, 1), release: make(chan struct{})}
	app := newTestApp(t, client)
	id := createSession(t, app, "")
	base := "/api/assistant/v1/sessions/" + id

	code, _ := call(t, app, http.MethodPost, base+"/messages?async=true", `{"message":"slow"}`)
	require.Equal(t, http.StatusAccepted, code)
	<-client.started

	code, env := call(t, app, http.MethodPost, base+"/tasks/summarize-filters", "")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, 409, env.Code)

	close(client.release)
	assert.Eventually(t, func() bool {
		_, env := call(t, app, http.MethodGet, base, "")
		return strings.Contains(string(env.Data), "eventually")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDiagnosticsLogs(t *testing.T) {
	app := newTestApp(t, &replyClient{reply: assistant.Reply{Reply: "ok"}})
	createSession(t, app, "")

	code, env := call(t, app, http.MethodGet, "/api/assistant/v1/diagnostics/logs?module=ASSISTANT_SERVICE&level=info", "")
	require.Equal(t, http.StatusOK, code)
	var logs []struct {
		Id      string `json:"id"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &logs))
	require.NotEmpty(t, logs)
	assert.Equal(t, "Session created", logs[0].Message)

	code, _ = call(t, app, http.MethodGet, "/api/assistant/v1/diagnostics/logs/"+logs[0].Id, "")
	assert.Equal(t, http.StatusOK, code)

	code, _ = call(t, app, http.MethodGet, "/api/assistant/v1/diagnostics/logs/missing", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = call(t, app, http.MethodGet, "/api/assistant/v1/diagnostics/logs?level=loud", "")
	assert.Equal(t, http.StatusBadRequest, code)
}
