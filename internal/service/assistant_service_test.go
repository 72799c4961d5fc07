package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"metabolite-assistant-be/internal/dto"
	"metabolite-assistant-be/internal/entity"
	"metabolite-assistant-be/internal/pkg/logger"
	"metabolite-assistant-be/internal/pkg/serverutils"
	"metabolite-assistant-be/internal/repository/memory"
	"metabolite-assistant-be/pkg/assistant"
	"metabolite-assistant-be/pkg/chat"
	pktNats "metabolite-assistant-be/pkg/nats"
	"metabolite-assistant-be/pkg/snapshot"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	mu       sync.Mutex
	reply    assistant.Reply
	payloads []assistant.RequestPayload
	gate     chan struct{}
}

func (c *stubClient) Send(_ context.Context, p assistant.RequestPayload) assistant.Reply {
	if c.gate != nil {
		<-c.gate
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads = append(c.payloads, p)
	return c.reply
}

func (c *stubClient) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.payloads)
}

type recordedEvents struct {
	mu        sync.Mutex
	created   []uuid.UUID
	deleted   []uuid.UUID
	exchanges []*entity.Exchange
}

func (r *recordedEvents) SessionCreated(_ context.Context, id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, id)
}

func (r *recordedEvents) SessionDeleted(_ context.Context, id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, id)
}

func (r *recordedEvents) ExchangeSettled(_ context.Context, e *entity.Exchange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exchanges = append(r.exchanges, e)
}

func (r *recordedEvents) Audit(context.Context, *pktNats.Subscriber) error { return nil }

func (r *recordedEvents) settled() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.exchanges)
}

type fixture struct {
	svc    IAssistantService
	client *stubClient
	events *recordedEvents
}

func newFixture(t *testing.T, reply assistant.Reply) *fixture {
	t.Helper()
	client := &stubClient{reply: reply}
	events := &recordedEvents{}
	svc := NewAssistantService(
		context.Background(),
		memory.NewSessionRepository(time.Hour),
		memory.NewExchangeRepository(time.Hour),
		chat.NewOrchestrator(client, nil),
		events,
		logger.NewNopLogger(),
	)
	return &fixture{svc: svc, client: client, events: events}
}

func dashboardState() *snapshot.HostState {
	return &snapshot.HostState{
		Filters:     snapshot.Filters{"pCutoff": 0.05},
		SampleMeta:  snapshot.SampleList{{Group: "Normal"}, {Group: "Tumor"}},
		Metabolites: snapshot.EntityList{{Metabolite: "citrate", P: snapshot.Num(0.01)}},
	}
}

func TestCreateAndGetSession(t *testing.T) {
	f := newFixture(t, assistant.Reply{})
	ctx := context.Background()

	created, err := f.svc.CreateSession(ctx, &dto.CreateSessionRequest{State: dashboardState()})
	require.NoError(t, err)
	assert.Empty(t, created.Messages)
	assert.Equal(t, dto.UIStateResponse{}, created.State)
	assert.Equal(t, []uuid.UUID{created.Id}, f.events.created)

	got, err := f.svc.GetSession(ctx, created.Id)
	require.NoError(t, err)
	assert.Equal(t, created.Id, got.Id)

	snap, err := f.svc.GetSnapshot(ctx, created.Id)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Counts.TotalMetabolites)
	assert.Equal(t, 2, snap.SampleSummary.Total())
}

func TestUnknownSession(t *testing.T) {
	f := newFixture(t, assistant.Reply{})

	_, err := f.svc.GetSession(context.Background(), uuid.New())
	assert.ErrorIs(t, err, serverutils.ErrSessionNotFound)

	_, err = f.svc.SendMessage(context.Background(), uuid.New(), &dto.SendMessageRequest{Message: "hi"})
	assert.ErrorIs(t, err, serverutils.ErrSessionNotFound)
	assert.Zero(t, f.client.calls())
}

func TestSendMessage_ArchivesExchange(t *testing.T) {
	f := newFixture(t, assistant.Reply{Reply: "Citrate is **down**:\n- a\n- b"})
	ctx := context.Background()
	s, _ := f.svc.CreateSession(ctx, nil)

	res, err := f.svc.SendMessage(ctx, s.Id, &dto.SendMessageRequest{
		Message: "  what changed?  ",
		State:   dashboardState(),
	})
	require.NoError(t, err)

	require.NotNil(t, res.Exchange)
	assert.False(t, res.Accepted)
	assert.Equal(t, "chat", res.Exchange.Task)
	assert.Equal(t, "what changed?", res.Exchange.Prompt)
	assert.Contains(t, res.Exchange.ReplyHtml, "<ul><li>a</li><li>b</li></ul>")

	require.Len(t, res.Session.Messages, 2)
	assert.Equal(t, "user", res.Session.Messages[0].Role)
	assert.Equal(t, "assistant", res.Session.Messages[1].Role)
	assert.Equal(t, dto.UIStateResponse{PanelOpen: true}, res.Session.State)

	snap, ok := f.client.payloads[0].Context.(snapshot.DashboardSnapshot)
	require.True(t, ok)
	assert.Equal(t, "citrate", snap.TopHits[0].Metabolite)

	list, err := f.svc.ListExchanges(ctx, s.Id, &dto.ExchangeListQuery{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, list.Total)
	assert.Equal(t, 1, f.events.settled())
}

func TestSendMessage_BlankIsNoop(t *testing.T) {
	f := newFixture(t, assistant.Reply{Reply: "unused"})
	ctx := context.Background()
	s, _ := f.svc.CreateSession(ctx, nil)

	res, err := f.svc.SendMessage(ctx, s.Id, &dto.SendMessageRequest{Message: "   "})

	require.NoError(t, err)
	assert.Nil(t, res.Exchange)
	assert.Empty(t, res.Session.Messages)
	assert.Zero(t, f.client.calls())
	assert.Zero(t, f.events.settled())
}

func TestSendMessage_AsyncAndConflict(t *testing.T) {
	f := newFixture(t, assistant.Reply{Reply: "later"})
	f.client.gate = make(chan struct{})
	ctx := context.Background()
	s, _ := f.svc.CreateSession(ctx, nil)

	res, err := f.svc.SendMessage(ctx, s.Id, &dto.SendMessageRequest{Message: "slow one", Async: true})
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.True(t, res.Session.InFlight)
	assert.Equal(t, dto.UIStateResponse{PanelOpen: true, Typing: true}, res.Session.State)

	_, err = f.svc.RunTask(ctx, s.Id, assistant.TaskInterpretVolcano, nil)
	assert.ErrorIs(t, err, chat.ErrExchangeInFlight)

	close(f.client.gate)
	shutdownCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, f.svc.Shutdown(shutdownCtx))

	got, _ := f.svc.GetSession(ctx, s.Id)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "later", got.Messages[1].Text)
	assert.False(t, got.InFlight)
	assert.Equal(t, 1, f.events.settled())
}

func TestRunTask(t *testing.T) {
	f := newFixture(t, assistant.Unavailable())
	ctx := context.Background()
	s, _ := f.svc.CreateSession(ctx, &dto.CreateSessionRequest{State: dashboardState()})

	res, err := f.svc.RunTask(ctx, s.Id, assistant.TaskFilterSummary, nil)
	require.NoError(t, err)
	assert.True(t, res.Exchange.IsError)
	assert.Equal(t, assistant.UnavailableText, res.Exchange.Reply)
	assert.True(t, f.events.exchanges[0].IsError)

	// No selection: answered locally and still archived.
	res, err = f.svc.RunTask(ctx, s.Id, assistant.TaskMetaboliteDetail, &dto.TaskRequest{})
	require.NoError(t, err)
	assert.False(t, res.Exchange.Sent)
	assert.Equal(t, chat.NoSelectionText, res.Exchange.Reply)
	assert.Equal(t, 1, f.client.calls())

	_, err = f.svc.RunTask(ctx, s.Id, assistant.TaskChat, nil)
	var appErr *serverutils.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, 400, appErr.Code)
}

func TestChangeUIAndAppend(t *testing.T) {
	f := newFixture(t, assistant.Reply{})
	ctx := context.Background()
	s, _ := f.svc.CreateSession(ctx, nil)

	ui, err := f.svc.ChangeUI(ctx, s.Id, UIActionToggle)
	require.NoError(t, err)
	assert.True(t, ui.PanelOpen)

	ui, err = f.svc.ChangeUI(ctx, s.Id, UIActionShowTyping)
	require.NoError(t, err)
	assert.Equal(t, dto.UIStateResponse{PanelOpen: true, Typing: true}, *ui)

	_, err = f.svc.ChangeUI(ctx, s.Id, UIAction("spin"))
	assert.Error(t, err)

	msg, err := f.svc.AppendMessage(ctx, s.Id, chat.RoleAssistant, &dto.AppendMessageRequest{Text: "<b>hi</b>"})
	require.NoError(t, err)
	assert.Equal(t, "&lt;b&gt;hi&lt;/b&gt;", msg.Html)

	cleared, err := f.svc.ClearTranscript(ctx, s.Id)
	require.NoError(t, err)
	require.Len(t, cleared.Messages, 1)
	assert.Equal(t, chat.ClearedGreeting, cleared.Messages[0].Text)
	assert.Equal(t, dto.UIStateResponse{PanelOpen: true, Typing: true}, cleared.State)
}

func TestDeleteSession(t *testing.T) {
	f := newFixture(t, assistant.Reply{Reply: "ok"})
	ctx := context.Background()
	s, _ := f.svc.CreateSession(ctx, nil)
	_, err := f.svc.SendMessage(ctx, s.Id, &dto.SendMessageRequest{Message: "hi"})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteSession(ctx, s.Id))

	assert.False(t, f.svc.SessionExists(s.Id))
	list, err := f.svc.ListExchanges(ctx, s.Id, &dto.ExchangeListQuery{})
	require.NoError(t, err)
	assert.Zero(t, list.Total)
	assert.Equal(t, []uuid.UUID{s.Id}, f.events.deleted)

	assert.ErrorIs(t, f.svc.DeleteSession(ctx, s.Id), serverutils.ErrSessionNotFound)
}
