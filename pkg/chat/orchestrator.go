package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"metabolite-assistant-be/pkg/assistant"
	"metabolite-assistant-be/pkg/snapshot"

	"github.com/google/uuid"
)

// Fixed texts shown in the transcript.
const (
	VolcanoPrompt      = "Explain the volcano plot for the current filters."
	VolcanoInstruction = "Explain the metabolite volcano plot."

	SelectionPromptFormat = "Explain the selected metabolite: %s."
	SelectionInstruction  = "Explain the selected metabolite with group differences."
	NoSelectionText       = "Select a metabolite in the table or charts first."

	FiltersPrompt      = "Summarize the current metabolite filters and highlights."
	FiltersInstruction = "Summarize the current filters and notable metabolites."

	ClearedGreeting = "Chat cleared. How can I help?"
)

// Outcome describes one settled exchange.
type Outcome struct {
	SessionId uuid.UUID
	Task      assistant.TaskKind
	// Prompt is the user message shown in the transcript; Instruction is what
	// was sent as user_message. They differ for the canned tasks.
	Prompt      string
	Instruction string
	Reply       assistant.Reply
	// Sent is false when the exchange ended without a network call.
	Sent       bool
	StartedAt  time.Time
	FinishedAt time.Time
}

func (o Outcome) Duration() time.Duration {
	return o.FinishedAt.Sub(o.StartedAt)
}

type request struct {
	task        assistant.TaskKind
	prompt      string
	instruction string
	grounding   func(snapshot.HostState) any
}

func fullSnapshot(state snapshot.HostState) any {
	return snapshot.BuildSnapshot(state)
}

// Orchestrator is the only component that changes a Session.
type Orchestrator struct {
	client   assistant.Client
	observer Observer
	now      func() time.Time
}

func NewOrchestrator(client assistant.Client, observer Observer) *Orchestrator {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Orchestrator{client: client, observer: observer, now: time.Now}
}

// OpenPanel opens the panel. A pending request keeps the typing indicator on.
func (o *Orchestrator) OpenPanel(s *Session) UIState {
	return o.updateState(s, func(ui *UIState) { ui.PanelOpen = true })
}

// ClosePanel closes the panel. A pending request is not cancelled and its
// reply is still appended when it arrives.
func (o *Orchestrator) ClosePanel(s *Session) UIState {
	return o.updateState(s, func(ui *UIState) { ui.PanelOpen = false })
}

func (o *Orchestrator) TogglePanel(s *Session) UIState {
	return o.updateState(s, func(ui *UIState) { ui.PanelOpen = !ui.PanelOpen })
}

func (o *Orchestrator) ShowTyping(s *Session) UIState {
	return o.updateState(s, func(ui *UIState) { ui.Typing = true })
}

func (o *Orchestrator) HideTyping(s *Session) UIState {
	return o.updateState(s, func(ui *UIState) { ui.Typing = false })
}

func (o *Orchestrator) AppendUserMessage(s *Session, text string) Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return o.appendLocked(s, RoleUser, text)
}

func (o *Orchestrator) AppendAssistantMessage(s *Session, text string) Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return o.appendLocked(s, RoleAssistant, text)
}

// ClearTranscript empties the transcript and leaves one greeting. The panel
// and typing flags are untouched.
func (o *Orchestrator) ClearTranscript(s *Session) Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = nil
	o.notifyLocked(s, Event{Kind: EventTranscriptCleared})
	return o.appendLocked(s, RoleAssistant, ClearedGreeting)
}

// Pending is an exchange that holds the session's in-flight slot. Run must be
// called exactly once; the slot is released when it returns.
type Pending struct {
	o       *Orchestrator
	s       *Session
	req     request
	settled *Outcome
	once    sync.Once
}

// Run performs the exchange and returns its outcome. Later calls return the
// same outcome without another request.
func (p *Pending) Run(ctx context.Context) *Outcome {
	p.once.Do(func() {
		if p.settled == nil {
			p.settled = p.o.run(ctx, p.s, p.req)
		}
	})
	return p.settled
}

// Prepare starts an exchange of the given kind without waiting for the reply.
// For TaskChat, text is the user's question; blank text yields a nil Pending
// and no change. The other kinds ignore text.
func (o *Orchestrator) Prepare(s *Session, kind assistant.TaskKind, text string) (*Pending, error) {
	switch kind {
	case assistant.TaskChat:
		return o.prepareChat(s, text)
	case assistant.TaskInterpretVolcano:
		return o.prepareCanned(s, request{
			task:        kind,
			prompt:      VolcanoPrompt,
			instruction: VolcanoInstruction,
			grounding:   fullSnapshot,
		})
	case assistant.TaskFilterSummary:
		return o.prepareCanned(s, request{
			task:        kind,
			prompt:      FiltersPrompt,
			instruction: FiltersInstruction,
			grounding:   fullSnapshot,
		})
	case assistant.TaskMetaboliteDetail:
		return o.prepareSelection(s)
	default:
		return nil, fmt.Errorf("unknown task %q", kind)
	}
}

// Submit sends a free-form question. Blank text is ignored: the returned
// Outcome is nil and nothing changes.
func (o *Orchestrator) Submit(ctx context.Context, s *Session, text string) (*Outcome, error) {
	return o.exchange(ctx, s, assistant.TaskChat, text)
}

func (o *Orchestrator) InterpretVolcano(ctx context.Context, s *Session) (*Outcome, error) {
	return o.exchange(ctx, s, assistant.TaskInterpretVolcano, "")
}

func (o *Orchestrator) SummarizeFilters(ctx context.Context, s *Session) (*Outcome, error) {
	return o.exchange(ctx, s, assistant.TaskFilterSummary, "")
}

// ExplainSelection asks about the selected entity with a selection-only
// context. Without a selection it answers with NoSelectionText locally.
func (o *Orchestrator) ExplainSelection(ctx context.Context, s *Session) (*Outcome, error) {
	return o.exchange(ctx, s, assistant.TaskMetaboliteDetail, "")
}

func (o *Orchestrator) exchange(ctx context.Context, s *Session, kind assistant.TaskKind, text string) (*Outcome, error) {
	p, err := o.Prepare(s, kind, text)
	if err != nil || p == nil {
		return nil, err
	}
	return p.Run(ctx), nil
}

func (o *Orchestrator) prepareChat(s *Session, text string) (*Pending, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	if err := o.begin(s, text, true); err != nil {
		return nil, err
	}
	return &Pending{o: o, s: s, req: request{
		task:        assistant.TaskChat,
		prompt:      text,
		instruction: text,
		grounding:   fullSnapshot,
	}}, nil
}

func (o *Orchestrator) prepareCanned(s *Session, req request) (*Pending, error) {
	if err := o.begin(s, req.prompt, false); err != nil {
		return nil, err
	}
	return &Pending{o: o, s: s, req: req}, nil
}

func (o *Orchestrator) prepareSelection(s *Session) (*Pending, error) {
	if err := o.begin(s, "", false); err != nil {
		return nil, err
	}
	started := o.now()

	selection, ok := snapshot.BuildSelectionContext(s.host.Current())
	if !ok {
		reply := assistant.Reply{Reply: NoSelectionText}
		o.settle(s, &reply)
		return &Pending{settled: &Outcome{
			SessionId:  s.Id,
			Task:       assistant.TaskMetaboliteDetail,
			Reply:      reply,
			StartedAt:  started,
			FinishedAt: o.now(),
		}}, nil
	}

	name := selection.Selection.Metabolite
	if name == "" {
		name = "Unknown"
	}
	prompt := fmt.Sprintf(SelectionPromptFormat, name)
	o.AppendUserMessage(s, prompt)

	return &Pending{o: o, s: s, req: request{
		task:        assistant.TaskMetaboliteDetail,
		prompt:      prompt,
		instruction: SelectionInstruction,
		grounding:   func(snapshot.HostState) any { return selection },
	}}, nil
}

// begin claims the in-flight slot and moves the session to Open/Typing. For
// free-form questions the user message goes in first; canned tasks show their
// prompt after the indicator.
func (o *Orchestrator) begin(s *Session, prompt string, promptFirst bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return ErrExchangeInFlight
	}
	s.inFlight = true

	if promptFirst && prompt != "" {
		o.appendLocked(s, RoleUser, prompt)
	}
	o.setStateLocked(s, UIState{PanelOpen: true, Typing: true})
	if !promptFirst && prompt != "" {
		o.appendLocked(s, RoleUser, prompt)
	}
	return nil
}

// run performs the network call without holding the session lock. The
// session is settled on every path, including a panic in the client.
func (o *Orchestrator) run(ctx context.Context, s *Session, req request) *Outcome {
	out := &Outcome{
		SessionId:   s.Id,
		Task:        req.task,
		Prompt:      req.prompt,
		Instruction: req.instruction,
		StartedAt:   o.now(),
	}

	var reply *assistant.Reply
	defer func() { o.settle(s, reply) }()

	grounding := req.grounding(s.host.Current())
	r := o.client.Send(ctx, assistant.RequestPayload{
		UserMessage: req.instruction,
		Task:        req.task,
		Context:     grounding,
	})
	reply = &r

	out.Reply = r
	out.Sent = true
	out.FinishedAt = o.now()
	return out
}

// settle appends the reply, if any, frees the slot and clears typing.
func (o *Orchestrator) settle(s *Session, reply *assistant.Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if reply != nil {
		o.appendLocked(s, RoleAssistant, reply.Reply)
	}
	s.inFlight = false
	o.setStateLocked(s, UIState{PanelOpen: s.ui.PanelOpen, Typing: false})
}

func (o *Orchestrator) updateState(s *Session, mutate func(*UIState)) UIState {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.ui
	mutate(&next)
	o.setStateLocked(s, next)
	return s.ui
}

func (o *Orchestrator) setStateLocked(s *Session, next UIState) {
	if next == s.ui {
		return
	}
	s.ui = next
	o.notifyLocked(s, Event{Kind: EventStateChanged})
}

func (o *Orchestrator) appendLocked(s *Session, role Role, text string) Message {
	msg := Message{Id: uuid.New(), Role: role, Text: text, CreatedAt: o.now()}
	s.transcript = append(s.transcript, msg)
	o.notifyLocked(s, Event{Kind: EventMessageAppended, Message: &msg})
	return msg
}

func (o *Orchestrator) notifyLocked(s *Session, e Event) {
	s.seq++
	e.SessionId = s.Id
	e.Seq = s.seq
	e.State = s.ui
	o.observer.Notify(e)
}
