package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/dental-scheduling-agent/internal/appointments"
	"github.com/wolfman30/dental-scheduling-agent/internal/bookings"
	"github.com/wolfman30/dental-scheduling-agent/pkg/logging"
)

const (
	defaultLLMTimeout = 30 * time.Second
	maxSuggestedSlots = 3
	// providerDefaultTemperature leaves sampling to the provider.
	providerDefaultTemperature = -1
)

// User-facing replies for failed turns.
const (
	replyUnexpected    = "Desculpe, encontrei um problema ao processar sua solicitação. Poderia tentar novamente?"
	replyBookingFailed = "Peço desculpas, mas não consegui realizar o agendamento devido a um erro interno. Por favor, tente novamente."
)

// ErrEmptyMessage is returned for blank user input.
var ErrEmptyMessage = errors.New("conversation: message text is required")

// Booker commits a scheduling action to the schedule.
type Booker interface {
	BookText(ctx context.Context, patientName, contact, reason, start string) (*appointments.Record, error)
}

// SlotFinder lists open slots; used to suggest alternatives when a slot is taken.
type SlotFinder interface {
	FindAvailableSlots(ctx context.Context, day time.Time, duration time.Duration) ([]time.Time, error)
}

// Recorder receives per-turn outcomes.
type Recorder interface {
	ObserveTurn(outcome string, seconds float64)
	ObserveExtraction(outcome string)
}

// Archiver keeps a copy of conversations that ended in a booking.
type Archiver interface {
	ArchiveBooking(ctx context.Context, convo *Context, rec appointments.Record) error
}

// OrchestratorConfig wires the orchestrator's collaborators. LLM, History and
// Booker are required.
type OrchestratorConfig struct {
	LLM        LLMClient
	History    HistoryStore
	Booker     Booker
	Slots      SlotFinder
	Prompt     PromptConfig
	LLMTimeout time.Duration
	Recorder   Recorder
	Archiver   Archiver
	Logger     *logging.Logger
	Now        func() time.Time
}

// Orchestrator runs one conversation turn at a time: it asks the model for a
// reply, books any scheduling action found in it and decides what the patient sees.
type Orchestrator struct {
	llm        LLMClient
	history    HistoryStore
	booker     Booker
	slots      SlotFinder
	prompt     PromptConfig
	llmTimeout time.Duration
	recorder   Recorder
	archiver   Archiver
	logger     *logging.Logger
	now        func() time.Time
}

// TurnResult is what one turn produced.
type TurnResult struct {
	ConversationID string
	Reply          string
	State          State
	Appointment    *appointments.Record
}

func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	if cfg.LLM == nil {
		panic("conversation: llm client required")
	}
	if cfg.History == nil {
		panic("conversation: history store required")
	}
	if cfg.Booker == nil {
		panic("conversation: booker required")
	}
	if cfg.LLMTimeout <= 0 {
		cfg.LLMTimeout = defaultLLMTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Orchestrator{
		llm:        cfg.LLM,
		history:    cfg.History,
		booker:     cfg.Booker,
		slots:      cfg.Slots,
		prompt:     cfg.Prompt.withDefaults(),
		llmTimeout: cfg.LLMTimeout,
		recorder:   cfg.Recorder,
		archiver:   cfg.Archiver,
		logger:     cfg.Logger,
		now:        cfg.Now,
	}
}

// StartConversation creates a new conversation and returns the greeting.
func (o *Orchestrator) StartConversation(ctx context.Context) (TurnResult, error) {
	convo := o.newContext(uuid.NewString())
	if err := o.history.Save(ctx, convo); err != nil {
		return TurnResult{}, err
	}
	o.logger.Info("conversation started", "conversation_id", convo.ID)
	return TurnResult{ConversationID: convo.ID, Reply: convo.Greeting, State: convo.State}, nil
}

// Transcript returns the messages shown so far in a conversation.
func (o *Orchestrator) Transcript(ctx context.Context, conversationID string) ([]ChatMessage, error) {
	convo, err := o.history.Load(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return convo.Transcript(), nil
}

// HandleTurn processes one user message. Every failure past loading the
// conversation becomes reply text; an error is returned only when no reply
// could be produced.
func (o *Orchestrator) HandleTurn(ctx context.Context, conversationID, text string) (TurnResult, error) {
	started := o.now()
	ctx, span := conversationTracer.Start(ctx, "conversation.turn")
	defer span.End()
	span.SetAttributes(attribute.String("conversation.id", conversationID))

	text = strings.TrimSpace(text)
	if text == "" {
		return TurnResult{}, ErrEmptyMessage
	}
	if strings.TrimSpace(conversationID) == "" {
		conversationID = uuid.NewString()
	}

	convo, err := o.history.Load(ctx, conversationID)
	switch {
	case errors.Is(err, ErrUnknownConversation):
		convo = o.newContext(conversationID)
	case err != nil:
		span.RecordError(err)
		return TurnResult{}, err
	}
	convo.State = StateGathering
	o.logger.Debug("turn received", "conversation_id", convo.ID, "text", logging.ScrubPII(text))

	convo.History = append(convo.History, ChatMessage{Role: ChatRoleUser, Content: text})
	out := o.respond(ctx, convo)
	convo.State = out.state
	convo.History = append(convo.History, ChatMessage{Role: ChatRoleAssistant, Content: out.reply})
	convo.UpdatedAt = o.now()

	if err := o.history.Save(ctx, convo); err != nil {
		span.RecordError(err)
		o.logger.Error("failed to save conversation", "conversation_id", convo.ID, "error", err)
	}
	if out.record != nil && o.archiver != nil {
		if err := o.archiver.ArchiveBooking(ctx, convo, *out.record); err != nil {
			o.logger.Warn("failed to archive conversation", "conversation_id", convo.ID, "error", err)
		}
	}

	span.SetAttributes(attribute.String("conversation.outcome", out.outcome))
	o.observeTurn(out.outcome, o.now().Sub(started))
	return TurnResult{
		ConversationID: convo.ID,
		Reply:          out.reply,
		State:          convo.State,
		Appointment:    out.record,
	}, nil
}

type turnOutcome struct {
	reply   string
	state   State
	outcome string
	record  *appointments.Record
}

func (o *Orchestrator) respond(ctx context.Context, convo *Context) (out turnOutcome) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("conversation turn panicked", "conversation_id", convo.ID, "panic", fmt.Sprint(r))
			out = turnOutcome{reply: replyUnexpected, state: StateGathering, outcome: "panic"}
		}
	}()

	llmCtx, cancel := context.WithTimeout(ctx, o.llmTimeout)
	defer cancel()
	resp, err := o.llm.Complete(llmCtx, LLMRequest{
		System:      []string{o.prompt.SystemPrompt(convo.ReferenceDate)},
		Messages:    convo.History,
		Temperature: providerDefaultTemperature,
	})
	if err != nil {
		o.logger.Error("llm completion failed", "conversation_id", convo.ID, "error", err)
		return turnOutcome{reply: replyUnexpected, state: StateGathering, outcome: "llm_error"}
	}

	action, err := TryExtractAction(resp.Text)
	if err != nil {
		o.observeExtraction("incomplete")
		o.logger.Warn("scheduling action incomplete", "conversation_id", convo.ID, "error", err)
		return turnOutcome{reply: resp.Text, state: StateGathering, outcome: "incomplete_action"}
	}
	if action == nil {
		o.observeExtraction("none")
		return turnOutcome{reply: resp.Text, state: StateGathering, outcome: "reply"}
	}
	o.observeExtraction("action")

	convo.State = StateCommitting
	return o.commit(ctx, convo, action, resp.Text)
}

func (o *Orchestrator) commit(ctx context.Context, convo *Context, action *SchedulingAction, raw string) turnOutcome {
	rec, err := o.booker.BookText(ctx, action.PatientName, action.Contact, action.Reason, action.RequestedStart)
	if err == nil {
		return turnOutcome{reply: confirmationReply(rec), state: StateConfirmed, outcome: "booked", record: rec}
	}

	log := o.logger.With("conversation_id", convo.ID, "requested_start", action.RequestedStart)
	var formatErr *bookings.FormatError
	var readErr *appointments.StoreReadError
	var writeErr *appointments.StoreWriteError
	switch {
	case errors.As(err, &formatErr), errors.Is(err, bookings.ErrMissingPatientName):
		log.Warn("scheduling action rejected", "error", err)
		return turnOutcome{reply: raw, state: StateGathering, outcome: "invalid_action"}
	case errors.Is(err, bookings.ErrSlotTaken):
		log.Info("requested slot already taken")
		return turnOutcome{reply: o.slotTakenReply(ctx, action), state: StateGathering, outcome: "slot_taken"}
	case errors.Is(err, bookings.ErrOutsideHours):
		return turnOutcome{reply: o.outsideHoursReply(), state: StateGathering, outcome: "outside_hours"}
	case errors.As(err, &readErr), errors.As(err, &writeErr):
		log.Error("booking failed", "error", err)
		return turnOutcome{reply: replyBookingFailed, state: StateGathering, outcome: "store_error"}
	default:
		log.Error("booking failed unexpectedly", "error", err)
		return turnOutcome{reply: replyUnexpected, state: StateGathering, outcome: "booking_error"}
	}
}

func confirmationReply(rec *appointments.Record) string {
	return fmt.Sprintf("Agendamento efetuado com sucesso! Sua consulta de '%s' para %s foi marcada para o dia %s.",
		rec.Reason, rec.PatientName, rec.Start.Format("02/01/2006 às 15:04"))
}

func (o *Orchestrator) slotTakenReply(ctx context.Context, action *SchedulingAction) string {
	start, err := ParseRequestedStart(action)
	if err != nil || o.slots == nil {
		return "Infelizmente esse horário já está ocupado. Gostaria de escolher outro horário?"
	}
	taken := fmt.Sprintf("Infelizmente o horário de %s já está ocupado.", start.Format("02/01/2006 às 15:04"))

	free, err := o.slots.FindAvailableSlots(ctx, start, appointments.DefaultDuration)
	if err != nil {
		o.logger.Warn("could not list alternative slots", "error", err)
		return taken + " Não consegui consultar a agenda agora. Gostaria de sugerir outro horário?"
	}
	if len(free) == 0 {
		return taken + " Não há outros horários livres nesse dia. Gostaria de tentar outra data?"
	}
	if len(free) > maxSuggestedSlots {
		free = free[:maxSuggestedSlots]
	}
	labels := make([]string, len(free))
	for i, slot := range free {
		labels[i] = slot.Format("15:04")
	}
	return fmt.Sprintf("%s Horários livres nesse dia: %s. Qual prefere?", taken, joinPT(labels))
}

func (o *Orchestrator) outsideHoursReply() string {
	return fmt.Sprintf("Nosso horário de atendimento é %s, com consultas de uma hora. Poderia escolher um horário dentro desse período?", o.prompt.hoursText())
}

// joinPT joins items as "a, b e c".
func joinPT(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " e " + items[len(items)-1]
}

func (o *Orchestrator) newContext(id string) *Context {
	now := o.now()
	return &Context{
		ID:            id,
		ReferenceDate: time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()),
		State:         StateGathering,
		Greeting:      o.prompt.Greeting(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (o *Orchestrator) observeTurn(outcome string, elapsed time.Duration) {
	if o.recorder != nil {
		o.recorder.ObserveTurn(outcome, elapsed.Seconds())
	}
}

func (o *Orchestrator) observeExtraction(outcome string) {
	if o.recorder != nil {
		o.recorder.ObserveExtraction(outcome)
	}
}
