package turn

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/Upendra2003/Aira-Backend/internal/assembler"
	"github.com/Upendra2003/Aira-Backend/internal/llm"
	"github.com/Upendra2003/Aira-Backend/internal/observability"
	"github.com/Upendra2003/Aira-Backend/internal/policy"
	"github.com/Upendra2003/Aira-Backend/internal/session"
	"github.com/Upendra2003/Aira-Backend/internal/store"
)

// Reply is the outcome of one completed chat turn.
type Reply struct {
	Text            string    `json:"text"`
	Bubbles         []string  `json:"bubbles"`
	ResponseID      string    `json:"response_id"`
	UserTurnAt      time.Time `json:"user_turn_at"`
	AssistantTurnAt time.Time `json:"assistant_turn_at"`
	ElapsedMS       int64     `json:"elapsed_ms"`
}

// Pipeline runs the full lifecycle of a chat turn: assemble context, generate
// a reply, persist the user and assistant turns as one atomic pair, then
// refresh the session cache. Turns for the same user are serialized; turns
// for different users run concurrently.
type Pipeline struct {
	assembler *assembler.Assembler
	generator llm.Generator
	history   store.HistoryStore
	sessions  *session.Cache
	metrics   *observability.Metrics

	locks             *userLocks
	clock             session.Clock
	generationTimeout time.Duration
}

func NewPipeline(asm *assembler.Assembler, gen llm.Generator, history store.HistoryStore, sessions *session.Cache, metrics *observability.Metrics, generationTimeout time.Duration) *Pipeline {
	if generationTimeout <= 0 {
		generationTimeout = 30 * time.Second
	}
	return &Pipeline{
		assembler:         asm,
		generator:         gen,
		history:           history,
		sessions:          sessions,
		metrics:           metrics,
		locks:             newUserLocks(),
		clock:             func() time.Time { return time.Now().UTC() },
		generationTimeout: generationTimeout,
	}
}

// SetClock overrides the pipeline's clock. Call before use; not synchronized.
func (p *Pipeline) SetClock(clock session.Clock) {
	if clock != nil {
		p.clock = clock
	}
}

// HandleTurn processes one user message end to end. On any error nothing is
// persisted: the conversation log gains either both turns of the pair or
// neither, never a user message without its reply.
func (p *Pipeline) HandleTurn(ctx context.Context, userID, message string) (Reply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		p.outcome("rejected")
		return Reply{}, &TurnError{Stage: StageValidate, Retryable: false, Err: ErrEmptyMessage}
	}

	p.locks.acquire(userID)
	defer p.locks.release(userID)

	start := p.clock()

	gc := p.assembler.Assemble(ctx, userID, message)
	p.observeStage(observability.StageAssemble, p.clock().Sub(start))

	genStart := p.clock()
	gctx, cancel := context.WithTimeout(ctx, p.generationTimeout)
	text, err := p.generator.Complete(gctx, gc)
	cancel()
	p.observeStage(observability.StageGenerate, p.clock().Sub(genStart))
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("reply generation failed, nothing persisted")
		p.outcome("generation_error")
		p.providerError(err)
		return Reply{}, &TurnError{Stage: StageGenerate, Retryable: generationRetryable(err), Err: err}
	}

	responseID := uuid.NewString()
	userContent, redacted := policy.RedactPII(message)
	userAt := start
	assistantAt := p.clock()

	userTurn := store.Turn{
		ID:         uuid.NewString(),
		UserID:     userID,
		Role:       store.RoleUser,
		Content:    userContent,
		ResponseID: responseID,
		KeyData:    policy.IsKeyMessage(userContent),
		Redacted:   redacted,
		CreatedAt:  userAt,
	}
	aiTurn := store.Turn{
		ID:         uuid.NewString(),
		UserID:     userID,
		Role:       store.RoleAI,
		Content:    text,
		ResponseID: responseID,
		CreatedAt:  assistantAt,
	}

	persistStart := p.clock()
	if err := p.history.AppendTurns(ctx, userID, userTurn, aiTurn); err != nil {
		// The cached view may now disagree with the store; force a reload.
		p.sessions.Invalidate(userID)
		log.WithError(err).WithField("user_id", userID).Error("turn pair persist failed")
		p.outcome("persist_error")
		return Reply{}, &TurnError{Stage: StagePersist, Retryable: true, Err: err}
	}
	p.observeStage(observability.StagePersist, p.clock().Sub(persistStart))

	p.sessions.Push(userID, userTurn, aiTurn)

	total := p.clock().Sub(start)
	p.observeStage(observability.StageTurnTotal, total)
	p.outcome("ok")

	return Reply{
		Text:            text,
		Bubbles:         SplitBubbles(text),
		ResponseID:      responseID,
		UserTurnAt:      userAt,
		AssistantTurnAt: assistantAt,
		ElapsedMS:       total.Milliseconds(),
	}, nil
}

// InFlight reports how many users have a turn in progress or queued.
func (p *Pipeline) InFlight() int {
	return p.locks.inFlight()
}

func (p *Pipeline) observeStage(stage string, d time.Duration) {
	if p.metrics != nil {
		p.metrics.ObserveTurnStage(stage, d)
	}
}

func (p *Pipeline) outcome(name string) {
	if p.metrics != nil {
		p.metrics.TurnOutcomes.WithLabelValues(name).Inc()
	}
}

func (p *Pipeline) providerError(err error) {
	if p.metrics == nil {
		return
	}
	code := "transport"
	var se *llm.StatusError
	if errors.As(err, &se) {
		code = strconv.Itoa(se.Code)
	} else if errors.Is(err, context.DeadlineExceeded) {
		code = "timeout"
	}
	p.metrics.ProviderErrors.WithLabelValues("completion", code).Inc()
}
