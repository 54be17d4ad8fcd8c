// Package transactiondelivery manages delivery layer of ledger transactions.
//
// Every write goes through the actor's submission orchestrator so that the
// refresh, validate, submit, refresh sequence is enforced server side and a
// stale browser tab can never push an unvalidated transaction to the ledger.
package transactiondelivery

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/streampanel/creditgate/internal/domain"
	"github.com/streampanel/creditgate/internal/middleware"
	"github.com/streampanel/creditgate/internal/previewadapter"
	"github.com/streampanel/creditgate/pkg/errorspkg"
	"github.com/streampanel/creditgate/pkg/tokenpkg"
	"github.com/streampanel/creditgate/pkg/web"
)

var (
	evaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "creditgate_evaluations_total",
		Help: "Rule engine evaluations by transaction type and outcome.",
	}, []string{"type", "outcome"})

	submissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "creditgate_submissions_total",
		Help: "Ledger submissions by transaction type and final status.",
	}, []string{"type", "status"})

	submissionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "creditgate_submission_duration_seconds",
		Help:    "Ledger submission round trip latency.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"type"})
)

// Orchestrator drives one actor's submission lifecycle.
//
//go:generate mockgen -source http.go -destination http_mock.go -package transactiondelivery
type Orchestrator interface {
	Open(ctx context.Context, targetAccountID string) (domain.Account, domain.Account, error)
	Evaluate(ctx context.Context, tx domain.Transaction) (domain.Evaluation, error)
	Submit(ctx context.Context) (domain.TransactionRecord, error)
	State() string
	Reset() error
}

// History lists settled transactions from the remote ledger.
type History interface {
	ListTransactions(ctx context.Context, limit, offset int32) ([]domain.TransactionRecord, error)
}

// Handler facilitates transaction delivery layer logic.
type Handler struct {
	forActor func(username string) Orchestrator
	history  History
	preview  *previewadapter.Adapter
}

// NewHandler returns transaction handler. forActor resolves the calling
// actor's orchestrator; each actor gets exactly one.
func NewHandler(forActor func(username string) Orchestrator, history History, preview *previewadapter.Adapter) *Handler {
	return &Handler{
		forActor: forActor,
		history:  history,
		preview:  preview,
	}
}

func (h *Handler) orchestrator(gctx *gin.Context) (Orchestrator, *tokenpkg.Payload) {
	payload := gctx.MustGet(middleware.AuthPayloadKey).(*tokenpkg.Payload)
	return h.forActor(payload.Username), payload
}

type openRequest struct {
	TargetAccountID string `json:"target_account_id"`
}

type openData struct {
	State  string         `json:"state"`
	Sender domain.Account `json:"sender"`
	Target domain.Account `json:"target"`
}

// Open handles http request to open a submission: it refreshes both party
// balances from the ledger and arms the orchestrator for evaluation.
func (h *Handler) Open(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	orch, _ := h.orchestrator(gctx)

	var req openRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		handleBindingError(gctx, l, err)
		return
	}

	sender, target, err := orch.Open(ctx, req.TargetAccountID)
	if err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(statusFromError(err), web.Error(publicError(err)))

		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: openData{
		State:  orch.State(),
		Sender: sender,
		Target: target,
	}})
}

type evaluateRequest struct {
	Type            string `json:"type" binding:"required,txtype"`
	Amount          string `json:"amount" binding:"required"`
	TargetAccountID string `json:"target_account_id"`
}

type evaluateData struct {
	State   string                `json:"state"`
	Preview previewadapter.Preview `json:"preview"`
}

// Evaluate handles http request to run the rule engine against cached
// balances and return a display-ready preview. Nothing is sent to the
// ledger here.
func (h *Handler) Evaluate(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	orch, payload := h.orchestrator(gctx)

	var req evaluateRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		handleBindingError(gctx, l, err)
		return
	}

	if req.Type == domain.TypeSelfCredit && payload.Role != domain.RoleAdmin {
		gctx.JSON(http.StatusForbidden, web.Error(domain.ErrUnauthorized))
		return
	}

	eval, err := orch.Evaluate(ctx, domain.Transaction{
		Type:            req.Type,
		Amount:          req.Amount,
		TargetAccountID: req.TargetAccountID,
	})
	if err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(statusFromError(err), web.Error(publicError(err)))

		return
	}

	evaluationsTotal.WithLabelValues(req.Type, outcomeLabel(eval)).Inc()

	gctx.JSON(http.StatusOK, web.Response{Data: evaluateData{
		State:   orch.State(),
		Preview: h.preview.Format(eval),
	}})
}

type submitData struct {
	State       string                   `json:"state"`
	Transaction domain.TransactionRecord `json:"transaction"`
}

// Create handles http request to submit a transaction end to end: refresh,
// evaluate, and submit in one pass. A failing evaluation stops the request
// before anything reaches the ledger.
func (h *Handler) Create(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	orch, payload := h.orchestrator(gctx)

	var req evaluateRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		handleBindingError(gctx, l, err)
		return
	}

	if req.Type == domain.TypeSelfCredit && payload.Role != domain.RoleAdmin {
		gctx.JSON(http.StatusForbidden, web.Error(domain.ErrUnauthorized))
		return
	}

	if _, _, err := orch.Open(ctx, req.TargetAccountID); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(statusFromError(err), web.Error(publicError(err)))

		return
	}

	eval, err := orch.Evaluate(ctx, domain.Transaction{
		Type:            req.Type,
		Amount:          req.Amount,
		TargetAccountID: req.TargetAccountID,
	})
	if err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(statusFromError(err), web.Error(publicError(err)))

		return
	}

	evaluationsTotal.WithLabelValues(req.Type, outcomeLabel(eval)).Inc()

	if !eval.Allowed {
		gctx.JSON(http.StatusUnprocessableEntity, web.Response{
			Data: evaluateData{
				State:   orch.State(),
				Preview: h.preview.Format(eval),
			},
			Error: eval.Reason,
		})

		return
	}

	start := time.Now()

	record, err := orch.Submit(ctx)

	submissionDuration.WithLabelValues(req.Type).Observe(time.Since(start).Seconds())

	if err != nil {
		submissionsTotal.WithLabelValues(req.Type, "failed").Inc()

		l.Info().Err(err).Send()
		gctx.JSON(statusFromError(err), web.Error(publicError(err)))

		return
	}

	submissionsTotal.WithLabelValues(req.Type, "settled").Inc()

	gctx.JSON(http.StatusOK, web.Response{Data: submitData{
		State:       orch.State(),
		Transaction: record,
	}})
}

type selfCreditRequest struct {
	Amount string `json:"amount" binding:"required"`
}

// SelfCredit handles http request for an admin to top up their own balance.
func (h *Handler) SelfCredit(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	orch, payload := h.orchestrator(gctx)

	if payload.Role != domain.RoleAdmin {
		gctx.JSON(http.StatusForbidden, web.Error(domain.ErrUnauthorized))
		return
	}

	var req selfCreditRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		handleBindingError(gctx, l, err)
		return
	}

	if _, _, err := orch.Open(ctx, ""); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(statusFromError(err), web.Error(publicError(err)))

		return
	}

	eval, err := orch.Evaluate(ctx, domain.Transaction{
		Type:   domain.TypeSelfCredit,
		Amount: req.Amount,
	})
	if err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(statusFromError(err), web.Error(publicError(err)))

		return
	}

	evaluationsTotal.WithLabelValues(domain.TypeSelfCredit, outcomeLabel(eval)).Inc()

	if !eval.Allowed {
		gctx.JSON(http.StatusUnprocessableEntity, web.Response{
			Data: evaluateData{
				State:   orch.State(),
				Preview: h.preview.Format(eval),
			},
			Error: eval.Reason,
		})

		return
	}

	start := time.Now()

	record, err := orch.Submit(ctx)

	submissionDuration.WithLabelValues(domain.TypeSelfCredit).Observe(time.Since(start).Seconds())

	if err != nil {
		submissionsTotal.WithLabelValues(domain.TypeSelfCredit, "failed").Inc()

		l.Info().Err(err).Send()
		gctx.JSON(statusFromError(err), web.Error(publicError(err)))

		return
	}

	submissionsTotal.WithLabelValues(domain.TypeSelfCredit, "settled").Inc()

	gctx.JSON(http.StatusOK, web.Response{Data: submitData{
		State:       orch.State(),
		Transaction: record,
	}})
}

type listRequest struct {
	PageID   int32 `form:"page_id" binding:"required,min=1"`
	PageSize int32 `form:"page_size" binding:"required,min=5,max=50"`
}

type listData struct {
	Transactions []domain.TransactionRecord `json:"transactions"`
}

// List handles http request to page through settled transactions.
func (h *Handler) List(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var req listRequest
	if err := gctx.ShouldBindQuery(&req); err != nil {
		handleBindingError(gctx, l, err)
		return
	}

	records, err := h.history.ListTransactions(ctx, req.PageSize, (req.PageID-1)*req.PageSize)
	if err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(statusFromError(err), web.Error(publicError(err)))

		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: listData{records}})
}

type stateData struct {
	State string `json:"state"`
}

// State handles http request to read the actor's submission state.
func (h *Handler) State(gctx *gin.Context) {
	orch, _ := h.orchestrator(gctx)

	gctx.JSON(http.StatusOK, web.Response{Data: stateData{State: orch.State()}})
}

// Reset handles http request to discard the actor's pending submission.
func (h *Handler) Reset(gctx *gin.Context) {
	l := zerolog.Ctx(gctx.Request.Context())

	orch, _ := h.orchestrator(gctx)

	if err := orch.Reset(); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(statusFromError(err), web.Error(publicError(err)))

		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: stateData{State: orch.State()}})
}

func handleBindingError(gctx *gin.Context, l *zerolog.Logger, err error) {
	var (
		ve     validator.ValidationErrors
		errMsg string
	)

	if errors.As(err, &ve) {
		field := ve[0]
		errMsg = field.Field() + web.GetErrorMsg(field)
	}

	l.Info().Err(err).Send()
	gctx.JSON(http.StatusBadRequest, web.Response{Error: errMsg})
}

func outcomeLabel(eval domain.Evaluation) string {
	if eval.Allowed {
		return "allowed"
	}

	return eval.Reason
}

func statusFromError(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnknownTransactionType),
		errors.Is(err, domain.ErrMissingAccount),
		errors.Is(err, domain.ErrEvaluationRequired):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSubmissionInFlight),
		errors.Is(err, domain.ErrNotReady),
		errors.Is(err, domain.ErrStaleBalance):
		return http.StatusConflict
	case errors.Is(err, domain.ErrRemoteRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNetwork):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func publicError(err error) error {
	switch {
	case errors.Is(err, domain.ErrUnknownTransactionType),
		errors.Is(err, domain.ErrMissingAccount),
		errors.Is(err, domain.ErrEvaluationRequired),
		errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrSubmissionInFlight),
		errors.Is(err, domain.ErrNotReady),
		errors.Is(err, domain.ErrStaleBalance),
		errors.Is(err, domain.ErrRemoteRejected),
		errors.Is(err, domain.ErrNetwork):
		return err
	default:
		return errorspkg.ErrInternal
	}
}
