// Package accountdelivery manages delivery layer of account snapshots.
package accountdelivery

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/streampanel/creditgate/internal/domain"
	"github.com/streampanel/creditgate/pkg/errorspkg"
	"github.com/streampanel/creditgate/pkg/web"
)

// Service provides the account operations needed by the delivery layer.
// Snapshots come straight from the remote ledger; nothing is cached here.
//
//go:generate mockgen -source http.go -destination http_mock.go -package accountdelivery
type Service interface {
	Me(ctx context.Context) (domain.Account, error)
	List(ctx context.Context, role string) ([]domain.Account, error)
}

// Handler facilitates account delivery layer logic.
type Handler struct {
	service Service
}

// NewHandler returns account handler.
func NewHandler(as Service) *Handler {
	return &Handler{service: as}
}

type data struct {
	Account domain.Account `json:"account"`
}

type response struct {
	Data data `json:"data,omitempty"`
}

// Me handles http request to get the authenticated actor's account snapshot.
func (h *Handler) Me(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	account, err := h.service.Me(ctx)
	if err != nil {
		l.Info().Err(err).Send()

		switch {
		case errors.Is(err, domain.ErrUnauthorized):
			gctx.JSON(http.StatusUnauthorized, web.Error(err))
			return
		case errors.Is(err, domain.ErrNetwork):
			gctx.JSON(http.StatusBadGateway, web.Error(err))
			return
		}

		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))

		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: data{account}})
}

type listRequest struct {
	Role string `form:"role" binding:"omitempty,role"`
}

type dataAccounts struct {
	Accounts []domain.Account `json:"accounts"`
}

// List handles http request to list candidate target accounts.
func (h *Handler) List(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var req listRequest
	if err := gctx.ShouldBindQuery(&req); err != nil {
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

		return
	}

	accounts, err := h.service.List(ctx, req.Role)
	if err != nil {
		l.Info().Err(err).Send()

		switch {
		case errors.Is(err, domain.ErrUnauthorized):
			gctx.JSON(http.StatusUnauthorized, web.Error(err))
			return
		case errors.Is(err, domain.ErrNetwork):
			gctx.JSON(http.StatusBadGateway, web.Error(err))
			return
		}

		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))

		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: dataAccounts{accounts}})
}
