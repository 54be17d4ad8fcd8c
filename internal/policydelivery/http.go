// Package policydelivery manages delivery layer of the capping policy.
package policydelivery

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/streampanel/creditgate/internal/domain"
	"github.com/streampanel/creditgate/internal/middleware"
	"github.com/streampanel/creditgate/pkg/errorspkg"
	"github.com/streampanel/creditgate/pkg/tokenpkg"
	"github.com/streampanel/creditgate/pkg/web"
)

// Service provides capping policy operations needed by the delivery layer.
//
//go:generate mockgen -source http.go -destination http_mock.go -package policydelivery
type Service interface {
	Get(ctx context.Context) (domain.CappingPolicy, error)
	SetFloors(ctx context.Context, distributorFloor, resellerFloor decimal.Decimal) (domain.CappingPolicy, error)
}

// Handler facilitates capping policy delivery layer logic.
type Handler struct {
	service Service
}

// NewHandler returns capping policy handler.
func NewHandler(ps Service) *Handler {
	return &Handler{service: ps}
}

type policyData struct {
	Policy domain.CappingPolicy `json:"policy"`
}

type policyResponse struct {
	Data policyData `json:"data,omitempty"`
}

// Get handles http request to read the current capping policy.
func (h *Handler) Get(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	policy, err := h.service.Get(ctx)
	if err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(statusFromError(err), web.Error(publicError(err)))

		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: policyData{policy}})
}

type updateRequest struct {
	DistributorFloor string `json:"distributor_floor" binding:"required"`
	ResellerFloor    string `json:"reseller_floor" binding:"required"`
}

// Update handles http request to replace the capping floors. Admin only.
func (h *Handler) Update(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	payload := gctx.MustGet(middleware.AuthPayloadKey).(*tokenpkg.Payload)
	if payload.Role != domain.RoleAdmin {
		l.Info().Str("role", payload.Role).Msg("capping policy update forbidden")
		gctx.JSON(http.StatusForbidden, web.Error(domain.ErrUnauthorized))

		return
	}

	var req updateRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
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

	distributorFloor, err := decimal.NewFromString(req.DistributorFloor)
	if err != nil {
		gctx.JSON(http.StatusBadRequest, web.Error(domain.ErrInvalidPolicy))
		return
	}

	resellerFloor, err := decimal.NewFromString(req.ResellerFloor)
	if err != nil {
		gctx.JSON(http.StatusBadRequest, web.Error(domain.ErrInvalidPolicy))
		return
	}

	policy, err := h.service.SetFloors(ctx, distributorFloor, resellerFloor)
	if err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(statusFromError(err), web.Error(publicError(err)))

		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: policyData{policy}})
}

func statusFromError(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidPolicy):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNetwork):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func publicError(err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidPolicy),
		errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrNetwork):
		return err
	default:
		return errorspkg.ErrInternal
	}
}
