package rewards

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/holiman/uint256"

	"github.com/congo-pay/congo_points/internal/account"
	"github.com/congo-pay/congo_points/internal/ledger"
	"github.com/congo-pay/congo_points/internal/middleware"
	"github.com/congo-pay/congo_points/internal/points"
)

// Handler exposes the points ledger over HTTP.
type Handler struct {
	service *Service
}

// NewHandler constructs a points handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Owner returns the issuer supply.
func (h *Handler) Owner(c *fiber.Ctx) error {
	supply, err := h.service.OwnerPoints(c.UserContext())
	if err != nil {
		return mapError(err)
	}
	dep, err := h.service.Deployment(c.UserContext())
	if err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{
		"owner":        dep.Deployer.String(),
		"owner_points": supply.Dec(),
	})
}

// Issue adds supply. Any caller may issue unless the issuer restriction is on.
func (h *Handler) Issue(c *fiber.Ctx) error {
	m, err := mutation(c)
	if err != nil {
		return err
	}
	var req issueRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.Amount == nil {
		return fiber.NewError(http.StatusBadRequest, "amount is required")
	}

	res, err := h.service.Issue(c.UserContext(), m, req.Amount.Int())
	if err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{
		"receipt":      newReceiptResponse(res.Receipt),
		"owner_points": res.OwnerPoints.Dec(),
	})
}

// ToggleAuthority flips the grant flag of the store in the path.
func (h *Handler) ToggleAuthority(c *fiber.Ctx) error {
	m, err := mutation(c)
	if err != nil {
		return err
	}
	store, err := pathAccount(c, "store")
	if err != nil {
		return err
	}

	res, err := h.service.ToggleAuthority(c.UserContext(), m, store)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{
		"receipt":    newReceiptResponse(res.Receipt),
		"store":      store.String(),
		"authorized": res.Authorized,
	})
}

// Authority reports whether the store may grant points.
func (h *Handler) Authority(c *fiber.Ctx) error {
	store, err := pathAccount(c, "store")
	if err != nil {
		return err
	}
	auth, err := h.service.IsAuthority(c.UserContext(), store)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{"store": store.String(), "authorized": auth})
}

// StorePoints returns the total the store has granted.
func (h *Handler) StorePoints(c *fiber.Ctx) error {
	store, err := pathAccount(c, "store")
	if err != nil {
		return err
	}
	total, err := h.service.StorePoints(c.UserContext(), store)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{"store": store.String(), "points": total.Dec()})
}

// StoreUserPoints returns the total the store has granted to one user.
func (h *Handler) StoreUserPoints(c *fiber.Ctx) error {
	store, err := pathAccount(c, "store")
	if err != nil {
		return err
	}
	user, err := pathAccount(c, "user")
	if err != nil {
		return err
	}
	total, err := h.service.StoreUserPoints(c.UserContext(), store, user)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{"store": store.String(), "user": user.String(), "points": total.Dec()})
}

// UserPoints returns the spendable balance of the user in the path.
func (h *Handler) UserPoints(c *fiber.Ctx) error {
	user, err := pathAccount(c, "user")
	if err != nil {
		return err
	}
	held, err := h.service.UserPoints(c.UserContext(), user)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{"user": user.String(), "points": held.Dec()})
}

// Grant credits a user on behalf of the store in the path.
func (h *Handler) Grant(c *fiber.Ctx) error {
	return h.userAmount(c, h.service.Grant)
}

// Redeem debits a user at the store in the path.
func (h *Handler) Redeem(c *fiber.Ctx) error {
	return h.userAmount(c, h.service.Redeem)
}

type balanceOp func(ctx context.Context, m Mutation, store, user account.ID, amount uint256.Int) (BalanceResult, error)

func (h *Handler) userAmount(c *fiber.Ctx, op balanceOp) error {
	m, err := mutation(c)
	if err != nil {
		return err
	}
	store, err := pathAccount(c, "store")
	if err != nil {
		return err
	}
	var req userAmountRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	user, err := account.Parse(req.User)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid user address")
	}
	if req.Amount == nil {
		return fiber.NewError(http.StatusBadRequest, "amount is required")
	}

	res, err := op(c.UserContext(), m, store, user, req.Amount.Int())
	if err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{
		"receipt":           newReceiptResponse(res.Receipt),
		"store":             store.String(),
		"user":              user.String(),
		"store_points":      res.StorePoints.Dec(),
		"store_user_points": res.StoreUserPoints.Dec(),
		"user_points":       res.UserPoints.Dec(),
	})
}

// Events lists the newest committed events, optionally for one account.
func (h *Handler) Events(c *fiber.Ctx) error {
	filter := ledger.EventFilter{Limit: c.QueryInt("limit", 0)}
	if raw := c.Query("account"); raw != "" {
		id, err := account.Parse(raw)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid account address")
		}
		filter.Account = &id
	}

	entries, err := h.service.Events(c.UserContext(), filter)
	if err != nil {
		return mapError(err)
	}
	out := make([]feedEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, newFeedEntryResponse(e))
	}
	return c.JSON(fiber.Map{"events": out})
}

func mutation(c *fiber.Ctx) (Mutation, error) {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		return Mutation{}, fiber.NewError(http.StatusUnauthorized, "caller identity required")
	}
	return Mutation{Caller: caller, DryRun: c.QueryBool("dry_run")}, nil
}

func pathAccount(c *fiber.Ctx, name string) (account.ID, error) {
	id, err := account.Parse(c.Params(name))
	if err != nil {
		return account.ID{}, fiber.NewError(http.StatusBadRequest, "invalid "+name+" address")
	}
	return id, nil
}

func mapError(err error) error {
	switch {
	case errors.Is(err, points.ErrNotAuthority):
		return fiber.NewError(http.StatusForbidden, "store is not authorized to grant points")
	case errors.Is(err, points.ErrInsufficientBalance):
		return fiber.NewError(http.StatusBadRequest, "insufficient balance")
	case errors.Is(err, ErrNotOwner):
		return fiber.NewError(http.StatusForbidden, ErrNotOwner.Error())
	case errors.Is(err, ledger.ErrNotDeployed):
		return fiber.NewError(http.StatusServiceUnavailable, "ledger not deployed")
	case errors.Is(err, ledger.ErrAlreadyDeployed):
		return fiber.NewError(http.StatusConflict, "ledger already deployed")
	case errors.Is(err, points.ErrOverflow):
		return fiber.NewError(http.StatusInternalServerError, "arithmetic overflow")
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
