package controller

import (
	"errors"

	"letscollab-be/internal/dto"
	"letscollab-be/internal/pkg/serverutils"
	"letscollab-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IBoardController interface {
	RegisterRoutes(r fiber.Router)
	GetAll(ctx *fiber.Ctx) error
	Create(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	SaveSnapshot(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
}

type boardController struct {
	service service.IBoardService
}

func NewBoardController(service service.IBoardService) IBoardController {
	return &boardController{service: service}
}

func (c *boardController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/boards")
	h.Use(serverutils.JwtMiddleware)
	h.Get("", c.GetAll)
	h.Post("", c.Create)
	h.Get(":id", c.Show)
	h.Patch(":id", c.SaveSnapshot)
	h.Delete(":id", c.Delete)
}

// toHTTPError maps service sentinels onto status codes.
func toHTTPError(err error) error {
	switch {
	case errors.Is(err, service.ErrBoardNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrAccessDenied):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrInvalidBoardID),
		errors.Is(err, service.ErrEmptyTitle),
		errors.Is(err, service.ErrInvalidSnapshot),
		errors.Is(err, service.ErrNothingToSave):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return err
}

func currentUser(ctx *fiber.Ctx) (uuid.UUID, error) {
	userIdStr, _ := ctx.Locals("user_id").(string)
	userId, err := uuid.Parse(userIdStr)
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "invalid user id in token")
	}
	return userId, nil
}

func boardParam(ctx *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return uuid.Nil, toHTTPError(service.ErrInvalidBoardID)
	}
	return id, nil
}

func (c *boardController) GetAll(ctx *fiber.Ctx) error {
	userId, err := currentUser(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.GetAll(ctx.UserContext(), userId)
	if err != nil {
		return toHTTPError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get all boards", res))
}

func (c *boardController) Create(ctx *fiber.Ctx) error {
	userId, err := currentUser(ctx)
	if err != nil {
		return err
	}

	var req dto.CreateBoardRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Create(ctx.UserContext(), userId, &req)
	if err != nil {
		return toHTTPError(err)
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success create board", res))
}

func (c *boardController) Show(ctx *fiber.Ctx) error {
	userId, err := currentUser(ctx)
	if err != nil {
		return err
	}
	id, err := boardParam(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.LoadSnapshot(ctx.UserContext(), id, userId)
	if err != nil {
		return toHTTPError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show board", res))
}

func (c *boardController) SaveSnapshot(ctx *fiber.Ctx) error {
	userId, err := currentUser(ctx)
	if err != nil {
		return err
	}
	id, err := boardParam(ctx)
	if err != nil {
		return err
	}

	var req dto.SaveSnapshotRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.SaveSnapshot(ctx.UserContext(), id, userId, &req)
	if err != nil {
		return toHTTPError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success save board", res))
}

func (c *boardController) Delete(ctx *fiber.Ctx) error {
	userId, err := currentUser(ctx)
	if err != nil {
		return err
	}
	id, err := boardParam(ctx)
	if err != nil {
		return err
	}

	if err := c.service.Delete(ctx.UserContext(), userId, id); err != nil {
		return toHTTPError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success delete board", nil))
}
