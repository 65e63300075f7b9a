package controller

import (
	"io"

	"ai-chatbot-be/internal/dto"
	"ai-chatbot-be/internal/pkg/serverutils"
	"ai-chatbot-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IChatbotController interface {
	RegisterRoutes(r fiber.Router)
	CreateSession(ctx *fiber.Ctx) error
	SendMessage(ctx *fiber.Ctx) error
	GetHistory(ctx *fiber.Ctx) error
	ResetSession(ctx *fiber.Ctx) error
	UploadDocument(ctx *fiber.Ctx) error
	Health(ctx *fiber.Ctx) error
}

type chatbotController struct {
	chatbotService service.IChatbotService
	maxUploadBytes int64
}

func NewChatbotController(chatbotService service.IChatbotService, maxUploadBytes int64) IChatbotController {
	return &chatbotController{
		chatbotService: chatbotService,
		maxUploadBytes: maxUploadBytes,
	}
}

func (c *chatbotController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")
	h.Post("session", c.CreateSession)
	h.Post("message", c.SendMessage)
	h.Get("history", c.GetHistory)
	h.Post("reset", c.ResetSession)
	h.Post("upload", c.UploadDocument)
}

func (c *chatbotController) CreateSession(ctx *fiber.Ctx) error {
	res, err := c.chatbotService.CreateSession(ctx.UserContext())
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success create session", res))
}

func (c *chatbotController) SendMessage(ctx *fiber.Ctx) error {
	var req dto.SendMessageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(fiber.StatusBadRequest, "Invalid request body"))
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.chatbotService.SendMessage(ctx.UserContext(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success send message", res))
}

func (c *chatbotController) GetHistory(ctx *fiber.Ctx) error {
	limit := ctx.QueryInt("limit", 0)
	if limit < 0 {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(fiber.StatusBadRequest, "limit must not be negative"))
	}

	res, err := c.chatbotService.GetHistory(ctx.UserContext(), ctx.Query("session_id"), limit)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get history", res))
}

func (c *chatbotController) ResetSession(ctx *fiber.Ctx) error {
	var req dto.ResetSessionRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(fiber.StatusBadRequest, "Invalid request body"))
		}
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if err := c.chatbotService.ResetSession(ctx.UserContext(), &req); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success reset session", nil))
}

func (c *chatbotController) UploadDocument(ctx *fiber.Ctx) error {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(fiber.StatusBadRequest, "file is required"))
	}
	if c.maxUploadBytes > 0 && fileHeader.Size > c.maxUploadBytes {
		return ctx.Status(fiber.StatusRequestEntityTooLarge).JSON(serverutils.ErrorResponse(fiber.StatusRequestEntityTooLarge, "file is too large"))
	}

	file, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	res, err := c.chatbotService.UploadDocument(ctx.UserContext(), ctx.FormValue("session_id"), fileHeader.Filename, data)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success upload document", res))
}

func (c *chatbotController) Health(ctx *fiber.Ctx) error {
	return ctx.JSON(c.chatbotService.Health(ctx.UserContext()))
}
