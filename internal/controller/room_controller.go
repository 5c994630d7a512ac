package controller

import (
	"errors"
	"strings"

	"github.com/PeterKeDer/connect-5-server/internal/model"
	"github.com/PeterKeDer/connect-5-server/internal/service"
	"github.com/gofiber/fiber/v2"
)

const (
	maxRoomIDLength   = 32
	maxNicknameLength = 24
)

type RoomController struct {
	roomService *service.RoomService
}

func NewRoomController(roomService *service.RoomService) *RoomController {
	return &RoomController{roomService: roomService}
}

type createRoomRequest struct {
	RoomID   string             `json:"roomId"`
	Settings model.RoomSettings `json:"settings"`
	Role     int                `json:"role"`
	Nickname string             `json:"nickname"`
}

type joinRoomRequest struct {
	Role     int    `json:"role"`
	Nickname string `json:"nickname"`
}

func (rc *RoomController) CreateRoom(c *fiber.Ctx) error {
	var req createRoomRequest
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "invalid_room_id")
	}

	if !isRoomIDValid(req.RoomID) {
		return errorResponse(c, fiber.StatusBadRequest, "invalid_room_id")
	}
	if !req.Settings.Valid() {
		return errorResponse(c, fiber.StatusBadRequest, "invalid_board_size")
	}
	role, ok := model.ParseRole(req.Role)
	if !ok {
		return errorResponse(c, fiber.StatusBadRequest, "invalid_role")
	}

	user, room, err := rc.roomService.CreateRoom(req.RoomID, req.Settings, role, trimNickname(req.Nickname))
	if err != nil {
		return serviceErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"userId": user.ID,
		"room":   room,
	})
}

func (rc *RoomController) JoinRoom(c *fiber.Ctx) error {
	roomID := c.Params("roomId")
	if !isRoomIDValid(roomID) {
		return errorResponse(c, fiber.StatusBadRequest, "invalid_room_id")
	}

	var req joinRoomRequest
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "invalid_role")
	}
	role, ok := model.ParseRole(req.Role)
	if !ok {
		return errorResponse(c, fiber.StatusBadRequest, "invalid_role")
	}

	user, room, err := rc.roomService.JoinRoom(roomID, role, trimNickname(req.Nickname))
	if err != nil {
		return serviceErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"userId": user.ID,
		"room":   room,
	})
}

func (rc *RoomController) GetRoom(c *fiber.Ctx) error {
	room, err := rc.roomService.GetRoomSnapshot(c.Params("roomId"))
	if err != nil {
		return serviceErrorResponse(c, err)
	}
	return c.JSON(room)
}

func (rc *RoomController) ListRooms(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"rooms": rc.roomService.ListPublicRooms(),
	})
}

func isRoomIDValid(roomID string) bool {
	return roomID != "" && len(roomID) <= maxRoomIDLength
}

func trimNickname(nickname string) string {
	nickname = strings.TrimSpace(nickname)
	// Truncate by runes so a multi-byte character is never cut in half.
	if runes := []rune(nickname); len(runes) > maxNicknameLength {
		nickname = string(runes[:maxNicknameLength])
	}
	return nickname
}

func errorResponse(c *fiber.Ctx, status int, code string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": code,
	})
}

func serviceErrorResponse(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrRoomNotFound):
		return errorResponse(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrRoomIDTaken), errors.Is(err, service.ErrJoinRejected):
		return errorResponse(c, fiber.StatusConflict, err.Error())
	default:
		return errorResponse(c, fiber.StatusInternalServerError, err.Error())
	}
}
