package handler

import "github.com/labstack/echo/v4"

// Response is the envelope of every API reply, success or error.
type Response struct {
	Status    int    `json:"status"`
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Data      any    `json:"data"`
	Code      string `json:"code,omitempty"`
	ErrorData any    `json:"errorData,omitempty"`
}

func respond(c echo.Context, status int, message string, data any) error {
	return c.JSON(status, Response{
		Status:  status,
		Success: status < 400,
		Message: message,
		Data:    data,
	})
}
