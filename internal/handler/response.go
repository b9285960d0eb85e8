package handler

import (
	apperrors "github.com/fisioflow/scheduler-api/pkg/errors"
)

type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Code    string      `json:"code,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

func NewAppErrorResponse(err *apperrors.AppError) *Response {
	return &Response{
		Status:  "error",
		Code:    string(err.Code),
		Message: err.Message,
		Details: err.Details,
	}
}
