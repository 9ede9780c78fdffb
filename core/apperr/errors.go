// Package apperr holds the error taxonomy shared by the player core and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrCancelled 表示查询被更新的查询取代，调用方应静默忽略
var ErrCancelled = errors.New("query cancelled")

// ValidationError 参数校验失败，在任何修改或持久化之前返回，消息原样展示给调用方
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NotFoundError 用户、歌曲或专辑不存在
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// UpstreamError 存储、缓存或对象存储调用失败
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *UpstreamError) Unwrap() error { return e.Err }

// Validation creates a ValidationError.
func Validation(msg string) error {
	return &ValidationError{Message: msg}
}

// NotFound creates a NotFoundError.
func NotFound(msg string) error {
	return &NotFoundError{Message: msg}
}

// Upstream wraps err as an UpstreamError. A nil err stays nil.
func Upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	var up *UpstreamError
	if errors.As(err, &up) {
		return err
	}
	return &UpstreamError{Op: op, Err: err}
}

// HTTPStatus maps an error to the status code returned to clients.
func HTTPStatus(err error) int {
	var ve *ValidationError
	var nf *NotFoundError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &nf):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message safe to show to the caller. Upstream and unknown
// errors collapse into a generic message.
func PublicMessage(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return nf.Message
	}
	return "Internal server error"
}
