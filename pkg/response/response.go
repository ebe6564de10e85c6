package response

import "voucherpro/pkg/pagination"

// Response represents a standard API response format
type Response struct {
	Status     string           `json:"status"`      // "success" or "error"
	StatusCode int              `json:"status_code"` // HTTP status code
	Data       interface{}      `json:"data,omitempty"`
	Meta       *pagination.Meta `json:"meta,omitempty"`
	Error      string           `json:"error,omitempty"`
	Kind       string           `json:"kind,omitempty"`
}

// Success returns a standard success response wrapping the data
func Success(statusCode int, data interface{}) Response {
	return Response{
		Status:     "success",
		StatusCode: statusCode,
		Data:       data,
	}
}

// SuccessWithPagination wraps one page of a listing together with its paging metadata
func SuccessWithPagination(statusCode int, data interface{}, params pagination.Params, total int64) Response {
	meta := pagination.NewMeta(params, total)
	return Response{
		Status:     "success",
		StatusCode: statusCode,
		Data:       data,
		Meta:       &meta,
	}
}

// Error returns a standard error response wrapping the error message
func Error(statusCode int, err string) Response {
	return Response{
		Status:     "error",
		StatusCode: statusCode,
		Error:      err,
	}
}

// ErrorKind is Error with the machine-readable error class attached
func ErrorKind(statusCode int, kind, err string) Response {
	res := Error(statusCode, err)
	res.Kind = kind
	return res
}
