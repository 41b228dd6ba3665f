package dto

// BaseError общий формат ошибки API.
// Code: машинный код в snake_case (validation_error, reservation_rejected, ...).
// Fields заполняется только для ошибок валидации.
type BaseError struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details string       `json:"details,omitempty"`
	Fields  []FieldError `json:"fields,omitempty"`
}

// FieldError отдельная ошибка по конкретному полю
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Tag     string `json:"tag,omitempty"`
}

// ErrorResponse оборачивает ошибку как {success:false, error:{...}}
type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   BaseError `json:"error"`
}

// ValidationErrorResponse 400, Code: "validation_error"
type ValidationErrorResponse ErrorResponse

// NotFoundErrorResponse 404, Code: "not_found"
type NotFoundErrorResponse ErrorResponse

// ConflictErrorResponse 409, Code: "conflict"
type ConflictErrorResponse ErrorResponse

// StorageErrorResponse 503, Code: "storage_unavailable"
type StorageErrorResponse ErrorResponse

// InternalErrorResponse 500, Code: "internal_error"
type InternalErrorResponse ErrorResponse

func wrap(e BaseError) ErrorResponse { return ErrorResponse{Success: false, Error: e} }

func NewValidationError(msg string, fields []FieldError) ValidationErrorResponse {
	return ValidationErrorResponse(wrap(BaseError{Code: "validation_error", Message: msg, Fields: fields}))
}
func NewNotFoundError(msg string) NotFoundErrorResponse {
	return NotFoundErrorResponse(wrap(BaseError{Code: "not_found", Message: msg}))
}
func NewConflictError(msg string) ConflictErrorResponse {
	return ConflictErrorResponse(wrap(BaseError{Code: "conflict", Message: msg}))
}
func NewReservationRejectedError(msg string) ConflictErrorResponse {
	return ConflictErrorResponse(wrap(BaseError{Code: "reservation_rejected", Message: msg}))
}
func NewStorageError(details string) StorageErrorResponse {
	return StorageErrorResponse(wrap(BaseError{Code: "storage_unavailable", Message: "storage temporarily unavailable", Details: details}))
}
func NewInternalError(details string) InternalErrorResponse {
	return InternalErrorResponse(wrap(BaseError{Code: "internal_error", Message: "internal server error", Details: details}))
}
