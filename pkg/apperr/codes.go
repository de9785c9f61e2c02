package apperr

type Code string

const (
	CodeValidation      Code = "VALIDATION"
	CodeUnauthorized    Code = "UNAUTHORIZED"
	CodeNotFound        Code = "NOT_FOUND"
	CodeOperationFailed Code = "OPERATION_FAILED"
	CodeInfrastructure  Code = "INFRASTRUCTURE"
)
