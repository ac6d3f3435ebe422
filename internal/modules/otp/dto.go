package otp

type RequestCodeDTO struct {
	Identifier string `json:"identifier" validate:"required,email"`
}

type VerifyCodeDTO struct {
	Identifier string `json:"identifier" validate:"required,email"`
	Code       string `json:"code" validate:"required,numeric,min=4,max=10"`
}
