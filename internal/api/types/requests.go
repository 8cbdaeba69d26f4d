package types

type GenerateRequest struct {
	Prompt string `json:"prompt" validate:"required,max=4000"`
}
