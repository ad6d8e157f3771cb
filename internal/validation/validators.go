package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/benvon/health-chat/internal/knowledge"
	"github.com/benvon/health-chat/internal/models"
	"github.com/go-playground/validator/v10"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	if err := Validate.RegisterValidation("message_role", validateMessageRole); err != nil {
		panic(fmt.Sprintf("failed to register message_role validator: %v", err))
	}
	if err := Validate.RegisterValidation("knowledge_domain", validateKnowledgeDomain); err != nil {
		panic(fmt.Sprintf("failed to register knowledge_domain validator: %v", err))
	}
}

func validateMessageRole(fl validator.FieldLevel) bool {
	return ValidateRole(fl.Field().String()) == nil
}

func validateKnowledgeDomain(fl validator.FieldLevel) bool {
	_, err := knowledge.ParseDomain(fl.Field().String())
	return err == nil
}

// ValidateRole validates a message role
func ValidateRole(value string) error {
	switch models.Role(value) {
	case models.RoleUser, models.RoleAssistant, models.RoleSystem:
		return nil
	default:
		return fmt.Errorf("invalid role: %s (must be 'user', 'assistant', or 'system')", value)
	}
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	// Remove control characters except newline and tab
	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// Describe renders validator errors as a short client-facing message
func Describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Invalid request"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
