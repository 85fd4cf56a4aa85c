package directiveapi

import (
	"fmt"

	"github.com/c360studio/semstreams/component"
)

// RegistryInterface defines the minimal interface needed for registration.
type RegistryInterface interface {
	RegisterWithConfig(component.RegistrationConfig) error
}

// Register registers the directive-api component with the given registry.
func Register(registry RegistryInterface) error {
	if registry == nil {
		return fmt.Errorf("registry cannot be nil")
	}
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "directive-api",
		Factory:     NewComponent,
		Schema:      directiveAPISchema,
		Type:        "processor",
		Protocol:    "http",
		Domain:      "shellco",
		Description: "HTTP endpoints for brief intake, workflow lifecycle, approvals, and artifacts",
		Version:     "0.1.0",
	})
}
