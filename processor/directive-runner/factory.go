package directiverunner

import (
	"fmt"

	"github.com/c360studio/semstreams/component"
)

// RegistryInterface defines the minimal interface needed for registration.
type RegistryInterface interface {
	RegisterWithConfig(component.RegistrationConfig) error
}

// Register registers the directive-runner component with the given registry.
func Register(registry RegistryInterface) error {
	if registry == nil {
		return fmt.Errorf("registry cannot be nil")
	}
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "directive-runner",
		Factory:     NewComponent,
		Schema:      directiveRunnerSchema,
		Type:        "processor",
		Protocol:    "jetstream",
		Domain:      "shellco",
		Description: "Consumes workflow triggers and drives the orchestration engine",
		Version:     "0.1.0",
	})
}
