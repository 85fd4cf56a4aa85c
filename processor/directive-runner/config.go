package directiverunner

import (
	"fmt"
	"reflect"
	"time"

	"github.com/c360studio/semstreams/component"
)

// directiveRunnerSchema defines the configuration schema.
var directiveRunnerSchema = component.GenerateConfigSchema(reflect.TypeOf(Config{}))

// Config holds configuration for the directive-runner component.
type Config struct {
	// StreamName is the JetStream stream for consuming triggers.
	StreamName string `json:"stream_name" schema:"type:string,description:JetStream stream for workflow triggers,category:basic,default:COMPANY"`

	// ConsumerName is the durable consumer name for trigger consumption.
	ConsumerName string `json:"consumer_name" schema:"type:string,description:Durable consumer name for trigger consumption,category:basic,default:directive-runner"`

	// TriggerSubject is the subject for workflow creation triggers.
	TriggerSubject string `json:"trigger_subject" schema:"type:string,description:Subject for workflow creation triggers,category:basic,default:company.trigger.workflow"`

	// OutputSubject is the subject for publishing trigger results.
	OutputSubject string `json:"output_subject" schema:"type:string,description:Subject for trigger processing results,category:basic,default:company.result.workflow"`

	// ProcessTimeout is the timeout for handling one trigger.
	ProcessTimeout string `json:"process_timeout" schema:"type:string,description:Timeout for handling one trigger,category:advanced,default:60s"`

	// Ports contains input/output port definitions.
	Ports *component.PortConfig `json:"ports,omitempty" schema:"type:ports,description:Input/output port definitions,category:basic"`
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		StreamName:     "COMPANY",
		ConsumerName:   "directive-runner",
		TriggerSubject: "company.trigger.workflow",
		OutputSubject:  "company.result.workflow",
		ProcessTimeout: "60s",
		Ports: &component.PortConfig{
			Inputs: []component.PortDefinition{
				{
					Name:        "workflow-triggers",
					Type:        "jetstream",
					Subject:     "company.trigger.workflow",
					StreamName:  "COMPANY",
					Description: "Receive workflow creation triggers",
					Required:    true,
				},
			},
			Outputs: []component.PortDefinition{
				{
					Name:        "trigger-results",
					Type:        "nats",
					Subject:     "company.result.workflow",
					Description: "Publish trigger processing results",
					Required:    false,
				},
			},
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.StreamName == "" {
		return fmt.Errorf("stream_name is required")
	}
	if c.ConsumerName == "" {
		return fmt.Errorf("consumer_name is required")
	}
	if c.TriggerSubject == "" {
		return fmt.Errorf("trigger_subject is required")
	}
	if c.ProcessTimeout != "" {
		if _, err := time.ParseDuration(c.ProcessTimeout); err != nil {
			return fmt.Errorf("invalid process_timeout: %w", err)
		}
	}
	return nil
}

// GetProcessTimeout returns the per-trigger timeout.
// Returns default 60s if parsing fails.
func (c *Config) GetProcessTimeout() time.Duration {
	if c.ProcessTimeout == "" {
		return 60 * time.Second
	}
	d, err := time.ParseDuration(c.ProcessTimeout)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}
