package directiveapi

import (
	"fmt"
	"reflect"

	"github.com/c360studio/semstreams/component"
)

// directiveAPISchema defines the configuration schema.
var directiveAPISchema = component.GenerateConfigSchema(reflect.TypeOf(Config{}))

// Config holds configuration for the directive-api component.
type Config struct {
	// DefaultListLimit caps workflow list responses when the request
	// does not specify a limit.
	DefaultListLimit int `json:"default_list_limit" schema:"type:int,description:Default page size for workflow listings,category:basic,default:50"`

	// MaxContentBytes caps artifact content responses served over HTTP.
	MaxContentBytes int `json:"max_content_bytes" schema:"type:int,description:Maximum artifact content size served over HTTP,category:basic,default:1048576"`
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		DefaultListLimit: 50,
		MaxContentBytes:  1 << 20,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DefaultListLimit <= 0 {
		return fmt.Errorf("default_list_limit must be positive")
	}
	if c.MaxContentBytes <= 0 {
		return fmt.Errorf("max_content_bytes must be positive")
	}
	return nil
}
