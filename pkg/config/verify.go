package config

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/invopop/jsonschema"
)

// GenerateSchema generates a JSON schema for the Config struct
func GenerateSchema() *jsonschema.Schema {
	r := jsonschema.Reflector{DoNotReference: true}
	return r.Reflect(&Config{})
}

// SchemaJSON returns the indented JSON schema document
func SchemaJSON() ([]byte, error) {
	data, err := json.MarshalIndent(GenerateSchema(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return data, nil
}

// VerifyBot checks settings required to run the chat bot
func VerifyBot(cfg *Config) error {
	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is required")
	}
	if _, err := url.Parse(cfg.Telegram.APIURL); err != nil {
		return fmt.Errorf("telegram.api_url is invalid: %w", err)
	}
	return nil
}
