package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

// Config holds the application configuration
type Config struct {
	GeminiAPIKey string `json:"gemini_api_key"`
	Model        string `json:"model"`
}

const defaultModel = "gemini-2.0-flash"

// LoadConfig loads the configuration from a file, falling back to the
// GEMINI_API_KEY environment variable for the key.
func LoadConfig(configPath string) *Config {
	config := &Config{Model: defaultModel}

	file, err := os.Open(configPath)
	switch {
	case os.IsNotExist(err):
		log.Printf("Config file not found at %s, checking environment variables", configPath)
	case err != nil:
		log.Printf("Error opening config file: %v", err)
	default:
		defer file.Close()
		if err := json.NewDecoder(file).Decode(config); err != nil {
			log.Printf("Error parsing config file: %v", err)
		}
	}

	if config.GeminiAPIKey == "" {
		if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
			log.Println("Loaded API key from environment variable")
			config.GeminiAPIKey = apiKey
		} else {
			log.Println("WARNING: No API key found in config file or environment variables")
		}
	}
	if config.Model == "" {
		config.Model = defaultModel
	}
	return config
}

// GetDefaultConfigPath returns the default path for the config file
func GetDefaultConfigPath() string {
	execPath, err := os.Executable()
	if err != nil {
		log.Printf("Warning: Could not determine executable path: %v", err)
		return "config.json"
	}
	return filepath.Join(filepath.Dir(execPath), "config.json")
}

// SaveDefaultConfig creates a default config file if it doesn't exist
func SaveDefaultConfig(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return nil
	}

	file, err := os.Create(configPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "    ")
	if err := encoder.Encode(&Config{Model: defaultModel}); err != nil {
		return err
	}

	log.Printf("Created default config file at %s", configPath)
	log.Printf("Add your Gemini API key to the 'gemini_api_key' field or set GEMINI_API_KEY")
	return nil
}
