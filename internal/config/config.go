// Package config provides centralized configuration management for the application.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Credentials holds the API credentials of every board source.
type Credentials struct {
	Trello TrelloConfig `yaml:"trello"`
	Jira   JiraConfig   `yaml:"jira"`
	GitHub GitHubConfig `yaml:"github"`
}

// TrelloConfig holds Trello specific configuration.
type TrelloConfig struct {
	APIKey string `yaml:"api_key"`
	Token  string `yaml:"token"`
}

// JiraConfig holds JIRA specific configuration.
type JiraConfig struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Token    string `yaml:"token"`
}

// GitHubConfig holds GitHub specific configuration.
type GitHubConfig struct {
	Token  string `yaml:"token"`
	Domain string `yaml:"domain"`
}

// LoadCredentials reads the credentials from environment variables. Missing
// values are only reported when a source needs them.
func LoadCredentials() *Credentials {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Map specific environment variables
	_ = v.BindEnv("trello.api_key", "TRELLO_API_KEY")
	_ = v.BindEnv("trello.token", "TRELLO_TOKEN")
	_ = v.BindEnv("jira.url", "JIRA_URL")
	_ = v.BindEnv("jira.username", "JIRA_USERNAME")
	_ = v.BindEnv("jira.token", "JIRA_TOKEN")
	_ = v.BindEnv("github.token", "GITHUB_TOKEN")
	_ = v.BindEnv("github.domain", "GITHUB_DOMAIN")

	return &Credentials{
		Trello: TrelloConfig{
			APIKey: v.GetString("trello.api_key"),
			Token:  v.GetString("trello.token"),
		},
		Jira: JiraConfig{
			URL:      v.GetString("jira.url"),
			Username: v.GetString("jira.username"),
			Token:    v.GetString("jira.token"),
		},
		GitHub: GitHubConfig{
			Token:  v.GetString("github.token"),
			Domain: v.GetString("github.domain"),
		},
	}
}

func missing(vars []string) error {
	if len(vars) > 0 {
		return fmt.Errorf("missing required environment variables: %v", vars)
	}
	return nil
}

// ValidateTrelloConfig validates Trello-specific configuration.
func ValidateTrelloConfig(cfg TrelloConfig) error {
	var missingVars []string
	if cfg.APIKey == "" {
		missingVars = append(missingVars, "TRELLO_API_KEY")
	}
	if cfg.Token == "" {
		missingVars = append(missingVars, "TRELLO_TOKEN")
	}
	return missing(missingVars)
}

// ValidateJiraConfig validates JIRA-specific configuration.
func ValidateJiraConfig(cfg JiraConfig) error {
	var missingVars []string
	if cfg.URL == "" {
		missingVars = append(missingVars, "JIRA_URL")
	}
	if cfg.Username == "" {
		missingVars = append(missingVars, "JIRA_USERNAME")
	}
	if cfg.Token == "" {
		missingVars = append(missingVars, "JIRA_TOKEN")
	}
	return missing(missingVars)
}

// ValidateGitHubConfig validates GitHub-specific configuration.
func ValidateGitHubConfig(cfg GitHubConfig) error {
	if cfg.Token == "" {
		return missing([]string{"GITHUB_TOKEN"})
	}
	return nil
}
