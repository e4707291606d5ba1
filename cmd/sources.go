package cmd

import (
	"fmt"
	"strings"

	"github.com/danielolaszy/flowstats/internal/config"
	"github.com/danielolaszy/flowstats/internal/github"
	"github.com/danielolaszy/flowstats/internal/jira"
	"github.com/danielolaszy/flowstats/internal/snapshot"
	"github.com/danielolaszy/flowstats/internal/trello"
)

// SourceFactory opens the board data source named by a configuration.
// repository is only used by the github source.
type SourceFactory func(source, repository string, creds *config.Credentials) (snapshot.Source, error)

// openSource creates the client of a source. Each client checks its own
// credentials.
func openSource(source, repository string, creds *config.Credentials) (snapshot.Source, error) {
	switch strings.ToLower(source) {
	case config.SourceTrello:
		client, err := trello.NewClient(creds.Trello)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize trello client: %w", err)
		}
		return client, nil

	case config.SourceJira:
		client, err := jira.NewClient(creds.Jira)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize jira client: %w", err)
		}
		return client, nil

	case config.SourceGitHub:
		client, err := github.NewClient(creds.GitHub, repository)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize github client: %w", err)
		}
		return client, nil
	}

	return nil, fmt.Errorf("unknown source %q, expected one of %s", source, strings.Join(config.Sources, ", "))
}
