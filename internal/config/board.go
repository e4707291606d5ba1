package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"github.com/danielolaszy/flowstats/internal/aggregate"
	"github.com/danielolaszy/flowstats/internal/history"
	"github.com/danielolaszy/flowstats/internal/snapshot"
	"github.com/danielolaszy/flowstats/internal/timetracking"
	"github.com/danielolaszy/flowstats/internal/workflow"
)

// Board sources.
const (
	SourceTrello = "trello"
	SourceJira   = "jira"
	SourceGitHub = "github"
)

// Sources lists the supported board sources.
var Sources = []string{SourceTrello, SourceJira, SourceGitHub}

// EnvPrefix prefixes the environment variables holding board setting
// defaults, e.g. FLOWSTATS_DEVELOPMENT_LIST.
const EnvPrefix = "FLOWSTATS"

// Keys that can take a default from the environment.
var envDefaultKeys = []string{
	"source", "development_list", "done_list", "timezone",
	"comment_spent_estimated_regex", "output_dir", "censored", "workers",
}

// Board configuration files in a directory must match one of these.
var boardConfigGlobs = []string{"*.conf.yaml", "*.conf.yml"}

const (
	defaultWorkers   = 4
	defaultOutputDir = "reports"
)

// ActiveCardsConfig selects which cards are analyzed.
type ActiveCardsConfig struct {
	Strategy string   `mapstructure:"strategy" yaml:"strategy,omitempty"`
	Columns  []string `mapstructure:"columns" yaml:"columns,omitempty"`
	Labels   []string `mapstructure:"labels" yaml:"labels,omitempty"`
}

// WindowConfig restricts the analyzed history. Values are dates or RFC3339
// timestamps, interpreted in the board timezone.
type WindowConfig struct {
	Start string `yaml:"start,omitempty"`
	End   string `yaml:"end,omitempty"`
}

// WorkflowConfig is a named custom workflow.
type WorkflowConfig struct {
	Name      string   `mapstructure:"name" yaml:"name"`
	Lists     []string `mapstructure:"lists" yaml:"lists"`
	DoneLists []string `mapstructure:"done_lists" yaml:"done_lists"`
}

// BoardConfig is the configuration of one analyzed board.
type BoardConfig struct {
	Path string `mapstructure:"-" yaml:"-"`

	Source     string `mapstructure:"source" yaml:"source"`
	BoardName  string `mapstructure:"board_name" yaml:"board_name,omitempty"`
	BoardID    string `mapstructure:"board_id" yaml:"board_id,omitempty"`
	Repository string `mapstructure:"repository" yaml:"repository,omitempty"`

	DevelopmentList string `mapstructure:"development_list" yaml:"development_list"`
	DoneList        string `mapstructure:"done_list" yaml:"done_list,omitempty"`
	Timezone        string `mapstructure:"timezone" yaml:"timezone,omitempty"`

	ActiveCards    ActiveCardsConfig `mapstructure:"active_cards" yaml:"active_cards,omitempty"`
	CommentPattern string            `mapstructure:"comment_spent_estimated_regex" yaml:"comment_spent_estimated_regex,omitempty"`
	Window         WindowConfig      `mapstructure:"-" yaml:"card_action_filter,omitempty"`
	Workflows      []WorkflowConfig  `mapstructure:"custom_workflows" yaml:"custom_workflows,omitempty"`

	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`
	Censored  bool   `mapstructure:"censored" yaml:"censored"`
	Workers   int    `mapstructure:"workers" yaml:"workers"`

	location *time.Location
	window   history.Window
}

// LoadBoardConfig reads and validates one board configuration file. Settings
// absent from the file fall back to FLOWSTATS_* environment variables.
func LoadBoardConfig(path string) (*BoardConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("workers", defaultWorkers)
	v.SetDefault("output_dir", defaultOutputDir)
	v.SetDefault("source", SourceTrello)

	env := viper.New()
	env.SetEnvPrefix(EnvPrefix)
	env.AutomaticEnv()
	for _, key := range envDefaultKeys {
		if env.IsSet(key) {
			v.SetDefault(key, env.Get(key))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read board configuration %s: %w", path, err)
	}

	cfg := &BoardConfig{Path: path}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode board configuration %s: %w", path, err)
	}
	cfg.Window = WindowConfig{
		Start: dateString(v.Get("card_action_filter.start")),
		End:   dateString(v.Get("card_action_filter.end")),
	}
	cfg.Source = strings.ToLower(cfg.Source)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid board configuration %s: %w", path, err)
	}
	return cfg, nil
}

// LoadBoardConfigs loads a configuration file, or every board configuration
// file of a directory in name order. All files are loaded; their errors are
// combined.
func LoadBoardConfigs(path string) ([]*BoardConfig, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to access configuration %s: %w", path, err)
	}

	paths := []string{path}
	if info.IsDir() {
		paths = nil
		for _, pattern := range boardConfigGlobs {
			matches, err := filepath.Glob(filepath.Join(path, pattern))
			if err != nil {
				return nil, err
			}
			paths = append(paths, matches...)
		}
		sort.Strings(paths)
		if len(paths) == 0 {
			return nil, fmt.Errorf("no board configuration (%s) in %s", strings.Join(boardConfigGlobs, ", "), path)
		}
	}

	var configs []*BoardConfig
	var errs error
	for _, p := range paths {
		cfg, err := LoadBoardConfig(p)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		configs = append(configs, cfg)
	}
	return configs, errs
}

// dateString renders a card_action_filter value. YAML dates without a time
// arrive as UTC midnights and are kept as dates.
func dateString(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case time.Time:
		if v.Location() == time.UTC && v.Equal(v.Truncate(24*time.Hour)) {
			return v.Format("2006-01-02")
		}
		return v.Format(time.RFC3339)
	default:
		return cast.ToString(v)
	}
}

func settingError(setting string, value interface{}, err error) error {
	return fmt.Errorf("%s %q: %w", setting, cast.ToString(value), err)
}

// Validate checks every setting and reports all problems at once. It also
// resolves the timezone and the history window.
func (c *BoardConfig) Validate() error {
	var errs error

	if !contains(Sources, c.Source) {
		errs = multierr.Append(errs, settingError("source", c.Source, fmt.Errorf("must be one of %v", Sources)))
	}
	if c.BoardName == "" && c.BoardID == "" {
		errs = multierr.Append(errs, errors.New("board_name or board_id is required"))
	}
	if c.Source == SourceGitHub && c.Repository == "" {
		errs = multierr.Append(errs, errors.New("repository is required for github boards"))
	}
	if c.DevelopmentList == "" {
		errs = multierr.Append(errs, errors.New("development_list is required"))
	}

	if c.ActiveCards.Strategy != "" && !contains(aggregate.Strategies, c.ActiveCards.Strategy) {
		errs = multierr.Append(errs, settingError("active_cards.strategy", c.ActiveCards.Strategy,
			fmt.Errorf("must be one of %v", aggregate.Strategies)))
	}

	loc := time.UTC
	if c.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(c.Timezone)
		if err != nil {
			errs = multierr.Append(errs, settingError("timezone", c.Timezone, err))
			loc = time.UTC
		}
	}
	c.location = loc

	if _, err := timetracking.NewParser(c.CommentPattern, loc); err != nil {
		errs = multierr.Append(errs, settingError("comment_spent_estimated_regex", c.CommentPattern, err))
	}

	window, err := c.parseWindow(loc)
	if err != nil {
		errs = multierr.Append(errs, err)
	}
	c.window = window

	for i, w := range c.Workflows {
		if w.Name == "" {
			errs = multierr.Append(errs, fmt.Errorf("custom_workflows[%d]: name is required", i))
		}
		if len(w.Lists) == 0 || len(w.DoneLists) == 0 {
			errs = multierr.Append(errs, fmt.Errorf("custom_workflows[%d] %q: lists and done_lists are required", i, w.Name))
		}
	}

	if c.Workers < 1 {
		errs = multierr.Append(errs, settingError("workers", c.Workers, errors.New("must be at least 1")))
	}

	return errs
}

func (c *BoardConfig) parseWindow(loc *time.Location) (history.Window, error) {
	var window history.Window
	var errs error

	parse := func(setting, value string) *time.Time {
		if value == "" {
			return nil
		}
		t, err := cast.ToTimeInDefaultLocationE(value, loc)
		if err != nil {
			errs = multierr.Append(errs, settingError(setting, value, err))
			return nil
		}
		return &t
	}

	window.Start = parse("card_action_filter.start", c.Window.Start)
	window.End = parse("card_action_filter.end", c.Window.End)
	if errs != nil {
		return history.Window{}, errs
	}

	if err := window.Validate(); err != nil {
		return history.Window{}, settingError("card_action_filter", c.Window.Start+" - "+c.Window.End, err)
	}
	return window, nil
}

// Location is the board timezone, UTC by default.
func (c *BoardConfig) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// HistoryWindow is the resolved card_action_filter.
func (c *BoardConfig) HistoryWindow() history.Window {
	return c.window
}

// BoardRef identifies the configured board.
func (c *BoardConfig) BoardRef() snapshot.BoardRef {
	return snapshot.BoardRef{ID: c.BoardID, Name: c.BoardName}
}

// DisplayName names the board in logs and file names.
func (c *BoardConfig) DisplayName() string {
	if c.BoardName != "" {
		return c.BoardName
	}
	return c.BoardID
}

// TracksTime reports whether comments must be fetched.
func (c *BoardConfig) TracksTime() bool {
	return c.CommentPattern != ""
}

// AnalysisSpec converts the configuration into the aggregator's settings.
func (c *BoardConfig) AnalysisSpec() aggregate.Spec {
	workflows := make([]workflow.Definition, len(c.Workflows))
	for i, w := range c.Workflows {
		workflows[i] = workflow.Definition{Name: w.Name, ListNames: w.Lists, DoneListNames: w.DoneLists}
	}

	return aggregate.Spec{
		DevelopmentList: c.DevelopmentList,
		DoneList:        c.DoneList,
		Active: aggregate.ActiveSpec{
			Strategy: c.ActiveCards.Strategy,
			Columns:  c.ActiveCards.Columns,
			Labels:   c.ActiveCards.Labels,
		},
		Workflows:      workflows,
		Window:         c.window,
		CommentPattern: c.CommentPattern,
		Location:       c.Location(),
		Workers:        c.Workers,
	}
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
