// Package config provides centralized configuration management for the application.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/danielolaszy/marvin/pkg/models"
)

// DefaultPath is the configuration file read when no path is given.
const DefaultPath = "config.yaml"

// Supported tracker backends.
const (
	TrackerRedmine = "redmine"
	TrackerJira    = "jira"
	TrackerGitHub  = "github"
)

//go:embed schema.json
var schemaJSON string

// envReference matches ${VAR}. A bare $ is literal text.
var envReference = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Config holds all configuration parameters for the application.
type Config struct {
	Tracker   TrackerConfig
	Templates TemplatesConfig
	Logging   LoggingConfig
	Schedule  ScheduleConfig

	// Actions in declaration order.
	Actions []models.Action

	location *time.Location
}

// TrackerConfig holds the connection parameters and run-wide tracker settings.
type TrackerConfig struct {
	Type     string
	URL      string
	Version  string
	APIKey   string
	Username string

	// TimeZone is the IANA zone all date computations happen in.
	TimeZone string

	// IssueClosedStatus is the status name applied by closing actions.
	IssueClosedStatus string

	// StrictClosedStatus makes a failed IssueClosedStatus lookup abort the run
	// instead of disabling closing for it.
	StrictClosedStatus bool

	// NoBotTag exempts tickets mentioning it from every action.
	NoBotTag string
}

// TemplatesConfig holds comment template settings.
type TemplatesConfig struct {
	Dir string
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string
	File  string
}

// ScheduleConfig holds daemon mode settings.
type ScheduleConfig struct {
	Cron        string
	MetricsAddr string
}

// Error reports a configuration document that could not be loaded or is invalid.
type Error struct {
	Problems []string
}

func (e *Error) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

func configErrorf(format string, args ...any) *Error {
	return &Error{Problems: []string{fmt.Sprintf(format, args...)}}
}

// scalar accepts any YAML scalar as its literal text, so dates and numeric ids
// keep the exact spelling used in the file.
type scalar string

func (s *scalar) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a scalar value", node.Line)
	}
	*s = scalar(node.Value)
	return nil
}

type actionDoc struct {
	TimeRange      int      `yaml:"time_range"`
	StartDate      scalar   `yaml:"start_date"`
	Projects       []string `yaml:"projects"`
	Status         []string `yaml:"status"`
	Template       string   `yaml:"template"`
	CloseTicket    bool     `yaml:"close_ticket"`
	ChangeStatusTo scalar   `yaml:"change_status_to"`
}

// LoadConfig reads and validates the configuration file at path.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, configErrorf("failed to read %s: %v", path, err)
	}

	return Parse(data)
}

// Parse builds a validated Config from a YAML document. ${VAR} references are
// expanded from the environment first, and MARVIN_* variables override scalar
// settings (e.g., MARVIN_TRACKER_API_KEY).
func Parse(data []byte) (*Config, error) {
	expanded, err := expandEnv(string(data))
	if err != nil {
		return nil, err
	}

	var root yaml.Node
	if err := yaml.Unmarshal([]byte(expanded), &root); err != nil {
		return nil, configErrorf("failed to parse YAML: %v", err)
	}

	var doc map[string]any
	if err := root.Decode(&doc); err != nil {
		return nil, configErrorf("failed to parse YAML: %v", err)
	}

	if err := validateSchema(doc); err != nil {
		return nil, err
	}

	// Initialize Viper for the scalar sections and environment overrides
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("MARVIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.ReadConfig(strings.NewReader(expanded)); err != nil {
		return nil, configErrorf("failed to read configuration: %v", err)
	}

	// Older documents name the tracker section after the only backend they had
	section := "tracker"
	if _, ok := doc["tracker"]; !ok {
		section = "redmine"
	}

	v.SetDefault(section+".type", TrackerRedmine)
	v.SetDefault(section+".time_zone", "UTC")
	v.SetDefault("templates.dir", "templates")
	v.SetDefault("logging.level", "info")

	config := &Config{
		Tracker: TrackerConfig{
			Type:               strings.ToLower(v.GetString(section + ".type")),
			URL:                strings.TrimRight(v.GetString(section+".url"), "/"),
			Version:            v.GetString(section + ".version"),
			APIKey:             v.GetString(section + ".api_key"),
			Username:           v.GetString(section + ".username"),
			TimeZone:           v.GetString(section + ".time_zone"),
			IssueClosedStatus:  v.GetString(section + ".issue_closed_status"),
			StrictClosedStatus: v.GetBool(section + ".strict_closed_status"),
			NoBotTag:           v.GetString(section + ".no_bot_tag"),
		},
		Templates: TemplatesConfig{
			Dir: v.GetString("templates.dir"),
		},
		Logging: LoggingConfig{
			Level: v.GetString("logging.level"),
			File:  v.GetString("logging.file"),
		},
		Schedule: ScheduleConfig{
			Cron:        v.GetString("schedule.cron"),
			MetricsAddr: v.GetString("schedule.metrics_addr"),
		},
	}

	actions, err := decodeActions(&root)
	if err != nil {
		return nil, err
	}
	config.Actions = actions

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// expandEnv replaces every ${VAR} with its value. Referencing a variable that
// is not set is an error, so a missing secret or marker never loads as "".
func expandEnv(data string) (string, error) {
	var missing []string
	seen := make(map[string]bool)

	expanded := envReference.ReplaceAllStringFunc(data, func(ref string) string {
		name := envReference.FindStringSubmatch(ref)[1]
		value, ok := os.LookupEnv(name)
		if !ok {
			if !seen[name] {
				seen[name] = true
				missing = append(missing, fmt.Sprintf("environment variable %s is not set", name))
			}
			return ref
		}
		return value
	})

	if len(missing) > 0 {
		return "", &Error{Problems: missing}
	}
	return expanded, nil
}

func validateSchema(doc map[string]any) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schemaJSON),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return configErrorf("failed to validate document: %v", err)
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return &Error{Problems: problems}
}

// decodeActions walks the actions mapping node so the declaration order survives.
func decodeActions(root *yaml.Node) ([]models.Action, error) {
	if len(root.Content) == 0 {
		return nil, nil
	}

	var actionsNode *yaml.Node
	doc := root.Content[0]
	for i := 0; i+1 < len(doc.Content); i += 2 {
		if doc.Content[i].Value == "actions" {
			actionsNode = doc.Content[i+1]
			break
		}
	}
	if actionsNode == nil {
		return nil, nil
	}

	actions := make([]models.Action, 0, len(actionsNode.Content)/2)
	for i := 0; i+1 < len(actionsNode.Content); i += 2 {
		name := actionsNode.Content[i].Value

		var ad actionDoc
		if err := actionsNode.Content[i+1].Decode(&ad); err != nil {
			return nil, configErrorf("actions.%s: %v", name, err)
		}

		actions = append(actions, models.Action{
			Name:           name,
			TimeRange:      ad.TimeRange,
			StartDate:      string(ad.StartDate),
			Projects:       ad.Projects,
			Status:         ad.Status,
			Template:       ad.Template,
			CloseTicket:    ad.CloseTicket,
			ChangeStatusTo: strings.TrimSpace(string(ad.ChangeStatusTo)),
		})
	}

	return actions, nil
}

// Validate ensures that all required configuration values are provided and usable.
func (c *Config) Validate() error {
	var problems []string

	switch c.Tracker.Type {
	case TrackerRedmine, TrackerJira:
		if c.Tracker.URL == "" {
			problems = append(problems, "tracker.url is required")
		}
	case TrackerGitHub:
	default:
		problems = append(problems, fmt.Sprintf("tracker.type %q is not one of redmine, jira, github", c.Tracker.Type))
	}

	if c.Tracker.APIKey == "" {
		problems = append(problems, "tracker.api_key is required")
	}
	if c.Tracker.Type == TrackerJira && c.Tracker.Username == "" {
		problems = append(problems, "tracker.username is required for jira")
	}

	loc, err := time.LoadLocation(c.Tracker.TimeZone)
	if err != nil {
		problems = append(problems, fmt.Sprintf("tracker.time_zone: %v", err))
	} else {
		c.location = loc
	}

	if c.Schedule.Cron != "" {
		if _, err := cron.ParseStandard(c.Schedule.Cron); err != nil {
			problems = append(problems, fmt.Sprintf("schedule.cron: %v", err))
		}
	}

	if len(c.Actions) == 0 {
		problems = append(problems, "at least one action is required")
	}

	for _, a := range c.Actions {
		prefix := "actions." + a.Name
		if a.TimeRange < 0 {
			problems = append(problems, prefix+".time_range must not be negative")
		}
		if _, err := models.ParseDate(a.StartDate); err != nil {
			problems = append(problems, fmt.Sprintf("%s.start_date %q is not a YYYY-MM-DD date", prefix, a.StartDate))
		}
		if len(a.Projects) == 0 {
			problems = append(problems, prefix+".projects must not be empty")
		}
		if len(a.Status) == 0 {
			problems = append(problems, prefix+".status must not be empty")
		}
		if a.Template == "" {
			problems = append(problems, prefix+".template is required")
		}
	}

	if len(problems) > 0 {
		return &Error{Problems: problems}
	}

	return nil
}

// Location returns the configured time zone, UTC if validation has not run.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// SelectActions returns the actions named in names, in declaration order.
// An empty names selects every action.
func (c *Config) SelectActions(names []string) ([]models.Action, error) {
	if len(names) == 0 {
		return c.Actions, nil
	}

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}

	var selected []models.Action
	for _, a := range c.Actions {
		if wanted[a.Name] {
			selected = append(selected, a)
			delete(wanted, a.Name)
		}
	}

	if len(wanted) > 0 {
		var unknown []string
		for _, n := range names {
			if wanted[n] {
				unknown = append(unknown, n)
			}
		}
		return nil, configErrorf("unknown action(s): %s", strings.Join(unknown, ", "))
	}

	return selected, nil
}

// NeedsClosedStatus reports whether any of actions closes tickets while a
// closed status is configured.
func (c *Config) NeedsClosedStatus(actions []models.Action) bool {
	if c.Tracker.IssueClosedStatus == "" {
		return false
	}
	for _, a := range actions {
		if a.CloseTicket {
			return true
		}
	}
	return false
}
