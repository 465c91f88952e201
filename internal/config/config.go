// Package config loads and validates burl's workflow configuration
// (spec.md §6): a single YAML document at .burl/.workflow/config.yaml with
// defaults applied for every unset key.
package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// MergeStrategy selects how approve integrates a task branch into main.
type MergeStrategy string

const (
	MergeRebaseFFOnly MergeStrategy = "rebase_ff_only"
	MergeFFOnly       MergeStrategy = "ff_only"
	MergeManual       MergeStrategy = "manual"
)

// ConflictDetection selects how claim checks a candidate task against
// in-flight DOING tasks before materializing its worktree.
type ConflictDetection string

const (
	ConflictDeclared ConflictDetection = "declared"
	ConflictDiff     ConflictDetection = "diff"
	ConflictHybrid   ConflictDetection = "hybrid"
)

// ConflictPolicy selects what a detected scope conflict does to claim.
type ConflictPolicy string

const (
	ConflictFail   ConflictPolicy = "fail"
	ConflictWarn   ConflictPolicy = "warn"
	ConflictIgnore ConflictPolicy = "ignore"
)

// Step is a single shell command in a validation profile, optionally
// guarded so it only runs when the changed-file set matches.
type Step struct {
	Name                   string   `yaml:"name"`
	Command                string   `yaml:"command"`
	RunIfChangedGlobs      []string `yaml:"run_if_changed_globs,omitempty"`
	RunIfChangedExtensions []string `yaml:"run_if_changed_extensions,omitempty"`
}

// ValidationProfile is a named, ordered sequence of shell steps run by
// `burl validate`/`burl approve`.
type ValidationProfile struct {
	Steps []Step `yaml:"steps"`
}

// Config is burl's workflow configuration. Unknown top-level keys are
// ignored per spec.md §6, so Config intentionally does not round-trip
// unrecognized fields the way a task file does.
type Config struct {
	MaxParallel      uint32 `yaml:"max_parallel"`
	WorkflowBranch   string `yaml:"workflow_branch"`
	WorkflowWorktree string `yaml:"workflow_worktree"`

	WorkflowAutoCommit bool `yaml:"workflow_auto_commit"`
	WorkflowAutoPush   bool `yaml:"workflow_auto_push"`

	MainBranch string `yaml:"main_branch"`
	Remote     string `yaml:"remote"`

	MergeStrategy         MergeStrategy `yaml:"merge_strategy"`
	PushMainOnApprove     bool          `yaml:"push_main_on_approve"`
	PushTaskBranchOnSubmit bool         `yaml:"push_task_branch_on_submit"`

	LockStaleMinutes   uint32 `yaml:"lock_stale_minutes"`
	UseGlobalClaimLock bool   `yaml:"use_global_claim_lock"`

	QAMaxAttempts            uint32 `yaml:"qa_max_attempts"`
	AutoPriorityBoostOnRetry bool   `yaml:"auto_priority_boost_on_retry"`

	BuildCommand string `yaml:"build_command"`

	DefaultValidationProfile string                       `yaml:"default_validation_profile,omitempty"`
	ValidationProfiles       map[string]ValidationProfile `yaml:"validation_profiles,omitempty"`

	StubPatterns        []string `yaml:"stub_patterns,omitempty"`
	StubCheckExtensions []string `yaml:"stub_check_extensions,omitempty"`

	ConflictDetection ConflictDetection `yaml:"conflict_detection"`
	ConflictPolicy    ConflictPolicy    `yaml:"conflict_policy"`
}

// DefaultStubPatterns are the stub markers checked by the stub validator
// (§4.6) when stub_patterns is unset.
var DefaultStubPatterns = []string{
	"TODO", "FIXME", "XXX", "HACK", "unimplemented!", "todo!",
	`panic!\s*\(\s*"not implemented`, "NotImplementedError", "raise NotImplemented",
	`^\s*pass\s*$`, `^\s*\.\.\.\s*$`,
}

// DefaultStubCheckExtensions are the file extensions (without a leading
// dot) scanned by the stub validator when stub_check_extensions is unset.
var DefaultStubCheckExtensions = []string{"go", "rs", "py", "ts", "js", "tsx", "jsx"}

// Default returns a Config with every default from spec.md §6 applied.
func Default() *Config {
	return &Config{
		MaxParallel:              3,
		WorkflowBranch:           "burl",
		WorkflowWorktree:         ".burl",
		WorkflowAutoCommit:       true,
		WorkflowAutoPush:         false,
		MainBranch:               "main",
		Remote:                   "origin",
		MergeStrategy:            MergeRebaseFFOnly,
		PushMainOnApprove:        false,
		PushTaskBranchOnSubmit:   false,
		LockStaleMinutes:         120,
		UseGlobalClaimLock:       true,
		QAMaxAttempts:            3,
		AutoPriorityBoostOnRetry: true,
		BuildCommand:             "cargo test",
		StubPatterns:             append([]string(nil), DefaultStubPatterns...),
		StubCheckExtensions:      append([]string(nil), DefaultStubCheckExtensions...),
		ConflictDetection:        ConflictDeclared,
		ConflictPolicy:           ConflictFail,
	}
}

// Parse parses already-read config bytes, applying defaults for any key
// left unset.
func Parse(data []byte) (*Config, error) {
	return parse(data)
}

func parse(data []byte) (*Config, error) {
	cfg := Default()

	// Decode into a zero-valued overlay first so we can tell "unset" (the
	// field keeps Default()'s value) apart from "explicitly set to the
	// zero value" (e.g. workflow_auto_push: false, which is also the
	// default — harmless either way here since every bool default matches
	// its zero value except workflow_auto_commit and use_global_claim_lock
	// and auto_priority_boost_on_retry, handled below via presence checks).
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	// yaml.Unmarshal leaves a bool field at Go's zero value (false) both
	// when the key is absent and when it's explicitly false, which would
	// silently flip the three defaults below to false on any config file
	// that doesn't mention them. Restore the default when the key is
	// genuinely absent from the document.
	restoreBoolDefault(raw, "workflow_auto_commit", true, &cfg.WorkflowAutoCommit)
	restoreBoolDefault(raw, "use_global_claim_lock", true, &cfg.UseGlobalClaimLock)
	restoreBoolDefault(raw, "auto_priority_boost_on_retry", true, &cfg.AutoPriorityBoostOnRetry)

	if cfg.MergeStrategy == "" {
		cfg.MergeStrategy = MergeRebaseFFOnly
	}
	if cfg.ConflictDetection == "" {
		cfg.ConflictDetection = ConflictDeclared
	}
	if cfg.ConflictPolicy == "" {
		cfg.ConflictPolicy = ConflictFail
	}
	if len(cfg.StubPatterns) == 0 {
		if _, present := raw["stub_patterns"]; !present {
			cfg.StubPatterns = append([]string(nil), DefaultStubPatterns...)
		}
	}
	if len(cfg.StubCheckExtensions) == 0 {
		if _, present := raw["stub_check_extensions"]; !present {
			cfg.StubCheckExtensions = append([]string(nil), DefaultStubCheckExtensions...)
		}
	}

	return cfg, nil
}

func restoreBoolDefault(raw map[string]interface{}, key string, def bool, field *bool) {
	if _, present := raw[key]; !present {
		*field = def
	}
}

// Validate checks the config for internally inconsistent values.
func Validate(cfg *Config) []error {
	var errs []error

	switch cfg.MergeStrategy {
	case MergeRebaseFFOnly, MergeFFOnly, MergeManual:
	default:
		errs = append(errs, fmt.Errorf("merge_strategy: invalid value %q", cfg.MergeStrategy))
	}

	switch cfg.ConflictDetection {
	case ConflictDeclared, ConflictDiff, ConflictHybrid:
	default:
		errs = append(errs, fmt.Errorf("conflict_detection: invalid value %q", cfg.ConflictDetection))
	}

	switch cfg.ConflictPolicy {
	case ConflictFail, ConflictWarn, ConflictIgnore:
	default:
		errs = append(errs, fmt.Errorf("conflict_policy: invalid value %q", cfg.ConflictPolicy))
	}

	if cfg.WorkflowBranch == "" {
		errs = append(errs, fmt.Errorf("workflow_branch must not be empty"))
	}
	if cfg.MainBranch == "" {
		errs = append(errs, fmt.Errorf("main_branch must not be empty"))
	}
	if cfg.QAMaxAttempts == 0 {
		errs = append(errs, fmt.Errorf("qa_max_attempts must be at least 1"))
	}

	names := make(map[string]bool, len(cfg.ValidationProfiles))
	for name, profile := range cfg.ValidationProfiles {
		names[name] = true
		if len(profile.Steps) == 0 {
			errs = append(errs, fmt.Errorf("validation_profiles[%s]: at least one step is required", name))
		}
	}
	if cfg.DefaultValidationProfile != "" && !names[cfg.DefaultValidationProfile] {
		errs = append(errs, fmt.Errorf("default_validation_profile %q is not defined in validation_profiles", cfg.DefaultValidationProfile))
	}

	return errs
}
