package config

import "testing"

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("main_branch: trunk\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.MainBranch != "trunk" {
		t.Errorf("MainBranch = %q, want trunk", cfg.MainBranch)
	}
	if cfg.WorkflowBranch != "burl" {
		t.Errorf("WorkflowBranch = %q, want burl (default)", cfg.WorkflowBranch)
	}
	if !cfg.WorkflowAutoCommit {
		t.Error("WorkflowAutoCommit default should be true")
	}
	if !cfg.UseGlobalClaimLock {
		t.Error("UseGlobalClaimLock default should be true")
	}
	if cfg.QAMaxAttempts != 3 {
		t.Errorf("QAMaxAttempts = %d, want 3", cfg.QAMaxAttempts)
	}
	if len(cfg.StubPatterns) == 0 {
		t.Error("expected default stub patterns to be populated")
	}
}

func TestParseHonorsExplicitFalse(t *testing.T) {
	cfg, err := Parse([]byte("workflow_auto_commit: false\nuse_global_claim_lock: false\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.WorkflowAutoCommit {
		t.Error("explicit workflow_auto_commit: false was overridden by the default")
	}
	if cfg.UseGlobalClaimLock {
		t.Error("explicit use_global_claim_lock: false was overridden by the default")
	}
}

func TestParseHonorsExplicitEmptyStubPatterns(t *testing.T) {
	cfg, err := Parse([]byte("stub_patterns: []\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cfg.StubPatterns) != 0 {
		t.Errorf("expected explicit empty stub_patterns to stay empty, got %v", cfg.StubPatterns)
	}
}

func TestValidateRejectsUnknownEnumValues(t *testing.T) {
	cfg := Default()
	cfg.MergeStrategy = "squash"
	errs := Validate(cfg)
	if len(errs) == 0 {
		t.Fatal("expected an error for an invalid merge_strategy")
	}
}

func TestValidateRejectsDanglingDefaultValidationProfile(t *testing.T) {
	cfg := Default()
	cfg.DefaultValidationProfile = "full"
	errs := Validate(cfg)
	if len(errs) == 0 {
		t.Fatal("expected an error for a default_validation_profile with no matching entry")
	}
}

func TestValidateAcceptsDefaultConfig(t *testing.T) {
	if errs := Validate(Default()); len(errs) != 0 {
		t.Fatalf("Default() config should validate cleanly, got %v", errs)
	}
}
