package engine

import (
	"github.com/burl-dev/burl/internal/burlerr"
	"github.com/burl-dev/burl/internal/config"
	"github.com/burl-dev/burl/internal/gitops"
	"github.com/burl-dev/burl/internal/task"
	"github.com/burl-dev/burl/internal/validate"
)

// resolveProfile picks the named validation profile from fm, falling back
// to the config's default_validation_profile, per spec.md §4.6. When
// neither names a profile, it falls back further to the legacy single-step
// build_command (spec.md §6), unless build_command has been emptied to
// disable it.
func (e *Engine) resolveProfile(fm *task.FrontMatter) ([]config.Step, error) {
	name := fm.ValidationProfile
	if name == "" {
		name = e.Ctx.Config.DefaultValidationProfile
	}
	if name == "" {
		if e.Ctx.Config.BuildCommand == "" {
			return nil, nil
		}
		return []config.Step{{Name: "build", Command: e.Ctx.Config.BuildCommand}}, nil
	}
	profile, ok := e.Ctx.Config.ValidationProfiles[name]
	if !ok {
		return nil, burlerr.Userf("unknown validation_profile %q", name)
	}
	return profile.Steps, nil
}

// checkScopeAndStubs runs the scope and stub validators (spec.md §4.6)
// against changes since base in the given worktree, used by submit and by
// validate's pre-pipeline checks.
func (e *Engine) checkScopeAndStubs(fm *task.FrontMatter, worktreePath, base string) error {
	repo := gitops.NewRepo(worktreePath)

	changed, err := gitops.ChangedFiles(repo, base)
	if err != nil {
		return burlerr.Git("listing changed files", err)
	}
	scopeResult, err := validate.CheckScope(validate.ScopeInput{
		Affects: fm.Affects, AffectsGlobs: fm.AffectsGlobs, MustNotTouch: fm.MustNotTouch,
	}, changed)
	if err != nil {
		return burlerr.User("invalid scope configuration", err)
	}
	if !scopeResult.Passed {
		return burlerr.Validation(scopeResult.FormatError(fm.ID), nil)
	}

	added, err := gitops.AddedLines(repo, base)
	if err != nil {
		return burlerr.Git("listing added lines", err)
	}
	patterns := e.Ctx.Config.StubPatterns
	if patterns == nil {
		patterns = config.DefaultStubPatterns
	}
	extensions := e.Ctx.Config.StubCheckExtensions
	if extensions == nil {
		extensions = config.DefaultStubCheckExtensions
	}
	stubResult, err := validate.CheckStubs(added, patterns, extensions)
	if err != nil {
		return burlerr.User("invalid stub_patterns configuration", err)
	}
	if !stubResult.Passed {
		return burlerr.Validation(stubResult.FormatError(), nil)
	}
	return nil
}
