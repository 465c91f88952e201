package validate

import (
	"bytes"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/burl-dev/burl/internal/config"
)

// StepStatus is the outcome of one pipeline step.
type StepStatus int

const (
	StepPass StepStatus = iota
	StepFail
	StepSkip
)

func (s StepStatus) String() string {
	switch s {
	case StepPass:
		return "Pass"
	case StepFail:
		return "Fail"
	default:
		return "Skip"
	}
}

// StepResult records what happened when a single pipeline step ran.
type StepResult struct {
	Name    string
	Status  StepStatus
	Message string
}

// RunPipeline runs steps in order inside workDir, guarding each by
// run_if_changed_globs/run_if_changed_extensions against changedFiles. The
// whole run passes iff no step fails; Skip-only runs also pass.
func RunPipeline(workDir string, steps []config.Step, changedFiles []string) ([]StepResult, bool, error) {
	results := make([]StepResult, 0, len(steps))
	passed := true

	for _, step := range steps {
		if !guardMatches(step, changedFiles) {
			results = append(results, StepResult{Name: step.Name, Status: StepSkip})
			continue
		}

		cmd := exec.Command("sh", "-c", step.Command)
		cmd.Dir = workDir
		var out bytes.Buffer
		cmd.Stdout = &out
		cmd.Stderr = &out

		if err := cmd.Run(); err != nil {
			passed = false
			results = append(results, StepResult{
				Name: step.Name, Status: StepFail,
				Message: fmt.Sprintf("%s\n%s", err, out.String()),
			})
			continue
		}
		results = append(results, StepResult{Name: step.Name, Status: StepPass, Message: out.String()})
	}

	return results, passed, nil
}

// guardMatches reports whether step should run given changedFiles. A step
// with no guards always runs.
func guardMatches(step config.Step, changedFiles []string) bool {
	if len(step.RunIfChangedGlobs) == 0 && len(step.RunIfChangedExtensions) == 0 {
		return true
	}

	globs, err := compileGlobs(step.RunIfChangedGlobs, "run_if_changed_globs")
	if err != nil {
		// An invalid guard glob degrades to "always run" rather than
		// surfacing mid-pipeline; profile validation should have caught
		// this earlier.
		return true
	}

	extSet := make(map[string]bool, len(step.RunIfChangedExtensions))
	for _, e := range step.RunIfChangedExtensions {
		extSet[strings.ToLower(strings.TrimPrefix(e, "."))] = true
	}

	for _, f := range changedFiles {
		nf := normalizePath(f)
		if len(step.RunIfChangedGlobs) > 0 && globs.matches(nf) {
			return true
		}
		if len(step.RunIfChangedExtensions) > 0 {
			ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(nf), "."))
			if extSet[ext] {
				return true
			}
		}
	}
	return false
}
