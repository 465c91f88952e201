// Package task implements burl's task-file codec (spec.md §4.3) and index
// (spec.md §4.4): YAML front matter plus a byte-preserved markdown body,
// round-tripping unrecognized front-matter keys losslessly.
package task

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/burl-dev/burl/internal/burlerr"
)

// Priority is the task priority enum from spec.md §3.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
	PriorityOther  Priority = "other"
)

// DefaultPriority is applied by callers when FrontMatter.Priority is empty;
// the codec itself never invents a value that wasn't on disk (see P3 in
// spec.md §8: parse ∘ serialize must be the identity).
const DefaultPriority = PriorityMedium

// IDPattern matches a normalized task identifier: TASK- followed by at
// least three digits.
var IDPattern = regexp.MustCompile(`^TASK-\d{3,}$`)

// FrontMatter holds the recognized front-matter fields from spec.md §3.
// Extra carries every unrecognized key verbatim so it survives a
// parse-then-serialize round trip.
type FrontMatter struct {
	ID                string
	Title             string
	Priority          Priority
	Created           *time.Time
	StartedAt         *time.Time
	SubmittedAt       *time.Time
	CompletedAt       *time.Time
	RejectedAt        *time.Time
	AssignedTo        string
	QAAttempts        uint32
	Worktree          string
	Branch            string
	BaseSHA           string
	Affects           []string
	AffectsGlobs      []string
	MustNotTouch      []string
	DependsOn         []string
	Tags              []string
	Agent             string
	ValidationProfile string
	LastError         string

	Extra map[string]yaml.Node
}

// File is a parsed task file: front matter plus the exact body bytes and
// the line-ending style observed on disk.
type File struct {
	FrontMatter FrontMatter
	Body        []byte
	CRLF        bool
}

// EffectivePriority returns fm.Priority, defaulting to medium when unset,
// without mutating the parsed value.
func (fm *FrontMatter) EffectivePriority() Priority {
	if fm.Priority == "" {
		return DefaultPriority
	}
	return fm.Priority
}

const delimiter = "---"

// ParseFile parses a task file's bytes per spec.md §4.3: the opening and
// closing "---" delimiters are both required; everything after the closing
// delimiter's line terminator is the body, preserved byte-for-byte.
func ParseFile(data []byte) (*File, error) {
	openLine, rest, ok := readLine(data, 0)
	if !ok || trimCR(openLine) != delimiter {
		return nil, burlerr.Userf("task file must start with a %q line", delimiter)
	}

	fmStart := rest
	offset := rest
	fmEnd := -1
	bodyStart := -1
	for offset <= len(data) {
		line, next, ok := readLine(data, offset)
		if !ok {
			break
		}
		if trimCR(line) == delimiter {
			fmEnd = offset
			bodyStart = next
			break
		}
		offset = next
	}
	if fmEnd < 0 {
		return nil, burlerr.Userf("task file is missing the closing %q delimiter", delimiter)
	}

	crlf := bytes.Contains(data[:bodyStart], []byte("\r\n"))
	fmBytes := data[fmStart:fmEnd]

	fm, err := parseFrontMatter(fmBytes)
	if err != nil {
		return nil, burlerr.Userf("parsing front matter: %s", err)
	}

	var body []byte
	if bodyStart <= len(data) {
		body = data[bodyStart:]
	}

	return &File{FrontMatter: *fm, Body: body, CRLF: crlf}, nil
}

// readLine returns the content of the line starting at offset (without its
// terminator) and the offset of the following line. ok is false once offset
// is past the end of data.
func readLine(data []byte, offset int) (line string, next int, ok bool) {
	if offset > len(data) {
		return "", offset, false
	}
	idx := bytes.IndexByte(data[offset:], '\n')
	if idx < 0 {
		return string(data[offset:]), len(data) + 1, true
	}
	end := offset + idx
	return string(data[offset:end]), end + 1, true
}

func trimCR(s string) string { return strings.TrimSuffix(s, "\r") }

// knownFields lists every recognized front-matter key, used both to decide
// what's "extra" on parse and to decide field emission order on serialize.
var knownFields = []string{
	"id", "title", "priority", "created", "started_at", "submitted_at",
	"completed_at", "rejected_at", "assigned_to", "qa_attempts", "worktree",
	"branch", "base_sha", "affects", "affects_globs", "must_not_touch",
	"depends_on", "tags", "agent", "validation_profile", "last_error",
}

func parseFrontMatter(data []byte) (*FrontMatter, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	fm := &FrontMatter{Extra: map[string]yaml.Node{}}
	if len(doc.Content) == 0 {
		return nil, fmt.Errorf("front matter is empty")
	}
	mapping := doc.Content[0]
	if mapping.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("front matter must be a YAML mapping")
	}

	known := make(map[string]bool, len(knownFields))
	for _, k := range knownFields {
		known[k] = true
	}

	for i := 0; i+1 < len(mapping.Content); i += 2 {
		keyNode := mapping.Content[i]
		valNode := mapping.Content[i+1]
		key := keyNode.Value

		var decodeErr error
		switch key {
		case "id":
			decodeErr = valNode.Decode(&fm.ID)
		case "title":
			decodeErr = valNode.Decode(&fm.Title)
		case "priority":
			var s string
			if decodeErr = valNode.Decode(&s); decodeErr == nil {
				fm.Priority = Priority(s)
			}
		case "created":
			fm.Created, decodeErr = decodeTime(valNode)
		case "started_at":
			fm.StartedAt, decodeErr = decodeTime(valNode)
		case "submitted_at":
			fm.SubmittedAt, decodeErr = decodeTime(valNode)
		case "completed_at":
			fm.CompletedAt, decodeErr = decodeTime(valNode)
		case "rejected_at":
			fm.RejectedAt, decodeErr = decodeTime(valNode)
		case "assigned_to":
			decodeErr = valNode.Decode(&fm.AssignedTo)
		case "qa_attempts":
			decodeErr = valNode.Decode(&fm.QAAttempts)
		case "worktree":
			decodeErr = valNode.Decode(&fm.Worktree)
		case "branch":
			decodeErr = valNode.Decode(&fm.Branch)
		case "base_sha":
			decodeErr = valNode.Decode(&fm.BaseSHA)
		case "affects":
			decodeErr = valNode.Decode(&fm.Affects)
		case "affects_globs":
			decodeErr = valNode.Decode(&fm.AffectsGlobs)
		case "must_not_touch":
			decodeErr = valNode.Decode(&fm.MustNotTouch)
		case "depends_on":
			decodeErr = valNode.Decode(&fm.DependsOn)
		case "tags":
			decodeErr = valNode.Decode(&fm.Tags)
		case "agent":
			decodeErr = valNode.Decode(&fm.Agent)
		case "validation_profile":
			decodeErr = valNode.Decode(&fm.ValidationProfile)
		case "last_error":
			decodeErr = valNode.Decode(&fm.LastError)
		default:
			fm.Extra[key] = *valNode
		}
		if decodeErr != nil {
			return nil, fmt.Errorf("field %q: %w", key, decodeErr)
		}
	}

	if fm.ID == "" {
		return nil, fmt.Errorf("missing required field \"id\"")
	}
	if fm.Title == "" {
		return nil, fmt.Errorf("missing required field \"title\"")
	}

	return fm, nil
}

func decodeTime(n *yaml.Node) (*time.Time, error) {
	if n.Tag == "!!null" || n.Value == "" {
		return nil, nil
	}
	var s string
	if err := n.Decode(&s); err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("invalid RFC3339 timestamp %q: %w", s, err)
	}
	t = t.UTC()
	return &t, nil
}

// Serialize renders the file back to bytes: "---\n<yaml>---\n<body>". Known
// fields are emitted in their declared order; empty list fields and
// zero-valued optional fields are omitted; unrecognized fields are emitted
// afterward in sorted key order for determinism. The body always keeps
// whatever bytes were supplied (mutation helpers are responsible for
// maintaining the "body ends with \n" rule called out in spec.md §4.3).
func (f *File) Serialize() []byte {
	nl := "\n"
	if f.CRLF {
		nl = "\r\n"
	}

	var lines []string
	fm := f.FrontMatter

	lines = append(lines, scalarLine("id", fm.ID))
	lines = append(lines, scalarLine("title", fm.Title))
	if fm.Priority != "" {
		lines = append(lines, scalarLine("priority", string(fm.Priority)))
	}
	appendTimeLine(&lines, "created", fm.Created)
	appendTimeLine(&lines, "started_at", fm.StartedAt)
	appendTimeLine(&lines, "submitted_at", fm.SubmittedAt)
	appendTimeLine(&lines, "completed_at", fm.CompletedAt)
	appendTimeLine(&lines, "rejected_at", fm.RejectedAt)
	if fm.AssignedTo != "" {
		lines = append(lines, scalarLine("assigned_to", fm.AssignedTo))
	}
	if fm.QAAttempts != 0 {
		lines = append(lines, "qa_attempts: "+strconv.FormatUint(uint64(fm.QAAttempts), 10))
	}
	if fm.Worktree != "" {
		lines = append(lines, scalarLine("worktree", fm.Worktree))
	}
	if fm.Branch != "" {
		lines = append(lines, scalarLine("branch", fm.Branch))
	}
	if fm.BaseSHA != "" {
		lines = append(lines, scalarLine("base_sha", fm.BaseSHA))
	}
	appendListLines(&lines, "affects", fm.Affects)
	appendListLines(&lines, "affects_globs", fm.AffectsGlobs)
	appendListLines(&lines, "must_not_touch", fm.MustNotTouch)
	appendListLines(&lines, "depends_on", fm.DependsOn)
	appendListLines(&lines, "tags", fm.Tags)
	if fm.Agent != "" {
		lines = append(lines, scalarLine("agent", fm.Agent))
	}
	if fm.ValidationProfile != "" {
		lines = append(lines, scalarLine("validation_profile", fm.ValidationProfile))
	}
	if fm.LastError != "" {
		lines = append(lines, scalarLine("last_error", fm.LastError))
	}

	extraKeys := make([]string, 0, len(fm.Extra))
	for k := range fm.Extra {
		extraKeys = append(extraKeys, k)
	}
	sort.Strings(extraKeys)
	for _, k := range extraKeys {
		n := fm.Extra[k]
		data, err := yaml.Marshal(&n)
		if err != nil {
			// Extra fields came from a successful parse of valid YAML;
			// re-marshaling a previously-decoded node cannot fail in
			// practice, but fall back to a null value rather than panic.
			lines = append(lines, k+": null")
			continue
		}
		lines = append(lines, strings.TrimRight(k+": "+string(data), "\n"))
	}

	var buf bytes.Buffer
	buf.WriteString(delimiter + nl)
	for _, l := range lines {
		buf.WriteString(l)
		buf.WriteString(nl)
	}
	buf.WriteString(delimiter + nl)
	buf.Write(f.Body)
	return buf.Bytes()
}

func scalarLine(key, value string) string {
	return key + ": " + yamlScalar(value)
}

// yamlScalar quotes a string if needed so it round-trips as a YAML scalar
// rather than being mis-parsed as a different type (e.g. a bare "yes").
func yamlScalar(s string) string {
	n := yaml.Node{}
	_ = n.Encode(s)
	data, err := yaml.Marshal(&n)
	if err != nil {
		return strconv.Quote(s)
	}
	return strings.TrimRight(string(data), "\n")
}

func appendTimeLine(lines *[]string, key string, t *time.Time) {
	if t == nil {
		return
	}
	*lines = append(*lines, key+": "+t.UTC().Format(time.RFC3339))
}

func appendListLines(lines *[]string, key string, values []string) {
	if len(values) == 0 {
		return
	}
	*lines = append(*lines, key+":")
	for _, v := range values {
		*lines = append(*lines, "  - "+yamlScalar(v))
	}
}

// NormalizeID uppercases and zero-pads a task ID reference to the canonical
// TASK-NNN form, rejecting path-traversal or separator characters per
// spec.md's boundary behavior.
func NormalizeID(raw string) (string, error) {
	if strings.ContainsAny(raw, "/\\") || strings.Contains(raw, "..") {
		return "", burlerr.Userf("invalid task id %q: must not contain path separators", raw)
	}
	upper := strings.ToUpper(strings.TrimSpace(raw))
	if !strings.HasPrefix(upper, "TASK-") {
		upper = "TASK-" + upper
	}
	numPart := strings.TrimPrefix(upper, "TASK-")
	n, err := strconv.Atoi(numPart)
	if err != nil || n < 1 {
		return "", burlerr.Userf("invalid task id %q: must be TASK- followed by a positive integer", raw)
	}
	normalized := fmt.Sprintf("TASK-%03d", n)
	return normalized, nil
}
