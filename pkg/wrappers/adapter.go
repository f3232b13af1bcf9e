package wrappers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/user/secgate/pkg/engine"
	"github.com/user/secgate/pkg/logx"
)

// Scanner is implemented by every tool wrapper: it knows how to build the
// tool's command line for a target, which exit codes mean "ran, findings may
// exist", and how to parse the tool's native output into raw findings.
type Scanner interface {
	// Name returns the tool identifier (e.g. "checkov").
	Name() string

	// Command returns the binary, its arguments, and the working directory
	// ("" for the current one) for a scan of target.
	Command(target string) (bin string, args []string, dir string)

	// ExitOK reports whether an exit code belongs to the tool's "ran" set.
	// Most scanners exit nonzero when they find issues; that is success here.
	ExitOK(code int) bool

	// Parse converts the tool's stdout into raw findings. Zero findings with
	// valid output is a clean result, not an error.
	Parse(stdout []byte) ([]engine.RawFinding, error)
}

// stderrTail keeps invocation records bounded for audit output.
const stderrTail = 2048

// Invoke runs one scanner against the target with a bounded timeout and
// returns its invocation record plus whatever findings parsed. It spawns
// exactly one process, never retries (that is the runner's policy), and never
// touches the target path. Failures degrade: they come back in the status,
// not as an error.
func Invoke(ctx context.Context, s Scanner, target string, timeout time.Duration) (engine.ToolInvocation, []engine.RawFinding) {
	inv := engine.ToolInvocation{Tool: s.Name()}

	bin, args, dir := s.Command(target)
	if _, err := exec.LookPath(bin); err != nil {
		inv.Status = engine.InvocationCrashed
		inv.Error = fmt.Sprintf("%q binary not found in PATH", bin)
		return inv, nil
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, bin, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logx.Debugf("[%s] exec %s %s", s.Name(), bin, strings.Join(args, " "))
	start := time.Now()
	err := cmd.Run()
	inv.Duration = time.Since(start)
	inv.Stderr = tail(stderr.String(), stderrTail)

	if runCtx.Err() == context.DeadlineExceeded {
		// Cancellation killed the process; nothing further is read from it.
		inv.Status = engine.InvocationTimedOut
		inv.Error = fmt.Sprintf("timed out after %s", timeout)
		return inv, nil
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		inv.ExitCode = 0
	case errors.As(err, &exitErr):
		inv.ExitCode = exitErr.ExitCode()
	default:
		inv.Status = engine.InvocationCrashed
		inv.Error = err.Error()
		return inv, nil
	}

	if !s.ExitOK(inv.ExitCode) {
		inv.Status = engine.InvocationCrashed
		inv.Error = fmt.Sprintf("unexpected exit code %d", inv.ExitCode)
		return inv, nil
	}

	findings, parseErr := s.Parse(stdout.Bytes())
	if parseErr != nil {
		inv.Status = engine.InvocationUnparsable
		inv.Error = parseErr.Error()
		return inv, nil
	}

	inv.Status = engine.InvocationSucceeded
	inv.Findings = len(findings)
	return inv, findings
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// CommandScanner wraps another scanner with a user-supplied command template
// from configuration, replacing "{target}" with the target path. Parsing and
// exit-code semantics stay the tool's own.
type CommandScanner struct {
	Scanner
	Template    string
	RunInTarget bool
}

func (c CommandScanner) Command(target string) (string, []string, string) {
	fields := strings.Fields(c.Template)
	if len(fields) == 0 {
		return c.Scanner.Command(target)
	}
	args := make([]string, 0, len(fields)-1)
	for _, f := range fields[1:] {
		args = append(args, strings.ReplaceAll(f, "{target}", target))
	}
	dir := ""
	if c.RunInTarget {
		dir = target
	}
	return fields[0], args, dir
}

// ForName returns the wrapper for a tool identifier. Unknown names are a
// configuration error, surfaced before any scanner runs.
func ForName(name string) (Scanner, error) {
	switch name {
	case "checkov":
		return &CheckovWrapper{}, nil
	case "tfsec":
		return &TfsecWrapper{}, nil
	case "trivy":
		return &TrivyWrapper{}, nil
	case "terraform-validate":
		return &TerraformValidateWrapper{}, nil
	default:
		return nil, fmt.Errorf("unknown tool %q (known: %s)", name, strings.Join(KnownTools, ", "))
	}
}

// KnownTools lists every tool identifier ForName accepts.
var KnownTools = []string{"checkov", "tfsec", "trivy", "terraform-validate"}

// VerifyTarget checks the scan target before any scanner runs: it must exist,
// be a directory, and contain at least one template file.
func VerifyTarget(target string) error {
	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("target path %q: %w", target, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("target path %q is not a directory", target)
	}
	entries, err := os.ReadDir(target)
	if err != nil {
		return fmt.Errorf("target path %q: %w", target, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch {
		case strings.HasSuffix(e.Name(), ".tf"),
			strings.HasSuffix(e.Name(), ".tf.json"),
			strings.HasSuffix(e.Name(), ".yaml"),
			strings.HasSuffix(e.Name(), ".yml"),
			strings.HasSuffix(e.Name(), ".json"):
			return nil
		}
	}
	return fmt.Errorf("target path %q contains no template files", target)
}
