package bootstrap

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
)

// Names of the flags the bootstrap understands itself.
const (
	flagVenvDirectory = "venv-directory"
	flagHelp          = "bootstrap-py-help"
	flagUpdateCipPy   = "update-cip-py"
	flagCipPy         = "cip-py"
	flagConanWorkarea = "conan-workarea"
)

// ErrUsage is returned for malformed bootstrap flags.
var ErrUsage = errors.New("invalid arguments")

// Arguments are the parsed command line of one invocation.
type Arguments struct {
	// VenvDir is the absolute virtual environment directory.
	VenvDir string
	// Help requests the bootstrap usage text.
	Help bool
	// UpdateCipPy requests an update of the cip.py script only.
	UpdateCipPy bool
	// CipPy is the absolute path of the invoking cip.py script.
	CipPy string
	// Workarea is the absolute conan workarea directory.
	Workarea string
	// Forwarded holds every argument not understood by the bootstrap, in order.
	Forwarded []string
}

// NewFlagSet declares the bootstrap flags with defaults relative to repoRoot.
// The set is used for parsing the recognized subset and for the usage text.
func NewFlagSet(repoRoot string) (*pflag.FlagSet, *Arguments) {
	var (
		args  = new(Arguments)
		flags = pflag.NewFlagSet("bricks-bootstrap", pflag.ContinueOnError)
	)

	flags.SortFlags = false

	flags.StringVar(&args.VenvDir, flagVenvDirectory, filepath.Join(repoRoot, "venv"),
		"Specify the location of virtual environment location")
	flags.BoolVar(&args.Help, flagHelp, false,
		"Define help for the bootstrap script itself")
	flags.BoolVar(&args.UpdateCipPy, flagUpdateCipPy, false,
		"Update the running cip.py script")
	flags.StringVar(&args.CipPy, flagCipPy, filepath.Join(repoRoot, "scripts", "cip.py"),
		"Path to cip.py script to be updated")
	flags.StringVar(&args.Workarea, flagConanWorkarea, filepath.Join(repoRoot, "conan_workarea"),
		"Specify the location of conan workarea")

	return flags, args
}

// ParseArgs splits raw into the bootstrap's own flags and the arguments
// forwarded to the executable. Both "--flag value" and "--flag=value" are
// accepted; "--" and everything after it is forwarded verbatim.
func ParseArgs(repoRoot string, raw []string) (*Arguments, error) {
	flags, args := NewFlagSet(repoRoot)

	known, forwarded, err := splitArgs(flags, raw)
	if err != nil {
		return nil, err
	}

	if err = flags.Parse(known); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUsage, err)
	}

	args.Forwarded = forwarded
	args.CipPy = scriptPath(args.CipPy)

	for _, path := range []*string{&args.VenvDir, &args.CipPy, &args.Workarea} {
		abs, absErr := filepath.Abs(*path)
		if absErr != nil {
			return nil, fmt.Errorf("resolve %s: %w", *path, absErr)
		}

		*path = abs
	}

	return args, nil
}

// splitArgs separates tokens of flags declared in flags from the rest,
// keeping the relative order of both.
func splitArgs(flags *pflag.FlagSet, raw []string) (known, forwarded []string, err error) {
	for i := 0; i < len(raw); i++ {
		token := raw[i]

		if token == "--" {
			forwarded = append(forwarded, raw[i:]...)
			break
		}

		if !strings.HasPrefix(token, "--") {
			forwarded = append(forwarded, token)
			continue
		}

		name, _, hasValue := strings.Cut(strings.TrimPrefix(token, "--"), "=")

		flag := flags.Lookup(name)
		if flag == nil {
			forwarded = append(forwarded, token)
			continue
		}

		known = append(known, token)

		if hasValue || flag.NoOptDefVal != "" {
			continue
		}

		if i+1 >= len(raw) || strings.HasPrefix(raw[i+1], "--") {
			return nil, nil, fmt.Errorf("%w: --%s expects a value", ErrUsage, name)
		}

		i++
		known = append(known, raw[i])
	}

	return known, forwarded, nil
}

// scriptPath points a --cip-py value at the Python script, whatever the
// extension of the given path.
func scriptPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".py"
}
