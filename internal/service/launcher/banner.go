package launcher

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/oshokin/bricks-bootstrap/internal/checksum"
	"github.com/oshokin/bricks-bootstrap/internal/domain/manifest"
	"github.com/oshokin/bricks-bootstrap/internal/logger"
	"github.com/oshokin/bricks-bootstrap/internal/service/reconciler"
)

// warningBorder frames the outdated script notice with exclamation marks.
var warningBorder = lipgloss.Border{
	Top:         "!",
	Bottom:      "!",
	Left:        "!",
	Right:       "!",
	TopLeft:     "!",
	TopRight:    "!",
	BottomLeft:  "!",
	BottomRight: "!",
}

// CheckScript compares the invoking script at path with the manifest and
// prints update instructions when it is missing or outdated. The script is
// never modified. It reports whether the script is outdated.
func (l *Launcher) CheckScript(ctx context.Context, path string, ref manifest.ArtifactRef, venvDir string) bool {
	if l.reconciler.Check(path, ref, checksum.Text) == reconciler.StateFresh {
		logger.DebugKV(ctx, "The cip.py script is up-to-date", "path", path)
		return false
	}

	logger.WarnKV(ctx, "The cip.py script is outdated", "path", path, "url", ref.Href)

	_, _ = fmt.Fprintln(l.stdout, UpdateBanner(l.stdout, l.Python(venvDir), path))

	return true
}

// UpdateBanner renders the outdated script notice for w, including the
// command that updates the script in place.
func UpdateBanner(w io.Writer, python, script string) string {
	script = filepath.Clean(script)

	message := strings.Join([]string{
		"The cip.py script in the current project is outdated!",
		"Please, update it as soon as possible using the following command:",
		fmt.Sprintf("  %s %s --update-cip-py --cip-py=%s", python, script, script),
		"",
		"The execution will now continue.",
	}, "\n")

	renderer := lipgloss.NewRenderer(w)

	title := renderer.NewStyle().
		Bold(true).
		Width(lipgloss.Width(message)).
		Align(lipgloss.Center).
		Render("WARNING")

	return renderer.NewStyle().
		Border(warningBorder).
		BorderForeground(lipgloss.Color("11")).
		Padding(0, 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, title, "", message))
}
