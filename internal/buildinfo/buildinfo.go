// Package buildinfo prints the banner and build metadata shown on startup.
// The variables are set with -ldflags "-X ...".
package buildinfo

import (
	"fmt"
	"io"

	"github.com/common-nighthawk/go-figure"
)

var (
	buildVersion = "N/A"
	buildDate    = "N/A"
	buildCommit  = "N/A"
)

// PrintBanner writes an ASCII-art title followed by the build data.
func PrintBanner(w io.Writer, title string) {
	fig := figure.NewFigure(title, "cybermedium", true)
	fmt.Fprintln(w, fig.String())
	PrintBuildData(w)
}

func PrintBuildData(w io.Writer) {
	fmt.Fprintf(w, "Build version: %s\n", buildVersion)
	fmt.Fprintf(w, "Build date: %s\n", buildDate)
	fmt.Fprintf(w, "Build commit: %s\n", buildCommit)
}
