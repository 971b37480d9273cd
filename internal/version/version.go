// Package version reports build information for Teide binaries.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

const (
	unknown     = "unknown"
	shortCommit = 7
	arrowModule = "github.com/apache/arrow-go/v18"
)

// Set by -ldflags "-X github.com/paveg/teide/internal/version.Version=...".
var (
	Version   = "dev"
	BuildDate = unknown
	GitCommit = unknown
	GitTag    = unknown
	GoVersion = runtime.Version()
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version      string    `json:"version"`
	BuildDate    string    `json:"build_date"`
	GitCommit    string    `json:"git_commit"`
	GitTag       string    `json:"git_tag"`
	GoVersion    string    `json:"go_version"`
	BuildTime    time.Time `json:"build_time"`
	Dirty        bool      `json:"dirty"`
	Module       string    `json:"module,omitempty"`
	ArrowVersion string    `json:"arrow_version,omitempty"`
	Deps         []Module  `json:"deps,omitempty"`
}

// Module is one entry from the binary's dependency list.
type Module struct {
	Path    string `json:"path"`
	Version string `json:"version"`
}

// Info collects the ldflags variables and the runtime's embedded module list.
func Info() BuildInfo {
	built, err := time.Parse(time.RFC3339, BuildDate)
	if err != nil {
		built = time.Now()
	}
	info := BuildInfo{
		Version:   Version,
		BuildDate: BuildDate,
		GitCommit: GitCommit,
		GitTag:    GitTag,
		GoVersion: GoVersion,
		BuildTime: built,
		Dirty:     strings.HasSuffix(GitCommit, "-dirty"),
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	info.Module = bi.Main.Path
	for _, dep := range bi.Deps {
		m := Module{Path: dep.Path, Version: dep.Version}
		if dep.Replace != nil {
			m.Version = dep.Replace.Version
		}
		if m.Path == arrowModule {
			info.ArrowVersion = m.Version
		}
		info.Deps = append(info.Deps, m)
	}
	return info
}

// String renders the human-readable `teide version` output.
func (b BuildInfo) String() string {
	var sb strings.Builder
	sb.WriteString("Teide columnar query engine\n")
	fmt.Fprintf(&sb, "Version: %s", b.Version)
	if b.GitTag != unknown && b.GitTag != b.Version {
		fmt.Fprintf(&sb, " (%s)", b.GitTag)
	}
	if b.Dirty {
		sb.WriteString(" (dirty)")
	}
	sb.WriteByte('\n')

	if b.BuildDate != unknown {
		fmt.Fprintf(&sb, "Build Date: %s\n", b.BuildDate)
	}
	if b.GitCommit != unknown {
		commit := b.GitCommit
		if len(commit) > shortCommit {
			commit = commit[:shortCommit]
		}
		fmt.Fprintf(&sb, "Git Commit: %s\n", commit)
	}
	fmt.Fprintf(&sb, "Go Version: %s\n", b.GoVersion)
	if b.ArrowVersion != "" {
		fmt.Fprintf(&sb, "Arrow: %s\n", b.ArrowVersion)
	}
	if b.Module != "" {
		fmt.Fprintf(&sb, "Module: %s\n", b.Module)
	}
	return sb.String()
}

// JSON renders b for `teide version --json`.
func (b BuildInfo) JSON() ([]byte, error) {
	return json.MarshalIndent(b, "", "  ")
}

// UserAgent identifies Teide to object stores.
func UserAgent() string {
	return "teide/" + Version
}

// IsRelease reports whether Version is a tagged release without a
// pre-release suffix.
func IsRelease() bool {
	return Version != "dev" && !strings.Contains(Version, "-")
}

// IsPreRelease reports alpha, beta and rc builds.
func IsPreRelease() bool {
	for _, tag := range []string{"-alpha", "-beta", "-rc"} {
		if strings.Contains(Version, tag) {
			return true
		}
	}
	return false
}

// SemVer is a parsed [v]MAJOR.MINOR.PATCH[-PRE][+BUILD] version.
type SemVer struct {
	Major      int
	Minor      int
	Patch      int
	PreRelease string
	Build      string
}

// ParseSemVer parses s. A leading "v" is accepted.
func ParseSemVer(s string) (*SemVer, error) {
	if s == "" {
		return nil, fmt.Errorf("version string cannot be empty")
	}
	rest := strings.TrimPrefix(s, "v")

	var v SemVer
	rest, v.Build, _ = strings.Cut(rest, "+")
	rest, v.PreRelease, _ = strings.Cut(rest, "-")

	parts := strings.Split(rest, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("invalid version format: %s", rest)
	}
	fields := []*int{&v.Major, &v.Minor, &v.Patch}
	names := []string{"major", "minor", "patch"}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid %s version: %s", names[i], p)
		}
		*fields[i] = n
	}
	return &v, nil
}

func (s *SemVer) String() string {
	out := fmt.Sprintf("%d.%d.%d", s.Major, s.Minor, s.Patch)
	if s.PreRelease != "" {
		out += "-" + s.PreRelease
	}
	if s.Build != "" {
		out += "+" + s.Build
	}
	return out
}

// Compare returns -1, 0 or 1. A release sorts after any of its pre-releases
// and build metadata is ignored.
func (s *SemVer) Compare(other *SemVer) int {
	for _, d := range [][2]int{{s.Major, other.Major}, {s.Minor, other.Minor}, {s.Patch, other.Patch}} {
		if d[0] != d[1] {
			if d[0] > d[1] {
				return 1
			}
			return -1
		}
	}
	switch {
	case s.PreRelease == other.PreRelease:
		return 0
	case s.PreRelease == "":
		return 1
	case other.PreRelease == "":
		return -1
	}
	return strings.Compare(s.PreRelease, other.PreRelease)
}
