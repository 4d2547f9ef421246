package version

import (
	"encoding/json"
	"log/slog"
	"os"
)

// Version is stamped at build time with
// -ldflags "-X github.com/JustinTDCT/Posteract/internal/version.Version=1.2.3".
var Version = ""

type Info struct {
	Version string `json:"version"`
}

// Load prefers the build-time version, then version.json at path, then 0.0.0.
func Load(path string) Info {
	if Version != "" {
		return Info{Version: Version}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Debug("could not read version file", "path", path, "error", err)
		return Info{Version: "0.0.0"}
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil || info.Version == "" {
		slog.Warn("could not parse version file", "path", path, "error", err)
		return Info{Version: "0.0.0"}
	}
	return info
}
