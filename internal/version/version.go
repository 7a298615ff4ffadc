package version

// Set at build time with
// -ldflags "-X github.com/opentdf/ctivault/internal/version.Version=..."
var (
	Version     = "dev"
	VersionLong = "dev"
	BuildTime   = "unknown"
)

type VersionStat struct {
	Version     string `json:"version"`
	VersionLong string `json:"versionLong"`
	BuildTime   string `json:"buildTime"`
}

func GetVersion() VersionStat {
	return VersionStat{
		Version:     Version,
		VersionLong: VersionLong,
		BuildTime:   BuildTime,
	}
}
