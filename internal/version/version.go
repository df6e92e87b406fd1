package version

// Value is set at release build time with
// -ldflags "-X yt-allinone/internal/version.Value=v1.2.3".
var Value = "dev"
