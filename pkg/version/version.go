package version

// Current is the application version. Defaults to "dev"; release builds
// overwrite it with -ldflags.
var Current = "dev"

// AppName is the service identity used in logs and telemetry.
const AppName = "WasteLens"
