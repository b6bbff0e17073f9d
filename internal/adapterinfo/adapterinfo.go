package adapterinfo

// Metadata captures static identifiers for the daemon. Centralising the values
// keeps the CLI, the startup announcement and the health service in sync.
type Metadata struct {
	Name        string
	BinaryName  string
	Slug        string
	Description string
	Version     string
}

// Info describes the current daemon.
var Info = Metadata{
	Name:        "Nupi PCM Transcription Daemon",
	BinaryName:  "pcm-daemon",
	Slug:        "stt-pcm-daemon",
	Description: "Resident speech-to-text daemon serving raw PCM transcription over stdio.",
	Version:     "0.3.0",
}

// Version returns the daemon release version.
func Version() string {
	return Info.Version
}

// HealthService is the gRPC health service name reported by the daemon.
func HealthService() string {
	return "nupi." + Info.Slug
}
