package temporalengine

import (
	"os"
	"strings"
)

// Config is the deployment-level detail Engine needs to dial Temporal,
// read from the conventional TEMPORAL_* environment variables — this is
// ambient infrastructure wiring, not domain state, so there is no reason
// to invent a sagacore-specific naming scheme.
type Config struct {
	Address   string
	Namespace string
	TaskQueue string

	ClientCertPath string
	ClientKeyPath  string
	ClientCAPath   string
}

func LoadConfig() Config {
	return Config{
		Address:   strings.TrimSpace(os.Getenv("TEMPORAL_ADDRESS")),
		Namespace: orDefault(strings.TrimSpace(os.Getenv("TEMPORAL_NAMESPACE")), "sagacore"),
		TaskQueue: orDefault(strings.TrimSpace(os.Getenv("TEMPORAL_TASK_QUEUE")), "sagacore"),

		ClientCertPath: strings.TrimSpace(os.Getenv("TEMPORAL_CLIENT_CERT_PATH")),
		ClientKeyPath:  strings.TrimSpace(os.Getenv("TEMPORAL_CLIENT_KEY_PATH")),
		ClientCAPath:   strings.TrimSpace(os.Getenv("TEMPORAL_CLIENT_CA_PATH")),
	}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
