package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed clustering.yaml
var clusteringYAML []byte

type Config struct {
	Database   DatabaseConfig
	Detector   DetectorConfig
	Clustering ClusteringConfig
	PhotoPrism PhotoPrismConfig
	Web        WebConfig
}

type DatabaseConfig struct {
	URL           string // PostgreSQL connection URL
	MaxOpenConns  int    // Maximum open connections (default 25)
	MaxIdleConns  int    // Maximum idle connections (default 5)
	HNSWIndexPath string // Path to persist face HNSW index (optional, if empty index is rebuilt on startup)
}

type DetectorConfig struct {
	URL   string // defaults to http://localhost:8000
	Model string // model name for reference only
}

// ClusteringConfig holds the face clustering policy parameters.
// Defaults come from the embedded clustering.yaml and can be overridden
// per deployment via environment variables.
type ClusteringConfig struct {
	Eps              float64 `yaml:"eps"`
	MinSamples       int     `yaml:"min_samples"`
	MaxFacesPerImage int     `yaml:"max_faces_per_image"`
}

type PhotoPrismConfig struct {
	DatabaseURL string // MariaDB DSN for importing an existing PhotoPrism library
}

type WebConfig struct {
	Port int
	Host string
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func Load() *Config {
	var clustering ClusteringConfig
	if err := yaml.Unmarshal(clusteringYAML, &clustering); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded clustering.yaml: " + err.Error())
	}

	clustering.Eps = envFloat("CLUSTER_EPS", clustering.Eps)
	clustering.MinSamples = envInt("CLUSTER_MIN_SAMPLES", clustering.MinSamples)
	clustering.MaxFacesPerImage = envInt("CLUSTER_MAX_FACES", clustering.MaxFacesPerImage)

	return &Config{
		Database: DatabaseConfig{
			URL:           os.Getenv("DATABASE_URL"),
			MaxOpenConns:  envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:  envInt("DATABASE_MAX_IDLE_CONNS", 5),
			HNSWIndexPath: os.Getenv("HNSW_INDEX_PATH"),
		},
		Detector: DetectorConfig{
			URL:   os.Getenv("DETECTOR_URL"),
			Model: os.Getenv("DETECTOR_MODEL"),
		},
		Clustering: clustering,
		PhotoPrism: PhotoPrismConfig{
			DatabaseURL: os.Getenv("PHOTOPRISM_DATABASE_URL"),
		},
		Web: WebConfig{
			Port: envInt("WEB_PORT", 8080),
			Host: envString("WEB_HOST", "0.0.0.0"),
		},
	}
}

// envString reads an environment variable with a fallback default.
func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
