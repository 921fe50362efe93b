package config

import (
	"log"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	pipelineOnce   sync.Once
	pipelineConfig *PipelineConfig
)

// PipelineConfig tunes rasterization and the extraction fan-out.
// Values load from config.yaml when present, then environment overrides.
type PipelineConfig struct {
	// MaxDimension caps the longest edge of a rasterized page, in pixels.
	MaxDimension int `yaml:"maxDimension"`
	// JPEGQuality is the lossy re-encode quality on a 0-1 scale.
	JPEGQuality float64 `yaml:"jpegQuality"`
	// MaxConcurrentExtractions is the global admission ceiling shared by
	// every page of every job.
	MaxConcurrentExtractions int `yaml:"maxConcurrentExtractions"`
	// Upload validation bounds.
	MaxFileSize int64 `yaml:"maxFileSize"`
	MaxPages    int   `yaml:"maxPages"`
}

func GetPipelineConfig() *PipelineConfig {
	pipelineOnce.Do(func() {
		loadEnv()

		pipelineConfig = &PipelineConfig{
			MaxDimension:             1600,
			JPEGQuality:              0.85,
			MaxConcurrentExtractions: 3,
			MaxFileSize:              50 * 1024 * 1024, // 50MB
			MaxPages:                 100,
		}

		path := getEnv("PICKSCAN_CONFIG", "config.yaml")
		if data, err := os.ReadFile(path); err == nil {
			if err := yaml.Unmarshal(data, pipelineConfig); err != nil {
				log.Printf("Warning: ignoring malformed %s: %v", path, err)
			}
		}

		pipelineConfig.MaxDimension = getEnvInt("PIPELINE_MAX_DIMENSION", pipelineConfig.MaxDimension)
		pipelineConfig.JPEGQuality = getEnvFloat("PIPELINE_JPEG_QUALITY", pipelineConfig.JPEGQuality)
		pipelineConfig.MaxConcurrentExtractions = getEnvInt("PIPELINE_MAX_CONCURRENT_EXTRACTIONS", pipelineConfig.MaxConcurrentExtractions)
	})
	return pipelineConfig
}
