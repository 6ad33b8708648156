package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	// Application
	Version     string
	Environment string
	RunID       string
	LogLevel    string

	// Logdy (lightweight web log viewer)
	LogdyEnabled bool
	LogdyHost    string
	LogdyPort    int

	// Inputs
	RawVideo      string
	DegradedVideo string

	// Outputs
	ResultsDir       string
	VideosDir        string
	PlotsDir         string
	CleanStatsCSV    string
	DegradedStatsCSV string
	ModelsStatsCSV   string
	VideoCodec       string

	// Detector
	// "onnx" runs the model locally through OpenCV DNN, "grpc" sends frames
	// to a remote inference server.
	DetectorBackend string
	ModelName       string
	ModelPath       string
	CompareModels   []ModelSpec
	ConfThreshold   float64
	NMSThreshold    float64
	InputSize       int
	UseCUDA         bool

	// Remote inference
	AIGRPCURL    string
	AIGRPCMethod string
	AITimeout    time.Duration
	JPEGQuality  int

	// Backoff/Jitter for remote inference retries
	AIMaxRetries      int
	AIRetryBackoffMin time.Duration
	AIRetryBackoffMax time.Duration
	AIRetryJitterPct  int

	// Degradation
	BrightnessAlpha float64
	BrightnessBeta  float64
	FogIntensity    float64
	BlurKernel      int
	DustSpots       int
	DustRadius      int
	NoiseSigma      float64
	DegradeSeed     uint64

	// Progress logging cadence in frames
	ProgressEvery int

	// Charts
	PlotDPI int

	// NATS (optional stats events)
	StatsPublishEnabled bool
	NatsURL             string
	NatsConnectTimeout  time.Duration
	NatsReconnectWait   time.Duration
	NatsMaxReconnects   int
	StatsSubject        string
}

// ModelSpec names a set of detector weights for comparison runs.
type ModelSpec struct {
	Name string
	Path string
}

func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("No .env file found or error loading .env file, using environment variables and defaults")
	} else {
		log.Info().Msg("Loaded configuration from .env file")
	}

	resultsDir := getEnv("RESULTS_DIR", "results")

	return &Config{
		// Application
		Version:     getEnv("VERSION", "1.0.0"),
		Environment: getEnv("ENVIRONMENT", "development"),
		RunID:       getEnv("RUN_ID", time.Now().Format("20060102_150405")),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// Logdy
		LogdyEnabled: getEnvBool("LOGDY_ENABLED", false),
		LogdyHost:    getEnv("LOGDY_HOST", "localhost"),
		LogdyPort:    getEnvInt("LOGDY_PORT", 8080),

		// Inputs
		RawVideo:      getEnv("RAW_VIDEO", "data/raw/carss.mp4"),
		DegradedVideo: getEnv("DEGRADED_VIDEO", "data/processed/carss_degraded.mp4"),

		// Outputs
		ResultsDir:       resultsDir,
		VideosDir:        getEnv("VIDEOS_DIR", resultsDir+"/videos"),
		PlotsDir:         getEnv("PLOTS_DIR", resultsDir+"/plots"),
		CleanStatsCSV:    getEnv("CLEAN_STATS_CSV", resultsDir+"/carss_clean_stats.csv"),
		DegradedStatsCSV: getEnv("DEGRADED_STATS_CSV", resultsDir+"/carss_degraded_stats.csv"),
		ModelsStatsCSV:   getEnv("MODELS_STATS_CSV", resultsDir+"/models_comparison_stats.csv"),
		VideoCodec:       getEnv("VIDEO_CODEC", "mp4v"),

		// Detector
		DetectorBackend: getEnv("DETECTOR_BACKEND", "onnx"),
		ModelName:       getEnv("MODEL_NAME", "yolov8n"),
		ModelPath:       getEnv("MODEL_PATH", "yolov8n.onnx"),
		CompareModels:   getEnvModels("COMPARE_MODELS", "yolov8n=yolov8n.onnx,yolov8s=yolov8s.onnx"),
		ConfThreshold:   getEnvFloat("CONF_THRESHOLD", 0.25),
		NMSThreshold:    getEnvFloat("NMS_THRESHOLD", 0.45),
		InputSize:       getEnvInt("INPUT_SIZE", 640),
		UseCUDA:         getEnvBool("USE_CUDA", false),

		// Remote inference
		AIGRPCURL:    getEnv("AI_GRPC_URL", "localhost:50052"),
		AIGRPCMethod: getEnv("AI_GRPC_METHOD", "/harshcond.Detector/Infer"),
		AITimeout:    getEnvDuration("AI_TIMEOUT", 5*time.Second),
		JPEGQuality:  getEnvInt("JPEG_QUALITY", 95),

		AIMaxRetries:      getEnvInt("AI_MAX_RETRIES", 3),
		AIRetryBackoffMin: getEnvDuration("AI_RETRY_BACKOFF_MIN", 200*time.Millisecond),
		AIRetryBackoffMax: getEnvDuration("AI_RETRY_BACKOFF_MAX", 2*time.Second),
		AIRetryJitterPct:  getEnvInt("AI_RETRY_JITTER_PCT", 20),

		// Degradation (harsh industrial environment)
		BrightnessAlpha: getEnvFloat("BRIGHTNESS_ALPHA", 0.7),
		BrightnessBeta:  getEnvFloat("BRIGHTNESS_BETA", -30),
		FogIntensity:    getEnvFloat("FOG_INTENSITY", 0.35),
		BlurKernel:      getEnvInt("BLUR_KERNEL", 13),
		DustSpots:       getEnvInt("DUST_SPOTS", 60),
		DustRadius:      getEnvInt("DUST_RADIUS", 7),
		NoiseSigma:      getEnvFloat("NOISE_SIGMA", 15),
		DegradeSeed:     uint64(getEnvInt("DEGRADE_SEED", 0)), // 0 = seed from clock

		ProgressEvery: getEnvInt("PROGRESS_EVERY", 50),
		PlotDPI:       getEnvInt("PLOT_DPI", 200),

		// NATS
		StatsPublishEnabled: getEnvBool("STATS_PUBLISH_ENABLED", false),
		NatsURL:             getEnv("NATS_URL", "nats://localhost:4222"),
		NatsConnectTimeout:  getEnvDuration("NATS_CONNECT_TIMEOUT", 10*time.Second),
		NatsReconnectWait:   getEnvDuration("NATS_RECONNECT_WAIT", 2*time.Second),
		NatsMaxReconnects:   getEnvInt("NATS_MAX_RECONNECTS", 5),
		StatsSubject:        getEnv("STATS_SUBJECT", "harshcond.stats"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvModels(key, defaultValue string) []ModelSpec {
	return ParseModelSpecs(getEnv(key, defaultValue))
}

// ParseModelSpecs parses a comma separated list of name=path pairs. Entries
// without a name use the weights file name as the model name.
func ParseModelSpecs(value string) []ModelSpec {
	var specs []ModelSpec
	for _, entry := range strings.Split(value, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, path, found := strings.Cut(entry, "=")
		if !found {
			path = name
			name = strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
		}
		specs = append(specs, ModelSpec{Name: strings.TrimSpace(name), Path: strings.TrimSpace(path)})
	}
	return specs
}
