// Package config provides configuration management for the topicseg agent.
// Values come from defaults, an optional YAML file and environment variables,
// in increasing order of precedence. A .env file in the working directory is
// loaded into the environment first.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// Default values
	DefaultPort     = 8787
	DefaultLogLevel = "info"
	DefaultDataDir  = ".topicseg"

	// Environment variable names
	EnvConfigFile = "TOPICSEG_CONFIG_FILE"
	EnvPort       = "TOPICSEG_PORT"
	EnvLogLevel   = "TOPICSEG_LOG_LEVEL"
	EnvLogFile    = "TOPICSEG_LOG_FILE"
	EnvDataDir    = "TOPICSEG_DATA_DIR"
	EnvHeadless   = "TOPICSEG_HEADLESS"

	// LLM environment variable names
	EnvLLMBaseURL = "TOPICSEG_LLM_BASE_URL"
	EnvLLMAPIKey  = "GROQ_API_KEY"
	EnvLLMModel   = "TOPICSEG_LLM_MODEL"
	EnvLLMTimeout = "TOPICSEG_LLM_TIMEOUT"

	// Segmentation environment variable names
	EnvChunkDuration     = "TOPICSEG_CHUNK_DURATION"
	EnvOverlapDuration   = "TOPICSEG_OVERLAP_DURATION"
	EnvMaxChars          = "TOPICSEG_MAX_CHARS"
	EnvAdjacency         = "TOPICSEG_ADJACENCY_THRESHOLD"
	EnvMinCoverage       = "TOPICSEG_MIN_COVERAGE"
	EnvMaxConcurrentRuns = "TOPICSEG_MAX_CONCURRENT_RUNS"

	// Cache environment variable names
	EnvRedisURL = "TOPICSEG_REDIS_URL"
	EnvRedisTTL = "TOPICSEG_REDIS_TTL"

	// Transcript environment variable names
	EnvTranscriptPython  = "TOPICSEG_TRANSCRIPT_PYTHON"
	EnvTranscriptModule  = "TOPICSEG_TRANSCRIPT_MODULE"
	EnvTranscriptTimeout = "TOPICSEG_TRANSCRIPT_TIMEOUT"
	EnvTranscriptDir     = "TOPICSEG_TRANSCRIPT_DIR"

	// Database filename
	DBFilename = "topicseg.db"

	DefaultLLMBaseURL        = "https://api.groq.com/openai/v1"
	DefaultLLMModel          = "llama-3.3-70b-versatile"
	DefaultLLMTimeout        = 120 * time.Second
	DefaultChunkDuration     = 3600.0
	DefaultOverlapDuration   = 300.0
	DefaultMaxChars          = 15000
	DefaultAdjacency         = 300.0
	DefaultMinCoverage       = 0.95
	DefaultMaxConcurrentRuns = 2
	DefaultRedisTTL          = 24 * time.Hour
	DefaultTranscriptModule  = "youtube_transcript_api"
	DefaultTranscriptTimeout = 60 * time.Second
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	LogFile() string
	DataDir() string
	DBPath() string
	Headless() bool

	LLMBaseURL() string
	LLMAPIKey() string
	LLMModel() string
	LLMTimeout() time.Duration

	ChunkDuration() float64
	OverlapDuration() float64
	MaxChars() int
	AdjacencyThreshold() float64
	MinCoverage() float64
	MaxConcurrentRuns() int

	RedisURL() string
	RedisTTL() time.Duration

	TranscriptPython() string
	TranscriptModule() string
	TranscriptTimeout() time.Duration
	TranscriptDir() string
}

// fileConfig mirrors the optional YAML configuration file.
type fileConfig struct {
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
	DataDir  string `yaml:"data_dir"`
	Headless *bool  `yaml:"headless"`

	LLM struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
		Model   string `yaml:"model"`
		Timeout string `yaml:"timeout"`
	} `yaml:"llm"`

	Segmentation struct {
		ChunkDuration      float64  `yaml:"chunk_duration"`
		OverlapDuration    *float64 `yaml:"overlap_duration"`
		MaxChars           int      `yaml:"max_chars"`
		AdjacencyThreshold float64  `yaml:"adjacency_threshold"`
		MinCoverage        float64  `yaml:"min_coverage"`
		MaxConcurrentRuns  int      `yaml:"max_concurrent_runs"`
	} `yaml:"segmentation"`

	Redis struct {
		URL string `yaml:"url"`
		TTL string `yaml:"ttl"`
	} `yaml:"redis"`

	Transcripts struct {
		Python  string `yaml:"python"`
		Module  string `yaml:"module"`
		Timeout string `yaml:"timeout"`
		Dir     string `yaml:"dir"`
	} `yaml:"transcripts"`
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port     int
	logLevel string
	logFile  string
	dataDir  string
	headless bool

	llmBaseURL string
	llmAPIKey  string
	llmModel   string
	llmTimeout time.Duration

	chunkDuration     float64
	overlapDuration   float64
	maxChars          int
	adjacency         float64
	minCoverage       float64
	maxConcurrentRuns int

	redisURL string
	redisTTL time.Duration

	transcriptPython  string
	transcriptModule  string
	transcriptTimeout time.Duration
	transcriptDir     string
}

// New creates a new EnvConfig with defaults, the optional YAML file and
// environment variable overrides
func New() (*EnvConfig, error) {
	// a missing .env is normal
	_ = godotenv.Load()

	cfg := &EnvConfig{
		port:              DefaultPort,
		logLevel:          DefaultLogLevel,
		dataDir:           defaultDataDir(),
		llmBaseURL:        DefaultLLMBaseURL,
		llmModel:          DefaultLLMModel,
		llmTimeout:        DefaultLLMTimeout,
		chunkDuration:     DefaultChunkDuration,
		overlapDuration:   DefaultOverlapDuration,
		maxChars:          DefaultMaxChars,
		adjacency:         DefaultAdjacency,
		minCoverage:       DefaultMinCoverage,
		maxConcurrentRuns: DefaultMaxConcurrentRuns,
		redisTTL:          DefaultRedisTTL,
		transcriptModule:  DefaultTranscriptModule,
		transcriptTimeout: DefaultTranscriptTimeout,
	}

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *EnvConfig) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if fc.Port != 0 {
		c.port = fc.Port
	}
	setString(&c.logLevel, fc.LogLevel)
	setString(&c.logFile, fc.LogFile)
	setString(&c.dataDir, fc.DataDir)
	if fc.Headless != nil {
		c.headless = *fc.Headless
	}

	setString(&c.llmBaseURL, fc.LLM.BaseURL)
	setString(&c.llmAPIKey, fc.LLM.APIKey)
	setString(&c.llmModel, fc.LLM.Model)
	if err := setDuration(&c.llmTimeout, fc.LLM.Timeout, "llm.timeout"); err != nil {
		return err
	}

	s := fc.Segmentation
	if s.ChunkDuration != 0 {
		c.chunkDuration = s.ChunkDuration
	}
	if s.OverlapDuration != nil {
		c.overlapDuration = *s.OverlapDuration
	}
	if s.MaxChars != 0 {
		c.maxChars = s.MaxChars
	}
	if s.AdjacencyThreshold != 0 {
		c.adjacency = s.AdjacencyThreshold
	}
	if s.MinCoverage != 0 {
		c.minCoverage = s.MinCoverage
	}
	if s.MaxConcurrentRuns != 0 {
		c.maxConcurrentRuns = s.MaxConcurrentRuns
	}

	setString(&c.redisURL, fc.Redis.URL)
	if err := setDuration(&c.redisTTL, fc.Redis.TTL, "redis.ttl"); err != nil {
		return err
	}

	setString(&c.transcriptPython, fc.Transcripts.Python)
	setString(&c.transcriptModule, fc.Transcripts.Module)
	setString(&c.transcriptDir, fc.Transcripts.Dir)
	return setDuration(&c.transcriptTimeout, fc.Transcripts.Timeout, "transcripts.timeout")
}

func (c *EnvConfig) loadEnv() error {
	// Override port from environment
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		c.port = port
	}

	setString(&c.logLevel, os.Getenv(EnvLogLevel))
	setString(&c.logFile, os.Getenv(EnvLogFile))
	setString(&c.dataDir, os.Getenv(EnvDataDir))
	if h := os.Getenv(EnvHeadless); h != "" {
		headless, err := strconv.ParseBool(h)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvHeadless, err)
		}
		c.headless = headless
	}

	setString(&c.llmBaseURL, os.Getenv(EnvLLMBaseURL))
	setString(&c.llmAPIKey, os.Getenv(EnvLLMAPIKey))
	setString(&c.llmModel, os.Getenv(EnvLLMModel))
	if err := setDuration(&c.llmTimeout, os.Getenv(EnvLLMTimeout), EnvLLMTimeout); err != nil {
		return err
	}

	for _, f := range []struct {
		env string
		dst *float64
	}{
		{EnvChunkDuration, &c.chunkDuration},
		{EnvOverlapDuration, &c.overlapDuration},
		{EnvAdjacency, &c.adjacency},
		{EnvMinCoverage, &c.minCoverage},
	} {
		if v := os.Getenv(f.env); v != "" {
			n, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", f.env, err)
			}
			*f.dst = n
		}
	}

	for _, f := range []struct {
		env string
		dst *int
	}{
		{EnvMaxChars, &c.maxChars},
		{EnvMaxConcurrentRuns, &c.maxConcurrentRuns},
	} {
		if v := os.Getenv(f.env); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", f.env, err)
			}
			*f.dst = n
		}
	}

	setString(&c.redisURL, os.Getenv(EnvRedisURL))
	if err := setDuration(&c.redisTTL, os.Getenv(EnvRedisTTL), EnvRedisTTL); err != nil {
		return err
	}

	setString(&c.transcriptPython, os.Getenv(EnvTranscriptPython))
	setString(&c.transcriptModule, os.Getenv(EnvTranscriptModule))
	setString(&c.transcriptDir, os.Getenv(EnvTranscriptDir))
	return setDuration(&c.transcriptTimeout, os.Getenv(EnvTranscriptTimeout), EnvTranscriptTimeout)
}

func (c *EnvConfig) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port %d: must be between 1 and 65535", c.port)
	}
	if c.chunkDuration <= 0 {
		return errors.New("chunk duration must be positive")
	}
	if c.overlapDuration < 0 || c.overlapDuration >= c.chunkDuration {
		return fmt.Errorf("overlap %.0fs must be non-negative and shorter than chunk %.0fs", c.overlapDuration, c.chunkDuration)
	}
	if c.maxChars <= 0 {
		return errors.New("max chars must be positive")
	}
	if c.minCoverage <= 0 || c.minCoverage > 1 {
		return fmt.Errorf("min coverage %v must be in (0, 1]", c.minCoverage)
	}
	if c.maxConcurrentRuns < 1 {
		return errors.New("max concurrent runs must be at least 1")
	}
	return nil
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v, name string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*dst = d
	return nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// LogFile returns the rotating log file path, empty for stdout only
func (c *EnvConfig) LogFile() string {
	return c.logFile
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// Headless reports whether to run without the system tray
func (c *EnvConfig) Headless() bool {
	return c.headless
}

func (c *EnvConfig) LLMBaseURL() string {
	return c.llmBaseURL
}

// LLMAPIKey returns the inference API key, empty to use the offline segmenter
func (c *EnvConfig) LLMAPIKey() string {
	return c.llmAPIKey
}

func (c *EnvConfig) LLMModel() string {
	return c.llmModel
}

func (c *EnvConfig) LLMTimeout() time.Duration {
	return c.llmTimeout
}

// ChunkDuration returns the chunk length in seconds
func (c *EnvConfig) ChunkDuration() float64 {
	return c.chunkDuration
}

// OverlapDuration returns the overlap between consecutive chunks in seconds
func (c *EnvConfig) OverlapDuration() float64 {
	return c.overlapDuration
}

// MaxChars returns the per-window character budget
func (c *EnvConfig) MaxChars() int {
	return c.maxChars
}

// AdjacencyThreshold returns the merge adjacency window in seconds
func (c *EnvConfig) AdjacencyThreshold() float64 {
	return c.adjacency
}

func (c *EnvConfig) MinCoverage() float64 {
	return c.minCoverage
}

func (c *EnvConfig) MaxConcurrentRuns() int {
	return c.maxConcurrentRuns
}

// RedisURL returns the hot cache URL, empty to disable it
func (c *EnvConfig) RedisURL() string {
	return c.redisURL
}

func (c *EnvConfig) RedisTTL() time.Duration {
	return c.redisTTL
}

func (c *EnvConfig) TranscriptPython() string {
	return c.transcriptPython
}

func (c *EnvConfig) TranscriptModule() string {
	return c.transcriptModule
}

func (c *EnvConfig) TranscriptTimeout() time.Duration {
	return c.transcriptTimeout
}

// TranscriptDir returns the directory of pre-fetched <video_id>.json
// transcripts, empty when unused
func (c *EnvConfig) TranscriptDir() string {
	return c.transcriptDir
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
