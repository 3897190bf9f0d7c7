package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/m4xw311/hybrid/errors"
	"gopkg.in/yaml.v3"
)

const (
	DefaultOllamaURL  = "http://localhost:11434"
	DefaultEmbedModel = "nomic-embed-text"
	DefaultChatModel  = "qwen2.5-coder:14b"
	DefaultQdrantURL  = "http://localhost:6333"
	DefaultTopK       = 5
	DefaultMaxSteps   = 10

	DefaultSystemPrompt = "You are a helpful coding assistant. Use only the provided context."

	DefaultHybridSystemPrompt = "You are a hybrid AI agent.\n\n" +
		"You can:\n" +
		"- Retrieve knowledge from documents.\n" +
		"- Call MCP tools.\n" +
		"- Fetch MCP prompts.\n" +
		"- Read MCP resources.\n" +
		"- Answer directly if no external action is required.\n\n" +
		"Always respond in valid JSON with one action:\n" +
		"retrieve | tool | prompt | resource | final\n\n" +
		"Do not output plain text."
)

// DefaultRAGOnlyTriggers are the phrases that put a question into
// retrieval-only mode. Matching is case-insensitive.
var DefaultRAGOnlyTriggers = []string{
	"use rag",
	"rag only",
	"only rag",
	"do not use mcp",
	"don't use mcp",
	"without mcp",
}

// Retrieval configures the embedding endpoint and the vector store.
type Retrieval struct {
	OllamaURL  string        `yaml:"ollama_url"`
	EmbedModel string        `yaml:"embed_model"`
	QdrantURL  string        `yaml:"qdrant_url"`
	Collection string        `yaml:"collection"`
	TopK       int           `yaml:"top_k"`
	Timeout    time.Duration `yaml:"timeout"`
}

// MCPServer describes the capability server. URL takes precedence over
// Command; neither set means capabilities are unavailable.
type MCPServer struct {
	Name      string        `yaml:"name"`
	URL       string        `yaml:"url"`
	Transport string        `yaml:"transport"` // "streamable" (default) or "sse"
	Command   string        `yaml:"command"`
	Args      []string      `yaml:"args"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Enabled reports whether a transport is configured.
func (m MCPServer) Enabled() bool {
	return strings.TrimSpace(m.URL) != "" || strings.TrimSpace(m.Command) != ""
}

type Toolset struct {
	Name  string   `yaml:"name"`
	Tools []string `yaml:"tools"`
}

// ArgumentRule tells the argument normalizer how to recover a single field
// for a tool that models tend to call with loose arguments.
type ArgumentRule struct {
	Tool  string   `yaml:"tool"`
	Field string   `yaml:"field"`
	Keys  []string `yaml:"keys"`
	Cues  []string `yaml:"cues"`
}

type Config struct {
	LLMClient          string         `yaml:"llm"`
	Model              string         `yaml:"model"`
	OllamaURL          string         `yaml:"ollama_url"`
	LLMTimeout         time.Duration  `yaml:"llm_timeout"`
	MaxSteps           int            `yaml:"max_steps"`
	SystemPrompt       string         `yaml:"system_prompt"`
	HybridSystemPrompt string         `yaml:"hybrid_system_prompt"`
	RAGOnlyTriggers    []string       `yaml:"rag_only_triggers"`
	Retrieval          Retrieval      `yaml:"retrieval"`
	MCP                MCPServer      `yaml:"mcp"`
	Toolsets           []Toolset      `yaml:"toolsets"`
	ArgumentRules      []ArgumentRule `yaml:"argument_rules"`
	LogLevel           string         `yaml:"log_level"`
}

// Default returns a configuration populated with built-in defaults only.
func Default() *Config {
	cfg := &Config{
		LLMClient:          "ollama",
		Model:              DefaultChatModel,
		OllamaURL:          DefaultOllamaURL,
		LLMTimeout:         2 * time.Minute,
		MaxSteps:           DefaultMaxSteps,
		SystemPrompt:       DefaultSystemPrompt,
		HybridSystemPrompt: DefaultHybridSystemPrompt,
		RAGOnlyTriggers:    append([]string(nil), DefaultRAGOnlyTriggers...),
		Retrieval: Retrieval{
			OllamaURL:  DefaultOllamaURL,
			EmbedModel: DefaultEmbedModel,
			QdrantURL:  DefaultQdrantURL,
			Collection: defaultCollection(),
			TopK:       DefaultTopK,
			Timeout:    2 * time.Minute,
		},
		MCP:      MCPServer{Name: "mcp", Timeout: time.Minute},
		LogLevel: "info",
	}
	return cfg
}

// LoadConfig loads configuration from the user's home directory and the current
// working directory, with the latter taking precedence. Environment variables
// override both.
func LoadConfig() (*Config, error) {
	cfg := Default()

	// Load user-level config first
	home, err := os.UserHomeDir()
	if err == nil {
		userConfigPath := filepath.Join(home, ".hybrid", "config.yaml")
		if _, err := os.Stat(userConfigPath); err == nil {
			if err := loadFromFile(userConfigPath, cfg); err != nil {
				return nil, errors.Wrapf(err, "error loading user config")
			}
		}
	}

	// Load project-level config, overriding user-level
	wd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrapf(err, "could not get working directory")
	}
	projectConfigPath := filepath.Join(wd, ".hybrid", "config.yaml")
	if _, err := os.Stat(projectConfigPath); err == nil {
		if err := loadFromFile(projectConfigPath, cfg); err != nil {
			return nil, errors.Wrapf(err, "error loading project config")
		}
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.normalize()
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	// Fields present in the YAML overwrite what is already set, so the
	// project file replaces user-level values key by key.
	return yaml.Unmarshal(data, cfg)
}

// applyEnv overrides configuration with the environment variables the
// indexing side of the system also understands.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.Wrapf(err, "invalid %s", key)
		}
		*dst = n
		return nil
	}

	str("HYBRID_LLM", &cfg.LLMClient)
	str("HYBRID_LOG_LEVEL", &cfg.LogLevel)
	str("OLLAMA_URL", &cfg.OllamaURL)
	str("OLLAMA_URL", &cfg.Retrieval.OllamaURL)
	str("OLLAMA_CHAT_MODEL", &cfg.Model)
	str("OLLAMA_EMBED_MODEL", &cfg.Retrieval.EmbedModel)
	str("QDRANT_URL", &cfg.Retrieval.QdrantURL)
	str("QDRANT_COLLECTION", &cfg.Retrieval.Collection)
	str("RAG_SYSTEM_PROMPT", &cfg.SystemPrompt)
	str("RAG_HYBRID_SYSTEM_PROMPT", &cfg.HybridSystemPrompt)
	str("MCP_URL", &cfg.MCP.URL)
	str("MCP_COMMAND", &cfg.MCP.Command)
	if v, ok := lookup("MCP_ARGS"); ok && strings.TrimSpace(v) != "" {
		cfg.MCP.Args = strings.Fields(v)
	}
	if err := num("RAG_TOP_K", &cfg.Retrieval.TopK); err != nil {
		return err
	}
	return num("RAG_AGENT_MAX_STEPS", &cfg.MaxSteps)
}

func (c *Config) normalize() {
	if c.MaxSteps < 1 {
		c.MaxSteps = 1
	}
	if c.Retrieval.TopK < 1 {
		c.Retrieval.TopK = DefaultTopK
	}
	if c.Retrieval.Collection == "" {
		c.Retrieval.Collection = defaultCollection()
	}
	if len(c.RAGOnlyTriggers) == 0 {
		c.RAGOnlyTriggers = append([]string(nil), DefaultRAGOnlyTriggers...)
	}
}

// GetToolset finds a toolset by name. Returns the "default" toolset if the
// named one is not found or if an empty name is provided. A configuration
// without any toolsets yields nil, which allows every tool.
func (c *Config) GetToolset(name string) (*Toolset, error) {
	if len(c.Toolsets) == 0 {
		return nil, nil
	}
	if name == "" {
		name = "default"
	}
	for _, ts := range c.Toolsets {
		if ts.Name == name {
			return &ts, nil
		}
	}
	if name == "default" {
		return nil, errors.New("mandatory 'default' toolset not found in configuration")
	}
	// Fallback to default if a specific toolset was requested but not found
	return c.GetToolset("default")
}

func defaultCollection() string {
	repo := "default"
	if wd, err := os.Getwd(); err == nil && filepath.Base(wd) != "" {
		repo = filepath.Base(wd)
	}
	return sanitizeCollectionName(repo) + "_rag_chunks"
}

func sanitizeCollectionName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r < 128 && (r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' || r == '-'):
			b.WriteRune(r)
		case r == '.' || r == ' ' || r == '\t' || r == '\n':
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "default"
	}
	return b.String()
}
