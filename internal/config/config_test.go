package config

import "testing"

func validConfig() Config {
	cfg := Config{HTTP: HTTPConfig{Port: 8080}}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_InvalidPort(t *testing.T) {
	for _, port := range []int{0, -1, 70000} {
		cfg := validConfig()
		cfg.HTTP.Port = port

		if err := cfg.Validate(); err == nil {
			t.Errorf("expected error for port %d", port)
		}
	}
}

func TestValidate_WeightsMustSumToOne(t *testing.T) {
	cfg := validConfig()
	cfg.Synthesis.Weights = ConfidenceWeights{Coverage: 0.5, Retrieval: 0.5, Lexical: 0.5}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for weights summing to 1.5")
	}

	expected := "synthesis.confidence_weights must sum to 1, got 1.500"
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_NegativeWeight(t *testing.T) {
	cfg := validConfig()
	cfg.Synthesis.Weights = ConfidenceWeights{Coverage: 1.2, Retrieval: -0.4, Lexical: 0.2}

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative weight")
	}
}

func TestValidate_ThresholdAboveOne(t *testing.T) {
	cfg := validConfig()
	cfg.Synthesis.AcceptThreshold = 1.5

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for accept_threshold above 1")
	}
}

func TestValidate_MinScoreAboveOne(t *testing.T) {
	cfg := validConfig()
	cfg.Retrieval.MinScore = 1.2

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for min_score above 1")
	}
}

func TestValidate_CollaboratorWithoutBaseURL(t *testing.T) {
	cfg := validConfig()
	cfg.Collaborators = map[string]CollaboratorConfig{
		"market_data": {TimeoutMS: 3000},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for collaborator without base_url")
	}

	expected := "collaborators.market_data.base_url is required"
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 30 {
		t.Errorf("expected WriteTimeoutSec=30, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.Pipeline.QueryDeadlineMS != 15000 {
		t.Errorf("expected QueryDeadlineMS=15000, got %d", cfg.Pipeline.QueryDeadlineMS)
	}
	if cfg.Pipeline.BundleMaxChars != 6000 {
		t.Errorf("expected BundleMaxChars=6000, got %d", cfg.Pipeline.BundleMaxChars)
	}
	if len(cfg.Pipeline.DefaultSymbols) == 0 {
		t.Error("expected default symbols to be populated")
	}
	if cfg.Retrieval.TopK != 5 {
		t.Errorf("expected TopK=5, got %d", cfg.Retrieval.TopK)
	}
	if cfg.Retrieval.MinScore != 0.35 {
		t.Errorf("expected MinScore=0.35, got %f", cfg.Retrieval.MinScore)
	}
	if cfg.Embedding.Dimensions != 384 {
		t.Errorf("expected Dimensions=384, got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Synthesis.MaxTokens != 512 {
		t.Errorf("expected MaxTokens=512, got %d", cfg.Synthesis.MaxTokens)
	}
	if cfg.Synthesis.AcceptThreshold != 0.7 {
		t.Errorf("expected AcceptThreshold=0.7, got %f", cfg.Synthesis.AcceptThreshold)
	}
	want := ConfidenceWeights{Coverage: 0.4, Retrieval: 0.4, Lexical: 0.2}
	if cfg.Synthesis.Weights != want {
		t.Errorf("expected default weights %+v, got %+v", want, cfg.Synthesis.Weights)
	}
	if cfg.Snapshot.Path != "data/index.db" {
		t.Errorf("expected Snapshot.Path='data/index.db', got %q", cfg.Snapshot.Path)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:      HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Pipeline:  PipelineConfig{QueryDeadlineMS: 20000, BundleMaxChars: 4000},
		Retrieval: RetrievalConfig{TopK: 10, MinScore: 0.5},
		Synthesis: SynthesisConfig{
			AcceptThreshold: 0.8,
			Weights:         ConfidenceWeights{Coverage: 0.6, Retrieval: 0.2, Lexical: 0.2},
		},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.Pipeline.QueryDeadlineMS != 20000 {
		t.Errorf("expected QueryDeadlineMS=20000, got %d", cfg.Pipeline.QueryDeadlineMS)
	}
	if cfg.Retrieval.TopK != 10 {
		t.Errorf("expected TopK=10, got %d", cfg.Retrieval.TopK)
	}
	if cfg.Synthesis.AcceptThreshold != 0.8 {
		t.Errorf("expected AcceptThreshold=0.8, got %f", cfg.Synthesis.AcceptThreshold)
	}
	if cfg.Synthesis.Weights.Coverage != 0.6 {
		t.Errorf("expected Coverage=0.6, got %f", cfg.Synthesis.Weights.Coverage)
	}
}

func TestApplyDefaults_CollaboratorTimeout(t *testing.T) {
	cfg := Config{
		Collaborators: map[string]CollaboratorConfig{
			"market_data": {BaseURL: "http://localhost:8001"},
			"speech":      {BaseURL: "http://localhost:8004", TimeoutMS: 8000},
		},
	}
	cfg.ApplyDefaults()

	if got := cfg.Collaborators["market_data"].TimeoutMS; got != 5000 {
		t.Errorf("expected default timeout 5000, got %d", got)
	}
	if got := cfg.Collaborators["speech"].TimeoutMS; got != 8000 {
		t.Errorf("expected configured timeout 8000, got %d", got)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("FINBRIEF_TEST_URL", "http://example.com:9000")

	in := []byte("base_url: ${FINBRIEF_TEST_URL}\nmodel: ${FINBRIEF_TEST_MODEL:-llama3}\nkey: ${FINBRIEF_TEST_UNSET}\n")
	out := string(expandEnvVars(in))

	want := "base_url: http://example.com:9000\nmodel: llama3\nkey: \n"
	if out != want {
		t.Errorf("unexpected expansion:\ngot:  %q\nwant: %q", out, want)
	}
}

func TestExpandEnvVars_SetVariableBeatsDefault(t *testing.T) {
	t.Setenv("FINBRIEF_TEST_MODEL", "qwen2")

	out := string(expandEnvVars([]byte("model: ${FINBRIEF_TEST_MODEL:-llama3}")))
	if out != "model: qwen2" {
		t.Errorf("expected env value to win over default, got %q", out)
	}
}
