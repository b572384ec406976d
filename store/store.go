// Package store provides the agent and credential sources the gateway reads
// at session start. The file-backed implementations load YAML once and serve
// lookups from memory; Reload picks up edits without a restart.
package store

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/goccy/go-yaml"

	"github.com/bt-bridge/voice-gateway/shared"
)

// Agent is one configured voice agent as persisted in the agent file.
type Agent struct {
	Id               string   `yaml:"id"`
	UserId           string   `yaml:"user_id"`
	Name             string   `yaml:"name"`
	Instructions     string   `yaml:"instructions"`
	EnabledTools     []string `yaml:"enabled_tools"`
	Language         string   `yaml:"language"`
	Tier             string   `yaml:"tier"`
	Active           bool     `yaml:"active"`
	EnableRecording  bool     `yaml:"enable_recording"`
	EnableTranscript bool     `yaml:"enable_transcript"`
}

// AgentSource resolves agent ids to their configuration. Agent returns an
// error wrapping shared.ErrAgentNotFound when the id is unknown.
type AgentSource interface {
	Agent(ctx context.Context, agentId string) (*Agent, error)
}

// CredentialSource resolves per-user upstream API keys. APIKey returns the
// empty string, not an error, when the user has no stored key.
type CredentialSource interface {
	APIKey(ctx context.Context, userId string) (string, error)
}

type agentFile struct {
	Agents []*Agent `yaml:"agents"`
}

// FileAgentSource serves agents from a YAML file.
type FileAgentSource struct {
	path string

	mu     sync.RWMutex
	agents map[string]*Agent
}

var _ AgentSource = (*FileAgentSource)(nil)

func NewFileAgentSource(path string) (*FileAgentSource, error) {
	s := &FileAgentSource{path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the backing file. The previous table stays in place when
// the read or parse fails.
func (s *FileAgentSource) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("reading agent file: %w", err)
	}
	var file agentFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing agent file: %w", err)
	}
	agents := make(map[string]*Agent, len(file.Agents))
	for _, agent := range file.Agents {
		if agent.Id == "" {
			return fmt.Errorf("agent %q has no id", agent.Name)
		}
		if _, dup := agents[agent.Id]; dup {
			return fmt.Errorf("duplicate agent id: %s", agent.Id)
		}
		agents[agent.Id] = agent
	}
	s.mu.Lock()
	s.agents = agents
	s.mu.Unlock()
	return nil
}

func (s *FileAgentSource) Agent(_ context.Context, agentId string) (*Agent, error) {
	s.mu.RLock()
	agent, ok := s.agents[agentId]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrAgentNotFound, agentId)
	}
	copied := *agent
	return &copied, nil
}

type credentialFile struct {
	Keys map[string]string `yaml:"keys"`
}

// FileCredentialSource serves per-user API keys from a YAML file keyed by
// user id.
type FileCredentialSource struct {
	mu   sync.RWMutex
	keys map[string]string
	path string
}

var _ CredentialSource = (*FileCredentialSource)(nil)

func NewFileCredentialSource(path string) (*FileCredentialSource, error) {
	s := &FileCredentialSource{path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileCredentialSource) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("reading credential file: %w", err)
	}
	var file credentialFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing credential file: %w", err)
	}
	s.mu.Lock()
	s.keys = file.Keys
	s.mu.Unlock()
	return nil
}

func (s *FileCredentialSource) APIKey(_ context.Context, userId string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.keys[userId], nil
}

// StaticAgents is a fixed in-memory agent source.
type StaticAgents map[string]*Agent

var _ AgentSource = (StaticAgents)(nil)

func (s StaticAgents) Agent(_ context.Context, agentId string) (*Agent, error) {
	agent, ok := s[agentId]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrAgentNotFound, agentId)
	}
	copied := *agent
	return &copied, nil
}

// StaticCredentials is a fixed in-memory credential source.
type StaticCredentials map[string]string

var _ CredentialSource = (StaticCredentials)(nil)

func (s StaticCredentials) APIKey(_ context.Context, userId string) (string, error) {
	return s[userId], nil
}
