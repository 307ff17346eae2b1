package pol

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/deepnoodle-ai/deploy"
)

// summaryTimeFormat is used in summary and backup file names
const summaryTimeFormat = "20060102_150405"

// Summary is the record written after a successful deployment. The private
// key is never included.
type Summary struct {
	Timestamp    string            `json:"timestamp"`
	Config       Config            `json:"config"`
	Contracts    map[string]string `json:"contracts"`
	Tokens       []string          `json:"tokens"`
	Vaults       []string          `json:"vaults"`
	Verification *Verification     `json:"verification,omitempty"`
}

// NewSummary builds a summary from the final state
func NewSummary(cfg Config, state *deploy.State, verification *Verification, now time.Time) *Summary {
	s := state.Copy()
	return &Summary{
		Timestamp:    now.UTC().Format(time.RFC3339),
		Config:       cfg,
		Contracts:    s.Addresses,
		Tokens:       s.TokenAddresses,
		Vaults:       s.VaultAddresses,
		Verification: verification,
	}
}

// SummaryEntry is one labeled address
type SummaryEntry struct {
	Label   string
	Address string
}

// ContractEntries returns the recorded contracts sorted by name
func (s *Summary) ContractEntries() []SummaryEntry {
	names := make([]string, 0, len(s.Contracts))
	for name := range s.Contracts {
		names = append(names, name)
	}
	sort.Strings(names)
	entries := make([]SummaryEntry, 0, len(names))
	for _, name := range names {
		entries = append(entries, SummaryEntry{Label: name, Address: s.Contracts[name]})
	}
	return entries
}

// TokenEntries labels the staking tokens BST1, BST2, ...
func (s *Summary) TokenEntries() []SummaryEntry {
	return numbered("BST", s.Tokens)
}

// VaultEntries labels the reward vaults Vault1, Vault2, ...
func (s *Summary) VaultEntries() []SummaryEntry {
	return numbered("Vault", s.Vaults)
}

func numbered(prefix string, addresses []string) []SummaryEntry {
	entries := make([]SummaryEntry, 0, len(addresses))
	for i, addr := range addresses {
		entries = append(entries, SummaryEntry{Label: fmt.Sprintf("%s%d", prefix, i+1), Address: addr})
	}
	return entries
}

// SummaryFileName returns the summary file name for a run at now
func SummaryFileName(now time.Time) string {
	return fmt.Sprintf("deployment_summary_%s.json", now.UTC().Format(summaryTimeFormat))
}

// WriteSummary writes the summary as indented JSON into dir and returns the
// file path.
func WriteSummary(dir string, summary *Summary, now time.Time) (string, error) {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal summary: %w", err)
	}
	path := filepath.Join(dir, SummaryFileName(now))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create summary directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write summary: %w", err)
	}
	return path, nil
}
