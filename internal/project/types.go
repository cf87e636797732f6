package project

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/dreamunreal/ueman/internal/uproject"
)

// Record describes one known Unreal project. ProjectFilePath is its identity
// and is compared case-insensitively. AssociatedEngineID is recomputed on every
// load and never persisted.
type Record struct {
	ProjectFilePath    string            `json:"project_file_path" yaml:"project_file_path"`
	DisplayName        string            `json:"display_name" yaml:"display_name"`
	FriendlyName       string            `json:"friendly_name,omitempty" yaml:"friendly_name,omitempty"`
	ProjectDirectory   string            `json:"project_directory" yaml:"project_directory"`
	EngineAssociation  string            `json:"engine_association" yaml:"engine_association"`
	AssociatedEngineID string            `json:"associated_engine_id,omitempty" yaml:"associated_engine_id,omitempty"`
	Description        string            `json:"description" yaml:"description"`
	Category           string            `json:"category" yaml:"category"`
	Modules            []uproject.Module `json:"modules" yaml:"modules"`
	Plugins            []uproject.Plugin `json:"plugins" yaml:"plugins"`
	TargetPlatforms    []string          `json:"target_platforms" yaml:"target_platforms"`
	LastModified       time.Time         `json:"last_modified" yaml:"last_modified"`
	LastUsed           *time.Time        `json:"last_used,omitempty" yaml:"last_used,omitempty"`
	ProjectSizeBytes   int64             `json:"project_size_bytes" yaml:"project_size_bytes"`
	IsGitEnabled       bool              `json:"is_git_enabled" yaml:"is_git_enabled"`
	GitBranch          string            `json:"git_branch,omitempty" yaml:"git_branch,omitempty"`
	GitFolderSizeBytes int64             `json:"git_folder_size_bytes" yaml:"git_folder_size_bytes"`
	IsFavorite         bool              `json:"is_favorite" yaml:"is_favorite"`
	IsValid            bool              `json:"is_valid" yaml:"is_valid"`
}

// Stem returns the project file name without extension
func (r Record) Stem() string {
	return strings.TrimSuffix(filepath.Base(r.ProjectFilePath), filepath.Ext(r.ProjectFilePath))
}

// LastUsedOrZero returns LastUsed, or the zero time when never used
func (r Record) LastUsedOrZero() time.Time {
	if r.LastUsed == nil {
		return time.Time{}
	}
	return *r.LastUsed
}

// ChangeKind classifies a registry mutation
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeRemoved  ChangeKind = "removed"
	ChangeUpdated  ChangeKind = "updated"
	ChangePruned   ChangeKind = "pruned"
	ChangeEnriched ChangeKind = "enriched"
)

// Change is delivered to Options.OnChange after a mutation is committed
type Change struct {
	Kind ChangeKind
	Path string
}

// dto is the persisted form of a Record
type dto struct {
	ProjectPath       string     `json:"ProjectPath"`
	DisplayName       string     `json:"DisplayName"`
	ProjectDirectory  string     `json:"ProjectDirectory"`
	EngineAssociation string     `json:"EngineAssociation"`
	Description       string     `json:"Description"`
	Category          string     `json:"Category"`
	LastModified      time.Time  `json:"LastModified"`
	LastUsed          *time.Time `json:"LastUsed"`
	ProjectSize       int64      `json:"ProjectSize"`
	IsFavorite        bool       `json:"IsFavorite,omitempty"`
}

// storeVersion is written to the Version field of projects.json
const storeVersion = "1.0"

// document is the projects.json wrapper object
type document struct {
	Projects  []dto     `json:"Projects"`
	LastSaved time.Time `json:"LastSaved"`
	Version   string    `json:"Version"`
}

func toDTO(r Record) dto {
	return dto{
		ProjectPath:       r.ProjectFilePath,
		DisplayName:       r.DisplayName,
		ProjectDirectory:  r.ProjectDirectory,
		EngineAssociation: r.EngineAssociation,
		Description:       r.Description,
		Category:          r.Category,
		LastModified:      r.LastModified,
		LastUsed:          r.LastUsed,
		ProjectSize:       r.ProjectSizeBytes,
		IsFavorite:        r.IsFavorite,
	}
}
