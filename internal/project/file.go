package project

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/deploymenttheory/go-batch-runner/internal/common/errors"
	"github.com/deploymenttheory/go-batch-runner/internal/common/fsutil"
	"github.com/deploymenttheory/go-batch-runner/internal/common/jsonutil"
	"github.com/spf13/viper"
)

// projectExtensions are tried in order when resolving <dir>/<id>
var projectExtensions = []string{".yaml", ".yml", ".json"}

// FileProvider reads projects from <Dir>/<id>.yaml|.yml|.json
type FileProvider struct {
	Dir string
}

// NewFileProvider creates a file provider rooted at dir
func NewFileProvider(dir string) *FileProvider {
	return &FileProvider{Dir: dir}
}

// Fetch loads the project with the given id
func (p *FileProvider) Fetch(_ context.Context, id string) (*Config, error) {
	path, err := p.resolve(id)
	if err != nil {
		return nil, err
	}
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	if cfg.ID == "" {
		cfg.ID = id
	}
	return cfg, nil
}

func (p *FileProvider) resolve(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("%w: invalid project id %q", errors.ErrProjectNotFound, id)
	}
	for _, ext := range projectExtensions {
		path := filepath.Join(p.Dir, id+ext)
		if fsutil.FileExists(path) {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s in %s", errors.ErrProjectNotFound, id, p.Dir)
}

// Save writes the project as <Dir>/<id>.json and returns the path
func (p *FileProvider) Save(cfg *Config) (string, error) {
	if strings.TrimSpace(cfg.ID) == "" {
		return "", fmt.Errorf("%w: project id is required", errors.ErrProjectInvalid)
	}
	if err := fsutil.CreateDirIfNotExists(p.Dir); err != nil {
		return "", fmt.Errorf("%w: %s", errors.ErrFileWriteError, err.Error())
	}
	path := filepath.Join(p.Dir, cfg.ID+".json")
	if err := jsonutil.WriteJSONFile(path, cfg); err != nil {
		return "", err
	}
	return path, nil
}

// LoadFile reads a project file of any format viper understands
func LoadFile(filePath string) (*Config, error) {
	if !fsutil.FileExists(filePath) {
		return nil, fmt.Errorf("%w: %s", errors.ErrProjectNotFound, filePath)
	}

	v := viper.New()
	v.SetConfigFile(filePath)

	ext := strings.ToLower(fsutil.GetExtension(filePath))
	if ext != "" {
		v.SetConfigType(ext[1:])
	} else {
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: error reading project file: %s", errors.ErrProjectInvalid, err.Error())
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: error parsing project: %s", errors.ErrProjectInvalid, err.Error())
	}

	cfg.Normalize()
	return cfg, nil
}
