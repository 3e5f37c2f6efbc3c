package app

import (
	"context"
	"fmt"

	"github.com/Kube-Engine/Flow/internal/config"
	"github.com/Kube-Engine/Flow/internal/fsutil"
	flowhcl "github.com/Kube-Engine/Flow/internal/hcl"
	"github.com/Kube-Engine/Flow/internal/yamlcfg"
)

// LoaderFor picks the loader matching the definition files found under
// paths. Mixed HCL and YAML trees are loaded by both and merged.
func LoaderFor(paths []string) (config.Loader, error) {
	hclFiles, err := fsutil.FindFiles(paths, ".hcl")
	if err != nil {
		return nil, err
	}
	yamlFiles, err := fsutil.FindFiles(paths, yamlcfg.Extensions...)
	if err != nil {
		return nil, err
	}

	switch {
	case len(hclFiles) > 0 && len(yamlFiles) > 0:
		return multiLoader{flowhcl.NewLoader(), yamlcfg.NewLoader()}, nil
	case len(yamlFiles) > 0:
		return yamlcfg.NewLoader(), nil
	case len(hclFiles) > 0:
		return flowhcl.NewLoader(), nil
	default:
		return nil, fmt.Errorf("no definition files found in %v", paths)
	}
}

type multiLoader []config.Loader

func (m multiLoader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	model := &config.Model{}
	for _, l := range m {
		part, err := l.Load(ctx, paths...)
		if err != nil {
			return nil, err
		}
		if err := model.Merge(part); err != nil {
			return nil, err
		}
	}
	return model, nil
}
