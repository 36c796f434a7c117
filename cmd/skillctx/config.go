package main

import (
	"context"

	"github.com/spf13/viper"

	"github.com/opus67/skillctx/pkg/engine"
	"github.com/opus67/skillctx/pkg/expander"
	"github.com/opus67/skillctx/pkg/matcher"
	"github.com/opus67/skillctx/pkg/registry"
)

// buildSource creates the skill source from config, falling back to the
// default directory layout.
func buildSource() (*registry.DirSource, error) {
	if dirs := viper.GetStringSlice("skills.dirs"); len(dirs) > 0 {
		return registry.NewDirSource(registry.WithDirs(dirs...))
	}
	return registry.NewDirSource()
}

// buildEngine constructs an engine with the configured scoring, expansion,
// and cache settings.
func buildEngine(opts ...engine.Option) *engine.Engine {
	weights := matcher.Weights{
		Keyword:   viper.GetFloat64("scoring.keyword_weight"),
		FileType:  viper.GetFloat64("scoring.file_type_weight"),
		Directory: viper.GetFloat64("scoring.directory_weight"),
		ClassCap:  viper.GetInt("scoring.class_cap"),
	}
	expansion := expander.Config{
		MaxDepth: viper.GetInt("expansion.max_depth"),
		Discount: viper.GetFloat64("expansion.discount"),
	}

	all := []engine.Option{
		engine.WithWeights(weights),
		engine.WithExpansion(expansion),
		engine.WithCacheCapacity(viper.GetInt("cache.capacity")),
	}
	all = append(all, opts...)
	return engine.New(all...)
}

// loadEngine builds the engine and populates it from the configured source.
func loadEngine(ctx context.Context, opts ...engine.Option) (*engine.Engine, *registry.DirSource, error) {
	source, err := buildSource()
	if err != nil {
		return nil, nil, err
	}
	eng := buildEngine(opts...)
	if err := eng.Load(ctx, source); err != nil {
		return nil, nil, err
	}
	return eng, source, nil
}
