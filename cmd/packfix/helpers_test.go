package main

import (
	"github.com/John-Robertt/packfix/internal/config"
	"github.com/John-Robertt/packfix/internal/domain"
)

func testEffective() config.EffectiveConfig {
	return config.EffectiveConfig{
		RecordsPath:    "/data/v4.json",
		CheckpointPath: "/data/v4_progress.txt",
		BaseURL:        "https://pocket.limitlesstcg.com/cards/",
		SkipPrefixes:   domain.DefaultSkipPrefixes(),
		Series:         domain.DefaultSeries(),
	}
}
