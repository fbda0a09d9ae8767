//go:build gocv

package main

import (
	"github.com/banshee-data/wall.align/internal/align/l4pose"
	"github.com/banshee-data/wall.align/internal/config"
)

func init() {
	detectorFactories["cv"] = func(tuning *config.TuningConfig, _ string) (l4pose.Detector, error) {
		cfg, err := l4pose.ContourConfigFromTuning(tuning)
		if err != nil {
			return nil, err
		}
		return l4pose.NewCVContourDetector(cfg), nil
	}
}
