package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/okian/nsted/internal/adapters/artifacts"
	"github.com/okian/nsted/internal/adapters/repository"
	"github.com/okian/nsted/internal/adapters/safetensors"
	"github.com/okian/nsted/internal/config"
	"github.com/okian/nsted/internal/domain/classify"
	"github.com/okian/nsted/internal/domain/eeg"
	"github.com/okian/nsted/internal/domain/inference"
	"github.com/okian/nsted/internal/domain/unet"
	"github.com/okian/nsted/pkg/logger"
)

// Weights file metadata keys describing the network dimensions.
const (
	MetaInChannels = "in_channels"
	MetaBaseWidth  = "base_width"
)

// ArchitectureFromMetadata reads the network dimensions stored alongside the
// weights, falling back to the default architecture for missing keys.
func ArchitectureFromMetadata(meta map[string]string) (unet.Architecture, error) {
	arch := unet.DefaultArchitecture()
	if v, ok := meta[MetaInChannels]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return arch, fmt.Errorf("%w: %s=%q", unet.ErrArchitecture, MetaInChannels, v)
		}
		arch.InChannels = n
	}
	if v, ok := meta[MetaBaseWidth]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return arch, fmt.Errorf("%w: %s=%q", unet.ErrArchitecture, MetaBaseWidth, v)
		}
		arch.BaseWidth = n
	}
	return arch, arch.Validate()
}

// ArchitectureMetadata is the inverse of ArchitectureFromMetadata.
func ArchitectureMetadata(arch unet.Architecture) map[string]string {
	return map[string]string{
		MetaInChannels: strconv.Itoa(arch.InChannels),
		MetaBaseWidth:  strconv.Itoa(arch.BaseWidth),
	}
}

// LoadModel builds the network from cfg.WeightsPath. With
// cfg.AllowRandomWeights set, a missing file yields seeded random parameters.
func LoadModel(ctx context.Context, cfg *config.Config, log logger.Logger) (*unet.Model, error) {
	start := time.Now()
	if cfg.AllowRandomWeights && !fileExists(cfg.WeightsPath) {
		arch := unet.DefaultArchitecture()
		w, err := unet.RandomWeights(arch, uint64(cfg.RandomWeightsSeed))
		if err != nil {
			return nil, err
		}
		log.Warn(ctx, "weights file not found, using random model weights",
			logger.String("path", cfg.WeightsPath),
			logger.Any("seed", cfg.RandomWeightsSeed),
			logger.Int("parameters", arch.ParameterCount()),
		)
		return unet.NewModel(arch, w)
	}

	w, meta, err := safetensors.LoadWeights(cfg.WeightsPath)
	if err != nil {
		return nil, err
	}
	arch, err := ArchitectureFromMetadata(meta)
	if err != nil {
		return nil, err
	}
	m, err := unet.NewModel(arch, w)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.WeightsPath, err)
	}
	log.Info(ctx, "model weights loaded",
		logger.String("path", cfg.WeightsPath),
		logger.Int("parameters", arch.ParameterCount()),
		logger.Duration("elapsed", time.Since(start)),
	)
	return m, nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// NewPreprocessor builds the preprocessing stage from cfg.
func NewPreprocessor(cfg *config.Config) (*eeg.Preprocessor, error) {
	policy, err := eeg.ParseZeroVariancePolicy(cfg.ZeroVariancePolicy)
	if err != nil {
		return nil, err
	}
	return eeg.NewPreprocessor(
		eeg.WithTrialLength(cfg.TrialLength),
		eeg.WithZeroVariancePolicy(policy),
		eeg.WithEpsilon(cfg.Epsilon),
	), nil
}

// FromConfig assembles a Service from cfg. The returned service owns the
// opened result store and releases it on Stop.
func FromConfig(ctx context.Context, cfg *config.Config, log logger.Logger) (*Service, error) {
	m, err := LoadModel(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	if err := checkInputChannels(m.Architecture()); err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.WeightsPath, err)
	}
	runner, err := inference.NewRunner(m, inference.WithConcurrency(cfg.InferenceConcurrency))
	if err != nil {
		return nil, err
	}
	pre, err := NewPreprocessor(cfg)
	if err != nil {
		return nil, err
	}
	store, err := repository.Open(ctx, cfg.DBPath,
		repository.WithBusyTimeout(time.Duration(cfg.DBBusyTimeoutMS)*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("open result store: %w", err)
	}

	return New(
		WithLogger(log),
		WithRunner(runner),
		WithStore(store),
		WithPreprocessor(pre),
		WithClassifier(classify.New(classify.WithThreshold(cfg.ClassifyThreshold))),
		WithArtifacts(artifacts.NewWriter(cfg.ArtifactDir,
			artifacts.WithCompression(cfg.CompressArtifacts),
			artifacts.WithLockTimeout(time.Duration(cfg.ArtifactLockTimeoutSec)*time.Second),
		)),
		WithDataKey(cfg.DataKey),
		WithAverageChannel(cfg.ChannelIndex),
		WithMaxUploadBytes(cfg.MaxUploadBytes()),
		WithMaxRecordingBytes(cfg.MaxRecordingBytes()),
	), nil
}
