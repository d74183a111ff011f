package engine

import (
	"time"

	"github.com/cpcf/forgekit/worker"
)

// FPSLimit caps a worker thread's frame rate and selects how it paces
// itself against that cap.
type FPSLimit struct {
	FPSMax    float32             `yaml:"fpsMax"`
	LimitType worker.PacingPolicy `yaml:"limitType"`
}

// EngineConfig is the only configuration the core consumes: no CLI flags,
// no environment variables, nothing persisted. GraphicsCfg is intentionally
// opaque — graphics/device configuration is out of scope for the core and
// is handed through unexamined to whatever Device/Renderer the embedder
// supplies.
type EngineConfig struct {
	FPSLimitDraw   FPSLimit       `yaml:"fpsLimitDraw"`
	FPSLimitUpdate FPSLimit       `yaml:"fpsLimitUpdate"`
	GraphicsCfg    map[string]any `yaml:"graphicsCfg"`
}

// Validate implements config.Validator so EngineConfig can be loaded
// straight out of config.LoadYAML.
func (c EngineConfig) Validate() error {
	merr := &MultiError{}
	if c.FPSLimitDraw.FPSMax < 0 {
		merr.Add("fpsLimitDraw.fpsMax", "must be >= 0 (0 means uncapped)", nil)
	}
	if c.FPSLimitUpdate.FPSMax < 0 {
		merr.Add("fpsLimitUpdate.fpsMax", "must be >= 0 (0 means uncapped)", nil)
	}
	if merr.HasErrors() {
		return merr
	}
	return nil
}

// frameDuration converts an FPSLimit into the target per-frame duration a
// worker.Thread paces against; 0 FPSMax means no cap.
func (f FPSLimit) frameDuration() time.Duration {
	if f.FPSMax <= 0 {
		return worker.NoFrameLimit
	}
	return time.Duration(float64(time.Second) / float64(f.FPSMax))
}
