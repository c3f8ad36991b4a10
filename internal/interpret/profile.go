package interpret

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Transport mode names for the interpreter pool.
const (
	TransportInProcess = "inproc"
	TransportProcess   = "process"
)

type profilePoolConfig struct {
	Size      int    `toml:"size"`
	Transport string `toml:"transport"`
}

type profileWorkerConfig struct {
	Program string   `toml:"program"`
	Args    []string `toml:"args"`
}

type profileThresholdsConfig struct {
	Marginal float64 `toml:"marginal"`
	Definite float64 `toml:"definite"`
}

// Profile configures how the interpreter pool runs: worker count, transport,
// the worker executable for the process transport, and mark thresholds.
type Profile struct {
	Version    int                     `toml:"version"`
	Pool       profilePoolConfig       `toml:"pool"`
	Worker     profileWorkerConfig     `toml:"worker"`
	Thresholds profileThresholdsConfig `toml:"thresholds"`
}

func LoadProfile(profileFile string) (Profile, error) {
	path := strings.TrimSpace(profileFile)
	if path == "" {
		return Profile{}, errors.New("profile file is required")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, err
	}

	var profile Profile
	if err := toml.Unmarshal(raw, &profile); err != nil {
		return Profile{}, err
	}
	if err := validateProfile(profile); err != nil {
		return Profile{}, err
	}
	return resolveProfile(profile), nil
}

func validateProfile(profile Profile) error {
	if profile.Version != 1 {
		return errors.New("unsupported interpreter profile: expected version = 1")
	}

	transport := strings.TrimSpace(profile.Pool.Transport)
	if transport != "" && transport != TransportInProcess && transport != TransportProcess {
		return fmt.Errorf("pool.transport must be %s or %s", TransportInProcess, TransportProcess)
	}
	if transport == TransportProcess && strings.TrimSpace(profile.Worker.Program) == "" {
		return errors.New("worker.program is required for the process transport")
	}

	if profile.Thresholds.Marginal < 0 || profile.Thresholds.Definite > 1 {
		return errors.New("thresholds must be within [0, 1]")
	}
	if profile.Thresholds.Marginal > profile.Thresholds.Definite {
		return errors.New("thresholds.marginal must not exceed thresholds.definite")
	}
	return nil
}

func resolveProfile(profile Profile) Profile {
	if profile.Pool.Size <= 0 {
		profile.Pool.Size = 2
	}
	profile.Pool.Transport = strings.TrimSpace(profile.Pool.Transport)
	if profile.Pool.Transport == "" {
		profile.Pool.Transport = TransportInProcess
	}
	if profile.Thresholds.Marginal == 0 && profile.Thresholds.Definite == 0 {
		profile.Thresholds.Marginal = 0.12
		profile.Thresholds.Definite = 0.25
	}
	return profile
}
