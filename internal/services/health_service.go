package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sort"
	"time"

	"ocrdash/internal/config"
)

// Probe results.
const (
	ProbeReady    = "ready"
	ProbeNotReady = "not_ready"
)

// SessionCounter reports how many sessions are live.
type SessionCounter interface {
	Len() int
}

// Probe is the outcome of one readiness check.
type Probe struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Liveness is the body of GET /api/health. It never fails while the
// process can answer.
type Liveness struct {
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
	Version       string    `json:"version"`
	UptimeSeconds float64   `json:"uptime_seconds"`
	Goroutines    int       `json:"goroutines"`
	Sessions      *int      `json:"sessions,omitempty"`
}

// Readiness is the body of GET /api/health/ready.
type Readiness struct {
	Status    string           `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
	Checks    map[string]Probe `json:"checks"`
}

// Ready reports whether every check passed.
func (r Readiness) Ready() bool {
	return r.Status == ProbeReady
}

// VersionInfo is the body of GET /api/version.
type VersionInfo struct {
	Version   string    `json:"version"`
	BuildTime string    `json:"build_time,omitempty"`
	GoVersion string    `json:"go_version"`
	OS        string    `json:"os"`
	Arch      string    `json:"arch"`
	StartedAt time.Time `json:"started_at"`
}

// HealthService answers liveness, readiness and version queries.
type HealthService struct {
	version   string
	buildTime string
	sessions  SessionCounter
	checks    map[string]func() Probe
	startTime time.Time
	logger    *slog.Logger
}

// NewHealthService creates a health service. Readiness requires a session
// store and, when paths names an export directory that exists, that it is
// a directory.
func NewHealthService(version, buildTime string, paths config.PathsConfig, sessions SessionCounter, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	hs := &HealthService{
		version:   version,
		buildTime: buildTime,
		sessions:  sessions,
		startTime: time.Now(),
		logger:    logger.With(slog.String("component", "health_service")),
	}
	hs.checks = map[string]func() Probe{
		"sessions": hs.probeSessions,
		"exports":  func() Probe { return probeExportDir(paths.ExportsDir) },
	}
	return hs
}

// Liveness reports process status.
func (hs *HealthService) Liveness(ctx context.Context) Liveness {
	l := Liveness{
		Status:        "ok",
		Timestamp:     time.Now().UTC(),
		Version:       hs.version,
		UptimeSeconds: time.Since(hs.startTime).Seconds(),
		Goroutines:    runtime.NumGoroutine(),
	}
	if hs.sessions != nil {
		n := hs.sessions.Len()
		l.Sessions = &n
	}
	return l
}

// Readiness runs every check. One failing check makes the service not ready.
func (hs *HealthService) Readiness(ctx context.Context) Readiness {
	r := Readiness{
		Status:    ProbeReady,
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]Probe, len(hs.checks)),
	}

	var failed []string
	for name, check := range hs.checks {
		p := check()
		r.Checks[name] = p
		if p.Status != ProbeReady {
			failed = append(failed, name)
		}
	}
	if len(failed) > 0 {
		sort.Strings(failed)
		r.Status = ProbeNotReady
		hs.logger.WarnContext(ctx, "readiness check failed", slog.Any("checks", failed))
	}
	return r
}

// Version returns build information.
func (hs *HealthService) Version() VersionInfo {
	return VersionInfo{
		Version:   hs.version,
		BuildTime: hs.buildTime,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		StartedAt: hs.startTime.UTC(),
	}
}

func (hs *HealthService) probeSessions() Probe {
	if hs.sessions == nil {
		return Probe{Status: ProbeNotReady, Message: "session store not initialized"}
	}
	return Probe{Status: ProbeReady, Message: fmt.Sprintf("%d live sessions", hs.sessions.Len())}
}

// probeExportDir fails only when a configured export directory exists and
// is unusable. A missing one is created on first write.
func probeExportDir(dir string) Probe {
	if dir == "" {
		return Probe{Status: ProbeReady, Message: "no export directory configured"}
	}
	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		return Probe{Status: ProbeReady, Message: "export directory created on first write"}
	case err != nil:
		return Probe{Status: ProbeNotReady, Message: fmt.Sprintf("cannot stat export directory: %v", err)}
	case !info.IsDir():
		return Probe{Status: ProbeNotReady, Message: dir + " is not a directory"}
	}
	return Probe{Status: ProbeReady}
}
