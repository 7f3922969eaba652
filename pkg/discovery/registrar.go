package discovery

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"lanemesh/pkg/laneerror"
	"lanemesh/pkg/metrics"
)

// RegistrarConfig configures C6 (spec §4.6): the registry to register into,
// the registry-specific service identifier that names the target registry
// entry, and the retry budget for the initial registration attempt.
type RegistrarConfig struct {
	Registry   RegistryClient
	RegistryID string // the registry-specific service identifier (e.g. a Cloud Map service ID)
	Metadata   MetadataSource
	Attempts   int
	Delay      time.Duration
	Metrics    *metrics.Metrics // optional; when nil, registration attempts go unrecorded
}

// Registrar performs the one-shot, best-effort self-registration described
// in spec §4.6: it reads LocalMetadata, builds the {IPV4, PORT, LANE}
// attribute map and retries RegisterInstance on a fixed delay until it
// succeeds or the attempt budget is spent, at which point it raises
// RegistrationExhausted and gives up for good — this package never retries
// registration again on its own.
type Registrar struct {
	cfg        RegistrarConfig
	instanceID string
}

// NewRegistrar builds a Registrar. A random instance ID is generated up
// front so repeated registration attempts for the same process always
// target the same registry entry.
func NewRegistrar(cfg RegistrarConfig) *Registrar {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 10
	}
	if cfg.Delay <= 0 {
		cfg.Delay = time.Second
	}
	return &Registrar{cfg: cfg, instanceID: uuid.NewString()}
}

// Register reads local metadata and attempts registration, retrying on a
// fixed delay up to cfg.Attempts times. It returns laneerror.RegistrationExhausted
// if every attempt fails, and never retries again once that happens (spec
// §4.6, §7).
func (r *Registrar) Register(ctx context.Context) error {
	meta, err := r.cfg.Metadata.ReadLocal(ctx)
	if err != nil {
		return laneerror.Wrap(laneerror.RegistrationExhausted, err, "reading local metadata")
	}
	if !meta.Complete() {
		return laneerror.New(laneerror.RegistrationExhausted, "local metadata incomplete, not registering")
	}

	attrs := map[string]string{
		AttrIPv4Canonical: meta.Host,
		AttrPortCanonical: strconv.Itoa(meta.Port),
		AttrLane:          meta.Lane,
	}

	op := func() (struct{}, error) {
		if err := r.cfg.Registry.RegisterInstance(ctx, r.cfg.RegistryID, r.instanceID, attrs); err != nil {
			slog.Default().Warn("registration attempt failed", "instance_id", r.instanceID, "error", err)
			if r.cfg.Metrics != nil {
				r.cfg.Metrics.RecordRegistration(false)
			}
			return struct{}{}, err
		}
		if r.cfg.Metrics != nil {
			r.cfg.Metrics.RecordRegistration(true)
		}
		return struct{}{}, nil
	}

	_, err = backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(r.cfg.Delay)),
		backoff.WithMaxTries(uint(r.cfg.Attempts)),
	)
	if err != nil {
		return laneerror.Wrap(laneerror.RegistrationExhausted, err, "exhausted %d registration attempts", r.cfg.Attempts)
	}

	slog.Default().Info("registered with service registry", "instance_id", r.instanceID, "lane", meta.Lane)
	return nil
}

// InstanceID returns the identifier this registrar registers itself under.
func (r *Registrar) InstanceID() string {
	return r.instanceID
}
