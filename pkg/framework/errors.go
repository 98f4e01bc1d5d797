package framework

import goerrors "gopkg.in/src-d/go-errors.v1"

// Error kinds (spec §7).
var (
	// ErrManifest is returned when a framework.toml manifest cannot be
	// parsed.
	ErrManifest = goerrors.NewKind("framework: failed to parse manifest at %q: %s")

	// ErrMissingDependency is returned when a framework's depends_on
	// names a framework that is not loaded.
	ErrMissingDependency = goerrors.NewKind("framework: %q depends on %q, which is not loaded")

	// ErrIllegalTrustTier is returned when an externally loaded
	// framework declares itself Internal or Core — tiers reserved for
	// the system's own bundled frameworks.
	ErrIllegalTrustTier = goerrors.NewKind("framework: external framework %q cannot declare trust tier %q")
)
