package azure

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"

	"github.com/asad/blobgate/internal/logging"
)

// EnsureOutcome describes what Ensure did to the container. The tolerated
// failure path is modeled explicitly instead of being hidden behind a
// swallowed error so callers and tests can observe it.
type EnsureOutcome int

const (
	// EnsureAlreadyExists means the container was already present.
	EnsureAlreadyExists EnsureOutcome = iota

	// EnsureCreated means the container was created by this call.
	EnsureCreated

	// EnsureCreateFailedTolerated means the container could not be read or
	// created, and the failure was tolerated. Benign causes include a race
	// with a concurrent creator; the next storage operation surfaces any
	// real fault.
	EnsureCreateFailedTolerated
)

func (o EnsureOutcome) String() string {
	switch o {
	case EnsureAlreadyExists:
		return "already_exists"
	case EnsureCreated:
		return "created"
	case EnsureCreateFailedTolerated:
		return "create_failed_tolerated"
	default:
		return "unknown"
	}
}

// ContainerAPI is the slice of the SDK container client the provisioner
// needs. Tests substitute a fake.
type ContainerAPI interface {
	GetProperties(ctx context.Context, o *container.GetPropertiesOptions) (container.GetPropertiesResponse, error)
	Create(ctx context.Context, o *container.CreateOptions) (container.CreateResponse, error)
	SetAccessPolicy(ctx context.Context, o *container.SetAccessPolicyOptions) (container.SetAccessPolicyResponse, error)
}

// Provisioner ensures the logical container exists before use. For emulator
// targets it additionally applies a public-read-blob access policy on a
// best-effort basis so blobs are directly reachable during local development.
type Provisioner struct {
	emulator bool
	logger   logging.Logger
}

// NewProvisioner returns a provisioner. emulator controls whether the
// permissive access policy is applied.
func NewProvisioner(emulator bool, logger logging.Logger) *Provisioner {
	return &Provisioner{emulator: emulator, logger: logger}
}

// Ensure makes sure the container behind cc exists. It never fails:
// creation errors are tolerated and reported through the outcome value.
// Concurrent double-ensure is safe; the loser of the create race lands on
// the tolerated path.
func (p *Provisioner) Ensure(ctx context.Context, cc ContainerAPI, name string) EnsureOutcome {
	if _, err := cc.GetProperties(ctx, nil); err == nil {
		p.applyPublicPolicy(ctx, cc, name)
		return EnsureAlreadyExists
	}

	if _, err := cc.Create(ctx, nil); err != nil {
		p.logger.Warn("container create tolerated failure",
			logging.String("container", name),
			logging.String("outcome", EnsureCreateFailedTolerated.String()),
			logging.ErrorField(err),
		)
		return EnsureCreateFailedTolerated
	}

	p.applyPublicPolicy(ctx, cc, name)
	p.logger.Info("container created",
		logging.String("container", name),
	)
	return EnsureCreated
}

// applyPublicPolicy sets public-read-blob access on emulator targets.
// Failure to set the policy is swallowed; local access is a convenience,
// not a correctness requirement.
func (p *Provisioner) applyPublicPolicy(ctx context.Context, cc ContainerAPI, name string) {
	if !p.emulator {
		return
	}
	opts := &container.SetAccessPolicyOptions{
		Access: to.Ptr(container.PublicAccessTypeBlob),
	}
	if _, err := cc.SetAccessPolicy(ctx, opts); err != nil {
		p.logger.Debug("failed to set public access policy",
			logging.String("container", name),
			logging.ErrorField(err),
		)
	}
}
