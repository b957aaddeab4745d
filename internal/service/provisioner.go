package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"ptero-billing/internal/client"
	"ptero-billing/internal/config"
	"ptero-billing/internal/model"
	"sync/atomic"
	"time"
)

type ProvisionResult struct {
	ServerID  int64
	Simulated bool
}

// ProvisioningError wraps any failure of the single create-server call. StatusCode is zero
// for transport errors and timeouts.
type ProvisioningError struct {
	StatusCode int
	Err        error
}

func (e *ProvisioningError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provisioning failed (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provisioning failed: %v", e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }

type Provisioner interface {
	Provision(ctx context.Context, order *model.Order, plan *model.Plan) (*ProvisionResult, error)
}

type pterodactylProvisionerImpl struct {
	cfg    config.Pterodactyl
	client client.PterodactylClient
	logger *slog.Logger
	seq    atomic.Int64
}

// NewProvisioner returns the panel adapter. With no panel URL or API key configured it runs
// in simulated mode and hands out synthetic server ids. Those are negative, so they never
// collide with an id the panel assigned.
func NewProvisioner(cfg config.Pterodactyl, pteroClient client.PterodactylClient, logger *slog.Logger) Provisioner {
	if !cfg.Configured() {
		pteroClient = nil
	}
	p := &pterodactylProvisionerImpl{
		cfg:    cfg,
		client: pteroClient,
		logger: logger,
	}
	p.seq.Store(time.Now().UnixMilli())
	return p
}

func (p *pterodactylProvisionerImpl) Provision(ctx context.Context, order *model.Order, plan *model.Plan) (*ProvisionResult, error) {
	if p.client == nil {
		id := -p.seq.Add(1)
		p.logger.Warn("pterodactyl not configured, simulating server creation",
			"order_id", order.ID,
			"server_id", id,
		)
		return &ProvisionResult{ServerID: id, Simulated: true}, nil
	}

	server, err := p.client.CreateServer(ctx, p.buildRequest(order, plan))
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			return nil, &ProvisioningError{StatusCode: apiErr.StatusCode, Err: err}
		}
		return nil, &ProvisioningError{Err: err}
	}

	return &ProvisionResult{ServerID: server.ID}, nil
}

func (p *pterodactylProvisionerImpl) buildRequest(order *model.Order, plan *model.Plan) *client.CreateServerRequest {
	env := make(map[string]string, len(p.cfg.Environment))
	for k, v := range p.cfg.Environment {
		env[k] = v
	}

	return &client.CreateServerRequest{
		Name:        order.ServerName,
		User:        p.cfg.OwnerUserID,
		ExternalID:  order.ID,
		Description: fmt.Sprintf("%s plan for user %s", plan.Name, order.UserID),
		Egg:         p.cfg.EggID,
		DockerImage: p.cfg.DockerImage,
		Startup:     p.cfg.Startup,
		Environment: env,
		Limits: client.ServerLimits{
			Memory: plan.Memory,
			Swap:   0,
			Disk:   plan.DiskMB(),
			IO:     p.cfg.IO,
			CPU:    plan.CPU,
		},
		FeatureLimits: client.FeatureLimits{
			Databases:   1,
			Allocations: 1,
			Backups:     1,
		},
		Allocation: client.ServerAllocation{
			Default: p.cfg.DefaultAllocID,
		},
	}
}
