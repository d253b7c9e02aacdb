package service

import (
	"context"
	"math/big"
	"time"

	"github.com/okian/gigledger/internal/adapters/ledger"
	"github.com/okian/gigledger/internal/adapters/mq/publisher"
	"github.com/okian/gigledger/internal/adapters/worker"
	"github.com/okian/gigledger/internal/domain/model"
	"github.com/okian/gigledger/internal/domain/units"
	"github.com/okian/gigledger/pkg/logger"
)

// Milestones manages payment stages of a project and their escrow funding.
// Creating and funding are separate writes; a failed deposit leaves the
// milestone in place.
type Milestones struct {
	core *core
}

// CreateMilestone adds a payment stage to an existing project.
func (m *Milestones) CreateMilestone(ctx context.Context, projectID, description, amount string, deadline time.Time) (string, error) {
	if err := m.core.ready(); err != nil {
		return "", err
	}
	pid, err := parseID("project_id", projectID)
	if err != nil {
		return "", err
	}
	value, err := parseAmount("amount", amount)
	if err != nil {
		return "", err
	}
	due, err := parseDeadline("deadline", deadline)
	if err != nil {
		return "", err
	}

	conf, err := m.core.gateway.Submit(ctx, ledger.Marketplace, "createMilestone", nil, pid, description, value, due)
	if err != nil {
		return "", err
	}
	id, err := conf.EventID("MilestoneCreated", "milestoneId")
	if err != nil {
		m.core.logger.Error(ctx, "milestone confirmed without identifier",
			logger.String("tx", conf.TxHash.Hex()), logger.Error(err))
		return "", err
	}

	m.core.publish(ctx, publisher.MilestoneCreated, conf, map[string]any{
		"milestone_id": units.ID(id),
		"project_id":   units.ID(pid),
		"amount":       units.FormatAmount(value),
	})
	return units.ID(id), nil
}

// GetProjectMilestones reads every milestone of a project.
func (m *Milestones) GetProjectMilestones(ctx context.Context, projectID string) ([]model.Milestone, error) {
	if err := m.core.ready(); err != nil {
		return nil, err
	}
	pid, err := parseID("project_id", projectID)
	if err != nil {
		return nil, err
	}
	out, err := m.core.gateway.Query(ctx, ledger.Marketplace, "getProjectMilestoneIds", pid)
	if err != nil {
		return nil, err
	}
	d := out.Decode()
	ids := d.BigInts()
	if err := d.Err(); err != nil {
		return nil, err
	}
	return worker.Map(ctx, m.core.pool, ids, m.fetch)
}

// FundMilestone deposits amount into escrow for a milestone and reports
// whether the deposit was confirmed.
func (m *Milestones) FundMilestone(ctx context.Context, milestoneID, amount string) (bool, error) {
	if err := m.core.ready(); err != nil {
		return false, err
	}
	mid, err := parseID("milestone_id", milestoneID)
	if err != nil {
		return false, err
	}
	value, err := parseAmount("amount", amount)
	if err != nil {
		return false, err
	}

	conf, err := m.core.gateway.Submit(ctx, ledger.Escrow, "deposit", value, mid)
	if err != nil {
		return false, err
	}
	fields, err := conf.Event("FundsDeposited")
	if err != nil {
		m.core.logger.Error(ctx, "deposit confirmed without event",
			logger.String("tx", conf.TxHash.Hex()), logger.Error(err))
		return false, err
	}

	deposited, _ := fields["amount"].(*big.Int)
	m.core.publish(ctx, publisher.MilestoneFunded, conf, map[string]any{
		"milestone_id": units.ID(mid),
		"amount":       units.FormatAmount(deposited),
	})
	return true, nil
}

// MilestoneBalance reads the escrowed funds of a milestone.
func (m *Milestones) MilestoneBalance(ctx context.Context, milestoneID string) (string, error) {
	if err := m.core.ready(); err != nil {
		return "", err
	}
	mid, err := parseID("milestone_id", milestoneID)
	if err != nil {
		return "", err
	}
	out, err := m.core.gateway.Query(ctx, ledger.Escrow, "balanceOf", mid)
	if err != nil {
		return "", err
	}
	d := out.Decode()
	bal := d.BigInt()
	if err := d.Err(); err != nil {
		return "", err
	}
	return units.FormatAmount(bal), nil
}

func (m *Milestones) fetch(ctx context.Context, id *big.Int) (model.Milestone, error) {
	out, err := m.core.gateway.Query(ctx, ledger.Marketplace, "getMilestone", id)
	if err != nil {
		return model.Milestone{}, err
	}

	d := out.Decode()
	var ms model.Milestone
	ms.ID = units.ID(d.BigInt())
	ms.ProjectID = units.ID(d.BigInt())
	ms.Description = d.Text()
	ms.Amount = units.FormatAmount(d.BigInt())
	ms.Deadline = d.Time()
	ms.Status = model.DecodeMilestoneStatus(d.Uint8())
	if err := d.Err(); err != nil {
		return model.Milestone{}, err
	}
	return ms, nil
}
