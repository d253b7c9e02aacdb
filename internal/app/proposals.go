package service

import (
	"context"
	"math/big"

	"github.com/okian/gigledger/internal/adapters/ledger"
	"github.com/okian/gigledger/internal/adapters/mq/publisher"
	"github.com/okian/gigledger/internal/adapters/worker"
	"github.com/okian/gigledger/internal/domain/model"
	"github.com/okian/gigledger/internal/domain/units"
	"github.com/okian/gigledger/pkg/logger"
)

// Proposals handles freelancer bids on projects.
type Proposals struct {
	core *core
}

// SubmitProposal bids price on a project. estimatedTime is in whatever unit
// the caller agrees on with the client.
func (p *Proposals) SubmitProposal(ctx context.Context, projectID, description, price string, estimatedTime uint64) (string, error) {
	if err := p.core.ready(); err != nil {
		return "", err
	}
	pid, err := parseID("project_id", projectID)
	if err != nil {
		return "", err
	}
	value, err := parseAmount("price", price)
	if err != nil {
		return "", err
	}

	conf, err := p.core.gateway.Submit(ctx, ledger.Marketplace, "submitProposal", nil,
		pid, description, value, new(big.Int).SetUint64(estimatedTime))
	if err != nil {
		return "", err
	}
	id, err := conf.EventID("ProposalSubmitted", "proposalId")
	if err != nil {
		p.core.logger.Error(ctx, "proposal confirmed without identifier",
			logger.String("tx", conf.TxHash.Hex()), logger.Error(err))
		return "", err
	}

	p.core.publish(ctx, publisher.ProposalSubmitted, conf, map[string]any{
		"proposal_id": units.ID(id),
		"project_id":  units.ID(pid),
		"price":       units.FormatAmount(value),
	})
	return units.ID(id), nil
}

// GetProjectProposals reads every proposal made on a project.
func (p *Proposals) GetProjectProposals(ctx context.Context, projectID string) ([]model.Proposal, error) {
	if err := p.core.ready(); err != nil {
		return nil, err
	}
	pid, err := parseID("project_id", projectID)
	if err != nil {
		return nil, err
	}
	out, err := p.core.gateway.Query(ctx, ledger.Marketplace, "getProjectProposalIds", pid)
	if err != nil {
		return nil, err
	}
	d := out.Decode()
	ids := d.BigInts()
	if err := d.Err(); err != nil {
		return nil, err
	}
	return worker.Map(ctx, p.core.pool, ids, p.fetch)
}

// AcceptProposal moves a proposal to Accepted and reports whether the
// transaction was confirmed. What happens to the other proposals of the
// project and to the project itself is up to the ledger; re-read to see it.
func (p *Proposals) AcceptProposal(ctx context.Context, proposalID string) (bool, error) {
	if err := p.core.ready(); err != nil {
		return false, err
	}
	id, err := parseID("id", proposalID)
	if err != nil {
		return false, err
	}
	conf, err := p.core.gateway.Submit(ctx, ledger.Marketplace, "acceptProposal", nil, id)
	if err != nil {
		return false, err
	}

	data := map[string]any{"proposal_id": units.ID(id)}
	if fields, err := conf.Event("ProposalAccepted"); err == nil {
		if pid, ok := fields["projectId"].(*big.Int); ok {
			data["project_id"] = units.ID(pid)
		}
	}
	p.core.publish(ctx, publisher.ProposalAccepted, conf, data)
	return true, nil
}

func (p *Proposals) fetch(ctx context.Context, id *big.Int) (model.Proposal, error) {
	out, err := p.core.gateway.Query(ctx, ledger.Marketplace, "getProposal", id)
	if err != nil {
		return model.Proposal{}, err
	}

	d := out.Decode()
	var pr model.Proposal
	pr.ID = units.ID(d.BigInt())
	pr.ProjectID = units.ID(d.BigInt())
	pr.Freelancer = address(d.Address())
	pr.Description = d.Text()
	pr.Price = units.FormatAmount(d.BigInt())
	pr.EstimatedTime = d.Uint64()
	pr.Status = model.DecodeProposalStatus(d.Uint8())
	pr.SubmittedAt = d.Time()
	if err := d.Err(); err != nil {
		return model.Proposal{}, err
	}
	return pr, nil
}
