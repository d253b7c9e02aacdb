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

// Projects creates and reads jobs posted by clients.
type Projects struct {
	core *core
}

// CreateProject submits a new project and returns the identifier the ledger
// assigned to it. A confirmed write without a ProjectCreated event is
// reported as ledger.ErrEventNotFound.
func (p *Projects) CreateProject(ctx context.Context, d model.ProjectDraft) (string, error) {
	if err := p.core.ready(); err != nil {
		return "", err
	}
	budget, err := parseAmount("budget", d.Budget)
	if err != nil {
		return "", err
	}
	deadline, err := parseDeadline("deadline", d.Deadline)
	if err != nil {
		return "", err
	}

	conf, err := p.core.gateway.Submit(ctx, ledger.Marketplace, "createProject", nil,
		d.Title, d.Description, budget, deadline, nonNil(d.Skills),
		d.ExperienceLevel, d.Duration, d.Type, nonNil(d.Attachments))
	if err != nil {
		return "", err
	}

	id, err := conf.EventID("ProjectCreated", "projectId")
	if err != nil {
		p.core.logger.Error(ctx, "project confirmed without identifier",
			logger.String("tx", conf.TxHash.Hex()), logger.Error(err))
		return "", err
	}

	p.core.publish(ctx, publisher.ProjectCreated, conf, map[string]any{
		"project_id": units.ID(id),
		"title":      d.Title,
		"budget":     units.FormatAmount(budget),
	})
	return units.ID(id), nil
}

// GetProject reads one project.
func (p *Projects) GetProject(ctx context.Context, id string) (model.Project, error) {
	if err := p.core.ready(); err != nil {
		return model.Project{}, err
	}
	pid, err := parseID("id", id)
	if err != nil {
		return model.Project{}, err
	}
	return p.fetch(ctx, pid)
}

// GetAllProjects reads every project in the order the ledger enumerates them.
func (p *Projects) GetAllProjects(ctx context.Context) ([]model.Project, error) {
	if err := p.core.ready(); err != nil {
		return nil, err
	}
	out, err := p.core.gateway.Query(ctx, ledger.Marketplace, "getAllProjectIds")
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

func (p *Projects) fetch(ctx context.Context, id *big.Int) (model.Project, error) {
	out, err := p.core.gateway.Query(ctx, ledger.Marketplace, "getProject", id)
	if err != nil {
		return model.Project{}, err
	}

	d := out.Decode()
	var pr model.Project
	pr.ID = units.ID(d.BigInt())
	pr.Client = address(d.Address())
	pr.Freelancer = address(d.Address())
	pr.Title = d.Text()
	pr.Description = d.Text()
	pr.Budget = units.FormatAmount(d.BigInt())
	pr.Deadline = d.Time()
	pr.CreatedAt = d.Time()
	pr.Status = model.DecodeProjectStatus(d.Uint8())
	pr.Skills = nonNil(d.Strings())
	pr.ExperienceLevel = d.Uint8()
	pr.Duration = d.Uint8()
	pr.Type = d.Uint8()
	pr.Attachments = nonNil(d.Strings())
	if err := d.Err(); err != nil {
		return model.Project{}, err
	}
	return pr, nil
}
