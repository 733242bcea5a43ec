package repository

import (
	"github.com/coldpilot/billing/internal/app/service/journal"
	"github.com/coldpilot/billing/internal/app/service/ledger"
	"github.com/coldpilot/billing/internal/app/service/orchestrator"

	"go.uber.org/fx"
)

// Module binds the GORM repositories to the interfaces the services consume.
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(NewSubscriptionRepository,
			fx.As(new(orchestrator.SubscriptionRepository)),
			fx.As(new(ledger.SubscriptionGetter)),
		),
		fx.Annotate(NewCreditRepository, fx.As(new(ledger.CreditRepository))),
		fx.Annotate(NewActionRepository, fx.As(new(journal.ActionRepository))),
	),
)
