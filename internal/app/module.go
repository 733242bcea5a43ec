package app

import (
	"time"

	"github.com/coldpilot/billing/internal/app/api/server"
	"github.com/coldpilot/billing/internal/app/service/journal"
	"github.com/coldpilot/billing/internal/app/service/ledger"
	"github.com/coldpilot/billing/internal/app/service/orchestrator"
	"github.com/coldpilot/billing/internal/app/service/statistics"
	"github.com/coldpilot/billing/internal/platform/db"
	"github.com/coldpilot/billing/internal/repository"
	"github.com/coldpilot/billing/pkg/config"
	"github.com/coldpilot/billing/pkg/logger"

	"go.uber.org/fx"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	repository.Module,
	server.Module,
	ledger.Module,
	journal.Module,
	orchestrator.Module,
	statistics.Module,
)
