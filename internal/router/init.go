package router

import (
	"github.com/financeai/bff/internal/aggregate"
	"github.com/financeai/bff/internal/container"
	"github.com/financeai/bff/internal/dispatch"
	handlers "github.com/financeai/bff/internal/interface/http"
	"github.com/financeai/bff/internal/report"
	"github.com/financeai/bff/internal/router/modules"
)

// InitModules builds the feature modules from container singletons and
// registers them. Called once during startup.
func InitModules(r *Registry) {
	cfg := container.GetConfig()
	gw := container.GetGateway()
	store := container.GetCache()
	logger := container.GetLogger()
	resolver := container.GetResolver()

	agg := aggregate.New(gw, store, logger,
		cfg.TransactionsServiceURL,
		cfg.FunctionTriggerURL+cfg.FunctionContextPath,
	)
	disp := dispatch.New(gw, store, logger,
		cfg.TransactionsServiceURL,
		cfg.FunctionTriggerURL,
		dispatch.Owner(cfg.WriteOwner),
	)

	bffHandler := handlers.NewBFFHandler(agg, disp, gw, store, logger, resolver.Mode(),
		cfg.TransactionsServiceURL, cfg.AnalyticsServiceURL, cfg.FunctionTriggerURL)
	r.Add(modules.NewBFF(bffHandler))

	billingHandler := handlers.NewBillingHandler(container.GetBilling(), logger)
	r.Add(modules.NewBilling(billingHandler))

	reportBridge := report.New(gw, container.GetTextGen(), logger, cfg.TransactionsServiceURL)
	reportHandler := handlers.NewReportHandler(reportBridge, logger, resolver.Mode())
	r.Add(modules.NewReport(reportHandler))

	// operator surface, guarded by the internal secret instead of identity
	internalHandler := handlers.NewInternalHandler(gw, store, logger,
		cfg.InternalSecret, cfg.TransactionsServiceURL, cfg.AnalyticsServiceURL)
	r.Internal.POST("/seed", internalHandler.Seed)
}
