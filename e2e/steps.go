package e2e

import (
	"github.com/cucumber/godog"

	"credex/e2e/steps/common"
	"credex/e2e/steps/trust"
	"credex/e2e/steps/wallet"
)

// RegisterSteps registers all step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	wallet.RegisterSteps(ctx, tc)
	trust.RegisterSteps(ctx, tc)
}
