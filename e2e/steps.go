package e2e

import (
	"github.com/cucumber/godog"

	"carinsurance/e2e/steps/insurance"
)

// RegisterSteps registers all step definitions from modular packages.
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	insurance.RegisterSteps(ctx, tc)
}
