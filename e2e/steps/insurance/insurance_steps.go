package insurance

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/cucumber/godog"
)

// TestContext is the subset of the main test context these steps use.
type TestContext interface {
	GET(path string) error
	POST(path string, body any) error
	GetResponseField(field string) (any, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	Set(name, value string)
}

// RegisterSteps registers car insurance API step definitions.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &insuranceSteps{tc: tc}

	ctx.Step(`^the seeded car "([^"]*)"$`, steps.seededCar)
	ctx.Step(`^I add a policy from "([^"]*)" to "([^"]*)" with provider "([^"]*)"$`, steps.addPolicy)
	ctx.Step(`^I add an open-ended policy from "([^"]*)" with provider "([^"]*)"$`, steps.addOpenEndedPolicy)
	ctx.Step(`^I file a claim on "([^"]*)" for (\d+) cents described as "([^"]*)"$`, steps.fileClaim)
	ctx.Step(`^I check insurance validity for "([^"]*)"$`, steps.checkValidity)
	ctx.Step(`^I check insurance validity for car "([^"]*)" on "([^"]*)"$`, steps.checkValidityForPath)
	ctx.Step(`^I request the car history$`, steps.requestHistory)
	ctx.Step(`^the response status should be (\d+)$`, steps.statusShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be (true|false)$`, steps.boolFieldShouldBe)
	ctx.Step(`^the history should list the claim "([^"]*)"$`, steps.historyListsClaim)
	ctx.Step(`^the expiration records should eventually include the policy ending today$`, steps.expirationsIncludeToday)
}

type insuranceSteps struct {
	tc    TestContext
	carID int64
}

func (s *insuranceSteps) seededCar(ctx context.Context, vin string) error {
	if err := s.tc.GET("/api/cars"); err != nil {
		return err
	}
	var cars []struct {
		ID  int64  `json:"id"`
		VIN string `json:"vin"`
	}
	if err := json.Unmarshal(s.tc.GetLastResponseBody(), &cars); err != nil {
		return fmt.Errorf("decode cars: %w", err)
	}
	for _, c := range cars {
		if c.VIN == vin {
			s.carID = c.ID
			s.tc.Set("carId", strconv.FormatInt(c.ID, 10))
			return nil
		}
	}
	return fmt.Errorf("car %s not found; start the server with SEED_DATA=true", vin)
}

func (s *insuranceSteps) carPath(suffix string) string {
	return "/api/cars/" + strconv.FormatInt(s.carID, 10) + suffix
}

func (s *insuranceSteps) addPolicy(ctx context.Context, start, end, provider string) error {
	return s.tc.POST(s.carPath("/policies"), map[string]any{
		"provider": provider, "start_date": start, "end_date": end,
	})
}

func (s *insuranceSteps) addOpenEndedPolicy(ctx context.Context, start, provider string) error {
	return s.tc.POST(s.carPath("/policies"), map[string]any{
		"provider": provider, "start_date": start,
	})
}

func (s *insuranceSteps) fileClaim(ctx context.Context, date string, cents int, description string) error {
	return s.tc.POST(s.carPath("/claims"), map[string]any{
		"claim_date": date, "description": description, "amount_cents": cents,
	})
}

func (s *insuranceSteps) checkValidity(ctx context.Context, date string) error {
	return s.tc.GET(s.carPath("/insurance-valid?date=" + date))
}

func (s *insuranceSteps) checkValidityForPath(ctx context.Context, carID, date string) error {
	return s.tc.GET("/api/cars/" + carID + "/insurance-valid?date=" + date)
}

func (s *insuranceSteps) requestHistory(ctx context.Context) error {
	return s.tc.GET(s.carPath("/history"))
}

func (s *insuranceSteps) statusShouldBe(ctx context.Context, want int) error {
	if got := s.tc.GetLastResponseStatus(); got != want {
		return fmt.Errorf("expected status %d, got %d: %s", want, got, s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *insuranceSteps) boolFieldShouldBe(ctx context.Context, field, want string) error {
	v, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	if fmt.Sprint(v) != want {
		return fmt.Errorf("expected %s=%s, got %v", field, want, v)
	}
	return nil
}

func (s *insuranceSteps) historyListsClaim(ctx context.Context, description string) error {
	var h struct {
		Policies []struct {
			Claims []struct {
				Description string `json:"description"`
			} `json:"claims"`
		} `json:"policies"`
	}
	if err := json.Unmarshal(s.tc.GetLastResponseBody(), &h); err != nil {
		return fmt.Errorf("decode history: %w", err)
	}
	for _, p := range h.Policies {
		for _, c := range p.Claims {
			if c.Description == description {
				return nil
			}
		}
	}
	return fmt.Errorf("claim %q not in history %s", description, s.tc.GetLastResponseBody())
}

// The seed data holds one policy ending today; the monitor's first pass at
// startup records it.
func (s *insuranceSteps) expirationsIncludeToday(ctx context.Context) error {
	today := time.Now().UTC().Format("2006-01-02")
	deadline := time.Now().Add(15 * time.Second)
	for {
		if err := s.tc.GET("/api/expirations"); err != nil {
			return err
		}
		var records []struct {
			ExpirationDate string `json:"expiration_date"`
		}
		if err := json.Unmarshal(s.tc.GetLastResponseBody(), &records); err != nil {
			return fmt.Errorf("decode expirations: %w", err)
		}
		for _, r := range records {
			if r.ExpirationDate == today {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("no expiration record for %s in %s", today, s.tc.GetLastResponseBody())
		}
		time.Sleep(500 * time.Millisecond)
	}
}
